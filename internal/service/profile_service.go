package service

import (
	"context"
	"database/sql"
	"errors"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/wastewatch-api/internal/dto"
	"github.com/noah-isme/wastewatch-api/internal/models"
	appErrors "github.com/noah-isme/wastewatch-api/pkg/errors"
)

const (
	leaderboardSize     = 10
	leaderboardCacheKey = "leaderboard:top"
)

type profileRepository interface {
	GetByUserID(ctx context.Context, userID string) (*models.UserProfile, error)
	Ensure(ctx context.Context, seed models.ProfileSeed) (bool, error)
	UpdateIdentity(ctx context.Context, patch models.ProfileIdentityPatch) error
	IncrementReports(ctx context.Context, userID string) (bool, error)
	IncrementCleanups(ctx context.Context, userID string) (bool, error)
	ListTopByReports(ctx context.Context, limit int) ([]models.UserProfile, error)
}

type txRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type leaderboardCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Invalidate(ctx context.Context, keys ...string) error
}

type imageStore interface {
	Store(ctx context.Context, upload dto.ImageUpload) (string, error)
}

type mediaStore interface {
	mediaResolver
	imageStore
}

// ProfileConfig tunes profile seeding and leaderboard caching.
type ProfileConfig struct {
	DefaultName    string
	LeaderboardTTL time.Duration
}

// ProfileService owns lazily created user profiles, their counters and the leaderboard.
type ProfileService struct {
	repo      profileRepository
	tx        txRunner
	cache     leaderboardCache
	media     mediaStore
	identity  IdentityResolver
	validator *validator.Validate
	logger    *zap.Logger
	config    ProfileConfig
	now       func() time.Time

	// generation advances on every invalidation so a rebuild that raced a write is not cached.
	generation atomic.Uint64
}

// NewProfileService constructs the profile service.
func NewProfileService(repo profileRepository, tx txRunner, cache leaderboardCache, media mediaStore, identity IdentityResolver, validate *validator.Validate, logger *zap.Logger, cfg ProfileConfig) *ProfileService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if identity == nil {
		identity = ContextIdentity{}
	}
	if cfg.DefaultName == "" {
		cfg.DefaultName = "Usuário"
	}
	return &ProfileService{
		repo:      repo,
		tx:        tx,
		cache:     cache,
		media:     media,
		identity:  identity,
		validator: validate,
		logger:    logger,
		config:    cfg,
		now:       time.Now,
	}
}

// GetCurrent returns the caller's profile snapshot. Anonymous callers get nil. A caller
// without a stored profile gets a synthesized default that is not persisted.
func (s *ProfileService) GetCurrent(ctx context.Context) (*dto.ProfileSnapshot, error) {
	caller := s.identity.Caller(ctx)
	if caller == nil {
		return nil, nil
	}

	profile, err := s.repo.GetByUserID(ctx, caller.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &dto.ProfileSnapshot{
				UserID:      caller.UserID,
				DisplayName: s.seedName(caller),
				JoinedAt:    s.now().UTC(),
			}, nil
		}
		return nil, appErrors.Internal(err, "failed to load profile")
	}

	imageURL, err := s.media.ResolveURL(ctx, profile.ProfileImageID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to resolve profile image")
	}

	snapshot := &dto.ProfileSnapshot{
		ID:              profile.ID,
		UserID:          profile.UserID,
		DisplayName:     profile.DisplayName,
		ProfileImageID:  profile.ProfileImageID,
		ProfileImageURL: imageURL,
		ReportsCount:    profile.ReportsCount,
		CleanupsCount:   profile.CleanupsCount,
		TotalImpact:     profile.TotalImpact(),
		JoinedAt:        profile.JoinedAt,
		Persisted:       true,
	}

	board, _, err := s.Leaderboard(ctx)
	if err != nil {
		s.logger.Warn("leaderboard rank unavailable", zap.String("user_id", caller.UserID), zap.Error(err))
		return snapshot, nil
	}
	for _, entry := range board {
		if entry.UserID == profile.UserID {
			snapshot.LeaderboardRank = entry.Rank
			break
		}
	}
	return snapshot, nil
}

// Update sets the caller's display name and profile image, creating the profile with zero counts if needed.
func (s *ProfileService) Update(ctx context.Context, req dto.UpdateProfileRequest) error {
	caller := s.identity.Caller(ctx)
	if caller == nil {
		return appErrors.ErrUnauthenticated
	}
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid profile payload")
	}

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		created, err := s.repo.Ensure(ctx, models.ProfileSeed{
			ID:             uuid.NewString(),
			UserID:         caller.UserID,
			DisplayName:    req.DisplayName,
			ProfileImageID: req.ProfileImageID,
			JoinedAt:       s.now().UTC(),
		})
		if err != nil || created {
			return err
		}
		return s.repo.UpdateIdentity(ctx, models.ProfileIdentityPatch{
			UserID:         caller.UserID,
			DisplayName:    req.DisplayName,
			ProfileImageID: req.ProfileImageID,
		})
	})
	if err != nil {
		return appErrors.Internal(err, "failed to update profile")
	}

	s.InvalidateLeaderboard(ctx)
	return nil
}

// UpdateWithImage stores the image first and only then updates the profile.
func (s *ProfileService) UpdateWithImage(ctx context.Context, req dto.UpdateProfileRequest, upload dto.ImageUpload) error {
	if s.identity.Caller(ctx) == nil {
		return appErrors.ErrUnauthenticated
	}
	id, err := s.media.Store(ctx, upload)
	if err != nil {
		return err
	}
	req.ProfileImageID = &id
	return s.Update(ctx, req)
}

// Leaderboard returns the top profiles ranked by reports count only. The bool reports a cache hit.
func (s *ProfileService) Leaderboard(ctx context.Context) ([]dto.LeaderboardEntry, bool, error) {
	var cached []dto.LeaderboardEntry
	if hit, err := s.cache.Get(ctx, leaderboardCacheKey, &cached); err == nil && hit {
		return cached, true, nil
	}
	gen := s.generation.Load()

	profiles, err := s.repo.ListTopByReports(ctx, leaderboardSize)
	if err != nil {
		return nil, false, appErrors.Internal(err, "failed to load leaderboard")
	}

	ranked := make([]rankedProfile, len(profiles))
	for i, p := range profiles {
		ranked[i] = rankedProfile{rank: i + 1, profile: p}
	}
	entries, err := composeAll(ctx, ranked, defaultComposeConcurrency, s.leaderboardEntry)
	if err != nil {
		return nil, false, appErrors.Internal(err, "failed to compose leaderboard")
	}

	s.storeLeaderboard(ctx, gen, entries)
	return entries, false, nil
}

type rankedProfile struct {
	rank    int
	profile models.UserProfile
}

func (s *ProfileService) leaderboardEntry(ctx context.Context, r rankedProfile) (dto.LeaderboardEntry, error) {
	imageURL, err := s.media.ResolveURL(ctx, r.profile.ProfileImageID)
	if err != nil {
		return dto.LeaderboardEntry{}, err
	}
	return dto.LeaderboardEntry{
		Rank:            r.rank,
		UserID:          r.profile.UserID,
		DisplayName:     r.profile.DisplayName,
		ProfileImageURL: imageURL,
		ReportsCount:    r.profile.ReportsCount,
		CleanupsCount:   r.profile.CleanupsCount,
		RankingScore:    r.profile.RankingScore(),
		TotalImpact:     r.profile.TotalImpact(),
	}, nil
}

// EnsureProfile materializes the caller's profile with zero counts if it does not exist yet.
// It reports whether the profile was created.
func (s *ProfileService) EnsureProfile(ctx context.Context, caller models.Caller) (bool, error) {
	return s.repo.Ensure(ctx, models.ProfileSeed{
		ID:          uuid.NewString(),
		UserID:      caller.UserID,
		DisplayName: s.seedName(&caller),
		JoinedAt:    s.now().UTC(),
	})
}

// CreditReport ensures the caller's profile and increments its reports counter.
func (s *ProfileService) CreditReport(ctx context.Context, caller models.Caller) error {
	if _, err := s.EnsureProfile(ctx, caller); err != nil {
		return err
	}
	_, err := s.repo.IncrementReports(ctx, caller.UserID)
	return err
}

// CreditCleanup increments the cleanups counter of an existing profile. Users without a
// profile are skipped and false is returned.
func (s *ProfileService) CreditCleanup(ctx context.Context, userID string) (bool, error) {
	return s.repo.IncrementCleanups(ctx, userID)
}

// storeLeaderboard caches entries built at generation gen. Entries are not cached when an
// invalidation happened since gen, and are dropped again when one lands during the write.
func (s *ProfileService) storeLeaderboard(ctx context.Context, gen uint64, entries []dto.LeaderboardEntry) {
	if s.generation.Load() != gen {
		return
	}
	if err := s.cache.Set(ctx, leaderboardCacheKey, entries, s.config.LeaderboardTTL); err != nil {
		return
	}
	if s.generation.Load() != gen {
		if err := s.cache.Invalidate(ctx, leaderboardCacheKey); err != nil {
			s.logger.Warn("leaderboard invalidation failed", zap.Error(err))
		}
	}
}

// InvalidateLeaderboard drops the cached leaderboard. Failures are logged only.
func (s *ProfileService) InvalidateLeaderboard(ctx context.Context) {
	s.generation.Add(1)
	if err := s.cache.Invalidate(ctx, leaderboardCacheKey); err != nil {
		s.logger.Warn("leaderboard invalidation failed", zap.Error(err))
	}
}

func (s *ProfileService) seedName(caller *models.Caller) string {
	if caller != nil && caller.Name != "" {
		return caller.Name
	}
	return s.config.DefaultName
}
