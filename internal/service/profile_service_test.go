package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/wastewatch-api/internal/dto"
	"github.com/noah-isme/wastewatch-api/internal/models"
	appErrors "github.com/noah-isme/wastewatch-api/pkg/errors"
)

func seedProfile(h *harness, userID string, reports, cleanups int) {
	h.store.seq++
	h.store.profiles[userID] = &models.UserProfile{
		Seq:           h.store.seq,
		ID:            "p-" + userID,
		UserID:        userID,
		DisplayName:   userID,
		ReportsCount:  reports,
		CleanupsCount: cleanups,
	}
}

func TestLeaderboardRanksByReportsOnly(t *testing.T) {
	h := newHarness(ReportConfig{})
	seedProfile(h, "busy-cleaner", 5, 10)
	seedProfile(h, "reporter", 6, 0)

	board, hit, err := h.profiles.Leaderboard(context.Background())
	require.NoError(t, err)
	assert.False(t, hit)
	require.Len(t, board, 2)
	assert.Equal(t, "reporter", board[0].UserID)
	assert.Equal(t, 1, board[0].Rank)
	assert.Equal(t, 6, board[0].RankingScore)
	assert.Equal(t, "busy-cleaner", board[1].UserID)
	assert.Equal(t, 5, board[1].RankingScore)
	assert.Equal(t, 15, board[1].TotalImpact)
}

func TestLeaderboardTopTenWithInsertionOrderTies(t *testing.T) {
	h := newHarness(ReportConfig{})
	for i := 0; i < 12; i++ {
		seedProfile(h, fmt.Sprintf("u%02d", i), 3, i)
	}
	seedProfile(h, "leader", 4, 0)

	board, _, err := h.profiles.Leaderboard(context.Background())
	require.NoError(t, err)
	require.Len(t, board, 10)
	assert.Equal(t, "leader", board[0].UserID)
	for i := 1; i < 10; i++ {
		assert.Equal(t, fmt.Sprintf("u%02d", i-1), board[i].UserID)
		assert.Equal(t, i+1, board[i].Rank)
	}
}

func TestLeaderboardCacheInvalidatedByActivity(t *testing.T) {
	h := newHarness(ReportConfig{})
	seedProfile(h, "u1", 1, 0)

	_, hit, err := h.profiles.Leaderboard(context.Background())
	require.NoError(t, err)
	assert.False(t, hit)
	_, hit, err = h.profiles.Leaderboard(context.Background())
	require.NoError(t, err)
	assert.True(t, hit)

	_, err = h.reports.Create(as("u2", "Bia"), reportRequest("desc", "PET"))
	require.NoError(t, err)
	board, hit, err := h.profiles.Leaderboard(context.Background())
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Len(t, board, 2)
}

func TestGetCurrentSynthesizesWithoutPersisting(t *testing.T) {
	h := newHarness(ReportConfig{})

	snap, err := h.profiles.GetCurrent(as("u1", "Ana"))
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.False(t, snap.Persisted)
	assert.Equal(t, "Ana", snap.DisplayName)
	assert.Zero(t, snap.ReportsCount)
	assert.Zero(t, snap.CleanupsCount)
	assert.False(t, snap.JoinedAt.IsZero())
	assert.Nil(t, snap.ProfileImageURL)
	assert.Empty(t, h.store.profiles)

	snap, err = h.profiles.GetCurrent(as("u2", ""))
	require.NoError(t, err)
	assert.Equal(t, "Usuário", snap.DisplayName)
	assert.Empty(t, h.store.profiles)
}

func TestGetCurrentPersistedSnapshot(t *testing.T) {
	h := newHarness(ReportConfig{})
	seedProfile(h, "top", 9, 0)
	seedProfile(h, "u1", 5, 10)
	h.store.profiles["u1"].ProfileImageID = ptr("avatar")
	h.media.known["avatar"] = true

	snap, err := h.profiles.GetCurrent(as("u1", "Ana"))
	require.NoError(t, err)
	assert.True(t, snap.Persisted)
	assert.Equal(t, 15, snap.TotalImpact)
	assert.Equal(t, 2, snap.LeaderboardRank)
	require.NotNil(t, snap.ProfileImageURL)
	assert.Equal(t, "https://files.test/avatar", *snap.ProfileImageURL)
}

func TestUpdateProfileCreatesWithZeroCounts(t *testing.T) {
	h := newHarness(ReportConfig{})
	ctx := as("u1", "Ana")

	require.NoError(t, h.profiles.Update(ctx, dto.UpdateProfileRequest{DisplayName: "Ana Maria", ProfileImageID: ptr("img")}))
	profile := h.store.profiles["u1"]
	require.NotNil(t, profile)
	assert.Equal(t, "Ana Maria", profile.DisplayName)
	assert.Equal(t, "img", *profile.ProfileImageID)
	assert.Zero(t, profile.ReportsCount)
	joined := profile.JoinedAt

	_, err := h.reports.Create(ctx, reportRequest("desc", "PET"))
	require.NoError(t, err)
	require.NoError(t, h.profiles.Update(ctx, dto.UpdateProfileRequest{DisplayName: "Ana"}))

	profile = h.store.profiles["u1"]
	assert.Equal(t, "Ana", profile.DisplayName)
	assert.Nil(t, profile.ProfileImageID)
	assert.Equal(t, 1, profile.ReportsCount)
	assert.Equal(t, joined, profile.JoinedAt)
}

func TestUpdateWithImageAbortsOnUploadFailure(t *testing.T) {
	h := newHarness(ReportConfig{})
	h.media.fail = true

	err := h.profiles.UpdateWithImage(as("u1", "Ana"), dto.UpdateProfileRequest{DisplayName: "Ana"}, dto.ImageUpload{})
	assert.ErrorIs(t, err, appErrors.ErrUploadFailed)
	assert.Empty(t, h.store.profiles)

	h.media.fail = false
	require.NoError(t, h.profiles.UpdateWithImage(as("u1", "Ana"), dto.UpdateProfileRequest{DisplayName: "Ana"}, dto.ImageUpload{}))
	require.NotNil(t, h.store.profiles["u1"].ProfileImageID)
}

func TestCreditCleanupWithoutProfile(t *testing.T) {
	h := newHarness(ReportConfig{})
	ok, err := h.profiles.CreditCleanup(context.Background(), "ghost")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, h.store.profiles)
}

func TestEnsureProfileIsIdempotent(t *testing.T) {
	h := newHarness(ReportConfig{})
	created, err := h.profiles.EnsureProfile(context.Background(), models.Caller{UserID: "u1", Name: "Ana"})
	require.NoError(t, err)
	assert.True(t, created)
	created, err = h.profiles.EnsureProfile(context.Background(), models.Caller{UserID: "u1", Name: "Outra"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "Ana", h.store.profiles["u1"].DisplayName)
}

// racingProfiles runs afterRead once, right after the leaderboard query returns.
type racingProfiles struct {
	memoryProfiles
	afterRead func()
}

func (p *racingProfiles) ListTopByReports(ctx context.Context, limit int) ([]models.UserProfile, error) {
	out, err := p.memoryProfiles.ListTopByReports(ctx, limit)
	if p.afterRead != nil {
		hook := p.afterRead
		p.afterRead = nil
		hook()
	}
	return out, err
}

func TestLeaderboardNotCachedWhenInvalidatedDuringRebuild(t *testing.T) {
	h := newHarness(ReportConfig{})
	seedProfile(h, "u1", 1, 0)
	seedProfile(h, "u2", 2, 0)

	repo := &racingProfiles{memoryProfiles: memoryProfiles{h.store}}
	svc := NewProfileService(repo, h.store, h.cache, h.media, nil, nil, nil, ProfileConfig{})
	repo.afterRead = func() {
		_, err := repo.IncrementReports(context.Background(), "u1")
		require.NoError(t, err)
		_, err = repo.IncrementReports(context.Background(), "u1")
		require.NoError(t, err)
		svc.InvalidateLeaderboard(context.Background())
	}

	stale, hit, err := svc.Leaderboard(context.Background())
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "u2", stale[0].UserID)

	fresh, hit, err := svc.Leaderboard(context.Background())
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "u1", fresh[0].UserID)
	assert.Equal(t, 3, fresh[0].ReportsCount)

	_, hit, err = svc.Leaderboard(context.Background())
	require.NoError(t, err)
	assert.True(t, hit)
}
