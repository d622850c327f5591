package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/wastewatch-api/internal/models"
)

const userProfileColumns = `seq, id, user_id, display_name, profile_image_id, reports_count, cleanups_count, joined_at`

// UserProfileRepository persists user profiles and their activity counters.
type UserProfileRepository struct {
	db *sqlx.DB
}

// NewUserProfileRepository constructs the repository.
func NewUserProfileRepository(db *sqlx.DB) *UserProfileRepository {
	return &UserProfileRepository{db: db}
}

// GetByUserID fetches the profile owned by userID. sql.ErrNoRows is returned unwrapped when absent.
func (r *UserProfileRepository) GetByUserID(ctx context.Context, userID string) (*models.UserProfile, error) {
	const query = `SELECT ` + userProfileColumns + ` FROM user_profiles WHERE user_id = $1`
	var profile models.UserProfile
	if err := executor(ctx, r.db).GetContext(ctx, &profile, query, userID); err != nil {
		return nil, err
	}
	return &profile, nil
}

// Ensure inserts a zero-count profile from seed unless one already exists for the user.
// It reports whether a row was created.
func (r *UserProfileRepository) Ensure(ctx context.Context, seed models.ProfileSeed) (bool, error) {
	const query = `INSERT INTO user_profiles (id, user_id, display_name, profile_image_id, reports_count, cleanups_count, joined_at)
VALUES ($1, $2, $3, $4, 0, 0, $5)
ON CONFLICT (user_id) DO NOTHING`
	res, err := executor(ctx, r.db).ExecContext(ctx, query, seed.ID, seed.UserID, seed.DisplayName, seed.ProfileImageID, seed.JoinedAt)
	if err != nil {
		return false, fmt.Errorf("ensure user profile: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("ensure user profile rows: %w", err)
	}
	return affected == 1, nil
}

// UpdateIdentity overwrites display name and profile image. A nil image clears it.
func (r *UserProfileRepository) UpdateIdentity(ctx context.Context, patch models.ProfileIdentityPatch) error {
	const query = `UPDATE user_profiles SET display_name = $2, profile_image_id = $3 WHERE user_id = $1`
	if _, err := executor(ctx, r.db).ExecContext(ctx, query, patch.UserID, patch.DisplayName, patch.ProfileImageID); err != nil {
		return fmt.Errorf("update user profile: %w", err)
	}
	return nil
}

// IncrementReports adds one to the user's reports counter.
func (r *UserProfileRepository) IncrementReports(ctx context.Context, userID string) (bool, error) {
	return r.increment(ctx, "reports_count", userID)
}

// IncrementCleanups adds one to the user's cleanups counter. It reports false when the user has no profile.
func (r *UserProfileRepository) IncrementCleanups(ctx context.Context, userID string) (bool, error) {
	return r.increment(ctx, "cleanups_count", userID)
}

func (r *UserProfileRepository) increment(ctx context.Context, column, userID string) (bool, error) {
	query := fmt.Sprintf(`UPDATE user_profiles SET %[1]s = %[1]s + 1 WHERE user_id = $1`, column)
	res, err := executor(ctx, r.db).ExecContext(ctx, query, userID)
	if err != nil {
		return false, fmt.Errorf("increment %s: %w", column, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("increment %s rows: %w", column, err)
	}
	return affected > 0, nil
}

// ListTopByReports returns up to limit profiles ordered by reports count, earliest profile first on ties.
func (r *UserProfileRepository) ListTopByReports(ctx context.Context, limit int) ([]models.UserProfile, error) {
	const query = `SELECT ` + userProfileColumns + ` FROM user_profiles ORDER BY reports_count DESC, seq ASC LIMIT $1`
	profiles := make([]models.UserProfile, 0, limit)
	if err := executor(ctx, r.db).SelectContext(ctx, &profiles, query, limit); err != nil {
		return nil, fmt.Errorf("list leaderboard: %w", err)
	}
	return profiles, nil
}
