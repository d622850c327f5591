package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/wastewatch-api/internal/models"
)

var userProfileRowColumns = []string{"seq", "id", "user_id", "display_name", "profile_image_id", "reports_count", "cleanups_count", "joined_at"}

func TestUserProfileRepositoryEnsure(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewUserProfileRepository(db)
	joined := time.Now().UTC()

	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (user_id) DO NOTHING")).
		WithArgs("p1", "u1", "Ana", nil, joined).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (user_id) DO NOTHING")).
		WithArgs("p2", "u1", "Ana", nil, joined).
		WillReturnResult(sqlmock.NewResult(0, 0))

	created, err := repo.Ensure(context.Background(), models.ProfileSeed{ID: "p1", UserID: "u1", DisplayName: "Ana", JoinedAt: joined})
	require.NoError(t, err)
	assert.True(t, created)

	created, err = repo.Ensure(context.Background(), models.ProfileSeed{ID: "p2", UserID: "u1", DisplayName: "Ana", JoinedAt: joined})
	require.NoError(t, err)
	assert.False(t, created)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserProfileRepositoryIncrementCleanupsWithoutProfile(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewUserProfileRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE user_profiles SET cleanups_count = cleanups_count + 1 WHERE user_id = $1")).
		WithArgs("ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.IncrementCleanups(context.Background(), "ghost")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUserProfileRepositoryIncrementReports(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewUserProfileRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE user_profiles SET reports_count = reports_count + 1 WHERE user_id = $1")).
		WithArgs("u1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := repo.IncrementReports(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestUserProfileRepositoryGetByUserIDMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewUserProfileRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM user_profiles WHERE user_id = $1")).
		WithArgs("u1").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByUserID(context.Background(), "u1")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestUserProfileRepositoryListTopByReports(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewUserProfileRepository(db)
	joined := time.Now().UTC()

	rows := sqlmock.NewRows(userProfileRowColumns).
		AddRow(int64(2), "p2", "u2", "Bia", nil, 6, 0, joined).
		AddRow(int64(1), "p1", "u1", "Ana", "img-1", 5, 10, joined)
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY reports_count DESC, seq ASC LIMIT $1")).
		WithArgs(10).
		WillReturnRows(rows)

	profiles, err := repo.ListTopByReports(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, profiles, 2)
	assert.Equal(t, "u2", profiles[0].UserID)
	require.NotNil(t, profiles[1].ProfileImageID)
	assert.Equal(t, "img-1", *profiles[1].ProfileImageID)
}

func TestUserProfileRepositoryUpdateIdentity(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewUserProfileRepository(db)
	img := "img-9"

	mock.ExpectExec(regexp.QuoteMeta("UPDATE user_profiles SET display_name = $2, profile_image_id = $3 WHERE user_id = $1")).
		WithArgs("u1", "Novo Nome", img).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateIdentity(context.Background(), models.ProfileIdentityPatch{UserID: "u1", DisplayName: "Novo Nome", ProfileImageID: &img})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
