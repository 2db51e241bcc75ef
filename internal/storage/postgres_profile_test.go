package storage

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
	"gorm.io/gorm/schema"

	apperrors "gitlab.com/nestestates/api/agent-lifecycle-service/internal/apperrors"
	"gitlab.com/nestestates/api/agent-lifecycle-service/internal/tenant"
	"gitlab.com/nestestates/api/agent-lifecycle-service/pkg/logger"
)

const testTenantIDProfile = "tenant-profile-test-987"

func newTestProfileRepo(t *testing.T) (*PostgresRepo, sqlmock.Sqlmock) {
	logger.Log = zaptest.NewLogger(t).Named("test")

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	assert.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{
		Logger:                 gormLogger.Default.LogMode(gormLogger.Silent),
		SkipDefaultTransaction: true,
		NamingStrategy:         schema.NamingStrategy{SingularTable: true},
	})
	assert.NoError(t, err)

	return &PostgresRepo{db: gormDB}, mock
}

// --- Profile Repository Tests ---

// TestPostgresRepo_FindProfileByUserID_Found tests reading an identity profile.
func TestPostgresRepo_FindProfileByUserID_Found(t *testing.T) {
	repo, mock := newTestProfileRepo(t)
	ctx := tenant.WithCompanyID(context.Background(), testTenantIDProfile)
	userID := "user-profile-1"
	now := time.Now()

	cols := []string{"user_id", "first_name", "last_name", "email", "phone", "bio", "avatar_url", "created_at", "updated_at"}
	rows := sqlmock.NewRows(cols).
		AddRow(userID, "Jane", "Doe", "jane@example.com", "+44 20 7946 0000", "Seasoned agent covering the harbour district.", "https://cdn.example.com/avatars/jane.jpg", now.Add(-time.Hour), now.Add(-time.Minute))

	selectQuery := `SELECT * FROM "profiles" WHERE user_id = $1 ORDER BY "profiles"."user_id" LIMIT $2`
	mock.ExpectQuery(selectQuery).
		WithArgs(userID, 1).
		WillReturnRows(rows)

	profile, err := repo.FindProfileByUserID(ctx, userID)

	assert.NoError(t, err)
	assert.NotNil(t, profile)
	assert.Equal(t, userID, profile.UserID)
	assert.Equal(t, "Jane", profile.FirstName)
	assert.Equal(t, "Doe", profile.LastName)
	assert.Equal(t, "jane@example.com", profile.Email)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestPostgresRepo_FindProfileByUserID_NotFound tests reading a missing profile.
func TestPostgresRepo_FindProfileByUserID_NotFound(t *testing.T) {
	repo, mock := newTestProfileRepo(t)
	ctx := tenant.WithCompanyID(context.Background(), testTenantIDProfile)

	selectQuery := `SELECT * FROM "profiles" WHERE user_id = $1 ORDER BY "profiles"."user_id" LIMIT $2`
	mock.ExpectQuery(selectQuery).
		WithArgs("user-profile-404", 1).
		WillReturnError(gorm.ErrRecordNotFound)

	profile, err := repo.FindProfileByUserID(ctx, "user-profile-404")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.Nil(t, profile)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestPostgresRepo_FindProfileByUserID_NoTenant tests the tenant guard.
func TestPostgresRepo_FindProfileByUserID_NoTenant(t *testing.T) {
	repo, mock := newTestProfileRepo(t)

	profile, err := repo.FindProfileByUserID(context.Background(), "user-profile-2")
	assert.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
	assert.Nil(t, profile)
	assert.NoError(t, mock.ExpectationsWereMet())
}
