package storage

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
	"gorm.io/gorm/schema"

	apperrors "gitlab.com/nestestates/api/agent-lifecycle-service/internal/apperrors"
	"gitlab.com/nestestates/api/agent-lifecycle-service/internal/model"
	"gitlab.com/nestestates/api/agent-lifecycle-service/internal/tenant"
	"gitlab.com/nestestates/api/agent-lifecycle-service/pkg/logger"
)

const testTenantIDBuild = "tenant-build-test-321"

func newTestBuildRepo(t *testing.T) (*PostgresRepo, sqlmock.Sqlmock) {
	logger.Log = zaptest.NewLogger(t).Named("test")

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	assert.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{
		Logger:                 gormLogger.Default.LogMode(gormLogger.Silent),
		SkipDefaultTransaction: true,
		// Models resolve table names through a schema.Namer. Production wires
		// a schema-qualifying namer; here the singular strategy yields the
		// same bare table names without the schema prefix.
		NamingStrategy: schema.NamingStrategy{SingularTable: true},
	})
	assert.NoError(t, err)

	return &PostgresRepo{db: gormDB}, mock
}

func contextWithBuildTenant() context.Context {
	return tenant.WithCompanyID(context.Background(), testTenantIDBuild)
}

// The status column carries a database default, so GORM appends it after the
// plain columns and asks for it back in RETURNING. The dedupe target is the
// partial unique index over (agent_id, trigger_reason) WHERE status='pending'.
const buildInsertSQL = `INSERT INTO "build_queue" ("id","agent_id","company_id","priority","trigger_reason","error_message","created_at","started_at","completed_at","status") VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10) ON CONFLICT ("agent_id","trigger_reason") WHERE status = $11 DO NOTHING RETURNING "status"`

// --- Build Queue Repository Tests ---

// TestPostgresRepo_EnqueueBuild_Created tests inserting a new build entry.
func TestPostgresRepo_EnqueueBuild_Created(t *testing.T) {
	repo, mock := newTestBuildRepo(t)
	ctx := contextWithBuildTenant()

	entry := model.BuildQueueEntry{
		ID:            "build-uuid-1",
		AgentID:       "agent-build-1",
		CompanyID:     testTenantIDBuild,
		Priority:      model.PriorityEmergency,
		TriggerReason: model.TriggerAgentActivated,
		Status:        model.BuildStatusPending,
	}

	mock.ExpectBegin()
	mock.ExpectQuery(buildInsertSQL).
		WithArgs(
			entry.ID, entry.AgentID, entry.CompanyID, int64(model.PriorityEmergency),
			entry.TriggerReason, "", AnyTime{}, nil, nil,
			model.BuildStatusPending, model.BuildStatusPending,
		).
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("pending"))
	mock.ExpectCommit()

	buildID, created, err := repo.EnqueueBuild(ctx, entry)

	assert.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, entry.ID, buildID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestPostgresRepo_EnqueueBuild_DuplicateSuppressed tests that a pending
// duplicate keeps the original entry and its priority.
func TestPostgresRepo_EnqueueBuild_DuplicateSuppressed(t *testing.T) {
	repo, mock := newTestBuildRepo(t)
	ctx := contextWithBuildTenant()
	now := time.Now()

	entry := model.BuildQueueEntry{
		ID:            "build-uuid-loser",
		AgentID:       "agent-build-dup",
		CompanyID:     testTenantIDBuild,
		Priority:      model.PriorityEmergency, // Must NOT upgrade the survivor
		TriggerReason: model.TriggerProfileUpdated,
		Status:        model.BuildStatusPending,
	}

	mock.ExpectBegin()
	mock.ExpectQuery(buildInsertSQL).
		WithArgs(
			entry.ID, entry.AgentID, entry.CompanyID, int64(model.PriorityEmergency),
			entry.TriggerReason, "", AnyTime{}, nil, nil,
			model.BuildStatusPending, model.BuildStatusPending,
		).
		WillReturnRows(sqlmock.NewRows([]string{"status"})) // Conflict, nothing inserted

	// Re-read the surviving pending entry
	selectQuery := `SELECT * FROM "build_queue" WHERE agent_id = $1 AND trigger_reason = $2 AND status = $3 AND company_id = $4 ORDER BY "build_queue"."id" LIMIT $5`
	survivorCols := []string{"id", "agent_id", "company_id", "priority", "trigger_reason", "status", "created_at"}
	mock.ExpectQuery(selectQuery).
		WithArgs(entry.AgentID, entry.TriggerReason, model.BuildStatusPending, testTenantIDBuild, 1).
		WillReturnRows(sqlmock.NewRows(survivorCols).
			AddRow("build-uuid-winner", entry.AgentID, testTenantIDBuild, int64(model.PriorityNormal), entry.TriggerReason, "pending", now.Add(-time.Minute)))
	mock.ExpectCommit()

	buildID, created, err := repo.EnqueueBuild(ctx, entry)

	assert.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "build-uuid-winner", buildID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestPostgresRepo_EnqueueBuild_SurvivorVanished tests the race where the
// conflicting pending entry resolves between insert and re-read.
func TestPostgresRepo_EnqueueBuild_SurvivorVanished(t *testing.T) {
	repo, mock := newTestBuildRepo(t)
	ctx := contextWithBuildTenant()

	entry := model.BuildQueueEntry{
		ID:            "build-uuid-vanish",
		AgentID:       "agent-build-vanish",
		CompanyID:     testTenantIDBuild,
		Priority:      model.PriorityNormal,
		TriggerReason: model.TriggerAgentUpdated,
		Status:        model.BuildStatusPending,
	}

	mock.ExpectBegin()
	mock.ExpectQuery(buildInsertSQL).
		WithArgs(
			entry.ID, entry.AgentID, entry.CompanyID, int64(model.PriorityNormal),
			entry.TriggerReason, "", AnyTime{}, nil, nil,
			model.BuildStatusPending, model.BuildStatusPending,
		).
		WillReturnRows(sqlmock.NewRows([]string{"status"}))

	selectQuery := `SELECT * FROM "build_queue" WHERE agent_id = $1 AND trigger_reason = $2 AND status = $3 AND company_id = $4 ORDER BY "build_queue"."id" LIMIT $5`
	mock.ExpectQuery(selectQuery).
		WithArgs(entry.AgentID, entry.TriggerReason, model.BuildStatusPending, testTenantIDBuild, 1).
		WillReturnError(gorm.ErrRecordNotFound)
	mock.ExpectRollback()

	_, _, err := repo.EnqueueBuild(ctx, entry)

	assert.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestPostgresRepo_EnqueueBuild_TenantMismatch tests the company guard.
func TestPostgresRepo_EnqueueBuild_TenantMismatch(t *testing.T) {
	repo, mock := newTestBuildRepo(t)
	ctx := contextWithBuildTenant()

	_, _, err := repo.EnqueueBuild(ctx, model.BuildQueueEntry{
		ID:        "build-uuid-mismatch",
		AgentID:   "agent-build-mismatch",
		CompanyID: "wrong-tenant",
	})
	assert.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrBadRequest)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestPostgresRepo_CancelPendingBuilds tests cancelling every pending entry
// for an agent.
func TestPostgresRepo_CancelPendingBuilds(t *testing.T) {
	repo, mock := newTestBuildRepo(t)
	ctx := contextWithBuildTenant()
	agentID := "agent-build-cancel"

	// Map updates sort keys alphabetically
	updatePattern := `UPDATE "build_queue" SET "completed_at"=$1,"status"=$2 WHERE agent_id = $3 AND company_id = $4 AND status = $5`
	mock.ExpectExec(updatePattern).
		WithArgs(AnyTime{}, model.BuildStatusCancelled, agentID, testTenantIDBuild, model.BuildStatusPending).
		WillReturnResult(sqlmock.NewResult(0, 2))

	cancelled, err := repo.CancelPendingBuilds(ctx, agentID)

	assert.NoError(t, err)
	assert.Equal(t, int64(2), cancelled)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestPostgresRepo_CancelPendingBuilds_NonePending tests the no-op case.
func TestPostgresRepo_CancelPendingBuilds_NonePending(t *testing.T) {
	repo, mock := newTestBuildRepo(t)
	ctx := contextWithBuildTenant()
	agentID := "agent-build-none"

	updatePattern := `UPDATE "build_queue" SET "completed_at"=$1,"status"=$2 WHERE agent_id = $3 AND company_id = $4 AND status = $5`
	mock.ExpectExec(updatePattern).
		WithArgs(AnyTime{}, model.BuildStatusCancelled, agentID, testTenantIDBuild, model.BuildStatusPending).
		WillReturnResult(sqlmock.NewResult(0, 0))

	cancelled, err := repo.CancelPendingBuilds(ctx, agentID)

	assert.NoError(t, err)
	assert.Equal(t, int64(0), cancelled)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestPostgresRepo_FindBuildByID_Found tests fetching a single build entry.
func TestPostgresRepo_FindBuildByID_Found(t *testing.T) {
	repo, mock := newTestBuildRepo(t)
	ctx := contextWithBuildTenant()
	buildID := "build-uuid-find"
	now := time.Now()

	cols := []string{"id", "agent_id", "company_id", "priority", "trigger_reason", "status", "created_at"}
	rows := sqlmock.NewRows(cols).
		AddRow(buildID, "agent-build-find", testTenantIDBuild, int64(model.PriorityHigh), model.TriggerManual, "pending", now.Add(-time.Minute))

	selectQuery := `SELECT * FROM "build_queue" WHERE id = $1 AND company_id = $2 ORDER BY "build_queue"."id" LIMIT $3`
	mock.ExpectQuery(selectQuery).
		WithArgs(buildID, testTenantIDBuild, 1).
		WillReturnRows(rows)

	found, err := repo.FindBuildByID(ctx, buildID)

	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, buildID, found.ID)
	assert.Equal(t, model.PriorityHigh, found.Priority)
	assert.Equal(t, model.TriggerManual, found.TriggerReason)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestPostgresRepo_FindBuildByID_NotFound tests fetching a missing build entry.
func TestPostgresRepo_FindBuildByID_NotFound(t *testing.T) {
	repo, mock := newTestBuildRepo(t)
	ctx := contextWithBuildTenant()

	selectQuery := `SELECT * FROM "build_queue" WHERE id = $1 AND company_id = $2 ORDER BY "build_queue"."id" LIMIT $3`
	mock.ExpectQuery(selectQuery).
		WithArgs("build-uuid-404", testTenantIDBuild, 1).
		WillReturnError(gorm.ErrRecordNotFound)

	found, err := repo.FindBuildByID(ctx, "build-uuid-404")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.Nil(t, found)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestPostgresRepo_FindPendingBuilds tests executor ordering: priority first,
// oldest first within a priority.
func TestPostgresRepo_FindPendingBuilds(t *testing.T) {
	repo, mock := newTestBuildRepo(t)
	ctx := contextWithBuildTenant()
	now := time.Now()

	cols := []string{"id", "agent_id", "company_id", "priority", "trigger_reason", "status", "created_at"}
	rows := sqlmock.NewRows(cols).
		AddRow("build-p1", "agent-a", testTenantIDBuild, int64(model.PriorityEmergency), model.TriggerAgentActivated, "pending", now.Add(-time.Minute)).
		AddRow("build-p3", "agent-b", testTenantIDBuild, int64(model.PriorityNormal), model.TriggerProfileUpdated, "pending", now.Add(-time.Hour))

	selectQuery := `SELECT * FROM "build_queue" WHERE company_id = $1 AND status = $2 ORDER BY priority ASC, created_at ASC LIMIT $3`
	mock.ExpectQuery(selectQuery).
		WithArgs(testTenantIDBuild, model.BuildStatusPending, 10).
		WillReturnRows(rows)

	entries, err := repo.FindPendingBuilds(ctx, 10)

	assert.NoError(t, err)
	assert.Len(t, entries, 2)
	assert.Equal(t, "build-p1", entries[0].ID)
	assert.Equal(t, model.PriorityEmergency, entries[0].Priority)
	assert.Equal(t, "build-p3", entries[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestPostgresRepo_GetQueueStats tests the dashboard counts.
func TestPostgresRepo_GetQueueStats(t *testing.T) {
	repo, mock := newTestBuildRepo(t)
	ctx := contextWithBuildTenant()

	countByStatus := `SELECT count(*) FROM "build_queue" WHERE company_id = $1 AND status = $2`
	countSinceDayStart := `SELECT count(*) FROM "build_queue" WHERE company_id = $1 AND status = $2 AND completed_at >= $3`

	mock.ExpectQuery(countByStatus).
		WithArgs(testTenantIDBuild, model.BuildStatusPending).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery(countByStatus).
		WithArgs(testTenantIDBuild, model.BuildStatusBuilding).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(countSinceDayStart).
		WithArgs(testTenantIDBuild, model.BuildStatusCompleted, AnyTime{}).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(12))
	mock.ExpectQuery(countSinceDayStart).
		WithArgs(testTenantIDBuild, model.BuildStatusFailed, AnyTime{}).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	stats, err := repo.GetQueueStats(ctx)

	assert.NoError(t, err)
	assert.NotNil(t, stats)
	assert.Equal(t, int64(3), stats.Pending)
	assert.Equal(t, int64(1), stats.Building)
	assert.Equal(t, int64(12), stats.CompletedToday)
	assert.Equal(t, int64(2), stats.FailedToday)
	assert.NoError(t, mock.ExpectationsWereMet())
}
