package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gitlab.com/nestestates/api/agent-lifecycle-service/internal/apperrors"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"

	"gitlab.com/nestestates/api/agent-lifecycle-service/internal/model"
	"gitlab.com/nestestates/api/agent-lifecycle-service/pkg/logger"
)

// --- Retry Logic Configuration ---
const (
	defaultRetryInitialInterval = 50 * time.Millisecond
	defaultRetryMaxInterval     = 2 * time.Second
	defaultRetryMaxElapsedTime  = 10 * time.Second
	readRetryMaxElapsedTime     = 5 * time.Second  // More aggressive for reads
	commitRetryMaxElapsedTime   = 15 * time.Second // More tolerant for commits
)

// newRetryPolicy creates a new exponential backoff policy with context awareness.
func newRetryPolicy(ctx context.Context, maxElapsedTime time.Duration) backoff.BackOffContext {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = defaultRetryInitialInterval
	b.MaxInterval = defaultRetryMaxInterval
	b.MaxElapsedTime = maxElapsedTime
	b.Reset() // Important: Reset before first use
	return backoff.WithContext(b, ctx)
}

// retryableOperation wraps a database operation with retry logic.
func retryableOperation(ctx context.Context, policy backoff.BackOffContext, opName string, operation func() error) error {
	notify := func(err error, d time.Duration) {
		logger.FromContext(ctx).Warn("Retrying DB operation",
			zap.String("operation", opName),
			zap.Error(err),
			zap.Duration("after", d),
		)
	}

	err := backoff.RetryNotify(func() error {
		err := operation()
		if err != nil {
			// Check for non-retryable errors first
			if errors.Is(err, gorm.ErrRecordNotFound) ||
				errors.Is(err, gorm.ErrInvalidTransaction) ||
				errors.Is(err, gorm.ErrDuplicatedKey) ||
				errors.Is(err, gorm.ErrForeignKeyViolated) {
				return backoff.Permanent(err) // Don't retry these GORM errors
			}
			// Check for potentially transient errors
			if isTransientError(err) {
				return err // Retry transient errors
			}
			// Treat other errors as permanent by default
			return backoff.Permanent(err)
		}
		return nil // Success
	}, policy, notify)

	return err
}

// isTransientError checks if the error suggests a temporary issue like a network problem.
func isTransientError(err error) bool {
	if err == nil {
		return false
	}

	// Check for context deadline exceeded, often indicates a timeout
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// See https://www.postgresql.org/docs/current/errcodes-appendix.html
		// Class 08 — Connection Exception
		// Class 53 — Insufficient Resources
		if strings.HasPrefix(pgErr.Code, "08") ||
			strings.HasPrefix(pgErr.Code, "53") ||
			strings.HasPrefix(pgErr.Code, "40P01") ||
			strings.HasPrefix(pgErr.Code, "40001") {
			return true // Retry connection and resource errors
		}
	}

	// Fallback to string matching for common network-related errors
	errStr := strings.ToLower(err.Error())
	transientIndicators := []string{
		"connection refused",
		"network is unreachable",
		"i/o timeout",
		"broken pipe",
		"connection reset by peer",
		"could not translate host name",
		"no route to host",
		"database system is starting up", // Might occur during failover/restart
		"connection timed out",
		"connection reset",
	}
	for _, indicator := range transientIndicators {
		if strings.Contains(errStr, indicator) {
			return true
		}
	}

	return false
}

// PostgresRepo implements the lifecycle repositories on a tenant-scoped schema.
type PostgresRepo struct {
	db *gorm.DB
}

// ensureTableExists checks if a table exists and creates it using the provided SQL DDL if it doesn't.
func ensureTableExists(db *gorm.DB, schemaName string, tableName string, createTableSQL string) error {
	var exists bool
	// Explicitly check within the target schema
	checkSQL := `
		SELECT EXISTS (
			SELECT FROM information_schema.tables
			WHERE table_schema = ? AND table_name = ?
		)`
	err := db.Raw(checkSQL, schemaName, tableName).Scan(&exists).Error
	if err != nil {
		return fmt.Errorf("failed to check if table %s exists in schema %s: %w", tableName, schemaName, err)
	}

	if !exists {
		logger.Log.Info("Table does not exist, creating table", zap.String("tableName", tableName), zap.String("schema", schemaName))
		if err := db.Exec(createTableSQL).Error; err != nil {
			return fmt.Errorf("failed to create table %s in schema %s: %w", tableName, schemaName, err)
		}
		logger.Log.Info("Successfully created table", zap.String("tableName", tableName), zap.String("schema", schemaName))
	} else {
		logger.Log.Debug("Table already exists", zap.String("tableName", tableName), zap.String("schema", schemaName))
	}
	return nil
}

// tenantNamer implements gorm schema.Namer interface for multi-tenant schemas
// It embeds the default NamingStrategy and overrides TableName.
type tenantNamer struct {
	schema.NamingStrategy // Embed the default strategy
	schemaName            string
}

// TableName implements the schema.Namer interface, overriding the default.
func (tn tenantNamer) TableName(table string) string {
	// GORM models return the base table name (e.g., "agents").
	// We prepend the specific schema name for this connection.
	return fmt.Sprintf("%q.%s", tn.schemaName, table) // Qualify with schema
}

// NewPostgresRepo creates a new Postgres repository and initializes the tenant schema
func NewPostgresRepo(dsn string, autoMigrate bool, companyID string) (*PostgresRepo, error) {
	// Retry connecting to the default database
	operationConnectDefault := func() (*gorm.DB, error) {
		db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
		if err != nil {
			if isTransientError(err) {
				logger.Log.Warn("Failed to connect to default postgres (transient), retrying...", zap.Error(err))
				return nil, err // Return transient error to trigger retry
			}
			return nil, backoff.Permanent(fmt.Errorf("failed to connect to default postgres db: %w", err))
		}
		return db, nil
	}

	notify := func(err error, d time.Duration) {
		logger.Log.Warn("Retrying default DB connection", zap.Error(err), zap.Duration("after", d))
	}

	// Configure exponential backoff
	// TODO: Make these configurable
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 1 * time.Second
	b.MaxInterval = 15 * time.Second
	b.MaxElapsedTime = 1 * time.Minute // Stop retrying after 1 minute

	dbDefault, err := backoff.RetryNotifyWithData(operationConnectDefault, b, notify)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to default postgres after retries: %w", err)
	}

	schemaName := fmt.Sprintf("nest_%s", companyID)
	logger.Log.Info("Ensuring PostgreSQL schema exists", zap.String("schema", schemaName))

	// Create schema if it doesn't exist - Use %q to quote the identifier
	if err := dbDefault.Exec(fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %q", schemaName)).Error; err != nil {
		sqlDB, _ := dbDefault.DB()
		if sqlDB != nil {
			sqlDB.Close()
		}
		return nil, fmt.Errorf("failed to create schema %s: %w", schemaName, err)
	}

	// Close the initial connection
	sqlDB, err := dbDefault.DB()
	if err != nil {
		logger.Log.Warn("Failed to get underlying SQL DB handle for closing", zap.Error(err))
	} else {
		if err := sqlDB.Close(); err != nil {
			logger.Log.Warn("Failed to close initial DB connection", zap.Error(err))
		}
	}

	// Reconnect with a tenant-aware namer so every model resolves into the
	// tenant's schema without relying on search_path.
	operationConnectTenant := func() (*gorm.DB, error) {
		namer := tenantNamer{schemaName: schemaName}
		db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
			NamingStrategy: namer,
		})
		if err != nil {
			if isTransientError(err) {
				logger.Log.Warn("Failed to connect to tenant schema (transient), retrying...", zap.String("schema", schemaName), zap.Error(err))
				return nil, err
			}
			return nil, backoff.Permanent(fmt.Errorf("failed to connect to postgres tenant schema %s: %w", schemaName, err))
		}
		return db, nil
	}

	notifyTenant := func(err error, d time.Duration) {
		logger.Log.Warn("Retrying tenant schema DB connection", zap.String("schema", schemaName), zap.Error(err), zap.Duration("after", d))
	}

	bTenant := backoff.NewExponentialBackOff()
	bTenant.InitialInterval = 1 * time.Second
	bTenant.MaxInterval = 15 * time.Second
	bTenant.MaxElapsedTime = 1 * time.Minute

	db, err := backoff.RetryNotifyWithData(operationConnectTenant, bTenant, notifyTenant)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres tenant db %s after retries: %w", schemaName, err)
	}

	repo := &PostgresRepo{db: db}

	if autoMigrate {
		logger.Log.Info("Running auto-migration for schema", zap.String("schema", schemaName))
		err = db.AutoMigrate(
			&model.Agent{},
			&model.OnboardingChecklist{},
			&model.BuildQueueEntry{},
			&model.AuditLog{},
		)
		if err != nil {
			// Log migration errors but don't necessarily fail startup
			logger.Log.Error("Auto-migration failed or produced errors", zap.Error(err), zap.String("schema", schemaName))
		}
	} else {
		logger.Log.Info("Auto-migration disabled")
	}

	// The profiles table is owned by the identity subsystem; this service only
	// reads it. Create a compatible table in dev environments where identity
	// has not provisioned it yet.
	profilesTableDDL := fmt.Sprintf(`
	CREATE TABLE %q.profiles (
		user_id TEXT PRIMARY KEY,
		first_name TEXT,
		last_name TEXT,
		email TEXT,
		phone TEXT,
		bio TEXT,
		avatar_url TEXT,
		created_at TIMESTAMPTZ,
		updated_at TIMESTAMPTZ
	);
	`, schemaName)
	if autoMigrate {
		if err := ensureTableExists(db, schemaName, "profiles", profilesTableDDL); err != nil {
			sqlDBClose, _ := db.DB()
			if sqlDBClose != nil {
				sqlDBClose.Close()
			}
			return nil, err
		}
	}

	// ---> Verify crucial tables after AutoMigrate <---
	checkExistsSQL := `SELECT EXISTS (SELECT FROM information_schema.tables WHERE table_schema = ? AND table_name = ?)`
	for _, tableName := range []string{"agents", "agent_onboarding_checklist", "build_queue", "audit_logs"} {
		var tableExists bool
		if err := db.Raw(checkExistsSQL, schemaName, tableName).Scan(&tableExists).Error; err != nil {
			sqlDBClose, _ := db.DB()
			if sqlDBClose != nil {
				sqlDBClose.Close()
			}
			return nil, fmt.Errorf("failed to check for '%s' table existence after migration in schema %s: %w", tableName, schemaName, err)
		}
		if !tableExists {
			sqlDBClose, _ := db.DB()
			if sqlDBClose != nil {
				sqlDBClose.Close()
			}
			return nil, fmt.Errorf("'%s' table still does not exist after auto-migration in schema %s", tableName, schemaName)
		}
		logger.Log.Debug("Table verified post-migration", zap.String("tableName", tableName), zap.String("schema", schemaName))
	}

	for indexName, indexSQL := range tenantIndexes(schemaName) {
		if err := db.Exec(indexSQL).Error; err != nil {
			// Correctness indexes abort startup; the rest are a performance
			// concern AutoMigrate may fix later.
			if loadBearingIndexes[indexName] {
				sqlDBClose, _ := db.DB()
				if sqlDBClose != nil {
					sqlDBClose.Close()
				}
				return nil, fmt.Errorf("failed to create index %s in schema %s: %w", indexName, schemaName, err)
			}
			logger.Log.Warn("Failed to create index", zap.String("indexName", indexName), zap.Error(err))
		}
	}

	return repo, nil
}

// tenantIndexes returns the per-schema index DDL AutoMigrate cannot express.
// Two of these make concurrent writes safe rather than merely fast: the build
// dedupe index keeps at most one pending row per (agent_id, trigger_reason),
// and the branch index keeps at most one agent per detected branch, so racing
// detections collapse onto a single row. Agents without a branch (empty
// branch_id) are exempt from branch uniqueness.
func tenantIndexes(schemaName string) map[string]string {
	return map[string]string{
		"idx_build_queue_pending_dedupe": fmt.Sprintf("CREATE UNIQUE INDEX IF NOT EXISTS idx_build_queue_pending_dedupe ON %q.build_queue USING btree (agent_id, trigger_reason) WHERE status = 'pending';", schemaName),
		"idx_build_queue_status":         fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_build_queue_status ON %q.build_queue USING btree (status, priority, created_at);", schemaName),
		"idx_audit_logs_record":          fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_audit_logs_record ON %q.audit_logs USING btree (record_id, created_at);", schemaName),
		"idx_agents_status":              fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_agents_status ON %q.agents USING btree (status);", schemaName),
		"idx_agents_branch_id":           fmt.Sprintf("CREATE UNIQUE INDEX IF NOT EXISTS idx_agents_branch_id ON %q.agents USING btree (branch_id) WHERE branch_id <> '';", schemaName),
	}
}

// loadBearingIndexes lists the indexes whose absence breaks correctness, not
// just performance. Failing to create one aborts startup.
var loadBearingIndexes = map[string]bool{
	"idx_build_queue_pending_dedupe": true,
	"idx_agents_branch_id":           true,
}

// Close closes the database connection
func (r *PostgresRepo) Close(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		logger.FromContext(ctx).Warn("Failed to get underlying SQL DB for closing", zap.Error(err))
		return nil
	}

	closeErr := sqlDB.Close()
	if closeErr != nil {
		logger.FromContext(ctx).Error("Failed to close database connection", zap.Error(closeErr))
		return fmt.Errorf("failed to close SQL DB: %w", closeErr)
	}

	logger.FromContext(ctx).Info("Database connection closed successfully")
	return nil
}

// checkConstraintViolation inspects database errors and maps them to standard apperrors.
func checkConstraintViolation(err error) error {
	if err == nil {
		return nil
	}

	// Check for specific GORM errors first
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %w", apperrors.ErrNotFound, err)
	}

	// Check for underlying pgconn errors
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		// Class 23 — Integrity Constraint Violation
		case "23505": // unique_violation
			return fmt.Errorf("%w: constraint %s: %w", apperrors.ErrDuplicate, pgErr.ConstraintName, err)
		case "23503": // foreign_key_violation
			return fmt.Errorf("%w: constraint %s: %w", apperrors.ErrBadRequest, pgErr.ConstraintName, err)
		case "23502": // not_null_violation
			return fmt.Errorf("%w: null value in column %s: %w", apperrors.ErrBadRequest, pgErr.ColumnName, err)
		case "23514": // check_violation
			return fmt.Errorf("%w: constraint %s: %w", apperrors.ErrBadRequest, pgErr.ConstraintName, err)

		// Class 22 — Data Exception
		case "22001": // string_data_right_truncation
			return fmt.Errorf("%w: value too long for column %s: %w", apperrors.ErrBadRequest, pgErr.ColumnName, err)
		case "22P02": // invalid_text_representation
			return fmt.Errorf("%w: invalid input syntax for type %s: %w", apperrors.ErrBadRequest, pgErr.DataTypeName, err)

		// Class 40 — Transaction Rollback
		case "40001": // serialization_failure
			fallthrough // Treat same as deadlock for now
		case "40P01": // deadlock_detected
			// Map to ErrDatabase, handler can decide if retryable
			return fmt.Errorf("%w: transaction rollback (%s): %w", apperrors.ErrDatabase, pgErr.Code, err)

		default:
			// Check error code prefixes for broader categories
			if strings.HasPrefix(pgErr.Code, "53") { // Class 53 — Insufficient Resources
				return fmt.Errorf("%w: insufficient resources (%s): %w", apperrors.ErrDatabase, pgErr.Code, err)
			}
			if strings.HasPrefix(pgErr.Code, "08") { // Class 08 — Connection Exception
				return fmt.Errorf("%w: connection error (%s): %w", apperrors.ErrDatabase, pgErr.Code, err)
			}
			// Wrap unhandled specific PgErrors as general database errors
			return fmt.Errorf("%w: unhandled pgcode %s: %w", apperrors.ErrDatabase, pgErr.Code, err)
		}
	}

	// Assume other GORM or generic errors are general database errors for now
	return fmt.Errorf("%w: %w", apperrors.ErrDatabase, err)
}
