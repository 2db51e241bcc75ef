package storage

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	apperrors "gitlab.com/nestestates/api/agent-lifecycle-service/internal/apperrors"
	"gitlab.com/nestestates/api/agent-lifecycle-service/internal/model"
	"gitlab.com/nestestates/api/agent-lifecycle-service/internal/observer"
	"gitlab.com/nestestates/api/agent-lifecycle-service/internal/tenant"
	"gitlab.com/nestestates/api/agent-lifecycle-service/pkg/logger"
	"gitlab.com/nestestates/api/agent-lifecycle-service/pkg/utils"
)

// --- Audit Log Repository Methods (append-only) ---

// SaveAuditLog appends an audit entry. Entries are never updated or deleted.
func (r *PostgresRepo) SaveAuditLog(ctx context.Context, entry model.AuditLog) error {
	if _, err := tenant.FromContext(ctx); err != nil {
		return fmt.Errorf("%w: failed to get tenant ID from context: %w", apperrors.ErrUnauthorized, err)
	}
	loggerCtx := logger.FromContext(ctx)

	operation := func() error {
		if err := r.db.WithContext(ctx).Create(&entry).Error; err != nil {
			return checkConstraintViolation(err)
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "SaveAuditLog", operation)
	observer.ObserveDbOperationDuration("save", "audit_log", "", time.Since(startTime), commitErr)
	if commitErr != nil {
		loggerCtx.Error("Failed to save audit log after retries",
			zap.String("record_id", entry.RecordID),
			zap.String("action", entry.Action),
			zap.Error(commitErr))
		return commitErr
	}
	return nil
}

// FindAuditLogsByRecord lists audit entries for a record, newest first. Ties
// on created_at fall back to insertion order so concurrent writes still read
// back deterministically.
func (r *PostgresRepo) FindAuditLogsByRecord(ctx context.Context, recordID string, limit int) ([]model.AuditLog, error) {
	if _, err := tenant.FromContext(ctx); err != nil {
		return nil, fmt.Errorf("%w: failed to get tenant ID from context: %w", apperrors.ErrUnauthorized, err)
	}
	loggerCtx := logger.FromContext(ctx)

	var entries []model.AuditLog
	operation := func() error {
		query := r.db.WithContext(ctx).
			Where("record_id = ?", recordID).
			Order("created_at DESC, id DESC")
		if limit > 0 {
			query = query.Limit(limit)
		}
		result := query.Find(&entries)
		if result.Error != nil {
			return fmt.Errorf("%w: query failed: %w", apperrors.ErrDatabase, result.Error)
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	findErr := retryableOperation(ctx, readPolicy, "FindAuditLogsByRecord", operation)
	observer.ObserveDbOperationDuration("find", "audit_log", "", time.Since(startTime), findErr)

	if findErr != nil {
		loggerCtx.Error("Failed to find audit logs after retries",
			zap.String("record_id", recordID),
			zap.Error(findErr))
		return nil, findErr
	}
	return entries, nil
}
