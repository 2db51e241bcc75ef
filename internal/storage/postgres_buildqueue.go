package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "gitlab.com/nestestates/api/agent-lifecycle-service/internal/apperrors"
	"gitlab.com/nestestates/api/agent-lifecycle-service/internal/model"
	"gitlab.com/nestestates/api/agent-lifecycle-service/internal/observer"
	"gitlab.com/nestestates/api/agent-lifecycle-service/internal/tenant"
	"gitlab.com/nestestates/api/agent-lifecycle-service/pkg/logger"
	"gitlab.com/nestestates/api/agent-lifecycle-service/pkg/utils"
)

// --- Build Queue Repository Methods ---

// EnqueueBuild inserts a build-queue entry, relying on the partial unique
// index over (agent_id, trigger_reason) WHERE status='pending' to suppress
// duplicates. On suppression the surviving pending entry's id is returned and
// created is false; the existing entry keeps its original priority.
func (r *PostgresRepo) EnqueueBuild(ctx context.Context, entry model.BuildQueueEntry) (string, bool, error) {
	companyID, err := tenant.FromContext(ctx)
	if err != nil {
		return "", false, fmt.Errorf("%w: failed to get tenant ID from context: %w", apperrors.ErrUnauthorized, err)
	}
	if companyID != entry.CompanyID {
		return "", false, fmt.Errorf("%w: entry CompanyID %s does not match tenant ID %s", apperrors.ErrBadRequest, entry.CompanyID, companyID)
	}
	loggerCtx := logger.FromContext(ctx)

	buildID := entry.ID
	created := false

	operation := func() error {
		tx := r.db.WithContext(ctx).Begin()
		if tx.Error != nil {
			return fmt.Errorf("%w: failed to begin transaction: %w", apperrors.ErrDatabase, tx.Error)
		}
		var txErr error
		defer func() {
			if p := recover(); p != nil {
				tx.Rollback()
				panic(p)
			} else if txErr != nil {
				if rbErr := tx.Rollback().Error; rbErr != nil {
					loggerCtx.Error("Failed to rollback transaction after error", zap.Error(rbErr), zap.NamedError("originalTxError", txErr))
				}
			}
		}()

		result := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "agent_id"}, {Name: "trigger_reason"}},
			TargetWhere: clause.Where{Exprs: []clause.Expression{
				clause.Expr{SQL: "status = ?", Vars: []interface{}{model.BuildStatusPending}},
			}},
			DoNothing: true,
		}).Create(&entry)
		if result.Error != nil {
			txErr = checkConstraintViolation(result.Error)
			return txErr
		}

		if result.RowsAffected == 0 {
			// Duplicate suppressed. Fetch the pending entry that won.
			var existing model.BuildQueueEntry
			findResult := tx.Where("agent_id = ? AND trigger_reason = ? AND status = ? AND company_id = ?",
				entry.AgentID, entry.TriggerReason, model.BuildStatusPending, companyID).
				First(&existing)
			if findResult.Error != nil {
				if errors.Is(findResult.Error, gorm.ErrRecordNotFound) {
					// The pending entry resolved between our insert and read.
					// Treat as a conflict so the caller can retry the enqueue.
					txErr = fmt.Errorf("%w: pending build for agent %s reason %s vanished during enqueue",
						apperrors.ErrConflict, entry.AgentID, entry.TriggerReason)
					return txErr
				}
				txErr = fmt.Errorf("%w: failed to read surviving pending build: %w", apperrors.ErrDatabase, findResult.Error)
				return txErr
			}
			buildID = existing.ID
			created = false
		} else {
			buildID = entry.ID
			created = true
		}

		if commitErr := tx.Commit().Error; commitErr != nil {
			txErr = fmt.Errorf("%w: failed to commit enqueue transaction: %w", apperrors.ErrDatabase, commitErr)
			return txErr
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "EnqueueBuild Commit", operation)
	observer.ObserveDbOperationDuration("enqueue", "build_queue", companyID, time.Since(startTime), commitErr)
	if commitErr != nil {
		loggerCtx.Error("Failed to enqueue build after retries",
			zap.String("agent_id", entry.AgentID),
			zap.String("trigger_reason", entry.TriggerReason),
			zap.Error(commitErr))
		return "", false, commitErr
	}
	return buildID, created, nil
}

// CancelPendingBuilds marks every pending entry for an agent as cancelled and
// returns how many were cancelled. Entries already picked up by the executor
// are left alone.
func (r *PostgresRepo) CancelPendingBuilds(ctx context.Context, agentID string) (int64, error) {
	companyID, err := tenant.FromContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to get tenant ID from context: %w", apperrors.ErrUnauthorized, err)
	}
	loggerCtx := logger.FromContext(ctx)

	var cancelled int64
	operation := func() error {
		result := r.db.WithContext(ctx).Model(&model.BuildQueueEntry{}).
			Where("agent_id = ? AND company_id = ? AND status = ?", agentID, companyID, model.BuildStatusPending).
			Updates(map[string]interface{}{
				"status":       model.BuildStatusCancelled,
				"completed_at": utils.Now(),
			})
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		cancelled = result.RowsAffected
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "CancelPendingBuilds", operation)
	observer.ObserveDbOperationDuration("cancel", "build_queue", companyID, time.Since(startTime), commitErr)
	if commitErr != nil {
		loggerCtx.Error("Failed to cancel pending builds after retries",
			zap.String("agent_id", agentID),
			zap.Error(commitErr))
		return 0, commitErr
	}
	if cancelled > 0 {
		loggerCtx.Info("Cancelled pending builds",
			zap.String("agent_id", agentID),
			zap.Int64("cancelled", cancelled))
	}
	return cancelled, nil
}

// FindBuildByID fetches a single build-queue entry.
func (r *PostgresRepo) FindBuildByID(ctx context.Context, buildID string) (*model.BuildQueueEntry, error) {
	companyID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get tenant ID from context: %w", apperrors.ErrUnauthorized, err)
	}
	loggerCtx := logger.FromContext(ctx)

	var entry model.BuildQueueEntry
	operation := func() error {
		result := r.db.WithContext(ctx).Where("id = ? AND company_id = ?", buildID, companyID).First(&entry)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	findErr := retryableOperation(ctx, readPolicy, "FindBuildByID", operation)

	if findErr != nil {
		if errors.Is(findErr, apperrors.ErrNotFound) {
			return nil, apperrors.ErrNotFound
		}
		loggerCtx.Error("Failed to find build by ID after retries",
			zap.String("build_id", buildID),
			zap.String("company_id", companyID),
			zap.Error(findErr))
		return nil, findErr
	}
	return &entry, nil
}

// FindPendingBuilds lists pending entries in executor order: priority first,
// oldest first within a priority.
func (r *PostgresRepo) FindPendingBuilds(ctx context.Context, limit int) ([]model.BuildQueueEntry, error) {
	companyID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get tenant ID from context: %w", apperrors.ErrUnauthorized, err)
	}
	loggerCtx := logger.FromContext(ctx)

	var entries []model.BuildQueueEntry
	operation := func() error {
		query := r.db.WithContext(ctx).
			Where("company_id = ? AND status = ?", companyID, model.BuildStatusPending).
			Order("priority ASC, created_at ASC")
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
	findErr := retryableOperation(ctx, readPolicy, "FindPendingBuilds", operation)

	if findErr != nil {
		loggerCtx.Error("Failed to find pending builds after retries",
			zap.String("company_id", companyID),
			zap.Error(findErr))
		return nil, findErr
	}
	return entries, nil
}

// GetQueueStats summarises queue health for the admin dashboard. "Today" is
// the current UTC day.
func (r *PostgresRepo) GetQueueStats(ctx context.Context) (*model.QueueStats, error) {
	companyID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get tenant ID from context: %w", apperrors.ErrUnauthorized, err)
	}
	loggerCtx := logger.FromContext(ctx)

	now := utils.Now()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	stats := &model.QueueStats{}
	operation := func() error {
		counts := []struct {
			dest  *int64
			query *gorm.DB
		}{
			{&stats.Pending, r.db.WithContext(ctx).Model(&model.BuildQueueEntry{}).
				Where("company_id = ? AND status = ?", companyID, model.BuildStatusPending)},
			{&stats.Building, r.db.WithContext(ctx).Model(&model.BuildQueueEntry{}).
				Where("company_id = ? AND status = ?", companyID, model.BuildStatusBuilding)},
			{&stats.CompletedToday, r.db.WithContext(ctx).Model(&model.BuildQueueEntry{}).
				Where("company_id = ? AND status = ? AND completed_at >= ?", companyID, model.BuildStatusCompleted, startOfDay)},
			{&stats.FailedToday, r.db.WithContext(ctx).Model(&model.BuildQueueEntry{}).
				Where("company_id = ? AND status = ? AND completed_at >= ?", companyID, model.BuildStatusFailed, startOfDay)},
		}
		for _, c := range counts {
			if err := c.query.Count(c.dest).Error; err != nil {
				return fmt.Errorf("%w: count failed: %w", apperrors.ErrDatabase, err)
			}
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	findErr := retryableOperation(ctx, readPolicy, "GetQueueStats", operation)
	observer.ObserveDbOperationDuration("stats", "build_queue", companyID, time.Since(startTime), findErr)

	if findErr != nil {
		loggerCtx.Error("Failed to get queue stats after retries",
			zap.String("company_id", companyID),
			zap.Error(findErr))
		return nil, findErr
	}
	return stats, nil
}
