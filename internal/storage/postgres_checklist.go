package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm/clause"

	apperrors "gitlab.com/nestestates/api/agent-lifecycle-service/internal/apperrors"
	"gitlab.com/nestestates/api/agent-lifecycle-service/internal/model"
	"gitlab.com/nestestates/api/agent-lifecycle-service/internal/observer"
	"gitlab.com/nestestates/api/agent-lifecycle-service/internal/tenant"
	"gitlab.com/nestestates/api/agent-lifecycle-service/pkg/logger"
	"gitlab.com/nestestates/api/agent-lifecycle-service/pkg/utils"
)

// --- Onboarding Checklist Repository Methods ---

// CreateChecklist inserts the checklist row for a freshly detected agent.
// A concurrent insert for the same agent is harmless: the conflict is ignored.
func (r *PostgresRepo) CreateChecklist(ctx context.Context, checklist model.OnboardingChecklist) error {
	companyID, err := tenant.FromContext(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to get tenant ID from context: %w", apperrors.ErrUnauthorized, err)
	}
	if companyID != checklist.CompanyID {
		return fmt.Errorf("%w: checklist CompanyID %s does not match tenant ID %s", apperrors.ErrBadRequest, checklist.CompanyID, companyID)
	}
	loggerCtx := logger.FromContext(ctx)

	operation := func() error {
		result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "agent_id"}},
			DoNothing: true,
		}).Create(&checklist)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		if result.RowsAffected == 0 {
			loggerCtx.Debug("Checklist already exists, insert skipped", zap.String("agent_id", checklist.AgentID))
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "CreateChecklist", operation)
	observer.ObserveDbOperationDuration("create", "checklist", companyID, time.Since(startTime), commitErr)
	if commitErr != nil {
		loggerCtx.Error("Failed to create checklist after retries", zap.String("agent_id", checklist.AgentID), zap.Error(commitErr))
		return commitErr
	}
	return nil
}

// UpdateChecklist applies a partial update to an agent's checklist row.
// Callers pass only the columns they mean to change; updated_at is always set.
func (r *PostgresRepo) UpdateChecklist(ctx context.Context, agentID string, updates map[string]interface{}) error {
	companyID, err := tenant.FromContext(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to get tenant ID from context: %w", apperrors.ErrUnauthorized, err)
	}
	loggerCtx := logger.FromContext(ctx)

	if len(updates) == 0 {
		return nil
	}
	updates["updated_at"] = utils.Now()

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

		updateResult := tx.Model(&model.OnboardingChecklist{}).
			Where("agent_id = ? AND company_id = ?", agentID, companyID).
			Updates(updates)
		if updateResult.Error != nil {
			txErr = checkConstraintViolation(updateResult.Error)
			return txErr
		}
		if updateResult.RowsAffected == 0 {
			txErr = fmt.Errorf("%w: checklist for agent_id %s not found", apperrors.ErrNotFound, agentID)
			return txErr
		}
		if commitErr := tx.Commit().Error; commitErr != nil {
			txErr = fmt.Errorf("%w: failed to commit checklist update transaction: %w", apperrors.ErrDatabase, commitErr)
			return txErr
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "UpdateChecklist Commit", operation)
	observer.ObserveDbOperationDuration("update", "checklist", companyID, time.Since(startTime), commitErr)
	if commitErr != nil {
		if errors.Is(commitErr, apperrors.ErrNotFound) {
			return commitErr
		}
		loggerCtx.Error("Failed to update checklist after retries", zap.String("agent_id", agentID), zap.Error(commitErr))
		return commitErr
	}
	return nil
}

// FindChecklistByAgentID fetches the checklist row for an agent.
func (r *PostgresRepo) FindChecklistByAgentID(ctx context.Context, agentID string) (*model.OnboardingChecklist, error) {
	companyID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get tenant ID from context: %w", apperrors.ErrUnauthorized, err)
	}
	loggerCtx := logger.FromContext(ctx)

	var checklist model.OnboardingChecklist
	operation := func() error {
		result := r.db.WithContext(ctx).Where("agent_id = ? AND company_id = ?", agentID, companyID).First(&checklist)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	findErr := retryableOperation(ctx, readPolicy, "FindChecklistByAgentID", operation)
	observer.ObserveDbOperationDuration("find", "checklist", companyID, time.Since(startTime), findErr)

	if findErr != nil {
		if errors.Is(findErr, apperrors.ErrNotFound) {
			return nil, apperrors.ErrNotFound
		}
		loggerCtx.Error("Failed to find checklist by agent ID after retries",
			zap.String("agent_id", agentID),
			zap.String("company_id", companyID),
			zap.Error(findErr))
		return nil, findErr
	}
	return &checklist, nil
}
