package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
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

// --- Agent Repository Methods ---

// SaveAgent saves or updates an agent record. It uses agent_id as the unique
// identifier for upsert logic. Status and subdomain are set only on insert;
// lifecycle services own status changes afterwards.
func (r *PostgresRepo) SaveAgent(ctx context.Context, agent model.Agent) error {
	companyID, err := tenant.FromContext(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to get tenant ID from context: %w", apperrors.ErrUnauthorized, err)
	}

	// throw error if companyID not same as agent.CompanyID
	if companyID != agent.CompanyID {
		return fmt.Errorf("%w: agent CompanyID %s does not match tenant ID %s", apperrors.ErrBadRequest, agent.CompanyID, companyID)
	}

	operation := func() error {
		logger.FromContext(ctx).Info("Begin DB Ops", zap.String("agent_id", agent.AgentID), zap.String("subdomain", agent.Subdomain))

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
					logger.FromContext(ctx).Error("Failed to rollback transaction after error", zap.Error(rbErr), zap.NamedError("originalTxError", txErr))
				}
			}
		}()

		var existingAgent model.Agent
		// Use agent_id and company_id to find existing record
		result := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("agent_id = ? AND company_id = ?", agent.AgentID, agent.CompanyID).
			First(&existingAgent)
		findErr := result.Error

		if findErr != nil {
			if errors.Is(findErr, gorm.ErrRecordNotFound) {
				// New record, insert
				logger.FromContext(ctx).Info("No Existing, Insert Record", zap.String("agent_id", agent.AgentID), zap.String("subdomain", agent.Subdomain))
				if createErr := tx.Create(&agent).Error; createErr != nil {
					logger.FromContext(ctx).Error("Create Insert Record Error", zap.String("agent_id", agent.AgentID), zap.Error(createErr))
					txErr = checkConstraintViolation(createErr)
					return txErr
				}
			} else {
				// Failure during SELECT FOR UPDATE
				txErr = fmt.Errorf("%w: failed to lock agent row: %w", apperrors.ErrDatabase, findErr)
				return txErr
			}
		} else {
			// Update mutable columns only, using the found ID. Status and
			// subdomain never change through this path.
			agent.ID = existingAgent.ID
			agent.CreatedAt = existingAgent.CreatedAt
			agent.Status = existingAgent.Status
			agent.Subdomain = existingAgent.Subdomain
			agent.UpdatedAt = utils.Now()

			logger.FromContext(ctx).Info("Found Existing, Update Record", zap.String("agent_id", agent.AgentID))
			if updateErr := tx.Model(&existingAgent).Select(model.AgentUpdateColumns()).Updates(agent).Error; updateErr != nil {
				txErr = checkConstraintViolation(updateErr)
				return txErr
			}
		}
		if commitErr := tx.Commit().Error; commitErr != nil {
			txErr = fmt.Errorf("%w: failed to commit save transaction: %w", apperrors.ErrDatabase, commitErr)
			return txErr
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "SaveAgent Commit", operation)
	observer.ObserveDbOperationDuration("save", "agent", companyID, time.Since(startTime), commitErr)
	if commitErr != nil {
		logger.FromContext(ctx).Error("Failed to save agent after retries", zap.String("agent_id", agent.AgentID), zap.Error(commitErr))
		return commitErr // Already wrapped by operation or checkConstraintViolation
	}
	logger.FromContext(ctx).Info("Done DB Ops", zap.String("agent_id", agent.AgentID))
	return nil
}

// UpdateAgent updates mutable fields of an existing agent record based on AgentID.
func (r *PostgresRepo) UpdateAgent(ctx context.Context, agent model.Agent) error {
	companyID, err := tenant.FromContext(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to get tenant ID from context: %w", apperrors.ErrUnauthorized, err)
	}
	// throw error if companyID not same as agent.CompanyID
	if companyID != agent.CompanyID {
		return fmt.Errorf("%w: agent CompanyID %s does not match tenant ID %s", apperrors.ErrBadRequest, agent.CompanyID, companyID)
	}

	agent.UpdatedAt = utils.Now() // Ensure UpdatedAt is set

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
					logger.FromContext(ctx).Error("Failed to rollback transaction after error", zap.Error(rbErr), zap.NamedError("originalTxError", txErr))
				}
			}
		}()

		// Find existing record by agent_id to get the internal primary key (ID)
		var existingAgent model.Agent
		result := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("agent_id = ? AND company_id = ?", agent.AgentID, agent.CompanyID).
			First(&existingAgent)
		findErr := result.Error

		if findErr != nil {
			if errors.Is(findErr, gorm.ErrRecordNotFound) {
				txErr = fmt.Errorf("%w: agent not found for update (AgentID: %s, CompanyID: %s): %w", apperrors.ErrNotFound, agent.AgentID, companyID, findErr)
				return backoff.Permanent(txErr) // Make NotFound permanent for retry policy
			}
			txErr = fmt.Errorf("%w: failed to lock agent row for update: %w", apperrors.ErrDatabase, findErr)
			return txErr
		}

		// Ensure we are updating the correct record using the internal ID
		agent.ID = existingAgent.ID
		agent.CreatedAt = existingAgent.CreatedAt
		updateResult := tx.Model(&existingAgent).Select(model.AgentUpdateColumns()).Updates(agent)
		if updateResult.Error != nil {
			txErr = checkConstraintViolation(updateResult.Error)
			return txErr
		}
		if updateResult.RowsAffected == 0 {
			logger.FromContext(ctx).Warn("UpdateAgent resulted in 0 rows affected", zap.String("agent_id", agent.AgentID))
		}
		if commitErr := tx.Commit().Error; commitErr != nil {
			txErr = fmt.Errorf("%w: failed to commit update transaction: %w", apperrors.ErrDatabase, commitErr)
			return txErr
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "UpdateAgent Commit", operation)
	observer.ObserveDbOperationDuration("update", "agent", companyID, time.Since(startTime), commitErr)
	if commitErr != nil {
		logger.FromContext(ctx).Error("Failed to update agent after retries", zap.String("agent_id", agent.AgentID), zap.Error(commitErr))
		return commitErr // Already wrapped
	}
	return nil
}

// UpdateAgentStatusCAS moves an agent from one expected status to another in a
// single guarded UPDATE. When the guard misses it re-reads the row so callers
// can tell a missing agent (ErrNotFound) from a lost race (ErrConflict).
func (r *PostgresRepo) UpdateAgentStatusCAS(ctx context.Context, agentID string, from, to model.AgentStatus) error {
	companyID, err := tenant.FromContext(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to get tenant ID from context: %w", apperrors.ErrUnauthorized, err)
	}
	loggerCtx := logger.FromContext(ctx)

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

		updateResult := tx.Model(&model.Agent{}).
			Where("agent_id = ? AND company_id = ? AND status = ?", agentID, companyID, from).
			Updates(map[string]interface{}{"status": to, "updated_at": utils.Now()})

		if updateResult.Error != nil {
			txErr = checkConstraintViolation(updateResult.Error)
			return txErr
		}
		if updateResult.RowsAffected == 0 {
			// The guard missed. Distinguish a missing agent from a racing
			// status change by re-reading the row.
			var current model.Agent
			findResult := tx.Where("agent_id = ? AND company_id = ?", agentID, companyID).First(&current)
			if findResult.Error != nil {
				if errors.Is(findResult.Error, gorm.ErrRecordNotFound) {
					txErr = fmt.Errorf("%w: agent_id %s not found for status update", apperrors.ErrNotFound, agentID)
					return backoff.Permanent(txErr)
				}
				txErr = fmt.Errorf("%w: failed to re-read agent after guarded update miss: %w", apperrors.ErrDatabase, findResult.Error)
				return txErr
			}
			txErr = fmt.Errorf("%w: agent_id %s status is %s, expected %s", apperrors.ErrConflict, agentID, current.Status, from)
			return backoff.Permanent(txErr)
		}
		if commitErr := tx.Commit().Error; commitErr != nil {
			txErr = fmt.Errorf("%w: failed to commit agent status update transaction: %w", apperrors.ErrDatabase, commitErr)
			return txErr
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "UpdateAgentStatusCAS Commit", operation)
	observer.ObserveDbOperationDuration("update_status", "agent", companyID, time.Since(startTime), commitErr)
	if commitErr != nil {
		loggerCtx.Error("Failed to update agent status after retries",
			zap.String("agent_id", agentID),
			zap.String("from", from.String()),
			zap.String("to", to.String()),
			zap.Error(commitErr))
		return commitErr // Already wrapped
	}
	return nil
}

// FindAgentByAgentID finds an agent by the AgentID (external identifier).
func (r *PostgresRepo) FindAgentByAgentID(ctx context.Context, agentID string) (*model.Agent, error) {
	companyID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get tenant ID from context: %w", apperrors.ErrUnauthorized, err)
	}
	loggerCtx := logger.FromContext(ctx)

	var agent model.Agent
	operation := func() error {
		result := r.db.WithContext(ctx).Where("agent_id = ? AND company_id = ?", agentID, companyID).First(&agent)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	findErr := retryableOperation(ctx, readPolicy, "FindAgentByAgentID", operation)

	if findErr != nil {
		if errors.Is(findErr, apperrors.ErrNotFound) {
			return nil, apperrors.ErrNotFound
		}
		loggerCtx.Error("Failed to find agent by AgentID after retries",
			zap.String("agent_id", agentID),
			zap.String("company_id", companyID),
			zap.Error(findErr))
		return nil, findErr
	}
	return &agent, nil
}

// FindAgentBySubdomain finds an agent by its site subdomain.
func (r *PostgresRepo) FindAgentBySubdomain(ctx context.Context, subdomain string) (*model.Agent, error) {
	companyID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get tenant ID from context: %w", apperrors.ErrUnauthorized, err)
	}
	loggerCtx := logger.FromContext(ctx)

	var agent model.Agent
	operation := func() error {
		result := r.db.WithContext(ctx).Where("subdomain = ? AND company_id = ?", subdomain, companyID).First(&agent)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	findErr := retryableOperation(ctx, readPolicy, "FindAgentBySubdomain", operation)

	if findErr != nil {
		if errors.Is(findErr, apperrors.ErrNotFound) {
			return nil, apperrors.ErrNotFound
		}
		loggerCtx.Error("Failed to find agent by subdomain after retries",
			zap.String("subdomain", subdomain),
			zap.String("company_id", companyID),
			zap.Error(findErr))
		return nil, findErr
	}
	return &agent, nil
}

// FindAgentByBranchID finds an agent by the branch it was detected from.
// Detection uses this as its idempotency check.
func (r *PostgresRepo) FindAgentByBranchID(ctx context.Context, branchID string) (*model.Agent, error) {
	companyID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get tenant ID from context: %w", apperrors.ErrUnauthorized, err)
	}
	loggerCtx := logger.FromContext(ctx)

	var agent model.Agent
	operation := func() error {
		result := r.db.WithContext(ctx).Where("branch_id = ? AND company_id = ?", branchID, companyID).First(&agent)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	findErr := retryableOperation(ctx, readPolicy, "FindAgentByBranchID", operation)

	if findErr != nil {
		if errors.Is(findErr, apperrors.ErrNotFound) {
			return nil, apperrors.ErrNotFound
		}
		loggerCtx.Error("Failed to find agent by branch ID after retries",
			zap.String("branch_id", branchID),
			zap.String("company_id", companyID),
			zap.Error(findErr))
		return nil, findErr
	}
	return &agent, nil
}

// FindAgentsByStatus finds all agents matching a specific lifecycle status.
func (r *PostgresRepo) FindAgentsByStatus(ctx context.Context, status model.AgentStatus) ([]model.Agent, error) {
	companyID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get tenant ID from context: %w", apperrors.ErrUnauthorized, err)
	}
	loggerCtx := logger.FromContext(ctx)

	var agents []model.Agent
	operation := func() error {
		result := r.db.WithContext(ctx).Where("status = ? AND company_id = ?", status, companyID).Find(&agents)
		if result.Error != nil {
			// Find multiple doesn't return ErrRecordNotFound, so wrap as a generic DB error
			return fmt.Errorf("%w: query failed: %w", apperrors.ErrDatabase, result.Error)
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	findErr := retryableOperation(ctx, readPolicy, "FindAgentsByStatus", operation)

	if findErr != nil {
		loggerCtx.Error("Failed to find agents by status after retries",
			zap.String("status", status.String()),
			zap.String("company_id", companyID),
			zap.Error(findErr))
		return nil, findErr
	}
	return agents, nil
}
