package usecase

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "gitlab.com/nestestates/api/agent-lifecycle-service/internal/apperrors"
	"gitlab.com/nestestates/api/agent-lifecycle-service/internal/model"
	"gitlab.com/nestestates/api/agent-lifecycle-service/internal/observer"
	"gitlab.com/nestestates/api/agent-lifecycle-service/internal/tenant"
	"gitlab.com/nestestates/api/agent-lifecycle-service/pkg/logger"
	"gitlab.com/nestestates/api/agent-lifecycle-service/pkg/utils"
)

// EnqueueBuild schedules a site rebuild for an agent. At most one entry per
// (agent, trigger reason) may be pending at a time; a duplicate request is a
// no-op that returns the surviving entry's id without touching its priority.
func (s *LifecycleService) EnqueueBuild(ctx context.Context, agentID string, priority model.BuildPriority, triggerReason string) (*model.EnqueueResult, error) {
	log := logger.FromContext(ctx)

	if agentID == "" {
		return nil, fmt.Errorf("%w: agent_id is required", apperrors.ErrBadRequest)
	}
	if !priority.Valid() {
		return nil, fmt.Errorf("%w: priority %d is outside 1..4", apperrors.ErrBadRequest, priority)
	}
	if !model.ValidTriggerReason(triggerReason) {
		return nil, fmt.Errorf("%w: unknown trigger reason %q", apperrors.ErrBadRequest, triggerReason)
	}

	companyID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrUnauthorized, err.Error())
	}

	entry := model.BuildQueueEntry{
		ID:            uuid.NewString(),
		AgentID:       agentID,
		CompanyID:     companyID,
		Priority:      priority,
		TriggerReason: triggerReason,
		Status:        model.BuildStatusPending,
		CreatedAt:     utils.Now(),
	}

	buildID, created, err := s.buildRepo.Enqueue(ctx, entry)
	if err != nil {
		log.Error("Failed to enqueue build",
			zap.String("agent_id", agentID),
			zap.String("trigger_reason", triggerReason),
			zap.Error(err),
		)
		return nil, err
	}

	if created {
		observer.IncBuildEnqueued(companyID, triggerReason, priority.Label())
		log.Info("Build enqueued",
			zap.String("agent_id", agentID),
			zap.String("build_id", buildID),
			zap.String("trigger_reason", triggerReason),
			zap.String("priority", priority.Label()),
		)
	} else {
		observer.IncBuildDuplicateSuppressed(companyID, triggerReason)
		log.Debug("Duplicate build suppressed, reusing pending entry",
			zap.String("agent_id", agentID),
			zap.String("build_id", buildID),
			zap.String("trigger_reason", triggerReason),
		)
	}

	return &model.EnqueueResult{BuildID: buildID, Created: created}, nil
}

// CancelPendingBuilds moves every pending entry for the agent to cancelled and
// returns how many were affected.
func (s *LifecycleService) CancelPendingBuilds(ctx context.Context, agentID string) (int64, error) {
	log := logger.FromContext(ctx)

	if agentID == "" {
		return 0, fmt.Errorf("%w: agent_id is required", apperrors.ErrBadRequest)
	}

	companyID, err := tenant.FromContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", apperrors.ErrUnauthorized, err.Error())
	}

	cancelled, err := s.buildRepo.CancelPending(ctx, agentID)
	if err != nil {
		log.Error("Failed to cancel pending builds", zap.String("agent_id", agentID), zap.Error(err))
		return 0, err
	}

	if cancelled > 0 {
		observer.AddBuildsCancelled(companyID, cancelled)
		log.Info("Cancelled pending builds",
			zap.String("agent_id", agentID),
			zap.Int64("cancelled", cancelled),
		)
	}
	return cancelled, nil
}

// GetBuild fetches a single build entry by id.
func (s *LifecycleService) GetBuild(ctx context.Context, buildID string) (*model.BuildQueueEntry, error) {
	if buildID == "" {
		return nil, fmt.Errorf("%w: build_id is required", apperrors.ErrBadRequest)
	}
	return s.buildRepo.FindByID(ctx, buildID)
}

// PendingBuilds lists pending entries in executor order (most urgent priority
// first, then oldest first). A limit of 0 returns everything.
func (s *LifecycleService) PendingBuilds(ctx context.Context, limit int) ([]model.BuildQueueEntry, error) {
	return s.buildRepo.FindPending(ctx, limit)
}

// QueueStats summarises queue health for the admin dashboard and refreshes
// the pending-depth gauge.
func (s *LifecycleService) QueueStats(ctx context.Context) (*model.QueueStats, error) {
	companyID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrUnauthorized, err.Error())
	}

	stats, err := s.buildRepo.Stats(ctx)
	if err != nil {
		return nil, err
	}

	observer.SetBuildQueuePendingDepth(companyID, stats.Pending)
	return stats, nil
}
