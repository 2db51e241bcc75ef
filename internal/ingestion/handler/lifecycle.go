package handler

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gitlab.com/nestestates/api/agent-lifecycle-service/internal/apperrors"
	"gitlab.com/nestestates/api/agent-lifecycle-service/internal/model"
	"gitlab.com/nestestates/api/agent-lifecycle-service/internal/tenant"
	"gitlab.com/nestestates/api/agent-lifecycle-service/pkg/logger"
	"go.uber.org/zap"
)

// LifecycleService defines the operations the handler drives.
type LifecycleService interface {
	UpdateChecklistProgress(ctx context.Context, agentID string) (*model.ChecklistUpdateResult, error)
	EnsureAgent(ctx context.Context, payload model.AgentDetectedPayload) (*model.Agent, bool, error)
	Activate(ctx context.Context, agentID, actorID, reason string) (*model.CommandResult, error)
	Deactivate(ctx context.Context, agentID, actorID, reason string) (*model.CommandResult, error)
	Suspend(ctx context.Context, agentID, actorID, reason string) (*model.CommandResult, error)
	Reactivate(ctx context.Context, agentID, actorID, reason string, queueBuild bool) (*model.CommandResult, error)
	EnqueueBuild(ctx context.Context, agentID string, priority model.BuildPriority, triggerReason string) (*model.EnqueueResult, error)
}

// LifecycleHandler processes lifecycle commands and events
type LifecycleHandler struct {
	service LifecycleService
}

// NewLifecycleHandler creates a new lifecycle event handler
func NewLifecycleHandler(service LifecycleService) *LifecycleHandler {
	return &LifecycleHandler{
		service: service,
	}
}

// HandleEvent processes lifecycle events
func (h *LifecycleHandler) HandleEvent(ctx context.Context, eventType model.EventType, metadata *model.MessageMetadata, rawEvent []byte) error {
	// Generate request ID
	requestID := uuid.NewString()
	ctx = tenant.WithRequestID(ctx, requestID)

	log := logger.FromContext(ctx)
	log.Info("Processing lifecycle event", zap.String("type", string(eventType)))

	var err error
	switch eventType {
	case model.V1ProfilesUpdated:
		err = h.handleProfileUpdated(ctx, rawEvent)
	case model.V1AgentsDetected:
		err = h.handleAgentDetected(ctx, metadata, rawEvent)
	case model.V1AgentsActivate, model.V1AgentsDeactivate, model.V1AgentsSuspend, model.V1AgentsReactivate:
		err = h.handleLifecycleCommand(ctx, eventType, metadata, rawEvent)
	case model.V1AgentsRebuild:
		err = h.handleRebuild(ctx, metadata, rawEvent)
	default:
		unsupportedErr := fmt.Errorf("unsupported lifecycle event type: %s", eventType)
		log.Error("Unsupported lifecycle event type", zap.String("eventType", string(eventType)))
		err = apperrors.NewFatal(unsupportedErr, "unsupported lifecycle event type")
	}
	return err
}

// handleProfileUpdated recomputes the onboarding checklist for the agent.
func (h *LifecycleHandler) handleProfileUpdated(ctx context.Context, rawEvent []byte) error {
	log := logger.FromContext(ctx)

	var payload model.ProfileUpdatedPayload
	if err := json.Unmarshal(rawEvent, &payload); err != nil {
		log.Error("Failed to unmarshal profile updated payload", zap.Error(err))
		return apperrors.NewFatal(err, "failed to unmarshal profile updated payload")
	}

	log.Info("Processing profile update", zap.String("agent_id", payload.AgentID))
	result, err := h.service.UpdateChecklistProgress(ctx, payload.AgentID)
	if err != nil {
		return classify(err, "profile update processing failed")
	}
	if result.StatusChanged {
		log.Info("Agent advanced by profile completion",
			zap.String("agent_id", payload.AgentID),
			zap.String("new_status", string(result.NewStatus)),
		)
	}
	return nil
}

// handleAgentDetected creates the draft agent for a newly discovered branch.
func (h *LifecycleHandler) handleAgentDetected(ctx context.Context, metadata *model.MessageMetadata, rawEvent []byte) error {
	log := logger.FromContext(ctx)

	var payload model.AgentDetectedPayload
	if err := json.Unmarshal(rawEvent, &payload); err != nil {
		log.Error("Failed to unmarshal agent detected payload", zap.Error(err))
		return apperrors.NewFatal(err, "failed to unmarshal agent detected payload")
	}

	// Enrich payload with CompanyID from metadata
	if payload.CompanyID == "" {
		payload.CompanyID = metadata.CompanyID
	}

	log.Info("Processing agent detection", zap.String("branch_id", payload.BranchID))
	agent, created, err := h.service.EnsureAgent(ctx, payload)
	if err != nil {
		return classify(err, "agent detection processing failed")
	}
	if created {
		log.Info("Draft agent created", zap.String("agent_id", agent.AgentID))
	}
	return nil
}

// handleLifecycleCommand dispatches activate/deactivate/suspend/reactivate.
func (h *LifecycleHandler) handleLifecycleCommand(ctx context.Context, eventType model.EventType, metadata *model.MessageMetadata, rawEvent []byte) error {
	log := logger.FromContext(ctx)

	var payload model.LifecycleCommandPayload
	if err := json.Unmarshal(rawEvent, &payload); err != nil {
		log.Error("Failed to unmarshal lifecycle command payload", zap.Error(err))
		return apperrors.NewFatal(err, "failed to unmarshal lifecycle command payload")
	}

	// Enrich payload with CompanyID from metadata
	if payload.CompanyID == "" {
		payload.CompanyID = metadata.CompanyID
	}

	log.Info("Processing lifecycle command",
		zap.String("command", string(eventType.GetBaseType())),
		zap.String("agent_id", payload.AgentID),
		zap.String("actor_id", payload.ActorID),
	)

	var result *model.CommandResult
	var err error
	switch eventType {
	case model.V1AgentsActivate:
		result, err = h.service.Activate(ctx, payload.AgentID, payload.ActorID, payload.Reason)
	case model.V1AgentsDeactivate:
		result, err = h.service.Deactivate(ctx, payload.AgentID, payload.ActorID, payload.Reason)
	case model.V1AgentsSuspend:
		result, err = h.service.Suspend(ctx, payload.AgentID, payload.ActorID, payload.Reason)
	case model.V1AgentsReactivate:
		result, err = h.service.Reactivate(ctx, payload.AgentID, payload.ActorID, payload.Reason, payload.QueueBuild)
	}
	if err != nil {
		return classify(err, "lifecycle command processing failed")
	}

	// Denied commands are terminal outcomes: the command was heard, the
	// agent's state rejected it. Redelivery would not change the answer.
	if !result.Success {
		log.Warn("Lifecycle command denied",
			zap.String("command", string(eventType.GetBaseType())),
			zap.String("agent_id", payload.AgentID),
			zap.String("denial_reason", result.FailureReason),
		)
	}
	return nil
}

// handleRebuild enqueues a build outside the lifecycle commands.
func (h *LifecycleHandler) handleRebuild(ctx context.Context, metadata *model.MessageMetadata, rawEvent []byte) error {
	log := logger.FromContext(ctx)

	var payload model.RebuildCommandPayload
	if err := json.Unmarshal(rawEvent, &payload); err != nil {
		log.Error("Failed to unmarshal rebuild command payload", zap.Error(err))
		return apperrors.NewFatal(err, "failed to unmarshal rebuild command payload")
	}

	// Enrich payload with CompanyID from metadata
	if payload.CompanyID == "" {
		payload.CompanyID = metadata.CompanyID
	}

	log.Info("Processing rebuild command",
		zap.String("agent_id", payload.AgentID),
		zap.Int("priority", payload.Priority),
		zap.String("trigger_reason", payload.TriggerReason),
	)
	result, err := h.service.EnqueueBuild(ctx, payload.AgentID, model.BuildPriority(payload.Priority), payload.TriggerReason)
	if err != nil {
		return classify(err, "rebuild command processing failed")
	}
	if !result.Created {
		log.Debug("Rebuild already pending", zap.String("build_id", result.BuildID))
	}
	return nil
}

// classify wraps a service error for the consumer's retry decision. Dependency
// failures are worth redelivering; everything else would fail identically on
// every attempt and goes straight to the DLQ.
func classify(err error, message string) error {
	switch {
	case apperrors.IsDatabaseError(err),
		apperrors.IsNATSError(err),
		apperrors.IsTimeoutError(err),
		apperrors.IsConflictError(err):
		return apperrors.NewRetryable(err, message)
	default:
		return apperrors.NewFatal(err, message)
	}
}
