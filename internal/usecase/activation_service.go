package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	apperrors "gitlab.com/nestestates/api/agent-lifecycle-service/internal/apperrors"
	"gitlab.com/nestestates/api/agent-lifecycle-service/internal/lifecycle"
	"gitlab.com/nestestates/api/agent-lifecycle-service/internal/model"
	"gitlab.com/nestestates/api/agent-lifecycle-service/internal/observer"
	"gitlab.com/nestestates/api/agent-lifecycle-service/pkg/logger"
	"gitlab.com/nestestates/api/agent-lifecycle-service/pkg/utils"
)

func deny(reason string) *model.CommandResult {
	return &model.CommandResult{FailureReason: reason}
}

// Activate drives the pending_admin -> active edge for an admin. Preconditions
// are checked in order and the first failure short-circuits: the agent must
// exist, must not already be active, must have a linked user account, and must
// have a complete profile. No write happens before every precondition passes;
// the audit entry is written last.
func (s *LifecycleService) Activate(ctx context.Context, agentID, actorID, reason string) (*model.CommandResult, error) {
	log := logger.FromContext(ctx).With(zap.String("agent_id", agentID), zap.String("actor_id", actorID))

	if agentID == "" || actorID == "" {
		return nil, fmt.Errorf("%w: agent_id and actor_id are required", apperrors.ErrBadRequest)
	}

	agent, err := s.agentRepo.FindByAgentID(ctx, agentID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return deny("agent not found"), nil
		}
		return nil, err
	}

	if agent.Status == model.StatusActive {
		observer.IncStatusTransitionDenied(agent.CompanyID, string(agent.Status), string(model.StatusActive), "already_active")
		return deny("Agent is already active"), nil
	}

	if agent.UserID == nil {
		observer.IncStatusTransitionDenied(agent.CompanyID, string(agent.Status), string(model.StatusActive), "no_user_account")
		return deny("agent has no linked user account"), nil
	}

	profile, err := s.profileRepo.FindByUserID(ctx, *agent.UserID)
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}
	report := lifecycle.CalculateCompletion(profile, agent)
	if !report.Complete {
		observer.IncStatusTransitionDenied(agent.CompanyID, string(agent.Status), string(model.StatusActive), "profile_incomplete")
		result := deny(fmt.Sprintf("profile is incomplete (%d%%); missing: %s",
			report.Pct, strings.Join(report.Missing, ", ")))
		result.Missing = report.Missing
		return result, nil
	}

	trans := lifecycle.CanTransition(agent.Status, model.StatusActive)
	if !trans.Allowed {
		observer.IncStatusTransitionDenied(agent.CompanyID, string(agent.Status), string(model.StatusActive), "illegal_transition")
		return deny(trans.Reason), nil
	}

	if err := s.agentRepo.UpdateStatusCAS(ctx, agentID, agent.Status, model.StatusActive); err != nil {
		// A conflict means another process changed the status between our
		// read and write; the caller should re-fetch and decide.
		log.Warn("Activation status update failed", zap.Error(err))
		return nil, err
	}
	observer.IncStatusTransition(agent.CompanyID, string(agent.Status), string(model.StatusActive))

	now := utils.Now()
	if err := s.checklistRepo.Update(ctx, agentID, map[string]interface{}{
		"admin_approved": true,
		"activated_at":   now,
		"activated_by":   actorID,
	}); err != nil {
		return nil, err
	}

	enq, err := s.EnqueueBuild(ctx, agentID, model.PriorityEmergency, model.TriggerAgentActivated)
	if err != nil {
		return nil, err
	}

	// Optimistic: the build executor corrects this if the deploy fails.
	if err := s.checklistRepo.Update(ctx, agentID, map[string]interface{}{
		"site_deployed": true,
	}); err != nil {
		return nil, err
	}

	if err := s.writeAudit(ctx, agentID, model.AuditActionActivation, &actorID, model.StatusChange{
		From:   string(agent.Status),
		To:     string(model.StatusActive),
		Reason: reason,
	}); err != nil {
		return nil, err
	}

	s.notifier.AgentActivated(ctx, model.AgentActivatedNotification{
		AgentID:   agentID,
		CompanyID: agent.CompanyID,
		Subdomain: agent.Subdomain,
		BuildID:   enq.BuildID,
	})

	log.Info("Agent activated",
		zap.String("previous_status", string(agent.Status)),
		zap.String("build_id", enq.BuildID),
	)
	return &model.CommandResult{Success: true, BuildID: enq.BuildID}, nil
}

// Deactivate moves an active agent to inactive and schedules a high-priority
// rebuild so the public site reflects the change.
func (s *LifecycleService) Deactivate(ctx context.Context, agentID, actorID, reason string) (*model.CommandResult, error) {
	log := logger.FromContext(ctx).With(zap.String("agent_id", agentID), zap.String("actor_id", actorID))

	if agentID == "" || actorID == "" {
		return nil, fmt.Errorf("%w: agent_id and actor_id are required", apperrors.ErrBadRequest)
	}
	if strings.TrimSpace(reason) == "" {
		return nil, fmt.Errorf("%w: a deactivation reason is required", apperrors.ErrBadRequest)
	}

	agent, err := s.agentRepo.FindByAgentID(ctx, agentID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return deny("agent not found"), nil
		}
		return nil, err
	}

	trans := lifecycle.CanTransition(agent.Status, model.StatusInactive)
	if !trans.Allowed {
		observer.IncStatusTransitionDenied(agent.CompanyID, string(agent.Status), string(model.StatusInactive), "illegal_transition")
		return deny(trans.Reason), nil
	}

	if err := s.agentRepo.UpdateStatusCAS(ctx, agentID, agent.Status, model.StatusInactive); err != nil {
		log.Warn("Deactivation status update failed", zap.Error(err))
		return nil, err
	}
	observer.IncStatusTransition(agent.CompanyID, string(agent.Status), string(model.StatusInactive))

	now := utils.Now()
	if err := s.checklistRepo.Update(ctx, agentID, map[string]interface{}{
		"deactivated_at":      now,
		"deactivated_by":      actorID,
		"deactivation_reason": reason,
	}); err != nil {
		return nil, err
	}

	enq, err := s.EnqueueBuild(ctx, agentID, model.PriorityHigh, model.TriggerAgentUpdated)
	if err != nil {
		return nil, err
	}

	if err := s.writeAudit(ctx, agentID, model.AuditActionDeactivation, &actorID, model.StatusChange{
		From:   string(agent.Status),
		To:     string(model.StatusInactive),
		Reason: reason,
	}); err != nil {
		return nil, err
	}

	log.Info("Agent deactivated", zap.String("build_id", enq.BuildID))
	return &model.CommandResult{Success: true, BuildID: enq.BuildID}, nil
}

// Suspend moves an agent to suspended and cancels its pending builds; a
// suspended agent's site must not be rebuilt until reactivation.
func (s *LifecycleService) Suspend(ctx context.Context, agentID, actorID, reason string) (*model.CommandResult, error) {
	log := logger.FromContext(ctx).With(zap.String("agent_id", agentID), zap.String("actor_id", actorID))

	if agentID == "" || actorID == "" {
		return nil, fmt.Errorf("%w: agent_id and actor_id are required", apperrors.ErrBadRequest)
	}
	if strings.TrimSpace(reason) == "" {
		return nil, fmt.Errorf("%w: a suspension reason is required", apperrors.ErrBadRequest)
	}

	agent, err := s.agentRepo.FindByAgentID(ctx, agentID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return deny("agent not found"), nil
		}
		return nil, err
	}

	trans := lifecycle.CanTransition(agent.Status, model.StatusSuspended)
	if !trans.Allowed {
		observer.IncStatusTransitionDenied(agent.CompanyID, string(agent.Status), string(model.StatusSuspended), "illegal_transition")
		return deny(trans.Reason), nil
	}

	if err := s.agentRepo.UpdateStatusCAS(ctx, agentID, agent.Status, model.StatusSuspended); err != nil {
		log.Warn("Suspension status update failed", zap.Error(err))
		return nil, err
	}
	observer.IncStatusTransition(agent.CompanyID, string(agent.Status), string(model.StatusSuspended))

	cancelled, err := s.CancelPendingBuilds(ctx, agentID)
	if err != nil {
		return nil, err
	}

	now := utils.Now()
	if err := s.checklistRepo.Update(ctx, agentID, map[string]interface{}{
		"suspended_at":      now,
		"suspended_by":      actorID,
		"suspension_reason": reason,
	}); err != nil {
		return nil, err
	}

	if err := s.writeAudit(ctx, agentID, model.AuditActionSuspension, &actorID, model.StatusChange{
		From:   string(agent.Status),
		To:     string(model.StatusSuspended),
		Reason: reason,
	}); err != nil {
		return nil, err
	}

	log.Info("Agent suspended", zap.Int64("cancelled_builds", cancelled))
	return &model.CommandResult{Success: true, CancelledBuilds: cancelled}, nil
}

// Reactivate lifts a suspension or deactivation, moving the agent back to
// active. When queueBuild is true an urgent rebuild is scheduled so the site
// comes back up immediately.
func (s *LifecycleService) Reactivate(ctx context.Context, agentID, actorID, reason string, queueBuild bool) (*model.CommandResult, error) {
	log := logger.FromContext(ctx).With(zap.String("agent_id", agentID), zap.String("actor_id", actorID))

	if agentID == "" || actorID == "" {
		return nil, fmt.Errorf("%w: agent_id and actor_id are required", apperrors.ErrBadRequest)
	}

	agent, err := s.agentRepo.FindByAgentID(ctx, agentID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return deny("agent not found"), nil
		}
		return nil, err
	}

	trans := lifecycle.CanTransition(agent.Status, model.StatusActive)
	if !trans.Allowed {
		observer.IncStatusTransitionDenied(agent.CompanyID, string(agent.Status), string(model.StatusActive), "illegal_transition")
		return deny(trans.Reason), nil
	}

	if err := s.agentRepo.UpdateStatusCAS(ctx, agentID, agent.Status, model.StatusActive); err != nil {
		log.Warn("Reactivation status update failed", zap.Error(err))
		return nil, err
	}
	observer.IncStatusTransition(agent.CompanyID, string(agent.Status), string(model.StatusActive))

	now := utils.Now()
	if err := s.checklistRepo.Update(ctx, agentID, map[string]interface{}{
		"reactivated_at": now,
		"reactivated_by": actorID,
	}); err != nil {
		return nil, err
	}

	result := &model.CommandResult{Success: true}
	if queueBuild {
		enq, err := s.EnqueueBuild(ctx, agentID, model.PriorityEmergency, model.TriggerAgentActivated)
		if err != nil {
			return nil, err
		}
		result.BuildID = enq.BuildID
	}

	if err := s.writeAudit(ctx, agentID, model.AuditActionReactivation, &actorID, model.StatusChange{
		From:   string(agent.Status),
		To:     string(model.StatusActive),
		Reason: reason,
	}); err != nil {
		return nil, err
	}

	log.Info("Agent reactivated",
		zap.String("previous_status", string(agent.Status)),
		zap.Bool("build_queued", queueBuild),
	)
	return result, nil
}
