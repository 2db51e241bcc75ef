package usecase

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	apperrors "gitlab.com/nestestates/api/agent-lifecycle-service/internal/apperrors"
	"gitlab.com/nestestates/api/agent-lifecycle-service/internal/lifecycle"
	"gitlab.com/nestestates/api/agent-lifecycle-service/internal/model"
	"gitlab.com/nestestates/api/agent-lifecycle-service/internal/observer"
	"gitlab.com/nestestates/api/agent-lifecycle-service/internal/tenant"
	"gitlab.com/nestestates/api/agent-lifecycle-service/pkg/logger"
)

// UpdateChecklistProgress recomputes an agent's profile completion, persists
// it on the checklist, and auto-advances pending_profile to pending_admin when
// the profile is complete. The operation is idempotent: a second call with no
// intervening change persists the same values and reports StatusChanged=false.
func (s *LifecycleService) UpdateChecklistProgress(ctx context.Context, agentID string) (*model.ChecklistUpdateResult, error) {
	log := logger.FromContext(ctx).With(zap.String("agent_id", agentID))

	if agentID == "" {
		return nil, fmt.Errorf("%w: agent_id is required", apperrors.ErrBadRequest)
	}

	companyID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrUnauthorized, err.Error())
	}

	agent, err := s.agentRepo.FindByAgentID(ctx, agentID)
	if err != nil {
		log.Warn("Failed to load agent for checklist update", zap.Error(err))
		return nil, err
	}

	// The profile lives in the identity subsystem and only exists once the
	// agent has claimed their record. A missing profile is not an error, it
	// just fails the profile-derived requirements.
	var profile *model.Profile
	if agent.UserID != nil {
		profile, err = s.profileRepo.FindByUserID(ctx, *agent.UserID)
		if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
			log.Error("Failed to load profile for checklist update", zap.Error(err))
			return nil, err
		}
	}

	report := lifecycle.CalculateCompletion(profile, agent)
	observer.ObserveProfileCompletionPct(companyID, report.Pct)

	updates := map[string]interface{}{
		"profile_completion_pct": report.Pct,
		"profile_completed":      report.Complete,
	}
	if agent.UserID != nil {
		updates["user_created"] = true
	}
	if err := s.checklistRepo.Update(ctx, agentID, updates); err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			return nil, err
		}
		// Checklist rows are created at detection time; recover from a
		// missing one rather than failing the whole update.
		log.Warn("Checklist row missing, creating it")
		if createErr := s.checklistRepo.Create(ctx, model.OnboardingChecklist{
			AgentID:   agentID,
			CompanyID: companyID,
		}); createErr != nil {
			return nil, createErr
		}
		if err := s.checklistRepo.Update(ctx, agentID, updates); err != nil {
			return nil, err
		}
	}

	result := &model.ChecklistUpdateResult{
		Pct:      report.Pct,
		Complete: report.Complete,
		Missing:  report.Missing,
	}

	switch {
	case report.Complete && agent.Status == model.StatusPendingProfile:
		if err := s.advanceToPendingAdmin(ctx, agent, result); err != nil {
			return nil, err
		}
	case agent.Status == model.StatusActive:
		// A live site re-renders on profile edits; the status is untouched.
		enq, err := s.EnqueueBuild(ctx, agentID, model.PriorityLow, model.TriggerProfileUpdated)
		if err != nil {
			return nil, err
		}
		result.BuildID = enq.BuildID
	}

	log.Info("Checklist progress updated",
		zap.Int("pct", result.Pct),
		zap.Bool("complete", result.Complete),
		zap.Bool("status_changed", result.StatusChanged),
	)
	return result, nil
}

// advanceToPendingAdmin performs the automatic pending_profile -> pending_admin
// transition for a completed profile. A lost status race is a normal outcome,
// not an error: some other caller advanced the agent first.
func (s *LifecycleService) advanceToPendingAdmin(ctx context.Context, agent *model.Agent, result *model.ChecklistUpdateResult) error {
	log := logger.FromContext(ctx).With(zap.String("agent_id", agent.AgentID))

	trans := lifecycle.CanTransition(model.StatusPendingProfile, model.StatusPendingAdmin)
	if !trans.Allowed {
		log.Error("Transition table rejected auto-advance", zap.String("reason", trans.Reason))
		return fmt.Errorf("%w: %s", apperrors.ErrValidation, trans.Reason)
	}

	err := s.agentRepo.UpdateStatusCAS(ctx, agent.AgentID, model.StatusPendingProfile, model.StatusPendingAdmin)
	if err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			log.Warn("Auto-advance lost the status race, leaving agent as-is", zap.Error(err))
			return nil
		}
		return err
	}

	observer.IncStatusTransition(agent.CompanyID, string(model.StatusPendingProfile), string(model.StatusPendingAdmin))
	result.StatusChanged = true
	result.NewStatus = model.StatusPendingAdmin

	// System-driven mutation, no acting user.
	if err := s.writeAudit(ctx, agent.AgentID, model.AuditActionStatusChange, nil, model.StatusChange{
		From:   string(model.StatusPendingProfile),
		To:     string(model.StatusPendingAdmin),
		Reason: trans.Description,
	}); err != nil {
		return err
	}

	s.notifier.AgentReadyForReview(ctx, model.AgentReadyNotification{
		AgentID:   agent.AgentID,
		CompanyID: agent.CompanyID,
		Subdomain: agent.Subdomain,
	})

	log.Info("Agent auto-advanced to admin review")
	return nil
}

// GetChecklist fetches the agent's checklist row for display.
func (s *LifecycleService) GetChecklist(ctx context.Context, agentID string) (*model.OnboardingChecklist, error) {
	if agentID == "" {
		return nil, fmt.Errorf("%w: agent_id is required", apperrors.ErrBadRequest)
	}
	return s.checklistRepo.FindByAgentID(ctx, agentID)
}
