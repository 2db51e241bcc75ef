package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "gitlab.com/nestestates/api/agent-lifecycle-service/internal/apperrors"
	"gitlab.com/nestestates/api/agent-lifecycle-service/internal/model"
	"gitlab.com/nestestates/api/agent-lifecycle-service/internal/tenant"
	"gitlab.com/nestestates/api/agent-lifecycle-service/internal/validator"
	"gitlab.com/nestestates/api/agent-lifecycle-service/pkg/logger"
)

// EnsureAgent handles an agent-detected event from a branch roster sync. It is
// idempotent: when the branch is already known the existing agent is returned
// untouched, otherwise a draft agent with a generated subdomain and a zeroed
// onboarding checklist is created. The bool reports whether a new agent was
// created.
func (s *LifecycleService) EnsureAgent(ctx context.Context, payload model.AgentDetectedPayload) (*model.Agent, bool, error) {
	log := logger.FromContext(ctx).With(zap.String("branch_id", payload.BranchID))

	if err := validator.Validate(payload); err != nil {
		log.Warn("Agent detection payload validation failed", zap.Error(err))
		return nil, false, fmt.Errorf("%w: %s", apperrors.ErrValidation, err.Error())
	}

	companyID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %s", apperrors.ErrUnauthorized, err.Error())
	}
	if err := validateCompanyTenant(ctx, payload.CompanyID); err != nil {
		log.Warn("CompanyID mismatch on agent detection", zap.Error(err))
		return nil, false, fmt.Errorf("%w: %s", apperrors.ErrUnauthorized, err.Error())
	}

	// When the filter has never seen the branch it cannot exist yet, so the
	// lookup is skipped and the insert below settles any race.
	skipLookup := s.detectionCache != nil && !s.detectionCache.MightContain(payload.BranchID)
	if !skipLookup {
		existing, err := s.agentRepo.FindByBranchID(ctx, payload.BranchID)
		if err == nil {
			if s.detectionCache != nil {
				s.detectionCache.MarkSeen(payload.BranchID)
			}
			log.Debug("Branch already has an agent, returning it",
				zap.String("agent_id", existing.AgentID))
			return existing, false, nil
		}
		if !errors.Is(err, apperrors.ErrNotFound) {
			return nil, false, err
		}
		if s.detectionCache != nil {
			s.detectionCache.RecordFalsePositive()
		}
	}

	agent := model.Agent{
		AgentID:    uuid.NewString(),
		CompanyID:  companyID,
		Status:     model.StatusDraft,
		Subdomain:  generateSubdomain(payload.AgentName, payload.BranchName),
		BranchID:   payload.BranchID,
		BranchName: payload.BranchName,
	}

	if err := s.agentRepo.Save(ctx, agent); err != nil {
		if errors.Is(err, apperrors.ErrDuplicate) {
			// Lost a detection race for the same branch; the winner's row is
			// the agent we want.
			winner, findErr := s.agentRepo.FindByBranchID(ctx, payload.BranchID)
			if findErr == nil {
				if s.detectionCache != nil {
					s.detectionCache.MarkSeen(payload.BranchID)
				}
				log.Debug("Detection race lost, returning winner",
					zap.String("agent_id", winner.AgentID))
				return winner, false, nil
			}
			// Not a branch race, so the generated subdomain collided. Retry
			// once with a fresh one.
			agent.Subdomain = generateSubdomain(payload.AgentName, payload.BranchName)
			if retryErr := s.agentRepo.Save(ctx, agent); retryErr != nil {
				return nil, false, retryErr
			}
		} else {
			log.Error("Failed to create detected agent", zap.Error(err))
			return nil, false, err
		}
	}

	if err := s.checklistRepo.Create(ctx, model.OnboardingChecklist{
		AgentID:   agent.AgentID,
		CompanyID: companyID,
	}); err != nil {
		return nil, false, err
	}

	if err := s.writeAudit(ctx, agent.AgentID, model.AuditActionDetection, nil, model.StatusChange{
		To:     string(model.StatusDraft),
		Reason: fmt.Sprintf("detected in branch %s", payload.BranchID),
	}); err != nil {
		return nil, false, err
	}

	if s.detectionCache != nil {
		s.detectionCache.MarkSeen(payload.BranchID)
	}

	log.Info("Draft agent created from detection",
		zap.String("agent_id", agent.AgentID),
		zap.String("subdomain", agent.Subdomain),
	)
	return &agent, true, nil
}

// generateSubdomain derives a url-safe subdomain from the agent's name (or the
// branch name when the roster has none), suffixed for uniqueness.
func generateSubdomain(agentName, branchName string) string {
	base := slugify(agentName)
	if base == "" {
		base = slugify(branchName)
	}
	if base == "" {
		base = "agent"
	}
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
	return fmt.Sprintf("%s-%s", base, suffix)
}

// slugify lowercases and reduces a display name to [a-z0-9-].
func slugify(name string) string {
	var b strings.Builder
	lastHyphen := true // Trim leading hyphens
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case unicode.IsLetter(r) && r < unicode.MaxASCII, unicode.IsDigit(r) && r < unicode.MaxASCII:
			b.WriteRune(r)
			lastHyphen = false
		case !lastHyphen:
			b.WriteByte('-')
			lastHyphen = true
		}
	}
	return strings.Trim(b.String(), "-")
}
