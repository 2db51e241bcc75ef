package usecase

import (
	"context"
	"fmt"

	"gitlab.com/nestestates/api/agent-lifecycle-service/internal/cache"
	"gitlab.com/nestestates/api/agent-lifecycle-service/internal/notify"
	"gitlab.com/nestestates/api/agent-lifecycle-service/internal/storage"
	"gitlab.com/nestestates/api/agent-lifecycle-service/internal/tenant"
)

// LifecycleService implements the agent lifecycle operations: checklist
// progress tracking, admin-driven activation commands, agent detection,
// build scheduling and the status history projection.
type LifecycleService struct {
	agentRepo     storage.AgentRepo
	profileRepo   storage.ProfileRepo
	checklistRepo storage.ChecklistRepo
	buildRepo     storage.BuildQueueRepo
	auditRepo     storage.AuditLogRepo
	notifier      notify.Notifier

	// Optional bloom filter over seen branch IDs, set via WithDetectionCache.
	detectionCache *cache.DetectionCache
}

// NewLifecycleService creates a new lifecycle service
func NewLifecycleService(
	agentRepo storage.AgentRepo,
	profileRepo storage.ProfileRepo,
	checklistRepo storage.ChecklistRepo,
	buildRepo storage.BuildQueueRepo,
	auditRepo storage.AuditLogRepo,
	notifier notify.Notifier,
) *LifecycleService {
	return &LifecycleService{
		agentRepo:     agentRepo,
		profileRepo:   profileRepo,
		checklistRepo: checklistRepo,
		buildRepo:     buildRepo,
		auditRepo:     auditRepo,
		notifier:      notifier,
	}
}

// WithDetectionCache attaches a detection cache so EnsureAgent can skip the
// branch lookup for branches that have definitely not been seen yet.
func (s *LifecycleService) WithDetectionCache(dc *cache.DetectionCache) *LifecycleService {
	s.detectionCache = dc
	return s
}

// validateCompanyTenant validates that the payload's company field matches the
// tenant ID from context
func validateCompanyTenant(ctx context.Context, companyID string) error {
	if companyID == "" {
		return nil // Skip validation if the payload does not carry a company
	}

	ctxCompanyID, err := tenant.FromContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to get tenant ID: %w", err)
	}

	if companyID != ctxCompanyID {
		return fmt.Errorf("company (%s) does not match tenant ID (%s)", companyID, ctxCompanyID)
	}

	return nil
}
