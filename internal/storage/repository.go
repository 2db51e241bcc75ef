package storage

import (
	"context"

	"gitlab.com/nestestates/api/agent-lifecycle-service/internal/model"
)

// AgentRepo defines agent storage operations
type AgentRepo interface {
	Save(ctx context.Context, agent model.Agent) error
	Update(ctx context.Context, agent model.Agent) error // General update of mutable columns
	// UpdateStatusCAS performs a guarded status update: the row is changed
	// only if it still holds the expected status. A miss surfaces as
	// ErrNotFound or ErrConflict.
	UpdateStatusCAS(ctx context.Context, agentID string, from, to model.AgentStatus) error
	FindByAgentID(ctx context.Context, agentID string) (*model.Agent, error)
	FindBySubdomain(ctx context.Context, subdomain string) (*model.Agent, error)
	FindByBranchID(ctx context.Context, branchID string) (*model.Agent, error)
	FindByStatus(ctx context.Context, status model.AgentStatus) ([]model.Agent, error)
	Close(ctx context.Context) error
}

// ProfileRepo defines read access to identity-owned profiles
type ProfileRepo interface {
	FindByUserID(ctx context.Context, userID string) (*model.Profile, error)
	Close(ctx context.Context) error
}

// ChecklistRepo defines onboarding checklist storage operations
type ChecklistRepo interface {
	Create(ctx context.Context, checklist model.OnboardingChecklist) error
	// Update applies a partial column update to the agent's checklist row.
	Update(ctx context.Context, agentID string, updates map[string]interface{}) error
	FindByAgentID(ctx context.Context, agentID string) (*model.OnboardingChecklist, error)
	Close(ctx context.Context) error
}

// BuildQueueRepo defines build queue storage operations
type BuildQueueRepo interface {
	// Enqueue inserts a build entry with duplicate suppression. It returns
	// the id of the pending entry (new or surviving) and whether a new row
	// was created.
	Enqueue(ctx context.Context, entry model.BuildQueueEntry) (buildID string, created bool, err error)
	CancelPending(ctx context.Context, agentID string) (int64, error)
	FindByID(ctx context.Context, buildID string) (*model.BuildQueueEntry, error)
	FindPending(ctx context.Context, limit int) ([]model.BuildQueueEntry, error)
	Stats(ctx context.Context) (*model.QueueStats, error)
	Close(ctx context.Context) error
}

// AuditLogRepo defines append-only audit storage operations
type AuditLogRepo interface {
	Save(ctx context.Context, entry model.AuditLog) error
	FindByRecord(ctx context.Context, recordID string, limit int) ([]model.AuditLog, error)
	Close(ctx context.Context) error
}
