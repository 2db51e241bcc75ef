package storage

import (
	"context"

	"gitlab.com/nestestates/api/agent-lifecycle-service/internal/model"
)

// AgentRepoAdapter adapts the PostgresRepo to the AgentRepo interface
type AgentRepoAdapter struct {
	postgres *PostgresRepo
}

// NewAgentRepoAdapter creates a new agent repository adapter
func NewAgentRepoAdapter(postgres *PostgresRepo) AgentRepo {
	return &AgentRepoAdapter{postgres: postgres}
}

// Save saves an agent
func (a *AgentRepoAdapter) Save(ctx context.Context, agent model.Agent) error {
	return a.postgres.SaveAgent(ctx, agent)
}

// Update updates an agent
func (a *AgentRepoAdapter) Update(ctx context.Context, agent model.Agent) error {
	return a.postgres.UpdateAgent(ctx, agent)
}

// UpdateStatusCAS performs a guarded status update
func (a *AgentRepoAdapter) UpdateStatusCAS(ctx context.Context, agentID string, from, to model.AgentStatus) error {
	return a.postgres.UpdateAgentStatusCAS(ctx, agentID, from, to)
}

// FindByAgentID finds an agent by agent ID
func (a *AgentRepoAdapter) FindByAgentID(ctx context.Context, agentID string) (*model.Agent, error) {
	return a.postgres.FindAgentByAgentID(ctx, agentID)
}

// FindBySubdomain finds an agent by subdomain
func (a *AgentRepoAdapter) FindBySubdomain(ctx context.Context, subdomain string) (*model.Agent, error) {
	return a.postgres.FindAgentBySubdomain(ctx, subdomain)
}

// FindByBranchID finds an agent by branch ID
func (a *AgentRepoAdapter) FindByBranchID(ctx context.Context, branchID string) (*model.Agent, error) {
	return a.postgres.FindAgentByBranchID(ctx, branchID)
}

// FindByStatus finds agents by lifecycle status
func (a *AgentRepoAdapter) FindByStatus(ctx context.Context, status model.AgentStatus) ([]model.Agent, error) {
	return a.postgres.FindAgentsByStatus(ctx, status)
}

// Close closes the repository
func (a *AgentRepoAdapter) Close(ctx context.Context) error {
	return a.postgres.Close(ctx)
}

// ProfileRepoAdapter adapts the PostgresRepo to the ProfileRepo interface
type ProfileRepoAdapter struct {
	postgres *PostgresRepo
}

// NewProfileRepoAdapter creates a new profile repository adapter
func NewProfileRepoAdapter(postgres *PostgresRepo) ProfileRepo {
	return &ProfileRepoAdapter{postgres: postgres}
}

// FindByUserID finds a profile by user ID
func (a *ProfileRepoAdapter) FindByUserID(ctx context.Context, userID string) (*model.Profile, error) {
	return a.postgres.FindProfileByUserID(ctx, userID)
}

// Close closes the repository
func (a *ProfileRepoAdapter) Close(ctx context.Context) error {
	return a.postgres.Close(ctx)
}

// ChecklistRepoAdapter adapts the PostgresRepo to the ChecklistRepo interface
type ChecklistRepoAdapter struct {
	postgres *PostgresRepo
}

// NewChecklistRepoAdapter creates a new checklist repository adapter
func NewChecklistRepoAdapter(postgres *PostgresRepo) ChecklistRepo {
	return &ChecklistRepoAdapter{postgres: postgres}
}

// Create inserts a checklist row
func (a *ChecklistRepoAdapter) Create(ctx context.Context, checklist model.OnboardingChecklist) error {
	return a.postgres.CreateChecklist(ctx, checklist)
}

// Update applies a partial checklist update
func (a *ChecklistRepoAdapter) Update(ctx context.Context, agentID string, updates map[string]interface{}) error {
	return a.postgres.UpdateChecklist(ctx, agentID, updates)
}

// FindByAgentID finds a checklist by agent ID
func (a *ChecklistRepoAdapter) FindByAgentID(ctx context.Context, agentID string) (*model.OnboardingChecklist, error) {
	return a.postgres.FindChecklistByAgentID(ctx, agentID)
}

// Close closes the repository
func (a *ChecklistRepoAdapter) Close(ctx context.Context) error {
	return a.postgres.Close(ctx)
}

// BuildQueueRepoAdapter adapts the PostgresRepo to the BuildQueueRepo interface
type BuildQueueRepoAdapter struct {
	postgres *PostgresRepo
}

// NewBuildQueueRepoAdapter creates a new build queue repository adapter
func NewBuildQueueRepoAdapter(postgres *PostgresRepo) BuildQueueRepo {
	return &BuildQueueRepoAdapter{postgres: postgres}
}

// Enqueue inserts a build entry with duplicate suppression
func (a *BuildQueueRepoAdapter) Enqueue(ctx context.Context, entry model.BuildQueueEntry) (string, bool, error) {
	return a.postgres.EnqueueBuild(ctx, entry)
}

// CancelPending cancels an agent's pending builds
func (a *BuildQueueRepoAdapter) CancelPending(ctx context.Context, agentID string) (int64, error) {
	return a.postgres.CancelPendingBuilds(ctx, agentID)
}

// FindByID finds a build entry by ID
func (a *BuildQueueRepoAdapter) FindByID(ctx context.Context, buildID string) (*model.BuildQueueEntry, error) {
	return a.postgres.FindBuildByID(ctx, buildID)
}

// FindPending lists pending builds in executor order
func (a *BuildQueueRepoAdapter) FindPending(ctx context.Context, limit int) ([]model.BuildQueueEntry, error) {
	return a.postgres.FindPendingBuilds(ctx, limit)
}

// Stats summarises queue health
func (a *BuildQueueRepoAdapter) Stats(ctx context.Context) (*model.QueueStats, error) {
	return a.postgres.GetQueueStats(ctx)
}

// Close closes the repository
func (a *BuildQueueRepoAdapter) Close(ctx context.Context) error {
	return a.postgres.Close(ctx)
}

// AuditLogRepoAdapter adapts the PostgresRepo to the AuditLogRepo interface
type AuditLogRepoAdapter struct {
	postgres *PostgresRepo
}

// NewAuditLogRepoAdapter creates a new audit log repository adapter
func NewAuditLogRepoAdapter(postgres *PostgresRepo) AuditLogRepo {
	return &AuditLogRepoAdapter{postgres: postgres}
}

// Save appends an audit entry
func (a *AuditLogRepoAdapter) Save(ctx context.Context, entry model.AuditLog) error {
	return a.postgres.SaveAuditLog(ctx, entry)
}

// FindByRecord lists audit entries for a record, newest first
func (a *AuditLogRepoAdapter) FindByRecord(ctx context.Context, recordID string, limit int) ([]model.AuditLog, error) {
	return a.postgres.FindAuditLogsByRecord(ctx, recordID, limit)
}

// Close closes the repository
func (a *AuditLogRepoAdapter) Close(ctx context.Context) error {
	return a.postgres.Close(ctx)
}

// Ensure adapters implement the interfaces
var _ AgentRepo = (*AgentRepoAdapter)(nil)
var _ ProfileRepo = (*ProfileRepoAdapter)(nil)
var _ ChecklistRepo = (*ChecklistRepoAdapter)(nil)
var _ BuildQueueRepo = (*BuildQueueRepoAdapter)(nil)
var _ AuditLogRepo = (*AuditLogRepoAdapter)(nil)
