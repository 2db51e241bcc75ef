package mock

import (
	"context"

	"github.com/stretchr/testify/mock"
	"gitlab.com/nestestates/api/agent-lifecycle-service/internal/model"
)

// --- AgentRepo Mock ---

// AgentRepoMock mocks the AgentRepo interface
type AgentRepoMock struct {
	mock.Mock
}

// Save mocks the Save method
func (m *AgentRepoMock) Save(ctx context.Context, agent model.Agent) error {
	args := m.Called(ctx, agent)
	return args.Error(0)
}

// Update mocks the Update method
func (m *AgentRepoMock) Update(ctx context.Context, agent model.Agent) error {
	args := m.Called(ctx, agent)
	return args.Error(0)
}

// UpdateStatusCAS mocks the UpdateStatusCAS method
func (m *AgentRepoMock) UpdateStatusCAS(ctx context.Context, agentID string, from, to model.AgentStatus) error {
	args := m.Called(ctx, agentID, from, to)
	return args.Error(0)
}

// FindByAgentID mocks the FindByAgentID method
func (m *AgentRepoMock) FindByAgentID(ctx context.Context, agentID string) (*model.Agent, error) {
	args := m.Called(ctx, agentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Agent), args.Error(1)
}

// FindBySubdomain mocks the FindBySubdomain method
func (m *AgentRepoMock) FindBySubdomain(ctx context.Context, subdomain string) (*model.Agent, error) {
	args := m.Called(ctx, subdomain)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Agent), args.Error(1)
}

// FindByBranchID mocks the FindByBranchID method
func (m *AgentRepoMock) FindByBranchID(ctx context.Context, branchID string) (*model.Agent, error) {
	args := m.Called(ctx, branchID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Agent), args.Error(1)
}

// FindByStatus mocks the FindByStatus method
func (m *AgentRepoMock) FindByStatus(ctx context.Context, status model.AgentStatus) ([]model.Agent, error) {
	args := m.Called(ctx, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Agent), args.Error(1)
}

// Close mocks the Close method
func (m *AgentRepoMock) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// --- ProfileRepo Mock ---

// ProfileRepoMock mocks the ProfileRepo interface
type ProfileRepoMock struct {
	mock.Mock
}

// FindByUserID mocks the FindByUserID method
func (m *ProfileRepoMock) FindByUserID(ctx context.Context, userID string) (*model.Profile, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Profile), args.Error(1)
}

// Close mocks the Close method
func (m *ProfileRepoMock) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// --- ChecklistRepo Mock ---

// ChecklistRepoMock mocks the ChecklistRepo interface
type ChecklistRepoMock struct {
	mock.Mock
}

// Create mocks the Create method
func (m *ChecklistRepoMock) Create(ctx context.Context, checklist model.OnboardingChecklist) error {
	args := m.Called(ctx, checklist)
	return args.Error(0)
}

// Update mocks the Update method
func (m *ChecklistRepoMock) Update(ctx context.Context, agentID string, updates map[string]interface{}) error {
	args := m.Called(ctx, agentID, updates)
	return args.Error(0)
}

// FindByAgentID mocks the FindByAgentID method
func (m *ChecklistRepoMock) FindByAgentID(ctx context.Context, agentID string) (*model.OnboardingChecklist, error) {
	args := m.Called(ctx, agentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.OnboardingChecklist), args.Error(1)
}

// Close mocks the Close method
func (m *ChecklistRepoMock) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// --- BuildQueueRepo Mock ---

// BuildQueueRepoMock mocks the BuildQueueRepo interface
type BuildQueueRepoMock struct {
	mock.Mock
}

// Enqueue mocks the Enqueue method
func (m *BuildQueueRepoMock) Enqueue(ctx context.Context, entry model.BuildQueueEntry) (string, bool, error) {
	args := m.Called(ctx, entry)
	return args.String(0), args.Bool(1), args.Error(2)
}

// CancelPending mocks the CancelPending method
func (m *BuildQueueRepoMock) CancelPending(ctx context.Context, agentID string) (int64, error) {
	args := m.Called(ctx, agentID)
	return args.Get(0).(int64), args.Error(1)
}

// FindByID mocks the FindByID method
func (m *BuildQueueRepoMock) FindByID(ctx context.Context, buildID string) (*model.BuildQueueEntry, error) {
	args := m.Called(ctx, buildID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.BuildQueueEntry), args.Error(1)
}

// FindPending mocks the FindPending method
func (m *BuildQueueRepoMock) FindPending(ctx context.Context, limit int) ([]model.BuildQueueEntry, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.BuildQueueEntry), args.Error(1)
}

// Stats mocks the Stats method
func (m *BuildQueueRepoMock) Stats(ctx context.Context) (*model.QueueStats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.QueueStats), args.Error(1)
}

// Close mocks the Close method
func (m *BuildQueueRepoMock) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// --- AuditLogRepo Mock ---

// AuditLogRepoMock mocks the AuditLogRepo interface
type AuditLogRepoMock struct {
	mock.Mock
}

// Save mocks the Save method
func (m *AuditLogRepoMock) Save(ctx context.Context, entry model.AuditLog) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

// FindByRecord mocks the FindByRecord method
func (m *AuditLogRepoMock) FindByRecord(ctx context.Context, recordID string, limit int) ([]model.AuditLog, error) {
	args := m.Called(ctx, recordID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.AuditLog), args.Error(1)
}

// Close mocks the Close method
func (m *AuditLogRepoMock) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
