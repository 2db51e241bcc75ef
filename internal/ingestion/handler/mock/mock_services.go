package mock

import (
	"context"

	"github.com/stretchr/testify/mock"
	"gitlab.com/nestestates/api/agent-lifecycle-service/internal/model"
)

// MockLifecycleService is a mock implementation of handler.LifecycleService
type MockLifecycleService struct {
	mock.Mock
}

// UpdateChecklistProgress mocks the UpdateChecklistProgress method
func (m *MockLifecycleService) UpdateChecklistProgress(ctx context.Context, agentID string) (*model.ChecklistUpdateResult, error) {
	args := m.Called(ctx, agentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ChecklistUpdateResult), args.Error(1)
}

// EnsureAgent mocks the EnsureAgent method
func (m *MockLifecycleService) EnsureAgent(ctx context.Context, payload model.AgentDetectedPayload) (*model.Agent, bool, error) {
	args := m.Called(ctx, payload)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*model.Agent), args.Bool(1), args.Error(2)
}

// Activate mocks the Activate method
func (m *MockLifecycleService) Activate(ctx context.Context, agentID, actorID, reason string) (*model.CommandResult, error) {
	args := m.Called(ctx, agentID, actorID, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CommandResult), args.Error(1)
}

// Deactivate mocks the Deactivate method
func (m *MockLifecycleService) Deactivate(ctx context.Context, agentID, actorID, reason string) (*model.CommandResult, error) {
	args := m.Called(ctx, agentID, actorID, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CommandResult), args.Error(1)
}

// Suspend mocks the Suspend method
func (m *MockLifecycleService) Suspend(ctx context.Context, agentID, actorID, reason string) (*model.CommandResult, error) {
	args := m.Called(ctx, agentID, actorID, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CommandResult), args.Error(1)
}

// Reactivate mocks the Reactivate method
func (m *MockLifecycleService) Reactivate(ctx context.Context, agentID, actorID, reason string, queueBuild bool) (*model.CommandResult, error) {
	args := m.Called(ctx, agentID, actorID, reason, queueBuild)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CommandResult), args.Error(1)
}

// EnqueueBuild mocks the EnqueueBuild method
func (m *MockLifecycleService) EnqueueBuild(ctx context.Context, agentID string, priority model.BuildPriority, triggerReason string) (*model.EnqueueResult, error) {
	args := m.Called(ctx, agentID, priority, triggerReason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.EnqueueResult), args.Error(1)
}
