package mock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"gitlab.com/nestestates/api/agent-lifecycle-service/internal/model"
)

// NotifierMock mocks the notify.Notifier interface
type NotifierMock struct {
	mock.Mock
}

// AgentReadyForReview mocks the AgentReadyForReview method
func (m *NotifierMock) AgentReadyForReview(ctx context.Context, notification model.AgentReadyNotification) {
	m.Called(ctx, notification)
}

// AgentActivated mocks the AgentActivated method
func (m *NotifierMock) AgentActivated(ctx context.Context, notification model.AgentActivatedNotification) {
	m.Called(ctx, notification)
}

// Stop mocks the Stop method
func (m *NotifierMock) Stop() {
	m.Called()
}
