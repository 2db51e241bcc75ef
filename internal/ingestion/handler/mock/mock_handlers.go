package mock

import (
	"context"

	"github.com/stretchr/testify/mock"
	"gitlab.com/nestestates/api/agent-lifecycle-service/internal/model"
)

// MockLifecycleHandler is a mock for the LifecycleHandlerInterface
type MockLifecycleHandler struct {
	mock.Mock
}

// HandleEvent mocks the HandleEvent method
func (m *MockLifecycleHandler) HandleEvent(ctx context.Context, eventType model.EventType, metadata *model.MessageMetadata, rawEvent []byte) error {
	args := m.Called(ctx, eventType, metadata, rawEvent)
	return args.Error(0)
}
