package handler

import (
	"context"

	"gitlab.com/nestestates/api/agent-lifecycle-service/internal/model"
)

// EventHandlerInterface defines the common interface for event handlers
type EventHandlerInterface interface {
	// HandleEvent processes an event
	HandleEvent(ctx context.Context, eventType model.EventType, metadata *model.MessageMetadata, rawEvent []byte) error
}

// LifecycleHandlerInterface defines the interface for lifecycle event handlers
type LifecycleHandlerInterface interface {
	EventHandlerInterface
}

// Ensure the handler implements the interface
var _ LifecycleHandlerInterface = (*LifecycleHandler)(nil)
