package model

import (
	"strings"
	"time"
)

// EventType identifies an inbound lifecycle event by its base NATS subject.
type EventType string

// Base subjects for lifecycle events. The wire subject carries a trailing
// company id token, e.g. "v1.agents.activate.<company_id>".
const (
	V1ProfilesUpdated EventType = "v1.profiles.updated"

	V1AgentsDetected   EventType = "v1.agents.detected"
	V1AgentsActivate   EventType = "v1.agents.activate"
	V1AgentsDeactivate EventType = "v1.agents.deactivate"
	V1AgentsSuspend    EventType = "v1.agents.suspend"
	V1AgentsReactivate EventType = "v1.agents.reactivate"
	V1AgentsRebuild    EventType = "v1.agents.rebuild"
)

var knownEventTypes = map[EventType]struct{}{
	V1ProfilesUpdated:  {},
	V1AgentsDetected:   {},
	V1AgentsActivate:   {},
	V1AgentsDeactivate: {},
	V1AgentsSuspend:    {},
	V1AgentsReactivate: {},
	V1AgentsRebuild:    {},
}

// MapToBaseEventType maps a wire subject back to a known base EventType,
// stripping the trailing company id token when present. It returns the mapped
// EventType and true, or an empty EventType and false when the subject does
// not correspond to any known type.
func MapToBaseEventType(input string) (EventType, bool) {
	if _, ok := knownEventTypes[EventType(input)]; ok {
		return EventType(input), true
	}

	lastDotIndex := strings.LastIndex(input, ".")
	if lastDotIndex <= 0 {
		return "", false
	}

	base := EventType(input[:lastDotIndex])
	if _, ok := knownEventTypes[base]; ok {
		return base, true
	}
	return "", false
}

// MessageMetadata carries the JetStream delivery context of a consumed message.
type MessageMetadata struct {
	ConsumerSequence uint64
	StreamSequence   uint64
	NumDelivered     uint64
	NumPending       uint64
	Timestamp        time.Time
	Stream           string
	Consumer         string
	Domain           string
	MessageID        string
	MessageSubject   string
	CompanyID        string
}

// GetVersion extracts the version prefix from an event type, e.g. "v1".
// Returns an empty string when the type carries no version.
func (e EventType) GetVersion() string {
	parts := strings.SplitN(string(e), ".", 2)
	if len(parts) < 2 {
		return ""
	}

	if len(parts[0]) >= 2 && parts[0][0] == 'v' {
		return parts[0]
	}

	return ""
}

// GetBaseType returns the event type without the version prefix.
// For example: "v1.agents.activate" -> "agents.activate".
func (e EventType) GetBaseType() EventType {
	version := e.GetVersion()
	if version == "" {
		return e
	}

	return EventType(strings.TrimPrefix(string(e), version+"."))
}
