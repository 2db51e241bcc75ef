package model

import "fmt"

// AgentStatus is the lifecycle status of an agent. Every agent is in exactly
// one status at a time; legal movements between statuses are defined by the
// lifecycle package's transition table.
type AgentStatus string

const (
	// StatusDraft is the initial state of a freshly detected agent.
	StatusDraft AgentStatus = "draft"
	// StatusPendingProfile means the agent is filling out their profile.
	StatusPendingProfile AgentStatus = "pending_profile"
	// StatusPendingAdmin means the profile is complete and awaiting admin review.
	StatusPendingAdmin AgentStatus = "pending_admin"
	// StatusActive means the agent is approved and their site is live.
	StatusActive AgentStatus = "active"
	// StatusInactive means the agent was voluntarily deactivated.
	StatusInactive AgentStatus = "inactive"
	// StatusSuspended means the agent was administratively suspended.
	StatusSuspended AgentStatus = "suspended"
)

// AllStatuses returns every recognised lifecycle status.
func AllStatuses() []AgentStatus {
	return []AgentStatus{
		StatusDraft,
		StatusPendingProfile,
		StatusPendingAdmin,
		StatusActive,
		StatusInactive,
		StatusSuspended,
	}
}

// Valid reports whether s is one of the recognised lifecycle statuses.
func (s AgentStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusPendingProfile, StatusPendingAdmin,
		StatusActive, StatusInactive, StatusSuspended:
		return true
	}
	return false
}

// String returns the wire/storage representation.
func (s AgentStatus) String() string {
	return string(s)
}

// Label returns the display label used by dashboards and history projections.
func (s AgentStatus) Label() string {
	switch s {
	case StatusDraft:
		return "Draft"
	case StatusPendingProfile:
		return "Pending Profile"
	case StatusPendingAdmin:
		return "Pending Approval"
	case StatusActive:
		return "Active"
	case StatusInactive:
		return "Inactive"
	case StatusSuspended:
		return "Suspended"
	default:
		return string(s)
	}
}

// ParseAgentStatus converts a raw string into an AgentStatus, rejecting
// anything outside the recognised set.
func ParseAgentStatus(raw string) (AgentStatus, error) {
	s := AgentStatus(raw)
	if !s.Valid() {
		return "", fmt.Errorf("unknown agent status %q", raw)
	}
	return s, nil
}
