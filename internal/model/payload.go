package model

import (
	"encoding/json"
	"time"
)

// --- Profile NATS Payload --- //

// ProfileUpdatedPayload is published by the dashboard whenever an agent saves
// profile changes. It only carries identifiers; the service re-reads the
// profile so stale events cannot clobber fresher data.
type ProfileUpdatedPayload struct {
	AgentID   string `json:"agent_id,omitempty" validate:"required"`
	CompanyID string `json:"company_id,omitempty" validate:"required"`
	UserID    string `json:"user_id,omitempty" validate:"omitempty"`
}

// --- Agent detection NATS Payload --- //

// AgentDetectedPayload announces an agent found in a branch roster sync.
type AgentDetectedPayload struct {
	BranchID   string `json:"branch_id,omitempty" validate:"required"`
	BranchName string `json:"branch_name,omitempty" validate:"omitempty"`
	CompanyID  string `json:"company_id,omitempty" validate:"required"`
	AgentName  string `json:"agent_name,omitempty" validate:"omitempty"`
}

// --- Lifecycle command NATS Payloads --- //

// LifecycleCommandPayload drives activate/deactivate/suspend/reactivate.
type LifecycleCommandPayload struct {
	AgentID   string `json:"agent_id,omitempty" validate:"required"`
	CompanyID string `json:"company_id,omitempty" validate:"required"`
	// ActorID is the admin issuing the command.
	ActorID string `json:"actor_id,omitempty" validate:"required"`
	// Reason is required for deactivation and suspension.
	Reason string `json:"reason,omitempty" validate:"omitempty"`
	// QueueBuild requests a site rebuild on reactivation.
	QueueBuild bool `json:"queue_build,omitempty" validate:"omitempty"`
}

// RebuildCommandPayload requests a build-queue entry outside the lifecycle
// commands (admin edits, content approvals, manual triggers).
type RebuildCommandPayload struct {
	AgentID       string `json:"agent_id,omitempty" validate:"required"`
	CompanyID     string `json:"company_id,omitempty" validate:"required"`
	Priority      int    `json:"priority,omitempty" validate:"required,min=1,max=4"`
	TriggerReason string `json:"trigger_reason,omitempty" validate:"required"`
}

// --- DLQ payload --- //

// DLQPayload wraps a message that exhausted its delivery attempts or failed
// terminally, preserving the original bytes and the error that killed it.
type DLQPayload struct {
	SourceSubject   string          `json:"source_subject"`
	Company         string          `json:"company"`
	OriginalPayload json.RawMessage `json:"original_payload"`
	Error           string          `json:"error"`
	ErrorType       string          `json:"error_type"`
	RetryCount      uint64          `json:"retry_count"`
	MaxRetry        int             `json:"max_retry"`
	Timestamp       time.Time       `json:"ts"`
}

// --- Outbound notification payloads --- //

// AgentReadyNotification tells admins an agent finished their profile and is
// waiting for review.
type AgentReadyNotification struct {
	AgentID   string `json:"agent_id"`
	CompanyID string `json:"company_id"`
	Subdomain string `json:"subdomain"`
}

// AgentActivatedNotification announces a successful activation, including the
// build scheduled for the agent's site.
type AgentActivatedNotification struct {
	AgentID   string `json:"agent_id"`
	CompanyID string `json:"company_id"`
	Subdomain string `json:"subdomain"`
	BuildID   string `json:"build_id,omitempty"`
}
