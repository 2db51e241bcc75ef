package model

// CommandResult is the structured outcome of an admin lifecycle command.
// Denied commands are business outcomes, not errors: Success is false and
// FailureReason explains why, so a UI can render the rationale directly.
type CommandResult struct {
	Success bool `json:"success"`
	// FailureReason is set when Success is false.
	FailureReason string `json:"failure_reason,omitempty"`
	// Missing lists unmet profile requirements when activation was denied for
	// an incomplete profile.
	Missing []string `json:"missing,omitempty"`
	// BuildID identifies the rebuild scheduled by the command, when one was.
	BuildID string `json:"build_id,omitempty"`
	// CancelledBuilds is how many pending builds a suspension cancelled.
	CancelledBuilds int64 `json:"cancelled_builds,omitempty"`
}

// ChecklistUpdateResult reports the outcome of a checklist progress update.
type ChecklistUpdateResult struct {
	// Pct is the computed completion percentage.
	Pct int `json:"pct"`
	// Complete is true when every profile requirement is met.
	Complete bool `json:"complete"`
	// Missing lists unmet requirement labels in evaluation order.
	Missing []string `json:"missing,omitempty"`
	// StatusChanged is true when the update auto-advanced the agent's status.
	StatusChanged bool `json:"status_changed"`
	// NewStatus is set when StatusChanged is true.
	NewStatus AgentStatus `json:"new_status,omitempty"`
	// BuildID is set when the update scheduled a rebuild for a live site.
	BuildID string `json:"build_id,omitempty"`
}

// EnqueueResult reports the outcome of a build enqueue request.
type EnqueueResult struct {
	// BuildID identifies the pending entry, whether it was just created or
	// already existed.
	BuildID string `json:"build_id"`
	// Created is false when the request collapsed into an existing pending
	// entry for the same agent and trigger reason.
	Created bool `json:"created"`
}
