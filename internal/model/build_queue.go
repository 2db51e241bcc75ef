package model

import (
	"fmt"
	"time"

	"gorm.io/gorm/schema"
)

// BuildPriority orders build-queue entries; lower values are more urgent.
type BuildPriority int

const (
	// PriorityEmergency is reserved for activations and operator-forced builds.
	PriorityEmergency BuildPriority = 1
	// PriorityHigh covers admin edits to already-live sites.
	PriorityHigh BuildPriority = 2
	// PriorityNormal covers routine profile-driven rebuilds.
	PriorityNormal BuildPriority = 3
	// PriorityLow covers bulk or housekeeping rebuilds.
	PriorityLow BuildPriority = 4
)

// Valid reports whether p is within the recognised priority range.
func (p BuildPriority) Valid() bool {
	return p >= PriorityEmergency && p <= PriorityLow
}

// Label returns the operator-facing priority label (P1..P4).
func (p BuildPriority) Label() string {
	return fmt.Sprintf("P%d", int(p))
}

// Build trigger reasons. The (agent_id, trigger_reason) pair dedupes pending
// entries, so reasons are a closed set rather than free text.
const (
	TriggerAgentActivated  = "agent_activated"
	TriggerProfileUpdated  = "profile_update"
	TriggerAgentUpdated    = "agent_updated"
	TriggerContentApproved = "content_approved"
	TriggerManual          = "manual_trigger"
)

// ValidTriggerReason reports whether reason is one of the recognised triggers.
func ValidTriggerReason(reason string) bool {
	switch reason {
	case TriggerAgentActivated, TriggerProfileUpdated, TriggerAgentUpdated,
		TriggerContentApproved, TriggerManual:
		return true
	}
	return false
}

// Build queue entry statuses.
const (
	BuildStatusPending   = "pending"
	BuildStatusBuilding  = "building"
	BuildStatusCompleted = "completed"
	BuildStatusFailed    = "failed"
	BuildStatusCancelled = "cancelled"
)

// BuildQueueEntry represents the build_queue table structure. Entries are
// consumed by the external build executor; this service only schedules,
// cancels and reports them.
type BuildQueueEntry struct {
	// ID is the build identifier handed back to callers.
	ID string `json:"id" gorm:"column:id;primaryKey" validate:"required"`
	// AgentID is the agent whose site the build regenerates.
	AgentID string `json:"agent_id" gorm:"column:agent_id;index" validate:"required"`
	// CompanyID identifies the company/tenant this entry belongs to.
	CompanyID string `json:"company_id,omitempty" gorm:"column:company_id"`
	// Priority orders pending entries; lower is more urgent.
	Priority BuildPriority `json:"priority" gorm:"column:priority" validate:"required,min=1,max=4"`
	// TriggerReason records why the build was requested.
	TriggerReason string `json:"trigger_reason" gorm:"column:trigger_reason" validate:"required"`
	// Status is the entry's processing state.
	Status string `json:"status" gorm:"column:status;default:pending"`
	// ErrorMessage carries the failure detail when Status is failed.
	ErrorMessage string `json:"error_message,omitempty" gorm:"column:error_message"`
	// CreatedAt is when the entry was enqueued.
	CreatedAt time.Time `json:"created_at,omitempty" gorm:"column:created_at;autoCreateTime"`
	// StartedAt is when the executor picked the entry up.
	StartedAt *time.Time `json:"started_at,omitempty" gorm:"column:started_at"`
	// CompletedAt is when the entry reached a terminal status.
	CompletedAt *time.Time `json:"completed_at,omitempty" gorm:"column:completed_at"`
}

// TableName specifies the table name for GORM.
func (BuildQueueEntry) TableName(namer schema.Namer) string {
	return namer.TableName("build_queue")
}

// QueueStats summarises build-queue health for dashboards.
type QueueStats struct {
	Pending        int64 `json:"pending"`
	Building       int64 `json:"building"`
	CompletedToday int64 `json:"completed_today"`
	FailedToday    int64 `json:"failed_today"`
}
