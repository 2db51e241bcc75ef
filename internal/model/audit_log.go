package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm/schema"
)

// Audit actions recorded for lifecycle mutations.
const (
	AuditActionStatusChange = "status_change"
	AuditActionActivation   = "activation"
	AuditActionDeactivation = "deactivation"
	AuditActionSuspension   = "suspension"
	AuditActionReactivation = "reactivation"
	AuditActionDetection    = "detection"
)

// AuditLog represents the append-only audit_logs table. Rows are never
// updated or deleted; history reads order by created_at with the insertion id
// as tiebreak.
type AuditLog struct {
	// ID is the internal database primary key and insertion-order tiebreak.
	ID int64 `json:"-" gorm:"primaryKey;autoIncrement"`
	// Table names the table the audited row lives in.
	Table string `json:"table_name" gorm:"column:table_name" validate:"required"`
	// RecordID identifies the audited row (the agent's external id).
	RecordID string `json:"record_id" gorm:"column:record_id;index" validate:"required"`
	// Action labels what happened.
	Action string `json:"action" gorm:"column:action" validate:"required"`
	// UserID is the acting user. Nil for system-driven mutations such as
	// automatic checklist advancement.
	UserID *string `json:"user_id,omitempty" gorm:"column:user_id"`
	// Changes holds the structured before/after payload.
	Changes datatypes.JSON `json:"changes,omitempty" gorm:"type:jsonb;column:changes"`
	// CreatedAt is when the entry was recorded.
	CreatedAt time.Time `json:"created_at" gorm:"column:created_at;autoCreateTime"`
}

// TableName specifies the table name for GORM.
func (AuditLog) TableName(namer schema.Namer) string {
	return namer.TableName("audit_logs")
}

// StatusChange is the Changes payload shape for lifecycle transitions.
type StatusChange struct {
	From   string `json:"from,omitempty"`
	To     string `json:"to"`
	Reason string `json:"reason,omitempty"`
}
