package model

import (
	"time"

	"gorm.io/gorm/schema"
)

// OnboardingChecklist tracks an agent's progress through onboarding, one row
// per agent. The boolean milestones are monotonic; the actor/reason metadata
// records who drove each lifecycle action and why.
type OnboardingChecklist struct {
	// ID is the internal database primary key.
	ID int64 `json:"-" gorm:"primaryKey;autoIncrement"`
	// AgentID is the agent this checklist belongs to.
	AgentID string `json:"agent_id" gorm:"column:agent_id;uniqueIndex" validate:"required"`
	// CompanyID identifies the company/tenant this checklist belongs to.
	CompanyID string `json:"company_id,omitempty" gorm:"column:company_id"`

	// UserCreated is set when the agent claims their record with an identity account.
	UserCreated bool `json:"user_created" gorm:"column:user_created;default:false"`
	// WelcomeEmailSent is set once the welcome email has been dispatched.
	WelcomeEmailSent bool `json:"welcome_email_sent" gorm:"column:welcome_email_sent;default:false"`
	// ProfileCompleted is set when every profile requirement is satisfied.
	ProfileCompleted bool `json:"profile_completed" gorm:"column:profile_completed;default:false"`
	// AdminApproved is set when an admin activates the agent.
	AdminApproved bool `json:"admin_approved" gorm:"column:admin_approved;default:false"`
	// SiteDeployed is set optimistically when an activation build is queued.
	SiteDeployed bool `json:"site_deployed" gorm:"column:site_deployed;default:false"`

	// ProfileCompletionPct is the last computed completion percentage (0-100).
	ProfileCompletionPct int `json:"profile_completion_pct" gorm:"column:profile_completion_pct;default:0"`

	ActivatedAt   *time.Time `json:"activated_at,omitempty" gorm:"column:activated_at"`
	ActivatedBy   *string    `json:"activated_by,omitempty" gorm:"column:activated_by"`
	DeactivatedAt *time.Time `json:"deactivated_at,omitempty" gorm:"column:deactivated_at"`
	DeactivatedBy *string    `json:"deactivated_by,omitempty" gorm:"column:deactivated_by"`
	// DeactivationReason is free text supplied by the actor.
	DeactivationReason *string    `json:"deactivation_reason,omitempty" gorm:"column:deactivation_reason"`
	SuspendedAt        *time.Time `json:"suspended_at,omitempty" gorm:"column:suspended_at"`
	SuspendedBy        *string    `json:"suspended_by,omitempty" gorm:"column:suspended_by"`
	SuspensionReason   *string    `json:"suspension_reason,omitempty" gorm:"column:suspension_reason"`
	ReactivatedAt      *time.Time `json:"reactivated_at,omitempty" gorm:"column:reactivated_at"`
	ReactivatedBy      *string    `json:"reactivated_by,omitempty" gorm:"column:reactivated_by"`

	// CreatedAt is the timestamp when the checklist record was created.
	CreatedAt time.Time `json:"created_at,omitempty" gorm:"column:created_at;autoCreateTime"`
	// UpdatedAt is the timestamp when the checklist record was last updated.
	UpdatedAt time.Time `json:"updated_at,omitempty" gorm:"column:updated_at;autoUpdateTime"`
}

// TableName specifies the table name for GORM.
func (OnboardingChecklist) TableName(namer schema.Namer) string {
	return namer.TableName("agent_onboarding_checklist")
}
