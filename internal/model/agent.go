package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm/schema"
)

// Agent represents the agents table structure, one row per real-estate agent
// onboarded onto the platform.
type Agent struct {
	// ID is the internal database primary key.
	ID int64 `json:"-" gorm:"primaryKey;autoIncrement"`
	// AgentID is the externally visible unique identifier for the agent.
	AgentID string `json:"agent_id" gorm:"column:agent_id;uniqueIndex" validate:"required"`
	// CompanyID identifies the company/tenant this agent belongs to.
	CompanyID string `json:"company_id,omitempty" gorm:"column:company_id"` // CompanyID is implicitly the tenant ID
	// Status is the current lifecycle status of the agent.
	Status AgentStatus `json:"status" gorm:"column:status;type:text" validate:"required,agent_status"`
	// Subdomain is the agent's site subdomain. Assigned at detection and
	// never changed afterwards.
	Subdomain string `json:"subdomain" gorm:"column:subdomain;uniqueIndex" validate:"required,subdomain"`
	// UserID links the agent to an identity-subsystem user once the account
	// is created. Nil until the agent claims their record.
	UserID *string `json:"user_id,omitempty" gorm:"column:user_id"`
	// BranchID is the office branch the agent was detected from.
	BranchID string `json:"branch_id,omitempty" gorm:"column:branch_id"`
	// BranchName is a display label for the branch.
	BranchName string `json:"branch_name,omitempty" gorm:"column:branch_name"`
	// Qualifications holds the agent's certifications and licenses.
	Qualifications datatypes.JSON `json:"qualifications,omitempty" gorm:"type:jsonb;column:qualifications"`
	// SocialLinks holds the agent's social media URLs.
	SocialLinks datatypes.JSON `json:"social_links,omitempty" gorm:"type:jsonb;column:social_links"`
	// CreatedAt is the timestamp when the agent record was first created.
	CreatedAt time.Time `json:"created_at,omitempty" gorm:"column:created_at;autoCreateTime"`
	// UpdatedAt is the timestamp when the agent record was last updated.
	UpdatedAt time.Time `json:"updated_at,omitempty" gorm:"column:updated_at;autoUpdateTime"`
}

// TableName specifies the table name for GORM.
func (Agent) TableName(namer schema.Namer) string {
	return namer.TableName("agents")
}

// AgentUpdateColumns returns a list of column names that are allowed to be updated during an upsert operation.
// Excludes primary key, agent_id, company_id, status, subdomain and created_at.
func AgentUpdateColumns() []string {
	return []string{
		"user_id",
		"branch_id",
		"branch_name",
		"qualifications",
		"social_links",
		"updated_at",
	}
}
