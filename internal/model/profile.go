package model

import (
	"time"

	"gorm.io/gorm/schema"
)

// Profile mirrors the identity subsystem's profiles table. This service only
// reads it; writes belong to identity.
type Profile struct {
	// UserID is the identity user the profile belongs to.
	UserID string `json:"user_id" gorm:"column:user_id;primaryKey"`
	// FirstName is the user's given name.
	FirstName string `json:"first_name,omitempty" gorm:"column:first_name"`
	// LastName is the user's family name.
	LastName string `json:"last_name,omitempty" gorm:"column:last_name"`
	// Email is the user's contact email.
	Email string `json:"email,omitempty" gorm:"column:email"`
	// Phone is the user's contact phone number.
	Phone string `json:"phone,omitempty" gorm:"column:phone"`
	// Bio is the agent's public biography.
	Bio string `json:"bio,omitempty" gorm:"column:bio"`
	// AvatarURL points at the uploaded profile photo.
	AvatarURL string `json:"avatar_url,omitempty" gorm:"column:avatar_url"`
	// CreatedAt is when the identity subsystem created the profile.
	CreatedAt time.Time `json:"created_at,omitempty" gorm:"column:created_at"`
	// UpdatedAt is when the profile was last changed.
	UpdatedAt time.Time `json:"updated_at,omitempty" gorm:"column:updated_at"`
}

// TableName specifies the table name for GORM.
func (Profile) TableName(namer schema.Namer) string {
	return namer.TableName("profiles")
}
