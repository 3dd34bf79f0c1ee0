package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role is the closed set of account roles. Invalid values are rejected at the
// type boundary rather than by runtime string comparison.
type Role string

const (
	RoleUser         Role = "user"
	RoleCollaborator Role = "collaborator"
	RoleAdmin        Role = "admin"
)

// Valid reports whether the role is one of the three known variants.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleCollaborator, RoleAdmin:
		return true
	}
	return false
}

// CanCollaborate reports whether the role grants access to the collaborator workspace.
func (r Role) CanCollaborate() bool {
	return r == RoleCollaborator || r == RoleAdmin
}

// ApprovedByInvite marks accounts whose approval came from invite redemption
// rather than a human administrator.
const ApprovedByInvite = "invite"

// Account describes a registered user.
//
// The approval flag transitions monotonically from false to true; nothing in
// the normal flow resets it.
type Account struct {
	ID       string `gorm:"primaryKey;type:uuid" json:"id"`
	Email    string `gorm:"uniqueIndex;not null" json:"email"`
	FullName string `json:"full_name"`
	Password string `json:"-"`

	Role Role `gorm:"not null;default:user;index" json:"role"`

	Approved   bool       `gorm:"default:false;index" json:"approved"`
	ApprovedAt *time.Time `json:"approved_at,omitempty"`
	ApprovedBy string     `json:"approved_by,omitempty"`

	Sessions []Session `gorm:"foreignKey:AccountID" json:"-"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate ensures a UUID is present before persisting.
func (a *Account) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Role == "" {
		a.Role = RoleUser
	}
	return nil
}
