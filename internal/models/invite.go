package models

import "time"

// InviteStatus is derived at read time from used_at/expires_at; it is never stored.
type InviteStatus string

const (
	InviteStatusPending InviteStatus = "pending"
	InviteStatusUsed    InviteStatus = "used"
	InviteStatusExpired InviteStatus = "expired"
)

// Invite is a single-use, time-bound credential granting signup without admin review.
type Invite struct {
	BaseModel

	Token     string  `gorm:"uniqueIndex;not null" json:"token"`
	Email     *string `gorm:"index" json:"email,omitempty"`
	Notes     *string `json:"notes,omitempty"`
	CreatedBy string  `json:"created_by"`

	ExpiresAt time.Time `gorm:"index" json:"expires_at"`

	// UsedAt is set at most once, via a conditional update guarded by
	// used_at IS NULL. Once set the invite is permanently terminal.
	UsedAt *time.Time `json:"used_at,omitempty"`
	UsedBy *string    `gorm:"type:uuid" json:"used_by,omitempty"`
}

// StatusAt derives the invite status at the supplied instant. A consumed
// invite reports used regardless of expiry.
func (i *Invite) StatusAt(now time.Time) InviteStatus {
	switch {
	case i.UsedAt != nil:
		return InviteStatusUsed
	case i.ExpiresAt.Before(now):
		return InviteStatusExpired
	default:
		return InviteStatusPending
	}
}
