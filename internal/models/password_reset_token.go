package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PasswordResetToken stores the SHA-256 hash of a reset token. The plaintext
// token leaves the system only inside the email sent to the account holder.
type PasswordResetToken struct {
	ID        string     `gorm:"primaryKey;type:uuid" json:"id"`
	AccountID string     `gorm:"type:uuid;not null;index" json:"account_id"`
	Account   *Account   `gorm:"foreignKey:AccountID" json:"account,omitempty"`
	TokenHash string     `gorm:"uniqueIndex;not null" json:"-"`
	ExpiresAt time.Time  `gorm:"index" json:"expires_at"`
	UsedAt    *time.Time `json:"used_at"`
	CreatedAt time.Time  `json:"created_at"`
}

func (t *PasswordResetToken) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}

// Usable reports whether the token can still redeem a password change.
func (t *PasswordResetToken) Usable(now time.Time) bool {
	return t.UsedAt == nil && now.Before(t.ExpiresAt)
}
