package models

import (
	"time"

	"gorm.io/datatypes"
)

// API key permission scopes for the agent-facing surface.
const (
	PermDocumentsRead  = "documents:read"
	PermDocumentsWrite = "documents:write"
	PermNotesRead      = "notes:read"
	PermNotesWrite     = "notes:write"
)

// ValidPermissions is the whitelist of grantable API key scopes.
var ValidPermissions = map[string]bool{
	PermDocumentsRead:  true,
	PermDocumentsWrite: true,
	PermNotesRead:      true,
	PermNotesWrite:     true,
}

// APIKey is a scoped credential for non-interactive callers. The secret is
// never stored; only its SHA-256 digest is.
type APIKey struct {
	BaseModel

	AgentName   string                       `gorm:"not null" json:"agent_name"`
	KeyHash     string                       `gorm:"uniqueIndex;not null" json:"-"`
	CreatedBy   string                       `json:"created_by,omitempty"`
	Permissions datatypes.JSONSlice[string] `json:"permissions"`

	ExpiresAt  *time.Time `gorm:"index" json:"expires_at,omitempty"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
}

// ExpiredAt reports whether the key has passed its expiry at the given instant.
// Keys without an expiry never expire.
func (k *APIKey) ExpiredAt(now time.Time) bool {
	return k.ExpiresAt != nil && k.ExpiresAt.Before(now)
}

// HasPermission reports whether the key's permission set contains the scope.
func (k *APIKey) HasPermission(scope string) bool {
	for _, p := range k.Permissions {
		if p == scope {
			return true
		}
	}
	return false
}
