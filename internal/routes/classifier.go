// Package routes classifies request paths into the access classes consumed by
// the gate middleware. Classification is a pure function of the path.
package routes

import "strings"

// Class is the access class assigned to a request path.
type Class int

const (
	// Public routes skip session authentication entirely. The agent API is
	// deliberately in this set: it authenticates with scoped API keys
	// instead of session cookies.
	Public Class = iota
	// Admin routes require authentication but bypass the approval gate;
	// the admin role itself is checked inside admin handlers.
	Admin
	// CollaboratorScoped routes require an approved account with the
	// collaborator or admin role.
	CollaboratorScoped
	// DefaultProtected routes require an authenticated, approved account.
	DefaultProtected
)

func (c Class) String() string {
	switch c {
	case Public:
		return "public"
	case Admin:
		return "admin"
	case CollaboratorScoped:
		return "collaborator"
	case DefaultProtected:
		return "default"
	}
	return "unknown"
}

var publicPrefixes = []string{
	"/login",
	"/signup",
	"/pending-approval",
	"/forgot-password",
	"/set-password",
	"/api/auth",
	"/api/health",
	"/api/invite",
	"/api/collab/agent",
}

var adminPrefixes = []string{
	"/admin",
	"/api/admin",
}

var collaboratorPrefixes = []string{
	"/collab",
	"/api/collab",
}

// agentPrefix carves the agent API out of the collaborator surface. A path
// matching both lists must classify Public so the API key check governs it.
const agentPrefix = "/api/collab/agent"

// Classify assigns an access class to the given request path. Precedence is
// Public, then Admin, then CollaboratorScoped; anything else is
// DefaultProtected.
func Classify(path string) Class {
	switch {
	case hasAnyPrefix(path, publicPrefixes):
		return Public
	case hasAnyPrefix(path, adminPrefixes):
		return Admin
	case hasAnyPrefix(path, collaboratorPrefixes) && !strings.HasPrefix(path, agentPrefix):
		return CollaboratorScoped
	default:
		return DefaultProtected
	}
}

func hasAnyPrefix(path string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// IsAPI reports whether the path belongs to the JSON API surface. Gate
// failures on API paths return JSON errors; browser paths get redirects.
func IsAPI(path string) bool {
	return strings.HasPrefix(path, "/api/")
}
