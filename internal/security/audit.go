package security

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/rbigger/aiamp/internal/app"
	"github.com/rbigger/aiamp/internal/models"
)

// CheckStatus captures the outcome of a security audit check.
type CheckStatus string

const (
	StatusPass CheckStatus = "pass"
	StatusWarn CheckStatus = "warn"
	StatusFail CheckStatus = "fail"
)

// Check contains the result of a single audit verification.
type Check struct {
	ID          string      `json:"id"`
	Status      CheckStatus `json:"status"`
	Message     string      `json:"message"`
	Remediation string      `json:"remediation,omitempty"`
	Details     any         `json:"details,omitempty"`
}

// Result aggregates all checks with a simple status summary.
type Result struct {
	CheckedAt time.Time      `json:"checked_at"`
	Checks    []Check        `json:"checks"`
	Summary   map[string]int `json:"summary"`
}

// AuditService evaluates core security controls and configuration.
type AuditService struct {
	db  *gorm.DB
	cfg *app.Config
	now func() time.Time
}

// NewAuditService constructs the audit service. All dependencies are optional; missing
// inputs degrade specific checks to warnings.
func NewAuditService(db *gorm.DB, cfg *app.Config) *AuditService {
	return &AuditService{
		db:  db,
		cfg: cfg,
		now: time.Now,
	}
}

// WithClock overrides the clock used in results (primarily for testing).
func (s *AuditService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// Run executes all audit checks and returns their outcome.
func (s *AuditService) Run(ctx context.Context) Result {
	if ctx == nil {
		ctx = context.Background()
	}

	checks := []Check{
		s.checkAdminPresent(ctx),
		s.checkJWTSecret(),
		s.checkSessionTTL(),
		s.checkSMTPDelivery(),
		s.checkAPIKeyExpiry(ctx),
	}

	summary := map[string]int{
		string(StatusPass): 0,
		string(StatusWarn): 0,
		string(StatusFail): 0,
	}

	for _, check := range checks {
		summary[string(check.Status)]++
	}

	return Result{
		CheckedAt: s.now().UTC(),
		Checks:    checks,
		Summary:   summary,
	}
}

func (s *AuditService) checkAdminPresent(ctx context.Context) Check {
	if s.db == nil {
		return Check{
			ID:          "admin_account_present",
			Status:      StatusWarn,
			Message:     "Database unavailable – unable to confirm an approved admin exists.",
			Remediation: "Ensure database connectivity before running the audit.",
		}
	}

	var count int64
	if err := s.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("role = ? AND approved = ?", models.RoleAdmin, true).
		Count(&count).Error; err != nil {
		return Check{
			ID:          "admin_account_present",
			Status:      StatusWarn,
			Message:     fmt.Sprintf("Could not verify admin accounts: %v", err),
			Remediation: "Retry after resolving database errors.",
		}
	}

	if count == 0 {
		return Check{
			ID:          "admin_account_present",
			Status:      StatusFail,
			Message:     "No approved admin account found.",
			Remediation: "Approve at least one admin account so invites and approvals can be managed.",
		}
	}

	return Check{
		ID:      "admin_account_present",
		Status:  StatusPass,
		Message: "Approved admin account present.",
		Details: map[string]any{"count": count},
	}
}

func (s *AuditService) checkJWTSecret() Check {
	if s.cfg == nil {
		return Check{
			ID:          "jwt_secret_strength",
			Status:      StatusWarn,
			Message:     "Configuration not loaded – unable to assess signing secret strength.",
			Remediation: "Load configuration before running the security audit.",
		}
	}

	length := len(strings.TrimSpace(s.cfg.Auth.JWT.Secret))

	switch {
	case length == 0:
		return Check{
			ID:          "jwt_secret_strength",
			Status:      StatusFail,
			Message:     "Missing JWT signing secret.",
			Remediation: "Provide a cryptographically secure signing secret (>= 32 bytes).",
		}
	case length < 32:
		return Check{
			ID:          "jwt_secret_strength",
			Status:      StatusFail,
			Message:     fmt.Sprintf("JWT signing secret is too short (%d bytes).", length),
			Remediation: "Use a randomly generated secret of at least 32 bytes.",
		}
	case length < 48:
		return Check{
			ID:          "jwt_secret_strength",
			Status:      StatusWarn,
			Message:     fmt.Sprintf("JWT signing secret is %d bytes. Consider increasing to 48+ bytes.", length),
			Remediation: "Increase the length of AIAMP_AUTH_JWT_SECRET to at least 48 bytes.",
			Details:     map[string]any{"length": length},
		}
	default:
		return Check{
			ID:      "jwt_secret_strength",
			Status:  StatusPass,
			Message: fmt.Sprintf("JWT signing secret length is %d bytes.", length),
			Details: map[string]any{"length": length},
		}
	}
}

func (s *AuditService) checkSessionTTL() Check {
	if s.cfg == nil {
		return Check{
			ID:          "session_refresh_ttl",
			Status:      StatusWarn,
			Message:     "Configuration not loaded – unable to evaluate session lifetime.",
			Remediation: "Load configuration before running the security audit.",
		}
	}

	ttl := s.cfg.Auth.Session.RefreshTTL
	if ttl <= 0 {
		return Check{
			ID:          "session_refresh_ttl",
			Status:      StatusWarn,
			Message:     "Refresh token TTL is not configured; using default duration.",
			Remediation: "Set AIAMP_AUTH_SESSION_REFRESH_TOKEN_TTL to control session lifetime.",
		}
	}

	const maxRecommended = 30 * 24 * time.Hour

	if ttl > maxRecommended {
		return Check{
			ID:          "session_refresh_ttl",
			Status:      StatusWarn,
			Message:     fmt.Sprintf("Refresh token TTL (%s) exceeds recommended maximum (%s).", ttl, maxRecommended),
			Remediation: "Reduce refresh token TTL to 30 days or lower to limit credential exposure.",
			Details:     map[string]any{"ttl": ttl.String()},
		}
	}

	return Check{
		ID:      "session_refresh_ttl",
		Status:  StatusPass,
		Message: fmt.Sprintf("Refresh token TTL is %s.", ttl),
		Details: map[string]any{"ttl": ttl.String()},
	}
}

func (s *AuditService) checkSMTPDelivery() Check {
	if s.cfg == nil {
		return Check{
			ID:          "smtp_delivery",
			Status:      StatusWarn,
			Message:     "Configuration not loaded – unable to verify email delivery.",
			Remediation: "Load configuration before running the security audit.",
		}
	}

	if !s.cfg.Email.SMTP.Enabled {
		return Check{
			ID:          "smtp_delivery",
			Status:      StatusWarn,
			Message:     "SMTP delivery is disabled; invite and password reset emails are not sent.",
			Remediation: "Enable email.smtp and configure host credentials so onboarding links reach users.",
		}
	}

	return Check{
		ID:      "smtp_delivery",
		Status:  StatusPass,
		Message: "SMTP delivery enabled.",
		Details: map[string]any{"host": s.cfg.Email.SMTP.Host},
	}
}

func (s *AuditService) checkAPIKeyExpiry(ctx context.Context) Check {
	if s.db == nil {
		return Check{
			ID:          "api_key_expiry",
			Status:      StatusWarn,
			Message:     "Database unavailable – unable to inspect agent API keys.",
			Remediation: "Ensure database connectivity before running the audit.",
		}
	}

	var count int64
	if err := s.db.WithContext(ctx).
		Model(&models.APIKey{}).
		Where("expires_at IS NULL").
		Count(&count).Error; err != nil {
		return Check{
			ID:          "api_key_expiry",
			Status:      StatusWarn,
			Message:     fmt.Sprintf("Could not inspect API keys: %v", err),
			Remediation: "Retry after resolving database errors.",
		}
	}

	if count > 0 {
		return Check{
			ID:          "api_key_expiry",
			Status:      StatusWarn,
			Message:     fmt.Sprintf("%d agent API key(s) never expire.", count),
			Remediation: "Rotate long-lived agent keys or set an expiry when issuing them.",
			Details:     map[string]any{"count": count},
		}
	}

	return Check{
		ID:      "api_key_expiry",
		Status:  StatusPass,
		Message: "All agent API keys carry an expiry.",
	}
}
