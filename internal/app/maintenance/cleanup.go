package maintenance

import (
	"context"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	iauth "github.com/rbigger/aiamp/internal/auth"
	"github.com/rbigger/aiamp/internal/services"
	"github.com/rbigger/aiamp/pkg/logger"
)

const (
	defaultAuditRetentionDays = 90
	defaultSessionSpec        = "@hourly"
	defaultAuditSpec          = "@daily"
	defaultTokenSpec          = "@daily"
)

// Cleaner coordinates background maintenance: purging expired sessions,
// expired unredeemed invites, stale password reset tokens, and old audit logs.
type Cleaner struct {
	sessions  *iauth.SessionService
	invites   *services.InviteService
	resets    *services.PasswordResetService
	audit     *services.AuditService
	cron      *cron.Cron
	log       *zap.Logger
	enabled   bool
	retention int

	sessionSchedule string
	auditSchedule   string
	tokenSchedule   string
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithAuditRetentionDays adjusts how long audit logs are retained before cleanup.
func WithAuditRetentionDays(days int) Option {
	return func(cleaner *Cleaner) {
		if days > 0 {
			cleaner.retention = days
		}
	}
}

// WithSessionSchedule overrides the cron expression for session cleanup.
func WithSessionSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.sessionSchedule = spec
		}
	}
}

// WithAuditSchedule overrides the cron expression for audit retention enforcement.
func WithAuditSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.auditSchedule = spec
		}
	}
}

// WithTokenSchedule overrides the cron expression for invite and reset token cleanup.
func WithTokenSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.tokenSchedule = spec
		}
	}
}

// NewCleaner constructs a Cleaner with sensible defaults. Any nil dependency
// results in the corresponding cleanup job being skipped.
func NewCleaner(sessions *iauth.SessionService, invites *services.InviteService, resets *services.PasswordResetService, audit *services.AuditService, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		sessions:        sessions,
		invites:         invites,
		resets:          resets,
		audit:           audit,
		retention:       defaultAuditRetentionDays,
		sessionSchedule: defaultSessionSpec,
		auditSchedule:   defaultAuditSpec,
		tokenSchedule:   defaultTokenSpec,
		log:             logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	cleaner.enabled = cleaner.sessions != nil || cleaner.invites != nil ||
		cleaner.resets != nil || cleaner.audit != nil

	return cleaner
}

// Start registers cleanup jobs with the cron scheduler and launches it if at
// least one cleanup is enabled.
func (c *Cleaner) Start() error {
	if !c.enabled {
		return nil
	}

	if c.sessions != nil {
		if _, err := c.cron.AddFunc(c.sessionSchedule, func() {
			if _, err := c.sessions.CleanupExpired(context.Background()); err != nil {
				c.log.Warn("session cleanup failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	if c.audit != nil && c.retention > 0 {
		if _, err := c.cron.AddFunc(c.auditSchedule, func() {
			if _, err := c.audit.CleanupOlderThan(context.Background(), c.retention); err != nil {
				c.log.Warn("audit cleanup failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	if c.invites != nil || c.resets != nil {
		if _, err := c.cron.AddFunc(c.tokenSchedule, func() {
			if err := c.cleanupTokens(context.Background()); err != nil {
				c.log.Warn("token cleanup failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	c.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce executes all configured cleanup routines sequentially. Primarily
// used in tests and during graceful shutdown.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error

	if c.sessions != nil {
		if _, err := c.sessions.CleanupExpired(ctx); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	if c.audit != nil && c.retention > 0 {
		if _, err := c.audit.CleanupOlderThan(ctx, c.retention); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	if err := c.cleanupTokens(ctx); err != nil {
		errs = multierr.Append(errs, err)
	}

	return errs
}

// cleanupTokens purges expired unredeemed invites and expired reset tokens.
// Redeemed invites are retained as the approval audit trail.
func (c *Cleaner) cleanupTokens(ctx context.Context) error {
	var errs error

	if c.invites != nil {
		if _, err := c.invites.CleanupExpired(ctx); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	if c.resets != nil {
		if _, err := c.resets.CleanupExpired(ctx); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	return errs
}
