package monitoring

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/rbigger/aiamp/pkg/mail"
)

// ProbeStatus encodes the outcome of a health probe.
type ProbeStatus string

const (
	StatusUp       ProbeStatus = "up"
	StatusDown     ProbeStatus = "down"
	StatusDegraded ProbeStatus = "degraded"
)

// ProbeResult captures a single dependency check outcome.
type ProbeResult struct {
	Component string        `json:"component"`
	Status    ProbeStatus   `json:"status"`
	Details   string        `json:"details,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// HealthReport aggregates probe results for a readiness evaluation.
type HealthReport struct {
	Success bool          `json:"success"`
	Status  ProbeStatus   `json:"status"`
	Checks  []ProbeResult `json:"checks"`
}

// Check encapsulates a single dependency probe.
type Check struct {
	Name string
	Run  func(ctx context.Context) ProbeResult
}

// Checker executes a fixed set of dependency probes.
type Checker struct {
	checks []Check
}

// NewChecker builds a Checker over the supplied probes, skipping unnamed entries.
func NewChecker(checks ...Check) *Checker {
	c := &Checker{}
	for _, check := range checks {
		if check.Name == "" || check.Run == nil {
			continue
		}
		c.checks = append(c.checks, check)
	}
	return c
}

// Evaluate executes every probe and aggregates the worst status observed.
func (c *Checker) Evaluate(ctx context.Context) HealthReport {
	report := HealthReport{
		Success: true,
		Status:  StatusUp,
		Checks:  make([]ProbeResult, 0, len(c.checks)),
	}

	for _, check := range c.checks {
		result := runCheck(ctx, check)
		report.Checks = append(report.Checks, result)

		switch result.Status {
		case StatusDown:
			report.Success = false
			report.Status = StatusDown
		case StatusDegraded:
			if report.Status != StatusDown {
				report.Success = false
				report.Status = StatusDegraded
			}
		}
	}
	return report
}

func runCheck(ctx context.Context, check Check) (result ProbeResult) {
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()

	defer func() {
		if rec := recover(); rec != nil {
			details := "panic recovered"
			switch v := rec.(type) {
			case string:
				details = v
			case error:
				details = v.Error()
			}
			result = ProbeResult{
				Component: check.Name,
				Status:    StatusDown,
				Details:   details,
				Duration:  time.Since(start),
			}
		}
	}()

	result = check.Run(ctx)

	if result.Status == "" {
		result.Status = StatusDown
	}
	if result.Duration == 0 {
		result.Duration = time.Since(start)
	}
	result.Component = check.Name
	return result
}

// resultFromError converts an error into a ProbeResult with sensible defaults.
func resultFromError(component string, err error, duration time.Duration) ProbeResult {
	if err == nil {
		return ProbeResult{Component: component, Status: StatusUp, Duration: duration}
	}

	status := StatusDown
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		status = StatusDegraded
	}

	return ProbeResult{
		Component: component,
		Status:    status,
		Details:   err.Error(),
		Duration:  duration,
	}
}

const databaseProbeTimeout = 2 * time.Second

// DatabaseProbe pings the configured database handle.
func DatabaseProbe(db *gorm.DB) Check {
	return Check{Name: "database", Run: func(ctx context.Context) ProbeResult {
		start := time.Now()
		if db == nil {
			return ProbeResult{
				Status:  StatusDown,
				Details: "database not configured",
			}
		}

		sqlDB, err := db.DB()
		if err != nil {
			return resultFromError("database", err, time.Since(start))
		}

		probeCtx, cancel := context.WithTimeout(ctx, databaseProbeTimeout)
		defer cancel()

		if err := sqlDB.PingContext(probeCtx); err != nil {
			return resultFromError("database", err, time.Since(start))
		}

		return ProbeResult{Status: StatusUp, Duration: time.Since(start)}
	}}
}

// MailProbe reports whether outbound email delivery is configured. A disabled
// mailer degrades rather than fails: the API still works, but invite and
// password reset emails are silently skipped.
func MailProbe(settings mail.SMTPSettings) Check {
	return Check{Name: "mail", Run: func(ctx context.Context) ProbeResult {
		if !settings.Enabled {
			return ProbeResult{
				Status:  StatusDegraded,
				Details: "smtp delivery disabled",
			}
		}
		if settings.Host == "" || settings.Port == 0 {
			return ProbeResult{
				Status:  StatusDown,
				Details: "smtp enabled without host or port",
			}
		}
		return ProbeResult{Status: StatusUp}
	}}
}
