package monitoring

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rbigger/aiamp/internal/database/testutil"
	"github.com/rbigger/aiamp/pkg/mail"
)

func TestCheckerEvaluateAggregatesWorstStatus(t *testing.T) {
	checker := NewChecker(
		Check{Name: "ok", Run: func(context.Context) ProbeResult {
			return ProbeResult{Status: StatusUp}
		}},
		Check{Name: "slow", Run: func(context.Context) ProbeResult {
			return ProbeResult{Status: StatusDegraded, Details: "lagging"}
		}},
	)

	report := checker.Evaluate(context.Background())
	require.False(t, report.Success)
	require.Equal(t, StatusDegraded, report.Status)
	require.Len(t, report.Checks, 2)
	require.Equal(t, "slow", report.Checks[1].Component)
}

func TestCheckerRecoversFromPanickingProbe(t *testing.T) {
	checker := NewChecker(Check{Name: "boom", Run: func(context.Context) ProbeResult {
		panic("probe exploded")
	}})

	report := checker.Evaluate(context.Background())
	require.False(t, report.Success)
	require.Equal(t, StatusDown, report.Status)
	require.Equal(t, "probe exploded", report.Checks[0].Details)
}

func TestDatabaseProbe(t *testing.T) {
	db := testutil.MustOpenTestDB(t)

	result := runCheck(context.Background(), DatabaseProbe(db))
	require.Equal(t, StatusUp, result.Status)

	result = runCheck(context.Background(), DatabaseProbe(nil))
	require.Equal(t, StatusDown, result.Status)
}

func TestMailProbe(t *testing.T) {
	result := runCheck(context.Background(), MailProbe(mail.SMTPSettings{}))
	require.Equal(t, StatusDegraded, result.Status)

	result = runCheck(context.Background(), MailProbe(mail.SMTPSettings{Enabled: true}))
	require.Equal(t, StatusDown, result.Status)

	result = runCheck(context.Background(), MailProbe(mail.SMTPSettings{Enabled: true, Host: "smtp.example.com", Port: 587}))
	require.Equal(t, StatusUp, result.Status)
}
