package maintenance

import (
	"context"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	iauth "github.com/rbigger/aiamp/internal/auth"
	testutil "github.com/rbigger/aiamp/internal/database/testutil"
	"github.com/rbigger/aiamp/internal/models"
	"github.com/rbigger/aiamp/internal/services"
	"github.com/rbigger/aiamp/pkg/crypto"
)

func seedAccount(t *testing.T, db *gorm.DB, tag string) *models.Account {
	t.Helper()

	hash, err := crypto.HashPassword("password")
	require.NoError(t, err)

	account := &models.Account{
		Email:    tag + "@example.com",
		FullName: "Account " + tag,
		Password: hash,
		Approved: true,
	}
	require.NoError(t, db.Create(account).Error)
	return account
}

func TestCleanerRunOnce(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	now := time.Date(2025, 5, 20, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	jwtSvc, err := iauth.NewJWTService(iauth.JWTConfig{
		Secret:         "cleanup-secret",
		Issuer:         "test-suite",
		AccessTokenTTL: time.Hour,
	})
	require.NoError(t, err)

	sessionSvc, err := iauth.NewSessionService(db, jwtSvc, iauth.SessionConfig{
		RefreshTokenTTL: time.Hour,
		RefreshLength:   16,
		Clock:           clock,
	})
	require.NoError(t, err)

	inviteSvc, err := services.NewInviteService(db, nil, services.WithInviteClock(clock))
	require.NoError(t, err)

	resetSvc, err := services.NewPasswordResetService(db, nil, services.WithResetClock(clock))
	require.NoError(t, err)

	auditSvc, err := services.NewAuditService(db)
	require.NoError(t, err)

	account := seedAccount(t, db, "cleanup")

	_, expiredSession, err := sessionSvc.CreateSession(account.ID, iauth.SessionMetadata{})
	require.NoError(t, err)
	require.NoError(t, db.Model(&models.Session{}).Where("id = ?", expiredSession.ID).
		Update("expires_at", now.Add(-2*time.Hour)).Error)

	_, activeSession, err := sessionSvc.CreateSession(account.ID, iauth.SessionMetadata{})
	require.NoError(t, err)

	// Expired pending invite goes; expired redeemed invite stays as the
	// approval audit trail.
	pending, err := inviteSvc.Create(context.Background(), services.CreateInviteInput{CreatedBy: "admin"})
	require.NoError(t, err)
	redeemed, err := inviteSvc.Create(context.Background(), services.CreateInviteInput{CreatedBy: "admin"})
	require.NoError(t, err)
	require.NoError(t, inviteSvc.Redeem(context.Background(), redeemed.Invite.Token, account.ID))
	for _, id := range []string{pending.Invite.ID, redeemed.Invite.ID} {
		require.NoError(t, db.Model(&models.Invite{}).Where("id = ?", id).
			Update("expires_at", now.Add(-time.Hour)).Error)
	}

	_, err = resetSvc.Issue(context.Background(), account.ID)
	require.NoError(t, err)
	require.NoError(t, db.Model(&models.PasswordResetToken{}).
		Where("account_id = ?", account.ID).
		Update("expires_at", now.Add(-time.Hour)).Error)

	require.NoError(t, auditSvc.Log(context.Background(), services.AuditEntry{
		Action: "test.action",
		Result: "success",
	}))
	require.NoError(t, db.Model(&models.AuditLog{}).
		Where("action = ?", "test.action").
		Update("created_at", now.AddDate(0, 0, -10)).Error)

	c := NewCleaner(sessionSvc, inviteSvc, resetSvc, auditSvc,
		WithAuditRetentionDays(7),
		WithCron(cron.New(cron.WithLogger(cron.DiscardLogger))),
	)

	require.NoError(t, c.RunOnce(context.Background()))

	var session models.Session
	require.ErrorIs(t, db.First(&session, "id = ?", expiredSession.ID).Error, gorm.ErrRecordNotFound)
	require.NoError(t, db.First(&session, "id = ?", activeSession.ID).Error)

	var invites []models.Invite
	require.NoError(t, db.Find(&invites).Error)
	require.Len(t, invites, 1)
	require.Equal(t, redeemed.Invite.ID, invites[0].ID)

	var count int64
	require.NoError(t, db.Model(&models.PasswordResetToken{}).Count(&count).Error)
	require.Zero(t, count)
	require.NoError(t, db.Model(&models.AuditLog{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestCleanerRunOnceWithNilDependencies(t *testing.T) {
	c := NewCleaner(nil, nil, nil, nil,
		WithCron(cron.New(cron.WithLogger(cron.DiscardLogger))))

	require.NoError(t, c.RunOnce(context.Background()))
	require.NoError(t, c.Start())
	<-c.Stop().Done()
}
