package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/rbigger/aiamp/internal/models"
	"github.com/rbigger/aiamp/pkg/crypto"
	apperrors "github.com/rbigger/aiamp/pkg/errors"
	"github.com/rbigger/aiamp/pkg/logger"
	"github.com/rbigger/aiamp/pkg/mail"
)

const (
	defaultResetTokenTTL   = 48 * time.Hour
	defaultResetTokenBytes = 32
)

// ErrResetTokenInvalid covers unknown, expired, and consumed reset tokens.
// The three cases are indistinguishable to callers on purpose.
var ErrResetTokenInvalid = errors.New("password reset: invalid token")

// PasswordResetOption customises PasswordResetService behaviour.
type PasswordResetOption func(*PasswordResetService)

// WithResetBaseURL configures the base URL used to build set-password links.
func WithResetBaseURL(url string) PasswordResetOption {
	return func(s *PasswordResetService) {
		s.baseURL = strings.TrimRight(url, "/")
	}
}

// WithResetTTL overrides the reset token lifetime.
func WithResetTTL(d time.Duration) PasswordResetOption {
	return func(s *PasswordResetService) {
		if d > 0 {
			s.ttl = d
		}
	}
}

// WithResetClock injects a custom clock primarily for testing.
func WithResetClock(clock func() time.Time) PasswordResetOption {
	return func(s *PasswordResetService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// PasswordResetService issues and consumes password reset tokens. Tokens are
// stored hashed; the plaintext only travels in the emailed link.
type PasswordResetService struct {
	db      *gorm.DB
	mailer  mail.Mailer
	baseURL string
	ttl     time.Duration
	now     func() time.Time
	log     *zap.Logger
}

// NewPasswordResetService constructs a PasswordResetService.
func NewPasswordResetService(db *gorm.DB, mailer mail.Mailer, opts ...PasswordResetOption) (*PasswordResetService, error) {
	if db == nil {
		return nil, errors.New("password reset service: db is required")
	}

	service := &PasswordResetService{
		db:     db,
		mailer: mailer,
		ttl:    defaultResetTokenTTL,
		now:    time.Now,
		log:    logger.WithModule("password-reset"),
	}

	for _, opt := range opts {
		opt(service)
	}

	return service, nil
}

// Issue creates a reset token for the account and returns the plaintext token.
func (s *PasswordResetService) Issue(ctx context.Context, accountID string) (string, error) {
	ctx = ensureContext(ctx)

	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return "", apperrors.NewBadRequest("account id is required")
	}

	token, err := crypto.GenerateHexToken(defaultResetTokenBytes)
	if err != nil {
		return "", apperrors.Wrap(err, "generate reset token")
	}

	record := &models.PasswordResetToken{
		AccountID: accountID,
		TokenHash: crypto.HashToken(token),
		ExpiresAt: s.now().Add(s.ttl),
	}

	if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
		return "", apperrors.Wrap(err, "store reset token")
	}

	return token, nil
}

// SendSetupEmail issues a reset token and mails the set-password link to the
// account. Returns whether the email went out; delivery failure is reported,
// not escalated.
func (s *PasswordResetService) SendSetupEmail(ctx context.Context, account *models.Account) (sent bool, deliveryErr string) {
	ctx = ensureContext(ctx)

	if account == nil || strings.TrimSpace(account.Email) == "" {
		return false, "account email is missing"
	}

	token, err := s.Issue(ctx, account.ID)
	if err != nil {
		s.log.Warn("issue reset token failed",
			zap.String("account_id", account.ID),
			zap.Error(err))
		return false, err.Error()
	}

	if s.mailer == nil {
		return false, "mailer not configured"
	}

	message := mail.Message{
		To:      []string{account.Email},
		Subject: "Set your AI-AMP password",
		Body: fmt.Sprintf(
			"Hello %s,\n\nYour AI-AMP account is ready. Use the following link to set your password:\n%s\n\nThe link expires in %d hours.\n",
			displayName(account), s.setPasswordLink(token), int(s.ttl.Hours())),
	}

	if mailErr := s.mailer.Send(ctx, message); mailErr != nil {
		if errors.Is(mailErr, mail.ErrSMTPDisabled) {
			return false, ""
		}
		s.log.Warn("password setup email delivery failed",
			zap.String("account_id", account.ID),
			zap.Error(mailErr))
		return false, mailErr.Error()
	}

	return true, ""
}

// Consume validates a reset token and updates the account password. The token
// is marked used in the same transaction as the password change.
func (s *PasswordResetService) Consume(ctx context.Context, token, newPassword string) error {
	ctx = ensureContext(ctx)

	token = strings.TrimSpace(token)
	if token == "" || newPassword == "" {
		return apperrors.NewBadRequest("token and password are required")
	}

	hash, err := crypto.HashPassword(newPassword)
	if err != nil {
		return apperrors.Wrap(err, "hash password")
	}

	now := s.now()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var record models.PasswordResetToken
		err := tx.Where("token_hash = ?", crypto.HashToken(token)).Take(&record).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrResetTokenInvalid
		}
		if err != nil {
			return fmt.Errorf("password reset: find token: %w", err)
		}

		if !record.Usable(now) {
			return ErrResetTokenInvalid
		}

		if err := tx.Model(&models.Account{}).
			Where("id = ?", record.AccountID).
			Update("password", hash).Error; err != nil {
			return fmt.Errorf("password reset: update password: %w", err)
		}

		if err := tx.Model(&record).Update("used_at", now).Error; err != nil {
			return fmt.Errorf("password reset: mark used: %w", err)
		}

		return nil
	})
}

// CleanupExpired removes reset tokens past their expiry.
func (s *PasswordResetService) CleanupExpired(ctx context.Context) (int64, error) {
	ctx = ensureContext(ctx)

	result := s.db.WithContext(ctx).
		Where("expires_at < ?", s.now()).
		Delete(&models.PasswordResetToken{})
	if result.Error != nil {
		return 0, fmt.Errorf("password reset: cleanup expired: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (s *PasswordResetService) setPasswordLink(token string) string {
	if s.baseURL == "" {
		return "/set-password?token=" + token
	}
	return fmt.Sprintf("%s/set-password?token=%s", s.baseURL, token)
}

func displayName(account *models.Account) string {
	if name := strings.TrimSpace(account.FullName); name != "" {
		return name
	}
	return "there"
}
