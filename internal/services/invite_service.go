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
	"github.com/rbigger/aiamp/pkg/metrics"
)

const (
	defaultInviteExpiry     = 7 * 24 * time.Hour
	defaultInviteTokenBytes = 32
)

// Validation reasons surfaced to prospective signups. Validation is advisory:
// redemption re-checks atomically.
const (
	ReasonInviteInvalid = "Invalid invite token"
	ReasonInviteUsed    = "This invite has already been used"
	ReasonInviteExpired = "This invite has expired"
)

// InviteOption customises InviteService behaviour.
type InviteOption func(*InviteService)

// WithInviteBaseURL configures the base URL used to build signup links.
func WithInviteBaseURL(url string) InviteOption {
	return func(s *InviteService) {
		s.baseURL = strings.TrimRight(url, "/")
	}
}

// WithInviteExpiry overrides the invite token lifetime.
func WithInviteExpiry(d time.Duration) InviteOption {
	return func(s *InviteService) {
		if d > 0 {
			s.expiry = d
		}
	}
}

// WithInviteClock injects a custom clock primarily for testing.
func WithInviteClock(clock func() time.Time) InviteOption {
	return func(s *InviteService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// InviteService manages creation, validation, and single-use redemption of
// invite tokens.
type InviteService struct {
	db      *gorm.DB
	mailer  mail.Mailer
	baseURL string
	expiry  time.Duration
	now     func() time.Time
	log     *zap.Logger
}

// NewInviteService constructs an InviteService with the provided dependencies.
func NewInviteService(db *gorm.DB, mailer mail.Mailer, opts ...InviteOption) (*InviteService, error) {
	if db == nil {
		return nil, errors.New("invite service: db is required")
	}

	service := &InviteService{
		db:     db,
		mailer: mailer,
		expiry: defaultInviteExpiry,
		now:    time.Now,
		log:    logger.WithModule("invites"),
	}

	for _, opt := range opts {
		opt(service)
	}

	return service, nil
}

// CreateInviteInput holds optional attributes for a new invite.
type CreateInviteInput struct {
	Email     *string
	Notes     *string
	CreatedBy string
	SendEmail bool
}

// CreateInviteResult reports the created invite alongside email delivery state.
type CreateInviteResult struct {
	Invite     *models.Invite
	InviteURL  string
	EmailSent  bool
	EmailError string
}

// Create generates a new invite token with a 7 day expiry by default. When an
// email address is supplied and SendEmail is set, an invitation email is
// dispatched best-effort; delivery failure never fails the creation.
func (s *InviteService) Create(ctx context.Context, input CreateInviteInput) (*CreateInviteResult, error) {
	ctx = ensureContext(ctx)

	email := trimPtr(input.Email)
	if email != nil {
		normalised := normaliseEmail(*email)
		email = &normalised
	}

	token, err := crypto.GenerateHexToken(defaultInviteTokenBytes)
	if err != nil {
		return nil, apperrors.Wrap(err, "generate invite token")
	}

	now := s.now()
	invite := &models.Invite{
		Token:     token,
		Email:     email,
		Notes:     trimPtr(input.Notes),
		CreatedBy: strings.TrimSpace(input.CreatedBy),
		ExpiresAt: now.Add(s.expiry),
	}

	if err := s.db.WithContext(ctx).Create(invite).Error; err != nil {
		return nil, apperrors.Wrap(err, "create invite")
	}

	result := &CreateInviteResult{
		Invite:    invite,
		InviteURL: s.signupLink(token),
	}

	if input.SendEmail && email != nil && s.mailer != nil {
		message := mail.Message{
			To:      []string{*email},
			Subject: "You're Invited to AI-AMP",
			Body:    s.inviteBody(result.InviteURL),
		}
		if mailErr := s.mailer.Send(ctx, message); mailErr != nil {
			if !errors.Is(mailErr, mail.ErrSMTPDisabled) {
				result.EmailError = mailErr.Error()
				s.log.Warn("invite email delivery failed",
					zap.String("invite_id", invite.ID),
					zap.Error(mailErr))
			}
		} else {
			result.EmailSent = true
		}
	}

	return result, nil
}

// ValidationResult describes the advisory validity of an invite token.
type ValidationResult struct {
	Valid  bool
	Reason string
	Invite *models.Invite
}

// Validate looks up an invite by token and reports whether it could currently
/// be redeemed. Read-only: a valid result here can still lose the redemption
// race, so callers must treat it as advisory.
func (s *InviteService) Validate(ctx context.Context, token string) (*ValidationResult, error) {
	ctx = ensureContext(ctx)

	token = strings.TrimSpace(token)
	if token == "" {
		return nil, apperrors.NewBadRequest("Token is required")
	}

	var invite models.Invite
	err := s.db.WithContext(ctx).Where("token = ?", token).Take(&invite).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &ValidationResult{Valid: false, Reason: ReasonInviteInvalid}, nil
	}
	if err != nil {
		return nil, apperrors.Wrap(err, "find invite")
	}

	switch invite.StatusAt(s.now()) {
	case models.InviteStatusUsed:
		return &ValidationResult{Valid: false, Reason: ReasonInviteUsed}, nil
	case models.InviteStatusExpired:
		return &ValidationResult{Valid: false, Reason: ReasonInviteExpired}, nil
	}

	return &ValidationResult{Valid: true, Invite: &invite}, nil
}

// Redeem consumes an invite for the given account. The update is conditional
// on used_at still being NULL, so of N concurrent redeemers exactly one
// succeeds; the rest receive a conflict.
func (s *InviteService) Redeem(ctx context.Context, token, accountID string) error {
	ctx = ensureContext(ctx)

	token = strings.TrimSpace(token)
	accountID = strings.TrimSpace(accountID)
	if token == "" || accountID == "" {
		return apperrors.NewBadRequest("Token and account id are required")
	}

	now := s.now()

	result := s.db.WithContext(ctx).
		Model(&models.Invite{}).
		Where("token = ? AND used_at IS NULL", token).
		Updates(map[string]any{
			"used_at": now,
			"used_by": accountID,
		})
	if result.Error != nil {
		metrics.InviteRedemptions.WithLabelValues("error").Inc()
		return apperrors.Wrap(result.Error, "redeem invite")
	}

	if result.RowsAffected == 0 {
		metrics.InviteRedemptions.WithLabelValues("conflict").Inc()
		return apperrors.NewConflict("Invite already used or invalid")
	}

	metrics.InviteRedemptions.WithLabelValues("success").Inc()
	return nil
}

// Revoke deletes an invite by id, making its token permanently unusable.
func (s *InviteService) Revoke(ctx context.Context, id string) error {
	ctx = ensureContext(ctx)

	id = strings.TrimSpace(id)
	if id == "" {
		return apperrors.NewBadRequest("id is required")
	}

	result := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Invite{})
	if result.Error != nil {
		return apperrors.Wrap(result.Error, "revoke invite")
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// InviteSummary pairs an invite with its status derived at read time.
type InviteSummary struct {
	models.Invite
	Status models.InviteStatus `json:"status"`
}

// List returns all invites newest-first with derived status annotations.
func (s *InviteService) List(ctx context.Context) ([]InviteSummary, error) {
	ctx = ensureContext(ctx)

	var invites []models.Invite
	if err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Find(&invites).Error; err != nil {
		return nil, apperrors.Wrap(err, "list invites")
	}

	now := s.now()
	summaries := make([]InviteSummary, 0, len(invites))
	for _, invite := range invites {
		summaries = append(summaries, InviteSummary{
			Invite: invite,
			Status: invite.StatusAt(now),
		})
	}
	return summaries, nil
}

// CleanupExpired deletes invites that expired before the current time and
// were never redeemed. Redeemed invites are kept for attribution.
func (s *InviteService) CleanupExpired(ctx context.Context) (int64, error) {
	ctx = ensureContext(ctx)

	result := s.db.WithContext(ctx).
		Where("expires_at < ? AND used_at IS NULL", s.now()).
		Delete(&models.Invite{})
	if result.Error != nil {
		return 0, fmt.Errorf("invite service: cleanup expired: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (s *InviteService) signupLink(token string) string {
	if s.baseURL == "" {
		return "/signup?invite=" + token
	}
	return fmt.Sprintf("%s/signup?invite=%s", s.baseURL, token)
}

func (s *InviteService) inviteBody(link string) string {
	return fmt.Sprintf("Hello,\n\nYou have been invited to join AI-AMP. Use the following link to create your account:\n%s\n\nThis invitation expires in 7 days. If you did not expect this email, you can ignore it.\n", link)
}
