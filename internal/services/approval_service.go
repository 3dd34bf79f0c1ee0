package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/rbigger/aiamp/internal/models"
	apperrors "github.com/rbigger/aiamp/pkg/errors"
	"github.com/rbigger/aiamp/pkg/logger"
)

// ApprovalOption customises ApprovalService behaviour.
type ApprovalOption func(*ApprovalService)

// WithApprovalClock injects a custom clock primarily for testing.
func WithApprovalClock(clock func() time.Time) ApprovalOption {
	return func(s *ApprovalService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// ApprovalService drives the account approval state machine. Approval moves
// monotonically from pending to approved; there is no reverse transition.
type ApprovalService struct {
	db     *gorm.DB
	resets *PasswordResetService
	now    func() time.Time
	log    *zap.Logger
}

// NewApprovalService constructs an ApprovalService. The reset service is
// optional; without it approvals succeed but no setup email goes out.
func NewApprovalService(db *gorm.DB, resets *PasswordResetService, opts ...ApprovalOption) (*ApprovalService, error) {
	if db == nil {
		return nil, errors.New("approval service: db is required")
	}

	service := &ApprovalService{
		db:     db,
		resets: resets,
		now:    time.Now,
		log:    logger.WithModule("approval"),
	}

	for _, opt := range opts {
		opt(service)
	}

	return service, nil
}

// ApproveResult reports the approved account and the outcome of the
// credential-setup notification.
type ApproveResult struct {
	Account        *models.Account
	ResetEmailSent bool
	ResetError     string
}

// Approve marks the account approved, attributed to the approving admin's
// email, and sends the password-setup email. Notification failure is logged
// and reported but never rolls back the approval.
func (s *ApprovalService) Approve(ctx context.Context, accountID, approvedBy string) (*ApproveResult, error) {
	account, err := s.approve(ctx, accountID, strings.TrimSpace(approvedBy))
	if err != nil {
		return nil, err
	}

	result := &ApproveResult{Account: account}
	if s.resets != nil {
		result.ResetEmailSent, result.ResetError = s.resets.SendSetupEmail(ctx, account)
		if result.ResetError != "" {
			s.log.Warn("approval notification failed",
				zap.String("account_id", account.ID),
				zap.String("reason", result.ResetError))
		}
	}

	return result, nil
}

// AutoApproveViaInvite approves an account as part of invite redemption,
// attributing the approval to the invite mechanism rather than a human admin.
func (s *ApprovalService) AutoApproveViaInvite(ctx context.Context, accountID string) (*models.Account, error) {
	return s.approve(ctx, accountID, models.ApprovedByInvite)
}

func (s *ApprovalService) approve(ctx context.Context, accountID, approvedBy string) (*models.Account, error) {
	ctx = ensureContext(ctx)

	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return nil, apperrors.NewBadRequest("userId is required")
	}

	var account models.Account
	err := s.db.WithContext(ctx).Where("id = ?", accountID).Take(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, apperrors.Wrap(err, "find account")
	}

	now := s.now()

	// Re-approving an approved account is not an error; the flag is
	// idempotent but each call records its own timestamp and approver.
	updates := map[string]any{
		"approved":    true,
		"approved_at": now,
		"approved_by": approvedBy,
	}
	if err := s.db.WithContext(ctx).Model(&account).Updates(updates).Error; err != nil {
		return nil, apperrors.Wrap(err, "approve account")
	}

	account.Approved = true
	account.ApprovedAt = &now
	account.ApprovedBy = approvedBy

	return &account, nil
}

// SetRole updates an account's role after validating it against the closed
// role set.
func (s *ApprovalService) SetRole(ctx context.Context, accountID string, role models.Role) (*models.Account, error) {
	ctx = ensureContext(ctx)

	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return nil, apperrors.NewBadRequest("userId and role are required")
	}
	if !role.Valid() {
		return nil, apperrors.NewBadRequest("Invalid role")
	}

	var account models.Account
	err := s.db.WithContext(ctx).Where("id = ?", accountID).Take(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, apperrors.Wrap(err, "find account")
	}

	if err := s.db.WithContext(ctx).Model(&account).Update("role", role).Error; err != nil {
		return nil, apperrors.Wrap(err, "update role")
	}

	account.Role = role
	return &account, nil
}

// ListPending returns unapproved accounts oldest-first, the order admins
// review them in.
func (s *ApprovalService) ListPending(ctx context.Context) ([]models.Account, error) {
	ctx = ensureContext(ctx)

	var accounts []models.Account
	if err := s.db.WithContext(ctx).
		Where("approved = ?", false).
		Order("created_at ASC").
		Find(&accounts).Error; err != nil {
		return nil, apperrors.Wrap(err, "list pending accounts")
	}
	return accounts, nil
}
