package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/rbigger/aiamp/internal/models"
	"github.com/rbigger/aiamp/pkg/crypto"
	apperrors "github.com/rbigger/aiamp/pkg/errors"
	"github.com/rbigger/aiamp/pkg/metrics"
)

// AccountService owns account records: creation at signup, credential
// verification at login, and lookups for the gate middleware.
type AccountService struct {
	db *gorm.DB
}

// NewAccountService constructs an AccountService.
func NewAccountService(db *gorm.DB) (*AccountService, error) {
	if db == nil {
		return nil, errors.New("account service: db is required")
	}
	return &AccountService{db: db}, nil
}

// CreateAccountInput describes a signup request.
type CreateAccountInput struct {
	Email    string
	FullName string
	Password string
}

// Create registers a new account in the pending (unapproved) state.
func (s *AccountService) Create(ctx context.Context, input CreateAccountInput) (*models.Account, error) {
	ctx = ensureContext(ctx)

	email := normaliseEmail(input.Email)
	if email == "" || input.Password == "" {
		return nil, apperrors.NewBadRequest("email and password are required")
	}

	hash, err := crypto.HashPassword(input.Password)
	if err != nil {
		return nil, apperrors.Wrap(err, "hash password")
	}

	account := &models.Account{
		Email:    email,
		FullName: strings.TrimSpace(input.FullName),
		Password: hash,
		Role:     models.RoleUser,
	}

	if err := s.db.WithContext(ctx).Create(account).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, apperrors.NewConflict("An account with this email already exists")
		}
		return nil, apperrors.Wrap(err, "create account")
	}

	return account, nil
}

// VerifyCredentials checks an email/password pair, returning the account on
// success. Unknown email and wrong password are indistinguishable.
func (s *AccountService) VerifyCredentials(ctx context.Context, email, password string) (*models.Account, error) {
	ctx = ensureContext(ctx)

	account, err := s.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			metrics.AuthAttempts.WithLabelValues("failure").Inc()
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, err
	}

	if !crypto.VerifyPassword(account.Password, password) {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		return nil, apperrors.ErrInvalidCredentials
	}

	metrics.AuthAttempts.WithLabelValues("success").Inc()
	return account, nil
}

// FindByEmail fetches an account by normalised email.
func (s *AccountService) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	ctx = ensureContext(ctx)

	email = normaliseEmail(email)
	if email == "" {
		return nil, apperrors.NewBadRequest("email is required")
	}

	var account models.Account
	err := s.db.WithContext(ctx).Where("email = ?", email).Take(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, apperrors.Wrap(err, "find account")
	}
	return &account, nil
}

// GetByID fetches an account by id.
func (s *AccountService) GetByID(ctx context.Context, id string) (*models.Account, error) {
	ctx = ensureContext(ctx)

	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperrors.NewBadRequest("id is required")
	}

	var account models.Account
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, apperrors.Wrap(err, "find account")
	}
	return &account, nil
}

// List returns all accounts newest-first.
func (s *AccountService) List(ctx context.Context) ([]models.Account, error) {
	ctx = ensureContext(ctx)

	var accounts []models.Account
	if err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Find(&accounts).Error; err != nil {
		return nil, apperrors.Wrap(err, "list accounts")
	}
	return accounts, nil
}

// Delete removes an account. Used to unwind a signup whose invite redemption
// lost the race; there is no admin-facing account deletion surface.
func (s *AccountService) Delete(ctx context.Context, id string) error {
	ctx = ensureContext(ctx)

	id = strings.TrimSpace(id)
	if id == "" {
		return apperrors.NewBadRequest("id is required")
	}

	result := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Account{})
	if result.Error != nil {
		return apperrors.Wrap(result.Error, "delete account")
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}
