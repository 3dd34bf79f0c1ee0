package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/rbigger/aiamp/internal/models"
	"github.com/rbigger/aiamp/pkg/crypto"
	apperrors "github.com/rbigger/aiamp/pkg/errors"
	"github.com/rbigger/aiamp/pkg/logger"
	"github.com/rbigger/aiamp/pkg/metrics"
)

const apiKeySecretBytes = 32

// APIKeyOption customises APIKeyService behaviour.
type APIKeyOption func(*APIKeyService)

// WithAPIKeyClock injects a custom clock primarily for testing.
func WithAPIKeyClock(clock func() time.Time) APIKeyOption {
	return func(s *APIKeyService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithSynchronousTouch makes last_used_at updates run inline instead of in a
// background goroutine. Used by tests to observe the update deterministically.
func WithSynchronousTouch() APIKeyOption {
	return func(s *APIKeyService) {
		s.asyncTouch = false
	}
}

// APIKeyService issues and authenticates scoped API keys for non-interactive
// callers. Secrets are never stored; lookup is by SHA-256 digest.
type APIKeyService struct {
	db         *gorm.DB
	now        func() time.Time
	asyncTouch bool
	log        *zap.Logger
}

// NewAPIKeyService constructs an APIKeyService.
func NewAPIKeyService(db *gorm.DB, opts ...APIKeyOption) (*APIKeyService, error) {
	if db == nil {
		return nil, errors.New("api key service: db is required")
	}

	service := &APIKeyService{
		db:         db,
		now:        time.Now,
		asyncTouch: true,
		log:        logger.WithModule("apikeys"),
	}

	for _, opt := range opts {
		opt(service)
	}

	return service, nil
}

// CreateAPIKeyInput describes a new key request.
type CreateAPIKeyInput struct {
	AgentName   string
	Permissions []string
	ExpiresAt   *time.Time
	CreatedBy   string
}

// GeneratedAPIKey pairs the stored record with the plaintext secret, which is
// shown exactly once at creation time.
type GeneratedAPIKey struct {
	Key      *models.APIKey
	PlainKey string
}

// Create mints a new API key for an agent. Permissions are validated against
// the closed scope set and deduplicated.
func (s *APIKeyService) Create(ctx context.Context, input CreateAPIKeyInput) (*GeneratedAPIKey, error) {
	ctx = ensureContext(ctx)

	agentName := strings.TrimSpace(input.AgentName)
	if agentName == "" {
		return nil, apperrors.NewBadRequest("agent_name is required")
	}
	if len(input.Permissions) == 0 {
		return nil, apperrors.NewBadRequest("at least one permission is required")
	}

	perms := make([]string, 0, len(input.Permissions))
	seen := make(map[string]struct{}, len(input.Permissions))
	for _, perm := range input.Permissions {
		perm = strings.TrimSpace(perm)
		if perm == "" {
			continue
		}
		if !models.ValidPermissions[perm] {
			return nil, apperrors.NewBadRequest("Invalid permission: " + perm)
		}
		if _, dup := seen[perm]; dup {
			continue
		}
		seen[perm] = struct{}{}
		perms = append(perms, perm)
	}
	if len(perms) == 0 {
		return nil, apperrors.NewBadRequest("at least one permission is required")
	}

	if input.ExpiresAt != nil && input.ExpiresAt.Before(s.now()) {
		return nil, apperrors.NewBadRequest("expires_at must be in the future")
	}

	secret, err := crypto.GenerateHexToken(apiKeySecretBytes)
	if err != nil {
		return nil, apperrors.Wrap(err, "generate api key")
	}

	key := &models.APIKey{
		AgentName:   agentName,
		KeyHash:     crypto.HashToken(secret),
		CreatedBy:   strings.TrimSpace(input.CreatedBy),
		Permissions: datatypes.NewJSONSlice(perms),
		ExpiresAt:   input.ExpiresAt,
	}

	if err := s.db.WithContext(ctx).Create(key).Error; err != nil {
		return nil, apperrors.Wrap(err, "create api key")
	}

	return &GeneratedAPIKey{Key: key, PlainKey: secret}, nil
}

// AgentIdentity is the acting identity resolved from a valid API key. Writes
// performed under it attribute authorship to the agent name, never to a
// human account.
type AgentIdentity struct {
	KeyID       string
	AgentName   string
	Permissions []string
}

// Authenticate resolves a presented secret to an agent identity and checks
// the requested scope. Unknown and expired keys produce the same 401 so
// callers cannot distinguish the failure modes. A missing scope yields a 403
// naming the scope. The last_used_at touch is best-effort and never fails
// the request.
func (s *APIKeyService) Authenticate(ctx context.Context, secret, scope string) (*AgentIdentity, error) {
	ctx = ensureContext(ctx)

	secret = strings.TrimSpace(secret)
	if secret == "" {
		metrics.APIKeyChecks.WithLabelValues("unauthorized").Inc()
		return nil, apperrors.ErrUnauthorized
	}

	var key models.APIKey
	err := s.db.WithContext(ctx).
		Where("key_hash = ?", crypto.HashToken(secret)).
		Take(&key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		metrics.APIKeyChecks.WithLabelValues("unauthorized").Inc()
		return nil, invalidAPIKey()
	}
	if err != nil {
		return nil, apperrors.Wrap(err, "find api key")
	}

	if key.ExpiredAt(s.now()) {
		metrics.APIKeyChecks.WithLabelValues("unauthorized").Inc()
		return nil, invalidAPIKey()
	}

	s.touchLastUsed(key.ID)

	if scope != "" && !key.HasPermission(scope) {
		metrics.APIKeyChecks.WithLabelValues("denied").Inc()
		return nil, apperrors.NewForbidden("Permission denied: " + scope + " required")
	}

	metrics.APIKeyChecks.WithLabelValues("allowed").Inc()
	return &AgentIdentity{
		KeyID:       key.ID,
		AgentName:   key.AgentName,
		Permissions: append([]string(nil), key.Permissions...),
	}, nil
}

// List returns all API keys newest-first. Key hashes never leave the service.
func (s *APIKeyService) List(ctx context.Context) ([]models.APIKey, error) {
	ctx = ensureContext(ctx)

	var keys []models.APIKey
	if err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Find(&keys).Error; err != nil {
		return nil, apperrors.Wrap(err, "list api keys")
	}
	return keys, nil
}

// Revoke deletes an API key by id.
func (s *APIKeyService) Revoke(ctx context.Context, id string) error {
	ctx = ensureContext(ctx)

	id = strings.TrimSpace(id)
	if id == "" {
		return apperrors.NewBadRequest("id is required")
	}

	result := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.APIKey{})
	if result.Error != nil {
		return apperrors.Wrap(result.Error, "revoke api key")
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// touchLastUsed records the key's use. Failures are logged, never surfaced:
// a metrics write must not block or fail an agent request.
func (s *APIKeyService) touchLastUsed(keyID string) {
	update := func() {
		now := s.now()
		if err := s.db.Model(&models.APIKey{}).
			Where("id = ?", keyID).
			Update("last_used_at", now).Error; err != nil {
			s.log.Warn("update last_used_at failed",
				zap.String("key_id", keyID),
				zap.Error(err))
		}
	}

	if s.asyncTouch {
		go update()
		return
	}
	update()
}

func invalidAPIKey() *apperrors.AppError {
	return &apperrors.AppError{
		Code:       apperrors.ErrUnauthorized.Code,
		Message:    "Invalid or expired API key",
		StatusCode: apperrors.ErrUnauthorized.StatusCode,
	}
}
