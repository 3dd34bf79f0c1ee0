package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rbigger/aiamp/internal/models"
	"github.com/rbigger/aiamp/internal/services"
	appErrors "github.com/rbigger/aiamp/pkg/errors"
	"github.com/rbigger/aiamp/pkg/response"
)

// APIKeyHandler administers agent API keys. Admin-only surface; the plaintext
// secret appears exactly once, in the create response.
type APIKeyHandler struct {
	keys  *services.APIKeyService
	audit *services.AuditService
}

func NewAPIKeyHandler(keys *services.APIKeyService, audit *services.AuditService) *APIKeyHandler {
	return &APIKeyHandler{keys: keys, audit: audit}
}

type createAPIKeyRequest struct {
	AgentName   string     `json:"agent_name" validate:"required,max=128"`
	Permissions []string   `json:"permissions" validate:"required,min=1"`
	ExpiresAt   *time.Time `json:"expires_at" validate:"omitempty"`
}

type apiKeyDTO struct {
	ID          string     `json:"id"`
	AgentName   string     `json:"agent_name"`
	Permissions []string   `json:"permissions"`
	CreatedBy   string     `json:"created_by,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	LastUsedAt  *time.Time `json:"last_used_at,omitempty"`
}

func toAPIKeyDTO(key *models.APIKey) apiKeyDTO {
	return apiKeyDTO{
		ID:          key.ID,
		AgentName:   key.AgentName,
		Permissions: append([]string(nil), key.Permissions...),
		CreatedBy:   key.CreatedBy,
		CreatedAt:   key.CreatedAt,
		ExpiresAt:   key.ExpiresAt,
		LastUsedAt:  key.LastUsedAt,
	}
}

// POST /api/admin/api-keys
func (h *APIKeyHandler) Create(c *gin.Context) {
	admin, ok := requireAdmin(c)
	if !ok {
		return
	}

	var req createAPIKeyRequest
	if !bindAndValidate(c, &req) {
		return
	}

	ctx := requestContext(c)

	generated, err := h.keys.Create(ctx, services.CreateAPIKeyInput{
		AgentName:   req.AgentName,
		Permissions: req.Permissions,
		ExpiresAt:   req.ExpiresAt,
		CreatedBy:   admin.Email,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	if h.audit != nil {
		_ = h.audit.Log(ctx, services.AuditEntry{
			AccountID: &admin.ID,
			Email:     admin.Email,
			Action:    "apikey.create",
			Resource:  "api_key",
			Result:    "success",
			Metadata: map[string]any{
				"key_id":     generated.Key.ID,
				"agent_name": generated.Key.AgentName,
			},
		})
	}

	response.Success(c, http.StatusCreated, gin.H{
		"api_key": toAPIKeyDTO(generated.Key),
		"key":     generated.PlainKey,
		"message": "Store this key now; it cannot be retrieved again.",
	})
}

// GET /api/admin/api-keys
func (h *APIKeyHandler) List(c *gin.Context) {
	if _, ok := requireAdmin(c); !ok {
		return
	}

	keys, err := h.keys.List(requestContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]apiKeyDTO, 0, len(keys))
	for i := range keys {
		items = append(items, toAPIKeyDTO(&keys[i]))
	}

	response.Success(c, http.StatusOK, gin.H{"api_keys": items})
}

// DELETE /api/admin/api-keys/:id
func (h *APIKeyHandler) Revoke(c *gin.Context) {
	admin, ok := requireAdmin(c)
	if !ok {
		return
	}

	keyID := c.Param("id")
	if keyID == "" {
		response.Error(c, appErrors.NewBadRequest("Key ID is required"))
		return
	}

	if err := h.keys.Revoke(requestContext(c), keyID); err != nil {
		response.Error(c, err)
		return
	}

	if h.audit != nil {
		_ = h.audit.Log(requestContext(c), services.AuditEntry{
			AccountID: &admin.ID,
			Email:     admin.Email,
			Action:    "apikey.revoke",
			Resource:  "api_key",
			Result:    "success",
			Metadata:  map[string]any{"key_id": keyID},
		})
	}

	response.Success(c, http.StatusOK, gin.H{"revoked": true})
}
