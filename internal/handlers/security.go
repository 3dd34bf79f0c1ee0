package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rbigger/aiamp/internal/security"
	"github.com/rbigger/aiamp/pkg/response"
)

// SecurityHandler exposes the configuration posture audit to admins.
type SecurityHandler struct {
	audit *security.AuditService
}

// NewSecurityHandler constructs a SecurityHandler.
func NewSecurityHandler(audit *security.AuditService) *SecurityHandler {
	return &SecurityHandler{audit: audit}
}

// Run executes all posture checks and returns the aggregated result.
func (h *SecurityHandler) Run(c *gin.Context) {
	if _, ok := requireAdmin(c); !ok {
		return
	}

	result := h.audit.Run(requestContext(c))
	response.Success(c, http.StatusOK, result)
}
