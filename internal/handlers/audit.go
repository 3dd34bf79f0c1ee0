package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rbigger/aiamp/internal/services"
	appErrors "github.com/rbigger/aiamp/pkg/errors"
	"github.com/rbigger/aiamp/pkg/response"
)

type AuditHandler struct {
	svc *services.AuditService
}

func NewAuditHandler(svc *services.AuditService) *AuditHandler {
	return &AuditHandler{svc: svc}
}

// GET /api/admin/audit
func (h *AuditHandler) List(c *gin.Context) {
	if _, ok := requireAdmin(c); !ok {
		return
	}

	page := parseIntQuery(c, "page", 1)
	per := parseIntQuery(c, "per_page", 50)

	var filters services.AuditFilters
	filters.AccountID = c.Query("account_id")
	filters.Action = c.Query("action")
	filters.Result = c.Query("result")
	filters.Resource = c.Query("resource")

	if s := c.Query("since"); s != "" {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			filters.Since = &t
		}
	}
	if u := c.Query("until"); u != "" {
		if t, err := time.Parse(time.RFC3339, u); err == nil {
			filters.Until = &t
		}
	}

	logs, total, err := h.svc.List(requestContext(c), services.AuditListOptions{Page: page, PageSize: per, Filters: filters})
	if err != nil {
		response.Error(c, appErrors.ErrInternalServer)
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, logs, &response.Meta{Page: page, PerPage: per, Total: int(total)})
}
