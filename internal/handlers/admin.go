package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rbigger/aiamp/internal/middleware"
	"github.com/rbigger/aiamp/internal/models"
	"github.com/rbigger/aiamp/internal/services"
	appErrors "github.com/rbigger/aiamp/pkg/errors"
	"github.com/rbigger/aiamp/pkg/response"
)

// requireAdmin resolves the gate-attached account and checks the admin role.
// The gate authenticates admin paths but leaves the role check to handlers.
func requireAdmin(c *gin.Context) (*models.Account, bool) {
	account, ok := middleware.CurrentAccount(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		c.Abort()
		return nil, false
	}
	if account.Role != models.RoleAdmin {
		response.Error(c, appErrors.ErrForbidden)
		c.Abort()
		return nil, false
	}
	return account, true
}

// AdminHandler covers account review: pending list, approval, role changes.
type AdminHandler struct {
	accounts  *services.AccountService
	approvals *services.ApprovalService
	audit     *services.AuditService
}

func NewAdminHandler(accounts *services.AccountService, approvals *services.ApprovalService, audit *services.AuditService) *AdminHandler {
	return &AdminHandler{accounts: accounts, approvals: approvals, audit: audit}
}

type approveRequest struct {
	AccountID string `json:"account_id" validate:"required"`
}

type updateRoleRequest struct {
	AccountID string `json:"account_id" validate:"required"`
	Role      string `json:"role" validate:"required,oneof=user collaborator admin"`
}

// GET /api/admin/pending
func (h *AdminHandler) Pending(c *gin.Context) {
	if _, ok := requireAdmin(c); !ok {
		return
	}

	pending, err := h.approvals.ListPending(requestContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]accountDTO, 0, len(pending))
	for i := range pending {
		items = append(items, toAccountDTO(&pending[i]))
	}

	response.Success(c, http.StatusOK, gin.H{"accounts": items})
}

// GET /api/admin/accounts
func (h *AdminHandler) ListAccounts(c *gin.Context) {
	if _, ok := requireAdmin(c); !ok {
		return
	}

	accounts, err := h.accounts.List(requestContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]accountDTO, 0, len(accounts))
	for i := range accounts {
		items = append(items, toAccountDTO(&accounts[i]))
	}

	response.Success(c, http.StatusOK, gin.H{"accounts": items})
}

// POST /api/admin/approve
func (h *AdminHandler) Approve(c *gin.Context) {
	admin, ok := requireAdmin(c)
	if !ok {
		return
	}

	var req approveRequest
	if !bindAndValidate(c, &req) {
		return
	}

	ctx := requestContext(c)

	result, err := h.approvals.Approve(ctx, req.AccountID, admin.Email)
	if err != nil {
		response.Error(c, err)
		return
	}

	if h.audit != nil {
		_ = h.audit.Log(ctx, services.AuditEntry{
			AccountID: &admin.ID,
			Email:     admin.Email,
			Action:    "account.approve",
			Resource:  "account",
			Result:    "success",
			Metadata:  map[string]any{"approved_account_id": result.Account.ID},
		})
	}

	payload := gin.H{
		"account":          toAccountDTO(result.Account),
		"reset_email_sent": result.ResetEmailSent,
	}
	if result.ResetError != "" {
		payload["reset_error"] = result.ResetError
	}

	response.Success(c, http.StatusOK, payload)
}

// POST /api/admin/update-role
func (h *AdminHandler) UpdateRole(c *gin.Context) {
	admin, ok := requireAdmin(c)
	if !ok {
		return
	}

	var req updateRoleRequest
	if !bindAndValidate(c, &req) {
		return
	}

	ctx := requestContext(c)

	account, err := h.approvals.SetRole(ctx, req.AccountID, models.Role(req.Role))
	if err != nil {
		response.Error(c, err)
		return
	}

	if h.audit != nil {
		_ = h.audit.Log(ctx, services.AuditEntry{
			AccountID: &admin.ID,
			Email:     admin.Email,
			Action:    "account.update_role",
			Resource:  "account",
			Result:    "success",
			Metadata: map[string]any{
				"target_account_id": account.ID,
				"role":              req.Role,
			},
		})
	}

	response.Success(c, http.StatusOK, gin.H{"account": toAccountDTO(account)})
}
