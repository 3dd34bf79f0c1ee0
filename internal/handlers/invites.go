package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rbigger/aiamp/internal/services"
	appErrors "github.com/rbigger/aiamp/pkg/errors"
	"github.com/rbigger/aiamp/pkg/response"
)

// InviteHandler exposes the public invite endpoints and the admin invite CRUD.
type InviteHandler struct {
	invites   *services.InviteService
	approvals *services.ApprovalService
	audit     *services.AuditService
}

func NewInviteHandler(invites *services.InviteService, approvals *services.ApprovalService, audit *services.AuditService) *InviteHandler {
	return &InviteHandler{invites: invites, approvals: approvals, audit: audit}
}

type validateInviteRequest struct {
	Token string `json:"token" validate:"required"`
}

type useInviteRequest struct {
	Token     string `json:"token" validate:"required"`
	AccountID string `json:"account_id" validate:"required"`
}

type createInviteRequest struct {
	Email     *string `json:"email" validate:"omitempty,email"`
	Notes     *string `json:"notes" validate:"omitempty,max=512"`
	SendEmail bool    `json:"send_email"`
}

type inviteDTO struct {
	ID        string     `json:"id"`
	Email     *string    `json:"email,omitempty"`
	Notes     *string    `json:"notes,omitempty"`
	CreatedBy string     `json:"created_by,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt time.Time  `json:"expires_at"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
	UsedBy    *string    `json:"used_by,omitempty"`
	Status    string     `json:"status,omitempty"`
}

func toInviteDTO(summary services.InviteSummary) inviteDTO {
	return inviteDTO{
		ID:        summary.ID,
		Email:     summary.Email,
		Notes:     summary.Notes,
		CreatedBy: summary.CreatedBy,
		CreatedAt: summary.CreatedAt,
		ExpiresAt: summary.ExpiresAt,
		UsedAt:    summary.UsedAt,
		UsedBy:    summary.UsedBy,
		Status:    string(summary.Status),
	}
}

// POST /api/invite/validate
//
// Advisory: a valid answer can still lose the redemption race.
func (h *InviteHandler) Validate(c *gin.Context) {
	var req validateInviteRequest
	if !bindAndValidate(c, &req) {
		return
	}

	result, err := h.invites.Validate(requestContext(c), req.Token)
	if err != nil {
		response.Error(c, err)
		return
	}

	payload := gin.H{"valid": result.Valid}
	if result.Valid {
		payload["invite"] = gin.H{
			"id":    result.Invite.ID,
			"email": result.Invite.Email,
			"notes": result.Invite.Notes,
		}
	} else {
		payload["reason"] = result.Reason
	}
	response.Success(c, http.StatusOK, payload)
}

// POST /api/invite/use
//
// Redeems the invite for a freshly signed-up account and auto-approves it.
// Exactly one of N concurrent callers succeeds; the rest get a conflict.
func (h *InviteHandler) Use(c *gin.Context) {
	var req useInviteRequest
	if !bindAndValidate(c, &req) {
		return
	}

	ctx := requestContext(c)

	if err := h.invites.Redeem(ctx, req.Token, req.AccountID); err != nil {
		response.Error(c, err)
		return
	}

	account, err := h.approvals.AutoApproveViaInvite(ctx, req.AccountID)
	if err != nil {
		response.Error(c, err)
		return
	}

	if h.audit != nil {
		_ = h.audit.Log(ctx, services.AuditEntry{
			AccountID: &account.ID,
			Email:     account.Email,
			Action:    "invite.redeem",
			Resource:  "invite",
			Result:    "success",
			IPAddress: c.ClientIP(),
		})
	}

	response.Success(c, http.StatusOK, gin.H{
		"account": toAccountDTO(account),
		"message": "Invite redeemed. Your account is approved.",
	})
}

// POST /api/admin/invites
func (h *InviteHandler) Create(c *gin.Context) {
	admin, ok := requireAdmin(c)
	if !ok {
		return
	}

	var req createInviteRequest
	if !bindAndValidate(c, &req) {
		return
	}

	result, err := h.invites.Create(requestContext(c), services.CreateInviteInput{
		Email:     req.Email,
		Notes:     req.Notes,
		CreatedBy: admin.Email,
		SendEmail: req.SendEmail,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	if h.audit != nil {
		_ = h.audit.Log(requestContext(c), services.AuditEntry{
			AccountID: &admin.ID,
			Email:     admin.Email,
			Action:    "invite.create",
			Resource:  "invite",
			Result:    "success",
			Metadata:  map[string]any{"invite_id": result.Invite.ID},
		})
	}

	payload := gin.H{
		"invite":     toInviteDTO(services.InviteSummary{Invite: *result.Invite}),
		"token":      result.Invite.Token,
		"invite_url": result.InviteURL,
		"email_sent": result.EmailSent,
	}
	if result.EmailError != "" {
		payload["email_error"] = result.EmailError
	}

	response.Success(c, http.StatusCreated, payload)
}

// GET /api/admin/invites
func (h *InviteHandler) List(c *gin.Context) {
	if _, ok := requireAdmin(c); !ok {
		return
	}

	summaries, err := h.invites.List(requestContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]inviteDTO, 0, len(summaries))
	for _, summary := range summaries {
		items = append(items, toInviteDTO(summary))
	}

	response.Success(c, http.StatusOK, gin.H{"invites": items})
}

// DELETE /api/admin/invites/:id
func (h *InviteHandler) Revoke(c *gin.Context) {
	admin, ok := requireAdmin(c)
	if !ok {
		return
	}

	inviteID := c.Param("id")
	if inviteID == "" {
		response.Error(c, appErrors.NewBadRequest("Invite ID is required"))
		return
	}

	if err := h.invites.Revoke(requestContext(c), inviteID); err != nil {
		response.Error(c, err)
		return
	}

	if h.audit != nil {
		_ = h.audit.Log(requestContext(c), services.AuditEntry{
			AccountID: &admin.ID,
			Email:     admin.Email,
			Action:    "invite.revoke",
			Resource:  "invite",
			Result:    "success",
			Metadata:  map[string]any{"invite_id": inviteID},
		})
	}

	response.Success(c, http.StatusOK, gin.H{"revoked": true})
}
