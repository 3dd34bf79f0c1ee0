package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	iauth "github.com/rbigger/aiamp/internal/auth"
	"github.com/rbigger/aiamp/internal/middleware"
	"github.com/rbigger/aiamp/internal/models"
	"github.com/rbigger/aiamp/internal/services"
	appErrors "github.com/rbigger/aiamp/pkg/errors"
	"github.com/rbigger/aiamp/pkg/response"
)

// RefreshCookieName is the cookie carrying the refresh token.
const RefreshCookieName = "refresh_token"

// AuthHandler covers signup, login, session refresh, and password recovery.
type AuthHandler struct {
	accounts  *services.AccountService
	sessions  *iauth.SessionService
	jwt       *iauth.JWTService
	invites   *services.InviteService
	approvals *services.ApprovalService
	resets    *services.PasswordResetService
	audit     *services.AuditService
}

func NewAuthHandler(
	accounts *services.AccountService,
	sessions *iauth.SessionService,
	jwt *iauth.JWTService,
	invites *services.InviteService,
	approvals *services.ApprovalService,
	resets *services.PasswordResetService,
	audit *services.AuditService,
) *AuthHandler {
	return &AuthHandler{
		accounts:  accounts,
		sessions:  sessions,
		jwt:       jwt,
		invites:   invites,
		approvals: approvals,
		resets:    resets,
		audit:     audit,
	}
}

type signupRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=8"`
	FullName    string `json:"full_name" validate:"omitempty,max=128"`
	InviteToken string `json:"invite_token" validate:"omitempty"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"omitempty"`
}

type forgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type setPasswordRequest struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,min=8"`
}

type accountDTO struct {
	ID         string     `json:"id"`
	Email      string     `json:"email"`
	FullName   string     `json:"full_name,omitempty"`
	Role       string     `json:"role"`
	Approved   bool       `json:"approved"`
	ApprovedAt *time.Time `json:"approved_at,omitempty"`
	ApprovedBy string     `json:"approved_by,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

func toAccountDTO(account *models.Account) accountDTO {
	return accountDTO{
		ID:         account.ID,
		Email:      account.Email,
		FullName:   account.FullName,
		Role:       string(account.Role),
		Approved:   account.Approved,
		ApprovedAt: account.ApprovedAt,
		ApprovedBy: account.ApprovedBy,
		CreatedAt:  account.CreatedAt,
	}
}

// POST /api/auth/signup
//
// With an invite token the account is created, the invite redeemed
// atomically, and the account auto-approved. Losing the redemption race
// unwinds the account so the email is not burned on a dead signup.
func (h *AuthHandler) Signup(c *gin.Context) {
	var req signupRequest
	if !bindAndValidate(c, &req) {
		return
	}

	ctx := requestContext(c)

	account, err := h.accounts.Create(ctx, services.CreateAccountInput{
		Email:    req.Email,
		FullName: req.FullName,
		Password: req.Password,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	inviteToken := strings.TrimSpace(req.InviteToken)
	if inviteToken != "" {
		if err := h.invites.Redeem(ctx, inviteToken, account.ID); err != nil {
			_ = h.accounts.Delete(ctx, account.ID)
			response.Error(c, err)
			return
		}

		account, err = h.approvals.AutoApproveViaInvite(ctx, account.ID)
		if err != nil {
			response.Error(c, err)
			return
		}
	}

	h.logAudit(c, services.AuditEntry{
		AccountID: &account.ID,
		Email:     account.Email,
		Action:    "auth.signup",
		Resource:  "account",
		Result:    "success",
		Metadata:  map[string]any{"via_invite": inviteToken != ""},
	})

	message := "Account created. An administrator will review your request."
	if account.Approved {
		message = "Account created. You can now sign in."
	}

	response.Success(c, http.StatusCreated, gin.H{
		"account": toAccountDTO(account),
		"message": message,
	})
}

// POST /api/auth/login
//
// Only approved accounts receive a session. Unapproved accounts get the
// pending-approval redirect and nothing else.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindAndValidate(c, &req) {
		return
	}

	ctx := requestContext(c)

	account, err := h.accounts.VerifyCredentials(ctx, req.Email, req.Password)
	if err != nil {
		h.logAudit(c, services.AuditEntry{
			Email:    strings.ToLower(strings.TrimSpace(req.Email)),
			Action:   "auth.login",
			Resource: "session",
			Result:   "failure",
		})
		response.Error(c, err)
		return
	}

	if !account.Approved {
		response.Success(c, http.StatusOK, gin.H{
			"redirect": "/pending-approval",
		})
		return
	}

	pair, _, err := h.sessions.CreateSession(account.ID, iauth.SessionMetadata{
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
	if err != nil {
		response.Error(c, appErrors.ErrInternalServer)
		return
	}

	h.setSessionCookies(c, pair)

	h.logAudit(c, services.AuditEntry{
		AccountID: &account.ID,
		Email:     account.Email,
		Action:    "auth.login",
		Resource:  "session",
		Result:    "success",
	})

	response.Success(c, http.StatusOK, gin.H{
		"account":       toAccountDTO(account),
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
		"redirect":      "/",
	})
}

// POST /api/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	if claims, ok := h.requestClaims(c); ok && claims.SessionID != "" {
		// Best-effort: an already-gone session still logs out cleanly.
		if err := h.sessions.RevokeSession(claims.SessionID); err == nil {
			if account, accErr := h.accounts.GetByID(requestContext(c), claims.AccountID); accErr == nil {
				h.logAudit(c, services.AuditEntry{
					AccountID: &account.ID,
					Email:     account.Email,
					Action:    "auth.logout",
					Resource:  "session",
					Result:    "success",
				})
			}
		}
	}

	h.clearSessionCookies(c)
	response.Success(c, http.StatusOK, gin.H{"message": "Logged out"})
}

// POST /api/auth/refresh
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if c.Request.Body != nil && c.Request.ContentLength > 0 {
		if !bindAndValidate(c, &req) {
			return
		}
	}

	refreshToken := strings.TrimSpace(req.RefreshToken)
	if refreshToken == "" {
		if cookie, err := c.Cookie(RefreshCookieName); err == nil {
			refreshToken = strings.TrimSpace(cookie)
		}
	}
	if refreshToken == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	pair, session, err := h.sessions.RefreshSession(refreshToken)
	if err != nil {
		h.clearSessionCookies(c)
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	h.setSessionCookies(c, pair)

	response.Success(c, http.StatusOK, gin.H{
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
		"expires_at":    session.ExpiresAt,
	})
}

// GET /api/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	claims, ok := h.requestClaims(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	account, err := h.accounts.GetByID(requestContext(c), claims.AccountID)
	if err != nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"account": toAccountDTO(account)})
}

// POST /api/auth/forgot-password
//
// The response is identical whether or not the address has an account.
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req forgotPasswordRequest
	if !bindAndValidate(c, &req) {
		return
	}

	ctx := requestContext(c)

	if account, err := h.accounts.FindByEmail(ctx, req.Email); err == nil {
		h.resets.SendSetupEmail(ctx, account)
	}

	response.Success(c, http.StatusOK, gin.H{
		"message": "If an account exists for that address, a password link has been sent.",
	})
}

// POST /api/auth/set-password
func (h *AuthHandler) SetPassword(c *gin.Context) {
	var req setPasswordRequest
	if !bindAndValidate(c, &req) {
		return
	}

	if err := h.resets.Consume(requestContext(c), req.Token, req.Password); err != nil {
		if errors.Is(err, services.ErrResetTokenInvalid) {
			response.Error(c, appErrors.NewBadRequest("Invalid or expired reset token"))
			return
		}
		response.Error(c, appErrors.ErrInternalServer)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "Password updated. You can now sign in."})
}

func (h *AuthHandler) requestClaims(c *gin.Context) (*iauth.Claims, bool) {
	token := ""
	if authz := c.GetHeader("Authorization"); len(authz) >= 8 && strings.EqualFold(authz[:7], "Bearer ") {
		token = strings.TrimSpace(authz[7:])
	}
	if token == "" {
		if cookie, err := c.Cookie(middleware.SessionCookieName); err == nil {
			token = strings.TrimSpace(cookie)
		}
	}
	if token == "" {
		return nil, false
	}

	claims, err := h.jwt.ValidateAccessToken(token)
	if err != nil {
		return nil, false
	}
	return claims, true
}

func (h *AuthHandler) setSessionCookies(c *gin.Context, pair iauth.TokenPair) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.SessionCookieName, pair.AccessToken,
		int(iauth.DefaultAccessTokenTTL.Seconds()), "/", "", false, true)
	c.SetCookie(RefreshCookieName, pair.RefreshToken,
		int(iauth.DefaultRefreshTokenTTL.Seconds()), "/", "", false, true)
}

func (h *AuthHandler) clearSessionCookies(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.SessionCookieName, "", -1, "/", "", false, true)
	c.SetCookie(RefreshCookieName, "", -1, "/", "", false, true)
}

func (h *AuthHandler) logAudit(c *gin.Context, entry services.AuditEntry) {
	if h.audit == nil {
		return
	}
	entry.IPAddress = c.ClientIP()
	entry.UserAgent = c.Request.UserAgent()
	if err := h.audit.Log(requestContext(c), entry); err != nil {
		// Audit failures never fail the request.
		_ = err
	}
}
