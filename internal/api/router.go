package api

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rbigger/aiamp/internal/app"
	iauth "github.com/rbigger/aiamp/internal/auth"
	"github.com/rbigger/aiamp/internal/handlers"
	"github.com/rbigger/aiamp/internal/middleware"
	"github.com/rbigger/aiamp/internal/models"
	"github.com/rbigger/aiamp/internal/monitoring"
	"github.com/rbigger/aiamp/internal/security"
	"github.com/rbigger/aiamp/internal/services"
)

// Services bundles the service layer the router wires handlers to.
type Services struct {
	Accounts  *services.AccountService
	Sessions  *iauth.SessionService
	JWT       *iauth.JWTService
	Invites   *services.InviteService
	Approvals *services.ApprovalService
	Resets    *services.PasswordResetService
	Keys      *services.APIKeyService
	Documents *services.DocumentService
	Audit     *services.AuditService

	// Health is optional; when nil the health endpoint reports a static ok.
	Health *monitoring.Checker

	// Security is optional; when nil the posture audit endpoint is not registered.
	Security *security.AuditService
}

func (s Services) validate() error {
	switch {
	case s.Accounts == nil:
		return fmt.Errorf("account service must be provided")
	case s.Sessions == nil:
		return fmt.Errorf("session service must be provided")
	case s.JWT == nil:
		return fmt.Errorf("jwt service must be provided")
	case s.Invites == nil:
		return fmt.Errorf("invite service must be provided")
	case s.Approvals == nil:
		return fmt.Errorf("approval service must be provided")
	case s.Resets == nil:
		return fmt.Errorf("password reset service must be provided")
	case s.Keys == nil:
		return fmt.Errorf("api key service must be provided")
	case s.Documents == nil:
		return fmt.Errorf("document service must be provided")
	}
	return nil
}

// NewRouter builds the Gin engine, wires the gate and registers all routes.
func NewRouter(cfg *app.Config, svcs Services) (*gin.Engine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must be provided")
	}
	if err := svcs.validate(); err != nil {
		return nil, err
	}

	r := gin.New()
	r.HandleMethodNotAllowed = true

	// Global middleware. The gate runs last so access logs and metrics cover
	// denied requests too.
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.Gate(svcs.JWT, svcs.Accounts))

	if cfg.Monitoring.Prometheus.Enabled {
		endpoint := cfg.Monitoring.Prometheus.Endpoint
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.GET(endpoint, gin.WrapH(promhttp.Handler()))
	}

	if cfg.Monitoring.Health.Enabled {
		r.GET("/api/health", handlers.Health(svcs.Health))
	}

	authHandler := handlers.NewAuthHandler(
		svcs.Accounts, svcs.Sessions, svcs.JWT,
		svcs.Invites, svcs.Approvals, svcs.Resets, svcs.Audit)

	// Credential endpoints carry a per-IP rate limit.
	credLimit := middleware.RateLimit(10, time.Minute)

	auth := r.Group("/api/auth")
	{
		auth.POST("/signup", credLimit, authHandler.Signup)
		auth.POST("/login", credLimit, authHandler.Login)
		auth.POST("/logout", authHandler.Logout)
		auth.POST("/refresh", authHandler.Refresh)
		auth.GET("/me", authHandler.Me)
		auth.POST("/forgot-password", credLimit, authHandler.ForgotPassword)
		auth.POST("/set-password", credLimit, authHandler.SetPassword)
	}

	inviteHandler := handlers.NewInviteHandler(svcs.Invites, svcs.Approvals, svcs.Audit)

	invite := r.Group("/api/invite")
	{
		invite.POST("/validate", inviteHandler.Validate)
		invite.POST("/use", inviteHandler.Use)
	}

	adminHandler := handlers.NewAdminHandler(svcs.Accounts, svcs.Approvals, svcs.Audit)
	keyHandler := handlers.NewAPIKeyHandler(svcs.Keys, svcs.Audit)
	auditHandler := handlers.NewAuditHandler(svcs.Audit)

	admin := r.Group("/api/admin")
	{
		admin.GET("/pending", adminHandler.Pending)
		admin.GET("/accounts", adminHandler.ListAccounts)
		admin.POST("/approve", adminHandler.Approve)
		admin.POST("/update-role", adminHandler.UpdateRole)

		admin.POST("/invites", inviteHandler.Create)
		admin.GET("/invites", inviteHandler.List)
		admin.DELETE("/invites/:id", inviteHandler.Revoke)

		admin.POST("/api-keys", keyHandler.Create)
		admin.GET("/api-keys", keyHandler.List)
		admin.DELETE("/api-keys/:id", keyHandler.Revoke)

		admin.GET("/audit", auditHandler.List)

		if svcs.Security != nil {
			admin.GET("/security", handlers.NewSecurityHandler(svcs.Security).Run)
		}
	}

	docHandler := handlers.NewDocumentHandler(svcs.Documents)

	collab := r.Group("/api/collab")
	{
		collab.GET("/documents", docHandler.List)
		collab.POST("/documents", docHandler.Create)
		collab.GET("/documents/:id", docHandler.Get)
		collab.PUT("/documents/:id", docHandler.Update)
		collab.DELETE("/documents/:id", docHandler.Delete)
		collab.POST("/upload", docHandler.Upload)
		collab.GET("/notes", docHandler.ListNotes)
		collab.POST("/notes", docHandler.CreateNote)
	}

	agentHandler := handlers.NewAgentHandler(svcs.Documents)

	agent := r.Group("/api/collab/agent")
	{
		agent.GET("/documents",
			middleware.RequireAPIKey(svcs.Keys, models.PermDocumentsRead, models.PermDocumentsWrite),
			agentHandler.ListDocuments)
		agent.POST("/documents",
			middleware.RequireAPIKey(svcs.Keys, models.PermDocumentsRead, models.PermDocumentsWrite),
			agentHandler.CreateDocument)
		agent.GET("/notes",
			middleware.RequireAPIKey(svcs.Keys, models.PermNotesRead, models.PermNotesWrite),
			agentHandler.ListNotes)
		agent.POST("/notes",
			middleware.RequireAPIKey(svcs.Keys, models.PermNotesRead, models.PermNotesWrite),
			agentHandler.CreateNote)
	}

	r.NoRoute(middleware.NotFoundHandler)
	r.NoMethod(middleware.MethodNotAllowedHandler)

	return r, nil
}
