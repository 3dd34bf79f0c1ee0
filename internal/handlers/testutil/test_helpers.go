package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/rbigger/aiamp/internal/api"
	"github.com/rbigger/aiamp/internal/app"
	iauth "github.com/rbigger/aiamp/internal/auth"
	sharedtestutil "github.com/rbigger/aiamp/internal/database/testutil"
	"github.com/rbigger/aiamp/internal/models"
	"github.com/rbigger/aiamp/internal/monitoring"
	"github.com/rbigger/aiamp/internal/security"
	"github.com/rbigger/aiamp/internal/services"
	"github.com/rbigger/aiamp/pkg/crypto"
	"github.com/rbigger/aiamp/pkg/mail"
	"github.com/rbigger/aiamp/pkg/response"
)

// MailRecorder captures outbound messages instead of delivering them.
type MailRecorder struct {
	mu       sync.Mutex
	Messages []mail.Message
}

func (m *MailRecorder) Send(_ context.Context, msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Messages = append(m.Messages, msg)
	return nil
}

// Env encapsulates a fully-wired API instance backed by an in-memory database for handler tests.
type Env struct {
	T       *testing.T
	DB      *gorm.DB
	Router  *gin.Engine
	JWT     *iauth.JWTService
	Invites *services.InviteService
	Keys    *services.APIKeyService
	Mailer  *MailRecorder
}

// NewEnv provisions a fresh handler test environment with migrations applied.
func NewEnv(t *testing.T) *Env {
	t.Helper()

	gin.SetMode(gin.TestMode)

	db := sharedtestutil.MustOpenTestDB(t, sharedtestutil.WithAutoMigrate())

	jwtSecret := "test-suite-super-secret-key-at-least-48-bytes!!!"
	cfg := &app.Config{}
	cfg.Server.BaseURL = "https://amp.test"
	cfg.Auth.JWT.Secret = jwtSecret
	cfg.Auth.JWT.Issuer = "test-suite"
	cfg.Auth.JWT.TTL = time.Hour
	cfg.Auth.Session.RefreshTTL = 24 * time.Hour
	cfg.Auth.Session.RefreshLength = 48
	cfg.Monitoring.Health.Enabled = true

	jwtSvc, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	require.NoError(t, err)

	sessionSvc, err := iauth.NewSessionService(db, jwtSvc, cfg.Auth.SessionServiceConfig())
	require.NoError(t, err)

	accountSvc, err := services.NewAccountService(db)
	require.NoError(t, err)

	mailer := &MailRecorder{}

	inviteSvc, err := services.NewInviteService(db, mailer,
		services.WithInviteBaseURL(cfg.Server.BaseURL))
	require.NoError(t, err)

	resetSvc, err := services.NewPasswordResetService(db, mailer,
		services.WithResetBaseURL(cfg.Server.BaseURL))
	require.NoError(t, err)

	approvalSvc, err := services.NewApprovalService(db, resetSvc)
	require.NoError(t, err)

	keySvc, err := services.NewAPIKeyService(db, services.WithSynchronousTouch())
	require.NoError(t, err)

	documentSvc, err := services.NewDocumentService(db)
	require.NoError(t, err)

	auditSvc, err := services.NewAuditService(db)
	require.NoError(t, err)

	router, err := api.NewRouter(cfg, api.Services{
		Accounts:  accountSvc,
		Sessions:  sessionSvc,
		JWT:       jwtSvc,
		Invites:   inviteSvc,
		Approvals: approvalSvc,
		Resets:    resetSvc,
		Keys:      keySvc,
		Documents: documentSvc,
		Audit:     auditSvc,
		Health:    monitoring.NewChecker(monitoring.DatabaseProbe(db)),
		Security:  security.NewAuditService(db, cfg),
	})
	require.NoError(t, err)

	return &Env{
		T:       t,
		DB:      db,
		Router:  router,
		JWT:     jwtSvc,
		Invites: inviteSvc,
		Keys:    keySvc,
		Mailer:  mailer,
	}
}

// CreateAccount inserts an account with the given role and approval state.
func (e *Env) CreateAccount(email, password string, role models.Role, approved bool) *models.Account {
	e.T.Helper()

	hashed, err := crypto.HashPassword(password)
	require.NoError(e.T, err)

	account := &models.Account{
		ID:       uuid.NewString(),
		Email:    email,
		FullName: "Test Account",
		Password: hashed,
		Role:     role,
		Approved: approved,
	}
	if approved {
		now := time.Now().UTC()
		account.ApprovedAt = &now
		account.ApprovedBy = "test-suite"
	}

	require.NoError(e.T, e.DB.Create(account).Error)
	return account
}

// CreateInvite issues a fresh invite token via the service layer.
func (e *Env) CreateInvite(createdBy string) string {
	e.T.Helper()

	result, err := e.Invites.Create(context.Background(), services.CreateInviteInput{
		CreatedBy: createdBy,
	})
	require.NoError(e.T, err)
	require.NotEmpty(e.T, result.Invite.Token)
	return result.Invite.Token
}

// MintAPIKey issues an agent key with the given scopes and returns the plaintext secret.
func (e *Env) MintAPIKey(agentName string, permissions ...string) string {
	e.T.Helper()

	generated, err := e.Keys.Create(context.Background(), services.CreateAPIKeyInput{
		AgentName:   agentName,
		Permissions: permissions,
		CreatedBy:   "test-suite",
	})
	require.NoError(e.T, err)
	return generated.PlainKey
}

// AccountPayload captures the subset of account fields returned from auth endpoints.
type AccountPayload struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
	Approved bool   `json:"approved"`
}

// LoginResult bundles the JSON response from POST /api/auth/login.
type LoginResult struct {
	Account      AccountPayload `json:"account"`
	AccessToken  string         `json:"access_token"`
	RefreshToken string         `json:"refresh_token"`
	Redirect     string         `json:"redirect"`
}

// Login authenticates with email and password and returns the issued tokens.
func (e *Env) Login(email, password string) LoginResult {
	e.T.Helper()

	payload := map[string]string{
		"email":    email,
		"password": password,
	}

	w := e.Request(http.MethodPost, "/api/auth/login", payload, "")
	require.Equal(e.T, http.StatusOK, w.Code, w.Body.String())

	resp := DecodeResponse(e.T, w)
	require.True(e.T, resp.Success, w.Body.String())

	var result LoginResult
	DecodeInto(e.T, resp.Data, &result)
	require.NotEmpty(e.T, result.AccessToken)
	require.NotEmpty(e.T, result.RefreshToken)
	require.Equal(e.T, email, result.Account.Email)

	return result
}

// APIResponse represents the canonical API envelope returned by handlers.
type APIResponse struct {
	Success bool                `json:"success"`
	Data    json.RawMessage     `json:"data"`
	Error   *response.ErrorInfo `json:"error"`
	Meta    *response.Meta      `json:"meta"`
}

// DecodeResponse parses the standard API response object from a recorder.
func DecodeResponse(t *testing.T, w *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

// DecodeInto unmarshals the data payload into the provided destination.
func DecodeInto[T any](t *testing.T, raw json.RawMessage, dest *T) {
	t.Helper()
	if dest == nil {
		t.Fatal("destination must not be nil")
	}
	require.NoError(t, json.Unmarshal(raw, dest))
}

// Request executes an HTTP request against the test router with JSON encoding
// and a bearer token applied automatically.
func (e *Env) Request(method, path string, body any, token string) *httptest.ResponseRecorder {
	e.T.Helper()

	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(e.T, err)
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)
	return w
}

// AgentRequest executes a request authenticated with an agent API key.
func (e *Env) AgentRequest(method, path string, body any, apiKey string) *httptest.ResponseRecorder {
	e.T.Helper()

	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(e.T, err)
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-API-Key", apiKey)

	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)
	return w
}
