package handlers_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rbigger/aiamp/internal/handlers/testutil"
	"github.com/rbigger/aiamp/internal/models"
)

func TestAdminHandler_PendingAndApprove(t *testing.T) {
	env := testutil.NewEnv(t)
	admin := env.CreateAccount("admin@example.com", "AdminPassw0rd!", models.RoleAdmin, true)
	waiting := env.CreateAccount("waiting@example.com", "WaitingPass1!", models.RoleUser, false)
	login := env.Login(admin.Email, "AdminPassw0rd!")

	pending := env.Request(http.MethodGet, "/api/admin/pending", nil, login.AccessToken)
	require.Equal(t, http.StatusOK, pending.Code)
	var pendingData struct {
		Accounts []testutil.AccountPayload `json:"accounts"`
	}
	testutil.DecodeInto(t, testutil.DecodeResponse(t, pending).Data, &pendingData)
	require.Len(t, pendingData.Accounts, 1)
	require.Equal(t, waiting.Email, pendingData.Accounts[0].Email)

	approve := env.Request(http.MethodPost, "/api/admin/approve", map[string]string{
		"account_id": waiting.ID,
	}, login.AccessToken)
	require.Equal(t, http.StatusOK, approve.Code, approve.Body.String())

	pending = env.Request(http.MethodGet, "/api/admin/pending", nil, login.AccessToken)
	testutil.DecodeInto(t, testutil.DecodeResponse(t, pending).Data, &pendingData)
	require.Empty(t, pendingData.Accounts)

	accounts := env.Request(http.MethodGet, "/api/admin/accounts", nil, login.AccessToken)
	require.Equal(t, http.StatusOK, accounts.Code)
	var accountsData struct {
		Accounts []testutil.AccountPayload `json:"accounts"`
	}
	testutil.DecodeInto(t, testutil.DecodeResponse(t, accounts).Data, &accountsData)
	require.Len(t, accountsData.Accounts, 2)
}

func TestAdminHandler_UpdateRole(t *testing.T) {
	env := testutil.NewEnv(t)
	admin := env.CreateAccount("admin@example.com", "AdminPassw0rd!", models.RoleAdmin, true)
	member := env.CreateAccount("member@example.com", "MemberPass1!", models.RoleUser, true)
	login := env.Login(admin.Email, "AdminPassw0rd!")

	w := env.Request(http.MethodPost, "/api/admin/update-role", map[string]string{
		"account_id": member.ID,
		"role":       "collaborator",
	}, login.AccessToken)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var data struct {
		Account testutil.AccountPayload `json:"account"`
	}
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &data)
	require.Equal(t, "collaborator", data.Account.Role)

	// Unknown role names never reach the service layer.
	bad := env.Request(http.MethodPost, "/api/admin/update-role", map[string]string{
		"account_id": member.ID,
		"role":       "owner",
	}, login.AccessToken)
	require.Equal(t, http.StatusBadRequest, bad.Code)
}

func TestAPIKeyHandler_Lifecycle(t *testing.T) {
	env := testutil.NewEnv(t)
	admin := env.CreateAccount("admin@example.com", "AdminPassw0rd!", models.RoleAdmin, true)
	login := env.Login(admin.Email, "AdminPassw0rd!")

	create := env.Request(http.MethodPost, "/api/admin/api-keys", map[string]any{
		"agent_name":  "planner",
		"permissions": []string{"documents:read", "notes:read"},
	}, login.AccessToken)
	require.Equal(t, http.StatusCreated, create.Code, create.Body.String())
	var created struct {
		Key    string `json:"key"`
		APIKey struct {
			ID          string   `json:"id"`
			AgentName   string   `json:"agent_name"`
			Permissions []string `json:"permissions"`
		} `json:"api_key"`
		Message string `json:"message"`
	}
	testutil.DecodeInto(t, testutil.DecodeResponse(t, create).Data, &created)
	require.NotEmpty(t, created.Key)
	require.Equal(t, "planner", created.APIKey.AgentName)
	require.ElementsMatch(t, []string{"documents:read", "notes:read"}, created.APIKey.Permissions)
	require.Contains(t, created.Message, "cannot be retrieved again")

	// The plaintext never appears in subsequent listings.
	list := env.Request(http.MethodGet, "/api/admin/api-keys", nil, login.AccessToken)
	require.Equal(t, http.StatusOK, list.Code)
	require.NotContains(t, list.Body.String(), created.Key)

	// The key works against the agent surface until revoked.
	agentList := env.AgentRequest(http.MethodGet, "/api/collab/agent/documents", nil, created.Key)
	require.Equal(t, http.StatusOK, agentList.Code, agentList.Body.String())

	revoke := env.Request(http.MethodDelete, "/api/admin/api-keys/"+created.APIKey.ID, nil, login.AccessToken)
	require.Equal(t, http.StatusOK, revoke.Code)

	agentList = env.AgentRequest(http.MethodGet, "/api/collab/agent/documents", nil, created.Key)
	require.Equal(t, http.StatusUnauthorized, agentList.Code)
}

func TestAPIKeyHandler_RejectsUnknownScope(t *testing.T) {
	env := testutil.NewEnv(t)
	admin := env.CreateAccount("admin@example.com", "AdminPassw0rd!", models.RoleAdmin, true)
	login := env.Login(admin.Email, "AdminPassw0rd!")

	w := env.Request(http.MethodPost, "/api/admin/api-keys", map[string]any{
		"agent_name":  "planner",
		"permissions": []string{"documents:admin"},
	}, login.AccessToken)
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
}

func TestAuditHandler_ListWithFilters(t *testing.T) {
	env := testutil.NewEnv(t)
	admin := env.CreateAccount("admin@example.com", "AdminPassw0rd!", models.RoleAdmin, true)
	login := env.Login(admin.Email, "AdminPassw0rd!")

	// The login above produced an audit entry.
	w := env.Request(http.MethodGet, "/api/admin/audit?action=auth.login&result=success", nil, login.AccessToken)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decoded := testutil.DecodeResponse(t, w)
	require.NotNil(t, decoded.Meta)
	require.Equal(t, 1, decoded.Meta.Page)
	require.GreaterOrEqual(t, decoded.Meta.Total, 1)

	var logs []struct {
		Action string `json:"action"`
		Result string `json:"result"`
	}
	testutil.DecodeInto(t, decoded.Data, &logs)
	require.NotEmpty(t, logs)
	for _, entry := range logs {
		require.Equal(t, "auth.login", entry.Action)
		require.Equal(t, "success", entry.Result)
	}
}

func TestSecurityHandler_Run(t *testing.T) {
	env := testutil.NewEnv(t)
	admin := env.CreateAccount("admin@example.com", "AdminPassw0rd!", models.RoleAdmin, true)
	login := env.Login(admin.Email, "AdminPassw0rd!")

	w := env.Request(http.MethodGet, "/api/admin/security", nil, login.AccessToken)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var result struct {
		Checks []struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"checks"`
		Summary map[string]int `json:"summary"`
	}
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &result)
	require.Len(t, result.Checks, 5)
	require.NotEmpty(t, result.Summary)

	user := env.CreateAccount("member@example.com", "MemberPass1!", models.RoleUser, true)
	userLogin := env.Login(user.Email, "MemberPass1!")
	forbidden := env.Request(http.MethodGet, "/api/admin/security", nil, userLogin.AccessToken)
	require.Equal(t, http.StatusForbidden, forbidden.Code)
}
