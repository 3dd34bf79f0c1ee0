package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/rbigger/aiamp/internal/models"
	"github.com/rbigger/aiamp/internal/services"
)

const (
	// CtxAccountKey holds the *models.Account resolved by the gate.
	CtxAccountKey = "authAccount"
	// CtxAccountIDKey holds the authenticated account id.
	CtxAccountIDKey = "accountID"
	// CtxSessionIDKey holds the session id from the access token.
	CtxSessionIDKey = "sessionID"
	// CtxAgentKey holds the *services.AgentIdentity resolved from an API key.
	CtxAgentKey = "agentIdentity"
)

// CurrentAccount returns the account the gate attached to the request, if any.
func CurrentAccount(c *gin.Context) (*models.Account, bool) {
	v, ok := c.Get(CtxAccountKey)
	if !ok {
		return nil, false
	}
	account, ok := v.(*models.Account)
	return account, ok && account != nil
}

// CurrentAgent returns the agent identity attached by the API key middleware.
func CurrentAgent(c *gin.Context) (*services.AgentIdentity, bool) {
	v, ok := c.Get(CtxAgentKey)
	if !ok {
		return nil, false
	}
	agent, ok := v.(*services.AgentIdentity)
	return agent, ok && agent != nil
}
