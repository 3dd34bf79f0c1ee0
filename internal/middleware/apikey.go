package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/rbigger/aiamp/internal/auditctx"
	"github.com/rbigger/aiamp/internal/services"
	"github.com/rbigger/aiamp/pkg/errors"
	"github.com/rbigger/aiamp/pkg/response"
)

// APIKeyHeader is the header agents present their key in.
const APIKeyHeader = "X-API-Key"

// RequireAPIKey authenticates the request with an API key and checks the
// scope the route needs: readScope for GET/HEAD, writeScope otherwise. The
// resolved agent identity is attached to the context for handlers to
// attribute authorship.
func RequireAPIKey(keys *services.APIKeyService, readScope, writeScope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		secret := strings.TrimSpace(c.GetHeader(APIKeyHeader))
		if secret == "" {
			secret = bearerToken(c)
		}

		scope := writeScope
		if c.Request.Method == http.MethodGet || c.Request.Method == http.MethodHead {
			scope = readScope
		}

		agent, err := keys.Authenticate(c.Request.Context(), secret, scope)
		if err != nil {
			if appErr := errors.FromError(err); appErr.StatusCode == http.StatusUnauthorized {
				c.Header("WWW-Authenticate", "ApiKey")
			}
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(CtxAgentKey, agent)
		c.Request = c.Request.WithContext(auditctx.WithActor(c.Request.Context(), auditctx.Actor{
			Email:     agent.AgentName,
			IPAddress: c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		}))
		c.Next()
	}
}
