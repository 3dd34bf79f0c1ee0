package middleware

import (
	stderrors "errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/rbigger/aiamp/internal/auditctx"
	iauth "github.com/rbigger/aiamp/internal/auth"
	"github.com/rbigger/aiamp/internal/routes"
	"github.com/rbigger/aiamp/internal/services"
	"github.com/rbigger/aiamp/pkg/errors"
	"github.com/rbigger/aiamp/pkg/metrics"
	"github.com/rbigger/aiamp/pkg/response"
)

// SessionCookieName is the cookie carrying the access token for browser clients.
const SessionCookieName = "session_token"

const (
	decisionAllow           = "allow"
	decisionUnauthenticated = "unauthenticated"
	decisionPending         = "pending"
	decisionForbidden       = "forbidden"
)

// Gate enforces the access class of every request: session authentication,
// the approval gate, and the collaborator role check. Public paths pass
// through untouched; the agent API authenticates with API keys downstream.
//
// Admin paths only require an authenticated session here. The admin role is
// checked inside admin handlers so an admin whose approval state is odd can
// still reach the admin surface to fix it.
func Gate(jwt *iauth.JWTService, accounts *services.AccountService) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		class := routes.Classify(path)

		if class == routes.Public {
			metrics.GateDecisions.WithLabelValues(class.String(), decisionAllow).Inc()
			c.Next()
			return
		}

		claims, ok := sessionClaims(c, jwt)
		if !ok {
			metrics.GateDecisions.WithLabelValues(class.String(), decisionUnauthenticated).Inc()
			denyUnauthenticated(c, path)
			return
		}

		// Role and approval state live in the database, not the token, so a
		// revoked approval takes effect on the next request.
		account, err := accounts.GetByID(c.Request.Context(), claims.AccountID)
		if err != nil {
			// A valid token for an account with no profile row is treated as
			// not-yet-provisioned, the same as an unapproved account. Storage
			// errors fail closed as unauthenticated.
			if stderrors.Is(err, errors.ErrNotFound) {
				metrics.GateDecisions.WithLabelValues(class.String(), decisionPending).Inc()
				if routes.IsAPI(path) {
					response.Error(c, errors.ErrPendingApproval)
					c.Abort()
					return
				}
				c.Redirect(http.StatusFound, "/pending-approval")
				c.Abort()
				return
			}
			metrics.GateDecisions.WithLabelValues(class.String(), decisionUnauthenticated).Inc()
			denyUnauthenticated(c, path)
			return
		}

		c.Set(CtxAccountKey, account)
		c.Set(CtxAccountIDKey, account.ID)
		if claims.SessionID != "" {
			c.Set(CtxSessionIDKey, claims.SessionID)
		}

		// Downstream services read the actor from the request context when
		// writing audit entries.
		c.Request = c.Request.WithContext(auditctx.WithActor(c.Request.Context(), auditctx.Actor{
			AccountID: account.ID,
			Email:     account.Email,
			IPAddress: c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		}))

		if class != routes.Admin && !account.Approved {
			metrics.GateDecisions.WithLabelValues(class.String(), decisionPending).Inc()
			if routes.IsAPI(path) {
				response.Error(c, errors.ErrPendingApproval)
				c.Abort()
				return
			}
			c.Redirect(http.StatusFound, "/pending-approval")
			c.Abort()
			return
		}

		if class == routes.CollaboratorScoped && !account.Role.CanCollaborate() {
			metrics.GateDecisions.WithLabelValues(class.String(), decisionForbidden).Inc()
			if routes.IsAPI(path) {
				response.Error(c, errors.ErrForbidden)
				c.Abort()
				return
			}
			c.Redirect(http.StatusFound, "/")
			c.Abort()
			return
		}

		metrics.GateDecisions.WithLabelValues(class.String(), decisionAllow).Inc()
		c.Next()
	}
}

// sessionClaims resolves the request's access token from the Authorization
// header or the session cookie. Every validation failure collapses to
// anonymous.
func sessionClaims(c *gin.Context, jwt *iauth.JWTService) (*iauth.Claims, bool) {
	token := bearerToken(c)
	if token == "" {
		if cookie, err := c.Cookie(SessionCookieName); err == nil {
			token = strings.TrimSpace(cookie)
		}
	}
	if token == "" {
		return nil, false
	}

	claims, err := jwt.ValidateAccessToken(token)
	if err != nil {
		return nil, false
	}
	return claims, true
}

func bearerToken(c *gin.Context) string {
	authz := c.GetHeader("Authorization")
	if len(authz) < 8 || !strings.EqualFold(authz[:7], "Bearer ") {
		return ""
	}
	return strings.TrimSpace(authz[7:])
}

func denyUnauthenticated(c *gin.Context, path string) {
	if routes.IsAPI(path) {
		c.Header("WWW-Authenticate", "Bearer")
		response.Error(c, errors.ErrUnauthorized)
		c.Abort()
		return
	}
	c.Redirect(http.StatusFound, "/login?redirect="+url.QueryEscape(path))
	c.Abort()
}
