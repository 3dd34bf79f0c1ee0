package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/rbigger/aiamp/pkg/errors"
	"github.com/rbigger/aiamp/pkg/logger"
	"github.com/rbigger/aiamp/pkg/response"
)

// Recovery converts panics into a 500 response and logs the error.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.WithModule("http").Error("panic",
					zap.String("path", c.Request.URL.Path),
					zap.Any("error", r),
				)
				// Avoid leaking internals to clients
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"success": false,
					"error": gin.H{
						"code":    errors.ErrInternalServer.Code,
						"message": errors.ErrInternalServer.Message,
					},
				})
			}
		}()
		c.Next()
	}
}

// NotFoundHandler returns a JSON 404 response for unknown routes.
func NotFoundHandler(c *gin.Context) {
	response.Error(c, errors.ErrNotFound)
}

// MethodNotAllowedHandler returns a JSON 405 response for known routes hit
// with an unsupported method.
func MethodNotAllowedHandler(c *gin.Context) {
	response.Error(c, errors.ErrMethodNotAllowed)
}
