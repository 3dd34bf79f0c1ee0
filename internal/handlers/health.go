package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rbigger/aiamp/internal/monitoring"
	"github.com/rbigger/aiamp/pkg/response"
)

// Health evaluates the configured dependency probes. A degraded or down
// dependency reports 503 so load balancers stop routing traffic here.
func Health(checker *monitoring.Checker) gin.HandlerFunc {
	return func(c *gin.Context) {
		if checker == nil {
			response.Success(c, http.StatusOK, gin.H{"status": "ok"})
			return
		}

		report := checker.Evaluate(requestContext(c))
		status := http.StatusOK
		if !report.Success {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, response.Response{Success: report.Success, Data: report})
	}
}
