package handlers

import (
	"net/http"
	"os"
	"runtime"

	"github.com/gin-gonic/gin"
)

// Service identity reported by Health and Index
// Set by main during initialization
var (
	ServiceName   = "orca-agent"
	Version       = "dev"
	ContainerName = "agent"
	Port          int
)

// Health handles GET /health and GET /api/health
func Health(c *gin.Context) {
	hostname, _ := os.Hostname()
	active, total := 0, 0
	if Agents != nil {
		active = Agents.Store().ActiveCount()
		total = Agents.Store().Count()
	}

	c.JSON(http.StatusOK, gin.H{
		"status":          "healthy",
		"timestamp":       timestamp(),
		"container":       ContainerName,
		"hostname":        hostname,
		"service":         ServiceName,
		"port":            Port,
		"go_version":      runtime.Version(),
		"active_sessions": active,
		"total_sessions":  total,
	})
}

// Index handles GET /
func Index(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": ServiceName,
		"version": Version,
		"endpoints": gin.H{
			"health":         "GET /health",
			"execute":        "POST /api/agent/execute",
			"git_task":       "POST /api/agent/git-task",
			"status":         "GET /api/agent/status/:id",
			"stop":           "POST /api/agent/stop/:id",
			"files":          "GET /api/agent/files/:id",
			"sessions":       "GET /api/agent/sessions",
			"validate_token": "POST /api/validate_token",
			"models":         "POST /api/models",
			"chat":           "POST /api/chat",
			"websocket":      "GET /websocket",
		},
	})
}

// ProxyHealth handles GET /health on the Grazie proxy
func ProxyHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "grazie-proxy"})
}
