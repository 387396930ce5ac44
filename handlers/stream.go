package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Long-lived endpoints backed by plain http.Handlers
// Set by main during initialization
var (
	RPCServer   http.Handler
	GrazieProxy http.Handler
)

// AgentWebSocket handles GET /websocket
func AgentWebSocket(c *gin.Context) {
	if RPCServer == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "WebSocket endpoint is not configured"})
		return
	}
	RPCServer.ServeHTTP(c.Writer, c.Request)
}

// ProxyRequest forwards any unmatched request on the proxy service
func ProxyRequest(c *gin.Context) {
	if GrazieProxy == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Proxy is not configured"})
		return
	}
	GrazieProxy.ServeHTTP(c.Writer, c.Request)
}
