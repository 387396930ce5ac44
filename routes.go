package main

import (
	"github.com/gin-gonic/gin"

	"orca-agent-backend/handlers"
)

func registerRoutes(r *gin.Engine) {
	r.Use(handlers.RequestLogger(), handlers.Recovery())

	r.GET("/", handlers.Index)
	r.GET("/health", handlers.Health)
	r.GET("/websocket", handlers.AgentWebSocket)

	api := r.Group("/api")
	{
		api.GET("/health", handlers.Health)
		api.POST("/validate_token", handlers.ValidateToken)
		api.POST("/models", handlers.ListModels)
		api.POST("/chat", handlers.Chat)

		agent := api.Group("/agent")
		agent.POST("/execute", handlers.ExecuteAgent)
		agent.POST("/git-task", handlers.GitTask)
		agent.GET("/status/:id", handlers.GetAgentStatus)
		agent.POST("/stop/:id", handlers.StopAgent)
		agent.GET("/files/:id", handlers.GetAgentFiles)
		agent.GET("/sessions", handlers.ListAgentSessions)
	}
}

func registerProxyRoutes(r *gin.Engine) {
	r.Use(handlers.RequestLogger(), handlers.Recovery())

	r.GET("/health", handlers.ProxyHealth)
	r.NoRoute(handlers.ProxyRequest)
}
