package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"orca-agent-backend/logging"
	"orca-agent-backend/orchestrator"
	"orca-agent-backend/types"
)

// Agents runs and tracks agent sessions
// Set by main during initialization
var Agents *orchestrator.Orchestrator

var handlerLog = logging.NewLogger("handlers")

// startError writes the response for a rejected start request
func startError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, orchestrator.ErrInvalidRequest):
		msg := strings.TrimPrefix(err.Error(), orchestrator.ErrInvalidRequest.Error()+": ")
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
	case errors.Is(err, orchestrator.ErrQueueFull), errors.Is(err, orchestrator.ErrPoolClosed):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Agent is busy, too many tasks queued. Try again later"})
	default:
		handlerLog.WithError(err).Error("Failed to start session")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start session"})
	}
}

// ExecuteAgent handles POST /api/agent/execute
func ExecuteAgent(c *gin.Context) {
	var req orchestrator.ExecuteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	handlerLog.WithFields(logrus.Fields{
		"agent":    req.Agent,
		"taskLen":  len(req.Task),
		"hasToken": req.Token != "",
		"hasRepo":  req.GitHubRepo != "",
	}).Info("ExecuteAgent: request received")

	sess, err := Agents.StartExecute(req)
	if err != nil {
		startError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id": sess.ID,
		"agent":      sess.Agent,
		"status":     "started",
		"message":    "Agent execution started",
	})
}

// GitTask handles POST /api/agent/git-task
func GitTask(c *gin.Context) {
	var req orchestrator.GitTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	handlerLog.WithFields(logrus.Fields{
		"agent":       req.Agent,
		"taskLen":     len(req.Task),
		"hasToken":    req.Token != "",
		"hasGitToken": req.GitToken != "",
		"branch":      req.BranchName,
	}).Info("GitTask: request received")

	sess, err := Agents.StartGitTask(req)
	if err != nil {
		startError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id": sess.ID,
		"agent":      sess.Agent,
		"status":     "started",
		"branch":     sess.Branch(),
		"message":    "Git task started",
	})
}

// GetAgentStatus handles GET /api/agent/status/:id
func GetAgentStatus(c *gin.Context) {
	sess, ok := Agents.Store().Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}
	c.JSON(http.StatusOK, sess.Snapshot())
}

// StopAgent handles POST /api/agent/stop/:id. Stopping a finished session
// leaves its status unchanged.
func StopAgent(c *gin.Context) {
	id := c.Param("id")
	sess, err := Agents.Stop(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}

	status := sess.Status()
	message := "Session stopped"
	if status != types.StatusStopped {
		message = "Session already finished"
	}
	c.JSON(http.StatusOK, gin.H{
		"session_id": id,
		"status":     status,
		"message":    message,
	})
}

// GetAgentFiles handles GET /api/agent/files/:id
func GetAgentFiles(c *gin.Context) {
	sess, ok := Agents.Store().Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"session_id": sess.ID,
		"files":      sess.Snapshot().Files,
	})
}

// ListAgentSessions handles GET /api/agent/sessions
func ListAgentSessions(c *gin.Context) {
	all := Agents.Store().List()
	snapshots := make([]types.SessionSnapshot, 0, len(all))
	for _, sess := range all {
		snapshots = append(snapshots, sess.Snapshot())
	}
	c.JSON(http.StatusOK, gin.H{"sessions": snapshots})
}
