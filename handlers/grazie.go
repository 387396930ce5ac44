package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"orca-agent-backend/grazie"
)

// GrazieClient is the part of the gateway client the handlers use
type GrazieClient interface {
	Environment() string
	ValidateToken(ctx context.Context) error
	ListModels(ctx context.Context) (grazie.ModelList, error)
	Chat(ctx context.Context, model, message string) (string, error)
}

// GrazieBaseURL overrides the per-environment gateway URL when set
var GrazieBaseURL string

// NewGrazieClient builds a gateway client for one request
var NewGrazieClient = func(token, environment string) (GrazieClient, error) {
	return grazie.NewClient(grazie.Options{
		Token:       token,
		Environment: environment,
		BaseURL:     GrazieBaseURL,
	})
}

type grazieRequest struct {
	Token       string `json:"token"`
	Environment string `json:"environment"`
	Model       string `json:"model"`
	Message     string `json:"message"`
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// ValidateToken handles POST /api/validate_token
func ValidateToken(c *gin.Context) {
	var req grazieRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"valid": false, "error": "Invalid request body"})
		return
	}
	if strings.TrimSpace(req.Token) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"valid": false, "error": "No token provided"})
		return
	}

	client, err := NewGrazieClient(req.Token, req.Environment)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"valid": false, "error": err.Error()})
		return
	}

	err = client.ValidateToken(c.Request.Context())
	var upstream *grazie.UpstreamError
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{
			"valid":       true,
			"environment": client.Environment(),
			"timestamp":   timestamp(),
		})
	case errors.Is(err, grazie.ErrTokenExpired):
		c.JSON(http.StatusUnauthorized, gin.H{"valid": false, "error": "Token validation failed: token is expired"})
	case errors.As(err, &upstream):
		status := http.StatusUnauthorized
		if upstream.StatusCode >= 500 {
			status = http.StatusBadGateway
		}
		c.JSON(status, gin.H{
			"valid":   false,
			"error":   "Token validation failed: " + strconv.Itoa(upstream.StatusCode),
			"details": upstream.Body,
		})
	case errors.Is(err, grazie.ErrTimeout):
		c.JSON(http.StatusGatewayTimeout, gin.H{"valid": false, "error": "Request timeout"})
	default:
		handlerLog.WithError(err).Warn("ValidateToken: gateway unreachable")
		c.JSON(http.StatusBadGateway, gin.H{"valid": false, "error": "Token validation failed: " + err.Error()})
	}
}

// ListModels handles POST /api/models. Gateway failures fall back to the
// default model list with a note.
func ListModels(c *gin.Context) {
	var req grazieRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if strings.TrimSpace(req.Token) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Token is required"})
		return
	}

	client, err := NewGrazieClient(req.Token, req.Environment)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	list, err := client.ListModels(c.Request.Context())
	if err != nil {
		handlerLog.WithError(err).Warn("ListModels: returning default models")
	}

	resp := gin.H{
		"models":    list.Models,
		"timestamp": timestamp(),
	}
	if list.Note != "" {
		resp["note"] = list.Note
	}
	c.JSON(http.StatusOK, resp)
}

// Chat handles POST /api/chat
func Chat(c *gin.Context) {
	var req grazieRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if strings.TrimSpace(req.Token) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Token is required"})
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Message is required"})
		return
	}
	model := req.Model
	if strings.TrimSpace(model) == "" {
		model = grazie.DefaultChatModel
	}

	client, err := NewGrazieClient(req.Token, req.Environment)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	text, err := client.Chat(c.Request.Context(), model, req.Message)
	var upstream *grazie.UpstreamError
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{
			"response":    text,
			"model":       model,
			"environment": client.Environment(),
			"timestamp":   timestamp(),
		})
	case errors.As(err, &upstream):
		c.JSON(upstream.StatusCode, gin.H{
			"error":   "AI Platform request failed: " + strconv.Itoa(upstream.StatusCode),
			"details": upstream.Body,
		})
	case errors.Is(err, grazie.ErrTimeout):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "Request timeout"})
	default:
		handlerLog.WithError(err).Error("Chat: request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
