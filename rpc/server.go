package rpc

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"orca-agent-backend/grazie"
	"orca-agent-backend/logging"
	"orca-agent-backend/shell"
)

const (
	DefaultExecTimeout = 30 * time.Second
	readLimitBytes     = 1 << 20
)

// Messenger is the model call behind agent.task
type Messenger interface {
	Message(ctx context.Context, req grazie.MessageRequest) (grazie.MessageResponse, error)
}

type Runner interface {
	Run(ctx context.Context, cmd shell.Command) shell.Result
}

// Server dispatches JSON-RPC requests against one workspace root
type Server struct {
	Root        string
	Runner      Runner
	ExecTimeout time.Duration
	// NewMessenger builds the model client; token and environment come from
	// the request params and may be empty.
	NewMessenger func(token, environment string) (Messenger, error)

	upgrader websocket.Upgrader
	log      *logrus.Entry
}

func NewServer(root string, runner Runner, newMessenger func(token, environment string) (Messenger, error)) *Server {
	return &Server{
		Root:         root,
		Runner:       runner,
		ExecTimeout:  DefaultExecTimeout,
		NewMessenger: newMessenger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		log: logging.NewLogger("rpc"),
	}
}

// Dispatch handles a single raw request frame
func (s *Server) Dispatch(ctx context.Context, raw []byte) Response {
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return failure(nil, newError(CodeParseError, "Parse error: Invalid JSON"))
	}

	handler, ok := methods[req.Method]
	if !ok {
		return failure(req.ID, newError(CodeMethodNotFound, "Method not found: %s", req.Method))
	}

	s.log.WithFields(logrus.Fields{"method": req.Method, "id": string(req.ID)}).Info("RPC request")
	result, rpcErr := handler(ctx, s, req)
	if rpcErr != nil {
		s.log.WithField("method", req.Method).Warnf("RPC request failed: %s", rpcErr.Message)
		return failure(req.ID, rpcErr)
	}
	return success(req.ID, result)
}

// ServeHTTP upgrades the connection and answers frames in order until the
// client disconnects.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Warn("WebSocket upgrade failed")
		return
	}
	defer conn.Close()
	conn.SetReadLimit(readLimitBytes)

	s.log.WithField("remote", r.RemoteAddr).Info("RPC client connected")
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.WithError(err).Warn("RPC connection closed unexpectedly")
			}
			break
		}
		if err := conn.WriteJSON(s.Dispatch(r.Context(), data)); err != nil {
			s.log.WithError(err).Warn("Failed to write RPC response")
			break
		}
	}
	s.log.WithField("remote", r.RemoteAddr).Info("RPC client disconnected")
}
