package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// AgentKind names the coding CLI that runs a session
type AgentKind string

const (
	AgentClaudeCode AgentKind = "claude-code"
	AgentCodex      AgentKind = "codex"
)

// Workflow distinguishes the two ways a session can be started
type Workflow string

const (
	WorkflowExecute Workflow = "execute"
	WorkflowGitTask Workflow = "git-task"
)

// SessionStatus is the lifecycle state of a session.
//
//	pending -> running -> completed | error
//	pending | running -> stopped
type SessionStatus string

const (
	StatusPending   SessionStatus = "pending"
	StatusRunning   SessionStatus = "running"
	StatusCompleted SessionStatus = "completed"
	StatusError     SessionStatus = "error"
	StatusStopped   SessionStatus = "stopped"
)

// IsTerminal reports whether no further transition is possible
func (s SessionStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusError || s == StatusStopped
}

// ChangeKind classifies a changed file
type ChangeKind string

const (
	ChangeCreated  ChangeKind = "created"
	ChangeModified ChangeKind = "modified"
	ChangeDeleted  ChangeKind = "deleted"
)

// ChangedFile describes one file touched by a session. Content is nil for
// deleted files and for files above the inline size limit.
type ChangedFile struct {
	Path    string     `json:"path"`
	Type    ChangeKind `json:"type"`
	Content *string    `json:"content"`
}

// SessionConfig carries the per-session settings supplied by the caller.
// Secrets are excluded from JSON.
type SessionConfig struct {
	Token       string `json:"-"`
	GitToken    string `json:"-"`
	Environment string `json:"environment"`
	Model       string `json:"model"`
	GitRepoURL  string `json:"git_repo_url,omitempty"`
	BranchName  string `json:"branch_name,omitempty"`
}

// ProgressEntry is one line of a session's progress log
type ProgressEntry struct {
	Time    time.Time
	Message string
}

// String renders the entry as "[<RFC3339Nano>] message"
func (p ProgressEntry) String() string {
	return fmt.Sprintf("[%s] %s", p.Time.UTC().Format(time.RFC3339Nano), p.Message)
}

// MarshalJSON encodes the entry in its string form so polling clients
// receive a plain list of log lines.
func (p ProgressEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// SessionSnapshot is a point-in-time copy of a session, safe to encode
// while the workflow keeps running.
type SessionSnapshot struct {
	ID          string          `json:"session_id"`
	Agent       AgentKind       `json:"agent"`
	Workflow    Workflow        `json:"workflow"`
	Task        string          `json:"task"`
	Config      SessionConfig   `json:"config"`
	Status      SessionStatus   `json:"status"`
	Progress    []ProgressEntry `json:"progress"`
	Error       *string         `json:"error"`
	Files       []ChangedFile   `json:"files"`
	Output      string          `json:"output"`
	Simulated   bool            `json:"simulated"`
	Warnings    []string        `json:"warnings"`
	Branch      string          `json:"branch,omitempty"`
	RepoURL     string          `json:"repo_url,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	CompletedAt *time.Time      `json:"completed_at"`
}
