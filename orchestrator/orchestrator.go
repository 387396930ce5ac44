// Package orchestrator turns start requests into sessions and runs their
// workflows on a bounded worker pool.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"orca-agent-backend/agent"
	"orca-agent-backend/git"
	"orca-agent-backend/logging"
	"orca-agent-backend/sessions"
	"orca-agent-backend/types"
)

const (
	DefaultEnvironment = "PREPROD"
	DefaultModel       = "claude-3-5-sonnet-20241022"
)

// ErrInvalidRequest wraps every validation failure of a start request
var ErrInvalidRequest = errors.New("invalid request")

// Options configures an Orchestrator
type Options struct {
	WorkspaceRoot string
	MaxConcurrent int
	QueueDepth    int
	// ForcePush applies to git-task pushes only
	ForcePush bool
	// ProxyURL is handed to Claude as ANTHROPIC_BASE_URL when set
	ProxyURL string
	// GatewayURL maps an environment name to the Grazie base URL
	GatewayURL func(environment string) string
}

// ExecuteRequest starts an agent run, optionally inside a cloned repository
type ExecuteRequest struct {
	Token       string `json:"token"`
	Environment string `json:"environment"`
	Model       string `json:"model"`
	Task        string `json:"task"`
	Agent       string `json:"agent"`
	GitHubToken string `json:"github_token"`
	GitHubRepo  string `json:"github_repo"`
}

// GitTaskRequest starts an agent run on a fresh branch that is pushed
type GitTaskRequest struct {
	Token       string `json:"token"`
	Environment string `json:"environment"`
	Model       string `json:"model"`
	Task        string `json:"task"`
	Agent       string `json:"agent"`
	GitRepoURL  string `json:"git_repo_url"`
	GitToken    string `json:"git_token"`
	BranchName  string `json:"branch_name"`
}

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, msg)
}

// Orchestrator owns the store, the worker pool and the workflow steps
type Orchestrator struct {
	store   *sessions.Store
	driver  *git.Driver
	invoker *agent.Invoker
	pool    *Pool
	locks   *git.RepoLocks
	opts    Options

	now func() time.Time
	log *logrus.Entry
}

func New(store *sessions.Store, driver *git.Driver, invoker *agent.Invoker, opts Options) *Orchestrator {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 4
	}
	if opts.QueueDepth < 0 {
		opts.QueueDepth = 0
	}
	if opts.GatewayURL == nil {
		opts.GatewayURL = func(string) string { return "" }
	}
	return &Orchestrator{
		store:   store,
		driver:  driver,
		invoker: invoker,
		pool:    NewPool(opts.MaxConcurrent, opts.QueueDepth),
		locks:   git.NewRepoLocks(),
		opts:    opts,
		now:     time.Now,
		log:     logging.NewLogger("orchestrator"),
	}
}

// Store exposes the session registry to read-only handlers
func (o *Orchestrator) Store() *sessions.Store {
	return o.store
}

// StartExecute validates req, creates a session and schedules it
func (o *Orchestrator) StartExecute(req ExecuteRequest) (*sessions.Session, error) {
	if strings.TrimSpace(req.Token) == "" {
		return nil, invalid("Token is required")
	}
	if strings.TrimSpace(req.Task) == "" {
		return nil, invalid("Task is required")
	}
	kind, err := agent.ParseKind(req.Agent)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	profile, err := agent.ProfileFor(kind)
	if err != nil {
		return nil, err
	}

	remote := git.NormalizeRemoteURL(req.GitHubRepo)
	cfg := types.SessionConfig{
		Token:       req.Token,
		GitToken:    req.GitHubToken,
		Environment: orDefault(req.Environment, DefaultEnvironment),
		Model:       orDefault(req.Model, DefaultModel),
		GitRepoURL:  git.RedactURL(remote),
	}
	sess := o.store.Create(kind, req.Task, types.WorkflowExecute, cfg)
	sess.SetRepoURL(cfg.GitRepoURL)

	return o.submit(sess, func() { o.runExecute(sess, profile, remote) })
}

// StartGitTask validates req, creates a session and schedules it
func (o *Orchestrator) StartGitTask(req GitTaskRequest) (*sessions.Session, error) {
	switch {
	case strings.TrimSpace(req.Token) == "":
		return nil, invalid("Token is required")
	case strings.TrimSpace(req.Task) == "":
		return nil, invalid("Task is required")
	case strings.TrimSpace(req.GitRepoURL) == "":
		return nil, invalid("Git repository URL is required")
	case strings.TrimSpace(req.GitToken) == "":
		return nil, invalid("Git token is required")
	}
	kind, err := agent.ParseKind(req.Agent)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	profile, err := agent.ProfileFor(kind)
	if err != nil {
		return nil, err
	}

	remote := git.NormalizeRemoteURL(req.GitRepoURL)
	cfg := types.SessionConfig{
		Token:       req.Token,
		GitToken:    req.GitToken,
		Environment: orDefault(req.Environment, DefaultEnvironment),
		Model:       orDefault(req.Model, DefaultModel),
		GitRepoURL:  git.RedactURL(remote),
		BranchName:  strings.TrimSpace(req.BranchName),
	}
	sess := o.store.Create(kind, req.Task, types.WorkflowGitTask, cfg)
	sess.SetBranch(git.BranchName(cfg.BranchName, o.now()))
	sess.SetRepoURL(git.RedactURL(remote))

	return o.submit(sess, func() { o.runGitTask(sess, profile, remote) })
}

func (o *Orchestrator) submit(sess *sessions.Session, job func()) (*sessions.Session, error) {
	if err := o.pool.Submit(job); err != nil {
		o.store.Remove(sess.ID)
		o.log.WithField("session_id", sess.ID).WithError(err).Warn("Rejected session")
		return nil, err
	}
	return sess, nil
}

// Stop stops a session by id
func (o *Orchestrator) Stop(id string) (*sessions.Session, error) {
	return o.store.Stop(id)
}

// Shutdown waits for running workflows to drain
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	return o.pool.Shutdown(ctx)
}

func orDefault(v, def string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return def
}
