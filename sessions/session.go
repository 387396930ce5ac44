package sessions

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"orca-agent-backend/shell"
	"orca-agent-backend/types"
)

// Session is one agent run. Identity fields are fixed at creation; the
// mutable state is guarded by mu and only exposed through Snapshot.
type Session struct {
	ID        string
	Agent     types.AgentKind
	Task      string
	Workflow  types.Workflow
	Config    types.SessionConfig
	CreatedAt time.Time

	ctx    context.Context
	cancel context.CancelFunc
	now    func() time.Time
	log    *logrus.Entry

	mu          sync.Mutex
	status      types.SessionStatus
	progress    []types.ProgressEntry
	errMsg      *string
	files       []types.ChangedFile
	output      string
	simulated   bool
	warnings    []string
	branch      string
	repoURL     string
	completedAt *time.Time
	process     shell.Terminator
}

// Context is cancelled when the session is stopped
func (s *Session) Context() context.Context {
	return s.ctx
}

func (s *Session) Status() types.SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// AddProgress appends a timestamped message to the progress log
func (s *Session) AddProgress(message string) {
	s.mu.Lock()
	s.appendProgress(message)
	s.mu.Unlock()

	s.log.Info(message)
}

func (s *Session) appendProgress(message string) {
	ts := s.now()
	if n := len(s.progress); n > 0 && ts.Before(s.progress[n-1].Time) {
		ts = s.progress[n-1].Time
	}
	s.progress = append(s.progress, types.ProgressEntry{Time: ts, Message: message})
}

// AddWarning records a non-fatal step failure in both the warnings list
// and the progress log.
func (s *Session) AddWarning(message string) {
	s.mu.Lock()
	s.warnings = append(s.warnings, message)
	s.appendProgress("Warning: " + message)
	s.mu.Unlock()

	s.log.Warn(message)
}

// AddFiles appends changed-file descriptors
func (s *Session) AddFiles(files ...types.ChangedFile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files = append(s.files, files...)
}

// SetFiles replaces the changed-file list
func (s *Session) SetFiles(files []types.ChangedFile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files = append([]types.ChangedFile(nil), files...)
}

func (s *Session) SetOutput(output string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.output = output
}

func (s *Session) MarkSimulated() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.simulated = true
}

func (s *Session) Simulated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.simulated
}

func (s *Session) SetBranch(branch string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.branch = branch
}

func (s *Session) Branch() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.branch
}

func (s *Session) SetRepoURL(repoURL string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.repoURL = repoURL
}

// AttachProcess tracks the running agent so Stop can terminate it. Pass
// nil once the process has exited.
func (s *Session) AttachProcess(p shell.Terminator) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.process = p
}

// MarkRunning moves a pending session to running. It returns false when
// the session was stopped before its worker picked it up.
func (s *Session) MarkRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != types.StatusPending {
		return false
	}
	s.status = types.StatusRunning
	return true
}

// Finish moves the session to a terminal status. A session that is
// already terminal is left untouched and false is returned.
func (s *Session) Finish(status types.SessionStatus, errMsg string) bool {
	s.mu.Lock()
	if s.status.IsTerminal() {
		s.mu.Unlock()
		return false
	}
	s.status = status
	if errMsg != "" {
		s.errMsg = &errMsg
	}
	now := s.now()
	if now.Before(s.CreatedAt) {
		now = s.CreatedAt
	}
	s.completedAt = &now
	s.process = nil
	s.mu.Unlock()

	s.cancel()
	entry := s.log.WithField("status", status)
	if errMsg != "" {
		entry.WithField("error", errMsg).Warn("Session finished")
	} else {
		entry.Info("Session finished")
	}
	return true
}

// stop marks the session stopped and terminates its process. It reports
// whether the status changed.
func (s *Session) stop() bool {
	s.mu.Lock()
	if s.status.IsTerminal() {
		s.mu.Unlock()
		return false
	}
	proc := s.process
	s.status = types.StatusStopped
	now := s.now()
	if now.Before(s.CreatedAt) {
		now = s.CreatedAt
	}
	s.completedAt = &now
	s.process = nil
	s.appendProgress("Session stopped by user")
	s.mu.Unlock()

	s.cancel()
	if proc != nil {
		if err := proc.Terminate(); err != nil {
			s.log.WithError(err).Warn("Failed to terminate agent process")
		}
	}
	s.log.Info("Session stopped")
	return true
}

// Snapshot returns a deep copy of the session state
func (s *Session) Snapshot() types.SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := types.SessionSnapshot{
		ID:        s.ID,
		Agent:     s.Agent,
		Workflow:  s.Workflow,
		Task:      s.Task,
		Config:    s.Config,
		Status:    s.status,
		Progress:  append([]types.ProgressEntry{}, s.progress...),
		Files:     make([]types.ChangedFile, len(s.files)),
		Output:    s.output,
		Simulated: s.simulated,
		Warnings:  append([]string{}, s.warnings...),
		Branch:    s.branch,
		RepoURL:   s.repoURL,
		CreatedAt: s.CreatedAt,
	}
	for i, f := range s.files {
		if f.Content != nil {
			content := *f.Content
			f.Content = &content
		}
		snap.Files[i] = f
	}
	if s.errMsg != nil {
		msg := *s.errMsg
		snap.Error = &msg
	}
	if s.completedAt != nil {
		t := *s.completedAt
		snap.CompletedAt = &t
	}
	return snap
}
