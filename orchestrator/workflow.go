package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"

	"orca-agent-backend/agent"
	"orca-agent-backend/git"
	"orca-agent-backend/sessions"
	"orca-agent-backend/types"
)

// runExecute is the execute workflow: optional clone, agent run, and a
// best effort commit and push when both a repository and a token are set.
func (o *Orchestrator) runExecute(s *sessions.Session, profile agent.Profile, remote string) {
	if !s.MarkRunning() {
		return
	}
	defer o.recoverWorkflow(s)

	ctx := s.Context()
	cfg := s.Config
	s.AddProgress(fmt.Sprintf("Initializing %s agent...", profile.Title))
	if cfg.GitToken != "" {
		s.AddProgress("GitHub token configured for commit/push operations")
	}

	workDir := filepath.Join(o.opts.WorkspaceRoot, "sessions", s.ID)
	if remote != "" {
		authURL, err := git.InjectToken(remote, cfg.GitToken)
		if err != nil {
			o.fail(s, err.Error())
			return
		}
		unlock := o.locks.Lock(o.driver.CloneDir(remote))
		defer unlock()

		s.AddProgress("Cloning repository: " + cfg.GitRepoURL)
		dir, res := o.driver.EnsureClone(ctx, authURL)
		if res.IsFatal() {
			o.fail(s, res.Message)
			return
		}
		o.record(s, res)
		workDir = dir
	} else if err := os.MkdirAll(workDir, 0755); err != nil {
		o.fail(s, fmt.Sprintf("failed to create working directory: %v", err))
		return
	}
	if o.stopped(ctx) {
		return
	}

	if !o.invoke(ctx, s, profile, workDir) {
		return
	}

	if remote != "" && cfg.GitToken != "" {
		o.record(s, o.driver.ConfigureIdentity(ctx, workDir))
		branch, res := o.driver.CurrentBranch(ctx, workDir)
		o.record(s, res)
		if branch != "" {
			o.persist(ctx, s, workDir, branch, false)
		}
	}
	o.complete(s)
}

// runGitTask is the git-task workflow: clone, branch, agent run, commit,
// diff and push. Only the clone is fatal.
func (o *Orchestrator) runGitTask(s *sessions.Session, profile agent.Profile, remote string) {
	if !s.MarkRunning() {
		return
	}
	defer o.recoverWorkflow(s)

	ctx := s.Context()
	cfg := s.Config
	branch := s.Branch()
	s.AddProgress(fmt.Sprintf("Initializing %s agent for git task...", profile.Title))

	authURL, err := git.InjectToken(remote, cfg.GitToken)
	if err != nil {
		o.fail(s, err.Error())
		return
	}
	unlock := o.locks.Lock(o.driver.CloneDir(remote))
	defer unlock()

	s.AddProgress("Cloning repository: " + cfg.GitRepoURL)
	dir, res := o.driver.EnsureClone(ctx, authURL)
	if res.IsFatal() {
		o.fail(s, res.Message)
		return
	}
	o.record(s, res)

	o.record(s, o.driver.ConfigureIdentity(ctx, dir))
	o.record(s, o.driver.CheckoutBranch(ctx, dir, branch))
	if o.stopped(ctx) {
		return
	}

	if !o.invoke(ctx, s, profile, dir) {
		return
	}

	o.persist(ctx, s, dir, branch, o.opts.ForcePush)
	o.complete(s)
}

// invoke runs the agent and reports whether the workflow should go on
func (o *Orchestrator) invoke(ctx context.Context, s *sessions.Session, profile agent.Profile, workDir string) bool {
	cfg := s.Config
	s.AddProgress("Using model: " + cfg.Model)
	s.AddProgress("Working directory: " + workDir)
	s.AddProgress("Executing task: " + s.Task)

	out := o.invoker.Invoke(ctx, s, agent.Request{
		Profile: profile,
		Task:    s.Task,
		WorkDir: workDir,
		Env: agent.Environment(profile.Kind, agent.EnvConfig{
			Token:       cfg.Token,
			Environment: cfg.Environment,
			GatewayURL:  o.opts.GatewayURL(cfg.Environment),
			ProxyURL:    o.opts.ProxyURL,
			GitToken:    cfg.GitToken,
		}),
		Model:       cfg.Model,
		Environment: cfg.Environment,
	})
	s.SetOutput(out.Output)
	if o.stopped(ctx) {
		return false
	}
	if out.Err != nil {
		o.fail(s, out.Err.Error())
		return false
	}

	if out.Simulated {
		s.MarkSimulated()
	}
	s.AddFiles(out.Files...)
	return true
}

// persist commits, collects the diff and pushes. Every failure is recorded
// as a warning and the next step still runs. Only a clean status skips the
// rest.
func (o *Orchestrator) persist(ctx context.Context, s *sessions.Session, dir, branch string, force bool) {
	s.AddProgress("Committing changes to repository...")

	changed, res := o.driver.HasChanges(ctx, dir)
	o.record(s, res)
	if res.OK() && !changed {
		return
	}

	committed := o.driver.Commit(ctx, dir, git.CommitMessage(s.Task))
	o.record(s, committed)

	// Without a new commit HEAD still describes the upstream history
	if committed.OK() {
		files, res := o.driver.CollectDiff(ctx, dir)
		o.record(s, res)
		if len(files) > 0 {
			s.SetFiles(files)
		}
	}

	res = o.driver.Push(ctx, dir, branch, force)
	o.record(s, res)
	if res.OK() {
		s.AddProgress("Changes pushed to branch: " + branch)
	}
}

// record logs a step result: ok as progress, anything else as a warning
func (o *Orchestrator) record(s *sessions.Session, res git.StepResult) {
	if res.OK() {
		s.AddProgress(res.Message)
		return
	}
	s.AddWarning(res.Message)
}

func (o *Orchestrator) fail(s *sessions.Session, msg string) {
	s.AddProgress("Task failed: " + msg)
	s.Finish(types.StatusError, msg)
}

func (o *Orchestrator) complete(s *sessions.Session) {
	if o.stopped(s.Context()) {
		return
	}
	if s.Simulated() {
		s.AddProgress("Task completed successfully (simulation)")
	} else {
		s.AddProgress("Task completed successfully")
	}
	s.Finish(types.StatusCompleted, "")
}

func (o *Orchestrator) stopped(ctx context.Context) bool {
	return ctx.Err() != nil
}

// recoverWorkflow turns a panic into a terminal error so a session never
// stays running forever.
func (o *Orchestrator) recoverWorkflow(s *sessions.Session) {
	if r := recover(); r != nil {
		o.log.WithField("session_id", s.ID).Errorf("Workflow panic: %v\n%s", r, debug.Stack())
		o.fail(s, fmt.Sprintf("internal error: %v", r))
	}
}
