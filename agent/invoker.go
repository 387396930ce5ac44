package agent

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"orca-agent-backend/logging"
	"orca-agent-backend/shell"
	"orca-agent-backend/types"
)

// Sink receives progress from an invocation. *sessions.Session implements it.
type Sink interface {
	AddProgress(message string)
	AttachProcess(p shell.Terminator)
}

// Starter resolves and launches agent binaries
type Starter interface {
	LookPath(name string) (string, bool)
	Start(ctx context.Context, cmd shell.Command) (*shell.Process, error)
}

// ExitError reports a non-zero agent exit
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("Agent exited with code %d", e.Code)
}

// Request is one agent invocation
type Request struct {
	Profile     Profile
	Task        string
	WorkDir     string
	Env         []string
	Model       string
	Environment string
}

// Outcome is the result of Invoke. Err is set for any failure; Output is
// kept even then.
type Outcome struct {
	Simulated bool
	Binary    string
	Output    string
	Files     []types.ChangedFile
	Err       error
}

// Invoker runs agents. Timeout bounds one real run; SimulationDelay is
// how long a simulated run pretends to work.
type Invoker struct {
	Runner          Starter
	Timeout         time.Duration
	SimulationDelay time.Duration
	MaxOutput       int

	log *logrus.Entry
}

func NewInvoker(runner Starter) *Invoker {
	return &Invoker{
		Runner:          runner,
		Timeout:         30 * time.Minute,
		SimulationDelay: 2 * time.Second,
		MaxOutput:       MaxOutputBytes,
		log:             logging.NewLogger("agent"),
	}
}

// Resolve returns the first candidate found on PATH and its full path
func (i *Invoker) Resolve(p Profile) (name, path string, found bool) {
	for _, candidate := range p.Candidates {
		if resolved, ok := i.Runner.LookPath(candidate); ok {
			return candidate, resolved, true
		}
	}
	return "", "", false
}

// Invoke runs the agent for req, or simulates it when no binary is found
func (i *Invoker) Invoke(ctx context.Context, sink Sink, req Request) Outcome {
	binary, path, found := i.Resolve(req.Profile)
	if !found {
		return i.simulate(ctx, sink, req)
	}
	return i.run(ctx, sink, binary, path, req)
}

func (i *Invoker) run(ctx context.Context, sink Sink, binary, path string, req Request) Outcome {
	log := i.log.WithFields(logrus.Fields{"binary": binary, "dir": req.WorkDir})
	sink.AddProgress(fmt.Sprintf("Running %s...", binary))

	proc, err := i.Runner.Start(ctx, shell.Command{
		Name:    path,
		Args:    req.Profile.Args(req.Task),
		Dir:     req.WorkDir,
		Env:     req.Env,
		Timeout: i.Timeout,
	})
	if err != nil {
		log.WithError(err).Error("Failed to start agent")
		return Outcome{Binary: binary, Err: err}
	}
	sink.AttachProcess(proc)
	defer sink.AttachProcess(nil)
	log.WithField("pid", proc.Pid()).Info("Agent started")

	out := newOutputBuffer(i.MaxOutput)
	for line := range proc.Lines() {
		out.WriteLine(line)
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			sink.AddProgress(trimmed)
		}
	}

	code, err := proc.Wait()
	outcome := Outcome{Binary: binary, Output: out.String()}
	switch {
	case err != nil:
		outcome.Err = err
	case code != 0:
		outcome.Err = &ExitError{Code: code}
	}
	log.WithField("exit_code", code).Info("Agent exited")
	return outcome
}

func (i *Invoker) simulate(ctx context.Context, sink Sink, req Request) Outcome {
	p := req.Profile
	sink.AddProgress(fmt.Sprintf("%s CLI not found - running in simulation mode", p.Title))
	sink.AddProgress("Simulating agent execution...")

	if i.SimulationDelay > 0 {
		timer := time.NewTimer(i.SimulationDelay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return Outcome{Simulated: true, Err: ctx.Err()}
		}
	}

	sink.AddProgress("Agent analyzed the task")
	sink.AddProgress("Generated solution")

	content := placeholder(p, req)
	if err := os.MkdirAll(req.WorkDir, 0755); err != nil {
		return Outcome{Simulated: true, Err: fmt.Errorf("failed to create working directory: %w", err)}
	}
	if err := os.WriteFile(filepath.Join(req.WorkDir, p.PlaceholderFile), []byte(content), 0644); err != nil {
		return Outcome{Simulated: true, Err: fmt.Errorf("failed to write %s: %w", p.PlaceholderFile, err)}
	}

	return Outcome{
		Simulated: true,
		Output:    "Task completed in simulation mode",
		Files: []types.ChangedFile{{
			Path:    p.PlaceholderFile,
			Type:    types.ChangeCreated,
			Content: &content,
		}},
	}
}

func placeholder(p Profile, req Request) string {
	return fmt.Sprintf(`# Agent Output

## Task
%s

## Analysis
The %s agent analyzed your task and generated this response.

## Notes
- This is a simulation because %s CLI is not installed
- To use the real agent, install one of: %s
- Model requested: %s
- Environment: %s
`, req.Task, p.Title, p.Title, strings.Join(p.Candidates, ", "), req.Model, req.Environment)
}
