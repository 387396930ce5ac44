// Package shell runs external commands with timeouts, either to completion
// or streaming their combined output line by line.
package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// waitDelay bounds how long Wait blocks on pipes held open by grandchildren
// after the command itself was killed.
const waitDelay = 5 * time.Second

// Command describes one process invocation. A non-empty Shell runs
// `sh -c Shell` and ignores Name and Args.
type Command struct {
	Name    string
	Args    []string
	Shell   string
	Dir     string
	Env     []string // KEY=VALUE entries appended to the current environment
	Timeout time.Duration
}

func (c Command) label() string {
	if c.Shell != "" {
		return "sh"
	}
	return c.Name
}

// Result is the outcome of a blocking Run. Process failures are reported
// here rather than as Go errors.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Message  string
	TimedOut bool
}

// OK reports a zero exit with no launch or timeout failure
func (r Result) OK() bool {
	return r.ExitCode == 0 && r.Message == ""
}

// Combined returns the failure text most useful to a human: the runner
// message, then stderr, then stdout.
func (r Result) Combined() string {
	parts := make([]string, 0, 3)
	for _, s := range []string{r.Message, r.Stderr, r.Stdout} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n")
}

// Terminator is implemented by anything that can be asked to stop
type Terminator interface {
	Terminate() error
}

// Runner launches processes. LookPathFunc defaults to exec.LookPath and
// can be replaced in tests to hide binaries.
type Runner struct {
	LookPathFunc func(name string) (string, error)
}

// NewRunner returns a Runner backed by the real PATH
func NewRunner() *Runner {
	return &Runner{LookPathFunc: exec.LookPath}
}

// LookPath reports whether name resolves to an executable
func (r *Runner) LookPath(name string) (string, bool) {
	lookPath := r.LookPathFunc
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	path, err := lookPath(name)
	if err != nil {
		return "", false
	}
	return path, true
}

// Run executes cmd to completion and captures stdout and stderr separately.
func (r *Runner) Run(ctx context.Context, cmd Command) Result {
	ctx, cancel := withTimeout(ctx, cmd.Timeout)
	defer cancel()

	c := build(ctx, cmd)
	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	err := c.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if err == nil {
		return res
	}
	res.ExitCode, res.Message, res.TimedOut = classify(ctx, cmd, c.ProcessState != nil, err)
	return res
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout > 0 {
		return context.WithTimeout(ctx, timeout)
	}
	return context.WithCancel(ctx)
}

func build(ctx context.Context, cmd Command) *exec.Cmd {
	var c *exec.Cmd
	if cmd.Shell != "" {
		c = exec.CommandContext(ctx, "sh", "-c", cmd.Shell)
	} else {
		c = exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	}
	c.Dir = cmd.Dir
	if len(cmd.Env) > 0 {
		c.Env = append(os.Environ(), cmd.Env...)
	}
	setProcessGroup(c)
	c.Cancel = func() error {
		return killGroup(c.Process)
	}
	c.WaitDelay = waitDelay
	return c
}

// classify maps an exec error to (exit code, message, timed out).
func classify(ctx context.Context, cmd Command, started bool, err error) (int, string, bool) {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded) && cmd.Timeout > 0:
		return -1, fmt.Sprintf("command timed out after %s", cmd.Timeout), true
	case errors.Is(ctx.Err(), context.Canceled):
		return -1, "command canceled", false
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), "", false
	}
	if !started {
		return -1, fmt.Sprintf("failed to start %s: %v", cmd.label(), err), false
	}
	return -1, fmt.Sprintf("%s failed: %v", cmd.label(), err), false
}
