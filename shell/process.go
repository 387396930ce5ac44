package shell

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
)

const (
	lineBuffer   = 256
	maxLineBytes = 1024 * 1024
)

// Process is a running command whose merged stdout and stderr are
// delivered through Lines. Lines is closed once the output is drained.
type Process struct {
	cmd    *exec.Cmd
	lines  chan string
	done   chan struct{}
	cancel context.CancelFunc

	mu       sync.Mutex
	exitCode int
	err      error
}

// Start launches cmd without waiting for it. The caller must drain Lines
// and then call Wait.
func (r *Runner) Start(ctx context.Context, cmd Command) (*Process, error) {
	ctx, cancel := withTimeout(ctx, cmd.Timeout)

	c := build(ctx, cmd)
	pr, pw := io.Pipe()
	c.Stdout = pw
	c.Stderr = pw

	if err := c.Start(); err != nil {
		cancel()
		pw.Close()
		pr.Close()
		return nil, fmt.Errorf("failed to start %s: %w", cmd.label(), err)
	}

	p := &Process{
		cmd:    c,
		lines:  make(chan string, lineBuffer),
		done:   make(chan struct{}),
		cancel: cancel,
	}
	go p.scan(pr)
	go func() {
		err := c.Wait()
		pw.Close()

		p.mu.Lock()
		if err != nil {
			code, msg, _ := classify(ctx, cmd, true, err)
			p.exitCode = code
			if msg != "" {
				p.err = errors.New(msg)
			}
		}
		p.mu.Unlock()

		cancel()
		close(p.done)
	}()
	return p, nil
}

func (p *Process) scan(r *io.PipeReader) {
	defer close(p.lines)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		p.lines <- scanner.Text()
	}
	if err := scanner.Err(); err != nil {
		p.lines <- fmt.Sprintf("[output truncated: %v]", err)
		// Keep draining so the child never blocks on a full pipe
		_, _ = io.Copy(io.Discard, r)
	}
}

// Lines returns the output channel
func (p *Process) Lines() <-chan string {
	return p.lines
}

// Wait blocks until the process exits. err is non-nil only for timeouts,
// cancellation and other failures that are not a plain exit status.
func (p *Process) Wait() (int, error) {
	<-p.done
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitCode, p.err
}

// Pid returns the OS process id
func (p *Process) Pid() int {
	return p.cmd.Process.Pid
}

// Terminate sends SIGTERM to the process group
func (p *Process) Terminate() error {
	select {
	case <-p.done:
		return nil
	default:
	}
	return terminateGroup(p.cmd.Process)
}
