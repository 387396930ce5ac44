// Package agent resolves and runs the coding CLIs, falling back to a
// simulated run when none is installed.
package agent

import (
	"errors"
	"fmt"
	"strings"

	"orca-agent-backend/types"
)

// ErrUnknownAgent is returned by ParseKind for unsupported agent names
var ErrUnknownAgent = errors.New("unknown agent")

// Profile describes how one agent CLI is found and invoked
type Profile struct {
	Kind AgentKind
	// Title is the human readable name used in progress messages
	Title string
	// Candidates are tried in order on PATH
	Candidates      []string
	FixedArgs       []string
	PlaceholderFile string
}

// AgentKind is re-exported for callers that only import this package
type AgentKind = types.AgentKind

var profiles = map[AgentKind]Profile{
	types.AgentClaudeCode: {
		Kind:            types.AgentClaudeCode,
		Title:           "Claude Code",
		Candidates:      []string{"claude-code", "claude", "claude-jb"},
		FixedArgs:       []string{"--print"},
		PlaceholderFile: "agent_output.md",
	},
	types.AgentCodex: {
		Kind:            types.AgentCodex,
		Title:           "Codex",
		Candidates:      []string{"codex", "codex-jb"},
		FixedArgs:       []string{"-c", "model_provider=jbai"},
		PlaceholderFile: "codex_output.md",
	},
}

// Args returns the command line for task
func (p Profile) Args(task string) []string {
	args := append([]string{}, p.FixedArgs...)
	return append(args, task)
}

// ParseKind maps a request's agent field to a kind. Empty selects Claude Code.
func ParseKind(name string) (AgentKind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "claude", "claude-code":
		return types.AgentClaudeCode, nil
	case "codex", "codex-cli":
		return types.AgentCodex, nil
	default:
		return "", fmt.Errorf("%w: %q (supported: claude-code, codex)", ErrUnknownAgent, name)
	}
}

// ProfileFor returns the profile of kind
func ProfileFor(kind AgentKind) (Profile, error) {
	p, ok := profiles[kind]
	if !ok {
		return Profile{}, fmt.Errorf("%w: %q", ErrUnknownAgent, kind)
	}
	return p, nil
}
