package rpc

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"orca-agent-backend/grazie"
	"orca-agent-backend/shell"
)

type agentTaskParams struct {
	Task        string `mapstructure:"task"`
	Model       string `mapstructure:"model"`
	Token       string `mapstructure:"token"`
	Environment string `mapstructure:"environment"`
}

type pathParams struct {
	Path string `mapstructure:"path"`
}

type writeParams struct {
	Path    string `mapstructure:"path"`
	Content string `mapstructure:"content"`
}

type execParams struct {
	Command string `mapstructure:"command"`
}

type method func(ctx context.Context, s *Server, req Request) (interface{}, *Error)

var methods = map[string]method{
	"agent.task": agentTask,
	"file.list":  fileList,
	"file.read":  fileRead,
	"file.write": fileWrite,
	"exec":       execCommand,
}

func agentTask(ctx context.Context, s *Server, req Request) (interface{}, *Error) {
	var p agentTaskParams
	if err := decodeParams(req.Params, &p); err != nil {
		return nil, err
	}
	if strings.TrimSpace(p.Task) == "" {
		return nil, newError(CodeInvalidParams, "Invalid params: task is required")
	}
	if s.NewMessenger == nil {
		return nil, newError(CodeServerError, "agent.task is not available")
	}

	messenger, err := s.NewMessenger(p.Token, p.Environment)
	if err != nil {
		return nil, newError(CodeServerError, "%v", err)
	}
	resp, err := messenger.Message(ctx, grazie.MessageRequest{
		Model:  p.Model,
		System: s.systemPrompt(),
		Prompt: p.Task,
	})
	if err != nil {
		return nil, newError(CodeServerError, "%v", err)
	}

	return map[string]interface{}{
		"status": "completed",
		"output": resp.Text,
		"model":  resp.Model,
		"usage": map[string]int64{
			"input_tokens":  resp.InputTokens,
			"output_tokens": resp.OutputTokens,
		},
	}, nil
}

func (s *Server) systemPrompt() string {
	var b strings.Builder
	b.WriteString("You are an AI coding assistant running in a development environment.\n\n")
	fmt.Fprintf(&b, "Workspace root: %s\n\n", s.Root)

	files, err := workspaceFiles(s.Root, maxContextFiles)
	if err != nil {
		fmt.Fprintf(&b, "Could not read workspace: %v\n", err)
	} else {
		fmt.Fprintf(&b, "Files in workspace (first %d):\n", maxContextFiles)
		for _, f := range files {
			fmt.Fprintf(&b, "  - %s\n", f)
		}
	}

	b.WriteString("\nWhen asked to create or modify files, provide the complete file content.\n")
	b.WriteString("When asked to execute commands, explain what the command does.")
	return b.String()
}

func fileList(_ context.Context, s *Server, req Request) (interface{}, *Error) {
	var p pathParams
	if err := decodeParams(req.Params, &p); err != nil {
		return nil, err
	}

	files, err := listEntries(resolve(s.Root, p.Path))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, newError(CodeServerError, "Path does not exist: %s", p.Path)
	}
	if err != nil {
		return nil, newError(CodeServerError, "%v", err)
	}
	return map[string]interface{}{"files": files}, nil
}

func fileRead(_ context.Context, s *Server, req Request) (interface{}, *Error) {
	var p pathParams
	if err := decodeParams(req.Params, &p); err != nil {
		return nil, err
	}
	if strings.TrimSpace(p.Path) == "" {
		return nil, newError(CodeInvalidParams, "Invalid params: path is required")
	}

	content, err := os.ReadFile(resolve(s.Root, p.Path))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, newError(CodeServerError, "File does not exist: %s", p.Path)
	}
	if err != nil {
		return nil, newError(CodeServerError, "%v", err)
	}
	return map[string]interface{}{"content": string(content)}, nil
}

func fileWrite(_ context.Context, s *Server, req Request) (interface{}, *Error) {
	var p writeParams
	if err := decodeParams(req.Params, &p); err != nil {
		return nil, err
	}
	if strings.TrimSpace(p.Path) == "" {
		return nil, newError(CodeInvalidParams, "Invalid params: path is required")
	}

	target := resolve(s.Root, p.Path)
	if target == filepath.Clean(s.Root) {
		return nil, newError(CodeInvalidParams, "Invalid params: path must name a file")
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return nil, newError(CodeServerError, "%v", err)
	}
	if err := os.WriteFile(target, []byte(p.Content), 0o644); err != nil {
		return nil, newError(CodeServerError, "%v", err)
	}
	return map[string]interface{}{"status": "success", "path": p.Path}, nil
}

func execCommand(ctx context.Context, s *Server, req Request) (interface{}, *Error) {
	var p execParams
	if err := decodeParams(req.Params, &p); err != nil {
		return nil, err
	}
	if strings.TrimSpace(p.Command) == "" {
		return nil, newError(CodeInvalidParams, "Invalid params: command is required")
	}

	s.log.WithField("command", p.Command).Info("Executing command")
	res := s.Runner.Run(ctx, shell.Command{
		Shell:   p.Command,
		Dir:     s.Root,
		Timeout: s.ExecTimeout,
	})
	switch {
	case res.TimedOut:
		return nil, newError(CodeServerError, "Command timeout after %s", s.ExecTimeout)
	case res.Message != "":
		return nil, newError(CodeServerError, "%s", res.Message)
	}

	return map[string]interface{}{
		"stdout":     res.Stdout,
		"stderr":     res.Stderr,
		"returncode": res.ExitCode,
	}, nil
}
