// Package cli starts external tools (docker, ollama) for job runners. The
// process is bound to the caller's context so cancelling a task kills it.
package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"
)

// Command describes a process to start.
type Command struct {
	// Name is the executable, resolved through PATH
	Name string

	// Args are the arguments after Name
	Args []string

	// Env entries are appended to the current process environment
	Env []string

	// Dir is the working directory; empty means the current one
	Dir string
}

// Argv returns Name followed by Args.
func (c Command) Argv() []string {
	return append([]string{c.Name}, c.Args...)
}

// Output is what a finished process produced.
type Output struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// Lines splits Stdout into non-empty lines.
func (o *Output) Lines() []string {
	var lines []string
	for _, line := range strings.Split(o.Stdout, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// ExitError reports a process that ran and exited with a non-zero status.
type ExitError struct {
	Name   string
	Code   int
	Stderr string
}

func (e *ExitError) Error() string {
	if e.Stderr != "" {
		return e.Stderr
	}
	return fmt.Sprintf("%s exited with status %d", e.Name, e.Code)
}

// Runner starts a command and waits for it.
type Runner interface {
	Run(ctx context.Context, cmd Command) (*Output, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct {
	logger *slog.Logger
}

// NewExecRunner creates a Runner backed by exec.CommandContext.
func NewExecRunner(logger *slog.Logger) *ExecRunner {
	return &ExecRunner{logger: logger.With("component", "cli")}
}

// Run starts the command and waits for it to exit. A non-zero exit yields an
// *ExitError carrying the trimmed stderr. If ctx ends first the process is
// killed and ctx.Err() is returned.
func (r *ExecRunner) Run(ctx context.Context, c Command) (*Output, error) {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}
	cmd.Dir = c.Dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()

	out := &Output{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	if err == nil {
		r.logger.Debug("command finished", "name", c.Name, "duration", out.Duration)
		return out, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		out.ExitCode = -1
		return out, ctxErr
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		out.ExitCode = exitErr.ExitCode()
		r.logger.Debug("command exited with error",
			"name", c.Name,
			"exit_code", out.ExitCode,
			"duration", out.Duration)
		return out, &ExitError{
			Name:   c.Name,
			Code:   out.ExitCode,
			Stderr: strings.TrimSpace(out.Stderr),
		}
	}

	out.ExitCode = -1
	return out, fmt.Errorf("start %s: %w", c.Name, err)
}
