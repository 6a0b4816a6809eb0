// Package runner executes external command-line tools and captures their
// output, so that callers can be tested against canned results instead of
// real binaries.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Command is a single invocation of an external program.
type Command struct {
	Name string
	Args []string
	Dir  string
}

// String renders the command the way a user would type it in a shell.
func (c Command) String() string {
	parts := make([]string, 0, len(c.Args)+1)
	parts = append(parts, quote(c.Name))
	for _, a := range c.Args {
		parts = append(parts, quote(a))
	}
	return strings.Join(parts, " ")
}

func quote(s string) string {
	if s == "" || strings.ContainsAny(s, " \t\"'") {
		return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
	}
	return s
}

// Result holds what a finished process produced.
type Result struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
}

// Runner runs a command to completion. A nonzero exit status is reported
// through Result.ExitCode, not as an error; the error is reserved for
// failures to start or wait for the process.
type Runner interface {
	Run(ctx context.Context, cmd Command) (Result, error)
}

// Func adapts an ordinary function to the Runner interface.
type Func func(ctx context.Context, cmd Command) (Result, error)

// Run calls f(ctx, cmd).
func (f Func) Run(ctx context.Context, cmd Command) (Result, error) {
	return f(ctx, cmd)
}

// ExecRunner runs commands with os/exec. Arguments are passed directly to
// the program; no shell is involved.
type ExecRunner struct{}

// Run starts cmd and waits for it to exit.
func (ExecRunner) Run(ctx context.Context, cmd Command) (Result, error) {
	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Dir = cmd.Dir
	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	err := c.Run()
	res := Result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	}
	if err != nil {
		return res, fmt.Errorf("running %s: %w", cmd.Name, err)
	}
	return res, nil
}

// ProcessError reports an external program that exited with a nonzero
// status. It carries the captured output so the caller can show it.
type ProcessError struct {
	Command  Command
	ExitCode int
	Stdout   []byte
	Stderr   []byte
}

func (e *ProcessError) Error() string {
	return fmt.Sprintf("%s exited with status %d", e.Command.Name, e.ExitCode)
}

// Check runs cmd and converts a nonzero exit status into a *ProcessError.
func Check(ctx context.Context, r Runner, cmd Command) (Result, error) {
	res, err := r.Run(ctx, cmd)
	if err != nil {
		return res, err
	}
	if res.ExitCode != 0 {
		return res, &ProcessError{
			Command:  cmd,
			ExitCode: res.ExitCode,
			Stdout:   res.Stdout,
			Stderr:   res.Stderr,
		}
	}
	return res, nil
}
