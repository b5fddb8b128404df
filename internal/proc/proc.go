// Package proc runs external commands with captured output.
package proc

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strconv"
	"strings"
)

// Result holds the captured output streams of a command.
type Result struct {
	Stdout []byte
	Stderr []byte
}

// StdoutString returns stdout with surrounding whitespace removed.
func (r Result) StdoutString() string {
	return strings.TrimSpace(string(r.Stdout))
}

// StderrString returns stderr with surrounding whitespace removed.
func (r Result) StderrString() string {
	return strings.TrimSpace(string(r.Stderr))
}

// Runner executes a command and waits for it to exit.
// A nil env runs the command with the current process environment.
type Runner interface {
	Run(ctx context.Context, env []string, name string, args ...string) (Result, error)
}

// ExecRunner is a Runner backed by os/exec.
type ExecRunner struct{}

// Run starts name with args and blocks until it exits.
// Output captured before a failure is returned alongside the error.
func (ExecRunner) Run(ctx context.Context, env []string, name string, args ...string) (Result, error) {
	var stdout, stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = env
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	if err != nil {
		return res, newInvocationError(name, err)
	}
	return res, nil
}

// InvocationError is returned when a command cannot be started or exits
// with a non-zero status.
type InvocationError struct {
	Command  string
	ExitCode int // -1 if the command never ran to completion
	Err      error
}

func newInvocationError(name string, err error) *InvocationError {
	code := -1
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code = exitErr.ExitCode()
	}
	return &InvocationError{Command: name, ExitCode: code, Err: err}
}

func (e *InvocationError) Error() string {
	if e.ExitCode >= 0 {
		return e.Command + " exited with status " + strconv.Itoa(e.ExitCode)
	}
	return "failed to run " + e.Command + ": " + e.Err.Error()
}

func (e *InvocationError) Unwrap() error {
	return e.Err
}

// Environ merges extra KEY=VALUE pairs over base, replacing existing keys.
func Environ(base []string, extra ...string) []string {
	keys := make(map[string]bool, len(extra))
	for _, kv := range extra {
		if k, _, ok := strings.Cut(kv, "="); ok {
			keys[k] = true
		}
	}

	env := make([]string, 0, len(base)+len(extra))
	for _, kv := range base {
		k, _, _ := strings.Cut(kv, "=")
		if keys[k] {
			continue
		}
		env = append(env, kv)
	}
	return append(env, extra...)
}
