// Package agent runs pipeline steps on an execution host: the local machine
// or a container started for the duration of a stage.
package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Iron-Ham/mailcd/internal/env"
	"github.com/Iron-Ham/mailcd/internal/errors"
)

// Agent executes steps for one stage.
type Agent interface {
	// Start acquires the execution host. vars become the host's base
	// environment where the host supports one.
	Start(ctx context.Context, vars *env.Vars) error
	// Stop releases the execution host. It is safe to call on an agent that
	// never started.
	Stop(ctx context.Context) error
	// RunStep runs one shell command. A non-zero exit is reported in the
	// result; err is only set when the command could not be run.
	RunStep(ctx context.Context, step string, vars *env.Vars) (StepResult, error)
	// Snapshot returns the environment as the steps will see it.
	Snapshot(ctx context.Context, vars *env.Vars) (string, error)
	// WorkspaceDir is the workspace path from the agent's point of view.
	WorkspaceDir() string
}

// StepResult is the outcome of one step.
type StepResult struct {
	Step     string
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// Succeeded reports whether the step exited zero.
func (r StepResult) Succeeded() bool {
	return r.ExitCode == 0
}

// Shell is the command interpreter used to run a step string.
type Shell struct {
	Program string
	Flag    string
	// EnvCommand prints the environment.
	EnvCommand string
}

// Command returns the argv for running step.
func (s Shell) Command(step string) []string {
	return []string{s.Program, s.Flag, step}
}

// Shells for the supported platforms.
var (
	LinuxShell   = Shell{Program: "sh", Flag: "-c", EnvCommand: "env"}
	WindowsShell = Shell{Program: "cmd", Flag: "/c", EnvCommand: "set"}
)

// ShellFor returns the shell for an operating system name.
func ShellFor(os string) Shell {
	if os == "windows" {
		return WindowsShell
	}
	return LinuxShell
}

// normalizeOutput converts CRLF and lone CR line endings to LF and trims
// surrounding whitespace.
func normalizeOutput(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.TrimSpace(strings.ReplaceAll(s, "\r", "\n"))
}

// Scope starts a, records its environment snapshot, calls fn and always
// stops a afterwards: on success, when fn fails, when fn panics and when ctx
// is cancelled. Stop runs on a context that is not cancelled with ctx.
func Scope(ctx context.Context, a Agent, vars *env.Vars, fn func(ctx context.Context, snapshot string) error) (err error) {
	if err := a.Start(ctx, vars); err != nil {
		// A partially started agent may still hold resources.
		if stopErr := a.Stop(context.WithoutCancel(ctx)); stopErr != nil {
			return errors.Join(err, stopErr)
		}
		return err
	}

	defer func() {
		r := recover()
		if stopErr := a.Stop(context.WithoutCancel(ctx)); stopErr != nil {
			err = errors.Join(err, fmt.Errorf("stop agent: %w", stopErr))
		}
		if r != nil {
			panic(r)
		}
	}()

	snapshot, err := a.Snapshot(ctx, vars)
	if err != nil {
		return fmt.Errorf("capture environment: %w", err)
	}
	return fn(ctx, snapshot)
}
