package container

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
)

// Output is the captured result of one runtime command.
type Output struct {
	Args     []string
	Stdout   string
	Stderr   string
	ExitCode int
}

// Combined returns stdout and stderr joined, trimmed.
func (o Output) Combined() string {
	return strings.TrimSpace(strings.TrimSpace(o.Stdout) + "\n" + strings.TrimSpace(o.Stderr))
}

// Runner abstracts command execution so the runtime CLI can be faked in
// tests. A command that starts but exits non-zero is reported through
// Output.ExitCode with a nil error; err is only set when the command could
// not be run at all.
type Runner interface {
	Run(ctx context.Context, dir, name string, args ...string) (Output, error)
	LookPath(name string) (string, error)
}

// CLIRunner executes commands using os/exec.
type CLIRunner struct{}

// NewCLIRunner creates a new CLI runner.
func NewCLIRunner() *CLIRunner {
	return &CLIRunner{}
}

// Run executes name with args in dir and captures both output streams.
func (r *CLIRunner) Run(ctx context.Context, dir, name string, args ...string) (Output, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	out := Output{
		Args:   append([]string{name}, args...),
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	if ctxErr := ctx.Err(); err != nil && ctxErr != nil {
		out.ExitCode = -1
		return out, ctxErr
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		out.ExitCode = exitErr.ExitCode()
		return out, nil
	}
	if err != nil {
		out.ExitCode = -1
		return out, err
	}
	return out, nil
}

// LookPath resolves name on PATH.
func (r *CLIRunner) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}
