package agent

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"runtime"
	"time"

	"github.com/Iron-Ham/mailcd/internal/env"
	"github.com/Iron-Ham/mailcd/internal/logging"
)

// Local runs steps on the host in the workspace directory. Each step gets
// the host environment plus the stage variables.
type Local struct {
	workspace string
	shell     Shell
	logger    *logging.Logger
}

// NewLocal creates a Local agent for workspace using the host's shell.
func NewLocal(workspace string, logger *logging.Logger) *Local {
	return &Local{
		workspace: workspace,
		shell:     ShellFor(runtime.GOOS),
		logger:    logging.OrNop(logger).WithComponent("agent").With("agent", "local"),
	}
}

// Start implements Agent. There is nothing to acquire locally.
func (l *Local) Start(ctx context.Context, vars *env.Vars) error {
	return ctx.Err()
}

// Stop implements Agent.
func (l *Local) Stop(ctx context.Context) error {
	return nil
}

// WorkspaceDir implements Agent.
func (l *Local) WorkspaceDir() string {
	return l.workspace
}

// RunStep implements Agent.
func (l *Local) RunStep(ctx context.Context, step string, vars *env.Vars) (StepResult, error) {
	started := time.Now()
	stdout, stderr, code, err := l.run(ctx, l.shell.Command(step), vars)
	result := StepResult{
		Step:     step,
		Stdout:   normalizeOutput(stdout),
		Stderr:   normalizeOutput(stderr),
		ExitCode: code,
		Duration: time.Since(started),
	}
	if err != nil {
		return result, err
	}
	l.logger.Debug("step finished", "step", step, "exit_code", code, "duration", result.Duration.String())
	return result, nil
}

// Snapshot implements Agent.
func (l *Local) Snapshot(ctx context.Context, vars *env.Vars) (string, error) {
	stdout, _, _, err := l.run(ctx, l.shell.Command(l.shell.EnvCommand), vars)
	if err != nil {
		return "", err
	}
	return normalizeOutput(stdout), nil
}

func (l *Local) run(ctx context.Context, argv []string, vars *env.Vars) (stdout, stderr string, code int, err error) {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = l.workspace
	cmd.Env = append(os.Environ(), vars.Pairs()...)

	var out, errOut bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errOut

	runErr := cmd.Run()
	if runErr != nil && ctx.Err() != nil {
		return out.String(), errOut.String(), -1, ctx.Err()
	}
	if exitErr, ok := runErr.(*exec.ExitError); ok {
		return out.String(), errOut.String(), exitErr.ExitCode(), nil
	}
	if runErr != nil {
		return out.String(), errOut.String(), -1, runErr
	}
	return out.String(), errOut.String(), 0, nil
}
