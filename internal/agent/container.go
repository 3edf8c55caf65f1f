package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/Iron-Ham/mailcd/internal/container"
	"github.com/Iron-Ham/mailcd/internal/env"
	"github.com/Iron-Ham/mailcd/internal/logging"
)

// Container runs steps inside a detached container with the workspace
// mounted. The container lives from Start to Stop.
type Container struct {
	runtime      *container.Runtime
	image        string
	hostDir      string
	containerDir string
	shell        Shell
	logger       *logging.Logger

	id string
}

// NewContainer creates a container agent for image. hostDir is mounted at
// containerDir.
func NewContainer(rt *container.Runtime, image, hostDir, containerDir string, shell Shell, logger *logging.Logger) *Container {
	return &Container{
		runtime:      rt,
		image:        image,
		hostDir:      hostDir,
		containerDir: containerDir,
		shell:        shell,
		logger:       logging.OrNop(logger).WithComponent("agent").With("agent", "container", "image", image),
	}
}

// ID returns the running container ID, empty before Start.
func (c *Container) ID() string {
	return c.id
}

// Image returns the image tag.
func (c *Container) Image() string {
	return c.image
}

// Start implements Agent.
func (c *Container) Start(ctx context.Context, vars *env.Vars) error {
	if c.id != "" {
		return fmt.Errorf("container %s already started", c.id)
	}
	id, err := c.runtime.Run(ctx, container.RunSpec{
		Image:        c.image,
		HostDir:      c.hostDir,
		ContainerDir: c.containerDir,
		Env:          vars.Pairs(),
	})
	if err != nil {
		return err
	}
	c.id = id
	return nil
}

// Stop implements Agent.
func (c *Container) Stop(ctx context.Context) error {
	if c.id == "" {
		return nil
	}
	id := c.id
	c.id = ""
	return c.runtime.Stop(ctx, id)
}

// WorkspaceDir implements Agent.
func (c *Container) WorkspaceDir() string {
	return c.containerDir
}

// RunStep implements Agent.
func (c *Container) RunStep(ctx context.Context, step string, vars *env.Vars) (StepResult, error) {
	if c.id == "" {
		return StepResult{Step: step, ExitCode: -1}, fmt.Errorf("container agent not started")
	}
	started := time.Now()
	out, err := c.runtime.Exec(ctx, c.id, vars.Pairs(), c.shell.Command(step)...)
	result := StepResult{
		Step:     step,
		Stdout:   normalizeOutput(out.Stdout),
		Stderr:   normalizeOutput(out.Stderr),
		ExitCode: out.ExitCode,
		Duration: time.Since(started),
	}
	if err != nil {
		return result, err
	}
	c.logger.Debug("step finished", "step", step, "exit_code", out.ExitCode, "container", c.id)
	return result, nil
}

// Snapshot implements Agent.
func (c *Container) Snapshot(ctx context.Context, vars *env.Vars) (string, error) {
	if c.id == "" {
		return "", fmt.Errorf("container agent not started")
	}
	out, err := c.runtime.Exec(ctx, c.id, vars.Pairs(), c.shell.Command(c.shell.EnvCommand)...)
	if err != nil {
		return "", err
	}
	return normalizeOutput(out.Stdout), nil
}
