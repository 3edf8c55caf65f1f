package agent

import (
	"context"
	"fmt"
	"runtime"

	"github.com/Iron-Ham/mailcd/internal/container"
	"github.com/Iron-Ham/mailcd/internal/errors"
	"github.com/Iron-Ham/mailcd/internal/logging"
	"github.com/Iron-Ham/mailcd/internal/pipeline"
)

// DefaultContainerWorkspace is where the workspace is mounted in containers.
const DefaultContainerWorkspace = "/.ws"

// Factory creates the agent a stage asks for.
type Factory struct {
	// Runtime drives containers. It may be nil when no stage uses a node.
	Runtime *container.Runtime
	// Workspace is the host workspace directory.
	Workspace string
	// ContainerWorkspace is the mount point inside containers.
	ContainerWorkspace string
	// DefaultOS applies to node references that do not name an OS.
	DefaultOS string
	// SwitchEngine switches Docker Desktop between Linux and Windows engines
	// on Windows hosts.
	SwitchEngine bool
	// HostOS overrides runtime.GOOS.
	HostOS string
	// Notify receives user-facing progress messages, such as image builds.
	Notify func(msg string)
	Logger *logging.Logger
}

func (f *Factory) hostOS() string {
	if f.HostOS != "" {
		return f.HostOS
	}
	return runtime.GOOS
}

func (f *Factory) notify(format string, args ...any) {
	if f.Notify != nil {
		f.Notify(fmt.Sprintf(format, args...))
	}
}

// New returns a Local agent when node is nil and a Container agent
// otherwise. For containers it waits for the runtime, checks that the host
// can run the requested platform and builds the image when it is missing.
func (f *Factory) New(ctx context.Context, node *pipeline.Node) (Agent, error) {
	if node == nil {
		return NewLocal(f.Workspace, f.Logger), nil
	}
	if f.Runtime == nil {
		return nil, errors.NewContainerError("no container runtime configured", errors.ErrRuntimeUnavailable)
	}

	platform := node.Platform(f.DefaultOS)
	host := f.hostOS()
	logger := logging.OrNop(f.Logger).WithComponent("agent").With("node", node.String(), "platform", platform)

	if err := f.Runtime.WaitUntilUp(ctx); err != nil {
		return nil, err
	}

	if host != pipeline.OSWindows && platform == pipeline.OSWindows {
		return nil, errors.NewContainerError(
			fmt.Sprintf("windows containers are not supported on %s hosts", host),
			errors.ErrUnsupportedPlatform,
		).WithRuntime(f.Runtime.Binary())
	}
	if host == pipeline.OSWindows && f.SwitchEngine {
		logger.Debug("switching container engine")
		if err := f.Runtime.SwitchEngine(ctx, platform); err != nil {
			return nil, err
		}
	}

	image, built, err := f.Runtime.EnsureImage(ctx, f.Workspace, node.Containerfile)
	if err != nil {
		return nil, err
	}
	if built {
		f.notify("container image not found, built %s:%s (%s)", platform, node.Containerfile, image)
	}

	dir := f.ContainerWorkspace
	if dir == "" {
		dir = DefaultContainerWorkspace
		if platform == pipeline.OSWindows {
			dir = `C:\.ws`
		}
	}
	logger.Info("container agent ready", "image", image)
	return NewContainer(f.Runtime, image, f.Workspace, dir, ShellFor(platform), f.Logger), nil
}
