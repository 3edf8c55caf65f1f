// Package container drives a Docker-compatible container runtime through its
// command line.
//
// Every command goes through a [Runner] so tests can replace the runtime with
// a fake. Images built from a container definition are tagged with the
// definition's content hash, which makes the image list a build cache: an
// unchanged definition is never rebuilt.
package container

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/Iron-Ham/mailcd/internal/errors"
	"github.com/Iron-Ham/mailcd/internal/logging"
	"github.com/Iron-Ham/mailcd/internal/store"
)

// Defaults for the readiness poll.
const (
	DefaultBinary            = "docker"
	DefaultReadinessAttempts = 10
	DefaultReadinessInterval = time.Second
)

// desktopCLI is the Docker Desktop helper that switches between Linux and
// Windows engines. It lives three levels above the docker binary.
const desktopCLI = "DockerCli.exe"

// Options configures a Runtime.
type Options struct {
	Binary            string
	ReadinessAttempts int
	ReadinessInterval time.Duration
	Logger            *logging.Logger
}

// Runtime is a container runtime CLI.
type Runtime struct {
	binary   string
	runner   Runner
	logger   *logging.Logger
	attempts int
	interval time.Duration
}

// New creates a Runtime that executes commands through runner.
func New(runner Runner, opts Options) *Runtime {
	if runner == nil {
		runner = NewCLIRunner()
	}
	if opts.Binary == "" {
		opts.Binary = DefaultBinary
	}
	if opts.ReadinessAttempts <= 0 {
		opts.ReadinessAttempts = DefaultReadinessAttempts
	}
	if opts.ReadinessInterval <= 0 {
		opts.ReadinessInterval = DefaultReadinessInterval
	}
	return &Runtime{
		binary:   opts.Binary,
		runner:   runner,
		logger:   logging.OrNop(opts.Logger).WithComponent("container").With("runtime", opts.Binary),
		attempts: opts.ReadinessAttempts,
		interval: opts.ReadinessInterval,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Binary returns the runtime executable name.
func (r *Runtime) Binary() string {
	return r.binary
}

// run executes one runtime subcommand in dir and logs the exchange at
// debug level.
func (r *Runtime) run(ctx context.Context, dir string, args ...string) (Output, error) {
	out, err := r.runner.Run(ctx, dir, r.binary, args...)
	r.logger.Debug("runtime command",
		"args", strings.Join(args, " "),
		"exit_code", out.ExitCode,
		"stdout", strings.TrimSpace(out.Stdout),
		"stderr", strings.TrimSpace(out.Stderr),
	)
	return out, err
}

func (r *Runtime) fail(message string, cause error, out Output) *errors.ContainerError {
	if cause == nil {
		cause = fmt.Errorf("exit status %d", out.ExitCode)
	}
	return errors.NewContainerError(message, cause).WithRuntime(r.binary).WithOutput(out.Combined())
}

// IsInstalled reports whether the runtime executable is on PATH.
func (r *Runtime) IsInstalled() bool {
	_, err := r.runner.LookPath(r.binary)
	return err == nil
}

// RequireInstalled fails with ErrRuntimeUnavailable when the runtime is not
// on PATH.
func (r *Runtime) RequireInstalled() error {
	if _, err := r.runner.LookPath(r.binary); err != nil {
		return errors.NewContainerError("container runtime is not installed", errors.ErrRuntimeUnavailable).
			WithRuntime(r.binary)
	}
	return nil
}

// Version returns the output of `version`.
func (r *Runtime) Version(ctx context.Context) (Output, error) {
	return r.run(ctx, "", "version")
}

// WaitUntilUp polls `version` until it succeeds, giving up with
// ErrRuntimeNotRunning after the configured number of attempts.
func (r *Runtime) WaitUntilUp(ctx context.Context) error {
	if err := r.RequireInstalled(); err != nil {
		return err
	}

	var last Output
	for attempt := 1; attempt <= r.attempts; attempt++ {
		out, err := r.Version(ctx)
		if err == nil && out.ExitCode == 0 {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		last = out
		r.logger.Debug("runtime not ready", "attempt", attempt)
		if attempt < r.attempts {
			if err := sleepContext(ctx, r.interval); err != nil {
				return err
			}
		}
	}
	return errors.NewContainerError(
		fmt.Sprintf("container runtime did not respond after %d attempts", r.attempts),
		errors.ErrRuntimeNotRunning,
	).WithRuntime(r.binary).WithOutput(last.Combined()).WithRetryable(true)
}

// Images returns the repository column of `images`.
func (r *Runtime) Images(ctx context.Context) ([]string, error) {
	out, err := r.run(ctx, "", "images")
	if err != nil || out.ExitCode != 0 {
		return nil, r.fail("list images", err, out)
	}
	return parseImages(out.Stdout), nil
}

func parseImages(output string) []string {
	images := []string{}
	for _, line := range strings.Split(output, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 || fields[0] == "REPOSITORY" {
			continue
		}
		images = append(images, fields[0])
	}
	return images
}

// HasImage reports whether tag is in the local image list.
func (r *Runtime) HasImage(ctx context.Context, tag string) (bool, error) {
	images, err := r.Images(ctx)
	if err != nil {
		return false, err
	}
	for _, image := range images {
		if image == tag {
			return true, nil
		}
	}
	return false, nil
}

// Build builds containerfile with dir as the build context and tags the
// result.
func (r *Runtime) Build(ctx context.Context, dir, containerfile, tag string) error {
	out, err := r.run(ctx, dir, "build", "-f", containerfile, "-t", tag, ".")
	if err != nil || out.ExitCode != 0 {
		return r.fail("build image", err, out).WithImage(tag)
	}
	r.logger.Info("image built", "image", tag, "containerfile", containerfile)
	return nil
}

// EnsureImage returns the image tag for containerfile (its content hash),
// building it first when the image is missing. The containerfile path is
// relative to dir, which is also the build context.
func (r *Runtime) EnsureImage(ctx context.Context, dir, containerfile string) (tag string, built bool, err error) {
	path := containerfile
	if !filepath.IsAbs(path) {
		path = filepath.Join(dir, containerfile)
	}
	tag, err = store.HashFile(path)
	if err != nil {
		return "", false, errors.NewContainerError("hash container definition", err).
			WithRuntime(r.binary).WithOutput(containerfile)
	}

	present, err := r.HasImage(ctx, tag)
	if err != nil {
		return "", false, err
	}
	if present {
		r.logger.Debug("image cached", "image", tag)
		return tag, false, nil
	}
	if err := r.Build(ctx, dir, containerfile, tag); err != nil {
		return "", false, err
	}
	return tag, true, nil
}

// RunSpec describes a detached container.
type RunSpec struct {
	Image string
	// HostDir is mounted at ContainerDir, which is also the working
	// directory.
	HostDir      string
	ContainerDir string
	Env          []string
}

// Run starts a detached container with a TTY and returns its ID.
func (r *Runtime) Run(ctx context.Context, spec RunSpec) (string, error) {
	args := []string{"run", "-v", spec.HostDir + ":" + spec.ContainerDir, "-w", spec.ContainerDir}
	args = append(args, envArgs(spec.Env)...)
	args = append(args, "-td", spec.Image)

	out, err := r.run(ctx, "", args...)
	if err != nil || out.ExitCode != 0 {
		return "", r.fail("start container", err, out).WithImage(spec.Image)
	}
	id := strings.TrimSpace(out.Stdout)
	if id == "" {
		return "", r.fail("start container", fmt.Errorf("runtime returned no container id"), out).WithImage(spec.Image)
	}
	r.logger.Info("container started", "image", spec.Image, "container", id)
	return id, nil
}

// Exec runs command inside container id. A non-zero exit is reported in the
// returned Output, not as an error.
func (r *Runtime) Exec(ctx context.Context, id string, env []string, command ...string) (Output, error) {
	args := []string{"exec"}
	args = append(args, envArgs(env)...)
	args = append(args, id)
	args = append(args, command...)

	out, err := r.run(ctx, "", args...)
	if err != nil {
		return out, r.fail("exec in container", err, out).WithContainerID(id)
	}
	return out, nil
}

// Stop stops container id.
func (r *Runtime) Stop(ctx context.Context, id string) error {
	out, err := r.run(ctx, "", "stop", id)
	if err != nil || out.ExitCode != 0 {
		return r.fail("stop container", err, out).WithContainerID(id)
	}
	r.logger.Info("container stopped", "container", id)
	return nil
}

// SwitchEngine asks Docker Desktop to switch to the engine for os and waits
// for the runtime to come back up.
func (r *Runtime) SwitchEngine(ctx context.Context, os string) error {
	flag := "-SwitchLinuxEngine"
	if os == "windows" {
		flag = "-SwitchWindowsEngine"
	}

	binary, err := r.runner.LookPath(r.binary)
	if err != nil {
		return errors.NewContainerError("container runtime is not installed", errors.ErrRuntimeUnavailable).
			WithRuntime(r.binary)
	}
	// <root>\resources\bin\docker.exe -> <root>\DockerCli.exe
	cli := filepath.Join(filepath.Dir(filepath.Dir(filepath.Dir(binary))), desktopCLI)

	out, err := r.runner.Run(ctx, "", cli, flag)
	if err != nil || out.ExitCode != 0 {
		r.logger.Warn("engine switch failed", "cli", cli, "os", os, "output", out.Combined())
	}
	return r.WaitUntilUp(ctx)
}

func envArgs(env []string) []string {
	args := make([]string, 0, 2*len(env))
	for _, kv := range env {
		args = append(args, "-e", kv)
	}
	return args
}
