// Package containertest provides an in-memory container runtime for tests.
package containertest

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"

	"github.com/Iron-Ham/mailcd/internal/container"
)

// Call records one command passed to the fake.
type Call struct {
	Dir  string
	Name string
	Args []string
}

// Subcommand returns the first argument, e.g. "run" or "exec".
func (c Call) Subcommand() string {
	if len(c.Args) == 0 {
		return ""
	}
	return c.Args[0]
}

// ExecFunc answers an `exec` call. command is everything after the
// container ID.
type ExecFunc func(id string, env []string, command []string) container.Output

// Runner simulates a Docker-compatible CLI. It keeps an image list and the
// set of running containers.
type Runner struct {
	// Installed controls LookPath.
	Installed bool
	// DownFor makes the first n `version` calls fail.
	DownFor int
	// FailBuild makes `build` exit non-zero.
	FailBuild bool
	// Exec answers `exec` calls; nil succeeds with no output.
	Exec ExecFunc

	mu      sync.Mutex
	calls   []Call
	images  []string
	running map[string]bool
	nextID  int
}

// New returns an installed, running fake with the given images.
func New(images ...string) *Runner {
	return &Runner{
		Installed: true,
		images:    append([]string(nil), images...),
		running:   make(map[string]bool),
	}
}

var _ container.Runner = (*Runner)(nil)

// LookPath implements container.Runner.
func (r *Runner) LookPath(name string) (string, error) {
	if !r.Installed {
		return "", exec.ErrNotFound
	}
	return "/opt/docker/resources/bin/" + name, nil
}

// Run implements container.Runner.
func (r *Runner) Run(ctx context.Context, dir, name string, args ...string) (container.Output, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls = append(r.calls, Call{Dir: dir, Name: name, Args: append([]string(nil), args...)})
	out := container.Output{Args: append([]string{name}, args...)}
	if err := ctx.Err(); err != nil {
		out.ExitCode = -1
		return out, err
	}
	if len(args) == 0 {
		return out, nil
	}

	switch args[0] {
	case "version":
		if r.DownFor > 0 {
			r.DownFor--
			out.ExitCode = 1
			out.Stderr = "Cannot connect to the Docker daemon"
		} else {
			out.Stdout = "Version: 0.0.0-fake"
		}
	case "images":
		var b strings.Builder
		b.WriteString("REPOSITORY   TAG       IMAGE ID       CREATED   SIZE\n")
		for _, image := range r.images {
			fmt.Fprintf(&b, "%s   latest    0123456789ab   now       1MB\n", image)
		}
		out.Stdout = b.String()
	case "build":
		if r.FailBuild {
			out.ExitCode = 1
			out.Stderr = "build failed"
			break
		}
		if tag := flagValue(args, "-t"); tag != "" {
			r.images = append(r.images, tag)
		}
	case "run":
		r.nextID++
		id := fmt.Sprintf("container%d", r.nextID)
		r.running[id] = true
		out.Stdout = id + "\n"
	case "exec":
		id, env, command := splitExec(args[1:])
		if !r.running[id] {
			out.ExitCode = 1
			out.Stderr = "No such container: " + id
			break
		}
		if r.Exec != nil {
			res := r.Exec(id, env, command)
			res.Args = out.Args
			out = res
		}
	case "stop":
		if len(args) > 1 {
			delete(r.running, args[1])
			out.Stdout = args[1]
		}
	}
	return out, nil
}

// splitExec separates `-e K=V` pairs, the container ID and the command.
func splitExec(args []string) (id string, env []string, command []string) {
	i := 0
	for i+1 < len(args) && args[i] == "-e" {
		env = append(env, args[i+1])
		i += 2
	}
	if i < len(args) {
		id = args[i]
		command = args[i+1:]
	}
	return id, env, command
}

func flagValue(args []string, flag string) string {
	for i := 0; i+1 < len(args); i++ {
		if args[i] == flag {
			return args[i+1]
		}
	}
	return ""
}

// Calls returns every recorded call.
func (r *Runner) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// CallsTo returns the recorded calls with the given subcommand.
func (r *Runner) CallsTo(subcommand string) []Call {
	var matched []Call
	for _, c := range r.Calls() {
		if c.Subcommand() == subcommand {
			matched = append(matched, c)
		}
	}
	return matched
}

// Images returns the current image list.
func (r *Runner) Images() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.images...)
}

// Running returns the number of containers started and not yet stopped.
func (r *Runner) Running() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.running)
}
