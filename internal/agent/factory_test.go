package agent

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/Iron-Ham/mailcd/internal/container"
	"github.com/Iron-Ham/mailcd/internal/container/containertest"
	"github.com/Iron-Ham/mailcd/internal/env"
	"github.com/Iron-Ham/mailcd/internal/errors"
	"github.com/Iron-Ham/mailcd/internal/pipeline"
)

func newFactory(t *testing.T, fake *containertest.Runner, host string) *Factory {
	t.Helper()
	ws := t.TempDir()
	if err := os.WriteFile(filepath.Join(ws, "Containerfile"), []byte("FROM alpine\n"), 0644); err != nil {
		t.Fatal(err)
	}
	return &Factory{
		Runtime: container.New(fake, container.Options{
			ReadinessAttempts: 2,
			ReadinessInterval: time.Millisecond,
		}),
		Workspace:          ws,
		ContainerWorkspace: "/.ws",
		DefaultOS:          pipeline.OSLinux,
		SwitchEngine:       true,
		HostOS:             host,
	}
}

func TestFactory_NilNodeIsLocal(t *testing.T) {
	f := newFactory(t, containertest.New(), "linux")
	a, err := f.New(context.Background(), nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, ok := a.(*Local); !ok {
		t.Errorf("expected *Local, got %T", a)
	}
	if a.WorkspaceDir() != f.Workspace {
		t.Errorf("WorkspaceDir = %q, want %q", a.WorkspaceDir(), f.Workspace)
	}
}

func TestFactory_LinuxContainer(t *testing.T) {
	fake := containertest.New()
	var notices []string
	f := newFactory(t, fake, "linux")
	f.Notify = func(msg string) { notices = append(notices, msg) }

	a, err := f.New(context.Background(), &pipeline.Node{Containerfile: "Containerfile"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	c, ok := a.(*Container)
	if !ok {
		t.Fatalf("expected *Container, got %T", a)
	}
	if c.WorkspaceDir() != "/.ws" || c.shell != LinuxShell {
		t.Errorf("unexpected container agent: dir=%q shell=%v", c.WorkspaceDir(), c.shell)
	}
	if len(fake.CallsTo("build")) != 1 || len(notices) != 1 {
		t.Errorf("expected one build and one notice, got %d builds, notices %v", len(fake.CallsTo("build")), notices)
	}

	// Same definition again: image is cached.
	if _, err := f.New(context.Background(), &pipeline.Node{Containerfile: "Containerfile"}); err != nil {
		t.Fatal(err)
	}
	if len(fake.CallsTo("build")) != 1 {
		t.Errorf("expected the cached image to be reused")
	}
}

func TestFactory_WindowsOnLinuxHost(t *testing.T) {
	f := newFactory(t, containertest.New(), "linux")
	_, err := f.New(context.Background(), &pipeline.Node{OS: pipeline.OSWindows, Containerfile: "Containerfile"})
	if !errors.Is(err, errors.ErrUnsupportedPlatform) {
		t.Fatalf("expected ErrUnsupportedPlatform, got %v", err)
	}
}

func TestFactory_WindowsHostSwitchesEngine(t *testing.T) {
	fake := containertest.New()
	f := newFactory(t, fake, "windows")

	a, err := f.New(context.Background(), &pipeline.Node{OS: pipeline.OSWindows, Containerfile: "Containerfile"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if a.(*Container).shell != WindowsShell {
		t.Errorf("expected the windows shell")
	}

	switched := false
	for _, c := range fake.Calls() {
		if strings.HasSuffix(c.Name, "DockerCli.exe") {
			switched = len(c.Args) == 1 && c.Args[0] == "-SwitchWindowsEngine"
		}
	}
	if !switched {
		t.Errorf("expected a switch to the windows engine, calls: %v", fake.Calls())
	}
}

func TestFactory_RuntimeNotInstalled(t *testing.T) {
	fake := containertest.New()
	fake.Installed = false
	f := newFactory(t, fake, "linux")

	_, err := f.New(context.Background(), &pipeline.Node{Containerfile: "Containerfile"})
	if !errors.Is(err, errors.ErrRuntimeUnavailable) {
		t.Fatalf("expected ErrRuntimeUnavailable, got %v", err)
	}
}

func TestFactory_RuntimeNotRunning(t *testing.T) {
	fake := containertest.New()
	fake.DownFor = 10
	f := newFactory(t, fake, "linux")

	_, err := f.New(context.Background(), &pipeline.Node{Containerfile: "Containerfile"})
	if !errors.Is(err, errors.ErrRuntimeNotRunning) {
		t.Fatalf("expected ErrRuntimeNotRunning, got %v", err)
	}
}

func TestContainer_Lifecycle(t *testing.T) {
	fake := containertest.New("img")
	fake.Exec = func(id string, env []string, command []string) container.Output {
		if command[len(command)-1] == "env" {
			return container.Output{Stdout: strings.Join(env, "\n")}
		}
		return container.Output{Stdout: "ran " + command[len(command)-1] + "\r\n", ExitCode: 2}
	}
	rt := container.New(fake, container.Options{ReadinessAttempts: 1, ReadinessInterval: time.Millisecond})
	c := NewContainer(rt, "img", "/host", "/.ws", LinuxShell, nil)

	vars := env.NewVars()
	vars.Set("A", "1")

	err := Scope(context.Background(), c, vars, func(ctx context.Context, snapshot string) error {
		if snapshot != "A=1" {
			t.Errorf("snapshot = %q, want A=1", snapshot)
		}
		result, err := c.RunStep(ctx, "make", vars)
		if err != nil {
			return err
		}
		if result.Stdout != "ran make" || result.ExitCode != 2 {
			t.Errorf("unexpected result: %+v", result)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Scope failed: %v", err)
	}

	if fake.Running() != 0 {
		t.Errorf("container should be stopped")
	}
	exec := fake.CallsTo("exec")
	if len(exec) != 2 {
		t.Fatalf("expected 2 exec calls, got %d", len(exec))
	}
	if diff := cmp.Diff([]string{"exec", "-e", "A=1", "container1", "sh", "-c", "make"}, exec[1].Args); diff != "" {
		t.Errorf("exec args mismatch (-want +got):\n%s", diff)
	}
}
