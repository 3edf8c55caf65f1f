package container_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/Iron-Ham/mailcd/internal/container"
	"github.com/Iron-Ham/mailcd/internal/container/containertest"
	"github.com/Iron-Ham/mailcd/internal/errors"
	"github.com/Iron-Ham/mailcd/internal/store"
)

func newRuntime(fake *containertest.Runner, attempts int) *container.Runtime {
	return container.New(fake, container.Options{
		ReadinessAttempts: attempts,
		ReadinessInterval: time.Millisecond,
	})
}

func TestWaitUntilUp_NotInstalled(t *testing.T) {
	fake := containertest.New()
	fake.Installed = false

	err := newRuntime(fake, 3).WaitUntilUp(context.Background())
	if !errors.Is(err, errors.ErrRuntimeUnavailable) {
		t.Fatalf("expected ErrRuntimeUnavailable, got %v", err)
	}
	if errors.ExitCode(err) != errors.ExitRuntimeUnavailable {
		t.Errorf("ExitCode = %d, want %d", errors.ExitCode(err), errors.ExitRuntimeUnavailable)
	}
	if len(fake.Calls()) != 0 {
		t.Errorf("no runtime commands should run, got %v", fake.Calls())
	}
}

func TestWaitUntilUp_RecoversWithinAttempts(t *testing.T) {
	fake := containertest.New()
	fake.DownFor = 2

	if err := newRuntime(fake, 3).WaitUntilUp(context.Background()); err != nil {
		t.Fatalf("WaitUntilUp failed: %v", err)
	}
	if got := len(fake.CallsTo("version")); got != 3 {
		t.Errorf("expected 3 version calls, got %d", got)
	}
}

func TestWaitUntilUp_GivesUp(t *testing.T) {
	fake := containertest.New()
	fake.DownFor = 100

	err := newRuntime(fake, 4).WaitUntilUp(context.Background())
	if !errors.Is(err, errors.ErrRuntimeNotRunning) {
		t.Fatalf("expected ErrRuntimeNotRunning, got %v", err)
	}
	if errors.ExitCode(err) != errors.ExitRuntimeNotRunning {
		t.Errorf("ExitCode = %d, want %d", errors.ExitCode(err), errors.ExitRuntimeNotRunning)
	}
	if got := len(fake.CallsTo("version")); got != 4 {
		t.Errorf("expected exactly 4 attempts, got %d", got)
	}
	if !errors.IsRetryable(err) {
		t.Error("a runtime that is still starting should be reported as retryable")
	}
}

func TestImages_SkipsHeader(t *testing.T) {
	fake := containertest.New("alpine", "abc123")

	images, err := newRuntime(fake, 1).Images(context.Background())
	if err != nil {
		t.Fatalf("Images failed: %v", err)
	}
	if diff := cmp.Diff([]string{"alpine", "abc123"}, images); diff != "" {
		t.Errorf("Images mismatch (-want +got):\n%s", diff)
	}
}

func TestEnsureImage_BuildsOnceByContentHash(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "Containerfile"), []byte("FROM alpine\n"), 0644); err != nil {
		t.Fatal(err)
	}
	want, err := store.HashFile(filepath.Join(dir, "Containerfile"))
	if err != nil {
		t.Fatal(err)
	}

	fake := containertest.New()
	rt := newRuntime(fake, 1)

	tag, built, err := rt.EnsureImage(context.Background(), dir, "Containerfile")
	if err != nil {
		t.Fatalf("EnsureImage failed: %v", err)
	}
	if tag != want || !built {
		t.Errorf("EnsureImage = %q, %v; want %q, true", tag, built, want)
	}

	tag, built, err = rt.EnsureImage(context.Background(), dir, "Containerfile")
	if err != nil {
		t.Fatalf("second EnsureImage failed: %v", err)
	}
	if tag != want || built {
		t.Errorf("second EnsureImage = %q, %v; want %q, false", tag, built, want)
	}

	builds := fake.CallsTo("build")
	if len(builds) != 1 {
		t.Fatalf("expected one build, got %d", len(builds))
	}
	if diff := cmp.Diff([]string{"build", "-f", "Containerfile", "-t", want, "."}, builds[0].Args); diff != "" {
		t.Errorf("build args mismatch (-want +got):\n%s", diff)
	}
	if builds[0].Dir != dir {
		t.Errorf("build context = %q, want %q", builds[0].Dir, dir)
	}
}

func TestEnsureImage_BuildFailure(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "Containerfile"), []byte("FROM broken\n"), 0644); err != nil {
		t.Fatal(err)
	}
	fake := containertest.New()
	fake.FailBuild = true

	_, _, err := newRuntime(fake, 1).EnsureImage(context.Background(), dir, "Containerfile")
	var cerr *errors.ContainerError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected ContainerError, got %v", err)
	}
	if cerr.Output != "build failed" {
		t.Errorf("Output = %q, want runtime stderr", cerr.Output)
	}
}

func TestRunExecStop(t *testing.T) {
	fake := containertest.New("img")
	fake.Exec = func(id string, env []string, command []string) container.Output {
		return container.Output{Stdout: id + " " + command[len(command)-1]}
	}
	rt := newRuntime(fake, 1)
	ctx := context.Background()

	id, err := rt.Run(ctx, container.RunSpec{
		Image:        "img",
		HostDir:      "/host/ws",
		ContainerDir: "/.ws",
		Env:          []string{"A=1"},
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	wantRun := []string{"run", "-v", "/host/ws:/.ws", "-w", "/.ws", "-e", "A=1", "-td", "img"}
	if diff := cmp.Diff(wantRun, fake.CallsTo("run")[0].Args); diff != "" {
		t.Errorf("run args mismatch (-want +got):\n%s", diff)
	}

	out, err := rt.Exec(ctx, id, []string{"B=2"}, "sh", "-c", "echo hi")
	if err != nil {
		t.Fatalf("Exec failed: %v", err)
	}
	if out.Stdout != id+" echo hi" {
		t.Errorf("Exec stdout = %q", out.Stdout)
	}
	wantExec := []string{"exec", "-e", "B=2", id, "sh", "-c", "echo hi"}
	if diff := cmp.Diff(wantExec, fake.CallsTo("exec")[0].Args); diff != "" {
		t.Errorf("exec args mismatch (-want +got):\n%s", diff)
	}

	if err := rt.Stop(ctx, id); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if fake.Running() != 0 {
		t.Errorf("expected no running containers, got %d", fake.Running())
	}
}

func TestSwitchEngine(t *testing.T) {
	fake := containertest.New()
	if err := newRuntime(fake, 1).SwitchEngine(context.Background(), "windows"); err != nil {
		t.Fatalf("SwitchEngine failed: %v", err)
	}

	calls := fake.Calls()
	if len(calls) < 2 {
		t.Fatalf("expected switch and readiness calls, got %v", calls)
	}
	wantCLI := filepath.Join("/opt/docker", "DockerCli.exe")
	if calls[0].Name != wantCLI {
		t.Errorf("switch binary = %q, want %q", calls[0].Name, wantCLI)
	}
	if diff := cmp.Diff([]string{"-SwitchWindowsEngine"}, calls[0].Args); diff != "" {
		t.Errorf("switch args mismatch (-want +got):\n%s", diff)
	}
	if calls[1].Subcommand() != "version" {
		t.Errorf("expected readiness check after switch, got %v", calls[1])
	}
}

func TestCLIRunner_ExitCode(t *testing.T) {
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("requires /bin/sh")
	}
	out, err := container.NewCLIRunner().Run(context.Background(), "", "/bin/sh", "-c", "echo out; echo err >&2; exit 3")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if out.ExitCode != 3 || out.Stdout != "out\n" || out.Stderr != "err\n" {
		t.Errorf("unexpected output: %+v", out)
	}
}
