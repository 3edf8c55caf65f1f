package agent

import (
	"context"
	stderrors "errors"
	"os/exec"
	"strings"
	"testing"

	"github.com/Iron-Ham/mailcd/internal/env"
)

// recordingAgent tracks lifecycle calls.
type recordingAgent struct {
	startErr    error
	snapshotErr error
	stopErr     error

	started   bool
	stopped   int
	stopCtxOK bool
}

func (a *recordingAgent) Start(ctx context.Context, vars *env.Vars) error {
	a.started = a.startErr == nil
	return a.startErr
}

func (a *recordingAgent) Stop(ctx context.Context) error {
	a.stopped++
	a.stopCtxOK = ctx.Err() == nil
	return a.stopErr
}

func (a *recordingAgent) RunStep(ctx context.Context, step string, vars *env.Vars) (StepResult, error) {
	return StepResult{Step: step}, nil
}

func (a *recordingAgent) Snapshot(ctx context.Context, vars *env.Vars) (string, error) {
	return "A=1", a.snapshotErr
}

func (a *recordingAgent) WorkspaceDir() string { return "/ws" }

func TestScope_StopsOnSuccess(t *testing.T) {
	a := &recordingAgent{}
	var got string
	err := Scope(context.Background(), a, env.NewVars(), func(ctx context.Context, snapshot string) error {
		got = snapshot
		return nil
	})
	if err != nil {
		t.Fatalf("Scope failed: %v", err)
	}
	if got != "A=1" {
		t.Errorf("snapshot = %q, want A=1", got)
	}
	if a.stopped != 1 {
		t.Errorf("Stop called %d times, want 1", a.stopped)
	}
}

func TestScope_StopsOnError(t *testing.T) {
	a := &recordingAgent{stopErr: stderrors.New("stop failed")}
	boom := stderrors.New("boom")

	err := Scope(context.Background(), a, env.NewVars(), func(ctx context.Context, snapshot string) error {
		return boom
	})
	if !stderrors.Is(err, boom) {
		t.Errorf("expected fn error, got %v", err)
	}
	if !strings.Contains(err.Error(), "stop failed") {
		t.Errorf("expected stop error to be joined, got %v", err)
	}
	if a.stopped != 1 {
		t.Errorf("Stop called %d times, want 1", a.stopped)
	}
}

func TestScope_StopsOnPanic(t *testing.T) {
	a := &recordingAgent{}
	defer func() {
		if r := recover(); r != "kaboom" {
			t.Errorf("expected panic to propagate, got %v", r)
		}
		if a.stopped != 1 {
			t.Errorf("Stop called %d times, want 1", a.stopped)
		}
	}()

	_ = Scope(context.Background(), a, env.NewVars(), func(ctx context.Context, snapshot string) error {
		panic("kaboom")
	})
}

func TestScope_StopsOnCancelledContext(t *testing.T) {
	a := &recordingAgent{}
	ctx, cancel := context.WithCancel(context.Background())

	err := Scope(ctx, a, env.NewVars(), func(ctx context.Context, snapshot string) error {
		cancel()
		return ctx.Err()
	})
	if !stderrors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if a.stopped != 1 || !a.stopCtxOK {
		t.Errorf("Stop should run once on a live context: stopped=%d ctxOK=%v", a.stopped, a.stopCtxOK)
	}
}

func TestScope_StartFailure(t *testing.T) {
	a := &recordingAgent{startErr: stderrors.New("no start")}
	called := false
	err := Scope(context.Background(), a, env.NewVars(), func(ctx context.Context, snapshot string) error {
		called = true
		return nil
	})
	if err == nil || called {
		t.Fatalf("expected start failure without calling fn, err=%v called=%v", err, called)
	}
}

func TestScope_SnapshotFailure(t *testing.T) {
	a := &recordingAgent{snapshotErr: stderrors.New("no env")}
	err := Scope(context.Background(), a, env.NewVars(), func(ctx context.Context, snapshot string) error {
		t.Error("fn should not run")
		return nil
	})
	if err == nil {
		t.Fatal("expected snapshot error")
	}
	if a.stopped != 1 {
		t.Errorf("Stop called %d times, want 1", a.stopped)
	}
}

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("requires sh")
	}
}

func TestLocal_RunStep(t *testing.T) {
	requireShell(t)
	dir := t.TempDir()
	a := NewLocal(dir, nil)
	a.shell = LinuxShell

	vars := env.NewVars()
	vars.Set("GREETING", "hello")

	result, err := a.RunStep(context.Background(), `echo "$GREETING" && pwd && echo oops >&2`, vars)
	if err != nil {
		t.Fatalf("RunStep failed: %v", err)
	}
	lines := strings.Split(result.Stdout, "\n")
	if len(lines) != 2 || lines[0] != "hello" {
		t.Errorf("stdout = %q", result.Stdout)
	}
	if result.Stderr != "oops" {
		t.Errorf("stderr = %q, want oops", result.Stderr)
	}
	if !result.Succeeded() {
		t.Errorf("exit code = %d, want 0", result.ExitCode)
	}
}

func TestLocal_NonZeroExitIsNotAnError(t *testing.T) {
	requireShell(t)
	a := NewLocal(t.TempDir(), nil)
	a.shell = LinuxShell

	result, err := a.RunStep(context.Background(), "exit 7", env.NewVars())
	if err != nil {
		t.Fatalf("RunStep returned error for non-zero exit: %v", err)
	}
	if result.ExitCode != 7 {
		t.Errorf("exit code = %d, want 7", result.ExitCode)
	}
}

func TestLocal_Snapshot(t *testing.T) {
	requireShell(t)
	a := NewLocal(t.TempDir(), nil)
	a.shell = LinuxShell

	vars := env.NewVars()
	vars.Set("MB_SNAPSHOT_MARKER", "present")

	snapshot, err := a.Snapshot(context.Background(), vars)
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if !strings.Contains(snapshot, "MB_SNAPSHOT_MARKER=present") {
		t.Errorf("snapshot does not contain stage variable:\n%s", snapshot)
	}
}

func TestNormalizeOutput(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  a\r\nb\r\n\n", "a\nb"},
		{"a\rb", "a\nb"},
		{"progress 50%\rprogress 100%\r\ndone\r", "progress 50%\nprogress 100%\ndone"},
		{"\r\n\r", ""},
	}
	for _, tt := range tests {
		if got := normalizeOutput(tt.in); got != tt.want {
			t.Errorf("normalizeOutput(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
