package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/mailcd/internal/agent"
	"github.com/Iron-Ham/mailcd/internal/api"
	"github.com/Iron-Ham/mailcd/internal/config"
	"github.com/Iron-Ham/mailcd/internal/container"
	"github.com/Iron-Ham/mailcd/internal/display"
	"github.com/Iron-Ham/mailcd/internal/env"
	"github.com/Iron-Ham/mailcd/internal/errors"
	"github.com/Iron-Ham/mailcd/internal/logging"
	"github.com/Iron-Ham/mailcd/internal/orchestrator"
	"github.com/Iron-Ham/mailcd/internal/pipeline"
	"github.com/Iron-Ham/mailcd/internal/store"
	"github.com/Iron-Ham/mailcd/internal/workspace"
)

// Wrapper for the container runtime runner to allow testing
var newRunner = func() container.Runner { return container.NewCLIRunner() }

var backendOverride any

// SetBackendOverride installs a value whose methods replace the matching
// store and environment operations (see package api). It must be called
// before Execute.
func SetBackendOverride(override any) {
	backendOverride = override
}

// app holds everything a command needs, built from the loaded configuration
// and the global flags.
type app struct {
	cfg     *config.Config
	layout  *workspace.Layout
	backend *api.API
	logger  *logging.Logger
	printer *display.Printer
	out     io.Writer
}

// newApp loads the configuration and opens the store. The debug log is
// written inside the workspace only for commands that own the workspace or
// when it already has a local root.
func newApp(cmd *cobra.Command, ownsWorkspace bool) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, errors.NewValidationError("invalid configuration").WithCause(err)
	}

	layout, err := workspace.New(workspaceDir, cfg.Workspace.LocalRoot)
	if err != nil {
		return nil, err
	}

	logger := logging.NopLogger()
	if cfg.Logging.Enabled && (ownsWorkspace || exists(layout.Root())) {
		level := cfg.Logging.Level
		if debugMode {
			level = logging.LevelDebug
		}
		logger, err = logging.NewLogger(layout.LogsDir(), level, logging.RotationConfig{
			MaxSizeMB:  cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
			Compress:   cfg.Logging.Compress,
		})
		if err != nil {
			return nil, err
		}
	}

	storeRoot := cfg.Store.ResolveStoreRoot(layout.Workspace())
	if err := os.MkdirAll(storeRoot, 0755); err != nil {
		_ = logger.Close()
		return nil, fmt.Errorf("create store: %w", err)
	}
	backend := api.New(
		api.NewDefault(store.New(storeRoot, logger), env.NewConfigs(layout.EnvDir(), cfg.Env.DefaultConfig)),
		backendOverride,
	)

	out := cmd.OutOrStdout()
	return &app{
		cfg:     cfg,
		layout:  layout,
		backend: backend,
		logger:  logger,
		printer: display.NewPrinter(out, display.ColorEnabled(cfg.Display.Color, asFile(out)), verbose),
		out:     out,
	}, nil
}

func (a *app) Close() {
	_ = a.logger.Close()
}

func (a *app) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

func (a *app) loadPipeline() (*pipeline.Pipeline, error) {
	return pipeline.Load(a.layout.PipelineFile(a.cfg.Pipeline.File))
}

// orchestrator wires a run against the configured container runtime.
// envConfig names the persisted environment config; empty means the
// selected one.
func (a *app) orchestrator(envConfig string) (*orchestrator.Orchestrator, error) {
	runtime := container.New(newRunner(), container.Options{
		Binary:            a.cfg.Container.Runtime,
		ReadinessAttempts: a.cfg.Container.ReadinessAttempts,
		ReadinessInterval: a.cfg.Container.ReadinessInterval(),
		Logger:            a.logger,
	})
	factory := &agent.Factory{
		Runtime:            runtime,
		Workspace:          a.layout.Workspace(),
		ContainerWorkspace: a.cfg.Container.Workspace,
		DefaultOS:          a.cfg.Container.DefaultOS,
		SwitchEngine:       a.cfg.Container.SwitchEngine,
		Notify:             func(msg string) { a.printer.Notice("", msg) },
		Logger:             a.logger,
	}
	return orchestrator.New(orchestrator.Config{
		Layout:     a.layout,
		Backend:    a.backend,
		Agents:     factory,
		Precedence: a.cfg.Env.Precedence,
		EnvConfig:  envConfig,
		Observer:   a.printer,
		Logger:     a.logger,
	})
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func asFile(w io.Writer) *os.File {
	if f, ok := w.(*os.File); ok {
		return f
	}
	return nil
}
