package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/mailcd/internal/errors"
	"github.com/Iron-Ham/mailcd/internal/pipeline"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Run every stage of the pipeline",
	Long: `Run the pipeline: download the pipeline inbox, run each stage in
dependency order and publish the pipeline outbox.

A step that exits non-zero is reported but does not stop the build. Use
--fail-on-error to exit with a non-zero status when any step failed.`,
	Args: cobra.NoArgs,
	RunE: runBuild,
}

var pullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Download the pipeline inbox without running any stage",
	Args:  cobra.NoArgs,
	RunE:  runPull,
}

var pushCmd = &cobra.Command{
	Use:   "push",
	Short: "Publish the pipeline outbox from the current workspace",
	Args:  cobra.NoArgs,
	RunE:  runPush,
}

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Show the stage build order and dependencies",
	Args:  cobra.NoArgs,
	RunE:  runGraph,
}

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove files matched by the pipeline clean rules and local build state",
	Args:  cobra.NoArgs,
	RunE:  runClean,
}

var (
	buildEnvConfig   string
	buildFailOnError bool
)

func init() {
	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(pullCmd)
	rootCmd.AddCommand(pushCmd)
	rootCmd.AddCommand(graphCmd)
	rootCmd.AddCommand(cleanCmd)

	buildCmd.Flags().StringVarP(&buildEnvConfig, "env", "e", "", "environment config to use (default: the selected one)")
	buildCmd.Flags().BoolVar(&buildFailOnError, "fail-on-error", false, "exit with status 3 when any step failed")
}

// signalContext cancels on SIGINT and SIGTERM.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func runBuild(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd, true)
	if err != nil {
		return err
	}
	defer a.Close()

	p, err := a.loadPipeline()
	if err != nil {
		return err
	}
	o, err := a.orchestrator(buildEnvConfig)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(cmd)
	defer cancel()

	start := time.Now()
	result, err := o.Run(ctx, p)
	if err != nil {
		return err
	}
	a.printer.Summary(result, time.Since(start))
	if failed := result.FailedSteps(); buildFailOnError && failed > 0 {
		return fmt.Errorf("%d step(s) failed", failed)
	}
	return nil
}

func runPull(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd, true)
	if err != nil {
		return err
	}
	defer a.Close()

	p, err := a.loadPipeline()
	if err != nil {
		return err
	}
	o, err := a.orchestrator("")
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(cmd)
	defer cancel()

	_, err = o.Pull(ctx, p)
	return err
}

func runPush(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd, true)
	if err != nil {
		return err
	}
	defer a.Close()

	p, err := a.loadPipeline()
	if err != nil {
		return err
	}
	o, err := a.orchestrator("")
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(cmd)
	defer cancel()

	_, err = o.Push(ctx, p)
	return err
}

func runGraph(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	p, err := a.loadPipeline()
	if err != nil {
		return err
	}
	order, err := pipeline.BuildOrder(p.Stages)
	if err != nil {
		var cycle *errors.CycleError
		if errors.As(err, &cycle) {
			for _, dep := range pipeline.Dependencies(p.Stages) {
				a.printf("%s <- %s (%s)\n", dep.Stage, dep.DependsOn, dep.StorageID)
			}
		}
		return err
	}

	a.printf("Build order:\n")
	for i, name := range order {
		a.printf("  %d. %s\n", i+1, name)
	}
	deps := pipeline.Dependencies(p.Stages)
	if len(deps) == 0 {
		a.printf("\nNo dependencies between stages.\n")
		return nil
	}
	a.printf("\nDependencies:\n")
	for _, dep := range deps {
		a.printf("  %s <- %s (%s)\n", dep.Stage, dep.DependsOn, dep.StorageID)
	}
	return nil
}

func runClean(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	var patterns []string
	p, err := a.loadPipeline()
	switch {
	case err == nil:
		patterns = p.Clean
	case errors.Is(err, errors.ErrPipelineNotFound):
		// Without a pipeline only the local build state is removed.
	default:
		return err
	}

	removed, err := a.layout.Clean(patterns)
	for _, r := range removed {
		kind := "file"
		if r.Dir {
			kind = "directory"
		}
		a.printf("Removed %s: %s\n", kind, r.Path)
	}
	return err
}
