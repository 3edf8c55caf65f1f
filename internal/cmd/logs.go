package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/Iron-Ham/mailcd/internal/errors"
)

var logsCmd = &cobra.Command{
	Use:   "logs [stage]",
	Short: "View stage build logs",
	Long: `View the logs of the last build.

Without arguments the stages that have logs are listed. With a stage name
its build log (the steps with their output and exit codes) is printed, or
with --env the environment the stage ran with.

Examples:
  # List stages with logs
  mb logs

  # Show the build log of the compile stage
  mb logs compile

  # Show the environment of the compile stage
  mb logs compile --env

  # Follow the build log while a build is running
  mb logs compile -f`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogs,
}

var (
	logsEnv    bool
	logsFollow bool
)

func init() {
	rootCmd.AddCommand(logsCmd)

	logsCmd.Flags().BoolVarP(&logsEnv, "env", "e", false, "show the environment log instead of the build log")
	logsCmd.Flags().BoolVarP(&logsFollow, "follow", "f", false, "follow log output (like tail -f)")
}

func runLogs(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	if len(args) == 0 {
		stages, err := a.layout.LoggedStages()
		if err != nil {
			return err
		}
		if len(stages) == 0 {
			a.printf("No logs found (run 'mb build' first)\n")
		}
		for _, s := range stages {
			a.printf("%s\n", s)
		}
		return nil
	}

	stage := args[0]
	logPath := a.layout.BuildLogPath(stage)
	if logsEnv {
		logPath = a.layout.EnvLogPath(stage)
	}

	if logsFollow {
		ctx, cancel := signalContext(cmd)
		defer cancel()
		fmt.Fprintf(cmd.ErrOrStderr(), "Following %s... (Ctrl+C to stop)\n", a.layout.Rel(logPath))
		return followLog(ctx, logPath, a.out)
	}

	info, err := os.Stat(logPath)
	if os.IsNotExist(err) {
		return errors.NewValidationError("unknown log").WithValue(stage)
	}
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("log is not a file: %s", logPath)
	}
	_, err = copyFrom(logPath, 0, a.out)
	return err
}

// followLog prints path and then everything appended to it until ctx is
// done. A log that is removed or truncated by a new build is read again
// from the start once it reappears.
func followLog(ctx context.Context, path string, w io.Writer) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to watch log: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	// The parent is watched so that a recreated log directory is picked up.
	_ = watcher.Add(filepath.Dir(dir))

	offset, err := copyFrom(path, 0, w)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			name := filepath.Clean(event.Name)
			if name == filepath.Clean(dir) {
				if event.Has(fsnotify.Create) {
					_ = watcher.Add(dir)
					offset = 0
				}
				continue
			}
			if name != filepath.Clean(path) {
				continue
			}
			if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				offset = 0
				continue
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) {
				if offset, err = copyFrom(path, offset, w); err != nil {
					return err
				}
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watch log: %w", err)
		}
	}
}

// copyFrom writes the content of path after offset and returns the new end
// offset. A missing file yields nothing; a file shorter than offset is read
// from the start.
func copyFrom(path string, offset int64, w io.Writer) (int64, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return offset, fmt.Errorf("failed to open log file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return offset, fmt.Errorf("failed to stat log file: %w", err)
	}
	if info.Size() < offset {
		offset = 0
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return offset, fmt.Errorf("failed to seek log file: %w", err)
	}
	n, err := io.Copy(w, f)
	if err != nil {
		return offset + n, fmt.Errorf("failed to read log file: %w", err)
	}
	return offset + n, nil
}
