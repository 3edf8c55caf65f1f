package orchestrator

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/Iron-Ham/mailcd/internal/agent"
)

func createLog(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	return os.Create(path)
}

func writeLog(path, content string) error {
	f, err := createLog(path)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(f, content); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// writeStep appends one step to a build log:
//
//	$ make test
//	<stdout>
//	[stderr]
//	<stderr>
//	[exit code: 0]
func writeStep(w io.Writer, r agent.StepResult) error {
	if _, err := fmt.Fprintf(w, "$ %s\n", r.Step); err != nil {
		return err
	}
	if r.Stdout != "" {
		if _, err := fmt.Fprintf(w, "%s\n", r.Stdout); err != nil {
			return err
		}
	}
	if r.Stderr != "" {
		if _, err := fmt.Fprintf(w, "[stderr]\n%s\n", r.Stderr); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "[exit code: %d]\n", r.ExitCode)
	return err
}
