// Package workspace describes the local layout mb keeps inside a workspace:
//
//	<workspace>/pipeline.yml
//	<workspace>/.mb/inbox/<slot>/<hash>/...                pipeline inbox
//	<workspace>/.mb/outbox/<StorageID>/...                 pipeline outbox
//	<workspace>/.mb/stages/<stage>/inbox/<slot>/<hash>/...
//	<workspace>/.mb/stages/<stage>/outbox/<StorageID>/...
//	<workspace>/.mb/env/<config>, .selected
//	<workspace>/.mb/logs/build/<stage>.log
//	<workspace>/.mb/logs/env/<stage>.log
//	<workspace>/.mb/logs/debug.log
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Directory names under the local root.
const (
	DefaultLocalRoot = ".mb"
	InboxDirName     = "inbox"
	OutboxDirName    = "outbox"
	StagesDirName    = "stages"
	EnvDirName       = "env"
	LogsDirName      = "logs"
	BuildLogsDirName = "build"
	EnvLogsDirName   = "env"
	LogExt           = ".log"
)

// Layout resolves paths inside one workspace.
type Layout struct {
	workspace string
	localRoot string
}

// New returns the layout for workspace with localRoot (".mb" when empty) as
// the directory mb owns.
func New(workspace, localRoot string) (*Layout, error) {
	abs, err := filepath.Abs(workspace)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace: %w", err)
	}
	if localRoot == "" {
		localRoot = DefaultLocalRoot
	}
	return &Layout{workspace: abs, localRoot: localRoot}, nil
}

// Workspace returns the absolute workspace directory.
func (l *Layout) Workspace() string { return l.workspace }

// Root returns the local root directory (.mb).
func (l *Layout) Root() string { return filepath.Join(l.workspace, l.localRoot) }

// LocalRootName returns the local root directory name.
func (l *Layout) LocalRootName() string { return l.localRoot }

// PipelineFile returns the pipeline definition path for file name.
func (l *Layout) PipelineFile(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(l.workspace, name)
}

// InboxDir is where the pipeline inbox is downloaded.
func (l *Layout) InboxDir() string { return filepath.Join(l.Root(), InboxDirName) }

// OutboxDir is where the pipeline outbox is staged.
func (l *Layout) OutboxDir() string { return filepath.Join(l.Root(), OutboxDirName) }

// StagesDir holds per-stage inboxes and outboxes.
func (l *Layout) StagesDir() string { return filepath.Join(l.Root(), StagesDirName) }

// StageDir returns the directory for one stage.
func (l *Layout) StageDir(stage string) string { return filepath.Join(l.StagesDir(), stage) }

// StageInboxDir returns the root of a stage's inbox.
func (l *Layout) StageInboxDir(stage string) string {
	return filepath.Join(l.StageDir(stage), InboxDirName)
}

// StageOutboxDir returns the root of a stage's outbox.
func (l *Layout) StageOutboxDir(stage string) string {
	return filepath.Join(l.StageDir(stage), OutboxDirName)
}

// EnvDir holds the persisted environment configs.
func (l *Layout) EnvDir() string { return filepath.Join(l.Root(), EnvDirName) }

// LogsDir holds the debug log and the stage logs.
func (l *Layout) LogsDir() string { return filepath.Join(l.Root(), LogsDirName) }

// BuildLogsDir holds one step log per stage.
func (l *Layout) BuildLogsDir() string { return filepath.Join(l.LogsDir(), BuildLogsDirName) }

// EnvLogsDir holds one environment snapshot per stage.
func (l *Layout) EnvLogsDir() string { return filepath.Join(l.LogsDir(), EnvLogsDirName) }

// BuildLogPath returns the step log of stage.
func (l *Layout) BuildLogPath(stage string) string {
	return filepath.Join(l.BuildLogsDir(), stage+LogExt)
}

// EnvLogPath returns the environment snapshot of stage.
func (l *Layout) EnvLogPath(stage string) string {
	return filepath.Join(l.EnvLogsDir(), stage+LogExt)
}

// Rel returns path relative to the workspace with forward slashes.
func (l *Layout) Rel(path string) string {
	rel, err := filepath.Rel(l.workspace, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

// LoggedStages returns the stages that have a build log, sorted.
func (l *Layout) LoggedStages() ([]string, error) {
	entries, err := os.ReadDir(l.BuildLogsDir())
	if os.IsNotExist(err) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	stages := []string{}
	for _, e := range entries {
		if name, ok := strings.CutSuffix(e.Name(), LogExt); ok && e.Type().IsRegular() {
			stages = append(stages, name)
		}
	}
	sort.Strings(stages)
	return stages, nil
}

// ResetBuild removes the results of a previous build: the pipeline outbox,
// every stage directory and the stage logs. The pipeline inbox and the
// environment configs are kept.
func (l *Layout) ResetBuild() error {
	for _, dir := range []string{l.OutboxDir(), l.StagesDir(), l.BuildLogsDir(), l.EnvLogsDir()} {
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("reset %s: %w", l.Rel(dir), err)
		}
	}
	return nil
}

// Removed is one path deleted by Clean.
type Removed struct {
	Path string
	Dir  bool
}

// Clean removes every workspace path matching `**/<pattern>` for each
// pattern, then the local inbox, outbox and stage directories. Each path is
// removed once even when several patterns match it.
func (l *Layout) Clean(patterns []string) ([]Removed, error) {
	seen := make(map[string]bool)
	var targets []string
	for _, pattern := range patterns {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}
		if !strings.HasPrefix(pattern, "**/") {
			pattern = "**/" + pattern
		}
		matches, err := l.Glob(pattern, true)
		if err != nil {
			return nil, err
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				targets = append(targets, m)
			}
		}
	}
	sort.Strings(targets)

	var removed []Removed
	for _, rel := range targets {
		path := filepath.Join(l.workspace, filepath.FromSlash(rel))
		info, err := os.Lstat(path)
		if os.IsNotExist(err) {
			// Already gone with a matched parent directory.
			continue
		}
		if err != nil {
			return removed, err
		}
		if err := os.RemoveAll(path); err != nil {
			return removed, fmt.Errorf("remove %s: %w", rel, err)
		}
		removed = append(removed, Removed{Path: rel, Dir: info.IsDir()})
	}

	for _, dir := range []string{l.InboxDir(), l.OutboxDir(), l.StagesDir()} {
		if _, err := os.Stat(dir); err != nil {
			continue
		}
		if err := os.RemoveAll(dir); err != nil {
			return removed, fmt.Errorf("remove %s: %w", l.Rel(dir), err)
		}
		removed = append(removed, Removed{Path: l.Rel(dir), Dir: true})
	}
	return removed, nil
}
