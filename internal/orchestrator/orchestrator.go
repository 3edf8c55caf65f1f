// Package orchestrator runs pipelines: it resolves inboxes from the artifact
// store, composes each stage's environment, runs the steps on an execution
// agent and publishes outboxes back to the store.
//
// Stages run one at a time in dependency order. A step that exits non-zero
// does not stop its stage or the run; store lookups that find nothing or
// more than one package, agent failures and I/O errors abort the run.
package orchestrator

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/Iron-Ham/mailcd/internal/agent"
	"github.com/Iron-Ham/mailcd/internal/config"
	"github.com/Iron-Ham/mailcd/internal/env"
	"github.com/Iron-Ham/mailcd/internal/errors"
	"github.com/Iron-Ham/mailcd/internal/logging"
	"github.com/Iron-Ham/mailcd/internal/pipeline"
	"github.com/Iron-Ham/mailcd/internal/workspace"
)

// Backend is the store and environment access a run needs.
type Backend interface {
	Find(storageID string, labels ...string) ([]string, error)
	Download(storageID, hash, targetDir string) error
	Add(storageID, sourcePath string) (string, error)
	Variables(config string) (*env.Vars, error)
}

// AgentFactory creates the execution agent for a stage node. A nil node
// means the local host.
type AgentFactory interface {
	New(ctx context.Context, node *pipeline.Node) (agent.Agent, error)
}

// Config wires an Orchestrator.
type Config struct {
	Layout  *workspace.Layout
	Backend Backend
	Agents  AgentFactory
	// Precedence decides which side wins when an inbox-derived variable and
	// a persisted config variable share a name: config.PrecedenceConfig
	// (the default) or config.PrecedenceInbox.
	Precedence string
	// EnvConfig names the persisted environment config; empty means the
	// selected one.
	EnvConfig string
	Observer  Observer
	Logger    *logging.Logger
}

// Orchestrator runs pipelines against one workspace.
type Orchestrator struct {
	layout     *workspace.Layout
	backend    Backend
	agents     AgentFactory
	precedence string
	envConfig  string
	observer   Observer
	logger     *logging.Logger
}

// New creates an Orchestrator.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Layout == nil {
		return nil, errors.NewValidationError("orchestrator requires a workspace layout")
	}
	if cfg.Backend == nil {
		return nil, errors.NewValidationError("orchestrator requires a backend")
	}
	if cfg.Agents == nil {
		return nil, errors.NewValidationError("orchestrator requires an agent factory")
	}
	switch cfg.Precedence {
	case "":
		cfg.Precedence = config.PrecedenceConfig
	case config.PrecedenceConfig, config.PrecedenceInbox:
	default:
		return nil, errors.NewValidationError("invalid environment precedence").
			WithField("env.precedence").WithValue(cfg.Precedence)
	}
	if cfg.Observer == nil {
		cfg.Observer = NopObserver{}
	}
	return &Orchestrator{
		layout:     cfg.Layout,
		backend:    cfg.Backend,
		agents:     cfg.Agents,
		precedence: cfg.Precedence,
		envConfig:  cfg.EnvConfig,
		observer:   cfg.Observer,
		logger:     logging.OrNop(cfg.Logger).WithComponent("orchestrator"),
	}, nil
}

// Package is one inbox slot resolved and downloaded into the workspace.
type Package struct {
	Slot      string
	StorageID string
	Hash      string
	// Dir is the host path of the downloaded package.
	Dir string
	// RelPath is Dir relative to the workspace, slash-separated.
	RelPath string
}

// Published is one package added to the store from an outbox.
type Published struct {
	StorageID string
	Hash      string
	Files     []string
}

// StageResult records what one stage did.
type StageResult struct {
	Name      string
	Inbox     []Package
	Steps     []agent.StepResult
	Published []Published
}

// FailedSteps returns the number of steps that exited non-zero.
func (s StageResult) FailedSteps() int {
	n := 0
	for _, step := range s.Steps {
		if !step.Succeeded() {
			n++
		}
	}
	return n
}

// Result records a whole run.
type Result struct {
	RunID     string
	Order     []string
	Inbox     []Package
	Stages    []StageResult
	Published []Published
}

// FailedSteps returns the number of failed steps across all stages.
func (r *Result) FailedSteps() int {
	n := 0
	for _, s := range r.Stages {
		n += s.FailedSteps()
	}
	return n
}

// Run executes p: the pipeline inbox, every stage in dependency order, then
// the pipeline outbox. Results of a previous build (outboxes, stage
// directories and stage logs) are removed first.
func (o *Orchestrator) Run(ctx context.Context, p *pipeline.Pipeline) (*Result, error) {
	result := &Result{RunID: uuid.NewString()}
	log := o.logger.With("run_id", result.RunID)

	stages, err := p.Ordered()
	if err != nil {
		return result, err
	}
	for _, s := range stages {
		result.Order = append(result.Order, s.Name)
	}
	log.Info("run started", "stages", result.Order)

	if err := o.layout.ResetBuild(); err != nil {
		return result, err
	}

	if len(p.Inbox) > 0 {
		o.observer.Section("inbox")
		result.Inbox, err = o.fetchInbox(ctx, "", p.Inbox, o.layout.InboxDir())
		if err != nil {
			logFailure(log, "pipeline inbox failed", err)
			return result, err
		}
	}

	for _, stage := range stages {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		stageLog := log.WithStage(stage.Name)
		sr, err := o.runStage(ctx, stage, result.Inbox, stageLog)
		result.Stages = append(result.Stages, sr)
		if err != nil {
			logFailure(stageLog, "stage failed", err)
			return result, errors.NewPipelineError("stage failed", err).WithStage(stage.Name)
		}
	}

	if len(p.Outbox) > 0 {
		o.observer.Section("outbox")
		result.Published, err = o.publish(ctx, "", p.Outbox, o.layout.OutboxDir())
		if err != nil {
			return result, err
		}
	}

	log.Info("run finished", "failed_steps", result.FailedSteps(), "published", len(result.Published))
	return result, nil
}

// Pull downloads the pipeline inbox into the workspace without running any
// stage.
func (o *Orchestrator) Pull(ctx context.Context, p *pipeline.Pipeline) ([]Package, error) {
	if len(p.Inbox) == 0 {
		o.observer.Notice("", "pipeline has no inbox")
		return nil, nil
	}
	o.observer.Section("inbox")
	return o.fetchInbox(ctx, "", p.Inbox, o.layout.InboxDir())
}

// Push stages and publishes the pipeline outbox from the current workspace
// contents without running any stage.
func (o *Orchestrator) Push(ctx context.Context, p *pipeline.Pipeline) ([]Published, error) {
	if len(p.Outbox) == 0 {
		o.observer.Notice("", "pipeline has no outbox")
		return nil, nil
	}
	if err := os.RemoveAll(o.layout.OutboxDir()); err != nil {
		return nil, fmt.Errorf("reset outbox: %w", err)
	}
	o.observer.Section("outbox")
	return o.publish(ctx, "", p.Outbox, o.layout.OutboxDir())
}

// logFailure records err at warning level when it is a user error and at
// error level otherwise.
func logFailure(log *logging.Logger, msg string, err error) {
	if errors.GetSeverity(err) < errors.SeverityError {
		log.Warn(msg, "error", err.Error())
		return
	}
	log.Error(msg, "error", err.Error())
}

func (o *Orchestrator) runStage(ctx context.Context, stage *pipeline.Stage, pipelineInbox []Package, log *logging.Logger) (StageResult, error) {
	sr := StageResult{Name: stage.Name}
	o.observer.Section(stage.Name)
	log.Info("stage started", "steps", len(stage.Steps))

	var err error
	if len(stage.Inbox) > 0 {
		sr.Inbox, err = o.fetchInbox(ctx, stage.Name, stage.Inbox, o.layout.StageInboxDir(stage.Name))
		if err != nil {
			return sr, err
		}
	}

	a, err := o.agents.New(ctx, stage.Node)
	if err != nil {
		return sr, err
	}

	vars, err := o.composeEnv(a, pipelineInbox, sr.Inbox)
	if err != nil {
		return sr, err
	}
	o.observer.EnvironmentComposed(stage.Name, vars)

	err = agent.Scope(ctx, a, vars, func(ctx context.Context, snapshot string) error {
		if err := writeLog(o.layout.EnvLogPath(stage.Name), snapshot+"\n"); err != nil {
			return err
		}
		logFile, err := createLog(o.layout.BuildLogPath(stage.Name))
		if err != nil {
			return err
		}
		defer logFile.Close()

		for _, step := range stage.Steps {
			if err := ctx.Err(); err != nil {
				return err
			}
			result, err := a.RunStep(ctx, step, vars)
			if err != nil {
				return errors.Wrapf(err, "run step %q", step)
			}
			sr.Steps = append(sr.Steps, result)
			if err := writeStep(logFile, result); err != nil {
				return err
			}
			o.observer.StepFinished(stage.Name, result)
			log.Info("step finished", "step", step, "exit_code", result.ExitCode)
		}
		return nil
	})
	if err != nil {
		return sr, err
	}

	if len(stage.Outbox) > 0 {
		sr.Published, err = o.publish(ctx, stage.Name, stage.Outbox, o.layout.StageOutboxDir(stage.Name))
		if err != nil {
			return sr, err
		}
	}

	log.Info("stage finished", "failed_steps", sr.FailedSteps())
	return sr, nil
}
