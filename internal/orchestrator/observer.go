package orchestrator

import (
	"github.com/Iron-Ham/mailcd/internal/agent"
	"github.com/Iron-Ham/mailcd/internal/env"
)

// Observer receives progress while a pipeline runs. Stage is empty for the
// pipeline-level inbox and outbox.
type Observer interface {
	// Section starts a named part of the run, such as "inbox" or a stage.
	Section(title string)
	// PackageDownloaded reports one resolved inbox slot.
	PackageDownloaded(stage string, pkg Package)
	// EnvironmentComposed reports the variables a stage runs with.
	EnvironmentComposed(stage string, vars *env.Vars)
	// StepFinished reports the outcome of one step.
	StepFinished(stage string, result agent.StepResult)
	// PackagePublished reports one package added to the store.
	PackagePublished(stage string, pub Published)
	// Notice reports a diagnostic that does not stop the run.
	Notice(stage, msg string)
}

// NopObserver ignores every event.
type NopObserver struct{}

var _ Observer = NopObserver{}

func (NopObserver) Section(string) {}
func (NopObserver) PackageDownloaded(string, Package) {}
func (NopObserver) EnvironmentComposed(string, *env.Vars) {}
func (NopObserver) StepFinished(string, agent.StepResult) {}
func (NopObserver) PackagePublished(string, Published) {}
func (NopObserver) Notice(string, string) {}
