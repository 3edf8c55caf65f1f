package orchestrator

import (
	"path"
	"strings"

	"github.com/Iron-Ham/mailcd/internal/agent"
	"github.com/Iron-Ham/mailcd/internal/config"
	"github.com/Iron-Ham/mailcd/internal/env"
	"github.com/Iron-Ham/mailcd/internal/pipeline"
)

// inboxVars returns the MB_<slot>_ROOT variables for packages, expressed in
// the agent's view of the workspace.
func inboxVars(a agent.Agent, packages ...[]Package) *env.Vars {
	vars := env.NewVars()
	for _, group := range packages {
		for _, pkg := range group {
			vars.Set(pipeline.RootVar(pkg.Slot), agentPath(a.WorkspaceDir(), pkg.RelPath))
			vars.Set(pipeline.RootRelPathVar(pkg.Slot), pkg.RelPath)
		}
	}
	return vars
}

// agentPath joins a workspace-relative slash path onto the agent's
// workspace directory, using backslashes when the agent's directory does.
func agentPath(workspaceDir, rel string) string {
	if strings.Contains(workspaceDir, `\`) {
		return strings.TrimRight(workspaceDir, `\`) + `\` + strings.ReplaceAll(rel, "/", `\`)
	}
	return path.Join(workspaceDir, rel)
}

// composeEnv merges inbox-derived variables with the persisted environment
// config. Stage inbox variables override pipeline inbox variables; the
// precedence setting decides between inbox and config.
func (o *Orchestrator) composeEnv(a agent.Agent, pipelineInbox, stageInbox []Package) (*env.Vars, error) {
	fromInbox := inboxVars(a, pipelineInbox, stageInbox)
	fromConfig, err := o.backend.Variables(o.envConfig)
	if err != nil {
		return nil, err
	}

	if o.precedence == config.PrecedenceInbox {
		return fromConfig.Clone().Merge(fromInbox), nil
	}
	return fromInbox.Merge(fromConfig), nil
}
