package pipeline

import (
	"fmt"
	"os"
	"strings"

	"github.com/gobwas/glob"
	"gopkg.in/yaml.v3"

	"github.com/Iron-Ham/mailcd/internal/config"
	"github.com/Iron-Ham/mailcd/internal/errors"
)

// Load reads and validates the pipeline file at path.
func Load(path string) (*Pipeline, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, errors.NewPipelineError("no pipeline found", errors.ErrPipelineNotFound).WithFile(path)
	}
	if err != nil {
		return nil, errors.NewPipelineError("read pipeline", err).WithFile(path)
	}

	p, err := Parse(data)
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	p.Path = path
	return p, nil
}

// Parse decodes and validates a pipeline document.
func Parse(data []byte) (*Pipeline, error) {
	var p Pipeline
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, errors.NewPipelineError(err.Error(), errors.ErrInvalidPipeline)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks names, slots, steps and copy rules. Every problem is
// reported as an ErrInvalidPipeline.
func (p *Pipeline) Validate() error {
	var problems []error

	invalid := func(stage, format string, args ...any) {
		problems = append(problems,
			errors.NewPipelineError(fmt.Sprintf(format, args...), errors.ErrInvalidPipeline).WithStage(stage))
	}

	checkInbox := func(stage string, inbox Inbox) {
		for _, slot := range inbox {
			if !validName(slot.StorageID()) {
				invalid(stage, "inbox slot %q has an invalid storage id %q", slot.Name, slot.StorageID())
			}
			for _, name := range []string{RootVar(slot.Name), RootRelPathVar(slot.Name)} {
				if key, ok := config.SettingForEnvVar(name); ok {
					invalid(stage, "inbox slot %q would set %s, which overrides the %s setting", slot.Name, name, key)
				}
			}
			if len(slot.Tag) == 0 {
				invalid(stage, "inbox slot %q has no tag", slot.Name)
			}
			for _, label := range slot.Tag {
				if strings.TrimSpace(label) == "" {
					invalid(stage, "inbox slot %q has an empty tag", slot.Name)
				}
			}
		}
	}

	checkOutbox := func(stage string, outbox Outbox) {
		for _, pub := range outbox {
			if !validName(pub.StorageID) {
				invalid(stage, "outbox has an invalid storage id %q", pub.StorageID)
			}
			for _, rule := range pub.Rules {
				if _, err := glob.Compile(rule.Source, '/'); err != nil {
					invalid(stage, "outbox %q: bad pattern %q: %v", pub.StorageID, rule.Source, err)
				}
			}
		}
	}

	checkInbox("", p.Inbox)
	checkOutbox("", p.Outbox)

	for _, stage := range p.Stages {
		if !validName(stage.Name) {
			invalid(stage.Name, "invalid stage name %q", stage.Name)
		}
		for i, step := range stage.Steps {
			if strings.TrimSpace(step) == "" {
				invalid(stage.Name, "step %d is empty", i+1)
			}
		}
		checkInbox(stage.Name, stage.Inbox)
		checkOutbox(stage.Name, stage.Outbox)
	}

	for _, pattern := range p.Clean {
		if _, err := glob.Compile(pattern, '/'); err != nil || strings.TrimSpace(pattern) == "" {
			invalid("", "bad clean pattern %q", pattern)
		}
	}

	return errors.Join(problems...)
}

// validName reports whether s can be used as a single path element.
func validName(s string) bool {
	return s != "" && s != "." && s != ".." && !strings.ContainsAny(s, "/\\\x00") && strings.TrimSpace(s) == s
}
