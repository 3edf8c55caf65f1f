package pipeline

import (
	"fmt"
	"path"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Iron-Ham/mailcd/internal/config"
)

// Pipeline is a parsed pipeline definition.
type Pipeline struct {
	// Inbox packages are downloaded once, before any stage runs.
	Inbox Inbox `yaml:"inbox"`
	// Outbox rules are applied once, after every stage has run.
	Outbox Outbox `yaml:"outbox"`
	// Stages in document order.
	Stages Stages `yaml:"stages"`
	// Clean lists glob patterns removed by `mb clean`.
	Clean []string `yaml:"clean"`

	// Path is the file the pipeline was loaded from, if any.
	Path string `yaml:"-"`
}

// Stage returns the stage with the given name.
func (p *Pipeline) Stage(name string) (*Stage, bool) {
	for i := range p.Stages {
		if p.Stages[i].Name == name {
			return &p.Stages[i], true
		}
	}
	return nil, false
}

// Stage is a named unit of work: packages to fetch, commands to run and
// files to publish.
type Stage struct {
	Name   string   `yaml:"-"`
	Inbox  Inbox    `yaml:"inbox"`
	Node   *Node    `yaml:"node"`
	Steps  []string `yaml:"steps"`
	Outbox Outbox   `yaml:"outbox"`
}

// Stages is an ordered list of stages decoded from a YAML mapping.
type Stages []Stage

// UnmarshalYAML decodes a stage mapping, keeping document order.
func (s *Stages) UnmarshalYAML(value *yaml.Node) error {
	return eachPair(value, "stages", func(key string, node *yaml.Node) error {
		var stage Stage
		if !isNull(node) {
			if err := node.Decode(&stage); err != nil {
				return fmt.Errorf("stage %q: %w", key, err)
			}
		}
		stage.Name = key
		*s = append(*s, stage)
		return nil
	})
}

// Slot requests one package for an inbox. The slot name is also the
// StorageID unless ID overrides it.
type Slot struct {
	Name string `yaml:"-"`
	ID   string `yaml:"id"`
	Tag  Labels `yaml:"tag"`
}

// StorageID returns the bucket the slot is resolved against.
func (s Slot) StorageID() string {
	if s.ID != "" {
		return s.ID
	}
	return s.Name
}

// RootVar returns the variable holding the download path of an inbox slot.
func RootVar(slot string) string {
	return config.EnvPrefix + "_" + envName(slot) + "_ROOT"
}

// RootRelPathVar returns the variable holding the workspace-relative path
// of an inbox slot.
func RootRelPathVar(slot string) string {
	return RootVar(slot) + "_RELPATH"
}

// envName replaces every character that cannot appear in an environment
// variable name with an underscore.
func envName(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		}
		return '_'
	}, s)
}

// Inbox is an ordered list of slots decoded from a YAML mapping.
type Inbox []Slot

// UnmarshalYAML decodes an inbox mapping. A slot value may be a mapping
// with id/tag keys, or just the tag (scalar or list).
func (in *Inbox) UnmarshalYAML(value *yaml.Node) error {
	return eachPair(value, "inbox", func(key string, node *yaml.Node) error {
		slot := Slot{Name: key}
		switch {
		case isNull(node):
		case node.Kind == yaml.MappingNode:
			if err := node.Decode(&slot); err != nil {
				return fmt.Errorf("inbox slot %q: %w", key, err)
			}
			slot.Name = key
		default:
			if err := node.Decode(&slot.Tag); err != nil {
				return fmt.Errorf("inbox slot %q: %w", key, err)
			}
		}
		*in = append(*in, slot)
		return nil
	})
}

// StorageIDs returns the buckets the inbox reads from, in slot order.
func (in Inbox) StorageIDs() []string {
	ids := make([]string, 0, len(in))
	for _, slot := range in {
		ids = append(ids, slot.StorageID())
	}
	return ids
}

// Labels is a label list that may be written as a single scalar.
type Labels []string

// UnmarshalYAML accepts `tag: release` as well as `tag: [release, linux]`.
func (l *Labels) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		if value.Tag == "!!null" {
			*l = nil
			return nil
		}
		*l = Labels{value.Value}
		return nil
	case yaml.SequenceNode:
		var labels []string
		if err := value.Decode(&labels); err != nil {
			return err
		}
		*l = labels
		return nil
	default:
		return fmt.Errorf("line %d: tag must be a string or a list of strings", value.Line)
	}
}

// Publication is the list of copy rules that feed one StorageID.
type Publication struct {
	StorageID string
	Rules     []CopyRule
}

// Outbox is an ordered list of publications decoded from a YAML mapping.
type Outbox []Publication

// UnmarshalYAML decodes an outbox mapping of StorageID to rule list.
func (o *Outbox) UnmarshalYAML(value *yaml.Node) error {
	return eachPair(value, "outbox", func(key string, node *yaml.Node) error {
		pub := Publication{StorageID: key}
		switch {
		case isNull(node):
		case node.Kind == yaml.ScalarNode:
			var rule CopyRule
			if err := node.Decode(&rule); err != nil {
				return fmt.Errorf("outbox %q: %w", key, err)
			}
			pub.Rules = []CopyRule{rule}
		default:
			if err := node.Decode(&pub.Rules); err != nil {
				return fmt.Errorf("outbox %q: %w", key, err)
			}
		}
		*o = append(*o, pub)
		return nil
	})
}

// StorageIDs returns the buckets the outbox publishes to.
func (o Outbox) StorageIDs() []string {
	ids := make([]string, 0, len(o))
	for _, pub := range o {
		ids = append(ids, pub.StorageID)
	}
	return ids
}

// CopyRuleSeparator splits the source glob from the destination.
const CopyRuleSeparator = "->"

// CopyRule copies the workspace files matching Source into Dest, a
// directory relative to the StorageID's outbox root.
type CopyRule struct {
	Source string
	Dest   string
}

// ParseCopyRule parses "<glob> -> <dest>". An omitted destination means the
// outbox root.
func ParseCopyRule(s string) (CopyRule, error) {
	src, dest, found := strings.Cut(s, CopyRuleSeparator)
	if !found {
		dest = ""
	}
	src = strings.TrimPrefix(strings.ReplaceAll(strings.TrimSpace(src), `\`, "/"), "./")
	if src == "" {
		return CopyRule{}, fmt.Errorf("copy rule %q has no source pattern", s)
	}
	return CopyRule{Source: src, Dest: strings.TrimSpace(dest)}, nil
}

// DestDir returns the destination as a clean relative slash path, "" for
// the outbox root. Leading slashes and ".." components cannot leave the root.
func (r CopyRule) DestDir() string {
	clean := path.Clean("/" + strings.ReplaceAll(r.Dest, `\`, "/"))
	return strings.TrimPrefix(clean, "/")
}

// String renders the rule in pipeline syntax.
func (r CopyRule) String() string {
	dest := r.Dest
	if dest == "" {
		dest = "/"
	}
	return fmt.Sprintf("%s %s %s", r.Source, CopyRuleSeparator, dest)
}

// UnmarshalYAML decodes a rule from its string form.
func (r *CopyRule) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: copy rule must be a string", value.Line)
	}
	rule, err := ParseCopyRule(value.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*r = rule
	return nil
}

// Container operating systems a node can request.
const (
	OSLinux   = "linux"
	OSWindows = "windows"
)

// Node selects a container execution environment for a stage. A stage
// without a node runs on the local host.
type Node struct {
	// OS is the container operating system, empty when the reference did
	// not name one.
	OS string
	// Containerfile is the container definition, relative to the workspace.
	Containerfile string
}

// ParseNode parses a "[os:]path" container reference. A prefix that is not
// a known OS (a Windows drive letter, say) is kept as part of the path.
func ParseNode(ref string) (Node, error) {
	ref = strings.TrimSpace(ref)
	var os string
	if prefix, rest, ok := strings.Cut(ref, ":"); ok {
		switch strings.ToLower(prefix) {
		case OSLinux, OSWindows:
			os = strings.ToLower(prefix)
			ref = strings.TrimSpace(rest)
		}
	}
	if ref == "" {
		return Node{}, fmt.Errorf("containerfile reference has no path")
	}
	return Node{OS: os, Containerfile: ref}, nil
}

// Platform returns the node OS, or defaultOS when the reference named none.
func (n Node) Platform(defaultOS string) string {
	if n.OS != "" {
		return n.OS
	}
	if defaultOS != "" {
		return defaultOS
	}
	return OSLinux
}

// String renders the node reference in pipeline syntax.
func (n Node) String() string {
	if n.OS == "" {
		return n.Containerfile
	}
	return n.OS + ":" + n.Containerfile
}

// UnmarshalYAML decodes `containerfile: "[os:]path"`.
func (n *Node) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		Containerfile string `yaml:"containerfile"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	node, err := ParseNode(raw.Containerfile)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*n = node
	return nil
}

// eachPair walks a YAML mapping in document order, rejecting duplicate keys.
func eachPair(value *yaml.Node, what string, fn func(key string, node *yaml.Node) error) error {
	if isNull(value) {
		return nil
	}
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: %s must be a mapping", value.Line, what)
	}

	seen := make(map[string]bool, len(value.Content)/2)
	for i := 0; i+1 < len(value.Content); i += 2 {
		key := value.Content[i].Value
		if seen[key] {
			return fmt.Errorf("line %d: duplicate %s entry %q", value.Content[i].Line, what, key)
		}
		seen[key] = true
		if err := fn(key, value.Content[i+1]); err != nil {
			return err
		}
	}
	return nil
}

func isNull(node *yaml.Node) bool {
	return node == nil || (node.Kind == yaml.ScalarNode && node.Tag == "!!null")
}
