package env

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/subosito/gotenv"

	"github.com/Iron-Ham/mailcd/internal/errors"
)

// SelectedFileName records the currently selected config.
const SelectedFileName = ".selected"

// Configs manages the named environment configs stored as KEY=VALUE files
// in one directory (.mb/env by default).
type Configs struct {
	dir         string
	defaultName string
}

// NewConfigs returns a Configs rooted at dir. defaultName is used when no
// config has been selected.
func NewConfigs(dir, defaultName string) *Configs {
	if defaultName == "" {
		defaultName = "default"
	}
	return &Configs{dir: dir, defaultName: defaultName}
}

// Dir returns the config directory.
func (c *Configs) Dir() string {
	return c.dir
}

// DefaultName returns the config used when none is selected.
func (c *Configs) DefaultName() string {
	return c.defaultName
}

func (c *Configs) path(name string) string {
	return filepath.Join(c.dir, name)
}

func validConfigName(name string) error {
	if name == "" || strings.HasPrefix(name, ".") || strings.ContainsAny(name, `/\`) {
		return errors.NewValidationError("invalid environment config name").WithField("config").WithValue(name)
	}
	return nil
}

// List returns the config names, sorted.
func (c *Configs) List() ([]string, error) {
	entries, err := os.ReadDir(c.dir)
	if os.IsNotExist(err) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list environment configs: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() && !strings.HasPrefix(e.Name(), ".") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Exists reports whether a config file exists.
func (c *Configs) Exists(name string) bool {
	if validConfigName(name) != nil {
		return false
	}
	info, err := os.Stat(c.path(name))
	return err == nil && info.Mode().IsRegular()
}

// Create makes an empty config.
func (c *Configs) Create(name string) error {
	if err := validConfigName(name); err != nil {
		return err
	}
	if c.Exists(name) {
		return errors.NewAlreadyExistsError("environment", name)
	}
	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return fmt.Errorf("create environment directory: %w", err)
	}
	return os.WriteFile(c.path(name), nil, 0644)
}

// Delete removes a config. Deleting the selected config clears the selection.
func (c *Configs) Delete(name string) error {
	if !c.Exists(name) {
		return errors.NewNotFoundError("environment", name)
	}
	if err := os.Remove(c.path(name)); err != nil {
		return fmt.Errorf("delete environment %s: %w", name, err)
	}
	if selected, ok := c.Selected(); ok && selected == name {
		if err := os.Remove(c.path(SelectedFileName)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("clear selection: %w", err)
		}
	}
	return nil
}

// Selected returns the selected config name, if one was selected.
func (c *Configs) Selected() (string, bool) {
	data, err := os.ReadFile(c.path(SelectedFileName))
	if err != nil {
		return "", false
	}
	name := strings.TrimSpace(string(data))
	return name, name != ""
}

// Current returns the selected config, or the default name.
func (c *Configs) Current() string {
	if name, ok := c.Selected(); ok {
		return name
	}
	return c.defaultName
}

// Select marks an existing config as selected.
func (c *Configs) Select(name string) error {
	if !c.Exists(name) {
		return errors.NewNotFoundError("environment", name)
	}
	return c.writeSelected(name)
}

func (c *Configs) writeSelected(name string) error {
	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return fmt.Errorf("create environment directory: %w", err)
	}
	return os.WriteFile(c.path(SelectedFileName), []byte(name+"\n"), 0644)
}

// Load reads a config. Malformed lines are ignored.
func (c *Configs) Load(name string) (*Vars, error) {
	if err := validConfigName(name); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(c.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFoundError("environment", name)
		}
		return nil, fmt.Errorf("read environment %s: %w", name, err)
	}
	return parseConfig(data), nil
}

// parseConfig reads KEY=VALUE lines one at a time so that one bad line
// does not hide the rest of the file.
func parseConfig(data []byte) *Vars {
	vars := NewVars()
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || !strings.Contains(line, "=") {
			continue
		}
		parsed, err := gotenv.StrictParse(strings.NewReader(line))
		if err != nil {
			continue
		}
		for _, k := range sortedKeys(parsed) {
			vars.Set(strings.TrimSpace(k), parsed[k])
		}
	}
	return vars
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (c *Configs) save(name string, vars *Vars) error {
	var b strings.Builder
	for _, k := range vars.Keys() {
		value, _ := vars.Get(k)
		b.WriteString(k + "=" + formatValue(value) + "\n")
	}
	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return fmt.Errorf("create environment directory: %w", err)
	}
	return os.WriteFile(c.path(name), []byte(b.String()), 0644)
}

// formatValue quotes value so that parseConfig reads it back unchanged.
// Single quotes suppress variable expansion; double quotes are only used for
// values that themselves contain a single quote or a line break.
func formatValue(value string) string {
	if value != "" && strings.IndexFunc(value, needsQuote) < 0 {
		return value
	}
	if !strings.ContainsAny(value, "'\n\r") {
		return "'" + value + "'"
	}
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "$", `\$`, "\n", `\n`, "\r", "")
	return `"` + r.Replace(value) + `"`
}

func needsQuote(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return false
	case strings.ContainsRune("._-/:,@+", r):
		return false
	}
	return true
}

// Set assigns variable in config. An empty config name targets the selected
// config; when nothing is selected the default config is selected and
// created. A named config must already exist.
func (c *Configs) Set(config, variable, value string) error {
	if strings.TrimSpace(variable) == "" || strings.ContainsAny(variable, "= \t\n") {
		return errors.NewValidationError("invalid variable name").WithField("variable").WithValue(variable)
	}

	if config == "" {
		config = c.Current()
		if _, ok := c.Selected(); !ok {
			if err := c.writeSelected(config); err != nil {
				return err
			}
		}
	} else if !c.Exists(config) {
		return errors.NewNotFoundError("environment", config)
	}
	if err := validConfigName(config); err != nil {
		return err
	}

	vars := NewVars()
	if c.Exists(config) {
		loaded, err := c.Load(config)
		if err != nil {
			return err
		}
		vars = loaded
	}
	vars.Set(variable, value)
	return c.save(config, vars)
}

// Unset removes variable from config (the current config when empty).
// Unsetting in a config that does not exist is a no-op.
func (c *Configs) Unset(config, variable string) error {
	if config == "" {
		config = c.Current()
	}
	if !c.Exists(config) {
		return nil
	}
	vars, err := c.Load(config)
	if err != nil {
		return err
	}
	vars.Delete(variable)
	return c.save(config, vars)
}

// Variables returns the variables of config, or of the current config when
// config is empty. A missing config yields no variables.
func (c *Configs) Variables(config string) (*Vars, error) {
	if config == "" {
		config = c.Current()
	}
	if !c.Exists(config) {
		return NewVars(), nil
	}
	return c.Load(config)
}

// ParseRef splits an environment reference of the form [CONFIG/]VARIABLE.
func ParseRef(ref string) (config, variable string, err error) {
	parts := strings.Split(ref, "/")
	switch len(parts) {
	case 1:
		variable = parts[0]
	case 2:
		config, variable = parts[0], parts[1]
		if config == "" {
			return "", "", errors.NewValidationError("environment reference has an empty config").WithValue(ref)
		}
	default:
		return "", "", errors.NewValidationError("environment reference must be [CONFIG/]VARIABLE").WithValue(ref)
	}
	if variable == "" {
		return "", "", errors.NewValidationError("environment reference has no variable").WithValue(ref)
	}
	return config, variable, nil
}
