package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete mb configuration
type Config struct {
	Store     StoreConfig     `mapstructure:"store" yaml:"store"`
	Workspace WorkspaceConfig `mapstructure:"workspace" yaml:"workspace"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline" yaml:"pipeline"`
	Container ContainerConfig `mapstructure:"container" yaml:"container"`
	Env       EnvConfig       `mapstructure:"env" yaml:"env"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
	Display   DisplayConfig   `mapstructure:"display" yaml:"display"`
}

// StoreConfig locates the artifact store
type StoreConfig struct {
	// Root is the store directory. A leading ~ expands to the home directory.
	Root string `mapstructure:"root" yaml:"root"`
}

// WorkspaceConfig controls the per-workspace state directory
type WorkspaceConfig struct {
	// LocalRoot is the name of the state directory inside the workspace (default: ".mb")
	LocalRoot string `mapstructure:"local_root" yaml:"local_root"`
}

// PipelineConfig controls where the pipeline definition is read from
type PipelineConfig struct {
	// File is the pipeline definition, relative to the workspace (default: "pipeline.yml")
	File string `mapstructure:"file" yaml:"file"`
}

// ContainerConfig controls the container runtime used by container agents
type ContainerConfig struct {
	// Runtime is the container CLI binary (default: "docker")
	Runtime string `mapstructure:"runtime" yaml:"runtime"`

	// Workspace is the mount point of the workspace inside the container (default: "/.ws")
	Workspace string `mapstructure:"workspace" yaml:"workspace"`

	// ReadinessAttempts is how many times the runtime is checked before giving up (default: 10)
	ReadinessAttempts int `mapstructure:"readiness_attempts" yaml:"readiness_attempts"`

	// ReadinessIntervalMs is the delay between readiness checks (default: 1000)
	ReadinessIntervalMs int `mapstructure:"readiness_interval_ms" yaml:"readiness_interval_ms"`

	// DefaultOS is the container OS when a node reference omits it (default: "linux")
	DefaultOS string `mapstructure:"default_os" yaml:"default_os"`

	// SwitchEngine runs DockerCli.exe to select the Linux or Windows engine
	// on Windows hosts before a container is started (default: true)
	SwitchEngine bool `mapstructure:"switch_engine" yaml:"switch_engine"`
}

// EnvConfig controls environment composition for stages
type EnvConfig struct {
	// Precedence decides which source wins when a persisted environment
	// config and an inbox variable share a name.
	// Options: "config" (persisted config wins), "inbox" (inbox wins)
	Precedence string `mapstructure:"precedence" yaml:"precedence"`

	// DefaultConfig is the environment config used when none is selected (default: "default")
	DefaultConfig string `mapstructure:"default_config" yaml:"default_config"`
}

// LoggingConfig controls the debug log
type LoggingConfig struct {
	// Enabled controls whether the debug log is written (default: true)
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Level is the minimum level written.
	// Options: "debug", "info", "warn", "error"
	Level string `mapstructure:"level" yaml:"level"`

	// MaxSizeMB is the size at which the debug log is rotated (default: 10)
	MaxSizeMB int `mapstructure:"max_size_mb" yaml:"max_size_mb"`

	// MaxBackups is the number of rotated debug logs to keep (default: 3)
	MaxBackups int `mapstructure:"max_backups" yaml:"max_backups"`

	// Compress gzips rotated debug logs (default: false)
	Compress bool `mapstructure:"compress" yaml:"compress"`
}

// DisplayConfig controls terminal output
type DisplayConfig struct {
	// Color selects colored output.
	// Options: "auto" (only on a terminal), "always", "never"
	Color string `mapstructure:"color" yaml:"color"`
}

// ReadinessInterval returns the readiness check delay as a time.Duration
func (c *ContainerConfig) ReadinessInterval() time.Duration {
	return time.Duration(c.ReadinessIntervalMs) * time.Millisecond
}

// ResolveStoreRoot returns the store directory with ~ expanded.
// A relative root is resolved against baseDir.
func (s *StoreConfig) ResolveStoreRoot(baseDir string) string {
	path := s.Root
	if path == "" {
		path = DefaultStoreRoot()
	}

	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	} else if path == "~" {
		if home, err := os.UserHomeDir(); err == nil {
			path = home
		}
	}

	if !filepath.IsAbs(path) {
		path = filepath.Join(baseDir, path)
	}
	return path
}

// DefaultStoreRoot is the store location used when store.root is unset
func DefaultStoreRoot() string {
	return "~/.mailcd/storage"
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Store: StoreConfig{
			Root: DefaultStoreRoot(),
		},
		Workspace: WorkspaceConfig{
			LocalRoot: ".mb",
		},
		Pipeline: PipelineConfig{
			File: "pipeline.yml",
		},
		Container: ContainerConfig{
			Runtime:             "docker",
			Workspace:           "/.ws",
			ReadinessAttempts:   10,
			ReadinessIntervalMs: 1000,
			DefaultOS:           "linux",
			SwitchEngine:        true,
		},
		Env: EnvConfig{
			Precedence:    PrecedenceConfig,
			DefaultConfig: "default",
		},
		Logging: LoggingConfig{
			Enabled:    true,
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
		Display: DisplayConfig{
			Color: "auto",
		},
	}
}

// Environment precedence values
const (
	PrecedenceConfig = "config"
	PrecedenceInbox  = "inbox"
)

// EnvPrefix prefixes every environment variable mb reads, both the
// overrides of settings and the inbox slot variables.
const EnvPrefix = "MB"

// EnvKeyReplacer maps a setting key onto its environment variable suffix.
var EnvKeyReplacer = strings.NewReplacer(".", "_")

type setting struct {
	key   string
	value any
}

func settings() []setting {
	d := Default()
	return []setting{
		{"store.root", d.Store.Root},

		{"workspace.local_root", d.Workspace.LocalRoot},

		{"pipeline.file", d.Pipeline.File},

		// Container defaults
		{"container.runtime", d.Container.Runtime},
		{"container.workspace", d.Container.Workspace},
		{"container.readiness_attempts", d.Container.ReadinessAttempts},
		{"container.readiness_interval_ms", d.Container.ReadinessIntervalMs},
		{"container.default_os", d.Container.DefaultOS},
		{"container.switch_engine", d.Container.SwitchEngine},

		{"env.precedence", d.Env.Precedence},
		{"env.default_config", d.Env.DefaultConfig},

		// Logging defaults
		{"logging.enabled", d.Logging.Enabled},
		{"logging.level", d.Logging.Level},
		{"logging.max_size_mb", d.Logging.MaxSizeMB},
		{"logging.max_backups", d.Logging.MaxBackups},
		{"logging.compress", d.Logging.Compress},

		{"display.color", d.Display.Color},
	}
}

// SetDefaults registers default values with viper
func SetDefaults() {
	for _, s := range settings() {
		viper.SetDefault(s.key, s.value)
	}
}

// Keys returns every setting key in registration order.
func Keys() []string {
	all := settings()
	keys := make([]string, len(all))
	for i, s := range all {
		keys[i] = s.key
	}
	return keys
}

// EnvVar returns the environment variable that overrides key.
func EnvVar(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(EnvKeyReplacer.Replace(key))
}

// SettingForEnvVar returns the key of the setting that the environment
// variable name overrides. Names are compared without regard to case, since
// environment lookups are case-insensitive on Windows.
func SettingForEnvVar(name string) (string, bool) {
	for _, key := range Keys() {
		if strings.EqualFold(EnvVar(key), name) {
			return key, true
		}
	}
	return "", false
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration, falling back to defaults when the
// loaded configuration is invalid
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "mailcd")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".mailcd"
	}
	return filepath.Join(home, ".config", "mailcd")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
