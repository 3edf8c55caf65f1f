package config

import (
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/viper"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg == nil {
		t.Fatal("Default() returned nil")
	}

	if cfg.Store.Root != "~/.mailcd/storage" {
		t.Errorf("Store.Root = %q, want %q", cfg.Store.Root, "~/.mailcd/storage")
	}
	if cfg.Workspace.LocalRoot != ".mb" {
		t.Errorf("Workspace.LocalRoot = %q, want %q", cfg.Workspace.LocalRoot, ".mb")
	}
	if cfg.Pipeline.File != "pipeline.yml" {
		t.Errorf("Pipeline.File = %q, want %q", cfg.Pipeline.File, "pipeline.yml")
	}

	if cfg.Container.Runtime != "docker" {
		t.Errorf("Container.Runtime = %q, want %q", cfg.Container.Runtime, "docker")
	}
	if cfg.Container.Workspace != "/.ws" {
		t.Errorf("Container.Workspace = %q, want %q", cfg.Container.Workspace, "/.ws")
	}
	if cfg.Container.ReadinessAttempts != 10 {
		t.Errorf("Container.ReadinessAttempts = %d, want 10", cfg.Container.ReadinessAttempts)
	}
	if cfg.Container.ReadinessInterval() != time.Second {
		t.Errorf("Container.ReadinessInterval() = %v, want 1s", cfg.Container.ReadinessInterval())
	}

	if cfg.Env.Precedence != PrecedenceConfig {
		t.Errorf("Env.Precedence = %q, want %q", cfg.Env.Precedence, PrecedenceConfig)
	}
	if cfg.Env.DefaultConfig != "default" {
		t.Errorf("Env.DefaultConfig = %q, want %q", cfg.Env.DefaultConfig, "default")
	}

	if !cfg.Logging.Enabled {
		t.Error("Logging.Enabled should be true by default")
	}

	if errs := cfg.Validate(); len(errs) != 0 {
		t.Errorf("default config should be valid, got %v", ValidationErrors(errs))
	}
}

func TestStoreConfig_ResolveStoreRoot(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}

	tests := []struct {
		name string
		root string
		want string
	}{
		{"tilde", "~/.mailcd/storage", filepath.Join(home, ".mailcd", "storage")},
		{"bare tilde", "~", home},
		{"absolute", "/srv/artifacts", "/srv/artifacts"},
		{"relative", "artifacts", filepath.Join("/work", "artifacts")},
		{"empty uses default", "", filepath.Join(home, ".mailcd", "storage")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := StoreConfig{Root: tt.root}
			if got := s.ResolveStoreRoot("/work"); got != tt.want {
				t.Errorf("ResolveStoreRoot() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestConfigDir(t *testing.T) {
	t.Run("with XDG_CONFIG_HOME", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "/custom/config")
		if got := ConfigDir(); got != "/custom/config/mailcd" {
			t.Errorf("ConfigDir() = %q, want %q", got, "/custom/config/mailcd")
		}
		if got := ConfigFile(); got != "/custom/config/mailcd/config.yaml" {
			t.Errorf("ConfigFile() = %q", got)
		}
	})

	t.Run("without XDG_CONFIG_HOME", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "")
		home, _ := os.UserHomeDir()
		expected := filepath.Join(home, ".config", "mailcd")
		if got := ConfigDir(); got != expected {
			t.Errorf("ConfigDir() = %q, want %q", got, expected)
		}
	})
}

func TestLoad(t *testing.T) {
	t.Cleanup(viper.Reset)

	t.Run("defaults", func(t *testing.T) {
		viper.Reset()
		SetDefaults()

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if cfg.Container.ReadinessAttempts != 10 {
			t.Errorf("ReadinessAttempts = %d, want 10", cfg.Container.ReadinessAttempts)
		}
	})

	t.Run("overrides from config file", func(t *testing.T) {
		viper.Reset()
		SetDefaults()

		path := filepath.Join(t.TempDir(), "config.yaml")
		content := "env:\n  precedence: inbox\ncontainer:\n  runtime: podman\n"
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
		viper.SetConfigFile(path)
		if err := viper.ReadInConfig(); err != nil {
			t.Fatalf("ReadInConfig failed: %v", err)
		}

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if cfg.Env.Precedence != PrecedenceInbox {
			t.Errorf("Env.Precedence = %q, want %q", cfg.Env.Precedence, PrecedenceInbox)
		}
		if cfg.Container.Runtime != "podman" {
			t.Errorf("Container.Runtime = %q, want podman", cfg.Container.Runtime)
		}
		if cfg.Workspace.LocalRoot != ".mb" {
			t.Errorf("unset keys should keep defaults, got %q", cfg.Workspace.LocalRoot)
		}
	})

	t.Run("invalid values", func(t *testing.T) {
		viper.Reset()
		SetDefaults()
		viper.Set("env.precedence", "whatever")

		if _, err := Load(); err == nil {
			t.Fatal("expected validation error")
		}
		if Get().Env.Precedence != PrecedenceConfig {
			t.Error("Get() should fall back to defaults")
		}
	})
}

func TestKeysMatchRegisteredDefaults(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Reset()
	SetDefaults()

	want := viper.AllKeys()
	got := Keys()
	sort.Strings(want)
	sort.Strings(got)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Keys() mismatch (-viper +Keys):\n%s", diff)
	}
}

func TestEnvVar(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"store.root", "MB_STORE_ROOT"},
		{"workspace.local_root", "MB_WORKSPACE_LOCAL_ROOT"},
		{"container.readiness_interval_ms", "MB_CONTAINER_READINESS_INTERVAL_MS"},
	}
	for _, tt := range tests {
		if got := EnvVar(tt.key); got != tt.want {
			t.Errorf("EnvVar(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}

func TestEnvVar_OverridesSetting(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Reset()
	SetDefaults()
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(EnvKeyReplacer)
	viper.AutomaticEnv()

	t.Setenv(EnvVar("pipeline.file"), "ci.yml")
	if got := viper.GetString("pipeline.file"); got != "ci.yml" {
		t.Errorf("pipeline.file = %q, want %q from %s", got, "ci.yml", EnvVar("pipeline.file"))
	}
}

func TestSettingForEnvVar(t *testing.T) {
	tests := []struct {
		name   string
		key    string
		exists bool
	}{
		{"MB_STORE_ROOT", "store.root", true},
		{"mb_store_root", "store.root", true},
		{"MB_WORKSPACE_LOCAL_ROOT", "workspace.local_root", true},
		{"MB_APP_ROOT", "", false},
		{"STORE_ROOT", "", false},
	}
	for _, tt := range tests {
		key, ok := SettingForEnvVar(tt.name)
		if ok != tt.exists || key != tt.key {
			t.Errorf("SettingForEnvVar(%q) = (%q, %v), want (%q, %v)", tt.name, key, ok, tt.key, tt.exists)
		}
	}
}
