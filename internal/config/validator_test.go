package config

import (
	"strings"
	"testing"
)

func TestValidationError_Error(t *testing.T) {
	err := ValidationError{
		Field:   "test.field",
		Value:   123,
		Message: "must be greater than zero",
	}

	expected := "test.field: must be greater than zero (got: 123)"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestValidationErrors_Error(t *testing.T) {
	t.Run("empty errors", func(t *testing.T) {
		var errs ValidationErrors
		if errs.Error() != "" {
			t.Errorf("Error() for empty = %q, want empty string", errs.Error())
		}
	})

	t.Run("multiple errors", func(t *testing.T) {
		errs := ValidationErrors{
			{Field: "a", Value: 1, Message: "bad"},
			{Field: "b", Value: 2, Message: "worse"},
		}
		msg := errs.Error()
		if !strings.HasPrefix(msg, "2 validation errors:") {
			t.Errorf("unexpected header: %q", msg)
		}
		if !strings.Contains(msg, "  2. b: worse (got: 2)") {
			t.Errorf("missing second error: %q", msg)
		}
	})
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"empty store root", func(c *Config) { c.Store.Root = "" }, "store.root"},
		{"nested local root", func(c *Config) { c.Workspace.LocalRoot = "state/.mb" }, "workspace.local_root"},
		{"empty pipeline file", func(c *Config) { c.Pipeline.File = " " }, "pipeline.file"},
		{"empty runtime", func(c *Config) { c.Container.Runtime = "" }, "container.runtime"},
		{"relative container workspace", func(c *Config) { c.Container.Workspace = "ws" }, "container.workspace"},
		{"zero readiness attempts", func(c *Config) { c.Container.ReadinessAttempts = 0 }, "container.readiness_attempts"},
		{"negative readiness interval", func(c *Config) { c.Container.ReadinessIntervalMs = -1 }, "container.readiness_interval_ms"},
		{"unknown os", func(c *Config) { c.Container.DefaultOS = "plan9" }, "container.default_os"},
		{"unknown precedence", func(c *Config) { c.Env.Precedence = "both" }, "env.precedence"},
		{"hidden default env config", func(c *Config) { c.Env.DefaultConfig = ".selected" }, "env.default_config"},
		{"unknown log level", func(c *Config) { c.Logging.Level = "trace" }, "logging.level"},
		{"zero log size", func(c *Config) { c.Logging.MaxSizeMB = 0 }, "logging.max_size_mb"},
		{"huge log size", func(c *Config) { c.Logging.MaxSizeMB = 5000 }, "logging.max_size_mb"},
		{"negative backups", func(c *Config) { c.Logging.MaxBackups = -1 }, "logging.max_backups"},
		{"unknown color mode", func(c *Config) { c.Display.Color = "rainbow" }, "display.color"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			errs := cfg.Validate()
			if len(errs) == 0 {
				t.Fatal("expected validation errors")
			}
			found := false
			for _, e := range errs {
				if e.Field == tt.field {
					found = true
				}
			}
			if !found {
				t.Errorf("expected error for %s, got %v", tt.field, ValidationErrors(errs))
			}
		})
	}
}
