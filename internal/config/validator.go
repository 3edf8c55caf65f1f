package config

import (
	"fmt"
	"slices"
	"strings"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "container.readiness_attempts")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// ValidContainerOS returns the container operating systems a node may name
func ValidContainerOS() []string {
	return []string{"linux", "windows"}
}

// ValidPrecedences returns the accepted env.precedence values
func ValidPrecedences() []string {
	return []string{PrecedenceConfig, PrecedenceInbox}
}

// ValidColorModes returns the accepted display.color values
func ValidColorModes() []string {
	return []string{"auto", "always", "never"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validatePaths()...)
	errors = append(errors, c.validateContainer()...)
	errors = append(errors, c.validateEnv()...)
	errors = append(errors, c.validateLogging()...)

	if !slices.Contains(ValidColorModes(), c.Display.Color) {
		errors = append(errors, ValidationError{
			Field:   "display.color",
			Value:   c.Display.Color,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidColorModes(), ", ")),
		})
	}

	return errors
}

func (c *Config) validatePaths() []ValidationError {
	var errors []ValidationError

	checks := []struct {
		field string
		value string
	}{
		{"store.root", c.Store.Root},
		{"workspace.local_root", c.Workspace.LocalRoot},
		{"pipeline.file", c.Pipeline.File},
	}
	for _, check := range checks {
		if strings.TrimSpace(check.value) == "" {
			errors = append(errors, ValidationError{
				Field:   check.field,
				Value:   check.value,
				Message: "must not be empty",
			})
			continue
		}
		if strings.ContainsRune(check.value, '\x00') {
			errors = append(errors, ValidationError{
				Field:   check.field,
				Value:   check.value,
				Message: "path contains invalid null character",
			})
		}
	}

	// The state directory lives inside the workspace; it must be a single
	// relative path element so outbox scans can exclude it.
	if root := c.Workspace.LocalRoot; root != "" && (strings.ContainsAny(root, `/\`) || root == "." || root == "..") {
		errors = append(errors, ValidationError{
			Field:   "workspace.local_root",
			Value:   root,
			Message: "must be a single directory name",
		})
	}

	return errors
}

func (c *Config) validateContainer() []ValidationError {
	var errors []ValidationError

	if strings.TrimSpace(c.Container.Runtime) == "" {
		errors = append(errors, ValidationError{
			Field:   "container.runtime",
			Value:   c.Container.Runtime,
			Message: "must not be empty",
		})
	}

	if !strings.HasPrefix(c.Container.Workspace, "/") {
		errors = append(errors, ValidationError{
			Field:   "container.workspace",
			Value:   c.Container.Workspace,
			Message: "must be an absolute path",
		})
	}

	if c.Container.ReadinessAttempts < 1 {
		errors = append(errors, ValidationError{
			Field:   "container.readiness_attempts",
			Value:   c.Container.ReadinessAttempts,
			Message: "must be at least 1",
		})
	}

	if c.Container.ReadinessIntervalMs < 0 {
		errors = append(errors, ValidationError{
			Field:   "container.readiness_interval_ms",
			Value:   c.Container.ReadinessIntervalMs,
			Message: "must be non-negative",
		})
	}

	if !slices.Contains(ValidContainerOS(), c.Container.DefaultOS) {
		errors = append(errors, ValidationError{
			Field:   "container.default_os",
			Value:   c.Container.DefaultOS,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidContainerOS(), ", ")),
		})
	}

	return errors
}

func (c *Config) validateEnv() []ValidationError {
	var errors []ValidationError

	if !slices.Contains(ValidPrecedences(), c.Env.Precedence) {
		errors = append(errors, ValidationError{
			Field:   "env.precedence",
			Value:   c.Env.Precedence,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidPrecedences(), ", ")),
		})
	}

	if c.Env.DefaultConfig == "" || strings.ContainsAny(c.Env.DefaultConfig, `/\`) || strings.HasPrefix(c.Env.DefaultConfig, ".") {
		errors = append(errors, ValidationError{
			Field:   "env.default_config",
			Value:   c.Env.DefaultConfig,
			Message: "must be a plain file name",
		})
	}

	return errors
}

func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), c.Logging.Level) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	if c.Logging.MaxSizeMB <= 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: "must be positive",
		})
	}

	const maxLogSizeMB = 1000
	if c.Logging.MaxSizeMB > maxLogSizeMB {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: fmt.Sprintf("exceeds maximum of %dMB", maxLogSizeMB),
		})
	}

	if c.Logging.MaxBackups < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_backups",
			Value:   c.Logging.MaxBackups,
			Message: "must be non-negative",
		})
	}

	return errors
}
