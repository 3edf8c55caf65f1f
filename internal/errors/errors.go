// Package errors provides centralized error definitions and error handling utilities
// for mb. It defines domain-specific errors, semantic error types, error
// constructors with context wrapping, classification helpers, and the mapping
// from errors to process exit codes.
//
// # Error Types
//
// Domain-specific errors represent errors from specific subsystems:
//   - StoreError: errors from the artifact store
//   - PipelineError: errors from loading, scheduling or running a pipeline
//   - ContainerError: errors from the container runtime
//
// Semantic errors represent common error conditions:
//   - NotFoundError: resource not found
//   - AlreadyExistsError: resource already exists
//   - ValidationError: invalid input or state
//   - AmbiguousMatchError: a query matched more than one package
//   - CycleError: stage dependencies form a cycle
//
// # Usage
//
//	err := errors.NewStoreError("list packages", errors.ErrStorageIDNotFound).WithStorageID("APP")
//
//	if errors.Is(err, errors.ErrStorageIDNotFound) { ... }
//
//	var ambiguous *errors.AmbiguousMatchError
//	if errors.As(err, &ambiguous) { ... }
//
//	os.Exit(errors.ExitCode(err))
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityDebug is for errors that are useful for debugging but not critical.
	SeverityDebug Severity = iota
	// SeverityInfo is for informational errors that don't indicate a problem.
	SeverityInfo
	// SeverityWarning is for errors that might indicate a problem but aren't critical.
	SeverityWarning
	// SeverityError is for errors that indicate a real problem.
	SeverityError
	// SeverityCritical is for errors that require immediate attention.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Store-related sentinel errors
var (
	// ErrStorageIDNotFound indicates that no bucket exists for a StorageID.
	ErrStorageIDNotFound = New("storage id not found")
	// ErrPackageNotFound indicates that no package matched a hash or label query.
	ErrPackageNotFound = New("package not found")
	// ErrMultipleFound indicates that a query matched more than one package.
	ErrMultipleFound = New("multiple packages found")
	// ErrLabelExists indicates that a label is already attached to a package.
	ErrLabelExists = New("label already exists")
	// ErrInvalidPath indicates that a source path does not exist.
	ErrInvalidPath = New("invalid path")
	// ErrStoreCorrupt indicates that a package directory is not in the expected shape.
	ErrStoreCorrupt = New("store is inconsistent")
)

// Pipeline-related sentinel errors
var (
	// ErrInvalidPipeline indicates a malformed pipeline definition.
	ErrInvalidPipeline = New("invalid pipeline definition")
	// ErrDependencyCycle indicates a circular dependency between stages.
	ErrDependencyCycle = New("dependency cycle detected")
	// ErrPipelineNotFound indicates that the pipeline file does not exist.
	ErrPipelineNotFound = New("pipeline file not found")
)

// Container-related sentinel errors
var (
	// ErrRuntimeUnavailable indicates that the container runtime is not installed.
	ErrRuntimeUnavailable = New("container runtime not installed")
	// ErrRuntimeNotRunning indicates that the container runtime did not answer.
	ErrRuntimeNotRunning = New("container runtime not running")
	// ErrUnsupportedPlatform indicates a container OS the host cannot run.
	ErrUnsupportedPlatform = New("unsupported container platform")
)

// General sentinel errors
var (
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
)

// -----------------------------------------------------------------------------
// Base Error Interface
// -----------------------------------------------------------------------------

// MBError is the base interface for all mb errors.
type MBError interface {
	error

	// Unwrap returns the underlying error, if any.
	Unwrap() error

	// Is reports whether this error matches the target error.
	Is(target error) bool

	// Severity returns the severity level of this error.
	Severity() Severity

	// IsRetryable returns true if the operation may succeed on retry.
	IsRetryable() bool

	// IsUserFacing returns true if the message is safe to show to users.
	IsUserFacing() bool
}

// -----------------------------------------------------------------------------
// Base Error Implementation
// -----------------------------------------------------------------------------

type baseError struct {
	message    string
	cause      error
	severity   Severity
	retryable  bool
	userFacing bool
}

func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

func (e *baseError) Unwrap() error {
	return e.cause
}

func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

func (e *baseError) Severity() Severity {
	return e.severity
}

func (e *baseError) IsRetryable() bool {
	return e.retryable
}

func (e *baseError) IsUserFacing() bool {
	return e.userFacing
}

func newBase(message string, cause error, severity Severity) baseError {
	return baseError{
		message:    message,
		cause:      cause,
		severity:   severity,
		userFacing: true,
	}
}

// bracket renders "name [k=v, ...]" for the non-empty parts.
func bracket(name string, parts []string) string {
	if len(parts) == 0 {
		return name
	}
	return fmt.Sprintf("%s [%s]", name, strings.Join(parts, ", "))
}

// -----------------------------------------------------------------------------
// Domain-Specific Errors
// -----------------------------------------------------------------------------

// StoreError represents errors from the artifact store.
//
// Example:
//
//	err := errors.NewStoreError("list packages", errors.ErrStorageIDNotFound).WithStorageID("APP")
//	fmt.Println(err) // "store error [id=APP]: list packages: storage id not found"
type StoreError struct {
	baseError
	StorageID string
	Hash      string
	Path      string
}

// NewStoreError creates a new StoreError.
func NewStoreError(message string, cause error) *StoreError {
	return &StoreError{baseError: newBase(message, cause, SeverityError)}
}

// WithStorageID adds a StorageID to the error context.
func (e *StoreError) WithStorageID(id string) *StoreError {
	e.StorageID = id
	return e
}

// WithHash adds a package hash to the error context.
func (e *StoreError) WithHash(hash string) *StoreError {
	e.Hash = hash
	return e
}

// WithPath adds a filesystem path to the error context.
func (e *StoreError) WithPath(path string) *StoreError {
	e.Path = path
	return e
}

// Error returns the formatted error message.
func (e *StoreError) Error() string {
	var parts []string
	if e.StorageID != "" {
		parts = append(parts, "id="+e.StorageID)
	}
	if e.Hash != "" {
		parts = append(parts, "hash="+e.Hash)
	}
	if e.Path != "" {
		parts = append(parts, "path="+e.Path)
	}
	return fmt.Sprintf("%s: %s", bracket("store error", parts), e.baseError.Error())
}

// Is checks if this error matches the target.
func (e *StoreError) Is(target error) bool {
	if _, ok := target.(*StoreError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// PipelineError represents errors from loading or running a pipeline.
//
// Example:
//
//	err := errors.NewPipelineError("copy rule", errors.ErrInvalidPipeline).WithStage("build")
type PipelineError struct {
	baseError
	Stage string
	File  string
}

// NewPipelineError creates a new PipelineError.
func NewPipelineError(message string, cause error) *PipelineError {
	return &PipelineError{baseError: newBase(message, cause, SeverityError)}
}

// WithStage adds a stage name to the error context.
func (e *PipelineError) WithStage(stage string) *PipelineError {
	e.Stage = stage
	return e
}

// WithFile adds the pipeline file path to the error context.
func (e *PipelineError) WithFile(path string) *PipelineError {
	e.File = path
	return e
}

// Error returns the formatted error message.
func (e *PipelineError) Error() string {
	var parts []string
	if e.File != "" {
		parts = append(parts, "file="+e.File)
	}
	if e.Stage != "" {
		parts = append(parts, "stage="+e.Stage)
	}
	return fmt.Sprintf("%s: %s", bracket("pipeline error", parts), e.baseError.Error())
}

// Is checks if this error matches the target.
func (e *PipelineError) Is(target error) bool {
	if _, ok := target.(*PipelineError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// ContainerError represents errors from the container runtime CLI.
//
// Example:
//
//	err := errors.NewContainerError("build image", cause).WithImage("a1b2c3").WithOutput(out)
type ContainerError struct {
	baseError
	Runtime     string
	Image       string
	ContainerID string
	Output      string // Captured runtime command output
}

// NewContainerError creates a new ContainerError.
func NewContainerError(message string, cause error) *ContainerError {
	return &ContainerError{baseError: newBase(message, cause, SeverityError)}
}

// WithRuntime adds the runtime binary name to the error context.
func (e *ContainerError) WithRuntime(runtime string) *ContainerError {
	e.Runtime = runtime
	return e
}

// WithImage adds an image tag to the error context.
func (e *ContainerError) WithImage(image string) *ContainerError {
	e.Image = image
	return e
}

// WithContainerID adds a container ID to the error context.
func (e *ContainerError) WithContainerID(id string) *ContainerError {
	e.ContainerID = id
	return e
}

// WithOutput adds runtime command output to the error context.
func (e *ContainerError) WithOutput(output string) *ContainerError {
	e.Output = strings.TrimSpace(output)
	return e
}

// WithRetryable sets whether the error is retryable.
func (e *ContainerError) WithRetryable(r bool) *ContainerError {
	e.retryable = r
	return e
}

// Error returns the formatted error message.
func (e *ContainerError) Error() string {
	var parts []string
	if e.Runtime != "" {
		parts = append(parts, "runtime="+e.Runtime)
	}
	if e.Image != "" {
		parts = append(parts, "image="+e.Image)
	}
	if e.ContainerID != "" {
		parts = append(parts, "container="+e.ContainerID)
	}

	msg := e.baseError.Error()
	if e.Output != "" {
		msg = fmt.Sprintf("%s\nruntime output: %s", msg, e.Output)
	}
	return fmt.Sprintf("%s: %s", bracket("container error", parts), msg)
}

// Is checks if this error matches the target.
func (e *ContainerError) Is(target error) bool {
	if _, ok := target.(*ContainerError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Semantic Errors
// -----------------------------------------------------------------------------

// NotFoundError represents a resource that could not be found.
//
// Example:
//
//	err := errors.NewNotFoundError("package", "abc999")
//	fmt.Println(err) // "package 'abc999' not found"
type NotFoundError struct {
	baseError
	ResourceType string
	ResourceID   string
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(resourceType, resourceID string) *NotFoundError {
	return &NotFoundError{
		baseError:    newBase(fmt.Sprintf("%s '%s' not found", resourceType, resourceID), nil, SeverityWarning),
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
}

// WithCause adds a cause to the error.
func (e *NotFoundError) WithCause(cause error) *NotFoundError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *NotFoundError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s '%s' not found: %v", e.ResourceType, e.ResourceID, e.cause)
	}
	return fmt.Sprintf("%s '%s' not found", e.ResourceType, e.ResourceID)
}

// Is checks if this error matches the target.
func (e *NotFoundError) Is(target error) bool {
	if _, ok := target.(*NotFoundError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// AlreadyExistsError represents a resource that already exists.
//
// Example:
//
//	err := errors.NewAlreadyExistsError("label", "release")
//	fmt.Println(err) // "label 'release' already exists"
type AlreadyExistsError struct {
	baseError
	ResourceType string
	ResourceID   string
}

// NewAlreadyExistsError creates a new AlreadyExistsError.
func NewAlreadyExistsError(resourceType, resourceID string) *AlreadyExistsError {
	return &AlreadyExistsError{
		baseError:    newBase(fmt.Sprintf("%s '%s' already exists", resourceType, resourceID), nil, SeverityWarning),
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
}

// WithCause adds a cause to the error.
func (e *AlreadyExistsError) WithCause(cause error) *AlreadyExistsError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *AlreadyExistsError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s '%s' already exists: %v", e.ResourceType, e.ResourceID, e.cause)
	}
	return fmt.Sprintf("%s '%s' already exists", e.ResourceType, e.ResourceID)
}

// Is checks if this error matches the target.
func (e *AlreadyExistsError) Is(target error) bool {
	if _, ok := target.(*AlreadyExistsError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// ValidationError represents invalid input or state.
//
// Example:
//
//	err := errors.NewValidationError("no package carries every label").WithField("APP").WithValue("rc,linux")
type ValidationError struct {
	baseError
	Field string
	Value any
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{baseError: newBase(message, nil, SeverityWarning)}
}

// WithField adds a field name to the error context.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue adds the invalid value to the error context.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

// WithCause adds a cause to the error.
func (e *ValidationError) WithCause(cause error) *ValidationError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	var parts []string
	if e.Field != "" {
		parts = append(parts, "field="+e.Field)
	}
	if e.Value != nil {
		parts = append(parts, fmt.Sprintf("value=%v", e.Value))
	}
	return fmt.Sprintf("%s: %s", bracket("validation error", parts), e.baseError.Error())
}

// Is checks if this error matches the target.
func (e *ValidationError) Is(target error) bool {
	if _, ok := target.(*ValidationError); ok {
		return true
	}
	if errors.Is(target, ErrInvalidInput) {
		return true
	}
	return e.baseError.Is(target)
}

// AmbiguousMatchError reports a query that matched several packages. Every
// candidate is carried so callers can print them.
//
// Example:
//
//	err := errors.NewAmbiguousMatchError("APP", "abc", []string{"abc123", "abc999"})
type AmbiguousMatchError struct {
	baseError
	StorageID string
	Query     string
	Matches   []string
}

// NewAmbiguousMatchError creates a new AmbiguousMatchError.
func NewAmbiguousMatchError(storageID, query string, matches []string) *AmbiguousMatchError {
	return &AmbiguousMatchError{
		baseError: newBase("multiple packages found", nil, SeverityWarning),
		StorageID: storageID,
		Query:     query,
		Matches:   append([]string(nil), matches...),
	}
}

// Error returns the formatted error message.
func (e *AmbiguousMatchError) Error() string {
	return fmt.Sprintf("%d packages in %s match %q: %s",
		len(e.Matches), e.StorageID, e.Query, strings.Join(e.Matches, ", "))
}

// Is checks if this error matches the target.
func (e *AmbiguousMatchError) Is(target error) bool {
	if _, ok := target.(*AmbiguousMatchError); ok {
		return true
	}
	return target == ErrMultipleFound
}

// CycleError reports stages whose dependencies can never be satisfied.
type CycleError struct {
	baseError
	Stages []string
}

// NewCycleError creates a new CycleError naming the stages left unscheduled.
func NewCycleError(stages []string) *CycleError {
	return &CycleError{
		baseError: newBase("dependency cycle detected", nil, SeverityError),
		Stages:    append([]string(nil), stages...),
	}
}

// Error returns the formatted error message.
func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle detected between stages: %s", strings.Join(e.Stages, ", "))
}

// Is checks if this error matches the target.
func (e *CycleError) Is(target error) bool {
	if _, ok := target.(*CycleError); ok {
		return true
	}
	return target == ErrDependencyCycle
}

// -----------------------------------------------------------------------------
// Error Classification Helpers
// -----------------------------------------------------------------------------

// IsRetryable returns true if the error represents a transient condition
// that may succeed on retry.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var mbErr MBError
	return As(err, &mbErr) && mbErr.IsRetryable()
}

// IsUserFacing returns true if the error message is safe to display to end
// users without a stack trace.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}

	var mbErr MBError
	return As(err, &mbErr) && mbErr.IsUserFacing()
}

// GetSeverity returns the severity level of the error.
// Returns SeverityError for errors that don't implement MBError.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityDebug
	}

	var mbErr MBError
	if As(err, &mbErr) {
		return mbErr.Severity()
	}
	return SeverityError
}

// -----------------------------------------------------------------------------
// Exit Codes
// -----------------------------------------------------------------------------

// Process exit codes reported by the mb command.
const (
	ExitOK                 = 0
	ExitStorageIDNotFound  = 1
	ExitMultipleFound      = 2
	ExitInternal           = 3
	ExitInvalidValue       = 4
	ExitRuntimeUnavailable = 5
	ExitRuntimeNotRunning  = 6
)

// ExitCode maps an error to the process exit status.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	switch {
	case Is(err, ErrRuntimeUnavailable):
		return ExitRuntimeUnavailable
	case Is(err, ErrRuntimeNotRunning):
		return ExitRuntimeNotRunning
	case Is(err, ErrStorageIDNotFound):
		return ExitStorageIDNotFound
	case Is(err, ErrMultipleFound):
		return ExitMultipleFound
	}

	var notFound *NotFoundError
	var exists *AlreadyExistsError
	var validation *ValidationError
	if As(err, &notFound) || As(err, &exists) || As(err, &validation) ||
		Is(err, ErrPackageNotFound) || Is(err, ErrLabelExists) ||
		Is(err, ErrInvalidPath) || Is(err, ErrInvalidPipeline) ||
		Is(err, ErrPipelineNotFound) || Is(err, ErrDependencyCycle) ||
		Is(err, ErrUnsupportedPlatform) || Is(err, ErrInvalidInput) {
		return ExitInvalidValue
	}

	return ExitInternal
}

// -----------------------------------------------------------------------------
// Convenience Constructors
// -----------------------------------------------------------------------------

// Wrap wraps an error with additional context message.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
