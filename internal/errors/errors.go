// Package errors provides structured error types and exit codes for runtests.
package errors

import (
	"fmt"
)

// Exit codes surfaced by the CLI.
const (
	ExitSuccess          = 0 // Success
	ExitRuntimeError     = 1 // Runtime error (test run failed, process error, etc.)
	ExitConfigError      = 2 // Configuration error (invalid config, missing precondition, etc.)
	ExitEnvironmentError = 3 // Environment error (build tool unavailable, etc.)
)

// ErrorKind represents the type of error.
type ErrorKind int

const (
	KindRuntime ErrorKind = iota
	KindConfig
	KindNotFound
	KindEnvironment
)

// RunError is the base error type for runtests.
type RunError struct {
	Kind     ErrorKind
	Message  string
	Assembly string // Assembly display name if applicable
	Cause    error  // Underlying error
}

func (e *RunError) Error() string {
	if e.Assembly != "" {
		return fmt.Sprintf("[%s] %s", e.Assembly, e.Message)
	}
	return e.Message
}

func (e *RunError) Unwrap() error {
	return e.Cause
}

// ExitCode returns the appropriate exit code for this error.
func (e *RunError) ExitCode() int {
	switch e.Kind {
	case KindConfig:
		return ExitConfigError
	case KindEnvironment:
		return ExitEnvironmentError
	default:
		return ExitRuntimeError
	}
}

// New creates a new runtime error.
func New(message string) *RunError {
	return &RunError{
		Kind:    KindRuntime,
		Message: message,
	}
}

// Newf creates a new runtime error with formatting.
func Newf(format string, args ...interface{}) *RunError {
	return New(fmt.Sprintf(format, args...))
}

// Config creates a new configuration error.
func Config(message string) *RunError {
	return &RunError{
		Kind:    KindConfig,
		Message: message,
	}
}

// Configf creates a new configuration error with formatting.
func Configf(format string, args ...interface{}) *RunError {
	return Config(fmt.Sprintf(format, args...))
}

// Environment creates a new environment error.
func Environment(message string) *RunError {
	return &RunError{
		Kind:    KindEnvironment,
		Message: message,
	}
}

// Environmentf creates a new environment error with formatting.
func Environmentf(format string, args ...interface{}) *RunError {
	return Environment(fmt.Sprintf(format, args...))
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) *RunError {
	return &RunError{
		Kind:    KindRuntime,
		Message: message,
		Cause:   err,
	}
}

// AssemblyError creates an error for a specific assembly.
func AssemblyError(assembly, message string) *RunError {
	return &RunError{
		Kind:     KindRuntime,
		Assembly: assembly,
		Message:  message,
	}
}

// NotFound creates a not found error.
func NotFound(what, name string) *RunError {
	return &RunError{
		Kind:    KindNotFound,
		Message: fmt.Sprintf("%s not found: %s", what, name),
	}
}

// GetExitCode returns the exit code for an error.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	if re, ok := err.(*RunError); ok {
		return re.ExitCode()
	}
	return ExitRuntimeError
}
