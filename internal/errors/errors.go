// Package errors provides structured error types and exit codes for fhtest.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// Exit codes returned by the harness.
const (
	ExitSuccess          = 0 // All tests passed
	ExitFailures         = 1 // At least one failure, no errors
	ExitErrors           = 2 // At least one error (highest severity), or a runtime error
	ExitConfigError      = 3 // Configuration error (invalid config file, bad flags)
	ExitEnvironmentError = 4 // Environment error (compilation failed, make missing)
)

// ErrorKind represents the type of error.
type ErrorKind int

const (
	KindRuntime ErrorKind = iota
	KindConfig
	KindEnvironment
	KindSpawn
	KindTimeout
	KindExited
	KindProtocol
	KindSignal
	KindPrecondition
	KindAssertion
)

var kindNames = map[ErrorKind]string{
	KindRuntime:      "RuntimeError",
	KindConfig:       "ConfigError",
	KindEnvironment:  "EnvironmentError",
	KindSpawn:        "SpawnError",
	KindTimeout:      "TimeoutError",
	KindExited:       "ExitedError",
	KindProtocol:     "ProtocolError",
	KindSignal:       "SignalError",
	KindPrecondition: "PreconditionError",
	KindAssertion:    "AssertionError",
}

// String returns the name used for the kind in reports.
func (k ErrorKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// HarnessError is the base error type for fhtest.
type HarnessError struct {
	Kind    ErrorKind
	Message string
	Subject string // Binary path or scenario name if applicable
	Op      string // Operation name if applicable
	Cause   error  // Underlying error

	// Set for KindTimeout and KindExited.
	Timeout time.Duration
	Pattern string
}

func (e *HarnessError) Error() string {
	if e.Subject != "" && e.Op != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Subject, e.Op, e.Message)
	}
	if e.Subject != "" {
		return fmt.Sprintf("[%s] %s", e.Subject, e.Message)
	}
	return e.Message
}

func (e *HarnessError) Unwrap() error {
	return e.Cause
}

// ExitCode returns the appropriate exit code for this error.
func (e *HarnessError) ExitCode() int {
	switch e.Kind {
	case KindConfig:
		return ExitConfigError
	case KindEnvironment:
		return ExitEnvironmentError
	case KindAssertion:
		return ExitFailures
	default:
		return ExitErrors
	}
}

// New creates a new runtime error.
func New(message string) *HarnessError {
	return &HarnessError{
		Kind:    KindRuntime,
		Message: message,
	}
}

// Config creates a new configuration error.
func Config(message string) *HarnessError {
	return &HarnessError{
		Kind:    KindConfig,
		Message: message,
	}
}

// Configf creates a new configuration error with formatting.
func Configf(format string, args ...interface{}) *HarnessError {
	return Config(fmt.Sprintf(format, args...))
}

// Environment creates a new environment error.
func Environment(message string) *HarnessError {
	return &HarnessError{
		Kind:    KindEnvironment,
		Message: message,
	}
}

// Environmentf creates a new environment error with formatting.
func Environmentf(format string, args ...interface{}) *HarnessError {
	return Environment(fmt.Sprintf(format, args...))
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) *HarnessError {
	return &HarnessError{
		Kind:    KindRuntime,
		Message: message,
		Cause:   err,
	}
}

// Spawn reports that an executable could not be found or started.
func Spawn(path string, cause error) *HarnessError {
	return &HarnessError{
		Kind:    KindSpawn,
		Subject: path,
		Op:      "spawn",
		Message: fmt.Sprintf("cannot start: %v", cause),
		Cause:   cause,
	}
}

// Timeout reports a deadline exceeded while waiting for output or exit.
// An empty pattern means the wait was for process exit.
func Timeout(subject string, bound time.Duration, pattern string) *HarnessError {
	msg := fmt.Sprintf("timed out while waiting %s for process exit", formatBound(bound))
	if pattern != "" {
		msg = fmt.Sprintf("timed out while waiting %s for string '%s'", formatBound(bound), pattern)
	}
	return &HarnessError{
		Kind:    KindTimeout,
		Subject: subject,
		Message: msg,
		Timeout: bound,
		Pattern: pattern,
	}
}

// Exited reports that a process closed its output before a matching line was seen.
func Exited(subject, pattern string) *HarnessError {
	return &HarnessError{
		Kind:    KindExited,
		Subject: subject,
		Message: fmt.Sprintf("process exited before string '%s' was found", pattern),
		Pattern: pattern,
	}
}

// Protocol reports a malformed protocol line.
func Protocol(lineNo int, line, reason string) *HarnessError {
	return &HarnessError{
		Kind:    KindProtocol,
		Message: fmt.Sprintf("line %d %q: %s", lineNo, line, reason),
	}
}

// Signal reports that a signal could not be delivered.
func Signal(subject, signal string, cause error) *HarnessError {
	return &HarnessError{
		Kind:    KindSignal,
		Subject: subject,
		Op:      "signal",
		Message: fmt.Sprintf("cannot deliver %s: %v", signal, cause),
		Cause:   cause,
	}
}

// Precondition reports that a required piece of prior state is missing.
func Precondition(what string) *HarnessError {
	return &HarnessError{
		Kind:    KindPrecondition,
		Message: fmt.Sprintf("precondition not met: %s", what),
	}
}

// Assertionf reports a failed expectation.
func Assertionf(format string, args ...interface{}) *HarnessError {
	return &HarnessError{
		Kind:    KindAssertion,
		Message: fmt.Sprintf(format, args...),
	}
}

// KindOf returns the kind of the first HarnessError in err's chain.
// Errors that are not HarnessErrors are runtime errors.
func KindOf(err error) ErrorKind {
	var he *HarnessError
	if errors.As(err, &he) {
		return he.Kind
	}
	return KindRuntime
}

// Is reports whether err's chain contains a HarnessError of the given kind.
func Is(err error, kind ErrorKind) bool {
	var he *HarnessError
	return errors.As(err, &he) && he.Kind == kind
}

// GetExitCode returns the exit code for an error.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var he *HarnessError
	if errors.As(err, &he) {
		return he.ExitCode()
	}
	return ExitErrors
}

func formatBound(d time.Duration) string {
	if d%time.Second == 0 {
		return fmt.Sprintf("%d seconds", int(d/time.Second))
	}
	return d.String()
}
