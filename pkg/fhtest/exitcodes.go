// Package fhtest provides public constants for tools that drive the fhtest CLI.
package fhtest

// Exit codes returned by the fhtest CLI.
const (
	// ExitSuccess indicates that every test and scenario passed.
	ExitSuccess = 0

	// ExitFailures indicates at least one failure and no errors.
	ExitFailures = 1

	// ExitErrors indicates at least one error, or the run was interrupted.
	ExitErrors = 2

	// ExitConfigError indicates invalid configuration, flags or feature files.
	ExitConfigError = 3

	// ExitEnvError indicates that compilation failed or the environment is unusable.
	ExitEnvError = 4
)
