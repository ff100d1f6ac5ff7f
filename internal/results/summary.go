package results

import (
	"github.com/feedhandlers/fhtest/internal/errors"
	"github.com/feedhandlers/fhtest/internal/protocol"
)

// RunSummary is the immutable result of one harness run.
type RunSummary struct {
	Totals      protocol.Summary
	Entries     []Entry
	Binaries    []BinaryStats
	SpawnErrors []SpawnFailure
}

// ProtocolErrors returns the number of malformed lines seen across all binaries.
func (s RunSummary) ProtocolErrors() int {
	n := 0
	for _, b := range s.Binaries {
		n += b.ProtocolErrors
	}
	return n
}

// Failures returns the entries with a FAILURE outcome.
func (s RunSummary) Failures() []Entry {
	return s.filter(protocol.OutcomeFailure)
}

// Errors returns the entries with an error outcome.
func (s RunSummary) Errors() []Entry {
	return s.filter(protocol.OutcomeError)
}

func (s RunSummary) filter(outcome protocol.Outcome) []Entry {
	var out []Entry
	for _, e := range s.Entries {
		if e.Outcome == outcome {
			out = append(out, e)
		}
	}
	return out
}

// ExitCode maps the run to a process exit code. Errors outrank failures.
// A record counts even when its binary died before printing a summary.
func (s RunSummary) ExitCode() int {
	errs := max(s.Totals.Errors, len(s.Errors()))
	fails := max(s.Totals.Failures, len(s.Failures()))
	switch {
	case errs > 0:
		return errors.ExitErrors
	case fails > 0:
		return errors.ExitFailures
	default:
		return errors.ExitSuccess
	}
}
