// Package protocol decodes the compact line protocol emitted by feed handler
// unit test binaries run in check mode.
//
// A binary prints a banner line (its name), then one record per test:
//
//	fh_cfg_test_load:fh_cfg_test.c:42:FAILURE
//	expected 1 got 2
//	.
//
// and finally a summary line:
//
//	:tests:assertions:failures:errors
package protocol

import "fmt"

// EventKind identifies the class of a decoded line.
type EventKind int

const (
	// EventBanner is a line outside any record, normally the binary name.
	EventBanner EventKind = iota
	EventSummary
	EventResult
	EventMessageLine
	EventRecordEnd
)

func (k EventKind) String() string {
	switch k {
	case EventBanner:
		return "banner"
	case EventSummary:
		return "summary"
	case EventResult:
		return "result"
	case EventMessageLine:
		return "message"
	case EventRecordEnd:
		return "end"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Outcome is the result keyword of a record header.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeFailure
	OutcomeError
	// OutcomeInvalid marks a header that could not be decoded.
	// Records opened by an invalid header contribute nothing.
	OutcomeInvalid
)

// Glyph returns the progress character for the outcome.
func (o Outcome) Glyph() string {
	switch o {
	case OutcomeSuccess:
		return "."
	case OutcomeFailure:
		return "F"
	case OutcomeError:
		return "E"
	default:
		return ""
	}
}

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeFailure:
		return "failure"
	case OutcomeError:
		return "error"
	default:
		return "invalid"
	}
}

// ParseOutcome maps a header keyword to an outcome. Anything that is not
// SUCCESS or FAILURE is an error.
func ParseOutcome(keyword string) Outcome {
	switch keyword {
	case "SUCCESS":
		return OutcomeSuccess
	case "FAILURE":
		return OutcomeFailure
	default:
		return OutcomeError
	}
}

// Summary holds the counters of one summary line.
type Summary struct {
	Tests      int
	Assertions int
	Failures   int
	Errors     int
}

// Add adds another summary's counters to this one.
func (s *Summary) Add(other Summary) {
	s.Tests += other.Tests
	s.Assertions += other.Assertions
	s.Failures += other.Failures
	s.Errors += other.Errors
}

// Result is a decoded record header.
type Result struct {
	Test    string
	File    string
	Line    int
	Keyword string
	Outcome Outcome
}

// Event is one decoded protocol line. Only the fields matching Kind are set.
type Event struct {
	Kind    EventKind
	LineNo  int // 1-based line number within the binary's output
	Summary Summary
	Result  Result
	Text    string // banner and message line text
}
