// Package results accumulates protocol events from test binaries into run totals
// and the list of failure and error messages.
package results

import (
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/feedhandlers/fhtest/internal/protocol"
)

// GlyphSink receives one progress glyph per decoded test result.
type GlyphSink interface {
	Glyph(outcome protocol.Outcome)
}

// Entry is a failed or errored test together with its message body.
type Entry struct {
	Binary  string
	Test    string
	File    string
	Line    int
	Outcome protocol.Outcome
	Message string
}

// BinaryStats describes the contribution of one test binary.
type BinaryStats struct {
	Binary         string
	Banner         string
	Summary        protocol.Summary
	SawSummary     bool
	Entries        int
	ProtocolErrors int
	Duration       time.Duration
}

// SpawnFailure records a binary that could not be started.
type SpawnFailure struct {
	Binary string
	Err    error
}

type pendingRecord struct {
	result  protocol.Result
	message []string
}

// Aggregator consumes events in arrival order. It is not safe for concurrent use;
// binaries run in parallel must be replayed through it one at a time.
type Aggregator struct {
	sink   GlyphSink
	logger log.Logger

	totals      protocol.Summary
	entries     []Entry
	binaries    []BinaryStats
	spawnErrors []SpawnFailure

	current *BinaryStats
	started time.Time
	pending *pendingRecord
}

// NewAggregator creates an aggregator that reports glyphs to sink.
// A nil sink discards glyphs.
func NewAggregator(sink GlyphSink, logger log.Logger) *Aggregator {
	if logger == nil {
		logger = log.NewLogger(log.DiscardHandler())
	}
	return &Aggregator{sink: sink, logger: logger}
}

// Begin starts accounting for a new binary. Any unfinished binary is finished first.
func (a *Aggregator) Begin(binary string) {
	if a.current != nil {
		a.Finish()
	}
	a.current = &BinaryStats{Binary: binary}
	a.started = time.Now()
	a.pending = nil
}

// Process applies one event and the parse error that came with it, if any.
func (a *Aggregator) Process(ev protocol.Event, parseErr error) {
	if a.current == nil {
		a.Begin("")
	}
	if parseErr != nil {
		a.current.ProtocolErrors++
		a.logger.Warn("Malformed protocol line", "binary", a.current.Binary, "line", ev.LineNo, "err", parseErr)
	}

	switch ev.Kind {
	case protocol.EventBanner:
		if a.current.Banner == "" {
			a.current.Banner = ev.Text
		}

	case protocol.EventSummary:
		a.current.Summary.Add(ev.Summary)
		a.current.SawSummary = true
		a.totals.Add(ev.Summary)

	case protocol.EventResult:
		a.closePending()
		if ev.Result.Outcome == protocol.OutcomeInvalid {
			return
		}
		if a.sink != nil {
			a.sink.Glyph(ev.Result.Outcome)
		}
		if ev.Result.Outcome != protocol.OutcomeSuccess {
			a.pending = &pendingRecord{result: ev.Result}
		}

	case protocol.EventMessageLine:
		if a.pending != nil {
			a.pending.message = append(a.pending.message, ev.Text)
		}

	case protocol.EventRecordEnd:
		a.closePending()
	}
}

func (a *Aggregator) closePending() {
	if a.pending == nil {
		return
	}
	r := a.pending.result
	a.entries = append(a.entries, Entry{
		Binary:  a.current.Binary,
		Test:    r.Test,
		File:    r.File,
		Line:    r.Line,
		Outcome: r.Outcome,
		Message: strings.Join(a.pending.message, "\n"),
	})
	a.current.Entries++
	a.pending = nil
}

// Finish closes the current binary and returns its statistics. A record left
// open by a binary that died mid-message is kept with what was received.
func (a *Aggregator) Finish() BinaryStats {
	if a.current == nil {
		return BinaryStats{}
	}
	if a.pending != nil {
		a.logger.Warn("Unterminated record", "binary", a.current.Binary, "test", a.pending.result.Test)
		a.closePending()
	}
	a.current.Duration = time.Since(a.started)
	stats := *a.current
	a.binaries = append(a.binaries, stats)
	a.current = nil
	return stats
}

// SetDuration overrides the measured duration of the most recently finished
// binary. Replayed output is timed by the process that produced it.
func (a *Aggregator) SetDuration(d time.Duration) {
	if n := len(a.binaries); n > 0 {
		a.binaries[n-1].Duration = d
	}
}

// AddSpawnError records a binary that could not be started. Spawn errors are
// reported separately and never change the counters.
func (a *Aggregator) AddSpawnError(binary string, err error) {
	a.spawnErrors = append(a.spawnErrors, SpawnFailure{Binary: binary, Err: err})
}

// Summary returns a snapshot of everything accumulated so far.
func (a *Aggregator) Summary() RunSummary {
	return RunSummary{
		Totals:      a.totals,
		Entries:     append([]Entry(nil), a.entries...),
		Binaries:    append([]BinaryStats(nil), a.binaries...),
		SpawnErrors: append([]SpawnFailure(nil), a.spawnErrors...),
	}
}
