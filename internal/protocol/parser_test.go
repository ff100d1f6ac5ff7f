package protocol

import (
	"strings"
	"testing"

	fherrors "github.com/feedhandlers/fhtest/internal/errors"
)

func collect(t *testing.T, input string) ([]Event, []error) {
	t.Helper()
	var events []Event
	var errs []error
	err := Decode(strings.NewReader(input), func(ev Event, err error) {
		events = append(events, ev)
		if err != nil {
			errs = append(errs, err)
		}
	})
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	return events, errs
}

func kinds(events []Event) []EventKind {
	out := make([]EventKind, len(events))
	for i, ev := range events {
		out[i] = ev.Kind
	}
	return out
}

func TestParser_Kinds(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		input string
		want  []EventKind
	}{
		{
			name:  "banner and summary only",
			input: "fh_cfg_test\n:1:1:0:0\n",
			want:  []EventKind{EventBanner, EventSummary},
		},
		{
			name:  "single failure record",
			input: "fh_cfg_test\nload:fh_cfg_test.c:42:FAILURE\nexpected 1 got 2\n.\n:1:1:1:0\n",
			want:  []EventKind{EventBanner, EventResult, EventMessageLine, EventRecordEnd, EventSummary},
		},
		{
			name:  "record without message",
			input: "t\nok:t.c:1:SUCCESS\n.\n:1:1:0:0\n",
			want:  []EventKind{EventBanner, EventResult, EventRecordEnd, EventSummary},
		},
		{
			name:  "consecutive records",
			input: "t\na:t.c:1:SUCCESS\n.\nb:t.c:2:FAILURE\nline one\nline two\n.\n:2:3:1:0\n",
			want: []EventKind{
				EventBanner,
				EventResult, EventRecordEnd,
				EventResult, EventMessageLine, EventMessageLine, EventRecordEnd,
				EventSummary,
			},
		},
		{
			name:  "summary resets to banner position",
			input: ":0:0:0:0\nnext_binary\nx:x.c:1:SUCCESS\n.\n",
			want:  []EventKind{EventSummary, EventBanner, EventResult, EventRecordEnd},
		},
		{
			name:  "empty input",
			input: "",
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			events, errs := collect(t, tt.input)
			if len(errs) != 0 {
				t.Fatalf("unexpected errors: %v", errs)
			}
			got := kinds(events)
			if len(got) != len(tt.want) {
				t.Fatalf("kinds = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("event %d kind = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestParser_Result(t *testing.T) {
	t.Parallel()
	tests := []struct {
		header  string
		outcome Outcome
		glyph   string
	}{
		{"a:a.c:10:SUCCESS", OutcomeSuccess, "."},
		{"a:a.c:10:FAILURE", OutcomeFailure, "F"},
		{"a:a.c:10:ERROR", OutcomeError, "E"},
		{"a:a.c:10:", OutcomeError, "E"},
		{"a:a.c:10:segfault", OutcomeError, "E"},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			t.Parallel()
			p := NewParser()
			if _, err := p.Next("banner"); err != nil {
				t.Fatalf("banner error = %v", err)
			}
			ev, err := p.Next(tt.header)
			if err != nil {
				t.Fatalf("Next() error = %v", err)
			}
			if ev.Kind != EventResult {
				t.Fatalf("Kind = %v, want result", ev.Kind)
			}
			r := ev.Result
			if r.Test != "a" || r.File != "a.c" || r.Line != 10 {
				t.Errorf("Result = %+v", r)
			}
			if r.Outcome != tt.outcome {
				t.Errorf("Outcome = %v, want %v", r.Outcome, tt.outcome)
			}
			if r.Outcome.Glyph() != tt.glyph {
				t.Errorf("Glyph() = %q, want %q", r.Outcome.Glyph(), tt.glyph)
			}
		})
	}
}

func TestParser_MessageVerbatim(t *testing.T) {
	t.Parallel()
	input := "t\nx:t.c:3:FAILURE\n  indented: with colons  \n\n.\n"
	events, errs := collect(t, input)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if events[2].Text != "  indented: with colons  " {
		t.Errorf("message = %q", events[2].Text)
	}
	if events[3].Kind != EventMessageLine || events[3].Text != "" {
		t.Errorf("empty message line = %+v", events[3])
	}
}

func TestParser_CRLF(t *testing.T) {
	t.Parallel()
	events, errs := collect(t, "t\r\nx:t.c:3:SUCCESS\r\n.\r\n:1:2:0:0\r\n")
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if events[2].Kind != EventRecordEnd {
		t.Errorf("'.\\r' not recognised as record end: %v", events[2].Kind)
	}
	if events[3].Summary != (Summary{Tests: 1, Assertions: 2}) {
		t.Errorf("Summary = %+v", events[3].Summary)
	}
}

func TestParser_Summary(t *testing.T) {
	t.Parallel()
	tests := []struct {
		line    string
		want    Summary
		wantErr bool
	}{
		{":3:7:1:1", Summary{3, 7, 1, 1}, false},
		{":0:0:0:0", Summary{}, false},
		{":3:x:1:1", Summary{Tests: 3, Failures: 1, Errors: 1}, true},
		{":3:7:1", Summary{3, 7, 1, 0}, true},
		{":3:7:1:1:9", Summary{3, 7, 1, 1}, true},
		{":-1:2:0:0", Summary{Assertions: 2}, true},
		{":", Summary{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			t.Parallel()
			ev, err := NewParser().Next(tt.line)
			if ev.Kind != EventSummary {
				t.Fatalf("Kind = %v, want summary", ev.Kind)
			}
			if ev.Summary != tt.want {
				t.Errorf("Summary = %+v, want %+v", ev.Summary, tt.want)
			}
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !fherrors.Is(err, fherrors.KindProtocol) {
				t.Errorf("error kind = %v, want ProtocolError", fherrors.KindOf(err))
			}
		})
	}
}

func TestParser_MalformedHeader(t *testing.T) {
	t.Parallel()
	tests := []string{
		"no colons at all",
		"a:b:c",
		"a:a.c:ten:FAILURE",
		"a:a.c:1:FAILURE:extra",
	}

	for _, header := range tests {
		t.Run(header, func(t *testing.T) {
			t.Parallel()
			p := NewParser()
			p.Next("banner")
			ev, err := p.Next(header)
			if err == nil {
				t.Fatal("expected a protocol error")
			}
			if !fherrors.Is(err, fherrors.KindProtocol) {
				t.Errorf("error kind = %v, want ProtocolError", fherrors.KindOf(err))
			}
			if ev.Kind != EventResult || ev.Result.Outcome != OutcomeInvalid {
				t.Errorf("event = %+v, want invalid result", ev)
			}
			if !strings.Contains(err.Error(), "line 2") {
				t.Errorf("error %q does not name the line number", err)
			}

			// The parser stays in step: the next '.' still closes the record.
			end, _ := p.Next(".")
			if end.Kind != EventRecordEnd {
				t.Errorf("after malformed header, '.' = %v", end.Kind)
			}
		})
	}
}

func TestSummary_Add(t *testing.T) {
	t.Parallel()
	total := Summary{}
	total.Add(Summary{1, 1, 0, 0})
	total.Add(Summary{1, 1, 1, 0})
	if total != (Summary{2, 2, 1, 0}) {
		t.Errorf("total = %+v", total)
	}
}

func TestDecode_LongLine(t *testing.T) {
	t.Parallel()
	long := strings.Repeat("x", 200*1024)
	events, errs := collect(t, "t\na:a.c:1:FAILURE\n"+long+"\n.\n")
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(events[2].Text) != len(long) {
		t.Errorf("long message truncated to %d bytes", len(events[2].Text))
	}
}
