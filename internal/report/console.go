// Package report renders test results for people and for CI: a streaming
// console reporter and a JUnit XML writer.
package report

import (
	"fmt"
	"strings"
	"sync"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/feedhandlers/fhtest/internal/errors"
	"github.com/feedhandlers/fhtest/internal/output"
	"github.com/feedhandlers/fhtest/internal/protocol"
	"github.com/feedhandlers/fhtest/internal/results"
)

const separator = "==========================================================================="

// Console prints progress glyphs as results arrive and a numbered, colored
// summary at the end of a run.
type Console struct {
	w  *output.Writer
	mu sync.Mutex
}

// NewConsole creates a console reporter on top of w.
func NewConsole(w *output.Writer) *Console {
	return &Console{w: w}
}

// Start announces the directory under test.
func (c *Console) Start(dir string) {
	c.w.Print("Running tests in '%s'...\n\n", dir)
}

// Glyph prints the progress character for one result.
func (c *Console) Glyph(outcome protocol.Outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.w.Print("%s", outcome.Glyph())
}

// Done ends the glyph line.
func (c *Console) Done() {
	c.w.Print(" done!\n")
}

// Summary prints every failure and error message, numbered from 1, then the
// totals line in the color of the run's worst outcome.
func (c *Console) Summary(s results.RunSummary) {
	c.w.Print("%s", RenderSummary(s, c.w.Color()))
	for _, f := range s.SpawnErrors {
		c.w.Warning("could not run %s: %v", f.Binary, f.Err)
	}
}

// RenderSummary returns the text printed by Summary. Rendering the same
// summary twice yields identical bytes.
func RenderSummary(s results.RunSummary, color bool) string {
	var b strings.Builder
	for i, e := range s.Entries {
		fmt.Fprintf(&b, "\n%d) %s\n", i+1, FormatEntry(e))
	}

	colorCode := output.Green
	switch s.ExitCode() {
	case errors.ExitErrors:
		colorCode = output.Red
	case errors.ExitFailures:
		colorCode = output.Yellow
	}
	if color {
		b.WriteString(colorCode)
	}
	b.WriteString("\n")
	b.WriteString(separator + "\n")
	b.WriteString(SummaryLine(s.Totals) + "\n")
	if color {
		b.WriteString(output.Reset)
	}
	b.WriteString("\n")
	return b.String()
}

// FormatEntry renders one failure or error as its heading line followed by
// the message body.
func FormatEntry(e results.Entry) string {
	heading := fmt.Sprintf("%s in %s (%s:%d)", cases.Title(language.English).String(e.Outcome.String()), e.Test, e.File, e.Line)
	if e.Message == "" {
		return heading
	}
	return heading + "\n" + e.Message
}

// SummaryLine renders the four run counters.
func SummaryLine(t protocol.Summary) string {
	return fmt.Sprintf("%d tests, %d assertions, %d failures, %d errors", t.Tests, t.Assertions, t.Failures, t.Errors)
}
