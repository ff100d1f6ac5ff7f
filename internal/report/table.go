package report

import (
	"fmt"
	"strconv"
	"time"

	"github.com/feedhandlers/fhtest/internal/output"
	"github.com/feedhandlers/fhtest/internal/results"
)

// BinaryTable prints the per-binary breakdown of a run. name maps a binary
// path to the label shown.
func BinaryTable(w *output.Writer, binaries []results.BinaryStats, name func(string) string) {
	if name == nil {
		name = func(s string) string { return s }
	}
	rows := make([][]string, 0, len(binaries))
	for _, b := range binaries {
		rows = append(rows, []string{
			name(b.Binary),
			strconv.Itoa(b.Summary.Tests),
			strconv.Itoa(b.Summary.Assertions),
			strconv.Itoa(b.Summary.Failures),
			strconv.Itoa(b.Summary.Errors),
			formatDuration(b.Duration),
			binaryStatus(b),
		})
	}
	w.Table(
		[]string{"Binary", "Tests", "Assertions", "Failures", "Errors", "Duration", "Status"},
		rows,
		"Tests", "Assertions", "Failures", "Errors", "Duration",
	)
}

func binaryStatus(b results.BinaryStats) string {
	switch {
	case !b.SawSummary:
		return "no summary"
	case b.ProtocolErrors > 0:
		return fmt.Sprintf("%d malformed lines", b.ProtocolErrors)
	case b.Summary.Errors > 0:
		return "error"
	case b.Summary.Failures > 0:
		return "fail"
	default:
		return "ok"
	}
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.2fs", d.Seconds())
}
