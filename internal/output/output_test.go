package output

import (
	"bytes"
	"strings"
	"testing"
)

// newTestWriter creates a Writer with captured output for testing.
func newTestWriter() (*Writer, *bytes.Buffer, *bytes.Buffer) {
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	w := &Writer{
		out:   stdout,
		err:   stderr,
		color: false, // Disable color for predictable test output
	}
	return w, stdout, stderr
}

func TestNew(t *testing.T) {
	w := New()
	if w == nil {
		t.Fatal("New() returned nil")
	}
	if w.out == nil {
		t.Error("out writer is nil")
	}
	if w.err == nil {
		t.Error("err writer is nil")
	}
}

func TestWriter_Print(t *testing.T) {
	w, stdout, _ := newTestWriter()

	w.Print("hello %s", "world")

	if got := stdout.String(); got != "hello world" {
		t.Errorf("Print() = %q, want %q", got, "hello world")
	}
}

func TestWriter_Println(t *testing.T) {
	w, stdout, _ := newTestWriter()

	w.Println("hello %s", "world")

	if got := stdout.String(); got != "hello world\n" {
		t.Errorf("Println() = %q, want %q", got, "hello world\n")
	}
}

func TestWriter_Error(t *testing.T) {
	w, _, stderr := newTestWriter()

	w.Error("error %d", 42)

	if got := stderr.String(); got != "error 42" {
		t.Errorf("Error() = %q, want %q", got, "error 42")
	}
}

func TestWriter_Errorln(t *testing.T) {
	w, _, stderr := newTestWriter()

	w.Errorln("error %d", 42)

	if got := stderr.String(); got != "error 42\n" {
		t.Errorf("Errorln() = %q, want %q", got, "error 42\n")
	}
}

func TestWriter_Info(t *testing.T) {
	w, stdout, _ := newTestWriter()

	w.Info("info %s", "message")

	if got := stdout.String(); got != "info message\n" {
		t.Errorf("Info() = %q, want %q", got, "info message\n")
	}
}

func TestWriter_Success(t *testing.T) {
	tests := []struct {
		name   string
		color  bool
		expect string
	}{
		{"without color", false, "done\n"},
		{"with color", true, "\033[0;32mdone\033[0m\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, stdout, _ := newTestWriter()
			w.color = tt.color

			w.Success("done")

			if got := stdout.String(); got != tt.expect {
				t.Errorf("Success() = %q, want %q", got, tt.expect)
			}
		})
	}
}

func TestWriter_Warning(t *testing.T) {
	tests := []struct {
		name   string
		color  bool
		expect string
	}{
		{"without color", false, "warning: caution\n"},
		{"with color", true, "\033[0;33mwarning: caution\033[0m\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, _, stderr := newTestWriter()
			w.color = tt.color

			w.Warning("caution")

			if got := stderr.String(); got != tt.expect {
				t.Errorf("Warning() = %q, want %q", got, tt.expect)
			}
		})
	}
}

func TestWriter_Table(t *testing.T) {
	w, stdout, _ := newTestWriter()

	headers := []string{"Binary", "Tests"}
	rows := [][]string{
		{"fh_cfg.test", "12"},
		{"fh_net.test", "3"},
	}

	w.Table(headers, rows, "Tests")

	output := strings.ToLower(stdout.String())
	for _, want := range []string{"binary", "tests", "fh_cfg.test", "fh_net.test", "12"} {
		if !strings.Contains(output, want) {
			t.Errorf("Table() missing %q in:\n%s", want, output)
		}
	}
	if strings.Contains(output, "\033[") {
		t.Error("Table() emitted ANSI codes with color disabled")
	}
}

func TestWriter_Table_Empty(t *testing.T) {
	w, stdout, _ := newTestWriter()

	w.Table([]string{"Name", "Value"}, nil)

	if !strings.Contains(strings.ToLower(stdout.String()), "name") {
		t.Error("Table() with empty rows should still print headers")
	}
}

func TestWriter_Table_RowShorterThanHeaders(t *testing.T) {
	w, stdout, _ := newTestWriter()

	w.Table([]string{"A", "B", "C"}, [][]string{{"1", "2"}})

	if !strings.Contains(stdout.String(), "1") {
		t.Error("Table() should handle short rows gracefully")
	}
}

func TestWriter_ErrorPrefix(t *testing.T) {
	w, _, stderr := newTestWriter()

	w.ErrorPrefix("config: %s", "bad")

	if got := stderr.String(); got != "fhtest: config: bad\n" {
		t.Errorf("ErrorPrefix() = %q", got)
	}
}

func TestWriter_Colorize(t *testing.T) {
	w, _, _ := newTestWriter()
	if got := w.Colorize(Red, "x"); got != "x" {
		t.Errorf("Colorize() without color = %q", got)
	}
	w.SetColor(true)
	if got := w.Colorize(Red, "x"); got != "\033[0;31mx\033[0m" {
		t.Errorf("Colorize() with color = %q", got)
	}
	if !w.Color() {
		t.Error("Color() = false after SetColor(true)")
	}
}
