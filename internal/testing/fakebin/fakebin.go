// Package fakebin writes small /bin/sh programs that stand in for feed
// handlers and unit test binaries in tests.
package fakebin

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// Script builds a shell program step by step. Steps run in the order added.
type Script struct {
	steps []string
}

// New creates an empty script.
func New() *Script {
	return &Script{}
}

// Stdout prints each line on standard output.
func (s *Script) Stdout(lines ...string) *Script {
	for _, l := range lines {
		s.steps = append(s.steps, "printf '%s\\n' "+quote(l))
	}
	return s
}

// Stderr prints each line on standard error.
func (s *Script) Stderr(lines ...string) *Script {
	for _, l := range lines {
		s.steps = append(s.steps, "printf '%s\\n' "+quote(l)+" >&2")
	}
	return s
}

// Sleep pauses for the given number of seconds (fractions allowed).
func (s *Script) Sleep(seconds float64) *Script {
	s.steps = append(s.steps, fmt.Sprintf("sleep %g", seconds))
	return s
}

// Trap installs a handler that prints msg and exits with code on signal.
func (s *Script) Trap(signal, msg string, code int) *Script {
	s.steps = append(s.steps, fmt.Sprintf("trap \"echo %s; exit %d\" %s", quote(msg), code, signal))
	return s
}

// Forever keeps the process alive until it is signaled. The loop sleeps in
// the background so traps run promptly.
func (s *Script) Forever() *Script {
	s.steps = append(s.steps, "while :; do sleep 1 & wait $!; done")
	return s
}

// Raw appends a shell command verbatim.
func (s *Script) Raw(cmd string) *Script {
	s.steps = append(s.steps, cmd)
	return s
}

// Exit ends the script with code.
func (s *Script) Exit(code int) *Script {
	s.steps = append(s.steps, fmt.Sprintf("exit %d", code))
	return s
}

// String renders the program.
func (s *Script) String() string {
	return "#!/bin/sh\n" + strings.Join(s.steps, "\n") + "\n"
}

// Write writes the program as an executable file dir/name and returns its path.
func (s *Script) Write(t testing.TB, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("fakebin: %v", err)
	}
	if err := os.WriteFile(path, []byte(s.String()), 0o755); err != nil {
		t.Fatalf("fakebin: %v", err)
	}
	return path
}

// Protocol returns a script that prints the given protocol transcript on stdout.
func Protocol(out ...string) *Script {
	return New().Stdout(out...)
}

// NotExecutable writes a file that exists but cannot be executed.
func NotExecutable(t testing.TB, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\nexit 0\n"), 0o644); err != nil {
		t.Fatalf("fakebin: %v", err)
	}
	return path
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
