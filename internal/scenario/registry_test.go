package scenario

import (
	"reflect"
	"strings"
	"testing"

	"github.com/feedhandlers/fhtest/internal/errors"
)

func TestRegistry_Match(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	called := ""
	r.Add(`run`, func(*World, []string) error { called = "run"; return nil })
	r.Add(`exit with code (\d+)`, func(*World, []string) error { called = "exit"; return nil })

	fn, args, err := r.Match("exit with code 3")
	if err != nil {
		t.Fatalf("Match() error = %v", err)
	}
	if !reflect.DeepEqual(args, []string{"3"}) {
		t.Errorf("args = %q", args)
	}
	if err := fn(nil, args); err != nil || called != "exit" {
		t.Errorf("matched the wrong step: %q", called)
	}

	if _, _, err := r.Match("run with captured output"); !errors.Is(err, errors.KindPrecondition) {
		t.Errorf("patterns must be anchored; Match() error = %v", err)
	}
	if _, _, err := r.Match("not exit with code 3"); err == nil {
		t.Error("patterns must be anchored at the start")
	}
}

func TestRegistry_Undefined(t *testing.T) {
	t.Parallel()

	_, _, err := NewRegistry().Match("the moon is full")
	if !errors.Is(err, errors.KindPrecondition) {
		t.Fatalf("Match() error kind = %v", errors.KindOf(err))
	}
	if !strings.Contains(err.Error(), `undefined step: "the moon is full"`) {
		t.Errorf("error = %q", err)
	}
}

func TestRegistry_Ambiguous(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.Add(`(\w+) is set to "(.+)"`, func(*World, []string) error { return nil })
	r.Add(`PORT is set to "(\d+)"`, func(*World, []string) error { return nil })

	_, _, err := r.Match(`PORT is set to "9000"`)
	if !errors.Is(err, errors.KindPrecondition) || !strings.Contains(err.Error(), "ambiguous step") {
		t.Errorf("Match() error = %v, want ambiguous step", err)
	}
}

func TestDefaultRegistry_EveryStepMatchesOnce(t *testing.T) {
	t.Parallel()

	steps := []string{
		"an ITCH feed handler",
		"with code in src/itch",
		"with a binary named fhitch_v1",
		`with the arguments "-p 9000 --verbose"`,
		`directory is changed to "test/data"`,
		`FH_HOME is set to "[DIST]"`,
		"the feed handler is compiled",
		"a make is performed on src/itch with target clean",
		"the file fhitch_v1 should be produced",
		"there should be no build products left",
		"a standard directory structure should exist in the dist directory",
		"run",
		`it should produce the string "READY" within 5 seconds`,
		"terminate within 2 seconds",
		"terminate on the signal TERM within 2 seconds",
		"exit with code 0",
		"not exit with code 0",
		`the command "make -C src clean" is run`,
		`the command "ls -l" is run with captured output`,
		"the binary /bin/echo is used",
		"the dist binary bin/fhitch_v1 is used",
		`passed arguments "--help"`,
		"run with captured output",
		`"usage:" is seen on stdout`,
		`"error" is not seen on stderr`,
	}

	r := DefaultRegistry()
	for _, text := range steps {
		if _, _, err := r.Match(text); err != nil {
			t.Errorf("Match(%q) error = %v", text, err)
		}
	}
}
