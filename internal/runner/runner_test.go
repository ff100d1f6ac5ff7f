//go:build unix

package runner

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/feedhandlers/fhtest/internal/errors"
	"github.com/feedhandlers/fhtest/internal/metrics"
	"github.com/feedhandlers/fhtest/internal/output"
	"github.com/feedhandlers/fhtest/internal/testing/fakebin"
)

// Runner tests write executables and fork; they are not parallel to avoid
// "text file busy" from exec.

func newRunner() (*Runner, *bytes.Buffer, *bytes.Buffer) {
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	return New(output.NewWithWriters(stdout, stderr, false), nil), stdout, stderr
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestRun_EndToEnd(t *testing.T) {
	dir := t.TempDir()
	a := fakebin.Protocol("a.test", ":1:1:0:0").Write(t, dir, "a.test")
	b := fakebin.Protocol(
		"b.test",
		"parses_add_order:fh_itch_test.c:88:FAILURE",
		"expected 1 got 2",
		".",
		":1:1:1:0",
	).Write(t, dir, "b.test")
	c := fakebin.NotExecutable(t, dir, "c.test")

	r, stdout, stderr := newRunner()
	summary, err := r.Run(testContext(t), Options{Dir: dir, Binaries: []string{a, b, c}})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if summary.Totals.Tests != 2 || summary.Totals.Assertions != 2 ||
		summary.Totals.Failures != 1 || summary.Totals.Errors != 0 {
		t.Errorf("Totals = %+v, want 2/2/1/0", summary.Totals)
	}
	if len(summary.Entries) != 1 {
		t.Fatalf("Entries = %+v, want 1", summary.Entries)
	}
	if e := summary.Entries[0]; e.Test != "parses_add_order" || e.Message != "expected 1 got 2" {
		t.Errorf("Entry = %+v", e)
	}
	if len(summary.SpawnErrors) != 1 || summary.SpawnErrors[0].Binary != c {
		t.Errorf("SpawnErrors = %+v, want one for c.test", summary.SpawnErrors)
	}
	if !errors.Is(summary.SpawnErrors[0].Err, errors.KindSpawn) {
		t.Errorf("spawn error kind = %v", errors.KindOf(summary.SpawnErrors[0].Err))
	}
	if summary.ExitCode() != errors.ExitFailures {
		t.Errorf("ExitCode() = %d, want %d", summary.ExitCode(), errors.ExitFailures)
	}

	out := stdout.String()
	for _, want := range []string{
		fmt.Sprintf("Running tests in '%s'...\n\n", dir),
		"F done!\n",
		"\n1) Failure in parses_add_order (fh_itch_test.c:88)\nexpected 1 got 2\n",
		"2 tests, 2 assertions, 1 failures, 0 errors\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("stdout missing %q:\n%s", want, out)
		}
	}
	if strings.Count(out, ") Failure in") != 1 {
		t.Errorf("expected exactly one message:\n%s", out)
	}
	if !strings.Contains(stderr.String(), "c.test") {
		t.Errorf("stderr should mention c.test: %q", stderr.String())
	}
}

func TestRun_DiscoveryOrderAndCheckFlag(t *testing.T) {
	dir := t.TempDir()
	// Each binary only reports when given the check flag.
	script := func(banner, record string) *fakebin.Script {
		return fakebin.New().
			Raw(`[ "$1" = "-c" ] || exit 9`).
			Stdout(banner, record, ".", ":1:1:0:0")
	}
	script("a", "t_a:a.c:1:SUCCESS").Write(t, dir, "a.test")
	script("b", "t_b:b.c:2:SUCCESS").Write(t, filepath.Join(dir, "sub"), "b.test")
	script("skipped", "t_w:w.c:3:FAILURE").Write(t, filepath.Join(dir, "www"), "w.test")
	fakebin.NotExecutable(t, dir, "n.test")

	r, stdout, _ := newRunner()
	summary, err := r.Run(testContext(t), Options{Dir: dir, Suffix: ".test", Exclude: []string{"www"}})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if summary.Totals.Tests != 2 || len(summary.Binaries) != 2 {
		t.Errorf("Totals = %+v, Binaries = %d", summary.Totals, len(summary.Binaries))
	}
	if len(summary.SpawnErrors) != 0 {
		t.Errorf("SpawnErrors = %+v, want none (non-executables are not discovered)", summary.SpawnErrors)
	}
	if !strings.Contains(stdout.String(), ".. done!") {
		t.Errorf("stdout = %q", stdout.String())
	}
	if summary.Binaries[0].Banner != "a" || summary.Binaries[1].Banner != "b" {
		t.Errorf("order = %q, %q", summary.Binaries[0].Banner, summary.Binaries[1].Banner)
	}
}

func TestRun_ParallelKeepsOrder(t *testing.T) {
	dir := t.TempDir()
	fakebin.New().Sleep(0.4).Stdout("a", "t_a:a.c:1:SUCCESS", ".", ":1:1:0:0").Write(t, dir, "a.test")
	fakebin.New().Sleep(0.2).Stdout("b", "t_b:b.c:2:FAILURE", "boom", ".", ":1:1:1:0").Write(t, dir, "b.test")
	fakebin.Protocol("c", "t_c:c.c:3:ERROR", "crash", ".", ":1:1:0:1").Write(t, dir, "c.test")

	r, stdout, _ := newRunner()
	start := time.Now()
	summary, err := r.Run(testContext(t), Options{Dir: dir, Suffix: ".test", Jobs: 3})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("parallel run took %v", elapsed)
	}
	if !strings.Contains(stdout.String(), ".FE done!") {
		t.Errorf("glyphs out of order: %q", stdout.String())
	}
	if len(summary.Entries) != 2 || summary.Entries[0].Test != "t_b" || summary.Entries[1].Test != "t_c" {
		t.Errorf("Entries = %+v", summary.Entries)
	}
	if summary.ExitCode() != errors.ExitErrors {
		t.Errorf("ExitCode() = %d, want %d", summary.ExitCode(), errors.ExitErrors)
	}
	if d := summary.Binaries[0].Duration; d < 300*time.Millisecond {
		t.Errorf("a.test duration = %v, want the process runtime", d)
	}
}

func TestRun_ParallelSpawnError(t *testing.T) {
	dir := t.TempDir()
	a := fakebin.Protocol("a", ":2:2:0:0").Write(t, dir, "a.test")
	missing := filepath.Join(dir, "missing.test")

	r, _, _ := newRunner()
	summary, err := r.Run(testContext(t), Options{Dir: dir, Binaries: []string{missing, a}, Jobs: 2})
	if err != nil {
		t.Fatal(err)
	}
	if summary.Totals.Tests != 2 {
		t.Errorf("Totals = %+v", summary.Totals)
	}
	if len(summary.SpawnErrors) != 1 || summary.SpawnErrors[0].Binary != missing {
		t.Errorf("SpawnErrors = %+v", summary.SpawnErrors)
	}
	if summary.ExitCode() != errors.ExitSuccess {
		t.Errorf("ExitCode() = %d, spawn errors must not change it", summary.ExitCode())
	}
}

func TestRun_Timeout(t *testing.T) {
	dir := t.TempDir()
	hung := fakebin.New().Stdout("hung", ":1:1:0:0").Forever().Write(t, dir, "hung.test")
	ok := fakebin.Protocol("ok", ":1:1:0:0").Write(t, dir, "ok.test")

	for _, jobs := range []int{1, 2} {
		t.Run(fmt.Sprintf("jobs=%d", jobs), func(t *testing.T) {
			r, _, _ := newRunner()
			start := time.Now()
			summary, err := r.Run(testContext(t), Options{
				Dir:      dir,
				Binaries: []string{hung, ok},
				Jobs:     jobs,
				Timeout:  500 * time.Millisecond,
			})
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if elapsed := time.Since(start); elapsed > 5*time.Second {
				t.Errorf("Run() took %v", elapsed)
			}
			if len(summary.SpawnErrors) != 1 || !errors.Is(summary.SpawnErrors[0].Err, errors.KindTimeout) {
				t.Errorf("SpawnErrors = %+v, want one timeout", summary.SpawnErrors)
			}
			// The summary printed before hanging still counts.
			if summary.Totals.Tests != 2 {
				t.Errorf("Totals = %+v", summary.Totals)
			}
		})
	}
}

func TestRun_StdinAtEOFForEveryJobCount(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.test", "b.test"} {
		fakebin.New().Raw("read x").Stdout(name, ":1:1:0:0").Write(t, dir, name)
	}

	for _, jobs := range []int{1, 2} {
		t.Run(fmt.Sprintf("jobs=%d", jobs), func(t *testing.T) {
			r, _, _ := newRunner()
			start := time.Now()
			summary, err := r.Run(testContext(t), Options{Dir: dir, Suffix: ".test", Jobs: jobs, Timeout: 3 * time.Second})
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if elapsed := time.Since(start); elapsed > 2*time.Second {
				t.Errorf("Run() took %v, binaries blocked on stdin", elapsed)
			}
			if len(summary.SpawnErrors) != 0 {
				t.Errorf("SpawnErrors = %+v", summary.SpawnErrors)
			}
			if summary.Totals.Tests != 2 || summary.Totals.Assertions != 2 {
				t.Errorf("Totals = %+v", summary.Totals)
			}
		})
	}
}

func TestRun_CancelledIsNotTimeout(t *testing.T) {
	dir := t.TempDir()
	hung := fakebin.New().Stdout("hung", ":1:1:0:0").Forever().Write(t, dir, "hung.test")
	other := fakebin.New().Stdout("other", ":1:1:0:0").Forever().Write(t, dir, "other.test")

	for _, jobs := range []int{1, 2} {
		t.Run(fmt.Sprintf("jobs=%d", jobs), func(t *testing.T) {
			ctx, cancel := context.WithCancel(testContext(t))
			time.AfterFunc(300*time.Millisecond, cancel)

			r, _, _ := newRunner()
			summary, err := r.Run(ctx, Options{Dir: dir, Binaries: []string{hung, other}, Jobs: jobs})
			if err != context.Canceled {
				t.Errorf("Run() error = %v, want context.Canceled", err)
			}
			if len(summary.SpawnErrors) != 0 {
				t.Errorf("SpawnErrors = %+v, want none for an interrupted run", summary.SpawnErrors)
			}
		})
	}
}

func TestRun_VerboseTable(t *testing.T) {
	dir := t.TempDir()
	fakebin.Protocol("a", ":3:9:0:0").Write(t, filepath.Join(dir, "feeds"), "parser.test")

	r, stdout, _ := newRunner()
	if _, err := r.Run(testContext(t), Options{Dir: dir, Suffix: ".test", Verbose: true}); err != nil {
		t.Fatal(err)
	}
	out := stdout.String()
	if !strings.Contains(out, filepath.Join("feeds", "parser.test")) {
		t.Errorf("table missing relative binary name:\n%s", out)
	}
	if strings.Contains(out, dir+string(filepath.Separator)+"feeds") {
		t.Errorf("table should not print absolute paths:\n%s", out)
	}
}

func TestRun_Metrics(t *testing.T) {
	dir := t.TempDir()
	fakebin.Protocol("a", ":3:9:1:0").Write(t, dir, "a.test")

	rec := metrics.NewRecorder("run", "unit", nil)
	r, _, _ := newRunner()
	if _, err := r.WithMetrics(rec).Run(testContext(t), Options{Dir: dir, Suffix: ".test"}); err != nil {
		t.Fatal(err)
	}
	n, err := testutil.GatherAndCount(rec.Registry(), "fhtest_tests_total", "fhtest_failures_total")
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("series = %d, want 2", n)
	}
}

func TestRun_Compile(t *testing.T) {
	if _, err := exec.LookPath("make"); err != nil {
		t.Skip("make not available")
	}
	dir := t.TempDir()
	makefile := "test:\n\t@echo 'cc -o a.test a.c' >&2\n"
	if err := os.WriteFile(filepath.Join(dir, "Makefile"), []byte(makefile), 0o644); err != nil {
		t.Fatal(err)
	}
	fakebin.Protocol("a", ":1:1:0:0").Write(t, dir, "a.test")

	r, stdout, _ := newRunner()
	summary, err := r.Run(testContext(t), Options{Dir: dir, Suffix: ".test", Compile: true, MakeTarget: "test"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if summary.Totals.Tests != 1 {
		t.Errorf("Totals = %+v", summary.Totals)
	}
	out := stdout.String()
	if !strings.HasPrefix(out, fmt.Sprintf("Running a 'make test' on '%s'...\n\ncc -o a.test a.c\n\nRunning tests in", dir)) {
		t.Errorf("stdout = %q", out)
	}
}

func TestRun_CompileFailure(t *testing.T) {
	if _, err := exec.LookPath("make"); err != nil {
		t.Skip("make not available")
	}
	dir := t.TempDir()
	makefile := "test:\n\t@echo 'make: *** [a.test] Error 1' >&2\n"
	if err := os.WriteFile(filepath.Join(dir, "Makefile"), []byte(makefile), 0o644); err != nil {
		t.Fatal(err)
	}

	r, stdout, _ := newRunner()
	_, err := r.Run(testContext(t), Options{Dir: dir, Compile: true, MakeTarget: "test"})
	if errors.GetExitCode(err) != errors.ExitEnvironmentError {
		t.Fatalf("Run() error = %v, want environment error", err)
	}
	if strings.Contains(stdout.String(), "Running tests in") {
		t.Errorf("tests ran after failed compilation: %q", stdout.String())
	}
}

func TestRun_MissingDirectory(t *testing.T) {
	r, _, _ := newRunner()
	_, err := r.Run(testContext(t), Options{Dir: filepath.Join(t.TempDir(), "gone"), Suffix: ".test"})
	if !errors.Is(err, errors.KindEnvironment) {
		t.Errorf("Run() error = %v, want environment error", err)
	}
}

func TestClampJobs(t *testing.T) {
	t.Parallel()
	tests := []struct{ in, want int }{{-3, 1}, {0, 1}, {1, 1}, {8, 8}, {10000, maxJobs}}
	for _, tt := range tests {
		if got := clampJobs(tt.in); got != tt.want {
			t.Errorf("clampJobs(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestRelativeTo(t *testing.T) {
	t.Parallel()
	tests := []struct{ dir, path, want string }{
		{"/src", "/src/a.test", "a.test"},
		{"/src", "/src/x/b.test", "x/b.test"},
		{"/src", "/other/c.test", "/other/c.test"},
	}
	for _, tt := range tests {
		if got := relativeTo(tt.dir, tt.path); got != tt.want {
			t.Errorf("relativeTo(%q, %q) = %q, want %q", tt.dir, tt.path, got, tt.want)
		}
	}
}
