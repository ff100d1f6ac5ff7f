// Package runner drives a unit test run: optional compilation, discovery of
// test binaries, execution in check mode and aggregation of their protocol
// output into one run summary.
package runner

import (
	"context"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"golang.org/x/sync/errgroup"

	"github.com/feedhandlers/fhtest/internal/discovery"
	"github.com/feedhandlers/fhtest/internal/errors"
	"github.com/feedhandlers/fhtest/internal/metrics"
	"github.com/feedhandlers/fhtest/internal/output"
	"github.com/feedhandlers/fhtest/internal/process"
	"github.com/feedhandlers/fhtest/internal/project"
	"github.com/feedhandlers/fhtest/internal/protocol"
	"github.com/feedhandlers/fhtest/internal/report"
	"github.com/feedhandlers/fhtest/internal/results"
)

const (
	// maxJobs caps concurrent binaries. Test binaries are mostly I/O bound,
	// but each one holds two pipes and a process slot.
	maxJobs = 256

	// killGrace bounds the wait for a binary killed after its timeout.
	killGrace = 5 * time.Second
)

// Options configures a unit run.
type Options struct {
	// Dir is searched for test binaries and is where make runs.
	Dir string
	// Binaries, when set, replaces discovery. Paths are used as given.
	Binaries []string

	Compile    bool
	MakeTarget string
	CheckFlag  string
	Suffix     string
	Exclude    []string

	// Jobs > 1 runs binaries concurrently; output is replayed in order.
	Jobs int
	// Timeout bounds each binary; zero means unbounded.
	Timeout time.Duration
	// Verbose adds the per-binary table after the summary.
	Verbose bool
	// Env is overlaid on the environment of make and every binary.
	Env map[string]string
}

// Runner executes unit runs and reports them on a console writer.
type Runner struct {
	out      *output.Writer
	logger   log.Logger
	recorder *metrics.Recorder
}

// New creates a runner printing to w.
func New(w *output.Writer, logger log.Logger) *Runner {
	if logger == nil {
		logger = log.NewLogger(log.DiscardHandler())
	}
	return &Runner{out: w, logger: logger}
}

// WithMetrics records every finished run on rec.
func (r *Runner) WithMetrics(rec *metrics.Recorder) *Runner {
	r.recorder = rec
	return r
}

// Run performs one unit run. The returned error is set only when the run
// could not take place (compilation failed, directory unreadable); test
// failures are reported through the summary.
func (r *Runner) Run(ctx context.Context, opts Options) (results.RunSummary, error) {
	if opts.CheckFlag == "" {
		opts.CheckFlag = "-c"
	}
	sup := process.NewSupervisor(r.logger.New("component", "supervisor"), opts.Env)
	defer func() {
		if err := sup.Close(); err != nil {
			r.logger.Warn("Supervisor cleanup failed", "err", err)
		}
	}()

	if opts.Compile {
		if err := r.compile(ctx, sup, opts); err != nil {
			return results.RunSummary{}, err
		}
	}

	binaries, err := r.collect(opts)
	if err != nil {
		return results.RunSummary{}, err
	}
	r.logger.Debug("Collected test binaries", "dir", opts.Dir, "count", len(binaries))

	console := report.NewConsole(r.out)
	agg := results.NewAggregator(console, r.logger.New("component", "aggregator"))

	console.Start(opts.Dir)
	if jobs := clampJobs(opts.Jobs); jobs > 1 && len(binaries) > 1 {
		r.runParallel(ctx, sup, agg, binaries, opts, jobs)
	} else {
		for _, bin := range binaries {
			if ctx.Err() != nil {
				break
			}
			r.runLive(ctx, sup, agg, bin, opts)
		}
	}
	console.Done()

	summary := agg.Summary()
	console.Summary(summary)
	if opts.Verbose {
		report.BinaryTable(r.out, summary.Binaries, func(path string) string {
			return relativeTo(opts.Dir, path)
		})
	}
	if r.recorder != nil {
		r.recorder.RecordUnitRun(summary)
	}
	return summary, ctx.Err()
}

// compile runs make, echoing its stderr the way the build prints it.
func (r *Runner) compile(ctx context.Context, sup *process.Supervisor, opts Options) error {
	target := opts.MakeTarget
	if target == "" || target == project.NoTarget {
		r.out.Println("Running a 'make' on '%s'...", opts.Dir)
	} else {
		r.out.Println("Running a 'make %s' on '%s'...", target, opts.Dir)
	}

	echoed := false
	err := project.Make(ctx, sup, opts.Dir, target, func(line string) {
		echoed = true
		r.out.Print("\n%s", line)
		r.logger.Debug("make", "line", line)
	})
	if err != nil {
		r.out.Print("\n\n")
		return err
	}
	if echoed {
		r.out.Print("\n\n")
	}
	return nil
}

func (r *Runner) collect(opts Options) ([]string, error) {
	if len(opts.Binaries) > 0 {
		return opts.Binaries, nil
	}
	artifacts, err := discovery.TestBinaries(opts.Dir, opts.Suffix, opts.Exclude)
	if err != nil {
		return nil, errors.Environmentf("cannot search %s for test binaries: %v", opts.Dir, err)
	}
	return discovery.Paths(artifacts), nil
}

// runLive parses a binary's stdout while it runs.
func (r *Runner) runLive(ctx context.Context, sup *process.Supervisor, agg *results.Aggregator, bin string, opts Options) {
	bctx, cancel := binaryContext(ctx, opts.Timeout)
	defer cancel()

	h, err := sup.Spawn(bin, process.Options{Args: []string{opts.CheckFlag}})
	if err != nil {
		r.logger.Warn("Cannot start test binary", "binary", bin, "err", err)
		agg.AddSpawnError(bin, err)
		return
	}
	_ = h.Stdin().Close()

	agg.Begin(bin)
	parser := protocol.NewParser()
	followErr := h.Stdout().Follow(bctx, func(line string) {
		agg.Process(parser.Next(line))
	})

	var status process.Status
	if followErr == nil {
		status, err = h.Wait(bctx)
	}
	if followErr != nil || err != nil {
		timedOut := overran(ctx, bctx)
		r.logUnfinished(bin, opts.Timeout, timedOut)
		status = r.abandon(h, bin)
		if timedOut {
			agg.AddSpawnError(bin, errors.Timeout(bin, opts.Timeout, ""))
		}
	}
	stats := agg.Finish()
	r.checkExit(stats, status)
}

// outcome is what a concurrently run binary left for replay.
type outcome struct {
	started  bool
	timedOut bool
	stdout   []string
	status   process.Status
	duration time.Duration
	err      error
}

// runParallel runs up to jobs binaries at once and feeds their output to the
// aggregator strictly in the given order, each as soon as its turn comes.
func (r *Runner) runParallel(ctx context.Context, sup *process.Supervisor, agg *results.Aggregator, binaries []string, opts Options, jobs int) {
	outcomes := make([]outcome, len(binaries))
	done := make([]chan struct{}, len(binaries))
	for i := range done {
		done[i] = make(chan struct{})
	}

	var g errgroup.Group
	g.SetLimit(jobs)
	go func() {
		for i, bin := range binaries {
			g.Go(func() error {
				defer close(done[i])
				outcomes[i] = r.capture(ctx, sup, bin, opts)
				return nil
			})
		}
	}()

	for i, bin := range binaries {
		<-done[i]
		r.replay(agg, bin, outcomes[i], opts)
	}
	_ = g.Wait()
}

func (r *Runner) capture(ctx context.Context, sup *process.Supervisor, bin string, opts Options) outcome {
	if ctx.Err() != nil {
		return outcome{err: ctx.Err()}
	}
	bctx, cancel := binaryContext(ctx, opts.Timeout)
	defer cancel()

	start := time.Now()
	out, status, err := sup.Run(bctx, bin, process.Options{Args: []string{opts.CheckFlag}})
	return outcome{
		started:  true,
		timedOut: err != nil && overran(ctx, bctx),
		stdout:   out.Stdout,
		status:   status,
		duration: time.Since(start),
		err:      err,
	}
}

func (r *Runner) replay(agg *results.Aggregator, bin string, o outcome, opts Options) {
	if errors.Is(o.err, errors.KindSpawn) {
		r.logger.Warn("Cannot start test binary", "binary", bin, "err", o.err)
		agg.AddSpawnError(bin, o.err)
		return
	}
	if !o.started {
		return
	}

	agg.Begin(bin)
	parser := protocol.NewParser()
	for _, line := range o.stdout {
		agg.Process(parser.Next(line))
	}
	stats := agg.Finish()
	agg.SetDuration(o.duration)

	if o.err != nil {
		r.logUnfinished(bin, opts.Timeout, o.timedOut)
		if o.timedOut {
			agg.AddSpawnError(bin, errors.Timeout(bin, opts.Timeout, ""))
		}
		return
	}
	r.checkExit(stats, o.status)
}

// abandon kills a binary that was cut short and collects what status it can.
func (r *Runner) abandon(h *process.Handle, bin string) process.Status {
	if err := h.Kill(); err != nil {
		r.logger.Debug("Kill failed", "binary", bin, "err", err)
	}
	status, err := h.AwaitExit(killGrace)
	if err != nil {
		r.logger.Warn("Killed test binary did not exit", "binary", bin, "err", err)
	}
	return status
}

// checkExit warns about binaries that failed without reporting anything.
func (r *Runner) checkExit(stats results.BinaryStats, status process.Status) {
	if !stats.SawSummary && !status.Exited(0) {
		r.logger.Warn("Test binary exited without a summary line", "binary", stats.Binary, "status", status)
	}
}

func (r *Runner) logUnfinished(bin string, timeout time.Duration, timedOut bool) {
	if timedOut {
		r.logger.Error("Test binary did not finish", "binary", bin, "timeout", timeout)
		return
	}
	r.logger.Info("Test binary interrupted", "binary", bin)
}

// overran reports whether bctx ended on its own deadline while the run
// context is still live. A cancelled run is not a binary timeout.
func overran(ctx, bctx context.Context) bool {
	return ctx.Err() == nil && bctx.Err() == context.DeadlineExceeded
}

func binaryContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

func clampJobs(n int) int {
	return min(max(n, 1), maxJobs)
}

func relativeTo(dir, path string) string {
	if rel, err := filepath.Rel(dir, path); err == nil && !filepath.IsAbs(rel) && rel != "" && rel[0] != '.' {
		return rel
	}
	return path
}
