package scenario

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/feedhandlers/fhtest/internal/errors"
	"github.com/feedhandlers/fhtest/internal/metrics"
	"github.com/feedhandlers/fhtest/internal/output"
	"github.com/feedhandlers/fhtest/internal/protocol"
	"github.com/feedhandlers/fhtest/internal/report"
)

// Sink receives every executed scenario, grouped by feature.
type Sink interface {
	BeginFeature(path string) error
	AddScenario(rec report.ScenarioRecord) error
}

// Options configures a functional run.
type Options struct {
	World    Config
	Registry *Registry
	// Sink is optional; the JUnit writer is the usual one.
	Sink Sink
}

// Failure is a failed scenario as listed in the run summary.
type Failure struct {
	Feature  string
	Scenario string
	Line     int
	Kind     errors.ErrorKind
	Message  string
	Trace    []string
}

// Result summarizes a functional run.
type Result struct {
	Features  int
	Scenarios int
	Failures  []Failure
}

// Passed counts scenarios that did not fail.
func (r Result) Passed() int {
	return r.Scenarios - len(r.Failures)
}

// ExitCode is 1 when any scenario failed.
func (r Result) ExitCode() int {
	if len(r.Failures) > 0 {
		return errors.ExitFailures
	}
	return errors.ExitSuccess
}

// Runner executes feature files scenario by scenario.
type Runner struct {
	out      *output.Writer
	logger   log.Logger
	recorder *metrics.Recorder
	now      func() time.Time
}

// NewRunner creates a runner printing progress to w.
func NewRunner(w *output.Writer, logger log.Logger) *Runner {
	if logger == nil {
		logger = log.NewLogger(log.DiscardHandler())
	}
	return &Runner{out: w, logger: logger, now: time.Now}
}

// WithMetrics counts every scenario on rec.
func (r *Runner) WithMetrics(rec *metrics.Recorder) *Runner {
	r.recorder = rec
	return r
}

// Run parses and executes the feature files in order. A feature that does
// not parse stops the run with a Config error; failing scenarios do not.
func (r *Runner) Run(ctx context.Context, paths []string, opts Options) (Result, error) {
	if opts.Registry == nil {
		opts.Registry = DefaultRegistry()
	}
	if opts.World.Logger == nil {
		opts.World.Logger = r.logger
	}

	features := make([]*Feature, 0, len(paths))
	for _, path := range paths {
		f, err := ParseFile(path)
		if err != nil {
			return Result{}, &errors.HarnessError{Kind: errors.KindConfig, Message: err.Error(), Cause: err}
		}
		features = append(features, f)
	}

	console := report.NewConsole(r.out)
	console.Start(opts.World.Root)

	var res Result
	for _, f := range features {
		if ctx.Err() != nil {
			break
		}
		res.Features++
		if opts.Sink != nil {
			if err := opts.Sink.BeginFeature(f.Path); err != nil {
				return res, err
			}
		}
		for _, sc := range f.Scenarios {
			if ctx.Err() != nil {
				break
			}
			rec := r.runScenario(ctx, f, sc, opts)
			res.Scenarios++
			if rec.Failed {
				console.Glyph(protocol.OutcomeFailure)
				res.Failures = append(res.Failures, Failure{
					Feature:  f.Path,
					Scenario: sc.Name,
					Line:     sc.Line,
					Kind:     rec.kind,
					Message:  rec.Message,
					Trace:    rec.Trace,
				})
			} else {
				console.Glyph(protocol.OutcomeSuccess)
			}
			if r.recorder != nil {
				r.recorder.RecordScenario(rec.Failed)
			}
			if opts.Sink != nil {
				if err := opts.Sink.AddScenario(rec.ScenarioRecord); err != nil {
					return res, err
				}
			}
		}
	}
	console.Done()
	r.printSummary(res)
	return res, ctx.Err()
}

type scenarioRecord struct {
	report.ScenarioRecord
	kind errors.ErrorKind
}

// runScenario executes the background and scenario steps on a fresh World.
// The first failing step ends the scenario.
func (r *Runner) runScenario(ctx context.Context, f *Feature, sc Scenario, opts Options) scenarioRecord {
	logger := r.logger.New("feature", f.Name, "scenario", sc.Name)
	cfg := opts.World
	cfg.Logger = cfg.Logger.New("scenario", sc.Name)
	w := NewWorld(ctx, cfg)
	defer func() {
		if err := w.Close(); err != nil {
			logger.Warn("Scenario cleanup failed", "err", err)
		}
	}()

	start := r.now()
	rec := scenarioRecord{ScenarioRecord: report.ScenarioRecord{Name: sc.Name}}

	steps := make([]Step, 0, len(f.Background)+len(sc.Steps))
	steps = append(steps, f.Background...)
	steps = append(steps, sc.Steps...)

	for i, step := range steps {
		logger.Debug("Step", "line", step.Line, "text", step.Text)
		if err := runStep(opts.Registry, w, step); err != nil {
			logger.Info("Step failed", "line", step.Line, "err", err)
			rec.Failed = true
			rec.kind = errors.KindOf(err)
			rec.Kind = rec.kind.String()
			rec.Message = err.Error()
			rec.Trace = trace(f.Path, steps[:i+1])
			break
		}
	}
	rec.Duration = r.now().Sub(start)
	return rec
}

func runStep(reg *Registry, w *World, step Step) error {
	fn, args, err := reg.Match(step.Text)
	if err != nil {
		return err
	}
	return fn(w, args)
}

// trace lists the executed steps as file:line frames, most recent first.
func trace(path string, executed []Step) []string {
	frames := make([]string, 0, len(executed))
	for i := len(executed) - 1; i >= 0; i-- {
		s := executed[i]
		frames = append(frames, fmt.Sprintf("%s:%d:in '%s'", path, s.Line, s))
	}
	return frames
}

func (r *Runner) printSummary(res Result) {
	for i, f := range res.Failures {
		r.out.Print("\n%d) %s in %s (%s:%d)\n%s\n", i+1, f.Kind, f.Scenario, f.Feature, f.Line, f.Message)
	}
	line := fmt.Sprintf("%d features, %d scenarios, %d passed, %d failed",
		res.Features, res.Scenarios, res.Passed(), len(res.Failures))
	if len(res.Failures) > 0 {
		line = r.out.Colorize(output.Red, line)
	} else {
		line = r.out.Colorize(output.Green, line)
	}
	r.out.Print("\n%s\n", line)
}
