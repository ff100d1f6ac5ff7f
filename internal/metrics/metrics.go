// Package metrics records run outcomes as prometheus metrics and exports them
// in the node-exporter textfile format.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/feedhandlers/fhtest/internal/results"
)

const MetricsNamespace = "fhtest"

// Recorder owns one registry per run, labelled with the run id.
type Recorder struct {
	registry *prometheus.Registry
	logger   log.Logger

	testsTotal      prometheus.Counter
	assertionsTotal prometheus.Counter
	failuresTotal   prometheus.Counter
	errorsTotal     prometheus.Counter
	protocolErrors  prometheus.Counter
	binariesTotal   *prometheus.CounterVec
	binaryDuration  prometheus.Histogram
	scenariosTotal  *prometheus.CounterVec
	lastRunSuccess  prometheus.Gauge
}

// NewRecorder creates a recorder whose series all carry run_id and suite.
func NewRecorder(runID, suite string, logger log.Logger) *Recorder {
	if logger == nil {
		logger = log.NewLogger(log.DiscardHandler())
	}
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	labels := prometheus.Labels{"run_id": runID, "suite": suite}

	return &Recorder{
		registry: reg,
		logger:   logger,
		testsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   MetricsNamespace,
			Name:        "tests_total",
			Help:        "Number of tests reported by summary lines",
			ConstLabels: labels,
		}),
		assertionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   MetricsNamespace,
			Name:        "assertions_total",
			Help:        "Number of assertions reported by summary lines",
			ConstLabels: labels,
		}),
		failuresTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   MetricsNamespace,
			Name:        "failures_total",
			Help:        "Number of failures reported by summary lines",
			ConstLabels: labels,
		}),
		errorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   MetricsNamespace,
			Name:        "errors_total",
			Help:        "Number of errors reported by summary lines",
			ConstLabels: labels,
		}),
		protocolErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   MetricsNamespace,
			Name:        "protocol_errors_total",
			Help:        "Count of malformed protocol lines",
			ConstLabels: labels,
		}),
		binariesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   MetricsNamespace,
			Name:        "binaries_total",
			Help:        "Count of test binaries by result",
			ConstLabels: labels,
		}, []string{"result"}),
		binaryDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   MetricsNamespace,
			Name:        "binary_duration_seconds",
			Help:        "Wall-clock duration of each test binary",
			ConstLabels: labels,
			Buckets:     prometheus.ExponentialBuckets(0.01, 4, 8),
		}),
		scenariosTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   MetricsNamespace,
			Name:        "scenarios_total",
			Help:        "Count of functional scenarios by result",
			ConstLabels: labels,
		}, []string{"result"}),
		lastRunSuccess: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   MetricsNamespace,
			Name:        "last_run_success",
			Help:        "1 when the run exited with status 0",
			ConstLabels: labels,
		}),
	}
}

// Registry exposes the underlying registry, e.g. for gathering in tests.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// RecordUnitRun adds the counters of a finished unit run.
func (r *Recorder) RecordUnitRun(s results.RunSummary) {
	r.testsTotal.Add(float64(s.Totals.Tests))
	r.assertionsTotal.Add(float64(s.Totals.Assertions))
	r.failuresTotal.Add(float64(s.Totals.Failures))
	r.errorsTotal.Add(float64(s.Totals.Errors))
	r.protocolErrors.Add(float64(s.ProtocolErrors()))
	for _, b := range s.Binaries {
		r.binariesTotal.WithLabelValues("ok").Inc()
		r.binaryDuration.Observe(b.Duration.Seconds())
	}
	r.binariesTotal.WithLabelValues("spawn_error").Add(float64(len(s.SpawnErrors)))
	r.logger.Debug("Recorded unit metrics", "binaries", len(s.Binaries), "entries", len(s.Entries))
}

// RecordScenario counts one finished scenario.
func (r *Recorder) RecordScenario(failed bool) {
	result := "passed"
	if failed {
		result = "failed"
	}
	r.scenariosTotal.WithLabelValues(result).Inc()
}

// RecordExit sets the success gauge from the process exit code.
func (r *Recorder) RecordExit(code int) {
	if code == 0 {
		r.lastRunSuccess.Set(1)
	} else {
		r.lastRunSuccess.Set(0)
	}
}

// WriteTextfile writes every metric to path atomically. An empty path is a no-op.
func (r *Recorder) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create metrics directory: %w", err)
		}
	}
	start := time.Now()
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	r.logger.Debug("Wrote metrics textfile", "path", path, "elapsed", time.Since(start))
	return nil
}
