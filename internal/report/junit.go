package report

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/feedhandlers/fhtest/internal/errors"
)

// ScenarioRecord is the outcome of one executed scenario.
type ScenarioRecord struct {
	Name     string
	Duration time.Duration
	Failed   bool
	// Set when Failed.
	Kind    string
	Message string
	Trace   []string
}

// FeatureReportState accumulates the scenarios of the feature being run.
type FeatureReportState struct {
	Name      string
	Start     time.Time
	Tests     int
	Failures  int
	Scenarios []ScenarioRecord

	sink io.Writer
	file *os.File
}

// JUnitOptions configures a JUnitWriter.
type JUnitOptions struct {
	// Root is the project root feature paths are made relative to.
	Root string
	// OutputDir receives one <suite>.xml per feature. Empty writes to Stdout.
	OutputDir string
	// Prefix is prepended to every suite name, e.g. "functional.".
	Prefix string
	// Extension is stripped from feature file names, e.g. ".func".
	Extension string
	Stdout    io.Writer
}

// JUnitWriter writes one JUnit testsuite document per feature. Only one
// feature is open at a time: beginning a feature flushes the previous one.
type JUnitWriter struct {
	opts  JUnitOptions
	now   func() time.Time
	state *FeatureReportState
}

// NewJUnitWriter creates a writer. It creates OutputDir if needed.
func NewJUnitWriter(opts JUnitOptions) (*JUnitWriter, error) {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.OutputDir != "" {
		if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("cannot create report directory %s", opts.OutputDir))
		}
	}
	return &JUnitWriter{opts: opts, now: time.Now}, nil
}

// BeginFeature flushes the open feature, if any, and starts a new document
// for the feature file at path.
func (j *JUnitWriter) BeginFeature(path string) error {
	if err := j.flush(); err != nil {
		return err
	}

	name := SuiteName(j.opts.Root, path, j.opts.Extension)
	state := &FeatureReportState{Name: name, Start: j.now(), sink: j.opts.Stdout}
	if j.opts.OutputDir != "" {
		f, err := os.Create(filepath.Join(j.opts.OutputDir, name+".xml"))
		if err != nil {
			return errors.Wrap(err, fmt.Sprintf("cannot create report for %s", name))
		}
		state.file = f
		state.sink = f
	}
	j.state = state
	return nil
}

// AddScenario appends a scenario result to the open feature.
func (j *JUnitWriter) AddScenario(rec ScenarioRecord) error {
	if j.state == nil {
		return errors.Precondition("a feature must be started before scenarios are reported")
	}
	j.state.Tests++
	if rec.Failed {
		j.state.Failures++
	}
	j.state.Scenarios = append(j.state.Scenarios, rec)
	return nil
}

// Close flushes the last feature.
func (j *JUnitWriter) Close() error {
	return j.flush()
}

func (j *JUnitWriter) flush() error {
	state := j.state
	if state == nil {
		return nil
	}
	j.state = nil

	doc, err := Render(state, j.opts.Prefix, j.now().Sub(state.Start))
	if err == nil {
		_, err = state.sink.Write(doc)
	}
	if state.file != nil {
		if cerr := state.file.Close(); err == nil {
			err = cerr
		}
	}
	if err != nil {
		return errors.Wrap(err, fmt.Sprintf("cannot write report for %s", state.Name))
	}
	return nil
}

type xmlTestSuite struct {
	XMLName   xml.Name      `xml:"testsuite"`
	Name      string        `xml:"name,attr"`
	Failures  int           `xml:"failures,attr"`
	Tests     int           `xml:"tests,attr"`
	Errors    int           `xml:"errors,attr"`
	Time      string        `xml:"time,attr"`
	TestCases []xmlTestCase `xml:"testcase"`
}

type xmlTestCase struct {
	Name    string      `xml:"name,attr"`
	Time    string      `xml:"time,attr"`
	Failure *xmlFailure `xml:"failure,omitempty"`
}

type xmlFailure struct {
	Type    string `xml:"type,attr"`
	Message string `xml:"message,attr"`
	Body    string `xml:",innerxml"`
}

// Render produces the XML document for a feature. errors is always 0: the
// functional layer reports every scenario problem as a failure.
func Render(state *FeatureReportState, prefix string, elapsed time.Duration) ([]byte, error) {
	suite := xmlTestSuite{
		Name:     prefix + state.Name,
		Failures: state.Failures,
		Tests:    state.Tests,
		Errors:   0,
		Time:     seconds(elapsed),
	}
	for _, sc := range state.Scenarios {
		tc := xmlTestCase{Name: sc.Name, Time: seconds(sc.Duration)}
		if sc.Failed {
			body, err := traceBody(sc.Trace)
			if err != nil {
				return nil, err
			}
			tc.Failure = &xmlFailure{Type: sc.Kind, Message: sc.Message, Body: body}
		}
		suite.TestCases = append(suite.TestCases, tc)
	}

	out, err := xml.MarshalIndent(suite, "", "    ")
	if err != nil {
		return nil, err
	}
	return append(append([]byte(xml.Header), out...), '\n'), nil
}

// traceBody escapes each frame and ends it with an HTML line break.
func traceBody(trace []string) (string, error) {
	var buf bytes.Buffer
	for _, frame := range trace {
		if err := xml.EscapeText(&buf, []byte(frame)); err != nil {
			return "", err
		}
		buf.WriteString("<br />\n")
	}
	return buf.String(), nil
}

// SuiteName derives a feature's report name from its path: relative to root,
// separators replaced with underscores and the feature extension removed.
func SuiteName(root, path, extension string) string {
	rel := path
	if absRoot, err := filepath.Abs(root); err == nil {
		if absPath, err := filepath.Abs(path); err == nil {
			if r, err := filepath.Rel(absRoot, absPath); err == nil && !strings.HasPrefix(r, "..") {
				rel = r
			}
		}
	}
	rel = strings.TrimLeft(filepath.ToSlash(rel), "/")
	rel = strings.ReplaceAll(rel, "/", "_")
	if extension != "" {
		rel = strings.TrimSuffix(rel, extension)
	}
	return rel
}

func seconds(d time.Duration) string {
	return fmt.Sprintf("%.3f", d.Seconds())
}
