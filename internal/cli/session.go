package cli

import (
	"io"
	"os"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"
	"golang.org/x/term"

	"github.com/feedhandlers/fhtest/internal/errors"
	"github.com/feedhandlers/fhtest/internal/logging"
	"github.com/feedhandlers/fhtest/internal/metrics"
	"github.com/feedhandlers/fhtest/internal/output"
	"github.com/feedhandlers/fhtest/internal/project"
)

// session is what every command that touches a project needs.
type session struct {
	project  *project.Project
	logger   log.Logger
	runID    string
	recorder *metrics.Recorder
	// metricsFile is empty when no export is wanted.
	metricsFile string
}

// newSession loads the project around the start directory and builds the
// run's logger and metrics recorder. suite labels the metrics.
func newSession(c *cli.Context, suite string) (*session, error) {
	runID := logging.NewRunID()
	color := useColor(c, c.App.ErrWriter)
	logger, err := logging.New(logging.Config{
		Level:  c.String(LogLevelFlag.Name),
		Color:  &color,
		Writer: c.App.ErrWriter,
	}, runID)
	if err != nil {
		return nil, errors.Configf("%v", err)
	}

	start := c.String(ChdirFlag.Name)
	if start == "" {
		if start, err = os.Getwd(); err != nil {
			return nil, errors.Environmentf("cannot determine the working directory: %v", err)
		}
	}
	proj, err := project.Load(start)
	if err != nil {
		return nil, err
	}
	logger.Debug("Loaded project", "project", proj, "command", c.Command.Name)

	s := &session{
		project:     proj,
		logger:      logger,
		runID:       runID,
		recorder:    metrics.NewRecorder(runID, suite, logger.New("component", "metrics")),
		metricsFile: proj.Config.MetricsFile,
	}
	if c.IsSet(MetricsFileFlag.Name) {
		s.metricsFile = c.String(MetricsFileFlag.Name)
	}
	if s.metricsFile != "" {
		s.metricsFile = proj.Resolve(s.metricsFile)
	}
	return s, nil
}

// warn prints the project's configuration warnings.
func (s *session) warn(out *output.Writer) {
	for _, w := range s.project.Warnings {
		out.Warning("%s", w)
	}
}

// finish records the exit code and exports the metrics. Export failures are
// logged and do not change the run's outcome.
func (s *session) finish(code int) {
	s.recorder.RecordExit(code)
	if err := s.recorder.WriteTextfile(s.metricsFile); err != nil {
		s.logger.Error("Cannot write metrics", "file", s.metricsFile, "err", err)
	}
}

// newOutput returns a console writer on w that reports problems on the
// application's error writer.
func newOutput(c *cli.Context, w io.Writer) *output.Writer {
	return output.NewWithWriters(w, c.App.ErrWriter, useColor(c, w))
}

func useColor(c *cli.Context, w io.Writer) bool {
	if c.Bool(NoColorFlag.Name) || os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
