package cli

import (
	"io"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/feedhandlers/fhtest/internal/discovery"
	"github.com/feedhandlers/fhtest/internal/errors"
	"github.com/feedhandlers/fhtest/internal/report"
	"github.com/feedhandlers/fhtest/internal/scenario"
)

func functionalCommand() *cli.Command {
	return &cli.Command{
		Name:      "functional",
		Usage:     "Run functional feature files against the feed handler builds",
		ArgsUsage: "[FEATURE...]",
		Description: "Runs the named feature files, or every feature file below the features\n" +
			"directory, and writes a JUnit report per feature.",
		Flags: []cli.Flag{
			OutputDirFlag,
			StepTimeoutFlag,
		},
		Action: runFunctional,
	}
}

func runFunctional(c *cli.Context) error {
	s, err := newSession(c, "functional")
	if err != nil {
		return err
	}
	cfg := s.project.Config.Functional

	outputDir := cfg.OutputDir
	if c.IsSet(OutputDirFlag.Name) {
		outputDir = c.String(OutputDirFlag.Name)
	}

	// Without a report directory the XML goes to stdout, so progress moves
	// to stderr.
	var progress io.Writer = c.App.Writer
	if outputDir == "" {
		progress = c.App.ErrWriter
	} else {
		outputDir = absFrom(outputDir)
	}
	out := newOutput(c, progress)
	s.warn(out)

	paths, err := featurePaths(c, s.project.FeaturesDir(), cfg.Extension)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		out.Warning("no feature files found in %s", s.project.FeaturesDir())
	}

	junit, err := report.NewJUnitWriter(report.JUnitOptions{
		Root:      s.project.Root,
		OutputDir: outputDir,
		Prefix:    cfg.SuitePrefix,
		Extension: cfg.Extension,
		Stdout:    c.App.Writer,
	})
	if err != nil {
		return err
	}

	timeout := cfg.DefaultTimeoutDuration()
	if c.IsSet(StepTimeoutFlag.Name) {
		timeout = c.Duration(StepTimeoutFlag.Name)
	}

	r := scenario.NewRunner(out, s.logger.New("component", "scenario")).WithMetrics(s.recorder)
	res, runErr := r.Run(c.Context, paths, scenario.Options{
		World: scenario.Config{
			Root:           s.project.Root,
			Env:            s.project.Config.Env,
			DefaultTimeout: timeout,
		},
		Sink: junit,
	})
	if err := junit.Close(); err != nil && runErr == nil {
		runErr = err
	}
	if runErr != nil {
		s.finish(errors.GetExitCode(runErr))
		return runErr
	}
	s.finish(res.ExitCode())
	return resultCode(res.ExitCode())
}

// featurePaths returns the named feature files, or every feature below dir.
func featurePaths(c *cli.Context, dir, ext string) ([]string, error) {
	if c.Args().Present() {
		var paths []string
		for _, arg := range c.Args().Slice() {
			path := absFrom(arg)
			if _, err := os.Stat(path); err != nil {
				return nil, errors.Configf("feature file %s: %v", arg, err)
			}
			paths = append(paths, path)
		}
		return paths, nil
	}
	artifacts, err := discovery.Features(dir, ext)
	if err != nil {
		return nil, errors.Configf("cannot search %s for feature files: %v", dir, err)
	}
	return discovery.Paths(artifacts), nil
}

func absFrom(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}
