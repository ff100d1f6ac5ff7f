package cli

import (
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/feedhandlers/fhtest/internal/errors"
	"github.com/feedhandlers/fhtest/internal/runner"
)

func unitCommand() *cli.Command {
	return &cli.Command{
		Name:      "unit",
		Usage:     "Compile and run the unit test binaries",
		ArgsUsage: "[BINARY...]",
		Description: "Runs make in the unit directory, then every executable *.test file below it\n" +
			"in check mode. Naming binaries skips discovery.",
		Flags: []cli.Flag{
			DirFlag,
			NoCompileFlag,
			MakeTargetFlag,
			JobsFlag,
			TimeoutFlag,
			VerboseFlag,
		},
		Action: runUnit,
	}
}

func runUnit(c *cli.Context) error {
	s, err := newSession(c, "unit")
	if err != nil {
		return err
	}
	out := newOutput(c, c.App.Writer)
	s.warn(out)

	opts, err := unitOptions(c, s)
	if err != nil {
		return err
	}
	s.logger.Info("Starting unit run", "dir", opts.Dir, "compile", opts.Compile, "jobs", opts.Jobs)

	r := runner.New(out, s.logger.New("component", "runner")).WithMetrics(s.recorder)
	summary, err := r.Run(c.Context, opts)
	if err != nil {
		s.finish(errors.GetExitCode(err))
		return err
	}
	code := summary.ExitCode()
	s.finish(code)
	return resultCode(code)
}

// unitOptions merges the unit section of the configuration with the flags.
func unitOptions(c *cli.Context, s *session) (runner.Options, error) {
	cfg := s.project.Config.Unit
	opts := runner.Options{
		Dir:        s.project.UnitDir(),
		Compile:    cfg.ShouldCompile(),
		MakeTarget: cfg.MakeTarget,
		CheckFlag:  cfg.CheckFlag,
		Suffix:     cfg.Suffix,
		Exclude:    cfg.Exclude,
		Jobs:       cfg.Jobs,
		Timeout:    cfg.TimeoutDuration(),
		Verbose:    c.Bool(VerboseFlag.Name),
		Env:        s.project.Config.Env,
	}

	if c.IsSet(DirFlag.Name) {
		dir, err := filepath.Abs(c.String(DirFlag.Name))
		if err != nil {
			return opts, errors.Configf("invalid directory %q: %v", c.String(DirFlag.Name), err)
		}
		opts.Dir = dir
	}
	if c.Bool(NoCompileFlag.Name) {
		opts.Compile = false
	}
	if c.IsSet(MakeTargetFlag.Name) {
		opts.MakeTarget = c.String(MakeTargetFlag.Name)
	}
	if c.IsSet(JobsFlag.Name) {
		if c.Int(JobsFlag.Name) < 1 {
			return opts, errors.Configf("--jobs must be at least 1")
		}
		opts.Jobs = c.Int(JobsFlag.Name)
	}
	if c.IsSet(TimeoutFlag.Name) {
		opts.Timeout = c.Duration(TimeoutFlag.Name)
	}

	for _, arg := range c.Args().Slice() {
		path, err := filepath.Abs(arg)
		if err != nil {
			return opts, errors.Configf("invalid binary path %q: %v", arg, err)
		}
		opts.Binaries = append(opts.Binaries, path)
	}
	return opts, nil
}
