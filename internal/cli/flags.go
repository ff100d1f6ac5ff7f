package cli

import (
	"github.com/urfave/cli/v2"

	"github.com/feedhandlers/fhtest/internal/config"
	"github.com/feedhandlers/fhtest/internal/logging"
)

// EnvVarPrefix prefixes the environment variable of every flag.
const EnvVarPrefix = "FHTEST"

func prefixEnvVars(names ...string) []string {
	out := make([]string, len(names))
	for i, name := range names {
		out[i] = EnvVarPrefix + "_" + name
	}
	return out
}

var (
	ChdirFlag = &cli.StringFlag{
		Name:    "chdir",
		Aliases: []string{"C"},
		EnvVars: prefixEnvVars("CHDIR"),
		Usage:   "Start looking for fhtest.yaml in `DIR` instead of the working directory",
	}
	LogLevelFlag = &cli.StringFlag{
		Name:    "log.level",
		Value:   logging.DefaultLevel,
		EnvVars: prefixEnvVars("LOG_LEVEL"),
		Usage:   "Log level: trace, debug, info, warn, error, crit or none",
	}
	NoColorFlag = &cli.BoolFlag{
		Name:    "no-color",
		EnvVars: prefixEnvVars("NO_COLOR"),
		Usage:   "Disable colored output (also when NO_COLOR is set to any value)",
	}
	MetricsFileFlag = &cli.StringFlag{
		Name:    "metrics-file",
		EnvVars: prefixEnvVars("METRICS_FILE"),
		Usage:   "Write prometheus metrics of the run to `FILE` (textfile collector format)",
	}
)

var globalFlags = []cli.Flag{
	ChdirFlag,
	LogLevelFlag,
	NoColorFlag,
	MetricsFileFlag,
}

// Unit command flags.
var (
	DirFlag = &cli.StringFlag{
		Name:    "dir",
		Aliases: []string{"d"},
		EnvVars: prefixEnvVars("UNIT_DIR"),
		Usage:   "Search `DIR` for test binaries and run make there",
	}
	NoCompileFlag = &cli.BoolFlag{
		Name:    "no-compile",
		Aliases: []string{"n"},
		EnvVars: prefixEnvVars("NO_COMPILE"),
		Usage:   "Do not run make before the tests",
	}
	MakeTargetFlag = &cli.StringFlag{
		Name:    "make-target",
		EnvVars: prefixEnvVars("MAKE_TARGET"),
		Usage:   "Make target built before the tests (" + config.DefaultMakeTarget + " by default)",
	}
	JobsFlag = &cli.IntFlag{
		Name:    "jobs",
		Aliases: []string{"j"},
		EnvVars: prefixEnvVars("JOBS"),
		Usage:   "Run up to `N` test binaries at once",
	}
	TimeoutFlag = &cli.DurationFlag{
		Name:    "timeout",
		EnvVars: prefixEnvVars("TIMEOUT"),
		Usage:   "Kill a test binary still running after this long",
	}
	VerboseFlag = &cli.BoolFlag{
		Name:    "verbose",
		Aliases: []string{"v"},
		EnvVars: prefixEnvVars("VERBOSE"),
		Usage:   "Print a per-binary breakdown after the summary",
	}
)

// Functional command flags.
var (
	OutputDirFlag = &cli.StringFlag{
		Name:    "output-dir",
		Aliases: []string{"o"},
		EnvVars: append(prefixEnvVars("OUTPUT_DIR"), config.DefaultOutputDirEnv),
		Usage:   "Write one JUnit XML file per feature to `DIR` (stdout when empty)",
	}
	StepTimeoutFlag = &cli.DurationFlag{
		Name:    "step-timeout",
		EnvVars: prefixEnvVars("STEP_TIMEOUT"),
		Usage:   "Bound for commands run to completion by steps",
	}
)
