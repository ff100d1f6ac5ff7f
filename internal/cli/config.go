package cli

import (
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/feedhandlers/fhtest/internal/project"
)

func configCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Inspect the project configuration",
		Subcommands: []*cli.Command{
			{
				Name:   "validate",
				Usage:  "Validate fhtest.yaml and print the effective settings",
				Action: runConfigValidate,
			},
		},
	}
}

func runConfigValidate(c *cli.Context) error {
	s, err := newSession(c, "config")
	if err != nil {
		return err
	}
	out := newOutput(c, c.App.Writer)
	s.warn(out)

	proj := s.project
	if proj.HasConfigFile {
		out.Success("Configuration is valid.")
	} else {
		out.Info("No %s found; using defaults.", project.ConfigFileName)
	}

	unit, functional := proj.Config.Unit, proj.Config.Functional
	rows := [][]string{
		{"Project", proj.String()},
		{"Unit directory", proj.UnitDir()},
		{"Compile", strconv.FormatBool(unit.ShouldCompile())},
		{"Make target", unit.MakeTarget},
		{"Jobs", strconv.Itoa(unit.Jobs)},
		{"Binary timeout", unit.TimeoutDuration().String()},
		{"Features", proj.FeaturesDir()},
		{"Step timeout", functional.DefaultTimeoutDuration().String()},
		{"Environment", strconv.Itoa(len(proj.Config.Env)) + " variables"},
	}
	if len(proj.Warnings) > 0 {
		rows = append(rows, []string{"Warnings", strconv.Itoa(len(proj.Warnings))})
	}
	out.Table([]string{"Setting", "Value"}, rows)
	return nil
}
