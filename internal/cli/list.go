package cli

import (
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/feedhandlers/fhtest/internal/discovery"
	"github.com/feedhandlers/fhtest/internal/errors"
	"github.com/feedhandlers/fhtest/internal/scenario"
)

var listFeaturesFlag = &cli.BoolFlag{
	Name:  "features",
	Usage: "List feature files and their scenarios instead of test binaries",
}

func listCommand() *cli.Command {
	return &cli.Command{
		Name:   "list",
		Usage:  "List the test binaries a unit run would execute",
		Flags:  []cli.Flag{DirFlag, listFeaturesFlag},
		Action: runList,
	}
}

func runList(c *cli.Context) error {
	s, err := newSession(c, "list")
	if err != nil {
		return err
	}
	out := newOutput(c, c.App.Writer)
	s.warn(out)

	if c.Bool(listFeaturesFlag.Name) {
		return listFeatures(c, s)
	}

	dir := s.project.UnitDir()
	if c.IsSet(DirFlag.Name) {
		dir = absFrom(c.String(DirFlag.Name))
	}
	cfg := s.project.Config.Unit
	artifacts, err := discovery.TestBinaries(dir, cfg.Suffix, cfg.Exclude)
	if err != nil {
		return errors.Environmentf("cannot search %s for test binaries: %v", dir, err)
	}
	if len(artifacts) == 0 {
		out.Println("No test binaries found in %s", dir)
		return nil
	}

	rows := make([][]string, len(artifacts))
	for i, a := range artifacts {
		rows[i] = []string{a.Rel, strconv.FormatInt(a.Size, 10)}
	}
	out.Table([]string{"Binary", "Size"}, rows, "Size")
	return nil
}

func listFeatures(c *cli.Context, s *session) error {
	out := newOutput(c, c.App.Writer)
	cfg := s.project.Config.Functional
	dir := s.project.FeaturesDir()

	artifacts, err := discovery.Features(dir, cfg.Extension)
	if err != nil {
		return errors.Configf("cannot search %s for feature files: %v", dir, err)
	}
	if len(artifacts) == 0 {
		out.Println("No feature files found in %s", dir)
		return nil
	}

	rows := make([][]string, 0, len(artifacts))
	for _, a := range artifacts {
		f, err := scenario.ParseFile(a.Path)
		if err != nil {
			return errors.Configf("%v", err)
		}
		rows = append(rows, []string{a.Rel, f.Name, strconv.Itoa(len(f.Scenarios))})
	}
	out.Table([]string{"File", "Feature", "Scenarios"}, rows, "Scenarios")
	return nil
}
