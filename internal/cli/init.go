package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/feedhandlers/fhtest/internal/config"
	"github.com/feedhandlers/fhtest/internal/errors"
	"github.com/feedhandlers/fhtest/internal/project"
)

const configHeader = "# fhtest configuration. Every key is optional; the values below are the defaults.\n"

func initCommand() *cli.Command {
	return &cli.Command{
		Name:   "init",
		Usage:  "Write an fhtest.yaml with the default settings",
		Action: runInit,
	}
}

// runInit is idempotent: an existing configuration is left untouched.
func runInit(c *cli.Context) error {
	dir := c.String(ChdirFlag.Name)
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return errors.Environmentf("cannot determine the working directory: %v", err)
		}
		dir = wd
	}
	out := newOutput(c, c.App.Writer)
	path := filepath.Join(dir, project.ConfigFileName)

	if _, err := os.Stat(path); err == nil {
		out.Info("%s already exists (nothing to do)", path)
		return nil
	}

	data, err := defaultConfigYAML()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Environmentf("cannot write %s: %v", path, err)
	}
	out.Success("Created %s", path)
	return nil
}

func defaultConfigYAML() ([]byte, error) {
	data, err := yaml.Marshal(config.Default())
	if err != nil {
		return nil, fmt.Errorf("encode default configuration: %w", err)
	}
	return append([]byte(configHeader), data...), nil
}
