package project

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/feedhandlers/fhtest/internal/config"
	fherrors "github.com/feedhandlers/fhtest/internal/errors"
)

// Project represents a loaded harness project.
type Project struct {
	Root     string
	Config   *config.Config
	Warnings []string
	// HasConfigFile is false when defaults are in effect.
	HasConfigFile bool
}

// Load finds the project enclosing startDir. Without an fhtest.yaml the
// project root is startDir itself and the default configuration applies.
func Load(startDir string) (*Project, error) {
	root, err := FindRootFrom(startDir)
	if errors.Is(err, ErrNoProjectRoot) {
		abs, absErr := filepath.Abs(startDir)
		if absErr != nil {
			return nil, absErr
		}
		return &Project{Root: abs, Config: config.Default()}, nil
	}
	if err != nil {
		return nil, err
	}
	return LoadFrom(root)
}

// LoadFrom loads the configuration file of a known project root.
func LoadFrom(root string) (*Project, error) {
	configPath := filepath.Join(root, ConfigFileName)

	cfg, warnings, err := config.LoadAndValidate(configPath)
	if err != nil {
		e := fherrors.Configf("failed to load configuration: %v", err)
		e.Cause = err
		return nil, e
	}

	return &Project{
		Root:          root,
		Config:        cfg,
		Warnings:      warnings,
		HasConfigFile: true,
	}, nil
}

// ConfigPath returns the full path to the project configuration file.
func (p *Project) ConfigPath() string {
	return filepath.Join(p.Root, ConfigFileName)
}

// Resolve returns path unchanged when absolute and joined to the root otherwise.
func (p *Project) Resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(p.Root, path)
}

// UnitDir returns the absolute directory searched for test binaries.
func (p *Project) UnitDir() string {
	return p.Resolve(p.Config.Unit.Directory)
}

// FeaturesDir returns the absolute directory holding feature files.
func (p *Project) FeaturesDir() string {
	return p.Resolve(p.Config.Functional.Features)
}

// String describes the project for log records.
func (p *Project) String() string {
	if p.HasConfigFile {
		return fmt.Sprintf("%s (%s)", p.Root, ConfigFileName)
	}
	return fmt.Sprintf("%s (defaults)", p.Root)
}
