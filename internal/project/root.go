// Package project locates the project root and wraps the make-based build
// conventions of a feed handler tree: compiling, the build string and the
// dist_<buildstring> distribution layout.
package project

import (
	"errors"
	"os"
	"path/filepath"
)

// ConfigFileName is the name of the optional configuration file that marks a project root.
const ConfigFileName = "fhtest.yaml"

// ErrNoProjectRoot is returned when fhtest.yaml is not found.
var ErrNoProjectRoot = errors.New("fhtest.yaml not found in the current directory or any parent")

// FindRootFrom walks up from the given directory until it finds fhtest.yaml.
func FindRootFrom(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	for {
		configPath := filepath.Join(dir, ConfigFileName)
		if info, err := os.Stat(configPath); err == nil && !info.IsDir() {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root
			return "", ErrNoProjectRoot
		}
		dir = parent
	}
}
