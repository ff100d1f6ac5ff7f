// Package config provides configuration loading and validation for fhtest.yaml.
package config

import "time"

// Config represents the complete fhtest.yaml configuration.
type Config struct {
	Unit        *UnitConfig       `yaml:"unit,omitempty" json:"unit,omitempty"`
	Functional  *FunctionalConfig `yaml:"functional,omitempty" json:"functional,omitempty"`
	Env         map[string]string `yaml:"env,omitempty" json:"env,omitempty"`
	MetricsFile string            `yaml:"metrics_file,omitempty" json:"metrics_file,omitempty"`
}

// UnitConfig configures the unit test driver.
type UnitConfig struct {
	Directory  string   `yaml:"directory,omitempty" json:"directory,omitempty"`
	Compile    *bool    `yaml:"compile,omitempty" json:"compile,omitempty"` // Run make before the tests (default: true)
	MakeTarget string   `yaml:"make_target,omitempty" json:"make_target,omitempty"`
	CheckFlag  string   `yaml:"check_flag,omitempty" json:"check_flag,omitempty"`
	Suffix     string   `yaml:"suffix,omitempty" json:"suffix,omitempty"`
	Exclude    []string `yaml:"exclude,omitempty" json:"exclude,omitempty"`
	Jobs       int      `yaml:"jobs,omitempty" json:"jobs,omitempty"`
	Timeout    string   `yaml:"timeout,omitempty" json:"timeout,omitempty"` // Per-binary bound, e.g. "5m"
}

// FunctionalConfig configures the feature runner.
type FunctionalConfig struct {
	Features       string `yaml:"features,omitempty" json:"features,omitempty"`
	Extension      string `yaml:"extension,omitempty" json:"extension,omitempty"`
	OutputDir      string `yaml:"output_dir,omitempty" json:"output_dir,omitempty"`
	SuitePrefix    string `yaml:"suite_prefix,omitempty" json:"suite_prefix,omitempty"`
	DefaultTimeout string `yaml:"default_timeout,omitempty" json:"default_timeout,omitempty"`
}

// ShouldCompile reports whether make runs before the unit tests.
func (u *UnitConfig) ShouldCompile() bool {
	return u.Compile == nil || *u.Compile
}

// TimeoutDuration returns the per-binary bound. Validate guarantees it parses.
func (u *UnitConfig) TimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(u.Timeout)
	return d
}

// DefaultTimeoutDuration returns the bound used by steps that do not name one.
func (f *FunctionalConfig) DefaultTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(f.DefaultTimeout)
	return d
}
