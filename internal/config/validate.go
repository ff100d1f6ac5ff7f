package config

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Environment variable names must be valid shell identifiers.
var envNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks a configuration for errors and returns warnings for non-fatal issues.
// Defaults must already be applied.
func Validate(cfg *Config) (warnings []string, err error) {
	if err := validateUnit(cfg.Unit); err != nil {
		return nil, err
	}
	if err := validateFunctional(cfg.Functional); err != nil {
		return nil, err
	}
	for name := range cfg.Env {
		if !envNamePattern.MatchString(name) {
			return nil, &ValidationError{
				Field:   fmt.Sprintf("env.%s", name),
				Message: "must be a valid environment variable name",
			}
		}
	}

	if cfg.Unit.Jobs > 1 && cfg.Unit.ShouldCompile() && cfg.Unit.MakeTarget != "" {
		warnings = append(warnings, "unit.jobs > 1: binaries run concurrently after make; output is replayed in order")
	}
	return warnings, nil
}

func validateUnit(u *UnitConfig) error {
	if u.Jobs < 1 {
		return &ValidationError{Field: "unit.jobs", Message: "must be at least 1"}
	}
	if !strings.HasPrefix(u.CheckFlag, "-") {
		return &ValidationError{Field: "unit.check_flag", Message: `must start with "-"`}
	}
	if err := validateDuration("unit.timeout", u.Timeout); err != nil {
		return err
	}
	for _, name := range u.Exclude {
		if strings.ContainsRune(name, '/') {
			return &ValidationError{Field: "unit.exclude", Message: fmt.Sprintf("%q must be a directory name, not a path", name)}
		}
	}
	return nil
}

func validateFunctional(f *FunctionalConfig) error {
	if !strings.HasPrefix(f.Extension, ".") {
		return &ValidationError{Field: "functional.extension", Message: `must start with "."`}
	}
	return validateDuration("functional.default_timeout", f.DefaultTimeout)
}

func validateDuration(field, value string) error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return &ValidationError{Field: field, Message: fmt.Sprintf("invalid duration %q", value)}
	}
	if d <= 0 {
		return &ValidationError{Field: field, Message: "must be positive"}
	}
	return nil
}
