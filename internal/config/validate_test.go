package config

import (
	"errors"
	"strings"
	"testing"
)

func TestValidate_Invalid(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"jobs negative", func(c *Config) { c.Unit.Jobs = -1 }, "unit.jobs"},
		{"check flag", func(c *Config) { c.Unit.CheckFlag = "check" }, "unit.check_flag"},
		{"unit timeout", func(c *Config) { c.Unit.Timeout = "forever" }, "unit.timeout"},
		{"negative timeout", func(c *Config) { c.Unit.Timeout = "-1s" }, "unit.timeout"},
		{"exclude path", func(c *Config) { c.Unit.Exclude = []string{"a/b"} }, "unit.exclude"},
		{"extension", func(c *Config) { c.Functional.Extension = "func" }, "functional.extension"},
		{"step timeout", func(c *Config) { c.Functional.DefaultTimeout = "0s" }, "functional.default_timeout"},
		{"env name", func(c *Config) { c.Env["1BAD"] = "x" }, "env.1BAD"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := Default()
			tt.mutate(cfg)

			_, err := Validate(cfg)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Validate() error = %v, want ValidationError", err)
			}
			if verr.Field != tt.field {
				t.Errorf("Field = %q, want %q", verr.Field, tt.field)
			}
			if !strings.HasPrefix(verr.Error(), tt.field+": ") {
				t.Errorf("Error() = %q", verr.Error())
			}
		})
	}
}

func TestValidate_ParallelWarning(t *testing.T) {
	t.Parallel()
	cfg := Default()
	cfg.Unit.Jobs = 4

	warnings, err := Validate(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if len(warnings) != 1 || !strings.Contains(warnings[0], "unit.jobs") {
		t.Errorf("warnings = %v", warnings)
	}
}

func TestValidate_EnvNames(t *testing.T) {
	t.Parallel()
	cfg := Default()
	cfg.Env = map[string]string{"FH_HOME": "/opt", "_x1": "", "LD_LIBRARY_PATH": "lib"}

	if _, err := Validate(cfg); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}
