package project

import (
	"context"
	"strings"

	"github.com/feedhandlers/fhtest/internal/errors"
	"github.com/feedhandlers/fhtest/internal/process"
)

// NoTarget is the make target placeholder meaning "the default goal".
const NoTarget = "[NONE]"

// failureMarker appears in make's diagnostics when a recipe fails.
const failureMarker = "***"

// MakeArgs returns the arguments for running make in dir with target.
func MakeArgs(dir, target string) []string {
	args := []string{"-C", dir}
	if target != "" && target != NoTarget {
		args = append(args, target)
	}
	return args
}

// Make runs make in dir with target. Every stderr line is passed to onStderr
// as it arrives; a line containing "***" marks the compilation as failed.
// Make's exit code is ignored, only its diagnostics decide.
func Make(ctx context.Context, sup *process.Supervisor, dir, target string, onStderr func(string)) error {
	h, err := sup.Spawn("make", process.Options{Args: MakeArgs(dir, target)})
	if err != nil {
		e := errors.Environmentf("cannot run make: %v", err)
		e.Cause = err
		return e
	}
	_ = h.Stdin().Close()

	failed := false
	err = h.Stderr().Follow(ctx, func(line string) {
		if strings.Contains(line, failureMarker) {
			failed = true
		}
		if onStderr != nil {
			onStderr(line)
		}
	})
	if err != nil {
		_ = h.Kill()
		return errors.Wrap(err, "make interrupted")
	}
	if _, err := h.Wait(ctx); err != nil {
		_ = h.Kill()
		return errors.Wrap(err, "make interrupted")
	}

	if failed {
		return errors.Environmentf("compilation failed in %s", dir)
	}
	return nil
}
