package project

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/feedhandlers/fhtest/internal/errors"
	"github.com/feedhandlers/fhtest/internal/process"
)

// DistPrefix starts the name of every distribution directory.
const DistPrefix = "dist_"

// BuildString asks the project's Makefile for the build string
// (make -s -C root buildstring).
func BuildString(ctx context.Context, sup *process.Supervisor, root string) (string, error) {
	out, status, err := sup.Run(ctx, "make", process.Options{Args: []string{"-s", "-C", root, "buildstring"}})
	if err != nil {
		e := errors.Environmentf("cannot determine build string: %v", err)
		e.Cause = err
		return "", e
	}
	if !status.Exited(0) {
		return "", errors.Environmentf("make buildstring failed (%s): %s", status, strings.Join(out.Stderr, "\n"))
	}
	bs := strings.TrimSpace(strings.Join(out.Stdout, "\n"))
	if bs == "" {
		return "", errors.Environment("make buildstring printed nothing")
	}
	return bs, nil
}

// DistDir returns root/dist_<buildString>.
func DistDir(root, buildString string) string {
	return filepath.Join(root, DistPrefix+buildString)
}

// FindDistDir returns the first dist_* directory under root in name order.
func FindDistDir(root string) (string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return "", err
	}
	for _, entry := range entries {
		if entry.IsDir() && strings.HasPrefix(entry.Name(), DistPrefix) {
			return filepath.Join(root, entry.Name()), nil
		}
	}
	return "", errors.Environmentf("no %s* directory in %s", DistPrefix, root)
}

// FHHome returns the FH_HOME directory of a distribution.
func FHHome(distDir string) string {
	return filepath.Join(distDir, "fh")
}

// FeedHandlerDir returns the install directory of one feed handler.
func FeedHandlerDir(distDir, fh string) string {
	return filepath.Join(FHHome(distDir), strings.ToLower(fh))
}

// FeedHandlerBinary returns the path of a feed handler executable.
func FeedHandlerBinary(distDir, fh, binary string) string {
	return filepath.Join(FeedHandlerDir(distDir, fh), "bin", strings.ToLower(binary))
}

// FindBinDir returns the first bin_* directory of a compile directory.
func FindBinDir(compileDir string) (string, error) {
	entries, err := os.ReadDir(compileDir)
	if err != nil {
		return "", err
	}
	for _, entry := range entries {
		if entry.IsDir() && strings.HasPrefix(entry.Name(), "bin_") {
			return filepath.Join(compileDir, entry.Name()), nil
		}
	}
	return "", errors.Environmentf("no bin_* directory in %s", compileDir)
}
