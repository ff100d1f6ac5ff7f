// Package discovery finds the files a run operates on: executable unit test
// binaries and feature files.
package discovery

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Options controls a directory walk.
type Options struct {
	// Suffix every candidate file name must end with, e.g. ".test".
	Suffix string
	// Exclude lists directory names that are never entered.
	Exclude []string
	// Executable restricts results to files with an execute bit set.
	Executable bool
}

// Artifact is one discovered file.
type Artifact struct {
	Path string // absolute or root-joined path
	Rel  string // path relative to the walk root
	Size int64
	Mode fs.FileMode
}

// Discover walks root depth-first in lexical order. Entries whose names start
// with "." are skipped, as are excluded directories.
func Discover(root string, opts Options) ([]Artifact, error) {
	excluded := make(map[string]bool, len(opts.Exclude))
	for _, name := range opts.Exclude {
		excluded[name] = true
	}

	var found []Artifact
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}
		name := d.Name()
		if strings.HasPrefix(name, ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if excluded[name] {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(name, opts.Suffix) {
			return nil
		}

		// Stat follows symlinks so linked binaries are judged by their target.
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			return nil
		}
		if opts.Executable && info.Mode().Perm()&0111 == 0 {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			rel = path
		}
		found = append(found, Artifact{Path: path, Rel: rel, Size: info.Size(), Mode: info.Mode()})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

// TestBinaries finds executable files named *suffix under root.
func TestBinaries(root, suffix string, exclude []string) ([]Artifact, error) {
	return Discover(root, Options{Suffix: suffix, Exclude: exclude, Executable: true})
}

// Features finds feature files named *ext under root.
func Features(root, ext string) ([]Artifact, error) {
	return Discover(root, Options{Suffix: ext})
}

// Paths returns the Path of every artifact.
func Paths(artifacts []Artifact) []string {
	paths := make([]string, len(artifacts))
	for i, a := range artifacts {
		paths[i] = a.Path
	}
	return paths
}
