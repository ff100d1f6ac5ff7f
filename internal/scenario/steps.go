package scenario

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/acarl005/stripansi"
	"github.com/buildkite/shellwords"

	"github.com/feedhandlers/fhtest/internal/errors"
	"github.com/feedhandlers/fhtest/internal/process"
	"github.com/feedhandlers/fhtest/internal/project"
)

// distPlaceholder in an environment value expands to the FH_HOME of the
// current distribution.
const distPlaceholder = "[DIST]"

// DefaultRegistry returns the standard feed handler step vocabulary.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	// Setup
	r.Add(`an (\w+) feed handler`, stepFeedHandler)
	r.Add(`with code in (.+)`, stepCodeIn)
	r.Add(`with a binary named (\w+)`, stepBinaryNamed)
	r.Add(`with the arguments "(.+)"`, stepArguments)
	r.Add(`directory is changed to "(.+)"`, stepChangeDirectory)
	r.Add(`(\w+) is set to "(.+)"`, stepSetEnv)

	// Compilation
	r.Add(`the feed handler is compiled`, stepCompile)
	r.Add(`a make is performed on (.+) with target (.+)`, stepMake)
	r.Add(`the file (\w+) should be produced`, stepFileProduced)
	r.Add(`there should be no build products left`, stepNoBuildProducts)
	r.Add(`a standard directory structure should exist in the dist directory`, stepDistLayout)

	// Running a feed handler
	r.Add(`run`, stepRun)
	r.Add(`it should produce the string "(.+)" within (\d+) seconds`, stepProduce)
	r.Add(`terminate within (\d+) seconds`, stepTerminate)
	r.Add(`terminate on the signal (\w+) within (\d+) seconds`, stepTerminateOnSignal)
	r.Add(`exit with code (\d+)`, stepExitCode)
	r.Add(`not exit with code (\d+)`, stepNotExitCode)

	// Commands and captured output
	r.Add(`the command "(.+)" is run`, stepCommand)
	r.Add(`the command "(.+)" is run with captured output`, stepCommandCaptured)
	r.Add(`the binary (.+) is used`, stepBinaryUsed)
	r.Add(`the dist binary (.+) is used`, stepDistBinaryUsed)
	r.Add(`passed arguments "(.+)"`, stepArguments)
	r.Add(`run with captured output`, stepRunCaptured)
	r.Add(`"(.+)" is seen on (stdout|stderr)`, stepSeen)
	r.Add(`"(.+)" is not seen on (stdout|stderr)`, stepNotSeen)

	return r
}

func stepFeedHandler(w *World, args []string) error {
	w.fh = args[0]
	return nil
}

func stepCodeIn(w *World, args []string) error {
	w.compileDir = w.resolve(args[0])
	return nil
}

func stepBinaryNamed(w *World, args []string) error {
	w.binary = args[0]
	return nil
}

func stepArguments(w *World, args []string) error {
	words, err := shellwords.Split(args[0])
	if err != nil {
		return errors.Assertionf("cannot split arguments %q: %v", args[0], err)
	}
	w.args = words
	return nil
}

func stepChangeDirectory(w *World, args []string) error {
	dir := w.resolve(args[0])
	info, err := os.Stat(dir)
	if err != nil {
		return errors.Environmentf("cannot change directory to %s: %v", dir, err)
	}
	if !info.IsDir() {
		return errors.Environmentf("cannot change directory to %s: not a directory", dir)
	}
	w.dir = dir
	return nil
}

func stepSetEnv(w *World, args []string) error {
	name, value := args[0], args[1]
	if value == distPlaceholder {
		dist, err := w.distDir()
		if err != nil {
			return err
		}
		value = project.FHHome(dist)
	}
	w.env[name] = value
	return nil
}

func stepCompile(w *World, _ []string) error {
	if err := w.requireCompileDir(); err != nil {
		return err
	}
	return w.make(w.compileDir, "dist")
}

func stepMake(w *World, args []string) error {
	w.compileDir = w.resolve(args[0])
	return w.make(w.compileDir, args[1])
}

func (w *World) make(dir, target string) error {
	w.logger.Debug("Running make", "dir", dir, "target", target)
	return project.Make(w.ctx, w.sup, dir, target, func(line string) {
		w.logger.Debug("make", "line", line)
	})
}

func stepFileProduced(w *World, args []string) error {
	if err := w.requireCompileDir(); err != nil {
		return err
	}
	binDir, err := project.FindBinDir(w.compileDir)
	if err != nil {
		return errors.Assertionf("file %s was not produced: %v", args[0], err)
	}
	if _, err := os.Stat(filepath.Join(binDir, args[0])); err != nil {
		return errors.Assertionf("file %s was not produced in %s", args[0], binDir)
	}
	return nil
}

func stepNoBuildProducts(w *World, _ []string) error {
	if err := w.requireCompileDir(); err != nil {
		return err
	}
	if err := w.requireFH(); err != nil {
		return err
	}
	bs, err := w.getBuildString()
	if err != nil {
		return err
	}
	revisionHeader := fmt.Sprintf("fh_%s_revision.h", strings.ToLower(w.fh))

	var leftovers []string
	err = filepath.WalkDir(w.compileDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(w.compileDir, path)
		if err != nil || rel == "." {
			return err
		}
		if strings.Contains(rel, bs) || strings.Contains(rel, revisionHeader) {
			leftovers = append(leftovers, rel)
			if d.IsDir() {
				return filepath.SkipDir
			}
		}
		return nil
	})
	if err != nil {
		return errors.Environmentf("cannot inspect %s: %v", w.compileDir, err)
	}
	if len(leftovers) > 0 {
		return errors.Assertionf("build products left in %s: %s", w.compileDir, strings.Join(leftovers, ", "))
	}
	return nil
}

// distLayout lists what every feed handler distribution contains.
var distLayout = struct {
	dirs  []string
	files []string
}{
	dirs:  []string{"bin", "etc", "plugins"},
	files: []string{"bin/fhitch_v1", "etc/itch.conf"},
}

func stepDistLayout(w *World, _ []string) error {
	if err := w.requireFH(); err != nil {
		return err
	}
	dist, err := w.distDir()
	if err != nil {
		return err
	}
	fhDir := project.FeedHandlerDir(dist, w.fh)
	if err := expectDir(fhDir); err != nil {
		return err
	}
	for _, d := range distLayout.dirs {
		if err := expectDir(filepath.Join(fhDir, d)); err != nil {
			return err
		}
	}
	for _, f := range distLayout.files {
		path := filepath.Join(fhDir, filepath.FromSlash(f))
		info, err := os.Stat(path)
		if err != nil {
			return errors.Assertionf("expected file %s to exist", path)
		}
		if info.IsDir() {
			return errors.Assertionf("expected %s to be a file, found a directory", path)
		}
	}
	return nil
}

func expectDir(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return errors.Assertionf("expected directory %s to exist", path)
	}
	if !info.IsDir() {
		return errors.Assertionf("expected %s to be a directory", path)
	}
	return nil
}

func stepRun(w *World, _ []string) error {
	if err := w.requireFH(); err != nil {
		return err
	}
	if err := w.requireBinary(); err != nil {
		return err
	}
	dist, err := project.FindDistDir(w.cfg.Root)
	if err != nil {
		return err
	}
	env := w.Env()
	env["FH_HOME"] = project.FHHome(dist)

	h, err := w.sup.Spawn(project.FeedHandlerBinary(dist, w.fh, w.binary), process.Options{
		Args: w.args,
		Env:  env,
		Dir:  w.dir,
	})
	if err != nil {
		return err
	}
	w.handle = h
	w.lastStatus, w.exitCode = nil, nil
	return nil
}

func stepProduce(w *World, args []string) error {
	if err := w.requireHandle(); err != nil {
		return err
	}
	_, err := w.handle.AwaitLine(args[0], parseSeconds(args[1]))
	return err
}

func stepTerminate(w *World, args []string) error {
	if err := w.requireHandle(); err != nil {
		return err
	}
	return w.awaitTermination(parseSeconds(args[0]))
}

func stepTerminateOnSignal(w *World, args []string) error {
	if err := w.requireHandle(); err != nil {
		return err
	}
	if err := w.handle.Signal(args[0]); err != nil {
		return err
	}
	return w.awaitTermination(parseSeconds(args[1]))
}

func (w *World) awaitTermination(bound time.Duration) error {
	status, err := w.handle.AwaitExit(bound)
	if err != nil {
		return err
	}
	w.setStatus(status)
	w.handle = nil
	return nil
}

func stepExitCode(w *World, args []string) error {
	if err := w.requireExitCode(); err != nil {
		return err
	}
	want, _ := strconv.Atoi(args[0])
	if *w.exitCode != want {
		return errors.Assertionf("expected exit code %d, got %d", want, *w.exitCode)
	}
	return nil
}

func stepNotExitCode(w *World, args []string) error {
	if err := w.requireExitCode(); err != nil {
		return err
	}
	unwanted, _ := strconv.Atoi(args[0])
	if *w.exitCode == unwanted {
		return errors.Assertionf("expected an exit code other than %d", unwanted)
	}
	return nil
}

func stepCommand(w *World, args []string) error {
	_, _, err := w.runCommand(args[0])
	return err
}

func stepCommandCaptured(w *World, args []string) error {
	out, status, err := w.runCommand(args[0])
	if err != nil {
		return err
	}
	w.captured = &out
	w.setStatus(status)
	return nil
}

func (w *World) runCommand(command string) (process.CapturedOutput, process.Status, error) {
	words, err := shellwords.Split(command)
	if err != nil {
		return process.CapturedOutput{}, process.Status{}, errors.Assertionf("cannot split command %q: %v", command, err)
	}
	if len(words) == 0 {
		return process.CapturedOutput{}, process.Status{}, errors.Assertionf("empty command")
	}
	return w.capture(words[0], words[1:])
}

// capture runs path to completion within the default timeout.
func (w *World) capture(path string, args []string) (process.CapturedOutput, process.Status, error) {
	ctx, cancel := w.timeoutContext()
	defer cancel()
	out, status, err := w.sup.Run(ctx, path, process.Options{Args: args, Env: w.Env(), Dir: w.dir})
	if err != nil && ctx.Err() != nil {
		return out, status, errors.Timeout(filepath.Base(path), w.cfg.DefaultTimeout, "")
	}
	w.logger.Debug("Command finished", "path", path, "status", status)
	return out, status, err
}

func stepBinaryUsed(w *World, args []string) error {
	w.binary = args[0]
	return nil
}

func stepDistBinaryUsed(w *World, args []string) error {
	dist, err := w.distDir()
	if err != nil {
		return err
	}
	w.binary = filepath.Join(project.FHHome(dist), args[0])
	return nil
}

func stepRunCaptured(w *World, _ []string) error {
	if err := w.requireBinary(); err != nil {
		return err
	}
	out, status, err := w.capture(w.binary, w.args)
	if err != nil {
		return err
	}
	w.captured = &out
	w.setStatus(status)
	return nil
}

func stepSeen(w *World, args []string) error {
	found, err := w.seen(args[0], args[1])
	if err != nil {
		return err
	}
	if !found {
		return errors.Assertionf("string '%s' not found in the %s stream", args[0], args[1])
	}
	return nil
}

func stepNotSeen(w *World, args []string) error {
	found, err := w.seen(args[0], args[1])
	if err != nil {
		return err
	}
	if found {
		return errors.Assertionf("string '%s' found in the %s stream", args[0], args[1])
	}
	return nil
}

func (w *World) seen(pattern, stream string) (bool, error) {
	if err := w.requireCaptured(); err != nil {
		return false, err
	}
	lines := w.captured.Stdout
	if stream == "stderr" {
		lines = w.captured.Stderr
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		re = regexp.MustCompile(regexp.QuoteMeta(pattern))
	}
	for _, line := range lines {
		if re.MatchString(stripansi.Strip(line)) {
			return true, nil
		}
	}
	return false, nil
}
