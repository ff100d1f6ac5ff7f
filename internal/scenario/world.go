package scenario

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/feedhandlers/fhtest/internal/errors"
	"github.com/feedhandlers/fhtest/internal/process"
	"github.com/feedhandlers/fhtest/internal/project"
)

// Config is shared by every World of a run.
type Config struct {
	// Root is the project root; relative step paths resolve against it.
	Root string
	// Env is overlaid on the ambient environment of every spawned process.
	Env map[string]string
	// DefaultTimeout bounds processes run to completion by steps.
	// Builds are unbounded.
	DefaultTimeout time.Duration
	Logger         log.Logger
	// BuildString returns the build string of Root. Nil asks make.
	BuildString func(ctx context.Context) (string, error)
}

// World is the state one scenario builds up step by step. Nothing is shared
// between scenarios: each World owns its supervisor, working directory and
// environment overlay.
type World struct {
	cfg    Config
	ctx    context.Context
	sup    *process.Supervisor
	logger log.Logger

	dir string
	env map[string]string

	fh         string
	binary     string
	args       []string
	compileDir string

	handle     *process.Handle
	lastStatus *process.Status
	exitCode   *int

	captured *process.CapturedOutput

	buildOnce   sync.Once
	buildString string
	buildErr    error
}

// NewWorld creates the state of a fresh scenario.
func NewWorld(ctx context.Context, cfg Config) *World {
	if cfg.Logger == nil {
		cfg.Logger = log.NewLogger(log.DiscardHandler())
	}
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = 10 * time.Second
	}
	env := make(map[string]string, len(cfg.Env))
	for k, v := range cfg.Env {
		env[k] = v
	}
	return &World{
		cfg:    cfg,
		ctx:    ctx,
		sup:    process.NewSupervisor(cfg.Logger.New("component", "supervisor"), nil),
		logger: cfg.Logger,
		dir:    cfg.Root,
		env:    env,
	}
}

// Close kills any process the scenario left running.
func (w *World) Close() error {
	return w.sup.Close()
}

// Dir returns the working directory for processes started by steps.
func (w *World) Dir() string {
	return w.dir
}

// Env returns a copy of the scenario's environment overlay.
func (w *World) Env() map[string]string {
	out := make(map[string]string, len(w.env))
	for k, v := range w.env {
		out[k] = v
	}
	return out
}

// ExitCode returns the recorded exit code, if any.
func (w *World) ExitCode() (int, bool) {
	if w.exitCode == nil {
		return 0, false
	}
	return *w.exitCode, true
}

// resolve joins relative paths to the project root.
func (w *World) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(w.cfg.Root, path)
}

func (w *World) requireFH() error {
	if w.fh == "" {
		return errors.Precondition("a feed handler must be named first (an <NAME> feed handler)")
	}
	return nil
}

func (w *World) requireCompileDir() error {
	if w.compileDir == "" {
		return errors.Precondition("a compile directory must be set first (with code in <DIR>)")
	}
	return nil
}

func (w *World) requireBinary() error {
	if w.binary == "" {
		return errors.Precondition("a binary must be chosen first")
	}
	return nil
}

func (w *World) requireHandle() error {
	if w.handle == nil {
		return errors.Precondition("a process handle must exist (run the feed handler first)")
	}
	return nil
}

func (w *World) requireExitCode() error {
	if w.exitCode != nil {
		return nil
	}
	if w.lastStatus != nil {
		return errors.Precondition(fmt.Sprintf("the process has no exit code: it was %s", w.lastStatus))
	}
	return errors.Precondition("an exit code must be recorded first")
}

func (w *World) requireCaptured() error {
	if w.captured == nil {
		return errors.Precondition("output must be captured first (run with captured output)")
	}
	return nil
}

// setStatus records how the last process ended. Only a normal exit has an
// exit code.
func (w *World) setStatus(s process.Status) {
	w.lastStatus = &s
	w.exitCode = nil
	if s.State == process.StateExited {
		code := s.Code
		w.exitCode = &code
	}
}

// getBuildString asks once per scenario.
func (w *World) getBuildString() (string, error) {
	w.buildOnce.Do(func() {
		if w.cfg.BuildString != nil {
			w.buildString, w.buildErr = w.cfg.BuildString(w.ctx)
			return
		}
		w.buildString, w.buildErr = project.BuildString(w.ctx, w.sup, w.cfg.Root)
	})
	return w.buildString, w.buildErr
}

// distDir returns root/dist_<buildstring>.
func (w *World) distDir() (string, error) {
	bs, err := w.getBuildString()
	if err != nil {
		return "", err
	}
	return project.DistDir(w.cfg.Root, bs), nil
}

func (w *World) timeoutContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(w.ctx, w.cfg.DefaultTimeout)
}

func parseSeconds(s string) time.Duration {
	n, _ := strconv.Atoi(s)
	return time.Duration(n) * time.Second
}
