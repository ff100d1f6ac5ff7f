// Package process supervises child processes: it starts them with an
// environment overlay, drains stdout and stderr concurrently, waits for output
// or exit under a deadline, delivers signals and kills whatever is left running
// when its owner is done.
package process

import (
	"context"
	"os"
	"os/exec"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"golang.org/x/sync/errgroup"

	"github.com/feedhandlers/fhtest/internal/errors"
)

// Options configures a spawned process.
type Options struct {
	Args []string
	// Env is merged over the supervisor's environment.
	Env map[string]string
	// Dir is the working directory; empty means the current directory.
	Dir string
}

// Supervisor starts processes and owns them until Close.
type Supervisor struct {
	logger log.Logger
	env    map[string]string

	mu      sync.Mutex
	handles []*Handle
	closed  bool
}

// NewSupervisor creates a supervisor. env is overlaid on the ambient
// environment of every process it starts.
func NewSupervisor(logger log.Logger, env map[string]string) *Supervisor {
	if logger == nil {
		logger = log.NewLogger(log.DiscardHandler())
	}
	return &Supervisor{logger: logger, env: env}
}

// Spawn starts path with opts. It fails with a SpawnError when the executable
// cannot be found or started.
func (s *Supervisor) Spawn(path string, opts Options) (*Handle, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, errors.Precondition("supervisor is closed")
	}

	name := baseName(path)
	cmd := exec.Command(path, opts.Args...)
	cmd.Dir = opts.Dir
	cmd.Env = MergeEnv(os.Environ(), s.env, opts.Env)
	setProcessGroup(cmd)

	// Own pipes keep the read ends out of cmd.Wait, which would otherwise
	// close them before the readers finish.
	outR, outW, err := os.Pipe()
	if err != nil {
		return nil, errors.Spawn(path, err)
	}
	errR, errW, err := os.Pipe()
	if err != nil {
		closeAll(outR, outW)
		return nil, errors.Spawn(path, err)
	}
	cmd.Stdout = outW
	cmd.Stderr = errW

	stdin, err := cmd.StdinPipe()
	if err != nil {
		closeAll(outR, outW, errR, errW)
		return nil, errors.Spawn(path, err)
	}

	if err := cmd.Start(); err != nil {
		closeAll(outR, outW, errR, errW)
		s.logger.Debug("Spawn failed", "path", path, "err", err)
		return nil, errors.Spawn(path, err)
	}
	// The child holds its own copies of the write ends.
	closeAll(outW, errW)

	h := &Handle{
		path:    path,
		name:    name,
		cmd:     cmd,
		logger:  s.logger.New("proc", name, "pid", cmd.Process.Pid),
		stdin:   stdin,
		stdout:  newStream("stdout"),
		stderr:  newStream("stderr"),
		readers: []*os.File{outR, errR},
		exited:  make(chan struct{}),
		drained: make(chan struct{}),
	}
	h.logger.Debug("Started process", "path", path, "args", opts.Args)

	var g errgroup.Group
	g.Go(func() error { return h.stdout.readLines(outR) })
	g.Go(func() error { return h.stderr.readLines(errR) })
	go func() {
		h.drainErr = g.Wait()
		close(h.drained)
	}()

	go func() {
		_ = cmd.Wait()
		h.status = statusOf(cmd.ProcessState)
		h.logger.Debug("Process terminated", "status", h.status)
		close(h.exited)
	}()

	s.mu.Lock()
	s.handles = append(s.handles, h)
	s.mu.Unlock()
	return h, nil
}

// Run starts path with stdin at end of input, drains both streams and
// collects the exit status. The context bounds the whole run; on expiry the
// process is killed.
func (s *Supervisor) Run(ctx context.Context, path string, opts Options) (CapturedOutput, Status, error) {
	h, err := s.Spawn(path, opts)
	if err != nil {
		return CapturedOutput{}, Status{}, err
	}
	_ = h.Stdin().Close()
	out, err := h.Drain(ctx)
	if err != nil {
		_ = h.Kill()
		h.closeReaders()
		return out, Status{}, err
	}
	status, err := h.Wait(ctx)
	if err != nil {
		_ = h.Kill()
		return out, status, err
	}
	return out, status, nil
}

// Close kills every process that is still running, waits briefly for each to
// be reaped and releases the output pipes. The supervisor cannot spawn after Close.
func (s *Supervisor) Close() error {
	s.mu.Lock()
	s.closed = true
	handles := s.handles
	s.handles = nil
	s.mu.Unlock()

	var killErrs []error
	for _, h := range handles {
		if h.Running() {
			s.logger.Warn("Killing leftover process", "path", h.path, "pid", h.Pid())
			if err := h.Kill(); err != nil {
				killErrs = append(killErrs, err)
			}
			select {
			case <-h.exited:
			case <-time.After(5 * time.Second):
				s.logger.Error("Process did not exit after SIGKILL", "path", h.path, "pid", h.Pid())
			}
		}
		h.closeReaders()
	}
	if len(killErrs) > 0 {
		return killErrs[0]
	}
	return nil
}

// MergeEnv overlays each map onto base in order. Later values win. Keys added
// by overlays are appended in sorted order.
func MergeEnv(base []string, overlays ...map[string]string) []string {
	merged := make(map[string]string)
	var order []string
	for _, kv := range base {
		k, v, _ := strings.Cut(kv, "=")
		if _, seen := merged[k]; !seen {
			order = append(order, k)
		}
		merged[k] = v
	}
	for _, overlay := range overlays {
		keys := make([]string, 0, len(overlay))
		for k := range overlay {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if _, seen := merged[k]; !seen {
				order = append(order, k)
			}
			merged[k] = overlay[k]
		}
	}

	env := make([]string, 0, len(order))
	for _, k := range order {
		env = append(env, k+"="+merged[k])
	}
	return env
}

func closeAll(files ...*os.File) {
	for _, f := range files {
		_ = f.Close()
	}
}
