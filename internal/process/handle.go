package process

import (
	"context"
	stderrors "errors"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/acarl005/stripansi"
	"github.com/ethereum/go-ethereum/log"

	"github.com/feedhandlers/fhtest/internal/errors"
)

// CapturedOutput holds the complete output of a drained process.
type CapturedOutput struct {
	Stdout []string
	Stderr []string
}

// Handle is a running or finished child process. A Handle belongs to one
// owner; its exit status can be collected once.
type Handle struct {
	path   string
	name   string
	cmd    *exec.Cmd
	logger log.Logger

	stdin  io.WriteCloser
	stdout *Stream
	stderr *Stream
	// read ends of the output pipes, closed by Close to abandon stuck reads
	readers []*os.File

	exited   chan struct{}
	status   Status
	drained  chan struct{}
	drainErr error

	mu        sync.Mutex
	collected bool

	// cursorMu serializes AwaitLine calls over the stdout cursor.
	cursorMu sync.Mutex
	cursor   int
}

// Pid returns the OS process identifier.
func (h *Handle) Pid() int {
	return h.cmd.Process.Pid
}

// Path returns the executable path the process was started with.
func (h *Handle) Path() string {
	return h.path
}

// Name returns the base name of the executable, used in error messages.
func (h *Handle) Name() string {
	return h.name
}

// Stdin returns the write end of the child's standard input.
func (h *Handle) Stdin() io.WriteCloser {
	return h.stdin
}

// Stdout returns the captured standard output.
func (h *Handle) Stdout() *Stream {
	return h.stdout
}

// Stderr returns the captured standard error.
func (h *Handle) Stderr() *Stream {
	return h.stderr
}

// Running reports whether the process has not yet terminated.
func (h *Handle) Running() bool {
	select {
	case <-h.exited:
		return false
	default:
		return true
	}
}

// Done returns a channel closed when the process terminates.
func (h *Handle) Done() <-chan struct{} {
	return h.exited
}

// AwaitLine waits for a stdout line matching pattern. The pattern is a regular
// expression, or a literal substring when it does not compile. ANSI escapes are
// ignored when matching. Successive calls continue after the previous match.
//
// It fails with a TimeoutError when timeout elapses first and with an
// ExitedError when stdout closes without a match.
func (h *Handle) AwaitLine(pattern string, timeout time.Duration) (string, error) {
	re := compilePattern(pattern)
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	h.cursorMu.Lock()
	defer h.cursorMu.Unlock()
	for {
		lines, closed, changed := h.stdout.since(h.cursor)
		for i, line := range lines {
			if re.MatchString(stripansi.Strip(line)) {
				h.cursor += i + 1
				return line, nil
			}
		}
		h.cursor += len(lines)
		if closed {
			return "", errors.Exited(h.name, pattern)
		}

		select {
		case <-changed:
		case <-timer.C:
			return "", errors.Timeout(h.name, timeout, pattern)
		}
	}
}

// Wait blocks until the process terminates or ctx is done and returns its
// status. The status can be collected only once; later calls fail with a
// precondition error.
func (h *Handle) Wait(ctx context.Context) (Status, error) {
	select {
	case <-h.exited:
	case <-ctx.Done():
		return Status{State: StateRunning, Code: -1}, ctx.Err()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.collected {
		return Status{}, errors.Precondition("exit status of " + h.name + " was already collected")
	}
	h.collected = true
	return h.status, nil
}

// AwaitExit waits up to timeout for the process to terminate. It fails with a
// TimeoutError if the process is still running when timeout elapses.
func (h *Handle) AwaitExit(timeout time.Duration) (Status, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	status, err := h.Wait(ctx)
	if stderrors.Is(err, context.DeadlineExceeded) {
		return status, errors.Timeout(h.name, timeout, "")
	}
	return status, err
}

// Signal delivers the named signal ("TERM", "SIGINT", "KILL", ...) without
// waiting for the process to react. It fails with a SignalError when the
// process has already terminated.
func (h *Handle) Signal(name string) error {
	sig, err := lookupSignal(name)
	if err != nil {
		return errors.Signal(h.name, name, err)
	}
	if !h.Running() {
		return errors.Signal(h.name, signalName(sig), os.ErrProcessDone)
	}
	if err := h.cmd.Process.Signal(sig); err != nil {
		return errors.Signal(h.name, signalName(sig), err)
	}
	h.logger.Debug("Delivered signal", "signal", signalName(sig))
	return nil
}

// Kill forcibly terminates the process and its process group.
func (h *Handle) Kill() error {
	if !h.Running() {
		return nil
	}
	if err := killGroup(h.cmd.Process); err != nil && !stderrors.Is(err, os.ErrProcessDone) {
		return errors.Signal(h.name, "SIGKILL", err)
	}
	return nil
}

// Drain waits until both stdout and stderr reach end of input and returns
// everything captured.
func (h *Handle) Drain(ctx context.Context) (CapturedOutput, error) {
	select {
	case <-h.drained:
	case <-ctx.Done():
		return h.Captured(), ctx.Err()
	}
	return h.Captured(), h.drainErr
}

// Captured returns a snapshot of both streams without waiting.
func (h *Handle) Captured() CapturedOutput {
	return CapturedOutput{Stdout: h.stdout.Lines(), Stderr: h.stderr.Lines()}
}

// closeReaders closes the read ends of the output pipes. Pending reads return
// and the streams close with what they captured.
func (h *Handle) closeReaders() {
	for _, r := range h.readers {
		_ = r.Close()
	}
}

func compilePattern(pattern string) *regexp.Regexp {
	if re, err := regexp.Compile(pattern); err == nil {
		return re
	}
	return regexp.MustCompile(regexp.QuoteMeta(pattern))
}

func baseName(path string) string {
	return filepath.Base(path)
}
