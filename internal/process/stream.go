package process

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"sync"
)

// Stream is the append-only sequence of lines captured from one output of a
// child process. It grows while the child writes and is read-only once closed.
type Stream struct {
	name string

	mu      sync.Mutex
	lines   []string
	closed  bool
	changed chan struct{}
}

func newStream(name string) *Stream {
	return &Stream{name: name, changed: make(chan struct{})}
}

// Name returns "stdout" or "stderr".
func (s *Stream) Name() string {
	return s.name
}

// Lines returns a snapshot of the lines captured so far.
func (s *Stream) Lines() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.lines...)
}

// since returns the lines after index from, whether the stream is closed, and
// a channel that is closed on the next change.
func (s *Stream) since(from int) ([]string, bool, <-chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var lines []string
	if from < len(s.lines) {
		lines = append(lines, s.lines[from:]...)
	}
	return lines, s.closed, s.changed
}

func (s *Stream) append(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = append(s.lines, line)
	close(s.changed)
	s.changed = make(chan struct{})
}

func (s *Stream) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.changed)
	s.changed = make(chan struct{})
}

// Follow calls fn for every line of the stream in order, starting with the
// first, as lines arrive. It returns when the stream closes or ctx is done.
func (s *Stream) Follow(ctx context.Context, fn func(line string)) error {
	next := 0
	for {
		lines, closed, changed := s.since(next)
		for _, line := range lines {
			fn(line)
		}
		next += len(lines)
		if closed {
			return nil
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// readLines drains r into s until end of input. Lines are newline-trimmed and
// a final unterminated line is kept. Closing r from another goroutine ends the
// read without an error.
func (s *Stream) readLines(r io.Reader) error {
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadString('\n')
		if line != "" {
			s.append(strings.TrimRight(line, "\r\n"))
		}
		if err == nil {
			continue
		}
		if errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) {
			s.close()
			return nil
		}
		s.close()
		return err
	}
}
