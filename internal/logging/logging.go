// Package logging constructs the structured logger shared by every component
// of a run.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"
	"golang.org/x/term"
)

// DefaultLevel is used when no level is configured.
const DefaultLevel = "warn"

// Config selects the destination and verbosity of log records.
type Config struct {
	Level string
	// Color forces color on or off; nil means "when Writer is a terminal".
	Color  *bool
	Writer io.Writer
}

// ParseLevel accepts the go-ethereum level names ("trace" through "crit")
// plus "warning" and "none".
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return log.LvlFromString(DefaultLevel)
	case "warning":
		return log.LevelWarn, nil
	case "none", "off":
		return log.LevelCrit + 1, nil
	}
	lvl, err := log.LvlFromString(strings.ToLower(s))
	if err != nil {
		return 0, fmt.Errorf("unknown log level %q", s)
	}
	return lvl, nil
}

// New builds the root logger of a run. Every record carries the run id.
func New(cfg Config, runID string) (log.Logger, error) {
	lvl, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	w := cfg.Writer
	if w == nil {
		w = os.Stderr
	}
	color := isTerminal(w)
	if cfg.Color != nil {
		color = *cfg.Color
	}
	logger := log.NewLogger(log.NewTerminalHandlerWithLevel(w, lvl, color))
	return logger.New("run", runID), nil
}

// Discard returns a logger that drops every record.
func Discard() log.Logger {
	return log.NewLogger(log.DiscardHandler())
}

// NewRunID returns a fresh identifier for one harness invocation.
func NewRunID() string {
	return uuid.NewString()
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
