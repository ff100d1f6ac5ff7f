// Package cli provides the fhtest command-line interface.
package cli

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/feedhandlers/fhtest/internal/errors"
	"github.com/feedhandlers/fhtest/internal/output"
)

// Version is set at build time.
var Version = "dev"

// Run executes the CLI with the given arguments and returns an exit code.
func Run(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return RunContext(ctx, args, os.Stdout, os.Stderr)
}

// RunContext runs the CLI on the given writers. Cancelling ctx stops the run
// and kills every process it started.
func RunContext(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	app := NewApp(stdout, stderr)
	err := app.RunContext(ctx, args)
	return exitCode(err, stderr)
}

// NewApp builds the fhtest application.
func NewApp(stdout, stderr io.Writer) *cli.App {
	return &cli.App{
		Name:                 "fhtest",
		Usage:                "Feed handler test harness",
		Description:          "Runs C unit test binaries and functional feature files against feed handler builds.",
		Version:              Version,
		Writer:               stdout,
		ErrWriter:            stderr,
		Flags:                globalFlags,
		EnableBashCompletion: true,
		Commands: []*cli.Command{
			unitCommand(),
			functionalCommand(),
			listCommand(),
			configCommand(),
			initCommand(),
			versionCommand(),
		},
		// Exit codes are computed by RunContext; the library must not exit.
		ExitErrHandler: func(*cli.Context, error) {},
	}
}

// exitCode maps the error returned by the application to a process exit code.
// Errors that carry a code (harness errors and result codes) keep it; flag
// and usage errors are configuration errors.
func exitCode(err error, stderr io.Writer) int {
	if err == nil {
		return errors.ExitSuccess
	}
	if msg := err.Error(); msg != "" {
		output.NewWithWriters(io.Discard, stderr, false).ErrorPrefix("%s", msg)
	}
	var coder cli.ExitCoder
	if stderrors.As(err, &coder) {
		return coder.ExitCode()
	}
	if stderrors.Is(err, context.Canceled) {
		return errors.ExitErrors
	}
	return errors.ExitConfigError
}

// resultCode ends a command whose outcome is already printed.
func resultCode(code int) error {
	if code == errors.ExitSuccess {
		return nil
	}
	return cli.Exit("", code)
}

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Print the fhtest version",
		Action: func(c *cli.Context) error {
			_, err := fmt.Fprintf(c.App.Writer, "fhtest %s\n", Version)
			return err
		},
	}
}
