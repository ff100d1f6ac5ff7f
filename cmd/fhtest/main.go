// Package main is the entry point for the fhtest CLI.
package main

import (
	"os"

	"github.com/feedhandlers/fhtest/internal/cli"
)

func main() {
	os.Exit(cli.Run(os.Args))
}
