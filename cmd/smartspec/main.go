// Package main provides the entry point for the smartspec CLI.
package main

import (
	"context"
	"os"

	"github.com/mrz1836/smartspec/internal/cli"
	"github.com/mrz1836/smartspec/internal/signal"
)

// Build metadata, injected via ldflags.
//
//nolint:gochecknoglobals // Set at build time
var (
	version string
	commit  string
	date    string
)

func main() {
	handler := signal.NewHandler(context.Background())
	defer handler.Stop()

	code := cli.Run(handler.Context(), cli.BuildInfo{
		Version: version,
		Commit:  commit,
		Date:    date,
	})
	os.Exit(code)
}
