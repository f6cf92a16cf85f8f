// Package cli provides the command-line interface for SmartSpec.
package cli

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mrz1836/smartspec/internal/errors"
	"github.com/mrz1836/smartspec/internal/orchestrator"
	"github.com/mrz1836/smartspec/internal/tui"
)

// BuildInfo contains version information set at build time via ldflags.
type BuildInfo struct {
	// Version is the semantic version (e.g., "1.0.0").
	Version string
	// Commit is the git commit hash.
	Commit string
	// Date is the build date.
	Date string
}

// shutdownGrace bounds how long Close waits for live executions to drain
// after a command finishes.
const shutdownGrace = 10 * time.Second

// globalLogger stores the initialized logger for use by subcommands.
// This is set during PersistentPreRunE and should be accessed via GetLogger.
// Access is protected by globalLoggerMu for thread safety.
var (
	globalLogger   zerolog.Logger //nolint:gochecknoglobals // CLI logger requires global access
	globalLoggerMu sync.RWMutex   //nolint:gochecknoglobals // Protects globalLogger
)

// GetLogger returns the initialized logger for use by subcommands.
//
// This function MUST only be called after the root command's
// PersistentPreRunE has executed; before initialization it returns a
// zero-value logger that discards all output. Safe for concurrent use.
func GetLogger() zerolog.Logger {
	globalLoggerMu.RLock()
	defer globalLoggerMu.RUnlock()
	return globalLogger
}

// newRootCmd creates the root command for the smartspec CLI. The
// function-based construction avoids package-level command globals and
// keeps the tree testable.
func newRootCmd(flags *GlobalFlags, info BuildInfo) *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "smartspec",
		Short: "SmartSpec - specification-driven development automation",
		Long: `SmartSpec drives the SPEC → PLAN → TASKS → IMPLEMENT → VERIFY → SYNC
pipeline over governed Markdown bundles under specs/.

Features:
  • Evidence-based task verification against the working tree
  • Checkpointed workflow executions with resume and cancel
  • Human-in-the-loop approval pauses
  • Credit-gated LLM gateway with provider fallback
  • State-based next-workflow recommendations`,
		Version: formatVersion(info),
		// Run displays help when the root command is invoked without
		// subcommands, so PersistentPreRunE still validates flags.
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := BindGlobalFlags(v, cmd); err != nil {
				return fmt.Errorf("failed to bind flags: %w", err)
			}

			if !IsValidOutputFormat(flags.Output) {
				return fmt.Errorf("%w: %q must be one of %v",
					errors.ErrInvalidOutputFormat, flags.Output, ValidOutputFormats())
			}

			globalLoggerMu.Lock()
			globalLogger = InitLogger(flags.Verbose, flags.Quiet)
			globalLoggerMu.Unlock()

			tui.CheckNoColor()
			return nil
		},
		// We render our own error messages with remediation hints.
		SilenceUsage: true,
	}

	AddGlobalFlags(cmd, flags)

	AddRecommendCommand(cmd, flags)
	AddRunCommand(cmd, flags)
	AddStatusCommand(cmd, flags)
	AddEventsCommand(cmd, flags)
	AddRespondCommand(cmd, flags)
	AddCancelCommand(cmd, flags)
	AddResumeCommand(cmd, flags)
	AddAskCommand(cmd, flags)
	AddVerifyCommand(cmd, flags)
	AddWatchCommand(cmd, flags)
	AddWorkflowsCommand(cmd, flags)
	AddCreditsCommand(cmd, flags)
	AddUsersCommand(cmd, flags)
	AddProvidersCommand(cmd, flags)

	return cmd
}

// formatVersion creates the version string from build info.
func formatVersion(info BuildInfo) string {
	if info.Version == "" {
		info.Version = "dev"
	}
	if info.Commit == "" {
		info.Commit = "none"
	}
	if info.Date == "" {
		info.Date = "unknown"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", info.Version, info.Commit, info.Date)
}

// Execute runs the root command with the provided context and build info.
func Execute(ctx context.Context, info BuildInfo) error {
	flags := &GlobalFlags{}
	//nolint:contextcheck // Cobra command pattern uses cmd.Context() internally
	cmd := newRootCmd(flags, info)
	err := cmd.ExecuteContext(ctx)
	CloseLogFile()
	return err
}

// Run executes the CLI, renders any failure with its remediation hint, and
// returns the process exit code.
func Run(ctx context.Context, info BuildInfo) int {
	err := Execute(ctx, info)
	if err == nil {
		return ExitSuccess
	}

	out := tui.NewTTYOutput(os.Stderr)
	out.Error(tui.WrapWithSuggestion(err))
	return ExitCodeForError(err)
}

// closeSystem shuts the orchestrator down with a bounded grace period,
// logging rather than failing the command when draining times out.
func closeSystem(o *orchestrator.Orchestrator) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := o.Close(ctx); err != nil {
		logger := GetLogger()
		logger.Warn().Err(err).Msg("system shutdown incomplete")
	}
}
