// Package cli provides the command-line interface for SmartSpec.
package cli

import (
	stderrors "errors"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mrz1836/smartspec/internal/constants"
	"github.com/mrz1836/smartspec/internal/domain"
	"github.com/mrz1836/smartspec/internal/errors"
)

// Exit codes for the CLI.
const (
	// ExitSuccess indicates successful execution.
	ExitSuccess = 0
	// ExitError indicates a general error.
	ExitError = 1
	// ExitInvalidInput indicates invalid user input.
	ExitInvalidInput = 2
)

// Output format constants.
const (
	// OutputText is the default human-readable output format.
	OutputText = "text"
	// OutputJSON is the machine-readable JSON output format.
	OutputJSON = "json"
)

// GlobalFlags holds flags available to all commands.
type GlobalFlags struct {
	// Output specifies the output format (text or json).
	Output string
	// Verbose enables debug-level logging.
	Verbose bool
	// Quiet suppresses non-essential output (warn level only).
	Quiet bool
	// Root overrides repository root discovery.
	Root string
	// Config points at an explicit configuration file.
	Config string
}

// WorkflowFlags holds the universal workflow invocation flags. They attach
// only to commands that start executions (run, resume); read-only commands
// have no use for governance opt-ins.
type WorkflowFlags struct {
	// Apply enables writes to governed artifacts under specs/**.
	Apply bool
	// AllowNetwork enables outbound LLM provider calls.
	AllowNetwork bool
	// ValidateOnly validates the invocation and stops before execution.
	ValidateOnly bool
	// Out overrides the report output directory under .spec/reports/.
	Out string
}

// AddGlobalFlags adds global flags to a command.
// These flags are available to all subcommands via PersistentFlags.
func AddGlobalFlags(cmd *cobra.Command, flags *GlobalFlags) {
	cmd.PersistentFlags().StringVarP(&flags.Output, "output", "o", OutputText, "output format (text|json)")
	cmd.PersistentFlags().BoolVarP(&flags.Verbose, "verbose", "v", false, "enable verbose output")
	cmd.PersistentFlags().BoolVarP(&flags.Quiet, "quiet", "q", false, "suppress non-essential output")
	cmd.PersistentFlags().StringVar(&flags.Root, "root", "", "repository root (default: discovered from the working directory)")
	cmd.PersistentFlags().StringVar(&flags.Config, "config", "", "path to an explicit configuration file")
	cmd.MarkFlagsMutuallyExclusive("verbose", "quiet")
}

// AddWorkflowFlags adds the universal workflow flags to a workflow-running
// command.
func AddWorkflowFlags(cmd *cobra.Command, flags *WorkflowFlags) {
	cmd.Flags().BoolVar(&flags.Apply, "apply", false, "allow writes to governed artifacts under specs/")
	cmd.Flags().BoolVar(&flags.AllowNetwork, "allow-network", false, "allow outbound LLM provider calls")
	cmd.Flags().BoolVar(&flags.ValidateOnly, "validate-only", false, "validate the invocation and stop before executing")
	cmd.Flags().StringVar(&flags.Out, "out", "", "report output directory under .spec/reports/")
}

// DomainFlags folds the workflow flags and the relevant global flags into
// the domain.Flags record frozen onto an execution.
func DomainFlags(wf *WorkflowFlags, gf *GlobalFlags) domain.Flags {
	return domain.Flags{
		Apply:        wf.Apply,
		AllowNetwork: wf.AllowNetwork,
		ValidateOnly: wf.ValidateOnly,
		Out:          wf.Out,
		JSON:         gf.Output == OutputJSON,
		Quiet:        gf.Quiet,
		Config:       gf.Config,
	}
}

// BindGlobalFlags binds global flags to Viper for configuration file and
// environment variable support. The SMARTSPEC_ prefix is used for
// environment variables (e.g., SMARTSPEC_OUTPUT, SMARTSPEC_VERBOSE).
func BindGlobalFlags(v *viper.Viper, cmd *cobra.Command) error {
	// Use Root().PersistentFlags() to find flags defined on the root command,
	// even when called from a subcommand's PersistentPreRunE.
	rootFlags := cmd.Root().PersistentFlags()

	for _, name := range []string{"output", "verbose", "quiet", "root", "config"} {
		if err := v.BindPFlag(name, rootFlags.Lookup(name)); err != nil {
			return err
		}
	}

	v.SetEnvPrefix(constants.EnvPrefix)
	v.AutomaticEnv()

	return nil
}

// ValidOutputFormats returns the list of valid output format values.
func ValidOutputFormats() []string {
	return []string{OutputText, OutputJSON}
}

// IsValidOutputFormat checks if the given format is a valid output format.
func IsValidOutputFormat(format string) bool {
	for _, valid := range ValidOutputFormats() {
		if format == valid {
			return true
		}
	}
	return false
}

// ExitCodeForError returns the appropriate exit code for the given error.
// Returns ExitSuccess (0) for nil errors, ExitInvalidInput (2) for user
// input errors (invalid flags, bad arguments, unknown workflows), and
// ExitError (1) for everything else.
func ExitCodeForError(err error) int {
	if err == nil {
		return ExitSuccess
	}

	switch errors.CodeOf(err) {
	case errors.CodeValidation, errors.CodeNotFound:
		return ExitInvalidInput
	}

	if stderrors.Is(err, errors.ErrInvalidOutputFormat) {
		return ExitInvalidInput
	}

	// Cobra's own flag parsing errors (unknown flags, mutually exclusive
	// flags, wrong arg counts) arrive untyped.
	if isInvalidInputError(err.Error()) {
		return ExitInvalidInput
	}

	return ExitError
}

// isInvalidInputError checks if an error message indicates invalid user
// input. This catches Cobra's built-in flag validation errors.
func isInvalidInputError(errMsg string) bool {
	patterns := []string{
		"unknown flag",
		"unknown shorthand flag",
		"unknown command",
		"invalid argument",
		"required flag",
		"accepts at most",
		"accepts at least",
		"requires at least",
		"requires at most",
		"accepts 1 arg",
		"accepts 2 arg",
		"if any flags in the group",
		"were all set",
		"none of the others can be",
	}
	for _, p := range patterns {
		if strings.Contains(errMsg, p) {
			return true
		}
	}
	return false
}
