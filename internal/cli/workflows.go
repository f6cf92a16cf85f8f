package cli

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mrz1836/smartspec/internal/domain"
	"github.com/mrz1836/smartspec/internal/tui"
)

// WorkflowLister enumerates registered descriptors, satisfied by the
// workflow registry.
type WorkflowLister interface {
	List() []*domain.Descriptor
}

// AddWorkflowsCommand adds the workflows command to the root command.
func AddWorkflowsCommand(parent *cobra.Command, flags *GlobalFlags) {
	cmd := &cobra.Command{
		Use:   "workflows",
		Short: "List registered workflows",
		Long: `List every registered workflow descriptor with its category, version, and
declared effects. Workflows with the 'governed' effect need --apply;
workflows with the 'network' effect need --allow-network.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ec, err := ResolveExecutionContext(ctx, flags)
			if err != nil {
				return err
			}
			o, err := system(ctx, ec, nil)
			if err != nil {
				return err
			}
			defer closeSystem(o)

			return runWorkflows(ctx, os.Stdout, flags, o.Registry())
		},
	}

	parent.AddCommand(cmd)
}

// runWorkflows renders the descriptor table.
func runWorkflows(_ context.Context, w io.Writer, flags *GlobalFlags, registry WorkflowLister) error {
	descriptors := registry.List()

	if flags.Output == OutputJSON {
		return tui.NewJSONOutput(w).JSON(descriptors)
	}

	table := tui.NewTable(w, []tui.TableColumn{
		{Name: "WORKFLOW", Width: 20},
		{Name: "CATEGORY", Width: 14},
		{Name: "VERSION", Width: 8},
		{Name: "EFFECTS", Width: 26},
		{Name: "DESCRIPTION", Width: 40},
	})
	table.WriteHeader()
	for _, d := range descriptors {
		table.WriteRow(d.Name, d.Category, d.Version, effectsCell(d.Effects), d.Description)
	}
	return nil
}

// effectsCell renders the declared effect surface as a short list.
func effectsCell(effects domain.EffectSet) string {
	if effects.ReadOnly() && !effects.RequiresNetwork {
		return "read-only"
	}
	var parts []string
	if effects.WritesGoverned {
		parts = append(parts, "governed")
	}
	if effects.WritesRuntime {
		parts = append(parts, "runtime")
	}
	if effects.RequiresNetwork {
		parts = append(parts, "network")
	}
	return strings.Join(parts, ", ")
}
