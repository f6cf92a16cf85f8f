package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mrz1836/smartspec/internal/domain"
	"github.com/mrz1836/smartspec/internal/gateway"
	"github.com/mrz1836/smartspec/internal/tui"
)

// ProviderAdmin covers the provider-switch surface of the gateway.
type ProviderAdmin interface {
	ProviderStates(ctx context.Context) ([]gateway.ProviderState, error)
	SetProviderEnabled(ctx context.Context, actor *domain.User, name string, enabled bool) error
	Routes() []gateway.Route
}

// AddProvidersCommand adds the providers command group to the root command.
func AddProvidersCommand(parent *cobra.Command, flags *GlobalFlags) {
	cmd := &cobra.Command{
		Use:   "providers",
		Short: "Manage LLM provider switches",
		Long: `List and toggle the gateway's provider adapters. A disabled provider is
skipped by routing on the next call; requests already in flight finish
under the configuration they started with.`,
	}

	cmd.AddCommand(newProvidersListCmd(flags))
	cmd.AddCommand(newProvidersToggleCmd(flags, "enable", true))
	cmd.AddCommand(newProvidersToggleCmd(flags, "disable", false))

	parent.AddCommand(cmd)
}

func newProvidersListCmd(flags *GlobalFlags) *cobra.Command {
	var showRoutes bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List provider adapters and their switches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			o, err := systemFor(ctx, flags)
			if err != nil {
				return err
			}
			defer closeSystem(o)
			return runProvidersList(ctx, os.Stdout, flags, showRoutes, o.Gateway())
		},
	}
	cmd.Flags().BoolVar(&showRoutes, "routes", false, "also show the routing table")
	return cmd
}

func newProvidersToggleCmd(flags *GlobalFlags, verb string, enabled bool) *cobra.Command {
	return &cobra.Command{
		Use:   verb + " <provider>",
		Short: strings.ToUpper(verb[:1]) + verb[1:] + " a provider adapter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			o, err := systemFor(ctx, flags)
			if err != nil {
				return err
			}
			defer closeSystem(o)
			return runProvidersToggle(ctx, os.Stdout, flags, args[0], enabled, o.Gateway(), o.Operator())
		},
	}
}

// runProvidersList renders the provider switch table.
func runProvidersList(ctx context.Context, w io.Writer, flags *GlobalFlags, showRoutes bool, admin ProviderAdmin) error {
	states, err := admin.ProviderStates(ctx)
	if err != nil {
		return err
	}

	if flags.Output == OutputJSON {
		payload := map[string]any{"providers": states}
		if showRoutes {
			payload["routes"] = admin.Routes()
		}
		return tui.NewJSONOutput(w).JSON(payload)
	}

	styles := tui.NewOutputStyles()
	table := tui.NewTable(w, []tui.TableColumn{
		{Name: "PROVIDER", Width: 12},
		{Name: "STATE", Width: 10},
		{Name: "CAPABILITIES", Width: 36},
	})
	table.WriteHeader()
	for _, state := range states {
		cell := styles.Success.Render("enabled")
		if !state.Enabled {
			cell = styles.Dim.Render("disabled")
		}
		table.WriteRow(state.Name, cell, capabilitiesCell(state.Capabilities))
	}

	if showRoutes {
		fmt.Fprintln(w)
		renderRoutes(w, admin.Routes())
	}
	return nil
}

// capabilitiesCell renders the adapter's optional features.
func capabilitiesCell(c gateway.Capabilities) string {
	var parts []string
	if c.Streaming {
		parts = append(parts, "streaming")
	}
	if c.ToolCalling {
		parts = append(parts, "tools")
	}
	if c.StructuredOutput {
		parts = append(parts, "structured")
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, ", ")
}

// renderRoutes renders the task/priority routing table.
func renderRoutes(w io.Writer, routes []gateway.Route) {
	table := tui.NewTable(w, []tui.TableColumn{
		{Name: "TASK", Width: 14},
		{Name: "PRIORITY", Width: 10},
		{Name: "PROVIDER", Width: 12},
		{Name: "MODEL", Width: 30},
	})
	table.WriteHeader()
	for _, route := range routes {
		table.WriteRow(string(route.Task), string(route.Priority), route.Provider, route.Model)
	}
}

// runProvidersToggle flips one provider switch as the local operator.
func runProvidersToggle(ctx context.Context, w io.Writer, flags *GlobalFlags, name string, enabled bool,
	admin ProviderAdmin, actor *domain.User) error {
	if err := admin.SetProviderEnabled(ctx, actor, name, enabled); err != nil {
		return err
	}

	state := "enabled"
	if !enabled {
		state = "disabled"
	}
	if flags.Output == OutputJSON {
		return tui.NewJSONOutput(w).JSON(map[string]any{"provider": name, "enabled": enabled})
	}
	tui.NewTTYOutput(w).Success(fmt.Sprintf("provider %s %s", name, state))
	return nil
}
