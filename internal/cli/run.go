package cli

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/mrz1836/smartspec/internal/domain"
	"github.com/mrz1836/smartspec/internal/engine"
	"github.com/mrz1836/smartspec/internal/errors"
	"github.com/mrz1836/smartspec/internal/metrics"
	"github.com/mrz1836/smartspec/internal/tui"
)

// metricsReadTimeout bounds request header reads on the exposition server.
const metricsReadTimeout = 5 * time.Second

// runOptions holds the run command's own flags.
type runOptions struct {
	workflow WorkflowFlags
	spec     string
	args     []string
	follow   bool
	metrics  string
}

// AddRunCommand adds the run command to the root command.
func AddRunCommand(parent *cobra.Command, flags *GlobalFlags) {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run <workflow>",
		Short: "Start a workflow execution",
		Long: `Validate and start one workflow execution. The command returns the
execution id immediately; poll with 'smartspec status' or stream with
'smartspec events --follow'.

Governance gates apply: workflows that write governed artifacts need
--apply, workflows that call LLM providers need --allow-network. With
--validate-only the invocation is checked end to end and nothing runs.

Examples:
  smartspec run verify_tasks --spec spec-feat-001-user-auth
  smartspec run generate_plan --spec spec-feat-001-user-auth --apply --allow-network
  smartspec run generate_spec --arg title="User authentication" --apply --allow-network
  smartspec run implement_tasks --spec spec-feat-001-user-auth --allow-network --follow`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ec, err := ResolveExecutionContext(ctx, flags)
			if err != nil {
				return err
			}

			var m *metrics.Metrics
			if opts.metrics != "" {
				reg := prometheus.NewRegistry()
				m = metrics.New(reg)
				serveMetrics(ctx, opts.metrics, reg)
			}

			o, err := system(ctx, ec, m)
			if err != nil {
				return err
			}
			defer closeSystem(o)

			return runRun(ctx, os.Stdout, flags, opts, args[0], o, o)
		},
	}

	AddWorkflowFlags(cmd, &opts.workflow)
	cmd.Flags().StringVar(&opts.spec, "spec", "", "target spec bundle id")
	cmd.Flags().StringArrayVar(&opts.args, "arg", nil, "workflow argument as name=value (repeatable)")
	cmd.Flags().BoolVar(&opts.follow, "follow", false, "stay attached and stream execution events")
	cmd.Flags().StringVar(&opts.metrics, "metrics-addr", "", "serve Prometheus metrics on this address while running")

	parent.AddCommand(cmd)
}

// WorkflowStarter starts workflow executions, satisfied by the orchestrator.
type WorkflowStarter interface {
	Execute(ctx context.Context, req engine.ExecuteRequest) (*domain.Execution, error)
}

// runRun starts the execution and optionally follows its event stream.
func runRun(ctx context.Context, w io.Writer, flags *GlobalFlags, opts *runOptions, workflowName string,
	starter WorkflowStarter, streamer EventStreamer) error {
	args, err := parseWorkflowArgs(opts.spec, opts.args)
	if err != nil {
		return err
	}

	req := engine.ExecuteRequest{
		Workflow: workflowName,
		Args:     args,
		Flags:    DomainFlags(&opts.workflow, flags),
	}

	exec, err := starter.Execute(ctx, req)
	if err != nil {
		if stderrors.Is(err, errors.ErrValidateOnly) {
			out := outputTo(w, flags)
			out.Success(fmt.Sprintf("workflow %s validated; nothing was run", workflowName))
			return nil
		}
		return err
	}

	if !opts.follow {
		if flags.Output == OutputJSON {
			return tui.NewJSONOutput(w).JSON(exec)
		}
		out := tui.NewTTYOutput(w)
		out.Success(fmt.Sprintf("execution %s started (%s, %d steps)",
			tui.ShortID(exec.ID), exec.Workflow, exec.TotalSteps))
		out.Info(fmt.Sprintf("follow with: smartspec events %s --follow", exec.ID))
		return nil
	}

	events, err := streamer.Events(ctx, exec.ID)
	if err != nil {
		return err
	}
	return followExecution(ctx, w, flags, exec, events)
}

// parseWorkflowArgs folds --spec and the --arg pairs into the frozen
// argument map.
func parseWorkflowArgs(spec string, pairs []string) (domain.Args, error) {
	args := domain.Args{}
	if spec != "" {
		args["spec"] = spec
	}
	for _, pair := range pairs {
		name, value, found := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !found || name == "" {
			return nil, errors.Wrapf(errors.ErrInvalidArgument, "--arg %q is not name=value", pair)
		}
		args[name] = value
	}
	return args, nil
}

// followExecution attaches to the event stream: the Bubble Tea follow view
// on a TTY, plain JSON Lines otherwise. The command's exit status reflects
// the execution's terminal state.
func followExecution(ctx context.Context, w io.Writer, flags *GlobalFlags, exec *domain.Execution, events <-chan domain.Event) error {
	if flags.Output == OutputJSON || !term.IsTerminal(int(os.Stdout.Fd())) {
		return streamEventLines(ctx, w, events)
	}

	model := tui.NewFollowModel(exec, events)
	program := tea.NewProgram(model, tea.WithContext(ctx), tea.WithOutput(w))
	if _, err := program.Run(); err != nil {
		return errors.Wrap(err, "event follow view failed")
	}
	return followOutcome(model)
}

// followOutcome maps the followed terminal state onto the command result.
func followOutcome(m *tui.FollowModel) error {
	if failure := m.Failure(); failure != "" {
		return errors.Wrap(errors.ErrStepFailed, failure)
	}
	if id := m.InterruptID(); id != "" {
		out := tui.NewTTYOutput(os.Stdout)
		out.Info(fmt.Sprintf("execution paused; respond with: smartspec respond %s", id))
	}
	return nil
}

// streamEventLines prints every event as one JSON line and surfaces a
// failing terminal event as the command error.
func streamEventLines(ctx context.Context, w io.Writer, events <-chan domain.Event) error {
	jsonOut := tui.NewJSONOutput(w)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, open := <-events:
			if !open {
				return nil
			}
			if err := jsonOut.JSON(ev); err != nil {
				return err
			}
			if ev.Type == domain.EventWorkflowFailed {
				return errors.Wrap(errors.ErrStepFailed, ev.Error)
			}
		}
	}
}

// serveMetrics exposes the Prometheus registry for the lifetime of the
// command. Exposition is best-effort: a failed listen logs and the run
// continues.
func serveMetrics(ctx context.Context, addr string, reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: metricsReadTimeout,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			logger := GetLogger()
			logger.Warn().Err(err).Str("addr", addr).Msg("metrics server failed")
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), metricsReadTimeout)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()
}

// outputTo builds an output sink for an explicit writer, honoring the
// global format flag.
func outputTo(w io.Writer, flags *GlobalFlags) tui.Output {
	if flags.Output == OutputJSON {
		return tui.NewJSONOutput(w)
	}
	return tui.NewTTYOutput(w)
}
