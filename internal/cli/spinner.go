package cli

import (
	"context"
	"os"

	"golang.org/x/term"

	"github.com/mrz1836/smartspec/internal/domain"
	"github.com/mrz1836/smartspec/internal/orchestrator"
	"github.com/mrz1836/smartspec/internal/tui"
)

// spin animates a spinner on stderr while fn runs. JSON mode and non-TTY
// sessions get no animation; fn runs bare so piped output stays clean.
func spin(ctx context.Context, flags *GlobalFlags, message string, fn func() error) error {
	if flags.Output != OutputText || !term.IsTerminal(int(os.Stderr.Fd())) {
		return fn()
	}

	sp := tui.NewTerminalSpinner(os.Stderr)
	sp.Start(ctx, message)
	defer sp.Stop()
	return fn()
}

// spinnerVerifier animates the wait while evidence verification scans the
// working tree.
type spinnerVerifier struct {
	inner TaskVerifier
	flags *GlobalFlags
}

func (s *spinnerVerifier) Run(ctx context.Context, tasksPath string) (*domain.VerificationReport, error) {
	var report *domain.VerificationReport
	err := spin(ctx, s.flags, "verifying task evidence", func() error {
		var err error
		report, err = s.inner.Run(ctx, tasksPath)
		return err
	})
	return report, err
}

// spinnerAsker animates the wait while a question is routed and answered; a
// gateway-backed classifier can take seconds.
type spinnerAsker struct {
	inner QueryAsker
	flags *GlobalFlags
}

func (s *spinnerAsker) Ask(ctx context.Context, input string) (*orchestrator.AskResult, error) {
	var result *orchestrator.AskResult
	err := spin(ctx, s.flags, "thinking", func() error {
		var err error
		result, err = s.inner.Ask(ctx, input)
		return err
	})
	return result, err
}

var (
	_ TaskVerifier = (*spinnerVerifier)(nil)
	_ QueryAsker   = (*spinnerAsker)(nil)
)
