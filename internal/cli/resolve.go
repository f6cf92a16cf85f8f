package cli

import (
	"context"
	"strings"

	"github.com/mrz1836/smartspec/internal/domain"
	"github.com/mrz1836/smartspec/internal/errors"
	"github.com/mrz1836/smartspec/internal/store"
	"github.com/mrz1836/smartspec/internal/tui"
)

// ExecutionLister lists executions, satisfied by the store.
type ExecutionLister interface {
	ListExecutions(ctx context.Context, filter store.ExecutionFilter) ([]*domain.Execution, error)
}

// ResolveExecutionID expands a short id prefix to the full execution id.
// Exact matches win; otherwise the prefix must be unambiguous.
func ResolveExecutionID(ctx context.Context, lister ExecutionLister, ref string) (string, error) {
	if ref == "" {
		return "", errors.Wrap(errors.ErrInvalidArgument, "execution id is required")
	}

	execs, err := lister.ListExecutions(ctx, store.ExecutionFilter{})
	if err != nil {
		return "", err
	}

	var matches []string
	for _, e := range execs {
		if e.ID == ref {
			return e.ID, nil
		}
		if strings.HasPrefix(e.ID, ref) {
			matches = append(matches, e.ID)
		}
	}

	switch len(matches) {
	case 0:
		return "", errors.Wrapf(errors.ErrExecutionNotFound, "no execution matches %q", ref)
	case 1:
		return matches[0], nil
	default:
		short := make([]string, len(matches))
		for i, id := range matches {
			short[i] = tui.ShortID(id)
		}
		return "", errors.Wrapf(errors.ErrInvalidArgument,
			"execution id %q is ambiguous: matches %s", ref, strings.Join(short, ", "))
	}
}
