// Package ctxutil holds small context helpers shared across packages.
package ctxutil

import "context"

// Canceled reports early termination at an operation entry point: it returns
// the context error when the context is done (canceled or past its deadline)
// and nil while it is still live. ctx.Err() already has exactly this contract,
// so no select on Done is needed.
func Canceled(ctx context.Context) error {
	return ctx.Err()
}
