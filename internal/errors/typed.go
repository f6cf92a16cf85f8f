package errors

import (
	"fmt"
	"time"
)

// CreditError reports a pre-flight credit rejection with the numbers the
// caller needs to top up. It unwraps to ErrInsufficientCredits.
type CreditError struct {
	// Balance is the caller's credit balance at rejection time.
	Balance int64
	// Required is the estimated cost of the request in credits.
	Required int64
}

// Shortfall returns how many credits are missing.
func (e *CreditError) Shortfall() int64 {
	return e.Required - e.Balance
}

// Error implements the error interface.
func (e *CreditError) Error() string {
	return fmt.Sprintf("insufficient credits: balance %d, required %d (short %d)",
		e.Balance, e.Required, e.Shortfall())
}

// Unwrap links the error to ErrInsufficientCredits for errors.Is checks.
func (e *CreditError) Unwrap() error { return ErrInsufficientCredits }

// RateLimitError reports a rate limit rejection and when to retry.
// It unwraps to ErrRateLimited.
type RateLimitError struct {
	// RetryAfter is how long the caller should wait before retrying.
	RetryAfter time.Duration
	// Limit is the configured requests-per-window ceiling.
	Limit int
}

// Error implements the error interface.
func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited: retry after %s (limit %d/min)", e.RetryAfter, e.Limit)
}

// Unwrap links the error to ErrRateLimited for errors.Is checks.
func (e *RateLimitError) Unwrap() error { return ErrRateLimited }

// BundleBusyError reports contention on a spec bundle mutex.
// It unwraps to ErrBundleBusy.
type BundleBusyError struct {
	// SpecID is the bundle whose mutex is held elsewhere.
	SpecID string
}

// Error implements the error interface.
func (e *BundleBusyError) Error() string {
	return fmt.Sprintf("spec bundle busy: %s is locked by another operation", e.SpecID)
}

// Unwrap links the error to ErrBundleBusy for errors.Is checks.
func (e *BundleBusyError) Unwrap() error { return ErrBundleBusy }

// InternalError hides an unexpected failure behind a correlation ID. The
// wrapped cause is logged server-side; callers only see the ID.
type InternalError struct {
	// CorrelationID ties the user-visible error to the logged cause.
	CorrelationID string
	// Err is the underlying cause, available via Unwrap for logging.
	Err error
}

// Error implements the error interface.
func (e *InternalError) Error() string {
	return fmt.Sprintf("internal error (correlation id %s)", e.CorrelationID)
}

// Unwrap exposes the underlying cause for logging and errors.Is checks.
func (e *InternalError) Unwrap() error { return e.Err }
