package providers

import (
	"context"
	"errors"
	"strings"

	sserrors "github.com/mrz1836/smartspec/internal/errors"
)

// mapProviderError folds SDK errors into ErrProviderRequest with a hint of
// the upstream failure class. Context errors pass through untouched so the
// gateway can distinguish caller cancellation from provider trouble.
func mapProviderError(provider string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "401") || strings.Contains(msg, "403") ||
		strings.Contains(msg, "authentication") || strings.Contains(msg, "api_key"):
		return sserrors.Wrapf(sserrors.ErrProviderRequest, "%s: invalid or expired api key", provider)
	case strings.Contains(msg, "429") || strings.Contains(msg, "rate_limit") ||
		strings.Contains(msg, "too many requests"):
		return sserrors.Wrapf(sserrors.ErrProviderRequest, "%s: rate limited upstream", provider)
	case strings.Contains(msg, "quota") || strings.Contains(msg, "billing"):
		return sserrors.Wrapf(sserrors.ErrProviderRequest, "%s: quota exhausted", provider)
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline"):
		return sserrors.Wrapf(sserrors.ErrProviderRequest, "%s: request timed out", provider)
	}
	return sserrors.Wrapf(sserrors.ErrProviderRequest, "%s: %v", provider, err)
}
