package core

import (
	"context"
	"strings"

	"quantumcore/pkg/domain"
)

type callerKey struct{}

// WithCaller returns a context naming the account that issues registry calls.
// Allocation ownership and deactivation checks use this identity.
func WithCaller(ctx context.Context, caller string) context.Context {
	return context.WithValue(ctx, callerKey{}, caller)
}

// CallerFromContext returns the caller stored by WithCaller, or the sentinel
// owner when none (or a blank one) was set.
func CallerFromContext(ctx context.Context) string {
	if ctx != nil {
		if caller, ok := ctx.Value(callerKey{}).(string); ok && strings.TrimSpace(caller) != "" {
			return caller
		}
	}
	return domain.SentinelOwner
}
