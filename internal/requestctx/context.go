// Package requestctx carries request-scoped values that services log but
// that are set by transport middleware. It has no net/http dependency.
package requestctx

import "context"

type requestIDKey struct{}

// ContextKeyRequestID is exported for tests that build contexts directly.
var ContextKeyRequestID = requestIDKey{}

// RequestID returns the request ID in ctx, or "" if none was set.
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return id
	}
	return ""
}

// WithRequestID injects a request ID into ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, id)
}
