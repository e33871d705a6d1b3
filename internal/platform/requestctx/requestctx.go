// Package requestctx carries request-scoped identity values through context.
package requestctx

import "context"

type (
	userIDContextKey    struct{}
	requestIDContextKey struct{}
)

// WithUserID stores the acting user identifier in context.
func WithUserID(ctx context.Context, userID string) context.Context {
	return with(ctx, userIDContextKey{}, userID)
}

// UserIDFromContext returns the acting user identifier, or "" when the
// request is anonymous.
func UserIDFromContext(ctx context.Context) string {
	return value(ctx, userIDContextKey{})
}

// WithRequestID stores a request identifier in context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return with(ctx, requestIDContextKey{}, requestID)
}

// RequestIDFromContext returns the request identifier stored in context.
func RequestIDFromContext(ctx context.Context) string {
	return value(ctx, requestIDContextKey{})
}

func with(ctx context.Context, key any, v string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, key, v)
}

func value(ctx context.Context, key any) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(key).(string)
	return v
}
