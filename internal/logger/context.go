package logger

import "context"

// ctxKey keeps context values private to this package.
type ctxKey struct{}

var reqIDKey = ctxKey{}

// WithRequestID stores the request ID for downstream log lines and
// response headers.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, reqIDKey, id)
}

// RequestID returns the request ID carried by ctx, or "" when absent.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(reqIDKey).(string)
	return id
}
