// Package requestcontext carries per-request metadata through context.Context.
package requestcontext

import "context"

type contextKey string

const (
	keyRequestID contextKey = "request_id"
	keyClientIP  contextKey = "client_ip"
	keyUserAgent contextKey = "user_agent"
	keyOperator  contextKey = "operator_id"
)

// WithRequestID returns a context carrying the request ID.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, keyRequestID, requestID)
}

// RequestID returns the request ID or "" when none was set.
func RequestID(ctx context.Context) string {
	v, _ := ctx.Value(keyRequestID).(string)
	return v
}

// WithClientMetadata stores the client IP and User-Agent.
func WithClientMetadata(ctx context.Context, clientIP, userAgent string) context.Context {
	ctx = context.WithValue(ctx, keyClientIP, clientIP)
	return context.WithValue(ctx, keyUserAgent, userAgent)
}

func ClientIP(ctx context.Context) string {
	v, _ := ctx.Value(keyClientIP).(string)
	return v
}

func UserAgent(ctx context.Context) string {
	v, _ := ctx.Value(keyUserAgent).(string)
	return v
}

// WithOperatorID stores the backend user ID of the logged-in operator.
func WithOperatorID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, keyOperator, userID)
}

// OperatorID returns the operator's user ID and whether one was set.
func OperatorID(ctx context.Context) (int64, bool) {
	v, ok := ctx.Value(keyOperator).(int64)
	return v, ok
}
