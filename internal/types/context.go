package types

import "context"

// contextKey is a private type to avoid collisions with other packages'
// context values.
type contextKey string

const requestIDKey contextKey = "request_id"

// WithRequestID stores the request correlation ID in the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// GetRequestID retrieves the request ID from the context, or "" if none
// has been set.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}
