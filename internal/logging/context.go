package logging

import "context"

type contextKey int

const (
	requestIDKey contextKey = iota
	endpointIDKey
)

// WithRequestID attaches the correlation id the request pipeline generates
// per inbound request.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext returns "" when no correlation id is attached.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// WithEndpointID attaches the resolved tenant id once the pipeline has
// matched the request to an Endpoint.
func WithEndpointID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, endpointIDKey, id)
}

// EndpointIDFromContext returns "" when no tenant has been resolved yet.
func EndpointIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(endpointIDKey).(string)
	return id
}
