package server

import (
	"context"
	"time"
)

type contextKey int

const (
	requestIDKey contextKey = iota
	endpointIDKey
	endpointConfigKey
	startTimeKey
)

func withRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

func withEndpoint(ctx context.Context, id string, config map[string]any) context.Context {
	ctx = context.WithValue(ctx, endpointIDKey, id)
	return context.WithValue(ctx, endpointConfigKey, config)
}

func EndpointIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(endpointIDKey).(string)
	return id
}

func EndpointConfigFromContext(ctx context.Context) map[string]any {
	cfg, _ := ctx.Value(endpointConfigKey).(map[string]any)
	return cfg
}

func withStartTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, startTimeKey, t)
}

func StartTimeFromContext(ctx context.Context) time.Time {
	t, _ := ctx.Value(startTimeKey).(time.Time)
	return t
}
