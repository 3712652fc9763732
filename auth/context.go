package auth

import "context"

// Principal is attached to the request context on successful
// authentication.
type Principal struct {
	AuthType AuthType
	ClientID string
}

type contextKey int

const principalKey contextKey = iota

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext returns the zero Principal and false if none was
// attached (unauthenticated requests never reach downstream handlers, but
// tests may call into a handler directly without going through the
// pipeline).
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok
}
