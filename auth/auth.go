// Package auth implements the request pipeline's authentication stage: a
// dual-mode bearer scheme (static shared secret or HMAC-signed JWT) that
// resolves to a Principal attached to the request context for downstream
// components to read.
package auth

// AuthType identifies which scheme authenticated a request.
type AuthType string

const (
	AuthTypeNone   AuthType = "none"
	AuthTypeBearer AuthType = "bearer"
)
