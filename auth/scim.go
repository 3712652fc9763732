package auth

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"
)

// PrincipalAuthenticator is the request-pipeline auth contract: validate
// the request and return the Principal to attach to context.
type PrincipalAuthenticator interface {
	AuthenticateRequest(r *http.Request) (Principal, error)
}

// SCIMAuthenticator implements the two supported bearer modes: a static
// shared secret compared in constant time, and an optional HMAC-signed
// JWT. The shared secret is tried first since it's the zero-config path;
// either succeeding yields a Principal.
type SCIMAuthenticator struct {
	sharedSecret string
	jwt          *JWTAuthenticator
}

func NewSCIMAuthenticator(sharedSecret, jwtSecret string) *SCIMAuthenticator {
	a := &SCIMAuthenticator{sharedSecret: sharedSecret}
	if jwtSecret != "" {
		a.jwt = NewJWTAuthenticator(jwtSecret)
	}
	return a
}

func (a *SCIMAuthenticator) AuthenticateRequest(r *http.Request) (Principal, error) {
	if a.sharedSecret == "" && a.jwt == nil {
		return Principal{AuthType: AuthTypeNone}, nil
	}

	header := r.Header.Get("Authorization")
	if header == "" {
		return Principal{}, fmt.Errorf("missing authorization header")
	}
	token := strings.TrimPrefix(header, "Bearer ")

	if a.sharedSecret != "" && subtle.ConstantTimeCompare([]byte(token), []byte(a.sharedSecret)) == 1 {
		return Principal{AuthType: AuthTypeBearer}, nil
	}

	if a.jwt != nil {
		clientID, err := a.jwt.Authenticate(r)
		if err == nil {
			return Principal{AuthType: AuthTypeBearer, ClientID: clientID}, nil
		}
	}

	return Principal{}, fmt.Errorf("invalid bearer token")
}
