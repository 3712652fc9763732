package auth

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWTAuthenticator validates HMAC-signed bearer tokens against JWT_SECRET.
// This is the "signed token (symmetric key)" auth mode; on success it
// attaches a Principal{AuthType: AuthTypeBearer, ClientID} built from the
// token's subject/client_id claim.
type JWTAuthenticator struct {
	secret []byte
}

func NewJWTAuthenticator(secret string) *JWTAuthenticator {
	return &JWTAuthenticator{secret: []byte(secret)}
}

type jwtClaims struct {
	jwt.RegisteredClaims
	ClientID string `json:"client_id,omitempty"`
}

// Authenticate validates the bearer token's signature and expiry, and
// returns the resolved client id for the caller to attach to context.
func (j *JWTAuthenticator) Authenticate(r *http.Request) (string, error) {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return "", fmt.Errorf("missing authorization header")
	}
	if !strings.HasPrefix(auth, "Bearer ") {
		return "", fmt.Errorf("invalid authorization type")
	}
	raw := strings.TrimPrefix(auth, "Bearer ")

	claims := &jwtClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return j.secret, nil
	}, jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}))
	if err != nil || !token.Valid {
		return "", fmt.Errorf("invalid token: %w", err)
	}

	clientID := claims.ClientID
	if clientID == "" {
		clientID = claims.Subject
	}
	return clientID, nil
}

// IssueToken mints a short-lived HMAC token, used by tests and the optional
// local token-issuance path; a full OAuth token-issuance flow is not
// implemented here.
func (j *JWTAuthenticator) IssueToken(clientID string, ttl time.Duration) (string, error) {
	claims := jwtClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   clientID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		ClientID: clientID,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(j.secret)
}
