// Package middleware provides the HTTP middleware: request ids, session
// bearer tokens, and edge rate limiting.
package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const tokenIssuer = "idstore"

// TokenCodec wraps session ids in HS256-signed bearer tokens. The session id
// travels as the subject claim; the token expiry mirrors the session expiry
// so a stolen token outlives the session by nothing.
type TokenCodec struct {
	secret []byte
}

// NewTokenCodec creates a codec for the shared HS256 secret.
func NewTokenCodec(secret string) (*TokenCodec, error) {
	if secret == "" {
		return nil, fmt.Errorf("JWT secret is required")
	}
	return &TokenCodec{secret: []byte(secret)}, nil
}

// Issue signs a bearer token carrying the session id.
func (c *TokenCodec) Issue(sessionID string, expiresAt time.Time) (string, error) {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		Subject:   sessionID,
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	})
	return tok.SignedString(c.secret)
}

// Decode verifies a bearer token and returns the session id it carries.
func (c *TokenCodec) Decode(tokenString string) (string, error) {
	tok, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		return c.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(tokenIssuer))
	if err != nil {
		return "", fmt.Errorf("token verification failed: %w", err)
	}
	claims, ok := tok.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return "", fmt.Errorf("token carries no session")
	}
	return claims.Subject, nil
}

type sessionIDKey struct{}

// WithSessionID stores a session id in the context.
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionIDKey{}, id)
}

// SessionIDFromContext extracts the session id, or "" when the request
// carried no usable token.
func SessionIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(sessionIDKey{}).(string)
	return id
}

// SessionToken decodes the Authorization bearer token and stores the session
// id in the context. Requests without a valid token pass through with an
// empty session id; the command pipeline turns that into NotAuthenticated,
// which keeps the unauthenticated behavior in one place.
func SessionToken(codec *TokenCodec) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
				raw := strings.TrimPrefix(auth, "Bearer ")
				if sessionID, err := codec.Decode(raw); err == nil {
					r = r.WithContext(WithSessionID(r.Context(), sessionID))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
