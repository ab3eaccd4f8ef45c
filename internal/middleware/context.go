// Package middleware provides the ordered HTTP request pipeline: security
// headers, origin policy, rate limiting, body decoding, session resolution,
// authentication and request logging.
package middleware

import (
	"context"

	"github.com/nextcart/platform/internal/domain/identity"
)

type contextKey string

const (
	principalKey contextKey = "principal"
	sessionKey   contextKey = "session_token"
)

// WithPrincipal attaches the authenticated principal to ctx. The principal is
// immutable for the life of the request.
func WithPrincipal(ctx context.Context, p *identity.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFrom returns the request principal, or nil when the request is
// unauthenticated.
func PrincipalFrom(ctx context.Context) *identity.Principal {
	p, _ := ctx.Value(principalKey).(*identity.Principal)
	return p
}

// WithSessionToken attaches the raw session token so logout can revoke it.
func WithSessionToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, sessionKey, token)
}

// SessionTokenFrom returns the raw session token, if any.
func SessionTokenFrom(ctx context.Context) string {
	token, _ := ctx.Value(sessionKey).(string)
	return token
}
