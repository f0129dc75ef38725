// Package auth authenticates callers by session token or API key.
package auth

import (
	"context"

	"github.com/go-faster/errors"
)

var (
	// ErrUnauthorized is returned when no valid credentials were presented.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden is returned when the caller lacks the required role.
	ErrForbidden = errors.New("forbidden")
)

// Principal is the authenticated caller.
type Principal struct {
	UserID string
	Email  string
	Name   string
	Admin  bool
	// KeyID is set when the caller used an API key instead of a session.
	KeyID string
}

type principalKey struct{}

// WithPrincipal stores p in ctx.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// FromContext returns the principal stored in ctx, if any.
func FromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*Principal)
	return p, ok && p != nil
}
