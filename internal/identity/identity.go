// Package identity resolves who the caller is and, optionally, a bearer token proving it.
package identity

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrNoIdentity    = errors.New("no identity")
	ErrInvalidToken  = errors.New("invalid token")
	ErrNoTokenIssuer = errors.New("token issuer unavailable")
)

// Provider resolves the caller's identity (an email address).
type Provider interface {
	Identity(ctx context.Context) (string, error)
}

// TokenSource is the optional collaborator that turns an identity into a bearer token.
type TokenSource interface {
	Token(ctx context.Context, identity string) (string, error)
}

// Static is the development-mode provider: a fixed identity taken from configuration.
type Static string

func (s Static) Identity(context.Context) (string, error) {
	id := strings.TrimSpace(string(s))
	if id == "" {
		return "", ErrNoIdentity
	}
	return strings.ToLower(id), nil
}

// NoopTokenSource never issues tokens; callers fall back to the identity header alone.
type NoopTokenSource struct{}

func (NoopTokenSource) Token(context.Context, string) (string, error) {
	return "", ErrNoTokenIssuer
}
