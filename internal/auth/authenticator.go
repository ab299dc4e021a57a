// Package auth resolves bearer tokens into caller identities.
package auth

import (
	"context"
	"errors"
)

// ErrInvalidToken is returned for any token that cannot be verified.
var ErrInvalidToken = errors.New("invalid token")

// Identity is the verified caller.
type Identity struct {
	UserID      string `json:"userId"`
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
}

// Authenticator verifies a bearer token and returns who presented it.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*Identity, error)
}

type callerKey struct{}

// WithCaller stores id on ctx.
func WithCaller(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, callerKey{}, id)
}

// CallerFrom returns the caller on ctx, or nil for anonymous requests.
func CallerFrom(ctx context.Context) *Identity {
	id, _ := ctx.Value(callerKey{}).(*Identity)
	return id
}

// CallerID returns the caller's user id, or "" when anonymous.
func CallerID(ctx context.Context) string {
	if id := CallerFrom(ctx); id != nil {
		return id.UserID
	}
	return ""
}
