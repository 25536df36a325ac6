package auth

import (
	"context"
	"strings"
)

// Identity is the authenticated caller attached to a request.
type Identity struct {
	Authenticated bool
	UserID        string
	Email         string
}

type identityContextKey struct{}

// ContextWithIdentity attaches the caller identity to ctx.
func ContextWithIdentity(ctx context.Context, id Identity) context.Context {
	id.UserID = strings.TrimSpace(id.UserID)
	return context.WithValue(ctx, identityContextKey{}, id)
}

// IdentityFromContext returns the caller identity, or an unauthenticated
// Identity when none is attached.
func IdentityFromContext(ctx context.Context) Identity {
	if ctx == nil {
		return Identity{}
	}
	id, _ := ctx.Value(identityContextKey{}).(Identity)
	return id
}

// UserIDFromContext extracts the authenticated user ID from context.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id := IdentityFromContext(ctx)
	if !id.Authenticated || id.UserID == "" {
		return "", false
	}
	return id.UserID, true
}
