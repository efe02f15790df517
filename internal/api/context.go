package api

import (
	"context"
	"errors"
)

// userIDContextKey is the context key for the authenticated user.
type userIDContextKey struct{}

// ErrNoUserInContext indicates the request was not authenticated.
var ErrNoUserInContext = errors.New("no user in context")

// WithUserID returns a new context carrying the authenticated user id.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDContextKey{}, userID)
}

// UserIDFromContext extracts the authenticated user id.
// Returns ErrNoUserInContext if not present or empty.
func UserIDFromContext(ctx context.Context) (string, error) {
	id, ok := ctx.Value(userIDContextKey{}).(string)
	if !ok || id == "" {
		return "", ErrNoUserInContext
	}
	return id, nil
}
