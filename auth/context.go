package auth

import (
	"context"
)

// `contextKey` is a custom type for context keys so they cannot collide
// with keys defined in other packages.
type contextKey string

const userContextKey contextKey = "auth_user"

// NewContextWithUser returns a child context carrying the authenticated user.
func NewContextWithUser(ctx context.Context, user *User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// CurrentUser returns the user LoadSession bound to this request, if any.
func CurrentUser(ctx context.Context) (*User, bool) {
	user, ok := ctx.Value(userContextKey).(*User)
	return user, ok && user != nil
}

// Guard is the check behind every protected route: it fails with an
// Unauthorized error when the request has no authenticated user.
func Guard(ctx context.Context) error {
	if _, ok := CurrentUser(ctx); !ok {
		return ErrNoSession
	}
	return nil
}
