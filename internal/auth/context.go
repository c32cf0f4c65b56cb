package auth

import (
	"context"

	"subtrack/internal/models"
)

type ctxKey string

const (
	claimsKey ctxKey = "claims"
	userKey   ctxKey = "currentUser"
)

type Claims struct {
	Subject string
	Role    string
	JWTID   string
}

func (c Claims) HasRole(roles ...string) bool {
	for _, r := range roles {
		if c.Role == r {
			return true
		}
	}
	return false
}

func WithClaims(ctx context.Context, c Claims) context.Context {
	return context.WithValue(ctx, claimsKey, c)
}

func FromContext(ctx context.Context) Claims {
	if v, ok := ctx.Value(claimsKey).(Claims); ok {
		return v
	}
	return Claims{}
}

func Subject(ctx context.Context) string {
	return FromContext(ctx).Subject
}

// WithUser stashes the loaded user row so handlers don't refetch it.
func WithUser(ctx context.Context, u *models.User) context.Context {
	return context.WithValue(ctx, userKey, u)
}

func UserFromContext(ctx context.Context) *models.User {
	if v, ok := ctx.Value(userKey).(*models.User); ok {
		return v
	}
	return nil
}
