package authctx

import (
	"context"

	"planora-backend/internal/domain"
)

type contextKey string

const identityContextKey contextKey = "identity"

func WithIdentity(ctx context.Context, id domain.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, id)
}

// FromContext returns the identity resolved by the auth middleware, or nil.
func FromContext(ctx context.Context) *domain.Identity {
	val, ok := ctx.Value(identityContextKey).(domain.Identity)
	if !ok {
		return nil
	}
	return &val
}
