package web

import (
	"context"

	"github.com/avstrong/tours/internal/domain"
)

type identityKey struct{}

func withIdentity(ctx context.Context, id *domain.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

func identityFromContext(ctx context.Context) (*domain.Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(*domain.Identity)

	return id, ok && id != nil
}
