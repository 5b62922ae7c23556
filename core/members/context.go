package members

import (
	"context"

	"missionctl/core/store"
)

type contextKey struct{}

// WithMember stores the resolved workspace membership on the context.
func WithMember(ctx context.Context, m *store.Member) context.Context {
	return context.WithValue(ctx, contextKey{}, m)
}

// FromContext returns the membership placed by the workspace middleware,
// or nil outside workspace-scoped routes.
func FromContext(ctx context.Context) *store.Member {
	m, _ := ctx.Value(contextKey{}).(*store.Member)
	return m
}
