package gatekeeper

import (
	"context"

	"github.com/jrsteele09/go-session-server/token"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

// ContextKeyIdentity stores the verified identity claims
const ContextKeyIdentity ContextKey = "identity"

func WithIdentity(ctx context.Context, identity *token.IdentityClaims) context.Context {
	return context.WithValue(ctx, ContextKeyIdentity, identity)
}

// IdentityFromContext returns the identity placed by the gatekeeper middleware
func IdentityFromContext(ctx context.Context) (*token.IdentityClaims, bool) {
	identity, ok := ctx.Value(ContextKeyIdentity).(*token.IdentityClaims)
	return identity, ok && identity != nil
}
