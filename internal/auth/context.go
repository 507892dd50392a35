package auth

import (
	"context"

	"github.com/roommend/roommend/internal/rbac"
)

type providerContextKey struct{}

// ContextWithProvider stores the request's identity provider in context.
func ContextWithProvider(ctx context.Context, p *Provider) context.Context {
	return context.WithValue(ctx, providerContextKey{}, p)
}

// ProviderFromContext extracts the identity provider from context.
func ProviderFromContext(ctx context.Context) *Provider {
	p, _ := ctx.Value(providerContextKey{}).(*Provider)
	return p
}

// PrincipalFromContext resolves the guard principal of a request. A request
// without a provider is treated as anonymous.
func PrincipalFromContext(ctx context.Context) rbac.Principal {
	if p := ProviderFromContext(ctx); p != nil {
		return p
	}
	return nil
}
