package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// identity is what Authenticate resolved for a request: the tenant the API
// key belongs to, the key's lookup prefix, and the scopes it was minted with.
type identity struct {
	tenantID  uuid.UUID
	keyPrefix string
	scopes    []string
}

type identityContextKey struct{}

func withIdentity(ctx context.Context, id identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

func identityFrom(r *http.Request) (identity, bool) {
	id, ok := r.Context().Value(identityContextKey{}).(identity)
	return id, ok
}

// SetTenantID attaches a bare tenant identity to the context. Handler tests
// use it to stand in for Authenticate.
func SetTenantID(ctx context.Context, tenantID uuid.UUID) context.Context {
	return withIdentity(ctx, identity{tenantID: tenantID})
}

// SetAPIKeyIdentity attaches a full key identity to the context, as
// Authenticate would. Exported for middleware and handler tests.
func SetAPIKeyIdentity(ctx context.Context, tenantID uuid.UUID, keyPrefix string, scopes []string) context.Context {
	return withIdentity(ctx, identity{tenantID: tenantID, keyPrefix: keyPrefix, scopes: scopes})
}

// GetTenantID returns the tenant the request was authenticated for.
func GetTenantID(r *http.Request) (uuid.UUID, bool) {
	id, ok := identityFrom(r)
	if !ok {
		return uuid.Nil, false
	}
	return id.tenantID, true
}
