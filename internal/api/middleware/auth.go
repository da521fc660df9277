package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/Soba101/FluxADM/internal/api/response"
	"github.com/Soba101/FluxADM/internal/store"
	"github.com/Soba101/FluxADM/pkg/models"
)

// apiKeyPrefixLen is the number of leading key characters stored in clear for
// index lookup. The full key is only ever compared against its bcrypt hash.
const apiKeyPrefixLen = 8

var (
	errNoCredentials = errors.New("missing bearer credentials")
	errUnknownKey    = errors.New("api key not recognized")
)

// Auth authenticates requests by API key and enforces key scopes.
type Auth struct {
	store store.Store
}

// NewAuth creates the Auth middleware backed by the given store.
func NewAuth(s store.Store) *Auth {
	return &Auth{store: s}
}

// Authenticate resolves the Bearer API key to a tenant identity and stores
// it on the request context for the handlers downstream.
func (a *Auth) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key, err := a.resolveKey(r)
		switch {
		case err == nil:
		case errors.Is(err, errNoCredentials), errors.Is(err, errUnknownKey):
			slog.Warn("rejected api key", "path", r.URL.Path, "error", err)
			response.Error(w, http.StatusUnauthorized,
				"INVALID_TOKEN", "Missing or invalid API key", nil)
			return
		default:
			slog.Error("api key lookup failed", "path", r.URL.Path, "error", err)
			response.Error(w, http.StatusInternalServerError,
				"INTERNAL_ERROR", "Failed to validate API key", nil)
			return
		}

		// Touch last_used_at off the request path.
		go a.store.UpdateAPIKeyLastUsed(context.Background(), key.ID)

		ctx := withIdentity(r.Context(), identity{
			tenantID:  key.TenantID,
			keyPrefix: key.KeyPrefix,
			scopes:    key.Scopes,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// resolveKey extracts the bearer token and matches it against the stored
// hashes sharing its prefix.
func (a *Auth) resolveKey(r *http.Request) (*models.APIKey, error) {
	raw, ok := bearerToken(r.Header.Get("Authorization"))
	if !ok || len(raw) < apiKeyPrefixLen {
		return nil, errNoCredentials
	}

	candidates, err := a.store.GetAPIKeyByPrefix(r.Context(), raw[:apiKeyPrefixLen])
	if err != nil {
		return nil, fmt.Errorf("looking up api key: %w", err)
	}

	for _, key := range candidates {
		if bcrypt.CompareHashAndPassword([]byte(key.KeyHash), []byte(raw)) == nil {
			return key, nil
		}
	}
	return nil, errUnknownKey
}

// RequireScope gates a route on the authenticated key carrying the scope.
func (a *Auth) RequireScope(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := identityFrom(r)
			if !ok || !slices.Contains(id.scopes, scope) {
				response.Error(w, http.StatusForbidden,
					"FORBIDDEN", "API key lacks the required scope", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(header string) (string, bool) {
	const scheme = "bearer "
	if len(header) <= len(scheme) || !strings.EqualFold(header[:len(scheme)], scheme) {
		return "", false
	}
	token := strings.TrimSpace(header[len(scheme):])
	return token, token != ""
}
