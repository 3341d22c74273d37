package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/hearthchat/backend/internal/auth"
	"github.com/hearthchat/backend/internal/model/identity"
)

type contextKey string

const principalKey contextKey = "principal"

// RequirePrincipal resolves the bearer token against the table and stores
// the principal in the request context. Commands without a valid token are
// rejected; author identity always comes from here, never from the payload.
func RequirePrincipal(table auth.TokenTable) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				http.Error(w, "missing bearer token", http.StatusUnauthorized)
				return
			}
			principal, ok := table.Resolve(token)
			if !ok {
				http.Error(w, "unknown token", http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), principalKey, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// PrincipalFrom extracts the authenticated principal, if the request passed
// through RequirePrincipal.
func PrincipalFrom(ctx context.Context) (identity.Principal, bool) {
	principal, ok := ctx.Value(principalKey).(identity.Principal)
	return principal, ok
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
