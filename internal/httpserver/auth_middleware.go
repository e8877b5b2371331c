package httpserver

import (
	"context"
	"net/http"
	"strings"

	"homehub/internal/domain"
	"homehub/internal/security"
)

type contextKey string

const identityContextKey contextKey = "identity"

// WithIdentity returns a new context carrying the caller's identity.
func WithIdentity(ctx context.Context, id *security.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, id)
}

// CurrentIdentity extracts the caller's identity from context, if any.
func CurrentIdentity(r *http.Request) *security.Identity {
	if v := r.Context().Value(identityContextKey); v != nil {
		if id, ok := v.(*security.Identity); ok {
			return id
		}
	}
	return nil
}

// AuthMiddleware decodes the Bearer credential and attaches the identity
// it carries to the request context. The identity provider is external;
// the decoded claims are trusted as-is. A missing or malformed credential
// is 401, which is distinct from the 403 the access guard produces for
// an authenticated caller without membership.
func AuthMiddleware(tokens *security.TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" || !strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
				writeError(w, domain.ErrUnauthorized)
				return
			}
			tokenStr := strings.TrimSpace(authHeader[len("Bearer "):])

			identity, err := tokens.Parse(tokenStr)
			if err != nil {
				writeError(w, domain.ErrUnauthorized)
				return
			}

			ctx := WithIdentity(r.Context(), identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
