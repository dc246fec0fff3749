package auth

import (
	"net/http"
	"strings"

	"github.com/lumina-lms/lumina/internal/platform/httpx"
	"github.com/lumina-lms/lumina/internal/shared"
)

// Middleware resolves the Authorization bearer token into an Actor in the
// request context. Requests without a valid token are rejected.
func Middleware(tokens *TokenManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				httpx.RespondError(w, shared.ErrUnauthenticated)
				return
			}
			actor, err := tokens.Resolve(r.Context(), token)
			if err != nil {
				httpx.RespondError(w, err)
				return
			}
			ctx := shared.ContextWithActor(r.Context(), actor)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
