package chi

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
)

type authorizedKey struct{}

// IsAuthorized reports whether the request carried a valid admin bearer token.
func IsAuthorized(ctx context.Context) bool {
	ok, _ := ctx.Value(authorizedKey{}).(bool)
	return ok
}

// WithAuthorized marks ctx as belonging to an authorized caller.
func WithAuthorized(ctx context.Context, authorized bool) context.Context {
	return context.WithValue(ctx, authorizedKey{}, authorized)
}

// BearerAuthMiddleware resolves the Authorization header against apiKeys and
// records the outcome in the request context. It never rejects: a missing,
// malformed or unknown token leaves the caller unauthorized.
// If apiKeys is empty, no caller is authorized.
func BearerAuthMiddleware(apiKeys []string) func(http.Handler) http.Handler {
	validKeys := make([][]byte, 0, len(apiKeys))
	for _, k := range apiKeys {
		if k != "" {
			validKeys = append(validKeys, []byte(k))
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok := len(validKeys) > 0 && tokenValid(r.Header.Get("Authorization"), validKeys)
			next.ServeHTTP(w, r.WithContext(WithAuthorized(r.Context(), ok)))
		})
	}
}

// RequireAuthorized rejects unauthorized callers with 401.
func RequireAuthorized(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !IsAuthorized(r.Context()) {
			w.Header().Set("WWW-Authenticate", `Bearer realm="archive"`)
			writeError(w, http.StatusUnauthorized, ErrorResponseCodeUnauthorized, "valid bearer token required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func tokenValid(header string, validKeys [][]byte) bool {
	const bearerPrefix = "Bearer "
	if !strings.HasPrefix(header, bearerPrefix) {
		return false
	}
	token := []byte(header[len(bearerPrefix):])
	for _, k := range validKeys {
		if subtle.ConstantTimeCompare(token, k) == 1 {
			return true
		}
	}
	return false
}
