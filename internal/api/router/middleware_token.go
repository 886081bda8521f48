package router

import (
	"net/http"
	"strings"
)

const toolTokenHeader = "X-Tool-Token"

// requireToolToken guards the voice tool webhook with a shared secret. The
// token arrives either in X-Tool-Token or as a bearer token. When expected is
// empty, the middleware is a no-op.
func requireToolToken(expected string) func(http.Handler) http.Handler {
	expected = strings.TrimSpace(expected)
	return func(next http.Handler) http.Handler {
		if expected == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := strings.TrimSpace(r.Header.Get(toolTokenHeader))
			if token == "" {
				auth := strings.TrimSpace(r.Header.Get("Authorization"))
				if rest, ok := strings.CutPrefix(auth, "Bearer "); ok {
					token = strings.TrimSpace(rest)
				}
			}
			if token == "" || token != expected {
				http.Error(w, "invalid tool token", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
