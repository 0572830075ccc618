package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// Middleware returns an HTTP middleware that validates the Bearer token.
// An empty token disables the check.
func Middleware(token string, next http.Handler) http.Handler {
	if token == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !Valid(r, token) {
			w.Header().Set("WWW-Authenticate", `Bearer realm="stackdash"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Valid reports whether r carries "Authorization: Bearer <token>".
func Valid(r *http.Request, token string) bool {
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(parts[1]), []byte(token)) == 1
}

// SetHeader adds the Bearer header to an outgoing request when token is set.
func SetHeader(req *http.Request, token string) {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}
