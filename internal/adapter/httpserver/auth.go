package httpserver

import (
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/quave-io/frida-go/internal/config"
)

// APIKeyGuard protects mutating endpoints (the label endpoint) with a
// static API key checked against a bcrypt hash configured at startup. A
// no-op when no hash is configured, matching dev-mode convenience.
func APIKeyGuard(cfg config.Config) func(http.Handler) http.Handler {
	if !cfg.AdminAuthEnabled() {
		return func(next http.Handler) http.Handler { return next }
	}
	hash := []byte(cfg.AdminAPIKeyHash)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := strings.TrimSpace(r.Header.Get("X-API-Key"))
			if key == "" || bcrypt.CompareHashAndPassword(hash, []byte(key)) != nil {
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
