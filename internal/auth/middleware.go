// internal/auth/middleware.go

package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/formhive/formhive-backend/internal/common/utils"
)

// Middleware protects the admin surface with a static bearer token
type Middleware struct {
	adminToken string
}

// NewMiddleware creates the admin auth middleware
func NewMiddleware(adminToken string) *Middleware {
	return &Middleware{adminToken: adminToken}
}

// RequireAdmin rejects requests that do not carry the configured admin
// token. With no token configured the admin surface is closed entirely.
func (m *Middleware) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.adminToken == "" {
			utils.ErrorResponse(w, "Admin API is disabled", http.StatusForbidden)
			return
		}

		token := m.extractToken(r)
		if token == "" {
			utils.ErrorResponse(w, "Missing or invalid authorization header", http.StatusUnauthorized)
			return
		}

		if subtle.ConstantTimeCompare([]byte(token), []byte(m.adminToken)) != 1 {
			utils.ErrorResponse(w, "Invalid admin token", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// extractToken gets the bearer token from the Authorization header
func (m *Middleware) extractToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}
