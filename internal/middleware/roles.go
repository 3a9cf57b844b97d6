package middleware

import (
	"net/http"
)

// RequireRole allows the request through only when the authenticated person
// has one of roles. It must run after Auth.
func RequireRole(roles ...uint) func(http.Handler) http.Handler {
	allowed := make(map[uint]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, ok := RoleID(r.Context())
			if !ok {
				http.Error(w, "Authentication required", http.StatusUnauthorized)
				return
			}
			if !allowed[role] {
				http.Error(w, "Insufficient role", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
