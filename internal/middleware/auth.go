package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/smbt-dev/inspectgo/internal/utils"
)

type contextKey string

const UserContextKey contextKey = "user"

// Auth returns a middleware that verifies bearer JWT access tokens signed
// with secret and stores their claims in the request context. Websocket
// upgrades may carry the token in the access_token query parameter instead,
// since browsers cannot set headers on them.
func Auth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, msg := bearerToken(r)
			if msg != "" {
				http.Error(w, msg, http.StatusUnauthorized)
				return
			}

			claims, err := utils.ValidateAccessToken(token, secret)
			if err != nil {
				http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
				return
			}

			// Add claims to context
			ctx := context.WithValue(r.Context(), UserContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken extracts the raw token of r, or a message saying why it could not
func bearerToken(r *http.Request) (string, string) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
			if token := r.URL.Query().Get("access_token"); token != "" {
				return token, ""
			}
		}
		return "", "Authorization header required"
	}

	// Bearer token
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", "Invalid authorization header format"
	}
	return parts[1], ""
}

// Claims returns the token claims stored by Auth
func Claims(ctx context.Context) (jwt.MapClaims, bool) {
	claims, ok := ctx.Value(UserContextKey).(jwt.MapClaims)
	return claims, ok
}

// PersonID returns the id of the authenticated person
func PersonID(ctx context.Context) (uint, bool) {
	claims, ok := Claims(ctx)
	if !ok {
		return 0, false
	}
	return utils.ClaimUint(claims, "person_id")
}

// RoleID returns the role of the authenticated person
func RoleID(ctx context.Context) (uint, bool) {
	claims, ok := Claims(ctx)
	if !ok {
		return 0, false
	}
	return utils.ClaimUint(claims, "role_id")
}
