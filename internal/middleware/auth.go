package middleware

import (
	"context"
	"net/http"
	"strings"

	"vpos-gateway/internal/admin"
	"vpos-gateway/internal/utils"
)

type contextKey string

const AdminClaimsKey contextKey = "adminClaims"

// RequireAdmin rejects requests without a valid operator token. Valid claims
// are stored on the request context for handlers that want them.
func RequireAdmin(auth *admin.Auth) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
				utils.WriteJSONError(w, "missing authorization token", http.StatusUnauthorized)
				return
			}

			claims, err := auth.ParseToken(strings.TrimPrefix(authHeader, "Bearer "))
			if err != nil {
				utils.WriteJSONError(w, "invalid authorization token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), AdminClaimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AdminClaimsFrom returns the validated claims set by RequireAdmin.
func AdminClaimsFrom(ctx context.Context) (*admin.Claims, bool) {
	claims, ok := ctx.Value(AdminClaimsKey).(*admin.Claims)
	return claims, ok
}
