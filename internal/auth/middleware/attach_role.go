package auth

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/mind-engage/examportal/internal/rbac"
)

// RoleSource resolves the stored role of a user.
type RoleSource interface {
	RoleOf(ctx context.Context, userID string) (string, error)
}

// AttachRoleFromDB replaces the token's role claim with the stored role, so a demoted
// or deleted account loses access before its token expires. Runs after JWTMiddleware.
func AttachRoleFromDB(users RoleSource) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			sub := SubjectFromContext(ctx)
			role, err := users.RoleOf(ctx, sub)
			if err != nil || role == "" {
				log.Warn().Err(err).Str("user_id", sub).Msg("role lookup failed")
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r.WithContext(rbac.WithRole(ctx, role)))
		})
	}
}
