package rbac

import (
	"net/http"

	"github.com/rs/zerolog/log"
)

var defaultChecker = NewChecker(nil)

// Allowed reports whether role holds perm under the default policy.
func Allowed(role, perm string) bool { return defaultChecker.Has(role, perm) }

// Require rejects requests whose role lacks perm.
func Require(perm string) func(http.Handler) http.Handler {
	return guard([]string{perm}, defaultChecker.Any)
}

// RequireAny rejects requests whose role holds none of perms.
func RequireAny(perms ...string) func(http.Handler) http.Handler {
	return guard(perms, defaultChecker.Any)
}

func guard(perms []string, ok func(role string, perms ...string) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := RoleFromContext(r.Context())
			if !ok(role, perms...) {
				log.Debug().Str("role", role).Strs("perms", perms).Str("path", r.URL.Path).Msg("permission denied")
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
