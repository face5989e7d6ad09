package middleware

import (
	"net/http"

	"github.com/MrEthical07/staffsync/errkind"
)

// PermissionChecker reports whether a role grants a permission.
// *permission.RoleManager implements it.
type PermissionChecker interface {
	Has(role, permission string) bool
}

// RequireRoles admits requests whose claims carry one of roles. It must run
// after Guard; without claims it answers 401 MissingToken.
func RequireRoles(roles []string, opts ...Option) func(http.Handler) http.Handler {
	o := buildOptions(opts)
	allowed := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				o.reject(w, r, errkind.ErrMissingToken, "")
				return
			}
			if _, ok := allowed[claims.Role]; !ok {
				o.reject(w, r, errkind.ErrInsufficientRole, claims.Subject)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequirePermission admits requests whose role grants perm according to checker.
func RequirePermission(checker PermissionChecker, perm string, opts ...Option) func(http.Handler) http.Handler {
	o := buildOptions(opts)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				o.reject(w, r, errkind.ErrMissingToken, "")
				return
			}
			if checker == nil || !checker.Has(claims.Role, perm) {
				o.reject(w, r, errkind.ErrInsufficientRole, claims.Subject)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
