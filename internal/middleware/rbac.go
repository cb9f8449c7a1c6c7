package middleware

import (
	"context"
	"net/http"

	"github.com/Strob0t/CommandForge/internal/domain/user"
)

// RoleChecker decides whether an actor may perform an operation requiring
// the given role.
type RoleChecker interface {
	CheckRole(ctx context.Context, actor *user.User, required user.Role) error
}

// RequireRole returns middleware that rejects requests whose actor does
// not satisfy the required role according to checker. An anonymous caller
// gets 401, an authenticated one with an insufficient role gets 403.
func RequireRole(checker RoleChecker, required user.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u := UserFromContext(r.Context())
			if err := checker.CheckRole(r.Context(), u, required); err != nil {
				if u == nil {
					http.Error(w, `{"error":"authorization required"}`, http.StatusUnauthorized)
				} else {
					http.Error(w, `{"error":"forbidden"}`, http.StatusForbidden)
				}
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
