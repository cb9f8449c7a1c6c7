// Package middleware provides HTTP middleware for authentication and
// role-based access control.
package middleware

import (
	"context"
	"net/http"

	"github.com/Strob0t/CommandForge/internal/domain/user"
	"github.com/Strob0t/CommandForge/internal/service"
)

type authUserCtxKey struct{}

// Auth returns middleware that resolves the X-API-Key header to a user.
// When authEnabled is false, a default admin context is injected. Requests
// without a key proceed anonymously; role gates decide what they may do.
func Auth(authSvc *service.AuthService, authEnabled bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !authEnabled {
				defaultUser := &user.User{
					ID:      "00000000-0000-0000-0000-000000000000",
					Name:    "Admin",
					Role:    user.RoleAdmin,
					Enabled: true,
				}
				ctx := context.WithValue(r.Context(), authUserCtxKey{}, defaultUser)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			apiKey := r.Header.Get("X-API-Key")
			if apiKey == "" {
				next.ServeHTTP(w, r)
				return
			}

			u, err := authSvc.Authenticate(r.Context(), apiKey)
			if err != nil {
				http.Error(w, `{"error":"invalid api key"}`, http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), authUserCtxKey{}, u)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserFromContext returns the authenticated user from the request context,
// or nil for anonymous requests.
func UserFromContext(ctx context.Context) *user.User {
	u, _ := ctx.Value(authUserCtxKey{}).(*user.User)
	return u
}

// WithUser injects a user into the context. Exported for handler tests.
func WithUser(ctx context.Context, u *user.User) context.Context {
	return context.WithValue(ctx, authUserCtxKey{}, u)
}
