package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Strob0t/CommandForge/internal/domain/user"
	"github.com/Strob0t/CommandForge/internal/middleware"
)

// MountRoutes registers all API routes on the given chi router.
//
// Reads are open to any authenticated (or anonymous) caller; lifecycle
// mutations need RoleUser; lock, unlock and removal need RoleAdmin.
func MountRoutes(r chi.Router, h *Handlers) {
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/ws", h.Hub.HandleWS)

	r.Route("/api/v1", func(r chi.Router) {
		// Version
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"version":"0.1.0"}`))
		})

		r.Route("/commands", func(r chi.Router) {
			r.Get("/", h.ListCommands)
			r.Get("/{id}", h.GetCommand)
			r.Get("/{id}/logs/execution", h.ExecutionLog)
			r.Get("/{id}/logs/audit", h.AuditLog)
			r.Get("/{id}/check-reports", h.CheckReports)
			r.Get("/{id}/test-reports", h.TestReports)
			r.Get("/{id}/artifact", h.Artifact)
			r.Get("/{id}/command-line", h.CommandLine)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(h.Auth, user.RoleUser))
				r.Post("/", h.CreateCommand)
				r.Put("/{id}", h.UpdateCommand)
				r.Post("/{id}/restart", h.RestartCommand)
				r.Post("/{id}/resume", h.ResumeCommand)
				r.Post("/{id}/stop", h.StopCommand)
			})

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(h.Auth, user.RoleAdmin))
				r.Post("/{id}/lock", h.LockCommand)
				r.Post("/{id}/unlock", h.UnlockCommand)
				r.Delete("/{id}", h.RemoveCommand)
			})
		})

		r.Route("/repos", func(r chi.Router) {
			r.Get("/", h.ListRepos)
			r.Get("/{id}", h.GetRepo)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(h.Auth, user.RoleUser))
				r.Post("/", h.CreateRepo)
				r.Post("/{id}/refresh-paths", h.RefreshRepoPaths)
			})

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(h.Auth, user.RoleAdmin))
				r.Delete("/{id}", h.DeleteRepo)
			})
		})
	})
}
