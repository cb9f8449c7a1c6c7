package http

import (
	"net/http"

	"github.com/Strob0t/CommandForge/internal/domain/repo"
)

// ListRepos handles GET /api/v1/repos
func (h *Handlers) ListRepos(w http.ResponseWriter, r *http.Request) {
	repos, err := h.Repos.List(r.Context())
	if err != nil {
		writeInternalError(w, err)
		return
	}
	if repos == nil {
		repos = []repo.Repo{}
	}
	writeJSON(w, http.StatusOK, repos)
}

// GetRepo handles GET /api/v1/repos/{id}
func (h *Handlers) GetRepo(w http.ResponseWriter, r *http.Request) {
	rep, err := h.Repos.Get(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "repo not found")
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// CreateRepo handles POST /api/v1/repos
func (h *Handlers) CreateRepo(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[repo.CreateRequest](w, r)
	if !ok {
		return
	}
	rep, err := h.Repos.Create(r.Context(), &req)
	if err != nil {
		writeDomainError(w, err, "repo creation failed")
		return
	}
	writeJSON(w, http.StatusCreated, rep)
}

// DeleteRepo handles DELETE /api/v1/repos/{id}
func (h *Handlers) DeleteRepo(w http.ResponseWriter, r *http.Request) {
	if err := h.Repos.Delete(r.Context(), urlParam(r, "id")); err != nil {
		writeDomainError(w, err, "repo not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RefreshRepoPaths handles POST /api/v1/repos/{id}/refresh-paths
//
// It clones (or pulls) the repository and rescans the work tree, so the
// response carries a current AvailablePaths set.
func (h *Handlers) RefreshRepoPaths(w http.ResponseWriter, r *http.Request) {
	rep, err := h.Repos.RefreshPaths(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "repo not found")
		return
	}
	writeJSON(w, http.StatusOK, rep)
}
