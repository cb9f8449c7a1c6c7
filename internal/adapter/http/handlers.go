package http

import (
	"net/http"

	"github.com/Strob0t/CommandForge/internal/adapter/ws"
	"github.com/Strob0t/CommandForge/internal/domain/cmdlog"
	"github.com/Strob0t/CommandForge/internal/domain/command"
	"github.com/Strob0t/CommandForge/internal/domain/report"
	"github.com/Strob0t/CommandForge/internal/service"
)

// Handlers holds the HTTP handler dependencies.
type Handlers struct {
	Commands *service.CommandService
	Repos    *service.RepoService
	Auth     *service.AuthService
	Hub      *ws.Hub
}

// ListCommands handles GET /api/v1/commands.
// An optional ?status= filter narrows the result to one lifecycle status.
func (h *Handlers) ListCommands(w http.ResponseWriter, r *http.Request) {
	var (
		commands []command.Command
		err      error
	)
	if status := r.URL.Query().Get("status"); status != "" {
		commands, err = h.Commands.ListByStatus(r.Context(), command.Status(status))
	} else {
		commands, err = h.Commands.List(r.Context())
	}
	if err != nil {
		writeDomainError(w, err, "commands unavailable")
		return
	}
	if commands == nil {
		commands = []command.Command{}
	}
	writeJSON(w, http.StatusOK, commands)
}

// GetCommand handles GET /api/v1/commands/{id}
func (h *Handlers) GetCommand(w http.ResponseWriter, r *http.Request) {
	c, err := h.Commands.Get(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "command not found")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// CreateCommand handles POST /api/v1/commands
func (h *Handlers) CreateCommand(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[command.CreateRequest](w, r)
	if !ok {
		return
	}
	c, err := h.Commands.Create(r.Context(), &req)
	if err != nil {
		writeDomainError(w, err, "repo not found")
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// UpdateCommand handles PUT /api/v1/commands/{id}
func (h *Handlers) UpdateCommand(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[command.UpdateRequest](w, r)
	if !ok {
		return
	}
	c, err := h.Commands.Update(r.Context(), urlParam(r, "id"), &req)
	if err != nil {
		writeDomainError(w, err, "command not found")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// RemoveCommand handles DELETE /api/v1/commands/{id}
func (h *Handlers) RemoveCommand(w http.ResponseWriter, r *http.Request) {
	if err := h.Commands.Remove(r.Context(), urlParam(r, "id")); err != nil {
		writeDomainError(w, err, "command not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RestartCommand handles POST /api/v1/commands/{id}/restart
func (h *Handlers) RestartCommand(w http.ResponseWriter, r *http.Request) {
	c, err := h.Commands.Restart(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "command not found")
		return
	}
	writeJSON(w, http.StatusAccepted, c)
}

// ResumeCommand handles POST /api/v1/commands/{id}/resume
func (h *Handlers) ResumeCommand(w http.ResponseWriter, r *http.Request) {
	c, err := h.Commands.Resume(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "command not found")
		return
	}
	writeJSON(w, http.StatusAccepted, c)
}

// StopCommand handles POST /api/v1/commands/{id}/stop
//
// The stop is cooperative: 202 means the request was delivered, and the
// command reports stopped once the runner reaches a stage boundary.
func (h *Handlers) StopCommand(w http.ResponseWriter, r *http.Request) {
	if err := h.Commands.Stop(r.Context(), urlParam(r, "id")); err != nil {
		writeDomainError(w, err, "command not found")
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// LockCommand handles POST /api/v1/commands/{id}/lock
func (h *Handlers) LockCommand(w http.ResponseWriter, r *http.Request) {
	c, err := h.Commands.Lock(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "command not found")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// UnlockCommand handles POST /api/v1/commands/{id}/unlock
func (h *Handlers) UnlockCommand(w http.ResponseWriter, r *http.Request) {
	c, err := h.Commands.Unlock(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "command not found")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// ExecutionLog handles GET /api/v1/commands/{id}/logs/execution?after=N
func (h *Handlers) ExecutionLog(w http.ResponseWriter, r *http.Request) {
	entries, err := h.Commands.ExecutionLog(r.Context(), urlParam(r, "id"), afterID(r))
	if err != nil {
		writeDomainError(w, err, "command not found")
		return
	}
	writeLogEntries(w, entries)
}

// AuditLog handles GET /api/v1/commands/{id}/logs/audit?after=N
func (h *Handlers) AuditLog(w http.ResponseWriter, r *http.Request) {
	entries, err := h.Commands.AuditLog(r.Context(), urlParam(r, "id"), afterID(r))
	if err != nil {
		writeDomainError(w, err, "command not found")
		return
	}
	writeLogEntries(w, entries)
}

func writeLogEntries(w http.ResponseWriter, entries []cmdlog.Entry) {
	if entries == nil {
		entries = []cmdlog.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// CheckReports handles GET /api/v1/commands/{id}/check-reports
func (h *Handlers) CheckReports(w http.ResponseWriter, r *http.Request) {
	reports, err := h.Commands.CheckReports(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "command not found")
		return
	}
	if reports == nil {
		reports = []report.CheckReport{}
	}
	writeJSON(w, http.StatusOK, reports)
}

// TestReports handles GET /api/v1/commands/{id}/test-reports
func (h *Handlers) TestReports(w http.ResponseWriter, r *http.Request) {
	reports, err := h.Commands.TestReports(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "command not found")
		return
	}
	if reports == nil {
		reports = []report.TestReport{}
	}
	writeJSON(w, http.StatusOK, reports)
}

// Artifact handles GET /api/v1/commands/{id}/artifact
func (h *Handlers) Artifact(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	path, err := h.Commands.Artifact(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, "artifact not found")
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="`+id+`.zip"`)
	http.ServeFile(w, r, path)
}

// CommandLine handles GET /api/v1/commands/{id}/command-line
func (h *Handlers) CommandLine(w http.ResponseWriter, r *http.Request) {
	line, err := h.Commands.CommandLine(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "command not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"command_line": line})
}
