// Package command defines the Command domain entity: one persistent,
// restartable code-change job against a target repository.
package command

import (
	"fmt"
	"strings"
	"time"

	"github.com/Strob0t/CommandForge/internal/domain"
)

// Status represents the coarse run state of a command.
type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusFailed  Status = "failed"
	StatusStopped Status = "stopped"
	StatusDone    Status = "done"
)

// ValidStatus reports whether s is a known command status.
func ValidStatus(s Status) bool {
	switch s {
	case StatusPending, StatusRunning, StatusFailed, StatusStopped, StatusDone:
		return true
	}
	return false
}

// Resumable reports whether a command in this status may be resumed.
func (s Status) Resumable() bool {
	return s == StatusFailed || s == StatusStopped
}

// Terminal reports whether the runner will take no further action.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusFailed || s == StatusStopped
}

// Command is one instance of the automated code-change job. Status, stage
// and flags are owned exclusively by this record; logs, reports and the
// artifact are keyed by its ID.
type Command struct {
	ID     string `json:"id"`
	RepoID string `json:"repo_id"`

	Status Status `json:"status"`
	Stage  Stage  `json:"stage"`

	// HasChanges is set once the tool run is known to have produced a
	// working-tree diff. It gates the push and commit-id stages.
	HasChanges bool `json:"has_changes"`

	// Locked is an administrative freeze orthogonal to Status. A locked
	// command accepts only read operations.
	Locked bool `json:"locked"`

	// Job configuration, captured at creation and mutable only via update.
	TargetPaths []string `json:"target_paths"`
	Options     []string `json:"options,omitempty"`

	CommitID  string `json:"commit_id,omitempty"`
	CommitURL string `json:"commit_url,omitempty"`

	// Error holds the cause of the most recent failure, cleared on restart.
	Error string `json:"error,omitempty"`

	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateRequest holds the fields needed to create a command.
type CreateRequest struct {
	RepoID      string   `json:"repo_id"`
	TargetPaths []string `json:"target_paths"`
	Options     []string `json:"options,omitempty"`
}

// Validate checks structural requirements. Target path membership in the
// repo's discovered paths is checked by the facade, which owns the repo.
func (r *CreateRequest) Validate() error {
	if r.RepoID == "" {
		return fmt.Errorf("repo_id is required: %w", domain.ErrValidation)
	}
	if len(r.TargetPaths) == 0 {
		return fmt.Errorf("at least one target path is required: %w", domain.ErrValidation)
	}
	for _, p := range r.TargetPaths {
		if err := validateTargetPath(p); err != nil {
			return err
		}
	}
	return nil
}

// UpdateRequest mutates the creation-time configuration of a non-running,
// unlocked command. Status and stage are never touched by an update.
type UpdateRequest struct {
	TargetPaths []string `json:"target_paths"`
	Options     []string `json:"options,omitempty"`
}

// Validate checks structural requirements of an update.
func (r *UpdateRequest) Validate() error {
	if len(r.TargetPaths) == 0 {
		return fmt.Errorf("at least one target path is required: %w", domain.ErrValidation)
	}
	for _, p := range r.TargetPaths {
		if err := validateTargetPath(p); err != nil {
			return err
		}
	}
	return nil
}

func validateTargetPath(p string) error {
	if p == "" {
		return fmt.Errorf("target path must not be empty: %w", domain.ErrValidation)
	}
	if strings.HasPrefix(p, "/") {
		return fmt.Errorf("target path %q must be repo-relative: %w", p, domain.ErrValidation)
	}
	if strings.Contains(p, "..") {
		return fmt.Errorf("target path %q must not contain '..': %w", p, domain.ErrValidation)
	}
	return nil
}

// CommandLine renders the tool invocation equivalent to this command,
// shown to operators for copy/paste reproduction.
func (c *Command) CommandLine(tool, repoDir string) string {
	parts := []string{tool}
	parts = append(parts, c.Options...)
	parts = append(parts, repoDir)
	parts = append(parts, c.TargetPaths...)
	return strings.Join(parts, " ")
}
