// Package repo defines the target repository entity commands run against.
package repo

import (
	"fmt"
	"strings"
	"time"

	"github.com/Strob0t/CommandForge/internal/domain"
)

// Repo is a registered target repository. Commands reference a repo by id;
// its discovered paths bound the target paths a command may name.
type Repo struct {
	ID       string `json:"id"`
	Owner    string `json:"owner"`
	Name     string `json:"name"`
	CloneURL string `json:"clone_url"`

	// AvailablePaths is the most recent path discovery result for the
	// cloned work tree. Empty until the repo has been cloned once.
	AvailablePaths []string `json:"available_paths,omitempty"`

	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FullName returns the owner/name form used in git hosting URLs.
func (r *Repo) FullName() string {
	return r.Owner + "/" + r.Name
}

// HasPath reports whether p is among the discovered available paths.
func (r *Repo) HasPath(p string) bool {
	for _, ap := range r.AvailablePaths {
		if ap == p {
			return true
		}
	}
	return false
}

// CreateRequest holds the fields needed to register a repository.
type CreateRequest struct {
	Owner    string `json:"owner"`
	Name     string `json:"name"`
	CloneURL string `json:"clone_url,omitempty"`
}

// Validate checks structural requirements of a repo registration.
func (r *CreateRequest) Validate() error {
	if r.Owner == "" {
		return fmt.Errorf("owner is required: %w", domain.ErrValidation)
	}
	if r.Name == "" {
		return fmt.Errorf("name is required: %w", domain.ErrValidation)
	}
	for _, s := range []string{r.Owner, r.Name} {
		if strings.ContainsAny(s, "/\\ ") {
			return fmt.Errorf("%q must not contain separators or spaces: %w", s, domain.ErrValidation)
		}
	}
	return nil
}
