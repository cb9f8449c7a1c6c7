package service

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/Strob0t/CommandForge/internal/config"
	"github.com/Strob0t/CommandForge/internal/domain"
	"github.com/Strob0t/CommandForge/internal/domain/repo"
	"github.com/Strob0t/CommandForge/internal/port/database"
	"github.com/Strob0t/CommandForge/internal/port/gitprovider"
)

// RepoService manages the registry of target repositories and their
// discovered available paths, which bound the target paths a command may
// name at creation.
type RepoService struct {
	store    database.Store
	provider gitprovider.Provider
	workDir  string
	gitHost  string
}

// NewRepoService creates a RepoService.
func NewRepoService(store database.Store, provider gitprovider.Provider, cfg config.Runner, gitHost string) *RepoService {
	return &RepoService{
		store:    store,
		provider: provider,
		workDir:  cfg.WorkDir,
		gitHost:  strings.TrimSuffix(gitHost, "/"),
	}
}

// Create registers a repository. The clone URL defaults to the configured
// git host when not given.
func (s *RepoService) Create(ctx context.Context, req *repo.CreateRequest) (*repo.Repo, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if existing, err := s.store.GetRepoByFullName(ctx, req.Owner, req.Name); err == nil {
		return nil, fmt.Errorf("repo %s already registered: %w", existing.FullName(), domain.ErrConflict)
	}

	r := &repo.Repo{
		ID:       uuid.NewString(),
		Owner:    req.Owner,
		Name:     req.Name,
		CloneURL: req.CloneURL,
	}
	if r.CloneURL == "" {
		r.CloneURL = s.gitHost + "/" + r.FullName() + ".git"
	}

	if err := s.store.CreateRepo(ctx, r); err != nil {
		return nil, fmt.Errorf("create repo: %w", err)
	}

	slog.Info("repo registered", "repo_id", r.ID, "repo", r.FullName())
	return r, nil
}

// List returns all registered repositories.
func (s *RepoService) List(ctx context.Context) ([]repo.Repo, error) {
	return s.store.ListRepos(ctx)
}

// Get returns a repository by id.
func (s *RepoService) Get(ctx context.Context, id string) (*repo.Repo, error) {
	return s.store.GetRepo(ctx, id)
}

// Delete removes a repository from the registry. Commands referencing it
// keep their captured configuration.
func (s *RepoService) Delete(ctx context.Context, id string) error {
	return s.store.DeleteRepo(ctx, id)
}

// RefreshPaths clones or pulls the upstream into the shared work tree and
// re-discovers the available target paths.
func (s *RepoService) RefreshPaths(ctx context.Context, id string) (*repo.Repo, error) {
	r, err := s.store.GetRepo(ctx, id)
	if err != nil {
		return nil, err
	}

	workTree := filepath.Join(s.workDir, r.Owner, r.Name)
	if err := s.provider.CloneOrPull(ctx, r.CloneURL, workTree); err != nil {
		return nil, fmt.Errorf("clone %s: %w", r.FullName(), err)
	}

	paths, err := repo.DiscoverPaths(workTree)
	if err != nil {
		return nil, fmt.Errorf("discover paths for %s: %w", r.FullName(), err)
	}

	r.AvailablePaths = paths
	if err := s.store.UpdateRepo(ctx, r); err != nil {
		return nil, err
	}

	slog.Info("repo paths refreshed", "repo_id", r.ID, "repo", r.FullName(), "paths", len(paths))
	return r, nil
}
