package postgres

import (
	"context"
	"fmt"

	"github.com/Strob0t/CommandForge/internal/domain"
	"github.com/Strob0t/CommandForge/internal/domain/repo"
)

const repoColumns = `id, owner, name, clone_url, available_paths, version, created_at, updated_at`

func scanRepo(row scannable) (repo.Repo, error) {
	var r repo.Repo
	err := row.Scan(&r.ID, &r.Owner, &r.Name, &r.CloneURL, &r.AvailablePaths,
		&r.Version, &r.CreatedAt, &r.UpdatedAt)
	return r, err
}

func (s *Store) ListRepos(ctx context.Context) ([]repo.Repo, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+repoColumns+` FROM repos ORDER BY owner, name`)
	if err != nil {
		return nil, fmt.Errorf("list repos: %w", err)
	}
	defer rows.Close()

	var repos []repo.Repo
	for rows.Next() {
		r, err := scanRepo(rows)
		if err != nil {
			return nil, err
		}
		repos = append(repos, r)
	}
	return repos, rows.Err()
}

func (s *Store) GetRepo(ctx context.Context, id string) (*repo.Repo, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+repoColumns+` FROM repos WHERE id = $1`, id)

	r, err := scanRepo(row)
	if err != nil {
		return nil, notFoundWrap(err, "get repo %s", id)
	}
	return &r, nil
}

func (s *Store) GetRepoByFullName(ctx context.Context, owner, name string) (*repo.Repo, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+repoColumns+` FROM repos WHERE owner = $1 AND name = $2`, owner, name)

	r, err := scanRepo(row)
	if err != nil {
		return nil, notFoundWrap(err, "get repo %s/%s", owner, name)
	}
	return &r, nil
}

func (s *Store) CreateRepo(ctx context.Context, r *repo.Repo) error {
	row := s.pool.QueryRow(ctx,
		`INSERT INTO repos (id, owner, name, clone_url)
		 VALUES ($1, $2, $3, $4)
		 RETURNING available_paths, version, created_at, updated_at`,
		r.ID, r.Owner, r.Name, r.CloneURL)

	if err := row.Scan(&r.AvailablePaths, &r.Version, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return fmt.Errorf("create repo %s/%s: %w", r.Owner, r.Name, err)
	}
	return nil
}

func (s *Store) UpdateRepo(ctx context.Context, r *repo.Repo) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE repos SET clone_url = $2, available_paths = $3,
		        version = version + 1, updated_at = now()
		 WHERE id = $1 AND version = $4`,
		r.ID, r.CloneURL, pgTextArray(r.AvailablePaths), r.Version)
	if err != nil {
		return fmt.Errorf("update repo %s: %w", r.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update repo %s: %w", r.ID, domain.ErrConflict)
	}
	r.Version++
	return nil
}

func (s *Store) DeleteRepo(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM repos WHERE id = $1`, id)
	return execExpectOne(tag, err, "delete repo %s", id)
}
