package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Strob0t/CommandForge/internal/domain"
	"github.com/Strob0t/CommandForge/internal/domain/command"
)

// Store implements database.Store using PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const commandColumns = `id, repo_id, status, stage, has_changes, locked,
	target_paths, options, commit_id, commit_url, error, version, created_at, updated_at`

func scanCommand(row scannable) (command.Command, error) {
	var c command.Command
	err := row.Scan(&c.ID, &c.RepoID, &c.Status, &c.Stage, &c.HasChanges, &c.Locked,
		&c.TargetPaths, &c.Options, &c.CommitID, &c.CommitURL, &c.Error,
		&c.Version, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func (s *Store) ListCommands(ctx context.Context) ([]command.Command, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+commandColumns+` FROM commands ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list commands: %w", err)
	}
	defer rows.Close()

	return collectCommands(rows)
}

func (s *Store) ListCommandsByStatus(ctx context.Context, status command.Status) ([]command.Command, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+commandColumns+` FROM commands WHERE status = $1 ORDER BY created_at ASC`, status)
	if err != nil {
		return nil, fmt.Errorf("list commands by status %s: %w", status, err)
	}
	defer rows.Close()

	return collectCommands(rows)
}

func collectCommands(rows pgx.Rows) ([]command.Command, error) {
	var commands []command.Command
	for rows.Next() {
		c, err := scanCommand(rows)
		if err != nil {
			return nil, err
		}
		commands = append(commands, c)
	}
	return commands, rows.Err()
}

func (s *Store) GetCommand(ctx context.Context, id string) (*command.Command, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+commandColumns+` FROM commands WHERE id = $1`, id)

	c, err := scanCommand(row)
	if err != nil {
		return nil, notFoundWrap(err, "get command %s", id)
	}
	return &c, nil
}

func (s *Store) CreateCommand(ctx context.Context, c *command.Command) error {
	row := s.pool.QueryRow(ctx,
		`INSERT INTO commands (id, repo_id, status, stage, target_paths, options)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING version, created_at, updated_at`,
		c.ID, c.RepoID, c.Status, c.Stage, pgTextArray(c.TargetPaths), pgTextArray(c.Options))

	if err := row.Scan(&c.Version, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return fmt.Errorf("create command: %w", err)
	}
	return nil
}

func (s *Store) UpdateCommand(ctx context.Context, c *command.Command) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE commands SET status = $2, stage = $3, has_changes = $4, locked = $5,
		        target_paths = $6, options = $7, commit_id = $8, commit_url = $9,
		        error = $10, version = version + 1, updated_at = now()
		 WHERE id = $1 AND version = $11`,
		c.ID, c.Status, c.Stage, c.HasChanges, c.Locked,
		pgTextArray(c.TargetPaths), pgTextArray(c.Options), c.CommitID, c.CommitURL,
		c.Error, c.Version)
	if err != nil {
		return fmt.Errorf("update command %s: %w", c.ID, err)
	}
	if tag.RowsAffected() == 0 {
		// Distinguish a missing row from a version race.
		var exists bool
		if scanErr := s.pool.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM commands WHERE id = $1)`, c.ID).Scan(&exists); scanErr == nil && !exists {
			return fmt.Errorf("update command %s: %w", c.ID, domain.ErrNotFound)
		}
		return fmt.Errorf("update command %s: %w", c.ID, domain.ErrConflict)
	}
	c.Version++
	return nil
}

func (s *Store) DeleteCommand(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM commands WHERE id = $1`, id)
	return execExpectOne(tag, err, "delete command %s", id)
}

