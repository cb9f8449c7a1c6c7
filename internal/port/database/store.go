// Package database defines the database store port (interface).
package database

import (
	"context"

	"github.com/Strob0t/CommandForge/internal/domain/cmdlog"
	"github.com/Strob0t/CommandForge/internal/domain/command"
	"github.com/Strob0t/CommandForge/internal/domain/repo"
	"github.com/Strob0t/CommandForge/internal/domain/report"
	"github.com/Strob0t/CommandForge/internal/domain/user"
)

// Store is the port interface for durable state. The command record is the
// single source of truth for status/stage/flags; logs and reports are
// keyed by command id and written only by the orchestrator.
type Store interface {
	// Commands
	ListCommands(ctx context.Context) ([]command.Command, error)
	ListCommandsByStatus(ctx context.Context, status command.Status) ([]command.Command, error)
	GetCommand(ctx context.Context, id string) (*command.Command, error)
	CreateCommand(ctx context.Context, c *command.Command) error
	// UpdateCommand persists status/stage/flags/config with optimistic
	// locking on Version, bumping Version and UpdatedAt on success.
	UpdateCommand(ctx context.Context, c *command.Command) error
	DeleteCommand(ctx context.Context, id string) error

	// Logs (append-only; delete only via restart/remove)
	AppendLog(ctx context.Context, e *cmdlog.Entry) error
	// ReadLog returns the full ordered stream; afterID > 0 tails entries
	// with id strictly greater, so pollers can re-poll cheaply.
	ReadLog(ctx context.Context, commandID string, stream cmdlog.Stream, afterID int64) ([]cmdlog.Entry, error)
	DeleteLogs(ctx context.Context, commandID string) error

	// Reports
	AddCheckReport(ctx context.Context, r *report.CheckReport) error
	AddTestReport(ctx context.Context, r *report.TestReport) error
	ListCheckReports(ctx context.Context, commandID string) ([]report.CheckReport, error)
	ListTestReports(ctx context.Context, commandID string) ([]report.TestReport, error)
	DeleteReports(ctx context.Context, commandID string) error

	// Repos
	ListRepos(ctx context.Context) ([]repo.Repo, error)
	GetRepo(ctx context.Context, id string) (*repo.Repo, error)
	GetRepoByFullName(ctx context.Context, owner, name string) (*repo.Repo, error)
	CreateRepo(ctx context.Context, r *repo.Repo) error
	UpdateRepo(ctx context.Context, r *repo.Repo) error
	DeleteRepo(ctx context.Context, id string) error

	// Users
	GetUserByAPIKeyID(ctx context.Context, keyID string) (*user.User, error)
}
