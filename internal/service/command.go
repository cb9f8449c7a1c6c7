package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Strob0t/CommandForge/internal/config"
	"github.com/Strob0t/CommandForge/internal/domain"
	"github.com/Strob0t/CommandForge/internal/domain/cmdlog"
	"github.com/Strob0t/CommandForge/internal/domain/command"
	"github.com/Strob0t/CommandForge/internal/domain/report"
	"github.com/Strob0t/CommandForge/internal/port/archive"
	"github.com/Strob0t/CommandForge/internal/port/cache"
	"github.com/Strob0t/CommandForge/internal/port/database"
)

// TaskScheduler admits runner tasks. Implemented by Scheduler.
type TaskScheduler interface {
	Schedule(commandID string)
	Cancel(commandID string) bool
}

// CommandService is the orchestrator facade: the lifecycle and retrieval
// operation set consumed by the REST layer. Every mutating operation
// validates the status/lock preconditions before any runner work is
// scheduled.
type CommandService struct {
	store    database.Store
	cache    cache.Cache
	archiver archive.Archiver
	sched    TaskScheduler
	runner   *Runner
	cfg      config.Runner
	cacheTTL time.Duration
}

// NewCommandService creates the orchestrator facade.
func NewCommandService(
	store database.Store,
	c cache.Cache,
	archiver archive.Archiver,
	sched TaskScheduler,
	runner *Runner,
	cfg config.Runner,
	cacheTTL time.Duration,
) *CommandService {
	return &CommandService{
		store:    store,
		cache:    c,
		archiver: archiver,
		sched:    sched,
		runner:   runner,
		cfg:      cfg,
		cacheTTL: cacheTTL,
	}
}

// Create allocates a new pending command and schedules a runner task.
// Target paths must be among the repo's previously discovered paths.
func (s *CommandService) Create(ctx context.Context, req *command.CreateRequest) (*command.Command, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	rep, err := s.store.GetRepo(ctx, req.RepoID)
	if err != nil {
		return nil, fmt.Errorf("repo %s: %w", req.RepoID, err)
	}
	for _, p := range req.TargetPaths {
		if !rep.HasPath(p) {
			return nil, fmt.Errorf("path %q is not among the discovered paths of %s: %w",
				p, rep.FullName(), domain.ErrValidation)
		}
	}

	c := &command.Command{
		ID:          uuid.NewString(),
		RepoID:      req.RepoID,
		Status:      command.StatusPending,
		Stage:       command.StageBegin,
		TargetPaths: req.TargetPaths,
		Options:     req.Options,
	}
	if err := s.store.CreateCommand(ctx, c); err != nil {
		return nil, fmt.Errorf("create command: %w", err)
	}

	if err := s.runner.appendAudit(ctx, c.ID, fmt.Sprintf("command created for %s", rep.FullName())); err != nil {
		return nil, err
	}
	s.sched.Schedule(c.ID)

	slog.Info("command created", "command_id", c.ID, "repo", rep.FullName())
	return c, nil
}

// Restart forcibly resets a command to the initial stage, discarding prior
// logs, reports and artifacts, then schedules a fresh run.
func (s *CommandService) Restart(ctx context.Context, id string) (*command.Command, error) {
	c, err := s.mutable(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.store.DeleteLogs(ctx, id); err != nil {
		return nil, fmt.Errorf("discard logs: %w", err)
	}
	if err := s.store.DeleteReports(ctx, id); err != nil {
		return nil, fmt.Errorf("discard reports: %w", err)
	}
	if err := s.archiver.Discard(ctx, id); err != nil {
		return nil, fmt.Errorf("discard artifact: %w", err)
	}

	c.Status = command.StatusPending
	c.Stage = command.StageBegin
	c.HasChanges = false
	c.CommitID = ""
	c.CommitURL = ""
	c.Error = ""
	if err := s.persist(ctx, c); err != nil {
		return nil, err
	}

	if err := s.runner.appendAudit(ctx, id, "command restarted"); err != nil {
		return nil, err
	}
	s.sched.Schedule(id)

	slog.Info("command restarted", "command_id", id)
	return c, nil
}

// Resume re-enters the pipeline at the stage that was current when the
// command failed or was stopped. Already-completed stages do not rerun.
func (s *CommandService) Resume(ctx context.Context, id string) (*command.Command, error) {
	c, err := s.store.GetCommand(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Locked {
		return nil, fmt.Errorf("command %s: %w", id, domain.ErrLocked)
	}
	if !c.Status.Resumable() {
		return nil, fmt.Errorf("cannot resume command in status %q: %w", c.Status, domain.ErrInvalidState)
	}

	c.Status = command.StatusRunning
	c.Error = ""
	if err := s.persist(ctx, c); err != nil {
		return nil, err
	}

	if err := s.runner.appendAudit(ctx, id, fmt.Sprintf("command resumed at stage %q", c.Stage)); err != nil {
		return nil, err
	}
	s.sched.Schedule(id)

	slog.Info("command resumed", "command_id", id, "stage", c.Stage)
	return c, nil
}

// Stop signals the active runner to cancel at the next stage boundary. The
// status becomes stopped once the runner acknowledges; mid-stage work may
// complete first.
func (s *CommandService) Stop(ctx context.Context, id string) error {
	c, err := s.store.GetCommand(ctx, id)
	if err != nil {
		return err
	}
	if c.Locked {
		return fmt.Errorf("command %s: %w", id, domain.ErrLocked)
	}
	if c.Status != command.StatusRunning {
		return fmt.Errorf("cannot stop command in status %q: %w", c.Status, domain.ErrInvalidState)
	}

	if !s.sched.Cancel(id) {
		// Running in the record but no live task (e.g. a prior process
		// crashed mid-run). Record the stop directly.
		if err := s.runner.stop(ctx, c); err != nil {
			return err
		}
	}
	s.invalidate(ctx, id)

	slog.Info("command stop requested", "command_id", id)
	return nil
}

// Lock freezes a command administratively. Only read operations succeed on
// a locked command. The lock is advisory: it never preempts an execution
// that is already running.
func (s *CommandService) Lock(ctx context.Context, id string) (*command.Command, error) {
	return s.setLocked(ctx, id, true, "command locked")
}

// Unlock clears the administrative freeze.
func (s *CommandService) Unlock(ctx context.Context, id string) (*command.Command, error) {
	return s.setLocked(ctx, id, false, "command unlocked")
}

func (s *CommandService) setLocked(ctx context.Context, id string, locked bool, auditMsg string) (*command.Command, error) {
	c, err := s.store.GetCommand(ctx, id)
	if err != nil {
		return nil, err
	}

	c.Locked = locked
	if err := s.persist(ctx, c); err != nil {
		return nil, err
	}
	if err := s.runner.appendAudit(ctx, id, auditMsg); err != nil {
		return nil, err
	}

	slog.Info(auditMsg, "command_id", id)
	return c, nil
}

// Update mutates the creation-time configuration of a non-running,
// unlocked command. Status and stage are never touched.
func (s *CommandService) Update(ctx context.Context, id string, req *command.UpdateRequest) (*command.Command, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	c, err := s.mutable(ctx, id)
	if err != nil {
		return nil, err
	}

	rep, err := s.store.GetRepo(ctx, c.RepoID)
	if err != nil {
		return nil, fmt.Errorf("repo %s: %w", c.RepoID, err)
	}
	for _, p := range req.TargetPaths {
		if !rep.HasPath(p) {
			return nil, fmt.Errorf("path %q is not among the discovered paths of %s: %w",
				p, rep.FullName(), domain.ErrValidation)
		}
	}

	c.TargetPaths = req.TargetPaths
	c.Options = req.Options
	if err := s.persist(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Remove deletes the command record together with its logs, reports and
// artifact.
func (s *CommandService) Remove(ctx context.Context, id string) error {
	if _, err := s.mutable(ctx, id); err != nil {
		return err
	}

	if err := s.store.DeleteLogs(ctx, id); err != nil {
		return fmt.Errorf("delete logs: %w", err)
	}
	if err := s.store.DeleteReports(ctx, id); err != nil {
		return fmt.Errorf("delete reports: %w", err)
	}
	if err := s.archiver.Discard(ctx, id); err != nil {
		return fmt.Errorf("discard artifact: %w", err)
	}
	if err := s.store.DeleteCommand(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, id)

	slog.Info("command removed", "command_id", id)
	return nil
}

// Get returns a command by id. Detail reads are served from the read
// cache and may lag a running command by up to the cache TTL.
func (s *CommandService) Get(ctx context.Context, id string) (*command.Command, error) {
	key := cacheKey(id)
	if data, ok, _ := s.cache.Get(ctx, key); ok {
		var c command.Command
		if err := json.Unmarshal(data, &c); err == nil {
			return &c, nil
		}
	}

	c, err := s.store.GetCommand(ctx, id)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(c); err == nil {
		_ = s.cache.Set(ctx, key, data, s.cacheTTL)
	}
	return c, nil
}

// List returns all commands, newest first.
func (s *CommandService) List(ctx context.Context) ([]command.Command, error) {
	return s.store.ListCommands(ctx)
}

// ListByStatus returns commands in the given status, oldest first.
func (s *CommandService) ListByStatus(ctx context.Context, status command.Status) ([]command.Command, error) {
	if !command.ValidStatus(status) {
		return nil, fmt.Errorf("unknown status %q: %w", status, domain.ErrValidation)
	}
	return s.store.ListCommandsByStatus(ctx, status)
}

// ExecutionLog returns the command's execution stream after the given
// entry id (0 for the full stream).
func (s *CommandService) ExecutionLog(ctx context.Context, id string, afterID int64) ([]cmdlog.Entry, error) {
	return s.readLog(ctx, id, cmdlog.StreamExecution, afterID)
}

// AuditLog returns the command's audit stream after the given entry id.
func (s *CommandService) AuditLog(ctx context.Context, id string, afterID int64) ([]cmdlog.Entry, error) {
	return s.readLog(ctx, id, cmdlog.StreamAudit, afterID)
}

func (s *CommandService) readLog(ctx context.Context, id string, stream cmdlog.Stream, afterID int64) ([]cmdlog.Entry, error) {
	if _, err := s.store.GetCommand(ctx, id); err != nil {
		return nil, err
	}
	return s.store.ReadLog(ctx, id, stream, afterID)
}

// CheckReports returns the check reports recorded for the command.
func (s *CommandService) CheckReports(ctx context.Context, id string) ([]report.CheckReport, error) {
	if _, err := s.store.GetCommand(ctx, id); err != nil {
		return nil, err
	}
	return s.store.ListCheckReports(ctx, id)
}

// TestReports returns the test reports recorded for the command.
func (s *CommandService) TestReports(ctx context.Context, id string) ([]report.TestReport, error) {
	if _, err := s.store.GetCommand(ctx, id); err != nil {
		return nil, err
	}
	return s.store.ListTestReports(ctx, id)
}

// Artifact returns the path of the archived working tree.
func (s *CommandService) Artifact(ctx context.Context, id string) (string, error) {
	if _, err := s.store.GetCommand(ctx, id); err != nil {
		return "", err
	}
	return s.archiver.Retrieve(ctx, id)
}

// CommandLine renders the tool invocation equivalent to the command, for
// operator copy/paste reproduction.
func (s *CommandService) CommandLine(ctx context.Context, id string) (string, error) {
	c, err := s.store.GetCommand(ctx, id)
	if err != nil {
		return "", err
	}
	rep, err := s.store.GetRepo(ctx, c.RepoID)
	if err != nil {
		return "", err
	}
	return c.CommandLine(s.cfg.Tool, rep.FullName()), nil
}

// Recover reconciles persisted state after a process restart: commands
// left running by a crashed process are marked failed (their runner is
// gone), and pending commands are rescheduled in creation order.
func (s *CommandService) Recover(ctx context.Context) error {
	running, err := s.store.ListCommandsByStatus(ctx, command.StatusRunning)
	if err != nil {
		return fmt.Errorf("list running commands: %w", err)
	}
	for i := range running {
		c := running[i]
		if err := s.runner.fail(ctx, &c, fmt.Errorf("orchestrator restarted mid-run: %w", domain.ErrExternal)); err != nil {
			return err
		}
	}

	pending, err := s.store.ListCommandsByStatus(ctx, command.StatusPending)
	if err != nil {
		return fmt.Errorf("list pending commands: %w", err)
	}
	for i := range pending {
		s.sched.Schedule(pending[i].ID)
	}

	if len(running) > 0 || len(pending) > 0 {
		slog.Info("recovered persisted commands", "failed", len(running), "rescheduled", len(pending))
	}
	return nil
}

// mutable loads a command and enforces the shared preconditions of the
// mutating operations: not locked, not running.
func (s *CommandService) mutable(ctx context.Context, id string) (*command.Command, error) {
	c, err := s.store.GetCommand(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Locked {
		return nil, fmt.Errorf("command %s: %w", id, domain.ErrLocked)
	}
	if c.Status == command.StatusRunning {
		return nil, fmt.Errorf("command %s is running: %w", id, domain.ErrInvalidState)
	}
	return c, nil
}

func (s *CommandService) persist(ctx context.Context, c *command.Command) error {
	if err := s.store.UpdateCommand(ctx, c); err != nil {
		return err
	}
	s.invalidate(ctx, c.ID)
	return nil
}

func (s *CommandService) invalidate(ctx context.Context, id string) {
	_ = s.cache.Delete(ctx, cacheKey(id))
}

func cacheKey(id string) string { return "command:" + id }
