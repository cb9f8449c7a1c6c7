// Package service implements business logic on top of ports.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/Strob0t/CommandForge/internal/adapter/ws"
	"github.com/Strob0t/CommandForge/internal/config"
	"github.com/Strob0t/CommandForge/internal/domain"
	"github.com/Strob0t/CommandForge/internal/domain/cmdlog"
	"github.com/Strob0t/CommandForge/internal/domain/command"
	"github.com/Strob0t/CommandForge/internal/domain/repo"
	"github.com/Strob0t/CommandForge/internal/port/archive"
	"github.com/Strob0t/CommandForge/internal/port/database"
	"github.com/Strob0t/CommandForge/internal/port/gitprovider"
	"github.com/Strob0t/CommandForge/internal/port/messagequeue"
	"github.com/Strob0t/CommandForge/internal/port/toolrunner"
)

// Broadcaster pushes events to connected UI clients. Implemented by ws.Hub.
type Broadcaster interface {
	BroadcastEvent(ctx context.Context, eventType string, payload any)
}

// Runner drives one command from its current stage to End (or to a
// stopping or failing condition), one stage at a time, in pipeline order.
// It is the only writer to logs, reports and artifacts during a run.
type Runner struct {
	store    database.Store
	provider gitprovider.Provider
	tool     toolrunner.Runner
	archiver archive.Archiver
	queue    messagequeue.Queue
	hub      Broadcaster
	cfg      config.Runner
}

// NewRunner creates an execution Runner.
func NewRunner(
	store database.Store,
	provider gitprovider.Provider,
	tool toolrunner.Runner,
	archiver archive.Archiver,
	queue messagequeue.Queue,
	hub Broadcaster,
	cfg config.Runner,
) *Runner {
	return &Runner{
		store:    store,
		provider: provider,
		tool:     tool,
		archiver: archiver,
		queue:    queue,
		hub:      hub,
		cfg:      cfg,
	}
}

// Run executes the command until End, failure, or cancellation. Cancellation
// is cooperative: ctx is checked only at stage boundaries, so an in-flight
// external operation finishes (or is killed by its own context) first.
//
// Side effects are strictly ordered: the audit entry for a transition is
// appended before the new stage is persisted, so a crash between the two
// leaves the log slightly ahead of the record. Resume re-derives the stage
// from the record, never from the log.
func (r *Runner) Run(ctx context.Context, commandID string) error {
	c, err := r.store.GetCommand(ctx, commandID)
	if err != nil {
		return fmt.Errorf("load command: %w", err)
	}

	rep, err := r.store.GetRepo(ctx, c.RepoID)
	if err != nil {
		return r.fail(ctx, c, fmt.Errorf("load repo %s: %w", c.RepoID, err))
	}

	if c.Status != command.StatusRunning {
		if err := r.transition(ctx, c, command.StatusRunning,
			fmt.Sprintf("run started at stage %q", c.Stage)); err != nil {
			return err
		}
	}
	slog.Info("command run started", "command_id", c.ID, "repo", rep.FullName(), "stage", c.Stage)

	for c.Stage != command.StageEnd {
		if ctx.Err() != nil {
			return r.stop(ctx, c)
		}

		next, ok := command.Next(c.Stage, c.HasChanges)
		if !ok {
			break
		}

		if err := r.executeStage(ctx, c, rep, next); err != nil {
			if ctx.Err() != nil {
				return r.stop(ctx, c)
			}
			return r.fail(ctx, c, fmt.Errorf("stage %q: %w", next, err))
		}

		if err := r.appendAudit(ctx, c.ID, fmt.Sprintf("stage %q completed", next)); err != nil {
			return err
		}
		c.Stage = next
		if err := r.persist(ctx, c); err != nil {
			return err
		}
		r.publishStatus(ctx, c)
	}

	// Archiving is a stage boundary too: a stop landing after the last
	// stage persisted must not be reported as a failure.
	if ctx.Err() != nil {
		return r.stop(ctx, c)
	}

	if _, err := r.archiver.Archive(ctx, c.ID, r.workTree(rep)); err != nil {
		if ctx.Err() != nil {
			return r.stop(ctx, c)
		}
		return r.fail(ctx, c, fmt.Errorf("archive work tree: %w", err))
	}
	if err := r.appendAudit(ctx, c.ID, "working tree archived"); err != nil {
		return err
	}

	if err := r.transition(ctx, c, command.StatusDone, "run completed"); err != nil {
		return err
	}
	slog.Info("command run completed", "command_id", c.ID, "has_changes", c.HasChanges)
	return nil
}

// executeStage performs the external operation bound to stage under the
// configured per-stage timeout. Stage state mutations (hasChanges, commit
// id) land on c but are persisted by the caller.
func (r *Runner) executeStage(ctx context.Context, c *command.Command, rep *repo.Repo, stage command.Stage) error {
	sctx, cancel := context.WithTimeout(ctx, r.cfg.StageTimeout)
	defer cancel()

	workTree := r.workTree(rep)

	var err error
	switch stage {
	case command.StageCheckedRemote:
		err = r.provider.CheckRemote(sctx, rep.FullName())
	case command.StageForked:
		_, err = r.provider.Fork(sctx, rep.FullName())
	case command.StageClonedOrPulled:
		// An existing fork makes Fork a no-op, so re-deriving the fork
		// clone URL here is safe on resume.
		var cloneURL string
		if cloneURL, err = r.provider.Fork(sctx, rep.FullName()); err == nil {
			err = r.provider.CloneOrPull(sctx, cloneURL, workTree)
		}
	case command.StageCheckedOut:
		err = r.provider.Checkout(sctx, workTree, r.cfg.Branch)
	case command.StageToolExecuted:
		err = r.runTool(sctx, c, workTree)
	case command.StageChangesAdded:
		err = r.provider.Add(sctx, workTree)
	case command.StageChangesCommitted:
		err = r.provider.Commit(sctx, workTree, r.cfg.CommitMessage)
	case command.StageChangesPushed:
		err = r.provider.Push(sctx, workTree, r.cfg.Branch)
	case command.StageCommitIDResolved:
		var commit *gitprovider.Commit
		if commit, err = r.provider.ResolveCommit(sctx, workTree); err == nil {
			c.CommitID = commit.ID
			c.CommitURL = commit.URL
		}
	case command.StageEnd, command.StageBegin:
		// No operation bound.
	}

	if err != nil && errors.Is(sctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return fmt.Errorf("%v: %w", err, domain.ErrTimeout)
	}
	return err
}

// runTool invokes the code-modification tool, routing every output line to
// the execution log in emission order with ANSI bytes preserved verbatim.
func (r *Runner) runTool(ctx context.Context, c *command.Command, workTree string) error {
	req := toolrunner.Request{
		WorkTree:    workTree,
		TargetPaths: c.TargetPaths,
		Options:     c.Options,
	}

	var appendErr error
	result, err := r.tool.Execute(ctx, req, func(line string) {
		if aerr := r.appendExecution(ctx, c.ID, line); aerr != nil && appendErr == nil {
			appendErr = aerr
		}
	})
	if err != nil {
		return err
	}
	if appendErr != nil {
		return appendErr
	}

	c.HasChanges = result.HasDiff

	for i := range result.CheckReports {
		cr := result.CheckReports[i]
		cr.ID = uuid.NewString()
		cr.CommandID = c.ID
		if err := r.store.AddCheckReport(ctx, &cr); err != nil {
			return fmt.Errorf("record check report: %w", err)
		}
	}
	for i := range result.TestReports {
		tr := result.TestReports[i]
		tr.ID = uuid.NewString()
		tr.CommandID = c.ID
		if err := r.store.AddTestReport(ctx, &tr); err != nil {
			return fmt.Errorf("record test report: %w", err)
		}
	}
	return nil
}

// fail records a stage failure without advancing the stage, so a later
// resume retries the same stage. External failures are never retried here.
func (r *Runner) fail(ctx context.Context, c *command.Command, cause error) error {
	// The run context may already be done; failure bookkeeping must still land.
	ctx = context.WithoutCancel(ctx)

	if err := r.appendAudit(ctx, c.ID, fmt.Sprintf("failed at stage %q: %v", c.Stage, cause)); err != nil {
		return err
	}
	c.Status = command.StatusFailed
	c.Error = cause.Error()
	if err := r.persist(ctx, c); err != nil {
		return err
	}
	r.publishStatus(ctx, c)
	slog.Warn("command run failed", "command_id", c.ID, "stage", c.Stage, "error", cause)
	return nil
}

// stop acknowledges a cancellation observed at a stage boundary.
func (r *Runner) stop(ctx context.Context, c *command.Command) error {
	ctx = context.WithoutCancel(ctx)

	if err := r.appendAudit(ctx, c.ID, fmt.Sprintf("stopped at stage %q", c.Stage)); err != nil {
		return err
	}
	c.Status = command.StatusStopped
	if err := r.persist(ctx, c); err != nil {
		return err
	}
	r.publishStatus(ctx, c)
	slog.Info("command run stopped", "command_id", c.ID, "stage", c.Stage)
	return nil
}

// markStopped handles a cancellation that fired while the task was still
// queued, before Run ever started.
func (r *Runner) markStopped(ctx context.Context, commandID string) {
	c, err := r.store.GetCommand(ctx, commandID)
	if err != nil {
		slog.Error("load command for queued stop", "command_id", commandID, "error", err)
		return
	}
	if c.Status != command.StatusRunning {
		return
	}
	if err := r.stop(ctx, c); err != nil {
		slog.Error("record queued stop", "command_id", commandID, "error", err)
	}
}

// transition appends the audit entry, persists the new status, and
// publishes it, in that order.
func (r *Runner) transition(ctx context.Context, c *command.Command, status command.Status, auditMsg string) error {
	if err := r.appendAudit(ctx, c.ID, auditMsg); err != nil {
		return err
	}
	c.Status = status
	if err := r.persist(ctx, c); err != nil {
		return err
	}
	r.publishStatus(ctx, c)
	return nil
}

// persist writes the record. A storage failure here is fatal to the task:
// without a durable record of progress the runner cannot continue safely.
func (r *Runner) persist(ctx context.Context, c *command.Command) error {
	if err := r.store.UpdateCommand(ctx, c); err != nil {
		slog.Error("persist command", "command_id", c.ID, "error", err)
		return fmt.Errorf("persist command %s: %w", c.ID, err)
	}
	return nil
}

func (r *Runner) appendAudit(ctx context.Context, commandID, message string) error {
	return r.append(ctx, commandID, cmdlog.StreamAudit, message)
}

func (r *Runner) appendExecution(ctx context.Context, commandID, message string) error {
	return r.append(ctx, commandID, cmdlog.StreamExecution, message)
}

func (r *Runner) append(ctx context.Context, commandID string, stream cmdlog.Stream, message string) error {
	e := &cmdlog.Entry{
		CommandID: commandID,
		Stream:    stream,
		Message:   message,
		Timestamp: time.Now().UTC(),
	}
	if err := r.store.AppendLog(ctx, e); err != nil {
		return err
	}

	// Push channels are best-effort; REST reads remain the source of truth.
	publishJSON(ctx, r.queue, subjectFor(stream), messagequeue.LogMessage{
		CommandID: commandID,
		Stream:    string(stream),
		Message:   message,
	})
	r.hub.BroadcastEvent(ctx, eventFor(stream), ws.CommandLogEvent{
		CommandID: commandID,
		Stream:    string(stream),
		Message:   message,
		Timestamp: e.Timestamp,
	})
	return nil
}

func (r *Runner) publishStatus(ctx context.Context, c *command.Command) {
	publishJSON(ctx, r.queue, messagequeue.SubjectCommandStatus, messagequeue.StatusMessage{
		CommandID: c.ID,
		Status:    string(c.Status),
		Stage:     string(c.Stage),
	})
	r.hub.BroadcastEvent(ctx, ws.EventCommandStatus, ws.CommandStatusEvent{
		CommandID: c.ID,
		Status:    string(c.Status),
		Stage:     string(c.Stage),
		Timestamp: time.Now().UTC(),
	})
}

func (r *Runner) workTree(rep *repo.Repo) string {
	return filepath.Join(r.cfg.WorkDir, rep.Owner, rep.Name)
}

func subjectFor(stream cmdlog.Stream) string {
	if stream == cmdlog.StreamAudit {
		return messagequeue.SubjectCommandAudit
	}
	return messagequeue.SubjectCommandOutput
}

func eventFor(stream cmdlog.Stream) string {
	if stream == cmdlog.StreamAudit {
		return ws.EventCommandAudit
	}
	return ws.EventCommandLog
}
