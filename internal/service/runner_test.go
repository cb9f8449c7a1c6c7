package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Strob0t/CommandForge/internal/config"
	"github.com/Strob0t/CommandForge/internal/domain"
	"github.com/Strob0t/CommandForge/internal/domain/cmdlog"
	"github.com/Strob0t/CommandForge/internal/domain/command"
	"github.com/Strob0t/CommandForge/internal/domain/repo"
	"github.com/Strob0t/CommandForge/internal/domain/report"
	"github.com/Strob0t/CommandForge/internal/port/toolrunner"
)

func testRunnerConfig() config.Runner {
	return config.Runner{
		MaxConcurrent: 2,
		StageTimeout:  time.Minute,
		WorkDir:       "work",
		Tool:          "batchai",
		Branch:        "feature/commandforge",
		CommitMessage: "automated changes",
	}
}

type runnerFixture struct {
	store    *mockStore
	provider *mockProvider
	tool     *mockTool
	archiver *mockArchiver
	queue    *mockQueue
	hub      *mockHub
	runner   *Runner
}

func newRunnerFixture() *runnerFixture {
	f := &runnerFixture{
		store:    newMockStore(),
		provider: &mockProvider{},
		tool:     &mockTool{},
		archiver: newMockArchiver(),
		queue:    &mockQueue{},
		hub:      &mockHub{},
	}
	f.runner = NewRunner(f.store, f.provider, f.tool, f.archiver, f.queue, f.hub, testRunnerConfig())
	return f
}

func (f *runnerFixture) seed(t *testing.T, c *command.Command) {
	t.Helper()
	ctx := context.Background()
	if err := f.store.CreateRepo(ctx, &repo.Repo{
		ID: "r1", Owner: "acme", Name: "widget",
		CloneURL:       "https://example.test/acme/widget.git",
		AvailablePaths: []string{"src/main.go"},
	}); err != nil {
		t.Fatal(err)
	}
	if c.RepoID == "" {
		c.RepoID = "r1"
	}
	if err := f.store.CreateCommand(ctx, c); err != nil {
		t.Fatal(err)
	}
}

func pendingCommand(id string) *command.Command {
	return &command.Command{
		ID:          id,
		RepoID:      "r1",
		Status:      command.StatusPending,
		Stage:       command.StageBegin,
		TargetPaths: []string{"src/main.go"},
	}
}

// Full pipeline with a diff: every stage runs, hasChanges is set, the
// commit id is populated and the archive is retrievable.
func TestRunFullPipelineWithDiff(t *testing.T) {
	f := newRunnerFixture()
	f.tool.result = toolrunner.Result{HasDiff: true}
	f.tool.lines = []string{"checking src/main.go", "\x1b[32mfixed\x1b[0m"}
	f.seed(t, pendingCommand("c1"))

	ctx := context.Background()
	if err := f.runner.Run(ctx, "c1"); err != nil {
		t.Fatalf("run: %v", err)
	}

	c, _ := f.store.GetCommand(ctx, "c1")
	if c.Status != command.StatusDone {
		t.Errorf("status = %q, want done", c.Status)
	}
	if c.Stage != command.StageEnd {
		t.Errorf("stage = %q, want end", c.Stage)
	}
	if !c.HasChanges {
		t.Error("expected hasChanges to be set")
	}
	if c.CommitID != "abc123" || c.CommitURL == "" {
		t.Errorf("commit not resolved: id=%q url=%q", c.CommitID, c.CommitURL)
	}

	wantOps := []string{"check_remote", "fork", "fork", "clone_or_pull", "checkout", "add", "commit", "push", "resolve_commit"}
	if got := strings.Join(f.provider.calls, ","); got != strings.Join(wantOps, ",") {
		t.Errorf("provider calls = %v, want %v", f.provider.calls, wantOps)
	}

	if _, err := f.archiver.Retrieve(ctx, "c1"); err != nil {
		t.Errorf("archive not retrievable: %v", err)
	}

	// Tool output lands in the execution stream verbatim, in order.
	exec, _ := f.store.ReadLog(ctx, "c1", cmdlog.StreamExecution, 0)
	if len(exec) != 2 || exec[1].Message != "\x1b[32mfixed\x1b[0m" {
		t.Errorf("unexpected execution log: %+v", exec)
	}
}

// No diff: the pipeline reaches End without push or commit-id resolution
// and commitId stays unset.
func TestRunNoDiffSkipsChangeGatedStages(t *testing.T) {
	f := newRunnerFixture()
	f.tool.result = toolrunner.Result{HasDiff: false}
	f.seed(t, pendingCommand("c1"))

	ctx := context.Background()
	if err := f.runner.Run(ctx, "c1"); err != nil {
		t.Fatalf("run: %v", err)
	}

	c, _ := f.store.GetCommand(ctx, "c1")
	if c.Status != command.StatusDone || c.Stage != command.StageEnd {
		t.Fatalf("status=%q stage=%q, want done/end", c.Status, c.Stage)
	}
	if c.HasChanges {
		t.Error("expected hasChanges to stay false")
	}
	if c.CommitID != "" {
		t.Errorf("commit id should stay unset, got %q", c.CommitID)
	}
	for _, op := range f.provider.calls {
		if op == "push" || op == "resolve_commit" {
			t.Errorf("change-gated operation %q must not run without a diff", op)
		}
	}
}

// A stage failure records failed status without advancing the stage, so
// resume retries the same stage.
func TestRunStageFailureDoesNotAdvance(t *testing.T) {
	f := newRunnerFixture()
	f.provider.checkoutErr = errors.New("checkout exploded")
	f.seed(t, pendingCommand("c1"))

	ctx := context.Background()
	if err := f.runner.Run(ctx, "c1"); err != nil {
		t.Fatalf("run: %v", err)
	}

	c, _ := f.store.GetCommand(ctx, "c1")
	if c.Status != command.StatusFailed {
		t.Fatalf("status = %q, want failed", c.Status)
	}
	if c.Stage != command.StageClonedOrPulled {
		t.Errorf("stage = %q, want cloned_or_pulled (the last completed stage)", c.Stage)
	}
	if !strings.Contains(c.Error, "checkout exploded") {
		t.Errorf("error cause not recorded: %q", c.Error)
	}

	audit, _ := f.store.ReadLog(ctx, "c1", cmdlog.StreamAudit, 0)
	last := audit[len(audit)-1]
	if !strings.Contains(last.Message, "failed") {
		t.Errorf("last audit entry should describe the failure, got %q", last.Message)
	}

	// Resume path: fixing the collaborator and rerunning continues from
	// the checkout stage, not from the beginning.
	f.provider.checkoutErr = nil
	f.provider.calls = nil
	c.Status = command.StatusRunning
	if err := f.store.UpdateCommand(ctx, c); err != nil {
		t.Fatal(err)
	}
	if err := f.runner.Run(ctx, "c1"); err != nil {
		t.Fatalf("resume run: %v", err)
	}
	if f.provider.calls[0] != "checkout" {
		t.Errorf("resume must retry the failed stage first, got %v", f.provider.calls)
	}

	c, _ = f.store.GetCommand(ctx, "c1")
	if c.Status != command.StatusDone {
		t.Errorf("status after resume = %q, want done", c.Status)
	}
}

// A timed-out external call is a stage failure carrying the timeout error.
func TestRunStageTimeout(t *testing.T) {
	f := newRunnerFixture()
	f.provider.cloneErr = context.DeadlineExceeded
	cfg := testRunnerConfig()
	cfg.StageTimeout = time.Nanosecond
	f.runner = NewRunner(f.store, f.provider, f.tool, f.archiver, f.queue, f.hub, cfg)
	f.seed(t, pendingCommand("c1"))

	ctx := context.Background()
	if err := f.runner.Run(ctx, "c1"); err != nil {
		t.Fatalf("run: %v", err)
	}

	c, _ := f.store.GetCommand(ctx, "c1")
	if c.Status != command.StatusFailed {
		t.Fatalf("status = %q, want failed", c.Status)
	}
	if !strings.Contains(c.Error, "timed out") && !strings.Contains(c.Error, domain.ErrTimeout.Error()) &&
		!strings.Contains(c.Error, "deadline") {
		t.Errorf("error should reflect the timeout, got %q", c.Error)
	}
}

// Cancellation observed at a stage boundary stops without advancing.
func TestRunCancelledAtBoundary(t *testing.T) {
	f := newRunnerFixture()
	f.seed(t, pendingCommand("c1"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := f.runner.Run(ctx, "c1"); err != nil {
		t.Fatalf("run: %v", err)
	}

	c, _ := f.store.GetCommand(context.Background(), "c1")
	if c.Status != command.StatusStopped {
		t.Fatalf("status = %q, want stopped", c.Status)
	}
	if c.Stage != command.StageBegin {
		t.Errorf("stage = %q, want begin", c.Stage)
	}
}

// A stop that lands after the last stage persisted but before the archive
// is written stops the command instead of failing it.
func TestRunCancelledBeforeArchiveStops(t *testing.T) {
	f := newRunnerFixture()
	f.tool.result = toolrunner.Result{HasDiff: true}
	f.seed(t, pendingCommand("c1"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.store.updateHook = func(c *command.Command) {
		if c.Stage == command.StageEnd {
			cancel()
		}
	}

	if err := f.runner.Run(ctx, "c1"); err != nil {
		t.Fatalf("run: %v", err)
	}

	c, _ := f.store.GetCommand(context.Background(), "c1")
	if c.Status != command.StatusStopped {
		t.Fatalf("status = %q, want stopped", c.Status)
	}
	if c.Error != "" {
		t.Errorf("error = %q, want empty", c.Error)
	}
	if _, ok := f.archiver.archived["c1"]; ok {
		t.Error("archive must not be written after a stop request")
	}
}

// The audit entry for a transition is appended before the record persists
// the new stage.
func TestRunAuditAppendPrecedesStagePersist(t *testing.T) {
	f := newRunnerFixture()
	f.seed(t, pendingCommand("c1"))

	if err := f.runner.Run(context.Background(), "c1"); err != nil {
		t.Fatalf("run: %v", err)
	}

	var lastAppend, firstStageUpdate = -1, -1
	for i, op := range f.store.ops {
		if op == "append:audit" && firstStageUpdate == -1 {
			lastAppend = i
		}
		if strings.HasPrefix(op, "update:running:checked_remote") && firstStageUpdate == -1 {
			firstStageUpdate = i
		}
	}
	if firstStageUpdate == -1 {
		t.Fatal("no stage persistence recorded")
	}
	if lastAppend == -1 || lastAppend > firstStageUpdate {
		t.Errorf("audit append must precede stage persistence: ops=%v", f.store.ops)
	}
}

// A storage failure is fatal: the runner aborts without inventing state.
func TestRunStorageFailureAborts(t *testing.T) {
	f := newRunnerFixture()
	f.seed(t, pendingCommand("c1"))
	f.store.appendErr = errors.New("disk full")

	err := f.runner.Run(context.Background(), "c1")
	if err == nil {
		t.Fatal("expected error when log storage is unavailable")
	}
}

// Reports emitted during the tool stage are recorded against the command.
func TestRunRecordsReports(t *testing.T) {
	f := newRunnerFixture()
	f.tool.result = toolrunner.Result{
		HasDiff: true,
		CheckReports: []report.CheckReport{
			{Path: "src/main.go", HasIssue: true, OverallSeverity: report.SeverityMajor},
		},
		TestReports: []report.TestReport{
			{Path: "src/main.go", TestFilePath: "src/main_test.go", AmountOfGeneratedTestCases: 3},
		},
	}
	f.seed(t, pendingCommand("c1"))

	ctx := context.Background()
	if err := f.runner.Run(ctx, "c1"); err != nil {
		t.Fatalf("run: %v", err)
	}

	checks, _ := f.store.ListCheckReports(ctx, "c1")
	if len(checks) != 1 || checks[0].CommandID != "c1" || checks[0].ID == "" {
		t.Errorf("unexpected check reports: %+v", checks)
	}
	tests, _ := f.store.ListTestReports(ctx, "c1")
	if len(tests) != 1 || tests[0].AmountOfGeneratedTestCases != 3 {
		t.Errorf("unexpected test reports: %+v", tests)
	}
}

// A failed tool run (non-zero exit) fails the tool stage.
func TestRunToolFailure(t *testing.T) {
	f := newRunnerFixture()
	f.tool.err = errors.New("tool exited with status 2")
	f.seed(t, pendingCommand("c1"))

	ctx := context.Background()
	if err := f.runner.Run(ctx, "c1"); err != nil {
		t.Fatalf("run: %v", err)
	}

	c, _ := f.store.GetCommand(ctx, "c1")
	if c.Status != command.StatusFailed {
		t.Fatalf("status = %q, want failed", c.Status)
	}
	if c.Stage != command.StageCheckedOut {
		t.Errorf("stage = %q, want checked_out", c.Stage)
	}
}
