package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Strob0t/CommandForge/internal/domain"
	"github.com/Strob0t/CommandForge/internal/domain/cmdlog"
	"github.com/Strob0t/CommandForge/internal/domain/command"
	"github.com/Strob0t/CommandForge/internal/domain/repo"
	"github.com/Strob0t/CommandForge/internal/domain/report"
	"github.com/Strob0t/CommandForge/internal/domain/user"
	"github.com/Strob0t/CommandForge/internal/port/gitprovider"
	"github.com/Strob0t/CommandForge/internal/port/messagequeue"
	"github.com/Strob0t/CommandForge/internal/port/toolrunner"
)

// mockStore implements database.Store in memory. The ops slice records
// the order of log appends and record updates, so tests can assert the
// append-before-persist ordering.
type mockStore struct {
	mu           sync.Mutex
	commands     map[string]*command.Command
	order        []string // creation order of command ids
	logs         []cmdlog.Entry
	nextLogID    int64
	checkReports []report.CheckReport
	testReports  []report.TestReport
	repos        map[string]*repo.Repo
	users        map[string]*user.User
	ops          []string

	updateErr  error
	appendErr  error
	updateHook func(c *command.Command)
}

func newMockStore() *mockStore {
	return &mockStore{
		commands: make(map[string]*command.Command),
		repos:    make(map[string]*repo.Repo),
		users:    make(map[string]*user.User),
	}
}

func (s *mockStore) ListCommands(_ context.Context) ([]command.Command, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]command.Command, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		out = append(out, *s.commands[s.order[i]])
	}
	return out, nil
}

func (s *mockStore) ListCommandsByStatus(_ context.Context, status command.Status) ([]command.Command, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []command.Command
	for _, id := range s.order {
		if s.commands[id].Status == status {
			out = append(out, *s.commands[id])
		}
	}
	return out, nil
}

func (s *mockStore) GetCommand(_ context.Context, id string) (*command.Command, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.commands[id]
	if !ok {
		return nil, fmt.Errorf("command %s: %w", id, domain.ErrNotFound)
	}
	cp := *c
	return &cp, nil
}

func (s *mockStore) CreateCommand(_ context.Context, c *command.Command) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *c
	s.commands[c.ID] = &cp
	s.order = append(s.order, c.ID)
	return nil
}

func (s *mockStore) UpdateCommand(_ context.Context, c *command.Command) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return s.updateErr
	}
	if _, ok := s.commands[c.ID]; !ok {
		return fmt.Errorf("command %s: %w", c.ID, domain.ErrNotFound)
	}
	c.Version++
	cp := *c
	s.commands[c.ID] = &cp
	s.ops = append(s.ops, fmt.Sprintf("update:%s:%s", c.Status, c.Stage))
	if s.updateHook != nil {
		s.updateHook(c)
	}
	return nil
}

func (s *mockStore) DeleteCommand(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.commands[id]; !ok {
		return fmt.Errorf("command %s: %w", id, domain.ErrNotFound)
	}
	delete(s.commands, id)
	return nil
}

func (s *mockStore) AppendLog(_ context.Context, e *cmdlog.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.appendErr != nil {
		return s.appendErr
	}
	s.nextLogID++
	e.ID = s.nextLogID
	s.logs = append(s.logs, *e)
	s.ops = append(s.ops, "append:"+string(e.Stream))
	return nil
}

func (s *mockStore) ReadLog(_ context.Context, commandID string, stream cmdlog.Stream, afterID int64) ([]cmdlog.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []cmdlog.Entry
	for _, e := range s.logs {
		if e.CommandID == commandID && e.Stream == stream && e.ID > afterID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *mockStore) DeleteLogs(_ context.Context, commandID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var kept []cmdlog.Entry
	for _, e := range s.logs {
		if e.CommandID != commandID {
			kept = append(kept, e)
		}
	}
	s.logs = kept
	return nil
}

func (s *mockStore) AddCheckReport(_ context.Context, r *report.CheckReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkReports = append(s.checkReports, *r)
	return nil
}

func (s *mockStore) AddTestReport(_ context.Context, r *report.TestReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.testReports = append(s.testReports, *r)
	return nil
}

func (s *mockStore) ListCheckReports(_ context.Context, commandID string) ([]report.CheckReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []report.CheckReport
	for _, r := range s.checkReports {
		if r.CommandID == commandID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *mockStore) ListTestReports(_ context.Context, commandID string) ([]report.TestReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []report.TestReport
	for _, r := range s.testReports {
		if r.CommandID == commandID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *mockStore) DeleteReports(_ context.Context, commandID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ck []report.CheckReport
	for _, r := range s.checkReports {
		if r.CommandID != commandID {
			ck = append(ck, r)
		}
	}
	s.checkReports = ck
	var ts []report.TestReport
	for _, r := range s.testReports {
		if r.CommandID != commandID {
			ts = append(ts, r)
		}
	}
	s.testReports = ts
	return nil
}

func (s *mockStore) ListRepos(_ context.Context) ([]repo.Repo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []repo.Repo
	for _, r := range s.repos {
		out = append(out, *r)
	}
	return out, nil
}

func (s *mockStore) GetRepo(_ context.Context, id string) (*repo.Repo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.repos[id]
	if !ok {
		return nil, fmt.Errorf("repo %s: %w", id, domain.ErrNotFound)
	}
	cp := *r
	return &cp, nil
}

func (s *mockStore) GetRepoByFullName(_ context.Context, owner, name string) (*repo.Repo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.repos {
		if r.Owner == owner && r.Name == name {
			cp := *r
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("repo %s/%s: %w", owner, name, domain.ErrNotFound)
}

func (s *mockStore) CreateRepo(_ context.Context, r *repo.Repo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *r
	s.repos[r.ID] = &cp
	return nil
}

func (s *mockStore) UpdateRepo(_ context.Context, r *repo.Repo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.repos[r.ID]; !ok {
		return fmt.Errorf("repo %s: %w", r.ID, domain.ErrNotFound)
	}
	r.Version++
	cp := *r
	s.repos[r.ID] = &cp
	return nil
}

func (s *mockStore) DeleteRepo(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.repos, id)
	return nil
}

func (s *mockStore) GetUserByAPIKeyID(_ context.Context, keyID string) (*user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[keyID]
	if !ok {
		return nil, fmt.Errorf("api key %s: %w", keyID, domain.ErrNotFound)
	}
	cp := *u
	return &cp, nil
}

// countAudit returns how many audit entries exist for the command.
func (s *mockStore) countAudit(commandID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.logs {
		if e.CommandID == commandID && e.Stream == cmdlog.StreamAudit {
			n++
		}
	}
	return n
}

// mockSched implements TaskScheduler, recording scheduled ids without
// running anything.
type mockSched struct {
	mu        sync.Mutex
	scheduled []string
	cancelled []string
	hasTask   bool
}

func (s *mockSched) Schedule(commandID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scheduled = append(s.scheduled, commandID)
}

func (s *mockSched) Cancel(commandID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelled = append(s.cancelled, commandID)
	return s.hasTask
}

// mockCache implements cache.Cache in memory, ignoring TTLs.
type mockCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMockCache() *mockCache {
	return &mockCache{data: make(map[string][]byte)}
}

func (c *mockCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, ok := c.data[key]
	return data, ok, nil
}

func (c *mockCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *mockCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

// mockQueue implements messagequeue.Queue for testing.
type mockQueue struct {
	mu        sync.Mutex
	published []struct {
		subject string
		data    []byte
	}
}

func (q *mockQueue) Publish(_ context.Context, subject string, data []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.published = append(q.published, struct {
		subject string
		data    []byte
	}{subject, data})
	return nil
}

func (q *mockQueue) Subscribe(_ context.Context, _ string, _ messagequeue.Handler) (func(), error) {
	return func() {}, nil
}

func (q *mockQueue) Drain() error      { return nil }
func (q *mockQueue) Close() error      { return nil }
func (q *mockQueue) IsConnected() bool { return true }

// mockHub implements Broadcaster for testing.
type mockHub struct {
	mu     sync.Mutex
	events []string
}

func (h *mockHub) BroadcastEvent(_ context.Context, eventType string, _ any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, eventType)
}

// mockProvider implements gitprovider.Provider. Individual stage ops can
// be overridden to fail; calls records the operations executed in order.
type mockProvider struct {
	mu    sync.Mutex
	calls []string

	checkRemoteErr error
	forkErr        error
	cloneErr       error
	checkoutErr    error
	addErr         error
	commitErr      error
	pushErr        error
	resolveErr     error
}

func (p *mockProvider) record(op string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, op)
}

func (p *mockProvider) Name() string { return "mock" }

func (p *mockProvider) CheckRemote(_ context.Context, _ string) error {
	p.record("check_remote")
	return p.checkRemoteErr
}

func (p *mockProvider) Fork(_ context.Context, fullName string) (string, error) {
	p.record("fork")
	return "https://example.test/fork/" + fullName + ".git", p.forkErr
}

func (p *mockProvider) CloneOrPull(_ context.Context, _, _ string) error {
	p.record("clone_or_pull")
	return p.cloneErr
}

func (p *mockProvider) Checkout(_ context.Context, _, _ string) error {
	p.record("checkout")
	return p.checkoutErr
}

func (p *mockProvider) Add(_ context.Context, _ string) error {
	p.record("add")
	return p.addErr
}

func (p *mockProvider) Commit(_ context.Context, _, _ string) error {
	p.record("commit")
	return p.commitErr
}

func (p *mockProvider) Push(_ context.Context, _, _ string) error {
	p.record("push")
	return p.pushErr
}

func (p *mockProvider) ResolveCommit(_ context.Context, _ string) (*gitprovider.Commit, error) {
	p.record("resolve_commit")
	if p.resolveErr != nil {
		return nil, p.resolveErr
	}
	return &gitprovider.Commit{ID: "abc123", URL: "https://example.test/commit/abc123"}, nil
}

// mockTool implements toolrunner.Runner.
type mockTool struct {
	lines  []string
	result toolrunner.Result
	err    error
}

func (t *mockTool) Execute(_ context.Context, _ toolrunner.Request, onLine func(string)) (*toolrunner.Result, error) {
	for _, line := range t.lines {
		onLine(line)
	}
	if t.err != nil {
		return nil, t.err
	}
	r := t.result
	return &r, nil
}

// mockArchiver implements archive.Archiver.
type mockArchiver struct {
	mu         sync.Mutex
	archived   map[string]string
	discarded  []string
	archiveErr error
}

func newMockArchiver() *mockArchiver {
	return &mockArchiver{archived: make(map[string]string)}
}

func (a *mockArchiver) Archive(_ context.Context, commandID, workTree string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.archiveErr != nil {
		return "", a.archiveErr
	}
	path := "/artifacts/" + commandID + ".zip"
	a.archived[commandID] = path
	_ = workTree
	return path, nil
}

func (a *mockArchiver) Retrieve(_ context.Context, commandID string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	path, ok := a.archived[commandID]
	if !ok {
		return "", fmt.Errorf("artifact for %s: %w", commandID, domain.ErrNotFound)
	}
	return path, nil
}

func (a *mockArchiver) Discard(_ context.Context, commandID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.archived, commandID)
	a.discarded = append(a.discarded, commandID)
	return nil
}
