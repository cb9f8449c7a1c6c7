package service

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Scheduler runs Runner tasks on a bounded worker pool. Admission order is
// FIFO: semaphore waiters are served in arrival order, so excess work
// queues in scheduling order rather than being rejected. At most one task
// is active or queued per command id.
type Scheduler struct {
	runner *Runner
	sem    *semaphore.Weighted

	root   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	active map[string]context.CancelFunc
}

// NewScheduler creates a Scheduler admitting at most maxConcurrent
// simultaneously running commands.
func NewScheduler(runner *Runner, maxConcurrent int) *Scheduler {
	root, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		runner: runner,
		sem:    semaphore.NewWeighted(int64(maxConcurrent)),
		root:   root,
		cancel: cancel,
		active: make(map[string]context.CancelFunc),
	}
}

// Schedule enqueues a Runner task for the command. Scheduling a command
// that already has a queued or active task is a no-op; the facade's status
// preconditions make that path unreachable in practice.
func (s *Scheduler) Schedule(commandID string) {
	s.mu.Lock()
	if _, exists := s.active[commandID]; exists {
		s.mu.Unlock()
		slog.Warn("task already scheduled", "command_id", commandID)
		return
	}
	ctx, cancel := context.WithCancel(s.root)
	s.active[commandID] = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.release(commandID)

		if err := s.sem.Acquire(ctx, 1); err != nil {
			// Canceled while queued; the run never started.
			s.runner.markStopped(context.WithoutCancel(ctx), commandID)
			return
		}
		defer s.sem.Release(1)

		if err := s.runner.Run(ctx, commandID); err != nil {
			slog.Error("runner task aborted", "command_id", commandID, "error", err)
		}
	}()
}

// Cancel signals the command's task to stop at its next stage boundary.
// It reports whether a task was found.
func (s *Scheduler) Cancel(commandID string) bool {
	s.mu.Lock()
	cancel, ok := s.active[commandID]
	s.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

func (s *Scheduler) release(commandID string) {
	s.mu.Lock()
	if cancel, ok := s.active[commandID]; ok {
		cancel()
		delete(s.active, commandID)
	}
	s.mu.Unlock()
}

// Shutdown cancels all tasks and waits for them to acknowledge, or for
// ctx to expire.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
