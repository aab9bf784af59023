// Package scheduler provides a generic one-shot deferred task runner.
// Tasks carry plain data (user id, chat id, payload) and are executed by a
// registered executor for their kind; no closures over mutable bot context.
package scheduler

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/m3rciful/magbot/core/logger"
	"log/slog"
)

// ErrClosed is returned when scheduling is attempted after Close.
var ErrClosed = errors.New("scheduler: closed")

// Task is a deferred unit of work described by data only.
type Task struct {
	ID      string
	UserID  int64
	ChatID  int64
	Kind    string
	Payload string
}

// Handle identifies a scheduled task so it can be cancelled before firing.
type Handle struct {
	id string
}

// Valid reports whether the handle refers to a scheduled task.
func (h Handle) Valid() bool { return h.id != "" }

// Executor runs a fired task. Delivery is best-effort: executor failures are
// the executor's to log, the scheduler never retries.
type Executor func(task Task)

// Scheduler runs one-shot tasks after a delay.
type Scheduler struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
	execs  map[string]Executor
	closed bool
}

// New returns an empty Scheduler ready for executor registration.
func New() *Scheduler {
	return &Scheduler{
		timers: make(map[string]*time.Timer),
		execs:  make(map[string]Executor),
	}
}

// RegisterExecutor binds a task kind to its executor. Later registrations
// for the same kind replace earlier ones.
func (s *Scheduler) RegisterExecutor(kind string, fn Executor) {
	if kind == "" || fn == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.execs[kind] = fn
}

// Schedule arms a one-shot timer for the task and returns its handle.
func (s *Scheduler) Schedule(delay time.Duration, t Task) (Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Handle{}, ErrClosed
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	id := t.ID
	s.timers[id] = time.AfterFunc(delay, func() {
		s.fire(t)
	})
	logger.SCHED.Debug("task scheduled",
		slog.String("event", "task.schedule"),
		slog.String("task_id", id),
		slog.String("kind", t.Kind),
		slog.Int64("user_id", t.UserID),
		slog.Duration("delay", delay),
	)
	return Handle{id: id}, nil
}

// Cancel stops a pending task. It reports whether the task was still pending.
func (s *Scheduler) Cancel(h Handle) bool {
	if !h.Valid() {
		return false
	}
	s.mu.Lock()
	timer, ok := s.timers[h.id]
	if ok {
		delete(s.timers, h.id)
	}
	s.mu.Unlock()
	if !ok {
		return false
	}
	stopped := timer.Stop()
	logger.SCHED.Debug("task cancelled",
		slog.String("event", "task.cancel"),
		slog.String("task_id", h.id),
		slog.Bool("pending", stopped),
	)
	return stopped
}

// Close cancels all pending tasks and rejects further scheduling.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for id, timer := range s.timers {
		timer.Stop()
		delete(s.timers, id)
	}
}

func (s *Scheduler) fire(t Task) {
	s.mu.Lock()
	delete(s.timers, t.ID)
	exec, ok := s.execs[t.Kind]
	s.mu.Unlock()

	if !ok {
		logger.SCHED.Warn("no executor for task",
			slog.String("event", "task.fire"),
			slog.String("task_id", t.ID),
			slog.String("kind", t.Kind),
		)
		return
	}
	logger.SCHED.Debug("task fired",
		slog.String("event", "task.fire"),
		slog.String("task_id", t.ID),
		slog.String("kind", t.Kind),
		slog.Int64("user_id", t.UserID),
	)
	exec(t)
}
