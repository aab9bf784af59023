package session

import (
	"sync"
	"time"

	"github.com/m3rciful/magbot/bot/scheduler"
	"github.com/m3rciful/magbot/core/logger"
	"log/slog"
)

// TaskKindExpire identifies the session wipe task in the scheduler.
const TaskKindExpire = "session.expire"

// Notifier delivers a plain-text message to a chat. The Telegram layer
// provides the real implementation; tests supply fakes.
type Notifier interface {
	Notify(chatID int64, text string) error
}

// Lifecycle arms a single deferred wipe per user and replaces it on re-arm.
// When a wipe fires, the user is notified best-effort and the session entry
// is removed regardless of delivery.
type Lifecycle struct {
	store    Store
	sched    *scheduler.Scheduler
	notifier Notifier
	ttl      time.Duration

	mu      sync.Mutex
	handles map[int64]scheduler.Handle
}

// NewLifecycle wires the lifecycle manager and registers its expiry executor.
// sched may be nil: arming then degrades to logging without a timer.
func NewLifecycle(store Store, sched *scheduler.Scheduler, notifier Notifier, ttl time.Duration) *Lifecycle {
	l := &Lifecycle{
		store:    store,
		sched:    sched,
		notifier: notifier,
		ttl:      ttl,
		handles:  make(map[int64]scheduler.Handle),
	}
	if sched != nil {
		sched.RegisterExecutor(TaskKindExpire, l.onFire)
	}
	return l
}

// TTL returns the configured session lifetime.
func (l *Lifecycle) TTL() time.Duration { return l.ttl }

// CanSchedule reports whether expiry timers are actually being armed.
// False means degraded mode: sessions stay usable but never expire.
func (l *Lifecycle) CanSchedule() bool { return l.sched != nil }

// Arm schedules the deferred wipe for a user, atomically superseding any
// previously armed timer. A stale timer must never survive a re-arm: it
// would wipe a legitimately re-configured session later.
func (l *Lifecycle) Arm(userID, chatID int64) {
	if l.sched == nil {
		logger.SES.Warn("expiry scheduler unavailable, session will not expire",
			slog.String("event", "expiry.arm"),
			slog.String("status", "skip"),
			slog.Int64("user_id", userID),
		)
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if prev, ok := l.handles[userID]; ok {
		l.sched.Cancel(prev)
		delete(l.handles, userID)
	}
	h, err := l.sched.Schedule(l.ttl, scheduler.Task{
		UserID: userID,
		ChatID: chatID,
		Kind:   TaskKindExpire,
	})
	if err != nil {
		logger.SES.Warn("expiry arm failed",
			slog.String("event", "expiry.arm"),
			slog.String("status", "fail"),
			slog.Int64("user_id", userID),
			slog.String("err", err.Error()),
		)
		return
	}
	l.handles[userID] = h
	logger.SES.Info("session expiry armed",
		slog.String("event", "expiry.arm"),
		slog.String("status", "ok"),
		slog.Int64("user_id", userID),
		slog.Duration("ttl", l.ttl),
	)
}

// Disarm cancels a pending wipe without touching the session, used when a
// session is wiped through another path.
func (l *Lifecycle) Disarm(userID int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if h, ok := l.handles[userID]; ok {
		if l.sched != nil {
			l.sched.Cancel(h)
		}
		delete(l.handles, userID)
	}
}

func (l *Lifecycle) onFire(t scheduler.Task) {
	l.mu.Lock()
	delete(l.handles, t.UserID)
	l.mu.Unlock()

	if l.notifier != nil {
		if err := l.notifier.Notify(t.ChatID, "Your session expired. All stored credentials were wiped. Run /setup to start again."); err != nil {
			// Delivery failure never blocks the wipe.
			logger.SES.Warn("expiry notice undelivered",
				slog.String("event", "expiry.fire"),
				slog.Int64("user_id", t.UserID),
				slog.Int64("chat_id", t.ChatID),
				slog.String("err", err.Error()),
			)
		}
	}
	if err := l.store.Delete(t.UserID); err != nil {
		logger.SES.Error("session wipe failed",
			slog.String("event", "expiry.fire"),
			slog.String("status", "fail"),
			slog.Int64("user_id", t.UserID),
			slog.String("err", err.Error()),
		)
		return
	}
	logger.SES.Info("session expired and wiped",
		slog.String("event", "expiry.fire"),
		slog.String("status", "ok"),
		slog.Int64("user_id", t.UserID),
	)
}
