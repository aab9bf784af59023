package session

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/magbot/bot/scheduler"
)

type recordingNotifier struct {
	mu    sync.Mutex
	notes []string
	chats []int64
}

func (r *recordingNotifier) Notify(chatID int64, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chats = append(r.chats, chatID)
	r.notes = append(r.notes, text)
	return nil
}

func (r *recordingNotifier) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.notes)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition never met")
}

func TestExpiryWipesSessionAndNotifies(t *testing.T) {
	st := NewMemoryStore()
	sched := scheduler.New()
	defer sched.Close()
	notes := &recordingNotifier{}

	lc := NewLifecycle(st, sched, notes, 20*time.Millisecond)

	_, err := st.Update(1, 100, func(s *Session) {
		s.ResetProvider(ProviderLocal)
		s.Configured = true
	})
	require.NoError(t, err)
	lc.Arm(1, 100)

	waitFor(t, func() bool {
		_, ok := st.Get(1)
		return !ok
	})
	waitFor(t, func() bool { return notes.count() == 1 })
	assert.Equal(t, int64(100), notes.chats[0])
	assert.Contains(t, notes.notes[0], "expired")
}

func TestReArmReplacesTimer(t *testing.T) {
	st := NewMemoryStore()
	sched := scheduler.New()
	defer sched.Close()
	notes := &recordingNotifier{}

	lc := NewLifecycle(st, sched, notes, 60*time.Millisecond)

	_, err := st.Update(1, 100, func(s *Session) { s.Configured = true })
	require.NoError(t, err)

	// Arm twice in quick succession: only the replacement may fire.
	lc.Arm(1, 100)
	time.Sleep(20 * time.Millisecond)
	lc.Arm(1, 100)

	waitFor(t, func() bool {
		_, ok := st.Get(1)
		return !ok
	})
	// Let any stale timer that survived get its chance to double-fire.
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, notes.count())
}

func TestDisarmKeepsSession(t *testing.T) {
	st := NewMemoryStore()
	sched := scheduler.New()
	defer sched.Close()

	lc := NewLifecycle(st, sched, &recordingNotifier{}, 30*time.Millisecond)

	_, err := st.Update(1, 100, func(s *Session) { s.Configured = true })
	require.NoError(t, err)
	lc.Arm(1, 100)
	lc.Disarm(1)

	time.Sleep(80 * time.Millisecond)
	_, ok := st.Get(1)
	assert.True(t, ok)
}

func TestNilSchedulerDegradesWithoutPanic(t *testing.T) {
	st := NewMemoryStore()
	lc := NewLifecycle(st, nil, &recordingNotifier{}, time.Hour)

	assert.False(t, lc.CanSchedule())
	lc.Arm(1, 100)
	lc.Disarm(1)
}

func TestWipeProceedsWhenNotifyFails(t *testing.T) {
	st := NewMemoryStore()
	sched := scheduler.New()
	defer sched.Close()

	lc := NewLifecycle(st, sched, failingNotifier{}, 15*time.Millisecond)

	_, err := st.Update(1, 100, func(s *Session) { s.Configured = true })
	require.NoError(t, err)
	lc.Arm(1, 100)

	waitFor(t, func() bool {
		_, ok := st.Get(1)
		return !ok
	})
}

type failingNotifier struct{}

func (failingNotifier) Notify(int64, string) error {
	return assert.AnError
}
