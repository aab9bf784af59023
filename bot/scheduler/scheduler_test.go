package scheduler

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduleFiresExecutor(t *testing.T) {
	s := New()
	defer s.Close()

	fired := make(chan Task, 1)
	s.RegisterExecutor("ping", func(task Task) { fired <- task })

	h, err := s.Schedule(10*time.Millisecond, Task{UserID: 7, ChatID: 9, Kind: "ping", Payload: "hi"})
	require.NoError(t, err)
	require.True(t, h.Valid())

	select {
	case got := <-fired:
		assert.Equal(t, int64(7), got.UserID)
		assert.Equal(t, int64(9), got.ChatID)
		assert.Equal(t, "hi", got.Payload)
		assert.NotEmpty(t, got.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("task never fired")
	}
}

func TestCancelPreventsFire(t *testing.T) {
	s := New()
	defer s.Close()

	var mu sync.Mutex
	fired := false
	s.RegisterExecutor("ping", func(Task) {
		mu.Lock()
		fired = true
		mu.Unlock()
	})

	h, err := s.Schedule(50*time.Millisecond, Task{Kind: "ping"})
	require.NoError(t, err)
	assert.True(t, s.Cancel(h))

	time.Sleep(120 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.False(t, fired)
}

func TestCancelAfterFireReportsNotPending(t *testing.T) {
	s := New()
	defer s.Close()

	done := make(chan struct{})
	s.RegisterExecutor("ping", func(Task) { close(done) })

	h, err := s.Schedule(time.Millisecond, Task{Kind: "ping"})
	require.NoError(t, err)
	<-done

	// Give fire a moment to clear the timer map.
	time.Sleep(20 * time.Millisecond)
	assert.False(t, s.Cancel(h))
}

func TestUnknownKindIsDropped(t *testing.T) {
	s := New()
	defer s.Close()

	_, err := s.Schedule(time.Millisecond, Task{Kind: "nobody-home"})
	require.NoError(t, err)
	time.Sleep(30 * time.Millisecond)
}

func TestCloseRejectsScheduling(t *testing.T) {
	s := New()
	s.Close()

	_, err := s.Schedule(time.Millisecond, Task{Kind: "ping"})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestInvalidHandleCancel(t *testing.T) {
	s := New()
	defer s.Close()
	assert.False(t, s.Cancel(Handle{}))
}
