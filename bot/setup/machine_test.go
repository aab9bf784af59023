package setup

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/magbot/bot/apperr"
	"github.com/m3rciful/magbot/bot/scheduler"
	"github.com/m3rciful/magbot/bot/session"
	"github.com/m3rciful/magbot/bot/vault"
	"github.com/m3rciful/magbot/core/telegram/state"
)

type fakeValidator struct {
	calls int
	err   error
}

func (f *fakeValidator) Validate(_ context.Context, _ map[string]string) error {
	f.calls++
	return f.err
}

type silentNotifier struct{}

func (silentNotifier) Notify(int64, string) error { return nil }

func newMachine(t *testing.T, validators map[session.Provider]vault.Validator) (*Machine, session.Store) {
	t.Helper()
	st := session.NewMemoryStore()
	sched := scheduler.New()
	t.Cleanup(sched.Close)
	lc := session.NewLifecycle(st, sched, silentNotifier{}, time.Hour)
	return NewMachine(st, lc, validators), st
}

func TestStartPromptsProviderMenu(t *testing.T) {
	m, _ := newMachine(t, nil)
	next, reply := m.Start(context.Background(), 1, 100)
	assert.Equal(t, StateProviderSelect, next)
	assert.True(t, reply.ShowProviders)
	assert.False(t, reply.Done)
}

func TestStartShortCircuitsWhenConfigured(t *testing.T) {
	m, st := newMachine(t, nil)
	_, err := st.Update(1, 100, func(s *session.Session) {
		s.ResetProvider(session.ProviderMega)
		s.Configured = true
	})
	require.NoError(t, err)

	next, reply := m.Start(context.Background(), 1, 100)
	assert.Equal(t, state.StateIdle, next)
	assert.True(t, reply.Done)
	assert.Contains(t, reply.Text, "already set up")
}

func TestStaleMenuPressKeepsConfiguredSession(t *testing.T) {
	m, st := newMachine(t, nil)
	_, err := st.Update(1, 100, func(s *session.Session) {
		s.ResetProvider(session.ProviderSeedrCloud)
		s.SetCredential(session.FieldToken, "tok")
		s.Configured = true
	})
	require.NoError(t, err)

	// Provider buttons outlive the dialogue; a press on an old menu
	// message must not restart onboarding for a configured user.
	next, reply, err := m.ChooseProvider(context.Background(), 1, 100, string(session.ProviderMega))
	require.NoError(t, err)
	assert.Equal(t, state.StateIdle, next)
	assert.True(t, reply.Done)
	assert.Contains(t, reply.Text, "already set up")

	sess, ok := st.Get(1)
	require.True(t, ok)
	assert.True(t, sess.Configured)
	assert.Equal(t, session.ProviderSeedrCloud, sess.Provider)
	assert.Equal(t, "tok", sess.Credential(session.FieldToken))
}

func TestUnknownProviderRePrompts(t *testing.T) {
	m, st := newMachine(t, nil)
	next, reply, err := m.ChooseProvider(context.Background(), 1, 100, "gopherdrive")
	require.NoError(t, err)
	assert.Equal(t, StateProviderSelect, next)
	assert.True(t, reply.ShowProviders)

	_, ok := st.Get(1)
	assert.False(t, ok, "unknown pick must not create a session")
}

func TestLocalProviderFinalizesImmediately(t *testing.T) {
	m, st := newMachine(t, nil)
	next, reply, err := m.ChooseProvider(context.Background(), 1, 100, string(session.ProviderLocal))
	require.NoError(t, err)
	assert.Equal(t, state.StateIdle, next)
	assert.True(t, reply.Done)

	sess, ok := st.Get(1)
	require.True(t, ok)
	assert.True(t, sess.Configured)
	assert.Equal(t, session.ProviderLocal, sess.Provider)
}

func TestWebdavFullFlow(t *testing.T) {
	m, st := newMachine(t, nil)
	ctx := context.Background()

	next, reply, err := m.ChooseProvider(ctx, 1, 100, string(session.ProviderWebdav))
	require.NoError(t, err)
	assert.Equal(t, StateWebdavURL, next)
	assert.Contains(t, reply.Text, "URL")

	next, _, err = m.Advance(ctx, 1, 100, StateWebdavURL, "https://dav.example.org")
	require.NoError(t, err)
	assert.Equal(t, StateWebdavUser, next)

	next, _, err = m.Advance(ctx, 1, 100, StateWebdavUser, "alice")
	require.NoError(t, err)
	assert.Equal(t, StateWebdavPass, next)

	next, reply, err = m.Advance(ctx, 1, 100, StateWebdavPass, "s3cret")
	require.NoError(t, err)
	assert.Equal(t, state.StateIdle, next)
	assert.True(t, reply.Done)

	sess, ok := st.Get(1)
	require.True(t, ok)
	assert.True(t, sess.Configured)
	assert.Equal(t, "https://dav.example.org", sess.Credential(session.FieldWebdavURL))
	assert.Equal(t, "alice", sess.Credential(session.FieldWebdavUser))
	assert.Equal(t, "s3cret", sess.Credential(session.FieldWebdavPass))
}

func TestProviderRePickDiscardsPartialInput(t *testing.T) {
	m, st := newMachine(t, nil)
	ctx := context.Background()

	_, _, err := m.ChooseProvider(ctx, 1, 100, string(session.ProviderMega))
	require.NoError(t, err)
	_, _, err = m.Advance(ctx, 1, 100, StateMegaEmail, "a@b.c")
	require.NoError(t, err)

	// Changing the mind mid-flow: previous partials must vanish.
	next, _, err := m.ChooseProvider(ctx, 1, 100, string(session.ProviderWebdav))
	require.NoError(t, err)
	assert.Equal(t, StateWebdavURL, next)

	sess, ok := st.Get(1)
	require.True(t, ok)
	assert.Equal(t, session.ProviderWebdav, sess.Provider)
	assert.Empty(t, sess.Credential(session.FieldEmail))
}

func TestValidationFailureRePromptsSameField(t *testing.T) {
	v := &fakeValidator{err: apperr.Validation("token rejected", nil)}
	m, st := newMachine(t, map[session.Provider]vault.Validator{
		session.ProviderDropbox: v,
	})
	ctx := context.Background()

	_, _, err := m.ChooseProvider(ctx, 1, 100, string(session.ProviderDropbox))
	require.NoError(t, err)

	next, reply, err := m.Advance(ctx, 1, 100, StateDropboxToken, "bad-token")
	require.NoError(t, err)
	assert.Equal(t, StateDropboxToken, next)
	assert.Contains(t, reply.Text, "token rejected")
	assert.Equal(t, 1, v.calls)

	sess, _ := st.Get(1)
	assert.False(t, sess.Configured)

	// A corrected input passes on the second try.
	v.err = nil
	next, reply, err = m.Advance(ctx, 1, 100, StateDropboxToken, "good-token")
	require.NoError(t, err)
	assert.Equal(t, state.StateIdle, next)
	assert.True(t, reply.Done)
	sess, _ = st.Get(1)
	assert.True(t, sess.Configured)
	assert.Equal(t, "good-token", sess.Credential(session.FieldToken))
}

func TestEmptyInputRePrompts(t *testing.T) {
	m, _ := newMachine(t, nil)
	ctx := context.Background()

	_, _, err := m.ChooseProvider(ctx, 1, 100, string(session.ProviderMega))
	require.NoError(t, err)

	next, reply, err := m.Advance(ctx, 1, 100, StateMegaEmail, "   ")
	require.NoError(t, err)
	assert.Equal(t, StateMegaEmail, next)
	assert.Contains(t, reply.Text, "empty")
}

func TestAdvanceWithWipedSessionRestarts(t *testing.T) {
	m, _ := newMachine(t, nil)
	next, reply, err := m.Advance(context.Background(), 1, 100, StateMegaEmail, "a@b.c")
	require.NoError(t, err)
	assert.Equal(t, StateProviderSelect, next)
	assert.True(t, reply.ShowProviders)
}

func TestAbortDiscardsUnconfiguredSession(t *testing.T) {
	m, st := newMachine(t, nil)
	ctx := context.Background()

	_, _, err := m.ChooseProvider(ctx, 1, 100, string(session.ProviderMega))
	require.NoError(t, err)
	_, _, err = m.Advance(ctx, 1, 100, StateMegaEmail, "a@b.c")
	require.NoError(t, err)

	reply, err := m.Abort(1, 100)
	require.NoError(t, err)
	assert.True(t, reply.Done)

	sess, ok := st.Get(1)
	require.True(t, ok)
	assert.Equal(t, session.ProviderNone, sess.Provider)
	assert.Empty(t, sess.Credential(session.FieldEmail))
}

func TestSetupThenExpiryWipes(t *testing.T) {
	st := session.NewMemoryStore()
	sched := scheduler.New()
	t.Cleanup(sched.Close)
	lc := session.NewLifecycle(st, sched, silentNotifier{}, 20*time.Millisecond)
	m := NewMachine(st, lc, nil)

	_, reply, err := m.ChooseProvider(context.Background(), 1, 100, string(session.ProviderLocal))
	require.NoError(t, err)
	require.True(t, reply.Done)

	sess, ok := st.Get(1)
	require.True(t, ok)
	require.True(t, sess.Configured)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := st.Get(1); !ok {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("session survived its TTL")
}

func TestCredentialStatesCoverEveryFlowStep(t *testing.T) {
	states := CredentialStates()
	seen := make(map[state.State]struct{}, len(states))
	for _, st := range states {
		seen[st] = struct{}{}
	}
	for provider, flow := range flows {
		for _, s := range flow {
			_, ok := seen[s.state]
			assert.True(t, ok, "state %s of %s missing", s.state, provider)
		}
	}
}
