package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreCreatesLazily(t *testing.T) {
	st := NewMemoryStore()
	defer st.Close()

	_, ok := st.Get(1)
	assert.False(t, ok)

	s, err := st.Update(1, 100, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), s.UserID)
	assert.Equal(t, int64(100), s.ChatID)
	assert.False(t, s.Configured)

	got, ok := st.Get(1)
	require.True(t, ok)
	assert.Equal(t, int64(100), got.ChatID)
}

func TestUpdateReturnsCopy(t *testing.T) {
	st := NewMemoryStore()
	defer st.Close()

	s, err := st.Update(1, 100, func(s *Session) {
		s.SetCredential(FieldEmail, "a@b.c")
	})
	require.NoError(t, err)

	// Mutating the returned copy must not leak into the store.
	s.SetCredential(FieldEmail, "tampered")
	got, ok := st.Get(1)
	require.True(t, ok)
	assert.Equal(t, "a@b.c", got.Credential(FieldEmail))
}

func TestResetProviderDiscardsPartialCredentials(t *testing.T) {
	st := NewMemoryStore()
	defer st.Close()

	_, err := st.Update(1, 100, func(s *Session) {
		s.ResetProvider(ProviderMega)
		s.SetCredential(FieldEmail, "a@b.c")
	})
	require.NoError(t, err)

	s, err := st.Update(1, 100, func(s *Session) {
		s.ResetProvider(ProviderWebdav)
	})
	require.NoError(t, err)

	assert.Equal(t, ProviderWebdav, s.Provider)
	assert.Empty(t, s.Credential(FieldEmail))
	assert.False(t, s.Configured)
}

func TestDeleteRemovesSession(t *testing.T) {
	st := NewMemoryStore()
	defer st.Close()

	_, err := st.Update(1, 100, nil)
	require.NoError(t, err)
	require.NoError(t, st.Delete(1))

	_, ok := st.Get(1)
	assert.False(t, ok)
}

func TestRememberRecall(t *testing.T) {
	s := NewSession(1, 100)
	_, ok := s.Recall("search-result-1")
	assert.False(t, ok)

	s.Remember("search-result-1", Pick{Title: "t", Size: "1.2 GiB", Magnet: "magnet:?xt=x"})
	p, ok := s.Recall("search-result-1")
	require.True(t, ok)
	assert.Equal(t, "t", p.Title)
}

func TestProviderUsesOwnSeedr(t *testing.T) {
	s := NewSession(1, 100)
	s.Provider = ProviderSeedrLocal
	assert.True(t, s.ProviderUsesOwnSeedr())
	s.Provider = ProviderSeedrCloud
	assert.True(t, s.ProviderUsesOwnSeedr())
	s.Provider = ProviderMega
	assert.False(t, s.ProviderUsesOwnSeedr())
}
