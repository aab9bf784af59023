package session

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.json")

	st, err := NewFileStore(path)
	require.NoError(t, err)

	_, err = st.Update(42, 4242, func(s *Session) {
		s.ResetProvider(ProviderWebdav)
		s.SetCredential(FieldWebdavURL, "https://dav.example.org")
		s.SetCredential(FieldWebdavUser, "u")
		s.SetCredential(FieldWebdavPass, "p")
		s.Configured = true
	})
	require.NoError(t, err)
	require.NoError(t, st.Close())

	// A fresh store over the same file sees the persisted session.
	reopened, err := NewFileStore(path)
	require.NoError(t, err)
	got, ok := reopened.Get(42)
	require.True(t, ok)
	assert.Equal(t, ProviderWebdav, got.Provider)
	assert.True(t, got.Configured)
	assert.Equal(t, "https://dav.example.org", got.Credential(FieldWebdavURL))
}

func TestFileStoreMissingFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nope.json")
	st, err := NewFileStore(path)
	require.NoError(t, err)
	_, ok := st.Get(1)
	assert.False(t, ok)
}

func TestFileStoreCorruptFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.json")
	require.NoError(t, os.WriteFile(path, []byte("{ not json"), 0o644))

	st, err := NewFileStore(path)
	require.NoError(t, err)
	_, ok := st.Get(1)
	assert.False(t, ok)
}

func TestFileStoreDeletePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.json")
	st, err := NewFileStore(path)
	require.NoError(t, err)

	_, err = st.Update(7, 70, nil)
	require.NoError(t, err)
	require.NoError(t, st.Delete(7))

	reopened, err := NewFileStore(path)
	require.NoError(t, err)
	_, ok := reopened.Get(7)
	assert.False(t, ok)
}
