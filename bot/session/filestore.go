package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/m3rciful/magbot/core/logger"
	"log/slog"
)

// fileStore persists the whole session map to a single local file, loaded at
// start and overwritten on each mutation. No schema versioning; losing the
// file on restart is an accepted operating assumption.
type fileStore struct {
	mu       sync.Mutex
	path     string
	sessions map[int64]*Session
}

// NewFileStore loads existing sessions from path, tolerating a missing file.
func NewFileStore(path string) (Store, error) {
	fs := &fileStore{
		path:     path,
		sessions: make(map[int64]*Session),
	}
	if err := fs.load(); err != nil {
		return nil, err
	}
	return fs, nil
}

func (f *fileStore) load() error {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("session file read: %w", err)
	}
	var raw map[string]*Session
	if err := json.Unmarshal(data, &raw); err != nil {
		// A corrupt file is dropped, not fatal: sessions are best-effort.
		logger.SES.Warn("session file unreadable, starting empty",
			slog.String("event", "store.load"),
			slog.String("path", f.path),
			slog.String("err", err.Error()),
		)
		return nil
	}
	for key, s := range raw {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil || s == nil {
			continue
		}
		f.sessions[id] = s
	}
	logger.SES.Info("sessions loaded",
		slog.String("event", "store.load"),
		slog.String("path", f.path),
		slog.Int("count", len(f.sessions)),
	)
	return nil
}

// save writes the full map atomically via a temp file rename.
func (f *fileStore) save() error {
	raw := make(map[string]*Session, len(f.sessions))
	for id, s := range f.sessions {
		raw[strconv.FormatInt(id, 10)] = s
	}
	data, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return fmt.Errorf("session file encode: %w", err)
	}
	dir := filepath.Dir(f.path)
	tmp, err := os.CreateTemp(dir, ".sessions-*")
	if err != nil {
		return fmt.Errorf("session file temp: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("session file write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("session file close: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("session file rename: %w", err)
	}
	return nil
}

func (f *fileStore) Get(userID int64) (*Session, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[userID]
	if !ok {
		return nil, false
	}
	return s.clone(), true
}

func (f *fileStore) Update(userID, chatID int64, fn func(*Session)) (*Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[userID]
	if !ok {
		s = NewSession(userID, chatID)
		f.sessions[userID] = s
	}
	if chatID != 0 {
		s.ChatID = chatID
	}
	if fn != nil {
		fn(s)
	}
	if err := f.save(); err != nil {
		return nil, err
	}
	return s.clone(), nil
}

func (f *fileStore) Delete(userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.sessions[userID]; !ok {
		return nil
	}
	delete(f.sessions, userID)
	return f.save()
}

func (f *fileStore) Close() error { return nil }
