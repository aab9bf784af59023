package session

import (
	"sync"
)

// Store is the single owner of session records. Mutations go through Update,
// which serialises read-modify-write sequences for the same user against
// every other path that touches that user, including the expiry wipe.
type Store interface {
	// Get returns a copy of the session, or false when none exists.
	Get(userID int64) (*Session, bool)
	// Update applies fn to the user's session under the store lock, creating
	// an unconfigured session lazily, and persists the result. The returned
	// session is a copy.
	Update(userID, chatID int64, fn func(*Session)) (*Session, error)
	// Delete removes the user's session entirely.
	Delete(userID int64) error
	// Close releases any underlying resources.
	Close() error
}

// memoryStore keeps sessions in a map. It is the ephemeral operating mode:
// everything is lost on restart, which the expiry model tolerates.
type memoryStore struct {
	mu       sync.Mutex
	sessions map[int64]*Session
}

// NewMemoryStore returns a Store backed only by process memory.
func NewMemoryStore() Store {
	return &memoryStore{sessions: make(map[int64]*Session)}
}

func (m *memoryStore) Get(userID int64) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[userID]
	if !ok {
		return nil, false
	}
	return s.clone(), true
}

func (m *memoryStore) Update(userID, chatID int64, fn func(*Session)) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[userID]
	if !ok {
		s = NewSession(userID, chatID)
		m.sessions[userID] = s
	}
	if chatID != 0 {
		s.ChatID = chatID
	}
	if fn != nil {
		fn(s)
	}
	return s.clone(), nil
}

func (m *memoryStore) Delete(userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, userID)
	return nil
}

func (m *memoryStore) Close() error { return nil }
