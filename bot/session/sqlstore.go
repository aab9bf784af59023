package session

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/magbot/core/logger"
	"log/slog"
)

// sqlStore persists sessions to Postgres through sqlx. The bot is a single
// process, so a store mutex is enough to serialise read-modify-write
// sequences; the database provides durability across restarts.
type sqlStore struct {
	mu sync.Mutex
	db *sqlx.DB
}

type sessionRow struct {
	UserID      int64          `db:"user_id"`
	ChatID      int64          `db:"chat_id"`
	Provider    string         `db:"provider"`
	Configured  bool           `db:"configured"`
	Credentials sql.NullString `db:"credentials"`
	Ephemeral   sql.NullString `db:"ephemeral"`
}

// NewSQLStore wraps an open sqlx connection as a session Store.
func NewSQLStore(db *sqlx.DB) Store {
	return &sqlStore{db: db}
}

func (s *sqlStore) Get(userID int64) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, err := s.fetch(userID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			logger.SES.Error("session fetch failed",
				slog.String("event", "store.get"),
				slog.Int64("user_id", userID),
				slog.String("err", err.Error()),
			)
		}
		return nil, false
	}
	return sess, true
}

func (s *sqlStore) Update(userID, chatID int64, fn func(*Session)) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, err := s.fetch(userID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("session fetch: %w", err)
		}
		sess = NewSession(userID, chatID)
	}
	if chatID != 0 {
		sess.ChatID = chatID
	}
	if fn != nil {
		fn(sess)
	}
	if err := s.upsert(sess); err != nil {
		return nil, err
	}
	return sess.clone(), nil
}

func (s *sqlStore) Delete(userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`DELETE FROM sessions WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("session delete: %w", err)
	}
	return nil
}

func (s *sqlStore) Close() error { return s.db.Close() }

func (s *sqlStore) fetch(userID int64) (*Session, error) {
	var row sessionRow
	err := s.db.Get(&row,
		`SELECT user_id, chat_id, provider, configured, credentials, ephemeral
		   FROM sessions WHERE user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	sess := NewSession(row.UserID, row.ChatID)
	sess.Provider = Provider(row.Provider)
	sess.Configured = row.Configured
	if row.Credentials.Valid && row.Credentials.String != "" {
		if err := json.Unmarshal([]byte(row.Credentials.String), &sess.Credentials); err != nil {
			return nil, fmt.Errorf("credentials decode: %w", err)
		}
	}
	if row.Ephemeral.Valid && row.Ephemeral.String != "" {
		if err := json.Unmarshal([]byte(row.Ephemeral.String), &sess.Ephemeral); err != nil {
			return nil, fmt.Errorf("ephemeral decode: %w", err)
		}
	}
	return sess, nil
}

func (s *sqlStore) upsert(sess *Session) error {
	creds, err := json.Marshal(sess.Credentials)
	if err != nil {
		return fmt.Errorf("credentials encode: %w", err)
	}
	eph, err := json.Marshal(sess.Ephemeral)
	if err != nil {
		return fmt.Errorf("ephemeral encode: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO sessions (user_id, chat_id, provider, configured, credentials, ephemeral, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		ON CONFLICT (user_id) DO UPDATE SET
			chat_id = EXCLUDED.chat_id,
			provider = EXCLUDED.provider,
			configured = EXCLUDED.configured,
			credentials = EXCLUDED.credentials,
			ephemeral = EXCLUDED.ephemeral,
			updated_at = now()`,
		sess.UserID, sess.ChatID, string(sess.Provider), sess.Configured, creds, eph)
	if err != nil {
		return fmt.Errorf("session upsert: %w", err)
	}
	return nil
}
