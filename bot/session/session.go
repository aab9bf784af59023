// Package session owns the per-user mutable state of the bot: the storage
// provider choice, collected credentials, the configured flag, and the
// ephemeral values that bridge a button press back to earlier results.
// All access goes through a Store; there is no ambient global map.
package session

// Provider enumerates supported storage back-ends.
type Provider string

const (
	// ProviderNone means the user never completed setup.
	ProviderNone Provider = ""
	// ProviderLocal keeps nothing remote; resolved links are shown in chat.
	ProviderLocal Provider = "local"
	// ProviderMega stores into a Mega account (email + password).
	ProviderMega Provider = "mega"
	// ProviderDropbox stores via a Dropbox access token.
	ProviderDropbox Provider = "dropbox"
	// ProviderChannel re-posts resolved links into a Telegram channel.
	ProviderChannel Provider = "channel"
	// ProviderWebdav stores via WebDAV (url + user + pass).
	ProviderWebdav Provider = "webdav"
	// ProviderSeedrLocal resolves through Seedr and hands the link back.
	ProviderSeedrLocal Provider = "seedr-local"
	// ProviderSeedrCloud resolves through Seedr and keeps the file there.
	ProviderSeedrCloud Provider = "seedr-cloud"
)

// Credential field names used by the setup dialogue and the vault clients.
const (
	FieldEmail      = "email"
	FieldPassword   = "password"
	FieldToken      = "token"
	FieldWebdavURL  = "webdavUrl"
	FieldWebdavUser = "webdavUser"
	FieldWebdavPass = "webdavPass"
	FieldChannelID  = "channel"
)

// Pick is one remembered discovery result, keyed by rank in the ephemeral map.
type Pick struct {
	Title  string `json:"title"`
	Size   string `json:"size"`
	Magnet string `json:"magnet"`
}

// Session is the complete per-user record.
type Session struct {
	UserID      int64             `json:"user_id"`
	ChatID      int64             `json:"chat_id"`
	Provider    Provider          `json:"provider"`
	Credentials map[string]string `json:"credentials,omitempty"`
	Configured  bool              `json:"configured"`
	Ephemeral   map[string]Pick   `json:"ephemeral,omitempty"`
}

// NewSession returns a fresh unconfigured session for the identity pair.
func NewSession(userID, chatID int64) *Session {
	return &Session{
		UserID:      userID,
		ChatID:      chatID,
		Credentials: make(map[string]string),
		Ephemeral:   make(map[string]Pick),
	}
}

// ProviderUsesOwnSeedr reports whether the session's own credentials
// authenticate against the conversion service.
func (s *Session) ProviderUsesOwnSeedr() bool {
	return s.Provider == ProviderSeedrLocal || s.Provider == ProviderSeedrCloud
}

// ResetProvider discards the provider choice and every collected credential.
// A new provider choice overwrites, never merges with, previous partial input.
func (s *Session) ResetProvider(p Provider) {
	s.Provider = p
	s.Configured = false
	s.Credentials = make(map[string]string)
}

// Credential returns a collected credential field, empty when absent.
func (s *Session) Credential(field string) string {
	if s.Credentials == nil {
		return ""
	}
	return s.Credentials[field]
}

// SetCredential stores one credential field.
func (s *Session) SetCredential(field, value string) {
	if s.Credentials == nil {
		s.Credentials = make(map[string]string)
	}
	s.Credentials[field] = value
}

// Remember stores an ephemeral value under key.
func (s *Session) Remember(key string, p Pick) {
	if s.Ephemeral == nil {
		s.Ephemeral = make(map[string]Pick)
	}
	s.Ephemeral[key] = p
}

// Recall retrieves an ephemeral value by key.
func (s *Session) Recall(key string) (Pick, bool) {
	if s.Ephemeral == nil {
		return Pick{}, false
	}
	p, ok := s.Ephemeral[key]
	return p, ok
}

// clone returns a deep copy so callers never share mutable maps with the store.
func (s *Session) clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	out.Credentials = make(map[string]string, len(s.Credentials))
	for k, v := range s.Credentials {
		out.Credentials[k] = v
	}
	out.Ephemeral = make(map[string]Pick, len(s.Ephemeral))
	for k, v := range s.Ephemeral {
		out.Ephemeral[k] = v
	}
	return &out
}
