package session

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"gorm.io/gorm"
)

const (
	identitySettingKey = "session_identity"
	tokenSettingKey    = "session_token"
)

// Identity is the signed-in user as reported by the backend's OAuth
// exchange. Pages read it, never mutate it.
type Identity struct {
	UserID    string `json:"user_id"`
	Username  string `json:"username"`
	AvatarURL string `json:"avatar_url,omitempty"`
	Email     string `json:"email,omitempty"`
}

// Manager owns the session identity for the lifetime of the process.
// It is created at startup, passed explicitly to everything that gates
// on identity, and persists the identity so the session survives
// restarts.
type Manager struct {
	mu      sync.RWMutex
	db      *gorm.DB
	current *Identity
	token   *oauth2.Token
}

// NewManager creates a session manager backed by the given database
func NewManager(db *gorm.DB) *Manager {
	return &Manager{db: db}
}

// Load restores a persisted session, if any. A missing session is not an
// error; Current simply stays nil.
func (m *Manager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	identity, err := m.loadJSON(identitySettingKey)
	if err != nil {
		return fmt.Errorf("failed to load session identity: %w", err)
	}
	if identity == nil {
		return nil
	}

	var id Identity
	if err := json.Unmarshal(identity, &id); err != nil {
		return fmt.Errorf("failed to parse session identity: %w", err)
	}
	m.current = &id

	tokenData, err := m.loadJSON(tokenSettingKey)
	if err != nil {
		return fmt.Errorf("failed to load session token: %w", err)
	}
	if tokenData != nil {
		var token oauth2.Token
		if err := json.Unmarshal(tokenData, &token); err != nil {
			return fmt.Errorf("failed to parse session token: %w", err)
		}
		m.token = &token
	}

	return nil
}

// Login installs and persists a new session identity
func (m *Manager) Login(identity Identity, token *oauth2.Token) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := json.Marshal(identity)
	if err != nil {
		return fmt.Errorf("failed to marshal identity: %w", err)
	}
	if err := m.saveJSON(identitySettingKey, data); err != nil {
		return fmt.Errorf("failed to persist identity: %w", err)
	}

	if token != nil {
		tokenData, err := json.Marshal(token)
		if err != nil {
			return fmt.Errorf("failed to marshal token: %w", err)
		}
		if err := m.saveJSON(tokenSettingKey, tokenData); err != nil {
			return fmt.Errorf("failed to persist token: %w", err)
		}
	}

	m.current = &identity
	m.token = token
	return nil
}

// Logout destroys the session, in memory and on disk
func (m *Manager) Logout() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.db.Exec("DELETE FROM settings WHERE key IN (?, ?)",
		identitySettingKey, tokenSettingKey).Error; err != nil {
		return fmt.Errorf("failed to clear persisted session: %w", err)
	}

	m.current = nil
	m.token = nil
	return nil
}

// Current returns a copy of the signed-in identity, or nil when signed out
func (m *Manager) Current() *Identity {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.current == nil {
		return nil
	}
	id := *m.current
	return &id
}

// Token returns the stored OAuth token, or nil
func (m *Manager) Token() *oauth2.Token {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token
}

// SignedIn reports whether a session identity exists
func (m *Manager) SignedIn() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current != nil
}

// saveJSON upserts a settings row
func (m *Manager) saveJSON(key string, data []byte) error {
	return m.db.Exec(`
		INSERT INTO settings (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`, key, string(data), time.Now()).Error
}

// loadJSON reads a settings row, returning nil when absent
func (m *Manager) loadJSON(key string) ([]byte, error) {
	var value string
	err := m.db.Raw("SELECT value FROM settings WHERE key = ?", key).Scan(&value).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}

	if value == "" {
		return nil, nil
	}
	return []byte(value), nil
}
