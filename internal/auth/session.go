// Package auth keeps the signed-in session and hands out bearer tokens for
// the chat service.
package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/golang-jwt/jwt/v5"

	"github.com/neboloop/hitomi/internal/keyring"
)

// ErrNotSignedIn is returned when no access token is stored.
var ErrNotSignedIn = errors.New("auth: please sign in first")

// Session is the persisted sign-in state. ExpiresAt is unix seconds; zero
// means unknown.
type Session struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresAt    int64  `json:"expires_at,omitempty"`
	Email        string `json:"email,omitempty"`
	Provider     string `json:"provider,omitempty"`
	DisplayName  string `json:"display_name,omitempty"`
}

// Store persists a Session.
type Store interface {
	Load() (Session, error)
	Save(Session) error
	Clear() error
}

// KeyringStore keeps the session as JSON in the OS keychain.
type KeyringStore struct {
	Account string
}

// NewKeyringStore returns a store under the default account.
func NewKeyringStore() *KeyringStore {
	return &KeyringStore{Account: "session"}
}

// Load implements Store. A missing entry is an empty session.
func (s *KeyringStore) Load() (Session, error) {
	raw, err := keyring.Get(s.Account)
	if errors.Is(err, keyring.ErrNotFound) {
		return Session{}, nil
	}
	if err != nil {
		return Session{}, err
	}
	var sess Session
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		return Session{}, fmt.Errorf("decode session: %w", err)
	}
	return sess, nil
}

// Save implements Store.
func (s *KeyringStore) Save(sess Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	return keyring.Set(s.Account, string(data))
}

// Clear implements Store.
func (s *KeyringStore) Clear() error {
	return keyring.Delete(s.Account)
}

// MemoryStore keeps the session in memory; used when no keychain exists.
type MemoryStore struct {
	mu   sync.Mutex
	sess Session
}

// Load implements Store.
func (m *MemoryStore) Load() (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sess, nil
}

// Save implements Store.
func (m *MemoryStore) Save(sess Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sess = sess
	return nil
}

// Clear implements Store.
func (m *MemoryStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sess = Session{}
	return nil
}

// tokenClaims are the parts of an access token the client reads. Tokens
// are not verified here; the server does that.
type tokenClaims struct {
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata"`
	jwt.RegisteredClaims
}

func parseClaims(token string) (*tokenClaims, bool) {
	if token == "" {
		return nil, false
	}
	claims := &tokenClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, false
	}
	return claims, true
}

// nameFromClaims prefers an X handle, then a preferred name, then the
// email's local part.
func nameFromClaims(c *tokenClaims) string {
	if c == nil {
		return ""
	}
	for _, key := range []string{"user_name", "preferred_username"} {
		if v, ok := c.UserMetadata[key].(string); ok && strings.TrimSpace(v) != "" {
			return "@" + strings.TrimPrefix(strings.TrimSpace(v), "@")
		}
	}
	if v, ok := c.UserMetadata["full_name"].(string); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return emailLocal(c.Email)
}

func emailLocal(email string) string {
	if i := strings.Index(email, "@"); i > 0 {
		return email[:i]
	}
	return ""
}
