package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/neboloop/hitomi/internal/logging"
)

const (
	// refreshSkew refreshes tokens that expire within this window.
	refreshSkew = 120 * time.Second
	// DefaultName is used when nothing better is known.
	DefaultName      = "friend"
	defaultExpiresIn = 3600
)

// Config points the manager at the auth service.
type Config struct {
	BaseURL string
	AnonKey string
	Timeout time.Duration
}

// Manager is the auth collaborator used by the chat client.
type Manager struct {
	cfg    Config
	store  Store
	client *http.Client
	now    func() time.Time

	mu   sync.Mutex
	sess Session
}

// NewManager loads the stored session. A store that fails to load starts
// signed out.
func NewManager(cfg Config, store Store) *Manager {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if store == nil {
		store = &MemoryStore{}
	}
	m := &Manager{
		cfg:    cfg,
		store:  store,
		client: &http.Client{Timeout: cfg.Timeout},
		now:    time.Now,
	}
	sess, err := store.Load()
	if err != nil {
		logging.Warnf("[auth] load session: %v", err)
	}
	m.sess = sess
	return m
}

// SignIn stores a session obtained elsewhere. A missing expiry is taken from
// the token's exp claim.
func (m *Manager) SignIn(sess Session) error {
	if sess.AccessToken == "" {
		return ErrNotSignedIn
	}
	if sess.ExpiresAt == 0 {
		if c, ok := parseClaims(sess.AccessToken); ok && c.ExpiresAt != nil {
			sess.ExpiresAt = c.ExpiresAt.Unix()
		}
	}
	m.mu.Lock()
	m.sess = sess
	m.mu.Unlock()
	return m.store.Save(sess)
}

// SignOut forgets the session.
func (m *Manager) SignOut() error {
	m.mu.Lock()
	m.sess = Session{}
	m.mu.Unlock()
	return m.store.Clear()
}

// IsSignedIn reports whether a token is stored and not known to be expired.
func (m *Manager) IsSignedIn() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sess.AccessToken == "" {
		return false
	}
	return m.sess.ExpiresAt <= 0 || m.now().Unix() < m.sess.ExpiresAt
}

// DisplayName returns the stored display name, else one derived from the
// token or email, else DefaultName.
func (m *Manager) DisplayName() string {
	m.mu.Lock()
	sess := m.sess
	m.mu.Unlock()
	if name := strings.TrimSpace(sess.DisplayName); name != "" {
		return name
	}
	if c, ok := parseClaims(sess.AccessToken); ok {
		if name := nameFromClaims(c); name != "" {
			return name
		}
	}
	if name := emailLocal(sess.Email); name != "" {
		return name
	}
	return DefaultName
}

// EnsureValidAccessToken returns a bearer token, refreshing it first when it
// expires within two minutes and a refresh token is available.
func (m *Manager) EnsureValidAccessToken(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess := m.sess
	if sess.AccessToken == "" {
		return "", ErrNotSignedIn
	}
	if sess.ExpiresAt > m.now().Add(refreshSkew).Unix() || sess.RefreshToken == "" {
		return sess.AccessToken, nil
	}

	var out struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int64  `json:"expires_in"`
	}
	body := map[string]string{"refresh_token": sess.RefreshToken}
	if err := m.requestJSON(ctx, http.MethodPost, "/auth/v1/token?grant_type=refresh_token", body, "", &out); err != nil {
		return "", fmt.Errorf("refresh token: %w", err)
	}
	if out.AccessToken != "" {
		sess.AccessToken = out.AccessToken
	}
	if out.RefreshToken != "" {
		sess.RefreshToken = out.RefreshToken
	}
	if out.ExpiresIn <= 0 {
		out.ExpiresIn = defaultExpiresIn
	}
	sess.ExpiresAt = m.now().Unix() + out.ExpiresIn
	if err := m.refreshProfile(ctx, &sess); err != nil {
		logging.Debugf("[auth] profile refresh: %v", err)
	}
	m.sess = sess
	if err := m.store.Save(sess); err != nil {
		logging.Warnf("[auth] save session: %v", err)
	}
	logging.Infof("[auth] access token refreshed")
	return sess.AccessToken, nil
}

type userIdentity struct {
	Provider     string         `json:"provider"`
	IdentityData map[string]any `json:"identity_data"`
}

type userProfile struct {
	Email       string `json:"email"`
	AppMetadata struct {
		Provider string `json:"provider"`
	} `json:"app_metadata"`
	Identities []userIdentity `json:"identities"`
}

// refreshProfile fills email, provider and display name from the user
// endpoint. X handles win over Google emails.
func (m *Manager) refreshProfile(ctx context.Context, sess *Session) error {
	var user userProfile
	if err := m.requestJSON(ctx, http.MethodGet, "/auth/v1/user", nil, sess.AccessToken, &user); err != nil {
		return err
	}
	display := ""
	for _, id := range user.Identities {
		switch id.Provider {
		case "x", "twitter":
			if name, _ := id.IdentityData["user_name"].(string); strings.TrimSpace(name) != "" {
				display = "@" + strings.TrimSpace(name)
			}
		case "google":
			if display == "" {
				display, _ = id.IdentityData["email"].(string)
			}
		}
	}
	if display == "" {
		display = emailLocal(user.Email)
	}
	sess.Email = user.Email
	sess.Provider = user.AppMetadata.Provider
	sess.DisplayName = display
	return nil
}

func (m *Manager) requestJSON(ctx context.Context, method, path string, in any, bearer string, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(m.cfg.BaseURL, "/")+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("apikey", m.cfg.AnonKey)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("auth service failed (%d): %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if len(bytes.TrimSpace(data)) == 0 || out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}
