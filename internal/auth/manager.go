// Package auth implements the login/session lifecycle against a single
// ATProto account, grounded on skymarshal/auth.py::AuthManager.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/skymarshal/core/internal/atclient"
	"github.com/skymarshal/core/internal/atmodel"
	"github.com/skymarshal/core/internal/skyerr"
)

var appPasswordShape = regexp.MustCompile(`^[a-z0-9]{4}-[a-z0-9]{4}-[a-z0-9]{4}-[a-z0-9]{4}$`)

// LooksLikeAppPassword reports whether password matches Bluesky's
// xxxx-xxxx-xxxx-xxxx app-password shape, per spec.md §4.1's security
// heuristic — a regular account password never looks like this.
func LooksLikeAppPassword(password string) bool {
	return appPasswordShape.MatchString(password)
}

// Manager owns one session's lifecycle: login, resume-from-disk,
// transparent re-authentication, and logout.
type Manager struct {
	client      *atclient.Client
	sessionPath string

	mu      sync.Mutex
	session *atmodel.Session
}

// NewManager builds a Manager around an already-constructed atclient.Client
// and the path to the session blob.
func NewManager(client *atclient.Client, sessionPath string) *Manager {
	return &Manager{client: client, sessionPath: sessionPath}
}

// persistedSession is the on-disk shape of session.json.
type persistedSession struct {
	Handle              string    `json:"handle"`
	DID                 string    `json:"did"`
	AccessJWT           string    `json:"access_jwt"`
	RefreshJWT          string    `json:"refresh_jwt"`
	UsedRegularPassword bool      `json:"used_regular_password_flag"`
	CreatedAt           time.Time `json:"created_at"`
}

// Login authenticates with handle/password, flags non-app-password logins,
// persists the session blob, and registers the in-memory Session.
func (m *Manager) Login(ctx context.Context, handle, password string) (*atmodel.Session, error) {
	sess, err := m.client.CreateSession(ctx, handle, password)
	if err != nil {
		return nil, err
	}
	sess.UsedRegularPassword = !LooksLikeAppPassword(password)

	m.mu.Lock()
	m.session = sess
	m.mu.Unlock()

	m.saveSession(sess)
	return sess, nil
}

// ResumeSession loads a previously-persisted session.json and installs its
// JWTs on the client without calling the network, matching
// auth.py::load_session's best-effort semantics.
func (m *Manager) ResumeSession(ctx context.Context) (*atmodel.Session, error) {
	data, err := os.ReadFile(m.sessionPath)
	if err != nil {
		return nil, skyerr.Wrap(skyerr.Storage, "no saved session", err)
	}
	var p persistedSession
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, skyerr.Wrap(skyerr.Storage, "corrupt session file", err)
	}

	m.client.RestoreSession(p.Handle, p.DID, p.AccessJWT, p.RefreshJWT)

	sess := &atmodel.Session{
		Handle:              p.Handle,
		DID:                 atmodel.DID(p.DID),
		AuthState:           atmodel.AuthStateActive,
		AccessJWT:           p.AccessJWT,
		RefreshJWT:          p.RefreshJWT,
		UsedRegularPassword: p.UsedRegularPassword,
		CreatedAt:           p.CreatedAt,
		LastAccessed:        time.Now(),
	}

	m.mu.Lock()
	m.session = sess
	m.mu.Unlock()

	return sess, nil
}

// EnsureAuthenticated refreshes the session if it has expired (per
// spec.md §3's 24h idle TTL), re-authenticating exactly once.
func (m *Manager) EnsureAuthenticated(ctx context.Context) error {
	m.mu.Lock()
	sess := m.session
	m.mu.Unlock()

	if sess == nil {
		return skyerr.New(skyerr.Auth, "not authenticated")
	}
	if !sess.Expired(time.Now(), atmodel.DefaultSessionTTL) {
		return nil
	}

	refreshed, err := m.client.RefreshSession(ctx, sess.RefreshJWT)
	if err != nil {
		return skyerr.Wrap(skyerr.Auth, "session expired and refresh failed", err)
	}
	refreshed.UsedRegularPassword = sess.UsedRegularPassword

	m.mu.Lock()
	m.session = refreshed
	m.mu.Unlock()
	m.saveSession(refreshed)
	return nil
}

// errAlreadyRetried marks a re-auth that has already happened once within
// a CallWithReauth invocation, so the retry wrapper never loops.
var errAlreadyRetried = errors.New("already retried")

// CallWithReauth runs fn; if it fails with an Auth-kind error, it
// refreshes the session exactly once and retries fn a single time. This
// is ported line-for-line from auth.py::call_with_reauth's "only re-auth
// if not already authenticated, never loop" rule.
func (m *Manager) CallWithReauth(ctx context.Context, fn func(ctx context.Context) error) error {
	err := fn(ctx)
	if err == nil {
		return nil
	}
	if !skyerr.Is(err, skyerr.Auth) {
		return err
	}

	m.mu.Lock()
	sess := m.session
	m.mu.Unlock()
	if sess == nil {
		return err
	}

	refreshed, refreshErr := m.client.RefreshSession(ctx, sess.RefreshJWT)
	if refreshErr != nil {
		return err
	}
	refreshed.UsedRegularPassword = sess.UsedRegularPassword

	m.mu.Lock()
	m.session = refreshed
	m.mu.Unlock()
	m.saveSession(refreshed)

	return fn(ctx)
}

// Logout clears the in-memory session and removes the persisted blob.
func (m *Manager) Logout() error {
	m.mu.Lock()
	m.session = nil
	m.mu.Unlock()

	err := os.Remove(m.sessionPath)
	if err != nil && !os.IsNotExist(err) {
		return skyerr.Wrap(skyerr.Storage, "failed to remove session file", err)
	}
	return nil
}

// Session returns the current in-memory session, or nil if unauthenticated.
func (m *Manager) Session() *atmodel.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

// saveSession writes the session blob atomically, best-effort: a failed
// write never fails the caller's login/refresh, matching
// auth.py::save_session's try/except-and-log behavior.
func (m *Manager) saveSession(sess *atmodel.Session) {
	p := persistedSession{
		Handle:              sess.Handle,
		DID:                 string(sess.DID),
		AccessJWT:           sess.AccessJWT,
		RefreshJWT:          sess.RefreshJWT,
		UsedRegularPassword: sess.UsedRegularPassword,
		CreatedAt:            sess.CreatedAt,
	}
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return
	}
	if err := os.MkdirAll(filepath.Dir(m.sessionPath), 0o755); err != nil {
		return
	}
	tmp := m.sessionPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return
	}
	_ = os.Rename(tmp, m.sessionPath)
}
