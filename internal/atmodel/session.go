package atmodel

import "time"

// AuthState is the lifecycle state of a Session.
type AuthState string

const (
	AuthStateActive  AuthState = "active"
	AuthStateExpired AuthState = "expired"
)

// DefaultSessionTTL is the inactivity expiry spec.md §3 names (24h).
const DefaultSessionTTL = 24 * time.Hour

// Session is the persisted/registered record of an authenticated actor.
type Session struct {
	SessionID  string    `json:"session_id"`
	Handle     string    `json:"handle"`
	DID        DID       `json:"did"`
	AuthState  AuthState `json:"auth_state"`
	JSONPath   string    `json:"json_path,omitempty"`
	CARPath    string    `json:"car_path,omitempty"`

	// AccessJWT/RefreshJWT are the ATProto tokens obtained from
	// CreateSession/RefreshSession; never serialized back to API clients.
	AccessJWT  string `json:"-"`
	RefreshJWT string `json:"-"`

	// UsedRegularPassword flags a login whose password didn't look like an
	// app-password shape (spec.md §4.1 security heuristic).
	UsedRegularPassword bool `json:"used_regular_password_flag"`

	CreatedAt    time.Time `json:"created_at"`
	LastAccessed time.Time `json:"last_accessed"`
}

// Expired reports whether the session has been idle longer than ttl.
func (s Session) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(s.LastAccessed) > ttl
}
