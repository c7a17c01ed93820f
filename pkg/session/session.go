// Package session provides server-side session storage for the authorization
// snapshot. Sessions are read-then-written without locking across requests;
// concurrent requests from the same user may race on the snapshot and the
// last writer wins. That weak consistency is accepted, not worked around.
package session

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/vendhub/vendhub/pkg/authz"
)

// DefaultTTL is the session lifetime applied when none is configured.
const DefaultTTL = 24 * time.Hour

// Session is one server-side session. It carries the caller's identity, the
// per-session anti-forgery token and the resolved authorization snapshot.
type Session struct {
	ID        string         `json:"id"`
	UserID    int64          `json:"user_id"`
	TenantID  int64          `json:"tenant_id"`
	CSRFToken string         `json:"csrf_token"`
	Authz     *authz.Context `json:"authz,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	ExpiresAt time.Time      `json:"expires_at"`
}

// New creates a session for a user inside a tenant. UserID zero is a guest.
func New(userID, tenantID int64, ttl time.Duration) *Session {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now := time.Now().UTC()
	return &Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		TenantID:  tenantID,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

// Expired reports whether the session is past its lifetime.
func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// Identity implements authz.SessionState.
func (s *Session) Identity() (int64, int64) {
	return s.UserID, s.TenantID
}

// Snapshot implements authz.SessionState.
func (s *Session) Snapshot() *authz.Context {
	return s.Authz
}

// SetSnapshot implements authz.SessionState.
func (s *Session) SetSnapshot(c *authz.Context) {
	s.Authz = c
	s.UpdatedAt = time.Now().UTC()
}

// Token implements authz.SessionState.
func (s *Session) Token() string {
	return s.CSRFToken
}

// SetToken implements authz.SessionState.
func (s *Session) SetToken(token string) {
	s.CSRFToken = token
	s.UpdatedAt = time.Now().UTC()
}

// ClearSnapshot drops the authorization snapshot so the next request reloads
// it from the resolvers.
func (s *Session) ClearSnapshot() {
	s.Authz = nil
	s.UpdatedAt = time.Now().UTC()
}

// Store persists sessions keyed by their identifier.
type Store interface {
	// Get returns the session or nil when it does not exist or expired.
	Get(ctx context.Context, id string) (*Session, error)

	// Save writes the session.
	Save(ctx context.Context, sess *Session) error

	// Delete removes a session.
	Delete(ctx context.Context, id string) error

	// PurgeExpired removes expired sessions and returns how many.
	PurgeExpired(ctx context.Context) (int, error)
}
