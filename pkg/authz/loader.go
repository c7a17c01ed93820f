package authz

import (
	"context"
	"crypto/rand"
	"encoding/hex"

	"github.com/vendhub/vendhub/pkg/observability"
)

// SessionState is the slice of session state the loader reads and writes.
// The session package provides the concrete implementation; the loader never
// touches session persistence itself.
type SessionState interface {
	Identity() (userID, tenantID int64)
	Snapshot() *Context
	SetSnapshot(*Context)
	Token() string
	SetToken(string)
}

// ContextLoader builds the session-scoped authorization context. The snapshot
// is resolved once and reused until explicitly cleared: a non-empty snapshot
// is returned unchanged, a deliberate staleness tradeoff.
type ContextLoader struct {
	store     Store
	resolvers *Resolvers
	logger    *observability.Logger
	metrics   *observability.Metrics
}

// NewContextLoader creates a loader over the resolver chain.
func NewContextLoader(store Store, resolvers *Resolvers, logger *observability.Logger) *ContextLoader {
	return &ContextLoader{store: store, resolvers: resolvers, logger: logger}
}

// WithMetrics enables the session-load counter.
func (l *ContextLoader) WithMetrics(m *observability.Metrics) *ContextLoader {
	l.metrics = m
	return l
}

// EnsureContext returns the session's authorization context, resolving and
// persisting it into the session only when the snapshot is empty. A nil or
// anonymous session yields a guest context instead of an error.
func (l *ContextLoader) EnsureContext(ctx context.Context, sess SessionState) *Context {
	if sess == nil {
		return guestContext(0, "")
	}

	token := l.ensureToken(sess)

	userID, tenantID := sess.Identity()

	// A populated snapshot is reused as long as it still describes the
	// session's identity; login or tenant switch forces a reload.
	if snap := sess.Snapshot(); !snap.Empty() && snap.UserID == userID && snap.TenantID == tenantID {
		return snap
	}

	if userID == 0 {
		authzCtx := guestContext(tenantID, token)
		sess.SetSnapshot(authzCtx)
		return authzCtx
	}

	authzCtx := l.load(ctx, userID, tenantID)
	authzCtx.CSRFToken = token
	sess.SetSnapshot(authzCtx)

	if l.metrics != nil {
		l.metrics.SessionsLoadedTotal.Inc()
	}
	return authzCtx
}

// load resolves role, coarse permissions and resource flags for every
// resource type with rules visible in the tenant. Super-admin entries come
// back all-true from the resolver short-circuit, so the snapshot for a super
// admin lists every known resource type as fully granted without any
// synthetic rows being written through the cache.
func (l *ContextLoader) load(ctx context.Context, userID, tenantID int64) *Context {
	role := l.resolvers.Roles.Resolve(ctx, userID, tenantID)

	roleKeys := []string{}
	if role.RoleKey != "" {
		roleKeys = append(roleKeys, role.RoleKey)
	}

	permissions := l.resolvers.Permissions.Resolve(ctx, userID, tenantID)

	resourcePerms := make(map[string]ResourceFlags)
	types, err := l.store.ResourceTypes(ctx, tenantID)
	if err != nil {
		l.logger.WithError(err).WithFields(map[string]interface{}{
			"user_id":   userID,
			"tenant_id": tenantID,
		}).Warn("resource type listing failed, loading context without resource permissions")
		types = nil
	}
	for _, resourceType := range types {
		resourcePerms[resourceType] = l.resolvers.Resources.Resolve(ctx, userID, resourceType, tenantID)
	}

	return &Context{
		UserID:              userID,
		TenantID:            tenantID,
		RoleKeys:            roleKeys,
		Permissions:         permissions,
		ResourcePermissions: resourcePerms,
		IsSuperAdmin:        role.IsSuperAdmin(),
	}
}

// ensureToken issues the per-session anti-forgery token exactly once. An
// existing token is never rotated.
func (l *ContextLoader) ensureToken(sess SessionState) string {
	if token := sess.Token(); token != "" {
		return token
	}
	token := newCSRFToken()
	sess.SetToken(token)
	return token
}

func guestContext(tenantID int64, token string) *Context {
	return &Context{
		UserID:              0,
		TenantID:            tenantID,
		RoleKeys:            []string{},
		Permissions:         []string{},
		ResourcePermissions: make(map[string]ResourceFlags),
		IsSuperAdmin:        false,
		CSRFToken:           token,
	}
}

func newCSRFToken() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand only fails when the OS entropy source is broken
		panic("csrf token generation failed: " + err.Error())
	}
	return hex.EncodeToString(buf)
}
