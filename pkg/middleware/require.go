package middleware

import (
	"net/http"

	"github.com/vendhub/vendhub/pkg/audit"
	"github.com/vendhub/vendhub/pkg/authz"
	"github.com/vendhub/vendhub/pkg/httputil"
	"github.com/vendhub/vendhub/pkg/observability"
)

// Guards are the terminating authorization middleware. Each guard evaluates
// the request's snapshot through a gate and either passes the request on or
// ends it with a fixed JSON error. Denials are audited; the audit write never
// changes the verdict.
type Guards struct {
	resolver *authz.ResourcePermissionResolver
	audit    audit.Logger
	metrics  *observability.Metrics
}

// NewGuards creates the guard set. The resolver is used for resource types
// missing from a session snapshot; it may be nil, in which case unknown
// types are denied outright.
func NewGuards(resolver *authz.ResourcePermissionResolver, auditLogger audit.Logger) *Guards {
	if auditLogger == nil {
		auditLogger = audit.NopLogger{}
	}
	return &Guards{resolver: resolver, audit: auditLogger}
}

// WithMetrics attaches decision metrics.
func (g *Guards) WithMetrics(m *observability.Metrics) *Guards {
	g.metrics = m
	return g
}

func (g *Guards) gate(r *http.Request) *authz.Gate {
	gate := authz.NewGate(AuthzContext(r))
	if g.resolver != nil {
		gate = gate.WithResolver(g.resolver)
	}
	return gate
}

func (g *Guards) record(check string, allowed bool) {
	if g.metrics == nil {
		return
	}
	outcome := "denied"
	if allowed {
		outcome = "allowed"
	}
	g.metrics.AuthzDecisionsTotal.WithLabelValues(check, outcome).Inc()
}

func (g *Guards) denyLogin(w http.ResponseWriter, r *http.Request, authzCtx *authz.Context) {
	g.auditDenied(r, audit.EventTypeLoginRequired, authzCtx, "", "login required")
	httputil.WriteUnauthorized(w, "login required")
}

func (g *Guards) deny(w http.ResponseWriter, r *http.Request, authzCtx *authz.Context, resourceType, message string) {
	g.auditDenied(r, audit.EventTypeAccessDenied, authzCtx, resourceType, message)
	httputil.WriteForbidden(w, "forbidden")
}

func (g *Guards) auditDenied(r *http.Request, eventType audit.EventType, authzCtx *authz.Context, resourceType, message string) {
	event := audit.NewEvent(r.Context(), r, eventType, audit.EventStatusDenied)
	if authzCtx.UserID != 0 {
		event.UserID = &authzCtx.UserID
	}
	if authzCtx.TenantID != 0 {
		event.TenantID = &authzCtx.TenantID
	}
	event.ResourceType = resourceType
	event.Message = message
	if err := g.audit.Log(r.Context(), event); err != nil {
		observability.FromContext(r.Context()).WithError(err).Warn("audit write failed")
	}
}

// RequireLogin rejects guest requests with 401.
func (g *Guards) RequireLogin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authzCtx := AuthzContext(r)
		if authzCtx.IsGuest() {
			g.record("login", false)
			g.denyLogin(w, r, authzCtx)
			return
		}
		g.record("login", true)
		next.ServeHTTP(w, r)
	})
}

// RequireRole rejects requests whose snapshot lacks the role key. Guests get
// 401, authenticated callers 403.
func (g *Guards) RequireRole(roleKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authzCtx := AuthzContext(r)
			if authzCtx.IsGuest() {
				g.record("role", false)
				g.denyLogin(w, r, authzCtx)
				return
			}
			if !g.gate(r).HasRole(roleKey) {
				g.record("role", false)
				g.deny(w, r, authzCtx, "", "missing role "+roleKey)
				return
			}
			g.record("role", true)
			next.ServeHTTP(w, r)
		})
	}
}

// RequirePermission rejects requests whose snapshot lacks the coarse
// permission key.
func (g *Guards) RequirePermission(permission string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authzCtx := AuthzContext(r)
			if authzCtx.IsGuest() {
				g.record("permission", false)
				g.denyLogin(w, r, authzCtx)
				return
			}
			if !g.gate(r).Can(permission) {
				g.record("permission", false)
				g.deny(w, r, authzCtx, "", "missing permission "+permission)
				return
			}
			g.record("permission", true)
			next.ServeHTTP(w, r)
		})
	}
}

// RequireResourcePermission rejects requests that cannot perform the given
// action on the resource type. Unknown actions always deny.
func (g *Guards) RequireResourcePermission(resourceType, action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authzCtx := AuthzContext(r)
			if authzCtx.IsGuest() {
				g.record("resource", false)
				g.denyLogin(w, r, authzCtx)
				return
			}
			if !g.gate(r).Allows(r.Context(), resourceType, action) {
				g.record("resource", false)
				g.deny(w, r, authzCtx, resourceType, "action "+action+" not permitted")
				return
			}
			g.record("resource", true)
			next.ServeHTTP(w, r)
		})
	}
}
