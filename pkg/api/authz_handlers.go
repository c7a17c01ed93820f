package api

import (
	"net/http"

	"github.com/vendhub/vendhub/pkg/audit"
	"github.com/vendhub/vendhub/pkg/authz"
	"github.com/vendhub/vendhub/pkg/cache"
	"github.com/vendhub/vendhub/pkg/httputil"
	"github.com/vendhub/vendhub/pkg/middleware"
)

// handleAuthzContext returns the caller's authorization snapshot. Guests get
// the guest snapshot rather than an error so clients can render login state
// from one endpoint.
func (s *Server) handleAuthzContext(w http.ResponseWriter, r *http.Request) {
	httputil.WriteSuccess(w, middleware.AuthzContext(r))
}

// handleResourcePermissions returns the effective flags for one resource type.
func (s *Server) handleResourcePermissions(w http.ResponseWriter, r *http.Request) {
	resourceType, ok := httputil.ParsePathStringOrError(w, r, "resourceType")
	if !ok {
		return
	}

	gate := authz.NewGate(middleware.AuthzContext(r)).WithResolver(s.resolvers.Resources)
	flags := gate.Flags(r.Context(), resourceType)

	httputil.WriteSuccess(w, map[string]interface{}{
		"resource_type": resourceType,
		"permissions":   flags,
	})
}

type invalidateRequest struct {
	TenantID int64  `json:"tenant_id"`
	UserID   *int64 `json:"user_id,omitempty"`
}

// handleInvalidate drops cached resolutions for a tenant, or for one user
// within it when user_id is given.
func (s *Server) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	var req invalidateRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonZero(w, req.TenantID, "tenant_id") {
		return
	}

	pattern := cache.TenantPattern(req.TenantID)
	if req.UserID != nil {
		pattern = cache.UserPattern(req.TenantID, *req.UserID)
	}
	deleted := s.cache.DeletePattern(r.Context(), pattern)

	authzCtx := middleware.AuthzContext(r)
	if err := s.audit.LogAdminAction(r.Context(), audit.EventTypeCacheInvalidate, &authzCtx.UserID, &req.TenantID, req.UserID, "authorization cache invalidated"); err != nil {
		s.logger.WithError(err).Warn("audit write failed")
	}

	httputil.WriteSuccess(w, map[string]interface{}{
		"deleted": deleted,
	})
}
