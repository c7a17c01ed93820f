// Package api exposes the HTTP surface: authorization introspection for
// clients, and tenant membership plus cache administration for admins.
package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/vendhub/vendhub/pkg/audit"
	"github.com/vendhub/vendhub/pkg/authz"
	"github.com/vendhub/vendhub/pkg/cache"
	"github.com/vendhub/vendhub/pkg/httputil"
	"github.com/vendhub/vendhub/pkg/middleware"
	"github.com/vendhub/vendhub/pkg/observability"
	"github.com/vendhub/vendhub/pkg/tenants"
)

// Server wires handlers, guards and the session middleware into a router.
type Server struct {
	router     *mux.Router
	authorizer *middleware.SessionAuthorizer
	guards     *middleware.Guards
	resolvers  *authz.Resolvers
	cache      cache.Cache
	members    *tenants.Service
	audit      audit.Logger
	logger     *observability.Logger
	metrics    *observability.Metrics
}

// Options carries the server dependencies.
type Options struct {
	Authorizer *middleware.SessionAuthorizer
	Guards     *middleware.Guards
	Resolvers  *authz.Resolvers
	Cache      cache.Cache
	Members    *tenants.Service
	Audit      audit.Logger
	Logger     *observability.Logger
	Metrics    *observability.Metrics
}

// NewServer builds the router.
func NewServer(opts Options) *Server {
	s := &Server{
		router:     mux.NewRouter(),
		authorizer: opts.Authorizer,
		guards:     opts.Guards,
		resolvers:  opts.Resolvers,
		cache:      opts.Cache,
		members:    opts.Members,
		audit:      opts.Audit,
		logger:     opts.Logger,
		metrics:    opts.Metrics,
	}
	if s.audit == nil {
		s.audit = audit.NopLogger{}
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.Use(middleware.RequestID)
	if s.metrics != nil {
		s.router.Use(observability.HTTPMetricsMiddleware(s.metrics))
	}
	s.router.Use(s.authorizer.Middleware)

	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Authorization introspection.
	api.HandleFunc("/authz/context", s.handleAuthzContext).Methods(http.MethodGet)
	api.Handle("/authz/resource-permissions/{resourceType}",
		s.guards.RequireLogin(http.HandlerFunc(s.handleResourcePermissions))).Methods(http.MethodGet)

	// Cache administration.
	api.Handle("/admin/authz/invalidate",
		s.guards.RequirePermission("manage_permissions")(http.HandlerFunc(s.handleInvalidate))).Methods(http.MethodPost)

	// Tenant membership administration.
	members := api.PathPrefix("/admin/tenants/{tenantID}/members").Subrouter()
	members.Use(s.guards.RequirePermission("manage_users"))
	members.HandleFunc("", s.handleListMembers).Methods(http.MethodGet)
	members.HandleFunc("", s.handleAddMember).Methods(http.MethodPost)
	members.HandleFunc("/{userID}", s.handleGetMember).Methods(http.MethodGet)
	members.HandleFunc("/{userID}/role", s.handleUpdateMemberRole).Methods(http.MethodPut)
	members.HandleFunc("/{userID}/deactivate", s.handleDeactivateMember).Methods(http.MethodPost)
	members.HandleFunc("/{userID}", s.handleRemoveMember).Methods(http.MethodDelete)
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.WriteSuccess(w, map[string]string{"status": "ok"})
}
