package middleware

import (
	"net/http"

	"github.com/vendhub/vendhub/pkg/authz"
	"github.com/vendhub/vendhub/pkg/contextkeys"
	"github.com/vendhub/vendhub/pkg/observability"
	"github.com/vendhub/vendhub/pkg/session"
)

// SessionCookieName is the cookie carrying the session ID.
const SessionCookieName = "vendhub_session"

// SessionAuthorizer loads the caller's session and ensures its authorization
// snapshot is populated before the request reaches a handler. Requests
// without a valid session proceed with a guest snapshot; guards downstream
// decide whether that is enough.
type SessionAuthorizer struct {
	sessions session.Store
	loader   *authz.ContextLoader
	logger   *observability.Logger
}

// NewSessionAuthorizer creates the session loading middleware.
func NewSessionAuthorizer(sessions session.Store, loader *authz.ContextLoader, logger *observability.Logger) *SessionAuthorizer {
	return &SessionAuthorizer{sessions: sessions, loader: loader, logger: logger}
}

// Middleware resolves the session cookie, populates the authorization
// snapshot, and injects both into the request context. The session is saved
// back best-effort so the resolved snapshot survives across requests.
func (sa *SessionAuthorizer) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var sess *session.Session
		if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
			sess, err = sa.sessions.Get(ctx, cookie.Value)
			if err != nil {
				sa.logger.WithError(err).Warn("session lookup failed")
				sess = nil
			}
		}

		if sess == nil {
			authzCtx := sa.loader.EnsureContext(ctx, nil)
			ctx = contextkeys.WithAuthz(ctx, authzCtx)
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		authzCtx := sa.loader.EnsureContext(ctx, sess)

		if err := sa.sessions.Save(ctx, sess); err != nil {
			sa.logger.WithError(err).Warn("session save failed")
		}

		ctx = contextkeys.WithAuthz(ctx, authzCtx)
		ctx = contextkeys.WithSession(ctx, sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// AuthzContext returns the authorization snapshot injected by
// SessionAuthorizer, or a guest snapshot when none is present.
func AuthzContext(r *http.Request) *authz.Context {
	if authzCtx, ok := r.Context().Value(contextkeys.AuthzKey).(*authz.Context); ok && authzCtx != nil {
		return authzCtx
	}
	return &authz.Context{}
}

// SessionFromRequest returns the session injected by SessionAuthorizer, or
// nil for guest requests.
func SessionFromRequest(r *http.Request) *session.Session {
	if sess, ok := r.Context().Value(contextkeys.SessionKey).(*session.Session); ok {
		return sess
	}
	return nil
}
