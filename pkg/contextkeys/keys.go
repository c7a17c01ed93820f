// Package contextkeys provides centralized context key definitions
//
// IMPORTANT: All context keys used across the application must be defined here.
// This prevents typos, documents dependencies, and makes key usage discoverable.
//
// USAGE PATTERN:
//   import "github.com/vendhub/vendhub/pkg/contextkeys"
//   ctx = context.WithValue(ctx, contextkeys.AuthzKey, authzCtx)
//   authzCtx := ctx.Value(contextkeys.AuthzKey).(*authz.Context)
package contextkeys

import "context"

// Key is the type for context keys to prevent collisions
type Key string

const (
	// AuthzKey contains *authz.Context
	// Set by: middleware.SessionAuthorizer (pkg/middleware/session.go)
	// Required by: All protected API endpoints, permission middleware
	// Type: *authz.Context
	AuthzKey Key = "authz_context"

	// SessionKey contains *session.Session
	// Set by: middleware.SessionAuthorizer (pkg/middleware/session.go)
	// Required by: Handlers that mutate the session (tenant switch, logout)
	// Type: *session.Session
	SessionKey Key = "session"

	// RequestIDKey contains request ID string (UUID)
	// Set by: middleware.RequestID (pkg/middleware/requestid.go)
	// Used by: Logger, audit trail
	// Type: string
	RequestIDKey Key = "request_id"

	// LoggerKey contains *observability.Logger
	// Set by: Observability middleware
	// Used by: Handlers that need structured logging with request context
	// Type: *observability.Logger
	LoggerKey Key = "logger"

	// AuditLoggerKey contains audit.Logger interface
	// Set by: Server setup
	// Used by: Handlers that record audit events
	// Type: audit.Logger
	AuditLoggerKey Key = "audit_logger"
)

// Helper functions for type-safe context operations

// WithAuthz adds the authorization snapshot to the context
func WithAuthz(ctx context.Context, authzCtx interface{}) context.Context {
	return context.WithValue(ctx, AuthzKey, authzCtx)
}

// WithSession adds the session to the context
func WithSession(ctx context.Context, sess interface{}) context.Context {
	return context.WithValue(ctx, SessionKey, sess)
}

// WithRequestID adds request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithLogger adds logger to the context
func WithLogger(ctx context.Context, logger interface{}) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// WithAuditLogger adds audit logger to the context
func WithAuditLogger(ctx context.Context, logger interface{}) context.Context {
	return context.WithValue(ctx, AuditLoggerKey, logger)
}

// GetRequestID retrieves request ID from context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}
