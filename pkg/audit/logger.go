// Package audit provides the append-only audit sink for authorization
// denials and privileged administrative actions. Sink failures never block
// an authorization decision: callers fire events and ignore write errors.
package audit

import (
	"context"
	"net/http"
	"time"

	"github.com/vendhub/vendhub/pkg/observability"
)

// Logger is the interface for audit logging
type Logger interface {
	// Log records an audit event
	Log(ctx context.Context, event *Event) error

	// LogAuthorization records an authorization verdict for a resource
	LogAuthorization(ctx context.Context, eventType EventType, userID, tenantID *int64, resourceType string, status EventStatus, message string) error

	// LogAdminAction records a privileged administrative action
	LogAdminAction(ctx context.Context, eventType EventType, adminUserID, tenantID *int64, targetUserID *int64, message string) error

	// Close flushes and closes the sink
	Close() error
}

// contextKey is the type for context keys
type contextKey string

const loggerKey contextKey = "audit_logger"

// WithLogger adds an audit logger to the context
func WithLogger(ctx context.Context, logger Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext retrieves the audit logger from context, falling back to a
// no-op logger when none is set.
func FromContext(ctx context.Context) Logger {
	if logger, ok := ctx.Value(loggerKey).(Logger); ok {
		return logger
	}
	return NopLogger{}
}

// NopLogger discards every event. Selected when auditing is disabled.
type NopLogger struct{}

func (NopLogger) Log(ctx context.Context, event *Event) error {
	return nil
}

func (NopLogger) LogAuthorization(ctx context.Context, eventType EventType, userID, tenantID *int64, resourceType string, status EventStatus, message string) error {
	return nil
}

func (NopLogger) LogAdminAction(ctx context.Context, eventType EventType, adminUserID, tenantID *int64, targetUserID *int64, message string) error {
	return nil
}

func (NopLogger) Close() error {
	return nil
}

// NewEvent creates an event with the common fields populated, pulling request
// context (IP, user agent, request id) from the HTTP request when present.
func NewEvent(ctx context.Context, r *http.Request, eventType EventType, status EventStatus) *Event {
	event := &Event{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Status:    status,
		Metadata:  make(map[string]interface{}),
	}

	if requestID := observability.GetRequestID(ctx); requestID != "" {
		event.RequestID = requestID
	}

	if r != nil {
		event.IPAddress = clientIP(r)
		event.UserAgent = r.UserAgent()
		event.Method = r.Method
		event.Path = r.URL.Path
	}

	return event
}

// clientIP extracts the client IP from the request
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}

func authorizationEvent(ctx context.Context, eventType EventType, userID, tenantID *int64, resourceType string, status EventStatus, message string) *Event {
	event := NewEvent(ctx, nil, eventType, status)
	event.UserID = userID
	event.TenantID = tenantID
	event.ResourceType = resourceType
	event.Message = message
	return event
}

func adminEvent(ctx context.Context, eventType EventType, adminUserID, tenantID, targetUserID *int64, message string) *Event {
	event := NewEvent(ctx, nil, eventType, EventStatusSuccess)
	event.UserID = adminUserID
	event.TenantID = tenantID
	event.Message = message
	if targetUserID != nil {
		event.Metadata["target_user_id"] = *targetUserID
	}
	return event
}
