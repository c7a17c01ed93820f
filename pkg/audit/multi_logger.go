package audit

import (
	"context"
	"errors"
)

// MultiLogger fans events out to several sinks. Every sink is attempted even
// when an earlier one fails; the joined error is returned for callers that
// care, which authorization paths do not.
type MultiLogger struct {
	loggers []Logger
}

// NewMultiLogger creates a logger that writes to all given sinks.
func NewMultiLogger(loggers ...Logger) *MultiLogger {
	return &MultiLogger{loggers: loggers}
}

func (m *MultiLogger) Log(ctx context.Context, event *Event) error {
	var errs []error
	for _, l := range m.loggers {
		if err := l.Log(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *MultiLogger) LogAuthorization(ctx context.Context, eventType EventType, userID, tenantID *int64, resourceType string, status EventStatus, message string) error {
	return m.Log(ctx, authorizationEvent(ctx, eventType, userID, tenantID, resourceType, status, message))
}

func (m *MultiLogger) LogAdminAction(ctx context.Context, eventType EventType, adminUserID, tenantID *int64, targetUserID *int64, message string) error {
	return m.Log(ctx, adminEvent(ctx, eventType, adminUserID, tenantID, targetUserID, message))
}

func (m *MultiLogger) Close() error {
	var errs []error
	for _, l := range m.loggers {
		if err := l.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
