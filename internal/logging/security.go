package logging

import (
	"context"
	"log/slog"
)

// SecurityLogger records authentication and authorization failures. The
// caller only ever sees a generic denial; the specific reason goes here.
type SecurityLogger struct {
	log   *slog.Logger
	count func(event string)
}

// NewSecurityLogger returns a SecurityLogger writing to log. count, when
// non-nil, is called with the event name for every record.
func NewSecurityLogger(log *slog.Logger, count func(event string)) *SecurityLogger {
	if log == nil {
		log = slog.Default()
	}
	return &SecurityLogger{log: log.With(slog.Bool("security", true)), count: count}
}

// Event logs event at WARN with attrs as key/value pairs.
func (s *SecurityLogger) Event(ctx context.Context, event string, attrs ...any) {
	if s == nil {
		return
	}
	if s.count != nil {
		s.count(event)
	}
	s.log.WarnContext(ctx, event, attrs...)
}
