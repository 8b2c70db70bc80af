package service

import (
	"log/slog"
	"time"
)

type options struct {
	now      func() time.Time
	log      *slog.Logger
	security SecurityLog
	notifier Notifier
	sender   Sender
}

// Option customises a service at construction time.
type Option func(*options)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithLogger sets the operational logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithSecurityLog sets the sink for denial reasons.
func WithSecurityLog(s SecurityLog) Option {
	return func(o *options) { o.security = s }
}

// WithNotifier sets where post-commit notifications are published.
func WithNotifier(n Notifier) Option {
	return func(o *options) { o.notifier = n }
}

// WithSender sets the direct mail path used for messages carrying
// passwords.
func WithSender(s Sender) Option {
	return func(o *options) { o.sender = s }
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now, log: slog.Default(), security: nopSecurityLog{}, notifier: nopNotifier{}, sender: nopSender{}}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}
