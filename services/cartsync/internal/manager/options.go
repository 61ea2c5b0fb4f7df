package manager

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/utafrali/storefront/services/cartsync/internal/domain"
)

// Notifier is told about every authoritative refresh.
type Notifier interface {
	CartSynced(ctx context.Context, sessionID string, state domain.State) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, sessionID string, state domain.State) error

// CartSynced calls f.
func (f NotifierFunc) CartSynced(ctx context.Context, sessionID string, state domain.State) error {
	return f(ctx, sessionID, state)
}

type options struct {
	logger    *slog.Logger
	notifier  Notifier
	now       func() time.Time
	sessionID string
}

// Option configures a Manager or Registry.
type Option func(*options)

// WithLogger sets the logger. The default discards output.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithNotifier installs a sync notifier. Notifier errors are logged only.
func WithNotifier(n Notifier) Option {
	return func(o *options) { o.notifier = n }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithSessionID labels the manager's logs with a session id.
func WithSessionID(id string) Option {
	return func(o *options) { o.sessionID = id }
}

func buildOptions(opts []Option) options {
	o := options{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
