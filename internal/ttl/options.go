package ttl

import (
	"time"

	"github.com/lazypower/recall/internal/observe"
)

type options struct {
	backend     Backend
	retention   Retention
	autoCleanup bool
	now         func() time.Time
	obs         *observe.Observer
}

func defaultOptions() options {
	return options{
		autoCleanup: true,
		now:         time.Now,
	}
}

// Option configures a MemoryStore or PageStore.
type Option func(*options)

// WithBackend persists the store through b. Without a backend the store is
// in-memory only.
func WithBackend(b Backend) Option {
	return func(o *options) { o.backend = b }
}

// WithRetention sets the retention window. The zero Retention disables TTL.
func WithRetention(r Retention) Option {
	return func(o *options) { o.retention = r }
}

// WithAutoCleanup controls whether Load purges expired entries first.
// Default: true.
func WithAutoCleanup(enabled bool) Option {
	return func(o *options) { o.autoCleanup = enabled }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithObserver sets the diagnostic channel.
func WithObserver(obs *observe.Observer) Option {
	return func(o *options) { o.obs = obs }
}
