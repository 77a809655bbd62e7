package daemon

import (
	"time"

	"github.com/searchktools/corehttpd/core/observability"
	"github.com/searchktools/corehttpd/core/pools"
)

// Flags is a bit-set of daemon startup options, restricted to the ones
// this implementation actually acts on; HTTPS/TLS-shaped flags are
// accepted and stored but not interpreted (TLS termination is out of
// scope).
type Flags uint32

const (
	FlagUseIPv6 Flags = 1 << iota
	FlagUseDualStack
	FlagUseSSL
	FlagUseSelectInternally
	FlagUseThreadPerConnection
	FlagUsePoll
	FlagUseEpoll
	FlagUseSuspendResume
	FlagUsePipeForShutdown
	FlagUseEpollTurbo
	FlagUseDebug
	FlagUseNoListenSocket
)

// Options holds every daemon startup option as Manager-backed Go fields
// rather than a variadic option-list.
type Options struct {
	ConnectionMemoryLimit     uint32        `config:"connection_memory_limit"`
	ConnectionMemoryIncrement uint32        `config:"connection_memory_increment"`
	ConnectionLimit           int           `config:"connection_limit"`
	ConnectionTimeout         time.Duration `config:"connection_timeout"`
	PerIPConnectionLimit      int           `config:"per_ip_connection_limit"`
	ThreadPoolSize            int           `config:"thread_pool_size"`
	ThreadStackSize           int           `config:"thread_stack_size"`
	ListenSocket              int           `config:"listen_socket"`

	// NotifyCompleted is called once per connection as it enters Closed,
	// with the reason (a corehttpd.Kind value, passed as an int).
	NotifyCompleted func(remoteAddr string, reason int)

	// AcceptPolicy vets a newly accepted address before a Connection is
	// allocated for it; returning false closes the socket immediately.
	AcceptPolicy func(remoteAddr string) bool

	// GCTuning, when non-nil, is applied process-wide via
	// runtime/debug.SetGCPercent/SetMemoryLimit on Start (core/pools'
	// ApplyGCConfig). Left nil by default: tuning GOGC process-wide from
	// inside a library is a choice an embedding application should opt
	// into explicitly, never a default.
	GCTuning *pools.GCConfig

	// Observer, when non-nil, receives one RecordConnection call per
	// connection as it closes, labeled with its Kind name. Left nil by
	// default — metrics collection is an opt-in ambient concern, same as
	// GCTuning.
	Observer *observability.Observatory
}

// DefaultOptions returns the options a Daemon uses when the caller
// supplies none: flag-parseable primitive fields with sane zero-ish
// values.
func DefaultOptions() Options {
	return Options{
		ConnectionMemoryLimit:     32 * 1024,
		ConnectionMemoryIncrement: 4096,
		ConnectionLimit:           0, // unlimited
		ConnectionTimeout:         0, // none
		PerIPConnectionLimit:      0, // unlimited
		ThreadPoolSize:            0, // no worker cap: one goroutine per connection under UseThreadPerConnection
		ThreadStackSize:           0, // not meaningful for goroutines; kept for option-surface parity
		ListenSocket:              -1,
	}
}

// Option mutates Options during Start.
type Option func(*Options)

func WithConnectionMemoryLimit(n uint32) Option     { return func(o *Options) { o.ConnectionMemoryLimit = n } }
func WithConnectionLimit(n int) Option               { return func(o *Options) { o.ConnectionLimit = n } }
func WithConnectionTimeout(d time.Duration) Option    { return func(o *Options) { o.ConnectionTimeout = d } }
func WithPerIPConnectionLimit(n int) Option           { return func(o *Options) { o.PerIPConnectionLimit = n } }
func WithThreadPoolSize(n int) Option                 { return func(o *Options) { o.ThreadPoolSize = n } }
func WithNotifyCompleted(fn func(string, int)) Option { return func(o *Options) { o.NotifyCompleted = fn } }
func WithAcceptPolicy(fn func(string) bool) Option    { return func(o *Options) { o.AcceptPolicy = fn } }

// WithGCTuning opts into core/pools' high-throughput GC defaults
// (GOGC=200, a 50MB retained baseline).
func WithGCTuning() Option {
	return func(o *Options) {
		cfg := pools.DefaultGCConfig()
		o.GCTuning = &cfg
	}
}

// WithObservability attaches an Observatory that records one metric per
// completed connection.
func WithObservability(o2 *observability.Observatory) Option {
	return func(o *Options) { o.Observer = o2 }
}

// WithOptions replaces the Options struct wholesale, e.g. with one
// built by config.New() from flags and environment variables. Applied
// before any Option that follows it in Start's variadic list, so
// callers can still layer WithObservability/WithGCTuning on top.
func WithOptions(o2 Options) Option {
	return func(o *Options) { *o = o2 }
}
