package config

import (
	"flag"
	"fmt"

	"github.com/searchktools/corehttpd/daemon"
)

// Config holds everything app.Run needs to start a Daemon: the listen
// address and environment name, plus a daemon.Options populated from flag
// defaults overridable by environment variables, shaped around the real
// server's option surface.
type Config struct {
	Addr string `config:"addr"`
	Env  string `config:"env"`

	GCTuning bool `config:"gc_tuning"`

	Options daemon.Options
}

// New loads configuration from flags, then overlays any FASTSERVER_-
// prefixed environment variables over the flag defaults (e.g.
// FASTSERVER_CONNECTION_LIMIT=4096 overrides -connection-limit).
func New() *Config {
	opts := daemon.DefaultOptions()

	var port int
	cfg := &Config{}

	flag.IntVar(&port, "port", 8080, "HTTP server port")
	flag.StringVar(&cfg.Env, "env", "development", "environment (development/production)")
	flag.IntVar(&opts.ConnectionLimit, "connection-limit", opts.ConnectionLimit, "max concurrent connections (0 = unlimited)")
	flag.IntVar(&opts.PerIPConnectionLimit, "per-ip-connection-limit", opts.PerIPConnectionLimit, "max concurrent connections per remote IP (0 = unlimited)")
	flag.DurationVar(&opts.ConnectionTimeout, "connection-timeout", opts.ConnectionTimeout, "idle connection timeout (0 = none)")
	flag.IntVar(&opts.ThreadPoolSize, "thread-pool-size", opts.ThreadPoolSize, "worker goroutines under thread-per-connection (0 = one goroutine per connection)")
	flag.BoolVar(&cfg.GCTuning, "gc-tuning", false, "apply core/pools' high-throughput GC defaults")
	flag.Parse()

	cfg.Addr = fmt.Sprintf(":%d", port)
	cfg.Options = opts

	m := NewManager()
	m.LoadFromEnv("FASTSERVER")
	_ = m.Unmarshal("", cfg)
	_ = m.Unmarshal("", &cfg.Options)

	return cfg
}
