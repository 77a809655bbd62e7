// Package app wires config.Config into a running daemon.Daemon and owns
// its signal-driven lifecycle: a SIGINT/SIGTERM triggers Quiesce (stop
// admitting new connections) followed by Stop once ShutdownGrace elapses
// or a second signal arrives, whichever comes first. Run does not track
// whether in-flight connections have already finished.
package app

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/searchktools/corehttpd/conn"
	"github.com/searchktools/corehttpd/config"
	"github.com/searchktools/corehttpd/daemon"
)

// App owns one Daemon built from a Config and a caller-supplied request
// handler.
type App struct {
	cfg *config.Config
	d   *daemon.Daemon

	// ShutdownGrace is how long Run waits, after a shutdown signal, before
	// calling Stop (a second signal cuts the wait short). Zero means wait
	// until that second signal.
	ShutdownGrace time.Duration
}

// New starts a Daemon from cfg against handler and flags, returning an
// App the caller uses to await shutdown.
func New(cfg *config.Config, flags daemon.Flags, handler conn.RequestCallback) (*App, error) {
	opts := []daemon.Option{daemon.WithOptions(cfg.Options)}
	if cfg.GCTuning {
		opts = append(opts, daemon.WithGCTuning())
	}

	d, err := daemon.Start(cfg.Addr, flags, handler, opts...)
	if err != nil {
		return nil, fmt.Errorf("app: start daemon: %w", err)
	}

	return &App{cfg: cfg, d: d, ShutdownGrace: 30 * time.Second}, nil
}

// Daemon returns the underlying Daemon, e.g. for AddConnection in
// no-listen-socket mode.
func (a *App) Daemon() *daemon.Daemon { return a.d }

// Run blocks until SIGINT or SIGTERM, then quiesces the listener (so no
// new connections are admitted) and stops the daemon once ShutdownGrace
// has elapsed or the process is asked again to exit immediately.
func (a *App) Run() {
	log.Printf("corehttpd: listening on %s [%s]", a.cfg.Addr, a.cfg.Env)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Printf("corehttpd: received %v, quiescing", sig)

	ln, err := a.d.Quiesce()
	if err != nil && err != daemon.ErrAlreadyStopped {
		log.Printf("corehttpd: quiesce: %v", err)
	}
	if ln != nil {
		_ = ln.Close()
	}

	ctx, cancel := context.Background(), context.CancelFunc(func() {})
	if a.ShutdownGrace > 0 {
		ctx, cancel = context.WithTimeout(ctx, a.ShutdownGrace)
	}
	defer cancel()

	done := make(chan struct{})
	go func() {
		// A second signal during the grace period forces an immediate stop.
		select {
		case <-quit:
		case <-ctx.Done():
		}
		close(done)
	}()
	<-done

	if err := a.d.Stop(); err != nil && err != daemon.ErrAlreadyStopped {
		log.Printf("corehttpd: stop: %v", err)
	}
	log.Printf("corehttpd: shutdown complete")
}
