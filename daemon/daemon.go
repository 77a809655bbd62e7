// Package daemon implements the server object: listening socket, per-IP
// admission control, and the chosen event-loop driver. Built around a
// listener accept loop and a map of live connections, generalized into a
// choice of driver.Driver implementations instead of one hard-coded
// event loop.
//
// ThreadPoolSize bounds concurrency in exactly one place: under
// UseThreadPerConnection, Start dispatches each accepted connection's
// serve goroutine onto a fixed core/pools.WorkerPool of that size instead
// of spawning one goroutine per connection unconditionally. It has no
// effect under UseSelectInternally/UsePoll/UseEpoll — that path is always
// a single InternalPollDriver loop driving every registered connection
// from one goroutine, not a set of per-worker daemons each owning a
// disjoint fd partition.
package daemon

import (
	"errors"
	"fmt"
	"log"
	"net"
	"sync"
	"sync/atomic"
	"time"

	corehttpd "github.com/searchktools/corehttpd"
	"github.com/searchktools/corehttpd/conn"
	"github.com/searchktools/corehttpd/core/pools"
	"github.com/searchktools/corehttpd/driver"
	"github.com/searchktools/corehttpd/iplimiter"
	"github.com/searchktools/corehttpd/response"
)

// ErrAlreadyStopped is returned by Stop/Quiesce on a Daemon that has
// already been stopped.
var ErrAlreadyStopped = errors.New("daemon: already stopped")

// ErrListenSocketRequired is returned by Start when no listener and no
// pre-bound ListenSocket option was supplied, and UseNoListenSocket was
// not set.
var ErrListenSocketRequired = errors.New("daemon: no listen address or socket given")

// Daemon is the server object. Construct with Start.
type Daemon struct {
	opts  Options
	flags Flags

	listener net.Listener
	drv      driver.Driver
	limiter  *iplimiter.Limiter

	quiesced atomic.Bool
	stopped  atomic.Bool

	acceptWG sync.WaitGroup

	connCount atomic.Int64
}

// Start binds addr (":8080"-style, or "" with UseNoListenSocket to run in
// accept-from-application-only mode) and begins accepting connections
// according to flags. It returns once the listener is bound and the
// chosen driver's loop (if any) has been launched in the background.
func Start(addr string, flags Flags, handler conn.RequestCallback, opts ...Option) (*Daemon, error) {
	o := DefaultOptions()
	for _, apply := range opts {
		apply(&o)
	}

	if o.GCTuning != nil {
		pools.ApplyGCConfig(*o.GCTuning)
	}

	d := &Daemon{opts: o, flags: flags, limiter: iplimiter.New(o.PerIPConnectionLimit)}

	switch {
	case flags&FlagUseThreadPerConnection != 0 && o.ThreadPoolSize > 0:
		d.drv = driver.NewThreadPerConnDriverPooled(o.ConnectionMemoryLimit, o.ThreadPoolSize)
	case flags&FlagUseThreadPerConnection != 0:
		d.drv = driver.NewThreadPerConnDriver(o.ConnectionMemoryLimit)
	case flags&(FlagUseSelectInternally|FlagUsePoll|FlagUseEpoll) != 0:
		d.drv = driver.NewInternalPollDriver(o.ConnectionMemoryLimit)
	default:
		d.drv = driver.NewExternalDriver(o.ConnectionMemoryLimit)
	}

	if flags&FlagUseNoListenSocket == 0 {
		if addr == "" {
			return nil, ErrListenSocketRequired
		}
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			return nil, fmt.Errorf("daemon: listen %s: %w", addr, err)
		}
		d.listener = ln
		d.acceptWG.Add(1)
		go d.acceptLoop(ln, handler)
	}

	if _, isExternal := d.drv.(*driver.ExternalDriver); !isExternal {
		go func() {
			if err := d.drv.Run(); err != nil {
				log.Printf("corehttpd: driver run loop exited: %v", err)
			}
		}()
	}

	return d, nil
}

func (d *Daemon) acceptLoop(ln net.Listener, handler conn.RequestCallback) {
	defer d.acceptWG.Done()
	for {
		sock, err := ln.Accept()
		if err != nil {
			if d.stopped.Load() {
				return
			}
			log.Printf("corehttpd: accept: %v", err)
			continue
		}
		d.admit(sock, handler)
	}
}

func (d *Daemon) admit(sock net.Conn, handler conn.RequestCallback) {
	remote := sock.RemoteAddr()

	if d.opts.AcceptPolicy != nil && !d.opts.AcceptPolicy(remote.String()) {
		sock.Close()
		return
	}
	if err := d.limiter.Admit(remote); err != nil {
		sock.Close()
		return
	}
	if d.opts.ConnectionLimit > 0 && d.connCount.Load() >= int64(d.opts.ConnectionLimit) {
		d.limiter.Release(remote)
		sock.Close()
		return
	}
	d.connCount.Add(1)

	notify := func(c *conn.Connection, reason conn.CloseReason) {
		d.limiter.Release(remote)
		d.connCount.Add(-1)
		kind := kindFor(reason)
		if d.opts.NotifyCompleted != nil {
			d.opts.NotifyCompleted(remote.String(), int(kind))
		}
		if d.opts.Observer != nil {
			isError := reason != conn.CloseNormal
			d.opts.Observer.RecordConnection(kind.String(), time.Since(c.CreatedAt), isError)
		}
	}

	c := conn.New(sock, handler, notify, d.opts.ConnectionTimeout)
	d.drv.AddConnection(c)
}

// AddConnection enqueues a pre-accepted socket, e.g. one handed off by a
// proxy. handler is the same callback used for normally accepted
// connections.
func (d *Daemon) AddConnection(sock net.Conn, handler conn.RequestCallback) error {
	if d.stopped.Load() {
		return ErrAlreadyStopped
	}
	d.admit(sock, handler)
	return nil
}

// FDSet, Timeout, and RunFromSelect delegate to the external driver; they
// return an error if the Daemon was not started with the external driver
// selected (i.e. none of UseSelectInternally/UseThreadPerConnection/
// UsePoll/UseEpoll was set).
func (d *Daemon) FDSet() (readSet, writeSet, exceptSet *driver.FDSet, maxFD int, err error) {
	ext, ok := d.drv.(*driver.ExternalDriver)
	if !ok {
		return nil, nil, nil, -1, errors.New("daemon: not running the external driver")
	}
	return ext.FDSet()
}

func (d *Daemon) Timeout() (time.Duration, bool) {
	ext, ok := d.drv.(*driver.ExternalDriver)
	if !ok {
		return 0, false
	}
	return ext.Timeout()
}

func (d *Daemon) RunFromSelect(readSet, writeSet, exceptSet *driver.FDSet) error {
	ext, ok := d.drv.(*driver.ExternalDriver)
	if !ok {
		return errors.New("daemon: not running the external driver")
	}
	return ext.RunFromSelect(readSet, writeSet, exceptSet)
}

// Run blocks, driving the internal-threaded or thread-per-connection
// driver until Stop is called. Not valid for the external driver.
func (d *Daemon) Run() error {
	return d.drv.Run()
}

// QueueResponse attaches r to c's in-flight request, freezing r. Legal
// only once per request cycle, after headers and body are received.
// c.SetStatus before or after this call both work; the status actually
// serialized is whatever was set by the time HeadersSending begins.
func (d *Daemon) QueueResponse(c *conn.Connection, status int, r *response.Response) error {
	response.Freeze(r)
	c.SetStatus(status)
	return nil
}

// Stop closes the listener (if any), stops accepting, and signals the
// driver to shut down. ThreadPerConnDriver and ExternalDriver then close
// the sockets of connections still open; InternalPollDriver leaves them
// open. Connections closed this way receive no NotifyCompleted call.
func (d *Daemon) Stop() error {
	if !d.stopped.CompareAndSwap(false, true) {
		return ErrAlreadyStopped
	}
	if d.listener != nil {
		d.listener.Close()
	}
	d.drv.Stop()
	d.acceptWG.Wait()
	return nil
}

// Addr returns the listener's bound address, or nil if the daemon was
// started with UseNoListenSocket.
func (d *Daemon) Addr() net.Addr {
	if d.listener == nil {
		return nil
	}
	return d.listener.Addr()
}

// Quiesce stops accepting new connections and detaches the listen socket
// for the caller to close or hand off, without closing existing
// connections.
func (d *Daemon) Quiesce() (net.Listener, error) {
	if !d.quiesced.CompareAndSwap(false, true) {
		return nil, ErrAlreadyStopped
	}
	ln := d.listener
	d.listener = nil
	return ln, nil
}

func kindFor(r conn.CloseReason) corehttpd.Kind {
	switch r {
	case conn.CloseNormal:
		return corehttpd.CompletedOK
	case conn.CloseTimeout:
		return corehttpd.TimeoutReached
	case conn.CloseParseError:
		return corehttpd.ParseError
	case conn.CloseApplicationError:
		return corehttpd.ApplicationError
	case conn.CloseDaemonShutdown:
		return corehttpd.DaemonShutdown
	case conn.ClosePeerDisconnect:
		return corehttpd.PeerDisconnect
	default:
		return corehttpd.WithError
	}
}
