package driver

import (
	"sync"
	"time"

	"github.com/searchktools/corehttpd/conn"
)

// InternalPollDriver runs its own owned goroutine looping until Stop,
// dispatching on_readable / on_writable / on_idle for every registered
// connection each cycle. It uses the platform ReadinessBackend when
// available (epoll/kqueue) and falls back to a fixed-interval scan of all
// connections' sockets otherwise — still correct, just without
// OS readiness wakeups.
type InternalPollDriver struct {
	mu      sync.Mutex
	conns   map[int]*conn.Connection // keyed by fd; fd == -1 connections live in noFD
	noFD    map[*conn.Connection]struct{}
	poolSz  uint32
	backend ReadinessBackend
	stopCh  chan struct{}
	stopped bool
}

// NewInternalPollDriver creates an internal-threaded driver. poolSize
// sizes each connection's MemoryPool.
func NewInternalPollDriver(poolSize uint32) *InternalPollDriver {
	backend, _ := NewReadinessBackend() // nil if unsupported; Run falls back to scanning
	return &InternalPollDriver{
		conns:   make(map[int]*conn.Connection),
		noFD:    make(map[*conn.Connection]struct{}),
		poolSz:  poolSize,
		backend: backend,
		stopCh:  make(chan struct{}),
	}
}

func (d *InternalPollDriver) AddConnection(c *conn.Connection) {
	fd, err := rawFD(c.Sock)
	d.mu.Lock()
	defer d.mu.Unlock()
	if err != nil {
		d.noFD[c] = struct{}{}
		return
	}
	c.FD = fd
	d.conns[fd] = c
	if d.backend != nil {
		_ = d.backend.Add(fd, InterestRead|InterestWrite)
	}
}

func (d *InternalPollDriver) Suspend(c *conn.Connection) { c.Suspend() }
func (d *InternalPollDriver) Resume(c *conn.Connection)  { c.Resume() }

func (d *InternalPollDriver) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	close(d.stopCh)
	d.mu.Unlock()
}

// Run blocks, driving every registered connection until Stop is called.
func (d *InternalPollDriver) Run() error {
	if d.backend != nil {
		return d.runWithBackend()
	}
	return d.runScanning()
}

func (d *InternalPollDriver) allConns() []*conn.Connection {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*conn.Connection, 0, len(d.conns)+len(d.noFD))
	for _, c := range d.conns {
		out = append(out, c)
	}
	for c := range d.noFD {
		out = append(out, c)
	}
	return out
}

func (d *InternalPollDriver) cycle(c *conn.Connection, readable, writable bool) {
	wasSuspended := c.Suspended()
	c.SettlePendingSuspendResume()
	nowSuspended := c.Suspended()
	if nowSuspended != wasSuspended && c.FD >= 0 && d.backend != nil {
		// A suspended fd is pulled out of the backend's registration
		// entirely, so no more readiness events arrive for it until it's
		// resumed and re-added below.
		if nowSuspended {
			_ = d.backend.Remove(c.FD)
		} else {
			_ = d.backend.Add(c.FD, InterestRead|InterestWrite)
		}
	}
	if nowSuspended {
		return
	}

	if readable {
		_ = c.Sock.SetReadDeadline(time.Now().Add(time.Millisecond))
		_ = c.OnReadable(d.poolSz)
	}
	if writable {
		_ = c.Sock.SetWriteDeadline(time.Now().Add(time.Millisecond))
		_ = c.OnWritable()
	}
	if c.Timeout > 0 && time.Since(c.LastActivity) >= c.Timeout {
		c.FailTimeout()
	}
	c.OnIdle()
	d.reapIfClosed(c)
}

func (d *InternalPollDriver) reapIfClosed(c *conn.Connection) {
	if c.DescribeInterest() != conn.InterestCleanup {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if c.FD >= 0 {
		if d.backend != nil {
			_ = d.backend.Remove(c.FD)
		}
		delete(d.conns, c.FD)
	}
	delete(d.noFD, c)
}

func (d *InternalPollDriver) runWithBackend() error {
	for {
		select {
		case <-d.stopCh:
			return nil
		default:
		}
		events, err := d.backend.Wait(250)
		if err != nil {
			return err
		}
		d.mu.Lock()
		ready := make(map[int]Event, len(events))
		for _, ev := range events {
			ready[ev.FD] = ev
		}
		d.mu.Unlock()

		for _, c := range d.allConns() {
			if c.FD < 0 {
				d.cycle(c, true, true) // no-fd connections (e.g. net.Pipe in tests) always offered a turn
				continue
			}
			ev, ok := ready[c.FD]
			d.cycle(c, ok && ev.Readable, ok && ev.Writable)
		}
	}
}

// runScanning is the fallback loop for platforms without epoll/kqueue: it
// offers every connection a turn every tick, relying on the underlying
// net.Conn's own non-blocking read/write rather than OS-level readiness
// notification.
func (d *InternalPollDriver) runScanning() error {
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-d.stopCh:
			return nil
		case <-ticker.C:
		}
		for _, c := range d.allConns() {
			c.SettlePendingSuspendResume()
			if c.Suspended() {
				continue
			}
			_ = c.Sock.SetReadDeadline(time.Now().Add(time.Millisecond))
			_ = c.OnReadable(d.poolSz)
			_ = c.Sock.SetWriteDeadline(time.Now().Add(time.Millisecond))
			_ = c.OnWritable()
			if c.Timeout > 0 && time.Since(c.LastActivity) >= c.Timeout {
				c.FailTimeout()
			}
			c.OnIdle()
			d.reapIfClosed(c)
		}
	}
}
