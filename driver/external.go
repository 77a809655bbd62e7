package driver

import (
	"errors"
	"sync"
	"time"

	"github.com/searchktools/corehttpd/conn"
)

// ErrExternalDriverHasNoRunLoop is returned by ExternalDriver.Run: an
// external-driven daemon has no owned thread — the application calls
// FDSet/Timeout/RunFromSelect itself.
var ErrExternalDriverHasNoRunLoop = errors.New("driver: external mode has no internal run loop; use FDSet/Timeout/RunFromSelect")

// ExternalDriver implements a cooperative, application-driven event loop:
// the application gathers interest via FDSet, computes its own
// select/poll/epoll timeout via Timeout, and dispatches ready connections
// via RunFromSelect.
type ExternalDriver struct {
	mu      sync.Mutex
	conns   map[*conn.Connection]struct{}
	poolSz  uint32
	stopped bool
}

// NewExternalDriver creates an ExternalDriver. poolSize sizes each
// connection's MemoryPool (the ConnectionMemoryLimit option).
func NewExternalDriver(poolSize uint32) *ExternalDriver {
	return &ExternalDriver{conns: make(map[*conn.Connection]struct{}), poolSz: poolSize}
}

func (d *ExternalDriver) AddConnection(c *conn.Connection) {
	if fd, err := rawFD(c.Sock); err == nil {
		c.FD = fd
	}
	d.mu.Lock()
	d.conns[c] = struct{}{}
	d.mu.Unlock()
}

func (d *ExternalDriver) Suspend(c *conn.Connection) {
	c.Suspend()
}

func (d *ExternalDriver) Resume(c *conn.Connection) {
	c.Resume()
}

func (d *ExternalDriver) Run() error { return ErrExternalDriverHasNoRunLoop }

func (d *ExternalDriver) Stop() {
	d.mu.Lock()
	d.stopped = true
	conns := make([]*conn.Connection, 0, len(d.conns))
	for c := range d.conns {
		conns = append(conns, c)
	}
	d.conns = make(map[*conn.Connection]struct{})
	d.mu.Unlock()
	for _, c := range conns {
		c.Sock.Close()
	}
}

// FDSet gathers the FDs the application's own select/poll/epoll call
// should watch, per connection interest: Read -> readSet; Write ->
// writeSet (plus readSet too, enabling pipelined follow-on reads); Block
// -> readSet only; Cleanup -> skipped. A suspended connection contributes
// no fd at all, so the application's own select never wakes for it.
func (d *ExternalDriver) FDSet() (readSet, writeSet, exceptSet *FDSet, maxFD int, err error) {
	readSet, writeSet, exceptSet = NewFDSet(), NewFDSet(), NewFDSet()
	maxFD = -1

	d.mu.Lock()
	defer d.mu.Unlock()
	for c := range d.conns {
		c.SettlePendingSuspendResume()
		if c.FD < 0 || c.Suspended() {
			continue
		}
		switch c.DescribeInterest() {
		case conn.InterestRead:
			readSet.Set(c.FD)
		case conn.InterestWrite:
			writeSet.Set(c.FD)
			readSet.Set(c.FD)
		case conn.InterestBlock:
			readSet.Set(c.FD)
		case conn.InterestCleanup:
			continue
		}
		if c.FD > maxFD {
			maxFD = c.FD
		}
	}
	return readSet, writeSet, exceptSet, maxFD, nil
}

// Timeout returns the deadline of the earliest-expiring connection, or
// has=false if no connection carries a timeout. A suspended connection's
// timeout clock is halted and does not contribute a deadline.
func (d *ExternalDriver) Timeout() (dur time.Duration, has bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var earliest time.Time
	for c := range d.conns {
		if c.Timeout <= 0 || c.Suspended() {
			continue
		}
		deadline := c.LastActivity.Add(c.Timeout)
		if earliest.IsZero() || deadline.Before(earliest) {
			earliest = deadline
			has = true
		}
	}
	if !has {
		return 0, false
	}
	dur = time.Until(earliest)
	if dur < 0 {
		dur = 0
	}
	return dur, true
}

// RunFromSelect walks every connection and dispatches on_readable iff
// read-ready, on_writable iff write-ready, then unconditionally on_idle,
// exactly as the internal drivers do per cycle. A suspended connection is
// skipped entirely — no read, no write, no idle step, no timeout check —
// since FDSet never asked the application to watch its fd in the first
// place.
func (d *ExternalDriver) RunFromSelect(readSet, writeSet, exceptSet *FDSet) error {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return nil
	}
	conns := make([]*conn.Connection, 0, len(d.conns))
	for c := range d.conns {
		conns = append(conns, c)
	}
	d.mu.Unlock()

	for _, c := range conns {
		c.SettlePendingSuspendResume()
		if c.Suspended() {
			continue
		}
		if c.FD >= 0 && readSet.IsSet(c.FD) {
			if err := c.OnReadable(d.poolSz); err != nil {
				continue
			}
		}
		if c.FD >= 0 && writeSet.IsSet(c.FD) {
			_ = c.OnWritable()
		}
		reapTimeout(c)
		c.OnIdle()
	}
	d.reap()
	return nil
}

func reapTimeout(c *conn.Connection) {
	if c.Timeout <= 0 {
		return
	}
	if time.Since(c.LastActivity) >= c.Timeout {
		c.FailTimeout()
	}
}

func (d *ExternalDriver) reap() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for c := range d.conns {
		if c.DescribeInterest() == conn.InterestCleanup {
			delete(d.conns, c)
		}
	}
}
