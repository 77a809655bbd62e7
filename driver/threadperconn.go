package driver

import (
	"sync"
	"time"

	"github.com/searchktools/corehttpd/conn"
	"github.com/searchktools/corehttpd/core/pools"
)

// ThreadPerConnDriver is a thread-per-connection driver: one goroutine per
// accepted connection drives on_readable/on_writable/on_idle for that
// connection alone until it closes. A goroutine is the idiomatic Go
// analogue of a dedicated OS thread per connection; a private select/poll
// over exactly one socket becomes a tight deadline-bounded read/write
// loop, since Go's runtime already multiplexes goroutine scheduling
// underneath.
type ThreadPerConnDriver struct {
	mu      sync.Mutex
	wg      sync.WaitGroup
	poolSz  uint32
	workers *pools.WorkerPool // non-nil when ThreadPoolSize bounds concurrency
	stopCh  chan struct{}
	stopped bool
}

// NewThreadPerConnDriver creates a thread-per-connection driver with one
// unbounded goroutine per connection. poolSize sizes each connection's
// MemoryPool.
func NewThreadPerConnDriver(poolSize uint32) *ThreadPerConnDriver {
	return &ThreadPerConnDriver{poolSz: poolSize, stopCh: make(chan struct{})}
}

// NewThreadPerConnDriverPooled is the ThreadPoolSize > 0 variant of spec
// §6's Options.thread_pool_size: connections are still served one at a
// time each, but dispatched onto a fixed work-stealing pool of numWorkers
// goroutines (core/pools.WorkerPool) rather than one goroutine per
// connection, bounding total concurrency under load.
func NewThreadPerConnDriverPooled(poolSize uint32, numWorkers int) *ThreadPerConnDriver {
	return &ThreadPerConnDriver{
		poolSz:  poolSize,
		workers: pools.NewWorkerPool(numWorkers),
		stopCh:  make(chan struct{}),
	}
}

func (d *ThreadPerConnDriver) AddConnection(c *conn.Connection) {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		c.Sock.Close()
		return
	}
	d.wg.Add(1)
	d.mu.Unlock()

	task := func() { d.serve(c) }
	if d.workers == nil || !d.workers.Submit(task) {
		go task()
	}
}

func (d *ThreadPerConnDriver) Suspend(c *conn.Connection) { c.Suspend() }
func (d *ThreadPerConnDriver) Resume(c *conn.Connection)  { c.Resume() }

// Run blocks until Stop, waiting for every spawned connection goroutine
// to finish.
func (d *ThreadPerConnDriver) Run() error {
	<-d.stopCh
	d.wg.Wait()
	if d.workers != nil {
		d.workers.Close()
	}
	return nil
}

func (d *ThreadPerConnDriver) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	close(d.stopCh)
	d.mu.Unlock()
}

func (d *ThreadPerConnDriver) serve(c *conn.Connection) {
	defer d.wg.Done()
	for {
		select {
		case <-d.stopCh:
			c.Sock.Close()
			return
		default:
		}

		c.SettlePendingSuspendResume()
		if c.Suspended() {
			// Parked: no read, no write, no idle step, no timeout clock.
			// Just wait to be asked again, rather than spinning the
			// goroutine re-checking SuspendPending every tick.
			if !d.park(c) {
				return
			}
			continue
		}

		_ = c.Sock.SetReadDeadline(time.Now().Add(2 * time.Millisecond))
		_ = c.OnReadable(d.poolSz)
		_ = c.Sock.SetWriteDeadline(time.Now().Add(2 * time.Millisecond))
		_ = c.OnWritable()

		if c.Timeout > 0 && time.Since(c.LastActivity) >= c.Timeout {
			c.FailTimeout()
		}
		c.OnIdle()

		switch c.DescribeInterest() {
		case conn.InterestCleanup:
			return
		case conn.InterestBlock:
			// Upgraded (the frame loop owns the socket now) or a pull
			// callback that reported "no data yet": nothing productive to
			// do until the next poll, so back off instead of hammering
			// OnWritable/Pull at full speed.
			if !d.park(c) {
				return
			}
		}
	}
}

// park sleeps a short, bounded interval so a connection with nothing to
// do right now doesn't spin its goroutine at full CPU between polls.
// Reports false if the driver was stopped while parked.
func (d *ThreadPerConnDriver) park(c *conn.Connection) bool {
	select {
	case <-d.stopCh:
		c.Sock.Close()
		return false
	case <-time.After(10 * time.Millisecond):
		return true
	}
}
