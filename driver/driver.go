package driver

import (
	"time"

	"github.com/searchktools/corehttpd/conn"
)

// Driver is the one interface with three implementations: ExternalDriver,
// InternalPollDriver, and ThreadPerConnDriver. A Daemon owns exactly one,
// chosen at construction from its Flags (and, for the thread-per-
// connection driver, ThreadPoolSize).
type Driver interface {
	// AddConnection registers c with the driver's active set.
	AddConnection(c *conn.Connection)
	// Suspend/Resume move a connection out of the active set until Resume.
	Suspend(c *conn.Connection)
	Resume(c *conn.Connection)
	// Run blocks, driving every registered connection until Stop is
	// called. Not supported by ExternalDriver (the application drives it
	// instead via FDSet/Timeout/RunFromSelect).
	Run() error
	// Stop unblocks Run (or, for ExternalDriver, marks the driver
	// shut down so RunFromSelect stops dispatching). ExternalDriver and
	// ThreadPerConnDriver close the sockets of connections still
	// registered; InternalPollDriver does not. None of them invokes the
	// connections' close notification.
	Stop()
}

// FDSet is a minimal, allocation-free-at-steady-state stand-in for a
// POSIX fd_set: the set of file descriptors the application should watch
// on behalf of ExternalDriver. Unlike the C original this never aliases a
// fixed-size bitmask — Go has no portable raw fd_set — so it is a plain
// set keyed on fd, which is what every other example repo in this pack
// reaches for when it needs an fd collection (core/engine.go's
// map[int]*Connection).
type FDSet struct {
	fds map[int]struct{}
}

// NewFDSet creates an empty FDSet.
func NewFDSet() *FDSet { return &FDSet{fds: make(map[int]struct{})} }

// Set adds fd to the set.
func (s *FDSet) Set(fd int) { s.fds[fd] = struct{}{} }

// IsSet reports whether fd is a member.
func (s *FDSet) IsSet(fd int) bool {
	_, ok := s.fds[fd]
	return ok
}

// FDs returns every member fd, in no particular order.
func (s *FDSet) FDs() []int {
	out := make([]int, 0, len(s.fds))
	for fd := range s.fds {
		out = append(out, fd)
	}
	return out
}

// clampTimeout converts a Go duration into an epoll/kqueue millisecond
// timeout: has=false (no timeout) becomes -1, and a zero or negative
// duration becomes 0 (poll).
func clampTimeout(d time.Duration, has bool) int {
	if !has {
		return -1
	}
	if d <= 0 {
		return 0
	}
	return int(d.Milliseconds())
}
