// Package iplimiter implements a per-IP admission counter: every accepted
// connection increments a (family, address) count; every closed
// connection decrements it and drops the entry at zero. One Limiter is
// shared across every worker of a daemon.
//
// A balanced BST on the raw address bytes would give the same guarantee,
// but a Go map already gives the O(1) insert/remove/lookup a BST earns
// through rebalancing, and nothing else in this codebase hand-rolls tree
// structures for a keyed counter (core/pools and core/router use maps and
// a radix trie, never a balanced BST) — see DESIGN.md.
package iplimiter

import (
	"errors"
	"net"
	"sync"
)

// ErrLimitExceeded is returned by Admit when accepting the connection
// would push its address's count past the configured per-IP limit.
var ErrLimitExceeded = errors.New("iplimiter: per-IP connection limit exceeded")

// key is the canonicalized (family, address-bytes) pair every accepted
// socket's address is normalized to before counting.
type key struct {
	v6   bool
	addr [16]byte
}

func keyFor(ip net.IP) key {
	if v4 := ip.To4(); v4 != nil {
		var k key
		copy(k.addr[:4], v4)
		return k
	}
	var k key
	k.v6 = true
	copy(k.addr[:], ip.To16())
	return k
}

// Limiter tracks live connection counts per source IP, enforcing an
// optional per-IP cap.
type Limiter struct {
	mu     sync.Mutex
	counts map[key]int
	limit  int // 0 = unlimited
}

// New creates a Limiter enforcing perIPLimit connections per address.
// perIPLimit <= 0 means unlimited (the counter is still maintained, for
// diagnostics, but Admit never rejects).
func New(perIPLimit int) *Limiter {
	return &Limiter{counts: make(map[key]int), limit: perIPLimit}
}

// Admit increments addr's count and returns ErrLimitExceeded without
// incrementing if that would exceed the configured limit. Mirrors spec
// §4.4.4's accept-time check: "if per-IP count already >= limit, close
// immediately".
func (l *Limiter) Admit(addr net.Addr) error {
	ip := addrIP(addr)
	k := keyFor(ip)

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.limit > 0 && l.counts[k] >= l.limit {
		return ErrLimitExceeded
	}
	l.counts[k]++
	return nil
}

// Release decrements addr's count, deleting the entry once it reaches
// zero.
func (l *Limiter) Release(addr net.Addr) {
	ip := addrIP(addr)
	k := keyFor(ip)

	l.mu.Lock()
	defer l.mu.Unlock()
	n, ok := l.counts[k]
	if !ok {
		return
	}
	if n <= 1 {
		delete(l.counts, k)
		return
	}
	l.counts[k] = n - 1
}

// Count reports the current count for addr, for tests and diagnostics.
func (l *Limiter) Count(addr net.Addr) int {
	k := keyFor(addrIP(addr))
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.counts[k]
}

// Len reports the number of distinct addresses currently tracked.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.counts)
}

func addrIP(addr net.Addr) net.IP {
	switch a := addr.(type) {
	case *net.TCPAddr:
		return a.IP
	case *net.UDPAddr:
		return a.IP
	case *net.IPAddr:
		return a.IP
	default:
		host, _, err := net.SplitHostPort(addr.String())
		if err != nil {
			return net.ParseIP(addr.String())
		}
		return net.ParseIP(host)
	}
}
