// Package pool implements the per-connection bump-pointer memory pool.
//
// A Pool hands out scratch memory for exactly one HTTP message cycle: the
// parser grows its read buffer into it as bytes arrive, header name/value
// pairs are carved out of it, and it is discarded in one shot when the
// connection returns to idle. Allocation is from the front by default;
// small, long-lived records (header entries) can be placed at the back so
// that front-end growth never has to move them.
package pool

import (
	"errors"

	"github.com/searchktools/corehttpd/core/pools"
)

// ErrPoolExhausted is returned when the pool's free region cannot satisfy
// a request. Callers in the parser turn this into 413/414 responses.
var ErrPoolExhausted = errors.New("pool: exhausted")

// backing recycles the fixed-size byte slices every connection Pool is
// built from, so repeated connect/close cycles under
// FlagUseThreadPerConnection don't make one make([]byte, max) per
// connection.
var backing = pools.NewBytePool()

// Pool is a fixed-capacity, two-ended bump allocator. It is not safe for
// concurrent use — exactly one connection owns a Pool at a time.
type Pool struct {
	buf []byte

	pos uint32 // next free byte from the front
	end uint32 // next free byte from the back (exclusive)

	lastFrontOff uint32 // offset of the most recent front allocation
	lastFrontLen uint32 // length of the most recent front allocation
	hasLastFront bool

	// Leaked counts bytes abandoned by Reallocate calls against a
	// non-most-recent block. Diagnostic only.
	Leaked uint64
}

// New creates a pool backed by a buffer of exactly max bytes, drawn from
// a shared tiered byte pool when max matches one of its size classes.
func New(max uint32) *Pool {
	return &Pool{
		buf: backing.Get(int(max)),
		pos: 0,
		end: max,
	}
}

// Max returns the pool's total capacity.
func (p *Pool) Max() uint32 { return uint32(len(p.buf)) }

// FreeRegionSize returns the number of bytes currently available for
// allocation, from either end.
func (p *Pool) FreeRegionSize() uint32 {
	if p.end < p.pos {
		return 0
	}
	return p.end - p.pos
}

// Allocate reserves size bytes from the front of the pool (default) or
// from the back when fromEnd is true. The returned slice is not
// zero-initialized.
func (p *Pool) Allocate(size uint32, fromEnd bool) ([]byte, error) {
	if p.FreeRegionSize() < size {
		return nil, ErrPoolExhausted
	}

	if fromEnd {
		p.end -= size
		p.hasLastFront = false // a back allocation breaks the "most recent front" chain
		return p.buf[p.end : p.end+size], nil
	}

	off := p.pos
	p.pos += size
	p.lastFrontOff = off
	p.lastFrontLen = size
	p.hasLastFront = true
	return p.buf[off : off+size], nil
}

// TryGrowLast extends or shrinks ptr in place, but only when ptr is the
// most recently returned front allocation. It never falls back to a copy
// — callers that need the general reallocate semantics should use
// Reallocate. This is the hot path used by the header parser to grow the
// read buffer without ever leaking or copying.
func (p *Pool) TryGrowLast(old []byte, newSize uint32) ([]byte, bool) {
	if !p.hasLastFront || uint32(len(old)) != p.lastFrontLen {
		return nil, false
	}
	if len(old) > 0 && &old[0] != &p.buf[p.lastFrontOff] {
		return nil, false
	}
	if p.lastFrontOff+uint32(len(old)) != p.pos {
		return nil, false
	}

	// Shrinking always succeeds.
	if newSize <= p.lastFrontLen {
		p.pos = p.lastFrontOff + newSize
		p.lastFrontLen = newSize
		return p.buf[p.lastFrontOff : p.lastFrontOff+newSize], true
	}

	grow := newSize - p.lastFrontLen
	if p.FreeRegionSize() < grow {
		return nil, false
	}

	p.pos += grow
	p.lastFrontLen = newSize
	return p.buf[p.lastFrontOff : p.lastFrontOff+newSize], true
}

// Reallocate implements the general contract: if ptr is the most recent
// front allocation and the pool has room, grow or shrink it in place.
// Otherwise a fresh front allocation of newSize is attempted, min(oldSize,
// newSize) bytes are copied over, and the old block is abandoned — it is
// only reclaimed when the pool is destroyed.
func (p *Pool) Reallocate(ptr []byte, oldSize, newSize uint32) ([]byte, error) {
	if grown, ok := p.TryGrowLast(ptr, newSize); ok {
		return grown, nil
	}

	fresh, err := p.Allocate(newSize, false)
	if err != nil {
		return nil, err
	}

	n := oldSize
	if newSize < n {
		n = newSize
	}
	copy(fresh, ptr[:n])

	p.Leaked += uint64(oldSize)
	return fresh, nil
}

// Destroy returns the backing buffer to the shared byte pool. The pool
// must not be used afterwards.
func (p *Pool) Destroy() {
	if p.buf != nil {
		backing.Put(p.buf)
	}
	p.buf = nil
	p.pos, p.end = 0, 0
	p.hasLastFront = false
}

// Reset returns the pool to its just-created state without releasing the
// backing array, so it can be recycled by a pool-of-pools (see
// core/pools.BytePool, which backs New's backing buffer).
func (p *Pool) Reset() {
	p.pos = 0
	p.end = uint32(len(p.buf))
	p.hasLastFront = false
	p.lastFrontOff, p.lastFrontLen = 0, 0
	p.Leaked = 0
}
