// Package response implements the Response descriptor: a reference-counted,
// freeze-once-queued object carrying a status line, headers/footers, and
// exactly one body-source variant (fixed buffer, file, pull-callback, or
// connection-upgrade handler), addressable through a header list rather
// than writing Content-Type/Content-Length directly into an output
// writer.
package response

import (
	"errors"
	"sync"

	"github.com/searchktools/corehttpd/core/pools"
	"github.com/searchktools/corehttpd/httpmsg"
)

// SizeUnknown marks a Response whose total body size cannot be determined
// up front (a pull-callback source with no declared length; the connection
// falls back to chunked transfer-coding for such a response on HTTP/1.1).
const SizeUnknown int64 = -1

// ErrFrozen is returned by AddHeader/AddFooter/DelHeader once the response
// has been queued: a queued Response's wire representation must not change
// underneath a Connection that may already be partway through writing it.
var ErrFrozen = errors.New("response: frozen after queue")

// ErrInvalidHeader rejects header/footer names or values containing control
// characters, matching add_response_entry's '\t'/'\r'/'\n' rejection.
var ErrInvalidHeader = errors.New("response: invalid header or footer")

type sourceKind uint8

const (
	sourceFixed sourceKind = iota
	sourceFile
	sourcePull
	sourceUpgrade
)

// Response is a queueable HTTP response. The zero value is not usable;
// construct one with FromBuffer, FromFile, FromCallback, or ForUpgrade.
type Response struct {
	mu       sync.Mutex
	refCount int
	frozen   bool

	Size int64 // SizeUnknown if not known in advance

	headers []httpmsg.Field
	footers []httpmsg.Field

	kind   sourceKind
	fixed  []byte
	file   fileSource
	pull   pullSource
	upgrad UpgradeHandler

	bufs []*[]byte // header/footer value storage borrowed from pools.BufferPool, released on Destroy
}

type fileSource struct {
	path   string
	offset int64
	length int64
}

// PullFunc supplies body bytes on demand, starting at byte offset pos.
// Returning n < len(buf) with a nil error signals a short read with more
// data still to come; returning io.EOF (wrapped or bare) signals the body
// is exhausted. The connection sizes buf to the response's BlockSize.
type PullFunc func(buf []byte, pos int64) (n int, err error)

type pullSource struct {
	fn      PullFunc
	freeFn  func()
	hasFree bool
}

func newResponse(size int64) *Response {
	return &Response{refCount: 1, Size: size}
}

// FromBuffer builds a Response whose entire body is already in memory.
// The slice is retained, not copied; callers must not mutate it afterward.
func FromBuffer(body []byte) *Response {
	r := newResponse(int64(len(body)))
	r.kind = sourceFixed
	r.fixed = body
	return r
}

// FromFile builds a Response whose body is read from path starting at
// offset for length bytes, served via core/sendfile's zero-copy path.
func FromFile(path string, offset, length int64) *Response {
	r := newResponse(length)
	r.kind = sourceFile
	r.file = fileSource{path: path, offset: offset, length: length}
	return r
}

// FromCallback builds a Response whose body is produced on demand by fn.
// size may be SizeUnknown, in which case the connection serves the body
// with chunked transfer-coding. freeFn, if non-nil, runs exactly once when
// the Response's refcount reaches zero.
func FromCallback(size int64, fn PullFunc, freeFn func()) *Response {
	r := newResponse(size)
	r.kind = sourcePull
	r.pull = pullSource{fn: fn, freeFn: freeFn, hasFree: freeFn != nil}
	return r
}

// ForUpgrade builds a Response that, once queued against a request
// announcing an upgrade, hands the raw connection to handler instead of
// writing a body through the normal state machine.
func ForUpgrade(handler UpgradeHandler) *Response {
	r := newResponse(SizeUnknown)
	r.kind = sourceUpgrade
	r.upgrad = handler
	return r
}

// Kind reports which body-source variant backs r.
type Kind uint8

const (
	KindFixed Kind = iota
	KindFile
	KindPull
	KindUpgrade
)

func (r *Response) Kind() Kind {
	switch r.kind {
	case sourceFile:
		return KindFile
	case sourcePull:
		return KindPull
	case sourceUpgrade:
		return KindUpgrade
	default:
		return KindFixed
	}
}

// Buffer returns the fixed body, valid only when Kind() == KindFixed.
func (r *Response) Buffer() []byte { return r.fixed }

// File returns the file path, start offset, and length, valid only when
// Kind() == KindFile.
func (r *Response) File() (path string, offset, length int64) {
	return r.file.path, r.file.offset, r.file.length
}

// Pull returns the pull callback, valid only when Kind() == KindPull.
func (r *Response) Pull() PullFunc { return r.pull.fn }

// UpgradeHandlerFunc returns the upgrade handler, valid only when
// Kind() == KindUpgrade.
func (r *Response) UpgradeHandlerFunc() UpgradeHandler { return r.upgrad }

func validToken(s []byte) bool {
	for _, c := range s {
		if c == '\t' || c == '\r' || c == '\n' {
			return false
		}
	}
	return len(s) > 0
}

func (r *Response) addEntry(kind httpmsg.Kind, name, value string) error {
	if !validToken([]byte(name)) || !validToken([]byte(value)) {
		return ErrInvalidHeader
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		return ErrFrozen
	}
	nbuf := pools.AcquireBuffer(len(name) + len(value))
	*nbuf = append((*nbuf)[:0], name...)
	n := (*nbuf)[:len(name):len(name)]
	*nbuf = append(*nbuf, value...)
	v := (*nbuf)[len(name):len(*nbuf):len(*nbuf)]
	r.bufs = append(r.bufs, nbuf)

	f := httpmsg.Field{Kind: kind, Name: n, Value: v}
	if kind == httpmsg.KindFooter {
		r.footers = append(r.footers, f)
	} else {
		r.headers = append(r.headers, f)
	}
	return nil
}

// AddHeader appends a response header. Rejects control characters in name
// or value, and fails once the response has been queued.
func (r *Response) AddHeader(name, value string) error {
	return r.addEntry(httpmsg.KindHeader, name, value)
}

// AddFooter appends a trailer, sent after a chunked body.
func (r *Response) AddFooter(name, value string) error {
	return r.addEntry(httpmsg.KindFooter, name, value)
}

// DelHeader removes the first header whose name and value both match
// exactly (case-sensitive, unlike request-side lookups).
func (r *Response) DelHeader(name, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		return ErrFrozen
	}
	for i, f := range r.headers {
		if f.Kind == httpmsg.KindHeader && string(f.Name) == name && string(f.Value) == value {
			r.headers = append(r.headers[:i], r.headers[i+1:]...)
			return nil
		}
	}
	return nil
}

// GetHeader returns the first header matching name exactly. Always
// callable, frozen or not.
func (r *Response) GetHeader(name string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, f := range r.headers {
		if f.Kind == httpmsg.KindHeader && string(f.Name) == name {
			return string(f.Value), true
		}
	}
	return "", false
}

// GetHeaders returns a snapshot of all headers in addition order.
func (r *Response) GetHeaders() []httpmsg.Field {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]httpmsg.Field, len(r.headers))
	copy(out, r.headers)
	return out
}

// Footers returns a snapshot of all footers in addition order.
func (r *Response) Footers() []httpmsg.Field {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]httpmsg.Field, len(r.footers))
	copy(out, r.footers)
	return out
}

// freeze marks the response immutable. Called by the daemon the moment a
// Response is queued against a connection; safe to call more than once
// (e.g. the same Response reused across several connections).
func (r *Response) freeze() {
	r.mu.Lock()
	r.frozen = true
	r.mu.Unlock()
}

// Frozen reports whether the response has been queued at least once.
func (r *Response) Frozen() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frozen
}

// IncRef increments the reference count — used when the same Response is
// queued against more than one connection concurrently (e.g. a shared
// "404 Not Found" singleton).
func (r *Response) IncRef() {
	r.mu.Lock()
	r.refCount++
	r.mu.Unlock()
}

// Destroy decrements the reference count and, on reaching zero, releases
// the response's header/footer storage and runs the pull source's freeFn
// if any.
func (r *Response) Destroy() {
	r.mu.Lock()
	r.refCount--
	if r.refCount > 0 {
		r.mu.Unlock()
		return
	}
	bufs := r.bufs
	r.bufs = nil
	hasFree := r.kind == sourcePull && r.pull.hasFree
	freeFn := r.pull.freeFn
	r.mu.Unlock()

	for _, b := range bufs {
		pools.ReleaseBuffer(b)
	}
	if hasFree {
		freeFn()
	}
}

// RefCount reports the current reference count, for tests and diagnostics.
func (r *Response) RefCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.refCount
}

// Freeze exposes freeze to the daemon package without making it part of
// the general public API surface reachable by handler code.
func Freeze(r *Response) { r.freeze() }
