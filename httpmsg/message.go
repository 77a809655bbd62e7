// Package httpmsg implements HTTP/1.x request-line/header/chunk parsing:
// header entries shared between request and response, method/version
// recognition, query-string and cookie tokenization, and the chunked
// transfer-coding decoder.
package httpmsg

import "errors"

// Kind distinguishes the five header-entry flavors that share one shape.
type Kind uint8

const (
	KindHeader Kind = iota
	KindCookie
	KindGetArg
	KindPostArg
	KindFooter
)

func (k Kind) String() string {
	switch k {
	case KindHeader:
		return "Header"
	case KindCookie:
		return "Cookie"
	case KindGetArg:
		return "GetArg"
	case KindPostArg:
		return "PostArg"
	case KindFooter:
		return "Footer"
	default:
		return "Unknown"
	}
}

// Field is a parsed (kind, name, value) triple. Request-side fields are
// backed by the connection's pool.Pool and only valid for the lifetime of
// that pool; response-side fields are backed by ordinary Go allocation
// (see core/pools.BufferPool).
type Field struct {
	Kind  Kind
	Name  []byte
	Value []byte
}

// Method is the recognized request-line method set.
type Method uint8

const (
	MethodOther Method = iota
	MethodGET
	MethodHEAD
	MethodPOST
	MethodPUT
	MethodDELETE
	MethodCONNECT
	MethodOPTIONS
	MethodTRACE
)

var methodNames = map[string]Method{
	"GET":     MethodGET,
	"HEAD":    MethodHEAD,
	"POST":    MethodPOST,
	"PUT":     MethodPUT,
	"DELETE":  MethodDELETE,
	"CONNECT": MethodCONNECT,
	"OPTIONS": MethodOPTIONS,
	"TRACE":   MethodTRACE,
}

// LookupMethod recognizes a method token, returning MethodOther for any
// token not in the enumerated set (the raw string is preserved by the
// caller regardless).
func LookupMethod(raw string) Method {
	if m, ok := methodNames[raw]; ok {
		return m
	}
	return MethodOther
}

// Request is the parsed request-line and header block. String/byte
// fields here alias the connection's pool buffer; callers that need to
// retain them past the request's lifetime must copy.
type Request struct {
	Method    Method
	MethodRaw []byte
	Path      []byte
	RawQuery  []byte
	ProtoRaw  []byte
	Major     int
	Minor     int

	Headers []Field // Kind == KindHeader | KindCookie | KindGetArg | KindFooter
}

// ErrInvalidRequest signals a malformed request-line or header line.
var ErrInvalidRequest = errors.New("httpmsg: invalid request")

// ErrChunkFraming signals a malformed chunked transfer-coding frame.
var ErrChunkFraming = errors.New("httpmsg: invalid chunk framing")

// Header looks up the first header with the given name (case-insensitive,
// matching HTTP semantics for request-side lookups).
func (r *Request) Header(name string) ([]byte, bool) {
	for _, f := range r.Headers {
		if f.Kind == KindHeader && EqualFoldBytes(f.Name, name) {
			return f.Value, true
		}
	}
	return nil, false
}

// Query looks up the first GetArg with the given key.
func (r *Request) Query(key string) ([]byte, bool) {
	for _, f := range r.Headers {
		if f.Kind == KindGetArg && string(f.Name) == key {
			return f.Value, true
		}
	}
	return nil, false
}

// Cookie looks up the first Cookie entry with the given name.
func (r *Request) Cookie(name string) ([]byte, bool) {
	for _, f := range r.Headers {
		if f.Kind == KindCookie && string(f.Name) == name {
			return f.Value, true
		}
	}
	return nil, false
}

// HTTP11 reports whether the parsed version is >= 1.1.
func (r *Request) HTTP11() bool {
	return r.Major > 1 || (r.Major == 1 && r.Minor >= 1)
}
