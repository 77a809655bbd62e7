package httpmsg

import (
	"bytes"

	"github.com/searchktools/corehttpd/pool"
)

// findLine scans data for a line terminator. CRLF, a bare LF, and a bare
// CR all terminate a line. Returns ok=false when no terminator has
// arrived yet (caller should wait for more bytes) — including the case
// where the only byte seen so far is a trailing CR that might still turn
// out to be the first half of a CRLF pair.
func findLine(data []byte) (line []byte, rest []byte, ok bool) {
	idx := bytes.IndexAny(data, "\r\n")
	if idx == -1 {
		return nil, nil, false
	}
	if data[idx] == '\n' {
		return data[:idx], data[idx+1:], true
	}
	// data[idx] == '\r'
	if idx+1 >= len(data) {
		// Could still be the start of a CRLF pair; wait for one more byte.
		return nil, nil, false
	}
	if data[idx+1] == '\n' {
		return data[:idx], data[idx+2:], true
	}
	return data[:idx], data[idx+1:], true
}

// ParseRequestLine parses "METHOD SP target SP HTTP/version CRLF" from the
// front of data. It returns the number of bytes consumed (0 if the line
// has not fully arrived) or ErrInvalidRequest if the line is structurally
// broken.
func ParseRequestLine(req *Request, data []byte) (consumed int, err error) {
	line, rest, ok := findLine(data)
	if !ok {
		return 0, nil
	}
	consumed = len(data) - len(rest)

	sp1 := bytes.IndexByte(line, ' ')
	if sp1 <= 0 {
		return 0, ErrInvalidRequest
	}
	sp2 := bytes.IndexByte(line[sp1+1:], ' ')
	if sp2 == -1 {
		return 0, ErrInvalidRequest
	}
	sp2 += sp1 + 1

	req.MethodRaw = line[:sp1]
	req.Method = LookupMethod(string(req.MethodRaw))

	target := line[sp1+1 : sp2]
	if q := bytes.IndexByte(target, '?'); q != -1 {
		req.Path = target[:q]
		req.RawQuery = target[q+1:]
	} else {
		req.Path = target
		req.RawQuery = nil
	}

	req.ProtoRaw = line[sp2+1:]
	req.Major, req.Minor, err = parseProto(req.ProtoRaw)
	if err != nil {
		return 0, err
	}

	return consumed, nil
}

func parseProto(proto []byte) (major, minor int, err error) {
	// "HTTP/1.1"
	const prefix = "HTTP/"
	if len(proto) < len(prefix)+3 || string(proto[:len(prefix)]) != prefix {
		return 0, 0, ErrInvalidRequest
	}
	rest := proto[len(prefix):]
	dot := bytes.IndexByte(rest, '.')
	if dot == -1 {
		return 0, 0, ErrInvalidRequest
	}
	major = int(rest[0] - '0')
	minor = int(rest[dot+1] - '0')
	if major < 0 || major > 9 || minor < 0 || minor > 9 {
		return 0, 0, ErrInvalidRequest
	}
	return major, minor, nil
}

// HeadersResult reports how many bytes of the header block (including the
// terminating blank line) were consumed.
type HeadersResult struct {
	Consumed int
	Done     bool
}

// ParseHeaders consumes header lines from the front of data until the
// blank line that terminates the header block, appending entries to
// req.Headers. Obsolete line-folding (a continuation line beginning with
// SP or HTAB) is merged into the previous header's value via p. Returns
// Done=false if the full header block has not yet arrived (caller should
// read more and retry from the start of the unconsumed region).
func ParseHeaders(p *pool.Pool, req *Request, data []byte) (HeadersResult, error) {
	total := 0
	for {
		line, rest, ok := findLine(data)
		if !ok {
			return HeadersResult{Consumed: total, Done: false}, nil
		}
		lineLen := len(data) - len(rest)

		if len(line) == 0 {
			total += lineLen
			return HeadersResult{Consumed: total, Done: true}, nil
		}

		if (line[0] == ' ' || line[0] == '\t') && len(req.Headers) > 0 {
			if err := foldContinuation(p, req, line); err != nil {
				return HeadersResult{}, err
			}
			total += lineLen
			data = rest
			continue
		}

		colon := bytes.IndexByte(line, ':')
		if colon <= 0 {
			return HeadersResult{}, ErrInvalidRequest
		}
		name := trimOWS(line[:colon])
		value := trimOWS(line[colon+1:])

		if err := ValidateHeaderName(name); err != nil {
			return HeadersResult{}, err
		}
		if err := ValidateHeaderValue(value); err != nil {
			return HeadersResult{}, err
		}

		if string(name) == "Cookie" {
			if err := parseCookies(p, req, value); err != nil {
				return HeadersResult{}, err
			}
		}
		req.Headers = append(req.Headers, Field{Kind: KindHeader, Name: name, Value: value})

		total += lineLen
		data = rest
	}
}

func foldContinuation(p *pool.Pool, req *Request, line []byte) error {
	cont := trimOWS(line)
	last := &req.Headers[len(req.Headers)-1]

	combinedLen := uint32(len(last.Value) + 1 + len(cont))
	grown, err := p.Reallocate(last.Value, uint32(len(last.Value)), combinedLen)
	if err != nil {
		return ErrInvalidRequest
	}
	grown[len(last.Value)] = ' '
	copy(grown[len(last.Value)+1:], cont)
	last.Value = grown
	return nil
}

func trimOWS(b []byte) []byte {
	for len(b) > 0 && (b[0] == ' ' || b[0] == '\t') {
		b = b[1:]
	}
	for len(b) > 0 && (b[len(b)-1] == ' ' || b[len(b)-1] == '\t') {
		b = b[:len(b)-1]
	}
	return b
}

// ParseQuery decodes a raw query string into GetArg fields, applying
// percent- and '+'-decoding to both key and value. Scratch space for
// decoded bytes comes from p.
func ParseQuery(p *pool.Pool, req *Request, rawQuery []byte) error {
	if len(rawQuery) == 0 {
		return nil
	}
	for _, pair := range bytes.Split(rawQuery, []byte{'&'}) {
		if len(pair) == 0 {
			continue
		}
		var key, val []byte
		if eq := bytes.IndexByte(pair, '='); eq != -1 {
			key, val = pair[:eq], pair[eq+1:]
		} else {
			key = pair
		}
		dk, err := unescapeInto(p, key)
		if err != nil {
			return err
		}
		dv, err := unescapeInto(p, val)
		if err != nil {
			return err
		}
		req.Headers = append(req.Headers, Field{Kind: KindGetArg, Name: dk, Value: dv})
	}
	return nil
}

// unescapeInto percent/plus-decodes src into pool-backed scratch. The
// decoded form is never longer than src, so the allocation is an
// over-estimate trimmed via TryGrowLast.
func unescapeInto(p *pool.Pool, src []byte) ([]byte, error) {
	if len(src) == 0 {
		return nil, nil
	}
	buf, err := p.Allocate(uint32(len(src)), false)
	if err != nil {
		return nil, ErrInvalidRequest
	}
	n := 0
	for i := 0; i < len(src); i++ {
		switch src[i] {
		case '+':
			buf[n] = ' '
			n++
		case '%':
			if i+2 < len(src) {
				if hv, ok := unhex2(src[i+1], src[i+2]); ok {
					buf[n] = hv
					n++
					i += 2
					continue
				}
			}
			buf[n] = '%'
			n++
		default:
			buf[n] = src[i]
			n++
		}
	}
	if shrunk, ok := p.TryGrowLast(buf, uint32(n)); ok {
		return shrunk, nil
	}
	return buf[:n], nil
}

func unhex2(a, b byte) (byte, bool) {
	hi, ok1 := unhex(a)
	lo, ok2 := unhex(b)
	if !ok1 || !ok2 {
		return 0, false
	}
	return hi<<4 | lo, true
}

func unhex(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	default:
		return 0, false
	}
}

// parseCookies tokenizes an RFC 6265 Cookie header value into Cookie-kind
// fields. A single scratch copy is taken so the original header value
// (also retained as a KindHeader field) is left untouched.
func parseCookies(p *pool.Pool, req *Request, value []byte) error {
	scratch, err := p.Allocate(uint32(len(value)), false)
	if err != nil {
		return ErrInvalidRequest
	}
	copy(scratch, value)

	for _, pair := range bytes.Split(scratch, []byte{';'}) {
		pair = trimOWS(pair)
		if len(pair) == 0 {
			continue
		}
		eq := bytes.IndexByte(pair, '=')
		if eq == -1 {
			continue
		}
		name := trimOWS(pair[:eq])
		val := trimOWS(pair[eq+1:])
		if len(val) >= 2 && val[0] == '"' && val[len(val)-1] == '"' {
			val = val[1 : len(val)-1]
		}
		req.Headers = append(req.Headers, Field{Kind: KindCookie, Name: name, Value: val})
	}
	return nil
}
