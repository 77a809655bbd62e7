package httpmsg

import (
	"bytes"
	"testing"

	"github.com/searchktools/corehttpd/pool"
)

func TestParseRequestLineAndHeadersRoundTrip(t *testing.T) {
	raw := "GET /search?q=go+lang&empty HTTP/1.1\r\nHost: example.com\r\nX-Custom: one\r\n X-Custom-folded\r\nCookie: a=1; b=\"two\"\r\n\r\n"

	p := pool.New(4096)
	req := &Request{}

	n, err := ParseRequestLine(req, []byte(raw))
	if err != nil {
		t.Fatalf("ParseRequestLine: %v", err)
	}
	if req.Method != MethodGET {
		t.Fatalf("method = %v, want GET", req.Method)
	}
	if string(req.Path) != "/search" {
		t.Fatalf("path = %q", req.Path)
	}
	if req.Major != 1 || req.Minor != 1 {
		t.Fatalf("version = %d.%d, want 1.1", req.Major, req.Minor)
	}

	if err := ParseQuery(p, req, req.RawQuery); err != nil {
		t.Fatalf("ParseQuery: %v", err)
	}
	if v, ok := req.Query("q"); !ok || string(v) != "go lang" {
		t.Fatalf("query q = %q, %v", v, ok)
	}

	rest := raw[n:]
	res, err := ParseHeaders(p, req, []byte(rest))
	if err != nil {
		t.Fatalf("ParseHeaders: %v", err)
	}
	if !res.Done {
		t.Fatal("expected full header block to parse in one pass")
	}

	host, ok := req.Header("Host")
	if !ok || string(host) != "example.com" {
		t.Fatalf("Host = %q, %v", host, ok)
	}
	custom, ok := req.Header("X-Custom")
	if !ok || string(custom) != "one X-Custom-folded" {
		t.Fatalf("X-Custom = %q, want folded continuation", custom)
	}
	a, ok := req.Cookie("a")
	if !ok || string(a) != "1" {
		t.Fatalf("cookie a = %q", a)
	}
	b, ok := req.Cookie("b")
	if !ok || string(b) != "two" {
		t.Fatalf("cookie b (unquoted) = %q", b)
	}
}

func TestFindLineAcceptsBareCR(t *testing.T) {
	line, rest, ok := findLine([]byte("GET / HTTP/1.1\rHost: example.com\r\n"))
	if !ok {
		t.Fatal("expected a bare CR to terminate the line")
	}
	if string(line) != "GET / HTTP/1.1" {
		t.Fatalf("line = %q", line)
	}
	if string(rest) != "Host: example.com\r\n" {
		t.Fatalf("rest = %q", rest)
	}
}

func TestFindLineWaitsOnTrailingCR(t *testing.T) {
	_, _, ok := findLine([]byte("GET / HTTP/1.1\r"))
	if ok {
		t.Fatal("a trailing CR with no following byte might still be a CRLF pair; should wait")
	}
}

func TestParseHeadersWaitsForMoreData(t *testing.T) {
	p := pool.New(1024)
	req := &Request{}

	partial := []byte("Host: example.com\r\n")
	res, err := ParseHeaders(p, req, partial)
	if err != nil {
		t.Fatalf("unexpected error on partial headers: %v", err)
	}
	if res.Done {
		t.Fatal("headers should not be Done without the terminating blank line")
	}
}

func TestParseHeadersRejectsMissingColon(t *testing.T) {
	p := pool.New(1024)
	req := &Request{}
	_, err := ParseHeaders(p, req, []byte("not-a-header\r\n\r\n"))
	if err != ErrInvalidRequest {
		t.Fatalf("err = %v, want ErrInvalidRequest", err)
	}
}

func TestChunkDecoderRoundTrip(t *testing.T) {
	var encoded []byte
	encoded = WriteChunk(encoded, []byte("ab"))
	encoded = WriteChunk(encoded, []byte("cd"))
	encoded = WriteLastChunk(encoded, nil)

	if !bytes.Equal(encoded, []byte("2\r\nab\r\n2\r\ncd\r\n0\r\n\r\n")) {
		t.Fatalf("encoded = %q", encoded)
	}

	dec := NewChunkDecoder()
	var got []byte
	data := encoded
	offset := 0
	for dec.State != ChunkDone {
		out, n, err := dec.Step(data[offset:])
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		got = append(got, out...)
		offset += n
		if n == 0 && dec.State != ChunkDone {
			t.Fatal("decoder made no progress but is not done")
		}
	}
	if string(got) != "abcd" {
		t.Fatalf("decoded = %q, want abcd", got)
	}
}
