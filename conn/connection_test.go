package conn

import (
	"bufio"
	"io"
	"net"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/searchktools/corehttpd/httpmsg"
	"github.com/searchktools/corehttpd/response"
)

// drive pumps OnReadable/OnIdle/OnWritable on the server side of a pipe,
// mirroring how a driver's event loop steps a Connection one readiness
// event at a time. It returns once the connection closes, or once
// several consecutive rounds produce no observable progress (the
// connection is genuinely idle, waiting on the next request or a peer
// that has stopped writing) — using a short read deadline per round so
// an idle InterestRead state never blocks the test forever the way a
// real driver's epoll wait would otherwise be satisfied by readiness.
func drive(t *testing.T, c *Connection) {
	t.Helper()
	const idleLimit = 5
	idle := 0
	for i := 0; i < 10000; i++ {
		progressed := false

		switch c.DescribeInterest() {
		case InterestRead:
			_ = c.Sock.SetReadDeadline(time.Now().Add(20 * time.Millisecond))
			before := c.readFilled
			if err := c.OnReadable(32 * 1024); err != nil {
				t.Fatalf("OnReadable: %v", err)
			}
			_ = c.Sock.SetReadDeadline(time.Time{})
			if c.readFilled != before {
				progressed = true
			}
		case InterestWrite:
			if err := c.OnWritable(); err != nil {
				t.Fatalf("OnWritable: %v", err)
			}
			progressed = true
		}

		beforeState := c.State
		c.OnIdle()
		if c.State != beforeState {
			progressed = true
		}
		if c.State == Closed {
			return
		}

		if progressed {
			idle = 0
		} else {
			idle++
			if idle >= idleLimit {
				return
			}
		}
	}
	t.Fatal("drive: exceeded iteration budget without reaching a steady state")
}

func newTestConnection(t *testing.T, cb RequestCallback) (*Connection, net.Conn, chan CloseReason) {
	t.Helper()
	server, client := net.Pipe()
	t.Cleanup(func() { client.Close() })

	notified := make(chan CloseReason, 1)
	c := New(server, cb, func(c *Connection, reason CloseReason) {
		select {
		case notified <- reason:
		default:
		}
	}, 0)
	return c, client, notified
}

func TestConnectionServesFixedBodyResponse(t *testing.T) {
	c, client, _ := newTestConnection(t, func(c *Connection, req *httpmsg.Request, uploadChunk []byte) *response.Response {
		if uploadChunk != nil {
			return nil
		}
		c.SetStatus(200)
		r := response.FromBuffer([]byte("hello\n"))
		_ = r.AddHeader("Content-Type", "text/plain")
		return r
	})

	go func() {
		io.WriteString(client, "GET /hello HTTP/1.1\r\nHost: x\r\nConnection: close\r\n\r\n")
	}()

	readDone := make(chan string, 1)
	go func() {
		data, _ := io.ReadAll(client)
		readDone <- string(data)
	}()

	drive(t, c)

	out := <-readDone
	if !strings.HasPrefix(out, "HTTP/1.1 200 OK\r\n") {
		t.Fatalf("unexpected status line: %q", out)
	}
	if !strings.Contains(out, "Content-Type: text/plain\r\n") {
		t.Errorf("missing Content-Type header: %q", out)
	}
	if !strings.HasSuffix(out, "hello\n") {
		t.Errorf("missing body: %q", out)
	}
}

func TestConnectionEchoesRequestBody(t *testing.T) {
	var gotBody []byte
	c, client, _ := newTestConnection(t, func(c *Connection, req *httpmsg.Request, uploadChunk []byte) *response.Response {
		if uploadChunk == nil {
			// Called once on entering BodyReceiving, before any data has
			// arrived (UploadRemaining == 5 here) — nothing to do yet.
			return nil
		}
		gotBody = append(gotBody, uploadChunk...)
		if c.UploadRemaining != 0 {
			return nil
		}
		c.SetStatus(201)
		return response.FromBuffer(append([]byte("got:"), gotBody...))
	})

	go func() {
		io.WriteString(client, "POST /echo HTTP/1.1\r\nHost: x\r\nContent-Length: 5\r\nConnection: close\r\n\r\nhowdy")
	}()

	readDone := make(chan string, 1)
	go func() {
		data, _ := io.ReadAll(client)
		readDone <- string(data)
	}()

	drive(t, c)

	out := <-readDone
	if !strings.Contains(out, "got:howdy") {
		t.Errorf("expected echoed body, got %q", out)
	}
}

func TestConnectionKeepAliveServesTwoPipelinedRequests(t *testing.T) {
	count := 0
	c, client, _ := newTestConnection(t, func(c *Connection, req *httpmsg.Request, uploadChunk []byte) *response.Response {
		if uploadChunk != nil {
			return nil
		}
		count++
		c.SetStatus(200)
		return response.FromBuffer([]byte("ok"))
	})

	go func() {
		io.WriteString(client, "GET /one HTTP/1.1\r\nHost: x\r\n\r\n")
		io.WriteString(client, "GET /two HTTP/1.1\r\nHost: x\r\n\r\n")
	}()

	type serverResponse struct {
		status string
		body   string
	}
	responses := make(chan serverResponse, 2)
	go func() {
		br := bufio.NewReader(client)
		for i := 0; i < 2; i++ {
			line, err := br.ReadString('\n')
			if err != nil {
				return
			}
			for {
				h, err := br.ReadString('\n')
				if err != nil || h == "\r\n" {
					break
				}
			}
			body := make([]byte, 2)
			if _, err := io.ReadFull(br, body); err != nil {
				return
			}
			responses <- serverResponse{status: line, body: string(body)}
		}
	}()

	// drive keeps pumping the state machine across both requests since
	// the connection stays in Init (keep-alive) between them rather than
	// closing; it only goes idle once the peer has nothing left to send.
	drive(t, c)

	for i := 0; i < 2; i++ {
		select {
		case r := <-responses:
			if !strings.HasPrefix(r.status, "HTTP/1.1 200") {
				t.Errorf("response %d status = %q", i, r.status)
			}
			if r.body != "ok" {
				t.Errorf("response %d body = %q, want ok", i, r.body)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for response %d", i)
		}
	}
	if count != 2 {
		t.Errorf("callback invoked %d times, want 2", count)
	}
}

func TestOverflowStatusPicksByState(t *testing.T) {
	c, _, _ := newTestConnection(t, func(c *Connection, req *httpmsg.Request, uploadChunk []byte) *response.Response {
		return nil
	})
	c.State = Init
	if got := c.overflowStatus(); got != 414 {
		t.Errorf("overflowStatus() in Init = %d, want 414", got)
	}
	c.State = HeaderPartReceived
	if got := c.overflowStatus(); got != 413 {
		t.Errorf("overflowStatus() in HeaderPartReceived = %d, want 413", got)
	}
}

func TestWriteFileBodyFallsBackWithoutRawFD(t *testing.T) {
	// net.Pipe's Conn does not implement SyscallConn, so writeFileBody
	// must fall back to its buffered fileReader path rather than error.
	dir := t.TempDir()
	path := dir + "/body.txt"
	if err := os.WriteFile(path, []byte("file contents\n"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	c, client, _ := newTestConnection(t, func(c *Connection, req *httpmsg.Request, uploadChunk []byte) *response.Response {
		if uploadChunk != nil {
			return nil
		}
		c.SetStatus(200)
		return response.FromFile(path, 0, int64(len("file contents\n")))
	})

	go func() {
		io.WriteString(client, "GET /file HTTP/1.1\r\nHost: x\r\nConnection: close\r\n\r\n")
	}()

	readDone := make(chan string, 1)
	go func() {
		data, _ := io.ReadAll(client)
		readDone <- string(data)
	}()

	drive(t, c)

	out := <-readDone
	if !strings.HasSuffix(out, "file contents\n") {
		t.Errorf("expected file body via fallback path, got %q", out)
	}
}

func TestSuspendResumeFlags(t *testing.T) {
	c, _, _ := newTestConnection(t, func(c *Connection, req *httpmsg.Request, uploadChunk []byte) *response.Response {
		return nil
	})
	if c.SuspendPending() || c.ResumePending() {
		t.Fatal("new connection should have no pending suspend/resume")
	}
	c.Suspend()
	if !c.SuspendPending() {
		t.Error("Suspend should set SuspendPending")
	}
	c.Resume()
	if !c.ResumePending() {
		t.Error("Resume should set ResumePending")
	}
	c.ClearSuspendResume()
	if c.SuspendPending() || c.ResumePending() {
		t.Error("ClearSuspendResume should clear both flags")
	}
}

// TestSuspendResumeGatesMembership exercises the actual contract a driver
// relies on: Suspend takes effect (moves Membership to MembershipSuspended,
// Suspended() reports true) only once SettlePendingSuspendResume runs, not
// at the point Suspend was called — and Resume reverses it the same way.
func TestSuspendResumeGatesMembership(t *testing.T) {
	c, _, _ := newTestConnection(t, func(c *Connection, req *httpmsg.Request, uploadChunk []byte) *response.Response {
		return nil
	})
	if c.Suspended() {
		t.Fatal("new connection should not be suspended")
	}

	c.Suspend()
	if c.Suspended() {
		t.Fatal("Suspend must not take effect before SettlePendingSuspendResume")
	}
	c.SettlePendingSuspendResume()
	if !c.Suspended() {
		t.Fatal("SettlePendingSuspendResume should apply a pending Suspend")
	}
	if c.Membership != MembershipSuspended {
		t.Fatalf("Membership = %v, want MembershipSuspended", c.Membership)
	}

	c.Resume()
	if !c.Suspended() {
		t.Fatal("Resume must not take effect before SettlePendingSuspendResume")
	}
	c.SettlePendingSuspendResume()
	if c.Suspended() {
		t.Fatal("SettlePendingSuspendResume should apply a pending Resume")
	}
	if c.Membership != MembershipActive {
		t.Fatalf("Membership = %v, want MembershipActive", c.Membership)
	}
}

// discardConn is a net.Conn that never blocks: Write accepts and drops
// everything, Read reports EOF immediately. Used where a test drives
// write-side state transitions directly and isn't interested in the
// bytes on the wire, so it doesn't need a concurrent reader draining a
// net.Pipe.
type discardConn struct{}

func (discardConn) Read(p []byte) (int, error)       { return 0, io.EOF }
func (discardConn) Write(p []byte) (int, error)      { return len(p), nil }
func (discardConn) Close() error                     { return nil }
func (discardConn) LocalAddr() net.Addr              { return discardAddr{} }
func (discardConn) RemoteAddr() net.Addr             { return discardAddr{} }
func (discardConn) SetDeadline(time.Time) error      { return nil }
func (discardConn) SetReadDeadline(time.Time) error  { return nil }
func (discardConn) SetWriteDeadline(time.Time) error { return nil }

type discardAddr struct{}

func (discardAddr) Network() string { return "test" }
func (discardAddr) String() string  { return "test" }

// TestPullUnreadyBacksOffWriteInterest covers the pull-callback
// backpressure contract: a pull callback returning (0, nil) ("no data
// yet") must move the connection out of ChunkedBodyReady (which reports
// InterestWrite, and would have a driver re-invoke OnWritable every cycle
// forever since a socket with free send-buffer space is always
// write-ready) and into ChunkedBodyUnready (InterestBlock), then back once
// data is actually available — as with a server-sent-events stream whose
// pull callback returns (0, nil) between ticks.
func TestPullUnreadyBacksOffWriteInterest(t *testing.T) {
	c := New(discardConn{}, nil, nil, 0)

	ready := false
	c.Resp = response.FromCallback(response.SizeUnknown, func(buf []byte, pos int64) (int, error) {
		if !ready {
			return 0, nil
		}
		return copy(buf, "hi"), io.EOF
	}, nil)
	response.Freeze(c.Resp)
	c.Req.Method = httpmsg.MethodGET
	c.Req.Major, c.Req.Minor = 1, 1
	c.StatusCode = 200
	c.State = HeadersSending
	c.HeadersSent = false

	// Drive past header-sending so the body state kicks in.
	for i := 0; i < 100 && c.State == HeadersSending; i++ {
		if c.DescribeInterest() == InterestWrite {
			_ = c.OnWritable()
		}
		c.OnIdle()
	}
	if c.State != ChunkedBodyReady {
		t.Fatalf("expected ChunkedBodyReady after headers, got %v", c.State)
	}

	// The pull callback isn't ready yet: OnWritable attempts a pull, finds
	// nothing, and OnIdle must move the connection to ChunkedBodyUnready
	// (InterestBlock) rather than looping on InterestWrite forever.
	_ = c.OnWritable()
	c.OnIdle()
	if c.State != ChunkedBodyUnready {
		t.Fatalf("expected ChunkedBodyUnready while pull is not ready, got %v", c.State)
	}
	if c.DescribeInterest() != InterestBlock {
		t.Fatalf("expected InterestBlock while unready, got %v", c.DescribeInterest())
	}

	// OnIdle alone (no OnWritable call — this is the point: a driver backed
	// off write-readiness for this connection) must notice once data
	// becomes available and drive the pull itself.
	ready = true
	for i := 0; i < 100 && c.State == ChunkedBodyUnready; i++ {
		c.OnIdle()
	}
	if c.State != FootersSending && c.State != FootersSent {
		t.Fatalf("expected the unready state to resolve once data was ready, got %v", c.State)
	}
}

func TestFailTimeoutReportsTimeoutReason(t *testing.T) {
	c, _, notified := newTestConnection(t, func(c *Connection, req *httpmsg.Request, uploadChunk []byte) *response.Response {
		return nil
	})
	c.FailTimeout()
	if c.State != Closed {
		t.Fatalf("state = %v, want Closed", c.State)
	}
	select {
	case reason := <-notified:
		if reason != CloseTimeout {
			t.Errorf("reason = %v, want CloseTimeout", reason)
		}
	case <-time.After(time.Second):
		t.Fatal("notify was not called")
	}
	if c.CloseReason() != CloseTimeout {
		t.Errorf("CloseReason() = %v, want CloseTimeout", c.CloseReason())
	}
}
