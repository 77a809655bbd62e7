package conn

import (
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/searchktools/corehttpd/core/sendfile"
	"github.com/searchktools/corehttpd/httpmsg"
	"github.com/searchktools/corehttpd/pool"
	"github.com/searchktools/corehttpd/response"
)

// Unknown marks an upload-remaining count that is not known in advance
// (chunked request bodies, or a response whose total size is unknown).
const Unknown int64 = -1

// RequestCallback is invoked once with empty upload data immediately after
// headers are processed, and again as upload bytes arrive.
// It returns the Response to queue, or nil to keep reading the body.
type RequestCallback func(c *Connection, req *httpmsg.Request, uploadChunk []byte) *response.Response

// Connection is the per-client request/response state machine.
// It owns exactly one socket and, for the duration of one HTTP message
// cycle, one pool.Pool.
type Connection struct {
	// Identity/ownership.
	Sock       net.Conn
	RemoteAddr net.Addr
	FD         int // -1 unless the socket exposes a raw fd (sendfile fast path)

	// Pool — allocated lazily on first read, freed when the connection
	// returns to Init after a response completes.
	Pool *pool.Pool

	// Parsed request, valid from HeadersReceived onward.
	Req httpmsg.Request

	// Request body accounting.
	UploadRemaining int64
	PeerClosedRead  bool
	BodyComplete    bool
	chunkDec        *httpmsg.ChunkDecoder

	// Read buffer: a view into Pool.
	readBuf    []byte
	readFilled int

	// Response side.
	Resp             *response.Response
	StatusCode       int
	ResponseWritePos int64
	ContinueSentPos  int
	HeadersSent      bool
	pullStage        []byte
	pullDone         bool
	pullUnready      bool // last Pull() call returned (0, nil): no data yet
	chunkedOutput    bool
	fileReader       *os.File

	// Write buffer: serialized status line + headers, a view into Pool.
	writeBuf           []byte
	sendCur            int
	keepAlive          bool
	closeAfterResponse bool

	State State

	// Scheduling.
	Membership     Membership
	CreatedAt      time.Time
	LastActivity   time.Time
	Timeout        time.Duration // 0 = no timeout
	suspendPending bool
	resumePending  bool

	// Upgrade.
	upgradeHandle *response.UpgradeHandle

	callback RequestCallback
	notify   func(c *Connection, reason CloseReason)

	closeReason CloseReason
}

// New creates a Connection wrapping an already-accepted socket. timeout is
// the daemon's default connection timeout (0 = none).
func New(sock net.Conn, cb RequestCallback, notify func(*Connection, CloseReason), timeout time.Duration) *Connection {
	c := &Connection{
		Sock:         sock,
		RemoteAddr:   sock.RemoteAddr(),
		FD:           -1,
		State:        Init,
		CreatedAt:    time.Now(),
		LastActivity: time.Now(),
		Timeout:      timeout,
		callback:     cb,
		notify:       notify,
	}
	return c
}

// DescribeInterest reports what the driver should wait for, derived fresh
// from State.
func (c *Connection) DescribeInterest() Interest {
	switch c.State {
	case Closed, UpgradeClosed:
		return InterestCleanup
	case Upgrading, Upgraded:
		return InterestBlock
	case ContinueSending, HeadersSending, NormalBodyReady, ChunkedBodyReady, FootersSending:
		return InterestWrite
	case NormalBodyUnready, ChunkedBodyUnready:
		return InterestBlock
	default:
		return InterestRead
	}
}

func (c *Connection) ensurePool(max uint32) {
	if c.Pool == nil {
		c.Pool = pool.New(max)
	}
}

// OnReadable performs a single recv into the tail of the read buffer,
// growing it if necessary, then drives the parser. Never blocks: callers
// must only invoke this when the driver has observed read-readiness.
func (c *Connection) OnReadable(poolSize uint32) error {
	switch c.State {
	case Init, UrlReceived, HeaderPartReceived, BodyReceiving:
	default:
		return nil
	}

	c.ensurePool(poolSize)
	if c.readBuf == nil {
		initial := uint32(4096)
		if c.Pool.Max() < initial {
			initial = c.Pool.Max()
		}
		buf, err := c.Pool.Allocate(initial, false)
		if err != nil {
			c.failWithStatus(CloseParseError, c.overflowStatus())
			return nil
		}
		c.readBuf = buf
	}
	if c.readFilled == len(c.readBuf) {
		grown, ok := c.Pool.TryGrowLast(c.readBuf, uint32(len(c.readBuf)*2))
		if !ok {
			c.failWithStatus(CloseParseError, c.overflowStatus())
			return nil
		}
		c.readBuf = grown
	}

	n, err := c.Sock.Read(c.readBuf[c.readFilled:])
	if n > 0 {
		c.readFilled += n
		c.LastActivity = time.Now()
	}
	if err != nil {
		if err == io.EOF {
			c.PeerClosedRead = true
		} else if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return nil
		} else {
			c.fail(ClosePeerDisconnect)
			return nil
		}
	}

	return c.drive()
}

// drive runs the parser/body-ingestion steps reachable from newly arrived
// bytes. It makes the request-parsing transitions itself (Init ->
// UrlReceived -> HeaderPartReceived -> HeadersReceived, or Closed on a
// parse error); in BodyReceiving it feeds body bytes to ingestBody, which
// invokes the application callback. Later transitions happen in OnIdle.
func (c *Connection) drive() error {
	switch c.State {
	case Init:
		n, err := httpmsg.ParseRequestLine(&c.Req, c.readBuf[:c.readFilled])
		if err != nil {
			c.failWithStatus(CloseParseError, 400)
			return nil
		}
		if n == 0 {
			return nil
		}
		c.consumeRead(n)
		c.State = UrlReceived
		fallthrough

	case UrlReceived, HeaderPartReceived:
		res, err := httpmsg.ParseHeaders(c.Pool, &c.Req, c.readBuf[:c.readFilled])
		if err != nil {
			c.failWithStatus(CloseParseError, 400)
			return nil
		}
		if res.Consumed > 0 {
			c.consumeRead(res.Consumed)
		}
		if !res.Done {
			if len(c.Req.Headers) > 0 {
				c.State = HeaderPartReceived
			}
			return nil
		}
		if qerr := httpmsg.ParseQuery(c.Pool, &c.Req, c.Req.RawQuery); qerr != nil {
			c.failWithStatus(CloseParseError, 400)
			return nil
		}
		c.State = HeadersReceived

	case BodyReceiving:
		c.ingestBody()
	}
	return nil
}

// overflowStatus picks 414 if the read buffer overflowed before the
// request line finished parsing, 413 otherwise.
func (c *Connection) overflowStatus() int {
	if c.State == Init {
		return 414
	}
	return 413
}

func (c *Connection) consumeRead(n int) {
	copy(c.readBuf, c.readBuf[n:c.readFilled])
	c.readFilled -= n
}

func (c *Connection) ingestBody() {
	if c.UploadRemaining == Unknown && c.chunkDec != nil {
		out, n, err := c.chunkDec.Step(c.readBuf[:c.readFilled])
		if err != nil {
			if c.Resp == nil {
				c.failWithStatus(CloseParseError, 400)
			} else {
				c.fail(CloseParseError)
			}
			return
		}
		if n > 0 {
			c.consumeRead(n)
		}
		if len(out) > 0 && c.Resp == nil {
			c.invokeCallback(out)
		}
		if c.chunkDec.State == httpmsg.ChunkDone {
			c.BodyComplete = true
		}
		return
	}

	avail := c.readFilled
	if c.UploadRemaining >= 0 && int64(avail) > c.UploadRemaining {
		avail = int(c.UploadRemaining)
	}
	if avail > 0 {
		chunk := c.readBuf[:avail]
		if c.UploadRemaining >= 0 {
			c.UploadRemaining -= int64(avail)
		}
		c.consumeRead(avail)
		if c.Resp == nil {
			c.invokeCallback(chunk)
		}
	}
	if c.UploadRemaining == 0 || (c.UploadRemaining == Unknown && c.PeerClosedRead) {
		c.BodyComplete = true
	}
}

func (c *Connection) invokeCallback(chunk []byte) {
	if c.callback == nil {
		return
	}
	if r := c.callback(c, &c.Req, chunk); r != nil {
		c.queueResponse(r)
	}
}

func (c *Connection) queueResponse(r *response.Response) {
	response.Freeze(r)
	c.Resp = r
	if c.StatusCode == 0 {
		c.StatusCode = 200
	}
}

// SetStatus lets the application override the default 200 status before
// the headers are serialized; a no-op once HeadersSending has begun.
func (c *Connection) SetStatus(code int) {
	if c.State < HeadersSending {
		c.StatusCode = code
	}
}

// OnWritable attempts to send the next byte region: the 100-Continue
// prefix, the serialized response headers, the response body, or chunked
// trailers. Never blocks.
func (c *Connection) OnWritable() error {
	switch c.State {
	case ContinueSending:
		return c.writeContinue()
	case HeadersSending:
		return c.writeHeaders()
	case NormalBodyReady:
		return c.writeNormalBody()
	case ChunkedBodyReady:
		return c.writeChunkedBody()
	case FootersSending:
		return c.writeFooters()
	default:
		return nil
	}
}

const continuePreface = "HTTP/1.1 100 Continue\r\n\r\n"

func (c *Connection) writeContinue() error {
	n, err := io.WriteString(c.Sock, continuePreface[c.ContinueSentPos:])
	if n > 0 {
		c.ContinueSentPos += n
		c.LastActivity = time.Now()
	}
	if err != nil && !isWouldBlock(err) {
		c.fail(ClosePeerDisconnect)
	}
	return nil
}

func (c *Connection) writeHeaders() error {
	if c.writeBuf == nil {
		c.writeBuf = c.serializeHeaders()
	}
	n, err := c.Sock.Write(c.writeBuf[c.sendCur:])
	if n > 0 {
		c.sendCur += n
		c.LastActivity = time.Now()
	}
	if err != nil && !isWouldBlock(err) {
		c.fail(ClosePeerDisconnect)
		return nil
	}
	if c.sendCur == len(c.writeBuf) {
		c.HeadersSent = true
	}
	return nil
}

func (c *Connection) serializeHeaders() []byte {
	var buf []byte
	reason := statusReason(c.StatusCode)
	buf = append(buf, fmt.Sprintf("HTTP/1.1 %d %s\r\n", c.StatusCode, reason)...)

	chunked := c.Resp.Size == response.SizeUnknown && c.Req.HTTP11()
	_, hasCL := c.Resp.GetHeader("Content-Length")
	if !hasCL && c.Resp.Size != response.SizeUnknown && !chunked {
		buf = append(buf, fmt.Sprintf("Content-Length: %d\r\n", c.Resp.Size)...)
	}
	if chunked {
		buf = append(buf, "Transfer-Encoding: chunked\r\n"...)
	} else if c.Resp.Size == response.SizeUnknown {
		buf = append(buf, "Connection: close\r\n"...)
		c.closeAfterResponse = true
	}
	if _, hasDate := c.Resp.GetHeader("Date"); !hasDate {
		buf = append(buf, "Date: "...)
		buf = append(buf, time.Now().UTC().Format(http1Date)...)
		buf = append(buf, "\r\n"...)
	}
	if v, ok := c.Req.Header("Connection"); ok && httpmsg.EqualFoldBytes(v, "close") {
		buf = append(buf, "Connection: close\r\n"...)
		c.closeAfterResponse = true
	}
	for _, h := range c.Resp.GetHeaders() {
		buf = append(buf, h.Name...)
		buf = append(buf, ": "...)
		buf = append(buf, h.Value...)
		buf = append(buf, "\r\n"...)
	}
	buf = append(buf, "\r\n"...)

	c.chunkedOutput = chunked
	if c.Req.Method == httpmsg.MethodHEAD {
		c.ResponseWritePos = c.Resp.Size
	}
	return buf
}

const http1Date = "Mon, 02 Jan 2006 15:04:05 GMT"

func (c *Connection) writeNormalBody() error {
	switch c.Resp.Kind() {
	case response.KindFixed:
		body := c.Resp.Buffer()
		n, err := c.Sock.Write(body[c.ResponseWritePos:])
		if n > 0 {
			c.ResponseWritePos += int64(n)
			c.LastActivity = time.Now()
		}
		if err != nil && !isWouldBlock(err) {
			c.fail(ClosePeerDisconnect)
		}
	case response.KindFile:
		return c.writeFileBody()
	case response.KindPull:
		return c.writePullBody(false)
	}
	return nil
}

func (c *Connection) writeFileBody() error {
	path, offset, length := c.Resp.File()
	remaining := length - c.ResponseWritePos
	if remaining <= 0 {
		return nil
	}

	if n, err := sendfile.SendFile(c.Sock, path, offset+c.ResponseWritePos, remaining); err == nil {
		if c.fileReader != nil {
			c.fileReader.Close()
			c.fileReader = nil
		}
		if n > 0 {
			c.ResponseWritePos += n
			c.LastActivity = time.Now()
		}
		return nil
	}

	// sendfile.ErrUnsupported: dst exposes no raw fd (TLS, net.Pipe in
	// tests) or this isn't Linux. Fall back to a plain read/write loop.
	if c.fileReader == nil {
		f, err := openFile(path)
		if err != nil {
			c.fail(CloseApplicationError)
			return nil
		}
		c.fileReader = f
		c.fileReader.Seek(offset+c.ResponseWritePos, io.SeekStart)
	}
	buf := make([]byte, 32*1024)
	remaining = length - c.ResponseWritePos
	if int64(len(buf)) > remaining {
		buf = buf[:remaining]
	}
	n, rerr := c.fileReader.Read(buf)
	if n > 0 {
		wn, werr := c.Sock.Write(buf[:n])
		c.ResponseWritePos += int64(wn)
		c.LastActivity = time.Now()
		if werr != nil && !isWouldBlock(werr) {
			c.fail(ClosePeerDisconnect)
			return nil
		}
	}
	if rerr != nil && rerr != io.EOF {
		c.fail(CloseApplicationError)
		return nil
	}
	if c.ResponseWritePos >= length {
		c.fileReader.Close()
		c.fileReader = nil
	}
	return nil
}

func (c *Connection) writePullBody(chunked bool) error {
	const blockSize = 16 * 1024
	if c.pullStage == nil {
		c.pullStage = make([]byte, blockSize)
	}
	n, err := c.Resp.Pull()(c.pullStage, c.ResponseWritePos)
	c.pullUnready = n == 0 && err == nil
	if n > 0 {
		var out []byte
		if chunked {
			out = httpmsg.WriteChunk(nil, c.pullStage[:n])
		} else {
			out = c.pullStage[:n]
		}
		wn, werr := c.Sock.Write(out)
		_ = wn
		c.ResponseWritePos += int64(n)
		c.LastActivity = time.Now()
		if werr != nil && !isWouldBlock(werr) {
			c.fail(ClosePeerDisconnect)
			return nil
		}
	}
	if err == io.EOF {
		c.pullDone = true
	} else if err != nil {
		c.fail(CloseApplicationError)
	}
	return nil
}

func (c *Connection) writeChunkedBody() error {
	return c.writePullBody(true)
}

func (c *Connection) writeFooters() error {
	if !c.chunkedOutput {
		return nil
	}
	if c.writeBuf == nil || c.sendCur >= len(c.writeBuf) {
		c.writeBuf = httpmsg.WriteLastChunk(nil, c.Resp.Footers())
		c.sendCur = 0
	}
	n, err := c.Sock.Write(c.writeBuf[c.sendCur:])
	if n > 0 {
		c.sendCur += n
		c.LastActivity = time.Now()
	}
	if err != nil && !isWouldBlock(err) {
		c.fail(ClosePeerDisconnect)
	}
	return nil
}

// OnIdle performs the state-machine step. Every transition from
// HeadersReceived onward occurs here, except a move to Closed on an I/O or
// parse error, which OnReadable/OnWritable may also make; it may close the
// socket and move the connection to the cleanup DLL.
func (c *Connection) OnIdle() {
	switch c.State {
	case UrlReceived, HeaderPartReceived:
		// waiting on more header bytes; nothing to transition.

	case HeadersReceived:
		c.processHeaders()
		c.State = HeadersProcessed

	case HeadersProcessed:
		if c.expectContinue() {
			c.State = ContinueSending
		} else {
			c.State = BodyReceiving
			c.invokeCallback(nil)
		}

	case ContinueSending:
		if c.ContinueSentPos == len(continuePreface) {
			c.State = BodyReceiving
			c.invokeCallback(nil)
		}

	case BodyReceiving:
		// Bytes past the header block can already be sitting in readBuf
		// (headers and the whole body arrived in one read), with no
		// further read-readiness event coming to trigger drive() again —
		// so drain whatever's buffered on every tick, not just when a
		// fresh OnReadable hands drive() new bytes.
		c.ingestBody()
		if c.BodyComplete {
			c.State = BodyReceived
		}

	case BodyReceived:
		if c.Resp != nil {
			c.writeBuf = nil
			c.sendCur = 0
			c.State = HeadersSending
		}

	case HeadersSending:
		if c.HeadersSent {
			c.writeBuf = nil
			c.sendCur = 0
			switch {
			case c.Resp.Kind() == response.KindUpgrade:
				c.State = Upgrading
			case c.Req.Method == httpmsg.MethodHEAD || c.Resp.Size == 0:
				c.State = FootersSending
			case c.chunkedOutput:
				c.State = ChunkedBodyReady
			default:
				c.State = NormalBodyReady
			}
		}

	case NormalBodyReady:
		if c.bodyDone() {
			c.State = FootersSending
		} else if c.pullUnready {
			// Pull() returned "no data yet" on the last OnWritable call:
			// stop asking the driver for write-readiness (which a socket
			// with free send-buffer space would grant every cycle) and
			// let the idle step alone re-poll until data shows up.
			c.State = NormalBodyUnready
		}

	case ChunkedBodyReady:
		if c.pullDone {
			c.State = FootersSending
		} else if c.pullUnready {
			c.State = ChunkedBodyUnready
		}

	case NormalBodyUnready:
		_ = c.writeNormalBody()
		if c.bodyDone() {
			c.State = FootersSending
		} else if !c.pullUnready {
			c.State = NormalBodyReady
		}

	case ChunkedBodyUnready:
		_ = c.writeChunkedBody()
		if c.pullDone {
			c.State = FootersSending
		} else if !c.pullUnready {
			c.State = ChunkedBodyReady
		}

	case FootersSending:
		if c.writeBuf != nil && c.sendCur >= len(c.writeBuf) {
			c.State = FootersSent
		} else if !c.chunkedOutput {
			c.State = FootersSent
		}

	case FootersSent:
		c.finishMessage()

	case Upgrading:
		c.startUpgrade()
		c.State = Upgraded

	case Upgraded:
		if action, done := c.upgradeHandle.TryWait(); done {
			if action == response.UpgradeForceClose {
				c.fail(CloseNormal)
			} else {
				c.State = UpgradeClosed
			}
		}

	case UpgradeClosed:
		c.fail(CloseNormal)
	}
}

// startUpgrade hands the raw socket to the Response's upgrade handler,
// called exactly once per connection, after the 101 status line and
// headers have been flushed. Any bytes already buffered past the header
// block (pipelined upgrade payload) are handed along as Extra.
func (c *Connection) startUpgrade() {
	extra := append([]byte(nil), c.readBuf[:c.readFilled]...)
	c.readBuf = nil
	c.readFilled = 0
	c.upgradeHandle = response.NewUpgradeHandle(c.Sock, extra)
	handler := c.Resp.UpgradeHandlerFunc()
	if handler != nil {
		go handler(c.upgradeHandle)
	}
}

func (c *Connection) bodyDone() bool {
	switch c.Resp.Kind() {
	case response.KindFixed:
		return c.ResponseWritePos >= c.Resp.Size
	case response.KindFile:
		_, _, length := c.Resp.File()
		return c.ResponseWritePos >= length
	case response.KindPull:
		return c.pullDone
	}
	return true
}

func (c *Connection) processHeaders() {
	if v, ok := c.Req.Header("Content-Length"); ok {
		var n int64
		for _, d := range v {
			if d < '0' || d > '9' {
				n = -2
				break
			}
			n = n*10 + int64(d-'0')
		}
		if n >= 0 {
			c.UploadRemaining = n
		} else {
			c.UploadRemaining = 0
		}
	} else if v, ok := c.Req.Header("Transfer-Encoding"); ok && httpmsg.EqualFoldBytes(v, "chunked") {
		c.UploadRemaining = Unknown
		c.chunkDec = httpmsg.NewChunkDecoder()
	} else {
		c.UploadRemaining = 0
	}
	if c.UploadRemaining == 0 {
		c.BodyComplete = true
	}

	if v, ok := c.Req.Header("Connection"); ok && httpmsg.EqualFoldBytes(v, "close") {
		c.closeAfterResponse = true
	}
	c.keepAlive = c.Req.HTTP11() && !c.closeAfterResponse
}

func (c *Connection) expectContinue() bool {
	if c.Resp != nil {
		return false
	}
	v, ok := c.Req.Header("Expect")
	return ok && httpmsg.EqualFoldBytes(v, "100-continue")
}

func (c *Connection) finishMessage() {
	if c.Resp != nil {
		c.Resp.Destroy()
		c.Resp = nil
	}
	if c.Pool != nil {
		c.Pool.Destroy()
		c.Pool = nil
	}
	c.readBuf = nil
	c.readFilled = 0
	c.writeBuf = nil
	c.sendCur = 0
	c.ResponseWritePos = 0
	c.StatusCode = 0
	c.ContinueSentPos = 0
	c.HeadersSent = false
	c.pullDone = false
	c.pullUnready = false
	c.pullStage = nil
	c.chunkDec = nil
	c.Req = httpmsg.Request{}

	if c.keepAlive && !c.closeAfterResponse && !c.PeerClosedRead {
		c.State = Init
		return
	}
	c.fail(CloseNormal)
}

// failWithStatus writes a minimal, bodyless 413/414/400 status-line
// response before closing: the write is best-effort and blocking, which
// is acceptable because the connection is already being torn down and
// will not be driven again.
func (c *Connection) failWithStatus(reason CloseReason, status int) {
	if c.State == Closed {
		return
	}
	msg := fmt.Sprintf("HTTP/1.1 %d %s\r\nConnection: close\r\nContent-Length: 0\r\n\r\n", status, statusReason(status))
	_ = c.Sock.SetWriteDeadline(time.Now().Add(2 * time.Second))
	_, _ = io.WriteString(c.Sock, msg)
	c.fail(reason)
}

func (c *Connection) fail(reason CloseReason) {
	if c.State == Closed {
		return
	}
	c.closeReason = reason
	c.State = Closed
	c.Membership = MembershipCleanup
	c.Sock.Close()
	if c.notify != nil {
		c.notify(c, reason)
	}
}

// FailTimeout closes the connection with CloseTimeout, for drivers that
// detect an expired last-activity deadline outside the normal read/write
// path.
func (c *Connection) FailTimeout() { c.fail(CloseTimeout) }

// CloseReason reports why a Closed connection was closed.
func (c *Connection) CloseReason() CloseReason { return c.closeReason }

// Suspend moves the connection out of the active/timeout DLLs; legal only
// from inside the application callback. Takes effect at the next
// SettlePendingSuspendResume, not immediately.
func (c *Connection) Suspend() { c.suspendPending = true }

// Resume flags the connection for reactivation at the top of the driver's
// next cycle.
func (c *Connection) Resume() { c.resumePending = true }

func (c *Connection) SuspendPending() bool { return c.suspendPending }
func (c *Connection) ResumePending() bool  { return c.resumePending }
func (c *Connection) ClearSuspendResume()  { c.suspendPending, c.resumePending = false, false }

// SettlePendingSuspendResume applies a queued Suspend/Resume request,
// moving the connection between the active and suspended membership sets.
// Drivers call this once per cycle, before deciding whether to drive the
// connection at all: Suspend/Resume only take effect here, not at the
// point the application called them, so a driver mid-cycle never sees a
// connection change membership out from under it.
func (c *Connection) SettlePendingSuspendResume() {
	if c.suspendPending {
		c.suspendPending = false
		if c.Membership != MembershipCleanup {
			c.Membership = MembershipSuspended
		}
	}
	if c.resumePending {
		c.resumePending = false
		if c.Membership == MembershipSuspended {
			c.Membership = MembershipActive
			// The timeout clock was halted while suspended; don't let the
			// elapsed suspension count against it.
			c.LastActivity = time.Now()
		}
	}
}

// Suspended reports whether the connection is currently parked out of the
// active set. Drivers must not call OnReadable/OnWritable/OnIdle on a
// suspended connection, must not count its timeout, and — where the
// backend supports it — should unregister its fd until Resume.
func (c *Connection) Suspended() bool { return c.Membership == MembershipSuspended }

func isWouldBlock(err error) bool {
	ne, ok := err.(net.Error)
	return ok && ne.Timeout()
}

func openFile(path string) (*os.File, error) {
	return os.Open(path)
}
