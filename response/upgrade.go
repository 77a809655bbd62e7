package response

import "net"

// UpgradeHandle is handed to an UpgradeHandler once the connection has
// been detached from the normal request/response state machine (the
// Upgrading -> Upgraded transition). Conn is the raw, still-connected
// socket; Extra holds any bytes the client already sent past the end of
// the headers (pipelined upgrade payload the parser had buffered).
type UpgradeHandle struct {
	Conn  net.Conn
	Extra []byte

	closed chan UpgradeClose
}

// UpgradeClose tells the daemon how to dispose of an upgraded connection
// once the handler is done with it.
type UpgradeClose int

const (
	// UpgradeKeepOpen leaves the socket open; ownership of Conn has
	// already passed to the handler, which is expected to close it
	// itself when finished.
	UpgradeKeepOpen UpgradeClose = iota
	// UpgradeForceClose tells the daemon to close the socket immediately
	// (e.g. the handler hit a protocol error and wants the transport torn
	// down rather than lingering).
	UpgradeForceClose
)

// UpgradeHandler takes ownership of an upgraded connection. It normally
// runs in its own goroutine (e.g. a WebSocket frame loop) and calls
// UpgradeAction when it wants to hand control back.
type UpgradeHandler func(urh *UpgradeHandle)

// NewUpgradeHandle wraps conn and any already-buffered bytes for handoff
// to an UpgradeHandler. Used by the connection state machine when it
// transitions into Upgraded.
func NewUpgradeHandle(conn net.Conn, extra []byte) *UpgradeHandle {
	return &UpgradeHandle{Conn: conn, Extra: extra, closed: make(chan UpgradeClose, 1)}
}

// UpgradeAction records the handler's disposition for conn. Non-blocking;
// only the first call has any effect.
func UpgradeAction(urh *UpgradeHandle, action UpgradeClose) {
	select {
	case urh.closed <- action:
	default:
	}
}

// Wait blocks until UpgradeAction has been called, returning the recorded
// disposition. Used by the daemon's cleanup path to decide whether to
// close the transport.
func (u *UpgradeHandle) Wait() UpgradeClose {
	return <-u.closed
}

// TryWait reports whether UpgradeAction has been called yet without
// blocking. Used by the connection's idle step, which must never block.
func (u *UpgradeHandle) TryWait() (action UpgradeClose, done bool) {
	select {
	case a := <-u.closed:
		return a, true
	default:
		return 0, false
	}
}
