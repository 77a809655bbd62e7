package driver

import (
	"errors"
	"net"
	"syscall"
)

// ErrNoRawFD is returned when a socket does not expose a raw file
// descriptor (e.g. it is wrapped in a TLS session, or it is a net.Pipe
// used in tests) — such connections can still be driven by
// ThreadPerConnDriver, which never needs the fd directly.
var ErrNoRawFD = errors.New("driver: connection does not expose a raw file descriptor")

type syscallConner interface {
	SyscallConn() (syscall.RawConn, error)
}

// rawFD extracts the OS file descriptor backing c, if any, without
// duplicating it: syscall.RawConn.Control runs the closure with the fd
// still owned by the original *net.TCPConn.
func rawFD(c net.Conn) (int, error) {
	scc, ok := c.(syscallConner)
	if !ok {
		return -1, ErrNoRawFD
	}
	raw, err := scc.SyscallConn()
	if err != nil {
		return -1, err
	}
	var fd int
	if cerr := raw.Control(func(p uintptr) { fd = int(p) }); cerr != nil {
		return -1, cerr
	}
	return fd, nil
}
