//go:build linux

package sendfile

import (
	"net"
	"syscall"
)

type syscallConner interface {
	SyscallConn() (syscall.RawConn, error)
}

// rawFD extracts the OS file descriptor backing dst, if any, without
// duplicating it: syscall.RawConn.Control runs the closure with the fd
// still owned by the original *net.TCPConn.
func rawFD(dst net.Conn) (int, error) {
	scc, ok := dst.(syscallConner)
	if !ok {
		return -1, ErrUnsupported
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

// SendFile transfers up to count bytes of filePath (starting at offset)
// directly to dst via the sendfile(2) syscall. It returns how many
// bytes were actually written, which may be less than count on a short
// write (dst's send buffer full) or zero with a nil error on EAGAIN —
// callers drive it the same way they drive a plain Write, calling again
// once the connection is writable rather than busy-looping here.
func SendFile(dst net.Conn, filePath string, offset, count int64) (int64, error) {
	connFd, err := rawFD(dst)
	if err != nil {
		return 0, ErrUnsupported
	}
	file, err := globalFileCache.Get(filePath)
	if err != nil {
		return 0, err
	}
	fileFd := int(file.Fd())

	off := offset
	n, err := syscall.Sendfile(connFd, fileFd, &off, int(count))
	if err != nil {
		if err == syscall.EAGAIN || err == syscall.EINTR {
			return 0, nil
		}
		return 0, err
	}
	return int64(n), nil
}
