//go:build !linux

package sendfile

import "net"

// SendFile always reports ErrUnsupported outside Linux: the
// sendfile(2) equivalent on Darwin/BSD takes a different argument order
// and return convention (via golang.org/x/sys/unix), and this project's
// zero-copy fast path only targets Linux, the same footprint as
// driver/epoll_linux.go versus driver/kqueue_darwin.go.
func SendFile(dst net.Conn, filePath string, offset, count int64) (int64, error) {
	return 0, ErrUnsupported
}
