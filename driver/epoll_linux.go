//go:build linux

package driver

import "syscall"

// epollBackend wraps a Linux epoll instance with Read/Write-aware
// registration, reporting ready fds as Event{Readable,Writable} pairs
// rather than a bare []int.
type epollBackend struct {
	epfd   int
	events []syscall.EpollEvent
}

// NewReadinessBackend creates the Linux epoll-backed ReadinessBackend.
func NewReadinessBackend() (ReadinessBackend, error) {
	epfd, err := syscall.EpollCreate1(0)
	if err != nil {
		return nil, err
	}
	return &epollBackend{epfd: epfd, events: make([]syscall.EpollEvent, 1024)}, nil
}

func epollMask(interest Interest) uint32 {
	var m uint32 = syscall.EPOLLRDHUP
	if interest&InterestRead != 0 {
		m |= syscall.EPOLLIN
	}
	if interest&InterestWrite != 0 {
		m |= syscall.EPOLLOUT
	}
	return m
}

func (b *epollBackend) Add(fd int, interest Interest) error {
	ev := syscall.EpollEvent{Events: epollMask(interest), Fd: int32(fd)}
	return syscall.EpollCtl(b.epfd, syscall.EPOLL_CTL_ADD, fd, &ev)
}

func (b *epollBackend) Modify(fd int, interest Interest) error {
	ev := syscall.EpollEvent{Events: epollMask(interest), Fd: int32(fd)}
	return syscall.EpollCtl(b.epfd, syscall.EPOLL_CTL_MOD, fd, &ev)
}

func (b *epollBackend) Remove(fd int) error {
	return syscall.EpollCtl(b.epfd, syscall.EPOLL_CTL_DEL, fd, nil)
}

func (b *epollBackend) Wait(timeoutMillis int) ([]Event, error) {
	n, err := syscall.EpollWait(b.epfd, b.events, timeoutMillis)
	if err != nil && err != syscall.EINTR {
		return nil, err
	}
	if n <= 0 {
		return nil, nil
	}
	out := make([]Event, 0, n)
	for i := 0; i < n; i++ {
		ev := b.events[i]
		out = append(out, Event{
			FD:       int(ev.Fd),
			Readable: ev.Events&(syscall.EPOLLIN|syscall.EPOLLRDHUP) != 0,
			Writable: ev.Events&syscall.EPOLLOUT != 0,
		})
	}
	return out, nil
}

func (b *epollBackend) Close() error {
	return syscall.Close(b.epfd)
}
