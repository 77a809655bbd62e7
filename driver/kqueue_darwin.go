//go:build darwin

package driver

import "syscall"

// kqueueBackend is epollBackend's Darwin counterpart: per-fd Read/Write
// registration and Event{Readable,Writable} results instead of a bare fd
// list.
type kqueueBackend struct {
	kqfd   int
	events []syscall.Kevent_t
}

// NewReadinessBackend creates the Darwin kqueue-backed ReadinessBackend.
func NewReadinessBackend() (ReadinessBackend, error) {
	kqfd, err := syscall.Kqueue()
	if err != nil {
		return nil, err
	}
	return &kqueueBackend{kqfd: kqfd, events: make([]syscall.Kevent_t, 1024)}, nil
}

func (b *kqueueBackend) changeList(fd int, interest Interest, flags uint16) []syscall.Kevent_t {
	var changes []syscall.Kevent_t
	if interest&InterestRead != 0 {
		changes = append(changes, syscall.Kevent_t{Ident: uint64(fd), Filter: syscall.EVFILT_READ, Flags: flags})
	}
	if interest&InterestWrite != 0 {
		changes = append(changes, syscall.Kevent_t{Ident: uint64(fd), Filter: syscall.EVFILT_WRITE, Flags: flags})
	}
	return changes
}

func (b *kqueueBackend) Add(fd int, interest Interest) error {
	changes := b.changeList(fd, interest, syscall.EV_ADD|syscall.EV_ENABLE)
	if len(changes) == 0 {
		return nil
	}
	_, err := syscall.Kevent(b.kqfd, changes, nil, nil)
	return err
}

func (b *kqueueBackend) Modify(fd int, interest Interest) error {
	// kqueue has no single "replace interest" op; remove both filters and
	// re-add the ones currently wanted.
	_ = b.Remove(fd)
	return b.Add(fd, interest)
}

func (b *kqueueBackend) Remove(fd int) error {
	changes := []syscall.Kevent_t{
		{Ident: uint64(fd), Filter: syscall.EVFILT_READ, Flags: syscall.EV_DELETE},
		{Ident: uint64(fd), Filter: syscall.EVFILT_WRITE, Flags: syscall.EV_DELETE},
	}
	_, err := syscall.Kevent(b.kqfd, changes, nil, nil)
	return err
}

func (b *kqueueBackend) Wait(timeoutMillis int) ([]Event, error) {
	var ts *syscall.Timespec
	if timeoutMillis >= 0 {
		ts = &syscall.Timespec{
			Sec:  int64(timeoutMillis / 1000),
			Nsec: int64((timeoutMillis % 1000) * 1000000),
		}
	}
	n, err := syscall.Kevent(b.kqfd, nil, b.events, ts)
	if err != nil && err != syscall.EINTR {
		return nil, err
	}
	if n <= 0 {
		return nil, nil
	}
	byFD := make(map[int]*Event, n)
	order := make([]int, 0, n)
	for i := 0; i < n; i++ {
		ev := b.events[i]
		fd := int(ev.Ident)
		e, ok := byFD[fd]
		if !ok {
			e = &Event{FD: fd}
			byFD[fd] = e
			order = append(order, fd)
		}
		switch ev.Filter {
		case syscall.EVFILT_READ:
			e.Readable = true
		case syscall.EVFILT_WRITE:
			e.Writable = true
		}
	}
	out := make([]Event, 0, len(order))
	for _, fd := range order {
		out = append(out, *byFD[fd])
	}
	return out, nil
}

func (b *kqueueBackend) Close() error {
	return syscall.Close(b.kqfd)
}
