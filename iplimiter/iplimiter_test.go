package iplimiter

import (
	"errors"
	"net"
	"testing"
)

func tcpAddr(ip string) *net.TCPAddr {
	return &net.TCPAddr{IP: net.ParseIP(ip), Port: 12345}
}

func TestAdmitEnforcesPerIPLimit(t *testing.T) {
	l := New(2)
	a := tcpAddr("10.0.0.1")

	if err := l.Admit(a); err != nil {
		t.Fatalf("Admit #1: %v", err)
	}
	if err := l.Admit(a); err != nil {
		t.Fatalf("Admit #2: %v", err)
	}
	if err := l.Admit(a); !errors.Is(err, ErrLimitExceeded) {
		t.Fatalf("Admit #3 = %v, want ErrLimitExceeded", err)
	}
	if got := l.Count(a); got != 2 {
		t.Fatalf("Count = %d, want 2", got)
	}
}

func TestReleaseDeletesAtZero(t *testing.T) {
	l := New(0)
	a := tcpAddr("10.0.0.2")

	_ = l.Admit(a)
	_ = l.Admit(a)
	if got := l.Len(); got != 1 {
		t.Fatalf("Len = %d, want 1", got)
	}

	l.Release(a)
	if got := l.Count(a); got != 1 {
		t.Fatalf("Count after one Release = %d, want 1", got)
	}

	l.Release(a)
	if got := l.Len(); got != 0 {
		t.Fatalf("Len after dropping to zero = %d, want 0", got)
	}
}

func TestUnlimitedNeverRejects(t *testing.T) {
	l := New(0)
	a := tcpAddr("10.0.0.3")
	for i := 0; i < 1000; i++ {
		if err := l.Admit(a); err != nil {
			t.Fatalf("Admit #%d: %v", i, err)
		}
	}
	if got := l.Count(a); got != 1000 {
		t.Fatalf("Count = %d, want 1000", got)
	}
}

func TestDistinctAddressesTrackedSeparately(t *testing.T) {
	l := New(1)
	a1, a2 := tcpAddr("10.0.0.4"), tcpAddr("10.0.0.5")

	if err := l.Admit(a1); err != nil {
		t.Fatalf("Admit a1: %v", err)
	}
	if err := l.Admit(a2); err != nil {
		t.Fatalf("Admit a2: %v", err)
	}
	if err := l.Admit(a1); !errors.Is(err, ErrLimitExceeded) {
		t.Fatalf("Admit a1 again = %v, want ErrLimitExceeded", err)
	}
}

func TestIPv4MappedAndIPv4CanonicalizeToSameKey(t *testing.T) {
	l := New(1)
	v4 := tcpAddr("192.168.1.1")
	mapped := &net.TCPAddr{IP: net.ParseIP("::ffff:192.168.1.1"), Port: 1}

	if err := l.Admit(v4); err != nil {
		t.Fatalf("Admit v4: %v", err)
	}
	if err := l.Admit(mapped); !errors.Is(err, ErrLimitExceeded) {
		t.Fatalf("Admit v4-mapped = %v, want ErrLimitExceeded (same canonical key)", err)
	}
}
