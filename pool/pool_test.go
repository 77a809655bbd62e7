package pool

import "testing"

func TestAllocateLayoutNonOverlapping(t *testing.T) {
	p := New(64)

	a, err := p.Allocate(10, false)
	if err != nil {
		t.Fatalf("allocate a: %v", err)
	}
	b, err := p.Allocate(10, false)
	if err != nil {
		t.Fatalf("allocate b: %v", err)
	}
	c, err := p.Allocate(4, true)
	if err != nil {
		t.Fatalf("allocate c (from end): %v", err)
	}

	for i := range a {
		a[i] = 'a'
	}
	for i := range b {
		b[i] = 'b'
	}
	for i := range c {
		c[i] = 'c'
	}

	if string(a) != "aaaaaaaaaa" || string(b) != "bbbbbbbbbb" || string(c) != "cccc" {
		t.Fatalf("writes clobbered overlapping regions: a=%q b=%q c=%q", a, b, c)
	}
}

func TestAllocateFailsWhenExhausted(t *testing.T) {
	p := New(16)
	if _, err := p.Allocate(8, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := p.Allocate(9, false); err != ErrPoolExhausted {
		t.Fatalf("expected ErrPoolExhausted, got %v", err)
	}
	if _, err := p.Allocate(8, false); err != nil {
		t.Fatalf("remaining 8 bytes should still be allocatable: %v", err)
	}
}

func TestTryGrowLastHotPath(t *testing.T) {
	p := New(32)
	buf, err := p.Allocate(4, false)
	if err != nil {
		t.Fatal(err)
	}
	copy(buf, "abcd")

	grown, ok := p.TryGrowLast(buf, 8)
	if !ok {
		t.Fatal("expected in-place grow to succeed")
	}
	if string(grown[:4]) != "abcd" {
		t.Fatalf("grow must preserve existing bytes, got %q", grown[:4])
	}
	if p.FreeRegionSize() != 24 {
		t.Fatalf("free region size = %d, want 24", p.FreeRegionSize())
	}
}

func TestTryGrowLastRejectsNonMostRecent(t *testing.T) {
	p := New(32)
	first, _ := p.Allocate(4, false)
	_, _ = p.Allocate(4, false)

	if _, ok := p.TryGrowLast(first, 8); ok {
		t.Fatal("growing a non-most-recent allocation must fail")
	}
}

func TestShrinkMostRecentNeverFails(t *testing.T) {
	p := New(16)
	buf, _ := p.Allocate(12, false)
	before := p.FreeRegionSize()

	shrunk, ok := p.TryGrowLast(buf, 4)
	if !ok {
		t.Fatal("shrinking the most recent allocation must always succeed")
	}
	if len(shrunk) != 4 {
		t.Fatalf("len = %d, want 4", len(shrunk))
	}
	if p.FreeRegionSize() != before+8 {
		t.Fatalf("free region size = %d, want %d", p.FreeRegionSize(), before+8)
	}
}

func TestReallocateNonMostRecentLeaksAndCopies(t *testing.T) {
	p := New(64)
	first, _ := p.Allocate(4, false)
	copy(first, "abcd")
	_, _ = p.Allocate(4, false) // first is no longer most-recent

	grown, err := p.Reallocate(first, 4, 8)
	if err != nil {
		t.Fatalf("reallocate: %v", err)
	}
	if string(grown[:4]) != "abcd" {
		t.Fatalf("reallocate must copy old contents, got %q", grown[:4])
	}
	if p.Leaked != 4 {
		t.Fatalf("Leaked = %d, want 4", p.Leaked)
	}
}

func TestFreeRegionSizeMonotonic(t *testing.T) {
	p := New(32)
	sizes := []uint32{}
	sizes = append(sizes, p.FreeRegionSize())
	for i := 0; i < 3; i++ {
		if _, err := p.Allocate(4, false); err != nil {
			t.Fatal(err)
		}
		sizes = append(sizes, p.FreeRegionSize())
	}
	for i := 1; i < len(sizes); i++ {
		if sizes[i] >= sizes[i-1] {
			t.Fatalf("free region size did not decrease: %v", sizes)
		}
	}
}
