package response

import (
	"errors"
	"testing"
)

func TestAddHeaderRoundTrip(t *testing.T) {
	r := FromBuffer([]byte("hello"))
	if err := r.AddHeader("Content-Type", "text/plain"); err != nil {
		t.Fatalf("AddHeader: %v", err)
	}
	if err := r.AddHeader("X-Extra", "one"); err != nil {
		t.Fatalf("AddHeader: %v", err)
	}
	v, ok := r.GetHeader("Content-Type")
	if !ok || v != "text/plain" {
		t.Fatalf("GetHeader Content-Type = %q, %v", v, ok)
	}
	hdrs := r.GetHeaders()
	if len(hdrs) != 2 {
		t.Fatalf("len(GetHeaders()) = %d, want 2", len(hdrs))
	}
	if string(hdrs[0].Name) != "Content-Type" || string(hdrs[1].Name) != "X-Extra" {
		t.Fatalf("headers out of order: %+v", hdrs)
	}
}

func TestAddHeaderRejectsControlCharacters(t *testing.T) {
	r := FromBuffer(nil)
	if err := r.AddHeader("X-Bad", "line1\r\nline2"); !errors.Is(err, ErrInvalidHeader) {
		t.Fatalf("err = %v, want ErrInvalidHeader", err)
	}
}

func TestFreezeRejectsMutationAfterQueue(t *testing.T) {
	r := FromBuffer([]byte("x"))
	if err := r.AddHeader("Before", "ok"); err != nil {
		t.Fatalf("AddHeader before freeze: %v", err)
	}
	Freeze(r)
	if err := r.AddHeader("After", "no"); !errors.Is(err, ErrFrozen) {
		t.Fatalf("err = %v, want ErrFrozen", err)
	}
	if err := r.DelHeader("Before", "ok"); !errors.Is(err, ErrFrozen) {
		t.Fatalf("DelHeader err = %v, want ErrFrozen", err)
	}
	if _, ok := r.GetHeader("Before"); !ok {
		t.Fatal("GetHeader must still work once frozen")
	}
}

func TestRefCountDestroyRunsFreeOnlyAtZero(t *testing.T) {
	freed := 0
	r := FromCallback(SizeUnknown, func(buf []byte, pos int64) (int, error) {
		return 0, nil
	}, func() { freed++ })

	r.IncRef()
	if got := r.RefCount(); got != 2 {
		t.Fatalf("RefCount = %d, want 2", got)
	}

	r.Destroy()
	if freed != 0 {
		t.Fatalf("freeFn ran early, freed = %d", freed)
	}
	if got := r.RefCount(); got != 1 {
		t.Fatalf("RefCount after first Destroy = %d, want 1", got)
	}

	r.Destroy()
	if freed != 1 {
		t.Fatalf("freeFn did not run at refcount 0, freed = %d", freed)
	}
}

func TestDelHeaderRemovesExactMatch(t *testing.T) {
	r := FromBuffer(nil)
	_ = r.AddHeader("X-A", "1")
	_ = r.AddHeader("X-A", "2")
	if err := r.DelHeader("X-A", "1"); err != nil {
		t.Fatalf("DelHeader: %v", err)
	}
	hdrs := r.GetHeaders()
	if len(hdrs) != 1 || string(hdrs[0].Value) != "2" {
		t.Fatalf("headers after DelHeader = %+v", hdrs)
	}
}

func TestKindDispatch(t *testing.T) {
	if FromBuffer(nil).Kind() != KindFixed {
		t.Fatal("FromBuffer should be KindFixed")
	}
	if FromFile("/tmp/x", 0, 10).Kind() != KindFile {
		t.Fatal("FromFile should be KindFile")
	}
	if FromCallback(SizeUnknown, nil, nil).Kind() != KindPull {
		t.Fatal("FromCallback should be KindPull")
	}
	if ForUpgrade(nil).Kind() != KindUpgrade {
		t.Fatal("ForUpgrade should be KindUpgrade")
	}
}
