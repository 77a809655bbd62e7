package sendfile

import (
	"os"
	"testing"
)

func TestFileCacheGetReturnsSameFileOnHit(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "sendfile-cache-*")
	if err != nil {
		t.Fatalf("CreateTemp: %v", err)
	}
	f.Close()

	fc := NewFileCache(4)
	a, err := fc.Get(f.Name())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	b, err := fc.Get(f.Name())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if a != b {
		t.Error("expected cache hit to return the same *os.File")
	}
	fc.Close()
}

func TestFileCacheEvictsOldest(t *testing.T) {
	dir := t.TempDir()
	fc := NewFileCache(2)

	var names []string
	for i := 0; i < 3; i++ {
		f, err := os.CreateTemp(dir, "evict-*")
		if err != nil {
			t.Fatalf("CreateTemp: %v", err)
		}
		f.Close()
		names = append(names, f.Name())
		if _, err := fc.Get(f.Name()); err != nil {
			t.Fatalf("Get: %v", err)
		}
	}

	fc.mu.RLock()
	_, stillCached := fc.cache[names[0]]
	fc.mu.RUnlock()
	if stillCached {
		t.Error("expected the oldest entry to be evicted once the cache exceeded maxFiles")
	}
	fc.Close()
}

func TestGetContentType(t *testing.T) {
	cases := map[string]string{
		"index.html": "text/html; charset=utf-8",
		"app.js":     "application/javascript; charset=utf-8",
		"data.json":  "application/json; charset=utf-8",
		"photo.png":  "image/png",
		"blob.bin":   "application/octet-stream",
	}
	for name, want := range cases {
		if got := GetContentType(name); got != want {
			t.Errorf("GetContentType(%q) = %q, want %q", name, got, want)
		}
	}
}
