// Package sendfile backs response.FromFile's zero-copy fast path: on
// Linux, SendFile transfers a file straight from the page cache to a
// socket via the sendfile(2) syscall, skipping the userspace read/write
// round trip conn's plain fileReader path otherwise needs. Other
// platforms (and any destination that doesn't expose a raw fd, such as
// a TLS-wrapped conn or a net.Pipe in tests) get ErrUnsupported, and the
// caller falls back to its buffered read/write loop.
package sendfile

import (
	"container/list"
	"errors"
	"os"
	"path/filepath"
	"sync"
)

// ErrUnsupported is returned by SendFile when dst cannot be driven via
// sendfile(2): no raw file descriptor (TLS, net.Pipe), or a non-Linux
// build.
var ErrUnsupported = errors.New("sendfile: unsupported on this connection or platform")

// FileCache caches open file descriptors using LRU
type FileCache struct {
	mu       sync.RWMutex
	cache    map[string]*cacheEntry
	lruList  *list.List
	maxFiles int
}

type cacheEntry struct {
	file    *os.File
	element *list.Element
}

// NewFileCache creates a new file cache
func NewFileCache(maxFiles int) *FileCache {
	return &FileCache{
		cache:    make(map[string]*cacheEntry),
		lruList:  list.New(),
		maxFiles: maxFiles,
	}
}

// Get gets a file from cache or opens it
func (fc *FileCache) Get(path string) (*os.File, error) {
	fc.mu.RLock()
	if entry, ok := fc.cache[path]; ok {
		fc.mu.RUnlock()

		// Move to front (most recently used)
		fc.mu.Lock()
		fc.lruList.MoveToFront(entry.element)
		fc.mu.Unlock()

		return entry.file, nil
	}
	fc.mu.RUnlock()

	// Open new file
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	fc.mu.Lock()
	defer fc.mu.Unlock()

	// Add to cache
	element := fc.lruList.PushFront(path)
	fc.cache[path] = &cacheEntry{
		file:    file,
		element: element,
	}

	// Evict oldest if over limit
	if fc.lruList.Len() > fc.maxFiles {
		oldest := fc.lruList.Back()
		if oldest != nil {
			oldPath := oldest.Value.(string)
			if oldEntry, ok := fc.cache[oldPath]; ok {
				oldEntry.file.Close()
				delete(fc.cache, oldPath)
			}
			fc.lruList.Remove(oldest)
		}
	}

	return file, nil
}

// Close closes all cached files
func (fc *FileCache) Close() {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	for _, entry := range fc.cache {
		entry.file.Close()
	}
	fc.cache = make(map[string]*cacheEntry)
	fc.lruList.Init()
}

// Global file cache
var globalFileCache = NewFileCache(1000)

// GetContentType returns MIME type based on file extension
func GetContentType(filename string) string {
	ext := filepath.Ext(filename)
	switch ext {
	case ".html", ".htm":
		return "text/html; charset=utf-8"
	case ".css":
		return "text/css; charset=utf-8"
	case ".js":
		return "application/javascript; charset=utf-8"
	case ".json":
		return "application/json; charset=utf-8"
	case ".xml":
		return "application/xml; charset=utf-8"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".svg":
		return "image/svg+xml"
	case ".ico":
		return "image/x-icon"
	case ".pdf":
		return "application/pdf"
	case ".zip":
		return "application/zip"
	case ".gz":
		return "application/gzip"
	case ".txt":
		return "text/plain; charset=utf-8"
	default:
		return "application/octet-stream"
	}
}

// CloseFileCache closes the global file cache
func CloseFileCache() {
	globalFileCache.Close()
}
