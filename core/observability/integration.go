package observability

import (
	"fmt"
	"runtime"
	"time"
)

// Observatory is the ambient logging/metrics hub a Daemon reports every
// completed connection to, via the NotifyCompleted hook rather than a raw
// per-syscall trace (connections here are driven over net.Conn, not raw
// file descriptors, so there is no syscall-level seam to instrument).
type Observatory struct {
	Monitor *PerformanceMonitor
	enabled bool
}

// NewObservatory creates an observatory with tracing enabled.
func NewObservatory() *Observatory {
	return &Observatory{
		Monitor: NewPerformanceMonitor(),
		enabled: true,
	}
}

// RecordConnection records one finished connection's lifetime under
// label (typically the Kind name), for use from a daemon's
// NotifyCompleted callback.
func (o *Observatory) RecordConnection(label string, duration time.Duration, isError bool) {
	if !o.enabled {
		return
	}
	o.Monitor.RecordRequest(label, duration, isError)
}

// Report renders a plain-text summary of detected bottlenecks and
// current process memory stats.
func (o *Observatory) Report() string {
	report := "connection performance:\n"
	bottlenecks := o.Monitor.GetBottlenecks()
	if len(bottlenecks) == 0 {
		report += "  no bottlenecks detected\n"
	} else {
		for _, b := range bottlenecks {
			report += fmt.Sprintf("  [%s] %s: %s (severity %d/10)\n", b.Type, b.Location, b.Details, b.Severity)
		}
	}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	report += fmt.Sprintf("heap_alloc=%dMB heap_objects=%d gc_runs=%d goroutines=%d\n",
		m.HeapAlloc/(1024*1024), m.HeapObjects, m.NumGC, runtime.NumGoroutine())
	return report
}

// Enable turns metric recording back on.
func (o *Observatory) Enable() {
	o.enabled = true
	o.Monitor.enabled.Store(true)
}

// Disable stops recording without discarding already-collected metrics.
func (o *Observatory) Disable() {
	o.enabled = false
	o.Monitor.enabled.Store(false)
}
