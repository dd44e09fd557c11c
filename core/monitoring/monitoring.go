package monitoring

import (
	"sync"
	"time"
)

// Monitor reports errors and panics to an external tracker.
type Monitor interface {
	CaptureException(err error, tags map[string]string)
	Recover()
	Flush(timeout time.Duration)
}

type NopMonitor struct{}

func (NopMonitor) CaptureException(error, map[string]string) {}
func (NopMonitor) Recover()                                  {}
func (NopMonitor) Flush(time.Duration)                       {}

// OrNop returns m, or a NopMonitor when m is nil.
func OrNop(m Monitor) Monitor {
	if m == nil {
		return NopMonitor{}
	}
	return m
}

// Tagged wraps a monitor and merges a fixed set of tags into every capture.
// Per-call tags win on key collisions.
type Tagged struct {
	Next Monitor
	Tags map[string]string
}

// WithTags returns a Monitor that always attaches tags.
func WithTags(m Monitor, tags map[string]string) Monitor {
	return Tagged{Next: OrNop(m), Tags: tags}
}

func (t Tagged) CaptureException(err error, tags map[string]string) {
	merged := make(map[string]string, len(t.Tags)+len(tags))
	for k, v := range t.Tags {
		merged[k] = v
	}
	for k, v := range tags {
		merged[k] = v
	}
	t.Next.CaptureException(err, merged)
}

func (t Tagged) Recover()                    { t.Next.Recover() }
func (t Tagged) Flush(timeout time.Duration) { t.Next.Flush(timeout) }

var (
	mu      sync.RWMutex
	current Monitor = NopMonitor{}
)

// Init sets the process-wide monitor.
func Init(m Monitor) {
	if m == nil {
		return
	}
	mu.Lock()
	current = m
	mu.Unlock()
}

// Current returns the process-wide monitor.
func Current() Monitor {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// CaptureException records the error on the process-wide monitor.
func CaptureException(err error, tags map[string]string) {
	Current().CaptureException(err, tags)
}

// Flush flushes buffered events.
func Flush(d time.Duration) {
	Current().Flush(d)
}
