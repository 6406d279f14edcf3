// Package dedup suppresses repeats of a key within a time-to-live window.
package dedup

import (
	"sync"
	"time"
)

// Window remembers keys for a configurable time-to-live. It is safe for
// concurrent use.
type Window struct {
	mu   sync.Mutex
	seen map[string]time.Time // key -> first seen within the current window
	ttl  time.Duration
	now  func() time.Time
}

// Option configures a Window.
type Option func(*Window)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(w *Window) { w.now = now }
}

// New creates a Window that treats a key as a duplicate if it was seen within
// ttl. A ttl of zero disables suppression.
func New(ttl time.Duration, opts ...Option) *Window {
	w := &Window{
		seen: make(map[string]time.Time),
		ttl:  ttl,
		now:  time.Now,
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

// IsDuplicate returns true if key has been seen within the TTL. Otherwise the
// key is recorded and false is returned.
func (w *Window) IsDuplicate(key string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.ttl <= 0 {
		return false
	}
	now := w.now()
	if at, ok := w.seen[key]; ok && now.Sub(at) < w.ttl {
		return true
	}
	w.seen[key] = now
	return false
}

// SetTTL changes the window length for subsequent checks.
func (w *Window) SetTTL(ttl time.Duration) {
	w.mu.Lock()
	w.ttl = ttl
	w.mu.Unlock()
}

// Cleanup removes expired entries and returns how many were dropped. It
// should be called periodically to bound memory.
func (w *Window) Cleanup() int {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	removed := 0
	for key, at := range w.seen {
		if now.Sub(at) >= w.ttl {
			delete(w.seen, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of remembered keys, expired or not.
func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.seen)
}
