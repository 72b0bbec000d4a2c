package wapi

import "sync"

// OpenRequestTracker records the resource identities whose network exchange is
// currently running. Marks are reference counted: an identity stays open until
// it has been closed as many times as it was opened.
type OpenRequestTracker struct {
	mu   sync.Mutex
	open map[string]int
}

// NewOpenRequestTracker returns an empty tracker.
func NewOpenRequestTracker() *OpenRequestTracker {
	return &OpenRequestTracker{
		open: make(map[string]int),
	}
}

// MarkOpen records one more in-flight exchange for id.
func (t *OpenRequestTracker) MarkOpen(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.open[id]++
}

// TryMarkOpen marks id open only if it is not open yet and reports whether it
// did. The check and the mark happen under one lock.
func (t *OpenRequestTracker) TryMarkOpen(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.open[id] > 0 {
		return false
	}
	t.open[id] = 1
	return true
}

// MarkClosed releases one in-flight mark for id. Closing an identity that is
// not open is a no-op.
func (t *OpenRequestTracker) MarkClosed(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	n, ok := t.open[id]
	if !ok {
		return
	}
	if n <= 1 {
		delete(t.open, id)
		return
	}
	t.open[id] = n - 1
}

// IsOpen reports whether an exchange for id is in flight.
func (t *OpenRequestTracker) IsOpen(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.open[id] > 0
}

// Len returns the number of distinct identities in flight.
func (t *OpenRequestTracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.open)
}
