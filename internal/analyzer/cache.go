package analyzer

import "sync"

// fingerprintCache memoizes one extraction result per frame
// fingerprint. The capture loop often delivers physically identical
// frames back to back; re-running OCR on them is pure waste. Only the
// most recent fingerprint is kept.
type fingerprintCache[T any] struct {
	mu    sync.Mutex
	fp    uint32
	valid bool
	value T
	ok    bool
}

// get returns the cached value when the fingerprint matches.
func (c *fingerprintCache[T]) get(fp uint32) (T, bool, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.valid || c.fp != fp {
		var zero T
		return zero, false, false
	}
	return c.value, c.ok, true
}

// put records the extraction outcome for a fingerprint.
func (c *fingerprintCache[T]) put(fp uint32, value T, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fp = fp
	c.valid = true
	c.value = value
	c.ok = ok
}
