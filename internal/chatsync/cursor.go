package chatsync

import "sync"

// Cursor holds the opaque position marker echoed back on every fetch.
// The zero value is ready to use and means "from the beginning of history".
type Cursor struct {
	mu    sync.RWMutex
	value string
}

// Get returns the current cursor
func (c *Cursor) Get() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.value
}

// Advance replaces the cursor when next is non-empty and reports whether it changed.
// An empty or unchanged token means no new data and is not an error.
func (c *Cursor) Advance(next string) bool {
	if next == "" {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if next == c.value {
		return false
	}
	c.value = next
	return true
}
