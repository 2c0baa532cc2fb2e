package engage

import "sync"

// Cell holds an optional string shared between one writer at a time and
// any number of readers.
//
// Thread Safety: readers observe either the previous or the new value,
// never a partial write.
type Cell struct {
	mu    sync.RWMutex
	value string
	set   bool
}

// NewCell returns an empty Cell.
func NewCell() *Cell {
	return &Cell{}
}

// Load returns the current value and whether one has ever been stored.
func (c *Cell) Load() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.value, c.set
}

// Store replaces the current value.
func (c *Cell) Store(value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = value
	c.set = true
}
