// SPDX-License-Identifier: Apache-2.0

package buddy

import "sync"

// ConcurrentArena wraps an *Arena behind a single mutex so it can be
// shared across goroutines, the way spec.md §5 says a thread-safe
// variant should be built: "wrap the Arena in a single mutex — the
// algorithm has no internal parallelism worth exploiting."
type ConcurrentArena struct {
	mu sync.Mutex
	a  *Arena
}

// NewConcurrentArena returns a ConcurrentArena wrapping a.
func NewConcurrentArena(a *Arena) *ConcurrentArena {
	return &ConcurrentArena{a: a}
}

// Alloc satisfies the same contract as Arena.Alloc.
func (c *ConcurrentArena) Alloc(size uint64) (*BlockHandle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.a.Alloc(size)
}

// AllocOrder satisfies the same contract as Arena.AllocOrder.
func (c *ConcurrentArena) AllocOrder(order int) (*BlockHandle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.a.AllocOrder(order)
}

// Free satisfies the same contract as Arena.Free.
func (c *ConcurrentArena) Free(h *BlockHandle) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.a.Free(h)
}

// Stats satisfies the same contract as Arena.Stats.
func (c *ConcurrentArena) Stats() []OrderStat {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.a.Stats()
}

// Reset satisfies the same contract as Arena.Reset.
func (c *ConcurrentArena) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.a.Reset()
}

// Destroy satisfies the same contract as Arena.Destroy.
func (c *ConcurrentArena) Destroy() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.a.Destroy()
}

// Len satisfies the same contract as Arena.Len.
func (c *ConcurrentArena) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.a.Len()
}

// Cap satisfies the same contract as Arena.Cap.
func (c *ConcurrentArena) Cap() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.a.Cap()
}

// Peak satisfies the same contract as Arena.Peak.
func (c *ConcurrentArena) Peak() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.a.Peak()
}
