// SPDX-License-Identifier: Apache-2.0

// Package buddy implements a binary buddy allocator over an abstract
// address range. It tracks which power-of-two-sized sub-ranges of
// [start_addr, start_addr+page_size*2^max_order) are free or in use; it
// never reads or writes real memory.
//
// The allocator is single-threaded. Wrap an *Arena in a
// ConcurrentArena to share one across goroutines.
package buddy
