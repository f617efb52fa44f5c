// SPDX-License-Identifier: Apache-2.0

package buddy

import "math/bits"

// Config are the immutable parameters of an Arena, set once at
// construction (spec.md §3).
type Config struct {
	// MaxOrder is the highest order the Arena will manage; the root
	// block has size PageSize << MaxOrder.
	MaxOrder int
	// PageSize is the size of an order-0 block. Must be a power of two.
	PageSize uint64
	// StartAddr is the base address of the managed range.
	StartAddr uint64
}

func (c Config) validate() error {
	if c.MaxOrder < 0 {
		return &ConfigError{Reason: "max order must be >= 0"}
	}
	if c.PageSize == 0 || c.PageSize&(c.PageSize-1) != 0 {
		return &ConfigError{Reason: "page size must be a positive power of two"}
	}
	return nil
}

// Arena owns every live block for one managed address range and
// exposes Alloc/Free/Stats over it (spec.md §4). It is not safe for
// concurrent use; wrap it in a ConcurrentArena to share it.
type Arena struct {
	cfg        Config
	shiftCount uint

	orders []orderIndex

	// blocks is the slab every block lives in, addressed by blockID.
	// freeSlots recycles the ids of destroyed blocks so the slab only
	// grows as deep as the tree has ever been simultaneously split.
	blocks    []block
	freeSlots []blockID

	usedBytes uint64
	peakBytes uint64
}

// New constructs an Arena with a single free root block at MaxOrder
// covering the whole managed range.
func New(cfg Config) (*Arena, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	a := &Arena{cfg: cfg, shiftCount: uint(bits.TrailingZeros64(cfg.PageSize))}
	a.init()
	return a, nil
}

func (a *Arena) init() {
	a.orders = make([]orderIndex, a.cfg.MaxOrder+1)
	for i := range a.orders {
		a.orders[i] = orderIndex{freeHead: noBlock, usedHead: noBlock}
	}
	a.blocks = a.blocks[:0]
	a.freeSlots = a.freeSlots[:0]
	a.usedBytes = 0
	a.peakBytes = 0

	root := a.newBlock(a.cfg.StartAddr, a.cfg.MaxOrder, noBlock, noBlock)
	a.insertFree(root)
}

// Reset reinitializes the Arena to its post-New state — one free root
// block, every other order empty — without releasing the block slab's
// backing storage. Every BlockHandle issued before Reset is immediately
// invalid; callers must not use them again. Peak is cleared as well.
func (a *Arena) Reset() {
	a.init()
}

// Destroy releases the order index and block slab. The Arena must not
// be used for further allocations afterward.
func (a *Arena) Destroy() {
	a.orders = nil
	a.blocks = nil
	a.freeSlots = nil
}

func (a *Arena) blockSize(order int) uint64 {
	return a.cfg.PageSize << uint(order)
}

// Len reports the number of bytes currently allocated (used, leaf
// blocks only — a split parent does not count twice).
func (a *Arena) Len() int { return int(a.usedBytes) }

// Cap reports the total size of the managed range.
func (a *Arena) Cap() int { return int(a.blockSize(a.cfg.MaxOrder)) }

// Peak reports the high-water mark of Len, preserved across Free calls
// and cleared only by Reset.
func (a *Arena) Peak() int { return int(a.peakBytes) }

// newBlock creates a block, reusing a slot freed by a prior coalesce
// when one is available.
func (a *Arena) newBlock(startAddr uint64, order int, buddy, parent blockID) blockID {
	var id blockID
	if n := len(a.freeSlots); n > 0 {
		id = a.freeSlots[n-1]
		a.freeSlots = a.freeSlots[:n-1]
	} else {
		id = blockID(len(a.blocks))
		a.blocks = append(a.blocks, block{})
	}
	a.blocks[id] = block{
		startAddr: startAddr,
		order:     order,
		buddy:     buddy,
		parent:    parent,
		prev:      noBlock,
		next:      noBlock,
	}
	return id
}

// destroyBlock retires id's slot for reuse. The caller must have
// already removed id from whichever container held it.
func (a *Arena) destroyBlock(id blockID) {
	a.blocks[id] = block{buddy: noBlock, parent: noBlock, prev: noBlock, next: noBlock}
	a.freeSlots = append(a.freeSlots, id)
}

func (a *Arena) insertFree(id blockID) {
	b := &a.blocks[id]
	b.isUsed = false
	oi := &a.orders[b.order]
	a.listPushFront(&oi.freeHead, id)
	oi.freeCount++
}

func (a *Arena) removeFree(id blockID) {
	b := &a.blocks[id]
	oi := &a.orders[b.order]
	a.listRemove(&oi.freeHead, id)
	oi.freeCount--
}

func (a *Arena) insertUsed(id blockID) {
	b := &a.blocks[id]
	b.isUsed = true
	oi := &a.orders[b.order]
	a.listPushFront(&oi.usedHead, id)
	oi.usedCount++
}

func (a *Arena) removeUsed(id blockID) {
	b := &a.blocks[id]
	oi := &a.orders[b.order]
	a.listRemove(&oi.usedHead, id)
	oi.usedCount--
}

// split replaces parent (already removed from its container — it is
// "split", not free or used) with two order-1-less children and
// returns them low-address-first. It does not insert either child into
// any container; the caller decides where each goes. The parent block
// itself is left intact in the slab: its identity is what lets the
// eventual coalesce reinstate it without rebuilding anything.
func (a *Arena) split(parent blockID) (lo, hi blockID) {
	p := &a.blocks[parent]
	childOrder := p.order - 1
	half := a.blockSize(childOrder)

	lo = a.newBlock(p.startAddr, childOrder, noBlock, parent)
	hi = a.newBlock(p.startAddr+half, childOrder, noBlock, parent)
	a.blocks[lo].buddy = hi
	a.blocks[hi].buddy = lo
	return lo, hi
}

// AllocOrder is the alloc_at primitive of spec.md §4.3: it finds or
// manufactures a block of exactly the given order and returns it
// already marked used, or ErrExhausted if the order exceeds MaxOrder
// or no free block exists at that order or any order above it.
func (a *Arena) AllocOrder(order int) (*BlockHandle, error) {
	id, err := a.allocAt(order)
	if err != nil {
		return nil, err
	}
	if a.usedBytes > a.peakBytes {
		a.peakBytes = a.usedBytes
	}
	b := &a.blocks[id]
	return &BlockHandle{arena: a, id: id, startAddr: b.startAddr, order: b.order}, nil
}

func (a *Arena) allocAt(order int) (blockID, error) {
	if order > a.cfg.MaxOrder {
		return noBlock, ErrExhausted
	}

	oi := &a.orders[order]
	var id blockID
	if oi.freeCount > 0 {
		id = oi.freeHead
		a.removeFree(id)
	} else {
		parent, err := a.allocAt(order + 1)
		if err != nil {
			return noBlock, err
		}
		a.removeUsed(parent)
		a.usedBytes -= a.blockSize(order + 1)

		lo, hi := a.split(parent)
		a.insertFree(lo)
		id = hi // deterministic: always hand out the high-address half
	}

	a.insertUsed(id)
	a.usedBytes += a.blockSize(order)
	return id, nil
}

// Alloc computes a target order from size using the page-count
// convention of spec.md §4.2 — size is treated as a page count, not a
// byte count, so Alloc(PageSize) requests order 1, not order 0. This
// preserves the original source's behavior deliberately; call
// AllocOrder directly to sidestep the convention entirely.
func (a *Arena) Alloc(size uint64) (*BlockHandle, error) {
	order := int(size >> a.shiftCount)
	return a.AllocOrder(order)
}

// Free returns h's block to its order's free set, coalescing with its
// buddy — and that buddy's buddy, and so on up to the root — wherever
// both halves of a pair are free. ErrInvalidFree is returned if h does
// not refer to a block currently in use in this Arena.
func (a *Arena) Free(h *BlockHandle) error {
	if h == nil || h.arena != a {
		return ErrInvalidFree
	}
	id := h.id
	if int(id) < 0 || int(id) >= len(a.blocks) || !a.blocks[id].isUsed {
		return ErrInvalidFree
	}

	b := &a.blocks[id]
	a.removeUsed(id)
	a.usedBytes -= a.blockSize(b.order)
	a.settle(id)
	return nil
}

// settle reinstates a block that has just been removed from every
// container, coalescing with its buddy when possible. It is also the
// recursive step that cascades a coalesce up toward the root.
//
// A coalesce only ever runs for a non-root block (buddy == noBlock
// exactly identifies the root), and every non-root block has a parent
// by construction, so the recursive call below never needs to handle
// a missing parent: the root is reached and terminates the recursion
// through the buddy == noBlock branch, never through a synthesized
// replacement block.
func (a *Arena) settle(id blockID) {
	b := &a.blocks[id]
	buddy := b.buddy
	if buddy == noBlock || a.blocks[buddy].isUsed {
		a.insertFree(id)
		return
	}

	a.removeFree(buddy)
	parent := b.parent
	a.destroyBlock(id)
	a.destroyBlock(buddy)
	a.settle(parent)
}
