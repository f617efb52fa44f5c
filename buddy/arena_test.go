// SPDX-License-Identifier: Apache-2.0

package buddy

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestArena(t *testing.T, maxOrder int) *Arena {
	a, err := New(Config{MaxOrder: maxOrder, PageSize: 4096, StartAddr: 0})
	require.NoError(t, err)
	return a
}

func statsOf(a *Arena) map[int]OrderStat {
	out := make(map[int]OrderStat)
	for _, s := range a.Stats() {
		out[s.Order] = s
	}
	return out
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	_, err := New(Config{MaxOrder: -1, PageSize: 4096})
	require.Error(t, err)
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)

	_, err = New(Config{MaxOrder: 3, PageSize: 0})
	require.Error(t, err)

	_, err = New(Config{MaxOrder: 3, PageSize: 3000})
	require.Error(t, err)

	_, err = New(Config{MaxOrder: 3, PageSize: 4096})
	require.NoError(t, err)
}

func TestInitialStats(t *testing.T) {
	a := newTestArena(t, 3)
	stats := statsOf(a)
	require.Len(t, stats, 4)
	require.Equal(t, OrderStat{Order: 0, FreeCount: 0, UsedCount: 0}, stats[0])
	require.Equal(t, OrderStat{Order: 1, FreeCount: 0, UsedCount: 0}, stats[1])
	require.Equal(t, OrderStat{Order: 2, FreeCount: 0, UsedCount: 0}, stats[2])
	require.Equal(t, OrderStat{Order: 3, FreeCount: 1, UsedCount: 0}, stats[3])
}

func TestStatsIsIdempotent(t *testing.T) {
	a := newTestArena(t, 3)
	first := a.Stats()
	second := a.Stats()
	require.Equal(t, first, second)
}

func TestAllocOrderSplitsDownward(t *testing.T) {
	a := newTestArena(t, 3)

	h, err := a.AllocOrder(0)
	require.NoError(t, err)
	require.Equal(t, 0, h.Order())
	// The high half is handed out at every split level:
	// 16384 + 8192 + 4096.
	require.Equal(t, uint64(0x7000), h.StartAddr())

	stats := statsOf(a)
	require.Equal(t, 1, stats[0].FreeCount)
	require.Equal(t, 1, stats[0].UsedCount)
	require.Equal(t, 1, stats[1].FreeCount)
	require.Equal(t, 0, stats[1].UsedCount)
	require.Equal(t, 1, stats[2].FreeCount)
	require.Equal(t, 0, stats[2].UsedCount)
	require.Equal(t, 0, stats[3].FreeCount)
	require.Equal(t, 0, stats[3].UsedCount)
}

func TestAllocOrderThenFreeRestoresRoot(t *testing.T) {
	a := newTestArena(t, 3)

	h, err := a.AllocOrder(0)
	require.NoError(t, err)

	require.NoError(t, a.Free(h))

	stats := statsOf(a)
	for order := 0; order < 3; order++ {
		require.Equal(t, 0, stats[order].FreeCount, "order %d", order)
		require.Equal(t, 0, stats[order].UsedCount, "order %d", order)
	}
	require.Equal(t, 1, stats[3].FreeCount)
	require.Equal(t, 0, stats[3].UsedCount)
}

func TestAllocOrderExhaustsAtMaxOrderPlusOne(t *testing.T) {
	a := newTestArena(t, 1)

	h1, err := a.AllocOrder(0)
	require.NoError(t, err)
	h2, err := a.AllocOrder(0)
	require.NoError(t, err)

	_, err = a.AllocOrder(0)
	require.ErrorIs(t, err, ErrExhausted)

	stats := statsOf(a)
	require.Equal(t, 2, stats[0].UsedCount)

	require.NoError(t, a.Free(h1))
	require.NoError(t, a.Free(h2))
}

func TestFreeBothBuddiesCoalescesToRoot(t *testing.T) {
	a := newTestArena(t, 2)

	h1, err := a.AllocOrder(0)
	require.NoError(t, err)
	h2, err := a.AllocOrder(0)
	require.NoError(t, err)

	require.NoError(t, a.Free(h1))
	require.NoError(t, a.Free(h2))

	stats := statsOf(a)
	require.Equal(t, 0, stats[0].FreeCount)
	require.Equal(t, 0, stats[0].UsedCount)
	require.Equal(t, 0, stats[1].FreeCount)
	require.Equal(t, 0, stats[1].UsedCount)
	require.Equal(t, 1, stats[2].FreeCount)
	require.Equal(t, 0, stats[2].UsedCount)
}

func TestAllocOrderReusesFreeHalfOfASplitParent(t *testing.T) {
	a := newTestArena(t, 2)

	_, err := a.AllocOrder(0)
	require.NoError(t, err)

	h1, err := a.AllocOrder(1)
	require.NoError(t, err)
	require.Equal(t, 1, h1.Order())

	stats := statsOf(a)
	require.Equal(t, 1, stats[0].FreeCount)
	require.Equal(t, 0, stats[1].FreeCount)
	require.Equal(t, 1, stats[1].UsedCount)
	require.Equal(t, 0, stats[2].FreeCount)
}

func TestDeterministicSplitAddressing(t *testing.T) {
	a := newTestArena(t, 1)

	h, err := a.AllocOrder(0)
	require.NoError(t, err)
	// Splitting the order-1 root always hands out the high-address half.
	require.Equal(t, uint64(4096), h.StartAddr())
}

func TestFreeRejectsDoubleFree(t *testing.T) {
	a := newTestArena(t, 1)

	h, err := a.AllocOrder(0)
	require.NoError(t, err)
	require.NoError(t, a.Free(h))
	require.ErrorIs(t, a.Free(h), ErrInvalidFree)
}

func TestFreeRejectsHandleFromAnotherArena(t *testing.T) {
	a := newTestArena(t, 1)
	other := newTestArena(t, 1)

	h, err := other.AllocOrder(0)
	require.NoError(t, err)

	require.ErrorIs(t, a.Free(h), ErrInvalidFree)
	require.NoError(t, other.Free(h))
}

func TestRoundTripAllocFreeInReverseOrderLeavesArenaClean(t *testing.T) {
	a := newTestArena(t, 4)

	// Orders 0..3 take 1+2+4+8 of the 16 pages; order 4 would not fit.
	var handles []*BlockHandle
	for order := 0; order < 4; order++ {
		h, err := a.AllocOrder(order)
		require.NoError(t, err)
		handles = append(handles, h)
	}

	for i := len(handles) - 1; i >= 0; i-- {
		require.NoError(t, a.Free(handles[i]))
	}

	stats := statsOf(a)
	for order := 0; order < 4; order++ {
		require.Equal(t, 0, stats[order].FreeCount)
		require.Equal(t, 0, stats[order].UsedCount)
	}
	require.Equal(t, 1, stats[4].FreeCount)
}

func TestExhaustionIsMonotonicWithoutAnInterveningFree(t *testing.T) {
	a := newTestArena(t, 0)

	_, err := a.AllocOrder(0)
	require.NoError(t, err)

	_, err = a.AllocOrder(0)
	require.ErrorIs(t, err, ErrExhausted)

	_, err = a.AllocOrder(1)
	require.ErrorIs(t, err, ErrExhausted)
}

func TestAllocPreservesPageCountConvention(t *testing.T) {
	a := newTestArena(t, 2)

	// A request of exactly one page worth of bytes is treated as a
	// page *count* of 1, landing at order 1 — not order 0 — per the
	// documented, deliberately preserved quirk of spec.md §4.2.
	h, err := a.Alloc(4096)
	require.NoError(t, err)
	require.Equal(t, 1, h.Order())
}

func TestLenCapPeak(t *testing.T) {
	a := newTestArena(t, 2)
	require.Equal(t, 4096*4, a.Cap())
	require.Equal(t, 0, a.Len())
	require.Equal(t, 0, a.Peak())

	h1, err := a.AllocOrder(0)
	require.NoError(t, err)
	require.Equal(t, 4096, a.Len())
	require.Equal(t, 4096, a.Peak())

	h2, err := a.AllocOrder(1)
	require.NoError(t, err)
	require.Equal(t, 4096+8192, a.Len())
	require.Equal(t, 4096+8192, a.Peak())

	require.NoError(t, a.Free(h2))
	require.Equal(t, 4096, a.Len())
	require.Equal(t, 4096+8192, a.Peak(), "peak survives a free")

	require.NoError(t, a.Free(h1))
	require.Equal(t, 0, a.Len())
}

func TestResetReturnsArenaToPostNewState(t *testing.T) {
	a := newTestArena(t, 2)

	_, err := a.AllocOrder(0)
	require.NoError(t, err)

	a.Reset()

	stats := statsOf(a)
	require.Equal(t, 0, stats[0].FreeCount)
	require.Equal(t, 0, stats[1].FreeCount)
	require.Equal(t, 1, stats[2].FreeCount)
	require.Equal(t, 0, a.Len())
}

func TestDestroyClearsArenaState(t *testing.T) {
	a := newTestArena(t, 2)
	a.Destroy()
	require.Empty(t, a.Stats())
}
