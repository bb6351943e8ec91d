package galloc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHybridRoutesSmallToSlabLargeToBuddy(t *testing.T) {
	h, err := NewHybridAllocator(4<<20, 1<<20)
	require.NoError(t, err)

	small, err := h.Alloc(AllocationRequest{Size: 32})
	require.NoError(t, err)
	large, err := h.Alloc(AllocationRequest{Size: 4096})
	require.NoError(t, err)

	require.NotEqual(t, small, large)
	h.Free(small)
	h.Free(large)
}

func TestZeroedFlagZeroesMemory(t *testing.T) {
	h, err := NewHybridAllocator(1<<20, 1<<19)
	require.NoError(t, err)
	off, err := h.Alloc(AllocationRequest{Size: 64})
	require.NoError(t, err)
	for i := uint32(0); i < 64; i++ {
		h.Bytes()[off+i] = 0xFF
	}
	h.Free(off)

	off2, err := h.Alloc(AllocationRequest{Size: 64, Flags: FlagZeroed})
	require.NoError(t, err)
	for i := uint32(0); i < 64; i++ {
		require.Zero(t, h.Bytes()[off2+i])
	}
}

func TestDoubleFreePanics(t *testing.T) {
	h, err := NewHybridAllocator(1<<20, 1<<19)
	require.NoError(t, err)
	off, err := h.Alloc(AllocationRequest{Size: 32})
	require.NoError(t, err)
	h.Free(off)
	require.Panics(t, func() { h.Free(off) })
}

func TestArenaExhaustionErrors(t *testing.T) {
	a := NewArena(16)
	_, err := a.Grow(10)
	require.NoError(t, err)
	_, err = a.Grow(10)
	require.Error(t, err)
}

func TestBuddyAllocFreeCoalesces(t *testing.T) {
	arena := NewArena(1 << 21)
	b, err := NewBuddyAllocator(arena, 1<<20)
	require.NoError(t, err)

	off1, err := b.Alloc(4096)
	require.NoError(t, err)
	off2, err := b.Alloc(4096)
	require.NoError(t, err)
	require.NotEqual(t, off1, off2)

	b.Free(off1)
	b.Free(off2)

	stats := b.Stats()
	require.Zero(t, stats.LiveBlocks)
	require.Equal(t, 1, stats.FreeBlocks, "both 4 KiB halves must merge back into one 1 MiB block")
}

func TestSlabAllocReusesFreedSlot(t *testing.T) {
	arena := NewArena(1 << 16)
	s := NewSlabAllocator(arena)

	off1, err := s.Alloc(16)
	require.NoError(t, err)
	s.Free(off1, 16)

	off2, err := s.Alloc(16)
	require.NoError(t, err)
	require.Equal(t, off1, off2, "freed slab slot should be the next allocation")
}
