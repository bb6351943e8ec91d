// Package galloc implements the simulator's global heap: a single
// process-owned arena combining a slab allocator for small (<=256B)
// objects with a buddy allocator for larger (256B-1MiB) blocks, adapted
// from the teacher's WASM SharedArrayBuffer-backed slab/buddy pair into
// a plain owned []byte arena (spec §9's single-process collapse).
package galloc

import "fmt"

// Arena is the backing byte store every allocator in this package grows
// into. It never shrinks; Grow extends the live region and panics if the
// configured ceiling would be exceeded (resource exhaustion in the
// global heap is a fatal condition per spec §7).
type Arena struct {
	bytes []byte
	used  uint32
	limit uint32
}

// NewArena allocates an arena with capacity limit bytes, reserved up
// front so that Grow never needs to invalidate previously returned
// offsets by reallocating the backing slice.
func NewArena(limit uint32) *Arena {
	return &Arena{bytes: make([]byte, limit), limit: limit}
}

// Grow reserves n more bytes from the arena and returns their offset.
func (a *Arena) Grow(n uint32) (uint32, error) {
	if a.used+n > a.limit {
		return 0, fmt.Errorf("galloc: arena exhausted (used=%d want=%d limit=%d)", a.used, n, a.limit)
	}
	off := a.used
	a.used += n
	return off, nil
}

// AllocFlags are per-request modifiers, mirroring the teacher's
// AllocFlags bitset.
type AllocFlags uint8

const (
	FlagZeroed AllocFlags = 1 << iota
	FlagShared
	FlagPersistent
)

// AllocationRequest describes one allocation, matching the teacher's
// HybridAllocator request shape.
type AllocationRequest struct {
	Size  uint32
	Owner string
	Flags AllocFlags
}

// smallThreshold is the slab/buddy routing boundary.
const smallThreshold = 256

// HybridAllocator routes allocations to a SlabAllocator (<=256B) or a
// BuddyAllocator (256B-1MiB), presenting one Alloc/Free facade — this is
// the concrete "global owned root state" spec §9 describes collapsing
// the original shared-memory heap into for a single-process run.
type HybridAllocator struct {
	arena *Arena
	slab  *SlabAllocator
	buddy *BuddyAllocator

	// sizes tracks the allocation size requested for each live offset so
	// Free can be called with only the offset, matching the ergonomics of
	// an intrusive-pointer-free caller.
	sizes map[uint32]uint32
}

// NewHybridAllocator builds a combined allocator over a fresh arena of
// the given total capacity, reserving buddyRegion bytes of it up front
// for the buddy allocator and leaving the remainder for slab page growth.
func NewHybridAllocator(totalCapacity, buddyRegion uint32) (*HybridAllocator, error) {
	arena := NewArena(totalCapacity)
	buddy, err := NewBuddyAllocator(arena, buddyRegion)
	if err != nil {
		return nil, err
	}
	return &HybridAllocator{
		arena: arena,
		slab:  NewSlabAllocator(arena),
		buddy: buddy,
		sizes: make(map[uint32]uint32),
	}, nil
}

// Alloc satisfies req, routing to the slab or buddy allocator by size.
func (h *HybridAllocator) Alloc(req AllocationRequest) (uint32, error) {
	var off uint32
	var err error
	if req.Size <= smallThreshold {
		off, err = h.slab.Alloc(req.Size)
	} else {
		off, err = h.buddy.Alloc(req.Size)
	}
	if err != nil {
		return 0, err
	}
	if req.Flags&FlagZeroed != 0 {
		for i := uint32(0); i < req.Size; i++ {
			h.arena.bytes[off+i] = 0
		}
	}
	h.sizes[off] = req.Size
	return off, nil
}

// Free releases a previous allocation.
func (h *HybridAllocator) Free(offset uint32) {
	size, ok := h.sizes[offset]
	if !ok {
		panic("galloc: free of offset not tracked by HybridAllocator")
	}
	delete(h.sizes, offset)
	if size <= smallThreshold {
		h.slab.Free(offset, size)
	} else {
		h.buddy.Free(offset)
	}
}

// Bytes exposes the backing arena for direct reads/writes by owners that
// need to store structured data at an allocated offset.
func (h *HybridAllocator) Bytes() []byte { return h.arena.bytes }

// Stats reports a combined fragmentation/utilization snapshot.
type Stats struct {
	Slab  SlabStats
	Buddy BuddyStats
	Used  uint32
	Limit uint32
}

func (h *HybridAllocator) GetStats() Stats {
	return Stats{
		Slab:  h.slab.Stats(),
		Buddy: h.buddy.Stats(),
		Used:  h.arena.used,
		Limit: h.arena.limit,
	}
}
