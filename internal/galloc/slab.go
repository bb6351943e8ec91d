package galloc

import "fmt"

// slabSizeClasses mirrors the teacher's fixed small-object size classes.
var slabSizeClasses = [10]uint32{8, 16, 32, 48, 64, 96, 128, 160, 192, 256}

const slabPageSize = 4096

// slabPage is one fixed-size-class page: a contiguous byte range carved
// into objSize slots, tracked by a 64-bit free bitmap (at most 64 objects
// per page; for the classes below 64 bytes the rest of the page is left
// unused).
type slabPage struct {
	base    uint32 // offset into the arena
	objSize uint32
	count   uint32 // number of slots in this page
	free    uint64 // bit i set == slot i is free
	live    uint32 // number of allocated slots
}

func newSlabPage(base, objSize uint32) *slabPage {
	count := slabPageSize / objSize
	if count > 64 {
		count = 64
	}
	var free uint64
	if count == 64 {
		free = ^uint64(0)
	} else {
		free = (uint64(1) << count) - 1
	}
	return &slabPage{base: base, objSize: objSize, count: count, free: free}
}

func (p *slabPage) full() bool  { return p.free == 0 }
func (p *slabPage) empty() bool { return p.live == 0 }

func (p *slabPage) alloc() (uint32, bool) {
	if p.free == 0 {
		return 0, false
	}
	slot := trailingZeros64(p.free)
	p.free &^= uint64(1) << slot
	p.live++
	return p.base + slot*p.objSize, true
}

func (p *slabPage) free_(offset uint32) {
	slot := (offset - p.base) / p.objSize
	bit := uint64(1) << slot
	if p.free&bit != 0 {
		panic(fmt.Sprintf("galloc: double free of slab slot %d", slot))
	}
	p.free |= bit
	p.live--
}

func trailingZeros64(x uint64) uint32 {
	if x == 0 {
		return 64
	}
	var n uint32
	for x&1 == 0 {
		x >>= 1
		n++
	}
	return n
}

// slabCache owns every page for one size class.
type slabCache struct {
	objSize  uint32
	pages    []*slabPage
	partial  []int // indices into pages with at least one free slot
}

func newSlabCache(objSize uint32) *slabCache {
	return &slabCache{objSize: objSize}
}

// SlabAllocator serves small (<=256B) fixed-size-class allocations,
// grown on demand from a backing arena.
type SlabAllocator struct {
	arena   *Arena
	caches  [len(slabSizeClasses)]*slabCache
	numObjs uint64
	numFree uint64
}

// NewSlabAllocator builds a slab allocator carving pages out of arena.
func NewSlabAllocator(arena *Arena) *SlabAllocator {
	sa := &SlabAllocator{arena: arena}
	for i, sz := range slabSizeClasses {
		sa.caches[i] = newSlabCache(sz)
	}
	return sa
}

func classFor(size uint32) (int, bool) {
	for i, sz := range slabSizeClasses {
		if size <= sz {
			return i, true
		}
	}
	return 0, false
}

// Alloc returns an arena offset for a size<=256 allocation, or an error
// if the arena cannot grow further.
func (sa *SlabAllocator) Alloc(size uint32) (uint32, error) {
	ci, ok := classFor(size)
	if !ok {
		return 0, fmt.Errorf("galloc: slab size class overflow for %d bytes", size)
	}
	cache := sa.caches[ci]
	for _, pi := range cache.partial {
		p := cache.pages[pi]
		if off, ok := p.alloc(); ok {
			sa.numObjs++
			if p.full() {
				cache.removePartial(pi)
			}
			return off, nil
		}
	}
	base, err := sa.arena.Grow(slabPageSize)
	if err != nil {
		return 0, err
	}
	page := newSlabPage(base, cache.objSize)
	cache.pages = append(cache.pages, page)
	idx := len(cache.pages) - 1
	off, _ := page.alloc()
	sa.numObjs++
	if !page.full() {
		cache.partial = append(cache.partial, idx)
	}
	return off, nil
}

func (c *slabCache) removePartial(pageIdx int) {
	for i, pi := range c.partial {
		if pi == pageIdx {
			c.partial = append(c.partial[:i], c.partial[i+1:]...)
			return
		}
	}
}

func (c *slabCache) pageContaining(offset uint32) (int, *slabPage) {
	for i, p := range c.pages {
		if offset >= p.base && offset < p.base+p.count*p.objSize {
			return i, p
		}
	}
	return -1, nil
}

// Free releases an allocation of the given size back to its class.
// A page that empties stays with its size class and is reused by later
// allocations of that class; it is not returned to the arena.
func (sa *SlabAllocator) Free(offset, size uint32) {
	ci, ok := classFor(size)
	if !ok {
		panic(fmt.Sprintf("galloc: free of unknown slab size %d", size))
	}
	cache := sa.caches[ci]
	pi, p := cache.pageContaining(offset)
	if p == nil {
		panic("galloc: free of offset not owned by any slab page")
	}
	wasFull := p.full()
	p.free_(offset)
	sa.numObjs--
	if wasFull {
		cache.partial = append(cache.partial, pi)
	}
}

// Stats reports basic slab utilization for diagnostics.
type SlabStats struct {
	LiveObjects uint64
	Pages       int
}

func (sa *SlabAllocator) Stats() SlabStats {
	var pages int
	for _, c := range sa.caches {
		pages += len(c.pages)
	}
	return SlabStats{LiveObjects: sa.numObjs, Pages: pages}
}
