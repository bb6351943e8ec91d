package galloc

import (
	"encoding/binary"
	"fmt"
)

const (
	minBuddySize  = 4096
	maxBuddySize  = 1 << 20 // 1 MiB
	numBuddyLevels = 9       // log2(maxBuddySize/minBuddySize) + 1
)

// BuddyAllocator serves 256B-1MiB allocations out of a backing arena
// using the classic buddy scheme. Free lists are singly linked chains
// whose "next" pointers are written directly into the backing bytes at
// each free block's first four bytes, avoiding a separate pointer-chasing
// structure — the same technique the teacher's WASM buddy allocator used
// for its SharedArrayBuffer-backed free lists.
type BuddyAllocator struct {
	arena     *Arena
	freeLists [numBuddyLevels]uint32 // arena offset of list head, or sentinelNone
	allocated map[uint32]int         // offset -> level, for Free's size lookup
	regionBase uint32
	regionSize uint32
}

const sentinelNone = ^uint32(0)

// NewBuddyAllocator reserves a regionSize-byte region from arena (rounded
// up to a multiple of maxBuddySize) and initializes it as one maximal
// free block per maxBuddySize chunk.
func NewBuddyAllocator(arena *Arena, regionSize uint32) (*BuddyAllocator, error) {
	chunks := (regionSize + maxBuddySize - 1) / maxBuddySize
	total := chunks * maxBuddySize
	base, err := arena.Grow(total)
	if err != nil {
		return nil, err
	}
	b := &BuddyAllocator{
		arena:      arena,
		allocated:  make(map[uint32]int),
		regionBase: base,
		regionSize: total,
	}
	for i := range b.freeLists {
		b.freeLists[i] = sentinelNone
	}
	for c := uint32(0); c < chunks; c++ {
		b.pushFree(numBuddyLevels-1, base+c*maxBuddySize)
	}
	return b, nil
}

func levelSize(level int) uint32 {
	return minBuddySize << uint(level)
}

func levelForSize(size uint32) int {
	lvl := 0
	sz := uint32(minBuddySize)
	for sz < size {
		sz <<= 1
		lvl++
	}
	return lvl
}

func (b *BuddyAllocator) writeU32(offset, v uint32) {
	binary.LittleEndian.PutUint32(b.arena.bytes[offset:offset+4], v)
}

func (b *BuddyAllocator) readU32(offset uint32) uint32 {
	return binary.LittleEndian.Uint32(b.arena.bytes[offset : offset+4])
}

func (b *BuddyAllocator) pushFree(level int, offset uint32) {
	b.writeU32(offset, b.freeLists[level])
	b.freeLists[level] = offset
}

func (b *BuddyAllocator) popFree(level int) (uint32, bool) {
	head := b.freeLists[level]
	if head == sentinelNone {
		return 0, false
	}
	b.freeLists[level] = b.readU32(head)
	return head, true
}

func (b *BuddyAllocator) removeFree(level int, offset uint32) bool {
	cur := b.freeLists[level]
	if cur == sentinelNone {
		return false
	}
	if cur == offset {
		b.freeLists[level] = b.readU32(offset)
		return true
	}
	prev := cur
	cur = b.readU32(cur)
	for cur != sentinelNone {
		if cur == offset {
			b.writeU32(prev, b.readU32(cur))
			return true
		}
		prev = cur
		cur = b.readU32(cur)
	}
	return false
}

// buddyOf computes the XOR-paired address of a block at the given level
// relative to the region base.
func (b *BuddyAllocator) buddyOf(offset uint32, level int) uint32 {
	rel := offset - b.regionBase
	return b.regionBase + (rel ^ levelSize(level))
}

// Alloc returns an arena offset for a size (256B..1MiB] allocation by
// splitting a larger free block down to the requested level.
func (b *BuddyAllocator) Alloc(size uint32) (uint32, error) {
	if size > maxBuddySize {
		return 0, fmt.Errorf("galloc: buddy allocation of %d bytes exceeds max %d", size, maxBuddySize)
	}
	want := levelForSize(size)
	lvl := want
	for lvl < numBuddyLevels && b.freeLists[lvl] == sentinelNone {
		lvl++
	}
	if lvl == numBuddyLevels {
		return 0, fmt.Errorf("galloc: buddy allocator exhausted for %d bytes", size)
	}
	block, _ := b.popFree(lvl)
	for lvl > want {
		lvl--
		half := levelSize(lvl)
		buddy := block + half
		b.pushFree(lvl, buddy)
	}
	b.allocated[block] = want
	return block, nil
}

// Free returns a previously allocated block, coalescing with its buddy
// repeatedly while the buddy is also free.
func (b *BuddyAllocator) Free(offset uint32) {
	level, ok := b.allocated[offset]
	if !ok {
		panic("galloc: buddy free of untracked offset")
	}
	delete(b.allocated, offset)
	for level < numBuddyLevels-1 {
		buddy := b.buddyOf(offset, level)
		if !b.removeFree(level, buddy) {
			break
		}
		if buddy < offset {
			offset = buddy
		}
		level++
	}
	b.pushFree(level, offset)
}

// BuddyStats reports coarse fragmentation information.
type BuddyStats struct {
	LiveBlocks   int
	FreeBlocks   int
	Fragmentation float64 // fraction of free bytes stranded below maxBuddySize
}

func (b *BuddyAllocator) Stats() BuddyStats {
	free := 0
	freeBytes := uint64(0)
	for lvl := 0; lvl < numBuddyLevels; lvl++ {
		for off := b.freeLists[lvl]; off != sentinelNone; off = b.readU32(off) {
			free++
			freeBytes += uint64(levelSize(lvl))
		}
	}
	var frag float64
	topFree := uint64(0)
	for off := b.freeLists[numBuddyLevels-1]; off != sentinelNone; off = b.readU32(off) {
		topFree += maxBuddySize
	}
	if freeBytes > 0 {
		frag = 1.0 - float64(topFree)/float64(freeBytes)
	}
	return BuddyStats{LiveBlocks: len(b.allocated), FreeBlocks: free, Fragmentation: frag}
}
