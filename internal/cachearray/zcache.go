package cachearray

import (
	"fmt"

	"github.com/nexus-arch/coresim/internal/memsys"
	"github.com/nexus-arch/coresim/internal/replacement"
)

// ZCacheArray is a skew-associative array: `ways` independent hash
// functions each index into their own numSets-sized partition of one
// flat backing array, and associativity is gained at replacement time by
// relocating lines along a BFS-discovered swap chain rather than
// confining a line to a fixed set (spec §4.2).
//
// `lookupArray` is always a permutation of slot indices over position
// space: lookupArray[position] names which physical storage slot is
// logically resident at that position. Insertion/eviction rotate this
// permutation along a swap chain instead of moving any slot's stored
// tag/data, except for the one slot freed by eviction, which is
// overwritten with the newly inserted line.
type ZCacheArray struct {
	ways    int
	numSets int
	numLines int
	cands   int

	lookupArray []int // position -> slot index, length numLines
	slots       []line // physical storage, indexed by slot
	policy      replacement.Policy
}

// NewZCacheArray builds a ZCache with the given total line count, way
// count, candidate-set size for BFS expansion, and replacement policy.
// Panics on the numeric invariants spec §4.2 requires: cands >= ways,
// numLines % ways == 0, and numSets = numLines/ways a power of two.
func NewZCacheArray(numLines, ways, cands int, policy replacement.Policy) *ZCacheArray {
	if cands < ways {
		panic(fmt.Sprintf("cachearray: zcache cands (%d) must be >= ways (%d)", cands, ways))
	}
	if numLines%ways != 0 {
		panic(fmt.Sprintf("cachearray: zcache numLines (%d) must be a multiple of ways (%d)", numLines, ways))
	}
	numSets := numLines / ways
	if numSets&(numSets-1) != 0 {
		panic(fmt.Sprintf("cachearray: zcache numSets (%d) must be a power of two", numSets))
	}
	z := &ZCacheArray{
		ways:        ways,
		numSets:     numSets,
		numLines:    numLines,
		cands:       cands,
		lookupArray: make([]int, numLines),
		slots:       make([]line, numLines),
		policy:      policy,
	}
	for i := range z.lookupArray {
		z.lookupArray[i] = i
	}
	return z
}

// position computes way w's candidate position for lineAddr: a
// position within way w's own numSets-sized partition of the flat
// position space.
func (z *ZCacheArray) position(w int, lineAddr memsys.LineAddr) int {
	return w*z.numSets + int(hash(w, lineAddr)%uint64(z.numSets))
}

func (z *ZCacheArray) slotAt(position int) int { return z.lookupArray[position] }

// Lookup checks all `ways` candidate positions for lineAddr.
func (z *ZCacheArray) Lookup(lineAddr memsys.LineAddr) (replacement.LineID, bool) {
	for w := 0; w < z.ways; w++ {
		pos := z.position(w, lineAddr)
		slot := z.slotAt(pos)
		if z.slots[slot].valid && z.slots[slot].addr == lineAddr {
			return replacement.LineID(slot), true
		}
	}
	return 0, false
}

func (z *ZCacheArray) LineAddrOf(id replacement.LineID) memsys.LineAddr { return z.slots[id].addr }
func (z *ZCacheArray) Valid(id replacement.LineID) bool                 { return z.slots[id].valid }

// bfsCand is one node of the BFS tag-walk expansion.
type bfsCand struct {
	position  int
	slot      int
	parentIdx int // index into the cands slice, -1 for a seed
	wayUsed   int // which hash way reached this position, to avoid reflecting immediately back
}

// Preinsert runs the BFS tag-walk to find a victim for req, per spec
// §4.2: seed with the `ways` direct positions; expand each valid
// candidate's line into its alternate-way positions until at least
// `cands` candidates exist or a seed is itself empty (an immediate,
// eviction-free win).
func (z *ZCacheArray) Preinsert(req *memsys.MemReq) (replacement.LineID, bool, memsys.LineAddr) {
	var cands []bfsCand
	for w := 0; w < z.ways; w++ {
		pos := z.position(w, req.LineAddr)
		slot := z.slotAt(pos)
		cands = append(cands, bfsCand{position: pos, slot: slot, parentIdx: -1, wayUsed: w})
		if !z.slots[slot].valid {
			// An empty seed is an immediate win: no eviction needed.
			return replacement.LineID(slot), false, 0
		}
	}

	frontier := append([]bfsCand(nil), cands...)
	for len(cands) < z.cands {
		var nextFrontier []bfsCand
		emptyFound := false
		for _, parent := range frontier {
			parentIdx := indexOf(cands, parent)
			addr := z.slots[parent.slot].addr
			for w := 0; w < z.ways; w++ {
				if w == parent.wayUsed {
					continue
				}
				pos := z.position(w, addr)
				slot := z.slotAt(pos)
				child := bfsCand{position: pos, slot: slot, parentIdx: parentIdx, wayUsed: w}
				cands = append(cands, child)
				nextFrontier = append(nextFrontier, child)
				if !z.slots[slot].valid {
					emptyFound = true
				}
				if len(cands) >= z.cands {
					break
				}
			}
			if len(cands) >= z.cands {
				break
			}
		}
		if emptyFound || len(nextFrontier) == 0 {
			break
		}
		frontier = nextFrontier
	}

	lineIDs := make([]replacement.LineID, len(cands))
	for i, c := range cands {
		lineIDs[i] = replacement.LineID(c.slot)
	}
	victimSlot := z.policy.RankCands(req, lineIDs)

	victimCandIdx := -1
	for i, c := range cands {
		if replacement.LineID(c.slot) == victimSlot {
			victimCandIdx = i
			break
		}
	}
	if victimCandIdx < 0 {
		panic("cachearray: zcache victim not found among its own candidates")
	}

	z.rotateChain(cands, victimCandIdx)
	victimAddr := z.slots[victimSlot].addr
	victimValid := z.slots[victimSlot].valid
	return victimSlot, victimValid, victimAddr
}

func indexOf(cands []bfsCand, target bfsCand) int {
	for i, c := range cands {
		if c.position == target.position && c.slot == target.slot {
			return i
		}
	}
	return -1
}

// rotateChain walks parentIdx pointers from the chosen victim back to
// its seed and rotates lookupArray along that chain, per spec §4.2's
// swap-chain description: every position but the seed inherits its
// predecessor's occupant slot; the seed position is left pointing at the
// victim's (now-freed) slot, ready to be overwritten by postinsert.
func (z *ZCacheArray) rotateChain(cands []bfsCand, victimIdx int) {
	var chain []int // candidate indices, seed-first
	for i := victimIdx; i != -1; i = cands[i].parentIdx {
		chain = append(chain, i)
	}
	// chain is currently victim-first; reverse to seed-first.
	for l, r := 0, len(chain)-1; l < r; l, r = l+1, r-1 {
		chain[l], chain[r] = chain[r], chain[l]
	}
	if len(chain) <= 1 {
		return
	}
	freedSlot := cands[chain[len(chain)-1]].slot
	for i := len(chain) - 1; i > 0; i-- {
		pos := cands[chain[i]].position
		prevPos := cands[chain[i-1]].position
		z.lookupArray[pos] = z.lookupArray[prevPos]
	}
	z.lookupArray[cands[chain[0]].position] = freedSlot
}

// Postinsert commits the new line into the slot Preinsert selected
// (named by id, the freed/empty slot) and updates the replacement
// policy.
func (z *ZCacheArray) Postinsert(id replacement.LineID, req *memsys.MemReq, lineAddr memsys.LineAddr) {
	z.slots[id] = line{addr: lineAddr, valid: true}
	z.policy.Update(id, replacement.AccessInfo{Req: req})
}

// Invalidate clears a slot without consulting the replacement policy's
// ranking, used when a line is removed via coherence rather than
// replaced.
func (z *ZCacheArray) Invalidate(id replacement.LineID) {
	z.slots[id].valid = false
	z.policy.Replaced(id)
}

// IsPermutation reports whether lookupArray is currently a bijection
// over [0, numLines) -- the invariant spec §8 requires to hold at all
// times ("tag count conserved").
func (z *ZCacheArray) IsPermutation() bool {
	seen := make([]bool, z.numLines)
	for _, slot := range z.lookupArray {
		if slot < 0 || slot >= z.numLines || seen[slot] {
			return false
		}
		seen[slot] = true
	}
	return true
}
