package replacement

import (
	"math/rand"

	"github.com/nexus-arch/coresim/internal/memsys"
)

// TreeLRU approximates true LRU with a binary tree of "most-recently-used
// direction" bits, one per internal node, cheaper to maintain than full
// per-way timestamps at the cost of only approximate ordering.
type TreeLRU struct {
	valid ValidChecker
	ways  int
	bits  map[int][]bool // per-set tree bits, keyed by the request's set (derived externally)
	slotToWay map[LineID]int
	slotToSet map[LineID]int
}

// NewTreeLRU creates a Tree-LRU policy over arrays with the given
// associativity.
func NewTreeLRU(valid ValidChecker, ways int) *TreeLRU {
	return &TreeLRU{
		valid:     valid,
		ways:      ways,
		bits:      make(map[int][]bool),
		slotToWay: make(map[LineID]int),
		slotToSet: make(map[LineID]int),
	}
}

// BindSlot associates a LineID with its (set, way) coordinates; the
// owning array calls this once per slot at construction time since the
// tree-bit update needs to know which way within the set was touched.
func (p *TreeLRU) BindSlot(id LineID, set, way int) {
	p.slotToSet[id] = set
	p.slotToWay[id] = way
	if _, ok := p.bits[set]; !ok {
		p.bits[set] = make([]bool, p.ways-1)
	}
}

func (p *TreeLRU) Update(id LineID, info AccessInfo) {
	set, ok := p.slotToSet[id]
	if !ok {
		return
	}
	way := p.slotToWay[id]
	tree := p.bits[set]
	node := 0
	depth := 0
	for p.ways>>uint(depth) > 1 {
		// shift selects which half of the remaining way-range `way` falls
		// into at this tree depth.
		levelWays := p.ways >> uint(depth)
		half := levelWays / 2
		localWay := way % levelWays
		goRight := localWay >= half
		tree[node] = !goRight
		if goRight {
			node = node*2 + 2
		} else {
			node = node*2 + 1
		}
		depth++
	}
}

func (p *TreeLRU) Replaced(id LineID) {}

func (p *TreeLRU) RankCands(req *memsys.MemReq, candidates []LineID) LineID {
	// Prefer any invalid candidate first.
	for _, c := range candidates {
		if !p.valid.Valid(c) {
			return c
		}
	}
	// Walk the tree from the root of the owning set, following the
	// "least recently used" direction at each node, to find the LRU way,
	// then pick whichever candidate matches that way.
	set := p.slotToSet[candidates[0]]
	tree := p.bits[set]
	node := 0
	way := 0
	levelWays := p.ways
	for levelWays > 1 {
		half := levelWays / 2
		if tree[node] {
			// MRU went left, so LRU direction is right.
			way += half
			node = node*2 + 2
		} else {
			node = node*2 + 1
		}
		levelWays = half
	}
	for _, c := range candidates {
		if p.slotToWay[c] == way {
			return c
		}
	}
	return candidates[0]
}

// NRU is the 2-bit not-recently-used policy: each slot carries a
// referenced bit (R, set on every touch) and a modified bit (M, set when
// the touching request is a write), forming four eviction-priority
// classes scanned worst-to-best: (0,0) not-referenced-not-modified is
// the preferred victim, (1,1) referenced-and-modified the least
// preferred. If no candidate is in the (0,0) class, the R bits for these
// candidates are cleared and the scan retried once so
// progress is guaranteed (matches the classic clock-style NRU
// second-pass fallback).
type NRU struct {
	valid ValidChecker
	r     map[LineID]bool
	m     map[LineID]bool
}

func NewNRU(valid ValidChecker) *NRU {
	return &NRU{valid: valid, r: make(map[LineID]bool), m: make(map[LineID]bool)}
}

func (p *NRU) Update(id LineID, info AccessInfo) {
	p.r[id] = true
	if info.Req != nil && (info.Req.Type == memsys.GETX || info.Req.Type == memsys.PUTX) {
		p.m[id] = true
	}
}

func (p *NRU) Replaced(id LineID) {
	delete(p.r, id)
	delete(p.m, id)
}

// class maps a candidate's (R,M) bits to an eviction priority, lowest
// wins: 0 = (0,0), 1 = (0,1), 2 = (1,0), 3 = (1,1).
func (p *NRU) class(id LineID) int {
	class := 0
	if p.r[id] {
		class += 2
	}
	if p.m[id] {
		class += 1
	}
	return class
}

func (p *NRU) RankCands(req *memsys.MemReq, candidates []LineID) LineID {
	for _, c := range candidates {
		if !p.valid.Valid(c) {
			return c
		}
	}
	for _, try := range []int{0, 1} {
		best := candidates[0]
		bestClass := p.class(best)
		for _, c := range candidates[1:] {
			if cl := p.class(c); cl < bestClass {
				best, bestClass = c, cl
			}
		}
		if bestClass == 0 || try == 1 {
			return best
		}
		// No not-referenced-not-modified candidate this pass: clear R
		// bits for these candidates and retry once.
		for _, c := range candidates {
			p.r[c] = false
		}
	}
	return candidates[0]
}

// Random picks a uniformly random candidate, preferring any invalid one.
type Random struct {
	valid ValidChecker
	rng   *rand.Rand
}

func NewRandom(valid ValidChecker, seed int64) *Random {
	return &Random{valid: valid, rng: rand.New(rand.NewSource(seed))}
}

func (p *Random) Update(id LineID, info AccessInfo) {}
func (p *Random) Replaced(id LineID)                {}

func (p *Random) RankCands(req *memsys.MemReq, candidates []LineID) LineID {
	for _, c := range candidates {
		if !p.valid.Valid(c) {
			return c
		}
	}
	return candidates[p.rng.Intn(len(candidates))]
}

// LFU ranks by a center-of-mass timestamp combined with access count:
// score = timestampSum / count, so frequently-touched-but-old lines are
// not unduly penalized versus rarely-touched recent ones.
type LFU struct {
	valid    ValidChecker
	tsSum    map[LineID]uint64
	count    map[LineID]uint64
	clock    uint64
}

func NewLFU(valid ValidChecker) *LFU {
	return &LFU{valid: valid, tsSum: make(map[LineID]uint64), count: make(map[LineID]uint64)}
}

func (p *LFU) Update(id LineID, info AccessInfo) {
	p.clock++
	p.tsSum[id] += p.clock
	p.count[id]++
}

func (p *LFU) Replaced(id LineID) {
	delete(p.tsSum, id)
	delete(p.count, id)
}

func (p *LFU) score(id LineID) float64 {
	if !p.valid.Valid(id) {
		return -1
	}
	c := p.count[id]
	if c == 0 {
		return 0
	}
	return float64(p.tsSum[id]) / float64(c)
}

func (p *LFU) RankCands(req *memsys.MemReq, candidates []LineID) LineID {
	best := candidates[0]
	bestScore := p.score(best)
	for _, c := range candidates[1:] {
		s := p.score(c)
		if s < bestScore {
			best, bestScore = c, s
		}
	}
	return best
}
