package replacement

import "github.com/nexus-arch/coresim/internal/memsys"

// LRU is the sharer-aware least-recently-used policy (spec §4.2): each
// slot carries a monotonically increasing timestamp; the victim is the
// lowest score = sharers*T + timestamp*valid, so unshared lines are
// always preferred over shared ones on ties, and invalid slots (score 0)
// always precede valid ones.
type LRU struct {
	valid   ValidChecker
	ts      map[LineID]uint64
	sharers map[LineID]int
	clock   uint64
	// T must exceed the maximum possible timestamp delta within one
	// ranking window so the sharers term dominates ties; we use the
	// current clock value itself, refreshed on each RankCands call.
}

// NewLRU creates an LRU policy. valid is consulted by RankCands to keep
// invalid slots ranked ahead of any valid one.
func NewLRU(valid ValidChecker) *LRU {
	return &LRU{valid: valid, ts: make(map[LineID]uint64), sharers: make(map[LineID]int)}
}

func (p *LRU) Update(id LineID, info AccessInfo) {
	p.clock++
	p.ts[id] = p.clock
	p.sharers[id] = info.NumSharers
}

func (p *LRU) Replaced(id LineID) {
	delete(p.ts, id)
	delete(p.sharers, id)
}

func (p *LRU) score(id LineID) uint64 {
	if !p.valid.Valid(id) {
		return 0
	}
	t := uint64(p.sharers[id])*(p.clock+1) + p.ts[id]
	return t + 1 // keep strictly > 0 so invalid (score 0) always precedes valid
}

func (p *LRU) RankCands(req *memsys.MemReq, candidates []LineID) LineID {
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
