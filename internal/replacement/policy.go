// Package replacement implements the cache-array replacement policies:
// LRU, Tree-LRU, NRU, Random, LFU, a profiling-violation wrapper, way
// partitioning, Vantage managed/unmanaged partitioning, and the
// lookahead utility partitioner.
package replacement

import "github.com/nexus-arch/coresim/internal/memsys"

// LineID identifies one slot in a cache array, stable across the slot's
// lifetime (index into the array's backing line vector).
type LineID int32

// AccessInfo is what a policy needs to know about the access that
// touched (or is about to touch) a line.
type AccessInfo struct {
	Req      *memsys.MemReq
	NumSharers int // top-CC sharer count after this access, for sharer-aware scoring
}

// Policy is the capability set every replacement policy implements,
// matching spec §4.2's {update, replaced, rankCands} interface.
type Policy interface {
	// Update is called whenever a line is touched (hit or newly
	// inserted) with the access that touched it.
	Update(id LineID, info AccessInfo)
	// Replaced is called when a line is evicted, before the slot is
	// reused, so the policy can clear any per-line bookkeeping.
	Replaced(id LineID)
	// RankCands returns the best victim among candidates (lowest rank
	// wins), given the incoming request.
	RankCands(req *memsys.MemReq, candidates []LineID) LineID
}

// ValidChecker lets a policy ask the owning array whether a candidate
// slot currently holds valid data, since invalid slots must strictly
// precede valid ones in ranking (spec §8).
type ValidChecker interface {
	Valid(id LineID) bool
}
