// Package cachearray implements the two cache-array organizations used
// by internal/cache: a conventional set-associative array and a
// skew-associative ZCache array with BFS tag-walk replacement.
package cachearray

import (
	"github.com/nexus-arch/coresim/internal/memsys"
	"github.com/nexus-arch/coresim/internal/replacement"
)

// Array is the capability set internal/cache drives an array through:
// preinsert selects a victim for a miss, postinsert commits the new
// line, and Lookup answers a hit/miss query.
type Array interface {
	Lookup(lineAddr memsys.LineAddr) (replacement.LineID, bool)
	Preinsert(req *memsys.MemReq) (victim replacement.LineID, victimValid bool, victimAddr memsys.LineAddr)
	Postinsert(id replacement.LineID, req *memsys.MemReq, lineAddr memsys.LineAddr)
	LineAddrOf(id replacement.LineID) memsys.LineAddr
	Valid(id replacement.LineID) bool
}

// hash mixes a way index into the line address using a 64-bit finalizer
// (the same SplitMix64-style mixing constants used elsewhere in the
// pack's futex-word hashing), so distinct ways of a ZCache see
// uncorrelated set indices for the same line.
func hash(way int, lineAddr memsys.LineAddr) uint64 {
	x := uint64(lineAddr) ^ (uint64(way)*0x9E3779B97F4A7C15 + 0x1)
	x ^= x >> 30
	x *= 0xBF58476D1CE4E5B9
	x ^= x >> 27
	x *= 0x94D049BB133111EB
	x ^= x >> 31
	return x
}

// line is one backing slot shared by both array types: its lineAddr and
// validity.
type line struct {
	addr  memsys.LineAddr
	valid bool
}

// SetAssocArray is a conventional set-associative array: set index =
// hash(0, lineAddr) mod numSets; ways within a set are plain slice
// positions.
type SetAssocArray struct {
	numSets int
	ways    int
	lines   []line
	policy  replacement.Policy
}

// NewSetAssocArray builds a set-associative array with the given number
// of sets and ways, driven by policy for victim selection.
func NewSetAssocArray(numSets, ways int, policy replacement.Policy) *SetAssocArray {
	return &SetAssocArray{
		numSets: numSets,
		ways:    ways,
		lines:   make([]line, numSets*ways),
		policy:  policy,
	}
}

func (a *SetAssocArray) setOf(lineAddr memsys.LineAddr) int {
	return int(hash(0, lineAddr) % uint64(a.numSets))
}

func (a *SetAssocArray) Lookup(lineAddr memsys.LineAddr) (replacement.LineID, bool) {
	set := a.setOf(lineAddr)
	base := set * a.ways
	for w := 0; w < a.ways; w++ {
		l := a.lines[base+w]
		if l.valid && l.addr == lineAddr {
			return replacement.LineID(base + w), true
		}
	}
	return 0, false
}

func (a *SetAssocArray) Preinsert(req *memsys.MemReq) (replacement.LineID, bool, memsys.LineAddr) {
	set := a.setOf(req.LineAddr)
	base := set * a.ways
	cands := make([]replacement.LineID, a.ways)
	for w := 0; w < a.ways; w++ {
		cands[w] = replacement.LineID(base + w)
	}
	victim := a.policy.RankCands(req, cands)
	l := a.lines[victim]
	return victim, l.valid, l.addr
}

func (a *SetAssocArray) Postinsert(id replacement.LineID, req *memsys.MemReq, lineAddr memsys.LineAddr) {
	a.lines[id] = line{addr: lineAddr, valid: true}
	a.policy.Update(id, replacement.AccessInfo{Req: req})
}

func (a *SetAssocArray) LineAddrOf(id replacement.LineID) memsys.LineAddr { return a.lines[id].addr }
func (a *SetAssocArray) Valid(id replacement.LineID) bool                 { return a.lines[id].valid }

// Invalidate clears a slot without going through the replacement policy
// (used when a line is evicted via coherence rather than replaced).
func (a *SetAssocArray) Invalidate(id replacement.LineID) {
	a.lines[id].valid = false
	a.policy.Replaced(id)
}
