package coherence

import (
	"sync"

	"github.com/nexus-arch/coresim/internal/memsys"
)

// Child is the minimal capability TopCC needs to invalidate/downgrade a
// specific child cache.
type Child interface {
	Invalidate(lineAddr memsys.LineAddr, invType memsys.InvType) memsys.InvResp
}

// topLineState tracks one line's sharer set at this cache level, per
// spec §3: "S: zero or more children may hold the line (sharer set
// tracked in top controller)".
type topLineState struct {
	sharers   map[memsys.ChildID]bool
	exclusive bool // true iff exactly one sharer, holding E or M
}

// TopCC tracks sharer sets for every line this cache's children may
// hold, and drives invalidation fan-out on GETX / conflicting GETS.
type TopCC struct {
	mu       sync.Mutex
	lines    map[memsys.LineAddr]*topLineState
	children func(id memsys.ChildID) Child
}

// NewTopCC creates a TopCC. childOf resolves a ChildID to the Child
// capability used to deliver invalidations.
func NewTopCC(childOf func(id memsys.ChildID) Child) *TopCC {
	return &TopCC{lines: make(map[memsys.LineAddr]*topLineState), children: childOf}
}

func (t *TopCC) Lock()   { t.mu.Lock() }
func (t *TopCC) Unlock() { t.mu.Unlock() }

func (t *TopCC) lineFor(lineAddr memsys.LineAddr) *topLineState {
	ls, ok := t.lines[lineAddr]
	if !ok {
		ls = &topLineState{sharers: make(map[memsys.ChildID]bool)}
		t.lines[lineAddr] = ls
	}
	return ls
}

// AccessResult reports the new child state plus whether an induced
// writeback (from invalidating an M sharer) must be propagated upward.
type AccessResult struct {
	ChildState       memsys.MESIState
	InducedWriteback bool
}

// GETS implements spec §4.2's TopCC GETS transition table.
func (t *TopCC) GETS(lineAddr memsys.LineAddr, child memsys.ChildID, flags memsys.ReqFlags) AccessResult {
	ls := t.lineFor(lineAddr)
	noExcl := flags.Has(memsys.FlagNoExcl)

	switch {
	case len(ls.sharers) == 0:
		ls.sharers[child] = true
		if noExcl {
			ls.exclusive = false
			return AccessResult{ChildState: memsys.S}
		}
		ls.exclusive = true
		return AccessResult{ChildState: memsys.E}

	case ls.exclusive:
		var holder memsys.ChildID
		for c := range ls.sharers {
			holder = c
		}
		resp := t.children(holder).Invalidate(lineAddr, memsys.INVX)
		ls.exclusive = false
		ls.sharers[child] = true
		return AccessResult{ChildState: memsys.S, InducedWriteback: resp.WritebackNeeded}

	default:
		ls.sharers[child] = true
		return AccessResult{ChildState: memsys.S}
	}
}

// GETX implements spec §4.2's TopCC GETX transition table: invalidate
// every other sharer, then grant exclusive ownership to child.
func (t *TopCC) GETX(lineAddr memsys.LineAddr, child memsys.ChildID) AccessResult {
	ls := t.lineFor(lineAddr)
	induced := false
	for c := range ls.sharers {
		if c == child {
			continue
		}
		resp := t.children(c).Invalidate(lineAddr, memsys.INV)
		if resp.WritebackNeeded {
			induced = true
		}
		delete(ls.sharers, c)
	}
	ls.sharers = map[memsys.ChildID]bool{child: true}
	ls.exclusive = true
	return AccessResult{ChildState: memsys.M, InducedWriteback: induced}
}

// NumSharers reports the current sharer count for lineAddr.
func (t *TopCC) NumSharers(lineAddr memsys.LineAddr) int {
	ls, ok := t.lines[lineAddr]
	if !ok {
		return 0
	}
	return len(ls.sharers)
}

// Exclusive reports whether exactly one child holds lineAddr exclusively
// (E or M).
func (t *TopCC) Exclusive(lineAddr memsys.LineAddr) bool {
	ls, ok := t.lines[lineAddr]
	return ok && ls.exclusive
}

// IsSharer reports whether child is currently recorded as a sharer of
// lineAddr (used by the non-inclusive-hack check in internal/cache).
func (t *TopCC) IsSharer(lineAddr memsys.LineAddr, child memsys.ChildID) bool {
	ls, ok := t.lines[lineAddr]
	return ok && ls.sharers[child]
}

// RemoveSharer drops child from lineAddr's sharer set (used when a
// child's PUT is processed).
func (t *TopCC) RemoveSharer(lineAddr memsys.LineAddr, child memsys.ChildID) {
	ls, ok := t.lines[lineAddr]
	if !ok {
		return
	}
	delete(ls.sharers, child)
	if len(ls.sharers) != 1 {
		ls.exclusive = false
	}
	if len(ls.sharers) == 0 {
		delete(t.lines, lineAddr)
	}
}

// InvalidateAll sends invType to every current sharer of lineAddr (used
// by Cache.processEviction to clear out a line before reusing its slot),
// returning whether any sharer reported a needed writeback.
func (t *TopCC) InvalidateAll(lineAddr memsys.LineAddr, invType memsys.InvType) bool {
	ls, ok := t.lines[lineAddr]
	if !ok {
		return false
	}
	induced := false
	for c := range ls.sharers {
		resp := t.children(c).Invalidate(lineAddr, invType)
		if resp.WritebackNeeded {
			induced = true
		}
	}
	delete(t.lines, lineAddr)
	return induced
}
