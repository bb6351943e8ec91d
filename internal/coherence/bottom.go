// Package coherence implements the two-sided MESI coherence controller:
// BottomCC tracks a cache's state versus its parent, TopCC tracks a
// cache's state versus its children and their sharer set (spec §4.2).
package coherence

import (
	"fmt"
	"sync"

	"github.com/nexus-arch/coresim/internal/memsys"
)

// Parent is the minimal capability BottomCC needs from whatever sits
// above it (another Cache, or the DDR-backed memory system at the root).
type Parent interface {
	// Access issues req upward and returns the line's granted state.
	Access(req *memsys.MemReq) (memsys.Response, error)
}

// bottomLineState is the per-line state BottomCC tracks for one child
// cache's relationship with its parent.
type bottomLineState struct {
	state memsys.MESIState
}

// BottomCC tracks MESI state versus the parent for every line resident
// in the owning cache.
type BottomCC struct {
	mu     sync.Mutex
	lines  map[memsys.LineAddr]*bottomLineState
	parent Parent

	smMisses uint64 // GETX upgrade misses (S->M), counted per spec §4.2
}

// NewBottomCC creates a BottomCC issuing parent traffic through parent.
func NewBottomCC(parent Parent) *BottomCC {
	return &BottomCC{lines: make(map[memsys.LineAddr]*bottomLineState), parent: parent}
}

func (b *BottomCC) Lock()   { b.mu.Lock() }
func (b *BottomCC) Unlock() { b.mu.Unlock() }

// State returns the current MESI state for lineAddr (I if untracked).
func (b *BottomCC) State(lineAddr memsys.LineAddr) memsys.MESIState {
	if ls, ok := b.lines[lineAddr]; ok {
		return ls.state
	}
	return memsys.I
}

// Access drives the bottom-CC half of spec §4.2's processAccess step:
// on a miss it issues the appropriate request to the parent and installs
// the granted state locally; on a hit it returns immediately without
// parent traffic. A PUTS/PUTX (eviction or pass-through writeback) is
// forwarded to the parent and leaves the line in I.
func (b *BottomCC) Access(lineAddr memsys.LineAddr, req *memsys.MemReq) (memsys.MESIState, error) {
	ls, ok := b.lines[lineAddr]
	if !ok {
		ls = &bottomLineState{state: memsys.I}
		b.lines[lineAddr] = ls
	}

	switch req.Type {
	case memsys.GETS:
		switch ls.state {
		case memsys.I:
			resp, err := b.parent.Access(req)
			if err != nil {
				return memsys.I, err
			}
			want := memsys.E
			if req.Flags.Has(memsys.FlagNoExcl) || resp.State != memsys.E {
				want = resp.State
				if want == memsys.I {
					want = memsys.S
				}
			}
			ls.state = want
			return ls.state, nil
		default:
			return ls.state, nil // S|E|M: hit, no parent traffic
		}
	case memsys.GETX:
		switch ls.state {
		case memsys.I:
			resp, err := b.parent.Access(req)
			if err != nil {
				return memsys.I, err
			}
			_ = resp
			ls.state = memsys.M
			return ls.state, nil
		case memsys.S:
			b.smMisses++
			resp, err := b.parent.Access(req)
			if err != nil {
				return ls.state, err
			}
			_ = resp
			ls.state = memsys.M
			return ls.state, nil
		case memsys.E, memsys.M:
			ls.state = memsys.M
			return ls.state, nil // hit
		}
	case memsys.PUTS, memsys.PUTX:
		if _, err := b.parent.Access(req); err != nil {
			return ls.state, err
		}
		ls.state = memsys.I
		return ls.state, nil
	}
	return ls.state, fmt.Errorf("coherence: bottom CC unexpected access type %v in state %v", req.Type, ls.state)
}

// Invalidate applies an invalidation/downgrade/forward arriving from the
// parent, per spec §4.2's BottomCC transition table.
func (b *BottomCC) Invalidate(lineAddr memsys.LineAddr, invType memsys.InvType) memsys.InvResp {
	ls, ok := b.lines[lineAddr]
	if !ok {
		return memsys.InvResp{State: memsys.I}
	}
	switch invType {
	case memsys.INV:
		wasM := ls.state == memsys.M
		ls.state = memsys.I
		return memsys.InvResp{WritebackNeeded: wasM, State: memsys.I}
	case memsys.INVX:
		wasM := ls.state == memsys.M
		if ls.state == memsys.M || ls.state == memsys.E {
			ls.state = memsys.S
		}
		return memsys.InvResp{WritebackNeeded: wasM, State: ls.state}
	case memsys.FWD:
		if ls.state != memsys.S {
			panic(fmt.Sprintf("coherence: FWD received for line in state %v, only valid on S", ls.state))
		}
		return memsys.InvResp{State: ls.state}
	}
	panic(fmt.Sprintf("coherence: unknown invalidation type %v", invType))
}

// Evict removes all bookkeeping for lineAddr (after a successful
// eviction writeback has been driven to the parent).
func (b *BottomCC) Evict(lineAddr memsys.LineAddr) {
	delete(b.lines, lineAddr)
}

// SMMisses reports the number of S->M upgrade misses observed, for
// stats.
func (b *BottomCC) SMMisses() uint64 { return b.smMisses }
