package replacement

import (
	"testing"

	"github.com/nexus-arch/coresim/internal/memsys"
	"github.com/stretchr/testify/require"
)

type fakeValid struct {
	invalid map[LineID]bool
}

func (f fakeValid) Valid(id LineID) bool { return !f.invalid[id] }

func TestLRUInvalidPrecedesValid(t *testing.T) {
	fv := fakeValid{invalid: map[LineID]bool{2: true}}
	p := NewLRU(fv)
	p.Update(0, AccessInfo{Req: &memsys.MemReq{Cycle: 1}})
	p.Update(1, AccessInfo{Req: &memsys.MemReq{Cycle: 2}})

	victim := p.RankCands(&memsys.MemReq{}, []LineID{0, 1, 2})
	require.Equal(t, LineID(2), victim, "invalid slot must always be chosen over any valid one")
}

func TestLRUPicksOldestUnshared(t *testing.T) {
	fv := fakeValid{}
	p := NewLRU(fv)
	p.Update(0, AccessInfo{Req: &memsys.MemReq{}, NumSharers: 0})
	p.Update(1, AccessInfo{Req: &memsys.MemReq{}, NumSharers: 0})

	victim := p.RankCands(&memsys.MemReq{}, []LineID{0, 1})
	require.Equal(t, LineID(0), victim, "older (lower timestamp) unshared line must be evicted first")
}

func TestVantagePromotesUnmanagedHit(t *testing.T) {
	fv := fakeValid{}
	partOf := func(req *memsys.MemReq) string {
		if req.SrcID == 1 {
			return "p1"
		}
		return ""
	}
	v := NewVantage(fv, partOf, 0.5, false)
	v.SetTarget("p1", 4)

	// First touch with no partition: lands unmanaged.
	v.Update(0, AccessInfo{Req: &memsys.MemReq{SrcID: 0}})
	require.Equal(t, "", v.slotPart[0])

	// A hit from partition p1 promotes it out of unmanaged.
	v.Update(0, AccessInfo{Req: &memsys.MemReq{SrcID: 1}})
	require.Equal(t, "p1", v.slotPart[0])
	require.Equal(t, 1, v.partitionFor("p1").curSize)
}
