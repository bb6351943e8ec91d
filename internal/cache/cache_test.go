package cache

import (
	"testing"

	"github.com/nexus-arch/coresim/internal/cachearray"
	"github.com/nexus-arch/coresim/internal/coherence"
	"github.com/nexus-arch/coresim/internal/memsys"
	"github.com/nexus-arch/coresim/internal/replacement"
	"github.com/stretchr/testify/require"
)

// memParent is a trivial "DDR-backed" root that always grants exclusive
// access with zero latency, for cache-level unit tests.
type memParent struct{}

func (memParent) Access(req *memsys.MemReq) (memsys.Response, error) {
	state := memsys.E
	if req.Type == memsys.GETX {
		state = memsys.M
	}
	return memsys.Response{State: state}, nil
}

func newTestCache(t *testing.T, terminal bool) (*Cache, *validAdapter) {
	va := &validAdapter{}
	policy := replacement.NewLRU(va)
	arr := cachearray.NewSetAssocArray(4, 4, policy)
	va.arr = arr
	c := New("L1", Config{Terminal: terminal}, arr, memParent{}, nil)
	return c, va
}

type validAdapter struct{ arr *cachearray.SetAssocArray }

func (v *validAdapter) Valid(id replacement.LineID) bool { return v.arr.Valid(id) }

func TestCacheGETSMissInstallsExclusive(t *testing.T) {
	c, _ := newTestCache(t, false)
	req := &memsys.MemReq{LineAddr: 10, Type: memsys.GETS, ChildID: 0, State: memsys.I, InitialState: memsys.I}
	resp, err := c.Access(req)
	require.NoError(t, err)
	require.Equal(t, memsys.E, resp.State)
	require.EqualValues(t, 1, c.Stats.Misses)
}

func TestCacheRaceTablePutxToIDemotedToSkip(t *testing.T) {
	c, _ := newTestCache(t, false)
	req := &memsys.MemReq{LineAddr: 10, Type: memsys.PUTX, ChildID: 0, State: memsys.I}
	resp, err := c.Access(req)
	require.NoError(t, err)
	require.Equal(t, memsys.I, resp.State)
}

func TestCacheNonInclusivePutFatalByDefault(t *testing.T) {
	c, _ := newTestCache(t, false)
	req := &memsys.MemReq{LineAddr: 10, Type: memsys.PUTS, ChildID: 0, State: memsys.S}
	require.Panics(t, func() { c.Access(req) })
}

func TestCacheNonInclusivePutAbsorbedWhenConfigured(t *testing.T) {
	va := &validAdapter{}
	policy := replacement.NewLRU(va)
	arr := cachearray.NewSetAssocArray(4, 4, policy)
	va.arr = arr
	c := New("L1", Config{NonInclusivePutsAllowed: true}, arr, memParent{}, nil)

	req := &memsys.MemReq{LineAddr: 10, Type: memsys.PUTS, ChildID: 0, State: memsys.S}
	resp, err := c.Access(req)
	require.NoError(t, err)
	require.Equal(t, memsys.I, resp.State)
	require.EqualValues(t, 1, c.Stats.NonInclusiveHackPuts)
}

func TestCacheGETSRaceOtherThanIIsBug(t *testing.T) {
	c, _ := newTestCache(t, false)
	req := &memsys.MemReq{LineAddr: 10, Type: memsys.GETS, ChildID: 0, State: memsys.S}
	_, err := c.Access(req)
	require.Error(t, err)
}

var _ coherence.Child = (*Cache)(nil)
var _ coherence.Parent = (*Cache)(nil)
