package recorder

import (
	"testing"

	"github.com/nexus-arch/coresim/internal/memsys"
	"github.com/stretchr/testify/require"
)

func TestRecordGetUpdateConsume(t *testing.T) {
	r := New(0, 0)
	h, err := r.Record(TimingRecord{Addr: 10, ReqCycle: 1, Type: memsys.GETS})
	require.NoError(t, err)
	require.Equal(t, 1, r.Live())

	got := r.Get(h)
	require.EqualValues(t, 10, got.Addr)

	got.RespCycle = 5
	r.Update(h, got)
	require.EqualValues(t, 5, r.Get(h).RespCycle)

	r.Consume(h)
	require.Equal(t, 0, r.Live())
}

func TestCapacityBoundedBufferRejects(t *testing.T) {
	r := New(0, 1)
	_, err := r.Record(TimingRecord{Addr: 1})
	require.NoError(t, err)
	_, err = r.Record(TimingRecord{Addr: 2})
	require.Error(t, err)
}

func TestSlabSelfRecyclesWhenEmptied(t *testing.T) {
	r := New(0, 0)
	var handles []Handle
	for i := 0; i < slabCapacity; i++ {
		h, err := r.Record(TimingRecord{Addr: memsys.LineAddr(i)})
		require.NoError(t, err)
		handles = append(handles, h)
	}
	require.Len(t, r.slabs, 1)
	require.Empty(t, r.partial, "slab should be full and not in the partial list")

	for _, h := range handles {
		r.Consume(h)
	}
	require.Equal(t, 0, r.Live())

	// The now-empty slab should be reused rather than a new one allocated.
	_, err := r.Record(TimingRecord{Addr: 99})
	require.NoError(t, err)
	require.Len(t, r.slabs, 1)
}

func TestConsumeTwiceOnSameHandlePanics(t *testing.T) {
	r := New(0, 0)
	h, err := r.Record(TimingRecord{Addr: 1})
	require.NoError(t, err)
	r.Consume(h)
	require.Panics(t, func() { r.Consume(h) })
}
