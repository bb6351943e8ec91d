// Package recorder implements the per-core event recorder: a bounded
// buffer of TimingRecord values produced during the bound phase and
// consumed during the weave phase, backed by a slab allocator whose
// slabs self-recycle once fully freed (spec §4.4).
package recorder

import (
	"fmt"

	"github.com/nexus-arch/coresim/internal/memsys"
)

// TimingRecord is one recorded memory event.
type TimingRecord struct {
	Addr       memsys.LineAddr
	ReqCycle   uint64
	RespCycle  uint64
	Type       memsys.AccessType
	StartEvent uint64 // phase/seq of the bound-phase access
	EndEvent   uint64 // phase/seq the weave phase resolved it at, 0 until consumed
}

// slab is a fixed-capacity block of records plus a live count; it is
// returned to the free list once its live count reaches zero, matching
// the teacher's slab-page recycling discipline (internal/galloc.slabPage).
type slab struct {
	records []TimingRecord
	occupied []bool
	live     int
}

func newSlab(capacity int) *slab {
	return &slab{records: make([]TimingRecord, capacity), occupied: make([]bool, capacity)}
}

func (s *slab) alloc(tr TimingRecord) (int, bool) {
	for i, occ := range s.occupied {
		if !occ {
			s.occupied[i] = true
			s.records[i] = tr
			s.live++
			return i, true
		}
	}
	return 0, false
}

func (s *slab) free(i int) {
	if !s.occupied[i] {
		panic("recorder: double free of timing record slot")
	}
	s.occupied[i] = false
	s.live--
}

func (s *slab) full() bool { return s.live == len(s.records) }

// Handle references one outstanding TimingRecord within a Recorder.
type Handle struct {
	slabIdx int
	slotIdx int
}

const slabCapacity = 256

// Recorder is a per-core bounded buffer of TimingRecords.
type Recorder struct {
	coreID   int
	slabs    []*slab
	partial  []int // indices into slabs with free capacity
	capacity int   // max live records across all slabs; 0 = unbounded
	live     int
}

// New creates a Recorder for one core. capacity bounds the number of
// live (unresolved) records the recorder will hold at once; 0 means
// unbounded (still backed by self-recycling slabs).
func New(coreID, capacity int) *Recorder {
	return &Recorder{coreID: coreID, capacity: capacity}
}

// Record appends a new TimingRecord produced by the bound phase.
func (r *Recorder) Record(tr TimingRecord) (Handle, error) {
	if r.capacity > 0 && r.live >= r.capacity {
		return Handle{}, fmt.Errorf("recorder: core %d event buffer full (capacity=%d)", r.coreID, r.capacity)
	}
	for _, si := range r.partial {
		s := r.slabs[si]
		if slot, ok := s.alloc(tr); ok {
			r.live++
			if s.full() {
				r.removePartial(si)
			}
			return Handle{slabIdx: si, slotIdx: slot}, nil
		}
	}
	s := newSlab(slabCapacity)
	r.slabs = append(r.slabs, s)
	idx := len(r.slabs) - 1
	slot, _ := s.alloc(tr)
	r.live++
	if !s.full() {
		r.partial = append(r.partial, idx)
	}
	return Handle{slabIdx: idx, slotIdx: slot}, nil
}

func (r *Recorder) removePartial(slabIdx int) {
	for i, si := range r.partial {
		if si == slabIdx {
			r.partial = append(r.partial[:i], r.partial[i+1:]...)
			return
		}
	}
}

// Get returns the record at h without removing it, for the weave phase
// to read before resolving.
func (r *Recorder) Get(h Handle) TimingRecord {
	return r.slabs[h.slabIdx].records[h.slotIdx]
}

// Update rewrites the record at h in place, used by the weave phase to
// fill in RespCycle/EndEvent once contention has been resolved.
func (r *Recorder) Update(h Handle, tr TimingRecord) {
	r.slabs[h.slabIdx].records[h.slotIdx] = tr
}

// Consume removes the record at h, the point at which its slab may
// self-recycle (become eligible for reuse by future Record calls).
func (r *Recorder) Consume(h Handle) {
	s := r.slabs[h.slabIdx]
	wasFull := s.full()
	s.free(h.slotIdx)
	r.live--
	if wasFull {
		r.partial = append(r.partial, h.slabIdx)
	}
}

// Live reports the number of unresolved records currently held.
func (r *Recorder) Live() int { return r.live }
