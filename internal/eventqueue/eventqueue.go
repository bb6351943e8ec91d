// Package eventqueue implements the phase-indexed event multimap that
// drives the weave phase's event-driven contention simulation, plus the
// adaptive event helper used to hit an exact target phase without
// per-phase polling.
package eventqueue

import "container/heap"

// Event is fired when its scheduled phase is reached. Fire returns the
// next phase to reinsert at, or (0, false) to self-destruct (one-shot).
type Event interface {
	Fire(phase uint64) (nextPhase uint64, rearm bool)
}

// entry is one (phase, event) pair in the queue's internal min-heap,
// ordered by phase then insertion sequence (for deterministic replay of
// equal-phase events, matching the spec's "weave phase replays events in
// strict global event-queue order").
type entry struct {
	phase uint64
	seq   uint64
	ev    Event
}

type entryHeap []*entry

func (h entryHeap) Len() int { return len(h) }
func (h entryHeap) Less(i, j int) bool {
	if h[i].phase != h[j].phase {
		return h[i].phase < h[j].phase
	}
	return h[i].seq < h[j].seq
}
func (h entryHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *entryHeap) Push(x any)         { *h = append(*h, x.(*entry)) }
func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}

// Queue is an ordered multimap from phase number to event. Callbacks
// fired by Drain may return a rearm decision; an Insert they make is
// held back and added to the queue only after that Drain completes.
type Queue struct {
	h       entryHeap
	nextSeq uint64
	firing  bool
	pending []*entry // events an in-progress Fire tried to (re)insert
}

// New creates an empty event queue.
func New() *Queue {
	q := &Queue{}
	heap.Init(&q.h)
	return q
}

// Insert schedules ev to fire at the given phase. If called during a
// Drain, the insertion is deferred until the current drain completes.
func (q *Queue) Insert(phase uint64, ev Event) {
	e := &entry{phase: phase, seq: q.nextSeq, ev: ev}
	q.nextSeq++
	if q.firing {
		q.pending = append(q.pending, e)
		return
	}
	heap.Push(&q.h, e)
}

// Drain fires every event whose scheduled phase is <= curPhase, in
// (phase, insertion-order) order, reinserting periodic events and
// dropping one-shot events that decline to rearm.
func (q *Queue) Drain(curPhase uint64) {
	q.firing = true
	for q.h.Len() > 0 && q.h[0].phase <= curPhase {
		e := heap.Pop(&q.h).(*entry)
		next, rearm := e.ev.Fire(e.phase)
		if rearm {
			q.pending = append(q.pending, &entry{phase: next, seq: q.nextSeq, ev: e.ev})
			q.nextSeq++
		}
	}
	q.firing = false
	for _, e := range q.pending {
		heap.Push(&q.h, e)
	}
	q.pending = q.pending[:0]
}

// Len reports the number of events currently scheduled.
func (q *Queue) Len() int { return q.h.Len() }

// PeekPhase returns the phase of the next scheduled event, or
// (0, false) if the queue is empty.
func (q *Queue) PeekPhase() (uint64, bool) {
	if q.h.Len() == 0 {
		return 0, false
	}
	return q.h[0].phase, true
}
