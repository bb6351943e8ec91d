package eventqueue

// AdaptiveEvent re-arms itself with exponentially shrinking periods as
// it approaches a target phase number, bounded below by
// one phase, so the exact firing phase can be hit without per-phase
// polling (spec §4.4).
type AdaptiveEvent struct {
	target  uint64
	onFinal func(phase uint64)

	// shrinkFactor controls how aggressively the period halves (or more)
	// each re-arm as the event approaches target; 2 is a reasonable
	// default matching a simple binary narrowing.
	shrinkFactor uint64
}

// NewAdaptiveEvent builds an event that calls onFinal exactly once, when
// the current phase reaches target.
func NewAdaptiveEvent(target uint64, onFinal func(phase uint64)) *AdaptiveEvent {
	return &AdaptiveEvent{target: target, onFinal: onFinal, shrinkFactor: 2}
}

// Fire implements Event. It narrows the remaining distance to target by
// shrinkFactor each time, never scheduling less than 1 phase ahead, and
// calls onFinal once phase reaches target.
func (a *AdaptiveEvent) Fire(phase uint64) (uint64, bool) {
	if phase >= a.target {
		a.onFinal(phase)
		return 0, false
	}
	remaining := a.target - phase
	step := remaining / a.shrinkFactor
	if step < 1 {
		step = 1
	}
	return phase + step, true
}
