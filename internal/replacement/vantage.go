package replacement

import "github.com/nexus-arch/coresim/internal/memsys"

// vantagePartition tracks one managed partition's sizing and feedback
// state (spec §4.2).
type vantagePartition struct {
	targetSize int
	curSize    int
	setpoint   uint64 // coarse-grain timestamp below which candidates demote
	hitsSinceAdvance int
	demotions  int
	candidatesSeen int
}

// Vantage implements the managed/unmanaged partitioning scheme: demoted
// lines move to an unmanaged region tracked by ordinary LRU rather than
// being evicted outright. A partition's setpoint advances by one every
// targetSize/16 hits (at least one); neither the setpoint nor the
// aperture is adjusted from the partition's oversubscription.
type Vantage struct {
	valid ValidChecker

	partitionOf func(req *memsys.MemReq) string
	partitions  map[string]*vantagePartition

	// unmanaged lines are ranked by plain recency.
	ts        map[LineID]uint64
	slotPart  map[LineID]string // "" means unmanaged
	clock     uint64

	// aMax is the aperture (fraction of candidates demoted per sweep),
	// applied as a fixed value.
	aMax float64
	// smoothedTransients records the constructor's smoothed flag; Update
	// and RankCands do not consult it.
	smoothedTransients bool
}

// NewVantage creates a Vantage policy. partitionOf maps a request to its
// managed partition name, or "" to use the unmanaged region directly.
func NewVantage(valid ValidChecker, partitionOf func(req *memsys.MemReq) string, aMax float64, smoothed bool) *Vantage {
	return &Vantage{
		valid:       valid,
		partitionOf: partitionOf,
		partitions:  make(map[string]*vantagePartition),
		ts:          make(map[LineID]uint64),
		slotPart:    make(map[LineID]string),
		aMax:        aMax,
		smoothedTransients: smoothed,
	}
}

// SetTarget sets a managed partition's target size (in lines).
func (v *Vantage) SetTarget(partition string, target int) {
	p := v.partitionFor(partition)
	p.targetSize = target
}

func (v *Vantage) partitionFor(name string) *vantagePartition {
	p, ok := v.partitions[name]
	if !ok {
		p = &vantagePartition{}
		v.partitions[name] = p
	}
	return p
}

func (v *Vantage) Update(id LineID, info AccessInfo) {
	v.clock++
	v.ts[id] = v.clock

	name := ""
	if info.Req != nil {
		name = v.partitionOf(info.Req)
	}

	prevPart, wasTracked := v.slotPart[id]
	if wasTracked && prevPart == "" && name != "" {
		// A hit on an unmanaged-region line immediately promotes it to
		// the requester's partition (spec §8).
		v.partitionFor(name).curSize++
	}
	if wasTracked && prevPart != "" && prevPart != name {
		v.partitionFor(prevPart).curSize--
	}
	v.slotPart[id] = name

	if name != "" {
		p := v.partitionFor(name)
		if p.targetSize > 0 {
			p.hitsSinceAdvance++
			step := p.targetSize / 16
			if step < 1 {
				step = 1
			}
			if p.hitsSinceAdvance >= step {
				p.hitsSinceAdvance = 0
				p.setpoint++
			}
		}
	}
}

func (v *Vantage) Replaced(id LineID) {
	if part, ok := v.slotPart[id]; ok && part != "" {
		v.partitionFor(part).curSize--
	}
	delete(v.ts, id)
	delete(v.slotPart, id)
}

// RankCands implements the candidate sweep: any managed candidate older
// than its partition's setpoint is demoted to unmanaged rather than
// evicted, unless the global LRU victim among unmanaged (preferred) or
// managed lines has already been found among the remaining candidates.
func (v *Vantage) RankCands(req *memsys.MemReq, candidates []LineID) LineID {
	for _, c := range candidates {
		if !v.valid.Valid(c) {
			return c
		}
	}

	var unmanagedBest, managedBest LineID
	haveUnmanaged, haveManaged := false, false
	var unmanagedTs, managedTs uint64

	for _, c := range candidates {
		part := v.slotPart[c]
		if part != "" {
			p := v.partitionFor(part)
			p.candidatesSeen++
			aperture := v.aMax
			maxDemotions := int(aperture * float64(p.candidatesSeen))
			if v.ts[c] < p.setpoint && p.demotions < maxDemotions {
				p.demotions++
				p.curSize--
				v.slotPart[c] = ""
				part = ""
			}
		}
		if part == "" {
			if !haveUnmanaged || v.ts[c] < unmanagedTs {
				unmanagedBest, unmanagedTs, haveUnmanaged = c, v.ts[c], true
			}
		} else {
			if !haveManaged || v.ts[c] < managedTs {
				managedBest, managedTs, haveManaged = c, v.ts[c], true
			}
		}
	}

	// Eviction picks the globally LRU line, strictly preferring
	// unmanaged lines (spec §4.2).
	if haveUnmanaged {
		return unmanagedBest
	}
	return managedBest
}

// Stats reports per-partition bookkeeping for diagnostics/tests.
type VantageStats struct {
	CurSize, TargetSize, Demotions, CandidatesSeen int
}

func (v *Vantage) Stats(partition string) VantageStats {
	p := v.partitionFor(partition)
	return VantageStats{
		CurSize:        p.curSize,
		TargetSize:     p.targetSize,
		Demotions:      p.demotions,
		CandidatesSeen: p.candidatesSeen,
	}
}
