package replacement

import "github.com/nexus-arch/coresim/internal/memsys"

// WayPartReplPolicy assigns cache ways to named partitions; during
// replacement only ways owned by the requester's partition are eligible
// candidates, delegating the actual victim choice among them to an
// inner policy.
type WayPartReplPolicy struct {
	inner       Policy
	wayOfSlot   map[LineID]int
	partOfWay   map[int]string
	partitionOf func(req *memsys.MemReq) string
}

// NewWayPartReplPolicy creates a way-partitioned policy. partitionOf
// maps an incoming request to the partition name that should own its
// line; SetWayPartition assigns ways to partitions.
func NewWayPartReplPolicy(inner Policy, partitionOf func(req *memsys.MemReq) string) *WayPartReplPolicy {
	return &WayPartReplPolicy{
		inner:       inner,
		wayOfSlot:   make(map[LineID]int),
		partOfWay:   make(map[int]string),
		partitionOf: partitionOf,
	}
}

// BindSlot records which way a LineID lives in, so RankCands can filter
// candidates down to the requester's partition's ways.
func (p *WayPartReplPolicy) BindSlot(id LineID, way int) {
	p.wayOfSlot[id] = way
}

// SetWayPartition assigns way to the named partition.
func (p *WayPartReplPolicy) SetWayPartition(way int, partition string) {
	p.partOfWay[way] = partition
}

func (p *WayPartReplPolicy) Update(id LineID, info AccessInfo) { p.inner.Update(id, info) }
func (p *WayPartReplPolicy) Replaced(id LineID)                { p.inner.Replaced(id) }

func (p *WayPartReplPolicy) RankCands(req *memsys.MemReq, candidates []LineID) LineID {
	want := p.partitionOf(req)
	var eligible []LineID
	for _, c := range candidates {
		if p.partOfWay[p.wayOfSlot[c]] == want {
			eligible = append(eligible, c)
		}
	}
	if len(eligible) == 0 {
		// No way of this partition is among the candidates (can happen
		// with skew-associative arrays); fall back to the full set so a
		// victim is always found.
		eligible = candidates
	}
	return p.inner.RankCands(req, eligible)
}
