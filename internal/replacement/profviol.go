package replacement

import "github.com/nexus-arch/coresim/internal/memsys"

// ViolationCounts tallies simulation-order hazard classes detected by
// ProfViolReplPolicy: read-after-read is never a hazard and is not
// counted.
type ViolationCounts struct {
	RAW, WAR, WAW uint64
}

// ProfViolReplPolicy wraps another policy and counts RAW/WAR/WAW
// simulation-order violations for debugging (read-after-read pairs are
// not counted): since the bound phase
// issues accesses out of real program order across cores, a line
// touched by a write after having been read by an "earlier" access (in
// wall-clock replay terms) that the simulator processes later indicates
// the bound-phase record and weave-phase replay disagree on ordering.
type ProfViolReplPolicy struct {
	inner Policy
	last  map[LineID]lastAccess
	Counts ViolationCounts
}

type lastAccess struct {
	isWrite bool
	cycle   uint64
}

func NewProfViolReplPolicy(inner Policy) *ProfViolReplPolicy {
	return &ProfViolReplPolicy{inner: inner, last: make(map[LineID]lastAccess)}
}

func (p *ProfViolReplPolicy) Update(id LineID, info AccessInfo) {
	isWrite := info.Req != nil && (info.Req.Type == memsys.GETX || info.Req.Type.IsPut())
	if info.Req != nil {
		prev, ok := p.last[id]
		if ok && info.Req.Cycle < prev.cycle {
			switch {
			case prev.isWrite && !isWrite:
				p.Counts.WAR++
			case !prev.isWrite && isWrite:
				p.Counts.RAW++
			case prev.isWrite && isWrite:
				p.Counts.WAW++
			}
		}
		p.last[id] = lastAccess{isWrite: isWrite, cycle: info.Req.Cycle}
	}
	p.inner.Update(id, info)
}

func (p *ProfViolReplPolicy) Replaced(id LineID) {
	delete(p.last, id)
	p.inner.Replaced(id)
}

func (p *ProfViolReplPolicy) RankCands(req *memsys.MemReq, candidates []LineID) LineID {
	return p.inner.RankCands(req, candidates)
}
