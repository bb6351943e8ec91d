// Package cache implements the Cache.access algorithm (spec §4.2): lock
// acquisition order, race resolution against an intervening
// invalidation, array lookup/eviction, and the processAccess/
// processEviction dispatch into the coherence layer.
package cache

import (
	"fmt"

	"github.com/nexus-arch/coresim/internal/cachearray"
	"github.com/nexus-arch/coresim/internal/coherence"
	"github.com/nexus-arch/coresim/internal/memsys"
	"github.com/nexus-arch/coresim/internal/replacement"
)

// Config holds the per-cache policy knobs spec §9's Open Question 2
// makes configurable.
type Config struct {
	// NonInclusivePutsAllowed, when true, silently absorbs a PUT for a
	// line the parent never recorded as a sharer instead of treating it
	// as a fatal invariant violation (spec §9 "non-inclusive hack").
	NonInclusivePutsAllowed bool
	Terminal                bool // no top CC, never receives PUTs
}

// Stats accumulates per-cache counters consulted by internal/statsio.
type Stats struct {
	Hits, Misses, Evictions uint64
	NonInclusiveHackPuts    uint64
}

// Cache is one level of the hierarchy. A non-terminal Cache has both a
// TopCC (facing its children) and a BottomCC (facing its parent); a
// terminal cache (Config.Terminal) has no TopCC.
type Cache struct {
	name   string
	cfg    Config
	array  cachearray.Array
	bottom *coherence.BottomCC
	top    *coherence.TopCC
	Stats  Stats
}

// New builds a Cache. parent is whatever Cache.Access the bottom CC
// should issue misses to (or the DDR-backed root memory system).
// childOf resolves this cache's own children for the top CC's
// invalidation fan-out; pass nil for a terminal cache.
func New(name string, cfg Config, array cachearray.Array, parent coherence.Parent, childOf func(memsys.ChildID) coherence.Child) *Cache {
	c := &Cache{name: name, cfg: cfg, array: array}
	c.bottom = coherence.NewBottomCC(parent)
	if !cfg.Terminal {
		c.top = coherence.NewTopCC(childOf)
	}
	return c
}

// Access implements spec §4.2's numbered algorithm and is the sole
// public entry point into a Cache: it acquires locks top-then-bottom,
// resolves races against an intervening invalidation, drives the array
// lookup/eviction/insertion, and dispatches processAccess into the
// coherence layer.
func (c *Cache) Access(req *memsys.MemReq) (memsys.Response, error) {
	// Step 1: lock acquisition, top then bottom; release any
	// caller-held child lock first (hand-over-hand, downward only).
	if req.ChildLock != nil {
		req.ChildLock.Unlock()
		defer req.ChildLock.Lock()
	}
	if c.top != nil {
		c.top.Lock()
		defer c.top.Unlock()
	}
	c.bottom.Lock()
	defer c.bottom.Unlock()

	// Step 2: race resolution against an intervening invalidation.
	req, skip, err := c.resolveRace(req)
	if err != nil {
		return memsys.Response{}, err
	}
	if skip {
		c.Stats.Hits++
		return memsys.Response{State: req.State}, nil
	}

	if req.Type.IsPut() {
		return c.handlePut(req)
	}
	return c.handleGet(req)
}

// resolveRace applies spec §4.2's race table. It returns the
// (possibly rewritten) request, whether to skip processing entirely,
// and an error for any combination the table marks as a bug.
func (c *Cache) resolveRace(req *memsys.MemReq) (*memsys.MemReq, bool, error) {
	switch {
	case req.Type.IsPut() && req.State == memsys.I:
		return req, true, nil // skip
	case req.Type.IsPut() && req.State == memsys.S:
		rewritten := *req
		rewritten.Type = memsys.PUTS // demote PUTX -> PUTS
		return &rewritten, false, nil
	case req.Type == memsys.GETX && req.InitialState == memsys.S && req.State == memsys.I:
		return req, false, nil // keep as miss, no longer an upgrade
	case req.Type == memsys.GETS:
		if req.State != memsys.I {
			return req, false, fmt.Errorf("cache %s: race table violation: GETS observed state %v, must be I", c.name, req.State)
		}
		return req, false, nil
	default:
		return req, false, nil
	}
}

func (c *Cache) handlePut(req *memsys.MemReq) (memsys.Response, error) {
	if c.cfg.Terminal {
		return memsys.Response{}, fmt.Errorf("cache %s: terminal cache must never receive a PUT", c.name)
	}
	if !c.top.IsSharer(req.LineAddr, req.ChildID) {
		if !c.cfg.NonInclusivePutsAllowed {
			panic(fmt.Sprintf("cache %s: PUT for line %d from child %d never recorded as a sharer (strict inclusion)", c.name, req.LineAddr, req.ChildID))
		}
		c.Stats.NonInclusiveHackPuts++
		return memsys.Response{State: memsys.I}, nil
	}
	c.top.RemoveSharer(req.LineAddr, req.ChildID)
	if req.Type == memsys.PUTX {
		c.passThroughWriteback(req)
	}
	return memsys.Response{State: memsys.I}, nil
}

// passThroughWriteback forwards a dirty writeback to the parent when
// this cache itself doesn't retain the line (non-inclusive cache path,
// spec §4.2's processNonInclusiveWriteback).
func (c *Cache) passThroughWriteback(req *memsys.MemReq) {
	if c.bottom.State(req.LineAddr) != memsys.I {
		return // we hold the line ourselves; no pass-through needed
	}
	wbReq := *req
	wbReq.Flags |= memsys.FlagNonInclWB
	_, _ = c.bottom.Access(req.LineAddr, &wbReq)
}

func (c *Cache) handleGet(req *memsys.MemReq) (memsys.Response, error) {
	id, hit := c.array.Lookup(req.LineAddr)
	if hit {
		c.Stats.Hits++
		return c.processAccess(id, req)
	}

	c.Stats.Misses++
	victim, victimValid, victimAddr := c.array.Preinsert(req)
	if victimValid {
		c.Stats.Evictions++
		if err := c.processEviction(victim, victimAddr); err != nil {
			return memsys.Response{}, err
		}
	}
	c.array.Postinsert(victim, req, req.LineAddr)
	return c.processAccess(victim, req)
}

// processEviction implements spec §4.2 step 3's eviction path: top CC
// invalidates all sharers, then the bottom CC writes back to the parent
// if needed.
func (c *Cache) processEviction(id replacement.LineID, lineAddr memsys.LineAddr) error {
	induced := false
	if c.top != nil {
		induced = c.top.InvalidateAll(lineAddr, memsys.INV)
	}
	state := c.bottom.State(lineAddr)
	if state == memsys.M || induced {
		evReq := &memsys.MemReq{LineAddr: lineAddr, Type: memsys.PUTX}
		if _, err := c.bottom.Access(lineAddr, evReq); err != nil {
			return err
		}
	} else if state != memsys.I {
		evReq := &memsys.MemReq{LineAddr: lineAddr, Type: memsys.PUTS}
		if _, err := c.bottom.Access(lineAddr, evReq); err != nil {
			return err
		}
	}
	c.bottom.Evict(lineAddr)
	return nil
}

// processAccess implements spec §4.2 step 4: the bottom CC issues
// GETS/GETX to the parent on miss, then (for non-terminal caches) the
// top CC updates the sharer set and picks the child's granted state.
func (c *Cache) processAccess(id replacement.LineID, req *memsys.MemReq) (memsys.Response, error) {
	_, err := c.bottom.Access(req.LineAddr, req)
	if err != nil {
		return memsys.Response{}, err
	}

	if c.cfg.Terminal {
		return memsys.Response{State: c.bottom.State(req.LineAddr)}, nil
	}

	var res coherence.AccessResult
	switch req.Type {
	case memsys.GETS:
		res = c.top.GETS(req.LineAddr, req.ChildID, req.Flags)
	case memsys.GETX:
		res = c.top.GETX(req.LineAddr, req.ChildID)
	default:
		return memsys.Response{}, fmt.Errorf("cache %s: processAccess called with non-GET type %v", c.name, req.Type)
	}
	if res.InducedWriteback {
		// The induced writeback's data has already been absorbed by the
		// invalidated child's own eviction path; nothing further to do
		// here beyond stats, which belong to internal/statsio.
	}
	return memsys.Response{State: res.ChildState}, nil
}

// Invalidate implements coherence.Child for this cache's parent's TopCC:
// deliver the invalidation to every child below first (when this cache
// has a top CC), whatever the line's state, and then to this cache's own
// bottom CC. Locks are acquired top-then-bottom,
// the same order Access uses on this cache's own lock pair, so the two
// entry points can never deadlock against each other (spec §4.2 step 1's
// "strict order to prevent deadlock").
func (c *Cache) Invalidate(lineAddr memsys.LineAddr, invType memsys.InvType) memsys.InvResp {
	if c.top != nil {
		c.top.Lock()
		defer c.top.Unlock()
	}
	c.bottom.Lock()
	defer c.bottom.Unlock()

	if c.top != nil {
		induced := c.top.InvalidateAll(lineAddr, invType)
		resp := c.bottom.Invalidate(lineAddr, invType)
		if induced {
			resp.WritebackNeeded = true
		}
		return resp
	}
	return c.bottom.Invalidate(lineAddr, invType)
}
