// Package sim wires configuration, logging, stats, the phase barrier,
// the event queue, and the DDR controller together into a single
// runnable System, and drives the bound/weave phase loop.
package sim

import (
	"context"
	"sync/atomic"

	"github.com/nexus-arch/coresim/internal/barrier"
	"github.com/nexus-arch/coresim/internal/config"
	"github.com/nexus-arch/coresim/internal/ddr"
	"github.com/nexus-arch/coresim/internal/eventqueue"
	"github.com/nexus-arch/coresim/internal/logging"
	"github.com/nexus-arch/coresim/internal/statsio"
	"golang.org/x/sync/errgroup"
)

// CoreWorker is the per-core bound-phase workload: simulate forward
// until the next sync point, reporting whether it has more work.
type CoreWorker interface {
	// RunPhase executes one bound-phase slice for this core. It must
	// call Barrier.Sync at its cooperative suspension point. It returns
	// false once the core has no further work (thread exit).
	RunPhase(ctx context.Context) (more bool, err error)
}

// System is the top-level simulator instance.
type System struct {
	Config  *config.Config
	Log     *logging.Logger
	Stats   *statsio.Tree
	Barrier *barrier.Barrier
	Events  *eventqueue.Queue
	DDR     *ddr.Controller

	workers []CoreWorker

	phase             uint64
	terminationMet    atomic.Bool
	maxPhases         uint64
}

// New builds a System from an already-loaded Config. Caller supplies the
// already-constructed DDR controller and per-core workers, since their
// shapes depend on the specific topology described by cfg.
func New(cfg *config.Config, log *logging.Logger, ddrCtl *ddr.Controller, workers []CoreWorker) *System {
	return &System{
		Config:    cfg,
		Log:       log,
		Stats:     statsio.NewTree(),
		Barrier:   barrier.New(int(cfg.Uint32("sim.parallel_threads", 1))),
		Events:    eventqueue.New(),
		DDR:       ddrCtl,
		workers:   workers,
		maxPhases: cfg.Uint64("sim.max_phases", 0),
	}
}

// RequestTermination sets the global flag polled at phase boundaries
// (spec §5 "Cancellation").
func (s *System) RequestTermination() { s.terminationMet.Store(true) }

// Run drives the bound/weave phase loop until termination: every phase,
// a goroutine per core runs the bound-phase slice via an errgroup (so
// the first error or panic cancels the rest), then the weave phase
// drains the event queue serially.
func (s *System) Run(ctx context.Context) error {
	for !s.terminationMet.Load() {
		if s.maxPhases != 0 && s.phase >= s.maxPhases {
			break
		}
		if err := s.runBoundPhase(ctx); err != nil {
			return err
		}
		s.runWeavePhase()
		s.phase++
	}
	return nil
}

// runBoundPhase fans the per-core workers out across an errgroup capped
// implicitly by the barrier's parallelThreads (workers cooperate via
// Barrier.Join/Sync/Leave internally); the first worker error cancels
// the group's context and is returned once all goroutines unwind.
func (s *System) runBoundPhase(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for i, w := range s.workers {
		if w == nil {
			continue
		}
		w := w
		i := i
		g.Go(func() error {
			more, err := w.RunPhase(gctx)
			if err != nil {
				s.Log.Error("sim: core worker failed", logging.Int("core", i), logging.Err(err))
				return err
			}
			if !more {
				s.workers[i] = nil
			}
			return nil
		})
	}
	return g.Wait()
}

// runWeavePhase is strictly serial: it drains all events scheduled at or
// before the current phase.
func (s *System) runWeavePhase() {
	s.Events.Drain(s.phase)
}

// Phase returns the current phase number.
func (s *System) Phase() uint64 { return s.phase }
