// Package runner drives a vm.Core tick by tick: every live VM executes one
// atom per tick, exhausted VMs are culled, and each tick is summarized for
// the attached tick loggers.
package runner

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"irma.ai/internal/sim/tuning"
	"irma.ai/internal/sim/vm"
)

type Config struct {
	TickRateHz    int
	CullExhausted bool
	LogEveryTicks int
}

func ConfigFrom(t tuning.Runner) Config {
	return Config{
		TickRateHz:    t.TickRateHz,
		CullExhausted: t.CullExhausted,
		LogEveryTicks: t.LogEveryTicks,
	}
}

type TickLogger interface {
	WriteTick(entry TickLogEntry) error
}

type TickLogEntry struct {
	Tick    uint64 `json:"tick"`
	VMs     int    `json:"vms"`
	Steps   int    `json:"steps"`
	Worked  int    `json:"worked"`
	Spawned int    `json:"spawned,omitempty"`
	Culled  int    `json:"culled,omitempty"`
	Energy  int64  `json:"energy"`
	Atoms   int    `json:"atoms"`
	Digest  string `json:"digest"`
}

type Runner struct {
	core        *vm.Core
	cfg         Config
	logger      *log.Logger
	tickLoggers []TickLogger

	tick     uint64
	stop     chan struct{}
	stopOnce sync.Once
}

func New(core *vm.Core, cfg Config, logger *log.Logger, tickLoggers ...TickLogger) *Runner {
	if cfg.TickRateHz <= 0 {
		cfg.TickRateHz = 10
	}
	var tl []TickLogger
	for _, l := range tickLoggers {
		if l != nil {
			tl = append(tl, l)
		}
	}
	return &Runner{
		core:        core,
		cfg:         cfg,
		logger:      logger,
		tickLoggers: tl,
		stop:        make(chan struct{}),
	}
}

func (r *Runner) Core() *vm.Core { return r.core }

// Tick is the number of the next tick StepOnce will run.
func (r *Runner) Tick() uint64 { return r.tick }

// StepOnce runs one tick. VMs admitted by job during the tick first run on
// the next one.
func (r *Runner) StepOnce() TickLogEntry {
	c := r.core
	n := c.VMs.Len()
	worked := 0
	for i := 0; i < n; i++ {
		if c.Step(i) {
			worked++
		}
	}
	spawned := c.VMs.Len() - n

	culled := 0
	if r.cfg.CullExhausted {
		culled = c.VMs.Compact(func(v *vm.VM) bool { return v.Energy() > 0 })
	}

	entry := TickLogEntry{
		Tick:    r.tick,
		VMs:     c.VMs.Len(),
		Steps:   n,
		Worked:  worked,
		Spawned: spawned,
		Culled:  culled,
		Energy:  c.VMs.Energy(),
		Atoms:   c.World.Count(),
		Digest:  c.World.Digest(),
	}
	for _, l := range r.tickLoggers {
		if err := l.WriteTick(entry); err != nil && r.logger != nil {
			r.logger.Printf("tick %d: tick logger: %v", entry.Tick, err)
		}
	}
	if r.logger != nil && r.cfg.LogEveryTicks > 0 && entry.Tick%uint64(r.cfg.LogEveryTicks) == 0 {
		r.logger.Printf("tick=%d vms=%d worked=%d spawned=%d culled=%d energy=%d atoms=%d digest=%s",
			entry.Tick, entry.VMs, entry.Worked, entry.Spawned, entry.Culled, entry.Energy, entry.Atoms, entry.Digest[:12])
	}
	r.tick++
	return entry
}

// Run steps the core at the configured tick rate until ctx is done or Stop
// is called.
func (r *Runner) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(r.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.stop:
			return nil
		case <-ticker.C:
			r.StepOnce()
		}
	}
}

func (r *Runner) Stop() { r.stopOnce.Do(func() { close(r.stop) }) }

// Seed places the configured atoms and VMs. VMs without an explicit energy
// get initialEnergy.
func Seed(c *vm.Core, s tuning.Seed, initialEnergy int) error {
	w := c.World
	for i, as := range s.Atoms {
		a, err := as.Atom()
		if err != nil {
			return fmt.Errorf("seed.atoms[%d]: %w", i, err)
		}
		w.SetAtom(w.Offset(as.X, as.Y), a)
	}
	for i, vs := range s.VMs {
		energy := vs.Energy
		if energy == 0 {
			energy = initialEnergy
		}
		if !c.VMs.Add(vm.New(energy, w.Offset(vs.X, vs.Y))) {
			return fmt.Errorf("seed.vms[%d]: pool full at %d", i, c.VMs.Cap())
		}
	}
	return nil
}
