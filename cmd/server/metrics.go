package main

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"

	"irma.ai/internal/persistence/indexdb"
	"irma.ai/internal/sim/runner"
	"irma.ai/internal/transport/observer"
)

// tickStats keeps the latest tick summary for HTTP readers.
type tickStats struct {
	latest atomic.Pointer[runner.TickLogEntry]

	mu     sync.Mutex
	limit  uint64
	onDone context.CancelFunc
}

func (s *tickStats) WriteTick(e runner.TickLogEntry) error {
	s.latest.Store(&e)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.onDone != nil && e.Tick+1 >= s.limit {
		s.onDone()
		s.onDone = nil
	}
	return nil
}

// stopAt calls done once ticks ticks have run.
func (s *tickStats) stopAt(ticks uint64, done context.CancelFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.limit = ticks
	s.onDone = done
}

func (s *tickStats) last() runner.TickLogEntry {
	if e := s.latest.Load(); e != nil {
		return *e
	}
	return runner.TickLogEntry{}
}

func metricsHandler(stats *tickStats, obs *observer.Server, idx *indexdb.SQLiteIndex) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		e := stats.last()

		fmt.Fprintf(rw, "# HELP irma_tick Last completed tick.\n")
		fmt.Fprintf(rw, "# TYPE irma_tick gauge\n")
		fmt.Fprintf(rw, "irma_tick %d\n", e.Tick)

		fmt.Fprintf(rw, "# HELP irma_vms Live VMs after the last tick.\n")
		fmt.Fprintf(rw, "# TYPE irma_vms gauge\n")
		fmt.Fprintf(rw, "irma_vms %d\n", e.VMs)

		fmt.Fprintf(rw, "# HELP irma_vm_steps VM steps in the last tick, by outcome.\n")
		fmt.Fprintf(rw, "# TYPE irma_vm_steps gauge\n")
		fmt.Fprintf(rw, "irma_vm_steps{outcome=%q} %d\n", "worked", e.Worked)
		fmt.Fprintf(rw, "irma_vm_steps{outcome=%q} %d\n", "noop", e.Steps-e.Worked)

		fmt.Fprintf(rw, "# HELP irma_vm_energy Summed VM energy after the last tick.\n")
		fmt.Fprintf(rw, "# TYPE irma_vm_energy gauge\n")
		fmt.Fprintf(rw, "irma_vm_energy %d\n", e.Energy)

		fmt.Fprintf(rw, "# HELP irma_atoms Occupied cells after the last tick.\n")
		fmt.Fprintf(rw, "# TYPE irma_atoms gauge\n")
		fmt.Fprintf(rw, "irma_atoms %d\n", e.Atoms)

		if obs != nil {
			fmt.Fprintf(rw, "# HELP irma_observers Connected observer websockets.\n")
			fmt.Fprintf(rw, "# TYPE irma_observers gauge\n")
			fmt.Fprintf(rw, "irma_observers %d\n", obs.Subscribers())
			fmt.Fprintf(rw, "# HELP irma_observer_dropped_total Frames dropped for slow observers.\n")
			fmt.Fprintf(rw, "# TYPE irma_observer_dropped_total counter\n")
			fmt.Fprintf(rw, "irma_observer_dropped_total %d\n", obs.Dropped())
		}
		if idx != nil {
			st := idx.Stats()
			fmt.Fprintf(rw, "# HELP irma_index_queue_depth Pending index batches.\n")
			fmt.Fprintf(rw, "# TYPE irma_index_queue_depth gauge\n")
			fmt.Fprintf(rw, "irma_index_queue_depth %d\n", st.QueueDepth)
			fmt.Fprintf(rw, "# HELP irma_index_dropped_total Ticks dropped by the index.\n")
			fmt.Fprintf(rw, "# TYPE irma_index_dropped_total counter\n")
			fmt.Fprintf(rw, "irma_index_dropped_total %d\n", st.DropTickTotal)
		}
	}
}
