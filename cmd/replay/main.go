package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	persistlog "irma.ai/internal/persistence/log"
	"irma.ai/internal/sim/runner"
	"irma.ai/internal/sim/tuning"
	"irma.ai/internal/sim/vm"
	"irma.ai/internal/sim/world"
)

func main() {
	var (
		dataDir    = flag.String("data", "./data", "runtime data directory (ticks/ and cells/)")
		tuningPath = flag.String("tuning", "./configs/tuning.yaml", "tuning the run was started with")
		mode       = flag.String("mode", "sim", "sim: re-run the VMs from the seed; cells: re-apply the logged cell writes")
		toTick     = flag.Uint64("to_tick", 0, "stop at tick (inclusive, optional)")
	)
	flag.Parse()

	tune, err := tuning.Load(*tuningPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load tuning:", err)
		os.Exit(1)
	}
	digests, err := loadDigests(filepath.Join(*dataDir, "ticks"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "read ticks:", err)
		os.Exit(1)
	}
	if len(digests) == 0 {
		fmt.Fprintln(os.Stderr, "no ticks found in", *dataDir)
		os.Exit(1)
	}

	var checked uint64
	switch *mode {
	case "sim":
		checked, err = replaySim(tune, digests, *toTick)
	case "cells":
		checked, err = replayCells(tune, filepath.Join(*dataDir, "cells"), digests, *toTick)
	default:
		fmt.Fprintln(os.Stderr, "unknown -mode", *mode)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "replay:", err)
		os.Exit(1)
	}
	fmt.Printf("replay ok: mode=%s checked=%d ticks\n", *mode, checked)
}

// loadDigests reads the tick log into tick -> grid digest. Ticks must be
// contiguous from 0.
func loadDigests(dir string) ([]string, error) {
	files, err := persistlog.ListFiles(dir, "ticks")
	if err != nil {
		return nil, err
	}
	var out []string
	for _, path := range files {
		err := persistlog.ReadJSONL(path, func(line []byte) error {
			var e runner.TickLogEntry
			if err := json.Unmarshal(line, &e); err != nil {
				return fmt.Errorf("%s: unmarshal: %w", filepath.Base(path), err)
			}
			if e.Tick != uint64(len(out)) {
				return fmt.Errorf("tick gap: want=%d got=%d (file=%s)", len(out), e.Tick, filepath.Base(path))
			}
			out = append(out, e.Digest)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func lastTick(digests []string, toTick uint64) uint64 {
	last := uint64(len(digests) - 1)
	if toTick != 0 && toTick < last {
		return toTick
	}
	return last
}

// replaySim re-runs the seeded grid and compares every tick's digest.
func replaySim(tune tuning.Tuning, digests []string, toTick uint64) (uint64, error) {
	w, err := world.New(tune.World.Width, tune.World.Height, nil)
	if err != nil {
		return 0, err
	}
	core := vm.NewCore(w, vm.NewPool(tune.VM.PoolSize), tune.Costs())
	if err := runner.Seed(core, tune.Seed, tune.VM.InitialEnergy); err != nil {
		return 0, err
	}
	r := runner.New(core, runner.ConfigFrom(tune.Runner), nil)

	last := lastTick(digests, toTick)
	var checked uint64
	for t := uint64(0); t <= last; t++ {
		e := r.StepOnce()
		if e.Digest != digests[t] {
			return checked, fmt.Errorf("digest mismatch at tick %d: got=%s want=%s", t, e.Digest, digests[t])
		}
		checked++
	}
	return checked, nil
}

// replayCells rebuilds the grid from the cell log alone.
func replayCells(tune tuning.Tuning, dir string, digests []string, toTick uint64) (uint64, error) {
	files, err := persistlog.ListFiles(dir, "cells")
	if err != nil {
		return 0, err
	}
	writes := map[uint64][]world.CellWrite{}
	for _, path := range files {
		err := persistlog.ReadJSONL(path, func(line []byte) error {
			var e persistlog.CellLogEntry
			if err := json.Unmarshal(line, &e); err != nil {
				return fmt.Errorf("%s: unmarshal: %w", filepath.Base(path), err)
			}
			writes[e.Tick] = append(writes[e.Tick], e.Writes...)
			return nil
		})
		if err != nil {
			return 0, err
		}
	}

	w, err := world.New(tune.World.Width, tune.World.Height, nil)
	if err != nil {
		return 0, err
	}
	last := lastTick(digests, toTick)
	var checked uint64
	for t := uint64(0); t <= last; t++ {
		for _, wr := range writes[t] {
			w.SetAtom(wr.Offs, wr.Atom)
		}
		if got := w.Digest(); got != digests[t] {
			return checked, fmt.Errorf("digest mismatch at tick %d: got=%s want=%s", t, got, digests[t])
		}
		checked++
	}
	return checked, nil
}
