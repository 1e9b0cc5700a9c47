package log

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"irma.ai/internal/sim/atom"
	"irma.ai/internal/sim/runner"
	"irma.ai/internal/sim/world"
)

func TestTickLogger_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	l := NewTickLogger(dir)
	for i := uint64(0); i < 3; i++ {
		if err := l.WriteTick(runner.TickLogEntry{Tick: i, VMs: int(i) + 1, Digest: "d"}); err != nil {
			t.Fatalf("write tick: %v", err)
		}
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	files, err := ListFiles(filepath.Join(dir, "ticks"), "ticks")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(files) == 0 {
		t.Fatalf("no tick files written")
	}
	var got []runner.TickLogEntry
	for _, f := range files {
		err := ReadJSONL(f, func(line []byte) error {
			var e runner.TickLogEntry
			if err := json.Unmarshal(line, &e); err != nil {
				return err
			}
			got = append(got, e)
			return nil
		})
		if err != nil {
			t.Fatalf("read %s: %v", f, err)
		}
	}
	if len(got) != 3 || got[2].Tick != 2 || got[2].VMs != 3 {
		t.Fatalf("entries: got %+v", got)
	}
}

func TestCellLogger_GroupsWritesPerTick(t *testing.T) {
	dir := t.TempDir()
	l := NewCellLogger(dir)
	w, err := world.New(4, 4, l)
	if err != nil {
		t.Fatalf("world: %v", err)
	}
	a := atom.New(atom.TypeMov).WithDir1(atom.DirRight)
	w.SetAtom(5, a)
	if err := l.WriteTick(runner.TickLogEntry{Tick: 0}); err != nil {
		t.Fatalf("tick 0: %v", err)
	}
	// Nothing written on tick 1.
	if err := l.WriteTick(runner.TickLogEntry{Tick: 1}); err != nil {
		t.Fatalf("tick 1: %v", err)
	}
	w.MoveAtom(5, 6, a)
	if err := l.WriteTick(runner.TickLogEntry{Tick: 2}); err != nil {
		t.Fatalf("tick 2: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	files, err := ListFiles(filepath.Join(dir, "cells"), "cells")
	if err != nil || len(files) == 0 {
		t.Fatalf("list: %v (%d files)", err, len(files))
	}
	var got []CellLogEntry
	for _, f := range files {
		if err := ReadJSONL(f, func(line []byte) error {
			var e CellLogEntry
			if err := json.Unmarshal(line, &e); err != nil {
				return err
			}
			got = append(got, e)
			return nil
		}); err != nil {
			t.Fatalf("read: %v", err)
		}
	}
	if len(got) != 2 {
		t.Fatalf("entries: got %d want 2", len(got))
	}
	if got[0].Tick != 0 || len(got[0].Writes) != 1 || got[0].Writes[0] != (world.CellWrite{Offs: 5, Atom: a}) {
		t.Fatalf("tick 0 entry: %+v", got[0])
	}
	if got[1].Tick != 2 || len(got[1].Writes) != 2 || got[1].Writes[1].Offs != 6 {
		t.Fatalf("tick 2 entry: %+v", got[1])
	}
}

func TestListFiles_FiltersPrefix(t *testing.T) {
	dir := t.TempDir()
	l := NewJSONLZstdWriter(dir, "ticks")
	if err := l.Write(map[string]int{"tick": 1}); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = l.Close()
	other := NewJSONLZstdWriter(dir, "cells")
	_ = other.Write(map[string]int{"tick": 1})
	_ = other.Close()

	files, err := ListFiles(dir, "ticks")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(files) == 0 {
		t.Fatalf("no files listed")
	}
	for _, f := range files {
		if !strings.HasPrefix(filepath.Base(f), "ticks-") {
			t.Fatalf("unexpected file %s", f)
		}
	}
}
