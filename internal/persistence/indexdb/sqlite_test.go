package indexdb

import (
	"context"
	"path/filepath"
	"testing"

	"irma.ai/internal/sim/atom"
	"irma.ai/internal/sim/runner"
	"irma.ai/internal/sim/tuning"
	"irma.ai/internal/sim/world"
)

func TestSQLiteIndex_QueueDropStats(t *testing.T) {
	s := &SQLiteIndex{width: 4, ch: make(chan req, 1)}
	s.ch <- req{tick: runner.TickLogEntry{Tick: 1}}

	s.CellWritten(3, atom.New(atom.TypeMov))
	_ = s.WriteTick(runner.TickLogEntry{Tick: 2})

	st := s.Stats()
	if st.DropTickTotal != 1 {
		t.Fatalf("DropTickTotal=%d want=1", st.DropTickTotal)
	}
	if st.QueueDepth != 1 || st.QueueCapacity != 1 {
		t.Fatalf("queue stats mismatch: depth=%d cap=%d", st.QueueDepth, st.QueueCapacity)
	}
	if s.buf.Len() != 0 {
		t.Fatalf("dropped tick kept %d buffered writes", s.buf.Len())
	}
}

func TestSQLiteIndex_TicksAndWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index", "irma.sqlite")
	idx, err := OpenSQLite(path, 4)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := idx.UpsertTuning(tuning.Defaults()); err != nil {
		t.Fatalf("upsert tuning: %v", err)
	}

	w, err := world.New(4, 4, idx)
	if err != nil {
		t.Fatalf("world: %v", err)
	}
	a := atom.New(atom.TypeFix)
	w.SetAtom(w.Offset(1, 2), a)
	_ = idx.WriteTick(runner.TickLogEntry{Tick: 0, VMs: 1, Atoms: 1, Digest: w.Digest()})
	w.MoveAtom(w.Offset(1, 2), w.Offset(2, 2), a)
	_ = idx.WriteTick(runner.TickLogEntry{Tick: 1, VMs: 1, Worked: 1, Atoms: 1, Digest: w.Digest()})
	if err := idx.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	// Writes after close are ignored.
	idx.CellWritten(0, a)
	_ = idx.WriteTick(runner.TickLogEntry{Tick: 2})

	r, err := OpenReader(path)
	if err != nil {
		t.Fatalf("reader: %v", err)
	}
	defer r.Close()
	ctx := context.Background()

	ticks, err := r.Ticks(ctx, 10)
	if err != nil {
		t.Fatalf("ticks: %v", err)
	}
	if len(ticks) != 2 || ticks[0].Tick != 1 || ticks[0].Digest != w.Digest() || ticks[0].Worked != 1 {
		t.Fatalf("ticks: got %+v", ticks)
	}

	hist, err := r.CellHistory(ctx, 1, 2, 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(hist) != 2 {
		t.Fatalf("history: got %+v", hist)
	}
	if hist[0].Tick != 1 || hist[0].Atom != atom.Empty || hist[1].Tick != 0 || hist[1].Atom != a {
		t.Fatalf("history order: got %+v", hist)
	}
	if hist[1].Offs != w.Offset(1, 2) {
		t.Fatalf("offs: got %d want %d", hist[1].Offs, w.Offset(1, 2))
	}

	digest, raw, err := r.Tuning(ctx)
	if err != nil || digest == "" || raw == "" {
		t.Fatalf("tuning: digest=%q err=%v", digest, err)
	}
}

func TestOpenSQLite_RejectsBadArgs(t *testing.T) {
	if _, err := OpenSQLite("", 4); err == nil {
		t.Fatalf("expected empty path error")
	}
	if _, err := OpenSQLite(filepath.Join(t.TempDir(), "x.sqlite"), 0); err == nil {
		t.Fatalf("expected width error")
	}
}
