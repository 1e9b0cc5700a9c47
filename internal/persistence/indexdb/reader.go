package indexdb

import (
	"context"
	"database/sql"
	"fmt"

	"irma.ai/internal/sim/atom"
)

// Reader queries an index written by SQLiteIndex.
type Reader struct {
	db *sql.DB
}

type TickRow struct {
	Tick    uint64
	Digest  string
	VMs     int
	Worked  int
	Spawned int
	Culled  int
	Energy  int64
	Atoms   int
}

type WriteRow struct {
	Tick uint64
	Seq  int
	Offs int
	X    int
	Y    int
	Atom atom.Atom
}

func OpenReader(path string) (*Reader, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000;"); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Reader{db: db}, nil
}

func (r *Reader) Close() error { return r.db.Close() }

// Ticks returns the newest ticks first.
func (r *Reader) Ticks(ctx context.Context, limit int) ([]TickRow, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT tick,digest,vms,worked,spawned,culled,energy,atoms FROM ticks ORDER BY tick DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []TickRow
	for rows.Next() {
		var t TickRow
		var tick int64
		if err := rows.Scan(&tick, &t.Digest, &t.VMs, &t.Worked, &t.Spawned, &t.Culled, &t.Energy, &t.Atoms); err != nil {
			return nil, err
		}
		t.Tick = uint64(tick)
		out = append(out, t)
	}
	return out, rows.Err()
}

// CellHistory returns the writes to cell (x, y), newest first.
func (r *Reader) CellHistory(ctx context.Context, x, y, limit int) ([]WriteRow, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT tick,seq,offs,x,y,atom FROM writes WHERE x=? AND y=? ORDER BY tick DESC, seq DESC LIMIT ?`, x, y, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []WriteRow
	for rows.Next() {
		var w WriteRow
		var tick, a int64
		if err := rows.Scan(&tick, &w.Seq, &w.Offs, &w.X, &w.Y, &a); err != nil {
			return nil, err
		}
		if a < 0 || a > 0xFFFF {
			return nil, fmt.Errorf("atom out of range at tick %d: %d", tick, a)
		}
		w.Tick = uint64(tick)
		w.Atom = atom.Atom(a)
		out = append(out, w)
	}
	return out, rows.Err()
}

// Tuning returns the stored tuning JSON and its digest.
func (r *Reader) Tuning(ctx context.Context) (digest, raw string, err error) {
	err = r.db.QueryRowContext(ctx, `SELECT digest,json FROM configs WHERE name='tuning'`).Scan(&digest, &raw)
	return digest, raw, err
}
