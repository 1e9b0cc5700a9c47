package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"irma.ai/internal/sim/atom"
	"irma.ai/internal/sim/runner"
	"irma.ai/internal/sim/tuning"
	"irma.ai/internal/sim/world"
)

// SQLiteIndex is a queryable secondary index of ticks and cell writes. It is
// fed from the stepping goroutine (as a world.Sink and runner.TickLogger) and
// written by its own goroutine; when the queue is full entries are dropped.
type SQLiteIndex struct {
	db    *sql.DB
	width int

	buf world.WriteBuffer

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropTickTotal atomic.Uint64
}

type req struct {
	tick   runner.TickLogEntry
	writes []world.CellWrite
}

type Stats struct {
	DropTickTotal uint64
	QueueDepth    int
	QueueCapacity int
}

// OpenSQLite opens (or creates) the index at path. width is the grid width,
// used to store x/y next to each written offset.
func OpenSQLite(path string, width int) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if width <= 0 {
		return nil, fmt.Errorf("grid width must be positive: %d", width)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db:    db,
		width: width,
		ch:    make(chan req, 4096),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS configs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS ticks (
			tick INTEGER PRIMARY KEY,
			digest TEXT NOT NULL,
			vms INTEGER NOT NULL,
			steps INTEGER NOT NULL,
			worked INTEGER NOT NULL,
			spawned INTEGER NOT NULL,
			culled INTEGER NOT NULL,
			energy INTEGER NOT NULL,
			atoms INTEGER NOT NULL,
			raw_json TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS writes (
			tick INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			offs INTEGER NOT NULL,
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			atom INTEGER NOT NULL,
			type TEXT NOT NULL,
			PRIMARY KEY (tick, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_writes_offs_tick ON writes(offs, tick);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) Stats() Stats {
	return Stats{
		DropTickTotal: s.dropTickTotal.Load(),
		QueueDepth:    len(s.ch),
		QueueCapacity: cap(s.ch),
	}
}

// CellWritten buffers a write until the tick that made it is reported.
func (s *SQLiteIndex) CellWritten(offs int, a atom.Atom) {
	if s == nil || s.closed.Load() {
		return
	}
	s.buf.CellWritten(offs, a)
}

// WriteTick queues the tick summary together with the writes buffered since
// the previous tick.
func (s *SQLiteIndex) WriteTick(entry runner.TickLogEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{tick: entry, writes: s.buf.Take()}:
	default:
		// Drop if the indexer falls behind; JSONL logs remain the source of truth.
		s.buf.Take()
		s.dropTickTotal.Add(1)
	}
	return nil
}

// UpsertTuning stores the tuning in effect as canonical JSON.
func (s *SQLiteIndex) UpsertTuning(tune tuning.Tuning) error {
	if s == nil {
		return nil
	}
	b, err := json.Marshal(tune)
	if err != nil {
		return err
	}
	sum := sha256.Sum256(b)
	now := time.Now().UTC().Format(time.RFC3339Nano)

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('grid_width',?)`, fmt.Sprint(s.width)); err != nil {
		return err
	}
	if _, err := tx.Exec(`INSERT OR REPLACE INTO configs(name,digest,json,updated_at) VALUES(?,?,?,?)`,
		"tuning", hex.EncodeToString(sum[:]), string(b), now); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertTick, _ := s.db.Prepare(`INSERT OR REPLACE INTO ticks(tick,digest,vms,steps,worked,spawned,culled,energy,atoms,raw_json) VALUES(?,?,?,?,?,?,?,?,?,?)`)
	insertWrite, _ := s.db.Prepare(`INSERT OR REPLACE INTO writes(tick,seq,offs,x,y,atom,type) VALUES(?,?,?,?,?,?,?)`)
	defer func() {
		if insertTick != nil {
			_ = insertTick.Close()
		}
		if insertWrite != nil {
			_ = insertWrite.Close()
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}

	for r := range s.ch {
		begin()
		if tx == nil || insertTick == nil || insertWrite == nil {
			continue
		}
		t := r.tick
		raw, _ := json.Marshal(t)
		if _, err := tx.Stmt(insertTick).Exec(
			int64(t.Tick),
			t.Digest,
			t.VMs,
			t.Steps,
			t.Worked,
			t.Spawned,
			t.Culled,
			t.Energy,
			t.Atoms,
			string(raw),
		); err != nil {
			rollback()
			continue
		}
		opCount++
		for seq, wr := range r.writes {
			if _, err := tx.Stmt(insertWrite).Exec(
				int64(t.Tick),
				seq,
				wr.Offs,
				wr.Offs%s.width,
				wr.Offs/s.width,
				int64(wr.Atom),
				wr.Atom.Type().String(),
			); err != nil {
				rollback()
				break
			}
			opCount++
		}
		if tx != nil && (opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait) {
			commit()
		}
	}

	commit()
}
