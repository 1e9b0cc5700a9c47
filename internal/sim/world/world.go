package world

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"irma.ai/internal/sim/atom"
)

// World is a width x height torus of atoms addressed by flat offsets
// (offs = y*width + x). Accessed only from the goroutine stepping VMs.
type World struct {
	width  int
	height int
	cells  []atom.Atom
	sink   Sink

	dirty bool
	hash  [32]byte
}

// New returns an empty grid. A nil sink discards write notifications.
func New(width, height int, sink Sink) (*World, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("world size must be positive: %dx%d", width, height)
	}
	if sink == nil {
		sink = Discard
	}
	return &World{
		width:  width,
		height: height,
		cells:  make([]atom.Atom, width*height),
		sink:   sink,
		dirty:  true,
	}, nil
}

func (w *World) Width() int  { return w.width }
func (w *World) Height() int { return w.height }
func (w *World) Len() int    { return len(w.cells) }

// SetSink swaps the write observer. Not safe while VMs are stepping.
func (w *World) SetSink(s Sink) {
	if s == nil {
		s = Discard
	}
	w.sink = s
}

// Offset wraps (x, y) onto the torus and returns its flat offset.
func (w *World) Offset(x, y int) int {
	return mod(y, w.height)*w.width + mod(x, w.width)
}

func (w *World) XY(offs int) (x, y int) {
	offs = mod(offs, len(w.cells))
	return offs % w.width, offs / w.width
}

// Offs returns the neighbour of offs in direction d. An invalid direction
// returns offs itself.
func (w *World) Offs(offs int, d atom.Dir) int {
	if !d.Valid() {
		return offs
	}
	x, y := w.XY(offs)
	dx, dy := d.Delta()
	return w.Offset(x+dx, y+dy)
}

func (w *World) Atom(offs int) atom.Atom {
	return w.cells[mod(offs, len(w.cells))]
}

// DirAtom returns the atom next to offs in direction d.
func (w *World) DirAtom(offs int, d atom.Dir) atom.Atom {
	return w.Atom(w.Offs(offs, d))
}

func (w *World) IsAtom(offs int) bool {
	return w.Atom(offs).IsAtom()
}

// SetAtom stores a at offs and notifies the sink.
func (w *World) SetAtom(offs int, a atom.Atom) {
	offs = mod(offs, len(w.cells))
	w.cells[offs] = a
	w.dirty = true
	w.sink.CellWritten(offs, a)
}

// MoveAtom relocates a from one cell to another, clearing the source.
func (w *World) MoveAtom(from, to int, a atom.Atom) {
	w.SetAtom(from, atom.Empty)
	w.SetAtom(to, a)
}

// Cells returns a copy of the whole grid in offset order.
func (w *World) Cells() []atom.Atom {
	out := make([]atom.Atom, len(w.cells))
	copy(out, w.cells)
	return out
}

// Count returns the number of occupied cells.
func (w *World) Count() int {
	n := 0
	for _, a := range w.cells {
		if a.IsAtom() {
			n++
		}
	}
	return n
}

// Digest hashes the grid contents; cached until the next write.
func (w *World) Digest() string {
	if w.dirty {
		h := sha256.New()
		var tmp [8]byte
		binary.LittleEndian.PutUint32(tmp[0:4], uint32(w.width))
		binary.LittleEndian.PutUint32(tmp[4:8], uint32(w.height))
		h.Write(tmp[:])
		for _, v := range w.cells {
			binary.LittleEndian.PutUint16(tmp[:2], uint16(v))
			h.Write(tmp[:2])
		}
		copy(w.hash[:], h.Sum(nil))
		w.dirty = false
	}
	return hex.EncodeToString(w.hash[:])
}

func mod(a, b int) int {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}
