package world

import "irma.ai/internal/sim/atom"

// Sink observes every cell write (renderers, loggers, indexers). Calls happen
// on the stepping goroutine and must not block.
type Sink interface {
	CellWritten(offs int, a atom.Atom)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(offs int, a atom.Atom)

func (f SinkFunc) CellWritten(offs int, a atom.Atom) { f(offs, a) }

// Discard drops every notification.
var Discard Sink = discard{}

type discard struct{}

func (discard) CellWritten(int, atom.Atom) {}

// MultiSink fans a write out to every non-nil sink in order.
func MultiSink(sinks ...Sink) Sink {
	out := make(multiSink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return Discard
	}
	if len(out) == 1 {
		return out[0]
	}
	return out
}

type multiSink []Sink

func (m multiSink) CellWritten(offs int, a atom.Atom) {
	for _, s := range m {
		s.CellWritten(offs, a)
	}
}

// CellWrite is one recorded cell write.
type CellWrite struct {
	Offs int       `json:"offs"`
	Atom atom.Atom `json:"atom"`
}

// WriteBuffer is a Sink that accumulates writes until Take. Consumers that
// publish per tick pair it with a tick boundary.
type WriteBuffer struct {
	writes []CellWrite
}

func (b *WriteBuffer) CellWritten(offs int, a atom.Atom) {
	b.writes = append(b.writes, CellWrite{Offs: offs, Atom: a})
}

func (b *WriteBuffer) Len() int { return len(b.writes) }

// Take returns the pending writes in write order and resets the buffer.
func (b *WriteBuffer) Take() []CellWrite {
	out := b.writes
	b.writes = nil
	return out
}
