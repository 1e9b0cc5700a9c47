package vm

import (
	"testing"

	"irma.ai/internal/sim/atom"
	"irma.ai/internal/sim/world"
)

var testCosts = Costs{Mov: 1, Fix: 3, Spl: 3, If: 2}

func newTestCore(t *testing.T, width, height, poolCap int) *Core {
	t.Helper()
	w, err := world.New(width, height, nil)
	if err != nil {
		t.Fatalf("world: %v", err)
	}
	return NewCore(w, NewPool(poolCap), testCosts)
}

// place puts a at (x, y) and returns its offset.
func place(c *Core, x, y int, a atom.Atom) int {
	offs := c.World.Offset(x, y)
	c.World.SetAtom(offs, a)
	return offs
}

func bonded(t atom.Type, vmDir atom.Dir) atom.Atom {
	return atom.New(t).WithVMDir(vmDir).WithVMBond()
}

func mustAtom(t *testing.T, c *Core, x, y int, want atom.Atom) {
	t.Helper()
	if got := c.World.Atom(c.World.Offset(x, y)); got != want {
		t.Fatalf("atom at (%d,%d): got %s want %s", x, y, got, want)
	}
}

func mustEmpty(t *testing.T, c *Core, x, y int) {
	t.Helper()
	if got := c.World.Atom(c.World.Offset(x, y)); got.IsAtom() {
		t.Fatalf("atom at (%d,%d): got %s want empty", x, y, got)
	}
}
