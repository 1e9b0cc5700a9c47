package vm

import "irma.ai/internal/sim/atom"

// mov slides the VM's atom one cell along its dir1. Atoms standing in the way
// are pushed first, depth first, so a blocking chain moves as one. Every moved
// atom gets its VM-dir (and an if atom its dir2) rewritten toward the cell its
// old neighbour now sits in, with the bond flag set; a neighbour pointing back
// is rewritten too. A neighbour that ends up two cells away is only recorded in
// the moved set (it is not dragged along).
//
// Afterwards the VM steps from its old offset along the moved atom's VM-bond,
// if any. An unbonded atom leaves its VM behind on the emptied cell.
//
// The whole chain is resolved before the first atom moves: a chain that wraps
// around the torus back onto the VM's own cell, or a destination equal to its
// source, fails without touching the grid.
func (v *VM) mov(a atom.Atom, c *Core) bool {
	w := c.World
	dir := a.Dir1()
	stack, moved := c.stack, c.moved

	stack.Clear()
	moved.Clear()
	stack.Push(v.offs)

	start := v.offs
	head := a
	count := 0

	for !stack.Empty() {
		offs, _ := stack.Last()
		to := w.Offs(offs, dir)
		if to == offs || to == start {
			stack.Clear()
			return false
		}
		if w.IsAtom(to) {
			stack.Push(to)
			continue
		}

		stack.Shrink()
		cur := w.Atom(offs)
		w.MoveAtom(offs, to, cur)
		moved.Insert(to)
		v.energy -= c.Costs.Mov
		count++

		cur = repairVMBond(c, cur, offs, to, dir)
		if cur.Type() == atom.TypeIf {
			cur = repairThenBond(c, cur, offs, to, dir)
		}
		if offs == start {
			head = cur
		}
	}

	v.follow(head, c)
	return count > 0
}

// repairVMBond fixes the VM-bond of an atom that just moved from offs to to.
// The bond flag is not consulted: an unbonded atom whose VM-dir still names an
// adjacent cell comes out bonded.
func repairVMBond(c *Core, a atom.Atom, offs, to int, dir atom.Dir) atom.Atom {
	w := c.World
	d0 := a.VMDir()
	near := w.Offs(offs, d0)
	d1 := atom.MovedDir(d0, dir)
	if d1 == atom.DirNo {
		c.moved.Insert(near)
		return a
	}
	a = a.WithVMDir(d1).WithVMBond()
	w.SetAtom(to, a)

	rev := d0.Reverse()
	if n := w.Atom(near); n.IsAtom() && n.VMDir() == rev {
		w.SetAtom(near, n.WithVMDir(atom.NearDir(rev, dir)).WithVMBond())
	}
	return a
}

// repairThenBond is repairVMBond for the then-bond (dir2) of an if atom.
func repairThenBond(c *Core, a atom.Atom, offs, to int, dir atom.Dir) atom.Atom {
	w := c.World
	d0 := a.Dir2()
	near := w.Offs(offs, d0)
	d1 := atom.MovedDir(d0, dir)
	if d1 == atom.DirNo {
		c.moved.Insert(near)
		return a
	}
	a = a.WithDir2(d1).WithDir2Bond()
	w.SetAtom(to, a)

	rev := d0.Reverse()
	if n := w.Atom(near); n.IsAtom() && n.Dir2() == rev {
		w.SetAtom(near, n.WithDir2(atom.NearDir(rev, dir)).WithDir2Bond())
	}
	return a
}
