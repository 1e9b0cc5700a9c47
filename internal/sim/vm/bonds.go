package vm

import "irma.ai/internal/sim/atom"

// operands locates the two atoms a fix or spl works on: the first one next to
// the VM along dir1, and the second one next to the first along dir2. ok is
// false when either cell is empty.
func (v *VM) operands(a atom.Atom, c *Core) (offs0 int, a0 atom.Atom, d atom.Dir, ok bool) {
	w := c.World
	offs0 = w.Offs(v.offs, a.Dir1())
	a0 = w.Atom(offs0)
	if !a0.IsAtom() {
		return offs0, a0, atom.DirNo, false
	}
	d = a.Dir2()
	if !w.DirAtom(offs0, d).IsAtom() {
		return offs0, a0, atom.DirNo, false
	}
	return offs0, a0, d, true
}

// fix bonds the first operand to the second: its VM-bond if free, otherwise
// the then-bond of an if atom.
func (v *VM) fix(a atom.Atom, c *Core) bool {
	offs0, a0, d, ok := v.operands(a, c)
	if !ok {
		return false
	}
	switch {
	case !a0.HasVMBond():
		a0 = a0.WithVMDir(d).WithVMBond()
	case a0.Type() == atom.TypeIf && !a0.HasDir2Bond():
		a0 = a0.WithDir2(d).WithDir2Bond()
	default:
		return false
	}
	c.World.SetAtom(offs0, a0)
	v.follow(a, c)
	v.energy -= c.Costs.Fix
	return true
}

// spl breaks the first operand's VM-bond, or the then-bond of an if atom, and
// refunds energy.
func (v *VM) spl(a atom.Atom, c *Core) bool {
	offs0, a0, _, ok := v.operands(a, c)
	if !ok {
		return false
	}
	switch {
	case a0.HasVMBond():
		a0 = a0.WithoutVMBond()
	case a0.Type() == atom.TypeIf && a0.HasDir2Bond():
		a0 = a0.WithoutDir2Bond()
	default:
		return false
	}
	c.World.SetAtom(offs0, a0)
	v.follow(a, c)
	v.energy += c.Costs.Spl
	return true
}
