package vm

import "irma.ai/internal/sim/atom"

// cond is the if instruction. With an active then-bond and an atom next to
// the VM along dir1, the VM jumps along dir2; otherwise it follows its
// VM-bond. Both branches cost the same.
func (v *VM) cond(a atom.Atom, c *Core) bool {
	w := c.World
	if a.HasDir2Bond() && w.DirAtom(v.offs, a.Dir1()).IsAtom() {
		v.offs = w.Offs(v.offs, a.Dir2())
		v.energy -= c.Costs.If
		return true
	}
	if a.HasVMBond() {
		v.offs = w.Offs(v.offs, a.VMDir())
		v.energy -= c.Costs.If
		return true
	}
	return false
}

// job spawns a VM on the atom along the VM-bond direction, handing it half of
// this VM's energy (truncated). A full pool rejects the spawn before any
// energy changes hands.
func (v *VM) job(a atom.Atom, c *Core) bool {
	offs := c.World.Offs(v.offs, a.VMDir())
	if !c.World.IsAtom(offs) {
		return false
	}
	if c.VMs.Full() {
		return false
	}
	energy := v.energy / 2
	v.energy -= energy
	return c.VMs.Add(New(energy, offs))
}
