// Package vm runs molecules: each VM walks the grid, executing the atom under
// it and rewriting the atoms and bonds around it.
package vm

import "irma.ai/internal/sim/atom"

// VM is one execution context: an energy counter and the offset of the atom
// it executes next. Energy is signed and has no floor here.
type VM struct {
	energy int
	offs   int
}

func New(energy, offs int) VM {
	return VM{energy: energy, offs: offs}
}

func (v *VM) Energy() int { return v.energy }
func (v *VM) Offs() int   { return v.offs }

// Run executes the atom at the VM's offset and reports whether it did any
// work. An empty cell or a reserved type is a no-op.
func (v *VM) Run(c *Core) bool {
	a := c.World.Atom(v.offs)
	switch a.Type() {
	case atom.TypeMov:
		return v.mov(a, c)
	case atom.TypeFix:
		return v.fix(a, c)
	case atom.TypeSpl:
		return v.spl(a, c)
	case atom.TypeIf:
		return v.cond(a, c)
	case atom.TypeJob:
		return v.job(a, c)
	case atom.TypeEmpty, atom.TypeReserved6, atom.TypeReserved7:
		return false
	default:
		return false
	}
}

// follow moves the VM along the VM-bond of a, if a has one.
func (v *VM) follow(a atom.Atom, c *Core) {
	if a.HasVMBond() {
		v.offs = c.World.Offs(v.offs, a.VMDir())
	}
}
