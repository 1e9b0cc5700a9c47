package vm

import "irma.ai/internal/sim/world"

// Costs are the per-instruction energy amounts. fix, mov and if debit; spl
// credits.
type Costs struct {
	Mov int
	Fix int
	Spl int
	If  int
}

// Core is the execution context shared by every VM: the grid, the pool, the
// energy costs and the scratch buffers used by mov.
//
// Core is not reentrant. Exactly one VM step may run against a Core at a time;
// concurrent steppers need their own Core and disjoint regions of the grid.
type Core struct {
	World *world.World
	VMs   *Pool
	Costs Costs

	stack *Stack
	moved *Set
}

func NewCore(w *world.World, pool *Pool, costs Costs) *Core {
	return &Core{
		World: w,
		VMs:   pool,
		Costs: costs,
		stack: NewStack(64),
		moved: NewSet(64),
	}
}

// Step runs one instruction for the VM in pool slot i.
func (c *Core) Step(i int) bool {
	return c.VMs.At(i).Run(c)
}

// Touched reports whether offs was recorded by the most recent mov: either a
// destination an atom was moved into, or a bonded neighbour left more than one
// cell away.
func (c *Core) Touched(offs int) bool {
	return c.moved.Contains(offs)
}
