package vm

// Pool is a fixed-capacity collection of VMs. Its backing array is allocated
// once, so *VM pointers handed out by At stay valid while handlers Add.
type Pool struct {
	vms []VM
}

func NewPool(capacity int) *Pool {
	if capacity < 0 {
		capacity = 0
	}
	return &Pool{vms: make([]VM, 0, capacity)}
}

func (p *Pool) Cap() int   { return cap(p.vms) }
func (p *Pool) Len() int   { return len(p.vms) }
func (p *Pool) Full() bool { return len(p.vms) >= cap(p.vms) }

// Add admits v. It returns false when the pool is full.
func (p *Pool) Add(v VM) bool {
	if p.Full() {
		return false
	}
	p.vms = append(p.vms, v)
	return true
}

// At returns the VM in slot i.
func (p *Pool) At(i int) *VM { return &p.vms[i] }

// Compact keeps only the VMs for which keep returns true, preserving order,
// and returns how many were removed.
func (p *Pool) Compact(keep func(*VM) bool) int {
	n := 0
	for i := range p.vms {
		if keep(&p.vms[i]) {
			p.vms[n] = p.vms[i]
			n++
		}
	}
	removed := len(p.vms) - n
	p.vms = p.vms[:n]
	return removed
}

// Energy returns the summed energy of every VM in the pool.
func (p *Pool) Energy() int64 {
	var sum int64
	for i := range p.vms {
		sum += int64(p.vms[i].energy)
	}
	return sum
}
