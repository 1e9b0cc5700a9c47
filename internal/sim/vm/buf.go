package vm

// Stack is a reusable LIFO of grid offsets.
type Stack struct {
	items []int
}

func NewStack(capacity int) *Stack {
	return &Stack{items: make([]int, 0, capacity)}
}

func (s *Stack) Push(offs int) { s.items = append(s.items, offs) }
func (s *Stack) Empty() bool   { return len(s.items) == 0 }
func (s *Stack) Len() int      { return len(s.items) }
func (s *Stack) Clear()        { s.items = s.items[:0] }

// Last returns the top offset without removing it.
func (s *Stack) Last() (int, bool) {
	if len(s.items) == 0 {
		return 0, false
	}
	return s.items[len(s.items)-1], true
}

// Shrink drops the top offset.
func (s *Stack) Shrink() {
	if len(s.items) > 0 {
		s.items = s.items[:len(s.items)-1]
	}
}

// Set is a reusable dedup set of grid offsets.
type Set struct {
	m map[int]struct{}
}

func NewSet(capacity int) *Set {
	return &Set{m: make(map[int]struct{}, capacity)}
}

func (s *Set) Insert(offs int) { s.m[offs] = struct{}{} }
func (s *Set) Len() int        { return len(s.m) }
func (s *Set) Clear()          { clear(s.m) }

func (s *Set) Contains(offs int) bool {
	_, ok := s.m[offs]
	return ok
}
