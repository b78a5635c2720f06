package expr

// Stack is the operand stack of a formula decoder. Entries stay owned by the
// stack until popped.
type Stack struct {
	items []Node
}

// Push puts n on top of the stack.
func (s *Stack) Push(n Node) {
	s.items = append(s.items, n)
}

// Pop removes and returns the top entry. It reports false when the stack is
// empty.
func (s *Stack) Pop() (Node, bool) {
	if len(s.items) == 0 {
		return nil, false
	}
	last := len(s.items) - 1
	n := s.items[last]
	s.items[last] = nil
	s.items = s.items[:last]
	return n, true
}

// Peek returns the top entry without removing it.
func (s *Stack) Peek() (Node, bool) {
	if len(s.items) == 0 {
		return nil, false
	}
	return s.items[len(s.items)-1], true
}

// Len returns the number of entries.
func (s *Stack) Len() int {
	return len(s.items)
}

// Release empties the stack, releasing every remaining entry through b.
func (s *Stack) Release(b *Builder) {
	for i, n := range s.items {
		b.Release(n)
		s.items[i] = nil
	}
	s.items = s.items[:0]
}
