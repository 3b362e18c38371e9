package skeleton

// Walk lists root and every descendant in pre-order: a parent always precedes
// its children and siblings keep insertion order. It uses an explicit stack
// so depth is bounded only by memory.
func (s *Skeleton) Walk(root JointID) []JointID {
	if !s.valid(root) {
		return nil
	}

	order := make([]JointID, 0, len(s.joints))
	stack := []JointID{root}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		order = append(order, id)

		kids := s.children[id]
		for i := len(kids) - 1; i >= 0; i-- {
			stack = append(stack, kids[i])
		}
	}
	return order
}
