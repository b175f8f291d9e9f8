package ogpeek

// stack is the operand stack of one evaluation.
type stack []Value

// Append a new value
func (s *stack) push(v Value) {
	*s = append(*s, v)
}

// Pop a value
func (s *stack) pop() (Value, error) {
	ln := len(*s) - 1
	if ln < 0 {
		return nil, ErrStackUnderflow
	}
	v := (*s)[ln]
	(*s)[ln] = nil
	*s = (*s)[:ln]
	return v, nil
}

// popN pops n values and returns them in push order.
func (s *stack) popN(n int) ([]Value, error) {
	ln := len(*s) - n
	if ln < 0 {
		return nil, ErrStackUnderflow
	}
	vv := make([]Value, n)
	copy(vv, (*s)[ln:])
	*s = (*s)[:ln]
	return vv, nil
}

// top returns the slot of the topmost value.
func (s stack) top() (*Value, error) {
	if len(s) == 0 {
		return nil, ErrStackUnderflow
	}
	return &s[len(s)-1], nil
}

// Return the position of the topmost marker
func (s stack) marker() (int, error) {
	for k := len(s) - 1; k >= 0; k-- {
		if isMark(s[k]) {
			return k, nil
		}
	}
	return 0, ErrNoMarker
}

// popMark returns the values above the topmost marker and removes them
// together with the marker.
func (s *stack) popMark() ([]Value, error) {
	k, err := s.marker()
	if err != nil {
		return nil, err
	}
	vv := make([]Value, len(*s)-k-1)
	copy(vv, (*s)[k+1:])
	*s = (*s)[:k]
	return vv, nil
}

// pairs groups k₁, v₁, k₂, v₂, ... into (k, v) tuples.
func pairs(items []Value) ([]Value, error) {
	if len(items)%2 != 0 {
		return nil, ErrOddDict
	}
	kv := make([]Value, 0, len(items)/2)
	for i := 0; i < len(items); i += 2 {
		kv = append(kv, NewTuple(items[i], items[i+1]))
	}
	return kv, nil
}
