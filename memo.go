package ogpeek

import (
	"sort"
)

// DefaultMaxDepth bounds reference resolution when no other bound is configured.
const DefaultMaxDepth = 250

// Memo is the memo table built by one evaluation.
//
// Every entry lives in its own slot so that APPEND, SETITEM and friends can
// modify a memoised collection in place through a chain of Refs.
//
// Resolution is bounded by MaxDepth. Reaching the bound is not an error: the
// value reached so far is returned as is, possibly still holding Refs.
type Memo struct {
	slots    map[uint32]*Value
	maxDepth int
}

// NewMemo returns an empty memo table that resolves references at most
// maxDepth levels deep. maxDepth <= 0 selects DefaultMaxDepth.
func NewMemo(maxDepth int) *Memo {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &Memo{slots: make(map[uint32]*Value), maxDepth: maxDepth}
}

// MaxDepth returns the resolution bound of m.
func (m *Memo) MaxDepth() int { return m.maxDepth }

// Len returns the number of stored entries.
func (m *Memo) Len() int { return len(m.slots) }

// Get returns the value stored under id as is.
func (m *Memo) Get(id uint32) (Value, bool) {
	p, ok := m.slots[id]
	if !ok {
		return nil, false
	}
	return *p, true
}

// IDs returns the stored ids in increasing order.
func (m *Memo) IDs() []uint32 {
	ids := make([]uint32, 0, len(m.slots))
	for id := range m.slots {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Insert stores v under id, replacing any previous entry.
func (m *Memo) Insert(id uint32, v Value) {
	m.slots[id] = &v
}

func (m *Memo) lookup(id uint32) (*Value, error) {
	p, ok := m.slots[id]
	if !ok {
		return nil, &MemoError{ID: id}
	}
	return p, nil
}

// Resolve follows v through the memo table while it is a Ref.
//
// With recursive=false exactly one hop is made. Otherwise chains are followed
// until a non-Ref value or MaxDepth hops. A Ref to a missing id is a
// *MemoError. The result is the memo entry itself and must not be modified
// in place; use Clone for a copy that may be.
//
// Resolve does not look inside composite values; use ResolveAll for that.
func (m *Memo) Resolve(v Value, recursive bool) (Value, error) {
	return m.follow(v, recursive)
}

func (m *Memo) follow(v Value, recursive bool) (Value, error) {
	for count := 0; ; {
		ref, ok := v.(Ref)
		if !ok {
			return v, nil
		}
		p, err := m.lookup(uint32(ref))
		if err != nil {
			return nil, err
		}
		v = *p
		if !recursive {
			return v, nil
		}
		count++
		if count >= m.maxDepth {
			return v, nil
		}
	}
}

// resolveMut returns the slot holding the value that p refers to.
//
// If *p is not a Ref, p itself is returned. Otherwise the Ref chain is followed
// and the memo slot at its end is returned, so that writes through the result
// are seen by every other Ref to the same entry.
func (m *Memo) resolveMut(p *Value) (*Value, error) {
	ref, ok := (*p).(Ref)
	if !ok {
		return p, nil
	}
	slot, err := m.lookup(uint32(ref))
	if err != nil {
		return nil, err
	}
	for count := 0; count < m.maxDepth; count++ {
		ref, ok := (*slot).(Ref)
		if !ok {
			break
		}
		slot, err = m.lookup(uint32(ref))
		if err != nil {
			return nil, err
		}
	}
	return slot, nil
}

// ResolveAll returns v with every Ref inside it replaced by the memo entry it
// refers to. With fix=true every node is also passed through FixValue.
//
// Each level of nesting and each followed Ref counts against MaxDepth; the
// part of the tree below the bound is returned unresolved.
//
// Entries referenced more than once are resolved once, so the result may
// share subtrees with itself and, below the depth bound, with the memo. It
// must be treated as read-only.
func (m *Memo) ResolveAll(v Value, fix bool) (Value, error) {
	r := m.resolver(fix)
	return r.walk(0, v)
}

func (m *Memo) resolver(fix bool) *resolver {
	return &resolver{
		memo:  m,
		fix:   fix,
		cache: make(map[refAt]Value),
		seqs:  make(map[sliceAt][]Value),
	}
}

// refAt identifies the resolution of one Ref at one depth.
type refAt struct {
	id    uint32
	depth int
}

// sliceAt identifies the resolution of one item slice at one depth.
// Values are never modified in place, so a slice is known by its first
// element and length.
type sliceAt struct {
	first *Value
	n     int
	depth int
}

// resolver walks value trees for ResolveAll.
//
// The result of resolving Ref(id) at a given depth only depends on id and the
// depth, so it is computed once. This keeps resolution linear in the memo size
// times MaxDepth even when entries are referenced many times over. Item
// slices shared between several values are likewise walked once per depth.
type resolver struct {
	memo  *Memo
	fix   bool
	cache map[refAt]Value
	seqs  map[sliceAt][]Value
}

func (r *resolver) walk(depth int, v Value) (Value, error) {
	if depth >= r.memo.maxDepth {
		return v, nil
	}

	var out Value
	var err error
	switch v := v.(type) {
	case Ref:
		key := refAt{uint32(v), depth}
		if cached, ok := r.cache[key]; ok {
			return cached, nil
		}
		var target Value
		target, err = r.memo.follow(v, true)
		if err != nil {
			return nil, err
		}
		out, err = r.walk(depth+1, target)
		if err != nil {
			return nil, err
		}
		r.cache[key] = out
		return out, nil // already fixed by walk

	case App:
		var callee Value
		var args []Value
		if callee, err = r.walk(depth+1, v.Callee); err == nil {
			args, err = r.walkSlice(depth+1, v.Args)
		}
		out = App{Callee: callee, Args: args}

	case Object:
		var class Value
		var args []Value
		if class, err = r.walk(depth+1, v.Class); err == nil {
			args, err = r.walkSlice(depth+1, v.Args)
		}
		out = Object{Class: class, Args: args}

	case Build:
		var target, state Value
		if target, err = r.walk(depth+1, v.Target); err == nil {
			state, err = r.walk(depth+1, v.State)
		}
		out = Build{Target: target, State: state}

	case Global:
		var callee Value
		var args []Value
		if callee, err = r.walk(depth+1, v.Callee); err == nil {
			args, err = r.walkSlice(depth+1, v.Args)
		}
		out = Global{Callee: callee, Args: args}

	case Seq:
		var items []Value
		items, err = r.walkSlice(depth+1, v.Items)
		out = Seq{Type: v.Type, Items: items}

	case PersID:
		var id Value
		id, err = r.walk(depth+1, v.ID)
		out = PersID{ID: id}

	default:
		out = v
	}
	if err != nil {
		return nil, err
	}
	if r.fix {
		out = FixValue(out)
	}
	return out, nil
}

func (r *resolver) walkSlice(depth int, vv []Value) ([]Value, error) {
	if depth >= r.memo.maxDepth {
		return vv, nil
	}
	if len(vv) == 0 {
		return []Value{}, nil
	}
	key := sliceAt{&vv[0], len(vv), depth}
	if out, ok := r.seqs[key]; ok {
		return out, nil
	}
	out := make([]Value, len(vv))
	for i, v := range vv {
		x, err := r.walk(depth+1, v)
		if err != nil {
			return nil, err
		}
		out[i] = x
	}
	r.seqs[key] = out
	return out, nil
}
