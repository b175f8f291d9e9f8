package ogpeek

// Python-like view over evaluated dicts that looks keys up by Python-like equality.
//
// For example Dict.Get() will find the same entry for all keys Int(1), Float(1.0),
// Bool(true) and BigInt(1).

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/maphash"
	"math"
	"math/big"

	"github.com/aristanetworks/gomap"
)

// Dict is a read-only view of a Python dict produced by Evaluate.
//
// It mirrors Python with respect to which values are allowed to be used as
// keys, and with respect to keys equality. For example Tuple is allowed to be
// used as key, List is not, and Int(1), Float(1.0) and Bool(true) are
// considered to be equal. String and Bytes are never equal, as in Python 3.
//
// Entries keep the order in which they were added to the dict; a key that is
// set again keeps its first position and takes the last value.
//
// The zero Dict is empty.
type Dict struct {
	m       *gomap.Map[Value, int] // key -> index in entries
	entries []DictEntry
}

// DictEntry is one key/value pair of a Dict.
type DictEntry struct {
	Key   Value
	Value Value
}

// ErrUnhashable is returned when a key cannot be used as dict key in Python.
var ErrUnhashable = errors.New("unhashable type")

// NewDict builds a Dict out of an evaluated dict-like value.
//
// v may be a Seq(Dict) whose items are key/value tuples, or a Global whose
// arguments were filled by SETITEM and SETITEMS, as happens for mappings
// built by REDUCE like collections.OrderedDict. For a Global, a tuple whose
// every item is a key/value pair is taken as a batch added by SETITEMS, other
// key/value pairs as added by SETITEM, and the rest, e.g. the argument tuple
// of REDUCE, is skipped. A single SETITEM whose key and value are both
// 2-tuples is thus read as a batch of two pairs.
//
// v should be resolved with Memo.ResolveAll beforehand; Refs are treated as
// opaque keys and values.
func NewDict(v Value) (Dict, error) {
	var pairs []Value
	switch v := v.(type) {
	case Seq:
		if v.Type != SeqDict {
			return Dict{}, fmt.Errorf("pickle: dict: expect Seq(Dict); got Seq(%s)", v.Type)
		}
		for _, item := range v.Items {
			if _, _, ok := asPair(item); !ok {
				return Dict{}, fmt.Errorf("pickle: dict: item is not a key/value pair: %s", str(item))
			}
		}
		pairs = v.Items

	case Global:
		for _, arg := range v.Args {
			if batch, ok := asBatch(arg); ok {
				pairs = append(pairs, batch...)
				continue
			}
			if _, _, ok := asPair(arg); ok {
				pairs = append(pairs, arg)
			}
		}

	default:
		return Dict{}, fmt.Errorf("pickle: dict: expect Seq(Dict) or Global; got %s", kindOf(v))
	}

	d := Dict{m: gomap.NewHint[Value, int](len(pairs), equal, hash)}
	for _, p := range pairs {
		k, val, _ := asPair(p)
		if err := hashable(k); err != nil {
			return Dict{}, fmt.Errorf("pickle: dict: %w", err)
		}
		if i, ok := d.m.Get(k); ok {
			d.entries[i].Value = val
			continue
		}
		d.m.Set(k, len(d.entries))
		d.entries = append(d.entries, DictEntry{Key: k, Value: val})
	}
	return d, nil
}

// asPair returns key and value of a 2-tuple.
func asPair(v Value) (k, val Value, ok bool) {
	t, ok := v.(Seq)
	if !ok || t.Type != SeqTuple || len(t.Items) != 2 {
		return nil, nil, false
	}
	return t.Items[0], t.Items[1], true
}

// asBatch returns items of a non-empty tuple of 2-tuples.
func asBatch(v Value) ([]Value, bool) {
	t, ok := v.(Seq)
	if !ok || t.Type != SeqTuple || len(t.Items) == 0 {
		return nil, false
	}
	for _, item := range t.Items {
		if _, _, ok := asPair(item); !ok {
			return nil, false
		}
	}
	return t.Items, true
}

// Get returns value associated with equal key.
//
// nil is returned if no matching key is present in the dictionary, or if key
// is not hashable.
func (d Dict) Get(key Value) Value {
	value, _ := d.Get_(key)
	return value
}

// Get_ is comma-ok version of Get.
func (d Dict) Get_(key Value) (value Value, ok bool) {
	if d.m == nil || hashable(key) != nil {
		return nil, false
	}
	i, ok := d.m.Get(key)
	if !ok {
		return nil, false
	}
	return d.entries[i].Value, true
}

// Len returns the number of items in the dictionary.
func (d Dict) Len() int {
	return len(d.entries)
}

// Iter returns iterator over all elements in the dictionary in insertion order.
func (d Dict) Iter() /* iter.Seq2 */ func(yield func(Value, Value) bool) {
	return func(yield func(Value, Value) bool) {
		for _, e := range d.entries {
			if !yield(e.Key, e.Value) {
				break
			}
		}
	}
}

// Keys returns the keys of the dictionary in insertion order.
func (d Dict) Keys() []Value {
	keys := make([]Value, len(d.entries))
	for i, e := range d.entries {
		keys[i] = e.Key
	}
	return keys
}

// Entries returns the entries of the dictionary in insertion order.
func (d Dict) Entries() []DictEntry {
	return append([]DictEntry(nil), d.entries...)
}

// String returns human-readable representation of the dictionary.
func (d Dict) String() string {
	s := "{"
	for i, e := range d.entries {
		if i > 0 {
			s += ", "
		}
		s += str(e.Key) + ": " + str(e.Value)
	}
	s += "}"
	return s
}

// ---- equal ----

// hashable returns ErrUnhashable if x cannot be a dict key in Python.
//
// Lists, dicts, sets and any value containing them are unhashable.
func hashable(x Value) error {
	switch x := x.(type) {
	case nil:
		return fmt.Errorf("%w: nil", ErrUnhashable)
	case Seq:
		switch x.Type {
		case SeqList, SeqDict, SeqSet:
			return fmt.Errorf("%w: %s", ErrUnhashable, x.Type)
		}
		return hashableAll(x.Items)
	case App:
		return hashableCall(x.Callee, x.Args)
	case Object:
		return hashableCall(x.Class, x.Args)
	case Global:
		return hashableCall(x.Callee, x.Args)
	case Build:
		if err := hashable(x.Target); err != nil {
			return err
		}
		return hashable(x.State)
	case PersID:
		return hashable(x.ID)
	}
	return nil
}

func hashableCall(callee Value, args []Value) error {
	if err := hashable(callee); err != nil {
		return err
	}
	return hashableAll(args)
}

func hashableAll(vv []Value) error {
	for _, v := range vv {
		if err := hashable(v); err != nil {
			return err
		}
	}
	return nil
}

// equal implements equality matching what Python would return for a == b.
//
// Equality properties:
//
// 1) equality is extension of Equal
//
//	Equal(a,b) ⇒ equal(a,b)    (for a, b not holding NaN)
//
// 2) equality is symmetrical:
//
//	equal(a,b) = equal(b,a)
//
// 3) numbers compare by value across Bool, Int, BigInt and Float.
func equal(a, b Value) bool {
	if an, ok := number(a); ok {
		bn, ok := number(b)
		return ok && an.equal(bn)
	}

	switch a := a.(type) {
	case String:
		b, ok := b.(String)
		return ok && a == b
	case Bytes:
		b, ok := b.(Bytes)
		return ok && string(a) == string(b)
	case None:
		_, ok := b.(None)
		return ok
	case Ref:
		b, ok := b.(Ref)
		return ok && a == b
	case Raw:
		b, ok := b.(Raw)
		return ok && a.Insn.sameArg(b.Insn)
	case RawNum:
		b, ok := b.(RawNum)
		return ok && a.Insn.sameArg(b.Insn)

	case Seq:
		b, ok := b.(Seq)
		if !ok || a.Type != b.Type {
			return false
		}
		if a.Type == SeqFrozenSet {
			return eq_Set_Set(a.Items, b.Items)
		}
		return eq_Slice_Slice(a.Items, b.Items)

	case App:
		b, ok := b.(App)
		return ok && equal(a.Callee, b.Callee) && eq_Slice_Slice(a.Args, b.Args)
	case Object:
		b, ok := b.(Object)
		return ok && equal(a.Class, b.Class) && eq_Slice_Slice(a.Args, b.Args)
	case Global:
		b, ok := b.(Global)
		return ok && equal(a.Callee, b.Callee) && eq_Slice_Slice(a.Args, b.Args)
	case Build:
		b, ok := b.(Build)
		return ok && equal(a.Target, b.Target) && equal(a.State, b.State)
	case PersID:
		b, ok := b.(PersID)
		return ok && equal(a.ID, b.ID)
	}
	return false
}

func eq_Slice_Slice(a, b []Value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

// eq_Set_Set compares a and b as sets.
func eq_Set_Set(a, b []Value) bool {
	return subset(a, b) && subset(b, a)
}

func subset(a, b []Value) bool {
loop:
	for _, x := range a {
		for _, y := range b {
			if equal(x, y) {
				continue loop
			}
		}
		return false
	}
	return true
}

// num is a Python number: Bool, Int, BigInt or Float.
type num struct {
	kind Kind // KindInt, KindBigInt or KindFloat
	i    int64
	b    *big.Int
	f    float64
}

// number returns v as num, normalizing Bool to Int and BigInt in int64 range to Int.
func number(v Value) (num, bool) {
	switch v := v.(type) {
	case Bool:
		return num{kind: KindInt, i: bint(bool(v))}, true
	case Int:
		return num{kind: KindInt, i: int64(v)}, true
	case BigInt:
		if v.V.IsInt64() {
			return num{kind: KindInt, i: v.V.Int64()}, true
		}
		return num{kind: KindBigInt, b: v.V}, true
	case Float:
		return num{kind: KindFloat, f: float64(v)}, true
	}
	return num{}, false
}

// equality matrix. nontrivial elements

func (a num) equal(b num) bool {
	// since equality is symmetric, we can implement only half of comparison matrix
	if a.kind > b.kind {
		a, b = b, a
	}
	switch a.kind {
	case KindInt:
		switch b.kind {
		case KindInt:
			return a.i == b.i
		case KindBigInt:
			return false // b is outside of int64 range
		case KindFloat:
			return float64(a.i) == b.f
		}
	case KindBigInt:
		switch b.kind {
		case KindBigInt:
			return a.b.Cmp(b.b) == 0
		case KindFloat:
			return eq_Float_BigInt(b.f, a.b)
		}
	case KindFloat:
		return a.f == b.f
	}
	return false
}

func eq_Float_BigInt(a float64, b *big.Int) bool {
	bf, accuracy := new(big.Float).SetInt(b).Float64()
	if accuracy == big.Exact {
		return a == bf
	}
	return false
}

// ---- hash ----

// hash returns hash of x consistent with equality implemented by equal.
//
//	equal(a,b)  ⇒  hash(a) = hash(b)
//
// Keys are checked with hashable before they reach hash.
func hash(seed maphash.Seed, x Value) uint64 {
	// strings/bytes use standard hash of string
	switch v := x.(type) {
	case String:
		return maphash.String(seed, string(v))
	case Bytes:
		return maphash.String(seed, string(v))
	}

	// for everything else we implement custom hashing ourselves to match equal
	var h maphash.Hash
	h.SetSeed(seed)

	hash_Uint := func(u uint64) {
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], u)
		h.Write(b[:])
	}

	hash_Int := func(i int64) {
		hash_Uint(uint64(i))
	}

	hash_Float := func(f float64) {
		// if float is in int range and is integer number - hash it as integer
		i := int64(f)
		f_ := float64(i)
		if f_ == f {
			hash_Int(i)

			// else use raw float64 bytes representation for hashing
		} else {
			hash_Uint(math.Float64bits(f))
		}
	}

	hash_Slice := func(tag string, vv []Value) {
		h.WriteString(tag)
		for _, item := range vv {
			hash_Uint(hash(seed, item))
		}
	}

	if n, ok := number(x); ok {
		switch n.kind {
		case KindInt:
			hash_Int(n.i)
		case KindFloat:
			hash_Float(n.f)
		case KindBigInt:
			f, accuracy := new(big.Float).SetInt(n.b).Float64()
			if accuracy == big.Exact {
				hash_Float(f)
			} else {
				h.WriteString("bigInt")
				h.Write(n.b.Bytes())
			}
		}
		return h.Sum64()
	}

	switch v := x.(type) {
	case None:
		h.WriteString("None")
	case Ref:
		h.WriteString("Ref")
		hash_Uint(uint64(v))
	case Raw:
		hash_Insn(&h, v.Insn)
	case RawNum:
		hash_Insn(&h, v.Insn)

	case Seq:
		if v.Type == SeqFrozenSet {
			// order-independent
			var sum uint64
			for _, item := range v.Items {
				sum += hash(seed, item)
			}
			h.WriteString("frozenset")
			hash_Uint(sum)
			break
		}
		hash_Slice(v.Type.String(), v.Items)

	case App:
		hash_Slice("App", append([]Value{v.Callee}, v.Args...))
	case Object:
		hash_Slice("Object", append([]Value{v.Class}, v.Args...))
	case Global:
		hash_Slice("Global", append([]Value{v.Callee}, v.Args...))
	case Build:
		hash_Slice("Build", []Value{v.Target, v.State})
	case PersID:
		hash_Slice("PersId", []Value{v.ID})
	}
	return h.Sum64()
}

func hash_Insn(h *maphash.Hash, in Instruction) {
	var b [8]byte
	h.WriteByte(byte(in.Op))
	binary.BigEndian.PutUint64(b[:], uint64(in.Int))
	h.Write(b[:])
	h.WriteString(in.Text)
	h.WriteString(in.Text2)
	h.Write(in.Data)
}

// ---- misc ----

// bint returns int corresponding to bool.
//
// true  -> 1
// false -> 0
func bint(x bool) int64 {
	if x {
		return 1
	}
	return 0
}
