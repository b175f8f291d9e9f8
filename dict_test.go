package ogpeek

import (
	"errors"
	"hash/maphash"
	"math"
	"strings"
	"testing"
)

// TestEqual verifies equal and hash.
func TestEqual(t *testing.T) {
	// tEqualSet represents tested set of values:
	// ∀ a ∈ tEqualSet:
	//   ∀ b ∈ tEqualSet ⇒ equal(a,b) = y
	//   ∀ c ∉ tEqualSet ⇒ equal(a,c) = n
	type tAllEqual []Value

	// E is shortcut to create tEqualSet
	E := func(v ...Value) tAllEqual { return tAllEqual(v) }

	B := func(s string) Value { return BigInt{bigInt(s)} }
	FS := func(items ...Value) Seq { return NewSeq(SeqFrozenSet, items...) }

	// testv is vector of all test-cases
	testv := []tAllEqual{
		// numbers
		E(Int(0), Bool(false), Float(0), B("0")),
		E(Int(1), Bool(true), Float(1), B("1")),
		E(Int(-1), Float(-1), B("-1")),
		E(Int(0xffffffff), Float(0xffffffff), B("4294967295")),
		E(Int(math.MinInt64), Float(math.MinInt64), B("-9223372036854775808")),
		E(B("18446744073709551615")),
		E(B("18446744073709551616"), Float(18446744073709551616)),
		E(B("1"+strings.Repeat("0", 22)), Float(1e22)),
		E(Float(1.25)),

		// strings/bytes
		E(String("")), E(Bytes("")),
		E(String("a")), E(Bytes("a")),
		E(String("мир")),

		// none / empty tuple|list
		E(None{}),
		E(T()), E(L()), E(D()),

		// sequences
		E(T(Int(1), String("a")), T(Float(1), String("a")), T(Bool(true), String("a"))),
		E(L(Int(1), Int(2)), L(Float(1), B("2"))),
		E(FS(Int(1), Int(2)), FS(Int(2), Float(1))),
		E(D(T(Int(1), Int(2))), D(T(Float(1), Int(2)))),

		// other nodes
		E(global(String("m"), String("n"))),
		E(Ref(1)),
		E(Raw{Insn: Instruction{Op: OpMark, Pos: 0}}, Raw{Insn: Instruction{Op: OpMark, Pos: 5}}),
		E(Raw{Insn: Instruction{Op: OpExt1, Int: 1}}),
		E(rawNum(OpInt, "1")),
		E(PersID{ID: String("x")}),
		E(Object{Class: String("C"), Args: []Value{Int(1)}}, Object{Class: String("C"), Args: []Value{Float(1)}}),
		E(Build{Target: None{}, State: Int(0)}, Build{Target: None{}, State: Bool(false)}),
		E(App{Callee: String("f"), Args: []Value{}}),
	}
	// automatically test equality on Tuples/lists from ^^^ data
	testvAddSequences := func() {
		l := len(testv)
		for i := 0; i < l; i++ {
			Ex := testv[i]
			Ey := testv[(i+1)%l]

			x0 := Ex[0]
			x1 := Ex[1%len(Ex)]
			y0 := Ey[0]
			y1 := Ey[1%len(Ey)]

			testv = append(testv, E(T(x0, y0), T(x1, y1)), E(L(x0, y0), L(x1, y1)))
		}
	}
	testvAddSequences()
	// and sequences of sequences
	testvAddSequences()

	tseed := maphash.MakeSeed()

	// tequal is used to invoke equal.
	// it automatically checks Equal-extension, self-equal, symmetry and hash invariants:
	//
	//	Equal(a,b)  ⇒  equal(a,b)
	//	equal(a,a)  =  y
	//	equal(a,b)  =  equal(b,a)
	//	equal(a,b)  ⇒  hash(a) = hash(b)
	tequal := func(a, b Value) bool {
		if !equal(a, a) {
			t.Errorf("not self-equal  %s", a)
		}
		if !equal(b, b) {
			t.Errorf("not self-equal  %s", b)
		}

		eq := equal(a, b)
		qe := equal(b, a)
		if eq != qe {
			t.Errorf("equal not symmetric:  %s  %s;  a == b: %v  b == a: %v", a, b, eq, qe)
		}

		if eq && hash(tseed, a) != hash(tseed, b) {
			t.Errorf("hash different of equal  %s  %s", a, b)
		}

		if Equal(a, b) && !eq {
			t.Errorf("equal is not extension of Equal  %s  %s", a, b)
		}
		return eq
	}

	// EHas returns whether x ∈ E.
	EHas := func(E tAllEqual, x Value) bool {
		for _, a := range E {
			if Equal(a, x) {
				return true
			}
		}
		return false
	}

	// do the tests
	for i, E1 := range testv {
		// ∀ a,b ∈ tEqualSet ⇒ equal(a,b) = y
		for _, a := range E1 {
			for _, b := range E1 {
				if !tequal(a, b) {
					t.Errorf("not equal  %s  %s", a, b)
				}
			}
		}

		// ∀ a ∈ tEqualSet
		// ∀ c ∉ tEqualSet ⇒ equal(a,c) = n
		for j, E2 := range testv {
			if j == i {
				continue
			}
			for _, a := range E1 {
				for _, c := range E2 {
					if EHas(E1, c) {
						continue
					}
					if tequal(a, c) {
						t.Errorf("equal  %s  %s", a, c)
					}
				}
			}
		}
	}
}

func TestHashable(t *testing.T) {
	ok := []Value{
		Int(1), String("a"), None{}, T(), T(Int(1), T(String("x"))),
		NewSeq(SeqFrozenSet, Int(1)), global(String("m"), String("n")), Ref(3),
		Raw{Insn: Instruction{Op: OpMark}}, PersID{ID: T()},
	}
	for _, x := range ok {
		if err := hashable(x); err != nil {
			t.Errorf("%s: %s", x, err)
		}
	}

	bad := []Value{
		nil, L(), D(), NewSeq(SeqSet), T(Int(1), L()),
		Global{Callee: String("f"), Args: []Value{D()}},
		Build{Target: None{}, State: D()},
		Object{Class: L()},
		App{Callee: String("f"), Args: []Value{NewSeq(SeqSet)}},
		PersID{ID: L()},
	}
	for _, x := range bad {
		if err := hashable(x); !errors.Is(err, ErrUnhashable) {
			t.Errorf("%s: %v  ; want unhashable", str(x), err)
		}
	}
}

// TestDict verifies Dict.
func TestDict(t *testing.T) {
	d, err := NewDict(D(
		T(Int(1), String("x")),
		T(Float(2.5), String("y")),
		T(String("a"), None{}),
		T(T(Int(1), Int(2)), Int(3)),
		T(NewSeq(SeqFrozenSet, Int(1), Int(2)), Int(4)),
	))
	if err != nil {
		t.Fatal(err)
	}

	// assertGet asserts that d.Get(k) results in exactly vok.
	assertGet := func(k Value, vok Value) {
		t.Helper()
		v, ok := d.Get_(k)
		if !Equal(v, vok) || ok != (vok != nil) {
			t.Errorf("get %s: have: %s, %v  want: %s", str(k), str(v), ok, str(vok))
		}
		if v2 := d.Get(k); !Equal(v2, v) {
			t.Errorf("get %s: Get and Get_ differ", str(k))
		}
	}

	if d.Len() != 5 {
		t.Errorf("len: have %d  want 5", d.Len())
	}

	assertGet(Int(1), String("x"))
	assertGet(Float(1), String("x"))
	assertGet(Bool(true), String("x"))
	assertGet(BigInt{bigInt("1")}, String("x"))
	assertGet(Int(2), nil)
	assertGet(Float(2.5), String("y"))
	assertGet(String("a"), None{})
	assertGet(Bytes("a"), nil)
	assertGet(T(Float(1), Bool(false)), nil)
	assertGet(T(Float(1), Int(2)), Int(3))
	assertGet(NewSeq(SeqFrozenSet, Float(2), Bool(true)), Int(4))
	assertGet(L(Int(1), Int(2)), nil) // unhashable
	assertGet(nil, nil)

	// insertion order
	keys := d.Keys()
	wantKeys := []Value{Int(1), Float(2.5), String("a"), T(Int(1), Int(2)), NewSeq(SeqFrozenSet, Int(1), Int(2))}
	if !equalValues(keys, wantKeys) {
		t.Errorf("keys: have %s  want %s", inlineList(keys), inlineList(wantKeys))
	}
	var iterKeys []Value
	d.Iter()(func(k, v Value) bool {
		iterKeys = append(iterKeys, k)
		return len(iterKeys) < 2
	})
	if !equalValues(iterKeys, wantKeys[:2]) {
		t.Errorf("iter: have %s", inlineList(iterKeys))
	}

	entries := d.Entries()
	entries[0].Value = None{}
	if !Equal(d.Get(Int(1)), String("x")) {
		t.Errorf("Entries returned internal storage")
	}

	want := `{Int(1): String("x"), Float(2.5): String("y"), String("a"): None, ` +
		`Seq(Tuple, [Int(1), Int(2)]): Int(3), Seq(FrozenSet, [Int(1), Int(2)]): Int(4)}`
	if s := d.String(); s != want {
		t.Errorf("string:\nhave: %s\nwant: %s", s, want)
	}
}

func TestDictDuplicateKeys(t *testing.T) {
	d, err := NewDict(D(
		T(Int(1), String("a")),
		T(String("k"), String("b")),
		T(Bool(true), String("c")),
	))
	if err != nil {
		t.Fatal(err)
	}
	if d.Len() != 2 {
		t.Errorf("len: have %d  want 2", d.Len())
	}
	if keys := d.Keys(); !equalValues(keys, []Value{Int(1), String("k")}) {
		t.Errorf("keys: %s", inlineList(keys))
	}
	if v := d.Get(Int(1)); !Equal(v, String("c")) {
		t.Errorf("get 1: %s", str(v))
	}
}

func TestDictFromGlobal(t *testing.T) {
	// collections.OrderedDict() filled by SETITEMS and SETITEM
	od := Global{
		Callee: global(String("collections"), String("OrderedDict")),
		Args: []Value{
			T(),
			T(T(Int(1), Int(2)), T(Int(3), Int(4))),
			T(String("k"), String("v")),
			T(T(String("z"), Int(0))),
		},
	}
	d, err := NewDict(od)
	if err != nil {
		t.Fatal(err)
	}
	wantKeys := []Value{Int(1), Int(3), String("k"), String("z")}
	if keys := d.Keys(); !equalValues(keys, wantKeys) {
		t.Errorf("keys: have %s  want %s", inlineList(keys), inlineList(wantKeys))
	}
	if v := d.Get(Int(3)); !Equal(v, Int(4)) {
		t.Errorf("get 3: %s", str(v))
	}

	// the same through evaluation
	vals, _, err := Unpickle([]byte("ccollections\nOrderedDict\n)R(K\x01K\x02K\x03K\x04uK\x05K\x06s."), true)
	if err != nil {
		t.Fatal(err)
	}
	d, err = NewDict(vals[0])
	if err != nil {
		t.Fatal(err)
	}
	if keys := d.Keys(); !equalValues(keys, []Value{Int(1), Int(3), Int(5)}) {
		t.Errorf("evaluated keys: %s", inlineList(keys))
	}
}

func TestDictError(t *testing.T) {
	testv := []struct {
		v      Value
		unhash bool
	}{
		{D(T(L(), Int(1))), true},
		{D(T(T(Int(1), D()), Int(1))), true},
		{D(Int(1)), false},
		{D(T(Int(1))), false},
		{L(), false},
		{Int(1), false},
		{nil, false},
	}
	for _, tt := range testv {
		_, err := NewDict(tt.v)
		if err == nil {
			t.Errorf("%s: no error", str(tt.v))
			continue
		}
		if errors.Is(err, ErrUnhashable) != tt.unhash {
			t.Errorf("%s: %s", str(tt.v), err)
		}
	}

	var zero Dict
	if zero.Len() != 0 || zero.Get(Int(1)) != nil || zero.String() != "{}" {
		t.Errorf("zero Dict is not empty")
	}
}

func BenchmarkDictGet(b *testing.B) {
	items := make([]Value, 0, 1000)
	for i := 0; i < 1000; i++ {
		items = append(items, T(Int(i), Int(i)))
	}
	d, err := NewDict(D(items...))
	if err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		d.Get(Int(i % 1000))
	}
}
