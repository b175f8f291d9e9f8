package ogpeek

import (
	"bytes"
	"fmt"
	"math/big"
)

// Kind identifies the variant of a Value.
type Kind uint8

const (
	KindRaw Kind = iota + 1
	KindRef
	KindApp
	KindObject
	KindBuild
	KindPersID
	KindGlobal
	KindSeq
	KindString
	KindBytes
	KindInt
	KindBigInt
	KindFloat
	KindBool
	KindNone
	KindRawNum
)

var kindNames = [...]string{
	KindRaw:    "Raw",
	KindRef:    "Ref",
	KindApp:    "App",
	KindObject: "Object",
	KindBuild:  "Build",
	KindPersID: "PersId",
	KindGlobal: "Global",
	KindSeq:    "Seq",
	KindString: "String",
	KindBytes:  "Bytes",
	KindInt:    "Int",
	KindBigInt: "BigInt",
	KindFloat:  "Float",
	KindBool:   "Bool",
	KindNone:   "None",
	KindRawNum: "RawNum",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) && kindNames[k] != "" {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// SeqKind says which Python container a Seq represents.
type SeqKind uint8

const (
	SeqList SeqKind = iota
	SeqDict
	SeqTuple
	SeqSet
	SeqFrozenSet
)

func (k SeqKind) String() string {
	switch k {
	case SeqList:
		return "List"
	case SeqDict:
		return "Dict"
	case SeqTuple:
		return "Tuple"
	case SeqSet:
		return "Set"
	case SeqFrozenSet:
		return "FrozenSet"
	}
	return fmt.Sprintf("SeqKind(%d)", uint8(k))
}

// Value is a node of the tree produced by Evaluate.
//
// The set of implementations is closed: Raw, Ref, App, Object, Build, PersID,
// Global, Seq, String, Bytes, Int, BigInt, Float, Bool, None and RawNum.
type Value interface {
	Kind() Kind
	String() string
	value()
}

// Raw is an instruction the evaluator did not interpret.
// FixValue turns most of them into canonical values.
type Raw struct{ Insn Instruction }

// Ref refers to an entry of the memo table.
//
// After ResolveAll it only remains for unknown memo ids that were never
// resolved or for reference cycles cut by the depth bound.
type Ref uint32

// App is a generic "callee applied to args" node.
type App struct {
	Callee Value
	Args   []Value
}

// Object is an instance construction: Class called with Args.
type Object struct {
	Class Value
	Args  []Value
}

// Build applies State to Target (BUILD opcode).
type Build struct {
	Target Value
	State  Value
}

// PersID is a persistent reference to data stored outside of the pickle.
//
// The structure of ID is application-defined.
type PersID struct{ ID Value }

// Global is a named callable plus the arguments accumulated for it.
//
// GLOBAL and STACK_GLOBAL produce Global{Callee: Seq(Tuple, [module, name])}.
// REDUCE produces Global{Callee: <callable>, Args: [<argtuple>]}. Items
// added by APPEND, SETITEM and friends to a Global are appended to Args.
type Global struct {
	Callee Value
	Args   []Value
}

// Seq is a Python container.
//
// Items of a Dict are always 2-element Tuple seqs holding key and value.
type Seq struct {
	Type  SeqKind
	Items []Value
}

// String is a Python text string.
type String string

// Bytes is Python bytes or bytearray.
// It aliases the decoded buffer.
type Bytes []byte

// Int is an integer that fits in int64.
type Int int64

// BigInt is an integer that does not fit in int64.
type BigInt struct{ V *big.Int }

// Float is a Python float.
type Float float64

// Bool is a Python bool.
type Bool bool

// None is a representation of Python's None.
type None struct{}

// RawNum is a number whose text form FixValue does not parse.
// See ParseRawNum.
type RawNum struct{ Insn Instruction }

func (Raw) Kind() Kind    { return KindRaw }
func (Ref) Kind() Kind    { return KindRef }
func (App) Kind() Kind    { return KindApp }
func (Object) Kind() Kind { return KindObject }
func (Build) Kind() Kind  { return KindBuild }
func (PersID) Kind() Kind { return KindPersID }
func (Global) Kind() Kind { return KindGlobal }
func (Seq) Kind() Kind    { return KindSeq }
func (String) Kind() Kind { return KindString }
func (Bytes) Kind() Kind  { return KindBytes }
func (Int) Kind() Kind    { return KindInt }
func (BigInt) Kind() Kind { return KindBigInt }
func (Float) Kind() Kind  { return KindFloat }
func (Bool) Kind() Kind   { return KindBool }
func (None) Kind() Kind   { return KindNone }
func (RawNum) Kind() Kind { return KindRawNum }

func (Raw) value()    {}
func (Ref) value()    {}
func (App) value()    {}
func (Object) value() {}
func (Build) value()  {}
func (PersID) value() {}
func (Global) value() {}
func (Seq) value()    {}
func (String) value() {}
func (Bytes) value()  {}
func (Int) value()    {}
func (BigInt) value() {}
func (Float) value()  {}
func (Bool) value()   {}
func (None) value()   {}
func (RawNum) value() {}

// NewSeq returns Seq of kind k holding items.
func NewSeq(k SeqKind, items ...Value) Seq {
	if items == nil {
		items = []Value{}
	}
	return Seq{Type: k, Items: items}
}

// NewTuple is shorthand for NewSeq(SeqTuple, items...).
func NewTuple(items ...Value) Seq {
	return NewSeq(SeqTuple, items...)
}

// NewBigInt returns x as Int if it fits in int64, or as BigInt otherwise.
func NewBigInt(x *big.Int) Value {
	if x.IsInt64() {
		return Int(x.Int64())
	}
	return BigInt{V: x}
}

// isMark tells whether v is the MARK pushed by the evaluator.
func isMark(v Value) bool {
	r, ok := v.(Raw)
	return ok && r.Insn.Op == OpMark
}

// Equal reports whether a and b are structurally equal.
//
// Unlike Dict keys, values of different kinds are never equal: Int(1) is not
// equal to Float(1) or Bool(true). Raw and RawNum compare their instructions
// but not the instruction positions.
func Equal(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Kind() != b.Kind() {
		return false
	}
	switch a := a.(type) {
	case Raw:
		return a.Insn.sameArg(b.(Raw).Insn)
	case RawNum:
		return a.Insn.sameArg(b.(RawNum).Insn)
	case App:
		b := b.(App)
		return Equal(a.Callee, b.Callee) && equalSlice(a.Args, b.Args)
	case Object:
		b := b.(Object)
		return Equal(a.Class, b.Class) && equalSlice(a.Args, b.Args)
	case Build:
		b := b.(Build)
		return Equal(a.Target, b.Target) && Equal(a.State, b.State)
	case PersID:
		return Equal(a.ID, b.(PersID).ID)
	case Global:
		b := b.(Global)
		return Equal(a.Callee, b.Callee) && equalSlice(a.Args, b.Args)
	case Seq:
		b := b.(Seq)
		return a.Type == b.Type && equalSlice(a.Items, b.Items)
	case Bytes:
		return bytes.Equal(a, b.(Bytes))
	case BigInt:
		return a.V.Cmp(b.(BigInt).V) == 0
	case Float:
		b := b.(Float)
		return a == b || (a != a && b != b) // NaN == NaN structurally
	}
	return a == b
}

func equalSlice(a, b []Value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of v.
//
// Payloads of String, Bytes, Raw and RawNum are shared with v since they are
// never modified.
func Clone(v Value) Value {
	switch v := v.(type) {
	case App:
		return App{Callee: Clone(v.Callee), Args: cloneSlice(v.Args)}
	case Object:
		return Object{Class: Clone(v.Class), Args: cloneSlice(v.Args)}
	case Build:
		return Build{Target: Clone(v.Target), State: Clone(v.State)}
	case PersID:
		return PersID{ID: Clone(v.ID)}
	case Global:
		return Global{Callee: Clone(v.Callee), Args: cloneSlice(v.Args)}
	case Seq:
		return Seq{Type: v.Type, Items: cloneSlice(v.Items)}
	case BigInt:
		return BigInt{V: new(big.Int).Set(v.V)}
	}
	return v
}

func cloneSlice(vv []Value) []Value {
	out := make([]Value, len(vv))
	for i, v := range vv {
		out[i] = Clone(v)
	}
	return out
}
