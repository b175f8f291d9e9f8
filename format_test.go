package ogpeek

import (
	"strings"
	"testing"
)

func TestValueString(t *testing.T) {
	testv := []struct {
		v    Value
		want string
	}{
		{Int(-1), "Int(-1)"},
		{BigInt{bigInt("18446744073709551616")}, "BigInt(18446744073709551616)"},
		{Float(1.5), "Float(1.5)"},
		{Float(1e100), "Float(1e+100)"},
		{Bool(true), "Bool(true)"},
		{None{}, "None"},
		{String("мир\n"), `String("мир\n")`},
		{Bytes("\x00a"), `Bytes("\x00a")`},
		{Ref(3), "Ref(3)"},
		{Raw{Insn: Instruction{Op: OpMark}}, "Raw(MARK)"},
		{Raw{Insn: Instruction{Op: OpGlobal, Text: "m", Text2: "n"}}, `Raw(GLOBAL "m" "n")`},
		{Raw{Insn: Instruction{Op: OpExt1, Int: 7}}, "Raw(EXT1 7)"},
		{raw(OpString, "'a\xff'"), `Raw(STRING "'a\xff'")`},
		{rawNum(OpInt, "42"), `RawNum(INT "42")`},
		{PersID{ID: String("x")}, `PersId(String("x"))`},
		{App{Callee: String("f"), Args: []Value{Int(1)}}, `App(String("f"), [Int(1)])`},
		{Object{Class: String("C"), Args: nil}, `Object(String("C"), [])`},
		{Build{Target: Int(1), State: None{}}, "Build(Int(1), None)"},
		{global(String("builtins"), String("int")), `Global(Seq(Tuple, [String("builtins"), String("int")]), [])`},
		{Global{Callee: String("f"), Args: []Value{nil}}, `Global(String("f"), [<nil>])`},
		{L(L(), Int(1)), "Seq(List, [Seq(List, []), Int(1)])"},
		{NewSeq(SeqFrozenSet), "Seq(FrozenSet, [])"},
		{D(T(String("a"), Int(1))), `Seq(Dict, [Seq(Tuple, [String("a"), Int(1)])])`},
	}
	for _, tt := range testv {
		if s := tt.v.String(); s != tt.want {
			t.Errorf("%#v -> %s  ; want %s", tt.v, s, tt.want)
		}
	}
}

func TestKindString(t *testing.T) {
	testv := []struct {
		have fmtStringer
		want string
	}{
		{KindPersID, "PersId"},
		{KindRawNum, "RawNum"},
		{Kind(0), "Kind(0)"},
		{Kind(99), "Kind(99)"},
		{SeqTuple, "Tuple"},
		{SeqKind(9), "SeqKind(9)"},
		{ErrKindMalformed, "malformed"},
		{ErrKind(0), "ErrKind(0)"},
	}
	for _, tt := range testv {
		if s := tt.have.String(); s != tt.want {
			t.Errorf("%#v -> %s  ; want %s", tt.have, s, tt.want)
		}
	}
}

type fmtStringer interface{ String() string }

func TestSprint(t *testing.T) {
	testv := []struct {
		v    Value
		want string
	}{
		{Int(1), "Int(1)"},
		{nil, "<nil>"},
		{global(String("builtins"), String("int")), `Global(Seq(Tuple, [String("builtins"), String("int")]), [])`},
		{PersID{ID: T(String("storage"), Int(1))}, `PersId(Seq(Tuple, [String("storage"), Int(1)]))`},

		{D(T(String("a"), Int(1))), `Seq(Dict, [
  Seq(Tuple, [String("a"), Int(1)]),
])`},

		{L(String(strings.Repeat("a", 70))), `Seq(List, [
  String("` + strings.Repeat("a", 70) + `"),
])`},

		{
			Build{
				Target: Object{Class: global(String("foo"), String("Bar")), Args: []Value{T()}},
				State:  D(T(String("x"), Int(1))),
			},
			`Build(
  Object(Global(Seq(Tuple, [String("foo"), String("Bar")]), []), [Seq(Tuple, [])]),
  Seq(Dict, [
    Seq(Tuple, [String("x"), Int(1)]),
  ]),
)`,
		},
	}
	for _, tt := range testv {
		if s := Sprint(tt.v); s != tt.want {
			t.Errorf("%s:\nhave:\n%s\nwant:\n%s", str(tt.v), s, tt.want)
		}
	}
}

func TestFprint(t *testing.T) {
	var b strings.Builder
	if err := Fprint(&b, Int(1), L(Int(2))); err != nil {
		t.Fatal(err)
	}
	if want := "Int(1)\nSeq(List, [Int(2)])\n"; b.String() != want {
		t.Errorf("have %q  ; want %q", b.String(), want)
	}
}
