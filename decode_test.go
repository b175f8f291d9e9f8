package ogpeek

import (
	"errors"
	"io"
	"strings"
	"testing"
)

// opTests holds a minimal encoding of every known opcode and the instruction
// it must decode to. Pos is always 0 and Op is taken from the first byte.
var opTests = []struct {
	data string
	want Instruction
}{
	// protocol 0
	{"(", Instruction{}},
	{".", Instruction{}},
	{"0", Instruction{}},
	{"2", Instruction{}},
	{"F1.5\n", Instruction{Text: "1.5"}},
	{"I-12\n", Instruction{Text: "-12"}},
	{"L123L\n", Instruction{Text: "123L"}},
	{"N", Instruction{}},
	{"P42\n", Instruction{Text: "42"}},
	{"R", Instruction{}},
	{"S'abc'\n", Instruction{Text: "'abc'"}},
	{"V\xe9\\u1234\n", Instruction{Text: "\xe9\\u1234"}},
	{"a", Instruction{}},
	{"b", Instruction{}},
	{"cbuiltins\nint\n", Instruction{Text: "builtins", Text2: "int"}},
	{"d", Instruction{}},
	{"g7\n", Instruction{Text: "7"}},
	{"imod\nCls\n", Instruction{Text: "mod", Text2: "Cls"}},
	{"l", Instruction{}},
	{"p3\n", Instruction{Text: "3"}},
	{"s", Instruction{}},
	{"t", Instruction{}},

	// protocol 1
	{"1", Instruction{}},
	{"J\xfe\xff\xff\xff", Instruction{Int: -2}},
	{"K\xff", Instruction{Int: 255}},
	{"M\x34\x12", Instruction{Int: 0x1234}},
	{"Q", Instruction{}},
	{"T\x03\x00\x00\x00abc", Instruction{Data: []byte("abc")}},
	{"U\x03abc", Instruction{Data: []byte("abc")}},
	{"X\x02\x00\x00\x00hi", Instruction{Text: "hi"}},
	{"e", Instruction{}},
	{"h\x07", Instruction{Int: 7}},
	{"j\x01\x02\x03\x04", Instruction{Int: 0x04030201}},
	{"]", Instruction{}},
	{")", Instruction{}},
	{"}", Instruction{}},
	{"o", Instruction{}},
	{"q\x03", Instruction{Int: 3}},
	{"r\xff\xff\xff\xff", Instruction{Int: 0xffffffff}},
	{"u", Instruction{}},
	{"G?\xf8\x00\x00\x00\x00\x00\x00", Instruction{Float: 1.5}},

	// protocol 2
	{"\x80\x05", Instruction{Int: 5}},
	{"\x81", Instruction{}},
	{"\x82\x09", Instruction{Int: 9}},
	{"\x83\x34\x12", Instruction{Int: 0x1234}},
	{"\x84\xff\xff\xff\xff", Instruction{Int: -1}},
	{"\x85", Instruction{}},
	{"\x86", Instruction{}},
	{"\x87", Instruction{}},
	{"\x88", Instruction{}},
	{"\x89", Instruction{}},
	{"\x8a\x02\xff\x00", Instruction{Data: []byte("\xff\x00")}},
	{"\x8b\x01\x00\x00\x00\x80", Instruction{Data: []byte("\x80")}},

	// protocol 3
	{"B\x02\x00\x00\x00\x00\x01", Instruction{Data: []byte("\x00\x01")}},
	{"C\x01z", Instruction{Data: []byte("z")}},

	// protocol 4
	{"\x8c\x06мир", Instruction{Text: "мир"}},
	{"\x8d\x02\x00\x00\x00\x00\x00\x00\x00ok", Instruction{Text: "ok"}},
	{"\x8e\x01\x00\x00\x00\x00\x00\x00\x00\x00", Instruction{Data: []byte("\x00")}},
	{"\x8f", Instruction{}},
	{"\x90", Instruction{}},
	{"\x91", Instruction{}},
	{"\x92", Instruction{}},
	{"\x93", Instruction{}},
	{"\x94", Instruction{}},
	{"\x95\x10\x00\x00\x00\x00\x00\x00\x00", Instruction{Int: 16}},

	// protocol 5
	{"\x96\x03\x00\x00\x00\x00\x00\x00\x00abc", Instruction{Data: []byte("abc")}},
	{"\x97", Instruction{}},
	{"\x98", Instruction{}},
}

func TestDecodeOne(t *testing.T) {
	seen := map[Opcode]bool{}
	for _, tt := range opTests {
		want := tt.want
		want.Op = Opcode(tt.data[0])
		seen[want.Op] = true

		in, next, err := DecodeOne([]byte(tt.data), 0)
		if err != nil {
			t.Errorf("%q -> error: %s", tt.data, err)
			continue
		}
		if next != len(tt.data) {
			t.Errorf("%q -> next = %d  ; want %d", tt.data, next, len(tt.data))
		}
		if in.Pos != 0 || !in.sameArg(want) {
			t.Errorf("%q -> unexpected:\nhave: %#v\nwant: %#v", tt.data, in, want)
		}
	}

	ops := Opcodes()
	if len(ops) != 68 {
		t.Errorf("Opcodes: have %d opcodes  ; want 68", len(ops))
	}
	for _, op := range ops {
		if !seen[op] {
			t.Errorf("opcode %s is not covered by opTests", op)
		}
	}
}

// verify that an instruction cut at any point of its argument fails to
// decode with io.ErrUnexpectedEOF positioned at the opcode.
func TestDecodeTruncated(t *testing.T) {
	for _, tt := range opTests {
		for cut := 1; cut < len(tt.data); cut++ {
			data := []byte("K\x01" + tt.data[:cut])
			_, _, err := DecodeOne(data, 2)

			var derr *DecodeError
			if !errors.As(err, &derr) {
				t.Errorf("%q: no DecodeError  ; got %#v", data, err)
				continue
			}
			if derr.Pos != 2 || derr.Op != Opcode(tt.data[0]) || !errors.Is(err, io.ErrUnexpectedEOF) {
				t.Errorf("%q: unexpected error %#v", data, derr)
			}
			// the failing field starts after the opcode and runs past the end
			if derr.Off <= derr.Pos || derr.Off > len(data) {
				t.Errorf("%q: offset %d outside (%d, %d]", data, derr.Off, derr.Pos, len(data))
			}

			_, err = DecodeAll(data)
			if !errors.As(err, &derr) || derr.Pos != 2 {
				t.Errorf("%q: DecodeAll: unexpected error %v", data, err)
			}
		}
	}
}

// verify that decode of erroneous input produces error
func TestDecodeError(t *testing.T) {
	testv := []struct {
		data string
		err  error
	}{
		// invalid text
		{"I\xff\n.", ErrInvalidUTF8},
		{"cbuil\xfftins\nint\n.", ErrInvalidUTF8},
		{"X\x01\x00\x00\x00\xff.", ErrInvalidUTF8},
		{"\x8c\x02\xd0.", ErrInvalidUTF8},
		{"\x8d\x01\x00\x00\x00\x00\x00\x00\x00\x80.", ErrInvalidUTF8},

		// BINSTRING, BINUNICODE, BINBYTES8 with big len and no data
		// (might cause out-of-memory DOS if buffer is preallocated blindly)
		{"T\xff\xff\xff\xff.", io.ErrUnexpectedEOF},
		{"X\xff\xff\xff\xff.", io.ErrUnexpectedEOF},
		{"\x8e\xff\xff\xff\xff\xff\xff\xff\x7f.", io.ErrUnexpectedEOF},
		{"\x8e\xff\xff\xff\xff\xff\xff\xff\xff.", errTooLarge},
		{"\x95\xff\xff\xff\xff\xff\xff\xff\xff.", errTooLarge},

		// \r\n should not be read as combined EOL - only \n is
		{"L123L\r", io.ErrUnexpectedEOF},
	}

	for _, tt := range testv {
		insns, err := DecodeAll([]byte(tt.data))
		if !errors.Is(err, tt.err) || insns != nil {
			t.Errorf("%q: unexpected decode result %v, %v  ; want error %v", tt.data, insns, err, tt.err)
		}
	}
}

func TestDecodeErrorOffset(t *testing.T) {
	testv := []struct {
		data string
		off  int
	}{
		{"K\x01X\x05\x00", 3},           // length prefix cut
		{"K\x01X\x05\x00\x00\x00ab", 7}, // payload cut
		{"K\x01G\x00\x00", 3},           // BINFLOAT
		{"K\x01I12", 3},                 // no newline
		{"I\xff\n.", 1},                 // invalid text
		{"cos\nsys\xff\n.", 4},          // invalid GLOBAL name
		{"\x8c\x02\xd0.", 2},            // invalid SHORT_BINUNICODE payload
		{"\x8d\x01\x00\x00\x00\x00\x00\x00\x00\x80.", 9},
	}
	for _, tt := range testv {
		_, err := DecodeAll([]byte(tt.data))
		var derr *DecodeError
		if !errors.As(err, &derr) {
			t.Errorf("%q: no DecodeError  ; got %v", tt.data, err)
			continue
		}
		if derr.Off != tt.off {
			t.Errorf("%q: offset %d  ; want %d", tt.data, derr.Off, tt.off)
		}
	}
}

func TestDecodeUnknownOpcode(t *testing.T) {
	for _, key := range []byte{0, 'A', 'z', 0x99, 0xff} {
		data := []byte{'K', 1, key, '.'}
		_, err := DecodeAll(data)
		want := OpcodeError{Key: key, Pos: 2}
		if err != want {
			t.Errorf("%q: error %#v  ; want %#v", data, err, want)
		}
		if Opcode(key).Known() {
			t.Errorf("%q: opcode %#x is known", data, key)
		}
	}
}

func TestDecodeAll(t *testing.T) {
	insns, err := DecodeAll(nil)
	if err != nil || len(insns) != 0 {
		t.Errorf("empty input -> %v, %v", insns, err)
	}

	insns, err = DecodeAll([]byte("\x80\x02K\x01K\x02\x86."))
	if err != nil {
		t.Fatal(err)
	}
	wantOps := []Opcode{OpProto, OpBinint1, OpBinint1, OpTuple2, OpStop}
	wantPos := []int{0, 2, 4, 6, 7}
	if len(insns) != len(wantOps) {
		t.Fatalf("decoded %d instructions  ; want %d", len(insns), len(wantOps))
	}
	for i, in := range insns {
		if in.Op != wantOps[i] || in.Pos != wantPos[i] {
			t.Errorf("#%d: %s at %d  ; want %s at %d", i, in.Op, in.Pos, wantOps[i], wantPos[i])
		}
	}
}

func TestDecodeUntilStop(t *testing.T) {
	data := []byte("K\x01.K\x02.")
	insns, n, err := DecodeUntilStop(data)
	if err != nil || n != 3 || len(insns) != 2 {
		t.Errorf("first pickle -> %v, %d, %v", insns, n, err)
	}
	insns, n, err = DecodeUntilStop(data[3:])
	if err != nil || n != 3 || len(insns) != 2 || insns[0].Int != 2 {
		t.Errorf("second pickle -> %v, %d, %v", insns, n, err)
	}

	if _, _, err = DecodeUntilStop(nil); err != io.EOF {
		t.Errorf("empty input -> %v  ; want EOF", err)
	}
	if _, _, err = DecodeUntilStop([]byte("K\x01")); err != io.ErrUnexpectedEOF {
		t.Errorf("no STOP -> %v  ; want ErrUnexpectedEOF", err)
	}
}

func TestInstructionString(t *testing.T) {
	testv := []struct {
		data string
		want string
	}{
		{"(", "MARK"},
		{"K\x05", "BININT1 5"},
		{"J\xfe\xff\xff\xff", "BININT -2"},
		{"G?\xf8\x00\x00\x00\x00\x00\x00", "BINFLOAT 1.5"},
		{"cbuiltins\nint\n", `GLOBAL "builtins" "int"`},
		{"I01\n", `INT "01"`},
		{"S'a\xff'\n", `STRING "'a\xff'"`},
		{"C\x01z", `SHORT_BINBYTES "z"`},
		{"\x8c\x02hi", `SHORT_BINUNICODE "hi"`},
	}
	for _, tt := range testv {
		in, _, err := DecodeOne([]byte(tt.data), 0)
		if err != nil {
			t.Errorf("%q -> error: %s", tt.data, err)
			continue
		}
		if s := in.String(); s != tt.want {
			t.Errorf("%q -> %s  ; want %s", tt.data, s, tt.want)
		}
	}
}

func TestOpcode(t *testing.T) {
	if s := Opcode(0xff).String(); s != "Opcode(0xff)" {
		t.Errorf("unknown opcode -> %q", s)
	}
	testv := []struct {
		op    Opcode
		name  string
		proto int
	}{
		{OpMark, "MARK", 0},
		{OpBinint1, "BININT1", 1},
		{OpProto, "PROTO", 2},
		{OpShortBinbytes, "SHORT_BINBYTES", 3},
		{OpFrame, "FRAME", 4},
		{OpReadOnlyBuffer, "READONLY_BUFFER", 5},
	}
	for _, tt := range testv {
		if tt.op.String() != tt.name || tt.op.Protocol() != tt.proto || !tt.op.Known() {
			t.Errorf("%#x: %s proto %d  ; want %s proto %d", byte(tt.op), tt.op, tt.op.Protocol(), tt.name, tt.proto)
		}
	}

	for _, op := range Opcodes() {
		if strings.TrimSpace(op.String()) == "" || op.Protocol() > MaxProtocol {
			t.Errorf("%#x: bad table entry", byte(op))
		}
	}
}
