package ogpeek

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"unicode/utf8"
)

// ErrInvalidUTF8 is reported when an opcode that mandates text carries bytes
// that are not valid UTF-8.
var ErrInvalidUTF8 = errors.New("pickle: invalid UTF-8 in text argument")

var errTooLarge = errors.New("pickle: length does not fit in memory")

// OpcodeError is the error that DecodeOne returns when it sees unknown pickle opcode.
type OpcodeError struct {
	Key byte
	Pos int
}

func (e OpcodeError) Error() string {
	return fmt.Sprintf("Unknown opcode %d (%c) at position %d: %q", e.Key, e.Key, e.Pos, e.Key)
}

// DecodeError is returned when the argument of a known opcode cannot be read.
//
// Pos is the offset of the opcode byte and Off the offset of the argument
// field that failed to read. Err is io.ErrUnexpectedEOF for truncated input
// or ErrInvalidUTF8 for text that does not decode.
type DecodeError struct {
	Pos int
	Off int
	Op  Opcode
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("pickle: %s at position %d: offset %d: %s", e.Op, e.Pos, e.Off, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Instruction is one decoded opcode together with its argument.
//
// Which argument field is set depends on Op:
//
//	Int    fixed-width integers (BININT*, BINGET, BINPUT, PROTO, EXT*, FRAME ...)
//	Float  BINFLOAT
//	Text   line arguments (INT, FLOAT, LONG, GET, PUT, PERSID, STRING, UNICODE),
//	       of which only STRING and UNICODE may hold bytes that are not UTF-8,
//	       the module of GLOBAL/INST, and UTF-8 payloads (BINUNICODE*)
//	Text2  the name of GLOBAL/INST
//	Data   length-prefixed binary payloads; Data aliases the decoded buffer
//
// An Instruction must not be modified once decoded.
type Instruction struct {
	Op    Opcode
	Pos   int
	Int   int64
	Float float64
	Text  string
	Text2 string
	Data  []byte
}

// sameArg tells whether a and b carry the same opcode and argument.
// Positions are not compared.
func (a Instruction) sameArg(b Instruction) bool {
	return a.Op == b.Op && a.Int == b.Int &&
		(a.Float == b.Float || (a.Float != a.Float && b.Float != b.Float)) &&
		a.Text == b.Text && a.Text2 == b.Text2 && bytes.Equal(a.Data, b.Data)
}

// String renders the instruction the way pickletools.dis shows it.
func (in Instruction) String() string {
	name := in.Op.String()
	switch opTable[in.Op].arg {
	case argUint1, argUint2, argInt4, argUint4, argUint8:
		return fmt.Sprintf("%s %d", name, in.Int)
	case argFloat8:
		return name + " " + strconv.FormatFloat(in.Float, 'g', -1, 64)
	case argLine, argUTF8_1, argUTF8_4, argUTF8_8:
		return fmt.Sprintf("%s %q", name, in.Text)
	case argRawLine:
		return name + " " + pyquote(in.Text)
	case argLine2:
		return fmt.Sprintf("%s %q %q", name, in.Text, in.Text2)
	case argBytes1, argBytes4, argBytes8:
		return fmt.Sprintf("%s %q", name, in.Data)
	}
	return name
}

// reader decodes opcode arguments from an in-memory pickle.
type reader struct {
	data []byte
	pos  int
	last int // start of the most recent read
}

func (r *reader) take(n uint64) ([]byte, error) {
	r.last = r.pos
	if n > uint64(len(r.data)-r.pos) {
		return nil, io.ErrUnexpectedEOF
	}
	b := r.data[r.pos : r.pos+int(n)]
	r.pos += int(n)
	return b, nil
}

func (r *reader) uint(width int) (uint64, error) {
	b, err := r.take(uint64(width))
	if err != nil {
		return 0, err
	}
	switch width {
	case 1:
		return uint64(b[0]), nil
	case 2:
		return uint64(binary.LittleEndian.Uint16(b)), nil
	case 4:
		return uint64(binary.LittleEndian.Uint32(b)), nil
	}
	return binary.LittleEndian.Uint64(b), nil
}

// rawLine reads next line; returned line does not contain \n.
func (r *reader) rawLine() ([]byte, error) {
	r.last = r.pos
	i := bytes.IndexByte(r.data[r.pos:], '\n')
	if i < 0 {
		return nil, io.ErrUnexpectedEOF
	}
	b := r.data[r.pos : r.pos+i]
	r.pos += i + 1
	return b, nil
}

// line is rawLine that requires the line to be UTF-8.
func (r *reader) line() (string, error) {
	b, err := r.rawLine()
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", ErrInvalidUTF8
	}
	return string(b), nil
}

// counted reads `len [len]data` where len is width bytes of little-endian.
func (r *reader) counted(width int) ([]byte, error) {
	l, err := r.uint(width)
	if err != nil {
		return nil, err
	}
	if l > math.MaxInt64 {
		return nil, errTooLarge
	}
	// never allocate: a malicious `BINBYTES8 <bigsize> nodata` only fails the bounds check
	return r.take(l)
}

// DecodeOne decodes the instruction starting at data[pos].
//
// It returns the instruction and the position right after it.
func DecodeOne(data []byte, pos int) (Instruction, int, error) {
	if pos < 0 || pos >= len(data) {
		return Instruction{}, pos, &DecodeError{Pos: pos, Off: pos, Err: io.ErrUnexpectedEOF}
	}
	key := data[pos]
	op := Opcode(key)
	info := opTable[op]
	if info.arg == 0 {
		return Instruction{}, pos, OpcodeError{Key: key, Pos: pos}
	}

	in := Instruction{Op: op, Pos: pos}
	r := reader{data: data, pos: pos + 1}
	var err error
	switch info.arg {
	case argNone:

	case argUint1, argUint2, argUint4:
		var v uint64
		v, err = r.uint(argWidth(info.arg))
		in.Int = int64(v)

	case argInt4:
		var v uint64
		v, err = r.uint(4)
		in.Int = int64(int32(uint32(v))) // NOTE signed: uint32 -> int32, and only then -> int64

	case argUint8:
		var v uint64
		v, err = r.uint(8)
		if err == nil && v > math.MaxInt64 {
			err = errTooLarge
		}
		in.Int = int64(v)

	case argFloat8:
		var b []byte
		b, err = r.take(8)
		if err == nil {
			in.Float = math.Float64frombits(binary.BigEndian.Uint64(b))
		}

	case argLine:
		in.Text, err = r.line()

	case argRawLine:
		var b []byte
		b, err = r.rawLine()
		in.Text = string(b)

	case argLine2:
		in.Text, err = r.line()
		if err == nil {
			in.Text2, err = r.line()
		}

	case argBytes1, argBytes4, argBytes8:
		in.Data, err = r.counted(argWidth(info.arg))

	case argUTF8_1, argUTF8_4, argUTF8_8:
		var b []byte
		b, err = r.counted(argWidth(info.arg))
		if err == nil && !utf8.Valid(b) {
			err = ErrInvalidUTF8
		}
		in.Text = string(b)
	}

	if err != nil {
		return Instruction{}, pos, &DecodeError{Pos: pos, Off: r.last, Op: op, Err: err}
	}
	return in, r.pos, nil
}

// argWidth returns the byte width of a fixed integer argument or of a length prefix.
func argWidth(k argKind) int {
	switch k {
	case argUint1, argBytes1, argUTF8_1:
		return 1
	case argUint2:
		return 2
	case argInt4, argUint4, argBytes4, argUTF8_4:
		return 4
	}
	return 8
}

// DecodeAll decodes data into instructions until the input is exhausted.
//
// Decoding stops at the first invalid opcode or argument; there is no
// resynchronisation.
func DecodeAll(data []byte) ([]Instruction, error) {
	insns := make([]Instruction, 0, len(data)/4)
	for pos := 0; pos < len(data); {
		in, next, err := DecodeOne(data, pos)
		if err != nil {
			return nil, err
		}
		insns = append(insns, in)
		pos = next
	}
	return insns, nil
}

// DecodeUntilStop decodes instructions up to and including the first STOP.
//
// It returns the number of bytes consumed so that several concatenated pickles,
// or a pickle followed by unrelated data, can be decoded one at a time.
// Input that ends before STOP is io.ErrUnexpectedEOF, or io.EOF if data is empty.
func DecodeUntilStop(data []byte) ([]Instruction, int, error) {
	if len(data) == 0 {
		return nil, 0, io.EOF
	}
	var insns []Instruction
	for pos := 0; pos < len(data); {
		in, next, err := DecodeOne(data, pos)
		if err != nil {
			return nil, pos, err
		}
		insns = append(insns, in)
		pos = next
		if in.Op == OpStop {
			return insns, pos, nil
		}
	}
	return nil, len(data), io.ErrUnexpectedEOF
}
