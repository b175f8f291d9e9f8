package ogpeek

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"unicode/utf8"
)

// FixValue converts a Raw instruction into its canonical value.
//
//	BININT, BININT1, BININT2              -> Int
//	LONG1, LONG4                          -> Int, or BigInt when out of int64 range
//	BINFLOAT                              -> Float
//	BINUNICODE, SHORT_BINUNICODE, ...8    -> String
//	BINBYTES, SHORT_BINBYTES, BINBYTES8,
//	BYTEARRAY8                            -> Bytes
//	BINSTRING, SHORT_BINSTRING            -> String if the data is UTF-8, else Bytes
//	NEWTRUE, NEWFALSE                     -> Bool
//	NONE                                  -> None
//	INT "01" / INT "00"                   -> Bool
//	INT, LONG, FLOAT                      -> RawNum (see ParseRawNum)
//
// Every other value is returned unchanged. In particular text STRING and
// UNICODE stay Raw; see Unquote.
func FixValue(v Value) Value {
	raw, ok := v.(Raw)
	if !ok {
		return v
	}
	in := raw.Insn
	switch in.Op {
	case OpBinint, OpBinint1, OpBinint2:
		return Int(in.Int)

	case OpLong1, OpLong4:
		return NewBigInt(decodeLong(in.Data))

	case OpBinfloat:
		return Float(in.Float)

	case OpBinunicode, OpShortBinUnicode, OpBinunicode8:
		return String(in.Text)

	case OpBinbytes, OpShortBinbytes, OpBinbytes8, OpBytearray8:
		return Bytes(in.Data)

	// py2 str carries no encoding; UTF-8 is a guess that may be wrong for
	// legacy 8-bit text, but the bytes are recoverable either way.
	case OpBinstring, OpShortBinstring:
		if utf8.Valid(in.Data) {
			return String(in.Data)
		}
		return Bytes(in.Data)

	case OpNewtrue:
		return Bool(true)
	case OpNewfalse:
		return Bool(false)
	case OpNone:
		return None{}

	case OpInt:
		switch in.Text {
		case "01":
			return Bool(true)
		case "00":
			return Bool(false)
		}
		return RawNum{Insn: in}

	case OpLong, OpFloat:
		return RawNum{Insn: in}
	}
	return v
}

// decodeLong decodes data as little-endian two's complement integer.
//
// This is the encoding of LONG1 and LONG4 payloads; empty data is 0.
func decodeLong(data []byte) *big.Int {
	n := len(data)
	be := make([]byte, n)
	for i, b := range data {
		be[n-1-i] = b
	}
	decoded := new(big.Int).SetBytes(be)
	if n > 0 && data[n-1]&0x80 != 0 {
		decoded.Sub(decoded, new(big.Int).Lsh(big.NewInt(1), uint(8*n)))
	}
	return decoded
}

// ParseRawNum parses the decimal text of an INT, LONG or FLOAT instruction.
//
// v must be a RawNum or a Raw holding one of these opcodes. INT yields Bool
// for the "01"/"00" forms and Int or BigInt otherwise; LONG yields Int or
// BigInt and accepts the trailing "L" written by Python 2; FLOAT yields Float.
func ParseRawNum(v Value) (Value, error) {
	var in Instruction
	switch v := v.(type) {
	case RawNum:
		in = v.Insn
	case Raw:
		in = v.Insn
	default:
		return nil, fmt.Errorf("pickle: parse number: expect RawNum; got %s", kindOf(v))
	}

	switch in.Op {
	case OpInt:
		switch in.Text {
		case "01":
			return Bool(true), nil
		case "00":
			return Bool(false), nil
		}
		return parseInt(in.Text)

	case OpLong:
		return parseInt(strings.TrimSuffix(in.Text, "L"))

	case OpFloat:
		f, err := strconv.ParseFloat(in.Text, 64)
		if err != nil {
			return nil, fmt.Errorf("pickle: parse float: %w", err)
		}
		return Float(f), nil
	}
	return nil, fmt.Errorf("pickle: parse number: unexpected opcode %s", in.Op)
}

func parseInt(s string) (Value, error) {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return Int(i), nil
	}
	x, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("pickle: parse int: invalid string %q", s)
	}
	return NewBigInt(x), nil
}

// Unquote decodes the text argument of STRING and UNICODE instructions.
//
// STRING carries a quoted Python 2 string literal in "string-escape"
// encoding; the result is String, or Bytes if the unescaped data is not
// UTF-8. UNICODE carries text in "raw-unicode-escape" encoding and always
// yields String.
func Unquote(v Value) (Value, error) {
	raw, ok := v.(Raw)
	if !ok {
		return nil, fmt.Errorf("pickle: unquote: expect Raw; got %s", kindOf(v))
	}
	line := raw.Insn.Text
	switch raw.Insn.Op {
	case OpString:
		if len(line) < 2 || (line[0] != '\'' && line[0] != '"') || line[len(line)-1] != line[0] {
			return nil, fmt.Errorf("pickle: unquote: invalid string delimiters: %s", pyquote(line))
		}
		s, err := pydecodeStringEscape(line[1 : len(line)-1])
		if err != nil {
			return nil, fmt.Errorf("pickle: unquote: %w", err)
		}
		if !utf8.ValidString(s) {
			return Bytes(s), nil
		}
		return String(s), nil

	case OpUnicode:
		s, err := pydecodeRawUnicodeEscape(line)
		if err != nil {
			return nil, fmt.Errorf("pickle: unquote: %w", err)
		}
		return String(s), nil
	}
	return nil, fmt.Errorf("pickle: unquote: unexpected opcode %s", raw.Insn.Op)
}

// kindOf is v.Kind() that tolerates nil.
func kindOf(v Value) Kind {
	if v == nil {
		return 0
	}
	return v.Kind()
}
