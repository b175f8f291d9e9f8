package ogpeek

// conversion of evaluated values to Go types.

import (
	"fmt"
)

// AsInt64 tries to represent evaluated value as int64.
//
// Integers that fit in int64 evaluate to Int, while larger ones evaluate to
// BigInt. Text numbers of INT and LONG (RawNum) are parsed. Go code should
// use AsInt64 to accept normal-range integers independently of their
// encoding in the pickle.
func AsInt64(x Value) (int64, error) {
	if rn, ok := x.(RawNum); ok && rn.Insn.Op != OpFloat {
		v, err := ParseRawNum(rn)
		if err != nil {
			return 0, err
		}
		x = v
	}
	switch x := x.(type) {
	case Int:
		return int64(x), nil
	case BigInt:
		if !x.V.IsInt64() {
			return 0, fmt.Errorf("long outside of int64 range")
		}
		return x.V.Int64(), nil
	}
	return 0, fmt.Errorf("expect int|long; got %s", kindOf(x))
}

// AsBytes tries to represent evaluated value as []byte.
//
// It succeeds only if the value is Bytes. Legacy py2 strings are Bytes only
// when their data is not UTF-8; see FixValue.
func AsBytes(x Value) ([]byte, error) {
	if b, ok := x.(Bytes); ok {
		return b, nil
	}
	return nil, fmt.Errorf("expect bytes; got %s", kindOf(x))
}

// AsString tries to represent evaluated value as string.
//
// It succeeds for String and for text STRING/UNICODE instructions that
// Unquote can decode into String.
func AsString(x Value) (string, error) {
	if raw, ok := x.(Raw); ok && (raw.Insn.Op == OpString || raw.Insn.Op == OpUnicode) {
		v, err := Unquote(raw)
		if err != nil {
			return "", err
		}
		x = v
	}
	if s, ok := x.(String); ok {
		return string(s), nil
	}
	return "", fmt.Errorf("expect unicode; got %s", kindOf(x))
}

// AsBool tries to represent evaluated value as bool.
func AsBool(x Value) (bool, error) {
	if b, ok := x.(Bool); ok {
		return bool(b), nil
	}
	return false, fmt.Errorf("expect bool; got %s", kindOf(x))
}

// AsTuple returns the items of a Seq(Tuple).
func AsTuple(x Value) ([]Value, error) {
	if t, ok := x.(Seq); ok && t.Type == SeqTuple {
		return t.Items, nil
	}
	return nil, fmt.Errorf("expect tuple; got %s", str(x))
}

// GlobalName returns module and name of a reference to a global callable.
//
// It accepts what GLOBAL and STACK_GLOBAL evaluate to, i.e. Global with
// Seq(Tuple, [String(module), String(name)]) callee and no arguments, and
// Raw GLOBAL and INST instructions.
func GlobalName(x Value) (module, name string, ok bool) {
	switch x := x.(type) {
	case Raw:
		if x.Insn.Op == OpGlobal || x.Insn.Op == OpInst {
			return x.Insn.Text, x.Insn.Text2, true
		}
	case Global:
		if len(x.Args) != 0 {
			return "", "", false
		}
		t, err := AsTuple(x.Callee)
		if err != nil || len(t) != 2 {
			return "", "", false
		}
		module, err1 := AsString(t[0])
		name, err2 := AsString(t[1])
		if err1 != nil || err2 != nil {
			return "", "", false
		}
		return module, name, true
	}
	return "", "", false
}

// IsGlobal tells whether x refers to global module.name.
func IsGlobal(x Value, module, name string) bool {
	m, n, ok := GlobalName(x)
	return ok && m == module && n == name
}
