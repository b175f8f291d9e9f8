package ogpeek

import (
	"fmt"
)

// Opcode is the one-byte tag that starts every pickle instruction.
type Opcode byte

// Opcodes
const (
	// Protocol 0

	OpMark    Opcode = '(' // push special markobject on stack
	OpStop    Opcode = '.' // every pickle ends with STOP
	OpPop     Opcode = '0' // discard topmost stack item
	OpDup     Opcode = '2' // duplicate top stack item
	OpFloat   Opcode = 'F' // push float object; decimal string argument
	OpInt     Opcode = 'I' // push integer or bool; decimal string argument
	OpLong    Opcode = 'L' // push long; decimal string argument
	OpNone    Opcode = 'N' // push None
	OpPersid  Opcode = 'P' // push persistent object; id is taken from string arg
	OpReduce  Opcode = 'R' // apply callable to argtuple, both on stack
	OpString  Opcode = 'S' // push string; NL-terminated string argument
	OpUnicode Opcode = 'V' // push Unicode string; raw-unicode-escaped"d argument
	OpAppend  Opcode = 'a' // append stack top to list below it
	OpBuild   Opcode = 'b' // call __setstate__ or __dict__.update()
	OpGlobal  Opcode = 'c' // push self.find_class(modname, name); 2 string args
	OpDict    Opcode = 'd' // build a dict from stack items
	OpGet     Opcode = 'g' // push item from memo on stack; index is string arg
	OpInst    Opcode = 'i' // build & push class instance
	OpList    Opcode = 'l' // build list from topmost stack items
	OpPut     Opcode = 'p' // store stack top in memo; index is string arg
	OpSetitem Opcode = 's' // add key+value pair to dict
	OpTuple   Opcode = 't' // build tuple from topmost stack items

	// Protocol 1

	OpPopMark        Opcode = '1' // discard stack top through topmost markobject
	OpBinint         Opcode = 'J' // push four-byte signed int
	OpBinint1        Opcode = 'K' // push 1-byte unsigned int
	OpBinint2        Opcode = 'M' // push 2-byte unsigned int
	OpBinpersid      Opcode = 'Q' // push persistent object; id is taken from stack
	OpBinstring      Opcode = 'T' // push string; counted binary string argument
	OpShortBinstring Opcode = 'U' //  "     "   ;    "      "       "      " < 256 bytes
	OpBinunicode     Opcode = 'X' // push Unicode string; counted UTF-8 string argument
	OpAppends        Opcode = 'e' // extend list on stack by topmost stack slice
	OpBinget         Opcode = 'h' // push item from memo on stack; index is 1-byte arg
	OpLongBinget     Opcode = 'j' //  "    "    "    "    "   "  ;   "    " 4-byte arg
	OpEmptyList      Opcode = ']' // push empty list
	OpEmptyTuple     Opcode = ')' // push empty tuple
	OpEmptyDict      Opcode = '}' // push empty dict
	OpObj            Opcode = 'o' // build & push class instance
	OpBinput         Opcode = 'q' // store stack top in memo; index is 1-byte arg
	OpLongBinput     Opcode = 'r' //   "     "    "   "   " ;   "    " 4-byte arg
	OpSetitems       Opcode = 'u' // modify dict by adding topmost key+value pairs
	OpBinfloat       Opcode = 'G' // push float; arg is 8-byte float encoding

	// Protocol 2

	OpProto    Opcode = '\x80' // identify pickle protocol
	OpNewobj   Opcode = '\x81' // build object by applying cls.__new__ to argtuple
	OpExt1     Opcode = '\x82' // push object from extension registry; 1-byte index
	OpExt2     Opcode = '\x83' // ditto, but 2-byte index
	OpExt4     Opcode = '\x84' // ditto, but 4-byte index
	OpTuple1   Opcode = '\x85' // build 1-tuple from stack top
	OpTuple2   Opcode = '\x86' // build 2-tuple from two topmost stack items
	OpTuple3   Opcode = '\x87' // build 3-tuple from three topmost stack items
	OpNewtrue  Opcode = '\x88' // push True
	OpNewfalse Opcode = '\x89' // push False
	OpLong1    Opcode = '\x8a' // push long from < 256 bytes
	OpLong4    Opcode = '\x8b' // push really big long

	// Protocol 3

	OpBinbytes      Opcode = 'B' // push a Python bytes object (len ule32; [len]data)
	OpShortBinbytes Opcode = 'C' //  "     "      "      "     (len ule8; [len]data)

	// Protocol 4

	OpShortBinUnicode Opcode = '\x8c' // push short string; UTF-8 length < 256 bytes
	OpBinunicode8     Opcode = '\x8d' // push Unicode string (len ule64; [len]data)
	OpBinbytes8       Opcode = '\x8e' // push a Python bytes object (len ule64; [len]data)
	OpEmptySet        Opcode = '\x8f' // push empty set
	OpAddItems        Opcode = '\x90' // add items to existing set
	OpFrozenSet       Opcode = '\x91' // build a frozenset out of mark..top
	OpNewobjEx        Opcode = '\x92' // build object: cls argv kw -> cls.__new__(*argv, **kw)
	OpStackGlobal     Opcode = '\x93' // same as OpGlobal but using names on the stacks
	OpMemoize         Opcode = '\x94' // store top of the stack in memo
	OpFrame           Opcode = '\x95' // indicate the beginning of a new frame

	// Protocol 5

	OpBytearray8     Opcode = '\x96' // push a Python bytearray object (len ule64; [len]data)
	OpNextBuffer     Opcode = '\x97' // push next out-of-band buffer
	OpReadOnlyBuffer Opcode = '\x98' // turn out-of-band buffer at stack top to be read-only
)

// MaxProtocol is the highest pickle protocol version understood by Evaluate.
const MaxProtocol = 5

// argKind says how the argument following an opcode byte is encoded.
type argKind uint8

const (
	argNone    argKind = iota + 1
	argUint1           // 1-byte unsigned
	argUint2           // 2-byte little-endian unsigned
	argInt4            // 4-byte little-endian signed
	argUint4           // 4-byte little-endian unsigned
	argUint8           // 8-byte little-endian unsigned
	argFloat8          // 8-byte big-endian IEEE 754 double
	argLine            // UTF-8 text terminated by \n
	argRawLine         // bytes terminated by \n, quoted or escaped by the producer
	argLine2           // two \n-terminated text fields
	argBytes1          // len ule8;  [len]data
	argBytes4          // len ule32; [len]data
	argBytes8          // len ule64; [len]data
	argUTF8_1          // same as argBytes1, data must be valid UTF-8
	argUTF8_4          // same as argBytes4, data must be valid UTF-8
	argUTF8_8          // same as argBytes8, data must be valid UTF-8
)

// opInfo describes one entry of the opcode table.
type opInfo struct {
	name  string
	arg   argKind
	proto int
}

// opTable is indexed by opcode byte. Entries with arg == 0 are unknown opcodes.
var opTable = [256]opInfo{
	OpMark:      {"MARK", argNone, 0},
	OpStop:      {"STOP", argNone, 0},
	OpPop:       {"POP", argNone, 0},
	OpPopMark:   {"POP_MARK", argNone, 1},
	OpDup:       {"DUP", argNone, 0},
	OpFloat:     {"FLOAT", argLine, 0},
	OpInt:       {"INT", argLine, 0},
	OpBinint:    {"BININT", argInt4, 1},
	OpBinint1:   {"BININT1", argUint1, 1},
	OpLong:      {"LONG", argLine, 0},
	OpBinint2:   {"BININT2", argUint2, 1},
	OpNone:      {"NONE", argNone, 0},
	OpPersid:    {"PERSID", argLine, 0},
	OpBinpersid: {"BINPERSID", argNone, 1},
	OpReduce:    {"REDUCE", argNone, 0},

	OpString:         {"STRING", argRawLine, 0},
	OpBinstring:      {"BINSTRING", argBytes4, 1},
	OpShortBinstring: {"SHORT_BINSTRING", argBytes1, 1},
	OpUnicode:        {"UNICODE", argRawLine, 0},
	OpBinunicode:     {"BINUNICODE", argUTF8_4, 1},

	OpAppend:     {"APPEND", argNone, 0},
	OpBuild:      {"BUILD", argNone, 0},
	OpGlobal:     {"GLOBAL", argLine2, 0},
	OpDict:       {"DICT", argNone, 0},
	OpEmptyDict:  {"EMPTY_DICT", argNone, 1},
	OpAppends:    {"APPENDS", argNone, 1},
	OpGet:        {"GET", argLine, 0},
	OpBinget:     {"BINGET", argUint1, 1},
	OpInst:       {"INST", argLine2, 0},
	OpLongBinget: {"LONG_BINGET", argUint4, 1},
	OpList:       {"LIST", argNone, 0},
	OpEmptyList:  {"EMPTY_LIST", argNone, 1},
	OpObj:        {"OBJ", argNone, 1},
	OpPut:        {"PUT", argLine, 0},
	OpBinput:     {"BINPUT", argUint1, 1},
	OpLongBinput: {"LONG_BINPUT", argUint4, 1},
	OpSetitem:    {"SETITEM", argNone, 0},
	OpTuple:      {"TUPLE", argNone, 0},
	OpEmptyTuple: {"EMPTY_TUPLE", argNone, 1},
	OpSetitems:   {"SETITEMS", argNone, 1},
	OpBinfloat:   {"BINFLOAT", argFloat8, 1},

	OpProto:    {"PROTO", argUint1, 2},
	OpNewobj:   {"NEWOBJ", argNone, 2},
	OpExt1:     {"EXT1", argUint1, 2},
	OpExt2:     {"EXT2", argUint2, 2},
	OpExt4:     {"EXT4", argInt4, 2},
	OpTuple1:   {"TUPLE1", argNone, 2},
	OpTuple2:   {"TUPLE2", argNone, 2},
	OpTuple3:   {"TUPLE3", argNone, 2},
	OpNewtrue:  {"NEWTRUE", argNone, 2},
	OpNewfalse: {"NEWFALSE", argNone, 2},
	OpLong1:    {"LONG1", argBytes1, 2},
	OpLong4:    {"LONG4", argBytes4, 2},

	OpBinbytes:      {"BINBYTES", argBytes4, 3},
	OpShortBinbytes: {"SHORT_BINBYTES", argBytes1, 3},

	OpShortBinUnicode: {"SHORT_BINUNICODE", argUTF8_1, 4},
	OpBinunicode8:     {"BINUNICODE8", argUTF8_8, 4},
	OpBinbytes8:       {"BINBYTES8", argBytes8, 4},
	OpEmptySet:        {"EMPTY_SET", argNone, 4},
	OpAddItems:        {"ADDITEMS", argNone, 4},
	OpFrozenSet:       {"FROZENSET", argNone, 4},
	OpNewobjEx:        {"NEWOBJ_EX", argNone, 4},
	OpStackGlobal:     {"STACK_GLOBAL", argNone, 4},
	OpMemoize:         {"MEMOIZE", argNone, 4},
	OpFrame:           {"FRAME", argUint8, 4},

	OpBytearray8:     {"BYTEARRAY8", argBytes8, 5},
	OpNextBuffer:     {"NEXT_BUFFER", argNone, 5},
	OpReadOnlyBuffer: {"READONLY_BUFFER", argNone, 5},
}

// Known reports whether op is a valid pickle opcode.
func (op Opcode) Known() bool {
	return opTable[op].arg != 0
}

// Protocol returns the pickle protocol version that introduced op.
func (op Opcode) Protocol() int {
	return opTable[op].proto
}

// String returns the pickletools name of op.
func (op Opcode) String() string {
	if info := opTable[op]; info.arg != 0 {
		return info.name
	}
	return fmt.Sprintf("Opcode(%#02x)", byte(op))
}

// Opcodes returns all known opcodes in byte order.
func Opcodes() []Opcode {
	ops := make([]Opcode, 0, 70)
	for i := range opTable {
		if opTable[i].arg != 0 {
			ops = append(ops, Opcode(i))
		}
	}
	return ops
}
