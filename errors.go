package ogpeek

import (
	"errors"
	"fmt"
)

var ErrInvalidPickleVersion = errors.New("invalid pickle version")
var ErrNoMarker = errors.New("pickle: no marker in stack")
var ErrStackUnderflow = errors.New("pickle: stack underflow")
var ErrBadStackTop = errors.New("pickle: bad stack top")
var ErrOddDict = errors.New("pickle: odd # of elements for key/value pairs")

// ErrKind classifies evaluation failures.
type ErrKind uint8

const (
	ErrKindStack     ErrKind = iota + 1 // underflow, missing MARK, wrong kind of stack top
	ErrKindMemo                         // unknown memo id
	ErrKindProtocol                     // unsupported protocol version
	ErrKindMalformed                    // odd key/value list, unparsable memo id
)

func (k ErrKind) String() string {
	switch k {
	case ErrKindStack:
		return "stack"
	case ErrKindMemo:
		return "memo"
	case ErrKindProtocol:
		return "protocol"
	case ErrKindMalformed:
		return "malformed"
	}
	return fmt.Sprintf("ErrKind(%d)", uint8(k))
}

// EvalError is returned by Evaluate when an instruction cannot be executed.
//
// Index is the position of the instruction in the evaluated sequence, Op its
// opcode. Err is one of the package sentinel errors or a *MemoError and can be
// tested with errors.Is and errors.As.
type EvalError struct {
	Kind  ErrKind
	Index int
	Op    Opcode
	Err   error
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("pickle: %s error at instruction %d (%s): %s", e.Kind, e.Index, e.Op, e.Err)
}

func (e *EvalError) Unwrap() error { return e.Err }

// MemoError reports a lookup of memo id that was never stored.
type MemoError struct {
	ID uint32
}

func (e *MemoError) Error() string {
	return fmt.Sprintf("pickle: memo: key error %d", e.ID)
}

// errKindOf maps err to the kind of failure it represents.
func errKindOf(err error) ErrKind {
	var merr *MemoError
	switch {
	case errors.As(err, &merr):
		return ErrKindMemo
	case errors.Is(err, ErrInvalidPickleVersion):
		return ErrKindProtocol
	case errors.Is(err, ErrOddDict), errors.Is(err, errBadMemoID):
		return ErrKindMalformed
	}
	return ErrKindStack
}

var errBadMemoID = errors.New("pickle: invalid memo id")
