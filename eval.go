package ogpeek

import (
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"
)

// Config allows to tune evaluation.
type Config struct {
	// MaxDepth bounds reference resolution, see Memo. 0 selects DefaultMaxDepth.
	MaxDepth int

	// Logger, if !nil, receives a debug record for every evaluated instruction.
	Logger *zap.Logger
}

// Evaluate executes insns and returns the values left on the stack together
// with the memo table.
//
// Evaluation stops at the first STOP; instructions after it are ignored. No
// Python code is run: calls are recorded as Global and Object nodes, and
// instructions without special handling are kept as Raw.
//
// If resolveRefs is true, every returned value is passed through
// Memo.ResolveAll with fix-up, so that it holds no Refs (except for unknown
// ids or cycles cut by the depth bound) and no Raw numbers or strings that
// FixValue knows how to convert. Otherwise the stack is returned as is and
// the caller can resolve it with the returned memo. Note that MEMOIZE, PUT and
// BINPUT leave Ref(id) in place of the stored value, so unresolved output
// shows a Ref wherever a value was memoised.
//
// Returned values may share sub-values with each other and with the memo.
// They must be treated as read-only; use Clone to get a private copy.
//
// On failure the error is *EvalError.
func Evaluate(insns []Instruction, resolveRefs bool) ([]Value, *Memo, error) {
	return EvaluateWithConfig(insns, resolveRefs, nil)
}

// EvaluateWithConfig is similar to Evaluate, but allows specifying evaluation configuration.
func EvaluateWithConfig(insns []Instruction, resolveRefs bool, config *Config) ([]Value, *Memo, error) {
	if config == nil {
		config = &Config{}
	}
	log := config.Logger
	if log == nil {
		log = zap.NewNop()
	}

	e := &evaluator{
		stack: make(stack, 0, 16),
		memo:  NewMemo(config.MaxDepth),
		log:   log,
	}

loop:
	for i, in := range insns {
		if ce := e.log.Check(zap.DebugLevel, "eval"); ce != nil {
			ce.Write(zap.Int("index", i), zap.Int("pos", in.Pos), zap.Stringer("insn", in), zap.Int("depth", len(e.stack)))
		}

		var err error
		switch in.Op {
		case OpMark:
			e.stack.push(Raw{Insn: in})
		case OpStop:
			break loop
		case OpPop:
			_, err = e.stack.pop()
		case OpPopMark:
			_, err = e.stack.popMark()
		case OpDup:
			err = e.dup()
		case OpPersid:
			e.stack.push(PersID{ID: String(in.Text)})
		case OpBinpersid:
			err = e.binPersid()
		case OpReduce:
			err = e.reduce()
		case OpBuild:
			err = e.build()
		case OpEmptyDict:
			e.stack.push(NewSeq(SeqDict))
		case OpEmptyList:
			e.stack.push(NewSeq(SeqList))
		case OpEmptyTuple:
			e.stack.push(NewSeq(SeqTuple))
		case OpEmptySet:
			e.stack.push(NewSeq(SeqSet))
		case OpGet:
			err = e.get(in)
		case OpBinget, OpLongBinget:
			e.stack.push(Ref(in.Int))
		case OpPut:
			err = e.put(in)
		case OpBinput, OpLongBinput:
			err = e.memoPut(uint32(in.Int))
		case OpMemoize:
			err = e.memoize()
		case OpTuple:
			err = e.loadSeq(SeqTuple)
		case OpList:
			err = e.loadSeq(SeqList)
		case OpFrozenSet:
			err = e.loadSeq(SeqFrozenSet)
		case OpDict:
			err = e.loadDict()
		case OpTuple1:
			err = e.loadTupleN(1)
		case OpTuple2:
			err = e.loadTupleN(2)
		case OpTuple3:
			err = e.loadTupleN(3)
		case OpAppend:
			err = e.loadAppend()
		case OpAppends, OpAddItems:
			err = e.loadAppends()
		case OpSetitem:
			err = e.loadSetItem()
		case OpSetitems:
			err = e.loadSetItems()
		case OpProto:
			if in.Int > MaxProtocol {
				err = fmt.Errorf("%w %d", ErrInvalidPickleVersion, in.Int)
			}
		case OpInst:
			err = e.inst(in)
		case OpObj:
			err = e.obj()
		case OpNewobj:
			err = e.newobj()
		case OpNewobjEx:
			err = e.newobjEx()
		case OpGlobal:
			e.stack.push(global(String(in.Text), String(in.Text2)))
		case OpStackGlobal:
			err = e.stackGlobal()
		case OpFrame:
			// framing only matters for streaming readers
		case OpReadOnlyBuffer:
			_, err = e.stack.top()

		default:
			e.stack.push(Raw{Insn: in})
		}

		if err != nil {
			err = &EvalError{Kind: errKindOf(err), Index: i, Op: in.Op, Err: err}
			e.log.Debug("eval failed", zap.Error(err))
			return nil, nil, err
		}
	}

	vals := []Value(e.stack)
	if resolveRefs {
		var err error
		vals, err = e.memo.resolver(true).walkSlice(0, vals)
		if err != nil {
			// only a Ref to an unknown memo id can fail resolution
			return nil, nil, &EvalError{Kind: errKindOf(err), Index: len(insns), Op: OpStop, Err: err}
		}
	}
	return vals, e.memo, nil
}

// Unpickle decodes data with DecodeAll and evaluates it with the default
// configuration.
//
// Since all of data is decoded, bytes after STOP must still be valid
// instructions. Use Decoder for streams of several pickles or pickles
// followed by unrelated data.
func Unpickle(data []byte, resolveRefs bool) ([]Value, *Memo, error) {
	insns, err := DecodeAll(data)
	if err != nil {
		return nil, nil, err
	}
	return Evaluate(insns, resolveRefs)
}

// Decoder evaluates the pickles of a buffer one after another.
type Decoder struct {
	data    []byte
	pos     int
	resolve bool
	config  *Config
}

// NewDecoder returns a Decoder reading pickles from data.
func NewDecoder(data []byte, resolveRefs bool, config *Config) *Decoder {
	return &Decoder{data: data, resolve: resolveRefs, config: config}
}

// Decode decodes and evaluates the next pickle, up to and including its STOP.
//
// It returns io.EOF when all data was consumed.
func (d *Decoder) Decode() ([]Value, *Memo, error) {
	insns, n, err := DecodeUntilStop(d.data[d.pos:])
	if err != nil {
		var derr *DecodeError
		if errors.As(err, &derr) {
			derr.Pos += d.pos
		}
		var oerr OpcodeError
		if errors.As(err, &oerr) {
			err = OpcodeError{Key: oerr.Key, Pos: oerr.Pos + d.pos}
		}
		return nil, nil, err
	}
	for i := range insns {
		insns[i].Pos += d.pos
	}
	d.pos += n
	return EvaluateWithConfig(insns, d.resolve, d.config)
}

// Offset returns the position in data right after the last decoded pickle.
func (d *Decoder) Offset() int { return d.pos }

// evaluator holds the state of one evaluation.
type evaluator struct {
	stack stack
	memo  *Memo
	log   *zap.Logger
}

// global returns what GLOBAL module\nname\n evaluates to.
func global(module, name Value) Global {
	return Global{Callee: NewTuple(module, name), Args: []Value{}}
}

// Duplicate the top stack item
func (e *evaluator) dup() error {
	top, err := e.stack.top()
	if err != nil {
		return err
	}
	e.stack.push(*top)
	return nil
}

func (e *evaluator) binPersid() error {
	pid, err := e.stack.pop()
	if err != nil {
		return err
	}
	e.stack.push(PersID{ID: pid})
	return nil
}

// popResolved pops a value and follows it through memo references.
func (e *evaluator) popResolved() (Value, error) {
	v, err := e.stack.pop()
	if err != nil {
		return nil, err
	}
	return e.memo.Resolve(v, true)
}

// Push callable applied to argtuple, both taken from the stack
func (e *evaluator) reduce() error {
	args, err := e.popResolved()
	if err != nil {
		return err
	}
	callee, err := e.popResolved()
	if err != nil {
		return err
	}
	e.stack.push(Global{Callee: callee, Args: []Value{args}})
	return nil
}

// Push state applied to target, both taken from the stack
func (e *evaluator) build() error {
	state, err := e.popResolved()
	if err != nil {
		return err
	}
	target, err := e.popResolved()
	if err != nil {
		return err
	}
	e.stack.push(Build{Target: target, State: state})
	return nil
}

// parseMemoID parses the text argument of GET and PUT.
func parseMemoID(text string) (uint32, error) {
	id, err := strconv.ParseUint(text, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w %q", errBadMemoID, text)
	}
	return uint32(id), nil
}

func (e *evaluator) get(in Instruction) error {
	id, err := parseMemoID(in.Text)
	if err != nil {
		return err
	}
	e.stack.push(Ref(id))
	return nil
}

func (e *evaluator) put(in Instruction) error {
	id, err := parseMemoID(in.Text)
	if err != nil {
		return err
	}
	return e.memoPut(id)
}

// memoPut moves the stack top into memo entry id and leaves a Ref to it in its place.
func (e *evaluator) memoPut(id uint32) error {
	v, err := e.stack.pop()
	if err != nil {
		return err
	}
	e.memo.Insert(id, v)
	e.stack.push(Ref(id))
	return nil
}

// memoize stores the stack top under the next free memo id.
//
// Like memoPut the top is replaced by a Ref, so that later SETITEMS and
// friends applied through the stack reach the memoised value.
func (e *evaluator) memoize() error {
	top, err := e.stack.top()
	if err != nil {
		return err
	}
	id := uint32(e.memo.Len())
	e.memo.Insert(id, *top)
	*top = Ref(id)
	return nil
}

func (e *evaluator) loadSeq(kind SeqKind) error {
	items, err := e.stack.popMark()
	if err != nil {
		return err
	}
	e.stack.push(NewSeq(kind, items...))
	return nil
}

func (e *evaluator) loadDict() error {
	items, err := e.stack.popMark()
	if err != nil {
		return err
	}
	kv, err := pairs(items)
	if err != nil {
		return err
	}
	e.stack.push(NewSeq(SeqDict, kv...))
	return nil
}

func (e *evaluator) loadTupleN(n int) error {
	items, err := e.stack.popN(n)
	if err != nil {
		return err
	}
	e.stack.push(NewTuple(items...))
	return nil
}

// extendTop appends to the collection on top of the stack.
//
// The top is followed through memo references, so the memoised collection
// is what gets modified. seqItems are appended to a Seq, globalArgs to the
// arguments of a Global. Any other kind of top is ErrBadStackTop.
//
// Appends always go to a new backing array and only the slot is rewritten,
// so values that share items with the old header stay as they were.
func (e *evaluator) extendTop(seqItems, globalArgs []Value) error {
	top, err := e.stack.top()
	if err != nil {
		return err
	}
	target, err := e.memo.resolveMut(top)
	if err != nil {
		return err
	}
	switch v := (*target).(type) {
	case Seq:
		v.Items = append(v.Items[:len(v.Items):len(v.Items)], seqItems...)
		*target = v
	case Global:
		v.Args = append(v.Args[:len(v.Args):len(v.Args)], globalArgs...)
		*target = v
	default:
		return fmt.Errorf("%w: found %s", ErrBadStackTop, kindOf(v))
	}
	return nil
}

func (e *evaluator) loadAppend() error {
	v, err := e.stack.pop()
	if err != nil {
		return err
	}
	items := []Value{v}
	return e.extendTop(items, items)
}

func (e *evaluator) loadAppends() error {
	items, err := e.stack.popMark()
	if err != nil {
		return err
	}
	return e.extendTop(items, items)
}

func (e *evaluator) loadSetItem() error {
	v, err := e.stack.pop()
	if err != nil {
		return err
	}
	k, err := e.stack.pop()
	if err != nil {
		return err
	}
	kv := []Value{NewTuple(k, v)}
	return e.extendTop(kv, kv)
}

// loadSetItems adds the pairs above the mark to the dict below it.
//
// A Seq gets every pair as an item. A Global, e.g. an OrderedDict built by
// REDUCE, gets the whole batch as one Seq(Tuple, pairs) argument.
func (e *evaluator) loadSetItems() error {
	items, err := e.stack.popMark()
	if err != nil {
		return err
	}
	kv, err := pairs(items)
	if err != nil {
		return err
	}
	var batch []Value
	if len(kv) > 0 {
		batch = []Value{NewTuple(kv...)}
	}
	return e.extendTop(kv, batch)
}

// Push a class instance built from module and class name and the values above the mark
func (e *evaluator) inst(in Instruction) error {
	args, err := e.stack.popMark()
	if err != nil {
		return err
	}
	e.stack.push(Object{Class: NewTuple(String(in.Text), String(in.Text2)), Args: args})
	return nil
}

// Push a class instance built from the class and the arguments above the mark
func (e *evaluator) obj() error {
	k, err := e.stack.marker()
	if err != nil {
		return err
	}
	if k+1 >= len(e.stack) {
		return fmt.Errorf("%w: no class after mark", ErrStackUnderflow)
	}
	items, _ := e.stack.popMark()
	e.stack.push(Object{Class: items[0], Args: items[1:]})
	return nil
}

func (e *evaluator) newobj() error {
	args, err := e.stack.pop()
	if err != nil {
		return err
	}
	cls, err := e.stack.pop()
	if err != nil {
		return err
	}
	e.stack.push(Object{Class: cls, Args: []Value{args}})
	return nil
}

func (e *evaluator) newobjEx() error {
	vv, err := e.stack.popN(3)
	if err != nil {
		return err
	}
	cls, args, kwargs := vv[0], vv[1], vv[2]
	e.stack.push(Object{Class: cls, Args: []Value{NewTuple(args, kwargs)}})
	return nil
}

// Push a global referenced by module and name taken from the stack
func (e *evaluator) stackGlobal() error {
	name, err := e.popResolved()
	if err != nil {
		return err
	}
	module, err := e.popResolved()
	if err != nil {
		return err
	}
	e.stack.push(global(FixValue(module), FixValue(name)))
	return nil
}
