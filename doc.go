// Package ogpeek is a library for peeking inside Python's pickle format
// without running any of the code a pickle can refer to.
//
// Decoding happens in two steps. DecodeAll turns bytes into a sequence of
// instructions, one per opcode, and Evaluate runs them on a stack machine
// that builds a tree of generic values:
//
//	insns, err := ogpeek.DecodeAll(data)
//	vals, memo, err := ogpeek.Evaluate(insns, true)
//
// Unpickle does both at once, and Decoder handles buffers that hold several
// pickles one after another.
//
// The following table summarizes what Python objects evaluate to:
//
//	Python			Go
//	------			--
//
//	None			ogpeek.None
//	bool			ogpeek.Bool
//	int			ogpeek.Int, ogpeek.BigInt if outside of int64 range
//	float			ogpeek.Float
//	str			ogpeek.String
//	bytes, bytearray	ogpeek.Bytes
//	list			ogpeek.Seq{Type: SeqList}
//	tuple			ogpeek.Seq{Type: SeqTuple}
//	dict			ogpeek.Seq{Type: SeqDict}, items are (key, value) tuples
//	set, frozenset		ogpeek.Seq{Type: SeqSet | SeqFrozenSet}
//
// Python classes and calls are never resolved. They are recorded as they
// appear in the pickle, for example:
//
//	Python				Go
//	------	   			--
//
//	decimal.Decimal            →    Global{Seq(Tuple, [String("decimal"), String("Decimal")]), []}
//	decimal.Decimal("3.14")    →    Global{
//						Global{Seq(Tuple, [String("decimal"), String("Decimal")]), []},
//						[Seq(Tuple, [String("3.14")])],
//					}
//
// In particular it is thus safe to decode pickles from untrusted sources(^).
//
// # Memo and references
//
// Pickles refer to already built objects through the memo. Evaluate records
// such references as Ref values. With resolveRefs=true they are replaced with
// the objects they refer to; otherwise the caller gets the Refs together with
// the memo table and can resolve them with Memo.Resolve and Memo.ResolveAll.
//
// A pickle can build reference cycles, e.g. a list that contains itself. To
// guarantee termination, resolution stops after Config.MaxDepth levels
// (DefaultMaxDepth by default) and leaves the rest of the tree as it is.
//
// # Legacy text encodings
//
// Numbers of protocol 0 (INT, LONG, FLOAT) are kept as RawNum and strings of
// protocol 0 (STRING, UNICODE) are kept as Raw. Use ParseRawNum and Unquote
// to convert them, or AsInt64 and AsString that do so on the fly.
//
// # Pickle protocol versions
//
// Over the time the pickle stream format was evolving. The original protocol
// version 0 is human-readable with versions 1 and 2 extending the protocol in
// backward-compatible way with binary encodings for efficiency. Protocol
// version 3 added ways to represent Python bytes objects. Protocol version 4
// further enhances on version 3 and completely switches to binary-only
// encoding. Protocol version 5 added support for out-of-band data(%). Please
// see https://docs.python.org/3/library/pickle.html#data-stream-format for
// details.
//
// Evaluate rejects pickles that declare a protocol newer than MaxProtocol.
//
// --------
//
// (^) contrary to Python implementation, where malicious pickle can cause the
// decoder to run arbitrary code, including e.g. os.system("rm -rf /").
//
// (%) out-of-band buffers are only represented by their NEXT_BUFFER instruction.
package ogpeek
