package ogpeek

import (
	"io"
	"strconv"
	"strings"
)

// String methods render values on one line, e.g.
//
//	Seq(Tuple, [String("builtins"), String("int")])
//
// Use Sprint or Fprint for an indented multi-line rendering of big trees.

func (v Raw) String() string { return "Raw(" + v.Insn.String() + ")" }
func (v Ref) String() string { return "Ref(" + strconv.FormatUint(uint64(v), 10) + ")" }
func (v App) String() string { return "App(" + v.Callee.String() + ", " + inlineList(v.Args) + ")" }
func (v Object) String() string {
	return "Object(" + v.Class.String() + ", " + inlineList(v.Args) + ")"
}
func (v Build) String() string  { return "Build(" + v.Target.String() + ", " + v.State.String() + ")" }
func (v PersID) String() string { return "PersId(" + v.ID.String() + ")" }
func (v Global) String() string {
	return "Global(" + v.Callee.String() + ", " + inlineList(v.Args) + ")"
}
func (v Seq) String() string    { return "Seq(" + v.Type.String() + ", " + inlineList(v.Items) + ")" }
func (v String) String() string { return "String(" + strconv.Quote(string(v)) + ")" }
func (v Bytes) String() string  { return "Bytes(" + strconv.Quote(string(v)) + ")" }
func (v Int) String() string    { return "Int(" + strconv.FormatInt(int64(v), 10) + ")" }
func (v BigInt) String() string { return "BigInt(" + v.V.String() + ")" }
func (v Float) String() string  { return "Float(" + strconv.FormatFloat(float64(v), 'g', -1, 64) + ")" }
func (v Bool) String() string   { return "Bool(" + strconv.FormatBool(bool(v)) + ")" }
func (None) String() string     { return "None" }
func (v RawNum) String() string { return "RawNum(" + v.Insn.String() + ")" }

func inlineList(vv []Value) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, v := range vv {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(str(v))
	}
	b.WriteByte(']')
	return b.String()
}

// str is v.String() that tolerates nil children of hand-built values.
func str(v Value) string {
	if v == nil {
		return "<nil>"
	}
	return v.String()
}

// Sprint renders v as an indented tree.
func Sprint(v Value) string {
	var b strings.Builder
	p := printer{w: &b}
	p.value(v, 0)
	return b.String()
}

// Fprint writes the indented rendering of each value in vv to w, one per line.
func Fprint(w io.Writer, vv ...Value) error {
	for _, v := range vv {
		if _, err := io.WriteString(w, Sprint(v)+"\n"); err != nil {
			return err
		}
	}
	return nil
}

type printer struct {
	w *strings.Builder
}

func (p *printer) indent(depth int) {
	for i := 0; i < depth; i++ {
		p.w.WriteString("  ")
	}
}

func (p *printer) value(v Value, depth int) {
	switch v := v.(type) {
	case App:
		p.call("App", v.Callee, v.Args, depth)
	case Object:
		p.call("Object", v.Class, v.Args, depth)
	case Global:
		p.call("Global", v.Callee, v.Args, depth)
	case Build:
		p.w.WriteString("Build(\n")
		p.indent(depth + 1)
		p.value(v.Target, depth+1)
		p.w.WriteString(",\n")
		p.indent(depth + 1)
		p.value(v.State, depth+1)
		p.w.WriteString(",\n")
		p.indent(depth)
		p.w.WriteString(")")
	case PersID:
		p.w.WriteString("PersId(")
		p.value(v.ID, depth)
		p.w.WriteString(")")
	case Seq:
		p.w.WriteString("Seq(" + v.Type.String() + ", ")
		p.list(v.Items, depth)
		p.w.WriteString(")")
	default:
		p.w.WriteString(str(v))
	}
}

func (p *printer) call(name string, callee Value, args []Value, depth int) {
	p.w.WriteString(name + "(")
	p.value(callee, depth)
	p.w.WriteString(", ")
	p.list(args, depth)
	p.w.WriteString(")")
}

// lists of scalars that fit in inlineWidth bytes are printed on one line.
const inlineWidth = 60

func (p *printer) list(vv []Value, depth int) {
	if s, ok := shortList(vv); ok {
		p.w.WriteString(s)
		return
	}
	p.w.WriteString("[\n")
	for _, v := range vv {
		p.indent(depth + 1)
		p.value(v, depth+1)
		p.w.WriteString(",\n")
	}
	p.indent(depth)
	p.w.WriteString("]")
}

// shortList returns inlineList(vv) if vv holds only scalars and the result is
// not longer than inlineWidth.
func shortList(vv []Value) (string, bool) {
	if len(vv) > inlineWidth/2 {
		return "", false
	}
	n := 0
	for _, v := range vv {
		switch v := v.(type) {
		case App, Object, Build, PersID, Global:
			return "", false
		case Seq:
			if len(v.Items) != 0 {
				return "", false
			}
		case String:
			n += len(v)
		case Bytes:
			n += len(v)
		case Raw:
			n += len(v.Insn.Text) + len(v.Insn.Data)
		case RawNum:
			n += len(v.Insn.Text)
		}
		if n > inlineWidth {
			return "", false
		}
	}
	s := inlineList(vv)
	return s, len(s) <= inlineWidth
}
