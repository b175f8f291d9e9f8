// Package render writes pickle values, instructions and tensors in the
// output formats of the ogpeek command.
//
// Values are first converted to a native form made of maps, slices and
// scalars, with every non-scalar value tagged by its "kind", so that the same
// tree is produced in JSON, YAML and CBOR.
package render

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/fxamacker/cbor/v2"
	"gopkg.in/yaml.v3"

	"github.com/kisielk/ogpeek"
)

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	cborEncMode = em
}

// Native converts v to its tagged native form.
func Native(v ogpeek.Value) any {
	switch v := v.(type) {
	case nil:
		return nil
	case ogpeek.None:
		return nil
	case ogpeek.Bool:
		return bool(v)
	case ogpeek.Int:
		return int64(v)
	case ogpeek.String:
		return string(v)
	case ogpeek.Float:
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return tagged(v, "value", strconv.FormatFloat(f, 'g', -1, 64))
		}
		return f
	case ogpeek.BigInt:
		return tagged(v, "value", v.V.String())
	case ogpeek.Bytes:
		return tagged(v, "hex", hex.EncodeToString(v))
	case ogpeek.Ref:
		return tagged(v, "id", uint32(v))
	case ogpeek.Raw:
		return tagged(v, "insn", v.Insn.String())
	case ogpeek.RawNum:
		return tagged(v, "insn", v.Insn.String())
	case ogpeek.PersID:
		return tagged(v, "id", Native(v.ID))
	case ogpeek.App:
		return call(v, "callee", v.Callee, v.Args)
	case ogpeek.Global:
		m := call(v, "callee", v.Callee, v.Args)
		if module, name, ok := ogpeek.GlobalName(v); ok {
			m["name"] = module + "." + name
		}
		return m
	case ogpeek.Object:
		return call(v, "class", v.Class, v.Args)
	case ogpeek.Build:
		m := tagged(v, "target", Native(v.Target))
		m["state"] = Native(v.State)
		return m
	case ogpeek.Seq:
		return map[string]any{"kind": v.Type.String(), "items": natives(v.Items)}
	}
	panic(fmt.Sprintf("render: unexpected value %T", v))
}

func tagged(v ogpeek.Value, key string, x any) map[string]any {
	return map[string]any{"kind": v.Kind().String(), key: x}
}

func call(v ogpeek.Value, key string, callee ogpeek.Value, args []ogpeek.Value) map[string]any {
	m := tagged(v, key, Native(callee))
	m["args"] = natives(args)
	return m
}

func natives(vv []ogpeek.Value) []any {
	out := make([]any, len(vv))
	for i, v := range vv {
		out[i] = Native(v)
	}
	return out
}

// Values writes evaluated values in format.
func Values(w io.Writer, format string, vals []ogpeek.Value) error {
	if format == "text" {
		return ogpeek.Fprint(w, vals...)
	}
	return encode(w, format, natives(vals))
}

// insnRecord is an instruction in structured output.
type insnRecord struct {
	Pos  int    `json:"pos" yaml:"pos" cbor:"pos"`
	Op   string `json:"op" yaml:"op" cbor:"op"`
	Insn string `json:"insn" yaml:"insn" cbor:"insn"`
}

// Instructions writes a disassembly of insns in format.
func Instructions(w io.Writer, format string, insns []ogpeek.Instruction) error {
	if format == "text" {
		for _, in := range insns {
			if _, err := fmt.Fprintf(w, "%5d: %s\n", in.Pos, in); err != nil {
				return err
			}
		}
		return nil
	}
	recs := make([]insnRecord, len(insns))
	for i, in := range insns {
		recs[i] = insnRecord{Pos: in.Pos, Op: in.Op.String(), Insn: in.String()}
	}
	return encode(w, format, recs)
}

func encode(w io.Writer, format string, x any) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(x)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(x); err != nil {
			return err
		}
		return enc.Close()
	case "cbor":
		data, err := cborEncMode.Marshal(x)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	}
	return fmt.Errorf("render: unknown format %q", format)
}
