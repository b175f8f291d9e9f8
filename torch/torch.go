// Package torch extracts tensor metadata from PyTorch checkpoints.
//
// Only the plain layout written by torch.save for a state dict is understood:
// a mapping, possibly wrapped in collections.OrderedDict and BUILD, from
// tensor names to torch._utils._rebuild_tensor_v2 calls whose storage is
// referenced by persistent id. Entries of other kinds are skipped.
//
// No tensor data is decoded. Since checkpoint archives store their members
// uncompressed, the absolute offsets reported by Load can be used to access
// tensor data directly in the archive file.
package torch

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kisielk/ogpeek"
)

// TensorType is element type of a tensor, e.g. "float32".
//
// Types not known to the package keep the lower-cased storage name without
// the "Storage" suffix and have size 0.
type TensorType string

const (
	Float64  TensorType = "float64"
	Float32  TensorType = "float32"
	Float16  TensorType = "float16"
	BFloat16 TensorType = "bfloat16"
	Int64    TensorType = "int64"
	Int32    TensorType = "int32"
	Int16    TensorType = "int16"
	Int8     TensorType = "int8"
	UInt8    TensorType = "uint8"
)

var typeSizes = map[TensorType]int{
	Float64:  8,
	Float32:  4,
	Float16:  2,
	BFloat16: 2,
	Int64:    8,
	Int32:    4,
	Int16:    2,
	Int8:     1,
	UInt8:    1,
}

var typeAliases = map[string]TensorType{
	"double": Float64,
	"float":  Float32,
	"half":   Float16,
	"long":   Int64,
	"int":    Int32,
	"short":  Int16,
	"char":   Int8,
	"byte":   UInt8,
}

// Size returns size of one element in bytes, or 0 for unknown types.
func (t TensorType) Size() int {
	return typeSizes[t]
}

// Known tells whether t is one of the types with known element size.
func (t TensorType) Known() bool {
	return t.Size() != 0
}

// ParseTensorType returns tensor type for a storage class name like
// "FloatStorage" or "BFloat16Storage".
func ParseTensorType(storage string) TensorType {
	s := strings.ToLower(strings.TrimSuffix(storage, "Storage"))
	if t, ok := typeAliases[s]; ok {
		return t
	}
	return TensorType(s)
}

// Tensor describes one tensor of a checkpoint.
type Tensor struct {
	Name   string
	Device string
	Type   TensorType

	// StorageKey is the storage name recorded in the pickle.
	StorageKey string
	// StorageLen is the storage length as recorded in the pickle. Several
	// tensors may share one storage.
	StorageLen int64
	// Offset is the index of the first tensor element in the storage.
	Offset int64

	Shape        []int64
	Stride       []int64
	RequiresGrad bool

	// The fields below are set by Load.

	// Storage is the archive member holding the storage.
	Storage string
	// StorageOffset is the byte offset of tensor data in Storage.
	StorageOffset int64
	// AbsoluteOffset is the byte offset of tensor data in the archive.
	AbsoluteOffset int64
	// Digest is BLAKE3-256 of the whole Storage member, if requested.
	Digest []byte
}

// NumBytes returns the size of tensor data in bytes assuming it is
// contiguous, or 0 if the element type is unknown.
func (t *Tensor) NumBytes() int64 {
	n := int64(t.Type.Size())
	for _, dim := range t.Shape {
		n *= dim
	}
	return n
}

// ErrLayout is returned when the pickle does not have the expected layout.
var ErrLayout = errors.New("torch: unexpected checkpoint layout")

func layoutErrorf(format string, argv ...any) error {
	return fmt.Errorf("%w: %s", ErrLayout, fmt.Sprintf(format, argv...))
}

// Extract finds tensors in the evaluated and resolved data.pkl stack.
func Extract(vals []ogpeek.Value) ([]Tensor, error) {
	if len(vals) == 0 {
		return nil, layoutErrorf("empty stack")
	}
	// OrderedDict state, if any, is applied with BUILD.
	top := vals[0]
	if b, ok := top.(ogpeek.Build); ok {
		top = b.Target
	}

	var dict ogpeek.Dict
	var err error
	switch top := top.(type) {
	case ogpeek.Global:
		if !ogpeek.IsGlobal(top.Callee, "collections", "OrderedDict") {
			return nil, layoutErrorf("toplevel call of %s", top.Callee)
		}
		dict, err = ogpeek.NewDict(top)
	case ogpeek.Seq:
		dict, err = ogpeek.NewDict(top)
	default:
		return nil, layoutErrorf("toplevel %s", kindName(top))
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLayout, err)
	}

	tensors := make([]Tensor, 0, dict.Len())
	for _, e := range dict.Entries() {
		name, err := ogpeek.AsString(e.Key)
		if err != nil {
			return nil, layoutErrorf("dict key: %s", err)
		}
		call, ok := e.Value.(ogpeek.Global)
		if !ok || !ogpeek.IsGlobal(call.Callee, "torch._utils", "_rebuild_tensor_v2") {
			continue
		}
		t, err := rebuildTensor(call.Args)
		if err != nil {
			return nil, fmt.Errorf("tensor %q: %w", name, err)
		}
		t.Name = name
		tensors = append(tensors, t)
	}
	return tensors, nil
}

// rebuildTensor decodes arguments of _rebuild_tensor_v2:
//
//	(persid, offset, shape, stride, requires_grad, ...)
func rebuildTensor(args []ogpeek.Value) (t Tensor, err error) {
	if len(args) != 1 {
		return t, layoutErrorf("_rebuild_tensor_v2 with %d arguments", len(args))
	}
	argv, err := ogpeek.AsTuple(args[0])
	if err != nil || len(argv) < 5 {
		return t, layoutErrorf("_rebuild_tensor_v2 arguments %s", args[0])
	}
	pid, ok := argv[0].(ogpeek.PersID)
	if !ok {
		return t, layoutErrorf("storage is %s, not persistent id", kindName(argv[0]))
	}
	if err = t.setStorage(pid.ID); err != nil {
		return t, err
	}
	if t.Offset, err = ogpeek.AsInt64(argv[1]); err != nil {
		return t, layoutErrorf("offset: %s", err)
	}
	if t.Shape, err = dims(argv[2]); err != nil {
		return t, layoutErrorf("shape: %s", err)
	}
	if t.Stride, err = dims(argv[3]); err != nil {
		return t, layoutErrorf("stride: %s", err)
	}
	if t.RequiresGrad, err = ogpeek.AsBool(argv[4]); err != nil {
		return t, layoutErrorf("requires_grad: %s", err)
	}
	return t, nil
}

// setStorage decodes persistent id of a storage:
//
//	("storage", torch.<Type>Storage, key, device, length)
func (t *Tensor) setStorage(pid ogpeek.Value) error {
	items, err := ogpeek.AsTuple(pid)
	if err != nil || len(items) != 5 {
		return layoutErrorf("persistent id %s", pid)
	}
	if tag, err := ogpeek.AsString(items[0]); err != nil || tag != "storage" {
		return layoutErrorf("persistent id tag %s", items[0])
	}
	module, class, ok := ogpeek.GlobalName(items[1])
	if !ok || module != "torch" || !strings.HasSuffix(class, "Storage") {
		return layoutErrorf("storage type %s", items[1])
	}
	t.Type = ParseTensorType(class)
	if t.StorageKey, err = ogpeek.AsString(items[2]); err != nil {
		return layoutErrorf("storage key: %s", err)
	}
	if t.Device, err = ogpeek.AsString(items[3]); err != nil {
		return layoutErrorf("storage device: %s", err)
	}
	if t.StorageLen, err = ogpeek.AsInt64(items[4]); err != nil {
		return layoutErrorf("storage length: %s", err)
	}
	return nil
}

func dims(v ogpeek.Value) ([]int64, error) {
	items, err := ogpeek.AsTuple(v)
	if err != nil {
		return nil, err
	}
	d := make([]int64, len(items))
	for i, item := range items {
		if d[i], err = ogpeek.AsInt64(item); err != nil {
			return nil, err
		}
	}
	return d, nil
}

func kindName(v ogpeek.Value) string {
	if v == nil {
		return "<nil>"
	}
	return v.Kind().String()
}
