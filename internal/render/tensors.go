package render

import (
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/kisielk/ogpeek/torch"
)

// tensorRecord is a tensor in structured output.
type tensorRecord struct {
	Name           string  `json:"name" yaml:"name" cbor:"name"`
	Device         string  `json:"device" yaml:"device" cbor:"device"`
	Type           string  `json:"type" yaml:"type" cbor:"type"`
	Storage        string  `json:"storage" yaml:"storage" cbor:"storage"`
	StorageLen     int64   `json:"storage_len" yaml:"storage_len" cbor:"storage_len"`
	StorageOffset  int64   `json:"storage_offset" yaml:"storage_offset" cbor:"storage_offset"`
	AbsoluteOffset int64   `json:"absolute_offset" yaml:"absolute_offset" cbor:"absolute_offset"`
	Shape          []int64 `json:"shape" yaml:"shape,flow" cbor:"shape"`
	Stride         []int64 `json:"stride" yaml:"stride,flow" cbor:"stride"`
	RequiresGrad   bool    `json:"requires_grad" yaml:"requires_grad" cbor:"requires_grad"`
	Digest         string  `json:"digest,omitempty" yaml:"digest,omitempty" cbor:"digest,omitempty"`
}

// Tensors writes tensor metadata in format. Text output is a table.
func Tensors(w io.Writer, format string, tensors []torch.Tensor) error {
	if format == "text" {
		return tensorTable(w, tensors)
	}
	recs := make([]tensorRecord, len(tensors))
	for i, t := range tensors {
		recs[i] = tensorRecord{
			Name:           t.Name,
			Device:         t.Device,
			Type:           string(t.Type),
			Storage:        t.Storage,
			StorageLen:     t.StorageLen,
			StorageOffset:  t.StorageOffset,
			AbsoluteOffset: t.AbsoluteOffset,
			Shape:          nonNil(t.Shape),
			Stride:         nonNil(t.Stride),
			RequiresGrad:   t.RequiresGrad,
			Digest:         hex.EncodeToString(t.Digest),
		}
	}
	return encode(w, format, recs)
}

func tensorTable(w io.Writer, tensors []torch.Tensor) error {
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tTYPE\tDEVICE\tSHAPE\tSTRIDE\tSTORAGE\tOFFSET\tGRAD")
	for _, t := range tensors {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%d\t%t\n",
			t.Name, t.Type, t.Device, dims(t.Shape), dims(t.Stride),
			t.Storage, t.AbsoluteOffset, t.RequiresGrad)
	}
	return tw.Flush()
}

func dims(d []int64) string {
	s := make([]string, len(d))
	for i, n := range d {
		s[i] = fmt.Sprint(n)
	}
	return "(" + strings.Join(s, ", ") + ")"
}

func nonNil(d []int64) []int64 {
	if d == nil {
		return []int64{}
	}
	return d
}
