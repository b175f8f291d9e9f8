package cli

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.brendoncarroll.net/stdctx/logctx"
	"go.uber.org/zap"

	"github.com/kisielk/ogpeek"
	"github.com/kisielk/ogpeek/internal/render"
	"github.com/kisielk/ogpeek/torch"
)

// NewOpsCommand creates the ops command.
func NewOpsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ops <file>",
		Short: "Disassemble pickle opcodes",
		Long: `Decode every opcode of the file and print it with its position.

Nothing is evaluated, so this also works for pickles the evaluator rejects.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readPickle(cmd, args[0])
			if err != nil {
				return err
			}
			insns, err := ogpeek.DecodeAll(data)
			if err != nil {
				return err
			}
			return render.Instructions(cmd.OutOrStdout(), rootOpts.config.Format, insns)
		},
	}
}

// NewDumpCommand creates the dump command.
func NewDumpCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "dump <file>",
		Short: "Evaluate pickles and print the resulting values",
		Long: `Evaluate every pickle of the file, one after another, and print the values
left on the stack of each.

Memo references are resolved unless --no-resolve is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readPickle(cmd, args[0])
			if err != nil {
				return err
			}
			c := rootOpts.config
			dec := ogpeek.NewDecoder(data, c.Resolve, rootOpts.evalConfig())
			var vals []ogpeek.Value
			n := 0
			for {
				v, _, err := dec.Decode()
				if errors.Is(err, io.EOF) {
					break
				}
				if err != nil {
					return fmt.Errorf("pickle #%d: %w", n, err)
				}
				vals = append(vals, v...)
				n++
			}
			logctx.Infof(cmd.Context(), "evaluated %d pickles from %s", n, args[0])
			return render.Values(cmd.OutOrStdout(), c.Format, vals)
		},
	}
}

// NewTensorsCommand creates the tensors command.
func NewTensorsCommand(rootOpts *RootOptions) *cobra.Command {
	var digest bool
	cmd := &cobra.Command{
		Use:   "tensors <checkpoint>",
		Short: "List tensors of a PyTorch checkpoint",
		Long: `List the tensors of a zip checkpoint written by torch.save together with
their type, shape and the offset of their data in the checkpoint file.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := rootOpts.config
			opts := c.TorchOptions()
			if cmd.Flags().Changed("digest") {
				opts.Digest = digest
			}
			if rootOpts.Verbose > 1 {
				opts.Logger = rootOpts.log
			}
			tensors, err := torch.Open(cmd.Context(), args[0], opts)
			if err != nil {
				return err
			}
			return render.Tensors(cmd.OutOrStdout(), c.Format, tensors)
		},
	}
	cmd.Flags().BoolVar(&digest, "digest", false, "compute BLAKE3 digest of every storage")
	return cmd
}

// zipMagic starts every zip archive with at least one member.
var zipMagic = []byte("PK\x03\x04")

// readPickle returns the pickle stored in file. For zip archives it is
// their data.pkl member.
func readPickle(cmd *cobra.Command, file string) ([]byte, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	if !bytes.HasPrefix(data, zipMagic) {
		return data, nil
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}
	pkl, pfx, err := torch.ReadPickle(zr)
	if err != nil {
		return nil, err
	}
	logctx.Debug(cmd.Context(), "reading archive member", zap.String("file", file), zap.String("member", pfx+"/data.pkl"))
	return pkl, nil
}
