// Package cli implements the ogpeek command line.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.brendoncarroll.net/stdctx/logctx"
	"go.uber.org/zap"

	"github.com/kisielk/ogpeek"
	"github.com/kisielk/ogpeek/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	Format     string
	Verbose    int
	MaxDepth   int
	NoResolve  bool

	// set up by the root command before a subcommand runs
	config *config.Config
	log    *zap.Logger
}

// NewRootCommand creates the root command of ogpeek.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "ogpeek",
		Short: "ogpeek - look into Python pickles",
		Long: `Decode and evaluate Python pickle streams without running any Python code.

Calls, class instances and persistent ids are shown as they are recorded in
the pickle. Zip archives written by torch.save are read through their
data.pkl member.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if opts.log != nil {
				_ = opts.log.Sync()
			}
		},
	}

	// Global flags
	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.ConfigPath, "config", "", "configuration file (default: "+config.FileName+" in the current or a parent directory)")
	pf.StringVar(&opts.Format, "format", "text", fmt.Sprintf("output format %v", config.Formats))
	pf.CountVarP(&opts.Verbose, "verbose", "v", "log progress to stderr; repeat to trace evaluation")
	pf.IntVar(&opts.MaxDepth, "max-depth", ogpeek.DefaultMaxDepth, "maximum depth of memo reference resolution")
	pf.BoolVar(&opts.NoResolve, "no-resolve", false, "keep memo references unresolved")

	cmd.AddCommand(NewOpsCommand(opts))
	cmd.AddCommand(NewDumpCommand(opts))
	cmd.AddCommand(NewTensorsCommand(opts))

	return cmd
}

// setup loads the configuration, applies flags given on the command line on
// top of it and puts the logger into the command context.
func (opts *RootOptions) setup(cmd *cobra.Command) error {
	var c *config.Config
	var err error
	if opts.ConfigPath != "" {
		c, err = config.Load(opts.ConfigPath)
	} else {
		c, err = config.Find(".")
	}
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("format") {
		c.Format = opts.Format
	}
	if flags.Changed("max-depth") {
		c.MaxDepth = opts.MaxDepth
	}
	if flags.Changed("no-resolve") {
		c.Resolve = !opts.NoResolve
	}
	if err := c.Validate(); err != nil {
		return err
	}
	opts.config = c

	opts.log, err = newLogger(opts.Verbose)
	if err != nil {
		return err
	}
	ctx := logctx.NewContext(cmd.Context(), opts.log)
	cmd.SetContext(ctx)
	if c.Path != "" {
		logctx.Info(ctx, "loaded config", zap.String("path", c.Path))
	}
	return nil
}

func newLogger(verbose int) (*zap.Logger, error) {
	if verbose == 0 {
		return zap.NewNop(), nil
	}
	zc := zap.NewDevelopmentConfig()
	if verbose == 1 {
		zc.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	return zc.Build()
}

// evalConfig returns the evaluation configuration selected by the flags.
func (opts *RootOptions) evalConfig() *ogpeek.Config {
	c := &ogpeek.Config{MaxDepth: opts.config.MaxDepth}
	if opts.Verbose > 1 {
		c.Logger = opts.log
	}
	return c
}
