// Package cli implements the linesearch command-line interface.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/Adithya-Monish-Kumar-K/linesearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/linesearch/pkg/logger"
)

// options holds persistent flags and the config they resolve to.
type options struct {
	configPath string
	corpusDir  string
	backend    string
	logLevel   string
	color      string
	workers    int

	cfg *config.Config
}

// NewRootCmd builds the command tree. Running it without a subcommand starts
// the interactive shell.
func NewRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "linesearch",
		Short: "Search a directory of text files line by line",
		Long: `linesearch builds an inverted index over every line of every file in a
corpus directory and answers free-text queries with the matching lines,
highlighted, ordered by document and line.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShell(cmd, opts, false)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "path to YAML config file")
	flags.StringVar(&opts.corpusDir, "corpus", "", "corpus directory (overrides config)")
	flags.StringVar(&opts.backend, "snapshot", "", "snapshot backend: file, sqlite, postgres or none")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn or error")
	flags.StringVar(&opts.color, "color", "", "highlight color: auto, always or never")
	flags.IntVar(&opts.workers, "workers", 0, "build workers, 0 for one per CPU")

	root.AddCommand(
		newBuildCmd(opts),
		newSearchCmd(opts),
		newShellCmd(opts),
		newServeCmd(opts),
	)
	return root
}

// Execute runs the CLI against os.Args. An interrupt or SIGTERM cancels the
// running command.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return NewRootCmd().ExecuteContext(ctx)
}

func (o *options) load(cmd *cobra.Command) error {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := o.apply(cfg, cmd.Flags()); err != nil {
		return err
	}
	logger.SetupWriter(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)
	o.cfg = cfg
	return nil
}

// apply overrides cfg with the flags that were set explicitly.
func (o *options) apply(cfg *config.Config, flags *pflag.FlagSet) error {
	if flags.Changed("corpus") {
		cfg.Corpus.Dir = o.corpusDir
	}
	if flags.Changed("snapshot") {
		cfg.Snapshot.Backend = o.backend
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = o.logLevel
	}
	if flags.Changed("color") {
		cfg.Search.Color = o.color
	}
	if flags.Changed("workers") {
		cfg.Indexer.Workers = o.workers
	}
	return cfg.Validate()
}
