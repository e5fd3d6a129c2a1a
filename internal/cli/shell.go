package cli

import (
	"context"
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/shell"
)

func newShellCmd(opts *options) *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "shell",
		Short: "Query interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShell(cmd, opts, watch)
		},
	}
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "rebuild when the corpus directory changes")
	return cmd
}

func runShell(cmd *cobra.Command, opts *options, watch bool) error {
	rt, err := newRuntime(cmd.Context(), opts.cfg, terminalMark(opts.cfg.Search, os.Stdout))
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	if err := rt.engine.Open(ctx); err != nil {
		return err
	}
	if watch {
		rt.cfg.Corpus.Watch = true
	}
	rt.watch(ctx)
	defer rt.serveMetrics()()

	sh := shell.New(rt.service, shell.Config{
		In:        cmd.InOrStdin(),
		Out:       cmd.OutOrStdout(),
		PageSize:  opts.cfg.Search.PageSize,
		QuitInput: opts.cfg.Search.QuitInput,
	})
	if err := sh.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
