package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/searcher/highlight"
	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/shell"
)

func newBuildCmd(opts *options) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the index and save a snapshot",
		Long: `Build loads the saved snapshot if it is usable and otherwise indexes the
corpus and saves the result. With --force it always indexes the corpus.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := newRuntime(ctx, opts.cfg, highlight.Wrap("", ""))
			if err != nil {
				return err
			}
			defer rt.Close()

			if force {
				err = rt.engine.Rebuild(ctx)
			} else {
				err = rt.engine.Open(ctx)
			}
			if err != nil {
				return err
			}
			st := rt.engine.Status()
			fmt.Fprintf(cmd.OutOrStdout(), "generation %s (%s): %d documents, %d lines, %d terms, %d postings\n",
				st.Generation, st.Origin, st.Stats.Documents, st.Stats.Lines, st.Stats.Terms, st.Stats.Postings)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "ignore any saved snapshot and rebuild from the corpus")
	return cmd
}

func newSearchCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "search <words...>",
		Short: "Run one query and print every matching line",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := newRuntime(ctx, opts.cfg, terminalMark(opts.cfg.Search, os.Stdout))
			if err != nil {
				return err
			}
			defer rt.Close()
			if err := rt.engine.Open(ctx); err != nil {
				return err
			}
			res, _, err := rt.service.Search(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			shell.Print(cmd.OutOrStdout(), res)
			return nil
		},
	}
}
