package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newMigrateCommand(g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate <location>",
		Short: "Rewrite legacy shards under modern names",
		Long: `Rewrite legacy shards under modern names

Older stores wrote unversioned shards as p.<key>.ttp.lz4b. Migrate
rewrites each of them as pv.<key>.ttp.lz4b and removes legacy blobs that
a modern blob already shadows. Local stores are locked for the duration,
so the command fails while a process has the store open.`,

		Example: `  gridstore migrate ./world`,

		Args: cobra.ExactArgs(1),

		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			t, err := g.openTarget(ctx, args[0], g.logger(cmd), true)
			if err != nil {
				return err
			}
			defer t.Close()

			n, err := t.regions.Migrate(ctx)
			fmt.Fprintf(cmd.OutOrStdout(), "migrated %d legacy shards\n", n)
			return err
		},
	}

	return cmd
}
