package main

import (
	"fmt"

	"github.com/hupe1980/gridstore"
	"github.com/hupe1980/gridstore/codec"
	"github.com/hupe1980/gridstore/regionio"
	"github.com/spf13/cobra"
)

type infoReport struct {
	Location     string              `json:"location"`
	Manifest     *gridstore.Manifest `json:"manifest"`
	Shards       int                 `json:"shards"`
	LegacyBlobs  int                 `json:"legacy_blobs"`
	Bytes        int64               `json:"bytes"`
}

func newInfoCommand(g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "info <location>",
		Short: "Show store manifest and size",
		Long: `Show store manifest and size

Prints the manifest together with the number of persisted shards and
their total stored size as JSON.`,

		Example: `  gridstore info ./world`,

		Args: cobra.ExactArgs(1),

		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			t, err := g.openTarget(ctx, args[0], g.logger(cmd), false)
			if err != nil {
				return err
			}
			defer t.Close()

			names, err := t.blobs.List(ctx, "p")
			if err != nil {
				return fmt.Errorf("list regions: %w", err)
			}

			report := infoReport{Location: args[0], Manifest: t.manifest}
			seen := make(map[int64]struct{}, len(names))
			for _, name := range names {
				k, legacy, ok := regionio.ParseName(name)
				if !ok {
					continue
				}
				size, err := t.blobSize(ctx, name)
				if err != nil {
					return fmt.Errorf("size of %s: %w", name, err)
				}
				report.Bytes += size
				if legacy {
					report.LegacyBlobs++
				}
				seen[int64(k)] = struct{}{}
			}
			report.Shards = len(seen)

			return writeJSON(cmd, report)
		},
	}

	return cmd
}

func writeJSON(cmd *cobra.Command, v any) error {
	data, err := codec.Pretty(codec.Default, v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return err
}
