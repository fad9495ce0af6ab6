package main

import (
	"errors"
	"fmt"
	"runtime"
	"sort"
	"sync"

	"github.com/hupe1980/gridstore/gridkey"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// errVerify is returned when at least one shard failed verification.
var errVerify = errors.New("verification failed")

type shardProblem struct {
	X       int32  `json:"x"`
	Z       int32  `json:"z"`
	Corrupt bool   `json:"corrupt,omitempty"`
	Error   string `json:"error,omitempty"`
}

type verifyReport struct {
	Shards   int            `json:"shards"`
	Problems []shardProblem `json:"problems"`
}

func newVerifyCommand(g *globalOptions) *cobra.Command {
	var (
		parallel int
		showJSON bool
	)

	cmd := &cobra.Command{
		Use:   "verify <location>",
		Short: "Decode every shard and report corruption",
		Long: `Decode every shard and report corruption

Reads and decodes every persisted shard. A shard is reported when its
checksum does not match, a cell fails to decode or the blob cannot be
read at all. The command exits non-zero if any shard is reported.`,

		Example: `  gridstore verify ./world
  gridstore verify ./world --parallel 16 --json`,

		Args: cobra.ExactArgs(1),

		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			t, err := g.openTarget(ctx, args[0], g.logger(cmd), false)
			if err != nil {
				return err
			}
			defer t.Close()

			keys, err := t.regions.Keys(ctx)
			if err != nil {
				return fmt.Errorf("list regions: %w", err)
			}

			var (
				mu     sync.Mutex
				report = verifyReport{Shards: len(keys), Problems: []shardProblem{}}
			)
			eg, ectx := errgroup.WithContext(ctx)
			eg.SetLimit(max(parallel, 1))
			for _, k := range keys {
				eg.Go(func() error {
					_, corrupt, err := t.regions.ReadChecked(ectx, k)
					if err := ectx.Err(); err != nil {
						return err
					}
					if !corrupt && err == nil {
						return nil
					}
					p := shardProblem{X: k.X(), Z: k.Z(), Corrupt: corrupt}
					if err != nil {
						p.Error = err.Error()
					}
					mu.Lock()
					report.Problems = append(report.Problems, p)
					mu.Unlock()
					return nil
				})
			}
			if err := eg.Wait(); err != nil {
				return err
			}
			sort.Slice(report.Problems, func(i, j int) bool {
				return gridkey.Encode(report.Problems[i].X, report.Problems[i].Z) <
					gridkey.Encode(report.Problems[j].X, report.Problems[j].Z)
			})

			if showJSON {
				if err := writeJSON(cmd, report); err != nil {
					return err
				}
			} else {
				printVerify(cmd, report)
			}
			if len(report.Problems) > 0 {
				return fmt.Errorf("%w: %d of %d shards", errVerify, len(report.Problems), report.Shards)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&parallel, "parallel", "p", runtime.NumCPU(), "shards decoded concurrently")
	cmd.Flags().BoolVar(&showJSON, "json", false, "print the report as JSON")

	return cmd
}

func printVerify(cmd *cobra.Command, r verifyReport) {
	out := cmd.OutOrStdout()
	for _, p := range r.Problems {
		switch {
		case p.Error != "":
			fmt.Fprintf(out, "✗ shard %d,%d unreadable: %s\n", p.X, p.Z, p.Error)
		default:
			fmt.Fprintf(out, "✗ shard %d,%d corrupt\n", p.X, p.Z)
		}
	}
	if len(r.Problems) == 0 {
		fmt.Fprintf(out, "✓ %d shards verified\n", r.Shards)
		return
	}
	fmt.Fprintf(out, "%d of %d shards failed verification\n", len(r.Problems), r.Shards)
}
