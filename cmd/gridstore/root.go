package main

import (
	"log/slog"

	"github.com/spf13/cobra"
)

type globalOptions struct {
	verbose    bool
	s3Bucket   string
	s3Region   string
	s3Endpoint string
}

func newRootCommand() *cobra.Command {
	g := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "gridstore",
		Short: "Inspect and maintain gridstore data",
		Long: `Inspect and maintain gridstore data

Every command takes the store location as its first argument. By default
the location is a local directory. With --s3-bucket the location is the
key prefix inside the bucket.`,

		Example: `  # Summarize a local store
  gridstore info ./world

  # Check every shard of a store kept in S3
  gridstore verify worlds/main --s3-bucket my-bucket --s3-region eu-central-1`,

		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.BoolVarP(&g.verbose, "verbose", "v", false, "log debug output to stderr")
	pf.StringVar(&g.s3Bucket, "s3-bucket", "", "read the store from this S3 bucket")
	pf.StringVar(&g.s3Region, "s3-region", "", "AWS region of the bucket")
	pf.StringVar(&g.s3Endpoint, "s3-endpoint", "", "custom S3 endpoint (path-style addressing)")

	cmd.AddCommand(newInfoCommand(g))
	cmd.AddCommand(newInspectCommand(g))
	cmd.AddCommand(newVerifyCommand(g))
	cmd.AddCommand(newMigrateCommand(g))

	return cmd
}

func (g *globalOptions) logger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelWarn
	if g.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}
