package main

import (
	"github.com/spf13/cobra"

	"github.com/graphport/graphport/internal/migrate"
)

func newExtractCmd(g *globalOptions) *cobra.Command {
	var (
		outDir      string
		nodesOnly   bool
		edgesOnly   bool
		indexesOnly bool
	)

	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract the source graph into CSV shards",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}

			src, err := g.connectSource(ctx)
			if err != nil {
				return err
			}
			defer src.Close(ctx)

			orch := migrate.NewOrchestrator(cfg, src, nil)
			summary, err := orch.Extract(ctx, migrate.ExtractOptions{
				OutDir:      outDir,
				BatchSize:   g.batchSize,
				Concurrency: g.concurrency,
				NodesOnly:   nodesOnly,
				EdgesOnly:   edgesOnly,
				IndexesOnly: indexesOnly,
			})
			if err != nil {
				return err
			}

			summary.Log()
			return nil
		},
	}

	cmd.Flags().StringVar(&outDir, "out", "csv_output", "output directory for CSV shards")
	cmd.Flags().BoolVar(&nodesOnly, "nodes-only", false, "extract only node shards")
	cmd.Flags().BoolVar(&edgesOnly, "edges-only", false, "extract only edge shards")
	cmd.Flags().BoolVar(&indexesOnly, "indexes-only", false, "extract only index/constraint metadata")
	cmd.MarkFlagsMutuallyExclusive("nodes-only", "edges-only", "indexes-only")
	return cmd
}
