package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/graphport/graphport/internal/topology"
)

func newAnalyzeCmd(g *globalOptions) *cobra.Command {
	var templatePath string

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Discover source topology and emit a migration config template",
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

			sum, err := topology.NewAnalyzer(src, cfg.Analysis.SampleSize).Analyze(ctx)
			if err != nil {
				return err
			}

			for _, label := range sum.Labels {
				slog.Info("label", "name", label,
					"nodes", sum.LabelCounts[label], "properties", len(sum.LabelKeys[label]))
			}
			for _, relType := range sum.RelationshipTypes {
				slog.Info("relationship type", "name", relType,
					"relationships", sum.TypeCounts[relType], "properties", len(sum.TypeKeys[relType]))
			}

			if templatePath != "" {
				if err := sum.WriteTemplate(templatePath); err != nil {
					return err
				}
				slog.Info("config template written", "path", templatePath)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&templatePath, "template", "migrate_config.toml",
		"where to write the config template (empty to skip)")
	return cmd
}
