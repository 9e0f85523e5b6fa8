package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/graphport/graphport/internal/config"
	"github.com/graphport/graphport/internal/source"
	"github.com/graphport/graphport/internal/target"
)

// globalOptions carries the connection and batching flags shared by every
// subcommand.
type globalOptions struct {
	configPath string

	sourceURI      string
	sourceUser     string
	sourcePassword string
	sourceDatabase string

	targetAddr     string
	targetUser     string
	targetPassword string

	batchSize   int
	concurrency int
	verbose     bool
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:           "graphport",
		Short:         "Migrate property graphs from Neo4j into FalkorDB through CSV shards",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelInfo
			if opts.verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "path to the migration config (TOML); identity mapping when omitted")
	pf.StringVar(&opts.sourceURI, "source-uri", envOr("NEO4J_URI", "bolt://localhost:7687"), "source Bolt URI")
	pf.StringVar(&opts.sourceUser, "source-user", envOr("NEO4J_USERNAME", "neo4j"), "source username")
	pf.StringVar(&opts.sourcePassword, "source-password", os.Getenv("NEO4J_PASSWORD"), "source password")
	pf.StringVar(&opts.sourceDatabase, "source-database", envOr("NEO4J_DATABASE", "neo4j"), "source database name")
	pf.StringVar(&opts.targetAddr, "target-addr", envOr("FALKORDB_ADDR", "localhost:6379"), "target host:port")
	pf.StringVar(&opts.targetUser, "target-user", os.Getenv("FALKORDB_USERNAME"), "target (admin) username")
	pf.StringVar(&opts.targetPassword, "target-password", os.Getenv("FALKORDB_PASSWORD"), "target (admin) password")
	pf.IntVar(&opts.batchSize, "batch-size", 0, "rows per batch (default from config)")
	pf.IntVar(&opts.concurrency, "concurrency", 0, "parallel shards/tenants (default from config)")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")

	cmd.AddCommand(newAnalyzeCmd(opts))
	cmd.AddCommand(newExtractCmd(opts))
	cmd.AddCommand(newLoadCmd(opts))
	return cmd
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func (g *globalOptions) loadConfig() (*config.Config, error) {
	if g.configPath == "" {
		slog.Info("no config file given, using identity mapping")
		return config.Default(), nil
	}
	return config.Load(g.configPath)
}

func (g *globalOptions) connectSource(ctx context.Context) (*source.Neo4jSource, error) {
	return source.NewNeo4jSource(ctx, g.sourceURI, g.sourceUser, g.sourcePassword, g.sourceDatabase)
}

func (g *globalOptions) connectTarget(ctx context.Context) (*target.FalkorTarget, error) {
	return target.NewFalkorTarget(ctx, g.targetAddr, g.targetUser, g.targetPassword)
}
