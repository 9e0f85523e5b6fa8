package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/graphport/graphport/internal/load"
	"github.com/graphport/graphport/internal/migrate"
)

func newLoadCmd(g *globalOptions) *cobra.Command {
	var (
		dir         string
		graph       string
		mode        string
		multiGraph  bool
		stats       bool
		createUser  string
		userPass    string
		userScope   string
		lockDefault bool
	)

	cmd := &cobra.Command{
		Use:   "load",
		Short: "Load CSV shards into a FalkorDB graph",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if mode != string(load.ModeInsert) && mode != string(load.ModeUpsert) {
				return fmt.Errorf("invalid --mode %q: want %q or %q", mode, load.ModeInsert, load.ModeUpsert)
			}
			if lockDefault && createUser == "" {
				return fmt.Errorf("--lock-default requires --create-user")
			}

			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}

			tgt, err := g.connectTarget(ctx)
			if err != nil {
				return err
			}
			defer tgt.Close()

			opts := migrate.LoadOptions{
				Dir:         dir,
				Graph:       graph,
				BatchSize:   g.batchSize,
				Concurrency: g.concurrency,
				Mode:        load.Mode(mode),
				MultiGraph:  multiGraph,
				Stats:       stats,
			}
			if createUser != "" {
				opts.Credentials = &load.Credentials{
					Username:    createUser,
					Password:    userPass,
					Scope:       userScope,
					LockDefault: lockDefault,
				}
			}

			summary, err := migrate.NewOrchestrator(cfg, nil, tgt).Load(ctx, opts)
			if summary != nil {
				summary.Log()
			}
			return err
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "csv_output", "directory holding the CSV shards")
	cmd.Flags().StringVar(&graph, "graph", "graph", "target graph name (prefix in multi-graph mode)")
	cmd.Flags().StringVar(&mode, "mode", string(load.ModeUpsert), "load mode: insert (fast, duplicates on re-run) or upsert (replay-safe)")
	cmd.Flags().BoolVar(&multiGraph, "multi-graph", false, "load each tenant subdirectory into its own graph")
	cmd.Flags().BoolVar(&stats, "stats", false, "count nodes and relationships on the target after loading")
	cmd.Flags().StringVar(&createUser, "create-user", "", "provision this target username after loading")
	cmd.Flags().StringVar(&userPass, "user-password", "", "password for the provisioned user")
	cmd.Flags().StringVar(&userScope, "user-scope", load.CredentialScopeGraph, "credential scope: graph or all")
	cmd.Flags().BoolVar(&lockDefault, "lock-default", false, "disable the default unauthenticated user after verified provisioning")
	return cmd
}
