// Package migrate drives the extraction and load pipelines across tenant
// scopes. Single-tenant and multi-tenant runs share the same pipelines; the
// orchestrator only varies the scope, output directory and graph name.
package migrate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/graphport/graphport/internal/config"
	"github.com/graphport/graphport/internal/extract"
	"github.com/graphport/graphport/internal/load"
	"github.com/graphport/graphport/internal/source"
	"github.com/graphport/graphport/internal/target"
	"github.com/graphport/graphport/internal/tenant"
	"github.com/graphport/graphport/internal/topology"
)

type Orchestrator struct {
	cfg *config.Config
	src source.Querier
	tgt target.Commander
}

func NewOrchestrator(cfg *config.Config, src source.Querier, tgt target.Commander) *Orchestrator {
	return &Orchestrator{cfg: cfg, src: src, tgt: tgt}
}

type ExtractOptions struct {
	OutDir      string
	BatchSize   int
	Concurrency int
	NodesOnly   bool
	EdgesOnly   bool
	IndexesOnly bool
}

// Extract analyzes the source, partitions it into tenant scopes, and runs
// the extraction pipeline once per scope. Tenants share no mutable state, so
// they run in parallel bounded by the configured concurrency.
func (o *Orchestrator) Extract(ctx context.Context, opts ExtractOptions) (*Summary, error) {
	analyzer := topology.NewAnalyzer(o.src, o.cfg.Analysis.SampleSize)
	sum, err := analyzer.Analyze(ctx)
	if err != nil {
		return nil, err
	}

	scopes, err := tenant.NewPartitioner(o.src, o.cfg).Scopes(ctx)
	if err != nil {
		return nil, err
	}

	summary := NewSummary()
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency(opts.Concurrency))
	for _, scope := range scopes {
		scope := scope
		g.Go(func() error {
			report, err := o.extractScope(gctx, sum, scope, opts)
			if err != nil {
				return fmt.Errorf("tenant %q extraction failed: %w", scope.ID, err)
			}
			mu.Lock()
			summary.Tenants = append(summary.Tenants, report)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	summary.sortTenants()
	return summary, nil
}

func (o *Orchestrator) extractScope(ctx context.Context, sum *topology.Summary, scope tenant.Scope, opts ExtractOptions) (TenantReport, error) {
	pipeline := extract.NewPipeline(o.src, o.cfg, extract.Options{
		OutDir:      scope.Dir(opts.OutDir),
		BatchSize:   opts.BatchSize,
		Concurrency: o.concurrency(opts.Concurrency),
		Scope:       scope,
	})
	report := TenantReport{Tenant: scope.ID}

	switch {
	case opts.IndexesOnly:
		if err := os.MkdirAll(scope.Dir(opts.OutDir), 0o755); err != nil {
			return report, err
		}
		if _, err := pipeline.Schema(ctx); err != nil {
			return report, err
		}
	case opts.NodesOnly:
		if err := pipeline.Nodes(ctx, sum, true); err != nil {
			return report, err
		}
	case opts.EdgesOnly:
		// Rebuild the identity index without rewriting node shards, so
		// edge rows reference the same export ids as the earlier run.
		if err := pipeline.Nodes(ctx, sum, false); err != nil {
			return report, err
		}
		if err := pipeline.Edges(ctx, sum); err != nil {
			return report, err
		}
	default:
		if err := pipeline.Nodes(ctx, sum, true); err != nil {
			return report, err
		}
		if err := pipeline.Edges(ctx, sum); err != nil {
			return report, err
		}
		objects, err := pipeline.Schema(ctx)
		if err != nil {
			// Older servers without schema introspection still get
			// valid data shards.
			slog.Warn("schema extraction skipped", "tenant", scope.ID, "error", err)
		}
		if err := pipeline.WriteScripts(objects); err != nil {
			return report, err
		}
	}

	report.Extraction = pipeline.Result()
	return report, nil
}

type LoadOptions struct {
	Dir         string
	Graph       string
	BatchSize   int
	Concurrency int
	Mode        load.Mode
	MultiGraph  bool
	Stats       bool
	Credentials *load.Credentials
}

// Load replays shard directories against the target. In multi-graph mode
// every subdirectory of Dir is one tenant and loads into its own graph; a
// single shared credential is provisioned across all tenant graphs.
func (o *Orchestrator) Load(ctx context.Context, opts LoadOptions) (*Summary, error) {
	summary := NewSummary()

	dirs := map[string]string{"": opts.Dir} // tenant id -> shard dir
	if opts.MultiGraph {
		var err error
		dirs, err = tenantDirs(opts.Dir)
		if err != nil {
			return nil, err
		}
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency(opts.Concurrency))
	for id, dir := range dirs {
		id, dir := id, dir
		graph := opts.Graph
		if id != "" {
			graph = opts.Graph + "_" + id
		}
		g.Go(func() error {
			pipeline := load.NewPipeline(o.tgt, load.Options{
				Dir:         dir,
				Graph:       graph,
				BatchSize:   opts.BatchSize,
				Concurrency: o.concurrency(opts.Concurrency),
				Mode:        opts.Mode,
			})
			result, err := pipeline.Run(gctx)
			if err != nil {
				return fmt.Errorf("load into graph %q failed: %w", graph, err)
			}
			report := TenantReport{Tenant: id, Graph: graph, Load: result}
			if opts.Stats {
				stats, err := pipeline.Stats(gctx)
				if err != nil {
					slog.Warn("target verification failed", "graph", graph, "error", err)
				} else {
					report.Stats = stats
				}
			}
			mu.Lock()
			summary.Tenants = append(summary.Tenants, report)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	summary.sortTenants()

	if opts.Credentials != nil {
		patterns := []string{opts.Graph}
		if opts.MultiGraph {
			// One shared credential covering every tenant-derived graph.
			patterns = []string{opts.Graph + "_*"}
		}
		report, err := load.ProvisionUser(ctx, o.tgt, *opts.Credentials, patterns)
		summary.Provision = report
		if err != nil {
			summary.ProvisionErr = err.Error()
			slog.Error("credential provisioning failed", "error", err)
			// Data is loaded either way; only a failed or refused
			// lockdown makes the run itself fail.
			if opts.Credentials.LockDefault && !report.DefaultLocked {
				return summary, err
			}
		}
	}

	return summary, nil
}

func (o *Orchestrator) concurrency(override int) int {
	if override > 0 {
		return override
	}
	return o.cfg.Batch.Concurrency
}

// tenantDirs lists tenant subdirectories of an extraction root in stable
// order.
func tenantDirs(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read extraction root %s: %w", dir, err)
	}
	dirs := make(map[string]string)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return nil, errors.New("multi-graph load requires one subdirectory per tenant")
	}
	sort.Strings(names)
	for _, name := range names {
		dirs[name] = filepath.Join(dir, name)
	}
	return dirs, nil
}
