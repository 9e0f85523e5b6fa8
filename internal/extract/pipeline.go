// Package extract pages the source graph into deterministic CSV shards.
// Nodes are numbered with dense export ids as they stream out; edges
// reference endpoints by export id only, so the shard set is self-contained.
package extract

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"

	"github.com/graphport/graphport/internal/config"
	"github.com/graphport/graphport/internal/identity"
	"github.com/graphport/graphport/internal/source"
	"github.com/graphport/graphport/internal/tenant"
	"github.com/graphport/graphport/internal/topology"
	"github.com/graphport/graphport/internal/transform"
)

const maxBatchRetries = 3

type Options struct {
	OutDir        string
	BatchSize     int
	Concurrency   int
	Scope         tenant.Scope
	RetryInterval time.Duration
}

// ShardCount tracks one CSV shard's outcome. Partial marks shards whose
// source read failed after retries; already-written rows remain valid.
type ShardCount struct {
	File      string
	Processed int64
	Skipped   int64
	Failed    int64
	Partial   bool
}

type Result struct {
	Nodes map[string]*ShardCount
	Edges map[string]*ShardCount
}

func (r *Result) NodeFiles() []string { return shardFiles(r.Nodes) }
func (r *Result) EdgeFiles() []string { return shardFiles(r.Edges) }

func shardFiles(counts map[string]*ShardCount) []string {
	files := make([]string, 0, len(counts))
	for _, c := range counts {
		if c.File != "" {
			files = append(files, c.File)
		}
	}
	return files
}

type Pipeline struct {
	src    source.Querier
	cfg    *config.Config
	opts   Options
	ids    *identity.Index
	result *Result
}

func NewPipeline(src source.Querier, cfg *config.Config, opts Options) *Pipeline {
	if opts.BatchSize == 0 {
		opts.BatchSize = cfg.Batch.Size
	}
	if opts.Concurrency == 0 {
		opts.Concurrency = cfg.Batch.Concurrency
	}
	if opts.RetryInterval == 0 {
		opts.RetryInterval = 500 * time.Millisecond
	}
	return &Pipeline{
		src:  src,
		cfg:  cfg,
		opts: opts,
		ids:  identity.NewIndex(),
		result: &Result{
			Nodes: make(map[string]*ShardCount),
			Edges: make(map[string]*ShardCount),
		},
	}
}

func (p *Pipeline) Result() *Result { return p.result }

// Nodes runs the node phase for every exported label. The phase is
// sequential so export id assignment is deterministic across runs. With
// write false it only rebuilds the identity index, which lets an edges-only
// run resolve endpoints against the ids of a previous extraction.
func (p *Pipeline) Nodes(ctx context.Context, sum *topology.Summary, write bool) error {
	if write {
		if err := os.MkdirAll(p.opts.OutDir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	for _, label := range p.exportedLabels(sum) {
		if err := p.nodeShard(ctx, label, sum.LabelKeys[label], write); err != nil {
			return err
		}
	}
	return nil
}

// Edges runs the edge phase. Independent relationship types have no data
// dependency, so shards run in parallel bounded by the configured
// concurrency; the identity index is read-only by now.
func (p *Pipeline) Edges(ctx context.Context, sum *topology.Summary) error {
	if err := os.MkdirAll(p.opts.OutDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	// Every shard entry must exist before the first goroutine starts, so
	// the goroutines only ever read the result map.
	exported := make([]string, 0, len(sum.RelationshipTypes))
	for _, relType := range sum.RelationshipTypes {
		if p.cfg.SkipType(relType) {
			continue
		}
		p.result.Edges[relType] = &ShardCount{}
		exported = append(exported, relType)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Concurrency)
	for _, relType := range exported {
		relType := relType
		g.Go(func() error {
			return p.edgeShard(gctx, relType, sum.TypeKeys[relType])
		})
	}
	return g.Wait()
}

func (p *Pipeline) exportedLabels(sum *topology.Summary) []string {
	labels := make([]string, 0, len(sum.Labels))
	for _, label := range sum.Labels {
		if p.cfg.SkipLabel(label) || label == p.opts.Scope.ExcludeLabel {
			continue
		}
		// Tenant marker labels partition the graph, they are not data.
		if p.cfg.Tenant.Mode == config.TenantModeLabel &&
			strings.HasPrefix(label, p.cfg.Tenant.Filter) {
			continue
		}
		labels = append(labels, label)
	}
	return labels
}

func (p *Pipeline) nodeShard(ctx context.Context, label string, keys []string, write bool) error {
	rules := p.cfg.LabelRules(label)
	srcKeys, header := p.shardColumns([]string{"id", "labels"}, keys, rules)

	counts := &ShardCount{}
	p.result.Nodes[label] = counts

	var w *csv.Writer
	if write {
		// Shards are named after the target label so the load side and the
		// generated scripts agree on file names when labels are renamed.
		path := filepath.Join(p.opts.OutDir, fmt.Sprintf("nodes_%s.csv", strings.ToLower(p.cfg.LabelTarget(label))))
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create shard %s: %w", path, err)
		}
		defer f.Close()
		counts.File = path
		w = csv.NewWriter(f)
		if err := w.Write(header); err != nil {
			return err
		}
	}

	query := fmt.Sprintf(source.ScanNodesQuery, label, p.opts.Scope.NodeFilter)
	skip := 0
	for {
		records, err := p.queryBatch(ctx, query, skip)
		if err != nil {
			counts.Partial = true
			slog.Warn("node batch read failed after retries, shard is partial",
				"label", label, "offset", skip, "error", err)
			break
		}
		if len(records) == 0 {
			break
		}

		for _, rec := range records {
			exportID := p.ids.Assign(identity.SourceID(rec.Int64Of("node_id")))
			if !write {
				continue
			}
			row := make([]string, 0, len(header))
			row = append(row,
				strconv.FormatInt(int64(exportID), 10),
				p.mapLabels(rec.StringsOf("labels")))
			row = p.appendCells(row, rec.MapOf("props"), srcKeys, rules, counts)
			if err := w.Write(row); err != nil {
				return fmt.Errorf("failed to write shard for %s: %w", label, err)
			}
			counts.Processed++
		}

		if write {
			w.Flush()
			if err := w.Error(); err != nil {
				return fmt.Errorf("failed to flush shard for %s: %w", label, err)
			}
		}
		skip += len(records)
	}

	if write {
		w.Flush()
		slog.Info("node shard extracted", "label", label,
			"rows", counts.Processed, "partial", counts.Partial)
	}
	return nil
}

func (p *Pipeline) edgeShard(ctx context.Context, relType string, keys []string) error {
	rules := p.cfg.TypeRules(relType)
	target := p.cfg.TypeTarget(relType)
	// The type column carries the exact target type; file names are
	// lowercased and cannot round-trip a mixed-case type on their own.
	srcKeys, header := p.shardColumns([]string{"source", "target", "type"}, keys, rules)

	counts := p.result.Edges[relType]
	path := filepath.Join(p.opts.OutDir, fmt.Sprintf("edges_%s.csv", strings.ToLower(target)))
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create shard %s: %w", path, err)
	}
	defer f.Close()
	counts.File = path

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return err
	}

	query := fmt.Sprintf(source.ScanRelationshipsQuery, relType, p.opts.Scope.EdgeFilter)
	skip := 0
	for {
		records, err := p.queryBatch(ctx, query, skip)
		if err != nil {
			counts.Partial = true
			slog.Warn("edge batch read failed after retries, shard is partial",
				"type", relType, "offset", skip, "error", err)
			break
		}
		if len(records) == 0 {
			break
		}

		for _, rec := range records {
			srcID, srcOK := p.ids.Resolve(identity.SourceID(rec.Int64Of("source_id")))
			dstID, dstOK := p.ids.Resolve(identity.SourceID(rec.Int64Of("target_id")))
			if !srcOK || !dstOK {
				// Endpoint never exported (tenant filter or skipped
				// label): the edge is counted, not an error.
				counts.Skipped++
				continue
			}
			row := make([]string, 0, len(header))
			row = append(row,
				strconv.FormatInt(int64(srcID), 10),
				strconv.FormatInt(int64(dstID), 10),
				target)
			row = p.appendCells(row, rec.MapOf("props"), srcKeys, rules, counts)
			if err := w.Write(row); err != nil {
				return fmt.Errorf("failed to write shard for %s: %w", relType, err)
			}
			counts.Processed++
		}

		w.Flush()
		if err := w.Error(); err != nil {
			return fmt.Errorf("failed to flush shard for %s: %w", relType, err)
		}
		skip += len(records)
	}

	w.Flush()
	slog.Info("edge shard extracted", "type", relType,
		"rows", counts.Processed, "skipped", counts.Skipped, "partial", counts.Partial)
	return nil
}

// shardColumns resolves the exported column set: structural columns first,
// then discovered property keys mapped through the rules, minus drops and
// the tenant partition key.
func (p *Pipeline) shardColumns(structural, keys []string, rules map[string]config.PropertyRule) (srcKeys, header []string) {
	header = append(header, structural...)
	for _, key := range keys {
		if key == p.opts.Scope.ExcludeProperty {
			continue
		}
		target, keep := transform.TargetKey(key, rules)
		if !keep {
			continue
		}
		srcKeys = append(srcKeys, key)
		header = append(header, target)
	}
	return srcKeys, header
}

func (p *Pipeline) appendCells(row []string, props map[string]any, srcKeys []string, rules map[string]config.PropertyRule, counts *ShardCount) []string {
	for _, key := range srcKeys {
		value, ok := props[key]
		if !ok || value == nil {
			row = append(row, "")
			continue
		}
		coerced, fellBack := transform.CoerceValue(key, value, rules[key])
		if fellBack {
			counts.Failed++
		}
		row = append(row, transform.CellString(coerced))
	}
	return row
}

// mapLabels renders the labels column: tenant marker labels are withheld,
// remaining labels are renamed per config and joined with ":".
func (p *Pipeline) mapLabels(labels []string) string {
	mapped := make([]string, 0, len(labels))
	for _, label := range labels {
		if label == p.opts.Scope.ExcludeLabel {
			continue
		}
		if p.cfg.Tenant.Mode == config.TenantModeLabel &&
			strings.HasPrefix(label, p.cfg.Tenant.Filter) {
			continue
		}
		mapped = append(mapped, p.cfg.LabelTarget(label))
	}
	return strings.Join(mapped, ":")
}

// queryBatch reads one page, retrying transient failures with exponential
// backoff before giving up and degrading the shard to partial.
func (p *Pipeline) queryBatch(ctx context.Context, query string, skip int) ([]source.Record, error) {
	params := map[string]any{
		"skip":  skip,
		"limit": p.opts.BatchSize,
	}
	for k, v := range p.opts.Scope.Params {
		params[k] = v
	}

	var records []source.Record
	operation := func() error {
		var err error
		records, err = p.src.Query(ctx, query, params)
		return err
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.opts.RetryInterval
	if err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(bo, maxBatchRetries), ctx)); err != nil {
		return nil, err
	}
	return records, nil
}
