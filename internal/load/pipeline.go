// Package load replays extracted CSV shards against a FalkorDB graph:
// schema first, then nodes, then edges, favoring forward progress and
// end-of-run reporting over all-or-nothing batches.
package load

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/graphport/graphport/internal/target"
)

type Options struct {
	Dir         string
	Graph       string
	BatchSize   int
	Concurrency int
	Mode        Mode
}

type ShardCount struct {
	Loaded  int64
	Skipped int64
	Failed  int64
}

type Result struct {
	Nodes map[string]*ShardCount
	Edges map[string]*ShardCount

	IndexesCreated     int
	IndexesSkipped     int
	ConstraintsCreated int
	ConstraintsSkipped int
}

type Pipeline struct {
	tgt    target.Commander
	opts   Options
	result *Result

	// mu guards the label/type bookkeeping written by concurrent shard
	// goroutines. idIndexed marks labels whose export-id index exists,
	// seenLabels collects every label observed in node rows, relTypes maps
	// edge shard names to their resolved relationship type.
	mu         sync.Mutex
	idIndexed  map[string]bool
	seenLabels map[string]bool
	relTypes   map[string]string
}

func NewPipeline(tgt target.Commander, opts Options) *Pipeline {
	if opts.BatchSize == 0 {
		opts.BatchSize = 1000
	}
	if opts.Concurrency == 0 {
		opts.Concurrency = 1
	}
	if opts.Mode == "" {
		opts.Mode = ModeUpsert
	}
	return &Pipeline{
		tgt:  tgt,
		opts: opts,
		result: &Result{
			Nodes: make(map[string]*ShardCount),
			Edges: make(map[string]*ShardCount),
		},
		idIndexed:  make(map[string]bool),
		seenLabels: make(map[string]bool),
		relTypes:   make(map[string]string),
	}
}

func (p *Pipeline) Result() *Result { return p.result }

// Run provisions schema, then loads node shards, then edge shards. Shards
// are independent of each other within a phase, so each phase fans out
// bounded by the configured concurrency.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	nodeShards, edgeShards, err := discoverShards(p.opts.Dir)
	if err != nil {
		return nil, err
	}
	slog.Info("loading shards", "graph", p.opts.Graph,
		"node_shards", len(nodeShards), "edge_shards", len(edgeShards), "mode", string(p.opts.Mode))

	labels, err := shardLabels(nodeShards)
	if err != nil {
		return nil, err
	}
	if err := p.ProvisionSchema(ctx, labels); err != nil {
		return nil, err
	}

	for _, path := range nodeShards {
		p.result.Nodes[shardName(path, "nodes_")] = &ShardCount{}
	}
	for _, path := range edgeShards {
		p.result.Edges[shardName(path, "edges_")] = &ShardCount{}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Concurrency)
	for _, path := range nodeShards {
		path := path
		g.Go(func() error { return p.loadNodeShard(gctx, path) })
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	p.indexLateLabels(ctx)

	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Concurrency)
	for _, path := range edgeShards {
		path := path
		g.Go(func() error { return p.loadEdgeShard(gctx, path) })
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return p.result, nil
}

func (p *Pipeline) loadNodeShard(ctx context.Context, path string) error {
	counts := p.result.Nodes[shardName(path, "nodes_")]
	var noEffect func(any) bool
	if p.opts.Mode == ModeInsert {
		noEffect = createdNothing
	}

	err := forEachBatch(path, p.opts.BatchSize, func(header []string, rows [][]string) error {
		for _, row := range rows {
			stmt, err := nodeStatement(header, row, p.opts.Mode)
			if err != nil {
				counts.Failed++
				slog.Warn("malformed node row skipped", "shard", path, "error", err)
				continue
			}
			p.noteLabels(header, row)
			p.execRow(ctx, stmt, counts, noEffect)
		}
		return nil
	})
	if err != nil {
		return err
	}
	slog.Info("node shard loaded", "shard", path,
		"loaded", counts.Loaded, "failed", counts.Failed)
	return nil
}

func (p *Pipeline) loadEdgeShard(ctx context.Context, path string) error {
	name := shardName(path, "edges_")
	counts := p.result.Edges[name]

	relType, err := shardRelType(path)
	if err != nil {
		return fmt.Errorf("failed to inspect shard %s: %w", path, err)
	}
	p.mu.Lock()
	p.relTypes[name] = relType
	p.mu.Unlock()

	err = forEachBatch(path, p.opts.BatchSize, func(header []string, rows [][]string) error {
		for _, row := range rows {
			stmt, err := edgeStatement(header, row, relType, p.opts.Mode)
			if err != nil {
				counts.Failed++
				slog.Warn("malformed edge row skipped", "shard", path, "error", err)
				continue
			}
			// Either mode: a MATCH that resolved no endpoints changes
			// nothing and is counted as skipped.
			p.execRow(ctx, stmt, counts, edgeHadNoEffect)
		}
		return nil
	})
	if err != nil {
		return err
	}
	slog.Info("edge shard loaded", "shard", path,
		"loaded", counts.Loaded, "skipped", counts.Skipped, "failed", counts.Failed)
	return nil
}

// execRow applies one statement, retrying once before logging the row and
// moving on. noEffect, when given, inspects the reply for a statement that
// changed nothing on the graph; such rows are counted as skipped.
func (p *Pipeline) execRow(ctx context.Context, stmt string, counts *ShardCount, noEffect func(any) bool) {
	res, err := p.tgt.GraphQuery(ctx, p.opts.Graph, stmt)
	if err != nil {
		res, err = p.tgt.GraphQuery(ctx, p.opts.Graph, stmt)
	}
	if err != nil {
		counts.Failed++
		slog.Error("row load failed", "statement", stmt, "error", err)
		return
	}
	if noEffect != nil && noEffect(res) {
		counts.Skipped++
		slog.Warn("statement changed nothing, row skipped", "statement", stmt)
		return
	}
	counts.Loaded++
}

// noteLabels records the labels of one loaded node row, so labels that first
// appear on a later row still get their export-id index before the edge
// phase.
func (p *Pipeline) noteLabels(header, row []string) {
	for i, col := range header {
		if col != "labels" || i >= len(row) {
			continue
		}
		p.mu.Lock()
		for _, label := range strings.Split(row[i], ":") {
			if label != "" {
				p.seenLabels[label] = true
			}
		}
		p.mu.Unlock()
	}
}

// indexLateLabels provisions export-id indexes for labels that were absent
// from the first row of every shard (multi-label nodes). Runs between the
// node and edge phases, single-threaded.
func (p *Pipeline) indexLateLabels(ctx context.Context) {
	p.mu.Lock()
	var late []string
	for label := range p.seenLabels {
		if !p.idIndexed[label] {
			late = append(late, label)
		}
	}
	p.mu.Unlock()

	sort.Strings(late)
	for _, label := range late {
		p.createIndex(ctx, label, []string{"id"})
		p.mu.Lock()
		p.idIndexed[label] = true
		p.mu.Unlock()
	}
}

// createdNothing reports an insert statement that produced no new entity.
// Unparseable replies are assumed successful.
func createdNothing(res any) bool {
	lines, ok := graphStats(res)
	if !ok {
		return false
	}
	return statValue(lines, "Nodes created") == 0 && statValue(lines, "Relationships created") == 0
}

// edgeHadNoEffect reports an edge statement whose MATCH resolved no
// endpoints: the reply shows neither a created relationship nor a property
// write. An upsert replay that re-SET properties stays counted as loaded.
func edgeHadNoEffect(res any) bool {
	lines, ok := graphStats(res)
	if !ok {
		return false
	}
	return statValue(lines, "Relationships created") == 0 && statValue(lines, "Properties set") == 0
}

// graphStats extracts the trailing statistics block of a GRAPH.QUERY reply.
func graphStats(res any) ([]string, bool) {
	list, ok := res.([]any)
	if !ok || len(list) == 0 {
		return nil, false
	}
	stats, ok := list[len(list)-1].([]any)
	if !ok {
		return nil, false
	}
	lines := make([]string, 0, len(stats))
	for _, entry := range stats {
		lines = append(lines, statLine(entry))
	}
	return lines, true
}

// statValue reads one counter from the statistics lines. The server omits
// counters it did not touch, which reads as zero.
func statValue(lines []string, name string) int64 {
	for _, line := range lines {
		if strings.HasPrefix(line, name+":") {
			n, _ := strconv.ParseInt(strings.TrimSpace(strings.TrimPrefix(line, name+":")), 10, 64)
			return n
		}
	}
	return 0
}

func statLine(entry any) string {
	switch v := entry.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// shardLabels peeks each node shard for the label set of its first row, so
// export-id indexes exist before any data statement runs.
func shardLabels(nodeShards []string) ([]string, error) {
	seen := make(map[string]bool)
	var labels []string
	for _, path := range nodeShards {
		header, first, err := peekShard(path)
		if err != nil {
			return nil, fmt.Errorf("failed to inspect shard %s: %w", path, err)
		}
		if first == nil {
			continue
		}
		for i, col := range header {
			if col != "labels" || i >= len(first) {
				continue
			}
			for _, label := range strings.Split(first[i], ":") {
				if label != "" && !seen[label] {
					seen[label] = true
					labels = append(labels, label)
				}
			}
		}
	}
	return labels, nil
}
