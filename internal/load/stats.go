package load

import (
	"context"
	"fmt"
	"sort"
)

// GraphStats is a target-side census taken after a load, used to check the
// pipeline's own counters against what the graph actually holds.
type GraphStats struct {
	Nodes  int64
	Edges  int64
	Labels map[string]int64
	Types  map[string]int64
}

// Stats counts nodes and relationships on the target graph, overall and per
// label/type touched by this run.
func (p *Pipeline) Stats(ctx context.Context) (*GraphStats, error) {
	stats := &GraphStats{
		Labels: make(map[string]int64),
		Types:  make(map[string]int64),
	}

	var err error
	if stats.Nodes, err = p.count(ctx, "MATCH (n) RETURN count(n)"); err != nil {
		return nil, err
	}
	if stats.Edges, err = p.count(ctx, "MATCH ()-[r]->() RETURN count(r)"); err != nil {
		return nil, err
	}

	for _, label := range p.loadedLabels() {
		n, err := p.count(ctx, fmt.Sprintf("MATCH (n:%s) RETURN count(n)", label))
		if err != nil {
			return nil, err
		}
		stats.Labels[label] = n
	}
	for _, relType := range p.loadedTypes() {
		n, err := p.count(ctx, fmt.Sprintf("MATCH ()-[r:%s]->() RETURN count(r)", relType))
		if err != nil {
			return nil, err
		}
		stats.Types[relType] = n
	}
	return stats, nil
}

func (p *Pipeline) count(ctx context.Context, query string) (int64, error) {
	res, err := p.tgt.GraphQuery(ctx, p.opts.Graph, query)
	if err != nil {
		return 0, err
	}
	return scalarFrom(res), nil
}

// scalarFrom digs the single integer cell out of a compact reply shaped
// [header, [[cell]], stats], where cell is either a bare integer or a
// [type, value] pair.
func scalarFrom(res any) int64 {
	list, ok := res.([]any)
	if !ok || len(list) < 2 {
		return 0
	}
	rows, ok := list[1].([]any)
	if !ok || len(rows) == 0 {
		return 0
	}
	row, ok := rows[0].([]any)
	if !ok || len(row) == 0 {
		return 0
	}
	switch cell := row[0].(type) {
	case int64:
		return cell
	case []any:
		if len(cell) == 2 {
			if v, ok := cell[1].(int64); ok {
				return v
			}
		}
	}
	return 0
}

func (p *Pipeline) loadedLabels() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	labels := make([]string, 0, len(p.idIndexed))
	for label := range p.idIndexed {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

func (p *Pipeline) loadedTypes() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	seen := make(map[string]bool, len(p.relTypes))
	types := make([]string, 0, len(p.relTypes))
	for _, relType := range p.relTypes {
		if !seen[relType] {
			seen[relType] = true
			types = append(types, relType)
		}
	}
	sort.Strings(types)
	return types
}
