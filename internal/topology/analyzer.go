package topology

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/graphport/graphport/internal/source"
)

// ErrEmptyTopology is returned when the source contains no labels and no
// relationship types. A label without properties is not empty.
var ErrEmptyTopology = errors.New("source topology is empty")

// Summary is the discovered shape of the source graph, used to seed a
// migration config template. Read-only once built.
type Summary struct {
	Labels            []string
	RelationshipTypes []string
	LabelKeys         map[string][]string
	TypeKeys          map[string][]string
	LabelCounts       map[string]int64
	TypeCounts        map[string]int64
}

type Analyzer struct {
	src        source.Querier
	sampleSize int
}

// NewAnalyzer builds an analyzer. Property discovery samples up to sampleSize
// entities per label/type, so sparse properties on large populations can be
// missed; raise the bound when that matters.
func NewAnalyzer(src source.Querier, sampleSize int) *Analyzer {
	return &Analyzer{src: src, sampleSize: sampleSize}
}

func (a *Analyzer) Analyze(ctx context.Context) (*Summary, error) {
	summary := &Summary{
		LabelKeys:   make(map[string][]string),
		TypeKeys:    make(map[string][]string),
		LabelCounts: make(map[string]int64),
		TypeCounts:  make(map[string]int64),
	}

	labels, err := a.column(ctx, source.ListLabelsQuery, "label")
	if err != nil {
		return nil, fmt.Errorf("label discovery failed: %w", err)
	}
	summary.Labels = labels

	relTypes, err := a.column(ctx, source.ListRelationshipTypesQuery, "relationshipType")
	if err != nil {
		return nil, fmt.Errorf("relationship type discovery failed: %w", err)
	}
	summary.RelationshipTypes = relTypes

	if len(labels) == 0 && len(relTypes) == 0 {
		return nil, ErrEmptyTopology
	}

	for _, label := range labels {
		keys, err := a.sampleKeys(ctx, source.SampleNodeKeysQuery, label)
		if err != nil {
			return nil, fmt.Errorf("property discovery for label %s failed: %w", label, err)
		}
		summary.LabelKeys[label] = keys

		count, err := a.count(ctx, source.CountNodesQuery, label)
		if err != nil {
			return nil, fmt.Errorf("count for label %s failed: %w", label, err)
		}
		summary.LabelCounts[label] = count
	}

	for _, relType := range relTypes {
		keys, err := a.sampleKeys(ctx, source.SampleRelationshipKeysQuery, relType)
		if err != nil {
			return nil, fmt.Errorf("property discovery for type %s failed: %w", relType, err)
		}
		summary.TypeKeys[relType] = keys

		count, err := a.count(ctx, source.CountRelationshipsQuery, relType)
		if err != nil {
			return nil, fmt.Errorf("count for type %s failed: %w", relType, err)
		}
		summary.TypeCounts[relType] = count
	}

	slog.Info("topology analyzed",
		"labels", len(summary.Labels),
		"relationship_types", len(summary.RelationshipTypes))
	return summary, nil
}

func (a *Analyzer) column(ctx context.Context, query, key string) ([]string, error) {
	records, err := a.src.Query(ctx, query, nil)
	if err != nil {
		return nil, err
	}
	values := make([]string, 0, len(records))
	for _, rec := range records {
		if v := rec.StringOf(key); v != "" {
			values = append(values, v)
		}
	}
	sort.Strings(values)
	return values, nil
}

func (a *Analyzer) sampleKeys(ctx context.Context, queryTemplate, name string) ([]string, error) {
	query := fmt.Sprintf(queryTemplate, name)
	records, err := a.src.Query(ctx, query, map[string]any{"sample": a.sampleSize})
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(records))
	for _, rec := range records {
		if k := rec.StringOf("key"); k != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (a *Analyzer) count(ctx context.Context, queryTemplate, name string) (int64, error) {
	records, err := a.src.Query(ctx, fmt.Sprintf(queryTemplate, name), nil)
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, nil
	}
	return records[0].Int64Of("total"), nil
}
