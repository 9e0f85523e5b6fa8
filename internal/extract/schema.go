package extract

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/graphport/graphport/internal/schema"
	"github.com/graphport/graphport/internal/source"
	"github.com/graphport/graphport/internal/transform"
)

// Schema introspects source indexes and constraints, remaps their labels and
// properties through the config, and persists them to indexes.csv and
// constraints.csv alongside the data shards.
func (p *Pipeline) Schema(ctx context.Context) ([]schema.Object, error) {
	var objects []schema.Object

	indexRecords, err := p.src.Query(ctx, source.ListIndexesQuery, nil)
	if err != nil {
		return nil, fmt.Errorf("index introspection failed: %w", err)
	}
	for _, rec := range indexRecords {
		// Constraint-backing indexes replay through the constraint list.
		if owner := rec.StringOf("owningConstraint"); owner != "" {
			continue
		}
		if strings.EqualFold(rec.StringOf("type"), "LOOKUP") {
			continue
		}
		obj, ok := p.schemaObject(rec, schema.KindIndex, false)
		if !ok {
			continue
		}
		obj.Status = rec.StringOf("state")
		objects = append(objects, obj)
	}

	constraintRecords, err := p.src.Query(ctx, source.ListConstraintsQuery, nil)
	if err != nil {
		return nil, fmt.Errorf("constraint introspection failed: %w", err)
	}
	for _, rec := range constraintRecords {
		unique := strings.Contains(strings.ToUpper(rec.StringOf("type")), "UNIQUE")
		obj, ok := p.schemaObject(rec, schema.KindConstraint, unique)
		if !ok {
			continue
		}
		obj.Status = "ONLINE"
		objects = append(objects, obj)
	}

	var indexes, constraints []schema.Object
	for _, obj := range objects {
		if obj.Kind == schema.KindIndex {
			indexes = append(indexes, obj)
		} else {
			constraints = append(constraints, obj)
		}
	}
	if err := schema.WriteCSV(filepath.Join(p.opts.OutDir, "indexes.csv"), indexes); err != nil {
		return nil, err
	}
	if err := schema.WriteCSV(filepath.Join(p.opts.OutDir, "constraints.csv"), constraints); err != nil {
		return nil, err
	}

	slog.Info("schema extracted", "indexes", len(indexes), "constraints", len(constraints))
	return objects, nil
}

func (p *Pipeline) schemaObject(rec source.Record, kind string, unique bool) (schema.Object, bool) {
	labels := rec.StringsOf("labelsOrTypes")
	props := rec.StringsOf("properties")
	if len(labels) == 0 || len(props) == 0 {
		return schema.Object{}, false
	}
	label := labels[0]
	if p.cfg.SkipLabel(label) {
		return schema.Object{}, false
	}

	rules := p.cfg.LabelRules(label)
	mapped := make([]string, 0, len(props))
	for _, prop := range props {
		target, keep := transform.TargetKey(prop, rules)
		if !keep {
			return schema.Object{}, false
		}
		mapped = append(mapped, target)
	}

	return schema.Object{
		Kind:       kind,
		Label:      p.cfg.LabelTarget(label),
		Properties: mapped,
		Unique:     unique,
	}, true
}
