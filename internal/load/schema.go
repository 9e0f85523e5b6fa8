package load

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/graphport/graphport/internal/schema"
)

// ProvisionSchema runs strictly before data loading. It creates an export-id
// index for every node label about to be loaded (endpoint resolution during
// the edge phase depends on it), then replays the extracted schema objects:
// indexes first, then the constraints that depend on them. Objects that
// already exist are counted as skipped, so re-running is idempotent.
func (p *Pipeline) ProvisionSchema(ctx context.Context, labels []string) error {
	for _, label := range labels {
		p.createIndex(ctx, label, []string{"id"})
		p.idIndexed[label] = true
	}

	objects, err := p.readSchemaObjects()
	if err != nil {
		return err
	}
	for _, obj := range objects {
		if obj.Kind == schema.KindIndex {
			p.createIndex(ctx, obj.Label, obj.Properties)
		}
	}
	for _, obj := range objects {
		if obj.Kind != schema.KindConstraint {
			continue
		}
		if obj.Unique {
			// Unique constraints require a backing exact-match index.
			p.createIndex(ctx, obj.Label, obj.Properties)
		}
		p.createConstraint(ctx, obj)
	}

	slog.Info("schema provisioned", "graph", p.opts.Graph,
		"indexes_created", p.result.IndexesCreated, "indexes_skipped", p.result.IndexesSkipped,
		"constraints_created", p.result.ConstraintsCreated, "constraints_skipped", p.result.ConstraintsSkipped)
	return nil
}

func (p *Pipeline) readSchemaObjects() ([]schema.Object, error) {
	var objects []schema.Object
	for _, name := range []string{"indexes.csv", "constraints.csv"} {
		path := filepath.Join(p.opts.Dir, name)
		if _, err := os.Stat(path); err != nil {
			continue // metadata files are optional
		}
		loaded, err := schema.ReadCSV(path)
		if err != nil {
			return nil, err
		}
		objects = append(objects, loaded...)
	}
	return objects, nil
}

func (p *Pipeline) createIndex(ctx context.Context, label string, properties []string) {
	stmt := fmt.Sprintf("CREATE INDEX FOR (n:%s) ON (n.%s)",
		label, strings.Join(properties, ", n."))
	_, err := p.tgt.GraphQuery(ctx, p.opts.Graph, stmt)
	switch {
	case err == nil:
		p.result.IndexesCreated++
	case alreadyExists(err):
		p.result.IndexesSkipped++
	default:
		slog.Warn("index creation failed", "label", label, "properties", properties, "error", err)
	}
}

func (p *Pipeline) createConstraint(ctx context.Context, obj schema.Object) {
	kind := "MANDATORY"
	if obj.Unique {
		kind = "UNIQUE"
	}
	args := []any{"GRAPH.CONSTRAINT", "CREATE", p.opts.Graph, kind, "NODE", obj.Label,
		"PROPERTIES", len(obj.Properties)}
	for _, prop := range obj.Properties {
		args = append(args, prop)
	}

	_, err := p.tgt.Command(ctx, args...)
	switch {
	case err == nil:
		p.result.ConstraintsCreated++
	case alreadyExists(err):
		p.result.ConstraintsSkipped++
	default:
		slog.Warn("constraint creation failed", "label", obj.Label, "properties", obj.Properties, "error", err)
	}
}

func alreadyExists(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "already indexed") || strings.Contains(msg, "already exists")
}
