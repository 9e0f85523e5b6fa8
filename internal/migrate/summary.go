package migrate

import (
	"log/slog"
	"sort"

	"github.com/google/uuid"

	"github.com/graphport/graphport/internal/extract"
	"github.com/graphport/graphport/internal/load"
)

// Summary is the end-of-run report: per-label/type/tenant counts plus
// explicit markers for schema and credential provisioning.
type Summary struct {
	RunID        string
	Tenants      []TenantReport
	Provision    *load.ProvisionReport
	ProvisionErr string
}

type TenantReport struct {
	Tenant     string
	Graph      string
	Extraction *extract.Result
	Load       *load.Result
	Stats      *load.GraphStats
}

func NewSummary() *Summary {
	return &Summary{RunID: uuid.New().String()}
}

func (s *Summary) sortTenants() {
	sort.Slice(s.Tenants, func(i, j int) bool { return s.Tenants[i].Tenant < s.Tenants[j].Tenant })
}

// Log emits the final summary.
func (s *Summary) Log() {
	slog.Info("run summary", "run_id", s.RunID, "tenants", len(s.Tenants))

	for _, t := range s.Tenants {
		attrs := []any{"tenant", t.Tenant}
		if t.Tenant == "" {
			attrs = []any{"tenant", "(none)"}
		}

		if t.Extraction != nil {
			for label, c := range t.Extraction.Nodes {
				slog.Info("extracted nodes", append(attrs,
					"label", label, "rows", c.Processed, "failed_cells", c.Failed, "partial", c.Partial)...)
			}
			for relType, c := range t.Extraction.Edges {
				slog.Info("extracted edges", append(attrs,
					"type", relType, "rows", c.Processed, "skipped", c.Skipped, "partial", c.Partial)...)
			}
		}

		if t.Load != nil {
			for label, c := range t.Load.Nodes {
				slog.Info("loaded nodes", append(attrs,
					"graph", t.Graph, "shard", label, "loaded", c.Loaded, "failed", c.Failed)...)
			}
			for relType, c := range t.Load.Edges {
				slog.Info("loaded edges", append(attrs,
					"graph", t.Graph, "shard", relType, "loaded", c.Loaded, "skipped", c.Skipped, "failed", c.Failed)...)
			}
			slog.Info("schema provisioning", append(attrs,
				"graph", t.Graph,
				"indexes_created", t.Load.IndexesCreated, "indexes_skipped", t.Load.IndexesSkipped,
				"constraints_created", t.Load.ConstraintsCreated, "constraints_skipped", t.Load.ConstraintsSkipped)...)
		}

		if t.Stats != nil {
			slog.Info("target verification", append(attrs,
				"graph", t.Graph, "nodes", t.Stats.Nodes, "edges", t.Stats.Edges)...)
			for label, n := range t.Stats.Labels {
				slog.Info("target nodes", append(attrs, "graph", t.Graph, "label", label, "count", n)...)
			}
			for relType, n := range t.Stats.Types {
				slog.Info("target edges", append(attrs, "graph", t.Graph, "type", relType, "count", n)...)
			}
		}
	}

	switch {
	case s.Provision == nil:
	case s.ProvisionErr != "":
		slog.Error("credential provisioning", "ok", false, "error", s.ProvisionErr)
	default:
		slog.Info("credential provisioning", "ok", true,
			"verified", s.Provision.Verified, "default_locked", s.Provision.DefaultLocked)
	}
}
