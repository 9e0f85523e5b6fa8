// Package tenant discovers and scopes per-tenant slices of the source graph.
// A zero Scope means "no scoping", which lets single-tenant and multi-tenant
// runs share one pipeline implementation.
package tenant

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/graphport/graphport/internal/config"
	"github.com/graphport/graphport/internal/source"
)

// Scope is one tenant's slice of the graph: a Cypher filter fragment for node
// scans, one for relationship scans, and the partition key to strip from
// exported data. The tenant id is encoded in the output directory or graph
// name, never duplicated into row data.
type Scope struct {
	ID         string
	NodeFilter string
	EdgeFilter string
	Params     map[string]any

	// ExcludeLabel / ExcludeProperty name the partition key to withhold
	// from exported labels and property columns.
	ExcludeLabel    string
	ExcludeProperty string
}

// IsZero reports the unscoped scope.
func (s Scope) IsZero() bool { return s.ID == "" }

// Dir returns the per-tenant subdirectory under the extraction root.
func (s Scope) Dir(base string) string {
	if s.IsZero() {
		return base
	}
	return base + "/" + Sanitize(s.ID)
}

// Graph returns the per-tenant target graph name.
func (s Scope) Graph(base string) string {
	if s.IsZero() {
		return base
	}
	return base + "_" + Sanitize(s.ID)
}

// Sanitize makes a tenant id safe for directory and graph names.
func Sanitize(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, id)
}

type Partitioner struct {
	src source.Querier
	cfg *config.Config
}

func NewPartitioner(src source.Querier, cfg *config.Config) *Partitioner {
	return &Partitioner{src: src, cfg: cfg}
}

// Scopes enumerates tenant scopes in lexicographic order so repeated runs
// produce identically ordered output. Mode "none" yields one unscoped scope.
func (p *Partitioner) Scopes(ctx context.Context) ([]Scope, error) {
	switch p.cfg.Tenant.Mode {
	case config.TenantModeLabel:
		return p.labelScopes(ctx)
	case config.TenantModeProperty:
		return p.propertyScopes(ctx)
	default:
		return []Scope{{}}, nil
	}
}

// labelScopes treats the tenant filter as a label prefix: every label
// "<prefix><id>" marks one tenant's nodes.
func (p *Partitioner) labelScopes(ctx context.Context) ([]Scope, error) {
	prefix := p.cfg.Tenant.Filter
	records, err := p.src.Query(ctx, source.ListTenantLabelsQuery, map[string]any{"prefix": prefix})
	if err != nil {
		return nil, fmt.Errorf("tenant label discovery failed: %w", err)
	}

	scopes := make([]Scope, 0, len(records))
	for _, rec := range records {
		label := rec.StringOf("label")
		if label == "" {
			continue
		}
		scopes = append(scopes, Scope{
			ID:           strings.TrimPrefix(label, prefix),
			NodeFilter:   fmt.Sprintf(" WHERE n:`%s`", label),
			EdgeFilter:   fmt.Sprintf(" WHERE a:`%s` AND b:`%s`", label, label),
			ExcludeLabel: label,
		})
	}
	sortScopes(scopes)
	return scopes, nil
}

// propertyScopes enumerates distinct non-null values of the filter property.
func (p *Partitioner) propertyScopes(ctx context.Context) ([]Scope, error) {
	key := p.cfg.Tenant.Filter
	records, err := p.src.Query(ctx, source.ListTenantValuesQuery, map[string]any{"key": key})
	if err != nil {
		return nil, fmt.Errorf("tenant value discovery failed: %w", err)
	}

	scopes := make([]Scope, 0, len(records))
	for _, rec := range records {
		value := rec.StringOf("tenant")
		if value == "" {
			continue
		}
		scopes = append(scopes, Scope{
			ID:         value,
			NodeFilter: " WHERE toString(n[$tenant_key]) = $tenant_value",
			EdgeFilter: " WHERE toString(a[$tenant_key]) = $tenant_value AND toString(b[$tenant_key]) = $tenant_value",
			Params: map[string]any{
				"tenant_key":   key,
				"tenant_value": value,
			},
			ExcludeProperty: key,
		})
	}
	sortScopes(scopes)
	return scopes, nil
}

func sortScopes(scopes []Scope) {
	sort.Slice(scopes, func(i, j int) bool { return scopes[i].ID < scopes[j].ID })
}
