package tenant

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphport/graphport/internal/config"
	"github.com/graphport/graphport/internal/source"
)

type fakeQuerier struct {
	fn func(cypher string, params map[string]any) ([]source.Record, error)
}

func (f *fakeQuerier) Query(ctx context.Context, cypher string, params map[string]any) ([]source.Record, error) {
	return f.fn(cypher, params)
}

func (f *fakeQuerier) Close(ctx context.Context) error { return nil }

func TestScopesModeNone(t *testing.T) {
	cfg := config.Default()
	q := &fakeQuerier{fn: func(cypher string, params map[string]any) ([]source.Record, error) {
		t.Fatalf("mode none must not query the source, got %q", cypher)
		return nil, nil
	}}

	scopes, err := NewPartitioner(q, cfg).Scopes(context.Background())
	require.NoError(t, err)
	require.Len(t, scopes, 1)
	assert.True(t, scopes[0].IsZero())
	assert.Empty(t, scopes[0].NodeFilter)
}

func TestScopesModeLabel(t *testing.T) {
	cfg := config.Default()
	cfg.Tenant.Mode = config.TenantModeLabel
	cfg.Tenant.Filter = "tenant_"

	q := &fakeQuerier{fn: func(cypher string, params map[string]any) ([]source.Record, error) {
		require.Contains(t, cypher, "STARTS WITH")
		assert.Equal(t, "tenant_", params["prefix"])
		return []source.Record{
			{"label": "tenant_zeta"},
			{"label": "tenant_acme"},
		}, nil
	}}

	scopes, err := NewPartitioner(q, cfg).Scopes(context.Background())
	require.NoError(t, err)
	require.Len(t, scopes, 2)

	// lexicographic by tenant id, regardless of discovery order
	assert.Equal(t, "acme", scopes[0].ID)
	assert.Equal(t, "zeta", scopes[1].ID)

	acme := scopes[0]
	assert.Contains(t, acme.NodeFilter, "n:`tenant_acme`")
	assert.Contains(t, acme.EdgeFilter, "a:`tenant_acme`")
	assert.Contains(t, acme.EdgeFilter, "b:`tenant_acme`")
	assert.Equal(t, "tenant_acme", acme.ExcludeLabel)
	assert.Empty(t, acme.ExcludeProperty)
}

func TestScopesModeProperty(t *testing.T) {
	cfg := config.Default()
	cfg.Tenant.Mode = config.TenantModeProperty
	cfg.Tenant.Filter = "org_id"

	q := &fakeQuerier{fn: func(cypher string, params map[string]any) ([]source.Record, error) {
		assert.Equal(t, "org_id", params["key"])
		return []source.Record{
			{"tenant": "beta"},
			{"tenant": "alpha"},
			{"tenant": ""}, // null-ish values are dropped
		}, nil
	}}

	scopes, err := NewPartitioner(q, cfg).Scopes(context.Background())
	require.NoError(t, err)
	require.Len(t, scopes, 2)
	assert.Equal(t, "alpha", scopes[0].ID)
	assert.Equal(t, "beta", scopes[1].ID)

	alpha := scopes[0]
	assert.Contains(t, alpha.NodeFilter, "$tenant_value")
	assert.Equal(t, "org_id", alpha.Params["tenant_key"])
	assert.Equal(t, "alpha", alpha.Params["tenant_value"])
	assert.Equal(t, "org_id", alpha.ExcludeProperty)
	assert.Empty(t, alpha.ExcludeLabel)
}

func TestScopeDirAndGraph(t *testing.T) {
	unscoped := Scope{}
	assert.Equal(t, "out", unscoped.Dir("out"))
	assert.Equal(t, "movies", unscoped.Graph("movies"))

	scoped := Scope{ID: "acme corp"}
	assert.Equal(t, "out/acme_corp", scoped.Dir("out"))
	assert.Equal(t, "movies_acme_corp", scoped.Graph("movies"))
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "acme-7_eu", Sanitize("acme-7_eu"))
	assert.Equal(t, "a_b_c", Sanitize("a b/c"))
	assert.Equal(t, strings.Repeat("_", 3), Sanitize("*?!"))
}
