package extract

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphport/graphport/internal/config"
	"github.com/graphport/graphport/internal/source"
	"github.com/graphport/graphport/internal/tenant"
	"github.com/graphport/graphport/internal/topology"
)

type fakeQuerier struct {
	fn func(cypher string, params map[string]any) ([]source.Record, error)
}

func (f *fakeQuerier) Query(ctx context.Context, cypher string, params map[string]any) ([]source.Record, error) {
	return f.fn(cypher, params)
}

func (f *fakeQuerier) Close(ctx context.Context) error { return nil }

// page slices records the way SKIP/LIMIT does on the server.
func page(records []source.Record, params map[string]any) []source.Record {
	skip, _ := params["skip"].(int)
	limit, _ := params["limit"].(int)
	if skip >= len(records) {
		return nil
	}
	end := skip + limit
	if end > len(records) {
		end = len(records)
	}
	return records[skip:end]
}

func movieSource() *fakeQuerier {
	people := []source.Record{
		{"node_id": int64(100), "labels": []any{"Person"}, "props": map[string]any{"name": "Keanu", "ssn": "000-00-0001"}},
		{"node_id": int64(200), "labels": []any{"Person"}, "props": map[string]any{"name": "Carrie"}},
	}
	movies := []source.Record{
		{"node_id": int64(300), "labels": []any{"Movie"}, "props": map[string]any{"title": "The Matrix", "released": "1999"}},
	}
	actedIn := []source.Record{
		{"source_id": int64(100), "target_id": int64(300), "props": map[string]any{"roles": []any{"Neo"}}},
		{"source_id": int64(200), "target_id": int64(300), "props": map[string]any{}},
		{"source_id": int64(999), "target_id": int64(300), "props": map[string]any{}},
	}
	return &fakeQuerier{fn: func(cypher string, params map[string]any) ([]source.Record, error) {
		switch {
		case strings.Contains(cypher, "MATCH (n:Person)"):
			return page(people, params), nil
		case strings.Contains(cypher, "MATCH (n:Movie)"):
			return page(movies, params), nil
		case strings.Contains(cypher, "[r:ACTED_IN]"):
			return page(actedIn, params), nil
		}
		return nil, nil
	}}
}

func movieSummary() *topology.Summary {
	return &topology.Summary{
		Labels:            []string{"Movie", "Person"},
		RelationshipTypes: []string{"ACTED_IN"},
		LabelKeys: map[string][]string{
			"Movie":  {"released", "title"},
			"Person": {"name", "ssn"},
		},
		TypeKeys: map[string][]string{"ACTED_IN": {"roles"}},
	}
}

func movieConfig() *config.Config {
	cfg := config.Default()
	cfg.Labels = map[string]config.ScopeMapping{
		"Movie": {Properties: map[string]config.PropertyRule{
			"released": {Target: "release_year", Transform: config.TransformInt},
		}},
		"Person": {Properties: map[string]config.PropertyRule{
			"ssn": {Transform: config.TransformDrop},
		}},
	}
	return cfg
}

func readShard(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestPipelineExtractsShards(t *testing.T) {
	dir := t.TempDir()
	// batch size 1 forces pagination on every shard
	p := NewPipeline(movieSource(), movieConfig(), Options{OutDir: dir, BatchSize: 1, Concurrency: 2})
	sum := movieSummary()

	require.NoError(t, p.Nodes(context.Background(), sum, true))
	require.NoError(t, p.Edges(context.Background(), sum))

	// labels are processed in summary order, so export ids are stable:
	// Movie 300 -> 1, Person 100 -> 2, Person 200 -> 3
	movies := readShard(t, filepath.Join(dir, "nodes_movie.csv"))
	require.Len(t, movies, 2)
	assert.Equal(t, []string{"id", "labels", "release_year", "title"}, movies[0])
	assert.Equal(t, []string{"1", "Movie", "1999", "The Matrix"}, movies[1])

	people := readShard(t, filepath.Join(dir, "nodes_person.csv"))
	require.Len(t, people, 3)
	assert.Equal(t, []string{"id", "labels", "name"}, people[0], "dropped keys must not be exported")
	assert.Equal(t, []string{"2", "Person", "Keanu"}, people[1])
	assert.Equal(t, []string{"3", "Person", "Carrie"}, people[2])

	edges := readShard(t, filepath.Join(dir, "edges_acted_in.csv"))
	require.Len(t, edges, 3)
	assert.Equal(t, []string{"source", "target", "type", "roles"}, edges[0])
	assert.Equal(t, []string{"2", "1", "ACTED_IN", "Neo"}, edges[1])
	assert.Equal(t, []string{"3", "1", "ACTED_IN", ""}, edges[2])

	res := p.Result()
	assert.Equal(t, int64(1), res.Nodes["Movie"].Processed)
	assert.Equal(t, int64(2), res.Nodes["Person"].Processed)
	assert.Equal(t, int64(2), res.Edges["ACTED_IN"].Processed)
	assert.Equal(t, int64(1), res.Edges["ACTED_IN"].Skipped, "edges with unexported endpoints are skipped, not errors")
}

func TestPipelineIsDeterministicAcrossRuns(t *testing.T) {
	extract := func() string {
		dir := t.TempDir()
		p := NewPipeline(movieSource(), movieConfig(), Options{OutDir: dir, BatchSize: 1000})
		sum := movieSummary()
		require.NoError(t, p.Nodes(context.Background(), sum, true))
		require.NoError(t, p.Edges(context.Background(), sum))

		var all []string
		for _, name := range []string{"nodes_movie.csv", "nodes_person.csv", "edges_acted_in.csv"} {
			data, err := os.ReadFile(filepath.Join(dir, name))
			require.NoError(t, err)
			all = append(all, string(data))
		}
		return strings.Join(all, "\n")
	}

	assert.Equal(t, extract(), extract())
}

func TestNodesWithoutWriteRebuildsIdentityOnly(t *testing.T) {
	dir := t.TempDir()
	p := NewPipeline(movieSource(), movieConfig(), Options{OutDir: dir, BatchSize: 1000})
	sum := movieSummary()

	require.NoError(t, p.Nodes(context.Background(), sum, false))
	require.NoError(t, p.Edges(context.Background(), sum))

	_, err := os.Stat(filepath.Join(dir, "nodes_movie.csv"))
	assert.True(t, os.IsNotExist(err), "edges-only runs must not rewrite node shards")

	edges := readShard(t, filepath.Join(dir, "edges_acted_in.csv"))
	assert.Equal(t, []string{"2", "1", "ACTED_IN", "Neo"}, edges[1], "endpoint ids must match the node phase assignment")
}

func TestCoercionFallbackCountsAsFailed(t *testing.T) {
	q := &fakeQuerier{fn: func(cypher string, params map[string]any) ([]source.Record, error) {
		if strings.Contains(cypher, "MATCH (n:Movie)") {
			return page([]source.Record{
				{"node_id": int64(1), "labels": []any{"Movie"}, "props": map[string]any{"released": "unknown"}},
			}, params), nil
		}
		return nil, nil
	}}
	cfg := config.Default()
	cfg.Labels = map[string]config.ScopeMapping{
		"Movie": {Properties: map[string]config.PropertyRule{
			"released": {Target: "release_year", Transform: config.TransformInt, Fallback: "-1"},
		}},
	}

	dir := t.TempDir()
	p := NewPipeline(q, cfg, Options{OutDir: dir, BatchSize: 1000})
	sum := &topology.Summary{
		Labels:    []string{"Movie"},
		LabelKeys: map[string][]string{"Movie": {"released"}},
	}
	require.NoError(t, p.Nodes(context.Background(), sum, true))

	rows := readShard(t, filepath.Join(dir, "nodes_movie.csv"))
	assert.Equal(t, []string{"1", "Movie", "-1"}, rows[1])
	assert.Equal(t, int64(1), p.Result().Nodes["Movie"].Failed)
	assert.Equal(t, int64(1), p.Result().Nodes["Movie"].Processed, "fallback rows still export")
}

func TestPartitionKeyIsNotExported(t *testing.T) {
	q := &fakeQuerier{fn: func(cypher string, params map[string]any) ([]source.Record, error) {
		if strings.Contains(cypher, "MATCH (n:Account)") {
			assert.Equal(t, "org_id", params["tenant_key"], "scope params must reach the scan")
			return page([]source.Record{
				{"node_id": int64(1), "labels": []any{"Account"}, "props": map[string]any{"name": "a1", "org_id": "acme"}},
			}, params), nil
		}
		return nil, nil
	}}

	dir := t.TempDir()
	scope := tenant.Scope{
		ID:              "acme",
		NodeFilter:      " WHERE toString(n[$tenant_key]) = $tenant_value",
		Params:          map[string]any{"tenant_key": "org_id", "tenant_value": "acme"},
		ExcludeProperty: "org_id",
	}
	p := NewPipeline(q, config.Default(), Options{OutDir: dir, BatchSize: 1000, Scope: scope})
	sum := &topology.Summary{
		Labels:    []string{"Account"},
		LabelKeys: map[string][]string{"Account": {"name", "org_id"}},
	}
	require.NoError(t, p.Nodes(context.Background(), sum, true))

	rows := readShard(t, filepath.Join(dir, "nodes_account.csv"))
	assert.Equal(t, []string{"id", "labels", "name"}, rows[0])
	assert.Equal(t, []string{"1", "Account", "a1"}, rows[1])
}

func TestTenantMarkerLabelIsWithheld(t *testing.T) {
	q := &fakeQuerier{fn: func(cypher string, params map[string]any) ([]source.Record, error) {
		if strings.Contains(cypher, "MATCH (n:Account)") {
			return page([]source.Record{
				{"node_id": int64(1), "labels": []any{"Account", "tenant_acme"}, "props": map[string]any{}},
			}, params), nil
		}
		return nil, nil
	}}

	cfg := config.Default()
	cfg.Tenant.Mode = config.TenantModeLabel
	cfg.Tenant.Filter = "tenant_"

	dir := t.TempDir()
	scope := tenant.Scope{
		ID:           "acme",
		NodeFilter:   " WHERE n:`tenant_acme`",
		ExcludeLabel: "tenant_acme",
	}
	p := NewPipeline(q, cfg, Options{OutDir: dir, BatchSize: 1000, Scope: scope})
	sum := &topology.Summary{
		// the marker label itself is discovered too and must not become a shard
		Labels:    []string{"Account", "tenant_acme"},
		LabelKeys: map[string][]string{"Account": nil, "tenant_acme": nil},
	}
	require.NoError(t, p.Nodes(context.Background(), sum, true))

	rows := readShard(t, filepath.Join(dir, "nodes_account.csv"))
	assert.Equal(t, []string{"1", "Account"}, rows[1])

	_, err := os.Stat(filepath.Join(dir, "nodes_tenant_acme.csv"))
	assert.True(t, os.IsNotExist(err))
}

func TestBatchRetryExhaustionDegradesToPartial(t *testing.T) {
	calls := 0
	q := &fakeQuerier{fn: func(cypher string, params map[string]any) ([]source.Record, error) {
		if strings.Contains(cypher, "MATCH (n:Movie)") {
			calls++
			return nil, errors.New("connection reset")
		}
		return nil, nil
	}}

	dir := t.TempDir()
	p := NewPipeline(q, config.Default(), Options{OutDir: dir, BatchSize: 1000, RetryInterval: time.Millisecond})
	sum := &topology.Summary{
		Labels:    []string{"Movie"},
		LabelKeys: map[string][]string{"Movie": {"title"}},
	}
	require.NoError(t, p.Nodes(context.Background(), sum, true), "exhausted retries degrade, they do not abort")

	assert.Equal(t, 1+maxBatchRetries, calls)
	counts := p.Result().Nodes["Movie"]
	assert.True(t, counts.Partial)
	assert.Equal(t, int64(0), counts.Processed)

	// header is still written so the shard stays machine-readable
	rows := readShard(t, filepath.Join(dir, "nodes_movie.csv"))
	assert.Equal(t, []string{"id", "labels", "title"}, rows[0])
}

func TestRenamedScopesNameShardsByTarget(t *testing.T) {
	cfg := movieConfig()
	cfg.Labels["Person"] = config.ScopeMapping{Target: "Individual"}
	cfg.Relationships = map[string]config.ScopeMapping{"ACTED_IN": {Target: "PERFORMED_IN"}}

	dir := t.TempDir()
	p := NewPipeline(movieSource(), cfg, Options{OutDir: dir, BatchSize: 1000})
	sum := movieSummary()
	require.NoError(t, p.Nodes(context.Background(), sum, true))
	require.NoError(t, p.Edges(context.Background(), sum))

	rows := readShard(t, filepath.Join(dir, "nodes_individual.csv"))
	assert.Equal(t, "Individual", rows[1][1], "labels column carries the target name")

	edges := readShard(t, filepath.Join(dir, "edges_performed_in.csv"))
	assert.Equal(t, "PERFORMED_IN", edges[1][2], "type column carries the target type")
}

func TestEdgesFanOutAcrossTypes(t *testing.T) {
	const typeCount = 16
	types := make([]string, typeCount)
	for i := range types {
		types[i] = fmt.Sprintf("REL_%02d", i)
	}

	q := &fakeQuerier{fn: func(cypher string, params map[string]any) ([]source.Record, error) {
		if strings.Contains(cypher, "MATCH (n:Person)") {
			return page([]source.Record{
				{"node_id": int64(1), "labels": []any{"Person"}, "props": map[string]any{}},
			}, params), nil
		}
		for _, relType := range types {
			if strings.Contains(cypher, "[r:"+relType+"]") {
				return page([]source.Record{
					{"source_id": int64(1), "target_id": int64(1), "props": map[string]any{}},
				}, params), nil
			}
		}
		return nil, nil
	}}

	dir := t.TempDir()
	p := NewPipeline(q, config.Default(), Options{OutDir: dir, BatchSize: 1000, Concurrency: 8})
	sum := &topology.Summary{
		Labels:            []string{"Person"},
		RelationshipTypes: types,
		LabelKeys:         map[string][]string{"Person": nil},
		TypeKeys:          map[string][]string{},
	}
	require.NoError(t, p.Nodes(context.Background(), sum, true))
	require.NoError(t, p.Edges(context.Background(), sum))

	require.Len(t, p.Result().Edges, typeCount)
	for _, relType := range types {
		counts := p.Result().Edges[relType]
		require.NotNil(t, counts, "shard entry for %s missing", relType)
		assert.Equal(t, int64(1), counts.Processed)
	}
}

func TestSkippedLabelsAndTypes(t *testing.T) {
	cfg := movieConfig()
	cfg.Labels["Person"] = config.ScopeMapping{Skip: true}
	cfg.Relationships = map[string]config.ScopeMapping{"ACTED_IN": {Skip: true}}

	dir := t.TempDir()
	p := NewPipeline(movieSource(), cfg, Options{OutDir: dir, BatchSize: 1000})
	sum := movieSummary()
	require.NoError(t, p.Nodes(context.Background(), sum, true))
	require.NoError(t, p.Edges(context.Background(), sum))

	_, err := os.Stat(filepath.Join(dir, "nodes_person.csv"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dir, "edges_acted_in.csv"))
	assert.True(t, os.IsNotExist(err))
	assert.NotContains(t, p.Result().Edges, "ACTED_IN")
}
