package source

import (
	"context"
	"errors"
)

// ErrConnectivity marks failures to reach the source database. It is fatal:
// nothing downstream can make progress without a readable source.
var ErrConnectivity = errors.New("source unreachable")

// Record is one row returned by the source, keyed by return column.
type Record map[string]any

// Querier is the read-only capability the pipelines depend on. The concrete
// Neo4j driver stays behind it so tests can substitute plain structs.
type Querier interface {
	Query(ctx context.Context, cypher string, params map[string]any) ([]Record, error)
	Close(ctx context.Context) error
}

// StringOf extracts a string column, tolerating missing keys.
func (r Record) StringOf(key string) string {
	if v, ok := r[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// Int64Of extracts an integer column. Neo4j returns int64 for ids and counts.
func (r Record) Int64Of(key string) int64 {
	switch v := r[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	}
	return 0
}

// StringsOf extracts a list column such as labels(n).
func (r Record) StringsOf(key string) []string {
	v, ok := r[key]
	if !ok {
		return nil
	}
	switch list := v.(type) {
	case []string:
		return list
	case []any:
		out := make([]string, 0, len(list))
		for _, e := range list {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// MapOf extracts a map column such as properties(n).
func (r Record) MapOf(key string) map[string]any {
	if v, ok := r[key]; ok {
		if m, ok := v.(map[string]any); ok {
			return m
		}
	}
	return nil
}
