package source

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Neo4jSource wraps the Bolt driver for one source database.
type Neo4jSource struct {
	driver   neo4j.DriverWithContext
	database string
}

func NewNeo4jSource(ctx context.Context, uri, username, password, database string) (*Neo4jSource, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectivity, err)
	}

	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("%w: %v", ErrConnectivity, err)
	}

	slog.Info("connected to source", "uri", uri, "database", database)
	return &Neo4jSource{driver: driver, database: database}, nil
}

func (s *Neo4jSource) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

func (s *Neo4jSource) Query(ctx context.Context, cypher string, params map[string]any) ([]Record, error) {
	result, err := neo4j.ExecuteQuery(ctx, s.driver, cypher, params,
		neo4j.EagerResultTransformer, neo4j.ExecuteQueryWithDatabase(s.database))
	if err != nil {
		return nil, fmt.Errorf("source query failed: %w", err)
	}

	records := make([]Record, 0, len(result.Records))
	for _, rec := range result.Records {
		row := make(Record, len(rec.Keys))
		for i, key := range rec.Keys {
			row[key] = rec.Values[i]
		}
		records = append(records, row)
	}
	return records, nil
}
