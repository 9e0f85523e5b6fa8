package load

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// shardKind tells node shards from edge shards by the original file naming
// convention: nodes_<label>.csv and edges_<type>.csv.
func discoverShards(dir string) (nodes, edges []string, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read shard directory %s: %w", dir, err)
	}
	for _, e := range entries {
		name := e.Name()
		if !strings.HasSuffix(name, ".csv") {
			continue
		}
		switch {
		case strings.HasPrefix(name, "nodes_"):
			nodes = append(nodes, filepath.Join(dir, name))
		case strings.HasPrefix(name, "edges_"):
			edges = append(edges, filepath.Join(dir, name))
		}
	}
	sort.Strings(nodes)
	sort.Strings(edges)
	return nodes, edges, nil
}

// shardName strips the prefix and extension: nodes_person.csv -> person.
func shardName(path, prefix string) string {
	name := filepath.Base(path)
	name = strings.TrimSuffix(name, ".csv")
	return strings.TrimPrefix(name, prefix)
}

// forEachBatch streams a shard in fixed-size batches so memory stays bounded
// by batch size, not shard size.
func forEachBatch(path string, batchSize int, fn func(header []string, rows [][]string) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open shard %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read shard header %s: %w", path, err)
	}

	batch := make([][]string, 0, batchSize)
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read shard row in %s: %w", path, err)
		}
		batch = append(batch, row)
		if len(batch) == batchSize {
			if err := fn(header, batch); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if len(batch) > 0 {
		return fn(header, batch)
	}
	return nil
}

// shardRelType reads the relationship type from a shard's type column. Shards
// written by older extractions carry no type column; their type falls back to
// the uppercased file name, which cannot restore mixed case.
func shardRelType(path string) (string, error) {
	header, first, err := peekShard(path)
	if err != nil {
		return "", err
	}
	for i, col := range header {
		if col == "type" && i < len(first) && first[i] != "" {
			return first[i], nil
		}
	}
	return strings.ToUpper(shardName(path, "edges_")), nil
}

// peekShard returns the header and first row of a shard, if any. Used to
// learn a node shard's labels before any data is loaded.
func peekShard(path string) (header, first []string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err = r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, nil
		}
		return nil, nil, err
	}
	first, err = r.Read()
	if errors.Is(err, io.EOF) {
		return header, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	return header, first, nil
}
