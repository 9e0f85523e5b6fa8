package load

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/graphport/graphport/internal/transform"
)

// Mode selects the creation semantics per statement.
type Mode string

const (
	// ModeInsert always appends: fast, duplicates on re-run.
	ModeInsert Mode = "insert"
	// ModeUpsert matches on label + export id before mutating: safe to replay.
	ModeUpsert Mode = "upsert"
)

// nodeStatement builds one creation statement from a node CSV row. The id
// and labels columns are structural: the export id becomes the match/create
// key, the label set becomes the node pattern, and neither enters the SET
// property list.
func nodeStatement(header, row []string, mode Mode) (string, error) {
	id, labels, props, err := splitNodeRow(header, row)
	if err != nil {
		return "", err
	}

	pattern := ":" + strings.Join(labels, ":")
	if mode == ModeInsert {
		if len(props) > 0 {
			return fmt.Sprintf("CREATE (%s {id: %d, %s})", pattern, id, propertyList(props)), nil
		}
		return fmt.Sprintf("CREATE (%s {id: %d})", pattern, id), nil
	}

	stmt := fmt.Sprintf("MERGE (n%s {id: %d})", pattern, id)
	if assignments := setList("n", props); assignments != "" {
		stmt += " SET " + assignments
	}
	return stmt, nil
}

// edgeStatement builds one relationship statement from an edge CSV row.
// Endpoints resolve by export id on the target side; the source, target and
// type columns never persist as relationship properties.
func edgeStatement(header, row []string, relType string, mode Mode) (string, error) {
	src, dst, props, err := splitEdgeRow(header, row)
	if err != nil {
		return "", err
	}

	match := fmt.Sprintf("MATCH (a {id: %d}), (b {id: %d}) ", src, dst)
	if mode == ModeInsert {
		if len(props) > 0 {
			return match + fmt.Sprintf("CREATE (a)-[:%s {%s}]->(b)", relType, propertyList(props)), nil
		}
		return match + fmt.Sprintf("CREATE (a)-[:%s]->(b)", relType), nil
	}

	stmt := match + fmt.Sprintf("MERGE (a)-[r:%s]->(b)", relType)
	if assignments := setList("r", props); assignments != "" {
		stmt += " SET " + assignments
	}
	return stmt, nil
}

type property struct {
	key   string
	value any
}

func splitNodeRow(header, row []string) (id int64, labels []string, props []property, err error) {
	for i, col := range header {
		if i >= len(row) {
			break
		}
		switch col {
		case "id":
			id, err = strconv.ParseInt(row[i], 10, 64)
			if err != nil {
				return 0, nil, nil, fmt.Errorf("malformed id %q: %w", row[i], err)
			}
		case "labels":
			labels = strings.Split(row[i], ":")
		default:
			if v := transform.ParseCell(row[i]); v != nil {
				props = append(props, property{key: col, value: v})
			}
		}
	}
	if len(labels) == 0 || labels[0] == "" {
		return 0, nil, nil, fmt.Errorf("row has no labels")
	}
	return id, labels, props, nil
}

func splitEdgeRow(header, row []string) (src, dst int64, props []property, err error) {
	for i, col := range header {
		if i >= len(row) {
			break
		}
		switch col {
		case "source":
			src, err = strconv.ParseInt(row[i], 10, 64)
			if err != nil {
				return 0, 0, nil, fmt.Errorf("malformed source %q: %w", row[i], err)
			}
		case "target":
			dst, err = strconv.ParseInt(row[i], 10, 64)
			if err != nil {
				return 0, 0, nil, fmt.Errorf("malformed target %q: %w", row[i], err)
			}
		case "type":
			// structural, resolved once per shard
		default:
			if v := transform.ParseCell(row[i]); v != nil {
				props = append(props, property{key: col, value: v})
			}
		}
	}
	return src, dst, props, nil
}

func propertyList(props []property) string {
	parts := make([]string, len(props))
	for i, p := range props {
		parts[i] = fmt.Sprintf("%s: %s", p.key, literal(p.value))
	}
	return strings.Join(parts, ", ")
}

func setList(alias string, props []property) string {
	parts := make([]string, len(props))
	for i, p := range props {
		parts[i] = fmt.Sprintf("%s.%s = %s", alias, p.key, literal(p.value))
	}
	return strings.Join(parts, ", ")
}

// literal renders a value as a Cypher literal, escaping string quoting.
func literal(v any) string {
	switch t := v.(type) {
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case string:
		escaped := strings.ReplaceAll(t, `\`, `\\`)
		escaped = strings.ReplaceAll(escaped, `'`, `\'`)
		return "'" + escaped + "'"
	default:
		return fmt.Sprintf("%v", t)
	}
}
