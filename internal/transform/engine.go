// Package transform applies declarative property rules to source values.
// Rules are a tagged variant (identity, rename, coerce, drop) dispatched on
// the tag, never on the property name. Rename always happens before coercion,
// and keys without a rule pass through unchanged: suppressing a property
// requires an explicit drop.
package transform

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/graphport/graphport/internal/config"
)

// TargetKey resolves the output key for a source key. The second return is
// false when the rule drops the property entirely.
func TargetKey(key string, rules map[string]config.PropertyRule) (string, bool) {
	rule, ok := rules[key]
	if !ok {
		return key, true
	}
	if rule.Transform == config.TransformDrop {
		return "", false
	}
	if rule.Target != "" {
		return rule.Target, true
	}
	return key, true
}

// CoerceValue applies the rule's type coercion. A parse failure never fails
// the row: the documented fallback value is substituted and the second return
// reports that it happened so callers can count the warning.
func CoerceValue(key string, value any, rule config.PropertyRule) (any, bool) {
	switch rule.Transform {
	case config.TransformInt:
		if v, ok := toInt(value); ok {
			return v, false
		}
		return fallbackInt(rule.Fallback, key, value), true
	case config.TransformFloat:
		if v, ok := toFloat(value); ok {
			return v, false
		}
		return fallbackFloat(rule.Fallback, key, value), true
	case config.TransformBool:
		if v, ok := toBool(value); ok {
			return v, false
		}
		return fallbackBool(rule.Fallback, key, value), true
	case config.TransformString:
		return CellString(value), false
	default:
		// identity and rename-only carry the value as-is
		return value, false
	}
}

func toInt(value any) (int64, bool) {
	switch v := value.(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case float64:
		return int64(v), true
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		return n, err == nil
	}
	return 0, false
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	case int:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	}
	return 0, false
}

func toBool(value any) (bool, bool) {
	switch v := value.(type) {
	case bool:
		return v, true
	case int64:
		return v != 0, true
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(strings.ToLower(v)))
		return b, err == nil
	}
	return false, false
}

func fallbackInt(fallback, key string, value any) int64 {
	slog.Warn("coercion failed, using fallback", "key", key, "value", value, "type", "int")
	n, _ := strconv.ParseInt(fallback, 10, 64)
	return n
}

func fallbackFloat(fallback, key string, value any) float64 {
	slog.Warn("coercion failed, using fallback", "key", key, "value", value, "type", "float")
	f, _ := strconv.ParseFloat(fallback, 64)
	return f
}

func fallbackBool(fallback, key string, value any) bool {
	slog.Warn("coercion failed, using fallback", "key", key, "value", value, "type", "bool")
	b, _ := strconv.ParseBool(fallback)
	return b
}

// CellString renders a value for one CSV cell. Collections join with ";",
// matching the flat-row convention the load side splits on.
func CellString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case []any:
		parts := make([]string, len(v))
		for i, e := range v {
			parts[i] = CellString(e)
		}
		return strings.Join(parts, ";")
	case []string:
		return strings.Join(v, ";")
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(v, 10)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// ParseCell types a CSV cell for the target statement: integers and floats
// become numbers, everything else stays a string. Empty cells become nil so
// they are omitted from generated properties.
func ParseCell(s string) any {
	if s == "" {
		return nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}
