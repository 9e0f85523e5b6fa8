package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/graphport/graphport/internal/config"
)

func TestTargetKey(t *testing.T) {
	rules := map[string]config.PropertyRule{
		"born":     {Target: "birth_year", Transform: config.TransformInt},
		"internal": {Transform: config.TransformDrop},
		"tagline":  {},
	}

	key, keep := TargetKey("born", rules)
	assert.True(t, keep)
	assert.Equal(t, "birth_year", key)

	_, keep = TargetKey("internal", rules)
	assert.False(t, keep)

	key, keep = TargetKey("tagline", rules)
	assert.True(t, keep)
	assert.Equal(t, "tagline", key)

	// keys without any rule pass through unchanged
	key, keep = TargetKey("unmapped", rules)
	assert.True(t, keep)
	assert.Equal(t, "unmapped", key)
}

func TestCoerceInt(t *testing.T) {
	rule := config.PropertyRule{Transform: config.TransformInt}

	v, fellBack := CoerceValue("released", "1999", rule)
	assert.False(t, fellBack)
	assert.Equal(t, int64(1999), v)

	v, fellBack = CoerceValue("released", " 1999 ", rule)
	assert.False(t, fellBack)
	assert.Equal(t, int64(1999), v)

	v, fellBack = CoerceValue("released", 1999.0, rule)
	assert.False(t, fellBack)
	assert.Equal(t, int64(1999), v)
}

func TestCoerceIntFallback(t *testing.T) {
	rule := config.PropertyRule{Transform: config.TransformInt, Fallback: "-1"}

	v, fellBack := CoerceValue("released", "unknown", rule)
	assert.True(t, fellBack)
	assert.Equal(t, int64(-1), v)

	// empty fallback degrades to the zero value
	v, fellBack = CoerceValue("released", "unknown", config.PropertyRule{Transform: config.TransformInt})
	assert.True(t, fellBack)
	assert.Equal(t, int64(0), v)
}

func TestCoerceFloatAndBool(t *testing.T) {
	v, fellBack := CoerceValue("rating", "8.5", config.PropertyRule{Transform: config.TransformFloat})
	assert.False(t, fellBack)
	assert.Equal(t, 8.5, v)

	v, fellBack = CoerceValue("active", "TRUE", config.PropertyRule{Transform: config.TransformBool})
	assert.False(t, fellBack)
	assert.Equal(t, true, v)

	v, fellBack = CoerceValue("active", int64(0), config.PropertyRule{Transform: config.TransformBool})
	assert.False(t, fellBack)
	assert.Equal(t, false, v)
}

func TestCoerceString(t *testing.T) {
	v, fellBack := CoerceValue("year", int64(1999), config.PropertyRule{Transform: config.TransformString})
	assert.False(t, fellBack)
	assert.Equal(t, "1999", v)
}

func TestIdentityKeepsValue(t *testing.T) {
	v, fellBack := CoerceValue("name", "Keanu", config.PropertyRule{Target: "full_name"})
	assert.False(t, fellBack)
	assert.Equal(t, "Keanu", v)
}

func TestCellString(t *testing.T) {
	assert.Equal(t, "", CellString(nil))
	assert.Equal(t, "a;b;c", CellString([]any{"a", "b", "c"}))
	assert.Equal(t, "1;2", CellString([]any{int64(1), int64(2)}))
	assert.Equal(t, "3.14", CellString(3.14))
	assert.Equal(t, "true", CellString(true))
}

func TestParseCell(t *testing.T) {
	assert.Nil(t, ParseCell(""))
	assert.Equal(t, int64(42), ParseCell("42"))
	assert.Equal(t, 2.5, ParseCell("2.5"))
	assert.Equal(t, "The Matrix", ParseCell("The Matrix"))
}
