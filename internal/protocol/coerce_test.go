package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/giantswarm/mcpsentry/internal/mcptypes"
)

func schemaWith(props map[string]mcptypes.SchemaProperty) mcptypes.InputSchema {
	return mcptypes.InputSchema{Type: "object", Properties: props}
}

func TestCoerceArguments_UnknownPropertyPassesThroughAsString(t *testing.T) {
	schema := schemaWith(nil)
	out := CoerceArguments(schema, map[string]string{"x": "raw-value"})
	assert.Equal(t, "raw-value", out["x"])
}

func TestCoerceArguments_EmptyStringUsesDefaultOrNil(t *testing.T) {
	schema := schemaWith(map[string]mcptypes.SchemaProperty{
		"withDefault":    {Type: mcptypes.TypeString, Default: "fallback"},
		"withoutDefault": {Type: mcptypes.TypeString},
	})
	out := CoerceArguments(schema, map[string]string{"withDefault": "", "withoutDefault": ""})
	assert.Equal(t, "fallback", out["withDefault"])
	assert.Nil(t, out["withoutDefault"])
}

func TestCoerceArguments_TypeBranches(t *testing.T) {
	tests := []struct {
		name     string
		propType mcptypes.SchemaPropertyType
		raw      string
		expected any
	}{
		{name: "string passes through unchanged", propType: mcptypes.TypeString, raw: "hello", expected: "hello"},
		{name: "integer parses", propType: mcptypes.TypeInteger, raw: "42", expected: int64(42)},
		{name: "integer falls back to raw string on parse failure", propType: mcptypes.TypeInteger, raw: "not-a-number", expected: "not-a-number"},
		{name: "number parses", propType: mcptypes.TypeNumber, raw: "3.14", expected: 3.14},
		{name: "number falls back to raw string on parse failure", propType: mcptypes.TypeNumber, raw: "nope", expected: "nope"},
		{name: "boolean true", propType: mcptypes.TypeBoolean, raw: "true", expected: true},
		{name: "boolean yes", propType: mcptypes.TypeBoolean, raw: "yes", expected: true},
		{name: "boolean false", propType: mcptypes.TypeBoolean, raw: "false", expected: false},
		{name: "boolean unrecognized falls back to raw string", propType: mcptypes.TypeBoolean, raw: "maybe", expected: "maybe"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			schema := schemaWith(map[string]mcptypes.SchemaProperty{"v": {Type: tt.propType}})
			out := CoerceArguments(schema, map[string]string{"v": tt.raw})
			assert.Equal(t, tt.expected, out["v"])
		})
	}
}

func TestCoerceArguments_ArrayPrefersJSONThenFallsBackToCSV(t *testing.T) {
	schema := schemaWith(map[string]mcptypes.SchemaProperty{"v": {Type: mcptypes.TypeArray}})

	out := CoerceArguments(schema, map[string]string{"v": `["a","b"]`})
	assert.Equal(t, []any{"a", "b"}, out["v"])

	out = CoerceArguments(schema, map[string]string{"v": "a, b, c"})
	assert.Equal(t, []any{"a", "b", "c"}, out["v"])
}

func TestCoerceArguments_ObjectPrefersJSONThenFallsBackToRawString(t *testing.T) {
	schema := schemaWith(map[string]mcptypes.SchemaProperty{"v": {Type: mcptypes.TypeObject}})

	out := CoerceArguments(schema, map[string]string{"v": `{"a":1}`})
	assert.Equal(t, map[string]any{"a": float64(1)}, out["v"])

	out = CoerceArguments(schema, map[string]string{"v": "not-json"})
	assert.Equal(t, "not-json", out["v"])
}
