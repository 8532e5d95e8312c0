package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONSchema_BuildAndSerialize(t *testing.T) {
	s := NewObjectSchema().
		AddProperty("optimizedSequence", NewArraySchema(NewStringSchema())).
		AddProperty("rationale", NewStringSchema().WithMinLength(1)).
		AddRequired("optimizedSequence", "rationale").
		Closed()

	assert.Equal(t, []string{"optimizedSequence", "rationale"}, s.PropertyOrder)

	data, err := s.ToJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"type": "object",
		"properties": {
			"optimizedSequence": {"type": "array", "items": {"type": "string"}},
			"rationale": {"type": "string", "minLength": 1}
		},
		"required": ["optimizedSequence", "rationale"],
		"additionalProperties": false
	}`, string(data))

	back, err := FromJSON(data)
	require.NoError(t, err)
	assert.Equal(t, SchemaTypeObject, back.Type)
	assert.Equal(t, SchemaTypeArray, back.Properties["optimizedSequence"].Type)
}

func TestJSONSchema_AddPropertyTwiceKeepsOrder(t *testing.T) {
	s := NewObjectSchema().
		AddProperty("a", NewStringSchema()).
		AddProperty("b", NewStringSchema()).
		AddProperty("a", NewScalarSchema())

	assert.Equal(t, []string{"a", "b"}, s.PropertyOrder)
	assert.Len(t, s.Properties["a"].AnyOf, 4)
}

func TestJSONSchema_ToMap(t *testing.T) {
	m, err := NewArraySchema(NewStringSchema()).ToMap()
	require.NoError(t, err)
	assert.Equal(t, "array", m["type"])
	items, ok := m["items"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "string", items["type"])
}

func TestFromJSON_Invalid(t *testing.T) {
	_, err := FromJSON([]byte("{"))
	assert.Error(t, err)
}
