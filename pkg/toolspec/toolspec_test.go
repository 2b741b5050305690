package toolspec

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type weatherArgs struct {
	City  string `json:"city" jsonschema:"required,description=City name"`
	Units string `json:"units,omitempty" jsonschema:"enum=celsius|fahrenheit,default=celsius"`
}

func TestFromStructBuildsSchema(t *testing.T) {
	spec, err := FromStruct[weatherArgs]("get_weather", "Look up current weather")
	require.NoError(t, err)

	assert.Equal(t, "get_weather", spec.Name)
	assert.Equal(t, "Look up current weather", spec.Description)

	var schema map[string]any
	require.NoError(t, json.Unmarshal([]byte(spec.Parameters), &schema))
	assert.Equal(t, "object", schema["type"])

	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "city")
	assert.Contains(t, props, "units")

	required, _ := schema["required"].([]any)
	assert.Contains(t, required, "city")
	assert.NotContains(t, required, "units")

	assert.NotContains(t, schema, "$schema")
	assert.NotContains(t, schema, "$id")
}

type emptyArgs struct{}

func TestFromStructEmptyStruct(t *testing.T) {
	spec, err := FromStruct[emptyArgs]("noop", "")
	require.NoError(t, err)
	var schema map[string]any
	require.NoError(t, json.Unmarshal([]byte(spec.Parameters), &schema))
	assert.Equal(t, "object", schema["type"])
}
