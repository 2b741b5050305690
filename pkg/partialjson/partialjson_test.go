package partialjson

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCompleteValue(t *testing.T) {
	res, err := Parse(`{"a":1,"b":[1,2,3],"c":"hi"}`)
	require.NoError(t, err)
	assert.False(t, res.Healed)
	assert.JSONEq(t, `{"a":1,"b":[1,2,3],"c":"hi"}`, string(res.Value))
}

func TestParseTruncatedObjectValue(t *testing.T) {
	res, err := ParseWithMarker(`{"name":"f","args":{"x":1,"y":`, "MARK")
	require.NoError(t, err)
	assert.True(t, res.Healed)

	var out map[string]any
	require.NoError(t, json.Unmarshal(res.Value, &out))
	assert.Equal(t, "f", out["name"])
	args := out["args"].(map[string]any)
	assert.Equal(t, float64(1), args["x"])
	assert.Equal(t, "MARK", args["y"])
}

func TestParseTruncatedString(t *testing.T) {
	res, err := ParseWithMarker(`"hello wor`, "MARK")
	require.NoError(t, err)
	assert.True(t, res.Healed)

	var out string
	require.NoError(t, json.Unmarshal(res.Value, &out))
	assert.Equal(t, "hello worMARK", out)
}

func TestParseTruncatedArray(t *testing.T) {
	res, err := ParseWithMarker(`[1,2,`, "MARK")
	require.NoError(t, err)
	assert.True(t, res.Healed)

	var out []any
	require.NoError(t, json.Unmarshal(res.Value, &out))
	assert.Equal(t, []any{float64(1), float64(2)}, out)
}

func TestParseEmptyInput(t *testing.T) {
	res, err := ParseWithMarker(``, "MARK")
	require.NoError(t, err)
	assert.True(t, res.Healed)

	var out string
	require.NoError(t, json.Unmarshal(res.Value, &out))
	assert.Equal(t, "MARK", out)
}

func TestParseMalformedNotTruncatedFails(t *testing.T) {
	_, err := Parse(`{"a": }`)
	assert.Error(t, err)
}

func TestParseTrailingGarbageFails(t *testing.T) {
	_, err := Parse(`{"a":1} garbage`)
	assert.Error(t, err)
}

func TestParseObjectPreservesKeyOrder(t *testing.T) {
	res, err := Parse(`{"z":1,"a":2,"m":3}`)
	require.NoError(t, err)
	assert.Equal(t, `{"z":1,"a":2,"m":3}`, string(res.Value))
}

func TestNewHealingMarkerUnique(t *testing.T) {
	a := NewHealingMarker()
	b := NewHealingMarker()
	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasPrefix(a, "⟪healing-"))
}
