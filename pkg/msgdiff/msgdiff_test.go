package msgdiff

import (
	"testing"

	"github.com/mybigday/chattmpl/pkg/chatmsg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiffContentExtension(t *testing.T) {
	prev := chatmsg.Message{Content: "Hello"}
	next := chatmsg.Message{Content: "Hello, world"}

	diffs, err := Diff(prev, next)
	require.NoError(t, err)
	require.Len(t, diffs, 1)
	assert.Equal(t, ", world", diffs[0].ContentDelta)
	assert.Equal(t, -1, diffs[0].ToolCallIndex)

	assert.Equal(t, next, Apply(prev, diffs))
}

func TestDiffReasoningAndContentTogether(t *testing.T) {
	prev := chatmsg.Message{ReasoningContent: "think", Content: ""}
	next := chatmsg.Message{ReasoningContent: "thinking more", Content: "answer"}

	diffs, err := Diff(prev, next)
	require.NoError(t, err)
	require.Len(t, diffs, 2)
	assert.Equal(t, next, Apply(prev, diffs))
}

func TestDiffNoChangeProducesNoEntries(t *testing.T) {
	prev := chatmsg.Message{Content: "same"}
	diffs, err := Diff(prev, prev)
	require.NoError(t, err)
	assert.Empty(t, diffs)
}

func TestDiffStopWordErasureEmitsEmptyDelta(t *testing.T) {
	prev := chatmsg.Message{Content: "Hello STOP"}
	next := chatmsg.Message{Content: "Hello"}

	diffs, err := Diff(prev, next)
	require.NoError(t, err)
	require.Len(t, diffs, 1)
	assert.Equal(t, "", diffs[0].ContentDelta)
}

func TestDiffDivergingContentIsInvariantViolation(t *testing.T) {
	prev := chatmsg.Message{Content: "Hello"}
	next := chatmsg.Message{Content: "Goodbye"}

	_, err := Diff(prev, next)
	assert.ErrorIs(t, err, ErrInvariant)
}

func TestDiffNewToolCallAppendsFullDelta(t *testing.T) {
	prev := chatmsg.Message{}
	next := chatmsg.Message{ToolCalls: []chatmsg.ToolCall{{Name: "get_weather", Arguments: `{"city":"Pa`}}}

	diffs, err := Diff(prev, next)
	require.NoError(t, err)
	require.Len(t, diffs, 1)
	assert.Equal(t, 0, diffs[0].ToolCallIndex)
	assert.Equal(t, next.ToolCalls[0], diffs[0].ToolCallDelta)
	assert.Equal(t, next, Apply(prev, diffs))
}

func TestDiffToolCallArgumentsExtend(t *testing.T) {
	prev := chatmsg.Message{ToolCalls: []chatmsg.ToolCall{{Name: "weather", Arguments: `{"city":"Pa`}}}
	next := chatmsg.Message{ToolCalls: []chatmsg.ToolCall{{Name: "weather", Arguments: `{"city":"Paris"}`}}}

	diffs, err := Diff(prev, next)
	require.NoError(t, err)
	require.Len(t, diffs, 1)
	assert.Equal(t, `ris"}`, diffs[0].ToolCallDelta.Arguments)
	assert.Equal(t, next, Apply(prev, diffs))
}

func TestDiffToolCallIDAssignedOnceKnown(t *testing.T) {
	prev := chatmsg.Message{ToolCalls: []chatmsg.ToolCall{{Name: "weather", Arguments: "{}"}}}
	next := chatmsg.Message{ToolCalls: []chatmsg.ToolCall{{Name: "weather", Arguments: "{}", ID: "call_1"}}}

	diffs, err := Diff(prev, next)
	require.NoError(t, err)
	require.Len(t, diffs, 1)
	assert.Equal(t, "call_1", diffs[0].ToolCallDelta.ID)
	assert.Equal(t, next, Apply(prev, diffs))
}

func TestDiffFewerToolCallsIsInvariantViolation(t *testing.T) {
	prev := chatmsg.Message{ToolCalls: []chatmsg.ToolCall{{Name: "a"}, {Name: "b"}}}
	next := chatmsg.Message{ToolCalls: []chatmsg.ToolCall{{Name: "a"}}}

	_, err := Diff(prev, next)
	assert.ErrorIs(t, err, ErrInvariant)
}
