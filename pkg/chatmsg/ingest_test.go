package chatmsg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMessages(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []Message
		wantErr bool
	}{
		{
			name:  "plain string content",
			input: `[{"role":"user","content":"hi"}]`,
			want:  []Message{{Role: "user", Content: "hi"}},
		},
		{
			name:  "content parts array",
			input: `[{"role":"user","content":[{"type":"text","text":"hi"}]}]`,
			want:  []Message{{Role: "user", ContentParts: []ContentPart{{Type: "text", Text: "hi"}}}},
		},
		{
			name:    "unsupported content part type",
			input:   `[{"role":"user","content":[{"type":"image","text":"x"}]}]`,
			wantErr: true,
		},
		{
			name:  "tool call with object arguments",
			input: `[{"role":"assistant","tool_calls":[{"type":"function","id":"1","function":{"name":"f","arguments":{"a":1}}}]}]`,
			want: []Message{{
				Role:      "assistant",
				ToolCalls: []ToolCall{{Name: "f", Arguments: `{"a":1}`, ID: "1"}},
			}},
		},
		{
			name:  "tool call with string arguments",
			input: `[{"role":"assistant","tool_calls":[{"type":"function","id":"1","function":{"name":"f","arguments":"{\"a\":1}"}}]}]`,
			want: []Message{{
				Role:      "assistant",
				ToolCalls: []ToolCall{{Name: "f", Arguments: `{"a":1}`, ID: "1"}},
			}},
		},
		{
			name:    "malformed arguments string",
			input:   `[{"role":"assistant","tool_calls":[{"type":"function","function":{"name":"f","arguments":"not json"}}]}]`,
			wantErr: true,
		},
		{
			name:  "tool response fields",
			input: `[{"role":"tool","content":"42","name":"f","tool_call_id":"1"}]`,
			want:  []Message{{Role: "tool", Content: "42", ToolName: "f", ToolCallID: "1"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMessages([]byte(tt.input))
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseTools(t *testing.T) {
	input := `[{"type":"function","function":{"name":"weather","description":"get weather","parameters":{"type":"object"}}}]`
	got, err := ParseTools([]byte(input))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "weather", got[0].Name)
	assert.Equal(t, "get weather", got[0].Description)
	assert.JSONEq(t, `{"type":"object"}`, got[0].Parameters)
}

func TestMessageMarshalEmit(t *testing.T) {
	m := Message{
		Role:    RoleAssistant,
		Content: "hello",
		ToolCalls: []ToolCall{
			{Name: "f", Arguments: `{"a":1}`, ID: "1"},
		},
	}
	data, err := m.MarshalEmit()
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"role":"assistant",
		"content":"hello",
		"tool_calls":[{"type":"function","id":"1","function":{"name":"f","arguments":"{\"a\":1}"}}]
	}`, string(data))
}

func TestMessageTextPrefersContent(t *testing.T) {
	m := Message{Content: "a", ContentParts: []ContentPart{{Type: "text", Text: "b"}}}
	assert.Equal(t, "a", m.Text())

	m2 := Message{ContentParts: []ContentPart{{Type: "text", Text: "x"}, {Type: "text", Text: "y"}}}
	assert.Equal(t, "xy", m2.Text())
}

func TestToolCallEqual(t *testing.T) {
	a := ToolCall{Name: "f", Arguments: "{}", ID: "1"}
	b := ToolCall{Name: "f", Arguments: "{}", ID: "1"}
	c := ToolCall{Name: "f", Arguments: "{}", ID: "2"}
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
}
