package xmltoolcall

import (
	"encoding/json"
	"testing"

	"github.com/mybigday/chattmpl/pkg/chatmsg"
	"github.com/mybigday/chattmpl/pkg/msgparser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func glm45Format() Format {
	return Format{
		ToolStart:  "<tool_call>",
		ToolSep:    "\n",
		KeyStart:   "<arg_key>",
		KeyValSep:  "</arg_key>",
		KeyValSep2: "<arg_value>",
		ValEnd:     "</arg_value>\n",
		ToolEnd:    "</tool_call>\n",
	}
}

func TestTryConsumeXMLToolCallsGLM45(t *testing.T) {
	input := "<tool_call>get_weather\n<arg_key>city</arg_key>\n<arg_value>NYC</arg_value>\n</tool_call>\n"
	p := msgparser.New(input, false)

	ok, err := TryConsumeXMLToolCalls(p, glm45Format())
	require.NoError(t, err)
	require.True(t, ok)

	calls := p.ToolCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "get_weather", calls[0].Name)
	assert.JSONEq(t, `{"city":"NYC"}`, calls[0].Arguments)
}

func TestTryConsumeXMLToolCallsNoMatch(t *testing.T) {
	p := msgparser.New("just plain content", false)
	ok, err := TryConsumeXMLToolCalls(p, glm45Format())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, p.Pos())
}

func TestStripKimiK2Suffix(t *testing.T) {
	assert.Equal(t, "get_weather", stripKimiK2Suffix("functions.get_weather:0"))
	assert.Equal(t, "get_weather", stripKimiK2Suffix("get_weather"))
}

type stubBuilder struct {
	rules map[string]string
}

func (s *stubBuilder) AddRule(name, body string) string {
	if s.rules == nil {
		s.rules = map[string]string{}
	}
	s.rules[name] = body
	return name
}

func (s *stubBuilder) AddSchema(name string, schema json.RawMessage) string { return name }

func TestBuildGrammarEmitsRootForTools(t *testing.T) {
	tools := []chatmsg.ToolSpec{
		{Name: "get_weather", Parameters: `{"type":"object","properties":{"city":{"type":"string"}},"required":["city"]}`},
	}
	sb := &stubBuilder{}
	trigger := BuildGrammar(sb, tools, glm45Format())
	assert.Equal(t, "<tool_call>", trigger)
	assert.Contains(t, sb.rules, "root")
	assert.Contains(t, sb.rules, "get_weather-call")
}

func TestBuildGrammarEmptyToolsReturnsNoTrigger(t *testing.T) {
	sb := &stubBuilder{}
	trigger := BuildGrammar(sb, nil, glm45Format())
	assert.Empty(t, trigger)
	assert.Empty(t, sb.rules)
}
