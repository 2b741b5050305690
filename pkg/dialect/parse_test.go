// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package dialect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mybigday/chattmpl/pkg/chatmsg"
	"github.com/mybigday/chattmpl/pkg/msgparser"
)

func autoSyntax(format chatmsg.ChatFormat) chatmsg.ParserSyntax {
	return chatmsg.ParserSyntax{Format: format, ReasoningFormat: chatmsg.ReasoningFormatAuto, ParseToolCalls: true}
}

func TestParseMistralNemoCompleteToolCall(t *testing.T) {
	input := `I'll check the weather.[TOOL_CALLS][{"name": "get_weather", "arguments": {"city": "Paris"}}]`
	msg, err := Parse(autoSyntax(chatmsg.FormatMistralNemo), input, false)
	require.NoError(t, err)
	assert.Equal(t, "I'll check the weather.", msg.Content)
	require.Len(t, msg.ToolCalls, 1)
	assert.Equal(t, "get_weather", msg.ToolCalls[0].Name)
	assert.JSONEq(t, `{"city":"Paris"}`, msg.ToolCalls[0].Arguments)
}

func TestParseMistralNemoPartialToolCall(t *testing.T) {
	input := `[TOOL_CALLS][{"name": "get_weather", "arguments": {"city": "Par`
	msg, err := Parse(autoSyntax(chatmsg.FormatMistralNemo), input, true)
	require.NoError(t, err, "a truncated value heals instead of erroring while isPartial is true")
	require.Len(t, msg.ToolCalls, 1)
	assert.Equal(t, "get_weather", msg.ToolCalls[0].Name)
}

func TestParseMistralNemoPartialToolCallErrorsWhenNotStreaming(t *testing.T) {
	input := `[TOOL_CALLS][{"name": "get_weather", "arguments": {"city": "Par`
	_, err := Parse(autoSyntax(chatmsg.FormatMistralNemo), input, false)
	assert.ErrorIs(t, err, msgparser.ErrPartial)
}

func TestParseFireFunctionV2(t *testing.T) {
	input := ` functools[{"name": "search", "arguments": {"q": "go"}}]`
	msg, err := Parse(autoSyntax(chatmsg.FormatFireFunctionV2), input, false)
	require.NoError(t, err)
	require.Len(t, msg.ToolCalls, 1)
	assert.Equal(t, "search", msg.ToolCalls[0].Name)
}

func TestParseDeepSeekR1ReasoningAndToolCall(t *testing.T) {
	input := "<think>I should look this up</think>" +
		"<｜tool▁calls▁begin｜>" +
		`<｜tool▁call▁begin｜>{"name":"lookup","arguments":{"term":"go"}}<｜tool▁call▁end｜>` +
		"<｜tool▁calls▁end｜>"
	msg, err := Parse(autoSyntax(chatmsg.FormatDeepSeekR1), input, false)
	require.NoError(t, err)
	assert.Equal(t, "I should look this up", msg.ReasoningContent)
	require.Len(t, msg.ToolCalls, 1)
	assert.Equal(t, "lookup", msg.ToolCalls[0].Name)
}

func TestParseGraniteBlockJSON(t *testing.T) {
	input := `<tool_call>{"name": "ping", "arguments": {}}</tool_call>`
	msg, err := Parse(autoSyntax(chatmsg.FormatGranite), input, false)
	require.NoError(t, err)
	require.Len(t, msg.ToolCalls, 1)
	assert.Equal(t, "ping", msg.ToolCalls[0].Name)
}

func TestParseFunctionaryV3_2NameThenArgs(t *testing.T) {
	input := ">>>get_weather\n{\"city\": \"Rome\"}"
	msg, err := Parse(autoSyntax(chatmsg.FormatFunctionaryV3_2), input, false)
	require.NoError(t, err)
	require.Len(t, msg.ToolCalls, 1)
	assert.Equal(t, "get_weather", msg.ToolCalls[0].Name)
	assert.JSONEq(t, `{"city":"Rome"}`, msg.ToolCalls[0].Arguments)
}

func TestParseGenericToolCallsBranch(t *testing.T) {
	input := `{"tool_calls": [{"name": "ping", "arguments": {}}]}`
	msg, err := Parse(autoSyntax(chatmsg.FormatGeneric), input, false)
	require.NoError(t, err)
	require.Len(t, msg.ToolCalls, 1)
	assert.Equal(t, "ping", msg.ToolCalls[0].Name)
}

func TestParseGenericResponseBranch(t *testing.T) {
	input := `{"response": "hello there"}`
	msg, err := Parse(autoSyntax(chatmsg.FormatGeneric), input, false)
	require.NoError(t, err)
	assert.Equal(t, "hello there", msg.Content)
	assert.Empty(t, msg.ToolCalls)
}

func TestParseGenericFallsBackToPlainContentOnNonJSON(t *testing.T) {
	input := `just talking, no JSON here`
	msg, err := Parse(autoSyntax(chatmsg.FormatGeneric), input, false)
	require.NoError(t, err)
	assert.Equal(t, input, msg.Content)
}

func TestParseHermes2ProPreambleThenToolCall(t *testing.T) {
	input := "Sure, let me help.\n<tool_call>\n{\"name\": \"search\", \"arguments\": {\"q\": \"go\"}}\n</tool_call>\nDone."
	msg, err := Parse(autoSyntax(chatmsg.FormatHermes2Pro), input, false)
	require.NoError(t, err)
	require.Len(t, msg.ToolCalls, 1)
	assert.Equal(t, "search", msg.ToolCalls[0].Name)
	assert.Contains(t, msg.Content, "Sure, let me help.")
	assert.Contains(t, msg.Content, "Done.")
}

func TestParseCommandR7BAllThreeSections(t *testing.T) {
	input := "<|START_THINKING|>thinking hard<|END_THINKING|>" +
		`<|START_ACTION|>[{"name": "ping", "arguments": {}}]<|END_ACTION|>` +
		"<|START_RESPONSE|>all done<|END_RESPONSE|>"
	msg, err := Parse(autoSyntax(chatmsg.FormatCommandR7B), input, false)
	require.NoError(t, err)
	assert.Equal(t, "thinking hard", msg.ReasoningContent)
	require.Len(t, msg.ToolCalls, 1)
	assert.Equal(t, "ping", msg.ToolCalls[0].Name)
	assert.Equal(t, "all done", msg.Content)
}

func TestParseGptOssToolCallChannel(t *testing.T) {
	input := "<|channel|>commentary to=functions.get_weather<|message|>{\"city\":\"Rome\"}<|start|>" +
		"<|channel|>final<|message|>Here's the weather."
	msg, err := Parse(autoSyntax(chatmsg.FormatGptOss), input, false)
	require.NoError(t, err)
	require.Len(t, msg.ToolCalls, 1)
	assert.Equal(t, "get_weather", msg.ToolCalls[0].Name)
	assert.Equal(t, "Here's the weather.", msg.Content)
}

func TestParseGptOssAnalysisChannelIsReasoning(t *testing.T) {
	input := "<|channel|>analysis<|message|>thinking...<|start|><|channel|>final<|message|>answer"
	msg, err := Parse(autoSyntax(chatmsg.FormatGptOss), input, false)
	require.NoError(t, err)
	assert.Equal(t, "thinking...", msg.ReasoningContent)
	assert.Equal(t, "answer", msg.Content)
}

func TestParseGlm4_5XMLEngine(t *testing.T) {
	input := "<tool_call>get_weather\n<arg_key>city</arg_key><arg_value>Rome</arg_value>\n</tool_call>"
	msg, err := Parse(autoSyntax(chatmsg.FormatGlm4_5), input, false)
	require.NoError(t, err)
	require.Len(t, msg.ToolCalls, 1)
	assert.Equal(t, "get_weather", msg.ToolCalls[0].Name)
	assert.JSONEq(t, `{"city":"Rome"}`, msg.ToolCalls[0].Arguments)
}

func TestParseMinimaxM2NestedXML(t *testing.T) {
	input := `<minimax:tool_call><invoke name="get_weather"><parameter name="city">Rome</parameter></invoke></minimax:tool_call>`
	msg, err := Parse(autoSyntax(chatmsg.FormatMinimaxM2), input, false)
	require.NoError(t, err)
	require.Len(t, msg.ToolCalls, 1)
	assert.Equal(t, "get_weather", msg.ToolCalls[0].Name)
	assert.JSONEq(t, `{"city":"Rome"}`, msg.ToolCalls[0].Arguments)
}

func TestParseApriel1_5ArrayWrappedToolCalls(t *testing.T) {
	input := `<tool_calls>[{"name": "ping", "arguments": {}}]</tool_calls>`
	msg, err := Parse(autoSyntax(chatmsg.FormatApriel1_5), input, false)
	require.NoError(t, err)
	require.Len(t, msg.ToolCalls, 1)
	assert.Equal(t, "ping", msg.ToolCalls[0].Name)
}

func TestParseMagistralReasoningThenContent(t *testing.T) {
	input := "[THINK]working it out[/THINK]final answer"
	msg, err := Parse(autoSyntax(chatmsg.FormatMagistral), input, false)
	require.NoError(t, err)
	assert.Equal(t, "working it out", msg.ReasoningContent)
	assert.Equal(t, "final answer", msg.Content)
}

func TestParseMagistralToolCall(t *testing.T) {
	input := `[THINK]checking[/THINK][TOOL_CALLS][{"name": "get_weather", "arguments": {"city": "Rome"}, "id": "aZ1bY2cX3"}]`
	msg, err := Parse(autoSyntax(chatmsg.FormatMagistral), input, false)
	require.NoError(t, err)
	assert.Equal(t, "checking", msg.ReasoningContent)
	require.Len(t, msg.ToolCalls, 1)
	assert.Equal(t, "get_weather", msg.ToolCalls[0].Name)
	assert.Equal(t, "aZ1bY2cX3", msg.ToolCalls[0].ID)
	assert.JSONEq(t, `{"city":"Rome"}`, msg.ToolCalls[0].Arguments)
}

func TestParseLlama3XPlainToolCall(t *testing.T) {
	input := `{"name": "get_weather", "parameters": {"city": "Rome"}}`
	msg, err := Parse(autoSyntax(chatmsg.FormatLlama3X), input, false)
	require.NoError(t, err)
	require.Len(t, msg.ToolCalls, 1)
	assert.Equal(t, "get_weather", msg.ToolCalls[0].Name)
	assert.JSONEq(t, `{"city":"Rome"}`, msg.ToolCalls[0].Arguments)
}

func TestParseLlama3XFallsBackToContentWhenNoToolCallShape(t *testing.T) {
	input := "just a plain answer"
	msg, err := Parse(autoSyntax(chatmsg.FormatLlama3X), input, false)
	require.NoError(t, err)
	assert.Equal(t, input, msg.Content)
	assert.Empty(t, msg.ToolCalls)
}

func TestParseDeepSeekV3_1ToolCall(t *testing.T) {
	input := "<think>let me check</think>" +
		"<｜tool▁calls▁begin｜>" +
		`<｜tool▁call▁begin｜>get_weather<｜tool▁sep｜>{"city":"Rome"}<｜tool▁call▁end｜>` +
		"<｜tool▁calls▁end｜>"
	msg, err := Parse(autoSyntax(chatmsg.FormatDeepSeekV3_1), input, false)
	require.NoError(t, err)
	assert.Equal(t, "let me check", msg.ReasoningContent)
	require.Len(t, msg.ToolCalls, 1)
	assert.Equal(t, "get_weather", msg.ToolCalls[0].Name)
	assert.JSONEq(t, `{"city":"Rome"}`, msg.ToolCalls[0].Arguments)
}

func TestParseDeepSeekV3_1AcceptsAlternateBeginSpelling(t *testing.T) {
	input := "<｜tool_calls_begin｜>" +
		`search<｜tool▁sep｜>{"q":"go"}<｜tool▁call▁end｜>` +
		"<｜tool▁calls▁end｜>"
	msg, err := Parse(autoSyntax(chatmsg.FormatDeepSeekV3_1), input, false)
	require.NoError(t, err)
	require.Len(t, msg.ToolCalls, 1)
	assert.Equal(t, "search", msg.ToolCalls[0].Name)
}

func TestParseContentOnlyIgnoresToolSyntax(t *testing.T) {
	input := "plain text response"
	msg, err := Parse(autoSyntax(chatmsg.FormatContentOnly), input, false)
	require.NoError(t, err)
	assert.Equal(t, input, msg.Content)
	assert.Empty(t, msg.ToolCalls)
}

func TestParsePegSimpleReasoningAndContent(t *testing.T) {
	input := "<think>mulling it over</think>the answer is 4"
	msg, err := Parse(autoSyntax(chatmsg.FormatPegSimple), input, false)
	require.NoError(t, err)
	assert.Equal(t, "mulling it over", msg.ReasoningContent)
	assert.Equal(t, "the answer is 4", msg.Content)
}

func TestParsePegNativeToolCall(t *testing.T) {
	input := "<tool_call><id>call-1</id><name>get_weather</name><args>{\"city\":\"Rome\"}</args></tool_call>trailing"
	msg, err := Parse(autoSyntax(chatmsg.FormatPegNative), input, false)
	require.NoError(t, err)
	require.Len(t, msg.ToolCalls, 1)
	assert.Equal(t, "get_weather", msg.ToolCalls[0].Name)
	assert.Equal(t, "call-1", msg.ToolCalls[0].ID)
	assert.JSONEq(t, `{"city":"Rome"}`, msg.ToolCalls[0].Arguments)
	assert.Equal(t, "trailing", msg.Content)
}

func TestParsePegConstructedToolCallWithStringAndJSONArgs(t *testing.T) {
	input := `<call name="get_weather"><arg name="city">Rome</arg><arg name="opts">{"units":"metric"}</arg></call>`
	msg, err := Parse(autoSyntax(chatmsg.FormatPegConstructed), input, false)
	require.NoError(t, err)
	require.Len(t, msg.ToolCalls, 1)
	assert.Equal(t, "get_weather", msg.ToolCalls[0].Name)
	assert.JSONEq(t, `{"city":"Rome","opts":{"units":"metric"}}`, msg.ToolCalls[0].Arguments)
}
