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
	"github.com/mybigday/chattmpl/pkg/template"
)

func memTemplates() template.Templates {
	return template.Templates{Default: template.MemEngine{GenerationPromptRole: chatmsg.RoleAssistant}}
}

func TestRenderContentOnlyHasNoGrammar(t *testing.T) {
	inputs := chatmsg.RenderInputs{
		Messages:            []chatmsg.Message{{Role: chatmsg.RoleUser, Content: "hi"}},
		AddGenerationPrompt: true,
	}
	params, err := Render(chatmsg.FormatContentOnly, inputs, memTemplates())
	require.NoError(t, err)
	assert.Contains(t, params.Prompt, "<|user|>hi")
	assert.Contains(t, params.Prompt, "<|assistant|>")
	assert.Empty(t, params.Grammar)
}

func TestRenderMistralNemoGrammarLazyWhenToolChoiceAuto(t *testing.T) {
	inputs := chatmsg.RenderInputs{
		Messages: []chatmsg.Message{{Role: chatmsg.RoleUser, Content: "weather?"}},
		Tools: []chatmsg.ToolSpec{
			{Name: "get_weather", Parameters: `{"type":"object","properties":{"city":{"type":"string"}},"required":["city"]}`},
		},
		ToolChoice: chatmsg.ToolChoiceAuto,
	}
	params, err := Render(chatmsg.FormatMistralNemo, inputs, memTemplates())
	require.NoError(t, err)
	assert.NotEmpty(t, params.Grammar)
	assert.True(t, params.GrammarLazy)
}

func TestRenderMistralNemoGrammarNotLazyWhenToolChoiceRequired(t *testing.T) {
	inputs := chatmsg.RenderInputs{
		Messages:   []chatmsg.Message{{Role: chatmsg.RoleUser, Content: "weather?"}},
		Tools:      []chatmsg.ToolSpec{{Name: "get_weather", Parameters: `{"type":"object","properties":{}}`}},
		ToolChoice: chatmsg.ToolChoiceRequired,
	}
	params, err := Render(chatmsg.FormatMistralNemo, inputs, memTemplates())
	require.NoError(t, err)
	assert.False(t, params.GrammarLazy)
}

func TestRenderDeepSeekR1ForcesThinkingOpen(t *testing.T) {
	inputs := chatmsg.RenderInputs{Messages: []chatmsg.Message{{Role: chatmsg.RoleUser, Content: "hi"}}}
	params, err := Render(chatmsg.FormatDeepSeekR1, inputs, memTemplates())
	require.NoError(t, err)
	assert.True(t, params.ThinkingForcedOpen)
}

func TestRenderCommandR7BPreservesControlTokens(t *testing.T) {
	inputs := chatmsg.RenderInputs{Messages: []chatmsg.Message{{Role: chatmsg.RoleUser, Content: "hi"}}}
	params, err := Render(chatmsg.FormatCommandR7B, inputs, memTemplates())
	require.NoError(t, err)
	assert.Contains(t, params.PreservedTokens, "<|START_ACTION|>")
	assert.Contains(t, params.PreservedTokens, "<|END_RESPONSE|>")
}

func TestRenderXMLEngineGrammarTriggersOnToolOpenLiteral(t *testing.T) {
	inputs := chatmsg.RenderInputs{
		Messages: []chatmsg.Message{{Role: chatmsg.RoleUser, Content: "hi"}},
		Tools:    []chatmsg.ToolSpec{{Name: "get_weather", Parameters: `{"type":"object","properties":{"city":{"type":"string"}},"required":["city"]}`}},
	}
	params, err := Render(chatmsg.FormatGlm4_5, inputs, memTemplates())
	require.NoError(t, err)
	assert.NotEmpty(t, params.Grammar)
	require.NotEmpty(t, params.GrammarTriggers)
	assert.True(t, params.GrammarLazy)
}

func TestRenderPegDialectsSerializeParser(t *testing.T) {
	inputs := chatmsg.RenderInputs{Messages: []chatmsg.Message{{Role: chatmsg.RoleUser, Content: "hi"}}}
	for _, format := range []chatmsg.ChatFormat{chatmsg.FormatPegSimple, chatmsg.FormatPegNative, chatmsg.FormatPegConstructed} {
		params, err := Render(format, inputs, memTemplates())
		require.NoError(t, err)
		assert.NotEmpty(t, params.Parser, "format %s should serialize a peg arena", format)
	}
}

func TestRenderLlama3XBuildsUnwrappedToolCallGrammar(t *testing.T) {
	inputs := chatmsg.RenderInputs{
		Messages: []chatmsg.Message{{Role: chatmsg.RoleUser, Content: "weather?"}},
		Tools:    []chatmsg.ToolSpec{{Name: "get_weather", Parameters: `{"type":"object","properties":{"city":{"type":"string"}}}`}},
	}
	params, err := Render(chatmsg.FormatLlama3X, inputs, memTemplates())
	require.NoError(t, err)
	assert.NotEmpty(t, params.Grammar)
	require.Len(t, params.GrammarTriggers, 1)
	assert.Equal(t, chatmsg.TriggerPatternFull, params.GrammarTriggers[0].Kind)
	assert.Contains(t, params.GrammarTriggers[0].Pattern, `"name"`)
}

func TestRenderLlama3XNoToolsSkipsGrammar(t *testing.T) {
	inputs := chatmsg.RenderInputs{Messages: []chatmsg.Message{{Role: chatmsg.RoleUser, Content: "hi"}}}
	params, err := Render(chatmsg.FormatLlama3X, inputs, memTemplates())
	require.NoError(t, err)
	assert.Empty(t, params.Grammar)
	assert.Empty(t, params.GrammarTriggers)
}

func TestRenderMagistralTriggersOnToolCallsWord(t *testing.T) {
	inputs := chatmsg.RenderInputs{
		Messages:   []chatmsg.Message{{Role: chatmsg.RoleUser, Content: "weather?"}},
		Tools:      []chatmsg.ToolSpec{{Name: "get_weather", Parameters: `{"type":"object","properties":{}}`}},
		ToolChoice: chatmsg.ToolChoiceAuto,
	}
	params, err := Render(chatmsg.FormatMagistral, inputs, memTemplates())
	require.NoError(t, err)
	assert.NotEmpty(t, params.Grammar)
	require.Len(t, params.GrammarTriggers, 1)
	assert.Equal(t, chatmsg.TriggerWord, params.GrammarTriggers[0].Kind)
	assert.Equal(t, "[TOOL_CALLS]", params.GrammarTriggers[0].Pattern)
	assert.True(t, params.GrammarLazy)
	assert.Contains(t, params.PreservedTokens, "[TOOL_CALLS]")
}

func TestRenderDeepSeekV3_1BuildsTagGrammar(t *testing.T) {
	inputs := chatmsg.RenderInputs{
		Messages: []chatmsg.Message{{Role: chatmsg.RoleUser, Content: "weather?"}},
		Tools:    []chatmsg.ToolSpec{{Name: "get_weather", Parameters: `{"type":"object","properties":{}}`}},
	}
	params, err := Render(chatmsg.FormatDeepSeekV3_1, inputs, memTemplates())
	require.NoError(t, err)
	assert.NotEmpty(t, params.Grammar)
	require.Len(t, params.GrammarTriggers, 1)
	assert.Equal(t, chatmsg.TriggerPatternFull, params.GrammarTriggers[0].Kind)
	assert.Contains(t, params.GrammarTriggers[0].Pattern, "tool▁calls▁begin")
	assert.Contains(t, params.PreservedTokens, "<｜tool▁calls▁begin｜>")
}

func TestRenderNoToolsSkipsGrammarEntirely(t *testing.T) {
	inputs := chatmsg.RenderInputs{Messages: []chatmsg.Message{{Role: chatmsg.RoleUser, Content: "hi"}}}
	params, err := Render(chatmsg.FormatHermes2Pro, inputs, memTemplates())
	require.NoError(t, err)
	assert.Empty(t, params.Grammar)
	assert.Empty(t, params.GrammarTriggers)
}
