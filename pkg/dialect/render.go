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
	"fmt"

	"github.com/mybigday/chattmpl/pkg/chatmsg"
	"github.com/mybigday/chattmpl/pkg/grammar"
	"github.com/mybigday/chattmpl/pkg/template"
	"github.com/mybigday/chattmpl/pkg/xmltoolcall"
)

// Render produces, for the given format, the prompt plus everything
// needed to constrain and later parse the runtime's output. It does not
// detect the format itself; callers choose it beforehand (for example
// with Detect).
func Render(format chatmsg.ChatFormat, inputs chatmsg.RenderInputs, tmpl template.Templates) (chatmsg.ChatParams, error) {
	prompt, err := template.Apply(tmpl, inputs)
	if err != nil {
		return chatmsg.ChatParams{}, fmt.Errorf("dialect: render %s: %w", format, err)
	}

	params := chatmsg.ChatParams{Format: format, Prompt: prompt}

	switch format {
	case chatmsg.FormatContentOnly:
		// No tool-call grammar: this dialect never sees tools.

	case chatmsg.FormatLlama3X:
		renderLlama3XGrammar(&params, inputs)

	case chatmsg.FormatMagistral:
		renderMagistralGrammar(&params, inputs)

	case chatmsg.FormatDeepSeekV3_1:
		params.ThinkingForcedOpen = inputs.EnableThinking
		renderDeepSeekV3_1Grammar(&params, inputs)

	case chatmsg.FormatMistralNemo, chatmsg.FormatFireFunctionV2:
		renderJSONArrayGrammar(&params, inputs)

	case chatmsg.FormatGeneric:
		renderGenericGrammar(&params, inputs)

	case chatmsg.FormatDeepSeekR1:
		params.ThinkingForcedOpen = true
		renderBlockJSONGrammar(&params, inputs, blockJSONForms[chatmsg.FormatDeepSeekR1])

	case chatmsg.FormatFunctionaryV3_2, chatmsg.FormatFunctionaryV3_1Llama3_1,
		chatmsg.FormatLlama3XBuiltinTools, chatmsg.FormatGranite, chatmsg.FormatNemotronV2,
		chatmsg.FormatApertus, chatmsg.FormatLfm2WithJSONTools:
		renderBlockJSONGrammar(&params, inputs, blockJSONForms[format])

	case chatmsg.FormatHermes2Pro:
		renderHermesGrammar(&params, inputs)

	case chatmsg.FormatCommandR7B:
		renderCommandR7BGrammar(&params, inputs)

	case chatmsg.FormatGptOss:
		params.AdditionalStops = append(params.AdditionalStops, "<|return|>")

	case chatmsg.FormatMinimaxM2, chatmsg.FormatGlm4_5, chatmsg.FormatQwen3CoderXML, chatmsg.FormatKimiK2:
		renderXMLGrammar(&params, inputs, xmlForms[format])

	case chatmsg.FormatApriel1_5, chatmsg.FormatXiaomiMimo, chatmsg.FormatSeedOss:
		// Array-wrapped tool calls; the grammar comes from the same
		// renderJSONArrayGrammar as the prefixed-array family, and no
		// grammar trigger is registered for it.
		renderJSONArrayGrammar(&params, inputs)

	case chatmsg.FormatPegSimple, chatmsg.FormatPegNative, chatmsg.FormatPegConstructed:
		if err := renderPegGrammar(&params, format); err != nil {
			return chatmsg.ChatParams{}, err
		}

	default:
		return chatmsg.ChatParams{}, fmt.Errorf("dialect: no renderer registered for format %q", format)
	}

	return params, nil
}

func renderJSONArrayGrammar(params *chatmsg.ChatParams, inputs chatmsg.RenderInputs) {
	if len(inputs.Tools) == 0 {
		return
	}
	rs := grammar.NewRuleSet()
	adapter := grammar.PegParserAdapter{Rules: rs}
	for _, tool := range inputs.Tools {
		adapter.AddSchema(tool.Name+"-args", []byte(toolParametersOrEmptyObject(tool)))
	}
	params.Grammar = rs.Render()
	params.GrammarLazy = inputs.ToolChoice != chatmsg.ToolChoiceRequired
}

func renderGenericGrammar(params *chatmsg.ChatParams, inputs chatmsg.RenderInputs) {
	if len(inputs.Tools) == 0 && inputs.JSONSchema == "" {
		return
	}
	rs := grammar.NewRuleSet()
	adapter := grammar.PegParserAdapter{Rules: rs}
	if inputs.JSONSchema != "" {
		adapter.AddSchema("response", []byte(inputs.JSONSchema))
	}
	for _, tool := range inputs.Tools {
		adapter.AddSchema(tool.Name+"-args", []byte(toolParametersOrEmptyObject(tool)))
	}
	params.Grammar = rs.Render()
	params.GrammarLazy = false
}

func renderBlockJSONGrammar(params *chatmsg.ChatParams, inputs chatmsg.RenderInputs, form blockJSONForm) {
	if len(inputs.Tools) == 0 {
		return
	}
	rs := grammar.NewRuleSet()
	adapter := grammar.PegParserAdapter{Rules: rs}
	for _, tool := range inputs.Tools {
		adapter.AddSchema(tool.Name+"-args", []byte(toolParametersOrEmptyObject(tool)))
	}
	params.Grammar = rs.Render()
	params.GrammarLazy = true
	trigger := form.CallOpen
	if form.BlockOpen != "" {
		trigger = form.BlockOpen
	}
	params.GrammarTriggers = append(params.GrammarTriggers, chatmsg.GrammarTrigger{
		Kind: chatmsg.TriggerWord, Pattern: trigger,
	})
}

// llama3XToolCallTrigger matches common_chat_params_init_llama_3_x's
// grammar trigger: small models often hallucinate the function name, so
// the trigger fires on the JSON shape up through "name": rather than on
// any one literal.
const llama3XToolCallTrigger = `(\{\s*(?:"type"\s*:\s*"function"\s*,\s*)?"name"\s*:\s*")[\s\S]*`

func renderLlama3XGrammar(params *chatmsg.ChatParams, inputs chatmsg.RenderInputs) {
	if len(inputs.Tools) == 0 {
		return
	}
	rs := grammar.NewRuleSet()
	adapter := grammar.PegParserAdapter{Rules: rs}
	for _, tool := range inputs.Tools {
		adapter.AddSchema(tool.Name+"-args", []byte(toolParametersOrEmptyObject(tool)))
	}
	params.Grammar = rs.Render()
	params.GrammarLazy = inputs.ToolChoice != chatmsg.ToolChoiceRequired
	params.GrammarTriggers = append(params.GrammarTriggers, chatmsg.GrammarTrigger{
		Kind: chatmsg.TriggerPatternFull, Pattern: llama3XToolCallTrigger,
	})
	params.AdditionalStops = append(params.AdditionalStops, "<|eom_id|>")
}

func renderMagistralGrammar(params *chatmsg.ChatParams, inputs chatmsg.RenderInputs) {
	params.PreservedTokens = append(params.PreservedTokens, "[THINK]", "[/THINK]")
	if len(inputs.Tools) == 0 {
		return
	}
	rs := grammar.NewRuleSet()
	adapter := grammar.PegParserAdapter{Rules: rs}
	for _, tool := range inputs.Tools {
		adapter.AddSchema(tool.Name+"-args", []byte(toolParametersOrEmptyObject(tool)))
	}
	params.Grammar = rs.Render()
	params.GrammarLazy = inputs.ToolChoice != chatmsg.ToolChoiceRequired
	params.GrammarTriggers = append(params.GrammarTriggers, chatmsg.GrammarTrigger{
		Kind: chatmsg.TriggerWord, Pattern: "[TOOL_CALLS]",
	})
	params.PreservedTokens = append(params.PreservedTokens, "[TOOL_CALLS]")
}

func renderDeepSeekV3_1Grammar(params *chatmsg.ChatParams, inputs chatmsg.RenderInputs) {
	params.PreservedTokens = append(params.PreservedTokens,
		"<think>", "</think>",
		"<｜tool▁calls▁begin｜>", "<｜tool▁call▁begin｜>", "<｜tool▁sep｜>",
		"<｜tool▁call▁end｜>", "<｜tool▁calls▁end｜>",
	)
	if len(inputs.Tools) == 0 {
		return
	}
	rs := grammar.NewRuleSet()
	adapter := grammar.PegParserAdapter{Rules: rs}
	for _, tool := range inputs.Tools {
		adapter.AddSchema(tool.Name+"-args", []byte(toolParametersOrEmptyObject(tool)))
	}
	params.Grammar = rs.Render()
	params.GrammarLazy = inputs.ToolChoice != chatmsg.ToolChoiceRequired && inputs.JSONSchema == ""

	prefix := `(?:<think>[\s\S]*?</think>\s*)?`
	if params.ThinkingForcedOpen {
		prefix = `[\s\S]*?(</think>\s*)`
	}
	params.GrammarTriggers = append(params.GrammarTriggers, chatmsg.GrammarTrigger{
		Kind: chatmsg.TriggerPatternFull, Pattern: prefix + deepSeekV3_1CallsBeginPattern,
	})
}

func renderHermesGrammar(params *chatmsg.ChatParams, inputs chatmsg.RenderInputs) {
	if len(inputs.Tools) == 0 {
		return
	}
	rs := grammar.NewRuleSet()
	adapter := grammar.PegParserAdapter{Rules: rs}
	for _, tool := range inputs.Tools {
		adapter.AddSchema(tool.Name+"-args", []byte(toolParametersOrEmptyObject(tool)))
	}
	params.Grammar = rs.Render()
	params.GrammarLazy = true
	for _, pair := range hermesWrapperPairs {
		params.GrammarTriggers = append(params.GrammarTriggers, chatmsg.GrammarTrigger{
			Kind: chatmsg.TriggerWord, Pattern: pair[0],
		})
	}
}

func renderCommandR7BGrammar(params *chatmsg.ChatParams, inputs chatmsg.RenderInputs) {
	params.PreservedTokens = append(params.PreservedTokens,
		"<|START_THINKING|>", "<|END_THINKING|>",
		"<|START_ACTION|>", "<|END_ACTION|>",
		"<|START_RESPONSE|>", "<|END_RESPONSE|>",
	)
	if len(inputs.Tools) == 0 {
		return
	}
	rs := grammar.NewRuleSet()
	adapter := grammar.PegParserAdapter{Rules: rs}
	for _, tool := range inputs.Tools {
		adapter.AddSchema(tool.Name+"-args", []byte(toolParametersOrEmptyObject(tool)))
	}
	params.Grammar = rs.Render()
	params.GrammarLazy = true
	params.GrammarTriggers = append(params.GrammarTriggers, chatmsg.GrammarTrigger{
		Kind: chatmsg.TriggerWord, Pattern: "<|START_ACTION|>",
	})
}

func renderXMLGrammar(params *chatmsg.ChatParams, inputs chatmsg.RenderInputs, form xmltoolcall.Format) {
	if len(inputs.Tools) == 0 {
		return
	}
	rs := grammar.NewRuleSet()
	adapter := grammar.XMLToolCallAdapter{Rules: rs}
	trigger := xmltoolcall.BuildGrammar(adapter, inputs.Tools, form)
	params.Grammar = rs.Render()
	params.GrammarLazy = true
	if trigger != "" {
		params.GrammarTriggers = append(params.GrammarTriggers, chatmsg.GrammarTrigger{
			Kind: chatmsg.TriggerWord, Pattern: trigger,
		})
	}
}

func renderPegGrammar(params *chatmsg.ChatParams, format chatmsg.ChatFormat) error {
	arena := pegArenaFor(format)
	serialized, err := arena.Save()
	if err != nil {
		return fmt.Errorf("dialect: serializing peg arena for %s: %w", format, err)
	}
	params.Parser = serialized
	return nil
}

// toolParametersOrEmptyObject returns tool's parameter schema, or an
// empty-object schema for a tool declared with no parameters at all.
func toolParametersOrEmptyObject(tool chatmsg.ToolSpec) string {
	if tool.Parameters == "" {
		return `{"type":"object","properties":{}}`
	}
	return tool.Parameters
}
