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
	"github.com/mybigday/chattmpl/pkg/chatmsg"
	"github.com/mybigday/chattmpl/pkg/msgparser"
)

// blockJSONForm describes one dialect's flavor of "a literal marks the
// start of a tool-call block, each call opens with its own literal, and
// the call's body is a JSON value" — the shape DeepSeek R1, the two
// Functionary variants, Llama 3.x's builtin-tools branch, Granite,
// Nemotron v2, Apertus, and LFM2 all share, differing only in
// their literal delimiters and whether the call's name travels inside
// the JSON body or in the opening tag.
type blockJSONForm struct {
	// BlockOpen/BlockClose wrap every tool call in the message; either
	// may be empty (no enclosing scope literal).
	BlockOpen, BlockClose string
	// CallOpen opens one call. NameInJSON selects how the name is found:
	// true means the JSON body itself carries a "name" field (DeepSeek
	// R1, Granite, Nemotron v2, Apertus, LFM2); false means
	// the name sits between CallOpen and NameTerminator, with the JSON
	// body following directly as the arguments (the two Functionary
	// variants and Llama 3.x's builtin-tools branch).
	CallOpen        string
	NameInJSON      bool
	NameTerminator  string
	CallClose       string
}

var blockJSONForms = map[chatmsg.ChatFormat]blockJSONForm{
	chatmsg.FormatDeepSeekR1: {
		BlockOpen:  "<｜tool▁calls▁begin｜>",
		BlockClose: "<｜tool▁calls▁end｜>",
		CallOpen:   "<｜tool▁call▁begin｜>",
		CallClose:  "<｜tool▁call▁end｜>",
		NameInJSON: true,
	},
	chatmsg.FormatFunctionaryV3_2: {
		CallOpen:       ">>>",
		NameTerminator: "\n",
	},
	chatmsg.FormatFunctionaryV3_1Llama3_1: {
		CallOpen:       "<function=",
		NameTerminator: ">",
		CallClose:      "</function>",
	},
	chatmsg.FormatLlama3XBuiltinTools: {
		CallOpen:       "<|python_tag|>",
		NameTerminator: ".call(",
	},
	chatmsg.FormatGranite: {
		CallOpen:   "<tool_call>",
		CallClose:  "</tool_call>",
		NameInJSON: true,
	},
	chatmsg.FormatNemotronV2: {
		BlockOpen:  "<SPECIAL_10>",
		CallOpen:   "<TOOLCALL>",
		CallClose:  "</TOOLCALL>",
		NameInJSON: true,
	},
	chatmsg.FormatApertus: {
		CallOpen:   "<|tools_prefix|>",
		CallClose:  "<|tools_suffix|>",
		NameInJSON: true,
	},
	chatmsg.FormatLfm2WithJSONTools: {
		CallOpen:   "<|tool_call_start|>[",
		CallClose:  "]<|tool_call_end|>",
		NameInJSON: true,
	},
}

// parseBlockJSONToolCalls drives the shared block-wrapped-JSON scaffold.
func parseBlockJSONToolCalls(p *msgparser.Parser, syntax chatmsg.ParserSyntax, form blockJSONForm) error {
	tryParseReasoning(p, syntax)

	if form.BlockOpen != "" {
		found, ok := p.TryFindLiteral(form.BlockOpen)
		if !ok {
			p.AddContent(p.ConsumeRest())
			return nil
		}
		p.AddContent(found.Prelude)
	}

	for {
		found, ok := p.TryFindLiteral(form.CallOpen)
		if !ok {
			break
		}
		p.AddContent(found.Prelude)

		name := ""
		if !form.NameInJSON {
			term, ok := p.TryFindLiteral(form.NameTerminator)
			if !ok {
				return nil
			}
			name = term.Prelude
		}

		jsonRes, err := p.ConsumeJSON()
		if err != nil {
			return err
		}
		if form.NameInJSON {
			p.AddToolCallJSON(jsonRes.Value)
		} else {
			p.AddToolCall(name, "", string(jsonRes.Value))
		}

		if form.CallClose != "" {
			p.TryConsumeLiteral(form.CallClose)
		}
	}

	if form.BlockClose != "" {
		p.TryConsumeLiteral(form.BlockClose)
	}
	p.AddContent(p.ConsumeRest())
	return nil
}
