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
	"encoding/json"
	"strings"

	"github.com/mybigday/chattmpl/pkg/chatmsg"
	"github.com/mybigday/chattmpl/pkg/msgparser"
	"github.com/mybigday/chattmpl/pkg/xmltoolcall"
)

// xmlForms holds the four dialects whose tool-call wire format is
// genuinely key/value XML and so is handed to pkg/xmltoolcall directly:
// MiniMax-M2's nested <invoke>/<parameter> tags, GLM-4.5's flatter
// <arg_key>/<arg_value> pairs, Qwen3-Coder's <function=.../<parameter=...>
// attributes, and Kimi-K2's "functions.name:index" call naming.
var xmlForms = map[chatmsg.ChatFormat]xmltoolcall.Format{
	chatmsg.FormatMinimaxM2: {
		ScopeStart: "<minimax:tool_call>",
		ScopeEnd:   "</minimax:tool_call>",
		ToolStart:  "<invoke name=\"",
		ToolSep:    "\">",
		KeyStart:   "<parameter name=\"",
		KeyValSep:  "\">",
		ValEnd:     "</parameter>",
		ToolEnd:    "</invoke>",
	},
	chatmsg.FormatGlm4_5: {
		ToolStart:  "<tool_call>",
		ToolSep:    "\n",
		KeyStart:   "<arg_key>",
		KeyValSep:  "</arg_key>",
		KeyValSep2: "<arg_value>",
		ValEnd:     "</arg_value>",
		ToolEnd:    "</tool_call>",
	},
	chatmsg.FormatQwen3CoderXML: {
		ScopeStart: "<tool_call>",
		ScopeEnd:   "</tool_call>",
		ToolStart:  "<function=",
		ToolSep:    ">",
		KeyStart:   "<parameter=",
		KeyValSep:  ">",
		ValEnd:     "</parameter>",
		ToolEnd:    "</function>",
	},
	chatmsg.FormatKimiK2: {
		ScopeStart: "<|tool_calls_section_begin|>",
		ScopeEnd:   "<|tool_calls_section_end|>",
		ToolStart:  "<|tool_call_begin|>",
		ToolSep:    "<|tool_call_argument_begin|>",
		KeyStart:   "",
		KeyValSep:  "",
		ValEnd:     "",
		ToolEnd:    "<|tool_call_end|>",
		KimiK2:     true,
		RawArgVal:  xmltoolcall.RawArgValOnly(),
	},
}

func parseXMLEngine(p *msgparser.Parser, syntax chatmsg.ParserSyntax) error {
	tryParseReasoning(p, syntax)

	form, ok := xmlForms[syntax.Format]
	if !ok {
		return parseToolCallArrayBlock(p, syntax, xmlArrayScopes[syntax.Format])
	}

	scopeMarker := form.ScopeStart
	if scopeMarker == "" {
		scopeMarker = form.ToolStart
	}
	if !advanceToLiteralAsContent(p, scopeMarker) {
		p.AddContent(p.ConsumeRest())
		return nil
	}

	_, err := xmltoolcall.TryConsumeXMLToolCalls(p, form)
	if err != nil {
		return err
	}
	p.AddContent(p.ConsumeRest())
	return nil
}

// advanceToLiteralAsContent moves everything between the cursor and the
// next occurrence of literal into content, leaving the cursor positioned
// exactly at literal's start (not past it, unlike TryFindLiteral). It
// reports false, leaving the cursor untouched, if literal never occurs.
func advanceToLiteralAsContent(p *msgparser.Parser, literal string) bool {
	idx := strings.Index(p.Input()[p.Pos():], literal)
	if idx < 0 {
		return false
	}
	at := p.Pos() + idx
	p.AddContent(p.Input()[p.Pos():at])
	p.MoveTo(at)
	return true
}

// toolCallArrayScope describes the simpler "<tag>[ {...}, {...} ]</tag>"
// shape Apriel-1.5 and XiaomiMimo use for their tool-call section: a
// single JSON array, not key/value XML.
type toolCallArrayScope struct {
	Open, Close string
}

var xmlArrayScopes = map[chatmsg.ChatFormat]toolCallArrayScope{
	chatmsg.FormatApriel1_5: {Open: "<tool_calls>", Close: "</tool_calls>"},
	chatmsg.FormatXiaomiMimo: {Open: "<tool_calls>", Close: "</tool_calls>"},
	chatmsg.FormatSeedOss:    {Open: "<seed:tool_call>", Close: "</seed:tool_call>"},
}

func parseToolCallArrayBlock(p *msgparser.Parser, syntax chatmsg.ParserSyntax, scope toolCallArrayScope) error {
	found, ok := p.TryFindLiteral(scope.Open)
	if !ok {
		p.AddContent(p.ConsumeRest())
		return nil
	}
	p.AddContent(found.Prelude)

	result, err := p.ConsumeJSON()
	if err != nil {
		return err
	}
	var arr []json.RawMessage
	if err := json.Unmarshal(result.Value, &arr); err == nil {
		p.AddToolCalls(arr)
	} else {
		p.AddToolCallJSON(result.Value)
	}
	p.TryConsumeLiteral(scope.Close)
	p.AddContent(p.ConsumeRest())
	return nil
}
