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

// hermesWrapperPairs lists every open/close tag pair Hermes-2-Pro
// accepts around a tool call's {"name":..., "arguments":...} JSON body.
// The real model is inconsistent about which wrapper it emits, so the
// parser tries all of them rather than narrowing to the one the prompt
// advertised (see DESIGN.md). The "<function=...>" and
// "<function name=...>" forms, which carry the name in the tag rather
// than the JSON body, are not recognised by this parser; such output is
// kept as content.
var hermesWrapperPairs = [][2]string{
	{"<tool_call>", "</tool_call>"},
	{"```json", "```"},
	{"<response>", "</response>"},
	{"<tools>", "</tools>"},
	{"<json>", "</json>"},
	{"<JSON>", "</JSON>"},
	{"<xml>", "</xml>"},
}

func parseHermes2Pro(p *msgparser.Parser, syntax chatmsg.ParserSyntax) error {
	tryParseReasoning(p, syntax)

	for {
		startPos := p.Pos()
		bestAt := -1
		var chosen [2]string
		for _, pair := range hermesWrapperPairs {
			p.MoveTo(startPos)
			found, ok := p.TryFindLiteral(pair[0])
			if !ok {
				continue
			}
			at := startPos + len(found.Prelude)
			if bestAt < 0 || at < bestAt {
				bestAt = at
				chosen = pair
			}
		}
		p.MoveTo(startPos)
		if bestAt < 0 {
			break
		}
		found, _ := p.TryFindLiteral(chosen[0])
		p.AddContent(found.Prelude)

		jsonRes, err := p.ConsumeJSON()
		if err != nil {
			return err
		}
		p.AddToolCallJSON(jsonRes.Value)
		p.TryConsumeLiteral(chosen[1])
	}
	p.AddContent(p.ConsumeRest())
	return nil
}
