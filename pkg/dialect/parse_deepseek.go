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

// parseDeepSeekR1 is the block-wrapped-JSON scaffold with DeepSeek R1's
// delimiters; its reasoning block is read whether the model emits the
// opening "<think>" itself or the template has already opened it
// (ThinkingForcedOpen).
func parseDeepSeekR1(p *msgparser.Parser, syntax chatmsg.ParserSyntax) error {
	return parseBlockJSONToolCalls(p, syntax, blockJSONForms[chatmsg.FormatDeepSeekR1])
}

// deepSeekV3_1CallsBeginSpellings lists every spelling of the
// tool-calls-begin tag the distilled Qwen checkpoints behind DeepSeek
// V3.1 are known to emit instead of the canonical one.
var deepSeekV3_1CallsBeginSpellings = []string{
	"<｜tool▁calls▁begin｜>",
	"<｜tool_calls_begin｜>",
	"<｜tool calls begin｜>",
	"<｜tool\\_calls\\_begin｜>",
	"<｜tool▁calls｜>",
}

const (
	deepSeekV3_1ToolSep  = "<｜tool▁sep｜>"
	deepSeekV3_1CallOpen = "<｜tool▁call▁begin｜>"
	deepSeekV3_1CallEnd  = "<｜tool▁call▁end｜>"
	deepSeekV3_1CallsEnd = "<｜tool▁calls▁end｜>"
)

// deepSeekV3_1CallsBeginPattern is the alternation of
// deepSeekV3_1CallsBeginSpellings, usable as a regex fragment (the odd
// spelling already carries literal backslashes that double as their own
// escapes).
const deepSeekV3_1CallsBeginPattern = `(<｜tool▁calls▁begin｜>|<｜tool_calls_begin｜>|<｜tool calls begin｜>|<｜tool\\_calls\\_begin｜>|<｜tool▁calls｜>)`

// findEarliestLiteral tries every candidate at p's current position and
// returns the one whose match starts earliest, the same way a model
// inconsistent about which literal spelling it emits is handled
// elsewhere in this package (see parseHermes2Pro).
func findEarliestLiteral(p *msgparser.Parser, candidates []string) (msgparser.FindRegexResult, string, bool) {
	start := p.Pos()
	bestAt := -1
	var chosen string
	for _, candidate := range candidates {
		p.MoveTo(start)
		found, ok := p.TryFindLiteral(candidate)
		if !ok {
			continue
		}
		at := start + len(found.Prelude)
		if bestAt < 0 || at < bestAt {
			bestAt = at
			chosen = candidate
		}
	}
	p.MoveTo(start)
	if bestAt < 0 {
		return msgparser.FindRegexResult{}, "", false
	}
	found, _ := p.TryFindLiteral(chosen)
	return found, chosen, true
}

// parseDeepSeekV3_1 reads DeepSeek V3.1's tag-delimited tool-call block:
// one of deepSeekV3_1CallsBeginSpellings, then one or more
// "NAME<｜tool▁sep｜>{args}<｜tool▁call▁end｜>" calls (each optionally
// preceded by its own "<｜tool▁call▁begin｜>"), closed by
// "<｜tool▁calls▁end｜>".
func parseDeepSeekV3_1(p *msgparser.Parser, syntax chatmsg.ParserSyntax) error {
	tryParseReasoning(p, syntax)

	if !syntax.ParseToolCalls {
		p.AddContent(p.ConsumeRest())
		return nil
	}

	begin, _, ok := findEarliestLiteral(p, deepSeekV3_1CallsBeginSpellings)
	if !ok {
		p.AddContent(p.ConsumeRest())
		return nil
	}
	p.AddContent(begin.Prelude)

	for {
		p.TryConsumeLiteral(deepSeekV3_1CallOpen)
		sep, ok := p.TryFindLiteral(deepSeekV3_1ToolSep)
		if !ok {
			break
		}
		name := sep.Prelude

		jsonRes, err := p.ConsumeJSON()
		if err != nil {
			return err
		}
		p.AddToolCall(name, "", string(jsonRes.Value))

		p.ConsumeSpaces()
		if !p.TryConsumeLiteral(deepSeekV3_1CallEnd) {
			break
		}
	}

	p.TryConsumeLiteral(deepSeekV3_1CallsEnd)
	p.ConsumeSpaces()
	p.AddContent(p.ConsumeRest())
	return nil
}

// parseMagistral reads a leading [THINK]/[/THINK] reasoning block, then
// the same "[TOOL_CALLS]" + JSON-array-of-calls shape Mistral Nemo uses.
// A call's "id" is read when present; calls without one are accepted,
// and the grammar from renderMagistralGrammar does not constrain it.
func parseMagistral(p *msgparser.Parser, syntax chatmsg.ParserSyntax) error {
	return parsePrefixedJSONArray(p, syntax, "[TOOL_CALLS]")
}
