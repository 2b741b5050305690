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
	"regexp"

	"github.com/mybigday/chattmpl/pkg/chatmsg"
	"github.com/mybigday/chattmpl/pkg/msgparser"
)

// llama3XFunctionRegex matches a plain (non-"<|python_tag|>") Llama 3.x
// tool call up through the opening of its "parameters" value; it must
// match exactly at the cursor, never found further ahead, so a model
// that hallucinates the shape mid-sentence doesn't get misread as a
// call. Llama 3.x never emits more than one call per message outside
// the python_tag builtin-tools path, so the scan stops after the first
// match instead of looping.
var llama3XFunctionRegex = regexp.MustCompile(
	`\s*\{\s*(?:"type"\s*:\s*"function"\s*,\s*)?"name"\s*:\s*"([^"]+)"\s*,\s*"parameters"\s*:\s*`)

var llama3XCloseRegex = regexp.MustCompile(`\}\s*`)

// parseLlama3X reads plain Llama 3.x output: an optional <think> block,
// then at most one unwrapped {"name":...,"parameters":{...}} tool call,
// or plain content if nothing matches.
func parseLlama3X(p *msgparser.Parser, syntax chatmsg.ParserSyntax) error {
	tryParseReasoning(p, syntax)

	if !syntax.ParseToolCalls {
		p.AddContent(p.ConsumeRest())
		return nil
	}

	start := p.Pos()
	res, err := p.TryConsumeRegex(llama3XFunctionRegex)
	if err != nil {
		return err
	}
	if res == nil {
		p.MoveTo(start)
		p.AddContent(p.ConsumeRest())
		return nil
	}
	name := p.Str(res.Groups[1].Begin, res.Groups[1].End)

	jsonRes, err := p.ConsumeJSON()
	if err != nil {
		return err
	}
	p.AddToolCall(name, "", string(jsonRes.Value))

	if _, err := p.ConsumeRegex(llama3XCloseRegex); err != nil {
		return err
	}

	p.AddContent(p.ConsumeRest())
	return nil
}
