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

	"github.com/mybigday/chattmpl/pkg/chatmsg"
	"github.com/mybigday/chattmpl/pkg/msgparser"
)

// parsePrefixedJSONArray implements the shared shape of Mistral Nemo's
// "[TOOL_CALLS][{...}, {...}]" and FireFunction v2's " functools[{...}]":
// everything before the literal prefix is plain content, the prefix
// itself is discarded, and exactly one JSON array follows whose
// elements each become one tool call.
func parsePrefixedJSONArray(p *msgparser.Parser, syntax chatmsg.ParserSyntax, prefix string) error {
	tryParseReasoning(p, syntax)

	found, ok := p.TryFindLiteral(prefix)
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
	if err := json.Unmarshal(result.Value, &arr); err != nil {
		// A single object rather than an array is tolerated the same
		// way the origin's parsers do for a lone tool call.
		if !p.AddToolCallJSON(result.Value) {
			return nil
		}
		return nil
	}
	p.AddToolCalls(arr)
	return nil
}
