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

// parseGeneric implements the fallback dialect: the whole output is
// expected to be one JSON object shaped as {"tool_calls":[...]},
// {"tool_call":{...}}, or {"response":"..."|[...]}; anything that isn't
// valid JSON at all falls back to plain content.
func parseGeneric(p *msgparser.Parser, syntax chatmsg.ParserSyntax) error {
	tryParseReasoning(p, syntax)

	start := p.Pos()
	result, err := p.TryConsumeJSON()
	if err != nil {
		return err
	}
	if result == nil {
		p.MoveTo(start)
		p.AddContent(p.ConsumeRest())
		return nil
	}

	var obj struct {
		ToolCalls json.RawMessage `json:"tool_calls"`
		ToolCall  json.RawMessage `json:"tool_call"`
		Response  json.RawMessage `json:"response"`
	}
	if err := json.Unmarshal(result.Value, &obj); err != nil {
		p.MoveTo(start)
		p.AddContent(p.ConsumeRest())
		return nil
	}

	switch {
	case len(obj.ToolCalls) > 0:
		var arr []json.RawMessage
		if err := json.Unmarshal(obj.ToolCalls, &arr); err == nil {
			p.AddToolCalls(arr)
		}
	case len(obj.ToolCall) > 0:
		p.AddToolCallJSON(obj.ToolCall)
	case len(obj.Response) > 0:
		var asString string
		if err := json.Unmarshal(obj.Response, &asString); err == nil {
			p.AddContent(asString)
		} else {
			p.AddContent(string(obj.Response))
		}
	default:
		p.MoveTo(start)
		p.AddContent(p.ConsumeRest())
	}
	return nil
}
