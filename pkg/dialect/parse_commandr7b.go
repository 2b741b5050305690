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

// parseCommandR7B reads Command R7B's three-section wire format in
// order: reasoning between START_THINKING/END_THINKING, a JSON array of
// tool calls between START_ACTION/END_ACTION, and plain content between
// START_RESPONSE/END_RESPONSE. Any section may be absent.
func parseCommandR7B(p *msgparser.Parser, syntax chatmsg.ParserSyntax) error {
	if found, ok := p.TryFindLiteral("<|START_THINKING|>"); ok {
		p.AddContent(found.Prelude)
		if end, ok := p.TryFindLiteral("<|END_THINKING|>"); ok {
			p.AddReasoningContent(end.Prelude)
		} else {
			p.AddReasoningContent(p.ConsumeRest())
			return nil
		}
	}

	if found, ok := p.TryFindLiteral("<|START_ACTION|>"); ok {
		p.AddContent(found.Prelude)
		result, err := p.ConsumeJSON()
		if err != nil {
			return err
		}
		var arr []json.RawMessage
		if err := json.Unmarshal(result.Value, &arr); err == nil {
			p.AddToolCalls(arr)
		}
		p.TryConsumeLiteral("<|END_ACTION|>")
	}

	if found, ok := p.TryFindLiteral("<|START_RESPONSE|>"); ok {
		p.AddContent(found.Prelude)
		if end, ok := p.TryFindLiteral("<|END_RESPONSE|>"); ok {
			p.AddContent(end.Prelude)
		} else {
			p.AddContent(p.ConsumeRest())
			return nil
		}
	}

	p.AddContent(p.ConsumeRest())
	return nil
}
