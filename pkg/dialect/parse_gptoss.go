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
	"strings"

	"github.com/mybigday/chattmpl/pkg/chatmsg"
	"github.com/mybigday/chattmpl/pkg/msgparser"
)

// parseGptOss reads GPT-OSS's message-header stream: each section opens
// with "<|channel|>CHANNEL<|message|>" (optionally preceded by
// "to=functions.NAME" marking a tool call) and runs until the next
// "<|start|>" or end of input. The text between "<|start|>" and
// "<|channel|>" (the role) is dropped. A malformed header, one that
// reaches the next "<|start|>" before its "<|message|>", is treated as
// content and the cursor rolls forward to that "<|start|>" rather than
// failing the whole parse.
func parseGptOss(p *msgparser.Parser, syntax chatmsg.ParserSyntax) error {
	for p.Pos() < len(p.Input()) {
		atStart := p.TryConsumeLiteral("<|start|>")
		header, ok := p.TryFindLiteral("<|channel|>")
		if !ok {
			p.AddContent(p.ConsumeRest())
			return nil
		}
		if !atStart {
			p.AddContent(header.Prelude)
		}

		headerStart := p.Pos()
		headerEnd, ok := p.TryFindLiteral("<|message|>")
		if !ok {
			p.AddContent(p.ConsumeRest())
			return nil
		}
		if idx := strings.Index(headerEnd.Prelude, "<|start|>"); idx >= 0 {
			p.AddContent("<|channel|>" + headerEnd.Prelude[:idx])
			p.MoveTo(headerStart + idx)
			continue
		}
		channel := strings.TrimSpace(headerEnd.Prelude)
		toolName, channel := splitGptOssRecipient(channel)

		body, ok := p.TryFindLiteral("<|start|>")
		var text string
		if ok {
			text = body.Prelude
			p.MoveBack(len("<|start|>"))
		} else {
			text = p.ConsumeRest()
		}

		switch {
		case toolName != "":
			p.AddToolCall(toolName, "", text)
		case channel == "final" || channel == "":
			p.AddContent(text)
		case channel == "analysis":
			p.AddReasoningContent(text)
		default: // commentary and any other named channel
			p.AddContent(text)
		}
	}
	return nil
}

// splitGptOssRecipient splits a GPT-OSS channel header of the form
// "commentary to=functions.get_weather" into its tool name (empty if
// this isn't a tool-call section) and bare channel name.
func splitGptOssRecipient(header string) (toolName, channel string) {
	const marker = " to=functions."
	if idx := strings.Index(header, marker); idx >= 0 {
		channel = header[:idx]
		toolName = header[idx+len(marker):]
		return toolName, channel
	}
	return "", header
}
