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
	"github.com/mybigday/chattmpl/pkg/reasontag"
)

// reasoningTags returns the start/end literals that delimit format's
// reasoning block; every dialect uses "<think>"/"</think>" except the
// two that spell their own.
func reasoningTags(format chatmsg.ChatFormat) (start, end string) {
	switch format {
	case chatmsg.FormatMagistral:
		return "[THINK]", "[/THINK]"
	case chatmsg.FormatSeedOss:
		return "<seed:think>", "</seed:think>"
	default:
		return "<think>", "</think>"
	}
}

// reasoningOptions builds the reasontag configuration for one dialect's
// reasoning block, based on how its ParserSyntax was configured.
func reasoningOptions(syntax chatmsg.ParserSyntax) reasontag.Options {
	start, end := reasoningTags(syntax.Format)
	switch syntax.ReasoningFormat {
	case chatmsg.ReasoningFormatDeepSeek:
		return reasontag.Options{
			StartTag:              start,
			EndTag:                end,
			ForcedOpen:            syntax.ThinkingForcedOpen,
			InContent:             syntax.ReasoningInContent,
			InContentDeepSeekTags: syntax.ReasoningInContent,
		}
	case chatmsg.ReasoningFormatDeepSeekLegacy:
		return reasontag.Options{
			StartTag:         start,
			EndTag:           end,
			LegacyNoStartTag: true,
			InContent:        syntax.ReasoningInContent,
		}
	case chatmsg.ReasoningFormatAuto:
		return reasontag.Options{
			StartTag:   start,
			EndTag:     end,
			ForcedOpen: syntax.ThinkingForcedOpen,
			InContent:  syntax.ReasoningInContent,
		}
	default:
		return reasontag.Options{}
	}
}

// tryParseReasoning consumes a leading reasoning block if the dialect's
// ReasoningFormat calls for one; it is a no-op returning false for
// ReasoningFormatNone.
func tryParseReasoning(p *msgparser.Parser, syntax chatmsg.ParserSyntax) bool {
	if syntax.ReasoningFormat == chatmsg.ReasoningFormatNone {
		return false
	}
	return reasontag.TryParse(p, reasoningOptions(syntax))
}
