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

// Package reasontag extracts "<think>...</think>"-family reasoning
// blocks out of a model's raw output, routing the stripped text to
// either a cursor's reasoning-content buffer or back into its visible
// content, depending on dialect configuration. It knows nothing about
// JSON, tool calls, or any other part of a message; it only manipulates
// the small cursor surface a host package exposes (see Cursor).
package reasontag

import (
	"strings"
)

// Cursor is the subset of pkg/msgparser.Parser this package drives. A
// host parser implements it to let reasontag read and advance its
// cursor without either package importing the other's types.
type Cursor interface {
	Input() string
	Pos() int
	MoveTo(pos int)
	IsPartial() bool
	AddContent(s string)
	AddReasoningContent(s string)
	ContentLen() int
	ReasoningContentLen() int
	TruncateContent(n int)
	TruncateReasoningContent(n int)
	FindPartialStop(haystack, needle string) (string, bool)
}

// Options configures how a reasoning block is recognized and routed.
type Options struct {
	// StartTag/EndTag delimit the reasoning block, e.g. "<think>"/"</think>".
	StartTag, EndTag string
	// ForcedOpen treats input as already inside a reasoning block even
	// when StartTag is missing, matching formats (DeepSeek R1) whose
	// template opens the tag on the model's behalf.
	ForcedOpen bool
	// InContent re-emits the tag and its stripped text into content
	// instead of routing it to reasoning content.
	InContent bool
	// InContentDeepSeekTags, when InContent is set, re-emits the literal
	// "<think>"/"</think>" strings regardless of StartTag/EndTag (the
	// DeepSeek reasoning format's convention).
	InContentDeepSeekTags bool
	// LegacyNoStartTag skips start-tag detection entirely and always
	// behaves as if the block were already open, for formats (DeepSeek
	// legacy) whose wire format never emits an opening tag at all, only
	// the closing one.
	LegacyNoStartTag bool
}

// TryParse attempts to consume a reasoning block at or after the
// cursor's current position, advancing it and returning true if any
// reasoning-related text (including a forced-open tail) was consumed.
// It returns false, leaving the cursor untouched, when no reasoning
// block applies here at all.
func TryParse(c Cursor, opts Options) bool {
	forcedOpen := opts.ForcedOpen || opts.LegacyNoStartTag

	var pendingPrefix string
	setPrefix := func(prefixPos int) {
		if !forcedOpen || opts.InContent {
			return
		}
		if prefixPos+len(opts.StartTag) > len(c.Input()) {
			pendingPrefix = ""
			return
		}
		pendingPrefix = c.Input()[prefixPos : prefixPos+len(opts.StartTag)]
	}

	handle := func(reasoning string, closed bool) {
		stripped := strings.TrimSpace(reasoning)
		if stripped == "" {
			return
		}
		if opts.InContent {
			openTag, closeTag := opts.StartTag, opts.EndTag
			if opts.InContentDeepSeekTags {
				openTag, closeTag = "<think>", "</think>"
			}
			c.AddContent(openTag)
			c.AddContent(stripped)
			if closed {
				c.AddContent(closeTag)
			}
			return
		}
		if pendingPrefix != "" {
			c.AddReasoningContent(pendingPrefix)
			pendingPrefix = ""
		}
		c.AddReasoningContent(stripped)
	}

	savedPos := c.Pos()
	savedContentLen := c.ContentLen()
	savedReasoningLen := c.ReasoningContentLen()
	restore := func() {
		c.MoveTo(savedPos)
		c.TruncateContent(savedContentLen)
		c.TruncateReasoningContent(savedReasoningLen)
	}

	input := c.Input()
	cursor := c.Pos()
	wsEnd := cursor
	for wsEnd < len(input) && isSpace(input[wsEnd]) {
		wsEnd++
	}

	if wsEnd >= len(input) {
		restore()
		if forcedOpen {
			rest := input[savedPos:]
			if rest != "" {
				handle(rest, !c.IsPartial())
			}
			c.MoveTo(len(input))
			return true
		}
		return false
	}

	cursor = wsEnd
	hasStartTag := false
	if !opts.LegacyNoStartTag {
		remaining := len(input) - cursor
		startPrefix := min(len(opts.StartTag), remaining)
		hasStartTag = input[cursor:cursor+startPrefix] == opts.StartTag[:startPrefix]

		if hasStartTag && startPrefix < len(opts.StartTag) {
			c.MoveTo(len(input))
			return true
		}
	}

	switch {
	case hasStartTag:
		if wsEnd > c.Pos() {
			c.AddContent(input[c.Pos():wsEnd])
		}
		setPrefix(cursor)
		cursor += len(opts.StartTag)
	case forcedOpen:
		cursor = wsEnd
	default:
		restore()
		return false
	}

	for {
		if cursor >= len(input) {
			c.MoveTo(len(input))
			return true
		}

		endPos := strings.Index(input[cursor:], opts.EndTag)
		if endPos < 0 {
			remaining := input[cursor:]
			partialOff := -1
			if stop, ok := c.FindPartialStop(remaining, opts.EndTag); ok {
				partialOff = len(remaining) - len(stop)
			}
			reasoningEnd := len(input)
			closed := false
			if partialOff >= 0 {
				reasoningEnd = cursor + partialOff
			} else {
				closed = !c.IsPartial()
			}
			if reasoningEnd > cursor {
				handle(input[cursor:reasoningEnd], closed)
			}
			c.MoveTo(len(input))
			return true
		}
		endPos += cursor

		if endPos > cursor {
			handle(input[cursor:endPos], true)
		} else {
			handle("", true)
		}

		cursor = endPos + len(opts.EndTag)
		for cursor < len(input) && isSpace(input[cursor]) {
			cursor++
		}

		if cursor == len(input) {
			c.MoveTo(cursor)
			return true
		}

		if !opts.LegacyNoStartTag {
			remaining := len(input) - cursor
			nextPrefix := min(len(opts.StartTag), remaining)
			if input[cursor:cursor+nextPrefix] == opts.StartTag[:nextPrefix] {
				if nextPrefix < len(opts.StartTag) {
					c.MoveTo(len(input))
					return true
				}
				setPrefix(cursor)
				cursor += len(opts.StartTag)
				continue
			}
		}

		c.MoveTo(cursor)
		return true
	}
}

func isSpace(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	default:
		return false
	}
}
