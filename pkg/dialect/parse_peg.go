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
	"sync"

	"github.com/mybigday/chattmpl/pkg/chatmsg"
	"github.com/mybigday/chattmpl/pkg/msgparser"
	"github.com/mybigday/chattmpl/pkg/pegparser"
)

// Tag names shared by every PEG dialect's reasoning/content capture, and
// the extra tags the two tool-call-capable dialects add on top. These
// mirror the tag constants the origin's common_chat_peg_builder family
// defines, one Go const per C++ static constexpr field.
const (
	tagReasoningBlock = "reasoning-block"
	tagReasoning      = "reasoning"
	tagContent        = "content"

	tagToolOpen  = "tool-open"
	tagToolClose = "tool-close"
	tagToolID    = "tool-id"
	tagToolName  = "tool-name"
	tagToolArgs  = "tool-args"

	tagToolArgOpen        = "tool-arg-open"
	tagToolArgClose       = "tool-arg-close"
	tagToolArgName        = "tool-arg-name"
	tagToolArgStringValue = "tool-arg-string-value"
	tagToolArgJSONValue   = "tool-arg-json-value"
)

func reasoningBlock(b *pegparser.Builder) pegparser.Parser {
	return b.Tag(tagReasoningBlock,
		b.Literal("<think>").Then(b.Tag(tagReasoning, b.Until("</think>"))).Then(b.Literal("</think>")),
	)
}

// buildPegSimpleArena is the minimal demonstration dialect: an optional
// reasoning block followed by plain content, with no tool-call syntax of
// its own — the PEG-arena equivalent of FormatContentOnly.
func buildPegSimpleArena() *pegparser.Arena {
	return pegparser.BuildPegParser(func(b *pegparser.Builder) {
		b.SetRoot(b.Sequence(b.Optional(reasoningBlock(b)), b.Tag(tagContent, b.Rest())))
	})
}

// buildPegNativeArena demonstrates a tool-call wire format expressed
// natively as a PEG grammar (rather than reusing pkg/xmltoolcall):
// "<tool_call><id>...</id><name>...</name><args>...</args></tool_call>",
// zero or more times, around the shared reasoning/content capture. Each
// field is captured as its own tagged node and copied verbatim into the
// tool call, matching common_chat_peg_native_mapper::map.
func buildPegNativeArena() *pegparser.Arena {
	return pegparser.BuildPegParser(func(b *pegparser.Builder) {
		toolID := b.Literal("<id>").Then(b.Tag(tagToolID, b.Until("</id>"))).Then(b.Literal("</id>"))
		toolName := b.Literal("<name>").Then(b.Tag(tagToolName, b.Until("</name>"))).Then(b.Literal("</name>"))
		toolArgs := b.Literal("<args>").Then(b.Tag(tagToolArgs, b.Until("</args>"))).Then(b.Literal("</args>"))

		call := b.Sequence(
			b.Tag(tagToolOpen, b.Literal("<tool_call>")),
			b.Optional(toolID),
			toolName,
			toolArgs,
			b.Tag(tagToolClose, b.Literal("</tool_call>")),
		)

		b.SetRoot(b.Sequence(
			b.Optional(reasoningBlock(b)),
			b.ZeroOrMore(call),
			b.Tag(tagContent, b.Rest()),
		))
	})
}

// buildPegConstructedArena demonstrates the incremental argument-by-
// argument construction pattern: each argument's name and value are
// captured as their own AST nodes, and the mapper assembles them into a
// JSON arguments string as it walks rather than parsing one JSON blob,
// matching common_chat_peg_constructed_mapper::map.
func buildPegConstructedArena() *pegparser.Arena {
	return pegparser.BuildPegParser(func(b *pegparser.Builder) {
		argValue := b.Choice(
			b.Tag(tagToolArgJSONValue, b.Sequence(b.Peek(b.Chars("{[", 1, 1)), b.Until("</arg>"))),
			b.Tag(tagToolArgStringValue, b.Until("</arg>")),
		)
		arg := b.Sequence(
			b.Tag(tagToolArgOpen, b.Literal("<arg name=\"")),
			b.Tag(tagToolArgName, b.Until("\">")),
			b.Literal("\">"),
			argValue,
			b.Tag(tagToolArgClose, b.Literal("</arg>")),
		)

		call := b.Sequence(
			b.Tag(tagToolOpen, b.Literal("<call name=\"")),
			b.Tag(tagToolName, b.Until("\">")),
			b.Literal("\">"),
			b.ZeroOrMore(arg),
			b.Tag(tagToolClose, b.Literal("</call>")),
		)

		b.SetRoot(b.Sequence(
			b.Optional(reasoningBlock(b)),
			b.ZeroOrMore(call),
			b.Tag(tagContent, b.Rest()),
		))
	})
}

var (
	pegArenasOnce sync.Once
	pegArenas     map[chatmsg.ChatFormat]*pegparser.Arena
)

func pegArenaFor(format chatmsg.ChatFormat) *pegparser.Arena {
	pegArenasOnce.Do(func() {
		pegArenas = map[chatmsg.ChatFormat]*pegparser.Arena{
			chatmsg.FormatPegSimple:      buildPegSimpleArena(),
			chatmsg.FormatPegNative:      buildPegNativeArena(),
			chatmsg.FormatPegConstructed: buildPegConstructedArena(),
		}
	})
	return pegArenas[format]
}

// parsePeg drives one of the three PEG-backed dialects: it prefers the
// arena carried on syntax.Parser (the deserialized form a renderer may
// have handed back via ChatParams.Parser) and falls back to the
// package's own cached build of that dialect's grammar.
func parsePeg(p *msgparser.Parser, syntax chatmsg.ParserSyntax) error {
	arena, _ := syntax.Parser.(*pegparser.Arena)
	if arena == nil {
		arena = pegArenaFor(syntax.Format)
	}

	offset := p.Pos()
	ctx := pegparser.NewContext(p.Input()[offset:], p.IsPartial())
	result := arena.Parse(ctx, 0)
	if result.Fail() {
		p.AddContent(p.ConsumeRest())
		return nil
	}
	if result.NeedMoreInput() {
		return msgparser.ErrPartial
	}

	mapper := newPegMessageMapper(p)
	for _, id := range result.Nodes {
		ctx.AST.Visit(id, mapper.visit)
	}
	p.MoveTo(offset + result.End)
	return nil
}

// pegMessageMapper is the Go equivalent of the origin's
// common_chat_peg_mapper family: it walks the AST produced by one of the
// three PEG grammars above and writes the tagged text into the message
// under construction, accumulating one tool call's fields between its
// tool-open and tool-close tags.
type pegMessageMapper struct {
	p *msgparser.Parser

	toolID     string
	toolName   string
	toolArgs   strings.Builder
	argCount   int
	needsQuote bool
}

func newPegMessageMapper(p *msgparser.Parser) *pegMessageMapper {
	return &pegMessageMapper{p: p}
}

func (m *pegMessageMapper) visit(node pegparser.ASTNode) {
	switch node.Tag {
	case tagReasoning:
		m.p.AddReasoningContent(trimTrailingSpace(node.Text))
	case tagContent:
		m.p.AddContent(trimTrailingSpace(node.Text))

	case tagToolOpen:
		m.toolID = ""
		m.toolName = ""
		m.toolArgs.Reset()
		m.argCount = 0
	case tagToolID:
		m.toolID = trimTrailingSpace(node.Text)
	case tagToolName:
		m.toolName = node.Text
		if m.toolArgs.Len() == 0 {
			m.toolArgs.WriteByte('{')
		}
	case tagToolArgs:
		m.toolArgs.Reset()
		m.toolArgs.WriteString(trimTrailingSpace(node.Text))

	case tagToolArgOpen:
		m.needsQuote = false
	case tagToolArgName:
		if m.argCount > 0 {
			m.toolArgs.WriteByte(',')
		}
		writeJSONString(&m.toolArgs, trimTrailingSpace(node.Text))
		m.toolArgs.WriteByte(':')
		m.argCount++
	case tagToolArgStringValue:
		writeJSONStringOpen(&m.toolArgs, node.Text)
		m.needsQuote = true
	case tagToolArgJSONValue:
		m.toolArgs.WriteString(trimTrailingSpace(node.Text))
	case tagToolArgClose:
		if m.needsQuote {
			m.toolArgs.WriteByte('"')
			m.needsQuote = false
		}

	case tagToolClose:
		if m.toolName != "" {
			args := m.toolArgs.String()
			if strings.HasPrefix(args, "{") && (m.argCount > 0 || !strings.HasSuffix(args, "}")) {
				args += "}"
			}
			m.p.AddToolCall(m.toolName, m.toolID, args)
		}
	}
}

func trimTrailingSpace(s string) string {
	return strings.TrimRight(s, " \t\n\r")
}

// writeJSONString appends s as a complete JSON string literal.
func writeJSONString(sb *strings.Builder, s string) {
	writeJSONStringOpen(sb, s)
	sb.WriteByte('"')
}

// writeJSONStringOpen appends s as a JSON string literal without its
// closing quote, so a caller can keep streaming more bytes into it
// before closing (used for argument values still being generated).
func writeJSONStringOpen(sb *strings.Builder, s string) {
	sb.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			sb.WriteString(`\"`)
		case '\\':
			sb.WriteString(`\\`)
		case '\n':
			sb.WriteString(`\n`)
		default:
			sb.WriteRune(r)
		}
	}
}
