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

package xmltoolcall

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"

	"github.com/mybigday/chattmpl/pkg/msgparser"
)

// errRecoverable marks a structural mismatch that should unwind back to
// the call's starting position and report "no tool call here" rather
// than propagating as a hard parse failure.
var errRecoverable = errors.New("xmltoolcall: recoverable syntax mismatch")

// orderedArgs builds a tool call's arguments object preserving
// insertion order, with support for dumping a value that is still
// being streamed in as an intentionally truncated JSON document — the
// string a client should render as "there's more coming".
type orderedArgs struct {
	keys        []string
	vals        []json.RawMessage
	partialIdx  int
	partialText string
}

func newOrderedArgs() *orderedArgs { return &orderedArgs{partialIdx: -1} }

func (a *orderedArgs) set(key string, raw json.RawMessage) {
	for i, k := range a.keys {
		if k == key {
			a.vals[i] = raw
			return
		}
	}
	a.keys = append(a.keys, key)
	a.vals = append(a.vals, raw)
}

func (a *orderedArgs) setString(key, s string) { a.set(key, mustMarshal(s)) }

func (a *orderedArgs) setPartialString(key, text string) {
	a.set(key, nil)
	a.partialIdx = len(a.keys) - 1
	a.partialText = text
}

func mustMarshal(v any) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}

// dump renders the object dumped so far, truncated mid-value if a
// partial key is set, or with its closing brace dropped if the object
// is otherwise complete but the caller knows more keys may follow.
func (a *orderedArgs) dump(closeBrace bool) string {
	var sb strings.Builder
	sb.WriteByte('{')
	for i, k := range a.keys {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.Write(mustMarshal(k))
		sb.WriteByte(':')
		if i == a.partialIdx {
			full := string(mustMarshal(a.partialText))
			sb.WriteString(strings.TrimSuffix(full, `"`))
			return sb.String()
		}
		sb.Write(a.vals[i])
	}
	if closeBrace {
		sb.WriteByte('}')
	}
	return sb.String()
}

// utf8TruncateSafe trims s back to the last full UTF-8 codepoint
// boundary, in case the stream cut off mid-rune.
func utf8TruncateSafe(s string) string {
	if s == "" {
		return s
	}
	for back := 0; back < 4 && back < len(s); back++ {
		i := len(s) - 1 - back
		c := s[i]
		if c&0x80 == 0 {
			return s
		}
		if c&0xC0 == 0xC0 {
			var want int
			switch {
			case c&0xE0 == 0xC0:
				want = 2
			case c&0xF0 == 0xE0:
				want = 3
			case c&0xF8 == 0xF0:
				want = 4
			default:
				return s[:i]
			}
			if len(s)-i >= want {
				return s
			}
			return s[:i]
		}
	}
	cut := len(s) - 3
	if cut < 0 {
		cut = 0
	}
	return s[:cut]
}

// findEither tries end, then altEnd if set, returning whichever yields
// the match closest to the cursor (the "nearest terminator wins" rule
// the origin uses when a dialect accepts an alternate final-element
// terminator).
func findEither(p *msgparser.Parser, end, altEnd string) (*msgparser.FindRegexResult, bool) {
	saved := p.Pos()
	res, ok := p.TryFindLiteral(end)
	if altEnd == "" || altEnd == end {
		return res, ok
	}
	endPos := p.Pos()
	p.MoveTo(saved)
	altRes, altOK := p.TryFindLiteral(altEnd)
	switch {
	case ok && altOK:
		if len(altRes.Prelude) < len(res.Prelude) {
			return altRes, true
		}
		p.MoveTo(endPos)
		return res, true
	case altOK:
		return altRes, true
	case ok:
		p.MoveTo(endPos)
		return res, true
	default:
		return nil, false
	}
}

// TryConsumeXMLToolCalls attempts to parse zero or more XML-style tool
// calls at the cursor. It returns (true, nil) on success, (false, nil)
// when the input plainly isn't an XML tool call here (cursor
// untouched), and a non-nil error wrapping msgparser.ErrPartial when
// the input is a genuine truncated prefix of one — in that case the
// cursor and any tool calls already added are left in place, since a
// streaming caller may have already surfaced them.
func TryConsumeXMLToolCalls(p *msgparser.Parser, form Format) (bool, error) {
	startPos := p.Pos()
	startToolCalls := p.ToolCallCount()

	ok, err := parseXMLToolCalls(p, form)
	if err == nil {
		return ok, nil
	}
	if errors.Is(err, msgparser.ErrPartial) {
		return false, err
	}
	p.MoveTo(startPos)
	p.TruncateToolCalls(startToolCalls)
	return false, nil
}

func parseXMLToolCalls(p *msgparser.Parser, form Format) (bool, error) {
	startPos := p.Pos()

	if !allSpace(form.ScopeStart) {
		res, ok := p.TryFindLiteral(form.ScopeStart)
		if !ok {
			return false, nil
		}
		if !allSpace(res.Prelude) {
			p.MoveTo(startPos)
			return false, nil
		}
		if res.Groups[0].End-res.Groups[0].Begin != len(form.ScopeStart) {
			return false, partial("scope start")
		}
	}

	matchedAny := false
	for {
		res, ok := p.TryFindLiteral(form.ToolStart)
		if !ok {
			break
		}
		if !allSpace(res.Prelude) {
			p.MoveBack(len(form.ToolStart) + len(res.Prelude))
			break
		}

		name, err := parseToolName(p, form)
		if err != nil {
			return false, err
		}

		args := newOrderedArgs()
		for {
			keyRes, ok := p.TryFindLiteral(form.KeyStart)
			if !ok {
				break
			}
			if !allSpace(keyRes.Prelude) {
				p.MoveBack(len(form.KeyStart) + len(keyRes.Prelude))
				break
			}
			if keyRes.Groups[0].End-keyRes.Groups[0].Begin != len(form.KeyStart) {
				emitPartial(p, name, args, true)
				return true, partial("key start tag")
			}

			keySepRes, ok := p.TryFindLiteral(form.KeyValSep)
			if !ok {
				args.setPartialString("", "")
				emitPartial(p, name, args, false)
				return true, partial("key/value separator")
			}
			key := keySepRes.Prelude
			if keySepRes.Groups[0].End-keySepRes.Groups[0].Begin != len(form.KeyValSep) {
				args.setPartialString(key, "")
				emitPartial(p, name, args, false)
				return true, partial("key/value separator")
			}

			if form.KeyValSep2 != "" {
				sep2Res, ok := p.TryFindLiteral(form.KeyValSep2)
				if !ok {
					args.setPartialString(key, "")
					emitPartial(p, name, args, false)
					return true, partial("second key/value separator")
				}
				if !allSpace(sep2Res.Prelude) {
					return false, errRecoverable
				}
				if sep2Res.Groups[0].End-sep2Res.Groups[0].Begin != len(form.KeyValSep2) {
					args.setPartialString(key, "")
					emitPartial(p, name, args, false)
					return true, partial("second key/value separator")
				}
			}

			if err := parseArgValue(p, form, args, name, key); err != nil {
				return true, err
			}
		}

		toolEndRes, ok := findEither(p, form.ToolEnd, form.LastToolEnd)
		if ok {
			if !allSpace(toolEndRes.Prelude) {
				return false, errRecoverable
			}
			dumped := args.dump(true)
			if !p.AddToolCall(name, "", dumped) {
				return true, partial("failed to add tool call")
			}
			matchedAny = true
			continue
		}

		dumped := args.dump(true)
		dumped = strings.TrimSuffix(dumped, "}")
		p.AddToolCall(name, "", dumped)
		return true, partial("tool end tag")
	}

	if !matchedAny && allSpace(form.ScopeStart) {
		return false, nil
	}

	if !allSpace(form.ScopeEnd) {
		res, ok := p.TryFindLiteral(form.ScopeEnd)
		if !ok {
			if allSpace(form.ScopeEnd) {
				return true, nil
			}
			p.ConsumeSpaces()
			if p.Pos() == len(p.Input()) {
				return matchedAny, partial("scope end tag")
			}
			return false, errRecoverable
		}
		if !allSpace(res.Prelude) {
			return false, errRecoverable
		}
	}

	return true, nil
}

func parseToolName(p *msgparser.Parser, form Format) (string, error) {
	sepLiteral := form.ToolSep
	if allSpace(form.ToolSep) {
		sepLiteral = form.KeyStart
	}
	res, ok := p.TryFindLiteral(sepLiteral)
	if !ok {
		return "", partial("tool name")
	}

	name := strings.TrimSpace(res.Prelude)
	if allSpace(form.ToolSep) {
		p.MoveBack(len(sepLiteral))
	}
	if form.KimiK2 {
		name = stripKimiK2Suffix(name)
	}
	return name, nil
}

var kimiK2SuffixRe = regexp.MustCompile(`^functions\.(.+):\d+$`)

func stripKimiK2Suffix(name string) string {
	if m := kimiK2SuffixRe.FindStringSubmatch(name); m != nil {
		return m[1]
	}
	return name
}

func parseArgValue(p *msgparser.Parser, form Format, args *orderedArgs, name, key string) error {
	valStart := p.Pos()
	rawOnly := form.RawArgVal != nil && *form.RawArgVal

	if !rawOnly {
		jsonRes, err := p.TryConsumeJSON()
		if err == nil && jsonRes != nil && !jsonRes.Healed {
			jsonEnd := p.Pos()
			p.ConsumeSpaces()
			if p.Pos() == len(p.Input()) {
				p.MoveTo(jsonEnd)
				emitPartial(p, name, args, false)
				return partial("json argument value")
			}
			p.MoveTo(jsonEnd)

			valEndRes, ok := findEither(p, form.ValEnd, form.LastValEnd)
			if ok && allSpace(valEndRes.Prelude) {
				matchedLen := len(form.ValEnd)
				if valEndRes.Groups[0].End-valEndRes.Groups[0].Begin == matchedLen || form.LastValEnd != "" {
					args.set(key, jsonRes.Value)
					return nil
				}
			}
			p.MoveTo(valStart)
		} else {
			p.MoveTo(valStart)
		}
	}

	valEndRes, ok := findEither(p, form.ValEnd, form.LastValEnd)
	if !ok {
		rest := utf8TruncateSafe(p.ConsumeRest())
		if form.TrimRawArgVal {
			rest = strings.TrimSpace(rest)
		}
		args.setPartialString(key, rest)
		emitPartial(p, name, args, false)
		return partial("value end tag")
	}
	value := valEndRes.Prelude
	if form.TrimRawArgVal {
		value = strings.TrimSpace(value)
	}
	if valEndRes.Groups[0].End-valEndRes.Groups[0].Begin != len(form.ValEnd) && form.LastValEnd == "" {
		args.setPartialString(key, value)
		emitPartial(p, name, args, false)
		return partial("value end tag")
	}
	args.setString(key, value)
	return nil
}

// emitPartial surfaces a best-effort tool call for display mid-stream,
// matching the origin's "show the client what we have so far" behavior
// when input runs out before a tool call can be fully validated.
func emitPartial(p *msgparser.Parser, name string, args *orderedArgs, dropTrailingBrace bool) {
	dumped := args.dump(true)
	if dropTrailingBrace {
		dumped = strings.TrimSuffix(dumped, "}")
	}
	p.AddToolCall(name, "", dumped)
}

func partial(what string) error { return &partialErr{what: what} }

type partialErr struct{ what string }

func (e *partialErr) Error() string { return "xmltoolcall: incomplete " + e.what }
func (e *partialErr) Unwrap() error { return msgparser.ErrPartial }
