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

// Package msgparser provides the cursor that every dialect-specific
// parser drives to turn raw model output into a chatmsg.Message: literal
// and regex consumption, JSON-with-healing consumption, and tool-call
// accumulation, all aware that the input might be a truncated prefix of
// a longer stream still being generated.
package msgparser

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/mybigday/chattmpl/pkg/chatmsg"
	"github.com/mybigday/chattmpl/pkg/partialjson"
	"github.com/mybigday/chattmpl/pkg/regexutil"
)

// ErrPartial signals that the parser could not make a decision because
// input ended mid-token, mid-JSON-value, or mid-delimiter. Callers
// driving a streaming parse treat this as "come back with more bytes";
// callers parsing a final, complete response treat it as a hard error.
var ErrPartial = errors.New("msgparser: incomplete input")

// partialErr wraps ErrPartial with the token or construct that was cut
// short, so callers get a useful message via errors.Is(err, ErrPartial).
type partialErr struct {
	what string
}

func (e *partialErr) Error() string { return fmt.Sprintf("msgparser: incomplete %s", e.what) }
func (e *partialErr) Unwrap() error { return ErrPartial }

func partial(what string) error { return &partialErr{what: what} }

// FindRegexResult is the outcome of a successful TryFindRegex/TryConsumeRegex.
type FindRegexResult struct {
	Prelude string
	Groups  []regexutil.Group
}

// Parser is the cursor driving incremental extraction of a Message out
// of raw model output.
type Parser struct {
	input         string
	pos           int
	isPartial     bool
	healingMarker string

	content          strings.Builder
	reasoningContent strings.Builder
	toolCalls        []chatmsg.ToolCall
}

// New returns a cursor over input. isPartial marks whether more bytes
// may still follow (streaming mode) or input is the complete response.
func New(input string, isPartial bool) *Parser {
	return &Parser{
		input:         input,
		isPartial:     isPartial,
		healingMarker: freshMarker(input),
	}
}

func freshMarker(input string) string {
	for {
		m := partialjson.NewHealingMarker()
		if !strings.Contains(input, m) {
			return m
		}
	}
}

// Input returns the full input text the cursor was constructed with.
func (p *Parser) Input() string { return p.input }

// IsPartial reports whether the parser is operating in streaming mode.
func (p *Parser) IsPartial() bool { return p.isPartial }

// Pos returns the cursor's current byte offset.
func (p *Parser) Pos() int { return p.pos }

// MoveTo sets the cursor's byte offset directly.
func (p *Parser) MoveTo(pos int) { p.pos = pos }

// MoveBack rewinds the cursor by n bytes, clamped at zero.
func (p *Parser) MoveBack(n int) {
	p.pos -= n
	if p.pos < 0 {
		p.pos = 0
	}
}

// HealingMarker returns the per-parse sentinel string substituted at
// JSON truncation points; it is guaranteed not to occur in Input().
func (p *Parser) HealingMarker() string { return p.healingMarker }

// Str returns input[start:end].
func (p *Parser) Str(start, end int) string { return p.input[start:end] }

// AddContent appends to the accumulated assistant-visible content.
func (p *Parser) AddContent(s string) { p.content.WriteString(s) }

// AddReasoningContent appends to the accumulated reasoning content.
func (p *Parser) AddReasoningContent(s string) { p.reasoningContent.WriteString(s) }

// ContentLen returns the number of bytes appended to content so far.
func (p *Parser) ContentLen() int { return p.content.Len() }

// ReasoningContentLen returns the number of bytes appended to reasoning
// content so far.
func (p *Parser) ReasoningContentLen() int { return p.reasoningContent.Len() }

// TruncateContent discards everything appended to content after byte n,
// letting a caller back out of a speculative append (see reasontag).
func (p *Parser) TruncateContent(n int) {
	s := p.content.String()
	p.content.Reset()
	p.content.WriteString(s[:n])
}

// TruncateReasoningContent is TruncateContent for reasoning content.
func (p *Parser) TruncateReasoningContent(n int) {
	s := p.reasoningContent.String()
	p.reasoningContent.Reset()
	p.reasoningContent.WriteString(s[:n])
}

// FindPartialStop is regexutil.FindPartialStop, exposed so pkg/reasontag
// can detect a delimiter truncated at the buffer tail without importing
// pkg/regexutil itself.
func (p *Parser) FindPartialStop(haystack, needle string) (string, bool) {
	return regexutil.FindPartialStop(haystack, needle)
}

// AddToolCall records one tool call; it is a no-op returning false if
// name is empty (the origin library's signal for "not really a call").
func (p *Parser) AddToolCall(name, id, arguments string) bool {
	if name == "" {
		return false
	}
	p.toolCalls = append(p.toolCalls, chatmsg.ToolCall{Name: name, Arguments: arguments, ID: id})
	return true
}

// AddToolCallJSON records a tool call described by an object shaped
// like {"name":..., "id":..., "arguments":...}; arguments may already be
// a JSON object (its raw bytes are kept as the arguments string) or a
// string.
func (p *Parser) AddToolCallJSON(raw json.RawMessage) bool {
	var obj struct {
		Name      string          `json:"name"`
		ID        string          `json:"id"`
		Arguments json.RawMessage `json:"arguments"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return false
	}
	arguments := ""
	if len(obj.Arguments) > 0 && string(obj.Arguments) != "null" {
		var asString string
		if err := json.Unmarshal(obj.Arguments, &asString); err == nil {
			arguments = asString
		} else {
			arguments = string(obj.Arguments)
		}
	}
	return p.AddToolCall(obj.Name, obj.ID, arguments)
}

// AddToolCalls records every element of a JSON array of tool-call
// objects, stopping (and returning false) at the first invalid entry.
func (p *Parser) AddToolCalls(arr []json.RawMessage) bool {
	for _, item := range arr {
		if !p.AddToolCallJSON(item) {
			return false
		}
	}
	return true
}

// AddToolCallShortForm records a tool call expressed as a single-key
// object {"tool_name": {..args..}} or {"tool_name": "raw string arg"}.
func (p *Parser) AddToolCallShortForm(raw json.RawMessage) bool {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil || len(obj) != 1 {
		return false
	}
	for name, val := range obj {
		if name == "" {
			return false
		}
		arguments := ""
		var asString string
		if err := json.Unmarshal(val, &asString); err == nil {
			arguments = asString
		} else if string(val) != "null" {
			arguments = string(val)
		}
		return p.AddToolCall(name, "", arguments)
	}
	return false
}

// ToolCalls returns the tool calls accumulated so far.
func (p *Parser) ToolCalls() []chatmsg.ToolCall { return p.toolCalls }

// ToolCallCount returns how many tool calls have been accumulated so
// far, letting a caller snapshot it before a speculative parse.
func (p *Parser) ToolCallCount() int { return len(p.toolCalls) }

// TruncateToolCalls discards every tool call accumulated after index n,
// backing out of a speculative parse that turned out not to match.
func (p *Parser) TruncateToolCalls(n int) { p.toolCalls = p.toolCalls[:n] }

// Result assembles the accumulated content/reasoning/tool-calls into a
// Message once parsing is done.
func (p *Parser) Result() chatmsg.Message {
	return chatmsg.Message{
		Role:             chatmsg.RoleAssistant,
		Content:          p.content.String(),
		ReasoningContent: p.reasoningContent.String(),
		ToolCalls:        p.toolCalls,
	}
}

// Finish validates that a non-streaming parse consumed all its input.
func (p *Parser) Finish() error {
	if !p.isPartial && p.pos != len(p.input) {
		return fmt.Errorf("msgparser: unexpected content at end of input: %q", p.input[p.pos:])
	}
	return nil
}

// ConsumeSpaces advances past ASCII whitespace, returning whether any
// was consumed.
func (p *Parser) ConsumeSpaces() bool {
	start := p.pos
	for p.pos < len(p.input) && isSpace(p.input[p.pos]) {
		p.pos++
	}
	return p.pos > start
}

func isSpace(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	default:
		return false
	}
}

// TryConsumeLiteral advances past literal if it occurs exactly at the
// cursor, returning whether it matched.
func (p *Parser) TryConsumeLiteral(literal string) bool {
	pos := p.pos
	for i := 0; i < len(literal); i++ {
		if pos >= len(p.input) || p.input[pos] != literal[i] {
			return false
		}
		pos++
	}
	p.pos = pos
	return true
}

// ConsumeLiteral is TryConsumeLiteral but returns ErrPartial if literal
// is not found at the cursor.
func (p *Parser) ConsumeLiteral(literal string) error {
	if !p.TryConsumeLiteral(literal) {
		return partial(fmt.Sprintf("literal %q", literal))
	}
	return nil
}

// TryFindLiteral scans forward for literal anywhere at or after the
// cursor. In streaming mode, a literal that appears truncated at the
// very end of input also counts as a match (found=true), since more
// bytes could still complete it; the caller inspects Groups to see it
// consumed to end-of-input rather than past a full literal.
func (p *Parser) TryFindLiteral(literal string) (FindRegexResult, bool) {
	if idx := strings.Index(p.input[p.pos:], literal); idx >= 0 {
		absIdx := p.pos + idx
		prelude := p.input[p.pos:absIdx]
		end := absIdx + len(literal)
		res := FindRegexResult{Prelude: prelude, Groups: []regexutil.Group{{Begin: absIdx, End: end}}}
		p.MoveTo(end)
		return res, true
	}
	if p.isPartial {
		if stop, ok := regexutil.FindPartialStop(p.input[p.pos:], literal); ok {
			absIdx := len(p.input) - len(stop)
			prelude := p.input[p.pos:absIdx]
			res := FindRegexResult{Prelude: prelude, Groups: []regexutil.Group{{Begin: absIdx, End: len(p.input)}}}
			p.MoveTo(len(p.input))
			return res, true
		}
	}
	return FindRegexResult{}, false
}

// TryFindRegex searches re at or after from (or the cursor, if from <
// 0), moving the cursor past the match. addPreludeToContent appends the
// skipped-over text to content as a side effect, the common case when a
// dialect's preamble text is itself message content.
func (p *Parser) TryFindRegex(re *regexp.Regexp, from int, addPreludeToContent bool) (*FindRegexResult, error) {
	start := from
	if start < 0 {
		start = p.pos
	}
	m := regexutil.Find(re, p.input, start)
	if m.Type == regexutil.NoMatch {
		return nil, nil
	}
	prelude := p.input[p.pos:m.Start]
	p.MoveTo(m.End)
	if addPreludeToContent {
		p.AddContent(prelude)
	}
	if m.Type == regexutil.PartialMatch {
		if p.isPartial {
			return nil, partial(fmt.Sprintf("regex %s", re.String()))
		}
		return nil, nil
	}
	return &FindRegexResult{Prelude: prelude, Groups: m.Groups}, nil
}

// TryConsumeRegex matches re only if it matches starting exactly at the
// cursor.
func (p *Parser) TryConsumeRegex(re *regexp.Regexp) (*FindRegexResult, error) {
	m := regexutil.Find(re, p.input, p.pos)
	if m.Type == regexutil.NoMatch {
		return nil, nil
	}
	if m.Type == regexutil.PartialMatch {
		if p.isPartial {
			return nil, partial(fmt.Sprintf("regex %s", re.String()))
		}
		return nil, nil
	}
	if m.Start != p.pos {
		return nil, nil
	}
	p.MoveTo(m.End)
	return &FindRegexResult{Groups: m.Groups}, nil
}

// ConsumeRegex is TryConsumeRegex but returns ErrPartial on no match.
func (p *Parser) ConsumeRegex(re *regexp.Regexp) (*FindRegexResult, error) {
	res, err := p.TryConsumeRegex(re)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, partial(fmt.Sprintf("regex %s", re.String()))
	}
	return res, nil
}

// ConsumeRest returns everything from the cursor to end of input and
// advances the cursor there.
func (p *Parser) ConsumeRest() string {
	rest := p.input[p.pos:]
	p.pos = len(p.input)
	return rest
}

// JSONResult is the outcome of TryConsumeJSON.
type JSONResult struct {
	Value  json.RawMessage
	Healed bool
}

// TryConsumeJSON parses one JSON value at the cursor, healing a
// truncated tail with the parser's shared marker. It returns (nil, nil)
// on no match at all (not even a truncated prefix), and an error
// wrapping ErrPartial if the value was healed but the parser is not in
// streaming mode.
func (p *Parser) TryConsumeJSON() (*JSONResult, error) {
	rest := p.input[p.pos:]
	if m := jsonValueByteLen(rest); m >= 0 {
		rest = rest[:m]
	}
	result, err := partialjson.ParseWithMarker(rest, p.healingMarker)
	if err != nil {
		return nil, nil
	}
	p.MoveTo(p.pos + len(rest))
	if result.Healed && !p.isPartial {
		return nil, partial("JSON")
	}
	return &JSONResult{Value: result.Value, Healed: result.Healed}, nil
}

// jsonValueByteLen reports how many leading bytes of s make up exactly
// one complete JSON value (trimming nothing), used to avoid swallowing
// trailing bytes that follow a fully-parsed value within a larger
// stream. Returns -1 if s is not a complete value from offset 0.
func jsonValueByteLen(s string) int {
	dec := json.NewDecoder(strings.NewReader(s))
	var raw json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return -1
	}
	return int(dec.InputOffset())
}

// ConsumeJSON is TryConsumeJSON but returns ErrPartial on no match.
func (p *Parser) ConsumeJSON() (*JSONResult, error) {
	res, err := p.TryConsumeJSON()
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, partial("JSON")
	}
	return res, nil
}

// ConsumeJSONResult is the outcome of consuming a JSON value whose
// "arguments" (and optionally "content") subtrees must come back out as
// JSON-encoded strings rather than nested values, matching the
// tool_calls[].function.arguments wire contract.
type ConsumeJSONResult struct {
	Value     json.RawMessage
	IsPartial bool
}

// TryConsumeJSONWithDumpedArgs is TryConsumeJSON plus a rewrite pass: at
// every path in argsPaths, the subtree is replaced by its compact JSON
// dump (a string); at every path in contentPaths, the subtree (which
// must already be a string) is truncated at the healing marker instead
// of carrying it forward. An empty path in argsPaths means "the whole
// parsed value is the arguments."
func (p *Parser) TryConsumeJSONWithDumpedArgs(argsPaths, contentPaths [][]string) (*ConsumeJSONResult, error) {
	raw, err := p.TryConsumeJSON()
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}

	if !raw.Healed {
		if len(argsPaths) == 0 {
			return &ConsumeJSONResult{Value: raw.Value, IsPartial: false}, nil
		}
		if containsPath(argsPaths, nil) {
			dumped, _ := json.Marshal(string(raw.Value))
			return &ConsumeJSONResult{Value: dumped, IsPartial: false}, nil
		}
	}

	var tree any
	if err := json.Unmarshal(raw.Value, &tree); err != nil {
		return nil, fmt.Errorf("msgparser: re-decoding healed JSON: %w", err)
	}

	foundMarker := false
	cleaned := rewriteArgsAndContent(tree, nil, argsPaths, contentPaths, p.healingMarker, p.isPartial, &foundMarker)
	cleanedJSON, err := json.Marshal(cleaned)
	if err != nil {
		return nil, err
	}
	return &ConsumeJSONResult{Value: cleanedJSON, IsPartial: foundMarker}, nil
}

// ConsumeJSONWithDumpedArgs is TryConsumeJSONWithDumpedArgs but returns
// ErrPartial on no match.
func (p *Parser) ConsumeJSONWithDumpedArgs(argsPaths, contentPaths [][]string) (*ConsumeJSONResult, error) {
	res, err := p.TryConsumeJSONWithDumpedArgs(argsPaths, contentPaths)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, partial("JSON")
	}
	return res, nil
}

func containsPath(paths [][]string, path []string) bool {
	for _, p := range paths {
		if pathEqual(p, path) {
			return true
		}
	}
	return false
}

func pathEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// rewriteArgsAndContent walks a decoded JSON tree, dumping argsPaths
// subtrees to raw JSON strings (truncated at marker) and content-path
// string values truncated at marker, mirroring the origin recursive
// healing cleanup.
func rewriteArgsAndContent(v any, path []string, argsPaths, contentPaths [][]string, marker string, isPartial bool, found *bool) any {
	if containsPath(argsPaths, path) {
		dumped, _ := json.Marshal(v)
		s := string(dumped)
		if isPartial {
			if idx := strings.Index(s, marker); idx >= 0 {
				s = s[:idx]
				*found = true
			}
			if s == `"` {
				s = ""
			}
		}
		return s
	}
	if containsPath(contentPaths, path) {
		s, _ := v.(string)
		if idx := strings.Index(s, marker); idx >= 0 {
			s = s[:idx]
			*found = true
		}
		return s
	}

	switch t := v.(type) {
	case map[string]any:
		out := map[string]any{}
		for k, val := range t {
			if strings.Contains(k, marker) {
				*found = true
				continue
			}
			childPath := append(append([]string{}, path...), k)
			if sv, ok := val.(string); ok && strings.Contains(sv, marker) {
				*found = true
				continue
			}
			out[k] = rewriteArgsAndContent(val, childPath, argsPaths, contentPaths, marker, isPartial, found)
		}
		return out
	case []any:
		var out []any
		for _, val := range t {
			if sv, ok := val.(string); ok && strings.Contains(sv, marker) {
				*found = true
				break
			}
			out = append(out, rewriteArgsAndContent(val, path, argsPaths, contentPaths, marker, isPartial, found))
		}
		return out
	default:
		return v
	}
}
