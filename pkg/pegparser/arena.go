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

package pegparser

import (
	"fmt"
	"strings"
)

// Arena owns every node of one or more composed grammars plus the named
// rule table that ties them together.
type Arena struct {
	nodes []node
	rules map[string]ParserID
	root  ParserID
}

// NewArena returns an empty Arena.
func NewArena() *Arena {
	return &Arena{rules: map[string]ParserID{}, root: InvalidParserID}
}

func (a *Arena) addNode(n node) ParserID {
	a.nodes = append(a.nodes, n)
	return ParserID(len(a.nodes) - 1)
}

func (a *Arena) addRule(name string, id ParserID) {
	a.rules[name] = id
}

// Get returns the node stored at id.
func (a *Arena) Get(id ParserID) node { return a.nodes[id] }

// Size returns the number of nodes in the arena.
func (a *Arena) Size() int { return len(a.nodes) }

// Empty reports whether the arena holds no nodes.
func (a *Arena) Empty() bool { return len(a.nodes) == 0 }

// GetRule returns the parser ID registered under name, or
// InvalidParserID if no such rule exists.
func (a *Arena) GetRule(name string) ParserID {
	if id, ok := a.rules[name]; ok {
		return id
	}
	return InvalidParserID
}

// HasRule reports whether name is a registered rule.
func (a *Arena) HasRule(name string) bool {
	_, ok := a.rules[name]
	return ok
}

// Root returns the arena's entry-point parser, if one was set.
func (a *Arena) Root() ParserID { return a.root }

// SetRoot designates id as the arena's entry point.
func (a *Arena) SetRoot(id ParserID) { a.root = id }

// Parse runs the arena's root parser against ctx.Input starting at
// start. It panics if no root has been set, mirroring the origin
// library's own "programmer error" handling of this case.
func (a *Arena) Parse(ctx *Context, start int) Result {
	if a.root == InvalidParserID {
		panic("pegparser: no root parser set")
	}
	return a.ParseID(a.root, ctx, start)
}

// ParseID runs the parser at id against ctx.Input starting at start.
func (a *Arena) ParseID(id ParserID, ctx *Context, start int) Result {
	switch p := a.nodes[id].(type) {
	case epsilonNode:
		return okRange(start, start, nil)

	case startNode:
		if start == 0 {
			return okRange(start, start, nil)
		}
		return failAt(start)

	case endNode:
		if start >= len(ctx.Input) {
			return okRange(start, start, nil)
		}
		return failAt(start)

	case literalNode:
		pos := start
		for i := 0; i < len(p.Literal); i++ {
			if pos >= len(ctx.Input) {
				if !ctx.IsPartial {
					return failAt(start)
				}
				return needMore(start, pos, nil)
			}
			if ctx.Input[pos] != p.Literal[i] {
				return failAt(start)
			}
			pos++
		}
		return okRange(start, pos, nil)

	case sequenceNode:
		pos := start
		var nodes []ASTID
		for _, child := range p.Children {
			res := a.ParseID(child, ctx, pos)
			if res.Fail() {
				return failRange(start, res.End)
			}
			nodes = append(nodes, res.Nodes...)
			if res.NeedMoreInput() {
				return needMore(start, res.End, nodes)
			}
			pos = res.End
		}
		return okRange(start, pos, nodes)

	case choiceNode:
		for _, child := range p.Children {
			res := a.ParseID(child, ctx, start)
			if !res.Fail() {
				return res
			}
		}
		return failAt(start)

	case repetitionNode:
		return a.parseRepetition(p, ctx, start)

	case andNode:
		res := a.ParseID(p.Child, ctx, start)
		return Result{Type: res.Type, Start: start, End: start}

	case notNode:
		res := a.ParseID(p.Child, ctx, start)
		if res.Success() {
			return failAt(start)
		}
		if res.NeedMoreInput() {
			return res
		}
		return okRange(start, start, nil)

	case anyNode:
		if start >= len(ctx.Input) {
			if !ctx.IsPartial {
				return failAt(start)
			}
			return needMore(start, start, nil)
		}
		_, size, status := decodeUTF8At(ctx.Input, start)
		switch status {
		case utf8Incomplete:
			if !ctx.IsPartial {
				return failAt(start)
			}
			return needMore(start, start, nil)
		case utf8Invalid:
			return failAt(start)
		default:
			return okRange(start, start+size, nil)
		}

	case spaceNode:
		pos := start
		for pos < len(ctx.Input) && isSpaceByte(ctx.Input[pos]) {
			pos++
		}
		return okRange(start, pos, nil)

	case charsNode:
		return a.parseChars(p, ctx, start)

	case jsonStringNode:
		return a.parseJSONStringContent(ctx, start)

	case untilNode:
		return a.parseUntil(p, ctx, start)

	case schemaNode:
		return a.ParseID(p.Child, ctx, start)

	case ruleNode:
		res := a.ParseID(p.Child, ctx, start)
		if res.Fail() {
			return res
		}
		var text string
		if res.Start < len(ctx.Input) {
			end := res.End
			if end > len(ctx.Input) {
				end = len(ctx.Input)
			}
			text = ctx.Input[res.Start:end]
		}
		id := ctx.AST.Add(p.Name, "", res.Start, res.End, text, res.Nodes, res.NeedMoreInput())
		return Result{Type: res.Type, Start: res.Start, End: res.End, Nodes: []ASTID{id}}

	case tagNode:
		res := a.ParseID(p.Child, ctx, start)
		if res.Fail() {
			return res
		}
		var text string
		if res.Start < len(ctx.Input) {
			end := res.End
			if end > len(ctx.Input) {
				end = len(ctx.Input)
			}
			text = ctx.Input[res.Start:end]
		}
		id := ctx.AST.Add("", p.Tag, res.Start, res.End, text, res.Nodes, res.NeedMoreInput())
		return Result{Type: res.Type, Start: res.Start, End: res.End, Nodes: []ASTID{id}}

	case refNode:
		rule := a.GetRule(p.Name)
		if rule == InvalidParserID {
			panic(fmt.Sprintf("pegparser: undefined rule %q", p.Name))
		}
		return a.ParseID(rule, ctx, start)

	case atomicNode:
		res := a.ParseID(p.Child, ctx, start)
		if res.NeedMoreInput() {
			res.Nodes = nil
		}
		return res

	default:
		panic(fmt.Sprintf("pegparser: unhandled node type %T", p))
	}
}

func isSpaceByte(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	default:
		return false
	}
}

func (a *Arena) parseRepetition(p repetitionNode, ctx *Context, start int) Result {
	pos := start
	matchCount := 0
	var nodes []ASTID

	for p.Max == -1 || matchCount < p.Max {
		if pos >= len(ctx.Input) {
			break
		}
		res := a.ParseID(p.Child, ctx, pos)
		if res.Success() {
			if res.End == pos {
				break
			}
			nodes = append(nodes, res.Nodes...)
			pos = res.End
			matchCount++
			continue
		}
		if res.NeedMoreInput() {
			nodes = append(nodes, res.Nodes...)
			return needMore(start, res.End, nodes)
		}
		break
	}

	if p.Min > 0 && matchCount < p.Min {
		if pos >= len(ctx.Input) && ctx.IsPartial {
			return needMore(start, pos, nodes)
		}
		return failRange(start, pos)
	}
	return okRange(start, pos, nodes)
}

func (a *Arena) parseChars(p charsNode, ctx *Context, start int) Result {
	pos := start
	matchCount := 0

	for p.Max == -1 || matchCount < p.Max {
		if pos >= len(ctx.Input) {
			if matchCount >= p.Min {
				return okRange(start, pos, nil)
			}
			if !ctx.IsPartial {
				return failAt(start)
			}
			return needMore(start, pos, nil)
		}

		cp, size, status := decodeUTF8At(ctx.Input, pos)
		if status == utf8Incomplete {
			if matchCount >= p.Min {
				return okRange(start, pos, nil)
			}
			if !ctx.IsPartial {
				return failAt(start)
			}
			return needMore(start, pos, nil)
		}
		if status == utf8Invalid {
			if matchCount >= p.Min {
				return okRange(start, pos, nil)
			}
			return failAt(start)
		}

		matches := false
		for _, r := range p.Ranges {
			if r.contains(cp) {
				matches = true
				break
			}
		}
		if p.Negated {
			matches = !matches
		}
		if !matches {
			break
		}
		pos += size
		matchCount++
	}

	if matchCount < p.Min {
		if pos >= len(ctx.Input) && ctx.IsPartial {
			return needMore(start, pos, nil)
		}
		return failRange(start, pos)
	}
	return okRange(start, pos, nil)
}

func (a *Arena) parseJSONStringContent(ctx *Context, start int) Result {
	pos := start
	for pos < len(ctx.Input) {
		c := ctx.Input[pos]
		if c == '"' {
			return okRange(start, pos, nil)
		}
		if c == '\\' {
			res, newPos := a.parseEscapeSequence(ctx, start, pos)
			if !res.Success() {
				return res
			}
			pos = newPos
			continue
		}
		_, size, status := decodeUTF8At(ctx.Input, pos)
		switch status {
		case utf8Incomplete:
			if !ctx.IsPartial {
				return failAt(start)
			}
			return needMore(start, pos, nil)
		case utf8Invalid:
			return failAt(start)
		default:
			pos += size
		}
	}
	if !ctx.IsPartial {
		return failRange(start, pos)
	}
	return needMore(start, pos, nil)
}

// parseEscapeSequence parses one backslash escape starting at pos
// (ctx.Input[pos] == '\\'), returning the updated position on success.
func (a *Arena) parseEscapeSequence(ctx *Context, start, pos int) (Result, int) {
	pos++ // consume '\'
	if pos >= len(ctx.Input) {
		if !ctx.IsPartial {
			return failAt(start), pos
		}
		return needMore(start, pos, nil), pos
	}
	switch ctx.Input[pos] {
	case '"', '\\', '/', 'b', 'f', 'n', 'r', 't':
		pos++
		return okRange(start, pos, nil), pos
	case 'u':
		return a.parseUnicodeEscape(ctx, start, pos)
	default:
		return failAt(start), pos
	}
}

func (a *Arena) parseUnicodeEscape(ctx *Context, start, pos int) (Result, int) {
	pos++ // consume 'u'
	for i := 0; i < 4; i++ {
		if pos >= len(ctx.Input) {
			if !ctx.IsPartial {
				return failAt(start), pos
			}
			return needMore(start, pos, nil), pos
		}
		if !isHexDigit(ctx.Input[pos]) {
			return failAt(start), pos
		}
		pos++
	}
	return okRange(start, pos, nil), pos
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func (a *Arena) parseUntil(p untilNode, ctx *Context, start int) Result {
	matcher := newTrie(p.Delimiters)
	pos := start
	lastValid := start

	for pos < len(ctx.Input) {
		_, size, status := decodeUTF8At(ctx.Input, pos)
		if status == utf8Incomplete {
			if !ctx.IsPartial {
				return failAt(start)
			}
			return needMore(start, lastValid, nil)
		}
		if status == utf8Invalid {
			return failAt(start)
		}

		switch matcher.checkAt(ctx.Input, pos) {
		case trieCompleteMatch, triePartialMatch:
			return okRange(start, pos, nil)
		}

		pos += size
		lastValid = pos
	}

	if lastValid == len(ctx.Input) && ctx.IsPartial {
		return needMore(start, lastValid, nil)
	}
	return okRange(start, lastValid, nil)
}

// ResolveRefs replaces every Ref node reachable from a composite node's
// children (and the root) with the ID of the rule it names. Call this
// once after a grammar is fully built, before Parse or BuildGrammar.
func (a *Arena) ResolveRefs() {
	resolve := func(id ParserID) ParserID {
		if r, ok := a.nodes[id].(refNode); ok {
			return a.GetRule(r.Name)
		}
		return id
	}

	for i, n := range a.nodes {
		switch p := n.(type) {
		case sequenceNode:
			for j := range p.Children {
				p.Children[j] = resolve(p.Children[j])
			}
			a.nodes[i] = p
		case choiceNode:
			for j := range p.Children {
				p.Children[j] = resolve(p.Children[j])
			}
			a.nodes[i] = p
		case repetitionNode:
			p.Child = resolve(p.Child)
			a.nodes[i] = p
		case andNode:
			p.Child = resolve(p.Child)
			a.nodes[i] = p
		case notNode:
			p.Child = resolve(p.Child)
			a.nodes[i] = p
		case tagNode:
			p.Child = resolve(p.Child)
			a.nodes[i] = p
		case atomicNode:
			p.Child = resolve(p.Child)
			a.nodes[i] = p
		case ruleNode:
			p.Child = resolve(p.Child)
			a.nodes[i] = p
		case schemaNode:
			p.Child = resolve(p.Child)
			a.nodes[i] = p
		}
	}

	if a.root != InvalidParserID {
		a.root = resolve(a.root)
	}
}

// Dump renders a node and its children as a debugging s-expression.
func (a *Arena) Dump(id ParserID) string {
	switch p := a.nodes[id].(type) {
	case epsilonNode:
		return "Epsilon"
	case startNode:
		return "Start"
	case endNode:
		return "End"
	case literalNode:
		return fmt.Sprintf("Literal(%s)", p.Literal)
	case sequenceNode:
		return "Sequence(" + a.dumpChildren(p.Children) + ")"
	case choiceNode:
		return "Choice(" + a.dumpChildren(p.Children) + ")"
	case repetitionNode:
		return fmt.Sprintf("Repeat(%s,%d,%d)", a.Dump(p.Child), p.Min, p.Max)
	case andNode:
		return fmt.Sprintf("And(%s)", a.Dump(p.Child))
	case notNode:
		return fmt.Sprintf("Not(%s)", a.Dump(p.Child))
	case anyNode:
		return "Any"
	case spaceNode:
		return "Space"
	case charsNode:
		return fmt.Sprintf("Chars(%s)", p.Pattern)
	case jsonStringNode:
		return "JsonString"
	case untilNode:
		return fmt.Sprintf("Until(%s)", strings.Join(p.Delimiters, ","))
	case schemaNode:
		return fmt.Sprintf("Schema(%s,%s)", p.Name, a.Dump(p.Child))
	case ruleNode:
		return fmt.Sprintf("Rule(%s,%s)", p.Name, a.Dump(p.Child))
	case refNode:
		return fmt.Sprintf("Ref(%s)", p.Name)
	case atomicNode:
		return fmt.Sprintf("Atomic(%s)", a.Dump(p.Child))
	case tagNode:
		return fmt.Sprintf("Tag(%s,%s)", p.Tag, a.Dump(p.Child))
	default:
		return "?"
	}
}

func (a *Arena) dumpChildren(ids []ParserID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = a.Dump(id)
	}
	return strings.Join(parts, ", ")
}
