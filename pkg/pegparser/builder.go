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
	"encoding/json"
	"fmt"
)

// Parser is a lightweight handle to a node in a Builder's arena,
// offering fluent composition (Then/Or) in place of the operator
// overloading the origin library uses for the same purpose.
type Parser struct {
	id ParserID
	b  *Builder
}

// ID returns the underlying node ID.
func (p Parser) ID() ParserID { return p.id }

// Then returns a two-element sequence of p followed by other.
func (p Parser) Then(other Parser) Parser { return p.b.Sequence(p, other) }

// ThenSpace returns a sequence of p, optional whitespace, then other.
func (p Parser) ThenSpace(other Parser) Parser {
	return p.b.Sequence(p, p.b.Space(), other)
}

// Or returns a choice between p and other.
func (p Parser) Or(other Parser) Parser { return p.b.Choice(p, other) }

// Builder incrementally assembles an Arena through composable parser
// constructors, mirroring a recursive-descent grammar definition.
type Builder struct {
	arena *Arena
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{arena: NewArena()}
}

func (b *Builder) wrap(id ParserID) Parser { return Parser{id: id, b: b} }
func (b *Builder) add(n node) Parser       { return b.wrap(b.arena.addNode(n)) }

// Eps matches nothing and always succeeds.
func (b *Builder) Eps() Parser { return b.add(epsilonNode{}) }

// Start matches only at offset zero.
func (b *Builder) Start() Parser { return b.add(startNode{}) }

// End matches only at end of input.
func (b *Builder) End() Parser { return b.add(endNode{}) }

// Literal matches an exact byte sequence.
func (b *Builder) Literal(s string) Parser { return b.add(literalNode{Literal: s}) }

// Sequence matches every parser in order; all must succeed.
func (b *Builder) Sequence(parsers ...Parser) Parser {
	ids := make([]ParserID, len(parsers))
	for i, p := range parsers {
		ids[i] = p.id
	}
	return b.add(sequenceNode{Children: ids})
}

// Choice matches the first parser that succeeds.
func (b *Builder) Choice(parsers ...Parser) Parser {
	ids := make([]ParserID, len(parsers))
	for i, p := range parsers {
		ids[i] = p.id
	}
	return b.add(choiceNode{Children: ids})
}

// Repeat matches between min and max (inclusive) repetitions of p.
// max == -1 means unbounded.
func (b *Builder) Repeat(p Parser, min, max int) Parser {
	return b.add(repetitionNode{Child: p.id, Min: min, Max: max})
}

// RepeatN matches exactly n repetitions of p.
func (b *Builder) RepeatN(p Parser, n int) Parser { return b.Repeat(p, n, n) }

// OneOrMore matches one or more repetitions of p.
func (b *Builder) OneOrMore(p Parser) Parser { return b.Repeat(p, 1, -1) }

// ZeroOrMore matches zero or more repetitions of p; always succeeds.
func (b *Builder) ZeroOrMore(p Parser) Parser { return b.Repeat(p, 0, -1) }

// Optional matches zero or one occurrence of p; always succeeds.
func (b *Builder) Optional(p Parser) Parser { return b.Repeat(p, 0, 1) }

// Peek is positive lookahead: succeeds without consuming input if p
// would succeed.
func (b *Builder) Peek(p Parser) Parser { return b.add(andNode{Child: p.id}) }

// Negate is negative lookahead: succeeds without consuming input if p
// would fail.
func (b *Builder) Negate(p Parser) Parser { return b.add(notNode{Child: p.id}) }

// Any matches a single UTF-8 codepoint.
func (b *Builder) Any() Parser { return b.add(anyNode{}) }

// Space matches zero or more whitespace characters.
func (b *Builder) Space() Parser { return b.add(spaceNode{}) }

// Chars matches between min and max codepoints drawn from classes, a
// compact class spec like "a-zA-Z0-9_" (or "^a-z" to negate). max == -1
// means unbounded.
func (b *Builder) Chars(classes string, min, max int) Parser {
	negated := false
	pattern := classes
	if len(classes) > 0 && classes[0] == '^' {
		negated = true
		classes = classes[1:]
	}
	return b.add(charsNode{
		Pattern: "[" + pattern + "]",
		Ranges:  parseCharClass(classes),
		Negated: negated,
		Min:     min,
		Max:     max,
	})
}

// parseCharClass turns a regex-bracket-style class body ("a-z0-9_") into
// codepoint ranges.
func parseCharClass(classes string) []CharRange {
	var ranges []CharRange
	runes := []rune(classes)
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		if c == '\\' && i+1 < len(runes) {
			i++
			ranges = append(ranges, CharRange{runes[i], runes[i]})
			continue
		}
		if i+2 < len(runes) && runes[i+1] == '-' {
			ranges = append(ranges, CharRange{c, runes[i+2]})
			i += 2
			continue
		}
		ranges = append(ranges, CharRange{c, c})
	}
	return ranges
}

// Ref creates a forward reference to a named rule, resolved by lookup at
// parse time (and optionally flattened ahead of time by ResolveRefs).
func (b *Builder) Ref(name string) Parser { return b.add(refNode{Name: name}) }

// Until matches everything up to (not including) delimiter.
func (b *Builder) Until(delimiter string) Parser {
	return b.add(untilNode{Delimiters: []string{delimiter}})
}

// UntilOneOf matches everything up to (not including) the first of any
// delimiter in delimiters.
func (b *Builder) UntilOneOf(delimiters []string) Parser {
	return b.add(untilNode{Delimiters: delimiters})
}

// Rest matches all remaining input.
func (b *Builder) Rest() Parser { return b.UntilOneOf(nil) }

// Schema wraps p with JSON schema metadata consumed only by
// BuildGrammar; parsing behaves exactly like p.
func (b *Builder) Schema(p Parser, name string, schema json.RawMessage, raw bool) Parser {
	return b.add(schemaNode{Child: p.id, Name: name, Schema: schema, Raw: raw})
}

// Rule registers p under name and returns a reference to it. Trigger
// marks the rule as an entry point for lazy grammar generation.
func (b *Builder) Rule(name string, p Parser, trigger bool) Parser {
	id := b.arena.addNode(ruleNode{Name: name, Child: p.id, Trigger: trigger})
	b.arena.addRule(name, id)
	return b.Ref(name)
}

// TriggerRule is Rule with trigger=true.
func (b *Builder) TriggerRule(name string, p Parser) Parser { return b.Rule(name, p, true) }

// Atomic suppresses AST nodes from a child that only partially matched,
// for cases where a partial capture would be meaningless.
func (b *Builder) Atomic(p Parser) Parser { return b.add(atomicNode{Child: p.id}) }

// Tag wraps p so successful matches produce an AST node carrying tag,
// without registering a named rule (multiple nodes may share a tag).
func (b *Builder) Tag(tag string, p Parser) Parser { return b.add(tagNode{Child: p.id, Tag: tag}) }

// SetRoot designates p as the arena's entry point.
func (b *Builder) SetRoot(p Parser) { b.arena.SetRoot(p.id) }

// Build finalizes the arena, flattening references, and returns it.
func (b *Builder) Build() *Arena {
	b.arena.ResolveRefs()
	return b.arena
}

// Arena exposes the builder's underlying arena before Build, useful when
// a caller needs GetRule/HasRule while still composing the grammar.
func (b *Builder) Arena() *Arena { return b.arena }

// BuildPegParser is a convenience entry point mirroring the origin
// library's build_peg_parser helper: it hands fn a fresh Builder and
// returns the finished Arena.
func BuildPegParser(fn func(b *Builder)) *Arena {
	b := NewBuilder()
	fn(b)
	return b.Build()
}

// --- JSON sub-grammar -------------------------------------------------

const jsonValueRuleName = "json_value"

// JSON returns a reference to a complete JSON value grammar (object,
// array, string, number, true, false, null), built lazily on first use.
func (b *Builder) JSON() Parser {
	if !b.arena.HasRule(jsonValueRuleName) {
		obj := b.jsonObjectInner()
		arr := b.jsonArrayInner()
		str := b.JSONString()
		num := b.JSONNumber()
		boolean := b.JSONBool()
		null := b.JSONNull()
		b.Rule(jsonValueRuleName, b.Choice(obj, arr, str, num, boolean, null), false)
	}
	return b.Ref(jsonValueRuleName)
}

// JSONStringContent matches JSON string content without the surrounding
// quotes (useful to extract a string value's text directly).
func (b *Builder) JSONStringContent() Parser { return b.add(jsonStringNode{}) }

// JSONString matches a complete quoted JSON string.
func (b *Builder) JSONString() Parser {
	q := b.Literal(`"`)
	return b.Sequence(q, b.JSONStringContent(), b.Literal(`"`))
}

// JSONNumber matches a JSON number literal.
func (b *Builder) JSONNumber() Parser {
	digit := b.Chars("0-9", 1, -1)
	digit0 := b.Chars("0-9", 0, -1)
	sign := b.Optional(b.Literal("-"))
	intPart := b.Choice(b.Literal("0"), b.Sequence(b.Chars("1-9", 1, 1), digit0))
	frac := b.Optional(b.Sequence(b.Literal("."), digit))
	exp := b.Optional(b.Sequence(
		b.Chars("eE", 1, 1),
		b.Optional(b.Chars("+-", 1, 1)),
		digit,
	))
	return b.Sequence(sign, intPart, frac, exp)
}

// JSONBool matches "true" or "false".
func (b *Builder) JSONBool() Parser {
	return b.Choice(b.Literal("true"), b.Literal("false"))
}

// JSONNull matches "null".
func (b *Builder) JSONNull() Parser { return b.Literal("null") }

// JSONArray matches a complete JSON array.
func (b *Builder) JSONArray() Parser { return b.jsonArrayInner() }

func (b *Builder) jsonArrayInner() Parser {
	ws := b.Space()
	elem := b.JSON()
	rest := b.ZeroOrMore(b.Sequence(ws, b.Literal(","), ws, elem))
	nonEmpty := b.Sequence(ws, elem, rest, ws)
	return b.Sequence(b.Literal("["), b.Optional(nonEmpty), b.Literal("]"))
}

// JSONObject matches a complete JSON object.
func (b *Builder) JSONObject() Parser { return b.jsonObjectInner() }

func (b *Builder) jsonObjectInner() Parser {
	ws := b.Space()
	member := b.jsonMemberAnyKey()
	rest := b.ZeroOrMore(b.Sequence(ws, b.Literal(","), ws, member))
	nonEmpty := b.Sequence(ws, member, rest, ws)
	return b.Sequence(b.Literal("{"), b.Optional(nonEmpty), b.Literal("}"))
}

func (b *Builder) jsonMemberAnyKey() Parser {
	ws := b.Space()
	return b.Sequence(b.JSONString(), ws, b.Literal(":"), ws, b.JSON())
}

// JSONMember matches a single object member with a fixed key string and
// p as the value parser, e.g. for extracting one known field.
func (b *Builder) JSONMember(key string, p Parser) Parser {
	ws := b.Space()
	return b.Sequence(
		b.Literal(fmt.Sprintf("%q", key)),
		ws,
		b.Literal(":"),
		ws,
		p,
	)
}
