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
	"sort"
	"strconv"
	"strings"
)

// GrammarBuilder collects GBNF rules as BuildGrammar walks an arena. A
// schema-to-grammar collaborator (out of scope for this package, see
// pkg/grammar, which implements it against a real JSON Schema) provides
// AddSchema.
type GrammarBuilder interface {
	// AddRule registers a named GBNF rule body.
	AddRule(name, body string)
	// AddSchema compiles a JSON Schema into one or more GBNF rules and
	// returns the GBNF expression referencing the result.
	AddSchema(name string, schema json.RawMessage) string
}

// BuildGrammar emits GBNF rules for every rule reachable from the
// arena's trigger rules (lazy=true) or from its root (lazy=false). In
// lazy mode the generated "root" rule is the sorted disjunction of
// trigger rule names, matching the semantics a constrained decoder needs
// when only some call sites should engage the grammar.
func (a *Arena) BuildGrammar(builder GrammarBuilder, lazy bool) {
	var toGBNF func(id ParserID) string
	toGBNF = func(id ParserID) string {
		switch p := a.nodes[id].(type) {
		case epsilonNode, startNode, endNode:
			return ""
		case literalNode:
			return gbnfFormatLiteral(p.Literal)
		case sequenceNode:
			var parts []string
			for _, child := range p.Children {
				cg := toGBNF(child)
				if needsParens(a.nodes[child]) {
					cg = "(" + cg + ")"
				}
				parts = append(parts, cg)
			}
			return strings.Join(parts, " ")
		case choiceNode:
			var parts []string
			for _, child := range p.Children {
				cg := toGBNF(child)
				if _, ok := a.nodes[child].(choiceNode); ok {
					cg = "(" + cg + ")"
				}
				parts = append(parts, cg)
			}
			return strings.Join(parts, " | ")
		case repetitionNode:
			cg := toGBNF(p.Child)
			if needsParens(a.nodes[p.Child]) {
				cg = "(" + cg + ")"
			}
			return repeatSuffix(cg, p.Min, p.Max)
		case andNode, notNode:
			return "" // lookahead has no GBNF equivalent
		case anyNode:
			return "."
		case spaceNode:
			return "space"
		case charsNode:
			return repeatSuffix(p.Pattern, p.Min, p.Max)
		case jsonStringNode:
			return `( [^"\\] | "\\" ( ["\\/ bfnrt] | "u" [0-9a-fA-F]{4} ) )*`
		case untilNode:
			if len(p.Delimiters) == 0 {
				return ".*"
			}
			return gbnfExcludingPattern(p.Delimiters)
		case schemaNode:
			if p.Schema != nil {
				if p.Raw && schemaIsRawString(p.Schema) {
					return toGBNF(p.Child)
				}
				return builder.AddSchema(p.Name, p.Schema)
			}
			return toGBNF(p.Child)
		case ruleNode:
			return p.Name
		case refNode:
			return p.Name
		case tagNode:
			return toGBNF(p.Child)
		case atomicNode:
			return toGBNF(p.Child)
		default:
			panic(fmt.Sprintf("pegparser: unhandled node in BuildGrammar: %T", p))
		}
	}

	reachable := map[string]bool{}
	if lazy {
		for name, id := range a.rules {
			if r, ok := a.nodes[id].(ruleNode); ok && r.Trigger {
				reachable[name] = true
				for n := range a.collectReachableRules(id) {
					reachable[n] = true
				}
			}
		}
	} else {
		reachable = a.collectReachableRules(a.root)
	}

	names := make([]string, 0, len(a.rules))
	for name := range a.rules {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if !reachable[name] {
			continue
		}
		if r, ok := a.nodes[a.rules[name]].(ruleNode); ok {
			builder.AddRule(r.Name, toGBNF(r.Child))
		}
	}

	if lazy {
		var triggers []string
		for name := range a.rules {
			if r, ok := a.nodes[a.rules[name]].(ruleNode); ok && r.Trigger {
				triggers = append(triggers, r.Name)
			}
		}
		sort.Strings(triggers)
		builder.AddRule("root", strings.Join(triggers, " | "))
	} else if a.root != InvalidParserID {
		builder.AddRule("root", toGBNF(a.root))
	}
}

func needsParens(n node) bool {
	switch n.(type) {
	case choiceNode, sequenceNode:
		return true
	default:
		return false
	}
}

func repeatSuffix(body string, min, max int) string {
	switch {
	case min == 0 && max == 1:
		return body + "?"
	case min == 0 && max == -1:
		return body + "*"
	case min == 1 && max == -1:
		return body + "+"
	case max == -1:
		return body + "{" + strconv.Itoa(min) + ",}"
	case min == max:
		if min == 1 {
			return body
		}
		return body + "{" + strconv.Itoa(min) + "}"
	default:
		return body + "{" + strconv.Itoa(min) + "," + strconv.Itoa(max) + "}"
	}
}

// collectReachableRules returns the set of rule names reachable from id,
// following into Ref targets so a grammar built purely from references
// still reports every rule it depends on.
func (a *Arena) collectReachableRules(id ParserID) map[string]bool {
	reachable := map[string]bool{}
	visited := map[string]bool{}

	var visit func(ParserID)
	visit = func(id ParserID) {
		switch p := a.nodes[id].(type) {
		case epsilonNode, startNode, endNode, untilNode, literalNode, charsNode, spaceNode, anyNode, jsonStringNode:
			// leaves
		case sequenceNode:
			for _, c := range p.Children {
				visit(c)
			}
		case choiceNode:
			for _, c := range p.Children {
				visit(c)
			}
		case repetitionNode:
			visit(p.Child)
		case andNode:
			visit(p.Child)
		case notNode:
			visit(p.Child)
		case tagNode:
			visit(p.Child)
		case atomicNode:
			visit(p.Child)
		case schemaNode:
			visit(p.Child)
		case ruleNode:
			if !visited[p.Name] {
				visited[p.Name] = true
				reachable[p.Name] = true
				visit(p.Child)
			}
		case refNode:
			if rule := a.GetRule(p.Name); rule != InvalidParserID {
				visit(rule)
			}
		}
	}

	if id != InvalidParserID {
		visit(id)
	}
	return reachable
}

// FormatLiteral renders s as a GBNF-quoted string literal. Exported so
// other packages building their own GBNF fragments outside an Arena
// (pkg/xmltoolcall's per-dialect tool-call grammar) can reuse the exact
// same quoting rules instead of redefining them.
func FormatLiteral(s string) string { return gbnfFormatLiteral(s) }

// ExcludingPattern is gbnfExcludingPattern, exported for pkg/xmltoolcall's
// terminator-exclusion grammar (matching the trie-based "none of these
// strings" fragment the Until node builds internally).
func ExcludingPattern(strs []string) string { return gbnfExcludingPattern(strs) }

// gbnfFormatLiteral renders s as a GBNF-quoted string literal.
func gbnfFormatLiteral(s string) string {
	var sb strings.Builder
	sb.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			sb.WriteString(`\"`)
		case '\\':
			sb.WriteString(`\\`)
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		case '\t':
			sb.WriteString(`\t`)
		default:
			sb.WriteRune(r)
		}
	}
	sb.WriteByte('"')
	return sb.String()
}

func gbnfEscapeCharClass(c byte) string {
	switch c {
	case '\n':
		return `\n`
	case '\t':
		return `\t`
	case '\r':
		return `\r`
	case '\\':
		return `\\`
	case ']':
		return `\]`
	case '[':
		return `\[`
	default:
		return string(c)
	}
}

// gbnfExcludingPattern builds a GBNF expression matching any run of
// characters that never begins one of strings, by walking the shared
// prefix trie and, at each live node, excluding the bytes that would
// continue a match.
func gbnfExcludingPattern(strs []string) string {
	matcher := newTrie(strs)
	pieces := matcher.collectPrefixAndNext()

	var parts []string
	for _, piece := range pieces {
		var cls strings.Builder
		for i := 0; i < len(piece.nextChars); i++ {
			cls.WriteString(gbnfEscapeCharClass(piece.nextChars[i]))
		}
		if piece.prefix != "" {
			parts = append(parts, gbnfFormatLiteral(piece.prefix)+" [^"+cls.String()+"]")
		} else {
			parts = append(parts, "[^"+cls.String()+"]")
		}
	}

	return "(" + strings.Join(parts, " | ") + ")*"
}

// schemaIsRawString reports whether schema describes a bare string type,
// the one case where BuildGrammar falls back to the underlying parser's
// own grammar instead of delegating to the schema collaborator.
func schemaIsRawString(schema json.RawMessage) bool {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(schema, &probe); err != nil {
		return false
	}
	return probe.Type == "string"
}
