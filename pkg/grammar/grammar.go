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

// Package grammar converts JSON Schema fragments into GBNF, the
// collaborator spec.md names as an external black box
// (schema_to_grammar(schema) -> String). The conversion covers the
// subset of JSON Schema the other packages in this module ever hand it
// (object/array/string/number/integer/boolean/null, enum, required,
// items) — it is not a general-purpose JSON Schema implementation.
package grammar

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/mybigday/chattmpl/pkg/pegparser"
	"github.com/mybigday/chattmpl/pkg/xmltoolcall"
)

var (
	_ pegparser.GrammarBuilder   = PegParserAdapter{}
	_ xmltoolcall.GrammarBuilder = XMLToolCallAdapter{}
)

// RuleSet accumulates named GBNF rules and converts JSON Schema
// fragments into them, deduplicating rules with identical bodies under
// a single name the way a real grammar compiler would to keep the
// generated grammar small.
type RuleSet struct {
	order      []string
	bodies     map[string]string
	bodyToName map[string]string
}

// NewRuleSet returns an empty RuleSet.
func NewRuleSet() *RuleSet {
	return &RuleSet{bodies: map[string]string{}, bodyToName: map[string]string{}}
}

// Rules returns the accumulated rules in definition order.
func (rs *RuleSet) Rules() []string {
	out := make([]string, len(rs.order))
	copy(out, rs.order)
	return out
}

// Body returns the GBNF body registered under name.
func (rs *RuleSet) Body(name string) (string, bool) {
	b, ok := rs.bodies[name]
	return b, ok
}

// Render emits the full grammar text, one "name ::= body" line per rule.
func (rs *RuleSet) Render() string {
	var sb strings.Builder
	for _, name := range rs.order {
		fmt.Fprintf(&sb, "%s ::= %s\n", name, rs.bodies[name])
	}
	return sb.String()
}

func (rs *RuleSet) addRule(name, body string) string {
	if existing, ok := rs.bodyToName[body]; ok {
		return existing
	}
	symbol := name
	for n := 2; rs.bodies[symbol] != ""; n++ {
		symbol = fmt.Sprintf("%s-%d", name, n)
	}
	rs.order = append(rs.order, symbol)
	rs.bodies[symbol] = body
	rs.bodyToName[body] = symbol
	return symbol
}

// AddSchema compiles schema into one or more GBNF rules rooted at name,
// returning the GBNF expression referencing the result.
func (rs *RuleSet) AddSchema(name string, schema json.RawMessage) string {
	return rs.schemaToGBNF(name, schema)
}

type jsonSchema struct {
	Type                 any                        `json:"type"`
	Enum                 []json.RawMessage          `json:"enum"`
	Properties           map[string]json.RawMessage `json:"properties"`
	Required             []string                   `json:"required"`
	Items                json.RawMessage            `json:"items"`
	AdditionalProperties *bool                      `json:"additionalProperties"`
}

func (rs *RuleSet) schemaToGBNF(name string, raw json.RawMessage) string {
	var s jsonSchema
	if err := json.Unmarshal(raw, &s); err != nil {
		return rs.addRule(name, pegparser.FormatLiteral(""))
	}

	if len(s.Enum) > 0 {
		parts := make([]string, len(s.Enum))
		for i, v := range s.Enum {
			parts[i] = literalFromJSON(v)
		}
		return rs.addRule(name, strings.Join(parts, " | "))
	}

	switch typeName(s.Type) {
	case "string":
		return rs.addRule(name, `"\"" ( [^"\\] | "\\" . )* "\""`)
	case "integer":
		return rs.addRule(name, `"-"? [0-9]+`)
	case "number":
		return rs.addRule(name, `"-"? [0-9]+ ( "." [0-9]+ )? ( [eE] [+-]? [0-9]+ )?`)
	case "boolean":
		return rs.addRule(name, `"true" | "false"`)
	case "null":
		return rs.addRule(name, `"null"`)
	case "array":
		elem := `json-value`
		if len(s.Items) > 0 {
			elem = rs.schemaToGBNF(name+"-item", s.Items)
		}
		body := fmt.Sprintf(`"[" ws ( %s ( "," ws %s )* )? ws "]"`, elem, elem)
		return rs.addRule(name, strings.ReplaceAll(body, "ws", rs.wsRule()))
	case "object":
		return rs.objectToGBNF(name, s)
	default:
		return rs.addRule(name, rs.jsonValueRule())
	}
}

func (rs *RuleSet) objectToGBNF(name string, s jsonSchema) string {
	if len(s.Properties) == 0 {
		return rs.addRule(name, `"{" ws "}"`)
	}
	required := map[string]bool{}
	for _, r := range s.Required {
		required[r] = true
	}
	keys := make([]string, 0, len(s.Properties))
	for k := range s.Properties {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ws := rs.wsRule()
	var members []string
	for _, k := range keys {
		valRule := rs.schemaToGBNF(name+"-"+k, s.Properties[k])
		member := fmt.Sprintf(`%s ws ":" ws %s`, pegparser.FormatLiteral(fmt.Sprintf("%q", k)), valRule)
		if !required[k] {
			member = "( " + member + " )?"
		}
		members = append(members, member)
	}
	body := fmt.Sprintf(`"{" ws %s ws "}"`, strings.Join(members, ` ws "," ws `))
	return rs.addRule(name, strings.ReplaceAll(body, "ws", ws))
}

func (rs *RuleSet) wsRule() string {
	return rs.addRule("ws", `[ \t\n]*`)
}

func (rs *RuleSet) jsonValueRule() string {
	if _, ok := rs.bodies["json-value"]; ok {
		return "json-value"
	}
	str := `"\"" ( [^"\\] | "\\" . )* "\""`
	num := `"-"? [0-9]+ ( "." [0-9]+ )? ( [eE] [+-]? [0-9]+ )?`
	obj := `"{" [ \t\n]* ( json-member ( "," [ \t\n]* json-member )* )? [ \t\n]* "}"`
	arr := `"[" [ \t\n]* ( json-value ( "," [ \t\n]* json-value )* )? [ \t\n]* "]"`
	rs.order = append(rs.order, "json-member")
	rs.bodies["json-member"] = str + ` [ \t\n]* ":" [ \t\n]* json-value`
	rs.order = append(rs.order, "json-value")
	rs.bodies["json-value"] = strings.Join([]string{obj, arr, str, num, `"true"`, `"false"`, `"null"`}, " | ")
	return "json-value"
}

func typeName(t any) string {
	switch v := t.(type) {
	case string:
		return v
	case []any:
		if len(v) > 0 {
			if s, ok := v[0].(string); ok {
				return s
			}
		}
	}
	return ""
}

func literalFromJSON(raw json.RawMessage) string {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return pegparser.FormatLiteral(string(raw))
	}
	if s, ok := v.(string); ok {
		return pegparser.FormatLiteral(fmt.Sprintf("%q", s))
	}
	return pegparser.FormatLiteral(string(raw))
}

// PegParserAdapter adapts a RuleSet to pegparser.GrammarBuilder, whose
// AddRule signature predates the dedup-and-return-symbol convention
// xmltoolcall's builder interface uses.
type PegParserAdapter struct{ Rules *RuleSet }

func (a PegParserAdapter) AddRule(name, body string) { a.Rules.addRule(name, body) }
func (a PegParserAdapter) AddSchema(name string, schema json.RawMessage) string {
	return a.Rules.AddSchema(name, schema)
}

// XMLToolCallAdapter adapts a RuleSet to xmltoolcall.GrammarBuilder.
type XMLToolCallAdapter struct{ Rules *RuleSet }

func (a XMLToolCallAdapter) AddRule(name, body string) string { return a.Rules.addRule(name, body) }
func (a XMLToolCallAdapter) AddSchema(name string, schema json.RawMessage) string {
	return a.Rules.AddSchema(name, schema)
}
