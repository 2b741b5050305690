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
	"fmt"
	"sort"
	"strings"

	"github.com/mybigday/chattmpl/pkg/chatmsg"
	"github.com/mybigday/chattmpl/pkg/pegparser"
)

// GrammarBuilder collects GBNF rules while BuildGrammar walks a tool
// list. AddRule returns the (possibly deduplicated) symbol name the
// caller should reference going forward, and AddSchema compiles a JSON
// Schema fragment into one or more rules, returning the GBNF expression
// referencing the result — both mirror the schema/grammar collaborator
// pkg/pegparser.GrammarBuilder uses, kept as a separate interface since
// this package's call shape (add_rule returning a symbol) differs from
// the arena-walking one.
type GrammarBuilder interface {
	AddRule(name, body string) string
	AddSchema(name string, schema json.RawMessage) string
}

type paramSchema struct {
	Type       string                     `json:"type"`
	Properties map[string]json.RawMessage `json:"properties"`
	Required   []string                   `json:"required"`
}

// BuildGrammar emits a GBNF grammar accepting exactly the tool calls in
// tools, rendered per form, and returns the literal word a constrained
// decoder should trigger on ("" if tools is empty, meaning no grammar
// is needed).
func BuildGrammar(builder GrammarBuilder, tools []chatmsg.ToolSpec, form Format) string {
	if len(tools) == 0 {
		return ""
	}

	keyValSep := form.KeyValSep
	if form.KeyValSep2 != "" {
		keyValSep += "\n" + form.KeyValSep2
	}

	valEndExclusions := []string{form.ValEnd}
	if form.LastValEnd != "" {
		valEndExclusions = append(valEndExclusions, form.LastValEnd)
	}
	stringArgVal := builder.AddRule("string-arg-val", pegparser.ExcludingPattern(valEndExclusions))

	var toolRules []string
	for _, tool := range tools {
		var schema paramSchema
		if err := json.Unmarshal([]byte(tool.Parameters), &schema); err != nil {
			continue
		}
		required := map[string]bool{}
		for _, r := range schema.Required {
			required[r] = true
		}

		keys := make([]string, 0, len(schema.Properties))
		for k := range schema.Properties {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		type argRule struct {
			symbol   string
			required bool
		}
		var argRules []argRule
		for _, key := range keys {
			valueSchema := schema.Properties[key]
			var valType struct {
				Type string `json:"type"`
			}
			_ = json.Unmarshal(valueSchema, &valType)

			var valueExpr string
			if valType.Type == "string" && (form.RawArgVal == nil || *form.RawArgVal) {
				if form.RawArgVal != nil {
					valueExpr = stringArgVal
				} else {
					valueExpr = "( " + stringArgVal + " | " + builder.AddSchema(tool.Name+"-arg-"+key, valueSchema) + " )"
				}
			} else {
				valueExpr = builder.AddSchema(tool.Name+"-arg-"+key, valueSchema)
			}

			sym := builder.AddRule("func-"+tool.Name+"-kv-"+key,
				pegparser.FormatLiteral(form.KeyStart)+" "+
					pegparser.FormatLiteral(key)+" "+
					pegparser.FormatLiteral(keyValSep)+" "+
					valueExpr,
			)
			argRules = append(argRules, argRule{symbol: sym, required: required[key]})
		}

		lastValEnd := form.ValEnd
		if form.LastValEnd != "" {
			lastValEnd = form.LastValEnd
		}
		nextArgWithSep := builder.AddRule(tool.Name+"-last-arg-end", pegparser.FormatLiteral(lastValEnd))
		nextArg := `""`
		for i := len(argRules) - 1; i >= 0; i-- {
			includeThisArg := argRules[i].symbol + " " + nextArgWithSep
			if argRules[i].required {
				nextArg = builder.AddRule(fmt.Sprintf("%s-arg-after-%d", tool.Name, i), includeThisArg)
			} else {
				nextArg = builder.AddRule(fmt.Sprintf("%s-arg-after-%d", tool.Name, i), "( "+includeThisArg+" ) | "+nextArg)
			}
			includeThisArgWithSep := pegparser.FormatLiteral(form.ValEnd) + " " + includeThisArg
			if argRules[i].required {
				nextArgWithSep = builder.AddRule(fmt.Sprintf("%s-arg-after-%d-with-sep", tool.Name, i), includeThisArgWithSep)
			} else {
				nextArgWithSep = builder.AddRule(fmt.Sprintf("%s-arg-after-%d-with-sep", tool.Name, i), "( "+includeThisArgWithSep+" ) | "+nextArgWithSep)
			}
		}

		quotedName := pegparser.FormatLiteral(tool.Name)
		if form.KimiK2 {
			quotedName = `"functions." ` + quotedName + ` ":" [0-9]+`
		}
		toolRules = append(toolRules, builder.AddRule(tool.Name+"-call",
			pegparser.FormatLiteral(form.ToolStart)+" "+
				quotedName+" "+
				pegparser.FormatLiteral(form.ToolSep)+" "+
				nextArg,
		))
	}

	if len(toolRules) == 0 {
		return ""
	}

	toolCallOnce := builder.AddRule("root-tool-call-once", strings.Join(toolRules, " | "))
	toolCallMore := builder.AddRule("root-tool-call-more", pegparser.FormatLiteral(form.ToolEnd)+" "+toolCallOnce)
	callEndLiteral := form.ToolEnd
	if form.LastToolEnd != "" {
		callEndLiteral = form.LastToolEnd
	}
	callEnd := builder.AddRule("root-call-end", pegparser.FormatLiteral(callEndLiteral))
	toolCallMultipleWithEnd := builder.AddRule("root-tool-call-multiple-with-end", toolCallOnce+" "+toolCallMore+"* "+callEnd)

	rootBody := toolCallMultipleWithEnd + "?"
	if form.ScopeStart != "" {
		rootBody = pegparser.FormatLiteral(form.ScopeStart) + " " + rootBody
	}
	if form.ScopeEnd != "" {
		rootBody = rootBody + " " + pegparser.FormatLiteral(form.ScopeEnd)
	}
	builder.AddRule("root", rootBody)

	return form.ScopeStart + form.ToolStart
}
