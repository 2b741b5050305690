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

// wireNode is the tagged-union JSON shape one arena node round-trips
// through. Only the fields relevant to Type are populated.
type wireNode struct {
	Type string `json:"type"`

	Literal    string          `json:"literal,omitempty"`
	Children   []ParserID      `json:"children,omitempty"`
	Child      ParserID        `json:"child,omitempty"`
	Min        int             `json:"min,omitempty"`
	Max        int             `json:"max,omitempty"`
	Pattern    string          `json:"pattern,omitempty"`
	Ranges     []CharRange     `json:"ranges,omitempty"`
	Negated    bool            `json:"negated,omitempty"`
	Delimiters []string        `json:"delimiters,omitempty"`
	Name       string          `json:"name,omitempty"`
	Schema     json.RawMessage `json:"schema,omitempty"`
	Raw        bool            `json:"raw,omitempty"`
	Trigger    bool            `json:"trigger,omitempty"`
	Tag        string          `json:"tag,omitempty"`
}

type wireArena struct {
	Nodes []wireNode          `json:"nodes"`
	Rules map[string]ParserID `json:"rules"`
	Root  ParserID            `json:"root"`
}

func toWireNode(n node) wireNode {
	switch p := n.(type) {
	case epsilonNode:
		return wireNode{Type: "epsilon"}
	case startNode:
		return wireNode{Type: "start"}
	case endNode:
		return wireNode{Type: "end"}
	case literalNode:
		return wireNode{Type: "literal", Literal: p.Literal}
	case sequenceNode:
		return wireNode{Type: "sequence", Children: p.Children}
	case choiceNode:
		return wireNode{Type: "choice", Children: p.Children}
	case repetitionNode:
		return wireNode{Type: "repetition", Child: p.Child, Min: p.Min, Max: p.Max}
	case andNode:
		return wireNode{Type: "and", Child: p.Child}
	case notNode:
		return wireNode{Type: "not", Child: p.Child}
	case anyNode:
		return wireNode{Type: "any"}
	case spaceNode:
		return wireNode{Type: "space"}
	case charsNode:
		return wireNode{Type: "chars", Pattern: p.Pattern, Ranges: p.Ranges, Negated: p.Negated, Min: p.Min, Max: p.Max}
	case jsonStringNode:
		return wireNode{Type: "json_string"}
	case untilNode:
		return wireNode{Type: "until", Delimiters: p.Delimiters}
	case schemaNode:
		return wireNode{Type: "schema", Child: p.Child, Name: p.Name, Schema: p.Schema, Raw: p.Raw}
	case ruleNode:
		return wireNode{Type: "rule", Name: p.Name, Child: p.Child, Trigger: p.Trigger}
	case refNode:
		return wireNode{Type: "ref", Name: p.Name}
	case atomicNode:
		return wireNode{Type: "atomic", Child: p.Child}
	case tagNode:
		return wireNode{Type: "tag", Child: p.Child, Tag: p.Tag}
	default:
		panic(fmt.Sprintf("pegparser: unhandled node in serialization: %T", p))
	}
}

func fromWireNode(w wireNode) (node, error) {
	switch w.Type {
	case "epsilon":
		return epsilonNode{}, nil
	case "start":
		return startNode{}, nil
	case "end":
		return endNode{}, nil
	case "literal":
		return literalNode{Literal: w.Literal}, nil
	case "sequence":
		return sequenceNode{Children: w.Children}, nil
	case "choice":
		return choiceNode{Children: w.Children}, nil
	case "repetition":
		return repetitionNode{Child: w.Child, Min: w.Min, Max: w.Max}, nil
	case "and":
		return andNode{Child: w.Child}, nil
	case "not":
		return notNode{Child: w.Child}, nil
	case "any":
		return anyNode{}, nil
	case "space":
		return spaceNode{}, nil
	case "chars":
		return charsNode{Pattern: w.Pattern, Ranges: w.Ranges, Negated: w.Negated, Min: w.Min, Max: w.Max}, nil
	case "json_string":
		return jsonStringNode{}, nil
	case "until":
		return untilNode{Delimiters: w.Delimiters}, nil
	case "schema":
		return schemaNode{Child: w.Child, Name: w.Name, Schema: w.Schema, Raw: w.Raw}, nil
	case "rule":
		return ruleNode{Name: w.Name, Child: w.Child, Trigger: w.Trigger}, nil
	case "ref":
		return refNode{Name: w.Name}, nil
	case "atomic":
		return atomicNode{Child: w.Child}, nil
	case "tag":
		return tagNode{Child: w.Child, Tag: w.Tag}, nil
	default:
		return nil, fmt.Errorf("pegparser: unknown node type %q", w.Type)
	}
}

// ToJSON serializes the arena to a portable "parser image" that can be
// shipped alongside a rendered prompt and reloaded without rebuilding
// the grammar from source.
func (a *Arena) ToJSON() ([]byte, error) {
	w := wireArena{Rules: a.rules, Root: a.root}
	for _, n := range a.nodes {
		w.Nodes = append(w.Nodes, toWireNode(n))
	}
	return json.Marshal(w)
}

// FromJSON reconstructs an Arena previously produced by ToJSON.
func FromJSON(data []byte) (*Arena, error) {
	var w wireArena
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("pegparser: decoding arena: %w", err)
	}
	a := &Arena{rules: w.Rules, root: w.Root}
	if a.rules == nil {
		a.rules = map[string]ParserID{}
	}
	for _, wn := range w.Nodes {
		n, err := fromWireNode(wn)
		if err != nil {
			return nil, err
		}
		a.nodes = append(a.nodes, n)
	}
	return a, nil
}

// Save is ToJSON with the result returned as a string, matching the
// origin library's save()/load() pairing.
func (a *Arena) Save() (string, error) {
	data, err := a.ToJSON()
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Load replaces a's contents with the arena encoded in data.
func (a *Arena) Load(data string) error {
	loaded, err := FromJSON([]byte(data))
	if err != nil {
		return err
	}
	*a = *loaded
	return nil
}
