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

// Package dialect is the tagged-union dispatch point for every chat
// format this module understands: one registry that picks a
// chatmsg.ChatFormat from a raw Jinja template's source text, and one
// Render/Parse pair per format, grouped by the handful of wire-shape
// families the formats actually fall into (prefixed JSON array,
// block-wrapped JSON, XML-tagged, header-routed, and so on).
package dialect

import (
	_ "embed"
	"strings"

	"github.com/mybigday/chattmpl/pkg/chatmsg"
	"gopkg.in/yaml.v3"
)

//go:embed signatures.yaml
var signaturesYAML []byte

type signatureRule struct {
	Format       string   `yaml:"format"`
	Requires     []string `yaml:"requires"`
	NoJSONSchema bool     `yaml:"no_json_schema"`
	Special      string   `yaml:"special"`
}

var signatureTable = mustLoadSignatures(signaturesYAML)

func mustLoadSignatures(data []byte) []signatureRule {
	var rules []signatureRule
	if err := yaml.Unmarshal(data, &rules); err != nil {
		panic("dialect: malformed signatures.yaml: " + err.Error())
	}
	return rules
}

// Detect picks the chatmsg.ChatFormat a raw chat-template's source text
// signals, given the request's tool/schema/tool-choice shape. It walks
// the same ordered waterfall the origin's jinja-template dispatcher
// uses: the first rule whose signature substrings are all present (and,
// where the rule says so, only when the caller supplied no JSON schema)
// wins.
func Detect(templateSource string, hasTools, hasJSONSchema bool, toolChoice chatmsg.ToolChoice) chatmsg.ChatFormat {
	format := detectFormat(templateSource, hasTools, hasJSONSchema, toolChoice)
	if format == chatmsg.FormatLlama3X && strings.Contains(templateSource, "<|python_tag|>") {
		return chatmsg.FormatLlama3XBuiltinTools
	}
	return format
}

func detectFormat(src string, hasTools, hasJSONSchema bool, toolChoice chatmsg.ToolChoice) chatmsg.ChatFormat {
	for _, rule := range signatureTable {
		if rule.Special != "" {
			if format, matched := evalSpecial(rule.Special, hasTools, hasJSONSchema, toolChoice); matched {
				return format
			}
			continue
		}
		if rule.NoJSONSchema && hasJSONSchema {
			continue
		}
		if requiresAll(src, rule.Requires) {
			return chatmsg.ChatFormat(rule.Format)
		}
	}
	return chatmsg.FormatGeneric
}

func requiresAll(src string, needles []string) bool {
	if len(needles) == 0 {
		return false
	}
	for _, n := range needles {
		if !strings.Contains(src, n) {
			return false
		}
	}
	return true
}

// evalSpecial handles the two branches of the origin's dispatcher that
// aren't simple template-text substring checks: they depend on what the
// caller asked for, not on what the template contains.
func evalSpecial(name string, hasTools, hasJSONSchema bool, toolChoice chatmsg.ToolChoice) (chatmsg.ChatFormat, bool) {
	switch name {
	case "tools_and_json_schema_generic":
		if hasTools && hasJSONSchema {
			return chatmsg.FormatGeneric, true
		}
	case "no_tools_content_only":
		if !hasTools || toolChoice == chatmsg.ToolChoiceNone {
			return chatmsg.FormatContentOnly, true
		}
	}
	return "", false
}
