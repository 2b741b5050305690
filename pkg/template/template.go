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

// Package template defines the seam between a dialect renderer and the
// Jinja-like chat-template engine that actually walks a model's prompt
// template: spec.md treats it as a black box, Template.apply(inputs) ->
// String. This package carries only that interface, the per-model
// template cache it's served from, and a minimal literal-substitution
// stand-in used by tests — it never implements Jinja itself.
package template

import (
	"fmt"

	"github.com/mybigday/chattmpl/pkg/chatmsg"
)

// Engine renders a prompt from a message/tool set. Real
// implementations wrap a Jinja-compatible engine; this module never
// ships one.
type Engine interface {
	Apply(inputs chatmsg.RenderInputs) (string, error)
}

// Templates is the per-model parsed-template cache (the origin's
// ChatTemplates): built once per model and consumed read-only
// thereafter by every render call.
type Templates struct {
	Default             Engine
	ToolUse             Engine // nil if the model has no separate tool-use template
	HasExplicitTemplate bool
	AddBOS              bool
	AddEOS              bool
	BOSToken            string
	EOSToken            string
}

// Select returns the tool-use template if tools were requested and one
// is configured, otherwise the default template.
func (t Templates) Select(inputs chatmsg.RenderInputs) Engine {
	if len(inputs.Tools) > 0 && t.ToolUse != nil {
		return t.ToolUse
	}
	return t.Default
}

// Apply renders inputs through the selected engine, then strips a
// single leading BOS / trailing EOS token the template may have
// re-emitted when the tokenizer is already configured to add them —
// mirroring the origin's common_chat_templates_apply BOS/EOS
// de-duplication so double-BOS prompts never reach the runtime.
func Apply(t Templates, inputs chatmsg.RenderInputs) (string, error) {
	engine := t.Select(inputs)
	if engine == nil {
		return "", fmt.Errorf("template: no engine configured")
	}
	prompt, err := engine.Apply(inputs)
	if err != nil {
		return "", fmt.Errorf("template: apply: %w", err)
	}
	if t.AddBOS && t.BOSToken != "" {
		prompt = trimOncePrefix(prompt, t.BOSToken)
	}
	if t.AddEOS && t.EOSToken != "" {
		prompt = trimOnceSuffix(prompt, t.EOSToken)
	}
	return prompt, nil
}

func trimOncePrefix(s, prefix string) string {
	if len(s) >= len(prefix) && s[:len(prefix)] == prefix {
		return s[len(prefix):]
	}
	return s
}

func trimOnceSuffix(s, suffix string) string {
	if len(s) >= len(suffix) && s[len(s)-len(suffix):] == suffix {
		return s[:len(s)-len(suffix)]
	}
	return s
}
