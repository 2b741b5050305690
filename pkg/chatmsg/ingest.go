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

package chatmsg

import (
	"encoding/json"
	"fmt"
)

// wireMessage mirrors the OpenAI-compatible `messages[]` entry shape
// (§6): content may arrive as a string, an array of {type:"text",text},
// or null; tool_calls carries {type,function:{name,arguments},id}.
type wireMessage struct {
	Role             string          `json:"role"`
	Content          json.RawMessage `json:"content"`
	ToolCalls        []wireToolCall  `json:"tool_calls,omitempty"`
	ReasoningContent string          `json:"reasoning_content,omitempty"`
	Name             string          `json:"name,omitempty"`
	ToolCallID       string          `json:"tool_call_id,omitempty"`
}

type wireToolCall struct {
	Type     string `json:"type"`
	ID       string `json:"id,omitempty"`
	Function struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	} `json:"function"`
}

type wireToolSpec struct {
	Type     string `json:"type"`
	Function struct {
		Name        string          `json:"name"`
		Description string          `json:"description,omitempty"`
		Parameters  json.RawMessage `json:"parameters,omitempty"`
	} `json:"function"`
}

// ParseMessages ingests an OpenAI-compatible `messages` JSON array.
func ParseMessages(data []byte) ([]Message, error) {
	var raw []wireMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("chatmsg: malformed messages array: %w", err)
	}

	out := make([]Message, 0, len(raw))
	for i, wm := range raw {
		msg := Message{
			Role:             wm.Role,
			ReasoningContent: wm.ReasoningContent,
			ToolName:         wm.Name,
			ToolCallID:       wm.ToolCallID,
		}

		content, parts, err := parseContent(wm.Content)
		if err != nil {
			return nil, fmt.Errorf("chatmsg: messages[%d].content: %w", i, err)
		}
		msg.Content = content
		msg.ContentParts = parts

		for j, tc := range wm.ToolCalls {
			if tc.Type != "" && tc.Type != "function" {
				return nil, fmt.Errorf("chatmsg: messages[%d].tool_calls[%d]: unsupported type %q", i, j, tc.Type)
			}
			args, err := normalizeArguments(tc.Function.Arguments)
			if err != nil {
				return nil, fmt.Errorf("chatmsg: messages[%d].tool_calls[%d].arguments: %w", i, j, err)
			}
			msg.ToolCalls = append(msg.ToolCalls, ToolCall{
				Name:      tc.Function.Name,
				Arguments: args,
				ID:        tc.ID,
			})
		}

		out = append(out, msg)
	}
	return out, nil
}

// parseContent handles the three legal shapes of an ingest `content`
// field: absent/null, a bare string, or an array of content parts.
func parseContent(raw json.RawMessage) (string, []ContentPart, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil, nil
	}

	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return asString, nil, nil
	}

	var asParts []ContentPart
	if err := json.Unmarshal(raw, &asParts); err != nil {
		return "", nil, fmt.Errorf("unsupported content shape: %w", err)
	}
	for i, p := range asParts {
		if p.Type != "text" {
			return "", nil, fmt.Errorf("content_parts[%d]: unsupported type %q", i, p.Type)
		}
	}
	return "", asParts, nil
}

// normalizeArguments accepts arguments as either a JSON-encoded string
// (the common wire shape) or a raw JSON object, and always returns the
// JSON-document-as-string form ToolCall.Arguments requires.
func normalizeArguments(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}

	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		if asString == "" {
			return "", nil
		}
		var probe json.RawMessage
		if err := json.Unmarshal([]byte(asString), &probe); err != nil {
			return "", fmt.Errorf("arguments string is not valid JSON: %w", err)
		}
		return asString, nil
	}

	// Already a JSON object/array: validate it and keep its raw bytes as the string form.
	var probe any
	if err := json.Unmarshal(raw, &probe); err != nil {
		return "", fmt.Errorf("arguments is neither a JSON string nor a JSON value: %w", err)
	}
	return string(raw), nil
}

// ParseTools ingests an OpenAI-compatible `tools` JSON array.
func ParseTools(data []byte) ([]ToolSpec, error) {
	var raw []wireToolSpec
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("chatmsg: malformed tools array: %w", err)
	}

	out := make([]ToolSpec, 0, len(raw))
	for i, wt := range raw {
		if wt.Type != "" && wt.Type != "function" {
			return nil, fmt.Errorf("chatmsg: tools[%d]: unsupported type %q", i, wt.Type)
		}
		spec := ToolSpec{
			Name:        wt.Function.Name,
			Description: wt.Function.Description,
		}
		if len(wt.Function.Parameters) > 0 {
			spec.Parameters = string(wt.Function.Parameters)
		}
		out = append(out, spec)
	}
	return out, nil
}

// emitToolCall is the OpenAI-compatible emit shape for one tool call.
type emitToolCall struct {
	Type     string `json:"type"`
	ID       string `json:"id,omitempty"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

// MarshalEmit renders m in the OpenAI-compatible assistant-message
// shape (§6): {role, content, reasoning_content?, tool_calls}.
func (m Message) MarshalEmit() ([]byte, error) {
	out := struct {
		Role             string         `json:"role"`
		Content          string         `json:"content,omitempty"`
		ReasoningContent string         `json:"reasoning_content,omitempty"`
		ToolCalls        []emitToolCall `json:"tool_calls,omitempty"`
	}{
		Role:             RoleAssistant,
		Content:          m.Text(),
		ReasoningContent: m.ReasoningContent,
	}
	for _, tc := range m.ToolCalls {
		var e emitToolCall
		e.Type = "function"
		e.ID = tc.ID
		e.Function.Name = tc.Name
		e.Function.Arguments = tc.Arguments
		out.ToolCalls = append(out.ToolCalls, e)
	}
	if m.Role != "" {
		out.Role = m.Role
	}
	return json.Marshal(out)
}
