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

// Package chatmsg defines the shared data model that flows between the
// dialect renderer and the dialect parser: messages, tool calls, tool
// specs, render inputs/outputs, and the per-request parser state.
//
// None of the types here are persisted. RenderInputs/RenderOutputs are
// value types exchanged once per request; ParserState lives only for
// the duration of a single parse call.
package chatmsg

import (
	"fmt"
	"time"
)

// ToolCall is a single tool invocation emitted by a dialect parser.
//
// Arguments is always a JSON document when non-empty, possibly
// truncated mid-value during a partial parse. Two ToolCalls are equal
// iff Name, Arguments, and ID all compare equal.
type ToolCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments,omitempty"`
	ID        string `json:"id,omitempty"`
}

// Equal reports whether c and other carry the same name, arguments and id.
func (c ToolCall) Equal(other ToolCall) bool {
	return c.Name == other.Name && c.Arguments == other.Arguments && c.ID == other.ID
}

// ContentPart is one element of a message's content array. Only the
// "text" type is recognized today; any other Type is rejected at ingest
// so future wire additions don't silently lose information.
type ContentPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Role is a free-form string; ingest accepts any value. Dialect parsers
// always emit RoleAssistant.
type Role = string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one turn of the conversation, either supplied by the
// caller (ingest) or produced by a dialect parser (emit).
//
// Exactly one of Content or ContentParts may carry visible text; having
// both non-empty is an ingest error (see ParseMessages).
type Message struct {
	Role             Role          `json:"role"`
	Content          string        `json:"content,omitempty"`
	ContentParts     []ContentPart `json:"content_parts,omitempty"`
	ToolCalls        []ToolCall    `json:"tool_calls,omitempty"`
	ReasoningContent string        `json:"reasoning_content,omitempty"`
	ToolName         string        `json:"tool_name,omitempty"`
	ToolCallID       string        `json:"tool_call_id,omitempty"`
}

// Text returns the message's visible text, whichever of Content /
// ContentParts carries it.
func (m Message) Text() string {
	if m.Content != "" {
		return m.Content
	}
	var out string
	for _, p := range m.ContentParts {
		out += p.Text
	}
	return out
}

// ToolSpec describes one tool the model may call.
type ToolSpec struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	// Parameters is a JSON schema document, stored as a string (not
	// map[string]any) so callers that already have a schema string
	// never pay an unmarshal/marshal round trip; pkg/toolspec builds
	// this string for callers working from a typed Go struct.
	Parameters string `json:"parameters,omitempty"`
}

// ToolChoice is the caller's tool-invocation policy.
type ToolChoice int

const (
	ToolChoiceAuto ToolChoice = iota
	ToolChoiceRequired
	ToolChoiceNone
)

func (c ToolChoice) String() string {
	switch c {
	case ToolChoiceAuto:
		return "auto"
	case ToolChoiceRequired:
		return "required"
	case ToolChoiceNone:
		return "none"
	default:
		return fmt.Sprintf("ToolChoice(%d)", int(c))
	}
}

// ReasoningFormat selects how a dialect's reasoning/thinking text is
// extracted and routed. None means reasoning is either forbidden by the
// dialect or left inline in Content rather than ReasoningContent.
type ReasoningFormat int

const (
	ReasoningFormatNone ReasoningFormat = iota
	ReasoningFormatAuto
	ReasoningFormatDeepSeek
	ReasoningFormatDeepSeekLegacy
)

func (f ReasoningFormat) String() string {
	switch f {
	case ReasoningFormatNone:
		return "none"
	case ReasoningFormatAuto:
		return "auto"
	case ReasoningFormatDeepSeek:
		return "deepseek"
	case ReasoningFormatDeepSeekLegacy:
		return "deepseek-legacy"
	default:
		return fmt.Sprintf("ReasoningFormat(%d)", int(f))
	}
}

// ChatFormat names one of the supported model-family dialects. It is a
// closed set: the dialect registry only ever returns one of these
// constants, and the per-dialect render/parse tables are indexed by it.
type ChatFormat string

const (
	FormatContentOnly             ChatFormat = "content-only"
	FormatGeneric                 ChatFormat = "generic"
	FormatMistralNemo             ChatFormat = "mistral-nemo"
	FormatMagistral               ChatFormat = "magistral"
	FormatLlama3X                 ChatFormat = "llama-3.x"
	FormatLlama3XBuiltinTools     ChatFormat = "llama-3.x-builtin-tools"
	FormatDeepSeekR1              ChatFormat = "deepseek-r1"
	FormatDeepSeekV3_1            ChatFormat = "deepseek-v3.1"
	FormatFunctionaryV3_2         ChatFormat = "functionary-v3.2"
	FormatFunctionaryV3_1Llama3_1 ChatFormat = "functionary-v3.1-llama-3.1"
	FormatHermes2Pro              ChatFormat = "hermes-2-pro"
	FormatCommandR7B              ChatFormat = "command-r7b"
	FormatFireFunctionV2          ChatFormat = "firefunction-v2"
	FormatGranite                 ChatFormat = "granite"
	FormatGptOss                  ChatFormat = "gpt-oss"
	FormatSeedOss                 ChatFormat = "seed-oss"
	FormatNemotronV2              ChatFormat = "nemotron-v2"
	FormatApertus                 ChatFormat = "apertus"
	FormatLfm2WithJSONTools       ChatFormat = "lfm2-json-tools"
	FormatGlm4_5                  ChatFormat = "glm-4.5"
	FormatMinimaxM2               ChatFormat = "minimax-m2"
	FormatKimiK2                  ChatFormat = "kimi-k2"
	FormatQwen3CoderXML           ChatFormat = "qwen3-coder-xml"
	FormatApriel1_5               ChatFormat = "apriel-1.5"
	FormatXiaomiMimo              ChatFormat = "xiaomi-mimo"
	FormatPegSimple                ChatFormat = "peg-simple"
	FormatPegNative                ChatFormat = "peg-native"
	FormatPegConstructed           ChatFormat = "peg-constructed"
)

// TriggerKind classifies a grammar trigger pattern.
type TriggerKind int

const (
	TriggerWord TriggerKind = iota
	TriggerPattern
	TriggerPatternStart
	TriggerPatternFull
)

// GrammarTrigger pairs a trigger pattern with the matching strategy the
// runtime should use against its running output.
type GrammarTrigger struct {
	Kind    TriggerKind
	Pattern string
}

// RenderInputs is everything a dialect renderer needs to produce a
// prompt and grammar for one request.
type RenderInputs struct {
	Messages             []Message
	Tools                []ToolSpec
	Grammar              string // caller-supplied schema-free grammar, optional
	JSONSchema           string // caller-supplied response schema, optional
	ToolChoice           ToolChoice
	ParallelToolCalls    bool
	ReasoningFormat      ReasoningFormat
	EnableThinking       bool
	Now                  time.Time
	ChatTemplateKwargs   map[string]any
	AddBOS               bool
	AddEOS               bool
	AddGenerationPrompt  bool
}

// ChatParams (RenderOutputs) is what a dialect renderer hands back to
// the caller: the rendered prompt plus everything needed to constrain
// and later parse the runtime's output.
type ChatParams struct {
	Format               ChatFormat
	Prompt               string
	Grammar              string
	GrammarLazy          bool
	ThinkingForcedOpen   bool
	GrammarTriggers      []GrammarTrigger
	PreservedTokens      []string
	AdditionalStops      []string
	// Parser is the serialized PEG arena for PEG-backed dialects; empty
	// for dialects parsed without one.
	Parser string
}

// ParserSyntax configures one dialect parse call. It is immutable for
// the duration of the parse.
type ParserSyntax struct {
	Format             ChatFormat
	ReasoningFormat    ReasoningFormat
	ReasoningInContent bool
	ThinkingForcedOpen bool
	ParseToolCalls     bool
	// Parser is the deserialized PEG arena for PEG-backed dialects, or
	// nil. Typed as `any` here to avoid pkg/chatmsg depending on
	// pkg/pegparser; pkg/dialect does the concrete cast.
	Parser any
}

// MessageDiff is one entry of the ordered delta list produced by
// pkg/msgdiff.Diff between two successive parses of a growing input.
type MessageDiff struct {
	ReasoningContentDelta string
	ContentDelta          string
	// ToolCallIndex is -1 when this diff carries no tool-call delta.
	ToolCallIndex int
	ToolCallDelta ToolCall
}
