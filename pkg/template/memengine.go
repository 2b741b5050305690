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

package template

import (
	"fmt"
	"strings"

	"github.com/mybigday/chattmpl/pkg/chatmsg"
)

// MemEngine is a literal-substitution stand-in for a real chat-template
// engine, used by this module's own tests and by cmd/chattmpl's
// "render" command. It renders each message as "<|role|>text\n" and, if
// AddGenerationPrompt is requested, appends GenerationPromptRole as
// "<|role|>" —
// it has no notion of Jinja
// control flow and must never be mistaken for a conformant template
// engine.
type MemEngine struct {
	GenerationPromptRole string
}

func (m MemEngine) Apply(inputs chatmsg.RenderInputs) (string, error) {
	var sb strings.Builder
	for _, msg := range inputs.Messages {
		fmt.Fprintf(&sb, "<|%s|>%s\n", msg.Role, msg.Text())
	}
	if inputs.AddGenerationPrompt && m.GenerationPromptRole != "" {
		fmt.Fprintf(&sb, "<|%s|>", m.GenerationPromptRole)
	}
	return sb.String(), nil
}
