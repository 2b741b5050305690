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

// Package msgdiff computes the ordered delta between two successive
// parses of a growing model output, so a streaming caller can ship
// OpenAI-style choices[].delta chunks instead of whole messages.
package msgdiff

import (
	"errors"
	"strings"

	"github.com/mybigday/chattmpl/pkg/chatmsg"
)

// ErrInvariant reports a violation of the monotonic-growth contract
// between two successive partial parses of the same input prefix: new
// must extend prev, never diverge from it.
var ErrInvariant = errors.New("msgdiff: new message does not extend prev")

// Diff computes the ordered list of deltas turning prev into new. Both
// messages must come from successive parses of the same growing input;
// Diff returns ErrInvariant if new is not an extension (or a suffix
// erasure, for stop-word trimming) of prev.
func Diff(prev, new chatmsg.Message) ([]chatmsg.MessageDiff, error) {
	var diffs []chatmsg.MessageDiff

	reasoningDelta, reasoningChanged, err := suffixDelta(prev.ReasoningContent, new.ReasoningContent)
	if err != nil {
		return nil, err
	}
	if reasoningChanged {
		diffs = append(diffs, chatmsg.MessageDiff{ReasoningContentDelta: reasoningDelta, ToolCallIndex: -1})
	}

	contentDelta, contentChanged, err := suffixDelta(prev.Content, new.Content)
	if err != nil {
		return nil, err
	}
	if contentChanged {
		diffs = append(diffs, chatmsg.MessageDiff{ContentDelta: contentDelta, ToolCallIndex: -1})
	}

	if len(new.ToolCalls) < len(prev.ToolCalls) {
		return nil, ErrInvariant
	}

	if len(prev.ToolCalls) > 0 {
		i := len(prev.ToolCalls) - 1
		prevCall := prev.ToolCalls[i]
		newCall := new.ToolCalls[i]

		idChanged := newCall.ID != "" && newCall.ID != prevCall.ID
		argsDelta, argsChanged, err := suffixDelta(prevCall.Arguments, newCall.Arguments)
		if err != nil {
			return nil, err
		}

		if idChanged || argsChanged {
			delta := chatmsg.ToolCall{Arguments: argsDelta}
			if idChanged {
				delta.ID = newCall.ID
				delta.Name = newCall.Name
			}
			diffs = append(diffs, chatmsg.MessageDiff{ToolCallIndex: i, ToolCallDelta: delta})
		}
	}

	for i := len(prev.ToolCalls); i < len(new.ToolCalls); i++ {
		diffs = append(diffs, chatmsg.MessageDiff{ToolCallIndex: i, ToolCallDelta: new.ToolCalls[i]})
	}

	return diffs, nil
}

// suffixDelta returns the suffix of new beyond prev (changed=true
// whenever new != prev), or an empty delta with changed=true if new is
// a strict prefix of prev — the stop-word erasure case, where a later
// partial parse trims trailing text a stop-word match consumed. Any
// other divergence is ErrInvariant.
func suffixDelta(prev, new string) (delta string, changed bool, err error) {
	if new == prev {
		return "", false, nil
	}
	if strings.HasPrefix(new, prev) {
		return new[len(prev):], true, nil
	}
	if strings.HasPrefix(prev, new) {
		return "", true, nil
	}
	return "", false, ErrInvariant
}

// Apply reconstructs new from prev and the delta list Diff produced
// (test/documentation helper verifying the round-trip property).
func Apply(prev chatmsg.Message, diffs []chatmsg.MessageDiff) chatmsg.Message {
	out := prev
	out.ToolCalls = append([]chatmsg.ToolCall(nil), prev.ToolCalls...)

	for _, d := range diffs {
		out.ReasoningContent += d.ReasoningContentDelta
		out.Content += d.ContentDelta
		if d.ToolCallIndex < 0 {
			continue
		}
		if d.ToolCallIndex < len(out.ToolCalls) {
			existing := out.ToolCalls[d.ToolCallIndex]
			if d.ToolCallDelta.ID != "" {
				existing.ID = d.ToolCallDelta.ID
				existing.Name = d.ToolCallDelta.Name
			}
			existing.Arguments += d.ToolCallDelta.Arguments
			out.ToolCalls[d.ToolCallIndex] = existing
			continue
		}
		out.ToolCalls = append(out.ToolCalls, d.ToolCallDelta)
	}
	return out
}
