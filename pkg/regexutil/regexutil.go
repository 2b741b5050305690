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

// Package regexutil matches a compiled regexp against a byte range that
// may be an incomplete prefix of a longer string, distinguishing "no
// match anywhere", "might match once more bytes arrive" and "matched".
//
// Go's regexp package (RE2) never backtracks and exposes no partial-match
// state, so "might still match" is reconstructed here by checking
// whether the haystack ends with a strict prefix of the pattern's
// leading literal. This is the documented, idiomatic workaround for
// RE2's lack of a native partial-match mode; see DESIGN.md for why no third-party
// regex engine in the example pack covers this either.
package regexutil

import "regexp"

// MatchType classifies the outcome of a partial-aware regex search.
type MatchType int

const (
	// NoMatch: the pattern cannot match anywhere in the searched range,
	// regardless of what bytes might follow.
	NoMatch MatchType = iota
	// PartialMatch: the pattern did not fully match, but some suffix of
	// the input is a viable prefix of a match; more input might complete it.
	PartialMatch
	// FullMatch: the pattern matched completely within the input.
	FullMatch
)

// Group is one capture group's byte offsets into the original input,
// using Go's [start,end) convention. Begin == -1 means the group did
// not participate in the match.
type Group struct {
	Begin, End int
}

// Result is the outcome of Find.
type Result struct {
	Type MatchType
	// Start/End bound the overall match (or, for PartialMatch, the
	// trailing region that might still extend into a match).
	Start, End int
	Groups     []Group
}

// Find searches re against input[start:], returning the first match (or
// partial-match candidate) at or after start.
func Find(re *regexp.Regexp, input string, start int) Result {
	if start > len(input) {
		start = len(input)
	}
	hay := input[start:]

	if loc := re.FindStringSubmatchIndex(hay); loc != nil {
		groups := make([]Group, len(loc)/2)
		for i := range groups {
			b, e := loc[2*i], loc[2*i+1]
			if b < 0 {
				groups[i] = Group{-1, -1}
				continue
			}
			groups[i] = Group{start + b, start + e}
		}
		return Result{Type: FullMatch, Start: groups[0].Begin, End: groups[0].End, Groups: groups}
	}

	// No full match anywhere in the remaining input. "Might still match
	// with more bytes" is detected from the pattern's literal prefix: if
	// the tail of hay is a strict prefix of that literal, the match may
	// have been cut off there. This is an approximation (RE2 exposes no
	// native partial-match state, see package doc): it is exact for
	// literal sentinel patterns, while a match cut off after the leading
	// literal, or a pattern with no literal prefix, reports NoMatch.
	if lit, _ := re.LiteralPrefix(); lit != "" {
		if stop, ok := FindPartialStop(hay, lit); ok {
			return Result{Type: PartialMatch, Start: start + len(hay) - len(stop), End: start + len(hay)}
		}
	}

	return Result{Type: NoMatch}
}

// FindPartialStop returns the longest suffix of haystack that is a
// strict, non-empty prefix of needle, or ("", false) if no such suffix
// exists. It is used to detect that a multi-byte sentinel token (like
// "<tool_call>") may be mid-emission at the buffer tail.
func FindPartialStop(haystack, needle string) (string, bool) {
	maxLen := len(haystack)
	if len(needle)-1 < maxLen {
		maxLen = len(needle) - 1
	}
	for l := maxLen; l > 0; l-- {
		suffix := haystack[len(haystack)-l:]
		if needle[:l] == suffix {
			return suffix, true
		}
	}
	return "", false
}
