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

import "sort"

// trieMatch classifies how much of a delimiter set matched at a position.
type trieMatch int

const (
	trieNoMatch trieMatch = iota
	triePartialMatch
	trieCompleteMatch
)

// trie indexes a set of delimiter strings for the Until node: it answers
// "does any delimiter start here", and also, for grammar generation,
// "what are all the prefix-then-excluded-next-byte pairs that describe
// everything NOT matching one of these delimiters".
type trie struct {
	children []map[byte]int
	isWord   []bool
}

func newTrie(words []string) *trie {
	t := &trie{children: []map[byte]int{{}}, isWord: []bool{false}}
	for _, w := range words {
		t.insert(w)
	}
	return t
}

func (t *trie) createNode() int {
	t.children = append(t.children, map[byte]int{})
	t.isWord = append(t.isWord, false)
	return len(t.children) - 1
}

func (t *trie) insert(word string) {
	cur := 0
	for i := 0; i < len(word); i++ {
		ch := word[i]
		next, ok := t.children[cur][ch]
		if !ok {
			next = t.createNode()
			t.children[cur][ch] = next
		}
		cur = next
	}
	t.isWord[cur] = true
}

// checkAt reports whether a delimiter starts at sv[pos:].
func (t *trie) checkAt(sv string, pos int) trieMatch {
	cur := 0
	p := pos
	for p < len(sv) {
		next, ok := t.children[cur][sv[p]]
		if !ok {
			return trieNoMatch
		}
		cur = next
		p++
		if t.isWord[cur] {
			return trieCompleteMatch
		}
	}
	if cur != 0 {
		return triePartialMatch
	}
	return trieNoMatch
}

type prefixAndNext struct {
	prefix    string
	nextChars string
}

// collectPrefixAndNext walks the trie and, for every node that is not
// itself a completed word, records the bytes leading to it plus the set
// of bytes that would continue matching from there. Used to build a
// "doesn't start any of these delimiters" GBNF character class.
func (t *trie) collectPrefixAndNext() []prefixAndNext {
	var out []prefixAndNext
	var walk func(idx int, prefix []byte)
	walk = func(idx int, prefix []byte) {
		if !t.isWord[idx] && len(t.children[idx]) > 0 {
			chars := make([]byte, 0, len(t.children[idx]))
			for ch := range t.children[idx] {
				chars = append(chars, ch)
			}
			sort.Slice(chars, func(i, j int) bool { return chars[i] < chars[j] })
			out = append(out, prefixAndNext{prefix: string(prefix), nextChars: string(chars)})
		}
		children := make([]byte, 0, len(t.children[idx]))
		for ch := range t.children[idx] {
			children = append(children, ch)
		}
		sort.Slice(children, func(i, j int) bool { return children[i] < children[j] })
		for _, ch := range children {
			walk(t.children[idx][ch], append(prefix, ch))
		}
	}
	walk(0, nil)
	return out
}
