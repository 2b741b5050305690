package regexutil

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFindFullMatch(t *testing.T) {
	re := regexp.MustCompile(`<tool_call>`)
	res := Find(re, "hello <tool_call>", 0)
	assert.Equal(t, FullMatch, res.Type)
	assert.Equal(t, 6, res.Start)
	assert.Equal(t, len("hello <tool_call>"), res.End)
}

func TestFindNoMatch(t *testing.T) {
	re := regexp.MustCompile(`<tool_call>`)
	res := Find(re, "nothing here", 0)
	assert.Equal(t, NoMatch, res.Type)
}

func TestFindPartialMatchAtTail(t *testing.T) {
	re := regexp.MustCompile(`<tool_call>`)
	res := Find(re, "hello <tool_ca", 0)
	assert.Equal(t, PartialMatch, res.Type)
	assert.Equal(t, 6, res.Start)
	assert.Equal(t, 14, res.End)
}

func TestFindPartialStop(t *testing.T) {
	tests := []struct {
		name      string
		haystack  string
		needle    string
		want      string
		wantFound bool
	}{
		{"full prefix at tail", "abc<tool_", "<tool_call>", "<tool_", true},
		{"no overlap", "abcdef", "<tool_call>", "", false},
		{"needle shorter than match would be full", "x<tool_call>", "<tool_call>", "", false},
		{"single char overlap", "a<", "<tool_call>", "<", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, found := FindPartialStop(tt.haystack, tt.needle)
			assert.Equal(t, tt.wantFound, found)
			if found {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}
