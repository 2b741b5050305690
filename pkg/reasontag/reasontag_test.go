package reasontag

import (
	"testing"

	"github.com/mybigday/chattmpl/pkg/msgparser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(input string, isPartial bool, opts Options) (*msgparser.Parser, bool) {
	p := msgparser.New(input, isPartial)
	ok := TryParse(p, opts)
	return p, ok
}

func TestExplicitStartAndEndTags(t *testing.T) {
	p, ok := parse("<think>because reasons</think>answer", false, Options{StartTag: "<think>", EndTag: "</think>"})
	require.True(t, ok)
	msg := p.Result()
	assert.Equal(t, "because reasons", msg.ReasoningContent)
	require.NoError(t, p.ConsumeLiteral("answer"))
}

func TestNoStartTagReturnsFalse(t *testing.T) {
	p, ok := parse("just an answer", false, Options{StartTag: "<think>", EndTag: "</think>"})
	assert.False(t, ok)
	assert.Equal(t, 0, p.Pos())
}

func TestForcedOpenConsumesToEndTag(t *testing.T) {
	p, ok := parse("because reasons</think>answer", false, Options{StartTag: "<think>", EndTag: "</think>", ForcedOpen: true})
	require.True(t, ok)
	assert.Equal(t, "because reasons", p.Result().ReasoningContent)
}

func TestForcedOpenNoEndTagConsumesAllAsReasoningWhenNotPartial(t *testing.T) {
	p, ok := parse("because reasons, no end in sight", false, Options{StartTag: "<think>", EndTag: "</think>", ForcedOpen: true})
	require.True(t, ok)
	assert.Equal(t, "because reasons, no end in sight", p.Result().ReasoningContent)
}

func TestPartialEndTagAtTailDeferred(t *testing.T) {
	p, ok := parse("<think>partial reasoning</thi", true, Options{StartTag: "<think>", EndTag: "</think>"})
	require.True(t, ok)
	assert.Equal(t, "partial reasoning", p.Result().ReasoningContent)
	assert.Equal(t, len(p.Input()), p.Pos())
}

func TestInContentReEmitsTags(t *testing.T) {
	p, ok := parse("<think>because reasons</think>answer", false, Options{StartTag: "<think>", EndTag: "</think>", InContent: true})
	require.True(t, ok)
	msg := p.Result()
	assert.Empty(t, msg.ReasoningContent)
	assert.Equal(t, "<think>because reasons</think>", msg.Content)
}

func TestLegacyNoStartTagAlwaysOpen(t *testing.T) {
	p, ok := parse("legacy reasoning</think>answer", false, Options{EndTag: "</think>", LegacyNoStartTag: true})
	require.True(t, ok)
	assert.Equal(t, "legacy reasoning", p.Result().ReasoningContent)
}

func TestMultiBlockReasoningWithWhitespaceBetween(t *testing.T) {
	input := "<think>first</think>  <think>second</think>rest"
	p, ok := parse(input, false, Options{StartTag: "<think>", EndTag: "</think>"})
	require.True(t, ok)
	assert.Equal(t, "firstsecond", p.Result().ReasoningContent)
}

func TestEmptyInputForcedOpenConsumesNothing(t *testing.T) {
	p, ok := parse("", false, Options{StartTag: "<think>", EndTag: "</think>", ForcedOpen: true})
	require.True(t, ok)
	assert.Empty(t, p.Result().ReasoningContent)
}
