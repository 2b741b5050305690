package pegparser

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLiteralFullAndPartial(t *testing.T) {
	a := BuildPegParser(func(b *Builder) {
		b.SetRoot(b.Literal("<tool_call>"))
	})

	ctx := NewContext("<tool_call>", false)
	res := a.Parse(ctx, 0)
	assert.True(t, res.Success())
	assert.Equal(t, 11, res.End)

	ctx2 := NewContext("<tool_ca", true)
	res2 := a.Parse(ctx2, 0)
	assert.True(t, res2.NeedMoreInput())

	ctx3 := NewContext("<tool_ca", false)
	res3 := a.Parse(ctx3, 0)
	assert.True(t, res3.Fail())
}

func TestSequenceAndChoice(t *testing.T) {
	a := BuildPegParser(func(b *Builder) {
		ab := b.Sequence(b.Literal("a"), b.Literal("b"))
		cd := b.Literal("cd")
		b.SetRoot(b.Choice(ab, cd))
	})

	ctx := NewContext("ab", false)
	res := a.Parse(ctx, 0)
	assert.True(t, res.Success())
	assert.Equal(t, 2, res.End)

	ctx2 := NewContext("cd", false)
	res2 := a.Parse(ctx2, 0)
	assert.True(t, res2.Success())

	ctx3 := NewContext("xy", false)
	res3 := a.Parse(ctx3, 0)
	assert.True(t, res3.Fail())
}

func TestRepetitionMinMax(t *testing.T) {
	a := BuildPegParser(func(b *Builder) {
		digit := b.Chars("0-9", 1, 1)
		b.SetRoot(b.Repeat(digit, 2, 4))
	})

	ctx := NewContext("123456", false)
	res := a.Parse(ctx, 0)
	assert.True(t, res.Success())
	assert.Equal(t, 4, res.End)

	ctx2 := NewContext("1", false)
	res2 := a.Parse(ctx2, 0)
	assert.True(t, res2.Fail())
}

func TestRuleProducesASTNode(t *testing.T) {
	a := BuildPegParser(func(b *Builder) {
		word := b.Chars("a-z", 1, -1)
		b.SetRoot(b.Rule("word", word, false))
	})

	ctx := NewContext("hello", false)
	res := a.Parse(ctx, 0)
	require.True(t, res.Success())
	require.Len(t, res.Nodes, 1)
	node := ctx.AST.Get(res.Nodes[0])
	assert.Equal(t, "word", node.Rule)
	assert.Equal(t, "hello", node.Text)
}

func TestUntilStopsAtDelimiter(t *testing.T) {
	a := BuildPegParser(func(b *Builder) {
		b.SetRoot(b.Until("STOP"))
	})

	ctx := NewContext("abcSTOPdef", false)
	res := a.Parse(ctx, 0)
	assert.True(t, res.Success())
	assert.Equal(t, 3, res.End)
}

func TestUntilPartialDelimiterAtTail(t *testing.T) {
	a := BuildPegParser(func(b *Builder) {
		b.SetRoot(b.Until("STOP"))
	})

	ctx := NewContext("abcST", true)
	res := a.Parse(ctx, 0)
	assert.True(t, res.Success())
	assert.Equal(t, 3, res.End)
}

func TestJSONGrammarParsesObject(t *testing.T) {
	a := BuildPegParser(func(b *Builder) {
		b.SetRoot(b.JSON())
	})

	ctx := NewContext(`{"a": 1, "b": [1, 2, "x"], "c": null, "d": true}`, false)
	res := a.Parse(ctx, 0)
	assert.True(t, res.Success())
	assert.Equal(t, len(ctx.Input), res.End)
}

func TestAtomicSuppressesPartialNodes(t *testing.T) {
	a := BuildPegParser(func(b *Builder) {
		rule := b.Rule("tok", b.Literal("<tool_call>"), false)
		b.SetRoot(b.Atomic(rule))
	})

	ctx := NewContext("<tool_ca", true)
	res := a.Parse(ctx, 0)
	assert.True(t, res.NeedMoreInput())
	assert.Empty(t, res.Nodes)
}

func TestTagWrapsChild(t *testing.T) {
	a := BuildPegParser(func(b *Builder) {
		b.SetRoot(b.Tag("greeting", b.Literal("hi")))
	})
	ctx := NewContext("hi", false)
	res := a.Parse(ctx, 0)
	require.True(t, res.Success())
	require.Len(t, res.Nodes, 1)
	assert.Equal(t, "greeting", ctx.AST.Get(res.Nodes[0]).Tag)
}

func TestRefResolvesToNamedRule(t *testing.T) {
	a := BuildPegParser(func(b *Builder) {
		b.Rule("greeting", b.Literal("hi"), false)
		b.SetRoot(b.Ref("greeting"))
	})
	ctx := NewContext("hi", false)
	res := a.Parse(ctx, 0)
	assert.True(t, res.Success())
}

type stubGrammarBuilder struct {
	rules map[string]string
}

func (s *stubGrammarBuilder) AddRule(name, body string) {
	if s.rules == nil {
		s.rules = map[string]string{}
	}
	s.rules[name] = body
}

func (s *stubGrammarBuilder) AddSchema(name string, schema json.RawMessage) string {
	return name
}

func TestBuildGrammarNonLazyEmitsRootAndRules(t *testing.T) {
	a := BuildPegParser(func(b *Builder) {
		word := b.Rule("word", b.Chars("a-z", 1, -1), false)
		b.SetRoot(word)
	})

	gb := &stubGrammarBuilder{}
	a.BuildGrammar(gb, false)
	assert.Contains(t, gb.rules, "word")
	assert.Contains(t, gb.rules, "root")
	assert.Equal(t, "word", gb.rules["root"])
}

func TestBuildGrammarLazyUsesTriggersOnly(t *testing.T) {
	a := BuildPegParser(func(b *Builder) {
		untriggered := b.Rule("untriggered", b.Literal("x"), false)
		triggered := b.Rule("triggered", b.Literal("y"), true)
		b.SetRoot(b.Choice(untriggered, triggered))
	})

	gb := &stubGrammarBuilder{}
	a.BuildGrammar(gb, true)
	assert.NotContains(t, gb.rules, "untriggered")
	assert.Contains(t, gb.rules, "triggered")
	assert.Equal(t, "triggered", gb.rules["root"])
}

func TestArenaJSONRoundTrip(t *testing.T) {
	a := BuildPegParser(func(b *Builder) {
		word := b.Rule("word", b.Chars("a-z", 1, -1), false)
		b.SetRoot(word)
	})

	saved, err := a.Save()
	require.NoError(t, err)

	reloaded := NewArena()
	require.NoError(t, reloaded.Load(saved))

	ctx := NewContext("hello", false)
	res := reloaded.Parse(ctx, 0)
	assert.True(t, res.Success())
}

func TestExcludingPatternGrammar(t *testing.T) {
	pattern := gbnfExcludingPattern([]string{"</tool_call>", "<|end|>"})
	assert.Contains(t, pattern, "[^")
}
