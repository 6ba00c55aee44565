package syntax

import (
	"testing"

	"github.com/alecthomas/chroma/v2"
	"github.com/stretchr/testify/assert"
)

func TestStyleCacheNameTokens(t *testing.T) {
	c := NewStyleCache()

	for _, tt := range []chroma.TokenType{
		chroma.NameClass,
		chroma.NameNamespace,
		chroma.NameEntity,
		chroma.NameFunction,
		chroma.NameConstant,
		chroma.NameTag,
	} {
		_, styled := c.Style(tt)
		assert.True(t, styled, "token %s must carry a style", tt)
	}

	// Plain identifiers keep the underlying diff colour.
	_, styled := c.Style(chroma.Name)
	assert.False(t, styled)
	_, styled = c.Style(chroma.Text)
	assert.False(t, styled)
}

func TestStyleCacheCategoryFallback(t *testing.T) {
	c := NewStyleCache()

	kw, styled := c.Style(chroma.KeywordNamespace)
	assert.True(t, styled)
	assert.Equal(t, styleKeyword.GetForeground(), kw.GetForeground())

	str, styled := c.Style(chroma.LiteralStringDouble)
	assert.True(t, styled)
	assert.Equal(t, styleString.GetForeground(), str.GetForeground())

	num, styled := c.Style(chroma.LiteralNumberInteger)
	assert.True(t, styled)
	assert.Equal(t, styleNumber.GetForeground(), num.GetForeground())
}
