package syntax

import (
	"github.com/alecthomas/chroma/v2"
	"github.com/charmbracelet/lipgloss"
)

var (
	styleKeyword  = lipgloss.NewStyle().Foreground(lipgloss.Color("5"))
	styleModifier = lipgloss.NewStyle().Foreground(lipgloss.Color("5")).Italic(true)
	styleType     = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	styleFunction = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	styleString   = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	styleNumber   = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	styleComment  = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)
	styleProperty = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	stylePunct    = lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
	styleTag      = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	styleDefault  = lipgloss.NewStyle()
)

type cachedStyle struct {
	style  lipgloss.Style
	styled bool
}

// StyleCache resolves token types to terminal styles once per file so the
// span-emitting loop does a map lookup instead of a category walk.
type StyleCache struct {
	styles map[chroma.TokenType]cachedStyle
}

// NewStyleCache returns an empty cache. Not safe for concurrent use; each
// build worker owns its own.
func NewStyleCache() *StyleCache {
	return &StyleCache{styles: make(map[chroma.TokenType]cachedStyle)}
}

// Style returns the display style for a token type. styled is false when the
// token carries no styling of its own, letting callers keep the underlying
// diff colour instead.
func (c *StyleCache) Style(tt chroma.TokenType) (style lipgloss.Style, styled bool) {
	if s, ok := c.styles[tt]; ok {
		return s.style, s.styled
	}
	s := styleForToken(tt)
	entry := cachedStyle{style: s, styled: !isDefault(s)}
	c.styles[tt] = entry
	return entry.style, entry.styled
}

func isDefault(s lipgloss.Style) bool {
	return s.GetForeground() == styleDefault.GetForeground() && !s.GetItalic()
}

func styleForToken(tt chroma.TokenType) lipgloss.Style {
	switch tt {
	case chroma.KeywordDeclaration:
		return styleModifier
	case chroma.KeywordType:
		return styleType
	case chroma.KeywordConstant:
		return styleNumber
	case chroma.NameClass, chroma.NameNamespace, chroma.NameEntity:
		return styleType
	case chroma.NameFunction, chroma.NameFunctionMagic, chroma.NameBuiltin:
		return styleFunction
	case chroma.NameAttribute, chroma.NameProperty:
		return styleProperty
	case chroma.NameTag, chroma.NameLabel, chroma.NameDecorator:
		return styleTag
	case chroma.NameConstant:
		return styleNumber
	case chroma.LiteralStringEscape:
		return styleNumber
	case chroma.Punctuation:
		return stylePunct
	}
	// Strings and numbers are sub-categories of Literal; keywords and
	// comments are top-level categories.
	switch tt.SubCategory() {
	case chroma.LiteralString:
		return styleString
	case chroma.LiteralNumber:
		return styleNumber
	}
	switch tt.Category() {
	case chroma.Keyword:
		return styleKeyword
	case chroma.Comment:
		return styleComment
	}
	return styleDefault
}
