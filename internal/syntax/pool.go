// Package syntax produces per-line highlight spans for source buffers using
// chroma lexers, with lexer and style memoisation scoped to one worker.
package syntax

import (
	"path/filepath"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/lexers"
)

// extLanguages maps file extensions to chroma lexer names for extensions
// where filename matching is ambiguous or slow. Everything else falls back
// to chroma's own filename matching.
var extLanguages = map[string]string{
	".go":    "Go",
	".rs":    "Rust",
	".ts":    "TypeScript",
	".tsx":   "TSX",
	".js":    "JavaScript",
	".jsx":   "JSX",
	".py":    "Python",
	".rb":    "Ruby",
	".java":  "Java",
	".c":     "C",
	".h":     "C",
	".cpp":   "C++",
	".cs":    "C#",
	".sh":    "Bash",
	".toml":  "TOML",
	".yaml":  "YAML",
	".yml":   "YAML",
	".json":  "JSON",
	".md":    "markdown",
	".html":  "HTML",
	".css":   "CSS",
	".vue":   "vue",
	".sql":   "SQL",
	".proto": "Protocol Buffer",
}

// DetectLanguage guesses the lexer name for a changed file's path. Returns
// "" when no lexer is known, in which case the diff stays plain.
func DetectLanguage(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if name, ok := extLanguages[ext]; ok {
		return name
	}
	if lexer := lexers.Match(filepath.Base(path)); lexer != nil {
		return lexer.Config().Name
	}
	return ""
}

// Pool memoises lexers and the style cache for one build worker. It is not
// safe to share across goroutines; each worker constructs its own.
type Pool struct {
	lexers map[string]chroma.Lexer
	styles *StyleCache
}

// NewPool returns an empty pool.
func NewPool() *Pool {
	return &Pool{
		lexers: make(map[string]chroma.Lexer),
		styles: NewStyleCache(),
	}
}

// Lexer returns the coalesced lexer for a language name, instantiating it on
// first request. Returns nil for unknown languages.
func (p *Pool) Lexer(lang string) chroma.Lexer {
	if lang == "" {
		return nil
	}
	if lexer, ok := p.lexers[lang]; ok {
		return lexer
	}
	lexer := lexers.Get(lang)
	if lexer != nil {
		lexer = chroma.Coalesce(lexer)
	}
	p.lexers[lang] = lexer
	return lexer
}

// Styles returns the pool's shared style cache.
func (p *Pool) Styles() *StyleCache {
	return p.styles
}
