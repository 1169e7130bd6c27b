package diff

import (
	"path/filepath"
	"strings"
	"sync"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
)

// DefaultStyle is the chroma style used when none is configured.
const DefaultStyle = "dracula"

// Segment is a run of text sharing one colour.
type Segment struct {
	Text  string
	Color string // hex colour such as "#ff79c6", empty for default
}

// Line is one highlighted source line.
type Line []Segment

// Plain returns the line text without colour.
func (l Line) Plain() string {
	var b strings.Builder
	for _, s := range l {
		b.WriteString(s.Text)
	}
	return b.String()
}

// Highlighter colours source lines by file type. Lexers are resolved once
// per extension. It is safe for concurrent use.
type Highlighter struct {
	style *chroma.Style

	mu     sync.Mutex
	lexers map[string]chroma.Lexer
}

// NewHighlighter returns a highlighter using the named chroma style, or
// DefaultStyle if the name is unknown.
func NewHighlighter(style string) *Highlighter {
	st := styles.Get(style)
	if st == nil || st == styles.Fallback {
		st = styles.Get(DefaultStyle)
	}
	return &Highlighter{style: st, lexers: make(map[string]chroma.Lexer)}
}

// Lines highlights lines as source of filename and returns exactly one Line
// per input line. Unknown file types pass through uncoloured.
func (h *Highlighter) Lines(filename string, lines []string) []Line {
	lexer := h.lexer(filename)
	if lexer == nil {
		return plain(lines)
	}
	it, err := lexer.Tokenise(nil, strings.Join(lines, "\n"))
	if err != nil {
		return plain(lines)
	}

	out := make([]Line, 0, len(lines))
	var cur Line
	for _, tok := range it.Tokens() {
		color := h.color(tok.Type)
		for i, part := range strings.Split(tok.Value, "\n") {
			if i > 0 {
				out = append(out, cur)
				cur = nil
			}
			if part != "" {
				cur = append(cur, Segment{Text: part, Color: color})
			}
		}
	}
	out = append(out, cur)

	// Lexers may append a trailing newline token.
	if len(out) > len(lines) {
		out = out[:len(lines)]
	}
	for len(out) < len(lines) {
		out = append(out, nil)
	}
	return out
}

// Change highlights a single line of filename.
func (h *Highlighter) Change(filename, text string) Line {
	return h.Lines(filename, []string{text})[0]
}

func (h *Highlighter) lexer(filename string) chroma.Lexer {
	key := strings.ToLower(filepath.Ext(filename))
	if key == "" {
		key = filepath.Base(filename)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if l, ok := h.lexers[key]; ok {
		return l
	}
	l := lexers.Match(filename)
	if l == nil && filepath.Ext(filename) != "" {
		l = lexers.Match("file" + filepath.Ext(filename))
	}
	if l != nil {
		l = chroma.Coalesce(l)
	}
	h.lexers[key] = l
	return l
}

func (h *Highlighter) color(tt chroma.TokenType) string {
	if e := h.style.Get(tt); e.Colour.IsSet() {
		return e.Colour.String()
	}
	return ""
}

func plain(lines []string) []Line {
	out := make([]Line, len(lines))
	for i, l := range lines {
		out[i] = Line{{Text: l}}
	}
	return out
}
