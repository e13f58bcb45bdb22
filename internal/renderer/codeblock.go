package renderer

import (
	"context"
	"fmt"
	"html"
	"io"
	"strconv"
	"strings"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/util"

	"github.com/conneroisu/tessera/internal/logging"
)

// CodeBlockInfo is the parsed info string of a fenced code block, e.g.
// "go filename=main.go highlight=2,4".
type CodeBlockInfo struct {
	Lang       string
	Filename   string
	Highlights []int
}

// Highlighted reports whether line (1-based) is in the highlight list.
func (c CodeBlockInfo) Highlighted(line int) bool {
	for _, h := range c.Highlights {
		if h == line {
			return true
		}
	}
	return false
}

// ParseCodeBlockInfo parses a fence info string. Bad highlight numbers are
// reported through the returned errors and skipped.
func ParseCodeBlockInfo(info string) (CodeBlockInfo, []error) {
	var cbi CodeBlockInfo
	var errs []error

	for _, part := range strings.Fields(info) {
		switch {
		case strings.HasPrefix(part, "filename="):
			cbi.Filename = strings.TrimPrefix(part, "filename=")
		case strings.HasPrefix(part, "highlight="):
			for _, n := range strings.Split(strings.TrimPrefix(part, "highlight="), ",") {
				if n == "" {
					continue
				}
				line, err := strconv.Atoi(n)
				if err != nil || line < 1 {
					errs = append(errs, fmt.Errorf("invalid highlight line %q", n))
					continue
				}
				cbi.Highlights = append(cbi.Highlights, line)
			}
		case !strings.Contains(part, "="):
			cbi.Lang = part
		}
	}
	return cbi, errs
}

// Highlighter renders code as numbered, token-classed lines.
type Highlighter struct {
	style *chroma.Style
}

// NewHighlighter creates a highlighter for the named chroma style. Unknown
// names fall back to chroma's default style.
func NewHighlighter(theme string) *Highlighter {
	return &Highlighter{style: styles.Get(theme)}
}

// WriteCSS writes the stylesheet for the token classes used in output. Its
// rules are scoped to the chroma class every code block carries.
func (h *Highlighter) WriteCSS(w io.Writer) error {
	return chromahtml.New(chromahtml.WithClasses(true)).WriteCSS(w, h.style)
}

// Render writes the HTML for one code block.
func (h *Highlighter) Render(w io.Writer, info CodeBlockInfo, code string) error {
	if info.Filename != "" {
		fmt.Fprintf(w, `<span class="pre-filename">%s</span>`, html.EscapeString(info.Filename))
	}
	if info.Lang != "" {
		fmt.Fprintf(w, `<pre class="chroma lang-%s"><code>`, html.EscapeString(info.Lang))
	} else {
		io.WriteString(w, `<pre class="chroma"><code>`)
	}

	lexer := lexers.Fallback
	if info.Lang != "" {
		if l := lexers.Get(info.Lang); l != nil {
			lexer = l
		}
	}
	lexer = chroma.Coalesce(lexer)

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return fmt.Errorf("tokenising %s block: %w", info.Lang, err)
	}

	lines := chroma.SplitTokensIntoLines(iterator.Tokens())
	for len(lines) > 0 && lineIsEmpty(lines[len(lines)-1]) {
		lines = lines[:len(lines)-1]
	}

	for i, tokens := range lines {
		n := i + 1
		if info.Highlighted(n) {
			io.WriteString(w, `<div class="line line-highlight hl">`)
		} else {
			io.WriteString(w, `<div class="line">`)
		}
		fmt.Fprintf(w, `<span class="line-nb ln">%d</span>`, n)
		for _, tok := range tokens {
			value := strings.TrimRight(tok.Value, "\n")
			if value == "" {
				continue
			}
			if class := tokenClass(tok.Type); class != "" {
				fmt.Fprintf(w, `<span class="%s">%s</span>`, class, html.EscapeString(value))
			} else {
				io.WriteString(w, html.EscapeString(value))
			}
		}
		io.WriteString(w, "</div>")
	}

	io.WriteString(w, "</code></pre>")
	return nil
}

func lineIsEmpty(tokens []chroma.Token) bool {
	for _, tok := range tokens {
		if strings.TrimRight(tok.Value, "\n") != "" {
			return false
		}
	}
	return true
}

func tokenClass(tt chroma.TokenType) string {
	for _, t := range []chroma.TokenType{tt, tt.SubCategory(), tt.Category()} {
		if class, ok := chroma.StandardTypes[t]; ok && class != "" {
			return class
		}
	}
	return ""
}

// codeBlockRenderer replaces goldmark's fenced code block output.
type codeBlockRenderer struct {
	highlighter *Highlighter
	logger      logging.Logger
}

func (r *codeBlockRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(ast.KindFencedCodeBlock, r.renderFencedCodeBlock)
}

func (r *codeBlockRenderer) renderFencedCodeBlock(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	n := node.(*ast.FencedCodeBlock)

	var infoText string
	if n.Info != nil {
		infoText = string(n.Info.Segment.Value(source))
	}
	info, errs := ParseCodeBlockInfo(infoText)
	for _, err := range errs {
		r.logger.Warn(context.Background(), err, "Ignoring code block highlight", "info", infoText)
	}

	var code strings.Builder
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		code.Write(line.Value(source))
	}

	if err := r.highlighter.Render(w, info, code.String()); err != nil {
		return ast.WalkStop, err
	}
	return ast.WalkSkipChildren, nil
}
