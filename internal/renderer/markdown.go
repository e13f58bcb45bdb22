package renderer

import (
	"bytes"
	"fmt"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer"
	gmhtml "github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/util"

	"github.com/conneroisu/tessera/internal/logging"
)

// Markdown converts Markdown source to HTML with highlighted code blocks.
// It is safe for concurrent use.
type Markdown struct {
	md goldmark.Markdown
}

// NewMarkdown creates a Markdown renderer using the named syntax theme.
func NewMarkdown(theme string, logger logging.Logger) *Markdown {
	if logger == nil {
		logger = logging.NewNop()
	}
	highlighter := NewHighlighter(theme)

	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			extension.Footnote,
			extension.Typographer,
		),
		goldmark.WithRendererOptions(
			gmhtml.WithUnsafe(),
			renderer.WithNodeRenderers(
				util.Prioritized(&codeBlockRenderer{
					highlighter: highlighter,
					logger:      logger.WithComponent("markdown"),
				}, 100),
			),
		),
	)

	return &Markdown{md: md}
}

// Render converts src to HTML.
func (m *Markdown) Render(src []byte) (string, error) {
	var buf bytes.Buffer
	if err := m.md.Convert(src, &buf); err != nil {
		return "", fmt.Errorf("rendering markdown: %w", err)
	}
	return buf.String(), nil
}
