package content

import (
	stderrors "errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/conneroisu/tessera/internal/errors"
	"github.com/conneroisu/tessera/internal/frontmatter"
	"github.com/conneroisu/tessera/internal/renderer"
)

// Compiler turns single source files into pages. It is safe for concurrent use.
type Compiler struct {
	markdown *renderer.Markdown
	newETag  func() string
}

// NewCompiler creates a compiler that renders Markdown bodies with md.
func NewCompiler(md *renderer.Markdown) *Compiler {
	return &Compiler{
		markdown: md,
		newETag:  uuid.NewString,
	}
}

// Compile reads the file at path and builds its page. The returned page has
// no rendered output yet; layouts are applied by the Scanner once every
// page is known.
func (c *Compiler) Compile(path string, pt PageType) (*Page, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewIOError(path, err)
	}

	header, body, err := frontmatter.Parse(raw)
	if err != nil {
		var ce *errors.ContentError
		if stderrors.As(err, &ce) {
			return nil, ce.WithPath(path)
		}
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	slug := strings.TrimSpace(header.GetString("slug"))
	if slug == "" {
		return nil, errors.NewMissingField(path, "slug")
	}
	route := NormalizeRoute(slug)

	tmpl := header.GetString("template")
	if tmpl == "" {
		tmpl = header.GetString("layout")
	}
	if tmpl == "" {
		tmpl = pt.DefaultTemplate
	}

	ext := filepath.Ext(path)
	kind := KindFromExt(ext)

	var rendered string
	switch kind {
	case KindMarkdown:
		rendered, err = c.markdown.Render(body)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	case KindHTML, KindCSS, KindJavaScript, KindJSON, KindXML, KindText:
		rendered = string(body)
	default:
		return nil, errors.NewUnsupportedExtension(path, ext)
	}

	title := header.GetString("title")
	if title == "" {
		title = TitleFromRoute(route)
	}

	return &Page{
		Route:       route,
		PageKind:    pt.Kind,
		Kind:        kind,
		Source:      path,
		Title:       title,
		Date:        header.GetString("date"),
		FrontMatter: header,
		Body:        rendered,
		Meta: Meta{
			Template: tmpl,
			ETag:     c.newETag(),
		},
	}, nil
}

// CompileStatic builds a page that serves the file at path verbatim. The
// route is the slash-separated path with a leading slash; the page is
// complete and skips the layout pass.
func (c *Compiler) CompileStatic(path string) (*Page, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewIOError(path, err)
	}

	route := NormalizeRoute(filepath.ToSlash(filepath.Clean(path)))
	output := string(raw)

	return &Page{
		Route:       route,
		PageKind:    StaticKind,
		Kind:        RouteKind(route),
		Source:      path,
		Title:       filepath.Base(path),
		FrontMatter: frontmatter.Header{},
		Body:        output,
		Meta: Meta{
			ETag:     c.newETag(),
			Rendered: &output,
		},
	}, nil
}

// TitleFromRoute derives a human title from the last route segment,
// e.g. "/blog/hello-world" becomes "Hello World".
func TitleFromRoute(route string) string {
	base := path.Base(route)
	if base == "/" || base == "." || base == "" {
		return "Home"
	}
	base = strings.TrimSuffix(base, path.Ext(base))
	base = strings.NewReplacer("-", " ", "_", " ").Replace(base)
	return cases.Title(language.English).String(strings.TrimSpace(base))
}
