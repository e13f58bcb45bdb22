// Package content compiles source files into pages.
//
// A Compiler turns one file into a Page; a Scanner walks every configured
// page type, compiles each eligible file, and renders the final output of
// every page against the full page set. Neither touches the live store:
// they only ever build fresh maps.
package content

import (
	"html/template"
	"strings"

	"github.com/conneroisu/tessera/internal/frontmatter"
	"github.com/conneroisu/tessera/internal/renderer"
)

// PageType is a configured class of content with its own source tree and
// default layout template.
type PageType struct {
	Kind            string `mapstructure:"kind" yaml:"kind"`
	Path            string `mapstructure:"path" yaml:"path"`
	DefaultTemplate string `mapstructure:"default_template" yaml:"default_template"`
}

// StaticKind is the page type kind given to static includes.
const StaticKind = "static"

// Page is one compiled source file. Pages are never modified once they
// have been published in a store snapshot.
type Page struct {
	Route       string
	PageKind    string
	Kind        Kind
	Source      string
	Title       string
	Date        string
	FrontMatter frontmatter.Header
	Body        string
	Meta        Meta
}

// Meta holds the resolved layout and identity of a page.
type Meta struct {
	Template string
	ETag     string
	// Rendered is nil until the layout pass succeeds.
	Rendered *string
}

// IsRendered reports whether the final output is present.
func (p *Page) IsRendered() bool {
	return p.Meta.Rendered != nil
}

// Output returns the final rendered output, or "" if absent.
func (p *Page) Output() string {
	if p.Meta.Rendered == nil {
		return ""
	}
	return *p.Meta.Rendered
}

// SameOutput reports whether p and other have byte-identical rendered output.
// Pages without output never compare equal.
func (p *Page) SameOutput(other *Page) bool {
	if p == nil || other == nil || p.Meta.Rendered == nil || other.Meta.Rendered == nil {
		return false
	}
	return *p.Meta.Rendered == *other.Meta.Rendered
}

// withRendered returns a copy of p carrying output. The copy shares the
// immutable header map.
func (p *Page) withRendered(output string) *Page {
	cp := *p
	cp.Meta.Rendered = &output
	return &cp
}

// View returns the template-facing shape of the page.
func (p *Page) View() renderer.PageView {
	return renderer.PageView{
		Route:       p.Route,
		Kind:        p.PageKind,
		Title:       p.Title,
		Date:        p.Date,
		Summary:     p.summary(),
		Template:    p.Meta.Template,
		FrontMatter: p.FrontMatter.Map(),
		Content:     template.HTML(p.Body),
	}
}

func (p *Page) summary() string {
	if s := p.FrontMatter.GetString("summary"); s != "" {
		return s
	}
	if s := p.FrontMatter.GetString("description"); s != "" {
		return s
	}
	if p.Kind != KindMarkdown && p.Kind != KindHTML {
		return ""
	}
	return renderer.Excerpt(p.Body, 200)
}

// NormalizeRoute makes slug an absolute route key.
func NormalizeRoute(slug string) string {
	slug = strings.TrimSpace(slug)
	if !strings.HasPrefix(slug, "/") {
		slug = "/" + slug
	}
	return slug
}
