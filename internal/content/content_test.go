package content

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/tessera/internal/errors"
	"github.com/conneroisu/tessera/internal/logging"
	"github.com/conneroisu/tessera/internal/renderer"
)

type site struct {
	root      string
	content   string
	templates string
}

func kindOf(err error) errors.Kind {
	kind, _ := errors.KindOf(err)
	return kind
}

func newSite(t *testing.T) *site {
	t.Helper()
	root := t.TempDir()
	s := &site{
		root:      root,
		content:   filepath.Join(root, "content"),
		templates: filepath.Join(root, "templates"),
	}
	require.NoError(t, os.MkdirAll(s.content, 0755))
	require.NoError(t, os.MkdirAll(s.templates, 0755))
	s.write(t, "templates/page.html", "{{ .Page.Content }}")
	return s
}

func (s *site) write(t *testing.T, rel, body string) string {
	t.Helper()
	path := filepath.Join(s.root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func (s *site) scanner(extra ...func(*ScanOptions)) *Scanner {
	opts := ScanOptions{
		PageTypes:     []PageType{{Kind: "page", Path: s.content, DefaultTemplate: "page.html"}},
		TemplatesPath: s.templates,
		Globals:       map[string]interface{}{"site": "Example"},
		Concurrency:   4,
	}
	for _, fn := range extra {
		fn(&opts)
	}
	md := renderer.NewMarkdown("github", logging.NewNop())
	return NewScanner(NewCompiler(md), renderer.NewMinifier(), opts, logging.NewNop())
}

func TestCompileMarkdown(t *testing.T) {
	s := newSite(t)
	path := s.write(t, "content/a.md", "---\nslug: /a\n---\n# Hi\n")

	c := NewCompiler(renderer.NewMarkdown("github", logging.NewNop()))
	page, err := c.Compile(path, PageType{Kind: "page", DefaultTemplate: "page.html"})
	require.NoError(t, err)

	assert.Equal(t, "/a", page.Route)
	assert.Equal(t, "page", page.PageKind)
	assert.Equal(t, KindMarkdown, page.Kind)
	assert.Contains(t, page.Body, "<h1>Hi</h1>")
	assert.Equal(t, "page.html", page.Meta.Template)
	assert.NotEmpty(t, page.Meta.ETag)
	assert.False(t, page.IsRendered())
	assert.Equal(t, "A", page.Title)
}

func TestCompileTemplateOverride(t *testing.T) {
	s := newSite(t)
	path := s.write(t, "content/b.html", "---\nslug: b\nlayout: wide.html\ntitle: Bee\n---\n<p>b</p>")

	c := NewCompiler(renderer.NewMarkdown("github", logging.NewNop()))
	page, err := c.Compile(path, PageType{Kind: "page", DefaultTemplate: "page.html"})
	require.NoError(t, err)

	assert.Equal(t, "/b", page.Route)
	assert.Equal(t, "wide.html", page.Meta.Template)
	assert.Equal(t, "<p>b</p>", page.Body)
	assert.Equal(t, "Bee", page.Title)
}

func TestCompileErrors(t *testing.T) {
	s := newSite(t)
	c := NewCompiler(renderer.NewMarkdown("github", logging.NewNop()))
	pt := PageType{Kind: "page", DefaultTemplate: "page.html"}

	tests := []struct {
		name string
		file string
		body string
		kind errors.Kind
	}{
		{"missing slug", "content/noslug.md", "---\ntitle: x\n---\nbody", errors.KindMissingField},
		{"no header", "content/plain.md", "just text", errors.KindMalformedHeader},
		{"unclosed header", "content/open.md", "---\nslug: /x\n", errors.KindMalformedHeader},
		{"unsupported extension", "content/pic.png", "---\nslug: /pic\n---\n", errors.KindUnsupportedExtension},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := s.write(t, tt.file, tt.body)
			_, err := c.Compile(path, pt)
			require.Error(t, err)
			assert.Equal(t, tt.kind, kindOf(err))
			assert.Contains(t, err.Error(), path)
		})
	}

	_, err := c.Compile(filepath.Join(s.content, "missing.md"), pt)
	assert.Equal(t, errors.KindIO, kindOf(err))
}

func TestCompileFreshETags(t *testing.T) {
	s := newSite(t)
	path := s.write(t, "content/a.md", "---\nslug: /a\n---\nx\n")
	c := NewCompiler(renderer.NewMarkdown("github", logging.NewNop()))

	first, err := c.Compile(path, PageType{Kind: "page"})
	require.NoError(t, err)
	second, err := c.Compile(path, PageType{Kind: "page"})
	require.NoError(t, err)
	assert.NotEqual(t, first.Meta.ETag, second.Meta.ETag)
}

func TestCompileStatic(t *testing.T) {
	s := newSite(t)
	s.write(t, "robots.txt", "User-agent: *\n")

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(s.root))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	c := NewCompiler(renderer.NewMarkdown("github", logging.NewNop()))
	page, err := c.CompileStatic("./robots.txt")
	require.NoError(t, err)

	assert.Equal(t, "/robots.txt", page.Route)
	assert.Equal(t, StaticKind, page.PageKind)
	assert.Equal(t, KindText, page.Kind)
	assert.True(t, page.IsRendered())
	assert.Equal(t, "User-agent: *\n", page.Output())
}

func TestTitleFromRoute(t *testing.T) {
	assert.Equal(t, "Home", TitleFromRoute("/"))
	assert.Equal(t, "Hello World", TitleFromRoute("/blog/hello-world"))
	assert.Equal(t, "Feed", TitleFromRoute("/feed.xml"))
	assert.Equal(t, "Snake Case", TitleFromRoute("/snake_case"))
}

func TestRouteKind(t *testing.T) {
	tests := map[string]Kind{
		"/":            KindHTML,
		"/a":           KindHTML,
		"/a/b.html":    KindHTML,
		"/style.css":   KindCSS,
		"/app.js":      KindJavaScript,
		"/data.json":   KindJSON,
		"/feed.xml":    KindXML,
		"/robots.txt":  KindText,
		"/weird.thing": KindHTML,
		"/notes.md":    KindHTML,
	}
	for route, want := range tests {
		assert.Equal(t, want, RouteKind(route), route)
	}

	assert.Equal(t, "text/html; charset=utf-8", RouteKind("/a").ContentType())
	assert.Equal(t, "text/css", RouteKind("/s.css").MediaType())
	assert.True(t, HasSuffix("/feed.xml"))
	assert.False(t, HasSuffix("/a"))
	assert.False(t, HasSuffix("/v1.2"), "dotted slugs are pages")
	assert.False(t, HasSuffix("/notes.md"))
}

func TestIgnored(t *testing.T) {
	for _, name := range []string{".hidden", ".git", "a.md~", "a.md.swp", "#a.md#", "x.tmp"} {
		assert.True(t, Ignored(name), name)
	}
	for _, name := range []string{"a.md", "index.html", "feed.xml"} {
		assert.False(t, Ignored(name), name)
	}
}

func TestScanRendersPages(t *testing.T) {
	s := newSite(t)
	s.write(t, "content/a.md", "---\nslug: /a\n---\n# Hi\n")

	pages, report, err := s.scanner().Scan(context.Background())
	require.NoError(t, err)
	require.Contains(t, pages, "/a")

	assert.Equal(t, "<h1>Hi</h1>", pages["/a"].Output())
	assert.Equal(t, 1, report.Compiled)
	assert.Empty(t, report.Errors)
}

func TestScanSkipsInvalidFiles(t *testing.T) {
	s := newSite(t)
	s.write(t, "content/good.md", "---\nslug: /good\n---\nok\n")
	s.write(t, "content/bad.md", "---\ntitle: no slug\n---\nbody\n")
	s.write(t, "content/.hidden.md", "---\nslug: /hidden\n---\nx\n")
	s.write(t, "content/good.md~", "---\nslug: /backup\n---\nx\n")
	s.write(t, "content/.drafts/d.md", "---\nslug: /draft\n---\nx\n")

	pages, report, err := s.scanner().Scan(context.Background())
	require.NoError(t, err)

	assert.Len(t, pages, 1)
	assert.Contains(t, pages, "/good")
	assert.Equal(t, 1, report.Skipped)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, errors.KindMissingField, kindOf(report.Errors[0]))
}

func TestScanLeavesOutUnknownExtensions(t *testing.T) {
	s := newSite(t)
	s.write(t, "content/post.md", "---\nslug: /post\n---\n![x](pic.png)\n")
	s.write(t, "content/pic.png", "\x89PNG")
	s.write(t, "content/assets/data.bin", "---\nslug: /bin\n---\n")

	pages, report, err := s.scanner().Scan(context.Background())
	require.NoError(t, err)

	assert.Len(t, pages, 1)
	assert.Contains(t, pages, "/post")
	assert.Zero(t, report.Skipped)
	assert.Empty(t, report.Errors)
}

func TestScanDuplicateSlugLastWins(t *testing.T) {
	s := newSite(t)
	s.write(t, "content/1.md", "---\nslug: /dup\n---\nfirst\n")
	s.write(t, "content/2.md", "---\nslug: /dup\n---\nsecond\n")

	pages, report, err := s.scanner().Scan(context.Background())
	require.NoError(t, err)

	require.Contains(t, pages, "/dup")
	assert.Contains(t, pages["/dup"].Output(), "second")
	assert.Equal(t, 1, report.Collisions)
}

func TestScanTemplateFailureDropsPage(t *testing.T) {
	s := newSite(t)
	s.write(t, "templates/strict.html", "{{ .Page.FrontMatter.author }}")
	s.write(t, "content/ok.md", "---\nslug: /ok\n---\nok\n")
	s.write(t, "content/broken.md", "---\nslug: /broken\ntemplate: strict.html\n---\nx\n")

	pages, report, err := s.scanner().Scan(context.Background())
	require.NoError(t, err)

	assert.Contains(t, pages, "/ok")
	assert.NotContains(t, pages, "/broken")
	assert.Equal(t, 1, report.Dropped)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, errors.KindTemplateRender, kindOf(report.Errors[0]))
}

func TestScanTemplateSeesAllPages(t *testing.T) {
	s := newSite(t)
	s.write(t, "templates/index.html", `{{ range .Pages }}{{ .Route }};{{ end }}{{ .Globals.site }}`)
	s.write(t, "content/index.md", "---\nslug: /\ntemplate: index.html\n---\n")
	s.write(t, "content/b.md", "---\nslug: /b\n---\nb\n")
	s.write(t, "content/a.md", "---\nslug: /a\n---\na\n")

	pages, _, err := s.scanner().Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "/;/a;/b;Example", pages["/"].Output())
}

func TestScanPassThroughKinds(t *testing.T) {
	s := newSite(t)
	s.write(t, "templates/raw.html", "{{ .Page.Content }}")
	s.write(t, "content/feed.xml", "---\nslug: /feed.xml\ntemplate: raw.html\n---\n<rss>\n  <channel></channel>\n</rss>\n")
	s.write(t, "content/style.css", "---\nslug: /style.css\ntemplate: raw.html\n---\nbody {\n  color: red;\n}\n")

	pages, _, err := s.scanner().Scan(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "body{color:red}", pages["/style.css"].Output())
	assert.Contains(t, pages["/feed.xml"].Output(), "<rss>")
	assert.NotContains(t, pages["/feed.xml"].Output(), "&lt;rss")
}

func TestScanMultiplePageTypes(t *testing.T) {
	s := newSite(t)
	posts := filepath.Join(s.root, "posts")
	s.write(t, "templates/post.html", `<article>{{ .Page.Kind }}</article>`)
	s.write(t, "content/about.md", "---\nslug: /about\n---\nabout\n")
	s.write(t, "posts/one.md", "---\nslug: /posts/one\n---\none\n")

	sc := s.scanner(func(o *ScanOptions) {
		o.PageTypes = append(o.PageTypes, PageType{Kind: "post", Path: posts, DefaultTemplate: "post.html"})
	})
	pages, _, err := sc.Scan(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "page", pages["/about"].PageKind)
	assert.Equal(t, "<article>post</article>", pages["/posts/one"].Output())
}

func TestScanStaticIncludes(t *testing.T) {
	s := newSite(t)
	s.write(t, "extra/robots.txt", "User-agent: *\n")

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(s.root))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	sc := s.scanner(func(o *ScanOptions) {
		o.StaticIncludes = []string{"extra/robots.txt", "extra/missing.txt"}
	})
	pages, report, err := sc.Scan(context.Background())
	require.NoError(t, err)

	require.Contains(t, pages, "/extra/robots.txt")
	assert.Equal(t, "User-agent: *\n", pages["/extra/robots.txt"].Output())
	assert.Equal(t, 1, report.Skipped)
}

func TestScanMissingContentRoot(t *testing.T) {
	s := newSite(t)
	sc := s.scanner(func(o *ScanOptions) {
		o.PageTypes = []PageType{{Kind: "page", Path: filepath.Join(s.root, "nope")}}
	})

	pages, _, err := sc.Scan(context.Background())
	require.NoError(t, err)
	assert.Empty(t, pages)
}

func TestScanTemplateLoadFailure(t *testing.T) {
	s := newSite(t)
	s.write(t, "templates/broken.html", "{{ if }}")

	_, _, err := s.scanner().Scan(context.Background())
	assert.Error(t, err)
}

func TestScanCancelled(t *testing.T) {
	s := newSite(t)
	for i := 0; i < 20; i++ {
		s.write(t, fmt.Sprintf("content/%02d.md", i), fmt.Sprintf("---\nslug: /p%d\n---\nx\n", i))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := s.scanner().Scan(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPageSameOutput(t *testing.T) {
	a := (&Page{Route: "/a"}).withRendered("x")
	b := (&Page{Route: "/a"}).withRendered("x")
	c := (&Page{Route: "/a"}).withRendered("y")

	assert.True(t, a.SameOutput(b))
	assert.False(t, a.SameOutput(c))
	assert.False(t, a.SameOutput(&Page{}))
	assert.False(t, (&Page{}).SameOutput(&Page{}))
}
