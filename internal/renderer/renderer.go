// Package renderer wraps the collaborators that turn page bodies into final
// output: Markdown conversion with code highlighting, layout templates,
// minification and plain-text excerpts.
//
// Layout templates are loaded from a directory tree and addressed by their
// slash-separated path relative to that directory, e.g. "index.html" or
// "feeds/atom.xml". Files ending in .html or .htm are parsed with
// html/template; every other layout is parsed with text/template so XML,
// JSON and plain text come out unescaped. A layout can only include layouts
// of the same family. Every template receives a Vars value.
package renderer

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	texttemplate "text/template"
	"time"
)

// TemplateExtensions lists the file extensions loaded as templates.
var TemplateExtensions = []string{".html", ".htm", ".xml", ".txt", ".json", ".css", ".js"}

// htmlExtensions are the template extensions parsed with contextual escaping.
var htmlExtensions = []string{".html", ".htm"}

// PageView is the read-only shape of a page handed to templates.
type PageView struct {
	Route       string
	Kind        string
	Title       string
	Date        string
	Summary     string
	Template    string
	FrontMatter map[string]interface{}
	Content     template.HTML
}

// Vars are the variables every layout template is executed with.
type Vars struct {
	Page    PageView
	Pages   []PageView
	Globals map[string]interface{}
}

// Templates is an immutable, loaded template set.
type Templates struct {
	root string
	html *template.Template
	text *texttemplate.Template
}

// LoadTemplates parses every template file under root.
func LoadTemplates(root string) (*Templates, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("templates directory %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("templates path %s is not a directory", root)
	}

	htmlSet := template.New("").Funcs(Funcs()).Option("missingkey=error")
	textSet := texttemplate.New("").Funcs(texttemplate.FuncMap(Funcs())).Option("missingkey=error")

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !isTemplateFile(d.Name()) {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		src, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading template %s: %w", path, err)
		}
		name := filepath.ToSlash(rel)
		if isHTMLTemplate(name) {
			_, err = htmlSet.New(name).Parse(string(src))
		} else {
			_, err = textSet.New(name).Parse(string(src))
		}
		if err != nil {
			return fmt.Errorf("parsing template %s: %w", rel, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &Templates{root: root, html: htmlSet, text: textSet}, nil
}

func isTemplateFile(name string) bool {
	if strings.HasPrefix(name, ".") {
		return false
	}
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range TemplateExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

func isHTMLTemplate(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range htmlExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// Names returns the loaded template names in sorted order.
func (t *Templates) Names() []string {
	var names []string
	for _, tmpl := range t.html.Templates() {
		if tmpl.Name() != "" {
			names = append(names, tmpl.Name())
		}
	}
	for _, tmpl := range t.text.Templates() {
		if tmpl.Name() != "" {
			names = append(names, tmpl.Name())
		}
	}
	sort.Strings(names)
	return names
}

// Has reports whether a template with the given name is loaded.
func (t *Templates) Has(name string) bool {
	if isHTMLTemplate(name) {
		return t.html.Lookup(name) != nil
	}
	return t.text.Lookup(name) != nil
}

// Render executes the named template with vars.
func (t *Templates) Render(name string, vars Vars) (string, error) {
	if !t.Has(name) {
		return "", fmt.Errorf("template %q not found in %s", name, t.root)
	}

	var buf bytes.Buffer
	var err error
	if isHTMLTemplate(name) {
		err = t.html.Lookup(name).Execute(&buf, vars)
	} else {
		err = t.text.Lookup(name).Execute(&buf, vars)
	}
	if err != nil {
		return "", fmt.Errorf("executing %s: %w", name, err)
	}
	return buf.String(), nil
}

// Funcs returns the helper functions available to every template.
func Funcs() template.FuncMap {
	return template.FuncMap{
		"kind":       filterKind,
		"sortByDate": sortByDate,
		"limit":      limit,
		"excerpt": func(n int, content template.HTML) string {
			return Excerpt(string(content), n)
		},
		"list": asList,
		"now":  time.Now,
		"date": formatDate,
		"rfc3339": func(value string) string {
			return formatDate(time.RFC3339, value)
		},
		"safeHTML": func(s string) template.HTML { return template.HTML(s) },
	}
}

func filterKind(kind string, pages []PageView) []PageView {
	out := make([]PageView, 0, len(pages))
	for _, p := range pages {
		if p.Kind == kind {
			out = append(out, p)
		}
	}
	return out
}

// sortByDate returns a copy of pages, newest first. Undated pages sort last
// and ties keep route order.
func sortByDate(pages []PageView) []PageView {
	out := make([]PageView, len(pages))
	copy(out, pages)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Date == "" || out[j].Date == "" {
			return out[i].Date != "" && out[j].Date == ""
		}
		return out[i].Date > out[j].Date
	})
	return out
}

func limit(n int, pages []PageView) []PageView {
	if n < 0 || n >= len(pages) {
		return pages
	}
	return pages[:n]
}

func asList(v interface{}) []string {
	switch val := v.(type) {
	case nil:
		return nil
	case []string:
		return val
	case string:
		if val == "" {
			return nil
		}
		return []string{val}
	default:
		return []string{fmt.Sprint(val)}
	}
}

// formatDate reformats an ISO date (2006-01-02, optionally with a time) using layout.
// Unparseable input is returned unchanged.
func formatDate(layout, value string) string {
	for _, in := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(in, value); err == nil {
			return t.Format(layout)
		}
	}
	return value
}
