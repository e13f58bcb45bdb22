package renderer

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/html"
	"github.com/tdewolff/minify/v2/js"
	"github.com/tdewolff/minify/v2/json"
	"github.com/tdewolff/minify/v2/svg"
	"github.com/tdewolff/minify/v2/xml"
)

// Minifier minifies rendered output by media type.
type Minifier struct {
	m *minify.M
}

// NewMinifier creates a minifier for html, css, js, json, svg and xml.
func NewMinifier() *Minifier {
	m := minify.New()
	m.AddFunc("text/css", css.Minify)
	m.Add("text/html", &html.Minifier{
		KeepDocumentTags: true,
		KeepEndTags:      true,
		KeepQuotes:       true,
	})
	m.AddFunc("image/svg+xml", svg.Minify)
	m.AddFuncRegexp(regexp.MustCompile(`^(application|text)/(x-)?(java|ecma)script$`), js.Minify)
	m.AddFuncRegexp(regexp.MustCompile(`[/+]json$`), json.Minify)
	m.AddFuncRegexp(regexp.MustCompile(`[/+]xml$`), xml.Minify)
	return &Minifier{m: m}
}

// Minify returns s minified for mediaType. Media types without a minifier,
// such as text/plain, are returned unchanged.
func (m *Minifier) Minify(mediaType, s string) (string, error) {
	out, err := m.m.String(mediaType, s)
	if errors.Is(err, minify.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return "", fmt.Errorf("minifying %s: %w", mediaType, err)
	}
	return out, nil
}
