package server

import (
	"context"
	"strings"

	"github.com/a-h/templ"
)

//go:generate templ generate

// render writes c into a string.
func render(ctx context.Context, c templ.Component) (string, error) {
	var sb strings.Builder
	if err := c.Render(ctx, &sb); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// injectBeforeBodyEnd inserts snippet before the last </body>, or appends
// it when the document has none.
func injectBeforeBodyEnd(doc, snippet string) string {
	i := strings.LastIndex(strings.ToLower(doc), "</body>")
	if i < 0 {
		return doc + snippet
	}
	return doc[:i] + snippet + doc[i:]
}
