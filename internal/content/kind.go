package content

import (
	"path"
	"strings"
)

// Kind is the content variant of a source file or a route, resolved once
// from an extension.
type Kind int

const (
	KindUnknown Kind = iota
	KindMarkdown
	KindHTML
	KindCSS
	KindJavaScript
	KindJSON
	KindXML
	KindText
)

// String returns the string representation of the Kind
func (k Kind) String() string {
	switch k {
	case KindMarkdown:
		return "markdown"
	case KindHTML:
		return "html"
	case KindCSS:
		return "css"
	case KindJavaScript:
		return "js"
	case KindJSON:
		return "json"
	case KindXML:
		return "xml"
	case KindText:
		return "text"
	default:
		return "unknown"
	}
}

// KindFromExt maps a file extension (with or without the dot) to a Kind.
func KindFromExt(ext string) Kind {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "md", "markdown":
		return KindMarkdown
	case "html", "htm":
		return KindHTML
	case "css":
		return KindCSS
	case "js", "mjs":
		return KindJavaScript
	case "json":
		return KindJSON
	case "xml", "rss", "atom":
		return KindXML
	case "txt", "text":
		return KindText
	default:
		return KindUnknown
	}
}

// RouteKind resolves the output kind of a route from its suffix. Routes
// without an extension-like suffix, or with an unknown one, are HTML.
func RouteKind(route string) Kind {
	ext := path.Ext(path.Base(route))
	if ext == "" {
		return KindHTML
	}
	switch k := KindFromExt(ext); k {
	case KindUnknown, KindMarkdown:
		return KindHTML
	default:
		return k
	}
}

// MediaType returns the media type used to minify output of this kind.
func (k Kind) MediaType() string {
	switch k {
	case KindCSS:
		return "text/css"
	case KindJavaScript:
		return "application/javascript"
	case KindJSON:
		return "application/json"
	case KindXML:
		return "text/xml"
	case KindText:
		return "text/plain"
	default:
		return "text/html"
	}
}

// ContentType returns the Content-Type header value for responses of this kind.
func (k Kind) ContentType() string {
	switch k {
	case KindCSS:
		return "text/css; charset=utf-8"
	case KindJavaScript:
		return "application/javascript; charset=utf-8"
	case KindJSON:
		return "application/json"
	case KindXML:
		return "text/xml; charset=utf-8"
	case KindText:
		return "text/plain; charset=utf-8"
	default:
		return "text/html; charset=utf-8"
	}
}

// HasSuffix reports whether route ends in the extension of an output kind,
// e.g. "/feed.xml" but not "/v1.2" or "/notes.md". It decides how the route
// is mirrored to disk.
func HasSuffix(route string) bool {
	switch KindFromExt(path.Ext(path.Base(route))) {
	case KindUnknown, KindMarkdown:
		return false
	default:
		return true
	}
}
