package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies content pipeline failures.
type Kind string

const (
	KindIO                   Kind = "io"
	KindMalformedHeader      Kind = "malformed_header"
	KindMissingField         Kind = "missing_field"
	KindUnsupportedExtension Kind = "unsupported_extension"
	KindTemplateRender       Kind = "template_render"
	KindWatcherSubscription  Kind = "watcher_subscription"
	KindConfig               Kind = "config"
	KindOther                Kind = "other"
)

// ContentError is a structured error carrying the file or route it concerns.
type ContentError struct {
	Kind    Kind
	Path    string
	Route   string
	Field   string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *ContentError) Error() string {
	var parts []string

	parts = append(parts, fmt.Sprintf("[%s]", e.Kind))

	if e.Path != "" {
		parts = append(parts, e.Path)
	}
	if e.Route != "" {
		parts = append(parts, "route:"+e.Route)
	}

	msg := e.Message
	if msg == "" {
		msg = defaultMessage(e)
	}
	parts = append(parts, msg)

	result := strings.Join(parts, " ")
	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

func defaultMessage(e *ContentError) string {
	switch e.Kind {
	case KindIO:
		return "file unreadable"
	case KindMalformedHeader:
		return "malformed header"
	case KindMissingField:
		return fmt.Sprintf("missing required field %q", e.Field)
	case KindUnsupportedExtension:
		return "unsupported extension"
	case KindTemplateRender:
		return "template render failed"
	case KindWatcherSubscription:
		return "watch subscription failed"
	case KindConfig:
		return "invalid configuration"
	default:
		return "error"
	}
}

// Unwrap returns the underlying cause error.
func (e *ContentError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a ContentError of the same kind. A target
// with a Field set must also match the field.
func (e *ContentError) Is(target error) bool {
	var t *ContentError
	if !errors.As(target, &t) {
		return false
	}
	if t.Field != "" && t.Field != e.Field {
		return false
	}
	return e.Kind == t.Kind
}

// Sentinels for errors.Is comparisons.
var (
	ErrIO                   = &ContentError{Kind: KindIO}
	ErrMalformedHeader      = &ContentError{Kind: KindMalformedHeader}
	ErrMissingField         = &ContentError{Kind: KindMissingField}
	ErrUnsupportedExtension = &ContentError{Kind: KindUnsupportedExtension}
	ErrTemplateRender       = &ContentError{Kind: KindTemplateRender}
	ErrWatcherSubscription  = &ContentError{Kind: KindWatcherSubscription}
	ErrConfig               = &ContentError{Kind: KindConfig}
)

// NewIOError creates an I/O error for path.
func NewIOError(path string, cause error) *ContentError {
	return &ContentError{Kind: KindIO, Path: path, Cause: cause}
}

// NewMalformedHeader creates a header error. message describes which part
// of the header was wrong.
func NewMalformedHeader(message string, cause error) *ContentError {
	return &ContentError{Kind: KindMalformedHeader, Message: message, Cause: cause}
}

// NewMissingField creates an error for a required header key.
func NewMissingField(path, field string) *ContentError {
	return &ContentError{Kind: KindMissingField, Path: path, Field: field}
}

// NewUnsupportedExtension creates an error for a file the compiler cannot handle.
func NewUnsupportedExtension(path, ext string) *ContentError {
	return &ContentError{
		Kind:    KindUnsupportedExtension,
		Path:    path,
		Message: fmt.Sprintf("unsupported extension %q", ext),
	}
}

// NewTemplateRenderError creates an error for a page whose layout failed.
func NewTemplateRenderError(route, template string, cause error) *ContentError {
	return &ContentError{
		Kind:    KindTemplateRender,
		Route:   route,
		Message: fmt.Sprintf("template %q failed", template),
		Cause:   cause,
	}
}

// NewWatcherError wraps an error delivered by the filesystem event subscription.
func NewWatcherError(cause error) *ContentError {
	return &ContentError{Kind: KindWatcherSubscription, Cause: cause}
}

// NewConfigError creates a configuration error.
func NewConfigError(message string, cause error) *ContentError {
	return &ContentError{Kind: KindConfig, Message: message, Cause: cause}
}

// WithPath returns e with its path set. Used by callers that learn the path
// after the error was created deeper in the stack.
func (e *ContentError) WithPath(path string) *ContentError {
	e.Path = path
	return e
}

// KindOf returns the kind of the first ContentError in err's chain.
func KindOf(err error) (Kind, bool) {
	var ce *ContentError
	if errors.As(err, &ce) {
		return ce.Kind, true
	}
	return "", false
}

// Chain flattens err and its causes into messages, outermost first.
func Chain(err error) []string {
	var chain []string
	for err != nil {
		msg := err.Error()
		if ce, ok := err.(*ContentError); ok && ce.Cause != nil {
			msg = strings.TrimSuffix(msg, ": "+ce.Cause.Error())
		}
		chain = append(chain, msg)
		err = errors.Unwrap(err)
	}
	return chain
}
