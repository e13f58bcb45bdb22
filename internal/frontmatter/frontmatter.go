// Package frontmatter splits a source file into its metadata header and body.
//
// A header is a YAML block fenced by lines containing exactly "---". Only
// scalar values and sequences of scalars survive parsing; every other shape
// is dropped so templates only ever see strings and string lists.
package frontmatter

import (
	"bytes"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/conneroisu/tessera/internal/errors"
)

const delimiter = "---"

// Header maps header keys to their values.
type Header map[string]Value

// Value is either a scalar string or a sequence of strings.
type Value struct {
	list   []string
	scalar string
	isList bool
}

// String creates a scalar value.
func String(s string) Value {
	return Value{scalar: s}
}

// List creates a sequence value.
func List(items ...string) Value {
	cp := make([]string, len(items))
	copy(cp, items)
	return Value{list: cp, isList: true}
}

// IsList reports whether v is a sequence.
func (v Value) IsList() bool {
	return v.isList
}

// String returns the scalar, or the first item of a sequence.
func (v Value) String() string {
	if v.isList {
		if len(v.list) == 0 {
			return ""
		}
		return v.list[0]
	}
	return v.scalar
}

// Strings returns the sequence, or the scalar as a one-item slice.
func (v Value) Strings() []string {
	if v.isList {
		cp := make([]string, len(v.list))
		copy(cp, v.list)
		return cp
	}
	if v.scalar == "" {
		return nil
	}
	return []string{v.scalar}
}

// Interface returns the value as a string or []string for template use.
func (v Value) Interface() interface{} {
	if v.isList {
		return v.Strings()
	}
	return v.scalar
}

// Get returns the value for key and whether it was present.
func (h Header) Get(key string) (Value, bool) {
	v, ok := h[key]
	return v, ok
}

// GetString returns the scalar form of key, or "" when absent.
func (h Header) GetString(key string) string {
	if v, ok := h[key]; ok {
		return v.String()
	}
	return ""
}

// Keys returns the header keys in sorted order.
func (h Header) Keys() []string {
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Map converts the header into a plain map for templates.
func (h Header) Map() map[string]interface{} {
	m := make(map[string]interface{}, len(h))
	for k, v := range h {
		m[k] = v.Interface()
	}
	return m
}

// Parse splits raw into header and body. It fails with a MalformedHeader
// error when either delimiter is missing or the block is not a YAML mapping.
func Parse(raw []byte) (Header, []byte, error) {
	first, rest, ok := cutLine(raw)
	if !ok && len(first) == 0 {
		return nil, nil, errors.NewMalformedHeader("missing opening delimiter", nil)
	}
	if string(first) != delimiter {
		return nil, nil, errors.NewMalformedHeader("missing opening delimiter", nil)
	}

	var block []byte
	remaining := rest
	blockStart := rest
	consumed := 0
	for {
		line, next, more := cutLine(remaining)
		if string(line) == delimiter {
			block = blockStart[:consumed]
			header, err := decode(block)
			if err != nil {
				return nil, nil, err
			}
			return header, next, nil
		}
		if !more {
			return nil, nil, errors.NewMalformedHeader("missing closing delimiter", nil)
		}
		consumed += len(remaining) - len(next)
		remaining = next
	}
}

// cutLine returns the first line of b without its terminator, the bytes
// after the terminator, and whether a terminator was found.
func cutLine(b []byte) (line, rest []byte, found bool) {
	i := bytes.IndexByte(b, '\n')
	if i < 0 {
		return bytes.TrimSuffix(b, []byte("\r")), nil, false
	}
	return bytes.TrimSuffix(b[:i], []byte("\r")), b[i+1:], true
}

func decode(block []byte) (Header, error) {
	header := make(Header)
	if len(bytes.TrimSpace(block)) == 0 {
		return header, nil
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(block, &doc); err != nil {
		return nil, errors.NewMalformedHeader("header is not valid YAML", err)
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return header, nil
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, errors.NewMalformedHeader(fmt.Sprintf("header must be a mapping, got %s", kindName(root.Kind)), nil)
	}

	for i := 0; i+1 < len(root.Content); i += 2 {
		key := root.Content[i]
		val := root.Content[i+1]
		if key.Kind != yaml.ScalarNode {
			continue
		}
		if v, ok := convert(val); ok {
			header[key.Value] = v
		}
	}
	return header, nil
}

func convert(n *yaml.Node) (Value, bool) {
	if n.Kind == yaml.AliasNode && n.Alias != nil {
		n = n.Alias
	}
	switch n.Kind {
	case yaml.ScalarNode:
		if n.Tag == "!!null" {
			return Value{}, false
		}
		return String(n.Value), true
	case yaml.SequenceNode:
		items := make([]string, 0, len(n.Content))
		for _, item := range n.Content {
			if item.Kind == yaml.AliasNode && item.Alias != nil {
				item = item.Alias
			}
			if item.Kind != yaml.ScalarNode {
				return Value{}, false
			}
			items = append(items, item.Value)
		}
		return List(items...), true
	default:
		return Value{}, false
	}
}

func kindName(k yaml.Kind) string {
	switch k {
	case yaml.SequenceNode:
		return "sequence"
	case yaml.ScalarNode:
		return "scalar"
	case yaml.AliasNode:
		return "alias"
	default:
		return "document"
	}
}
