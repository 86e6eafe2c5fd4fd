// Package xmljson converts XML documents into nested maps ready for JSON
// encoding.
//
// Elements become map[string]any. Attributes are collected under
// "@attributes", text under "#text" and CDATA under "#cdata-section". Child
// nodes are keyed by their qualified name; a name that repeats among siblings
// becomes a []any in document order. Comments, processing instructions and
// directives are dropped.
package xmljson

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/antchfx/xmlquery"

	"github.com/zjrosen/erwt/internal/log"
)

// Keys used in converted output.
const (
	AttributesKey = "@attributes"
	TextKey       = "#text"
	CDataKey      = "#cdata-section"
)

// Converter turns parsed XML into maps.
type Converter struct {
	keepWhitespace bool
}

// Option configures a Converter.
type Option func(*Converter)

// KeepWhitespace retains whitespace-only text nodes.
func KeepWhitespace() Option {
	return func(c *Converter) { c.keepWhitespace = true }
}

// New returns a Converter.
func New(opts ...Option) *Converter {
	c := &Converter{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ReadFile returns the raw XML at path.
func ReadFile(path string) (string, error) {
	data, err := os.ReadFile(path) //nolint:gosec // caller-chosen path
	if err != nil {
		return "", fmt.Errorf("reading xml file: %w", err)
	}
	return string(data), nil
}

// Parse reads an XML document.
func Parse(r io.Reader) (*xmlquery.Node, error) {
	doc, err := xmlquery.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parsing xml: %w", err)
	}
	return doc, nil
}

// ParseString parses an XML document held in s.
func ParseString(s string) (*xmlquery.Node, error) {
	return Parse(strings.NewReader(s))
}

// Convert walks n. Text and CDATA nodes convert to their string value; every
// other node converts to a map.
func (c *Converter) Convert(n *xmlquery.Node) any {
	if n == nil {
		return nil
	}
	switch n.Type {
	case xmlquery.TextNode, xmlquery.CharDataNode:
		return n.Data
	}

	obj := make(map[string]any)
	if n.Type == xmlquery.ElementNode && len(n.Attr) > 0 {
		attrs := make(map[string]any, len(n.Attr))
		for _, a := range n.Attr {
			attrs[qualify(a.Name.Space, a.Name.Local)] = a.Value
		}
		obj[AttributesKey] = attrs
	}

	for child := n.FirstChild; child != nil; child = child.NextSibling {
		key, ok := c.nodeName(child)
		if !ok {
			continue
		}
		value := c.Convert(child)
		existing, seen := obj[key]
		if !seen {
			obj[key] = value
			continue
		}
		if list, ok := existing.([]any); ok {
			obj[key] = append(list, value)
		} else {
			obj[key] = []any{existing, value}
		}
	}
	return obj
}

// nodeName returns the key child is stored under, or false if it is skipped.
func (c *Converter) nodeName(n *xmlquery.Node) (string, bool) {
	switch n.Type {
	case xmlquery.ElementNode:
		return qualify(n.Prefix, n.Data), true
	case xmlquery.TextNode:
		if !c.keepWhitespace && strings.TrimSpace(n.Data) == "" {
			return "", false
		}
		return TextKey, true
	case xmlquery.CharDataNode:
		return CDataKey, true
	default:
		return "", false
	}
}

func qualify(prefix, local string) string {
	if prefix == "" {
		return local
	}
	return prefix + ":" + local
}

// FromString parses and converts s.
func (c *Converter) FromString(s string) (any, error) {
	doc, err := ParseString(s)
	if err != nil {
		return nil, err
	}
	return c.Convert(doc), nil
}

// FromFile reads, parses and converts the document at path.
func (c *Converter) FromFile(path string) (any, error) {
	raw, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	v, err := c.FromString(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	log.Debug(log.CatXML, "Converted file", "path", path, "bytes", len(raw))
	return v, nil
}

var std = New()

// FromString converts s with the default Converter.
func FromString(s string) (any, error) { return std.FromString(s) }

// FromFile converts the file at path with the default Converter.
func FromFile(path string) (any, error) { return std.FromFile(path) }

// FromNode converts an already parsed node with the default Converter.
func FromNode(n *xmlquery.Node) any { return std.Convert(n) }
