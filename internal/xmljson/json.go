package xmljson

import (
	"fmt"

	"github.com/antchfx/xmlquery"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// JSON encodes v with sorted keys.
func JSON(v any) ([]byte, error) {
	return json.Marshal(v)
}

// JSONIndent is JSON with two-space indentation.
func JSONIndent(v any) ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}

// Query returns the nodes under n matching the XPath expression expr.
func Query(n *xmlquery.Node, expr string) ([]*xmlquery.Node, error) {
	nodes, err := xmlquery.QueryAll(n, expr)
	if err != nil {
		return nil, fmt.Errorf("invalid xpath %q: %w", expr, err)
	}
	return nodes, nil
}
