package discovery

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
	"gopkg.in/yaml.v3"
)

var pathsExpr = jp.MustParseString("$.paths")

// ParseSpecDocument extracts the route keys of a machine-readable API
// description. OpenAPI 3 documents go through the kin-openapi loader;
// Swagger 2 and partial documents fall back to a `$.paths` lookup. Both
// JSON and YAML bodies are accepted. Only keys beginning with "/" are
// returned, sorted.
func ParseSpecDocument(body []byte) ([]string, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, fmt.Errorf("empty document")
	}

	if paths, ok := openAPI3Paths(body); ok {
		return paths, nil
	}

	data, err := decodeDocument(body)
	if err != nil {
		return nil, err
	}

	results := pathsExpr.Get(data)
	if len(results) == 0 {
		return nil, fmt.Errorf("document has no paths object")
	}
	obj, ok := results[0].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("paths is %T, not an object", results[0])
	}

	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	return routeKeys(keys), nil
}

func openAPI3Paths(body []byte) ([]string, bool) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(body)
	if err != nil || doc.OpenAPI == "" || doc.Paths == nil || doc.Paths.Len() == 0 {
		return nil, false
	}

	keys := make([]string, 0, doc.Paths.Len())
	for k := range doc.Paths.Map() {
		keys = append(keys, k)
	}
	return routeKeys(keys), true
}

func decodeDocument(body []byte) (any, error) {
	if json.Valid(body) {
		data, err := oj.Parse(body)
		if err != nil {
			return nil, fmt.Errorf("parse json document: %w", err)
		}
		return data, nil
	}

	var data any
	if err := yaml.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("parse yaml document: %w", err)
	}
	if _, ok := data.(map[string]any); !ok {
		return nil, fmt.Errorf("document is not a mapping")
	}
	return data, nil
}

func routeKeys(keys []string) []string {
	out := keys[:0]
	for _, k := range keys {
		if strings.HasPrefix(k, "/") {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}
