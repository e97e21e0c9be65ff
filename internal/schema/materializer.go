package schema

import "strings"

// Placeholder is the sentinel written into string fields a human has not
// filled yet. The completion gate treats it as empty.
const Placeholder = "To be filled"

// Pattern-constrained fields get well-formed fakes instead of the generic
// sentinel, so a schema's structural constraints hold before a human edits
// the document.
var patternPlaceholders = map[string]string{
	"orcid": "https://orcid.org/0000-0000-0000-0000",
	"email": "placeholder@example.com",
}

// Materializer synthesizes default-populated documents from a JSON schema.
// Depth bounds how far nested objects are expanded; the historical behavior
// is one level.
type Materializer struct {
	Depth int
}

// NewMaterializer returns a materializer with the given nested-object
// recursion depth. Depth < 1 is normalized to 1.
func NewMaterializer(depth int) *Materializer {
	if depth < 1 {
		depth = 1
	}
	return &Materializer{Depth: depth}
}

// Materialize builds a document from schema. Property names present in
// overrides (system identifiers, audit fields) take their override value
// verbatim; everything else gets a type-appropriate default.
func (m *Materializer) Materialize(schema map[string]any, overrides map[string]any) map[string]any {
	return m.materializeObject(schema, overrides, m.Depth)
}

func (m *Materializer) materializeObject(schema map[string]any, overrides map[string]any, depth int) map[string]any {
	doc := make(map[string]any)
	props, _ := schema["properties"].(map[string]any)
	for name, raw := range props {
		if v, ok := overrides[name]; ok {
			doc[name] = v
			continue
		}
		prop, _ := raw.(map[string]any)
		doc[name] = m.defaultValue(name, prop, depth)
	}
	return doc
}

func (m *Materializer) defaultValue(name string, prop map[string]any, depth int) any {
	typ, _ := prop["type"].(string)
	switch typ {
	case "string":
		if c, ok := prop["const"]; ok {
			return c
		}
		if enum, ok := prop["enum"].([]any); ok && len(enum) > 0 {
			return enum[0]
		}
		if _, hasPattern := prop["pattern"]; hasPattern {
			return stringPlaceholder(name, "")
		}
		if format, ok := prop["format"].(string); ok {
			return stringPlaceholder(name, format)
		}
		return Placeholder
	case "integer":
		return 0
	case "number":
		return 0.0
	case "boolean":
		return false
	case "array":
		return []any{}
	case "object":
		if depth <= 1 {
			return m.shallowObject(prop)
		}
		return m.materializeObject(prop, nil, depth-1)
	default:
		return Placeholder
	}
}

// shallowObject expands one level of a nested object using the scalar rules
// only; deeper objects collapse to the sentinel.
func (m *Materializer) shallowObject(prop map[string]any) map[string]any {
	nested := make(map[string]any)
	props, _ := prop["properties"].(map[string]any)
	for name, raw := range props {
		p, _ := raw.(map[string]any)
		typ, _ := p["type"].(string)
		if typ == "object" {
			// Deeper objects are not expanded at the default depth.
			nested[name] = Placeholder
			continue
		}
		nested[name] = m.defaultValue(name, p, 1)
	}
	return nested
}

// formatPlaceholders are minimal values satisfying common format keywords.
var formatPlaceholders = map[string]string{
	"date":      "0001-01-01",
	"date-time": "0001-01-01T00:00:00Z",
	"email":     "placeholder@example.com",
	"uri":       "https://example.com/placeholder",
}

func stringPlaceholder(field, format string) string {
	for key, v := range patternPlaceholders {
		if strings.Contains(field, key) {
			return v
		}
	}
	if v, ok := formatPlaceholders[format]; ok {
		return v
	}
	return Placeholder
}
