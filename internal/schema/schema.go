// Package schema infers response shapes from JSON bodies.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Kind is the type tag of a Schema.
type Kind string

// Schema kinds. Date, UUID, Email and URL are sniffed string subtypes.
const (
	KindObject  Kind = "object"
	KindArray   Kind = "array"
	KindString  Kind = "string"
	KindInteger Kind = "integer"
	KindNumber  Kind = "number"
	KindBoolean Kind = "boolean"
	KindNull    Kind = "null"
	KindDate    Kind = "date"
	KindUUID    Kind = "uuid"
	KindEmail   Kind = "email"
	KindURL     Kind = "url"
	KindUnknown Kind = "unknown"
)

// Property is one named field of an object schema.
type Property struct {
	Name   string
	Schema *Schema
}

// Schema is a tagged variant: object (ordered properties), array (items
// and observed length) or scalar.
type Schema struct {
	Type       Kind
	Properties []Property
	// Items is nil for an array whose items are unconstrained.
	Items *Schema
	Count int
}

// Object builds an object schema.
func Object(props ...Property) *Schema {
	return &Schema{Type: KindObject, Properties: props}
}

// Array builds an array schema. items may be nil.
func Array(items *Schema, count int) *Schema {
	return &Schema{Type: KindArray, Items: items, Count: count}
}

// Scalar builds a scalar schema.
func Scalar(kind Kind) *Schema {
	return &Schema{Type: kind}
}

// Unknown is the schema of an unparseable or too-deep value.
func Unknown() *Schema {
	return &Schema{Type: KindUnknown}
}

// Property returns the named property schema, or nil.
func (s *Schema) Property(name string) *Schema {
	for _, p := range s.Properties {
		if p.Name == name {
			return p.Schema
		}
	}
	return nil
}

func (s *Schema) setProperty(name string, child *Schema) {
	for i, p := range s.Properties {
		if p.Name == name {
			s.Properties[i].Schema = child
			return
		}
	}
	s.Properties = append(s.Properties, Property{Name: name, Schema: child})
}

// MarshalJSON writes {type, properties?, items?, count?} keeping property
// order.
func (s *Schema) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"type":`)
	typ, _ := json.Marshal(string(s.Type))
	buf.Write(typ)

	switch s.Type {
	case KindObject:
		buf.WriteString(`,"properties":{`)
		for i, p := range s.Properties {
			if i > 0 {
				buf.WriteByte(',')
			}
			name, _ := json.Marshal(p.Name)
			buf.Write(name)
			buf.WriteByte(':')
			child, err := p.Schema.MarshalJSON()
			if err != nil {
				return nil, err
			}
			buf.Write(child)
		}
		buf.WriteByte('}')
	case KindArray:
		buf.WriteString(`,"items":`)
		if s.Items == nil {
			buf.WriteString("{}")
		} else {
			child, err := s.Items.MarshalJSON()
			if err != nil {
				return nil, err
			}
			buf.Write(child)
		}
		fmt.Fprintf(&buf, `,"count":%d`, s.Count)
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads the form written by MarshalJSON.
func (s *Schema) UnmarshalJSON(data []byte) error {
	var raw struct {
		Type       Kind            `json:"type"`
		Properties json.RawMessage `json:"properties"`
		Items      json.RawMessage `json:"items"`
		Count      int             `json:"count"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = Schema{Type: raw.Type, Count: raw.Count}

	if len(raw.Items) > 0 {
		var items Schema
		if err := json.Unmarshal(raw.Items, &items); err != nil {
			return fmt.Errorf("items: %w", err)
		}
		if items.Type != "" {
			s.Items = &items
		}
	}

	if len(raw.Properties) == 0 || bytes.Equal(raw.Properties, []byte("null")) {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw.Properties))
	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		return fmt.Errorf("properties must be an object")
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, _ := tok.(string)
		var child Schema
		if err := dec.Decode(&child); err != nil {
			return fmt.Errorf("property %q: %w", name, err)
		}
		s.Properties = append(s.Properties, Property{Name: name, Schema: &child})
	}
	return nil
}
