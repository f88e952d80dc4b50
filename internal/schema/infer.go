package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/PentesterFlow/APIProbe/internal/classify"
)

// DefaultMaxDepth bounds recursion into nested containers.
const DefaultMaxDepth = 8

// Inferer walks a JSON body token by token so object key order survives.
type Inferer struct {
	maxDepth int
}

// NewInferer creates an Inferer. maxDepth <= 0 uses DefaultMaxDepth.
func NewInferer(maxDepth int) *Inferer {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &Inferer{maxDepth: maxDepth}
}

// Infer returns the schema of body. Non-JSON bodies yield Unknown; it
// never fails.
func (in *Inferer) Infer(body []byte) *Schema {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return Unknown()
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	s, err := in.value(dec, 0)
	if err != nil {
		return Unknown()
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return Unknown()
	}
	return s
}

func (in *Inferer) value(dec *json.Decoder, depth int) (*Schema, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}

	if delim, ok := tok.(json.Delim); ok && depth > in.maxDepth {
		if err := skipContainer(dec, delim); err != nil {
			return nil, err
		}
		return Unknown(), nil
	}

	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			return in.object(dec, depth)
		case '[':
			return in.array(dec, depth)
		}
		return nil, fmt.Errorf("unexpected delimiter %v", t)
	case bool:
		return Scalar(KindBoolean), nil
	case json.Number:
		if strings.ContainsAny(t.String(), ".eE") {
			return Scalar(KindNumber), nil
		}
		return Scalar(KindInteger), nil
	case string:
		return Scalar(Kind(classify.StringKind(t))), nil
	case nil:
		return Scalar(KindNull), nil
	}
	return nil, fmt.Errorf("unexpected token %T", tok)
}

func (in *Inferer) object(dec *json.Decoder, depth int) (*Schema, error) {
	s := Object()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("object key is %T", tok)
		}
		child, err := in.value(dec, depth+1)
		if err != nil {
			return nil, err
		}
		s.setProperty(key, child)
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return s, nil
}

func (in *Inferer) array(dec *json.Decoder, depth int) (*Schema, error) {
	s := Array(nil, 0)
	for dec.More() {
		if s.Count == 0 {
			items, err := in.value(dec, depth+1)
			if err != nil {
				return nil, err
			}
			s.Items = items
		} else if err := skipValue(dec); err != nil {
			return nil, err
		}
		s.Count++
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return s, nil
}

func skipValue(dec *json.Decoder) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); ok {
		return skipContainer(dec, delim)
	}
	return nil
}

// skipContainer consumes tokens until the container opened by open closes.
func skipContainer(dec *json.Decoder, open json.Delim) error {
	if open != '{' && open != '[' {
		return fmt.Errorf("unexpected delimiter %v", open)
	}
	for nesting := 1; nesting > 0; {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		if d, ok := tok.(json.Delim); ok {
			switch d {
			case '{', '[':
				nesting++
			case '}', ']':
				nesting--
			}
		}
	}
	return nil
}
