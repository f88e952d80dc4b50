package http

import (
	"bytes"
	"encoding/json"
	"net/url"
	"time"
)

// Request describes one probe. Bodies are never sent.
type Request struct {
	Method string     `json:"method"`
	Path   string     `json:"path"`
	Query  url.Values `json:"query,omitempty"`
}

// Response is the outcome of one probe. StatusCode is 0 when the request
// failed, in which case Err says why.
type Response struct {
	Request     Request       `json:"request"`
	URL         string        `json:"url"`
	StatusCode  int           `json:"status_code"`
	ContentType string        `json:"content_type,omitempty"`
	Body        []byte        `json:"-"`
	Err         error         `json:"-"`
	Duration    time.Duration `json:"duration"`
}

// Failed reports whether no HTTP response was received.
func (r *Response) Failed() bool {
	return r.StatusCode == 0
}

// IsJSON reports whether the body is a well-formed JSON document.
func (r *Response) IsJSON() bool {
	body := bytes.TrimSpace(r.Body)
	return len(body) > 0 && json.Valid(body)
}

// JSON decodes the body. Numbers are kept as json.Number.
func (r *Response) JSON() (any, error) {
	dec := json.NewDecoder(bytes.NewReader(r.Body))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// Parsed returns the JSON body when it parses, else the raw text.
func (r *Response) Parsed() any {
	if v, err := r.JSON(); err == nil {
		return v
	}
	return string(r.Body)
}

// MessageField returns the first present string-ish field among keys in a
// JSON object body.
func (r *Response) MessageField(keys ...string) (string, bool) {
	v, err := r.JSON()
	if err != nil {
		return "", false
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return "", false
	}
	for _, k := range keys {
		val, present := obj[k]
		if !present || val == nil {
			continue
		}
		switch s := val.(type) {
		case string:
			if s == "" {
				continue
			}
			return s, true
		default:
			b, err := json.Marshal(s)
			if err != nil {
				continue
			}
			return string(b), true
		}
	}
	return "", false
}
