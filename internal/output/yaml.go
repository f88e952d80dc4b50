package output

import (
	"bytes"
	"io"
	"sync"

	"gopkg.in/yaml.v3"
)

// YAMLWriter writes output in YAML format. Values go through their JSON
// encoding first so json tags and custom marshalers decide field names
// and order.
type YAMLWriter struct {
	mu     sync.Mutex
	writer io.Writer
	stream bool
	closed bool
}

// NewYAMLWriter creates a new YAML writer.
func NewYAMLWriter(w io.Writer, stream bool) *YAMLWriter {
	return &YAMLWriter{writer: w, stream: stream}
}

// WriteDocument writes v as one YAML document.
func (y *YAMLWriter) WriteDocument(v any) error {
	y.mu.Lock()
	defer y.mu.Unlock()

	if y.closed {
		return nil
	}
	data, err := MarshalYAML(v)
	if err != nil {
		return err
	}
	_, err = y.writer.Write(data)
	return err
}

// WriteEvent writes one event as a separate "---" document in streaming
// mode.
func (y *YAMLWriter) WriteEvent(kind string, data any) error {
	if !y.stream {
		return nil
	}

	y.mu.Lock()
	defer y.mu.Unlock()

	if y.closed {
		return nil
	}
	out, err := MarshalYAML(StreamEvent{Type: kind, Data: data})
	if err != nil {
		return err
	}
	if _, err := io.WriteString(y.writer, "---\n"); err != nil {
		return err
	}
	_, err = y.writer.Write(out)
	return err
}

// Flush flushes the writer.
func (y *YAMLWriter) Flush() error {
	y.mu.Lock()
	defer y.mu.Unlock()

	if flusher, ok := y.writer.(interface{ Flush() error }); ok {
		return flusher.Flush()
	}
	return nil
}

// Close closes the writer.
func (y *YAMLWriter) Close() error {
	y.mu.Lock()
	defer y.mu.Unlock()

	if y.closed {
		return nil
	}
	y.closed = true

	if closer, ok := y.writer.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// MarshalYAML encodes v as block-style YAML with two-space indentation.
func MarshalYAML(v any) ([]byte, error) {
	data, err := MarshalJSON(v, false)
	if err != nil {
		return nil, err
	}

	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, err
	}
	blockStyle(&node)

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&node); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// blockStyle drops the flow and quoting styles a JSON source leaves on
// every node. The encoder re-quotes strings that would otherwise change
// type.
func blockStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		blockStyle(c)
	}
}
