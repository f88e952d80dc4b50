// Package output serializes analysis and OpenAPI documents.
package output

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Format is a serialization format.
type Format string

// Supported formats.
const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat accepts json, yaml or yml. Empty means JSON.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported output format %q (want json or yaml)", s)
	}
}

// FormatFromPath guesses the format from a file extension.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Writer defines the interface for output writers.
type Writer interface {
	// WriteDocument writes a complete document.
	WriteDocument(v any) error

	// WriteEvent writes one streamed event; a no-op unless streaming.
	WriteEvent(kind string, data any) error

	// Flush flushes any buffered output
	Flush() error

	// Close closes the writer
	Close() error
}

// Config holds output configuration.
type Config struct {
	Format Format
	Pretty bool
	Stream bool
}

// NewWriter creates a new output writer.
func NewWriter(w io.Writer, config Config) Writer {
	switch config.Format {
	case FormatYAML:
		return NewYAMLWriter(w, config.Stream)
	default:
		return NewJSONWriter(w, config.Pretty, config.Stream)
	}
}

// WriteFile writes v to path in the configured format, creating parent
// directories as needed.
func WriteFile(path string, v any, config Config) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}

	w := NewWriter(f, config)
	if err := w.WriteDocument(v); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return w.Close()
}
