// Package discovery finds candidate endpoints on a target API.
package discovery

// Source records how an endpoint was found.
type Source string

// Discovery sources.
const (
	SourcePatternCatalog Source = "pattern-catalog"
	SourceExplicitList   Source = "explicit-list"
	SourceSpecDocument   Source = "spec-document"
	SourceDocumentation  Source = "documentation-scrape"
)

// Endpoint is a discovered API path. StatusCode is 0 for paths that were
// read from a document rather than probed.
type Endpoint struct {
	Path       string `json:"path"`
	Source     Source `json:"source"`
	StatusCode int    `json:"status_code,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// Paths returns the endpoint paths in order.
func Paths(endpoints []Endpoint) []string {
	out := make([]string, len(endpoints))
	for i, e := range endpoints {
		out[i] = e.Path
	}
	return out
}
