package prober

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/PentesterFlow/APIProbe/internal/analysis"
	"github.com/PentesterFlow/APIProbe/internal/discovery"
	"github.com/PentesterFlow/APIProbe/internal/probe"
	"github.com/PentesterFlow/APIProbe/internal/schema"
)

// Re-exported result types.
type (
	Document            = analysis.Document
	Metadata            = analysis.Metadata
	Summary             = analysis.Summary
	EndpointAnalysis    = analysis.EndpointAnalysis
	Endpoint            = discovery.Endpoint
	ParameterDefinition = probe.ParameterDefinition
	ParameterCatalog    = probe.Catalog
	ParameterProfile    = probe.ParameterProfile
	ValidationInfo      = probe.ValidationInfo
	Schema              = schema.Schema
)

// Stats is a point-in-time view of a run.
type Stats struct {
	RunID               string  `json:"run_id"`
	Mode                string  `json:"mode"`
	Requests            int64   `json:"requests"`
	Errors              int64   `json:"errors"`
	ErrorRate           float64 `json:"error_rate"`
	EndpointsDiscovered int64   `json:"endpoints_discovered"`
	EndpointsAnalyzed   int64   `json:"endpoints_analyzed"`
	EndpointsFailed     int64   `json:"endpoints_failed"`
	ParametersProfiled  int64   `json:"parameters_profiled"`

	RateLimitWaits  int64         `json:"rate_limit_waits"`
	RateLimitWaited time.Duration `json:"rate_limit_waited"`
}

// ParseDocument decodes an analysis document.
func ParseDocument(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse analysis document: %w", err)
	}
	if doc.Endpoints == nil {
		return nil, fmt.Errorf("failed to parse analysis document: no endpoints")
	}
	return &doc, nil
}

// LoadDocument reads an analysis document from path.
func LoadDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read analysis document: %w", err)
	}
	return ParseDocument(data)
}
