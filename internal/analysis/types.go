// Package analysis runs the per-endpoint probes and folds the results into
// one AnalysisDocument.
package analysis

import (
	"time"

	"github.com/PentesterFlow/APIProbe/internal/classify"
	"github.com/PentesterFlow/APIProbe/internal/discovery"
	"github.com/PentesterFlow/APIProbe/internal/probe"
	"github.com/PentesterFlow/APIProbe/internal/schema"
)

// Generator identity written to every document.
const (
	GeneratorName    = "APIProbe"
	GeneratorVersion = "1.0.0"
)

// Discovery modes.
const (
	ModeCatalog  = "catalog"
	ModeExplicit = "explicit"
)

// Status of one endpoint analysis.
type Status string

// Endpoint analysis statuses.
const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// BaselineResponse is the parameter-less probe of one method.
type BaselineResponse struct {
	StatusCode int    `json:"status_code,omitempty"`
	Body       any    `json:"body,omitempty"`
	Error      string `json:"error,omitempty"`
}

// EndpointAnalysis is everything learned about one path. Per-method maps
// are keyed by HTTP method, then parameter name.
type EndpointAnalysis struct {
	Endpoint            string                                       `json:"endpoint"`
	Source              discovery.Source                             `json:"source,omitempty"`
	Methods             []string                                     `json:"methods"`
	MethodFallback      bool                                         `json:"method_fallback,omitempty"`
	Parameters          map[string]map[string]probe.ParameterProfile `json:"parameters"`
	ParameterValidation map[string]map[string]probe.ValidationInfo   `json:"parameter_validation"`
	ResponseSchema      map[string]*schema.Schema                    `json:"response_schema"`
	ErrorResponses      map[string]BaselineResponse                  `json:"error_responses"`
	CRUDOperations      classify.CRUD                                `json:"crud_operations"`
	Status              Status                                       `json:"status"`
	Error               string                                       `json:"error,omitempty"`
}

// Metadata describes the run that produced a document.
type Metadata struct {
	Generator             string    `json:"generator"`
	Version               string    `json:"version"`
	Timestamp             time.Time `json:"timestamp"`
	RunID                 string    `json:"run_id"`
	BaseURL               string    `json:"base_url"`
	Mode                  string    `json:"mode"`
	CustomEndpoints       []string  `json:"custom_endpoints,omitempty"`
	TotalPatternsTested   int       `json:"total_patterns_tested"`
	TotalParametersTested int       `json:"total_parameters_tested"`
	ParameterCatalog      string    `json:"parameter_catalog"`
}

// CRUDCounts counts endpoints per CRUD capability.
type CRUDCounts struct {
	Create int `json:"create"`
	Read   int `json:"read"`
	Update int `json:"update"`
	Delete int `json:"delete"`
}

// Summary holds run-wide statistics.
type Summary struct {
	TotalEndpoints     int            `json:"total_endpoints"`
	SuccessfulAnalyses int            `json:"successful_analyses"`
	CRUDOperations     CRUDCounts     `json:"crud_operations"`
	TotalParameters    int            `json:"total_parameters"`
	ParameterTypes     map[string]int `json:"parameter_types"`
	ValidationPatterns []string       `json:"validation_patterns"`
	DiscoveryRate      string         `json:"discovery_rate"`
}

// Document is the full analysis output. ParameterVariations is set only in
// catalog mode, where it is written even when the catalog is empty.
type Document struct {
	Metadata            Metadata                     `json:"metadata"`
	Summary             Summary                      `json:"summary"`
	Endpoints           map[string]*EndpointAnalysis `json:"endpoints"`
	ParameterVariations *probe.Catalog               `json:"parameter_variations,omitempty"`
}
