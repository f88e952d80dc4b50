package server

import "encoding/json"

// GenerateRequest is the body of POST /api/generate.
type GenerateRequest struct {
	URL             string `json:"url"`
	CustomEndpoints string `json:"customEndpoints"`
	APIName         string `json:"apiName"`
	APIDescription  string `json:"apiDescription"`
}

// GenerateResponse is returned when generation succeeds.
type GenerateResponse struct {
	Success bool            `json:"success"`
	Swagger json.RawMessage `json:"swagger"`
	Message string          `json:"message"`
}

// ErrorResponse is the error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// HealthResponse is returned by GET /api/health.
type HealthResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Error codes.
const (
	CodeBadInput        = "bad_input"
	CodeUpstreamTimeout = "upstream_timeout"
	CodeInternal        = "internal_error"
)
