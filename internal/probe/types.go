// Package probe determines which methods and query parameters an endpoint
// accepts by sending reduced, body-less probes.
package probe

import (
	"context"

	probehttp "github.com/PentesterFlow/APIProbe/internal/http"
)

// Prober sends a single probe and never fails outright.
type Prober interface {
	Do(ctx context.Context, req probehttp.Request) *probehttp.Response
}

// ParameterProfile is the derived verdict for one parameter.
type ParameterProfile struct {
	Type     string `json:"type" yaml:"type"`
	Required bool   `json:"required" yaml:"required"`
	Default  string `json:"default" yaml:"default"`
	Accepted bool   `json:"accepted" yaml:"accepted"`
}

// ValidationInfo is the raw evidence behind a ParameterProfile.
type ValidationInfo struct {
	AcceptedValues     []string `json:"accepted_values" yaml:"accepted_values"`
	RejectedValues     []string `json:"rejected_values" yaml:"rejected_values"`
	ValidationPatterns []string `json:"validation_patterns" yaml:"validation_patterns"`
	Required           bool     `json:"required" yaml:"required"`
	Type               string   `json:"type" yaml:"type"`
}

// ParameterResult pairs a parameter's profile with its evidence.
type ParameterResult struct {
	Name       string
	Profile    ParameterProfile
	Validation ValidationInfo
}

// MethodResult lists the methods an endpoint answered to.
type MethodResult struct {
	Methods  []string
	Fallback bool
	Statuses map[string]int
}
