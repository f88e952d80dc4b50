package state

import (
	"encoding/json"
	"time"
)

// RunStats counts what one run found.
type RunStats struct {
	EndpointsDiscovered int   `json:"endpoints_discovered"`
	EndpointsAnalyzed   int   `json:"endpoints_analyzed"`
	EndpointsFailed     int   `json:"endpoints_failed"`
	ParametersProfiled  int   `json:"parameters_profiled"`
	Requests            int64 `json:"requests"`
}

// RunRecord is one archived analysis run.
type RunRecord struct {
	ID            string          `json:"id"`
	Target        string          `json:"target"`
	Mode          string          `json:"mode"`
	StartedAt     time.Time       `json:"started_at"`
	FinishedAt    time.Time       `json:"finished_at"`
	Stats         RunStats        `json:"stats"`
	DiscoveryRate string          `json:"discovery_rate,omitempty"`
	Error         string          `json:"error,omitempty"`
	Document      json.RawMessage `json:"document,omitempty"`
}

// Duration returns how long the run took.
func (r *RunRecord) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Summary returns a copy without the archived document.
func (r *RunRecord) Summary() RunRecord {
	s := *r
	s.Document = nil
	return s
}
