package probe

import (
	"context"
	"net/http"

	"github.com/PentesterFlow/APIProbe/internal/classify"
	probehttp "github.com/PentesterFlow/APIProbe/internal/http"
	"github.com/PentesterFlow/APIProbe/internal/logger"
)

// ProbeMethods is the non-destructive verb catalog, in probe order.
var ProbeMethods = []string{http.MethodGet, http.MethodPost}

// MethodProber detects supported HTTP methods.
type MethodProber struct {
	client Prober
	logger *logger.Logger
}

// NewMethodProber creates a MethodProber.
func NewMethodProber(client Prober, log *logger.Logger) *MethodProber {
	if log == nil {
		log = logger.Nop()
	}
	return &MethodProber{client: client, logger: log}
}

// Probe sends one body-less request per verb. When no verb is accepted the
// result falls back to GET and is marked as such.
func (m *MethodProber) Probe(ctx context.Context, path string) MethodResult {
	result := MethodResult{Statuses: make(map[string]int, len(ProbeMethods))}

	for _, method := range ProbeMethods {
		if ctx.Err() != nil {
			break
		}
		resp := m.client.Do(ctx, probehttp.Request{Method: method, Path: path})
		result.Statuses[method] = resp.StatusCode
		if classify.Exists(resp.StatusCode) {
			result.Methods = append(result.Methods, method)
			m.logger.Debugf("%s %s supported - %s", method, path, classify.Reason(resp.StatusCode))
		} else {
			m.logger.Debugf("%s %s not supported - %s", method, path, classify.Reason(resp.StatusCode))
		}
	}

	if len(result.Methods) == 0 {
		result.Methods = []string{http.MethodGet}
		result.Fallback = true
		m.logger.Warnf("No methods discovered for %s, defaulting to GET", path)
	}
	return result
}
