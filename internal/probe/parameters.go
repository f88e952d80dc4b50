package probe

import (
	"context"
	"net/url"
	"strings"

	"github.com/PentesterFlow/APIProbe/internal/classify"
	probehttp "github.com/PentesterFlow/APIProbe/internal/http"
	"github.com/PentesterFlow/APIProbe/internal/logger"
	"github.com/PentesterFlow/APIProbe/internal/metrics"
)

// messageFields are checked in order for a validation message.
var messageFields = []string{"error", "message", "detail", "description"}

// ParameterProfiler sweeps a parameter catalog over one endpoint method.
type ParameterProfiler struct {
	client  Prober
	logger  *logger.Logger
	metrics *metrics.Collector
}

// NewParameterProfiler creates a ParameterProfiler.
func NewParameterProfiler(client Prober, log *logger.Logger, m *metrics.Collector) *ParameterProfiler {
	if log == nil {
		log = logger.Nop()
	}
	if m == nil {
		m = metrics.New()
	}
	return &ParameterProfiler{client: client, logger: log, metrics: m}
}

// ProfileAll profiles every catalog parameter in declared order. Probes run
// sequentially; a cancelled context ends the sweep early.
func (p *ParameterProfiler) ProfileAll(ctx context.Context, path, method string, catalog Catalog) []ParameterResult {
	results := make([]ParameterResult, 0, len(catalog))
	for _, def := range catalog {
		if ctx.Err() != nil {
			break
		}
		results = append(results, p.Profile(ctx, path, method, def))
	}
	return results
}

// Profile probes the default, each test value, then the error value, one
// request each.
func (p *ParameterProfiler) Profile(ctx context.Context, path, method string, def ParameterDefinition) ParameterResult {
	info := ValidationInfo{
		AcceptedValues:     []string{},
		RejectedValues:     []string{},
		ValidationPatterns: []string{},
	}

	values := def.Values()
	errorIndex := len(values) - 1
	for i, value := range values {
		if ctx.Err() != nil {
			break
		}
		resp := p.client.Do(ctx, probehttp.Request{
			Method: method,
			Path:   path,
			Query:  url.Values{def.Name: {value}},
		})

		switch classify.BucketFor(resp.StatusCode) {
		case classify.Accepted:
			info.AcceptedValues = appendUnique(info.AcceptedValues, value)
		case classify.Rejected:
			info.RejectedValues = appendUnique(info.RejectedValues, value)
			if i == errorIndex {
				if msg, ok := validationMessage(resp, def.Name); ok {
					info.ValidationPatterns = appendUnique(info.ValidationPatterns, msg)
				}
			}
		}
	}

	info.Required = classify.Required(len(info.AcceptedValues), len(info.RejectedValues))
	info.Type = classify.ParamType(info.AcceptedValues)
	p.metrics.RecordParameterProfiled()
	p.logger.Debugf("%s %s ?%s: %d accepted, %d rejected, type %s",
		method, path, def.Name, len(info.AcceptedValues), len(info.RejectedValues), info.Type)

	return ParameterResult{
		Name: def.Name,
		Profile: ParameterProfile{
			Type:     info.Type,
			Required: info.Required,
			Default:  def.Default,
			Accepted: len(info.AcceptedValues) > 0,
		},
		Validation: info,
	}
}

// validationMessage returns the first message field that names the
// parameter.
func validationMessage(resp *probehttp.Response, name string) (string, bool) {
	lname := strings.ToLower(name)
	for _, field := range messageFields {
		msg, ok := resp.MessageField(field)
		if ok && strings.Contains(strings.ToLower(msg), lname) {
			return msg, true
		}
	}
	return "", false
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}
