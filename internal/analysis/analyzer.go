package analysis

import (
	"context"
	"fmt"
	"net/http"

	"github.com/PentesterFlow/APIProbe/internal/classify"
	"github.com/PentesterFlow/APIProbe/internal/discovery"
	probehttp "github.com/PentesterFlow/APIProbe/internal/http"
	"github.com/PentesterFlow/APIProbe/internal/logger"
	"github.com/PentesterFlow/APIProbe/internal/metrics"
	"github.com/PentesterFlow/APIProbe/internal/probe"
	"github.com/PentesterFlow/APIProbe/internal/schema"
)

// Analyzer probes one endpoint: methods first, then per method a baseline
// request and the parameter sweep. Every probe for an endpoint runs on the
// calling goroutine, in order.
type Analyzer struct {
	client  probe.Prober
	methods *probe.MethodProber
	params  *probe.ParameterProfiler
	inferer *schema.Inferer
	catalog probe.Catalog
	logger  *logger.Logger
	metrics *metrics.Collector
}

// AnalyzerConfig wires an Analyzer.
type AnalyzerConfig struct {
	Client   probe.Prober
	Catalog  probe.Catalog
	MaxDepth int
	Logger   *logger.Logger
	Metrics  *metrics.Collector
}

// NewAnalyzer creates an Analyzer.
func NewAnalyzer(cfg AnalyzerConfig) *Analyzer {
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.New()
	}
	log := cfg.Logger.WithComponent("analysis")
	return &Analyzer{
		client:  cfg.Client,
		methods: probe.NewMethodProber(cfg.Client, log),
		params:  probe.NewParameterProfiler(cfg.Client, log, cfg.Metrics),
		inferer: schema.NewInferer(cfg.MaxDepth),
		catalog: cfg.Catalog,
		logger:  log,
		metrics: cfg.Metrics,
	}
}

// Analyze never fails; problems are recorded on the returned analysis with
// status "error".
func (a *Analyzer) Analyze(ctx context.Context, ep discovery.Endpoint) (result *EndpointAnalysis) {
	log := a.logger.WithEndpoint(ep.Path)
	log.Info("Analyzing endpoint")

	defer func() {
		if r := recover(); r != nil {
			log.Errorf("Analysis panicked: %v", r)
			result = Failed(ep, fmt.Errorf("analysis panicked: %v", r))
		}
		a.metrics.RecordEndpointAnalyzed(result.Status == StatusError)
	}()

	res := &EndpointAnalysis{
		Endpoint:            ep.Path,
		Source:              ep.Source,
		Parameters:          make(map[string]map[string]probe.ParameterProfile),
		ParameterValidation: make(map[string]map[string]probe.ValidationInfo),
		ResponseSchema:      make(map[string]*schema.Schema),
		ErrorResponses:      make(map[string]BaselineResponse),
		CRUDOperations:      classify.ClassifyCRUD(ep.Path),
		Status:              StatusSuccess,
	}

	mr := a.methods.Probe(ctx, ep.Path)
	res.Methods = mr.Methods
	res.MethodFallback = mr.Fallback

	for _, method := range res.Methods {
		if err := ctx.Err(); err != nil {
			return Failed(ep, fmt.Errorf("analysis interrupted: %w", err))
		}
		a.analyzeMethod(ctx, res, method)
	}

	if err := ctx.Err(); err != nil {
		return Failed(ep, fmt.Errorf("analysis interrupted: %w", err))
	}
	return res
}

func (a *Analyzer) analyzeMethod(ctx context.Context, res *EndpointAnalysis, method string) {
	baseline := a.client.Do(ctx, probehttp.Request{Method: method, Path: res.Endpoint})
	res.ErrorResponses[method] = baselineOf(baseline)

	profiles := make(map[string]probe.ParameterProfile, len(a.catalog))
	validation := make(map[string]probe.ValidationInfo, len(a.catalog))
	for _, pr := range a.params.ProfileAll(ctx, res.Endpoint, method, a.catalog) {
		profiles[pr.Name] = pr.Profile
		validation[pr.Name] = pr.Validation
	}
	res.Parameters[method] = profiles
	res.ParameterValidation[method] = validation

	if method == http.MethodGet && baseline.StatusCode == http.StatusOK {
		res.ResponseSchema[method] = a.inferer.Infer(baseline.Body)
	}
}

func baselineOf(resp *probehttp.Response) BaselineResponse {
	if resp.Failed() {
		msg := "request failed"
		if resp.Err != nil {
			msg = resp.Err.Error()
		}
		return BaselineResponse{Error: msg}
	}
	return BaselineResponse{StatusCode: resp.StatusCode, Body: resp.Parsed()}
}

// Failed builds the analysis recorded for an endpoint that could not be
// analyzed.
func Failed(ep discovery.Endpoint, err error) *EndpointAnalysis {
	return &EndpointAnalysis{
		Endpoint:       ep.Path,
		Source:         ep.Source,
		CRUDOperations: classify.ClassifyCRUD(ep.Path),
		Status:         StatusError,
		Error:          err.Error(),
	}
}
