// Package prober reverse-engineers the surface of an HTTP API: it
// discovers endpoints, profiles their methods, parameters and response
// shapes, and assembles the result into an analysis document.
package prober

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/google/uuid"

	"github.com/PentesterFlow/APIProbe/internal/analysis"
	"github.com/PentesterFlow/APIProbe/internal/discovery"
	"github.com/PentesterFlow/APIProbe/internal/errors"
	probehttp "github.com/PentesterFlow/APIProbe/internal/http"
	"github.com/PentesterFlow/APIProbe/internal/logger"
	"github.com/PentesterFlow/APIProbe/internal/metrics"
	"github.com/PentesterFlow/APIProbe/internal/openapi"
	"github.com/PentesterFlow/APIProbe/internal/output"
	"github.com/PentesterFlow/APIProbe/internal/probe"
	"github.com/PentesterFlow/APIProbe/internal/progress"
	"github.com/PentesterFlow/APIProbe/internal/ratelimit"
	"github.com/PentesterFlow/APIProbe/internal/scope"
	"github.com/PentesterFlow/APIProbe/internal/state"
)

const statusInterval = 200 * time.Millisecond

// Prober is the main analysis orchestrator.
type Prober struct {
	config    *Config
	logger    *logger.Logger
	log       *logger.Logger
	metrics   *metrics.Collector
	transport http.RoundTripper
	progress  *progress.Display
	streamTo  io.Writer
	stream    output.Writer
	store     state.Store
	state     *state.Manager

	limiter atomic.Pointer[ratelimit.Limiter]
	running atomic.Bool
	runID   atomic.Value
	mode    atomic.Value
}

// New creates a new prober with the given options.
func New(opts ...Option) (*Prober, error) {
	p := &Prober{
		config: DefaultConfig(),
	}

	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if err := p.config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if p.logger == nil {
		logLevel := logger.InfoLevel
		if p.config.Debug {
			logLevel = logger.DebugLevel
		} else if !p.config.Verbose {
			logLevel = logger.WarnLevel
		}
		p.logger = logger.New(logger.Config{
			Level:  logLevel,
			Pretty: true,
		})
	}
	p.log = p.logger.WithComponent("prober")
	p.metrics = metrics.New()

	if p.store == nil && p.config.State.File != "" {
		store, err := state.OpenStore(p.config.State.File)
		if err != nil {
			return nil, fmt.Errorf("failed to open state file: %w", err)
		}
		p.store = store
	}
	if p.store != nil {
		p.state = state.NewManager(p.store)
	}

	if p.streamTo != nil {
		p.stream = output.NewWriter(p.streamTo, output.Config{
			Format: output.FormatJSON,
			Stream: true,
		})
	}

	return p, nil
}

// Config returns a copy of the active configuration.
func (p *Prober) Config() *Config {
	return p.config.Clone()
}

// Run discovers and analyzes the target. When ctx is cancelled mid-run
// the document built so far is returned together with the error.
func (p *Prober) Run(ctx context.Context) (*Document, error) {
	if !p.running.CompareAndSwap(false, true) {
		return nil, fmt.Errorf("prober is already running")
	}
	defer p.running.Store(false)

	cfg := p.config
	if err := probehttp.ValidateBaseURL(cfg.Target); err != nil {
		return nil, err
	}

	paths, err := p.explicitPaths()
	if err != nil {
		return nil, err
	}
	catalog, err := cfg.Catalog()
	if err != nil {
		return nil, errors.NewInputError("%v", err)
	}
	checker, err := scope.NewChecker(cfg.Scope)
	if err != nil {
		return nil, errors.NewInputError("invalid scope: %v", err)
	}

	client, err := p.newClient()
	if err != nil {
		return nil, err
	}
	defer client.Close()

	mode := analysis.ModeCatalog
	if len(paths) > 0 {
		mode = analysis.ModeExplicit
	}
	runID := uuid.NewString()
	p.runID.Store(runID)
	p.mode.Store(mode)

	log := p.log.WithField("run_id", runID)
	log.Event(logger.InfoLevel).
		Str("target", cfg.Target).
		Str("mode", mode).
		Int("concurrency", cfg.Concurrency).
		Msg("Starting analysis")

	if p.state != nil {
		p.state.Start(runID, cfg.Target, mode)
	}
	if p.progress != nil {
		p.progress.Start(cfg.Target)
	}
	stopStatus := p.startStatus()

	start := time.Now()

	// Discovery
	if p.progress != nil {
		p.progress.SetPhase(progress.PhaseDiscovery, 0)
	}
	disc := discovery.New(client,
		discovery.WithLogger(p.logger),
		discovery.WithMetrics(p.metrics),
		discovery.WithScope(checker),
	)
	var endpoints []discovery.Endpoint
	catalogSize := 0
	if mode == analysis.ModeExplicit {
		endpoints = disc.DiscoverExplicit(ctx, paths)
	} else {
		endpoints = disc.DiscoverCatalog(ctx)
		catalogSize = disc.CatalogSize()
	}
	p.emit("discovery", endpoints)
	log.Infof("Discovered %d endpoints", len(endpoints))

	meta := analysis.Metadata{
		Generator:        analysis.GeneratorName,
		Version:          analysis.GeneratorVersion,
		Timestamp:        start.UTC(),
		RunID:            runID,
		BaseURL:          client.BaseURL(),
		Mode:             mode,
		ParameterCatalog: cfg.ParameterCatalog,
	}
	if mode == analysis.ModeExplicit {
		meta.CustomEndpoints = paths
	} else {
		meta.TotalPatternsTested = catalogSize
	}
	for _, def := range catalog {
		meta.TotalParametersTested += len(def.Values())
	}
	agg := analysis.NewAggregator(meta, catalog)

	var runErr error
	if len(endpoints) == 0 && ctx.Err() == nil {
		runErr = errors.NewInputError("no endpoints discovered on %s", cfg.Target)
	} else {
		p.analyze(ctx, client, catalog, endpoints, agg)
	}
	if ctx.Err() != nil {
		runErr = fmt.Errorf("analysis cancelled after %d of %d endpoints: %w", agg.Len(), len(endpoints), ctx.Err())
	}

	stopStatus()
	if p.progress != nil {
		p.progress.Stop()
	}

	doc := agg.Document(len(endpoints), catalogSize)
	p.emit("summary", doc.Summary)
	if p.stream != nil {
		p.stream.Flush()
	}

	log.Event(logger.InfoLevel).
		Int("endpoints", doc.Summary.TotalEndpoints).
		Int("successful", doc.Summary.SuccessfulAnalyses).
		Dur("elapsed", time.Since(start)).
		Msg("Analysis finished")
	stats := p.metrics.Snapshot().Summary()
	if lim := p.limiter.Load(); lim != nil {
		ls := lim.Stats()
		stats["rate_limit_waits"] = ls.Waits
		stats["rate_limit_waited_ms"] = ls.TotalWaited.Milliseconds()
	}
	p.log.StatsEvent(stats)

	if p.state != nil {
		if _, err := p.state.Finish(doc, doc.Summary.DiscoveryRate, runErr); err != nil {
			log.WithError(err).Warn("Failed to archive run")
		}
	}

	return doc, runErr
}

func (p *Prober) newClient() (*probehttp.Client, error) {
	cfg := p.config
	hc := probehttp.DefaultConfig()
	hc.BaseURL = cfg.Target
	hc.Timeout = cfg.Timeout
	hc.Headers = cfg.Headers
	hc.SkipTLSVerify = cfg.SkipTLSVerify
	if cfg.UserAgent != "" {
		hc.UserAgent = cfg.UserAgent
	}

	client, err := probehttp.NewClient(hc)
	if err != nil {
		return nil, err
	}
	limiter := ratelimit.NewFromDelay(cfg.Delay)
	p.limiter.Store(limiter)
	client.SetLimiter(limiter)
	client.SetMetrics(p.metrics)
	client.SetLogger(p.logger)
	if p.transport != nil {
		client.SetTransport(p.transport)
	}
	return client, nil
}

// explicitPaths merges configured endpoints with the endpoints file.
func (p *Prober) explicitPaths() ([]string, error) {
	paths := append([]string(nil), p.config.Endpoints...)
	if p.config.EndpointsFile != "" {
		fromFile, err := discovery.LoadEndpointsFile(p.config.EndpointsFile)
		if err != nil {
			return nil, err
		}
		paths = append(paths, fromFile...)
	}
	return paths, nil
}

// analyze runs the endpoint analyses on a bounded worker pool.
func (p *Prober) analyze(ctx context.Context, client *probehttp.Client, catalog probe.Catalog, endpoints []discovery.Endpoint, agg *analysis.Aggregator) {
	if p.progress != nil {
		p.progress.SetPhase(progress.PhaseAnalysis, len(endpoints))
	}

	analyzer := analysis.NewAnalyzer(analysis.AnalyzerConfig{
		Client:   client,
		Catalog:  catalog,
		MaxDepth: p.config.MaxSchemaDepth,
		Logger:   p.logger,
		Metrics:  p.metrics,
	})

	jobs := make(chan discovery.Endpoint)
	var wg sync.WaitGroup

	workers := p.config.Concurrency
	if workers > len(endpoints) {
		workers = len(endpoints)
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.metrics.WorkerStarted()
			defer p.metrics.WorkerDone()

			for ep := range jobs {
				res := analyzer.Analyze(ctx, ep)
				if ctx.Err() != nil {
					// Interrupted analyses are left out of the partial document.
					continue
				}
				agg.Add(res)
				p.emit("endpoint", res)
			}
		}()
	}

feed:
	for _, ep := range endpoints {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- ep:
		}
	}
	close(jobs)
	wg.Wait()
}

func (p *Prober) emit(kind string, data any) {
	if p.stream == nil {
		return
	}
	if err := p.stream.WriteEvent(kind, data); err != nil {
		p.log.WithError(err).Debug("Failed to stream event")
	}
}

// startStatus mirrors the metrics into the progress line and the run
// record until the returned func is called.
func (p *Prober) startStatus() func() {
	if p.progress == nil && p.state == nil {
		return func() {}
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(statusInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				p.publishStatus()
				return
			case <-ticker.C:
				p.publishStatus()
			}
		}
	}()

	return func() {
		close(done)
		wg.Wait()
	}
}

func (p *Prober) publishStatus() {
	snap := p.metrics.Snapshot()
	if p.progress != nil {
		p.progress.Update(
			int(snap.EndpointsAnalyzed),
			int(snap.EndpointsDiscovered),
			snap.RequestsTotal,
			snap.ErrorsTotal,
		)
	}
	if p.state != nil {
		p.state.Update(func(s *state.RunStats) {
			s.EndpointsDiscovered = int(snap.EndpointsDiscovered)
			s.EndpointsAnalyzed = int(snap.EndpointsAnalyzed)
			s.EndpointsFailed = int(snap.EndpointsFailed)
			s.ParametersProfiled = int(snap.ParametersProfiled)
			s.Requests = snap.RequestsTotal
		})
	}
}

// Stats returns current statistics.
func (p *Prober) Stats() Stats {
	snap := p.metrics.Snapshot()
	s := Stats{
		Requests:            snap.RequestsTotal,
		Errors:              snap.ErrorsTotal,
		ErrorRate:           snap.ErrorRate(),
		EndpointsDiscovered: snap.EndpointsDiscovered,
		EndpointsAnalyzed:   snap.EndpointsAnalyzed,
		EndpointsFailed:     snap.EndpointsFailed,
		ParametersProfiled:  snap.ParametersProfiled,
	}
	if lim := p.limiter.Load(); lim != nil {
		ls := lim.Stats()
		s.RateLimitWaits = ls.Waits
		s.RateLimitWaited = ls.TotalWaited
	}
	if id, ok := p.runID.Load().(string); ok {
		s.RunID = id
	}
	if mode, ok := p.mode.Load().(string); ok {
		s.Mode = mode
	}
	return s
}

// IsRunning returns whether a run is in progress.
func (p *Prober) IsRunning() bool {
	return p.running.Load()
}

// Swagger converts an analysis document into an OpenAPI document.
func (p *Prober) Swagger(doc *Document) *openapi3.T {
	return openapi.NewEmitter(openapi.Options{
		Title:       p.config.Output.Title,
		Description: p.config.Output.Description,
	}).Emit(doc)
}

// Write saves the analysis document and, when enabled, the OpenAPI
// document to the configured paths.
func (p *Prober) Write(doc *Document) error {
	out := p.config.Output
	if out.Path != "" {
		if err := output.WriteFile(out.Path, doc, output.Config{Format: output.FormatJSON, Pretty: true}); err != nil {
			return fmt.Errorf("failed to write analysis: %w", err)
		}
		p.log.Infof("Analysis written to %s", out.Path)
	}

	if out.Swagger {
		format, err := output.ParseFormat(out.SwaggerFormat)
		if err != nil {
			return err
		}
		if err := output.WriteFile(out.SwaggerPath, p.Swagger(doc), output.Config{Format: format, Pretty: true}); err != nil {
			return fmt.Errorf("failed to write OpenAPI document: %w", err)
		}
		p.log.Infof("OpenAPI document written to %s", out.SwaggerPath)
	}
	return nil
}

// Runs lists archived runs, newest first.
func (p *Prober) Runs() ([]state.RunRecord, error) {
	if p.state == nil {
		return nil, fmt.Errorf("no state file configured")
	}
	return p.state.Runs()
}

// Close releases the run archive.
func (p *Prober) Close() error {
	if p.stream != nil {
		p.stream.Flush()
	}
	if p.state != nil {
		return p.state.Close()
	}
	return nil
}
