package discovery

import (
	"bufio"
	"context"
	"os"
	"strings"

	"github.com/PentesterFlow/APIProbe/internal/classify"
	"github.com/PentesterFlow/APIProbe/internal/errors"
	probehttp "github.com/PentesterFlow/APIProbe/internal/http"
	"github.com/PentesterFlow/APIProbe/internal/logger"
	"github.com/PentesterFlow/APIProbe/internal/metrics"
	"github.com/PentesterFlow/APIProbe/internal/scope"
)

const (
	reasonSpecDocument  = "Listed in API description document"
	reasonDocumentation = "Referenced in API documentation"
)

// Prober sends a single probe and never fails outright.
type Prober interface {
	Do(ctx context.Context, req probehttp.Request) *probehttp.Response
}

// Discoverer finds endpoints either from a caller-supplied list or by
// probing the path catalog and reading published documents.
type Discoverer struct {
	client    Prober
	logger    *logger.Logger
	metrics   *metrics.Collector
	scope     *scope.Checker
	catalog   []string
	specPaths []string
	docPaths  []string
}

// Option configures a Discoverer.
type Option func(*Discoverer)

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(d *Discoverer) { d.logger = l.WithComponent("discovery") }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Collector) Option {
	return func(d *Discoverer) { d.metrics = m }
}

// WithScope filters discovered paths.
func WithScope(c *scope.Checker) Option {
	return func(d *Discoverer) { d.scope = c }
}

// WithCatalog replaces the path catalog.
func WithCatalog(paths []string) Option {
	return func(d *Discoverer) { d.catalog = paths }
}

// New creates a Discoverer.
func New(client Prober, opts ...Option) *Discoverer {
	d := &Discoverer{
		client:    client,
		logger:    logger.Nop(),
		metrics:   metrics.New(),
		catalog:   PathCatalog,
		specPaths: SpecDocumentPaths,
		docPaths:  DocumentationPaths,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// CatalogSize is the denominator of the discovery rate.
func (d *Discoverer) CatalogSize() int {
	return len(d.catalog)
}

// NormalizePath trims raw and makes it start with "/". Blank lines and
// "#" comments report false.
func NormalizePath(raw string) (string, bool) {
	p := strings.TrimSpace(raw)
	if p == "" || strings.HasPrefix(p, "#") {
		return "", false
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p, true
}

// LoadEndpointsFile reads one path per line.
func LoadEndpointsFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.NewInputError("cannot read endpoints file %q: %v", path, err)
	}
	defer f.Close()

	var out []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if p, ok := NormalizePath(scanner.Text()); ok {
			out = append(out, p)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.NewInputError("cannot read endpoints file %q: %v", path, err)
	}
	return out, nil
}

// DiscoverExplicit confirms each caller-supplied path with one GET and
// returns the confirmed ones in input order.
func (d *Discoverer) DiscoverExplicit(ctx context.Context, paths []string) []Endpoint {
	seen := newPathSet(len(paths))
	var found []Endpoint

	for _, raw := range paths {
		if ctx.Err() != nil {
			d.logger.Warn("Discovery cancelled")
			break
		}
		p, ok := NormalizePath(raw)
		if !ok || !seen.Add(p) {
			continue
		}
		if !d.scope.Allows(p, true) {
			d.logger.Debugf("Skipping out-of-scope path %s", p)
			continue
		}

		resp := d.client.Do(ctx, probehttp.Request{Method: "GET", Path: p})
		reason := classify.Reason(resp.StatusCode)
		if !classify.Exists(resp.StatusCode) {
			d.logger.Infof("Not accessible: %s - %s", p, reason)
			continue
		}

		found = append(found, d.record(Endpoint{
			Path:       p,
			Source:     SourceExplicitList,
			StatusCode: resp.StatusCode,
			Reason:     reason,
		}))
	}

	d.logger.Infof("Explicit discovery finished: %d unique paths, %d confirmed", seen.Len(), len(found))
	return found
}

// DiscoverCatalog probes the path catalog, then reads the first spec
// document (the first parseable or JSON one) and every documentation page. Results are unique by path;
// the first source to report a path wins.
func (d *Discoverer) DiscoverCatalog(ctx context.Context) []Endpoint {
	seen := newPathSet(len(d.catalog) * 2)
	probed := make(map[string]struct{}, len(d.catalog))
	var found []Endpoint

	add := func(e Endpoint) {
		if !d.scope.Allows(e.Path, false) || !seen.Add(e.Path) {
			return
		}
		found = append(found, d.record(e))
	}

	for _, pattern := range d.catalog {
		if ctx.Err() != nil {
			d.logger.Warn("Discovery cancelled")
			return found
		}
		if _, ok := probed[pattern]; ok {
			continue
		}
		probed[pattern] = struct{}{}
		if !d.scope.Allows(pattern, false) {
			continue
		}

		resp := d.client.Do(ctx, probehttp.Request{Method: "GET", Path: pattern})
		if classify.Exists(resp.StatusCode) {
			add(Endpoint{
				Path:       pattern,
				Source:     SourcePatternCatalog,
				StatusCode: resp.StatusCode,
				Reason:     classify.Reason(resp.StatusCode),
			})
		}
	}

	for _, p := range d.discoverFromSpecDocument(ctx) {
		add(Endpoint{Path: p, Source: SourceSpecDocument, Reason: reasonSpecDocument})
	}

	for _, p := range d.discoverFromDocumentation(ctx) {
		add(Endpoint{Path: p, Source: SourceDocumentation, Reason: reasonDocumentation})
	}

	d.logger.Infof("Catalog discovery finished: %d unique paths", seen.Len())
	return found
}

func (d *Discoverer) discoverFromSpecDocument(ctx context.Context) []string {
	for _, docPath := range d.specPaths {
		if ctx.Err() != nil {
			return nil
		}
		resp := d.client.Do(ctx, probehttp.Request{Method: "GET", Path: docPath})
		if resp.StatusCode != 200 {
			continue
		}
		paths, err := ParseSpecDocument(resp.Body)
		if err != nil {
			d.metrics.RecordError(errors.Parse.String())
			if resp.IsJSON() {
				// The first JSON answer is the document, routes or not.
				d.logger.Infof("API description at %s has no usable paths: %v", docPath, err)
				return nil
			}
			d.logger.Debugf("Ignoring %s: %v", docPath, err)
			continue
		}
		d.logger.Infof("Found API description at %s with %d paths", docPath, len(paths))
		return paths
	}
	return nil
}

func (d *Discoverer) discoverFromDocumentation(ctx context.Context) []string {
	var out []string
	for _, docPath := range d.docPaths {
		if ctx.Err() != nil {
			break
		}
		resp := d.client.Do(ctx, probehttp.Request{Method: "GET", Path: docPath})
		if resp.StatusCode != 200 {
			continue
		}
		paths := ExtractDocumentationPaths(resp.Body)
		if len(paths) > 0 {
			d.logger.Infof("Found documentation at %s, extracted %d paths", docPath, len(paths))
			out = append(out, paths...)
		}
	}
	return out
}

func (d *Discoverer) record(e Endpoint) Endpoint {
	d.metrics.RecordEndpointDiscovered()
	d.logger.DiscoveryEvent(string(e.Source), e.Path, e.Reason)
	return e
}
