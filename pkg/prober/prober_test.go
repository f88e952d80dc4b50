package prober

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/PentesterFlow/APIProbe/internal/analysis"
	"github.com/PentesterFlow/APIProbe/internal/discovery"
	"github.com/PentesterFlow/APIProbe/internal/errors"
	"github.com/PentesterFlow/APIProbe/internal/logger"
	"github.com/PentesterFlow/APIProbe/internal/probe"
	"github.com/PentesterFlow/APIProbe/internal/state"
)

// usersAPI serves GET and POST /users and rejects non-numeric ?limit.
func usersAPI(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path != "/users" {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":"not found"}`))
			return
		}
		if limit := r.URL.Query().Get("limit"); limit != "" {
			for _, c := range limit {
				if c < '0' || c > '9' {
					w.WriteHeader(http.StatusBadRequest)
					w.Write([]byte(`{"error":"limit must be a number"}`))
					return
				}
			}
		}
		switch r.Method {
		case http.MethodGet:
			w.Write([]byte(`[{"id":1,"name":"alice","email":"alice@example.com"}]`))
		case http.MethodPost:
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"id":2}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestProber(t *testing.T, target string, opts ...Option) *Prober {
	t.Helper()
	base := []Option{
		WithTarget(target),
		WithDelay(0),
		WithLogger(logger.Nop()),
	}
	p, err := New(append(base, opts...)...)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	t.Cleanup(func() { p.Close() })
	return p
}

// =============================================================================
// New Tests
// =============================================================================

func TestNewRequiresTarget(t *testing.T) {
	if _, err := New(WithLogger(logger.Nop())); err == nil {
		t.Error("expected error without target")
	}
}

func TestNewRejectsUnknownCatalog(t *testing.T) {
	_, err := New(WithTarget("http://api.test"), WithParameterCatalog("everything"))
	if err == nil {
		t.Error("expected error for unknown catalog")
	}
}

func TestNewOptions(t *testing.T) {
	p := newTestProber(t, "http://api.test",
		WithEndpoints("/users", "/posts"),
		WithConcurrency(0),
		WithScope([]string{"/api/**"}, []string{"/api/admin/**"}),
		WithHeaders(map[string]string{"Authorization": "Bearer t"}),
		WithSwagger("Users API", "Everything about users"),
	)
	cfg := p.Config()

	if len(cfg.Endpoints) != 2 {
		t.Errorf("Endpoints = %v", cfg.Endpoints)
	}
	if cfg.Concurrency != 1 {
		t.Errorf("Concurrency = %d, want clamp to 1", cfg.Concurrency)
	}
	if len(cfg.Scope.Include) != 1 || len(cfg.Scope.Exclude) != 1 {
		t.Errorf("Scope = %+v", cfg.Scope)
	}
	if cfg.Headers["Authorization"] != "Bearer t" {
		t.Errorf("Headers = %v", cfg.Headers)
	}
	if !cfg.Output.Swagger || cfg.Output.Title != "Users API" {
		t.Errorf("Output = %+v", cfg.Output)
	}
}

func TestInvalidTarget(t *testing.T) {
	p := newTestProber(t, "ftp://api.test", WithEndpoints("/users"))
	_, err := p.Run(context.Background())
	if !errors.IsInputError(err) {
		t.Errorf("Run() error = %v, want input error", err)
	}
}

// =============================================================================
// Run Tests
// =============================================================================

func TestRunExplicitUsers(t *testing.T) {
	srv := usersAPI(t)
	p := newTestProber(t, srv.URL, WithEndpoints("/users"), WithParameterCatalog(probe.CatalogMinimal))

	doc, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if doc.Metadata.Mode != analysis.ModeExplicit {
		t.Errorf("Mode = %q, want explicit", doc.Metadata.Mode)
	}
	if doc.Metadata.RunID == "" {
		t.Error("RunID should be set")
	}
	if len(doc.Metadata.CustomEndpoints) != 1 || doc.Metadata.CustomEndpoints[0] != "/users" {
		t.Errorf("CustomEndpoints = %v", doc.Metadata.CustomEndpoints)
	}
	if doc.ParameterVariations != nil {
		t.Error("explicit mode should not echo parameter variations")
	}

	ep, ok := doc.Endpoints["/users"]
	if !ok {
		t.Fatalf("missing /users in %v", doc.Endpoints)
	}
	if strings.Join(ep.Methods, ",") != "GET,POST" {
		t.Errorf("Methods = %v, want [GET POST]", ep.Methods)
	}
	if ep.Status != analysis.StatusSuccess {
		t.Errorf("Status = %q (%s)", ep.Status, ep.Error)
	}
	if ep.ResponseSchema["GET"] == nil {
		t.Error("GET response schema missing")
	}
	if !ep.CRUDOperations.Create || !ep.CRUDOperations.Read {
		t.Errorf("CRUD = %+v", ep.CRUDOperations)
	}

	if doc.Summary.TotalEndpoints != 1 || doc.Summary.SuccessfulAnalyses != 1 {
		t.Errorf("Summary = %+v", doc.Summary)
	}
	if doc.Summary.DiscoveryRate != "0.0%" {
		t.Errorf("DiscoveryRate = %q, want 0.0%%", doc.Summary.DiscoveryRate)
	}

	spec := p.Swagger(doc)
	if spec.Paths.Len() != 1 {
		t.Fatalf("OpenAPI paths = %d, want 1", spec.Paths.Len())
	}
	item := spec.Paths.Value("/users")
	if item == nil || len(item.Operations()) != 2 {
		t.Fatalf("/users operations = %v", item)
	}
	if err := spec.Validate(context.Background()); err != nil {
		t.Errorf("OpenAPI document invalid: %v", err)
	}

	stats := p.Stats()
	if stats.RunID != doc.Metadata.RunID || stats.EndpointsAnalyzed != 1 {
		t.Errorf("Stats = %+v", stats)
	}
}

func TestRunCatalogMode(t *testing.T) {
	srv := usersAPI(t)
	p := newTestProber(t, srv.URL, WithConcurrency(4))

	doc, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if doc.Metadata.Mode != analysis.ModeCatalog {
		t.Errorf("Mode = %q, want catalog", doc.Metadata.Mode)
	}
	if doc.Metadata.TotalPatternsTested != len(discovery.PathCatalog) {
		t.Errorf("TotalPatternsTested = %d, want %d", doc.Metadata.TotalPatternsTested, len(discovery.PathCatalog))
	}
	if len(doc.Endpoints) != 1 {
		t.Fatalf("Endpoints = %d, want 1", len(doc.Endpoints))
	}
	if doc.Endpoints["/users"].Source != discovery.SourcePatternCatalog {
		t.Errorf("Source = %q", doc.Endpoints["/users"].Source)
	}
	want := analysis.DiscoveryRate(1, len(discovery.PathCatalog))
	if doc.Summary.DiscoveryRate != want {
		t.Errorf("DiscoveryRate = %q, want %q", doc.Summary.DiscoveryRate, want)
	}
	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}
	var fields map[string]json.RawMessage
	json.Unmarshal(data, &fields)
	if got := string(fields["parameter_variations"]); got != "[]" {
		t.Errorf("parameter_variations = %q, want [] for the default catalog", got)
	}
	if got := strings.Join(doc.Endpoints["/users"].Methods, ","); got != "GET,POST" {
		t.Errorf("Methods = %s, want GET,POST", got)
	}

	spec := p.Swagger(doc)
	if spec.Paths.Len() != 1 || len(spec.Paths.Value("/users").Operations()) != 2 {
		t.Errorf("OpenAPI should have one path with two operations, got %d paths", spec.Paths.Len())
	}
}

func TestRunProfilesCustomParameters(t *testing.T) {
	srv := usersAPI(t)
	p := newTestProber(t, srv.URL,
		WithEndpoints("/users"),
		WithCustomParameters(probe.Catalog{
			{Name: "limit", Default: "10", TestValues: []string{"5", "20"}, ErrorValue: "abc"},
		}),
	)

	doc, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	ep := doc.Endpoints["/users"]
	profile, ok := ep.Parameters["GET"]["limit"]
	if !ok {
		t.Fatalf("limit not profiled: %+v", ep.Parameters)
	}
	if !profile.Accepted {
		t.Error("limit should be accepted")
	}
	info := ep.ParameterValidation["GET"]["limit"]
	if len(info.RejectedValues) != 1 || info.RejectedValues[0] != "abc" {
		t.Errorf("RejectedValues = %v", info.RejectedValues)
	}
	if len(doc.Summary.ValidationPatterns) != 1 || doc.Summary.ValidationPatterns[0] != "limit must be a number" {
		t.Errorf("ValidationPatterns = %v", doc.Summary.ValidationPatterns)
	}
	if doc.Metadata.TotalParametersTested != 4 {
		t.Errorf("TotalParametersTested = %d, want 4", doc.Metadata.TotalParametersTested)
	}
}

func TestRunEndpointsFile(t *testing.T) {
	srv := usersAPI(t)
	path := filepath.Join(t.TempDir(), "endpoints.txt")
	os.WriteFile(path, []byte("# users\n/users\n\n/missing\n"), 0644)

	p := newTestProber(t, srv.URL, WithEndpointsFile(path))
	doc, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if len(doc.Endpoints) != 1 {
		t.Errorf("Endpoints = %v, want only /users", doc.Endpoints)
	}
	if len(doc.Metadata.CustomEndpoints) != 2 {
		t.Errorf("CustomEndpoints = %v", doc.Metadata.CustomEndpoints)
	}
}

// lockedBuffer collects log lines written from concurrent workers.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestRunReportsPacing(t *testing.T) {
	srv := usersAPI(t)
	var logs lockedBuffer
	log := logger.New(logger.Config{Level: logger.InfoLevel, Output: &logs})
	p := newTestProber(t, srv.URL,
		WithEndpoints("/users"),
		WithParameterCatalog(probe.CatalogMinimal),
		WithDelay(time.Millisecond),
		WithLogger(log),
	)

	if _, err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	stats := p.Stats()
	if stats.RateLimitWaits == 0 {
		t.Error("RateLimitWaits = 0, every request should pass the limiter")
	}
	if stats.RateLimitWaits < stats.Requests {
		t.Errorf("RateLimitWaits = %d, want >= %d requests", stats.RateLimitWaits, stats.Requests)
	}
	if !strings.Contains(logs.String(), `"rate_limit_waits":`) {
		t.Errorf("statistics log line should carry limiter waits: %s", logs.String())
	}
}

func TestRunNoEndpoints(t *testing.T) {
	srv := usersAPI(t)
	p := newTestProber(t, srv.URL, WithEndpoints("/missing"))

	doc, err := p.Run(context.Background())
	if !errors.IsInputError(err) {
		t.Errorf("Run() error = %v, want input error", err)
	}
	if doc == nil || len(doc.Endpoints) != 0 {
		t.Errorf("doc = %+v, want empty document", doc)
	}
}

func TestRunCancelled(t *testing.T) {
	srv := usersAPI(t)
	p := newTestProber(t, srv.URL, WithEndpoints("/users"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	doc, err := p.Run(ctx)
	if err == nil {
		t.Fatal("expected cancellation error")
	}
	if doc == nil {
		t.Fatal("cancelled run should still return a document")
	}
	if p.IsRunning() {
		t.Error("prober should not be running after Run returns")
	}
}

// =============================================================================
// Streaming, State and Output Tests
// =============================================================================

func TestRunStreamsEvents(t *testing.T) {
	srv := usersAPI(t)
	var buf bytes.Buffer
	p := newTestProber(t, srv.URL, WithEndpoints("/users"), WithStream(&buf))

	if _, err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	var kinds []string
	scanner := bufio.NewScanner(&buf)
	for scanner.Scan() {
		var event struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(scanner.Bytes(), &event); err != nil {
			t.Fatalf("bad stream line %q: %v", scanner.Text(), err)
		}
		kinds = append(kinds, event.Type)
	}

	if got := strings.Join(kinds, ","); got != "discovery,endpoint,summary" {
		t.Errorf("events = %s, want discovery,endpoint,summary", got)
	}
}

func TestRunArchivesState(t *testing.T) {
	srv := usersAPI(t)
	p := newTestProber(t, srv.URL, WithEndpoints("/users"), WithStateStore(state.NewMemoryStore()))

	doc, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	runs, err := p.Runs()
	if err != nil {
		t.Fatalf("Runs() error: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("runs = %d, want 1", len(runs))
	}
	run := runs[0]
	if run.ID != doc.Metadata.RunID || run.Target != srv.URL || run.Mode != analysis.ModeExplicit {
		t.Errorf("run = %+v", run)
	}
	if run.Stats.EndpointsAnalyzed != 1 {
		t.Errorf("Stats.EndpointsAnalyzed = %d, want 1", run.Stats.EndpointsAnalyzed)
	}
}

func TestRunsWithoutState(t *testing.T) {
	p := newTestProber(t, "http://api.test")
	if _, err := p.Runs(); err == nil {
		t.Error("expected error without a state file")
	}
}

func TestWrite(t *testing.T) {
	srv := usersAPI(t)
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Target = srv.URL
	cfg.Delay = 0
	cfg.Endpoints = []string{"/users"}
	cfg.Output.Path = filepath.Join(dir, "analysis.json")
	cfg.Output.Swagger = true
	cfg.Output.SwaggerFormat = "yaml"
	cfg.Output.SwaggerPath = filepath.Join(dir, "docs", "swagger.yaml")
	cfg.Output.Title = "Users API"

	p := newTestProber(t, srv.URL, WithConfig(cfg))
	doc, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if err := p.Write(doc); err != nil {
		t.Fatalf("Write() error: %v", err)
	}

	data, err := os.ReadFile(cfg.Output.Path)
	if err != nil {
		t.Fatalf("analysis not written: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("analysis is not JSON: %v", err)
	}
	for _, key := range []string{"metadata", "summary", "endpoints"} {
		if _, ok := decoded[key]; !ok {
			t.Errorf("analysis missing %q", key)
		}
	}

	loaded, err := LoadDocument(cfg.Output.Path)
	if err != nil {
		t.Fatalf("LoadDocument() error: %v", err)
	}
	if loaded.Metadata.RunID != doc.Metadata.RunID || len(loaded.Endpoints["/users"].Methods) != 2 {
		t.Errorf("loaded document = %+v", loaded.Metadata)
	}

	spec, err := os.ReadFile(cfg.Output.SwaggerPath)
	if err != nil {
		t.Fatalf("swagger not written: %v", err)
	}
	for _, want := range []string{"openapi: 3.0.3", "title: Users API", "/users:"} {
		if !strings.Contains(string(spec), want) {
			t.Errorf("swagger missing %q", want)
		}
	}
}
