package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/PentesterFlow/APIProbe/internal/classify"
	"github.com/PentesterFlow/APIProbe/internal/discovery"
	probehttp "github.com/PentesterFlow/APIProbe/internal/http"
	"github.com/PentesterFlow/APIProbe/internal/probe"
	"github.com/PentesterFlow/APIProbe/internal/schema"
)

type routeProber struct {
	mu       sync.Mutex
	routes   map[string]func(req probehttp.Request) (int, string)
	requests []probehttp.Request
}

func (r *routeProber) Do(_ context.Context, req probehttp.Request) *probehttp.Response {
	r.mu.Lock()
	r.requests = append(r.requests, req)
	r.mu.Unlock()
	h, ok := r.routes[req.Method+" "+req.Path]
	if !ok {
		return &probehttp.Response{Request: req, StatusCode: 404, Body: []byte(`{"error":"not found"}`)}
	}
	status, body := h(req)
	return &probehttp.Response{Request: req, StatusCode: status, Body: []byte(body)}
}

func usersProber() *routeProber {
	return &routeProber{routes: map[string]func(probehttp.Request) (int, string){
		"GET /users": func(req probehttp.Request) (int, string) {
			if req.Query.Get("limit") == "abc" {
				return 400, `{"error": "limit must be a number"}`
			}
			return 200, `[{"id": 1, "email": "a@b.co"}]`
		},
		"POST /users": func(probehttp.Request) (int, string) {
			return 201, `{"id": 2}`
		},
	}}
}

// =============================================================================
// Analyzer Tests
// =============================================================================

func TestAnalyzer_Users(t *testing.T) {
	catalog := probe.Catalog{{Name: "limit", Default: "10", TestValues: []string{"20"}, ErrorValue: "abc"}}
	a := NewAnalyzer(AnalyzerConfig{Client: usersProber(), Catalog: catalog})

	res := a.Analyze(context.Background(), discovery.Endpoint{Path: "/users", Source: discovery.SourceExplicitList})

	if res.Status != StatusSuccess {
		t.Fatalf("Status = %v (%s)", res.Status, res.Error)
	}
	if !reflect.DeepEqual(res.Methods, []string{"GET", "POST"}) {
		t.Errorf("Methods = %v", res.Methods)
	}
	if res.CRUDOperations != (classify.CRUD{Create: true, Read: true}) {
		t.Errorf("CRUD = %+v", res.CRUDOperations)
	}

	limit := res.Parameters["GET"]["limit"]
	if !limit.Accepted || limit.Type != "integer" || limit.Required {
		t.Errorf("GET limit = %+v", limit)
	}
	v := res.ParameterValidation["GET"]["limit"]
	if !reflect.DeepEqual(v.ValidationPatterns, []string{"limit must be a number"}) {
		t.Errorf("ValidationPatterns = %v", v.ValidationPatterns)
	}

	s := res.ResponseSchema["GET"]
	if s == nil || s.Type != schema.KindArray || s.Count != 1 {
		t.Fatalf("GET schema = %+v", s)
	}
	if got := s.Items.Property("email"); got == nil || got.Type != schema.KindEmail {
		t.Errorf("email property = %+v", got)
	}
	if _, ok := res.ResponseSchema["POST"]; ok {
		t.Error("POST responses are not inferred")
	}

	if base := res.ErrorResponses["POST"]; base.StatusCode != 201 {
		t.Errorf("POST baseline = %+v", base)
	}
}

func TestAnalyzer_NoSchemaOnNon200(t *testing.T) {
	p := &routeProber{routes: map[string]func(probehttp.Request) (int, string){
		"GET /admin": func(probehttp.Request) (int, string) { return 401, `{"error":"auth"}` },
	}}
	res := NewAnalyzer(AnalyzerConfig{Client: p}).Analyze(context.Background(), discovery.Endpoint{Path: "/admin"})

	if len(res.ResponseSchema) != 0 {
		t.Errorf("ResponseSchema = %v, want empty", res.ResponseSchema)
	}
	if res.ErrorResponses["GET"].StatusCode != 401 {
		t.Errorf("baseline = %+v", res.ErrorResponses["GET"])
	}
}

func TestAnalyzer_Fallback(t *testing.T) {
	p := &routeProber{routes: map[string]func(probehttp.Request) (int, string){}}
	res := NewAnalyzer(AnalyzerConfig{Client: p}).Analyze(context.Background(), discovery.Endpoint{Path: "/gone"})

	if !res.MethodFallback || !reflect.DeepEqual(res.Methods, []string{"GET"}) {
		t.Errorf("Methods = %v fallback = %v", res.Methods, res.MethodFallback)
	}
}

func TestAnalyzer_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := NewAnalyzer(AnalyzerConfig{Client: usersProber()}).Analyze(ctx, discovery.Endpoint{Path: "/users"})
	if res.Status != StatusError || res.Error == "" {
		t.Errorf("cancelled analysis = %+v", res)
	}
}

type panicProber struct{}

func (panicProber) Do(context.Context, probehttp.Request) *probehttp.Response {
	panic("boom")
}

func TestAnalyzer_RecoversPanic(t *testing.T) {
	res := NewAnalyzer(AnalyzerConfig{Client: panicProber{}}).Analyze(context.Background(), discovery.Endpoint{Path: "/x"})
	if res.Status != StatusError {
		t.Errorf("Status = %v, want error", res.Status)
	}
}

// =============================================================================
// Aggregator Tests
// =============================================================================

func TestAggregator_Summary(t *testing.T) {
	agg := NewAggregator(Metadata{Mode: ModeCatalog}, probe.Catalog{{Name: "limit"}})

	agg.Add(&EndpointAnalysis{
		Endpoint:       "/users",
		CRUDOperations: classify.CRUD{Create: true, Read: true},
		Status:         StatusSuccess,
		Parameters: map[string]map[string]probe.ParameterProfile{
			"GET":  {"limit": {Type: "integer"}, "q": {Type: "string"}},
			"POST": {"limit": {Type: "integer"}},
		},
		ParameterValidation: map[string]map[string]probe.ValidationInfo{
			"GET":  {"limit": {ValidationPatterns: []string{"limit must be a number"}}},
			"POST": {"limit": {ValidationPatterns: []string{"limit must be a number", "a limit"}}},
		},
	})
	agg.Add(&EndpointAnalysis{
		Endpoint:       "/users/1",
		CRUDOperations: classify.CRUD{Read: true, Update: true, Delete: true},
		Status:         StatusSuccess,
	})
	agg.Add(Failed(discovery.Endpoint{Path: "/login"}, errors.New("boom")))

	doc := agg.Document(3, 87)
	s := doc.Summary

	if s.TotalEndpoints != 3 || s.SuccessfulAnalyses != 2 {
		t.Errorf("totals = %d/%d", s.TotalEndpoints, s.SuccessfulAnalyses)
	}
	want := CRUDCounts{Create: 2, Read: 2, Update: 1, Delete: 1}
	if s.CRUDOperations != want {
		t.Errorf("CRUD = %+v, want %+v", s.CRUDOperations, want)
	}
	if s.TotalParameters != 3 {
		t.Errorf("TotalParameters = %d, want 3", s.TotalParameters)
	}
	if !reflect.DeepEqual(s.ParameterTypes, map[string]int{"integer": 2, "string": 1}) {
		t.Errorf("ParameterTypes = %v", s.ParameterTypes)
	}
	if !reflect.DeepEqual(s.ValidationPatterns, []string{"a limit", "limit must be a number"}) {
		t.Errorf("ValidationPatterns = %v", s.ValidationPatterns)
	}
	if s.DiscoveryRate != "3.4%" {
		t.Errorf("DiscoveryRate = %q", s.DiscoveryRate)
	}
	if doc.ParameterVariations == nil || len(*doc.ParameterVariations) != 1 {
		t.Errorf("catalog mode should echo the catalog: %v", doc.ParameterVariations)
	}
}

func TestAggregator_ExplicitMode(t *testing.T) {
	agg := NewAggregator(Metadata{Mode: ModeExplicit}, probe.ExtensiveCatalog())
	agg.Add(&EndpointAnalysis{Endpoint: "/a", Status: StatusSuccess})
	agg.Add(&EndpointAnalysis{Endpoint: "/a", Status: StatusError})

	doc := agg.Document(1, 0)
	if doc.Summary.DiscoveryRate != "0.0%" {
		t.Errorf("DiscoveryRate = %q", doc.Summary.DiscoveryRate)
	}
	if doc.ParameterVariations != nil {
		t.Error("explicit mode should not echo the catalog")
	}
	if len(doc.Endpoints) != 1 || doc.Endpoints["/a"].Status != StatusError {
		t.Errorf("Endpoints = %+v", doc.Endpoints)
	}
}

func TestDocument_ParameterVariationsKey(t *testing.T) {
	tests := []struct {
		name    string
		mode    string
		catalog probe.Catalog
		want    string
	}{
		{"catalog mode empty catalog", ModeCatalog, probe.Catalog{}, "[]"},
		{"catalog mode nil catalog", ModeCatalog, nil, "[]"},
		{"explicit mode", ModeExplicit, probe.ExtensiveCatalog(), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := NewAggregator(Metadata{Mode: tt.mode}, tt.catalog).Document(0, 0)
			data, err := json.Marshal(doc)
			if err != nil {
				t.Fatalf("Marshal() error: %v", err)
			}
			var fields map[string]json.RawMessage
			if err := json.Unmarshal(data, &fields); err != nil {
				t.Fatal(err)
			}
			got, ok := fields["parameter_variations"]
			if tt.want == "" {
				if ok {
					t.Errorf("parameter_variations = %s, want absent", got)
				}
				return
			}
			if string(got) != tt.want {
				t.Errorf("parameter_variations = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestAggregator_ConcurrentAdd(t *testing.T) {
	agg := NewAggregator(Metadata{}, nil)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			agg.Add(&EndpointAnalysis{Endpoint: "/e" + string(rune('a'+i%26)), Status: StatusSuccess})
		}(i)
	}
	wg.Wait()
	if agg.Len() != 26 {
		t.Errorf("Len() = %d, want 26", agg.Len())
	}
}

func TestDiscoveryRate(t *testing.T) {
	tests := []struct {
		found, total int
		want         string
	}{
		{0, 0, "0.0%"},
		{5, 0, "0.0%"},
		{0, 87, "0.0%"},
		{87, 87, "100.0%"},
		{1, 3, "33.3%"},
	}
	for _, tt := range tests {
		if got := DiscoveryRate(tt.found, tt.total); got != tt.want {
			t.Errorf("DiscoveryRate(%d, %d) = %q, want %q", tt.found, tt.total, got, tt.want)
		}
	}
}
