package analysis

import (
	"fmt"
	"sort"
	"sync"

	"github.com/PentesterFlow/APIProbe/internal/probe"
)

// Aggregator collects endpoint analyses from concurrent workers.
type Aggregator struct {
	mu        sync.Mutex
	meta      Metadata
	catalog   probe.Catalog
	endpoints map[string]*EndpointAnalysis
}

// NewAggregator starts a document with the given metadata. catalog is
// echoed as parameter_variations in catalog mode.
func NewAggregator(meta Metadata, catalog probe.Catalog) *Aggregator {
	return &Aggregator{
		meta:      meta,
		catalog:   catalog,
		endpoints: make(map[string]*EndpointAnalysis),
	}
}

// Add records one endpoint analysis. A later analysis of the same path
// replaces the earlier one.
func (a *Aggregator) Add(e *EndpointAnalysis) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.endpoints[e.Endpoint] = e
}

// Len returns the number of endpoints recorded so far.
func (a *Aggregator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.endpoints)
}

// Document builds the final document. catalogSize is the number of
// cataloged patterns (0 in explicit-list mode).
func (a *Aggregator) Document(discovered, catalogSize int) *Document {
	a.mu.Lock()
	defer a.mu.Unlock()

	endpoints := make(map[string]*EndpointAnalysis, len(a.endpoints))
	for k, v := range a.endpoints {
		endpoints[k] = v
	}

	doc := &Document{
		Metadata:  a.meta,
		Summary:   Summarize(endpoints, discovered, catalogSize),
		Endpoints: endpoints,
	}
	if a.meta.Mode == ModeCatalog {
		catalog := a.catalog
		if catalog == nil {
			catalog = probe.Catalog{}
		}
		doc.ParameterVariations = &catalog
	}
	return doc
}

// Summarize computes run statistics over the analyses.
func Summarize(endpoints map[string]*EndpointAnalysis, discovered, catalogSize int) Summary {
	s := Summary{
		TotalEndpoints:     discovered,
		ParameterTypes:     make(map[string]int),
		ValidationPatterns: []string{},
		DiscoveryRate:      DiscoveryRate(discovered, catalogSize),
	}

	patterns := make(map[string]struct{})
	for _, e := range endpoints {
		if e.Status == StatusSuccess {
			s.SuccessfulAnalyses++
		}

		crud := e.CRUDOperations
		if crud.Create {
			s.CRUDOperations.Create++
		}
		if crud.Read {
			s.CRUDOperations.Read++
		}
		if crud.Update {
			s.CRUDOperations.Update++
		}
		if crud.Delete {
			s.CRUDOperations.Delete++
		}

		for _, params := range e.Parameters {
			s.TotalParameters += len(params)
			for _, p := range params {
				s.ParameterTypes[p.Type]++
			}
		}
		for _, infos := range e.ParameterValidation {
			for _, info := range infos {
				for _, msg := range info.ValidationPatterns {
					patterns[msg] = struct{}{}
				}
			}
		}
	}

	for msg := range patterns {
		s.ValidationPatterns = append(s.ValidationPatterns, msg)
	}
	sort.Strings(s.ValidationPatterns)
	return s
}

// DiscoveryRate formats discovered/cataloged as a percentage with one
// decimal. It is "0.0%" when nothing was cataloged.
func DiscoveryRate(discovered, catalogSize int) string {
	if catalogSize <= 0 {
		return "0.0%"
	}
	return fmt.Sprintf("%.1f%%", float64(discovered)/float64(catalogSize)*100)
}
