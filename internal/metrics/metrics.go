// Package metrics counts probe traffic and analysis progress for a run.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Collector collects probe metrics. It is safe for concurrent use.
type Collector struct {
	requestsTotal       atomic.Int64
	errorsTotal         atomic.Int64
	bytesTotal          atomic.Int64
	endpointsDiscovered atomic.Int64
	endpointsAnalyzed   atomic.Int64
	endpointsFailed     atomic.Int64
	parametersProfiled  atomic.Int64
	activeWorkers       atomic.Int64

	responseTimesSum atomic.Int64
	responseTimesNum atomic.Int64

	// <10, <50, <100, <250, <500, <1000, <2500, <5000, <10000, >=10000 ms
	responseTimeBuckets [10]atomic.Int64

	errorMu     sync.RWMutex
	errorCounts map[string]int64

	statusMu    sync.RWMutex
	statusCodes map[int]int64

	startTime time.Time
}

// New creates a new metrics collector.
func New() *Collector {
	return &Collector{
		errorCounts: make(map[string]int64),
		statusCodes: make(map[int]int64),
		startTime:   time.Now(),
	}
}

// RecordProbe records one completed probe. Status 0 marks a failed request.
func (c *Collector) RecordProbe(status int, d time.Duration, bytes int64) {
	c.requestsTotal.Add(1)
	c.bytesTotal.Add(bytes)
	c.recordResponseTime(d)
	if status == 0 {
		return
	}

	c.statusMu.Lock()
	c.statusCodes[status]++
	c.statusMu.Unlock()
}

// RecordError records an absorbed probe error by type name.
func (c *Collector) RecordError(errorType string) {
	c.errorsTotal.Add(1)

	c.errorMu.Lock()
	c.errorCounts[errorType]++
	c.errorMu.Unlock()
}

func (c *Collector) recordResponseTime(d time.Duration) {
	ms := d.Milliseconds()
	c.responseTimesSum.Add(ms)
	c.responseTimesNum.Add(1)
	c.responseTimeBuckets[bucketFor(ms)].Add(1)
}

var bucketBounds = [...]int64{10, 50, 100, 250, 500, 1000, 2500, 5000, 10000}

func bucketFor(ms int64) int {
	for i, bound := range bucketBounds {
		if ms < bound {
			return i
		}
	}
	return len(bucketBounds)
}

// RecordEndpointDiscovered increments discovered endpoints.
func (c *Collector) RecordEndpointDiscovered() {
	c.endpointsDiscovered.Add(1)
}

// RecordEndpointAnalyzed increments analyzed endpoints; failed ones are
// also counted separately.
func (c *Collector) RecordEndpointAnalyzed(failed bool) {
	c.endpointsAnalyzed.Add(1)
	if failed {
		c.endpointsFailed.Add(1)
	}
}

// RecordParameterProfiled increments profiled parameters.
func (c *Collector) RecordParameterProfiled() {
	c.parametersProfiled.Add(1)
}

// WorkerStarted and WorkerDone track active analysis workers.
func (c *Collector) WorkerStarted() { c.activeWorkers.Add(1) }

// WorkerDone marks an analysis worker as idle.
func (c *Collector) WorkerDone() { c.activeWorkers.Add(-1) }

// Snapshot returns a point-in-time snapshot of all metrics.
func (c *Collector) Snapshot() *Snapshot {
	s := &Snapshot{
		Timestamp:           time.Now(),
		Uptime:              time.Since(c.startTime),
		RequestsTotal:       c.requestsTotal.Load(),
		ErrorsTotal:         c.errorsTotal.Load(),
		BytesTotal:          c.bytesTotal.Load(),
		EndpointsDiscovered: c.endpointsDiscovered.Load(),
		EndpointsAnalyzed:   c.endpointsAnalyzed.Load(),
		EndpointsFailed:     c.endpointsFailed.Load(),
		ParametersProfiled:  c.parametersProfiled.Load(),
		ActiveWorkers:       c.activeWorkers.Load(),
		ErrorCounts:         make(map[string]int64),
		StatusCodes:         make(map[int]int64),
		ResponseTimeHist:    make([]int64, len(c.responseTimeBuckets)),
	}

	if n := c.responseTimesNum.Load(); n > 0 {
		s.AverageResponseTime = time.Duration(c.responseTimesSum.Load()/n) * time.Millisecond
	}

	c.errorMu.RLock()
	for k, v := range c.errorCounts {
		s.ErrorCounts[k] = v
	}
	c.errorMu.RUnlock()

	c.statusMu.RLock()
	for k, v := range c.statusCodes {
		s.StatusCodes[k] = v
	}
	c.statusMu.RUnlock()

	for i := range c.responseTimeBuckets {
		s.ResponseTimeHist[i] = c.responseTimeBuckets[i].Load()
	}

	return s
}

// Snapshot represents a point-in-time view of metrics.
type Snapshot struct {
	Timestamp           time.Time        `json:"timestamp"`
	Uptime              time.Duration    `json:"uptime"`
	RequestsTotal       int64            `json:"requests_total"`
	ErrorsTotal         int64            `json:"errors_total"`
	BytesTotal          int64            `json:"bytes_total"`
	EndpointsDiscovered int64            `json:"endpoints_discovered"`
	EndpointsAnalyzed   int64            `json:"endpoints_analyzed"`
	EndpointsFailed     int64            `json:"endpoints_failed"`
	ParametersProfiled  int64            `json:"parameters_profiled"`
	ActiveWorkers       int64            `json:"active_workers"`
	AverageResponseTime time.Duration    `json:"average_response_time"`
	ErrorCounts         map[string]int64 `json:"error_counts"`
	StatusCodes         map[int]int64    `json:"status_codes"`
	ResponseTimeHist    []int64          `json:"response_time_histogram"`
}

// ErrorRate returns the error rate (errors/requests).
func (s *Snapshot) ErrorRate() float64 {
	if s.RequestsTotal == 0 {
		return 0
	}
	return float64(s.ErrorsTotal) / float64(s.RequestsTotal)
}

// Summary returns the fields logged at the end of a run.
func (s *Snapshot) Summary() map[string]any {
	return map[string]any{
		"uptime":               s.Uptime.String(),
		"requests_total":       s.RequestsTotal,
		"errors_total":         s.ErrorsTotal,
		"error_rate":           s.ErrorRate(),
		"endpoints_discovered": s.EndpointsDiscovered,
		"endpoints_analyzed":   s.EndpointsAnalyzed,
		"endpoints_failed":     s.EndpointsFailed,
		"parameters_profiled":  s.ParametersProfiled,
		"avg_response_time_ms": s.AverageResponseTime.Milliseconds(),
	}
}
