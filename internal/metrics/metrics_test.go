package metrics

import (
	"sync"
	"testing"
	"time"
)

func TestCollector_RecordProbe(t *testing.T) {
	c := New()

	c.RecordProbe(200, 5*time.Millisecond, 100)
	c.RecordProbe(200, 60*time.Millisecond, 50)
	c.RecordProbe(404, 20*time.Millisecond, 0)
	c.RecordProbe(0, 20*time.Second, 0)

	snap := c.Snapshot()
	if snap.RequestsTotal != 4 {
		t.Errorf("RequestsTotal = %d, want 4", snap.RequestsTotal)
	}
	if snap.BytesTotal != 150 {
		t.Errorf("BytesTotal = %d, want 150", snap.BytesTotal)
	}
	if snap.StatusCodes[200] != 2 || snap.StatusCodes[404] != 1 {
		t.Errorf("StatusCodes = %v", snap.StatusCodes)
	}
	if _, ok := snap.StatusCodes[0]; ok {
		t.Error("failed probes should not be counted as status 0")
	}
	if snap.ResponseTimeHist[0] != 1 || snap.ResponseTimeHist[1] != 1 || snap.ResponseTimeHist[2] != 1 {
		t.Errorf("histogram = %v", snap.ResponseTimeHist)
	}
	if snap.ResponseTimeHist[9] != 1 {
		t.Errorf("20s probe should land in last bucket: %v", snap.ResponseTimeHist)
	}
}

func TestCollector_RecordError(t *testing.T) {
	c := New()

	c.RecordError("network")
	c.RecordError("network")
	c.RecordError("timeout")

	snap := c.Snapshot()
	if snap.ErrorsTotal != 3 {
		t.Errorf("ErrorsTotal = %d, want 3", snap.ErrorsTotal)
	}
	if snap.ErrorCounts["network"] != 2 {
		t.Errorf("ErrorCounts[network] = %d, want 2", snap.ErrorCounts["network"])
	}
}

func TestCollector_EndpointCounters(t *testing.T) {
	c := New()

	c.RecordEndpointDiscovered()
	c.RecordEndpointDiscovered()
	c.RecordEndpointAnalyzed(false)
	c.RecordEndpointAnalyzed(true)
	c.RecordParameterProfiled()

	snap := c.Snapshot()
	if snap.EndpointsDiscovered != 2 || snap.EndpointsAnalyzed != 2 || snap.EndpointsFailed != 1 {
		t.Errorf("endpoint counters = %+v", snap)
	}
	if snap.ParametersProfiled != 1 {
		t.Errorf("ParametersProfiled = %d, want 1", snap.ParametersProfiled)
	}
}

func TestSnapshot_ErrorRate(t *testing.T) {
	s := &Snapshot{}
	if s.ErrorRate() != 0 {
		t.Error("empty snapshot error rate should be 0")
	}
	s = &Snapshot{RequestsTotal: 4, ErrorsTotal: 1}
	if s.ErrorRate() != 0.25 {
		t.Errorf("ErrorRate() = %v, want 0.25", s.ErrorRate())
	}
}

func TestCollector_Concurrent(t *testing.T) {
	c := New()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.WorkerStarted()
			c.RecordProbe(200, time.Millisecond, 1)
			c.RecordError("timeout")
			c.WorkerDone()
		}()
	}
	wg.Wait()

	snap := c.Snapshot()
	if snap.RequestsTotal != 50 || snap.ErrorsTotal != 50 {
		t.Errorf("totals = %d/%d, want 50/50", snap.RequestsTotal, snap.ErrorsTotal)
	}
	if snap.ActiveWorkers != 0 {
		t.Errorf("ActiveWorkers = %d, want 0", snap.ActiveWorkers)
	}
}
