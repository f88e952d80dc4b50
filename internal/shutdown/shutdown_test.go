package shutdown

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func waitDone(t *testing.T, h *Handler) {
	t.Helper()
	select {
	case <-h.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown did not complete")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Timeout != 10*time.Second {
		t.Errorf("Timeout = %v, want 10s", cfg.Timeout)
	}
	if len(cfg.Signals) != 2 {
		t.Errorf("Signals length = %d, want 2", len(cfg.Signals))
	}
}

// =============================================================================
// Callback Tests
// =============================================================================

func TestHandler_RunsCallbacksLIFO(t *testing.T) {
	h := New(DefaultConfig())

	var mu sync.Mutex
	var order []string
	for _, name := range []string{"client", "store", "progress"} {
		name := name
		h.RegisterFunc(name, func() {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
		})
	}

	res := h.Shutdown()
	if res.HasErrors() {
		t.Errorf("unexpected errors: %v", res.Errors)
	}
	want := []string{"progress", "store", "client"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestHandler_CollectsErrors(t *testing.T) {
	h := New(DefaultConfig())
	h.Register("bad", func(context.Context) error { return errors.New("disk full") })
	h.Register("good", func(context.Context) error { return nil })

	res := h.Shutdown()
	if len(res.Errors) != 1 || res.Errors[0].Error() != "disk full" {
		t.Errorf("Errors = %v", res.Errors)
	}
}

func TestHandler_Timeout(t *testing.T) {
	h := New(Config{Timeout: 50 * time.Millisecond})
	h.Register("slow", func(ctx context.Context) error {
		time.Sleep(time.Second)
		return nil
	})

	res := h.Shutdown()
	var te *TimeoutError
	if len(res.Errors) != 1 || !errors.As(res.Errors[0], &te) || te.CallbackName != "slow" {
		t.Errorf("Errors = %v, want one TimeoutError", res.Errors)
	}
}

func TestHandler_RegisterServer(t *testing.T) {
	h := New(DefaultConfig())
	srv := &fakeServer{}
	h.RegisterServer("http", srv)
	h.Shutdown()
	if !srv.stopped.Load() {
		t.Error("server Shutdown not called")
	}
}

type fakeServer struct{ stopped atomic.Bool }

func (f *fakeServer) Shutdown(context.Context) error {
	f.stopped.Store(true)
	return nil
}

// =============================================================================
// Lifecycle Tests
// =============================================================================

func TestHandler_ContextCancelled(t *testing.T) {
	h := New(DefaultConfig())
	if h.Context().Err() != nil {
		t.Fatal("context cancelled before shutdown")
	}
	if h.IsShuttingDown() {
		t.Error("IsShuttingDown before shutdown")
	}

	h.Shutdown()

	if h.Context().Err() == nil {
		t.Error("context not cancelled")
	}
	if !h.IsShuttingDown() {
		t.Error("IsShuttingDown = false after shutdown")
	}
}

func TestHandler_Idempotent(t *testing.T) {
	h := New(DefaultConfig())
	var calls atomic.Int32
	h.RegisterFunc("count", func() { calls.Add(1) })

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.Shutdown()
		}()
	}
	wg.Wait()

	if calls.Load() != 1 {
		t.Errorf("callback ran %d times, want 1", calls.Load())
	}
}

func TestHandler_Trigger(t *testing.T) {
	h := New(DefaultConfig())
	h.Trigger()
	waitDone(t, h)
	if h.Context().Err() == nil {
		t.Error("context not cancelled by trigger")
	}
}

func TestHandler_ParentCancel(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	h := New(Config{Parent: parent})
	cancel()
	waitDone(t, h)
}

func TestTimeoutError(t *testing.T) {
	err := &TimeoutError{CallbackName: "store"}
	if err.Error() != "shutdown callback timed out: store" {
		t.Errorf("Error() = %q", err.Error())
	}
}
