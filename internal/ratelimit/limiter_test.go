package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func TestNewFromDelay_Disabled(t *testing.T) {
	l := NewFromDelay(0)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 100; i++ {
		if err := l.Wait(ctx); err != nil {
			t.Fatalf("Wait() error at %d: %v", i, err)
		}
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Errorf("100 unpaced waits took %v", elapsed)
	}
	if l.Stats().Delay != 0 {
		t.Errorf("Delay = %v, want 0", l.Stats().Delay)
	}
	if l.Stats().Rate != float64(rate.Inf) {
		t.Errorf("Rate = %v, want Inf", l.Stats().Rate)
	}
}

func TestNewFromDelay_Spacing(t *testing.T) {
	l := NewFromDelay(50 * time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := l.Wait(ctx); err != nil {
			t.Fatalf("Wait() error = %v", err)
		}
	}
	// First token is immediate, the next two are paced.
	if elapsed := time.Since(start); elapsed < 90*time.Millisecond {
		t.Errorf("3 waits took %v, want >= ~100ms", elapsed)
	}
	if got := l.Stats().Waits; got != 3 {
		t.Errorf("Waits = %d, want 3", got)
	}
}

func TestLimiter_Wait_ContextCancelled(t *testing.T) {
	l := NewFromDelay(time.Hour)
	ctx, cancel := context.WithCancel(context.Background())

	_ = l.Wait(ctx) // consume the burst token
	cancel()

	if err := l.Wait(ctx); err == nil {
		t.Error("Wait() should fail on cancelled context")
	}
}

func TestLimiter_Concurrent(t *testing.T) {
	l := NewFromDelay(0)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = l.Wait(ctx)
		}()
	}
	wg.Wait()

	if got := l.Stats().Waits; got != 20 {
		t.Errorf("Waits = %d, want 20", got)
	}
}
