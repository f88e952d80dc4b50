// Package shutdown cancels in-flight probing on SIGINT/SIGTERM and runs
// registered cleanup in reverse order.
package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/PentesterFlow/APIProbe/internal/logger"
)

// Callback is a function called during shutdown.
type Callback func(ctx context.Context) error

type namedCallback struct {
	name string
	fn   Callback
}

// Handler manages graceful shutdown.
type Handler struct {
	mu        sync.Mutex
	callbacks []namedCallback

	isShuttingDown atomic.Bool
	done           chan struct{}
	timeout        time.Duration
	result         Result

	ctx    context.Context
	cancel context.CancelFunc

	sigChan chan os.Signal
	logger  *logger.Logger
}

// Config holds shutdown configuration.
type Config struct {
	// Timeout bounds the whole callback phase.
	Timeout time.Duration
	Signals []os.Signal
	// Parent, when set, cancels the handler's context too.
	Parent context.Context
	Logger *logger.Logger
}

// DefaultConfig returns default configuration.
func DefaultConfig() Config {
	return Config{
		Timeout: 10 * time.Second,
		Signals: []os.Signal{syscall.SIGINT, syscall.SIGTERM},
	}
}

// New creates a handler and starts listening for signals.
func New(cfg Config) *Handler {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if len(cfg.Signals) == 0 {
		cfg.Signals = []os.Signal{syscall.SIGINT, syscall.SIGTERM}
	}
	if cfg.Parent == nil {
		cfg.Parent = context.Background()
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}

	ctx, cancel := context.WithCancel(cfg.Parent)

	h := &Handler{
		done:    make(chan struct{}),
		timeout: cfg.Timeout,
		ctx:     ctx,
		cancel:  cancel,
		sigChan: make(chan os.Signal, 1),
		logger:  cfg.Logger.WithComponent("shutdown"),
	}
	signal.Notify(h.sigChan, cfg.Signals...)
	go h.listen()

	return h
}

func (h *Handler) listen() {
	select {
	case sig := <-h.sigChan:
		h.logger.Warnf("Received %v, stopping", sig)
		h.Shutdown()
	case <-h.ctx.Done():
		h.Shutdown()
	}
}

// Register adds a callback. Callbacks run last-registered first.
func (h *Handler) Register(name string, fn Callback) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.callbacks = append(h.callbacks, namedCallback{name: name, fn: fn})
}

// RegisterFunc registers a simple cleanup function.
func (h *Handler) RegisterFunc(name string, fn func()) {
	h.Register(name, func(context.Context) error {
		fn()
		return nil
	})
}

// GracefulServer is anything with an http.Server style Shutdown.
type GracefulServer interface {
	Shutdown(ctx context.Context) error
}

// RegisterServer registers a GracefulServer for shutdown.
func (h *Handler) RegisterServer(name string, server GracefulServer) {
	h.Register(name, server.Shutdown)
}

// Context is cancelled when shutdown begins.
func (h *Handler) Context() context.Context {
	return h.ctx
}

// IsShuttingDown returns whether shutdown is in progress.
func (h *Handler) IsShuttingDown() bool {
	return h.isShuttingDown.Load()
}

// Done is closed when shutdown completes.
func (h *Handler) Done() <-chan struct{} {
	return h.done
}

// Shutdown cancels the context and runs callbacks. Only the first call
// does anything; later calls wait for it and return the same result.
func (h *Handler) Shutdown() Result {
	if !h.isShuttingDown.CompareAndSwap(false, true) {
		<-h.done
		return h.result
	}

	start := time.Now()
	signal.Stop(h.sigChan)
	h.cancel()

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	h.mu.Lock()
	callbacks := make([]namedCallback, len(h.callbacks))
	copy(callbacks, h.callbacks)
	h.mu.Unlock()

	var errs []error
	for i := len(callbacks) - 1; i >= 0; i-- {
		if err := run(ctx, callbacks[i]); err != nil {
			h.logger.WithError(err).Warnf("Shutdown step %q failed", callbacks[i].name)
			errs = append(errs, err)
		}
	}

	h.result = Result{Elapsed: time.Since(start), Errors: errs}
	h.logger.Debugf("Shutdown finished in %v", h.result.Elapsed)
	close(h.done)
	return h.result
}

func run(ctx context.Context, cb namedCallback) error {
	done := make(chan error, 1)
	go func() {
		done <- cb.fn(ctx)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return &TimeoutError{CallbackName: cb.name}
	}
}

// Trigger simulates a termination signal.
func (h *Handler) Trigger() {
	select {
	case h.sigChan <- syscall.SIGTERM:
	default:
	}
}

// TimeoutError is returned when a callback outlives the timeout.
type TimeoutError struct {
	CallbackName string
}

func (e *TimeoutError) Error() string {
	return "shutdown callback timed out: " + e.CallbackName
}

// Result holds the outcome of a shutdown.
type Result struct {
	Elapsed time.Duration
	Errors  []error
}

// HasErrors returns whether any callback failed.
func (r Result) HasErrors() bool {
	return len(r.Errors) > 0
}
