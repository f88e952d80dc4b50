// Package progress renders a live status line and the end-of-run summary.
package progress

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/PentesterFlow/APIProbe/internal/analysis"
)

// Phase is the stage a run is in.
type Phase string

// Run phases.
const (
	PhaseDiscovery Phase = "Discovery"
	PhaseAnalysis  Phase = "Analysis"
)

// Display manages progress bar display during a run.
type Display struct {
	mu      sync.Mutex
	out     io.Writer
	started bool
	stopped bool

	phase    Phase
	done     atomic.Int64
	total    atomic.Int64
	found    atomic.Int64
	requests atomic.Int64
	errors   atomic.Int64

	startTime time.Time
	target    string
	lastLine  string
}

// New creates a progress display on stderr.
func New() *Display {
	return NewWithWriter(os.Stderr)
}

// NewWithWriter creates a progress display on w.
func NewWithWriter(w io.Writer) *Display {
	return &Display{out: w}
}

// Start begins the progress display.
func (d *Display) Start(target string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.started {
		return
	}

	d.started = true
	d.startTime = time.Now()
	d.target = target
}

// SetPhase switches phase and resets the done/total counters.
func (d *Display) SetPhase(phase Phase, total int) {
	d.mu.Lock()
	d.phase = phase
	d.mu.Unlock()
	d.done.Store(0)
	d.total.Store(int64(total))
	d.render()
}

// Update records the current counters and redraws.
func (d *Display) Update(done, found int, requests, errors int64) {
	d.done.Store(int64(done))
	d.found.Store(int64(found))
	d.requests.Store(requests)
	d.errors.Store(errors)
	d.render()
}

func (d *Display) render() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.started || d.stopped {
		return
	}

	done, total := d.done.Load(), d.total.Load()
	progress := 0
	if total > 0 {
		progress = int(float64(done) / float64(total) * 100)
		if progress > 100 {
			progress = 100
		}
	}

	elapsed := time.Since(d.startTime)
	speed := float64(0)
	if elapsed.Seconds() > 0 {
		speed = float64(d.requests.Load()) / elapsed.Seconds()
	}

	barWidth := 30
	filled := progress * barWidth / 100
	bar := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)

	line := fmt.Sprintf("\r%-9s [%s] %3d%% | %d/%d | Endpoints: %d | Errors: %d | %.1f req/s | %s",
		d.phase, bar, progress, done, total, d.found.Load(), d.errors.Load(), speed, formatDuration(elapsed))

	if len(line) < len(d.lastLine) {
		fmt.Fprint(d.out, "\r"+strings.Repeat(" ", len(d.lastLine)))
	}
	fmt.Fprint(d.out, line)
	d.lastLine = line
}

// Stop stops the progress display.
func (d *Display) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped || !d.started {
		return
	}

	d.stopped = true
	fmt.Fprintln(d.out)
}

// PrintSummary prints the end-of-run report for doc.
func PrintSummary(w io.Writer, doc *analysis.Document, elapsed time.Duration) {
	meta, s := doc.Metadata, doc.Summary

	fmt.Fprintln(w)
	fmt.Fprintln(w, "╔══════════════════════════════════════════════════════════════╗")
	fmt.Fprintln(w, "║                      Analysis Complete                       ║")
	fmt.Fprintln(w, "╚══════════════════════════════════════════════════════════════╝")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  Base URL:            %s\n", truncateURL(meta.BaseURL, 50))
	if meta.Mode == analysis.ModeExplicit {
		fmt.Fprintf(w, "  Custom Endpoints:    %d\n", len(meta.CustomEndpoints))
	}
	fmt.Fprintf(w, "  Endpoints:           %d (%d analyzed successfully)\n", s.TotalEndpoints, s.SuccessfulAnalyses)
	if meta.Mode == analysis.ModeCatalog {
		fmt.Fprintf(w, "  Discovery Rate:      %s\n", s.DiscoveryRate)
	}
	fmt.Fprintf(w, "  Create:              %d\n", s.CRUDOperations.Create)
	fmt.Fprintf(w, "  Read:                %d\n", s.CRUDOperations.Read)
	fmt.Fprintf(w, "  Update:              %d\n", s.CRUDOperations.Update)
	fmt.Fprintf(w, "  Delete:              %d\n", s.CRUDOperations.Delete)
	fmt.Fprintf(w, "  Parameters:          %d\n", s.TotalParameters)
	fmt.Fprintf(w, "  Validation Patterns: %d\n", len(s.ValidationPatterns))
	fmt.Fprintf(w, "  Duration:            %s\n", formatDuration(elapsed))
	fmt.Fprintln(w)
}

// truncateURL truncates a URL to maxLen characters.
func truncateURL(url string, maxLen int) string {
	if len(url) <= maxLen {
		return url
	}
	return url[:maxLen-3] + "..."
}

// formatDuration formats a duration for display.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%02ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
