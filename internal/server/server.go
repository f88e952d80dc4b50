// Package server exposes the analyzer over HTTP for a browser front end.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	probehttp "github.com/PentesterFlow/APIProbe/internal/http"
	"github.com/PentesterFlow/APIProbe/internal/logger"
)

const (
	swaggerFile  = "swagger.json"
	analysisFile = "analysis.json"
	maxBodyBytes = 1 << 20
)

// Config holds service configuration.
type Config struct {
	Addr            string
	StaticDir       string
	GenerateTimeout time.Duration
	// Binary is the analyzer executable; empty means this executable.
	Binary string
}

// DefaultConfig returns default configuration.
func DefaultConfig() Config {
	return Config{
		Addr:            ":5000",
		StaticDir:       "web/build",
		GenerateTimeout: 300 * time.Second,
	}
}

// Server serves the generate and health endpoints plus the static UI.
type Server struct {
	cfg    Config
	runner Runner
	logger *logger.Logger
	http   *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithRunner replaces the subprocess runner.
func WithRunner(r Runner) Option {
	return func(s *Server) { s.runner = r }
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// New creates a Server.
func New(cfg Config, opts ...Option) *Server {
	def := DefaultConfig()
	if cfg.Addr == "" {
		cfg.Addr = def.Addr
	}
	if cfg.GenerateTimeout <= 0 {
		cfg.GenerateTimeout = def.GenerateTimeout
	}

	s := &Server{cfg: cfg, logger: logger.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	if s.runner == nil {
		s.runner = ExecRunner{Binary: cfg.Binary}
	}
	s.logger = s.logger.WithComponent("server")
	s.http = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/generate", s.handleGenerate)
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.Handle("/", s.staticHandler())
	return withLogging(s.logger, withCORS(mux))
}

// ListenAndServe serves until Shutdown is called.
func (s *Server) ListenAndServe() error {
	s.logger.Infof("Listening on %s", s.cfg.Addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "healthy", Message: "API server is running"})
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadInput, "Request body must be a JSON object", err.Error())
		return
	}

	req.URL = strings.TrimSpace(req.URL)
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, CodeBadInput, "URL is required", "")
		return
	}
	if err := probehttp.ValidateBaseURL(req.URL); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadInput, "URL is invalid", err.Error())
		return
	}

	dir, err := os.MkdirTemp("", "apiprobe-")
	if err != nil {
		writeError(w, http.StatusInternalServerError, CodeInternal, "Failed to create work directory", err.Error())
		return
	}
	defer os.RemoveAll(dir)

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.GenerateTimeout)
	defer cancel()

	args := GenerateArgs(req)
	log := s.logger.WithField("target", req.URL)
	log.Infof("Running analyzer with %d argument(s)", len(args))

	stdout, stderr, err := s.runner.Run(ctx, dir, args)
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		log.Warn("Analyzer timed out")
		writeError(w, http.StatusRequestTimeout, CodeUpstreamTimeout,
			fmt.Sprintf("Generation timed out (took longer than %s)", s.cfg.GenerateTimeout), "")
		return
	}
	if err != nil {
		details := string(stderr)
		if details == "" {
			details = string(stdout)
		}
		log.WithError(err).Error("Analyzer failed")
		writeError(w, http.StatusInternalServerError, CodeInternal, "Failed to generate API documentation", details)
		return
	}

	swagger, err := os.ReadFile(filepath.Join(dir, swaggerFile))
	if err != nil {
		writeError(w, http.StatusInternalServerError, CodeInternal, "Swagger file was not generated", string(stdout))
		return
	}
	if !json.Valid(swagger) {
		writeError(w, http.StatusInternalServerError, CodeInternal, "Swagger file is not valid JSON", "")
		return
	}

	writeJSON(w, http.StatusOK, GenerateResponse{
		Success: true,
		Swagger: swagger,
		Message: "API documentation generated successfully",
	})
}

// GenerateArgs builds the analyzer command line for req.
func GenerateArgs(req GenerateRequest) []string {
	title := req.APIName
	if title == "" {
		title = "API Documentation for " + req.URL
	}

	args := []string{
		"analyze", req.URL,
		"--output", analysisFile,
		"--swagger",
		"--swagger-output", swaggerFile,
		"--title", title,
	}
	if req.APIDescription != "" {
		args = append(args, "--description", req.APIDescription)
	}
	for _, ep := range CustomEndpoints(req.CustomEndpoints) {
		args = append(args, "--endpoints", ep)
	}
	return args
}

// CustomEndpoints splits newline-separated input, dropping blank lines and
// # comments.
func CustomEndpoints(raw string) []string {
	var out []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out
}

func (s *Server) staticHandler() http.Handler {
	index := filepath.Join(s.cfg.StaticDir, "index.html")
	if s.cfg.StaticDir == "" {
		return http.HandlerFunc(serveFallback)
	}
	if _, err := os.Stat(index); err != nil {
		s.logger.Warnf("No UI build at %s, serving instructions page", s.cfg.StaticDir)
		return http.HandlerFunc(serveFallback)
	}
	return http.FileServer(http.Dir(s.cfg.StaticDir))
}

func serveFallback(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	io.WriteString(w, fallbackPage)
}

const fallbackPage = `<!DOCTYPE html>
<html>
<head>
  <title>APIProbe</title>
  <style>
    body { font-family: Arial, sans-serif; text-align: center; padding: 50px; }
    .info { color: #1976d2; background: #e3f2fd; padding: 20px; border-radius: 8px; margin: 20px; }
    code { background: #f5f5f5; padding: 2px 6px; border-radius: 4px; }
  </style>
</head>
<body>
  <h1>APIProbe</h1>
  <div class="info">
    <h2>Web UI not built</h2>
    <p>Build the front end into the static directory and restart, or pass <code>--static-dir</code>.</p>
  </div>
  <div class="info">
    <h3>The API is available:</h3>
    <ul style="text-align: left; display: inline-block;">
      <li><code>POST /api/generate</code> - generate OpenAPI documentation</li>
      <li><code>GET /api/health</code> - health check</li>
    </ul>
  </div>
</body>
</html>
`
