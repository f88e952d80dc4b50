package prober

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/PentesterFlow/APIProbe/internal/logger"
	"github.com/PentesterFlow/APIProbe/internal/probe"
	"github.com/PentesterFlow/APIProbe/internal/progress"
	"github.com/PentesterFlow/APIProbe/internal/state"
)

// Option is a functional option for configuring the Prober.
type Option func(*Prober) error

// WithConfig replaces the whole configuration.
func WithConfig(cfg *Config) Option {
	return func(p *Prober) error {
		if cfg == nil {
			return fmt.Errorf("config is nil")
		}
		p.config = cfg.Clone()
		return nil
	}
}

// WithTarget sets the base URL to analyze.
func WithTarget(url string) Option {
	return func(p *Prober) error {
		p.config.Target = url
		return nil
	}
}

// WithEndpoints switches to explicit-list mode with the given paths.
func WithEndpoints(paths ...string) Option {
	return func(p *Prober) error {
		p.config.Endpoints = append(p.config.Endpoints, paths...)
		return nil
	}
}

// WithEndpointsFile reads additional explicit paths from a file.
func WithEndpointsFile(path string) Option {
	return func(p *Prober) error {
		p.config.EndpointsFile = path
		return nil
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(p *Prober) error {
		p.config.Timeout = timeout
		return nil
	}
}

// WithDelay sets the minimum spacing between requests.
func WithDelay(delay time.Duration) Option {
	return func(p *Prober) error {
		if delay < 0 {
			delay = 0
		}
		p.config.Delay = delay
		return nil
	}
}

// WithConcurrency sets how many endpoints are analyzed at once.
func WithConcurrency(n int) Option {
	return func(p *Prober) error {
		if n < 1 {
			n = 1
		}
		p.config.Concurrency = n
		return nil
	}
}

// WithParameterCatalog selects a built-in parameter catalog by name.
func WithParameterCatalog(name string) Option {
	return func(p *Prober) error {
		p.config.ParameterCatalog = name
		return nil
	}
}

// WithCustomParameters probes exactly the given parameters.
func WithCustomParameters(catalog probe.Catalog) Option {
	return func(p *Prober) error {
		p.config.ParameterCatalog = CatalogCustom
		p.config.CustomParameters = catalog
		return nil
	}
}

// WithScope adds include and exclude path globs.
func WithScope(include, exclude []string) Option {
	return func(p *Prober) error {
		p.config.Scope.Include = append(p.config.Scope.Include, include...)
		p.config.Scope.Exclude = append(p.config.Scope.Exclude, exclude...)
		return nil
	}
}

// WithHeaders sets headers sent with every probe.
func WithHeaders(headers map[string]string) Option {
	return func(p *Prober) error {
		p.config.Headers = headers
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(p *Prober) error {
		p.logger = l
		return nil
	}
}

// WithHTTPClient sends probes through hc's transport. The configured
// timeout still applies.
func WithHTTPClient(hc *http.Client) Option {
	return func(p *Prober) error {
		if hc == nil {
			return fmt.Errorf("http client is nil")
		}
		p.transport = hc.Transport
		if p.transport == nil {
			p.transport = http.DefaultTransport
		}
		return nil
	}
}

// WithProgress enables the live progress line.
func WithProgress(d *progress.Display) Option {
	return func(p *Prober) error {
		p.progress = d
		return nil
	}
}

// WithStream writes each endpoint analysis to w as it completes.
func WithStream(w io.Writer) Option {
	return func(p *Prober) error {
		p.config.Output.Stream = true
		p.streamTo = w
		return nil
	}
}

// WithSwagger also emits an OpenAPI document with the given overrides.
func WithSwagger(title, description string) Option {
	return func(p *Prober) error {
		p.config.Output.Swagger = true
		p.config.Output.Title = title
		p.config.Output.Description = description
		return nil
	}
}

// WithStateStore archives every run to store.
func WithStateStore(store state.Store) Option {
	return func(p *Prober) error {
		p.store = store
		return nil
	}
}
