package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector implements metrics collection for file access operations.
type Collector struct {
	config   *Config
	registry *prometheus.Registry

	opens        *prometheus.CounterVec
	misses       prometheus.Counter
	bytesRead    prometheus.Counter
	bytesWritten prometheus.Counter
	errors       *prometheus.CounterVec

	// HTTP server for metrics endpoint
	server *http.Server
}

// Config represents metrics configuration.
type Config struct {
	Enabled   bool   `yaml:"enabled"`
	Port      int    `yaml:"port"`
	Path      string `yaml:"path"`
	Namespace string `yaml:"namespace"`
}

// NewCollector creates a new metrics collector.
func NewCollector(config *Config) (*Collector, error) {
	if config == nil {
		config = &Config{
			Enabled:   true,
			Port:      9180,
			Path:      "/metrics",
			Namespace: "assetfs",
		}
	}

	if !config.Enabled {
		return &Collector{config: config}, nil
	}

	registry := prometheus.NewRegistry()
	c := &Collector{
		config:   config,
		registry: registry,
	}

	c.opens = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: config.Namespace,
		Name:      "opens_total",
		Help:      "Successful file opens by search tier and backend.",
	}, []string{"tier", "backend"})

	c.misses = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: config.Namespace,
		Name:      "resolution_misses_total",
		Help:      "Open requests that exhausted every search tier.",
	})

	c.bytesRead = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: config.Namespace,
		Name:      "read_bytes_total",
		Help:      "Bytes read through handles.",
	})

	c.bytesWritten = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: config.Namespace,
		Name:      "written_bytes_total",
		Help:      "Bytes written through handles.",
	})

	c.errors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: config.Namespace,
		Name:      "errors_total",
		Help:      "Handle operation errors by operation.",
	}, []string{"op"})

	for _, m := range []prometheus.Collector{c.opens, c.misses, c.bytesRead, c.bytesWritten, c.errors} {
		if err := registry.Register(m); err != nil {
			return nil, fmt.Errorf("failed to register metrics: %w", err)
		}
	}

	return c, nil
}

// enabled reports whether the collector records anything. All Record methods
// tolerate a nil receiver so call sites need no guards.
func (c *Collector) enabled() bool {
	return c != nil && c.config != nil && c.config.Enabled
}

// RecordOpen counts a successful open served from the given tier/backend.
func (c *Collector) RecordOpen(tier, backend string) {
	if !c.enabled() {
		return
	}
	c.opens.WithLabelValues(tier, backend).Inc()
}

// RecordMiss counts an open that exhausted every tier.
func (c *Collector) RecordMiss() {
	if !c.enabled() {
		return
	}
	c.misses.Inc()
}

// RecordRead counts bytes read through a handle.
func (c *Collector) RecordRead(n int) {
	if !c.enabled() {
		return
	}
	c.bytesRead.Add(float64(n))
}

// RecordWrite counts bytes written through a handle.
func (c *Collector) RecordWrite(n int) {
	if !c.enabled() {
		return
	}
	c.bytesWritten.Add(float64(n))
}

// RecordError counts a failed handle operation.
func (c *Collector) RecordError(op string) {
	if !c.enabled() {
		return
	}
	c.errors.WithLabelValues(op).Inc()
}

// Handler returns the HTTP handler serving the collector's registry.
func (c *Collector) Handler() http.Handler {
	if !c.enabled() {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Start starts the metrics HTTP server.
func (c *Collector) Start(ctx context.Context) error {
	if !c.enabled() {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(c.config.Path, c.Handler())

	c.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", c.config.Port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := c.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Printf("metrics server error: %v\n", err)
		}
	}()

	return nil
}

// Stop shuts down the metrics HTTP server.
func (c *Collector) Stop(ctx context.Context) error {
	if c == nil || c.server == nil {
		return nil
	}
	return c.server.Shutdown(ctx)
}
