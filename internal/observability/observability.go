// Package observability provides Prometheus metrics for monitoring the
// PlateWatch tracking service and an optional HTTP telemetry endpoint.
package observability

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tphakala/platewatch-go/internal/conf"
	"github.com/tphakala/platewatch-go/internal/logging"
	metricspkg "github.com/tphakala/platewatch-go/internal/observability/metrics"
)

// Metrics bundles all metric collectors behind one registry.
type Metrics struct {
	registry *prometheus.Registry
	Tracker  *metricspkg.TrackerMetrics
}

// NewMetrics creates a new instance of Metrics, initializing all metric
// collectors. It returns an error if any metric collector fails to register.
func NewMetrics() (*Metrics, error) {
	registry := prometheus.NewRegistry()

	trackerMetrics, err := metricspkg.NewTrackerMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create tracker metrics: %w", err)
	}

	return &Metrics{
		registry: registry,
		Tracker:  trackerMetrics,
	}, nil
}

// RegisterHandlers attaches the Prometheus scrape handler to a mux.
func (m *Metrics) RegisterHandlers(mux *http.ServeMux) {
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}

// Endpoint handles all operations related to Prometheus-compatible telemetry.
type Endpoint struct {
	server        *http.Server
	listenAddress string
	metrics       *Metrics
}

// NewEndpoint creates a new telemetry Endpoint from the provided settings
// and metrics. It returns an error if telemetry is not enabled.
func NewEndpoint(settings *conf.Settings, metrics *Metrics) (*Endpoint, error) {
	if !settings.Telemetry.Enabled {
		return nil, fmt.Errorf("telemetry not enabled in settings")
	}

	return &Endpoint{
		listenAddress: settings.Telemetry.Listen,
		metrics:       metrics,
	}, nil
}

// Start runs the HTTP server for the telemetry endpoint and shuts it down
// when quitChan closes.
func (e *Endpoint) Start(wg *sync.WaitGroup, quitChan <-chan struct{}) {
	mux := http.NewServeMux()
	e.metrics.RegisterHandlers(mux)

	e.server = &http.Server{
		Addr:              e.listenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	log := logging.ForService("telemetry")

	wg.Add(1)
	go func() {
		defer wg.Done()
		if log != nil {
			log.Info("telemetry endpoint starting", "address", e.listenAddress)
		}
		if err := e.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if log != nil {
				log.Error("telemetry HTTP server error", "error", err)
			}
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		<-quitChan
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := e.server.Shutdown(ctx); err != nil && log != nil {
			log.Error("telemetry endpoint shutdown error", "error", err)
		}
	}()
}
