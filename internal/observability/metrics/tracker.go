// Package metrics provides custom Prometheus metrics for the PlateWatch
// tracking service.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// TrackerMetrics contains all Prometheus metrics related to the tracker core
// and the shared state store.
type TrackerMetrics struct {
	DetectionsTotal  *prometheus.CounterVec
	ExpiriesTotal    *prometheus.CounterVec
	TxConflictsTotal prometheus.Counter
	ErrorsTotal      *prometheus.CounterVec
	ActiveVehicles   prometheus.Gauge
	DetectionLatency prometheus.Histogram
	registry         *prometheus.Registry
}

// NewTrackerMetrics creates a new instance of TrackerMetrics.
// It requires a Prometheus registry to register the metrics.
// It returns an error if metric registration fails.
func NewTrackerMetrics(registry *prometheus.Registry) (*TrackerMetrics, error) {
	m := &TrackerMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register tracker metrics: %w", err)
	}
	return m, nil
}

// initMetrics initializes all metrics for TrackerMetrics.
func (m *TrackerMetrics) initMetrics() {
	m.DetectionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "platewatch_detections_total",
		Help: "Total number of processed detection events by resulting action",
	}, []string{"action"})

	m.ExpiriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "platewatch_expiries_total",
		Help: "Total number of processed timer expirations by resulting action",
	}, []string{"action"})

	m.TxConflictsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "platewatch_tx_conflicts_total",
		Help: "Total number of optimistic transaction conflicts that exhausted the retry cap",
	})

	m.ErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "platewatch_errors_total",
		Help: "Total number of tracking errors by category",
	}, []string{"category"})

	m.ActiveVehicles = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "platewatch_active_vehicles",
		Help: "Number of vehicles currently tracked",
	})

	m.DetectionLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "platewatch_detection_duration_seconds",
		Help:    "Time spent processing a detection event including store round-trips",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
	})
}

// Describe implements the prometheus.Collector interface.
func (m *TrackerMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.DetectionsTotal.Describe(ch)
	m.ExpiriesTotal.Describe(ch)
	m.TxConflictsTotal.Describe(ch)
	m.ErrorsTotal.Describe(ch)
	m.ActiveVehicles.Describe(ch)
	m.DetectionLatency.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *TrackerMetrics) Collect(ch chan<- prometheus.Metric) {
	m.DetectionsTotal.Collect(ch)
	m.ExpiriesTotal.Collect(ch)
	m.TxConflictsTotal.Collect(ch)
	m.ErrorsTotal.Collect(ch)
	m.ActiveVehicles.Collect(ch)
	m.DetectionLatency.Collect(ch)
}

// RecordDetection increments the detection counter for an action.
func (m *TrackerMetrics) RecordDetection(action string) {
	if m == nil {
		return
	}
	m.DetectionsTotal.WithLabelValues(action).Inc()
}

// RecordExpiry increments the expiry counter for an action.
func (m *TrackerMetrics) RecordExpiry(action string) {
	if m == nil {
		return
	}
	m.ExpiriesTotal.WithLabelValues(action).Inc()
}

// RecordTxConflict increments the conflict exhaustion counter.
func (m *TrackerMetrics) RecordTxConflict() {
	if m == nil {
		return
	}
	m.TxConflictsTotal.Inc()
}

// RecordError increments the error counter for a category.
func (m *TrackerMetrics) RecordError(category string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(category).Inc()
}

// SetActiveVehicles updates the active vehicle gauge.
func (m *TrackerMetrics) SetActiveVehicles(n int) {
	if m == nil {
		return
	}
	m.ActiveVehicles.Set(float64(n))
}

// ObserveDetectionDuration records the processing time of one detection.
func (m *TrackerMetrics) ObserveDetectionDuration(seconds float64) {
	if m == nil {
		return
	}
	m.DetectionLatency.Observe(seconds)
}
