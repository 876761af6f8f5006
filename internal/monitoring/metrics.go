package monitoring

import (
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the pipeline's counters. Hot-path code increments plain
// atomics; Prometheus reads them lazily through GaugeFuncs on scrape.
type Metrics struct {
	// Telemetry ingest counters
	TelemetryLines       atomic.Uint64
	TelemetryParseErrors atomic.Uint64
	TelemetryOutOfOrder  atomic.Uint64

	// Detection pipeline counters
	RegionsDetected   atomic.Uint64
	TargetsResolved   atomic.Uint64
	DetectionsDropped atomic.Uint64

	registry *prometheus.Registry
}

// NewMetrics creates a Metrics instance with all collectors registered on
// a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	gauge := func(name, help string, load func() uint64) {
		m.registry.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{Name: name, Help: help},
			func() float64 { return float64(load()) },
		))
	}

	gauge("turret_telemetry_lines_total",
		"Total telemetry lines accepted into history buffers",
		m.TelemetryLines.Load)
	gauge("turret_telemetry_parse_errors_total",
		"Total telemetry lines rejected by the parser",
		m.TelemetryParseErrors.Load)
	gauge("turret_telemetry_out_of_order_total",
		"Total telemetry samples discarded for stale timestamps",
		m.TelemetryOutOfOrder.Load)
	gauge("turret_regions_detected_total",
		"Total raw detector regions before filtering",
		m.RegionsDetected.Load)
	gauge("turret_targets_resolved_total",
		"Total detections resolved to world-frame positions",
		m.TargetsResolved.Load)
	gauge("turret_detections_dropped_total",
		"Total detections dropped for missing pose or depth",
		m.DetectionsDropped.Load)

	return m
}

// Handler returns the HTTP handler serving this instance's registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Default is the process-wide metrics instance. Subsystems that are not
// handed an explicit *Metrics record here.
var Default = NewMetrics()
