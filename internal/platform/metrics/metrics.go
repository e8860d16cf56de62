package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for the packager.
type Metrics struct {
	registry            *prometheus.Registry
	requestsTotal       prometheus.Counter
	errorsTotal         prometheus.Counter
	artifactsTotal      *prometheus.CounterVec
	failuresTotal       *prometheus.CounterVec
	segmentBytesTotal   prometheus.Counter
	unsimulatedSegments prometheus.Counter
	segmentSizeMismatch prometheus.Counter
	cachedDescriptors   prometheus.Gauge
	cachedFrameBlocks   prometheus.Gauge
}

// New creates and registers Prometheus metrics for the packager.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		requestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hls_requests_total",
			Help: "Total number of HTTP requests received",
		}),
		errorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hls_errors_total",
			Help: "Total number of HTTP responses with error status (4xx or 5xx)",
		}),
		artifactsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hls_artifacts_total",
			Help: "Artifacts served, by request class and kind",
		}, []string{"class", "kind"}),
		failuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hls_failures_total",
			Help: "Failed requests, by error category",
		}, []string{"category"}),
		segmentBytesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hls_segment_bytes_total",
			Help: "Total segment bytes written to clients",
		}),
		unsimulatedSegments: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hls_unsimulated_segments_total",
			Help: "Segments streamed without a size estimate",
		}),
		segmentSizeMismatch: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hls_segment_size_mismatch_total",
			Help: "Segments whose streamed size differed from the simulated size",
		}),
		cachedDescriptors: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hls_cached_descriptors",
			Help: "Number of media descriptors held in memory",
		}),
		cachedFrameBlocks: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hls_cached_frame_blocks",
			Help: "Number of read-ahead blocks held in the frame cache",
		}),
	}

	registry.MustRegister(
		m.requestsTotal,
		m.errorsTotal,
		m.artifactsTotal,
		m.failuresTotal,
		m.segmentBytesTotal,
		m.unsimulatedSegments,
		m.segmentSizeMismatch,
		m.cachedDescriptors,
		m.cachedFrameBlocks,
	)
	return m
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() {
	m.requestsTotal.Inc()
}

// IncErrors increments the errors counter.
func (m *Metrics) IncErrors() {
	m.errorsTotal.Inc()
}

// IncArtifact counts a successfully started response of the given class
// and kind.
func (m *Metrics) IncArtifact(class, kind string) {
	m.artifactsTotal.WithLabelValues(class, kind).Inc()
}

// IncFailure counts a failed request by error category.
func (m *Metrics) IncFailure(category string) {
	m.failuresTotal.WithLabelValues(category).Inc()
}

// AddSegmentBytes adds n streamed segment bytes.
func (m *Metrics) AddSegmentBytes(n int64) {
	m.segmentBytesTotal.Add(float64(n))
}

// IncUnsimulatedSegments counts a segment streamed without a known length.
func (m *Metrics) IncUnsimulatedSegments() {
	m.unsimulatedSegments.Inc()
}

// IncSegmentSizeMismatch counts a segment whose size differed from its estimate.
func (m *Metrics) IncSegmentSizeMismatch() {
	m.segmentSizeMismatch.Inc()
}

// SetCachedDescriptors sets the cached descriptors gauge.
func (m *Metrics) SetCachedDescriptors(n int) {
	m.cachedDescriptors.Set(float64(n))
}

// SetCachedFrameBlocks sets the frame cache gauge.
func (m *Metrics) SetCachedFrameBlocks(n int) {
	m.cachedFrameBlocks.Set(float64(n))
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values.
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
