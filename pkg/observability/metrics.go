package observability

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "compkgs"

// Metrics implements [PipelineHooks], [CacheHooks] and [HTTPHooks] with
// Prometheus collectors on a private registry.
//
// Metrics collected:
//   - compkgs_stage_duration_seconds: pipeline stage duration by stage
//   - compkgs_stage_errors_total: failed stages by stage
//   - compkgs_components_total: resolved components by supported=true|false
//   - compkgs_cache_events_total: cache lookups by key_type and event (hit, miss, set)
//   - compkgs_cache_stored_bytes_total: bytes written to the cache by key_type
//   - compkgs_download_requests_total: release downloads by host and status
//   - compkgs_download_duration_seconds: release download duration by host
//   - compkgs_api_requests_total: API requests by route and status
//   - compkgs_api_request_duration_seconds: API request duration by route
type Metrics struct {
	reg *prometheus.Registry

	stageDuration    *prometheus.HistogramVec
	stageErrors      *prometheus.CounterVec
	components       *prometheus.CounterVec
	cacheEvents      *prometheus.CounterVec
	cacheBytes       *prometheus.CounterVec
	downloads        *prometheus.CounterVec
	downloadDuration *prometheus.HistogramVec
	apiRequests      *prometheus.CounterVec
	apiDuration      *prometheus.HistogramVec
}

// NewMetrics creates a Metrics with its own registry. An empty namespace
// uses [DefaultNamespace].
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		reg: reg,
		stageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of generate pipeline stages in seconds",
			Buckets:   []float64{0.01, 0.1, 1, 5, 15, 60, 300},
		}, []string{"stage"}),
		stageErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_errors_total",
			Help:      "Total number of failed pipeline stages",
		}, []string{"stage"}),
		components: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "components_total",
			Help:      "Total number of resolved components",
		}, []string{"supported"}),
		cacheEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_events_total",
			Help:      "Total number of cache hits, misses and writes",
		}, []string{"key_type", "event"}),
		cacheBytes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_stored_bytes_total",
			Help:      "Total number of bytes written to the cache",
		}, []string{"key_type"}),
		downloads: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "download_requests_total",
			Help:      "Total number of release downloads by status",
		}, []string{"host", "status"}),
		downloadDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "download_duration_seconds",
			Help:      "Release download duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"host"}),
		apiRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_requests_total",
			Help:      "Total number of API requests",
		}, []string{"route", "status"}),
		apiDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "api_request_duration_seconds",
			Help:      "API request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
}

// Register installs m as the global pipeline, cache and HTTP hooks.
func (m *Metrics) Register() {
	SetPipelineHooks(m)
	SetCacheHooks(m)
	SetHTTPHooks(m)
}

// Gatherer returns the registry holding the collectors.
func (m *Metrics) Gatherer() prometheus.Gatherer { return m.reg }

// WriteTextfile writes the current values in the text exposition format,
// as read by the node exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.reg)
}

// Handler serves the collected metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// Middleware records API requests by chi route pattern, so that path
// parameters do not create a series per value.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.apiRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
		m.apiDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

func (m *Metrics) OnStageStart(context.Context, string) {}

func (m *Metrics) OnStageComplete(_ context.Context, stage string, duration time.Duration, err error) {
	m.stageDuration.WithLabelValues(stage).Observe(duration.Seconds())
	if err != nil {
		m.stageErrors.WithLabelValues(stage).Inc()
	}
}

func (m *Metrics) OnComponent(_ context.Context, _ string, supported bool) {
	m.components.WithLabelValues(strconv.FormatBool(supported)).Inc()
}

func (m *Metrics) OnCacheHit(_ context.Context, keyType string) {
	m.cacheEvents.WithLabelValues(keyType, "hit").Inc()
}

func (m *Metrics) OnCacheMiss(_ context.Context, keyType string) {
	m.cacheEvents.WithLabelValues(keyType, "miss").Inc()
}

func (m *Metrics) OnCacheSet(_ context.Context, keyType string, size int) {
	m.cacheEvents.WithLabelValues(keyType, "set").Inc()
	m.cacheBytes.WithLabelValues(keyType).Add(float64(size))
}

func (m *Metrics) OnRequest(context.Context, string, string, string) {}

func (m *Metrics) OnResponse(_ context.Context, _, host, _ string, statusCode int, duration time.Duration) {
	m.downloads.WithLabelValues(host, strconv.Itoa(statusCode)).Inc()
	m.downloadDuration.WithLabelValues(host).Observe(duration.Seconds())
}

func (m *Metrics) OnError(_ context.Context, _, host, _ string, _ error) {
	m.downloads.WithLabelValues(host, "error").Inc()
}
