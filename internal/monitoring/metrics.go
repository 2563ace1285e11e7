package monitoring

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics contains the Prometheus collectors for the gateway
type Metrics struct {
	requestsTotal    *prometheus.CounterVec
	chatRequests     *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	upstreamDuration *prometheus.HistogramVec
	streamFrames     *prometheus.CounterVec
	uploadCacheOps   *prometheus.CounterVec
	uploadsTotal     *prometheus.CounterVec
}

var (
	once          sync.Once
	globalMetrics *Metrics
)

// Get returns the process-wide metrics instance
func Get() *Metrics {
	once.Do(func() {
		globalMetrics = newMetrics()
	})
	return globalMetrics
}

func newMetrics() *Metrics {
	return &Metrics{
		requestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "qwen_bridge_requests_total",
				Help: "Total number of gateway requests",
			},
			[]string{"path", "status"},
		),
		chatRequests: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "qwen_bridge_chat_requests_total",
				Help: "Chat completion requests by classified mode",
			},
			[]string{"mode"},
		),
		requestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "qwen_bridge_request_duration_seconds",
				Help:    "Duration of gateway requests in seconds",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
			},
			[]string{"path"},
		),
		upstreamDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "qwen_bridge_upstream_call_duration_seconds",
				Help:    "Duration of upstream backend calls in seconds",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
			},
			[]string{"operation"},
		),
		streamFrames: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "qwen_bridge_stream_frames_total",
				Help: "Total number of backend stream frames handled",
			},
			[]string{"outcome"},
		),
		uploadCacheOps: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "qwen_bridge_upload_cache_operations_total",
				Help: "Content cache lookups by result",
			},
			[]string{"result"},
		),
		uploadsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "qwen_bridge_uploads_total",
				Help: "Total number of asset uploads by result",
			},
			[]string{"result"},
		),
	}
}

// RecordRequest records one finished gateway request
func (m *Metrics) RecordRequest(path string, status int, duration time.Duration) {
	m.requestsTotal.WithLabelValues(path, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(path).Observe(duration.Seconds())
}

// RecordChatRequest counts one chat request by classified mode
func (m *Metrics) RecordChatRequest(mode string) {
	m.chatRequests.WithLabelValues(mode).Inc()
}

// RecordUpstreamCall records the latency of one upstream operation
func (m *Metrics) RecordUpstreamCall(operation string, duration time.Duration) {
	m.upstreamDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordStreamFrame counts a handled backend frame by outcome
// (translated, skipped, error, discarded)
func (m *Metrics) RecordStreamFrame(outcome string) {
	m.streamFrames.WithLabelValues(outcome).Inc()
}

// RecordCacheLookup counts a content cache lookup (hit or miss)
func (m *Metrics) RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.uploadCacheOps.WithLabelValues(result).Inc()
}

// RecordUpload counts one upload attempt by result (ok or failed)
func (m *Metrics) RecordUpload(success bool) {
	result := "failed"
	if success {
		result = "ok"
	}
	m.uploadsTotal.WithLabelValues(result).Inc()
}

// Handler exposes the default registry in Prometheus text format
func Handler() http.Handler {
	return promhttp.Handler()
}

// statusRecorder captures the response status for request metrics
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// MetricsMiddleware records request counts and durations per path
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		Get().RecordRequest(r.URL.Path, rec.status, time.Since(start))
	})
}
