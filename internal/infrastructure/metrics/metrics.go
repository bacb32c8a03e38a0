package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "shop"

// Metrics holds Prometheus collectors for the confirmation flow, the
// notification workers, the Redis pool and the HTTP layer.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	ConfirmationsIssued   *prometheus.CounterVec
	ConfirmationsVerified *prometheus.CounterVec

	Notifications        *prometheus.CounterVec
	NotificationQueue    prometheus.Gauge
	NotificationDuration *prometheus.HistogramVec

	RedisPoolHits       prometheus.Counter
	RedisPoolMisses     prometheus.Counter
	RedisPoolTimeouts   prometheus.Counter
	RedisPoolTotalConns prometheus.Gauge
	RedisPoolIdleConns  prometheus.Gauge

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

// New registers and returns all collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ConfirmationsIssued: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "confirmation", Name: "issued_total",
			Help: "Confirmation keys issued, by purpose.",
		}, []string{"purpose"}),
		ConfirmationsVerified: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "confirmation", Name: "verify_attempts_total",
			Help: "Confirmation attempts, by purpose and outcome.",
		}, []string{"purpose", "outcome"}),
		Notifications: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "notifications_total",
			Help: "Notification tasks by channel and outcome (sent, failed, dropped).",
		}, []string{"channel", "outcome"}),
		NotificationQueue: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "notification_queue_depth",
			Help: "Tasks waiting for a notification worker.",
		}),
		NotificationDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "notification_send_duration_seconds",
			Help:    "Time spent in the outbound transport per task.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 10), // 10ms to ~5s
		}, []string{"channel"}),
		RedisPoolHits: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "redis", Name: "pool_hits_total",
			Help: "Number of times a connection was found in the pool.",
		}),
		RedisPoolMisses: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "redis", Name: "pool_misses_total",
			Help: "Number of times a connection was not found in the pool.",
		}),
		RedisPoolTimeouts: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "redis", Name: "pool_timeouts_total",
			Help: "Number of times a connection was not obtained due to timeout.",
		}),
		RedisPoolTotalConns: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "redis", Name: "pool_total_conns",
			Help: "Number of total connections in the pool.",
		}),
		RedisPoolIdleConns: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "redis", Name: "pool_idle_conns",
			Help: "Number of idle connections in the pool.",
		}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "http", Name: "requests_total",
			Help: "HTTP requests handled.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "http", Name: "request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		}, []string{"method", "route"}),
	}
}

func (m *Metrics) Issued(purpose string) {
	if m == nil {
		return
	}
	m.ConfirmationsIssued.WithLabelValues(purpose).Inc()
}

func (m *Metrics) Verified(purpose, outcome string) {
	if m == nil {
		return
	}
	m.ConfirmationsVerified.WithLabelValues(purpose, outcome).Inc()
}

func (m *Metrics) Notification(channel, outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.Notifications.WithLabelValues(channel, outcome).Inc()
	if took > 0 {
		m.NotificationDuration.WithLabelValues(channel).Observe(took.Seconds())
	}
}

func (m *Metrics) QueueDepth(n int) {
	if m == nil {
		return
	}
	m.NotificationQueue.Set(float64(n))
}

// Handler exposes the collectors registered on g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// unmatchedRoute labels requests that hit no registered route.
const unmatchedRoute = "unmatched"

// Instrument records request counts and latency keyed by the chi route
// pattern. Raw paths never become label values.
func (m *Metrics) Instrument(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)

		route := unmatchedRoute
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		m.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
		m.HTTPDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
