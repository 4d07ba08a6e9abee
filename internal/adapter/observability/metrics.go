package observability

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"route", "method"},
	)

	AIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_requests_total",
			Help: "Total number of AI requests by provider and operation",
		},
		[]string{"provider", "operation"},
	)
	AIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ai_request_duration_seconds",
			Help:    "AI request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"provider", "operation"},
	)

	SessionsStartedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "interview_sessions_started_total",
			Help: "Total number of interview sessions initialized",
		},
	)
	SessionsCompletedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "interview_sessions_completed_total",
			Help: "Total number of interview sessions completed",
		},
	)
	ResponsesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "interview_responses_total",
			Help: "Total number of candidate responses by classification",
		},
		[]string{"classification"},
	)
	SessionConflictsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "interview_session_conflicts_total",
			Help: "Total number of concurrent-modification rejections",
		},
	)
	SnapshotsStoredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "monitoring_snapshots_stored_total",
			Help: "Total number of monitoring snapshots stored by kind",
		},
		[]string{"kind"},
	)
	EventPublishFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "interview_event_publish_failures_total",
			Help: "Total number of lifecycle events that failed to publish",
		},
	)

	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		},
		[]string{"name"},
	)
)

func InitMetrics() {
	prometheus.MustRegister(HTTPRequestsTotal)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(AIRequestsTotal)
	prometheus.MustRegister(AIRequestDuration)
	prometheus.MustRegister(SessionsStartedTotal)
	prometheus.MustRegister(SessionsCompletedTotal)
	prometheus.MustRegister(ResponsesTotal)
	prometheus.MustRegister(SessionConflictsTotal)
	prometheus.MustRegister(SnapshotsStoredTotal)
	prometheus.MustRegister(EventPublishFailuresTotal)
	prometheus.MustRegister(CircuitBreakerState)
}

// HTTPMetricsMiddleware records Prometheus metrics for each request.
func HTTPMetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		dur := time.Since(start).Seconds()
		// Route pattern may be unavailable outside chi router; guard nil
		var route string
		if rc := chi.RouteContext(r.Context()); rc != nil {
			route = rc.RoutePattern()
		}
		if route == "" {
			route = r.URL.Path
		}
		HTTPRequestsTotal.WithLabelValues(route, r.Method, http.StatusText(ww.Status())).Inc()
		HTTPRequestDuration.WithLabelValues(route, r.Method).Observe(dur)
	})
}

// RecordCircuitBreakerStatus exports the breaker state for alerting.
func RecordCircuitBreakerStatus(name string, state int) {
	CircuitBreakerState.WithLabelValues(name).Set(float64(state))
}
