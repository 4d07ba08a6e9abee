package app

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpserver "github.com/fairyhunter13/ai-interview-engine/internal/adapter/httpserver"
	"github.com/fairyhunter13/ai-interview-engine/internal/adapter/observability"
	"github.com/fairyhunter13/ai-interview-engine/internal/config"
	"github.com/fairyhunter13/ai-interview-engine/internal/domain"
)

// ParseOrigins splits a comma-separated origin list into a slice, trimming spaces.
// If the input is empty, returns ["*"].
func ParseOrigins(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" || s == "*" {
		return []string{"*"}
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}

// BuildRouter constructs the HTTP handler with all middlewares and routes.
func BuildRouter(cfg config.Config, srv *httpserver.Server) http.Handler {
	r := chi.NewRouter()
	// Security & instrumentation middleware
	r.Use(httpserver.Recoverer())
	r.Use(httpserver.RequestID())
	r.Use(httpserver.TimeoutMiddleware(30 * time.Second))
	r.Use(httpserver.TraceMiddleware)
	r.Use(httpserver.AccessLog())
	r.Use(observability.HTTPMetricsMiddleware)

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   ParseOrigins(cfg.CORSAllowOrigins),
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Rate limit mutating endpoints
	r.Group(func(wr chi.Router) {
		wr.Use(httprate.LimitByIP(cfg.RateLimitPerMin, 1*time.Minute))
		wr.Post("/v1/interviews/{id}/initialize", srv.InitializeHandler())
		wr.Post("/v1/interviews/{id}/responses", srv.RespondHandler())
		wr.Post("/v1/interviews/{id}/complete", srv.CompleteHandler())
	})
	// Read-only session endpoint
	r.Get("/v1/interviews/{id}", srv.StateHandler())

	// Monitoring ingest runs at photo/video cadence, so it gets a looser
	// per-IP budget than the conversational endpoints.
	r.Group(func(mr chi.Router) {
		mr.Use(httprate.LimitByIP(cfg.RateLimitPerMin*10, 1*time.Minute))
		mr.Post("/v1/monitoring/{id}/camera", srv.SnapshotHandler(domain.MonitoringCamera))
		mr.Post("/v1/monitoring/{id}/screen", srv.SnapshotHandler(domain.MonitoringScreen))
		mr.Post("/v1/monitoring/{id}/camera/chunks", srv.VideoChunkHandler(domain.MonitoringCamera))
		mr.Post("/v1/monitoring/{id}/screen/chunks", srv.VideoChunkHandler(domain.MonitoringScreen))
	})
	r.Post("/v1/monitoring/{id}/stop", srv.MonitoringStopHandler())
	r.Post("/v1/monitoring/{id}/resume", srv.MonitoringResumeHandler())
	r.Get("/v1/monitoring/{id}/stats", srv.MonitoringStatsHandler())

	// Health and metrics
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) { promhttp.Handler().ServeHTTP(w, r) })
	r.Get("/readyz", srv.ReadyzHandler())

	return httpserver.SecurityHeaders(r)
}
