package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/fairyhunter13/ai-interview-engine/internal/adapter/observability"
	"github.com/fairyhunter13/ai-interview-engine/internal/config"
	"github.com/fairyhunter13/ai-interview-engine/internal/domain"
	"github.com/fairyhunter13/ai-interview-engine/internal/usecase"
)

// Server aggregates handler dependencies.
type Server struct {
	Cfg        config.Config
	Sessions   usecase.SessionService
	Monitoring usecase.MonitoringService
	DBCheck    func(ctx context.Context) error
	RedisCheck func(ctx context.Context) error
	KafkaCheck func(ctx context.Context) error
}

// NewServer constructs an HTTP server with all handlers and checks wired.
func NewServer(cfg config.Config, sessions usecase.SessionService, monitoring usecase.MonitoringService, dbCheck, redisCheck, kafkaCheck func(context.Context) error) *Server {
	return &Server{Cfg: cfg, Sessions: sessions, Monitoring: monitoring, DBCheck: dbCheck, RedisCheck: redisCheck, KafkaCheck: kafkaCheck}
}

var (
	vldOnce sync.Once
	vld     *validator.Validate
)

func getValidator() *validator.Validate {
	vldOnce.Do(func() { vld = validator.New() })
	return vld
}

// acceptsJSON rejects requests whose Accept header excludes JSON.
func acceptsJSON(w http.ResponseWriter, r *http.Request) bool {
	if a := r.Header.Get("Accept"); a != "" && a != "*/*" && !strings.Contains(a, "application/json") {
		writeJSON(w, http.StatusNotAcceptable, errorEnvelope{Error: apiError{
			Code: "INVALID_ARGUMENT", Message: "not acceptable", Details: map[string]any{"accept": a},
		}})
		return false
	}
	return true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("%w: invalid json", domain.ErrInvalidArgument)
	}
	return nil
}

func validationDetails(err error) map[string]string {
	verrs := map[string]string{}
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			verrs[strings.ToLower(fe.Field())] = fe.Tag()
		}
	}
	return verrs
}

type sessionEnvelope struct {
	Success bool `json:"success"`
	usecase.SessionResult
}

// InitializeHandler creates or resumes the interview session for an
// application.
func (s *Server) InitializeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !acceptsJSON(w, r) {
			return
		}
		id := chi.URLParam(r, "id")
		var req struct {
			Resume bool `json:"resume"`
		}
		if err := decodeBody(w, r, &req); err != nil {
			writeError(w, r, err, nil)
			return
		}
		res, err := s.Sessions.Initialize(r.Context(), id, req.Resume)
		if err != nil {
			if errors.Is(err, domain.ErrConflict) {
				observability.SessionConflictsTotal.Inc()
			}
			writeError(w, r, err, nil)
			return
		}
		observability.SessionsStartedTotal.Inc()
		writeJSON(w, http.StatusOK, sessionEnvelope{Success: true, SessionResult: res})
	}
}

// RespondHandler processes one candidate response.
func (s *Server) RespondHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !acceptsJSON(w, r) {
			return
		}
		id := chi.URLParam(r, "id")
		var req struct {
			Response string `json:"response" validate:"required,max=10000"`
		}
		if err := decodeBody(w, r, &req); err != nil {
			writeError(w, r, err, nil)
			return
		}
		if err := getValidator().Struct(req); err != nil {
			writeError(w, r, fmt.Errorf("%w: validation failed", domain.ErrInvalidArgument), validationDetails(err))
			return
		}
		res, err := s.Sessions.ProcessResponse(r.Context(), id, req.Response)
		if err != nil {
			if errors.Is(err, domain.ErrConflict) {
				observability.SessionConflictsTotal.Inc()
			}
			writeError(w, r, err, nil)
			return
		}
		observability.ResponsesTotal.WithLabelValues(res.Classification).Inc()
		writeJSON(w, http.StatusOK, sessionEnvelope{Success: true, SessionResult: res})
	}
}

// CompleteHandler force-completes the session; idempotent.
func (s *Server) CompleteHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !acceptsJSON(w, r) {
			return
		}
		id := chi.URLParam(r, "id")
		res, err := s.Sessions.Complete(r.Context(), id)
		if err != nil {
			if errors.Is(err, domain.ErrConflict) {
				observability.SessionConflictsTotal.Inc()
			}
			writeError(w, r, err, nil)
			return
		}
		observability.SessionsCompletedTotal.Inc()
		writeJSON(w, http.StatusOK, sessionEnvelope{Success: true, SessionResult: res})
	}
}

// StateHandler returns the current state and full transcript.
func (s *Server) StateHandler() http.HandlerFunc {
	type envelope struct {
		Success bool `json:"success"`
		usecase.StateResult
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if !acceptsJSON(w, r) {
			return
		}
		id := chi.URLParam(r, "id")
		res, err := s.Sessions.GetState(r.Context(), id)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, envelope{Success: true, StateResult: res})
	}
}

// SnapshotHandler ingests one base64-encoded still frame for the given
// capture kind (camera or screen).
func (s *Server) SnapshotHandler(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !acceptsJSON(w, r) {
			return
		}
		id := chi.URLParam(r, "id")
		var req struct {
			Image string `json:"image" validate:"required"`
			// Capture cadence the client runs at; optional but validated
			// against the supported policy when present.
			IntervalSeconds int `json:"interval_seconds"`
		}
		if err := decodeBody(w, r, &req); err != nil {
			writeError(w, r, err, nil)
			return
		}
		if err := getValidator().Struct(req); err != nil {
			writeError(w, r, fmt.Errorf("%w: validation failed", domain.ErrInvalidArgument), validationDetails(err))
			return
		}
		if req.IntervalSeconds != 0 {
			if err := usecase.ValidatePhotoInterval(time.Duration(req.IntervalSeconds) * time.Second); err != nil {
				writeError(w, r, err, nil)
				return
			}
		}
		key, err := s.Monitoring.StoreImage(r.Context(), id, kind, req.Image)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		observability.SnapshotsStoredTotal.WithLabelValues(kind).Inc()
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "key": key})
	}
}

// VideoChunkHandler ingests one raw video chunk for the given capture kind.
// The body is the chunk bytes; content type is sniffed, not trusted.
func (s *Server) VideoChunkHandler(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !acceptsJSON(w, r) {
			return
		}
		id := chi.URLParam(r, "id")
		maxBytes := s.Cfg.MaxSnapshotMB * 1024 * 1024
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
		data, err := io.ReadAll(r.Body)
		if err != nil {
			if strings.Contains(strings.ToLower(err.Error()), "too large") {
				writeJSON(w, http.StatusRequestEntityTooLarge, errorEnvelope{Error: apiError{
					Code: "INVALID_ARGUMENT", Message: "payload too large",
					Details: map[string]any{"max_mb": s.Cfg.MaxSnapshotMB},
				}})
				return
			}
			writeError(w, r, fmt.Errorf("%w: body read: %v", domain.ErrInvalidArgument, err), nil)
			return
		}
		key, err := s.Monitoring.StoreVideoChunk(r.Context(), id, kind, data)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		observability.SnapshotsStoredTotal.WithLabelValues(kind).Inc()
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "key": key})
	}
}

// MonitoringStopHandler records that capture for a session stopped. Stored
// snapshots are retained.
func (s *Server) MonitoringStopHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !acceptsJSON(w, r) {
			return
		}
		id := chi.URLParam(r, "id")
		at := s.Monitoring.Stop(id)
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "stopped_at": at})
	}
}

// MonitoringResumeHandler re-enables capture ingest after a stop.
func (s *Server) MonitoringResumeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !acceptsJSON(w, r) {
			return
		}
		id := chi.URLParam(r, "id")
		s.Monitoring.Resume(id)
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	}
}

// MonitoringStatsHandler returns stored capture counts per kind.
func (s *Server) MonitoringStatsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !acceptsJSON(w, r) {
			return
		}
		id := chi.URLParam(r, "id")
		stats, err := s.Monitoring.Stats(r.Context(), id)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "stats": stats})
	}
}

// ReadyzHandler probes DB, Redis and Kafka.
func (s *Server) ReadyzHandler() http.HandlerFunc {
	type check struct {
		Name    string `json:"name"`
		OK      bool   `json:"ok"`
		Details string `json:"details,omitempty"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		checks := make([]check, 0, 3)
		probe := func(name string, fn func(context.Context) error) {
			if fn == nil {
				return
			}
			if err := fn(ctx); err != nil {
				checks = append(checks, check{Name: name, OK: false, Details: err.Error()})
			} else {
				checks = append(checks, check{Name: name, OK: true})
			}
		}
		probe("db", s.DBCheck)
		probe("redis", s.RedisCheck)
		probe("kafka", s.KafkaCheck)

		st := http.StatusOK
		for _, c := range checks {
			if !c.OK {
				st = http.StatusServiceUnavailable
				break
			}
		}
		writeJSON(w, st, map[string]any{"checks": checks})
	}
}
