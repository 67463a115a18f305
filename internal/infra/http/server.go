package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"streamer-live-bot/internal/domain"
	"streamer-live-bot/internal/infra/api"
	"streamer-live-bot/internal/infra/metrics"
	"streamer-live-bot/internal/infra/web"
	"streamer-live-bot/internal/usecase"
)

// HealthFunc reports the state of one dependency.
type HealthFunc func(ctx context.Context) error

type StatsSource interface {
	Count(ctx context.Context) (int, error)
}

type WatchSource interface {
	ListPage(ctx context.Context, tgID int64, page int) (*usecase.WatchPage, error)
}

type Server struct {
	port    int
	auth    *web.AuthManager
	stats   StatsSource
	watches WatchSource
	health  map[string]HealthFunc
	log     *zerolog.Logger
	started time.Time
	server  *http.Server
}

func NewServer(port int, auth *web.AuthManager, stats StatsSource, watches WatchSource, health map[string]HealthFunc, logger *zerolog.Logger) *Server {
	return &Server{
		port:    port,
		auth:    auth,
		stats:   stats,
		watches: watches,
		health:  health,
		log:     logger,
		started: time.Now(),
	}
}

// Routes builds the admin router. /healthz and /metrics are public;
// /api/v1 requires an admin bearer token.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.auth.Require)
		r.Get("/stats", s.handleStats)
		r.Get("/users/{tgID}/watches", s.handleWatches)
	})

	return api.Chain(r,
		api.TraceID(),
		api.RequestLog(s.log),
		api.Recover(s.log),
		api.Timeout(10*time.Second),
	)
}

func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.log.Info().Int("port", s.port).Msg("admin http server listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{}
	status := http.StatusOK
	for name, fn := range s.health {
		if err := fn(r.Context()); err != nil {
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}
	writeJSON(w, status, map[string]any{
		"status": http.StatusText(status),
		"checks": checks,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	n, err := s.stats.Count(r.Context())
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"users":          n,
		"uptime_seconds": int64(time.Since(s.started).Seconds()),
	})
}

type watchItemDTO struct {
	Handle         string     `json:"handle"`
	WorkflowID     string     `json:"workflow_id,omitempty"`
	Status         string     `json:"status"`
	RemoteState    string     `json:"remote_state,omitempty"`
	Live           bool       `json:"live"`
	CreatedAt      time.Time  `json:"created_at"`
	LastNotifiedAt *time.Time `json:"last_notified_at,omitempty"`
}

type watchPageDTO struct {
	Items      []watchItemDTO `json:"items"`
	Page       int            `json:"page"`
	TotalPages int            `json:"total_pages"`
	Total      int            `json:"total"`
	Stale      bool           `json:"stale"`
}

func (s *Server) handleWatches(w http.ResponseWriter, r *http.Request) {
	tgID, err := strconv.ParseInt(chi.URLParam(r, "tgID"), 10, 64)
	if err != nil || tgID <= 0 {
		http.Error(w, "invalid telegram id", http.StatusBadRequest)
		return
	}
	page := 0
	if v := r.URL.Query().Get("page"); v != "" {
		if page, err = strconv.Atoi(v); err != nil {
			http.Error(w, "invalid page", http.StatusBadRequest)
			return
		}
	}

	res, err := s.watches.ListPage(r.Context(), tgID, page)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	out := watchPageDTO{
		Items:      make([]watchItemDTO, 0, len(res.Items)),
		Page:       res.Page,
		TotalPages: res.TotalPages,
		Total:      res.Total,
		Stale:      res.Stale,
	}
	for _, it := range res.Items {
		out.Items = append(out.Items, watchItemDTO{
			Handle:         it.Handle,
			WorkflowID:     it.WorkflowID,
			Status:         string(it.Status),
			RemoteState:    it.RemoteState,
			Live:           it.Live(),
			CreatedAt:      it.CreatedAt,
			LastNotifiedAt: it.LastNotifiedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) writeErr(w http.ResponseWriter, r *http.Request, err error) {
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		http.Error(w, ve.Reason, http.StatusBadRequest)
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	default:
		l := s.log.With().Str("path", r.URL.Path).Logger()
		l.Error().Err(err).Msg("admin request failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
