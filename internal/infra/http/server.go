package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"opportunity-radar/internal/domain"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// Server отдаёт метрики, health-check и просмотр возможностей с подсветкой изменений.
type Server struct {
	Router  chi.Router
	log     zerolog.Logger
	records domain.RecordStore
}

// NewServer создаёт HTTP сервер; records может быть nil, тогда API не подключается.
func NewServer(logger zerolog.Logger, records domain.RecordStore) *Server {
	s := &Server{Router: chi.NewRouter(), log: logger, records: records}
	r := s.Router
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.accessLog)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	if records != nil {
		r.Route("/api/v1/opportunities", func(r chi.Router) {
			r.Get("/", s.listOpportunities)
			r.Get("/{threadID}", s.getOpportunity)
		})
	}
	return s
}

// Run слушает addr до отмены контекста и затем корректно останавливается.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("HTTP сервер запущен")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.log.Info().Msg("HTTP сервер остановлен")
	return nil
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("http запрос")
	})
}

// opportunityView: запись в ответе API.
type opportunityView struct {
	ThreadID       string             `json:"thread_id"`
	RelevanceScore int                `json:"relevance_score"`
	Sender         string             `json:"sender,omitempty"`
	Subject        string             `json:"subject,omitempty"`
	FirstMessageID string             `json:"first_message_id"`
	LastMessageID  string             `json:"last_message_id"`
	CreatedAt      time.Time          `json:"created_at"`
	LastUpdatedAt  time.Time          `json:"last_updated_at"`
	Fields         []domain.FieldView `json:"fields"`
}

func toView(rec domain.Record) opportunityView {
	return opportunityView{
		ThreadID:       rec.ThreadID,
		RelevanceScore: rec.RelevanceScore,
		Sender:         rec.Sender,
		Subject:        rec.Subject,
		FirstMessageID: rec.FirstMessageID,
		LastMessageID:  rec.LastMessageID,
		CreatedAt:      rec.CreatedAt,
		LastUpdatedAt:  rec.LastUpdatedAt,
		Fields:         domain.Highlight(rec, rec.ChangedFields),
	}
}

func (s *Server) listOpportunities(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit должен быть положительным числом")
			return
		}
		limit = min(n, maxListLimit)
	}
	recs, err := s.records.List(r.Context(), limit)
	if err != nil {
		s.log.Error().Err(err).Msg("список возможностей")
		writeError(w, http.StatusServiceUnavailable, "хранилище недоступно")
		return
	}
	views := make([]opportunityView, 0, len(recs))
	for _, rec := range recs {
		views = append(views, toView(rec))
	}
	writeJSON(w, http.StatusOK, map[string]any{"opportunities": views})
}

func (s *Server) getOpportunity(w http.ResponseWriter, r *http.Request) {
	threadID := chi.URLParam(r, "threadID")
	rec, err := s.records.Get(r.Context(), threadID)
	if err != nil {
		s.log.Error().Err(err).Str("thread_id", threadID).Msg("чтение возможности")
		writeError(w, http.StatusServiceUnavailable, "хранилище недоступно")
		return
	}
	if rec == nil {
		writeError(w, http.StatusNotFound, "запись не найдена")
		return
	}
	writeJSON(w, http.StatusOK, toView(*rec))
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
