// Package api serves the engine output as read-only JSON.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"COTSentinel/internal/backtest"
	"COTSentinel/internal/collector"
	"COTSentinel/internal/metrics"
	"COTSentinel/internal/model"
	"COTSentinel/internal/pairs"
	"COTSentinel/internal/service"
	"COTSentinel/internal/strategy"
)

// Engine is what the API reads from.
type Engine interface {
	Latest() *service.Snapshot
	Pair(name string) (pairs.Pair, error)
	Backtest(ctx context.Context, name string, f backtest.Filter) (*model.RunResult, error)
	Explain(ctx context.Context, name string) (strategy.Verdict, model.InstrumentSnapshot, model.InstrumentSnapshot, error)
}

// Server is the HTTP front of the engine.
type Server struct {
	router  *mux.Router
	server  *http.Server
	engine  Engine
	table   *pairs.Table
	filter  backtest.Filter
	timeout time.Duration
}

// NewServer wires routes for addr. filter is the default for /backtest when the
// query does not override it.
func NewServer(addr string, engine Engine, table *pairs.Table, filter backtest.Filter) *Server {
	s := &Server{
		router:  mux.NewRouter(),
		engine:  engine,
		table:   table,
		filter:  filter,
		timeout: 2 * time.Minute,
	}
	s.setupRoutes()
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: s.timeout + 10*time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.requestLoggingMiddleware)

	s.router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	api := s.router.PathPrefix("/").Subrouter()
	api.Use(s.timeoutMiddleware)
	api.Use(jsonContentTypeMiddleware)
	api.HandleFunc("/healthz", s.health).Methods(http.MethodGet)
	api.HandleFunc("/pairs", s.listPairs).Methods(http.MethodGet)
	api.HandleFunc("/pairs/{pair}/signals", s.signals).Methods(http.MethodGet)
	api.HandleFunc("/pairs/{pair}/backtest", s.backtest).Methods(http.MethodGet)
	api.HandleFunc("/pairs/{pair}/explain", s.explain).Methods(http.MethodGet)

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Start blocks serving until Shutdown.
func (s *Server) Start() error {
	log.Info().Str("addr", s.server.Addr).Msg("http server listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("shutting down http server")
	return s.server.Shutdown(ctx)
}

type ctxKey struct{}

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()[:8]
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, id)))
	})
}

func (s *Server) requestLoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapper := &responseWrapper{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapper, r)
		id, _ := r.Context().Value(ctxKey{}).(string)
		log.Debug().
			Str("request_id", id).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", wrapper.statusCode).
			Dur("took", time.Since(start)).
			Msg("http request")
	})
}

func (s *Server) timeoutMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
		defer cancel()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func jsonContentTypeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

type responseWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWrapper) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeEngineError maps engine errors onto HTTP statuses.
func writeEngineError(w http.ResponseWriter, err error) {
	var fe *collector.FetchError
	switch {
	case errors.Is(err, service.ErrUnknownPair):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, strategy.ErrDataUnavailable):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &fe):
		writeError(w, http.StatusBadGateway, err.Error())
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		writeError(w, http.StatusGatewayTimeout, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// parseFilter reads min_conviction and exclude_conflicts over the defaults.
func parseFilter(r *http.Request, def backtest.Filter) (backtest.Filter, error) {
	f := def
	q := r.URL.Query()
	if v := q.Get("min_conviction"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 || n > model.MaxConviction {
			return f, errors.New("min_conviction must be an integer within 0..9")
		}
		f.MinConviction = n
	}
	if v := q.Get("exclude_conflicts"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return f, errors.New("exclude_conflicts must be a boolean")
		}
		f.ExcludeConflicts = b
	}
	return f, nil
}
