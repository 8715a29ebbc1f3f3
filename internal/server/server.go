package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/aretw0/loft/internal/platform"
	"github.com/aretw0/loft/pkg/core"
)

const (
	// shutdownTimeout bounds the graceful shutdown of in-flight requests.
	shutdownTimeout = 5 * time.Second

	// maxRequestBody caps JSON request bodies.
	maxRequestBody = 64 << 10

	requestIDHeader = "X-Request-ID"
)

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger for request and stream events.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetricsHandler mounts h at /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// Server serves the loft API over an App.
type Server struct {
	app     *platform.App
	addr    string
	logger  *slog.Logger
	metrics http.Handler

	mu    sync.Mutex
	views map[*liveView]struct{}
	bound net.Addr
}

// New creates a Server listening on addr once Run is called.
func New(app *platform.App, addr string, opts ...Option) *Server {
	s := &Server{
		app:    app,
		addr:   addr,
		logger: slog.New(slog.DiscardHandler),
		views:  make(map[*liveView]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router builds the route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.requestID)

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/debug/state", s.handleDebugState).Methods(http.MethodGet)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics).Methods(http.MethodGet)
	}

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/subjects", s.handleSubjects).Methods(http.MethodGet)
	api.HandleFunc("/subjects/{id:"+idPattern+"}", s.handleSubject).Methods(http.MethodGet)
	api.HandleFunc("/labs/{id:"+idPattern+"}", s.handleLab).Methods(http.MethodGet)
	api.HandleFunc("/labs/{id:"+idPattern+"}/status", s.handleLabStatus).Methods(http.MethodPut)
	api.HandleFunc("/labs/{id:"+idPattern+"}/comment", s.handleLabComment).Methods(http.MethodPut)

	api.HandleFunc("/meals/search", s.handleMealSearch).Methods(http.MethodGet)
	api.HandleFunc("/meals/random", s.handleMealRandom).Methods(http.MethodGet)
	api.HandleFunc("/meals/{id:"+idPattern+"}", s.handleMeal).Methods(http.MethodGet)
	api.HandleFunc("/favorites", s.handleFavorites).Methods(http.MethodGet)
	api.HandleFunc("/favorites/{id:"+idPattern+"}", s.handleFavor).Methods(http.MethodPut)
	api.HandleFunc("/favorites/{id:"+idPattern+"}", s.handleUnfavor).Methods(http.MethodDelete)

	api.HandleFunc("/weather/{city}", s.handleWeather).Methods(http.MethodGet)
	api.HandleFunc("/weather/{city}/forecast", s.handleForecast).Methods(http.MethodGet)

	events := api.PathPrefix("/events").Subrouter()
	events.HandleFunc("/subjects", s.handleSubjectsEvents).Methods(http.MethodGet)
	events.HandleFunc("/subjects/{id:"+idPattern+"}", s.handleSubjectEvents).Methods(http.MethodGet)
	events.HandleFunc("/favorites", s.handleFavoritesEvents).Methods(http.MethodGet)
	events.HandleFunc("/meals/{id:"+idPattern+"}", s.handleMealEvents).Methods(http.MethodGet)

	return r
}

// idPattern restricts record ids in routes; ids end up in watch patterns.
const idPattern = `[A-Za-z0-9_.\-]+`

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to bind to %s: %w", s.addr, err)
	}
	s.mu.Lock()
	s.bound = ln.Addr()
	s.mu.Unlock()

	srv := &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		// request contexts end with ctx, so SSE handlers stop on shutdown
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	errc := make(chan error, 1)
	go func() {
		errc <- srv.Serve(ln)
	}()
	s.logger.Info("http server listening", "addr", ln.Addr().String())

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	return nil
}

// Addr returns the bound address once Run is listening.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bound
}

func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("request", "id", id, "method", r.Method, "path", r.URL.Path, "took", time.Since(start))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type debugState struct {
	App   any   `json:"app"`
	Views []any `json:"views"`
}

func (s *Server) handleDebugState(w http.ResponseWriter, _ *http.Request) {
	st := debugState{App: s.app.State(), Views: []any{}}
	s.mu.Lock()
	for v := range s.views {
		st.Views = append(st.Views, v.state())
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, st)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error string `json:"error"`
}

// writeError maps domain errors onto HTTP statuses.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, core.ErrNotFound), errors.Is(err, core.ErrNoResults):
		code = http.StatusNotFound
	case errors.Is(err, core.ErrInvalidRecord), errors.Is(err, core.ErrUnknownTable):
		code = http.StatusBadRequest
	case errors.Is(err, core.ErrReadOnly):
		code = http.StatusForbidden
	case errors.Is(err, core.ErrRemote):
		code = http.StatusBadGateway
	}
	if code == http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "error", err)
	}
	writeJSON(w, code, errorBody{Error: err.Error()})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: request body: %w", core.ErrInvalidRecord, err)
	}
	return nil
}
