// Package server exposes the worker registry and the search dispatcher over HTTP.
package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-fleet/internal/jobs"
	"github.com/rxtech-lab/argo-fleet/internal/logger"
	"github.com/rxtech-lab/argo-fleet/internal/optimize"
	"github.com/rxtech-lab/argo-fleet/internal/registry"
	"github.com/rxtech-lab/argo-fleet/pkg/errors"
)

const (
	shutdownTimeout = 10 * time.Second
	// streamBuffer is the per-connection event queue. A client that falls
	// this far behind is disconnected.
	streamBuffer = 64
	writeTimeout = 10 * time.Second
)

type Server struct {
	registry   *registry.Registry
	dispatcher *jobs.Dispatcher
	searcher   *optimize.Searcher
	log        *logger.Logger
	router     *mux.Router
	upgrader   websocket.Upgrader

	dataDir           string
	searchParallelism int
	defaultMaxTrials  int
}

type Option func(*Server)

// WithDataDir sets the directory search requests may read candle files from.
func WithDataDir(dir string) Option {
	return func(s *Server) {
		s.dataDir = dir
	}
}

// WithSearchParallelism is used for searches that do not set their own.
func WithSearchParallelism(n int) Option {
	return func(s *Server) {
		s.searchParallelism = n
	}
}

// WithDefaultMaxTrials caps sampled searches that do not set max_trials.
func WithDefaultMaxTrials(n int) Option {
	return func(s *Server) {
		s.defaultMaxTrials = n
	}
}

func New(reg *registry.Registry, dispatcher *jobs.Dispatcher, searcher *optimize.Searcher, log *logger.Logger, opts ...Option) *Server {
	s := &Server{
		registry:   reg,
		dispatcher: dispatcher,
		searcher:   searcher,
		log:        log,
		dataDir:    ".",
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}

	for _, opt := range opts {
		opt(s)
	}

	s.router = s.routes()

	return s
}

func (s *Server) routes() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	v1 := router.PathPrefix("/v1").Subrouter()

	workers := v1.PathPrefix("/tenants/{tenant}/workers").Subrouter()
	workers.HandleFunc("", s.handleStartWorker).Methods(http.MethodPost)
	workers.HandleFunc("", s.handleWorkerStatus).Methods(http.MethodGet)
	workers.HandleFunc("", s.handleStopWorkers).Methods(http.MethodDelete)
	workers.HandleFunc("/{config_id}", s.handleReconfigure).Methods(http.MethodPatch)
	workers.HandleFunc("/{config_id}/restart", s.handleRestart).Methods(http.MethodPost)
	workers.HandleFunc("/{config_id}/pause", s.handlePause).Methods(http.MethodPost)
	workers.HandleFunc("/{config_id}/resume", s.handleResume).Methods(http.MethodPost)

	v1.HandleFunc("/workers", s.handleListWorkers).Methods(http.MethodGet)

	v1.HandleFunc("/jobs/search", s.handleStartSearch).Methods(http.MethodPost)
	v1.HandleFunc("/jobs/search", s.handleSearchStatus).Methods(http.MethodGet)
	v1.HandleFunc("/jobs/search/stream", s.handleSearchStream).Methods(http.MethodGet)

	return router
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Serve serves on listener until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)

	go func() {
		errCh <- srv.Serve(listener)
	}()

	s.log.Info("HTTP server listening", zap.String("addr", listener.Addr().String()))

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return errors.Wrap(errors.ErrCodeUnknown, "http server failed", err)
		}

		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(errors.ErrCodeUnknown, "http server shutdown failed", err)
	}

	return nil
}

// ListenAndServe listens on addr and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeUnknown, err, "failed to listen on %s", addr)
	}

	return s.Serve(ctx, listener)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "workers": len(s.registry.List())})
}

type errorResponse struct {
	Error    string `json:"error"`
	Code     int    `json:"code"`
	Category string `json:"category"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("Request failed", zap.Error(err))
	}

	code := errors.GetCode(err)
	writeJSON(w, status, errorResponse{Error: err.Error(), Code: int(code), Category: code.Category()})
}

func statusFor(err error) int {
	switch errors.GetCode(err) {
	case errors.ErrCodeInvalidParameter,
		errors.ErrCodeInvalidConfiguration,
		errors.ErrCodeMissingParameter,
		errors.ErrCodeInvalidTimeframe,
		errors.ErrCodeInvalidRange,
		errors.ErrCodeStrategyNotFound:
		return http.StatusBadRequest
	case errors.ErrCodeWorkerNotFound, errors.ErrCodeDataNotFound:
		return http.StatusNotFound
	case errors.ErrCodeWorkerStartFailed:
		return http.StatusUnprocessableEntity
	case errors.ErrCodeJobBusy:
		return http.StatusConflict
	case errors.ErrCodeJobClosed:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func decodeBody(r *http.Request, out any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(out); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidParameter, "invalid request body", err)
	}

	return nil
}
