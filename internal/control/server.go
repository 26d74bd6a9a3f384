// Package control serves the loopback HTTP API that starts, stops and
// inspects the trading session.
package control

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tootechautomation/dfmarketbot/internal/ledger"
	"github.com/tootechautomation/dfmarketbot/internal/worker"
)

// Runner is the session controller.
type Runner interface {
	Start(ctx context.Context) error
	Stop() bool
	Snapshot() worker.Snapshot
}

// Summaries aggregates a recorded session.
type Summaries interface {
	Summary(ctx context.Context, session string) (ledger.Summary, error)
}

type Server struct {
	ctx       context.Context
	runner    Runner
	summaries Summaries
	log       zerolog.Logger
}

// New builds the API. Sessions started through it live under ctx; summaries
// may be nil when the ledger is off.
func New(ctx context.Context, runner Runner, summaries Summaries) *Server {
	return &Server{
		ctx:       ctx,
		runner:    runner,
		summaries: summaries,
		log:       log.With().Str("component", "control").Logger(),
	}
}

func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/start", s.handleStart).Methods(http.MethodPost)
	r.HandleFunc("/stop", s.handleStop).Methods(http.MethodPost)
	r.HandleFunc("/sessions/{id}/summary", s.handleSummary).Methods(http.MethodGet)
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodGet)
	return r
}

// ListenAndServe serves addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Warn().Err(err).Msg("shutdown")
		}
	}()
	s.log.Info().Str("addr", addr).Msg("control api listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.runner.Snapshot())
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	err := s.runner.Start(s.ctx)
	switch {
	case errors.Is(err, worker.ErrAlreadyRunning):
		writeError(w, http.StatusConflict, err)
	case err != nil:
		s.log.Error().Err(err).Msg("start failed")
		writeError(w, http.StatusInternalServerError, err)
	default:
		s.log.Info().Msg("session started over the api")
		writeJSON(w, http.StatusAccepted, s.runner.Snapshot())
	}
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if !s.runner.Stop() {
		writeError(w, http.StatusConflict, errors.New("no session is running"))
		return
	}
	s.log.Info().Msg("stop requested over the api")
	writeJSON(w, http.StatusAccepted, s.runner.Snapshot())
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	if s.summaries == nil {
		writeError(w, http.StatusNotFound, errors.New("ledger disabled"))
		return
	}
	sum, err := s.summaries.Summary(r.Context(), mux.Vars(r)["id"])
	switch {
	case errors.Is(err, ledger.ErrUnknownSession):
		writeError(w, http.StatusNotFound, err)
	case err != nil:
		writeError(w, http.StatusInternalServerError, err)
	default:
		writeJSON(w, http.StatusOK, sum)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
