package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"citelink/internal/actions"
	"citelink/internal/batch"
	"citelink/internal/config"
	"citelink/internal/logging"
	"citelink/internal/records"
	"citelink/internal/state"
)

// Server exposes the control API over HTTP. It is read/write for URL
// records and batch sessions but never serves page content or item data.
type Server struct {
	bind      string
	logger    *slog.Logger
	store     *records.Store
	actions   *actions.Service
	processor *batch.Processor
	router    *chi.Mux

	listener net.Listener
	server   *http.Server
}

// New builds a Server from the configured bind address and wired services.
func New(cfg *config.Config, store *records.Store, svc *actions.Service, processor *batch.Processor, logger *slog.Logger) *Server {
	s := &Server{
		bind:      strings.TrimSpace(cfg.Paths.APIBind),
		logger:    logging.NewComponentLogger(logger, "api-server"),
		store:     store,
		actions:   svc,
		processor: processor,
		router:    chi.NewRouter(),
	}
	s.routes()
	s.server = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Handler returns the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)

		r.Route("/urls", func(r chi.Router) {
			r.Get("/", s.handleListURLs)
			r.Post("/", s.handleAddURL)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleShowURL)
				r.Get("/history", s.handleHistory)
				r.Post("/history/clear", s.handleClearHistory)
				r.Post("/select", s.handleSelectCandidate)
				r.Post("/approve", s.handleApproveMetadata)
				r.Post("/custom", s.handleStoreCustom)
				r.Post("/reset", s.handleReset)
				r.Post("/intent", s.handleSetIntent)
				r.Post("/unlink", s.handleUnlink)
			})
		})

		r.Route("/batches", func(r chi.Router) {
			r.Get("/", s.handleListBatches)
			r.Post("/", s.handleStartBatch)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleShowBatch)
				r.Post("/pause", s.handlePauseBatch)
				r.Post("/resume", s.handleResumeBatch)
				r.Post("/cancel", s.handleCancelBatch)
			})
		})
	})
}

// Start binds the listener and serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	if s.bind == "" {
		return errors.New("api bind address not configured")
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

// Addr returns the bound listener address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop shuts the server down, allowing in-flight requests to finish.
func (s *Server) Stop() {
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

// writeActionError maps domain sentinels onto HTTP statuses.
func (s *Server) writeActionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, actions.ErrNotAllowed),
		errors.Is(err, state.ErrInvalidTransition),
		errors.Is(err, records.ErrStatusConflict),
		errors.Is(err, batch.ErrSessionState):
		s.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, actions.ErrRecordNotFound), errors.Is(err, batch.ErrSessionNotFound):
		s.writeError(w, http.StatusNotFound, err.Error())
	default:
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func decodeBody(r *http.Request, dst any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("decode request: %w", err)
	}
	return nil
}
