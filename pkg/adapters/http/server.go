// Package http exposes the agent's status and a local dispatch endpoint.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/tendril/internal/logging"
	"github.com/aretw0/tendril/pkg/domain"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// maxBody bounds POST /dispatch payloads.
const maxBody = 4 << 20

// Dispatcher is the request executor served by POST /dispatch.
type Dispatcher interface {
	Dispatch(ctx context.Context, raw []byte) []byte
	Describe() []domain.MethodInfo
}

// Sessions lists the live sessions.
type Sessions interface {
	List() []string
}

// TransportStatus is the backend connection snapshot served by GET /transport.
type TransportStatus struct {
	State        string `json:"state"`
	URL          string `json:"url"`
	ConnectionID string `json:"connection_id,omitempty"`
	Reconnects   uint64 `json:"reconnects"`
}

// Server serves the status API.
type Server struct {
	dispatcher Dispatcher
	sessions   Sessions
	transport  func() TransportStatus
	metrics    http.Handler
	version    string
	logger     *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithSessions enables GET /sessions.
func WithSessions(s Sessions) Option {
	return func(srv *Server) { srv.sessions = s }
}

// WithTransport enables GET /transport.
func WithTransport(fn func() TransportStatus) Option {
	return func(srv *Server) { srv.transport = fn }
}

// WithMetrics mounts h on GET /metrics.
func WithMetrics(h http.Handler) Option {
	return func(srv *Server) { srv.metrics = h }
}

// WithVersion is reported by GET /info.
func WithVersion(v string) Option {
	return func(srv *Server) { srv.version = v }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(srv *Server) { srv.logger = logger }
}

// NewServer creates a status server for d.
func NewServer(d Dispatcher, opts ...Option) *Server {
	s := &Server{dispatcher: d, version: "dev", logger: logging.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(enableCORS)

	r.Get("/healthz", s.getHealth)
	r.Get("/info", s.getInfo)
	r.Get("/methods", s.getMethods)
	r.Post("/dispatch", s.postDispatch)
	if s.sessions != nil {
		r.Get("/sessions", s.getSessions)
	}
	if s.transport != nil {
		r.Get("/transport", s.getTransport)
	}
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}
	return r
}

// ListenAndServe serves on addr until ctx is canceled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("status server listening", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop status server gracefully: %w", err)
		}
		return nil
	}
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "error", err)
	}
}

func (s *Server) getHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) getInfo(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, map[string]string{"app": "tendril", "version": s.version})
}

func (s *Server) getMethods(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.dispatcher.Describe())
}

func (s *Server) getSessions(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, map[string][]string{"sessions": s.sessions.List()})
}

func (s *Server) getTransport(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.transport())
}

// postDispatch executes the body as a request envelope. Errors travel in the
// envelope, so the status code is 200 whenever the body could be read.
// The command runs to completion even if the client goes away.
func (s *Server) postDispatch(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)
		} else {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
		}
		s.logger.Warn("dispatch: unreadable body", "error", err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(s.dispatcher.Dispatch(context.WithoutCancel(r.Context()), raw))
}
