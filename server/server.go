// Package server exposes the incident desk over HTTP: the chat endpoints
// in atomic and streaming form, CORS preflight, health and metrics, and
// the static frontend.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/tailored-agentic-units/incidentdesk/core/protocol"
	"github.com/tailored-agentic-units/incidentdesk/core/response"
	"github.com/tailored-agentic-units/incidentdesk/emitter"
	"github.com/tailored-agentic-units/incidentdesk/kernel"
	"github.com/tailored-agentic-units/incidentdesk/observability"
	"github.com/tailored-agentic-units/incidentdesk/session"
)

const (
	EventStart         observability.EventType = "server.start"
	EventStop          observability.EventType = "server.stop"
	EventRequest       observability.EventType = "server.request"
	EventRejected      observability.EventType = "server.request.rejected"
	EventStreamAborted observability.EventType = "server.stream.aborted"
	EventPanic         observability.EventType = "server.panic"
)

// Desk runs exchanges on behalf of the HTTP layer. *kernel.Kernel
// satisfies it.
type Desk interface {
	Exchange(ctx context.Context, sessionID, message string) kernel.Outcome
	Catalog() []protocol.Tool
	Sessions() session.Store
}

// Server routes HTTP requests to a Desk.
type Server struct {
	config   Config
	desk     Desk
	emitter  *emitter.Emitter
	observer observability.Observer
	metrics  *observability.Metrics
	gatherer prometheus.Gatherer
	limiter  *rate.Limiter
	handler  http.Handler
}

type Option func(*Server)

func WithObserver(o observability.Observer) Option {
	return func(s *Server) { s.observer = o }
}

// WithMetrics records HTTP traffic into m and serves g on /metrics.
func WithMetrics(m *observability.Metrics, g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.metrics = m
		s.gatherer = g
	}
}

// WithEmitter replaces the emitter built from Config.Stream.
func WithEmitter(e *emitter.Emitter) Option {
	return func(s *Server) { s.emitter = e }
}

// New builds the route table. cfg values override DefaultConfig.
func New(cfg *Config, desk Desk, opts ...Option) (*Server, error) {
	if desk == nil {
		return nil, errors.New("server: desk is required")
	}

	c := DefaultConfig()
	if cfg != nil {
		c.Merge(cfg)
	}

	s := &Server{
		config:   c,
		desk:     desk,
		observer: observability.NoOpObserver{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.emitter == nil {
		s.emitter = emitter.New(c.Stream)
	}
	if c.RateLimit > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(c.RateLimit), max(c.RateBurst, 1))
	}

	mux := http.NewServeMux()
	chat := chain(http.HandlerFunc(s.handleChat), limit(s.limiter))
	for _, path := range []string{"/api/chat", "/api/chat-stream"} {
		s.handle(mux, "POST "+path, chat, traced(path))
		s.handle(mux, "OPTIONS "+path, http.HandlerFunc(s.handlePreflight))
	}
	s.handle(mux, "GET /healthz", http.HandlerFunc(s.handleHealth))
	if s.gatherer != nil {
		s.handle(mux, "GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	if static := newSPAHandler(c.StaticDir); static != nil {
		s.handle(mux, "GET /", static)
	}

	compressed, err := s.compress(s.recoverPanics(mux))
	if err != nil {
		return nil, fmt.Errorf("server: gzip: %w", err)
	}
	s.handler = chain(compressed, s.logRequests, s.cors)
	return s, nil
}

func (s *Server) handle(mux *http.ServeMux, pattern string, h http.Handler, mws ...middleware) {
	mws = append([]middleware{s.instrument(routePath(pattern))}, mws...)
	mux.Handle(pattern, chain(h, mws...))
}

// Handler returns the fully wrapped root handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) Config() Config {
	return s.config
}

// ListenAndServe serves until ctx ends, then drains in-flight requests
// for up to Config.ShutdownTimeout.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", s.config.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: s.config.ReadHeaderTimeout.Std(),
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	observability.Emit(ctx, s.observer, EventStart, observability.LevelInfo, "server", map[string]any{
		"addr":       ln.Addr().String(),
		"static_dir": s.config.StaticDir,
		"tools":      len(s.desk.Catalog()),
	})

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.config.ShutdownTimeout.Std())
	defer cancel()

	start := time.Now()
	err := srv.Shutdown(shutdownCtx)
	observability.Emit(ctx, s.observer, EventStop, observability.LevelInfo, "server", map[string]any{
		"duration": time.Since(start),
		"clean":    err == nil,
	})
	if err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, err := decodeChatRequest(r)
	if err != nil {
		observability.Emit(ctx, s.observer, EventRejected, observability.LevelInfo, "server", map[string]any{
			"path":  r.URL.Path,
			"error": err.Error(),
		})
		emitter.WriteJSON(w, http.StatusBadRequest, response.Error{Error: InvalidRequestMessage})
		return
	}

	if !wantsStream(r) {
		emitter.Atomic(w, s.desk.Exchange(ctx, req.SessionID, req.Message))
		return
	}

	sse, err := emitter.NewSSEWriter(w)
	if err != nil {
		emitter.WriteJSON(w, http.StatusInternalServerError, response.Reply{Reply: UnavailableMessage})
		return
	}

	out := s.desk.Exchange(ctx, req.SessionID, req.Message)
	if err := s.emitter.Stream(ctx, sse, out); err != nil {
		observability.Emit(ctx, s.observer, EventStreamAborted, observability.LevelWarning, "server", map[string]any{
			"session_id":  req.SessionID,
			"exchange_id": out.ID,
			"error":       err.Error(),
		})
	}
}

func (s *Server) handlePreflight(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Max-Age", "600")
	emitter.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type health struct {
	Status   string `json:"status"`
	Sessions int    `json:"sessions"`
	Tools    int    `json:"tools"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	emitter.WriteJSON(w, http.StatusOK, health{
		Status:   "ok",
		Sessions: s.desk.Sessions().Len(),
		Tools:    len(s.desk.Catalog()),
	})
}
