package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/0x-stone/zspa"
	"github.com/0x-stone/zspa/internal/logging"
	"github.com/0x-stone/zspa/pkg/domain"
	"github.com/0x-stone/zspa/pkg/graph"
	"github.com/0x-stone/zspa/pkg/runner"
)

// Turner executes donor turns.
type Turner interface {
	Turn(ctx context.Context, req runner.TurnRequest, sink domain.Emitter) error
	MaxInputSize() int
}

// Server exposes the agent over HTTP.
type Server struct {
	turns   Turner
	graph   *graph.Graph
	metrics http.Handler
	logger  *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithLogger configures the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetrics mounts a metrics handler on GET /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithGraph exposes the graph topology on GET /graph.
func WithGraph(g *graph.Graph) Option {
	return func(s *Server) {
		s.graph = g
	}
}

// NewHandler creates the HTTP handler for the agent.
func NewHandler(turns Turner, opts ...Option) http.Handler {
	s := &Server{turns: turns, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Post("/api/v1/chat", s.Chat)
	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	if s.graph != nil {
		r.Get("/graph", s.GetGraph)
	}
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}
	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Chat handles POST /api/v1/chat and streams the turn as Server-Sent Events.
func (s *Server) Chat(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		s.logger.Error("Chat: Streaming not supported")
		return
	}

	var req runner.TurnRequest
	body := http.MaxBytesReader(w, r.Body, int64(s.turns.MaxInputSize())+64*1024)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		s.logger.Warn("Chat: Invalid request body", "err", err)
		return
	}
	if err := req.Validate(s.turns.MaxInputSize()); err != nil {
		http.Error(w, "Invalid input: "+err.Error(), http.StatusBadRequest)
		s.logger.Warn("Chat: Input rejected", "err", err, "session_id", req.SessionID, "size", len(req.Message))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	out := &stream{w: w, flusher: flusher, logger: s.logger}
	out.Emit(r.Context(), domain.Event{Type: domain.EventStatus, Message: msgConnected})

	if err := s.turns.Turn(r.Context(), req, out); err != nil {
		if errors.Is(err, context.Canceled) {
			s.logger.Info("Chat: Client disconnected", "session_id", req.SessionID)
			return
		}
		s.logger.Debug("Chat: Turn ended with error", "session_id", req.SessionID, "err", err)
	}
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.logger, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.logger, map[string]string{
		"app":     "zspa-http",
		"version": strings.TrimSpace(zspa.Version),
	})
}

type graphView struct {
	Entry   string       `json:"entry"`
	Nodes   []string     `json:"nodes"`
	Forks   []string     `json:"forks"`
	Edges   []graph.Edge `json:"edges"`
	Mermaid string       `json:"mermaid"`
}

// GetGraph handles the GET /graph request.
func (s *Server) GetGraph(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.logger, graphView{
		Entry:   s.graph.Entry(),
		Nodes:   s.graph.Nodes(),
		Forks:   s.graph.Forks(),
		Edges:   s.graph.Edges(),
		Mermaid: s.graph.Mermaid(nil),
	})
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Response encode failed", "err", err)
	}
}
