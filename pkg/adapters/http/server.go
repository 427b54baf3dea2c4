// Package http exposes the agent over a chi HTTP API.
package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aretw0/agentgraph/internal/logging"
	"github.com/aretw0/agentgraph/internal/sanitize"
	"github.com/aretw0/agentgraph/pkg/domain"
	"github.com/aretw0/agentgraph/pkg/ports"
	"github.com/aretw0/agentgraph/pkg/session"
)

// Agent is the subset of the agentgraph facade used by the server.
type Agent interface {
	ports.GraphRunner
	// NewRun builds the initial state of a turn.
	NewRun(chatID, userInput string, opts ...domain.StateOption) *domain.RunState
}

// Server serves the run API.
type Server struct {
	agent    Agent
	sessions *session.Manager
	streams  *StreamManager
	logger   *slog.Logger

	gatherer     prometheus.Gatherer
	graph        string
	maxInputSize int
}

type Option func(*Server)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics serves the gatherer's metrics on /metrics.
func WithMetrics(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// WithGraph serves a rendered graph definition on /graph.
func WithGraph(mermaid string) Option {
	return func(s *Server) {
		s.graph = mermaid
	}
}

// WithMaxInputSize overrides sanitize.DefaultMaxInputSize.
func WithMaxInputSize(n int) Option {
	return func(s *Server) {
		s.maxInputSize = n
	}
}

// RunRequest is the body of POST /runs.
type RunRequest struct {
	// ChatID continues a conversation; empty starts a new one.
	ChatID             string `json:"chat_id,omitempty"`
	Input              string `json:"input"`
	RequiresValidation *bool  `json:"requires_validation,omitempty"`
	RetrievedMemory    string `json:"retrieved_memory,omitempty"`
}

// RunResponse summarizes a run.
type RunResponse struct {
	ChatID      string           `json:"chat_id"`
	Phase       domain.Phase     `json:"phase"`
	Completed   bool             `json:"completed"`
	FinalAnswer string           `json:"final_answer,omitempty"`
	Failure     string           `json:"failure,omitempty"`
	Iteration   int              `json:"iteration"`
	Plan        []string         `json:"plan"`
	Messages    []domain.Message `json:"messages"`
	ToolsUsed   int              `json:"tools_used"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// NewHandler creates the HTTP handler for agent.
func NewHandler(agent Agent, sessions *session.Manager, opts ...Option) http.Handler {
	s := &Server{
		agent:    agent,
		sessions: sessions,
		streams:  NewStreamManager(),
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.streams.logger = s.logger

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(enableCORS)

	r.Get("/health", s.GetHealth)
	r.Route("/runs", func(r chi.Router) {
		r.Get("/", s.ListRuns)
		r.Post("/", s.CreateRun)
		r.Get("/{chatID}", s.GetRun)
		r.Delete("/{chatID}", s.DeleteRun)
		r.Get("/{chatID}/events", s.SubscribeEvents)
	})
	if s.graph != "" {
		r.Get("/graph", s.GetGraph)
	}
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// CreateRun handles POST /runs. It runs the turn to completion before
// responding. A run that ends in a failure is still a 200: the failure is
// part of the result.
func (s *Server) CreateRun(w http.ResponseWriter, r *http.Request) {
	var body RunRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		s.logger.Warn("CreateRun: invalid request body", "error", err)
		return
	}
	input, err := sanitize.Input(body.Input, s.maxInputSize)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid input: %v", err))
		s.logger.Warn("CreateRun: input rejected", "error", err, "size", len(body.Input))
		return
	}
	chatID := body.ChatID
	if chatID == "" {
		chatID = ulid.Make().String()
	}

	var stateOpts []domain.StateOption
	if body.RequiresValidation != nil {
		stateOpts = append(stateOpts, domain.WithRequiresValidation(*body.RequiresValidation))
	}
	if body.RetrievedMemory != "" {
		stateOpts = append(stateOpts, domain.WithRetrievedMemory(body.RetrievedMemory))
	}
	start := func() *domain.RunState {
		return s.agent.NewRun(chatID, input, stateOpts...)
	}

	started := time.Now()
	runner := &streamingRunner{GraphRunner: s.agent, streams: s.streams}
	state, err := s.sessions.Turn(r.Context(), chatID, start, runner)
	if err != nil && (state == nil || !state.Finished()) {
		s.writeError(w, http.StatusInternalServerError, fmt.Sprintf("run error: %v", err))
		s.logger.Error("CreateRun failed", "chat_id", chatID, "error", err)
		return
	}
	s.logger.Info("run finished", "chat_id", chatID, "phase", state.CurrentPhase,
		"iteration", state.Iteration, "duration", time.Since(started), "error", err)

	s.writeJSON(w, http.StatusOK, summarize(state))
}

// GetRun handles GET /runs/{chatID}.
func (s *Server) GetRun(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatID")
	state, err := s.sessions.Load(r.Context(), chatID)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			s.writeError(w, http.StatusNotFound, "run not found")
			return
		}
		s.writeError(w, http.StatusInternalServerError, fmt.Sprintf("load error: %v", err))
		s.logger.Error("GetRun failed", "chat_id", chatID, "error", err)
		return
	}
	s.writeJSON(w, http.StatusOK, summarize(state))
}

// DeleteRun handles DELETE /runs/{chatID}.
func (s *Server) DeleteRun(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatID")
	if err := s.sessions.Delete(r.Context(), chatID); err != nil {
		s.writeError(w, http.StatusInternalServerError, fmt.Sprintf("delete error: %v", err))
		s.logger.Error("DeleteRun failed", "chat_id", chatID, "error", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListRuns handles GET /runs.
func (s *Server) ListRuns(w http.ResponseWriter, r *http.Request) {
	chats, err := s.sessions.List(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, fmt.Sprintf("list error: %v", err))
		return
	}
	if chats == nil {
		chats = []string{}
	}
	s.writeJSON(w, http.StatusOK, map[string][]string{"chat_ids": chats})
}

// GetGraph handles GET /graph.
func (s *Server) GetGraph(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(s.graph))
}

// GetHealth handles GET /health.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// SubscribeEvents handles GET /runs/{chatID}/events. Every step of a run of
// that chat is streamed as a JSON state diff.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}
	chatID := chi.URLParam(r, "chatID")

	ch, cancel := s.streams.Subscribe(chatID)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()
	s.logger.Debug("SSE: subscribed", "chat_id", chatID)

	for {
		select {
		case <-r.Context().Done():
			s.logger.Debug("SSE: client disconnected", "chat_id", chatID)
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorResponse{Error: msg})
}

func summarize(state *domain.RunState) RunResponse {
	plan := state.CurrentPlan
	if plan == nil {
		plan = []string{}
	}
	msgs := state.Messages
	if msgs == nil {
		msgs = []domain.Message{}
	}
	return RunResponse{
		ChatID:      state.ChatID,
		Phase:       state.CurrentPhase,
		Completed:   state.IsCompleted,
		FinalAnswer: state.FinalAnswer,
		Failure:     state.Failure,
		Iteration:   state.Iteration,
		Plan:        plan,
		Messages:    msgs,
		ToolsUsed:   len(state.ToolsUsed),
	}
}
