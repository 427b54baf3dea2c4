// Package mcp exposes the agent as Model Context Protocol tools.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/oklog/ulid/v2"

	"github.com/aretw0/agentgraph/internal/logging"
	"github.com/aretw0/agentgraph/internal/sanitize"
	"github.com/aretw0/agentgraph/pkg/domain"
	"github.com/aretw0/agentgraph/pkg/ports"
	"github.com/aretw0/agentgraph/pkg/session"
)

// GraphURI is the resource URI of the rendered transition graph.
const GraphURI = "agentgraph://graph"

// Agent is the subset of the agentgraph facade used by the MCP server.
type Agent interface {
	ports.GraphRunner
	NewRun(chatID, userInput string, opts ...domain.StateOption) *domain.RunState
}

// AskArgs are the arguments of the ask_agent tool.
type AskArgs struct {
	Input              string `json:"input"`
	ChatID             string `json:"chat_id,omitempty"`
	RequiresValidation bool   `json:"requires_validation,omitempty"`
}

// RunArgs are the arguments of the get_run tool.
type RunArgs struct {
	ChatID string `json:"chat_id"`
}

// RunResponse is the structured result of every run tool.
type RunResponse struct {
	ChatID      string       `json:"chat_id" jsonschema_description:"Conversation identifier; pass it back to continue"`
	Phase       domain.Phase `json:"phase" jsonschema_description:"Phase the run stopped in"`
	Completed   bool         `json:"completed" jsonschema_description:"Whether the run finished"`
	FinalAnswer string       `json:"final_answer,omitempty" jsonschema_description:"The agent's answer"`
	Failure     string       `json:"failure,omitempty" jsonschema_description:"Why the run failed, if it did"`
	Iteration   int          `json:"iteration" jsonschema_description:"Node executions performed"`
	Plan        []string     `json:"plan" jsonschema_description:"Tasks still pending"`
}

// Server wraps the agent and exposes it as an MCP server.
type Server struct {
	agent     Agent
	sessions  *session.Manager
	mcpServer *server.MCPServer
	logger    *slog.Logger
	graph     string
	maxInput  int
}

type Option func(*Server)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithGraph exposes a rendered graph as a tool and a resource.
func WithGraph(mermaid string) Option {
	return func(s *Server) {
		s.graph = mermaid
	}
}

// WithMaxInputSize overrides sanitize.DefaultMaxInputSize.
func WithMaxInputSize(n int) Option {
	return func(s *Server) {
		s.maxInput = n
	}
}

// NewServer creates a new MCP server named after version.
func NewServer(agent Agent, sessions *session.Manager, version string, opts ...Option) *Server {
	s := &Server{
		agent:     agent,
		sessions:  sessions,
		mcpServer: server.NewMCPServer("agentgraph", version),
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying protocol server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves the SSE transport on addr until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, addr, baseURL string) error {
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", sseServer.SSEHandler())
	mux.Handle("/message", sseServer.MessageHandler())
	httpServer := &http.Server{Addr: addr, Handler: mux}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func (s *Server) registerTools() {
	askTool := mcp.NewTool("ask_agent",
		mcp.WithDescription("Ask the coding agent to complete a request. It plans, calls tools and returns a final answer."),
		mcp.WithString("input", mcp.Required(), mcp.Description("The user request")),
		mcp.WithString("chat_id", mcp.Description("Conversation to continue (optional)")),
		mcp.WithBoolean("requires_validation", mcp.Description("Validate the final answer before returning it")),
		mcp.WithOutputSchema[RunResponse](),
	)
	s.mcpServer.AddTool(askTool, mcp.NewStructuredToolHandler(s.handleAsk))

	runTool := mcp.NewTool("get_run",
		mcp.WithDescription("Get the stored state of a conversation's latest run."),
		mcp.WithString("chat_id", mcp.Required(), mcp.Description("Conversation identifier")),
		mcp.WithOutputSchema[RunResponse](),
	)
	s.mcpServer.AddTool(runTool, mcp.NewStructuredToolHandler(s.handleGetRun))

	if s.graph != "" {
		s.mcpServer.AddTool(mcp.NewTool("get_graph",
			mcp.WithDescription("Get the agent's phase transition graph as a Mermaid diagram."),
		), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return mcp.NewToolResultText(s.graph), nil
		})
	}
}

func (s *Server) registerResources() {
	if s.graph == "" {
		return
	}
	s.mcpServer.AddResource(mcp.NewResource(GraphURI, "Agent Phase Graph",
		mcp.WithMIMEType("text/plain"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      GraphURI,
				MIMEType: "text/plain",
				Text:     s.graph,
			},
		}, nil
	})
}

func (s *Server) handleAsk(ctx context.Context, request mcp.CallToolRequest, args AskArgs) (RunResponse, error) {
	input, err := sanitize.Input(args.Input, s.maxInput)
	if err != nil {
		s.logger.Warn("MCP ask: input rejected", "error", err, "size", len(args.Input))
		return RunResponse{}, fmt.Errorf("input rejected: %w", err)
	}
	chatID := args.ChatID
	if chatID == "" {
		chatID = ulid.Make().String()
	}
	start := func() *domain.RunState {
		return s.agent.NewRun(chatID, input, domain.WithRequiresValidation(args.RequiresValidation))
	}

	state, err := s.sessions.Turn(ctx, chatID, start, s.agent)
	if err != nil && (state == nil || !state.Finished()) {
		return RunResponse{}, fmt.Errorf("run failed: %w", err)
	}
	if err != nil {
		s.logger.Warn("MCP ask: run ended in failure", "chat_id", chatID, "error", err)
	}
	return summarize(state), nil
}

func (s *Server) handleGetRun(ctx context.Context, request mcp.CallToolRequest, args RunArgs) (RunResponse, error) {
	if args.ChatID == "" {
		return RunResponse{}, errors.New("chat_id is required")
	}
	state, err := s.sessions.Load(ctx, args.ChatID)
	if err != nil {
		return RunResponse{}, fmt.Errorf("load failed: %w", err)
	}
	return summarize(state), nil
}

func summarize(state *domain.RunState) RunResponse {
	plan := state.CurrentPlan
	if plan == nil {
		plan = []string{}
	}
	return RunResponse{
		ChatID:      state.ChatID,
		Phase:       state.CurrentPhase,
		Completed:   state.IsCompleted,
		FinalAnswer: state.FinalAnswer,
		Failure:     state.Failure,
		Iteration:   state.Iteration,
		Plan:        plan,
	}
}
