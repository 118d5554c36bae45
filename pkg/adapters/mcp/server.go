package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/agentflow"
	"github.com/aretw0/agentflow/internal/logging"
	"github.com/aretw0/agentflow/pkg/domain"
	"github.com/aretw0/agentflow/pkg/ports"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/mitchellh/mapstructure"
)

const graphsResourceURI = "agentflow://graphs"

// RunResult aligns with the HTTP run response and provides a unified structure across adapters.
type RunResult struct {
	RunID     string         `json:"run_id" jsonschema_description:"Identifier of the recorded run"`
	GraphID   string         `json:"graph_id" jsonschema_description:"Graph that was executed"`
	Status    string         `json:"status" jsonschema_description:"running, completed, failed or step_limit_exceeded"`
	StepCount int            `json:"step_count" jsonschema_description:"Number of successful node invocations"`
	State     map[string]any `json:"state" jsonschema_description:"Last successful state without control keys"`
	Log       []domain.Step  `json:"log" jsonschema_description:"One entry per successful step"`
	Error     string         `json:"error,omitempty" jsonschema_description:"Failure message for failed runs"`
	ErrorCode string         `json:"error_code,omitempty" jsonschema_description:"Stable error code for failed runs"`
}

// CreateGraphResult is returned by create_graph.
type CreateGraphResult struct {
	GraphID string `json:"graph_id" jsonschema_description:"Identifier of the stored graph"`
}

type createGraphArgs struct {
	GraphID   string            `mapstructure:"graph_id"`
	Nodes     []string          `mapstructure:"nodes"`
	Edges     map[string]string `mapstructure:"edges"`
	StartNode string            `mapstructure:"start_node"`
}

type runGraphArgs struct {
	GraphID      string         `mapstructure:"graph_id"`
	InitialState map[string]any `mapstructure:"initial_state"`
}

// Server wraps the engine and exposes it as an MCP Server.
type Server struct {
	engine    ports.Engine
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(engine ports.Engine, opts ...Option) *Server {
	s := &Server{
		engine:    engine,
		logger:    logging.NewNop(),
		mcpServer: server.NewMCPServer("agentflow-mcp", strings.TrimSpace(agentflow.Version)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying mcp-go server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves the SSE transport on addr until ctx is canceled.
func (s *Server) ServeSSE(ctx context.Context, addr, baseURL string) error {
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
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

		s.logger.Info("Shutdown signal received, stopping MCP server")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	// TOOL: create_graph
	createTool := mcp.NewTool("create_graph",
		mcp.WithDescription("Define a graph over registered nodes. Returns the graph ID."),
		mcp.WithString("graph_id", mcp.Description("Identifier to store the graph under (generated when omitted)")),
		mcp.WithArray("nodes", mcp.Required(), mcp.WithStringItems(), mcp.Description("Names of the registered nodes in the graph")),
		mcp.WithObject("edges", mcp.Description("Static successor per node, used when a node sets no control key")),
		mcp.WithString("start_node", mcp.Required(), mcp.Description("Entry node; must be one of nodes")),
		mcp.WithOutputSchema[CreateGraphResult](),
	)
	s.mcpServer.AddTool(createTool, mcp.NewStructuredToolHandler(s.handleCreateGraph))

	// TOOL: run_graph
	runTool := mcp.NewTool("run_graph",
		mcp.WithDescription("Run a stored graph to completion and return the recorded run."),
		mcp.WithString("graph_id", mcp.Required(), mcp.Description("Graph to execute")),
		mcp.WithObject("initial_state", mcp.Description("Initial shared state (JSON object)")),
		mcp.WithOutputSchema[RunResult](),
	)
	s.mcpServer.AddTool(runTool, mcp.NewStructuredToolHandler(s.handleRunGraph))

	// TOOL: get_run_state
	stateTool := mcp.NewTool("get_run_state",
		mcp.WithDescription("Fetch the recorded state of a run."),
		mcp.WithString("run_id", mcp.Required(), mcp.Description("Run identifier returned by run_graph")),
		mcp.WithOutputSchema[RunResult](),
	)
	s.mcpServer.AddTool(stateTool, mcp.NewStructuredToolHandler(s.handleGetRunState))

	// TOOL: list_graphs
	s.mcpServer.AddTool(mcp.NewTool("list_graphs",
		mcp.WithDescription("List the stored graph definitions."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		data, err := s.graphsJSON(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("list failed: %v", err)), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	})
}

func (s *Server) handleCreateGraph(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (CreateGraphResult, error) {
	var in createGraphArgs
	if err := decodeArgs(args, &in); err != nil {
		return CreateGraphResult{}, err
	}

	id, err := s.engine.CreateGraph(ctx, domain.GraphSpec{
		ID:    in.GraphID,
		Entry: in.StartNode,
		Nodes: in.Nodes,
		Edges: in.Edges,
	})
	if err != nil {
		s.logger.Warn("MCP create_graph rejected", "err", err)
		return CreateGraphResult{}, fmt.Errorf("create failed (%s): %w", domain.ErrorCode(err), err)
	}
	return CreateGraphResult{GraphID: id}, nil
}

func (s *Server) handleRunGraph(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (RunResult, error) {
	var in runGraphArgs
	if err := decodeArgs(args, &in); err != nil {
		return RunResult{}, err
	}

	run, err := s.engine.Run(ctx, in.GraphID, in.InitialState)
	if err != nil {
		return RunResult{}, fmt.Errorf("run failed (%s): %w", domain.ErrorCode(err), err)
	}
	return newRunResult(run), nil
}

func (s *Server) handleGetRunState(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (RunResult, error) {
	runID, _ := args["run_id"].(string)

	run, err := s.engine.GetRun(ctx, runID)
	if err != nil {
		return RunResult{}, fmt.Errorf("lookup failed (%s): %w", domain.ErrorCode(err), err)
	}
	return newRunResult(run), nil
}

func (s *Server) registerResources() {
	// EXPOSE: agentflow://graphs
	s.mcpServer.AddResource(mcp.NewResource(graphsResourceURI, "Stored Graph Definitions",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		data, err := s.graphsJSON(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list graphs: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      graphsResourceURI,
				MIMEType: "application/json",
				Text:     string(data),
			},
		}, nil
	})
}

func (s *Server) graphsJSON(ctx context.Context) ([]byte, error) {
	specs, err := s.engine.ListGraphs(ctx)
	if err != nil {
		return nil, err
	}
	if specs == nil {
		specs = []domain.GraphSpec{}
	}
	return json.Marshal(specs)
}

// decodeArgs maps loosely typed tool arguments onto a typed struct.
// Object arguments may also arrive as JSON strings from clients without object support.
func decodeArgs(args map[string]interface{}, out any) error {
	normalized := make(map[string]interface{}, len(args))
	for k, v := range args {
		if str, ok := v.(string); ok && (strings.HasPrefix(str, "{") || strings.HasPrefix(str, "[")) {
			var parsed interface{}
			if err := json.Unmarshal([]byte(str), &parsed); err == nil {
				v = parsed
			}
		}
		normalized[k] = v
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(normalized); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

func newRunResult(run *domain.Run) RunResult {
	state := map[string]any(run.State)
	if state == nil {
		state = map[string]any{}
	}
	log := run.Log
	if log == nil {
		log = []domain.Step{}
	}
	return RunResult{
		RunID:     run.ID,
		GraphID:   run.GraphID,
		Status:    string(run.Status),
		StepCount: run.StepCount,
		State:     state,
		Log:       log,
		Error:     run.Error,
		ErrorCode: run.ErrorCode,
	}
}
