package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/aretw0/agentflow/internal/logging"
	"github.com/aretw0/agentflow/internal/presentation/graph"
	"github.com/aretw0/agentflow/pkg/domain"
	"github.com/aretw0/agentflow/pkg/ports"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/oapi-codegen/runtime"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	codeInvalidRequest = "invalid_request"
	maxBodyBytes       = 4 << 20
)

// Server exposes a ports.Engine over HTTP.
type Server struct {
	Engine ports.Engine

	logger         *slog.Logger
	defaultGraphID string
	gatherer       prometheus.Gatherer
	corsOrigins    []string
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the logger for request and error logs.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithDefaultGraph advertises a graph ID on GET /.
func WithDefaultGraph(graphID string) Option {
	return func(s *Server) {
		s.defaultGraphID = graphID
	}
}

// WithGatherer sets the registry served at /metrics (default: prometheus.DefaultGatherer).
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// WithCORSOrigins restricts cross-origin access. "*" or an empty list allows any origin.
func WithCORSOrigins(origins []string) Option {
	return func(s *Server) {
		s.corsOrigins = origins
	}
}

// NewHandler creates a new HTTP handler for the engine.
func NewHandler(engine ports.Engine, opts ...Option) (http.Handler, error) {
	s := &Server{
		Engine:   engine,
		logger:   logging.NewNop(),
		gatherer: prometheus.DefaultGatherer,
	}
	for _, opt := range opts {
		opt(s)
	}

	doc, err := Spec()
	if err != nil {
		return nil, err
	}
	validator, err := validateRequests(doc, s.logger)
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(s.logger))
	r.Use(enableCORS(s.corsOrigins))

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		_, _ = w.Write(rawSpec)
	})
	r.Get("/swagger", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(swaggerHTML))
	})
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Group(func(r chi.Router) {
		r.Use(validator)
		r.Get("/", s.Root)
		r.Get("/health", s.Health)
		r.Post("/graph/create", s.CreateGraph)
		r.Post("/graph/run", s.RunGraph)
		r.Get("/graph/state/{run_id}", s.GetRunState)
		r.Get("/graphs", s.ListGraphs)
		r.Get("/graph/{graph_id}/mermaid", s.GraphMermaid)
	})

	return r, nil
}

const swaggerHTML = `
<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="utf-8" />
    <meta name="viewport" content="width=device-width, initial-scale=1" />
    <title>agentflow API Documentation</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui.css" />
</head>
<body>
<div id="swagger-ui"></div>
<script src="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui-bundle.js" crossorigin></script>
<script>
    window.onload = () => {
    window.ui = SwaggerUIBundle({
        url: '/openapi.yaml',
        dom_id: '#swagger-ui',
    });
    };
</script>
</body>
</html>
`

// Root handles GET /.
func (s *Server) Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, RootResponse{
		Message:        "agentflow is running",
		ExampleGraphID: s.defaultGraphID,
		Hint:           "Use POST /graph/run with a graph_id and an initial_state.",
	})
}

// Health handles GET /health.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// CreateGraph handles POST /graph/create.
func (s *Server) CreateGraph(w http.ResponseWriter, r *http.Request) {
	var body CreateGraphRequest
	if !s.decode(w, r, &body) {
		return
	}

	id, err := s.Engine.CreateGraph(r.Context(), body.Spec())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, CreateGraphResponse{GraphID: id})
}

// RunGraph handles POST /graph/run.
// Execution failures are part of the run record and still answer 200.
func (s *Server) RunGraph(w http.ResponseWriter, r *http.Request) {
	var body RunGraphRequest
	if !s.decode(w, r, &body) {
		return
	}

	run, err := s.Engine.Run(r.Context(), body.GraphID, body.InitialState)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if run.Status != domain.StatusCompleted {
		s.logger.Warn("Run did not complete", "run_id", run.ID, "status", run.Status, "code", run.ErrorCode)
	}
	writeJSON(w, http.StatusOK, newRunGraphResponse(run))
}

// GetRunState handles GET /graph/state/{run_id}.
func (s *Server) GetRunState(w http.ResponseWriter, r *http.Request) {
	var runID string
	if !s.bindPath(w, r, "run_id", &runID) {
		return
	}

	run, err := s.Engine.GetRun(r.Context(), runID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newRunStateResponse(run))
}

// ListGraphs handles GET /graphs.
func (s *Server) ListGraphs(w http.ResponseWriter, r *http.Request) {
	specs, err := s.Engine.ListGraphs(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if specs == nil {
		specs = []domain.GraphSpec{}
	}
	writeJSON(w, http.StatusOK, specs)
}

// GraphMermaid handles GET /graph/{graph_id}/mermaid.
// With ?run_id= the visited nodes of that run are highlighted.
func (s *Server) GraphMermaid(w http.ResponseWriter, r *http.Request) {
	var graphID string
	if !s.bindPath(w, r, "graph_id", &graphID) {
		return
	}
	var runID string
	if err := runtime.BindQueryParameter("form", true, false, "run_id", r.URL.Query(), &runID); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: codeInvalidRequest})
		return
	}

	spec, err := s.Engine.Graph(r.Context(), graphID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var overlay *graph.GraphOverlay
	if runID != "" {
		run, err := s.Engine.GetRun(r.Context(), runID)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		overlay = graph.OverlayFromRun(run, spec)
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(graph.GenerateMermaid(spec, overlay)))
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst); err != nil {
		s.logger.Warn("Invalid request body", "path", r.URL.Path, "err", err)
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body: " + err.Error(), Code: codeInvalidRequest})
		return false
	}
	return true
}

func (s *Server) bindPath(w http.ResponseWriter, r *http.Request, name string, dst *string) bool {
	err := runtime.BindStyledParameterWithOptions("simple", name, chi.URLParam(r, name), dst,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false})
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: codeInvalidRequest})
		return false
	}
	return true
}

// StatusFor maps an engine error to its HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrGraphExists):
		return http.StatusConflict
	case errors.Is(err, domain.ErrGraphNotFound), errors.Is(err, domain.ErrRunNotFound):
		return http.StatusNotFound
	case domain.IsDefinitionError(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("Request failed", "path", r.URL.Path, "err", err)
	} else {
		s.logger.Warn("Request rejected", "path", r.URL.Path, "status", status, "err", err)
	}
	writeJSON(w, status, ErrorResponse{Error: err.Error(), Code: domain.ErrorCode(err)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
