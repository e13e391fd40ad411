package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/claude/liftlog/internal/export"
	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/processor"
)

// EventHandler processes decoded webhook events.
type EventHandler interface {
	HandleEvents(ctx context.Context, evts []models.Event) ([]processor.Outcome, error)
}

// ExportService publishes and reads aggregated training history.
type ExportService interface {
	Export(ctx context.Context) (*export.Result, error)
	History(ctx context.Context, filter models.RecordFilter) ([]models.ExportEntry, error)
}

// ArtifactFiles resolves locally published export files.
type ArtifactFiles interface {
	Path(token, name string) (string, error)
}

// Deps are the collaborators the HTTP layer dispatches to. Artifacts and MCP
// may be nil.
type Deps struct {
	Events    EventHandler
	Exports   ExportService
	Artifacts ArtifactFiles
	MCP       http.Handler
	Location  *time.Location
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	events        EventHandler
	exports       ExportService
	artifacts     ArtifactFiles
	mcp           http.Handler
	loc           *time.Location
	channelSecret string
	apiKey        string
	log           *slog.Logger
	router        chi.Router
}

// New creates a new Server with all routes configured. An empty
// channelSecret disables webhook signature checks.
func New(deps Deps, channelSecret, apiKey string, log *slog.Logger) *Server {
	loc := deps.Location
	if loc == nil {
		loc = time.UTC
	}
	s := &Server{
		events:        deps.Events,
		exports:       deps.Exports,
		artifacts:     deps.Artifacts,
		mcp:           deps.MCP,
		loc:           loc,
		channelSecret: channelSecret,
		apiKey:        apiKey,
		log:           log,
		router:        chi.NewRouter(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Use(RequestLogging(s.log))

	s.router.Get("/health", s.handleHealth)

	// LINE platform webhook (signature verified when a channel secret is set)
	s.router.Group(func(r chi.Router) {
		if s.channelSecret != "" {
			r.Use(LineSignature(s.channelSecret))
		}
		r.Post("/webhook/line", s.handleLineWebhook)
	})

	// Operator endpoints (API key required)
	s.router.Group(func(r chi.Router) {
		r.Use(APIKeyAuth(s.apiKey))
		r.Post("/api/v1/export", s.handleExport)
		r.Get("/api/v1/history", s.handleHistory)
		if s.mcp != nil {
			r.Handle("/mcp", s.mcp)
		}
	})

	// Locally published export artifacts (unguessable token in the path)
	s.router.Get("/exports/{token}/{name}", s.handleArtifact)
}
