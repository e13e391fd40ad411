package mcp

import (
	"context"
	"log/slog"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/claude/liftlog/internal/models"
)

// DataSource is the read side of the training log the tools query.
// *storage.DB and *storage.SQLiteDB both satisfy it.
type DataSource interface {
	QueryTrainingRecords(ctx context.Context, filter models.RecordFilter) ([]models.TrainingRecord, error)
	Location() *time.Location
}

// New creates an MCP server with all tools and resources registered.
func New(ds DataSource, version string, log *slog.Logger) *server.MCPServer {
	s := server.NewMCPServer("liftlog", version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithInstructions("liftlog training log server. Query recorded strength sets and per-session history. Dates are calendar days in the log's time zone."),
	)

	h := newHandlers(ds, log)

	s.AddTools(
		server.ServerTool{Tool: toolGetTrainingSets, Handler: h.getTrainingSets},
		server.ServerTool{Tool: toolGetTrainingHistory, Handler: h.getTrainingHistory},
		server.ServerTool{Tool: toolListExercises, Handler: h.listExercises},
	)

	s.AddResources(
		server.ServerResource{Resource: resRecentHistory, Handler: h.recentHistory},
	)

	return s
}

// NewHTTPHandler wraps an MCP server in the streamable HTTP transport.
func NewHTTPHandler(s *server.MCPServer) *server.StreamableHTTPServer {
	return server.NewStreamableHTTPServer(s, server.WithStateLess(true))
}

// handlers holds dependencies for MCP tool/resource handlers.
type handlers struct {
	ds  DataSource
	loc *time.Location
	log *slog.Logger
	now func() time.Time
}

func newHandlers(ds DataSource, log *slog.Logger) *handlers {
	loc := ds.Location()
	if loc == nil {
		loc = time.UTC
	}
	return &handlers{ds: ds, loc: loc, log: log, now: time.Now}
}

var resRecentHistory = mcp.NewResource(
	"liftlog://recent_history",
	"Recent History",
	mcp.WithResourceDescription("Training sessions from the last 14 days, grouped by date and location"),
	mcp.WithMIMEType("application/json"),
)
