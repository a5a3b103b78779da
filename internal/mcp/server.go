// ABOUTME: MCP server setup for the nutrition tracker.
// ABOUTME: Wraps the MCP server with tracker access and an optional syncer.
package mcp

import (
	"context"

	"github.com/harperreed/nutrition/internal/models"
	nsync "github.com/harperreed/nutrition/internal/sync"
	"github.com/harperreed/nutrition/internal/tracker"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Syncer runs a sync cycle on demand.
type Syncer interface {
	Sync(ctx context.Context) (nsync.Result, error)
}

// Server wraps the MCP server with tracker access.
type Server struct {
	mcpServer *mcp.Server
	tracker   *tracker.Tracker
	syncer    Syncer // nil when sync is not configured
	today     func() string
}

// NewServer creates a new MCP server. syncer may be nil.
func NewServer(tr *tracker.Tracker, syncer Syncer) (*Server, error) {
	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    "nutrition",
			Version: "1.0.0",
		},
		nil,
	)

	s := &Server{
		mcpServer: mcpServer,
		tracker:   tr,
		syncer:    syncer,
		today:     models.Today,
	}

	s.registerTools()
	s.registerResources()

	return s, nil
}

// Serve starts the MCP server using stdio transport.
func (s *Server) Serve(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) dateOrToday(date string) string {
	if date == "" {
		return s.today()
	}
	return date
}
