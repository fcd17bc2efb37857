package mcp

import (
	"log/slog"

	"github.com/mark3labs/mcp-go/server"
	"github.com/tallydash/tallygate/internal/core/port"
	"github.com/tallydash/tallygate/internal/core/service"
	"github.com/tallydash/tallygate/internal/policy"
	"go.opentelemetry.io/otel/trace"
)

// NewServer creates an MCPServer with tools and logging hooks.
func NewServer(version string, query *service.QueryService, reports *service.ReportService, policies *policy.Store, logger *slog.Logger, tracer trace.Tracer, inst port.Instrumentation) *server.MCPServer {
	s := server.NewMCPServer(
		serverName,
		version,
		server.WithHooks(ToolCallHooks(logger, tracer, inst)),
	)

	RegisterTools(s, query, reports, policies, logger)

	return s
}
