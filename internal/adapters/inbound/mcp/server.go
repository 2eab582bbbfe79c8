package mcp

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/a11ykraft/a11ykraft/internal/application"
	"github.com/a11ykraft/a11ykraft/internal/domain"
)

// Deps are the services the MCP tools and resources call into.
type Deps struct {
	// ProjectPath is where compliance history is read from.
	ProjectPath string
	Config      domain.ScanConfig
	Analysis    *application.AnalysisService
	Reports     *application.ReportService
}

// NewA11yKraftMCPServer creates a new MCP server with all a11ykraft tools and
// resources registered.
func NewA11yKraftMCPServer(d Deps) *server.MCPServer {
	s := server.NewMCPServer(
		"a11ykraft",
		"0.1.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(true, false),
	)

	registerTools(s, d)
	registerResources(s, d)

	return s
}
