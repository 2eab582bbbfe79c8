package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/a11ykraft/a11ykraft/internal/domain"
)

// registerResources registers all a11ykraft MCP resources on the given server.
func registerResources(s *server.MCPServer, d Deps) {
	// 1. a11ykraft://history - compliance trend
	s.AddResource(
		mcplib.NewResource(
			"a11ykraft://history",
			"Compliance History",
			mcplib.WithResourceDescription("Compliance percentage and violation count of every recorded scan, oldest first"),
			mcplib.WithMIMEType("application/json"),
		),
		handleHistoryResource(d),
	)

	// 2. a11ykraft://config - effective configuration
	s.AddResource(
		mcplib.NewResource(
			"a11ykraft://config",
			"Configuration",
			mcplib.WithResourceDescription("Effective scan configuration after defaults and environment overrides"),
			mcplib.WithMIMEType("application/json"),
		),
		handleConfigResource(d),
	)
}

func handleHistoryResource(d Deps) server.ResourceHandlerFunc {
	return func(_ context.Context, _ mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
		entries, err := d.Reports.History(d.ProjectPath)
		if err != nil {
			return nil, err
		}
		if entries == nil {
			entries = []domain.ReportEntry{}
		}
		return jsonResource("a11ykraft://history", entries)
	}
}

func handleConfigResource(d Deps) server.ResourceHandlerFunc {
	return func(_ context.Context, _ mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
		return jsonResource("a11ykraft://config", d.Config)
	}
}

func jsonResource(uri string, v any) ([]mcplib.ResourceContents, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling %s: %w", uri, err)
	}
	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
