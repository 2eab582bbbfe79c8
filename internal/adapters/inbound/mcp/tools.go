package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/a11ykraft/a11ykraft/internal/application"
	"github.com/a11ykraft/a11ykraft/internal/domain"
)

// registerTools registers all a11ykraft MCP tools on the given server.
func registerTools(s *server.MCPServer, d Deps) {
	// 1. a11y_analyze
	s.AddTool(
		mcplib.NewTool("a11y_analyze",
			mcplib.WithDescription("Analyze pages for accessibility violations. Starts a background run and returns its id; with wait=true blocks and returns the finished run."),
			mcplib.WithString("urls",
				mcplib.Required(),
				mcplib.Description("Comma-separated page URLs"),
			),
			mcplib.WithBoolean("wait", mcplib.Description("Wait for the run to finish")),
			mcplib.WithNumber("max_concurrency", mcplib.Description("Override the number of pages analyzed in parallel")),
		),
		handleAnalyze(d),
	)

	// 2. a11y_status
	s.AddTool(
		mcplib.NewTool("a11y_status",
			mcplib.WithDescription("Return the status of an analysis run, including its outcome once finished"),
			mcplib.WithString("id",
				mcplib.Required(),
				mcplib.Description("Run id returned by a11y_analyze"),
			),
		),
		handleStatus(d),
	)

	// 3. a11y_active
	s.AddTool(
		mcplib.NewTool("a11y_active",
			mcplib.WithDescription("List analysis runs that are still running"),
		),
		handleActive(d),
	)

	// 4. a11y_cancel
	s.AddTool(
		mcplib.NewTool("a11y_cancel",
			mcplib.WithDescription("Cancel a running analysis. Pages already analyzed are kept."),
			mcplib.WithString("id",
				mcplib.Required(),
				mcplib.Description("Run id to cancel"),
			),
		),
		handleCancel(d),
	)

	// 5. a11y_metrics
	s.AddTool(
		mcplib.NewTool("a11y_metrics",
			mcplib.WithDescription("Timing and success metrics of the most recently finished run"),
		),
		handleMetrics(d),
	)

	// 6. a11y_report
	s.AddTool(
		mcplib.NewTool("a11y_report",
			mcplib.WithDescription("Scan a site and return the site-wide WCAG compliance report. With latest=true returns the last archived report instead."),
			mcplib.WithString("site", mcplib.Description("Site URL (defaults to site_url from .a11ykraft.yaml)")),
			mcplib.WithString("urls", mcplib.Description("Comma-separated page URLs; pages are discovered from the site when omitted")),
			mcplib.WithString("level", mcplib.Description("WCAG level: A, AA or AAA")),
			mcplib.WithBoolean("latest", mcplib.Description("Return the last archived report without scanning")),
		),
		handleReport(d),
	)
}

func handleAnalyze(d Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
		urlsStr, err := request.RequireString("urls")
		if err != nil {
			return errorResult(err.Error()), nil
		}
		urls := splitAndTrim(urlsStr)
		if len(urls) == 0 {
			return errorResult("urls must name at least one page"), nil
		}

		pages := make([]domain.PageTarget, len(urls))
		for i, u := range urls {
			pages[i] = domain.PageTarget{URL: u}
		}

		args := request.GetArguments()
		opts := d.Config.Options()
		if n, ok := args["max_concurrency"].(float64); ok && n > 0 {
			opts.MaxConcurrency = int(n)
		}

		if wait, _ := args["wait"].(bool); wait {
			status, err := d.Analysis.Analyze(ctx, "", pages, opts)
			if err != nil {
				return errorResult(fmt.Sprintf("analysis failed: %v", err)), nil
			}
			return jsonResult(status)
		}

		id, err := d.Analysis.Start(ctx, pages, opts)
		if err != nil {
			return errorResult(fmt.Sprintf("analysis failed: %v", err)), nil
		}
		return jsonResult(map[string]any{"id": id, "state": domain.RunRunning, "total_pages": len(pages)})
	}
}

func handleStatus(d Deps) server.ToolHandlerFunc {
	return func(_ context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
		id, err := request.RequireString("id")
		if err != nil {
			return errorResult(err.Error()), nil
		}
		status, ok := d.Analysis.GetAnalysisStatus(id)
		if !ok {
			return errorResult(fmt.Sprintf("unknown analysis %q", id)), nil
		}
		return jsonResult(status)
	}
}

func handleActive(d Deps) server.ToolHandlerFunc {
	return func(_ context.Context, _ mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
		return jsonResult(d.Analysis.GetActiveAnalyses())
	}
}

func handleCancel(d Deps) server.ToolHandlerFunc {
	return func(_ context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
		id, err := request.RequireString("id")
		if err != nil {
			return errorResult(err.Error()), nil
		}
		return jsonResult(map[string]any{"id": id, "cancelled": d.Analysis.CancelAnalysis(id)})
	}
}

func handleMetrics(d Deps) server.ToolHandlerFunc {
	return func(_ context.Context, _ mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
		return jsonResult(d.Analysis.GetAnalysisMetrics())
	}
}

func handleReport(d Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
		args := request.GetArguments()

		site, _ := args["site"].(string)
		if site == "" {
			site = d.Config.SiteURL
		}

		if latest, _ := args["latest"].(bool); latest {
			if site == "" {
				return errorResult("site is required"), nil
			}
			report, err := d.Reports.Latest(ctx, site)
			if err != nil {
				return errorResult(err.Error()), nil
			}
			if report == nil {
				return errorResult(fmt.Sprintf("no archived report for %s", site)), nil
			}
			return jsonResult(report)
		}

		req := application.ScanRequest{
			ProjectPath: d.ProjectPath,
			SiteURL:     site,
			MaxPages:    d.Config.MaxPages,
			WCAGLevel:   d.Config.Level(),
			Options:     d.Config.Options(),
		}
		if urlsStr, ok := args["urls"].(string); ok && urlsStr != "" {
			req.URLs = splitAndTrim(urlsStr)
		}
		if levelStr, ok := args["level"].(string); ok && levelStr != "" {
			level, ok := domain.ParseWCAGLevel(levelStr)
			if !ok {
				return errorResult(fmt.Sprintf("unknown level %q (valid: A, AA, AAA)", levelStr)), nil
			}
			req.WCAGLevel = level
		}

		result, err := d.Reports.Scan(ctx, req)
		if err != nil {
			return errorResult(fmt.Sprintf("scan failed: %v", err)), nil
		}
		return jsonResult(result)
	}
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	var result []string
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// jsonResult marshals v to JSON and returns it as a text content result.
func jsonResult(v any) (*mcplib.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling result: %w", err)
	}
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{mcplib.NewTextContent(string(data))},
	}, nil
}

// errorResult returns a tool result that indicates an error occurred.
func errorResult(msg string) *mcplib.CallToolResult {
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{mcplib.NewTextContent(msg)},
		IsError: true,
	}
}
