package cli

import (
	"os"
	"strings"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	mcpadapter "github.com/a11ykraft/a11ykraft/internal/adapters/inbound/mcp"
)

func newMCPCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "MCP server commands",
		Long:  "Commands for running the a11ykraft MCP (Model Context Protocol) server.",
	}
	cmd.AddCommand(newMCPServeCmd())
	return cmd
}

func newMCPServeCmd() *cobra.Command {
	var projectPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start a11ykraft MCP server (stdio)",
		Long:  "Start the a11ykraft MCP server using stdio transport. Assistants can start analysis runs, poll and cancel them, and read compliance reports and history.",
		RunE: func(cmd *cobra.Command, args []string) error {
			absPath, err := absProjectPath(projectPath)
			if err != nil {
				return err
			}

			svc, err := newServices(cmd.Context(), absPath)
			if err != nil {
				return err
			}
			defer svc.Close()

			// stdout carries the protocol.
			if strings.EqualFold(svc.cfg.Log.Output, "stdout") {
				svc.log.SetOutput(os.Stderr)
			}

			s := mcpadapter.NewA11yKraftMCPServer(mcpadapter.Deps{
				ProjectPath: absPath,
				Config:      svc.cfg,
				Analysis:    svc.analysis,
				Reports:     svc.reports,
			})
			return server.ServeStdio(s)
		},
	}

	cmd.Flags().StringVar(&projectPath, "path", "", "Project path (defaults to current working directory)")

	return cmd
}
