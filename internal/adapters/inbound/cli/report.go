package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/a11ykraft/a11ykraft/internal/adapters/outbound/tui"
)

func newReportCmd() *cobra.Command {
	var (
		projectPath string
		jsonOutput  bool
	)

	cmd := &cobra.Command{
		Use:   "report [site]",
		Short: "Show the latest archived report for a site",
		Args:  cobra.MaximumNArgs(1),
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

			site := svc.cfg.SiteURL
			if len(args) > 0 {
				site = args[0]
			}
			if site == "" {
				return fmt.Errorf("no site given and site_url is not configured")
			}

			report, err := svc.reports.Latest(cmd.Context(), site)
			if err != nil {
				return err
			}
			if report == nil {
				return fmt.Errorf("no archived report for %s (run a11ykraft scan first)", site)
			}

			if jsonOutput {
				return renderJSON(cmd, report)
			}
			fmt.Fprint(cmd.OutOrStdout(), tui.RenderReport(report, nil))
			return nil
		},
	}

	cmd.Flags().StringVar(&projectPath, "path", "", "Project path (defaults to current directory)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the report as JSON")

	return cmd
}
