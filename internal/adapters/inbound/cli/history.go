package cli

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/a11ykraft/a11ykraft/internal/adapters/outbound/history"
	"github.com/a11ykraft/a11ykraft/internal/adapters/outbound/tui"
	"github.com/a11ykraft/a11ykraft/internal/domain"
)

func newHistoryCmd() *cobra.Command {
	var (
		projectPath string
		archive     bool
		limit       int
		rule        string
	)

	cmd := &cobra.Command{
		Use:   "history [site]",
		Short: "Show the compliance trend",
		Long: "List past scan results, oldest first. By default the trend file in the project is read; " +
			"--archive reads the report database instead and --rule prints the occurrence trend of one rule.",
		Args: cobra.MaximumNArgs(1),
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

			if rule != "" || archive {
				if svc.store == nil {
					return fmt.Errorf("report archive is not configured (storage.database)")
				}
			}

			if rule != "" {
				if site == "" {
					return fmt.Errorf("--rule needs a site")
				}
				counts, err := svc.store.RuleTrend(cmd.Context(), site, rule)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), formatTrend(rule, counts))
				return nil
			}

			var entries []domain.ReportEntry
			if archive {
				entries, err = svc.store.List(cmd.Context(), site, limit)
				if err != nil {
					return err
				}
				// List is newest first.
				slices.Reverse(entries)
			} else {
				entries, err = svc.reports.History(absPath)
				if err != nil {
					return err
				}
				entries = history.ForSite(entries, site)
				if limit > 0 && len(entries) > limit {
					entries = entries[len(entries)-limit:]
				}
			}

			fmt.Fprint(cmd.OutOrStdout(), tui.RenderHistory(entries))
			return nil
		},
	}

	cmd.Flags().StringVar(&projectPath, "path", "", "Project path (defaults to current directory)")
	cmd.Flags().BoolVar(&archive, "archive", false, "Read the report database instead of the trend file")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of entries")
	cmd.Flags().StringVar(&rule, "rule", "", "Print the occurrence trend of one rule")

	return cmd
}

func formatTrend(rule string, counts []int) string {
	if len(counts) == 0 {
		return fmt.Sprintf("%s: no archived reports", rule)
	}
	parts := make([]string, len(counts))
	for i, c := range counts {
		parts[i] = fmt.Sprintf("%d", c)
	}
	return fmt.Sprintf("%s: %s", rule, strings.Join(parts, " → "))
}
