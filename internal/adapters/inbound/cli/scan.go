package cli

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/a11ykraft/a11ykraft/internal/adapters/outbound/tui"
	"github.com/a11ykraft/a11ykraft/internal/application"
	"github.com/a11ykraft/a11ykraft/internal/domain"
)

func newScanCmd() *cobra.Command {
	var (
		projectPath   string
		siteURL       string
		level         string
		maxPages      int
		jsonOutput    bool
		ciMode        bool
		minCompliance float64
	)

	cmd := &cobra.Command{
		Use:   "scan [url...]",
		Short: "Scan pages and report WCAG compliance",
		Long: "Analyze the given pages, or the pages discovered from --site (or site_url in .a11ykraft.yaml), " +
			"and produce a site-wide accessibility report.",
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

			req := application.ScanRequest{
				ProjectPath: absPath,
				SiteURL:     svc.cfg.SiteURL,
				URLs:        args,
				MaxPages:    svc.cfg.MaxPages,
				WCAGLevel:   svc.cfg.Level(),
				Options:     svc.cfg.Options(),
			}
			if siteURL != "" {
				req.SiteURL = siteURL
			}
			if req.SiteURL == "" && len(args) > 0 {
				req.SiteURL = siteOf(args[0])
			}
			if maxPages > 0 {
				req.MaxPages = maxPages
			}
			if level != "" {
				l, ok := domain.ParseWCAGLevel(level)
				if !ok {
					return fmt.Errorf("unknown level %q (valid: A, AA, AAA)", level)
				}
				req.WCAGLevel = l
			}

			result, err := svc.reports.Scan(cmd.Context(), req)
			if err != nil {
				return fmt.Errorf("scan failed: %w", err)
			}

			if jsonOutput {
				if err := renderJSON(cmd, result); err != nil {
					return err
				}
			} else {
				fmt.Fprint(cmd.OutOrStdout(), tui.RenderReport(&result.Report, result.Failed))
				fmt.Fprint(cmd.OutOrStdout(), tui.RenderValidation(result.Validation))
			}

			if ciMode {
				pct := result.Report.Summary.CompliancePercentage
				if pct < minCompliance {
					return fmt.Errorf("compliance %.2f%% is below minimum %.2f%%", pct, minCompliance)
				}
				if len(result.Failed) > 0 {
					return fmt.Errorf("%d page(s) could not be analyzed", len(result.Failed))
				}
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&projectPath, "path", "", "Project path holding .a11ykraft.yaml and history (defaults to current directory)")
	cmd.Flags().StringVar(&siteURL, "site", "", "Site to discover pages from when no urls are given")
	cmd.Flags().StringVar(&level, "level", "", "WCAG level to report against (A, AA, AAA)")
	cmd.Flags().IntVar(&maxPages, "max-pages", 0, "Maximum number of pages to analyze")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the scan result as JSON")
	cmd.Flags().BoolVar(&ciMode, "ci", false, "CI mode: exit 1 if compliance is below --min or a page failed")
	cmd.Flags().Float64Var(&minCompliance, "min", 0, "Minimum compliance percentage for CI mode")

	return cmd
}

func renderJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// siteOf returns the origin of rawURL, or rawURL itself when it has none.
func siteOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	return u.Scheme + "://" + u.Host
}
