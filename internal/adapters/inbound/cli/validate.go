package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/a11ykraft/a11ykraft/internal/adapters/outbound/tui"
	"github.com/a11ykraft/a11ykraft/internal/application"
	"github.com/a11ykraft/a11ykraft/internal/domain"
)

func newValidateCmd() *cobra.Command {
	var (
		strict     bool
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "validate <file>",
		Short: "Check saved analysis results for structural problems",
		Long: "Validate page results saved by 'a11ykraft scan --json', a site-wide report, or a JSON array of page results. " +
			"Errors fail the command; warnings fail it only with --strict.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading results: %w", err)
			}

			results, err := decodeResults(data)
			if err != nil {
				return fmt.Errorf("parsing %s: %w", args[0], err)
			}

			report := application.ValidateResults(results)

			if jsonOutput {
				if err := renderJSON(cmd, report); err != nil {
					return err
				}
			} else if out := tui.RenderValidation(report); out != "" {
				fmt.Fprint(cmd.OutOrStdout(), out)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "%d page result(s) valid\n", len(results))
			}

			switch {
			case !report.IsValid:
				return fmt.Errorf("validation failed: %d error(s)", len(report.Errors))
			case strict && len(report.Warnings) > 0:
				return fmt.Errorf("validation failed (strict): %d warning(s)", len(report.Warnings))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "Fail on warnings")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the validation report as JSON")

	return cmd
}

// decodeResults accepts a scan result, a site-wide report or a bare result list.
func decodeResults(data []byte) ([]domain.PageAnalysisResult, error) {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var results []domain.PageAnalysisResult
		if err := json.Unmarshal(data, &results); err != nil {
			return nil, err
		}
		return results, nil
	}

	var doc struct {
		Report      *domain.SiteWideReport      `json:"report"`
		PageReports []domain.PageAnalysisResult `json:"page_reports"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc.Report != nil {
		return doc.Report.PageReports, nil
	}
	if doc.PageReports == nil {
		return nil, fmt.Errorf("no page results found")
	}
	return doc.PageReports, nil
}
