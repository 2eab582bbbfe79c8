package application

import (
	"fmt"

	"github.com/a11ykraft/a11ykraft/internal/domain"
)

// ValidateAnalysisResults checks results after the fact. Structural problems
// are errors; data that is plausible but suspicious is a warning. Nothing is
// modified.
func (s *AnalysisService) ValidateAnalysisResults(results []domain.PageAnalysisResult) domain.ValidationReport {
	return ValidateResults(results)
}

// ValidateResults is the stateless form of ValidateAnalysisResults.
func ValidateResults(results []domain.PageAnalysisResult) domain.ValidationReport {
	report := domain.ValidationReport{Errors: []string{}, Warnings: []string{}}
	seen := make(map[string]int, len(results))

	for i, r := range results {
		at := fmt.Sprintf("results[%d]", i)
		if r.URL == "" {
			report.Errors = append(report.Errors, at+": url is empty")
		} else {
			at = fmt.Sprintf("results[%d] (%s)", i, r.URL)
			if prev, dup := seen[r.URL]; dup {
				report.Warnings = append(report.Warnings, fmt.Sprintf("%s: duplicate of results[%d]", at, prev))
			} else {
				seen[r.URL] = i
			}
		}

		if r.Timestamp.IsZero() {
			report.Errors = append(report.Errors, at+": timestamp is missing or unparsable")
		}
		if r.DurationMs < 0 {
			report.Errors = append(report.Errors, fmt.Sprintf("%s: negative duration %d", at, r.DurationMs))
		}
		report.Errors = append(report.Errors, countErrors(at, r.Summary)...)

		occurrences := 0
		for j, v := range r.Violations {
			vat := fmt.Sprintf("%s.violations[%d]", at, j)
			if v.RuleID == "" {
				report.Errors = append(report.Errors, vat+": rule id is empty")
			}
			if v.OccurrenceCount < 0 {
				report.Errors = append(report.Errors, fmt.Sprintf("%s: negative occurrence count %d", vat, v.OccurrenceCount))
			}
			if len(v.Elements) > 0 && v.OccurrenceCount != len(v.Elements) {
				report.Warnings = append(report.Warnings,
					fmt.Sprintf("%s: occurrence count %d does not match %d elements", vat, v.OccurrenceCount, len(v.Elements)))
			}
			if v.Impact.Rank() == 0 {
				report.Warnings = append(report.Warnings, fmt.Sprintf("%s: unknown impact %q", vat, v.Impact))
			}
			occurrences += v.OccurrenceCount
		}

		switch {
		case r.Summary.Total > 0 && len(r.Violations) == 0:
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("%s: summary reports %d violations but the violation list is empty", at, r.Summary.Total))
		case len(r.Violations) > 0 && r.Summary.Total != occurrences:
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("%s: summary total %d does not match %d occurrences", at, r.Summary.Total, occurrences))
		}
		if len(r.ToolsInvoked) == 0 {
			report.Warnings = append(report.Warnings, at+": no rule engine produced output")
		}
	}

	report.IsValid = len(report.Errors) == 0
	return report
}

func countErrors(at string, s domain.PageSummary) []string {
	var errs []string
	counts := []struct {
		name string
		n    int
	}{
		{"summary.total", s.Total},
		{"summary.by_impact.critical", s.ByImpact.Critical},
		{"summary.by_impact.serious", s.ByImpact.Serious},
		{"summary.by_impact.moderate", s.ByImpact.Moderate},
		{"summary.by_impact.minor", s.ByImpact.Minor},
	}
	for _, c := range counts {
		if c.n < 0 {
			errs = append(errs, fmt.Sprintf("%s: negative %s %d", at, c.name, c.n))
		}
	}
	return errs
}
