// Package aggregate folds per-page analysis results into a site-wide report.
// Everything here is a pure function of its input.
package aggregate

import (
	"math"
	"sort"
	"time"

	"github.com/a11ykraft/a11ykraft/internal/domain"
	"github.com/a11ykraft/a11ykraft/internal/domain/wcag"
)

// MaxCommonViolations bounds the most-common ranking in a report summary.
const MaxCommonViolations = 10

// BuildSiteWideReport aggregates results in the order given. An empty
// wcagLevel defaults to AA. The inputs are not modified.
func BuildSiteWideReport(results []domain.PageAnalysisResult, siteURL string, wcagLevel domain.WCAGLevel) domain.SiteWideReport {
	if wcagLevel == "" {
		wcagLevel = domain.LevelAA
	}

	rules := newRuleIndex()
	summary := domain.ReportSummary{TotalPages: len(results)}
	var latest time.Time

	for pageIdx, r := range results {
		if r.Timestamp.After(latest) {
			latest = r.Timestamp
		}
		if len(r.Violations) > 0 {
			summary.PagesWithViolations++
		}
		for _, v := range r.Violations {
			summary.TotalViolations += v.OccurrenceCount
			summary.ByImpact.Add(v.Impact, v.OccurrenceCount)
			rules.add(pageIdx, v)
		}
	}

	summary.CompliancePercentage = CompliancePercentage(summary.TotalPages, summary.PagesWithViolations)
	summary.MostCommonViolations = rules.mostCommon(MaxCommonViolations)

	pages := make([]domain.PageAnalysisResult, len(results))
	copy(pages, results)

	return domain.SiteWideReport{
		SiteURL:              siteURL,
		Timestamp:            latest,
		WCAGLevel:            wcagLevel,
		Summary:              summary,
		PageReports:          pages,
		WCAGComplianceMatrix: rules.matrix(),
	}
}

// CompliancePercentage is the share of pages without violations, rounded to
// two decimals. Zero pages are fully compliant.
func CompliancePercentage(totalPages, pagesWithViolations int) float64 {
	if totalPages <= 0 {
		return 100
	}
	clean := totalPages - pagesWithViolations
	if clean < 0 {
		clean = 0
	}
	pct := 100 * float64(clean) / float64(totalPages)
	return math.Round(pct*100) / 100
}

// Entry reduces a report to one line of compliance history. A report without
// results has no timestamp, and the entry leaves it empty.
func Entry(report domain.SiteWideReport) domain.ReportEntry {
	var ts string
	if !report.Timestamp.IsZero() {
		ts = report.Timestamp.UTC().Format(time.RFC3339)
	}
	return domain.ReportEntry{
		Timestamp:            ts,
		SiteURL:              report.SiteURL,
		CommitHash:           report.CommitHash,
		TotalPages:           report.Summary.TotalPages,
		TotalViolations:      report.Summary.TotalViolations,
		CompliancePercentage: report.Summary.CompliancePercentage,
	}
}

// ruleStats accumulates one rule across all pages.
type ruleStats struct {
	ruleID      string
	description string
	impact      domain.Impact
	tags        map[string]bool
	tagOrder    []string
	occurrences int
	pages       int
	lastPage    int
}

// ruleIndex groups violations by rule id in first-seen order.
type ruleIndex struct {
	order []*ruleStats
	byID  map[string]*ruleStats
}

func newRuleIndex() *ruleIndex {
	return &ruleIndex{byID: make(map[string]*ruleStats)}
}

func (ri *ruleIndex) add(pageIdx int, v domain.ProcessedViolation) {
	s, ok := ri.byID[v.RuleID]
	if !ok {
		s = &ruleStats{ruleID: v.RuleID, impact: v.Impact, tags: make(map[string]bool), lastPage: -1}
		ri.byID[v.RuleID] = s
		ri.order = append(ri.order, s)
	}
	s.impact = domain.MaxImpact(s.impact, v.Impact)
	if s.description == "" {
		s.description = v.Description
	}
	for _, t := range v.WCAGTags {
		if !s.tags[t] {
			s.tags[t] = true
			s.tagOrder = append(s.tagOrder, t)
		}
	}
	s.occurrences += v.OccurrenceCount
	if s.lastPage != pageIdx {
		s.pages++
		s.lastPage = pageIdx
	}
}

// mostCommon ranks rules by occurrences, then affected pages, then rule id.
func (ri *ruleIndex) mostCommon(limit int) []domain.CommonViolation {
	ranked := make([]*ruleStats, len(ri.order))
	copy(ranked, ri.order)
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.occurrences != b.occurrences {
			return a.occurrences > b.occurrences
		}
		if a.pages != b.pages {
			return a.pages > b.pages
		}
		return a.ruleID < b.ruleID
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	out := make([]domain.CommonViolation, 0, len(ranked))
	for _, s := range ranked {
		out = append(out, domain.CommonViolation{
			RuleID:           s.ruleID,
			Description:      s.description,
			Impact:           s.impact,
			TotalOccurrences: s.occurrences,
			AffectedPages:    s.pages,
		})
	}
	return out
}

func (ri *ruleIndex) matrix() domain.WCAGComplianceMatrix {
	m := make(domain.WCAGComplianceMatrix, len(ri.order))
	for _, s := range ri.order {
		m[wcag.CriterionKey(s.ruleID, s.tagOrder)] = domain.CriterionEntry{
			Criterion:        wcag.CriterionFromTags(s.tagOrder),
			RuleID:           s.ruleID,
			AffectedPages:    s.pages,
			TotalOccurrences: s.occurrences,
			Impact:           s.impact,
			Description:      s.description,
		}
	}
	return m
}
