package domain

import (
	"encoding/json"
	"time"
)

// PageTarget is one page handed over by the discovery step.
type PageTarget struct {
	URL            string `json:"url"`
	Title          string `json:"title,omitempty"`
	Depth          int    `json:"depth"`
	DiscoveredFrom string `json:"discovered_from,omitempty"`
	HTTPStatus     int    `json:"http_status,omitempty"`
	LoadTimeMs     int64  `json:"load_time_ms,omitempty"`
}

// RawFormat tags the shape of a RawToolOutput payload.
type RawFormat string

const (
	FormatAxe   RawFormat = "axe"
	FormatPa11y RawFormat = "pa11y"
)

// RawToolOutput is the untouched payload of one rule engine for one page.
type RawToolOutput struct {
	Engine  string          `json:"engine"`
	Format  RawFormat       `json:"format"`
	Payload json.RawMessage `json:"payload"`
}

// Empty reports whether the output carries no payload at all.
func (r *RawToolOutput) Empty() bool {
	return r == nil || len(r.Payload) == 0 || string(r.Payload) == "null"
}

// BoundingBox is the on-screen geometry of an element, in CSS pixels.
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Element is a single offending node of a violation.
type Element struct {
	HTML           string       `json:"html"`
	Selector       string       `json:"selector"`
	FailureSummary string       `json:"failure_summary,omitempty"`
	BoundingBox    *BoundingBox `json:"bounding_box,omitempty"`
	Screenshot     string       `json:"screenshot,omitempty"` // base64 PNG
}

type Remediation struct {
	Priority    Priority `json:"priority"`
	Effort      Effort   `json:"effort"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// ProcessedViolation is the canonical, deduplicated finding for one rule on one page.
type ProcessedViolation struct {
	RuleID            string      `json:"rule_id"`
	Impact            Impact      `json:"impact"`
	Description       string      `json:"description"`
	HelpText          string      `json:"help_text"`
	HelpURL           string      `json:"help_url,omitempty"`
	WCAGTags          []string    `json:"wcag_tags"`
	WCAGLevel         WCAGLevel   `json:"wcag_level"`
	OccurrenceCount   int         `json:"occurrence_count"`
	ContributingTools []string    `json:"contributing_tools"`
	Elements          []Element   `json:"elements"`
	UserScenarios     []string    `json:"applicable_user_scenarios,omitempty"`
	Remediation       Remediation `json:"remediation"`
}

// ImpactCounts breaks a count down by impact.
type ImpactCounts struct {
	Critical int `json:"critical"`
	Serious  int `json:"serious"`
	Moderate int `json:"moderate"`
	Minor    int `json:"minor"`
}

// Add increments the bucket for impact by n. Unknown impacts are ignored.
func (c *ImpactCounts) Add(impact Impact, n int) {
	switch impact {
	case ImpactCritical:
		c.Critical += n
	case ImpactSerious:
		c.Serious += n
	case ImpactModerate:
		c.Moderate += n
	case ImpactMinor:
		c.Minor += n
	}
}

func (c ImpactCounts) Total() int {
	return c.Critical + c.Serious + c.Moderate + c.Minor
}

type PageSummary struct {
	Total    int          `json:"total"`
	ByImpact ImpactCounts `json:"by_impact"`
}

// PageAnalysisResult is produced once per successfully analyzed page.
type PageAnalysisResult struct {
	URL          string               `json:"url"`
	Timestamp    time.Time            `json:"timestamp"`
	ToolsInvoked []string             `json:"tools_invoked"`
	Violations   []ProcessedViolation `json:"violations"`
	Summary      PageSummary          `json:"summary"`
	DurationMs   int64                `json:"duration_ms"`
}

// SummarizeViolations computes the occurrence-weighted page summary.
func SummarizeViolations(violations []ProcessedViolation) PageSummary {
	var s PageSummary
	for _, v := range violations {
		s.Total += v.OccurrenceCount
		s.ByImpact.Add(v.Impact, v.OccurrenceCount)
	}
	return s
}

// FailedPage records a page whose analysis did not produce a result.
type FailedPage struct {
	Page  PageTarget `json:"page"`
	Error string     `json:"error"`
}

type BatchMetrics struct {
	TotalTimeMs          int64   `json:"total_time_ms"`
	AverageTimePerPageMs float64 `json:"average_time_per_page_ms"`
	SuccessRatePercent   float64 `json:"success_rate_percent"`
}

// BatchOutcome partitions the input pages of one pool invocation.
// Every input page is in exactly one of Successful or Failed.
type BatchOutcome struct {
	Successful []PageAnalysisResult `json:"successful"`
	Failed     []FailedPage         `json:"failed"`
	Metrics    BatchMetrics         `json:"metrics"`
	Cancelled  bool                 `json:"cancelled,omitempty"`
}

// CommonViolation is one row of the site-wide most-common ranking.
type CommonViolation struct {
	RuleID           string `json:"rule_id"`
	Description      string `json:"description"`
	Impact           Impact `json:"impact"`
	TotalOccurrences int    `json:"total_occurrences"`
	AffectedPages    int    `json:"affected_pages"`
}

// CriterionEntry is the per-criterion breakdown in the compliance matrix.
type CriterionEntry struct {
	Criterion        string `json:"criterion,omitempty"`
	RuleID           string `json:"rule_id"`
	AffectedPages    int    `json:"affected_pages"`
	TotalOccurrences int    `json:"total_occurrences"`
	Impact           Impact `json:"impact"`
	Description      string `json:"description"`
}

type WCAGComplianceMatrix map[string]CriterionEntry

type ReportSummary struct {
	TotalPages           int               `json:"total_pages"`
	PagesWithViolations  int               `json:"pages_with_violations"`
	TotalViolations      int               `json:"total_violations"`
	ByImpact             ImpactCounts      `json:"by_impact"`
	CompliancePercentage float64           `json:"compliance_percentage"`
	MostCommonViolations []CommonViolation `json:"most_common_violations"`
}

// SiteWideReport is the terminal artifact of a scan.
type SiteWideReport struct {
	SiteURL              string               `json:"site_url"`
	Timestamp            time.Time            `json:"timestamp"`
	WCAGLevel            WCAGLevel            `json:"wcag_level"`
	CommitHash           string               `json:"commit_hash,omitempty"`
	Summary              ReportSummary        `json:"summary"`
	PageReports          []PageAnalysisResult `json:"page_reports"`
	WCAGComplianceMatrix WCAGComplianceMatrix `json:"wcag_compliance_matrix"`
}

// ReportEntry is one line of the compliance history.
type ReportEntry struct {
	Timestamp            string  `json:"timestamp"`
	SiteURL              string  `json:"site_url"`
	CommitHash           string  `json:"commit_hash,omitempty"`
	TotalPages           int     `json:"total_pages"`
	TotalViolations      int     `json:"total_violations"`
	CompliancePercentage float64 `json:"compliance_percentage"`
}
