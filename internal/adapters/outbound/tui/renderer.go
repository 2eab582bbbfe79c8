package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/a11ykraft/a11ykraft/internal/domain"
)

// ── warm palette ──
var (
	accent  = lipgloss.Color("#D97706") // amber
	fg      = lipgloss.Color("#E8E6E3") // warm light gray
	dim     = lipgloss.Color("#6B7280") // muted gray
	faint   = lipgloss.Color("#3F3F46") // very dim
	success = lipgloss.Color("#22C55E") // green
	danger  = lipgloss.Color("#EF4444") // red
	warning = lipgloss.Color("#F59E0B") // amber-yellow
	info    = lipgloss.Color("#8B949E") // soft blue-gray
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(accent).
			Align(lipgloss.Center)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accent).
			Padding(1, 4).
			Align(lipgloss.Center).
			Width(68)

	impactColors = map[domain.Impact]lipgloss.Color{
		domain.ImpactCritical: danger,
		domain.ImpactSerious:  lipgloss.Color("#FB923C"), // orange
		domain.ImpactModerate: warning,
		domain.ImpactMinor:    info,
	}

	dimStyle      = lipgloss.NewStyle().Foreground(dim)
	faintStyle    = lipgloss.NewStyle().Foreground(faint)
	passStyle     = lipgloss.NewStyle().Foreground(success)
	failStyle     = lipgloss.NewStyle().Foreground(danger)
	warnStyle     = lipgloss.NewStyle().Foreground(warning)
	errorTagStyle = lipgloss.NewStyle().Foreground(danger).Bold(true)
	warnTagStyle  = lipgloss.NewStyle().Foreground(warning).Bold(true)
	urlStyle      = lipgloss.NewStyle().Foreground(dim)
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(fg)
	ruleNameStyle = lipgloss.NewStyle().Bold(true).Foreground(fg)
	separatorLine = faintStyle.Render(strings.Repeat("─", 64))
)

// maxListedPages bounds the per-page section of the report.
const maxListedPages = 15

// RenderReport formats a site-wide report for terminal output. Failed pages,
// if any, are listed at the end.
func RenderReport(report *domain.SiteWideReport, failed []domain.FailedPage) string {
	var b strings.Builder
	s := report.Summary

	// ── Header ──
	title := headerStyle.Render("a11ykraft")
	subtitle := dimStyle.Render(fmt.Sprintf("Accessibility Report · WCAG %s", report.WCAGLevel))
	pct := lipgloss.NewStyle().
		Bold(true).
		Foreground(complianceColor(s.CompliancePercentage)).
		Render(fmt.Sprintf("%.2f%% compliant", s.CompliancePercentage))
	site := urlStyle.Render(report.SiteURL)

	b.WriteString(boxStyle.Render(title + "\n" + subtitle + "\n\n" + pct + "\n" + site))
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "  %s %s   %s %s   %s %s\n\n",
		titleStyle.Render(fmt.Sprintf("%d", s.TotalPages)), dimStyle.Render("pages"),
		titleStyle.Render(fmt.Sprintf("%d", s.PagesWithViolations)), dimStyle.Render("with violations"),
		titleStyle.Render(fmt.Sprintf("%d", s.TotalViolations)), dimStyle.Render("occurrences"),
	)

	// ── Impact breakdown ──
	for _, row := range []struct {
		impact domain.Impact
		count  int
	}{
		{domain.ImpactCritical, s.ByImpact.Critical},
		{domain.ImpactSerious, s.ByImpact.Serious},
		{domain.ImpactModerate, s.ByImpact.Moderate},
		{domain.ImpactMinor, s.ByImpact.Minor},
	} {
		renderImpactRow(&b, row.impact, row.count, s.TotalViolations)
	}

	b.WriteString("\n")
	b.WriteString("  " + separatorLine)
	b.WriteString("\n\n")

	// ── Most common violations ──
	if len(s.MostCommonViolations) > 0 {
		b.WriteString("  " + titleStyle.Render("Most common violations") + "\n\n")
		for _, v := range s.MostCommonViolations {
			renderCommonViolation(&b, v)
		}
	} else {
		b.WriteString("  " + passStyle.Render("No violations found.") + "\n")
	}

	// ── Pages ──
	if pages := worstPages(report.PageReports); len(pages) > 0 {
		b.WriteString("\n  " + titleStyle.Render("Pages") + "\n\n")
		for _, p := range pages {
			count := passStyle.Render("  0")
			if p.Summary.Total > 0 {
				count = failStyle.Render(fmt.Sprintf("%3d", p.Summary.Total))
			}
			fmt.Fprintf(&b, "    %s  %s\n", count, urlStyle.Render(p.URL))
		}
		if hidden := len(report.PageReports) - len(pages); hidden > 0 {
			fmt.Fprintf(&b, "    %s\n", faintStyle.Render(fmt.Sprintf("… %d more", hidden)))
		}
	}

	// ── Failed pages ──
	if len(failed) > 0 {
		b.WriteString("\n  " + titleStyle.Render("Failed pages") + "  " +
			errorTagStyle.Render(fmt.Sprintf("%d failed", len(failed))) + "\n\n")
		for _, f := range failed {
			fmt.Fprintf(&b, "    %s %s\n", errorTagStyle.Render("error"), urlStyle.Render(f.Page.URL))
			fmt.Fprintf(&b, "          %s\n", dimStyle.Render(f.Error))
		}
	}

	if report.CommitHash != "" {
		fmt.Fprintf(&b, "\n  %s %s\n", faintStyle.Render("commit"), faintStyle.Render(shortHash(report.CommitHash)))
	}
	b.WriteString("\n")
	return b.String()
}

func renderImpactRow(b *strings.Builder, impact domain.Impact, count, total int) {
	pct := 0
	if total > 0 {
		pct = count * 100 / total
	}
	color := impactColors[impact]
	name := lipgloss.NewStyle().Bold(true).Foreground(color).Render(padRight(string(impact), 10))
	fmt.Fprintf(b, "  %s %s  %s\n", name, coloredBar(pct, 30, color), dimStyle.Render(fmt.Sprintf("%d", count)))
}

func renderCommonViolation(b *strings.Builder, v domain.CommonViolation) {
	tag := impactTag(v.Impact)
	fmt.Fprintf(b, "    %s %s  %s\n", tag, ruleNameStyle.Render(v.RuleID),
		dimStyle.Render(fmt.Sprintf("%d× on %d pages", v.TotalOccurrences, v.AffectedPages)))
	if v.Description != "" {
		fmt.Fprintf(b, "             %s\n", faintStyle.Render(v.Description))
	}
}

func impactTag(impact domain.Impact) string {
	color, ok := impactColors[impact]
	if !ok {
		color = dim
	}
	return lipgloss.NewStyle().Foreground(color).Bold(true).Render(padRight(string(impact), 8))
}

// worstPages returns the pages with the most violations first.
func worstPages(pages []domain.PageAnalysisResult) []domain.PageAnalysisResult {
	sorted := make([]domain.PageAnalysisResult, len(pages))
	copy(sorted, pages)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Summary.Total > sorted[j].Summary.Total
	})
	if len(sorted) > maxListedPages {
		sorted = sorted[:maxListedPages]
	}
	return sorted
}

// RenderValidation formats validation errors and warnings. It returns an
// empty string for a clean report.
func RenderValidation(v domain.ValidationReport) string {
	if len(v.Errors) == 0 && len(v.Warnings) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("  " + titleStyle.Render("Validation") + "\n\n")
	for _, e := range v.Errors {
		fmt.Fprintf(&b, "    %s %s\n", errorTagStyle.Render("error"), dimStyle.Render(e))
	}
	for _, w := range v.Warnings {
		fmt.Fprintf(&b, "    %s %s\n", warnTagStyle.Render("warn "), dimStyle.Render(w))
	}
	b.WriteString("\n")
	return b.String()
}

// RenderStatus formats a run snapshot.
func RenderStatus(st *domain.RunStatus) string {
	var state string
	switch st.State {
	case domain.RunCompleted:
		state = passStyle.Render(string(st.State))
	case domain.RunFailed:
		state = failStyle.Render(string(st.State))
	case domain.RunRunning:
		state = warnStyle.Render(string(st.State))
	default:
		state = dimStyle.Render(string(st.State))
	}
	line := fmt.Sprintf("  %s  %s  %s", faintStyle.Render(st.ID), state,
		dimStyle.Render(fmt.Sprintf("%d pages", st.TotalPages)))
	if st.Outcome != nil {
		line += "  " + dimStyle.Render(fmt.Sprintf("%d ok / %d failed", len(st.Outcome.Successful), len(st.Outcome.Failed)))
	}
	if st.Error != "" {
		line += "  " + failStyle.Render(st.Error)
	}
	return line + "\n"
}

func coloredBar(pct, width int, color lipgloss.Color) string {
	filled := max(0, min(pct*width/100, width))
	empty := width - filled

	filledStr := lipgloss.NewStyle().Foreground(color).Render(strings.Repeat("█", filled))
	emptyStr := lipgloss.NewStyle().Foreground(faint).Render(strings.Repeat("░", empty))
	return filledStr + emptyStr
}

func complianceColor(pct float64) lipgloss.Color {
	switch {
	case pct >= 90:
		return success
	case pct >= 70:
		return lipgloss.Color("#A3E635") // lime
	case pct >= 40:
		return warning
	default:
		return danger
	}
}

func shortHash(hash string) string {
	if len(hash) > 7 {
		return hash[:7]
	}
	return hash
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

// RenderHistory formats the compliance trend for terminal output.
func RenderHistory(entries []domain.ReportEntry) string {
	if len(entries) == 0 {
		return "  " + dimStyle.Render("No report history found.") + "\n"
	}

	var b strings.Builder
	b.WriteString("\n")
	b.WriteString("  " + titleStyle.Render("Compliance History") + "\n")
	b.WriteString("  " + faintStyle.Render(strings.Repeat("─", 50)) + "\n\n")

	for i, e := range entries {
		hash := shortHash(e.CommitHash)
		if hash == "" {
			hash = "·······"
		}

		pctStyled := lipgloss.NewStyle().
			Foreground(complianceColor(e.CompliancePercentage)).
			Render(fmt.Sprintf("%6.2f%%", e.CompliancePercentage))

		date := e.Timestamp
		if len(date) > 10 {
			date = date[:10]
		}
		line := fmt.Sprintf("  %s  %s  %s  %s",
			dimStyle.Render(date),
			faintStyle.Render(hash),
			pctStyled,
			dimStyle.Render(fmt.Sprintf("%d violations", e.TotalViolations)),
		)

		if i > 0 {
			diff := e.CompliancePercentage - entries[i-1].CompliancePercentage
			if diff > 0 {
				line += "  " + passStyle.Render(fmt.Sprintf("↑%.2f", diff))
			} else if diff < 0 {
				line += "  " + failStyle.Render(fmt.Sprintf("↓%.2f", -diff))
			}
		}

		b.WriteString(line)
		b.WriteString("\n")
	}

	return b.String()
}
