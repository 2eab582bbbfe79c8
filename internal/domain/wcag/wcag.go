// Package wcag holds the heuristic tables that map rule identifiers and tag
// strings onto WCAG levels, criteria, remediation effort and affected users.
package wcag

import (
	"regexp"
	"sort"
	"strings"

	"github.com/a11ykraft/a11ykraft/internal/domain"
)

// Table is a pluggable set of rule mappings. The zero value is usable and
// yields defaults everywhere; Default returns the built-in table.
type Table struct {
	// Effort maps a rule id, or a rule id prefix ending in "-", to an effort.
	Effort map[string]domain.Effort
	// Scenarios maps an axe "cat.*" tag or a rule id to affected user groups.
	Scenarios map[string][]string
	// Suggestions maps a rule id to concrete fix steps.
	Suggestions map[string][]string
}

var criterionTag = regexp.MustCompile(`^wcag(\d)(\d)(\d{1,2})$`)

// LevelFromTags derives the conformance level from tag substrings:
// any AAA tag wins, then AA, then any other WCAG tag means A.
// Without a recognizable WCAG tag the level is Unknown.
func LevelFromTags(tags []string) domain.WCAGLevel {
	recognized := false
	level := domain.LevelA
	for _, raw := range tags {
		t := strings.ToLower(strings.TrimSpace(raw))
		if !strings.HasPrefix(t, "wcag") {
			continue
		}
		recognized = true
		switch {
		case strings.HasSuffix(t, "aaa"):
			return domain.LevelAAA
		case strings.HasSuffix(t, "aa"):
			level = domain.LevelAA
		}
	}
	if !recognized {
		return domain.LevelUnknown
	}
	return level
}

// CriterionFromTags returns the first success criterion encoded in the tags,
// e.g. "wcag143" -> "1.4.3". Empty when none is present.
func CriterionFromTags(tags []string) string {
	for _, raw := range tags {
		m := criterionTag.FindStringSubmatch(strings.ToLower(strings.TrimSpace(raw)))
		if m != nil {
			return m[1] + "." + m[2] + "." + strings.TrimLeft(m[3], "0")
		}
	}
	return ""
}

// CriterionKey is the compliance matrix key for a rule: "<criterion> <ruleId>"
// when a criterion is derivable, otherwise the bare rule id.
func CriterionKey(ruleID string, tags []string) string {
	if c := CriterionFromTags(tags); c != "" {
		return c + " " + ruleID
	}
	return ruleID
}

// EffortFor looks the rule up by exact id, then by longest matching prefix.
func (t *Table) EffortFor(ruleID string) domain.Effort {
	if t == nil {
		return domain.EffortMedium
	}
	if e, ok := t.Effort[ruleID]; ok {
		return e
	}
	best := ""
	for k := range t.Effort {
		if strings.HasSuffix(k, "-") && strings.HasPrefix(ruleID, k) && len(k) > len(best) {
			best = k
		}
	}
	if best != "" {
		return t.Effort[best]
	}
	return domain.EffortMedium
}

// ScenariosFor collects the user groups affected by a rule, sorted and deduplicated.
func (t *Table) ScenariosFor(ruleID string, tags []string) []string {
	if t == nil {
		return nil
	}
	set := make(map[string]bool)
	for _, s := range t.Scenarios[ruleID] {
		set[s] = true
	}
	for _, tag := range tags {
		for _, s := range t.Scenarios[strings.ToLower(tag)] {
			set[s] = true
		}
	}
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// SuggestionsFor returns the fix steps for a rule, falling back to helpText.
func (t *Table) SuggestionsFor(ruleID, helpText string) []string {
	var out []string
	if t != nil {
		out = append(out, t.Suggestions[ruleID]...)
	}
	if len(out) == 0 && helpText != "" {
		out = append(out, helpText)
	}
	return out
}

const (
	screenReader = "Screen reader users"
	lowVision    = "Low vision users"
	colorBlind   = "Users with color vision deficiency"
	keyboardOnly = "Keyboard-only users"
	cognitive    = "Users with cognitive disabilities"
	deaf         = "Deaf and hard of hearing users"
	motor        = "Users with motor impairments"
)

// Default returns the built-in mapping table.
func Default() *Table {
	return &Table{
		Effort: map[string]domain.Effort{
			"image-alt":             domain.EffortLow,
			"input-image-alt":       domain.EffortLow,
			"area-alt":              domain.EffortLow,
			"html-has-lang":         domain.EffortLow,
			"html-lang-valid":       domain.EffortLow,
			"document-title":        domain.EffortLow,
			"frame-title":           domain.EffortLow,
			"label":                 domain.EffortLow,
			"link-name":             domain.EffortLow,
			"button-name":           domain.EffortLow,
			"empty-heading":         domain.EffortLow,
			"meta-viewport":         domain.EffortLow,
			"duplicate-id":          domain.EffortLow,
			"color-contrast":        domain.EffortMedium,
			"heading-order":         domain.EffortMedium,
			"tabindex":              domain.EffortMedium,
			"list":                  domain.EffortMedium,
			"listitem":              domain.EffortMedium,
			"aria-":                 domain.EffortMedium,
			"bypass":                domain.EffortHigh,
			"region":                domain.EffortHigh,
			"landmark-":             domain.EffortHigh,
			"video-caption":         domain.EffortHigh,
			"audio-caption":         domain.EffortHigh,
			"scrollable-region-":    domain.EffortHigh,
			"nested-interactive":    domain.EffortHigh,
			"focus-order-semantics": domain.EffortHigh,
		},
		Scenarios: map[string][]string{
			"cat.text-alternatives":       {screenReader},
			"cat.color":                   {lowVision, colorBlind},
			"cat.keyboard":                {keyboardOnly, motor},
			"cat.forms":                   {screenReader, cognitive},
			"cat.name-role-value":         {screenReader},
			"cat.structure":               {screenReader, cognitive},
			"cat.semantics":               {screenReader},
			"cat.language":                {screenReader},
			"cat.tables":                  {screenReader},
			"cat.time-and-media":          {deaf},
			"cat.sensory-and-visual-cues": {lowVision},
			"cat.aria":                    {screenReader},
			"cat.parsing":                 {screenReader},
			"color-contrast":              {lowVision, colorBlind},
			"image-alt":                   {screenReader},
			"document-title":              {screenReader, cognitive},
			"html-has-lang":               {screenReader},
			"label":                       {screenReader, cognitive},
			"link-name":                   {screenReader, keyboardOnly},
			"button-name":                 {screenReader, keyboardOnly},
			"bypass":                      {keyboardOnly, screenReader},
			"heading-order":               {screenReader, cognitive},
			"video-caption":               {deaf},
		},
		Suggestions: map[string][]string{
			"image-alt": {
				"Add an alt attribute describing the image's purpose",
				"Use alt=\"\" for purely decorative images",
			},
			"html-has-lang":  {"Add a lang attribute to the <html> element, e.g. lang=\"en\""},
			"document-title": {"Add a non-empty <title> that describes the page"},
			"label": {
				"Associate a <label for> with each form control",
				"Alternatively provide aria-label or aria-labelledby",
			},
			"link-name":      {"Give every link discernible text or an aria-label"},
			"button-name":    {"Give every button discernible text or an aria-label"},
			"color-contrast": {"Increase the contrast ratio to at least 4.5:1 for normal text and 3:1 for large text"},
			"empty-heading":  {"Remove empty headings or give them text content"},
			"heading-order":  {"Do not skip heading levels; nest headings sequentially"},
			"frame-title":    {"Add a title attribute to every <iframe>"},
			"duplicate-id":   {"Make every id attribute value unique within the page"},
			"meta-viewport":  {"Remove user-scalable=no and maximum-scale restrictions from the viewport meta tag"},
			"bypass":         {"Provide a skip link or landmark regions so users can bypass repeated blocks"},
		},
	}
}
