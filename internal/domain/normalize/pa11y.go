package normalize

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/fatih/camelcase"

	"github.com/a11ykraft/a11ykraft/internal/domain"
)

type pa11yIssue struct {
	Code     string `json:"code"`
	Type     string `json:"type"`
	TypeCode int    `json:"typeCode"`
	Message  string `json:"message"`
	Context  string `json:"context"`
	Selector string `json:"selector"`
	Runner   string `json:"runner"`
}

// pa11yPage is the shape returned by the pa11y node API.
type pa11yPage struct {
	Issues []json.RawMessage `json:"issues"`
}

// techniqueRules maps HTML_CodeSniffer techniques onto axe rule ids so that
// findings from both engines merge. Longer keys take precedence.
var techniqueRules = map[string]string{
	"H37":          "image-alt",
	"H36":          "input-image-alt",
	"H24":          "area-alt",
	"H30":          "link-name",
	"H57":          "html-has-lang",
	"H58":          "html-lang-valid",
	"H25":          "document-title",
	"H64":          "frame-title",
	"H44":          "label",
	"H65":          "label",
	"F68":          "label",
	"H91":          "label",
	"H91.A":        "link-name",
	"H91.Button":   "button-name",
	"H42.2":        "empty-heading",
	"G18":          "color-contrast",
	"G145":         "color-contrast",
	"F77":          "duplicate-id",
	"H48":          "list",
	"G1,G123,G124": "bypass",
	"H32":          "form-submit",
}

var techniqueID = regexp.MustCompile(`^[A-Z]+\d+$`)

// decodePa11y accepts the JSON reporter's issue array or a node API result
// object with an issues field.
func decodePa11y(payload []byte) ([]finding, int, error) {
	payload = bytes.TrimSpace(payload)
	var issues []json.RawMessage
	switch {
	case len(payload) > 0 && payload[0] == '[':
		if err := json.Unmarshal(payload, &issues); err != nil {
			return nil, 0, fmt.Errorf("decoding pa11y issue list: %w", err)
		}
	default:
		var p pa11yPage
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, 0, fmt.Errorf("decoding pa11y result: %w", err)
		}
		issues = p.Issues
	}

	var findings []finding
	skipped := 0
	for _, raw := range issues {
		var issue pa11yIssue
		if err := json.Unmarshal(raw, &issue); err != nil || strings.TrimSpace(issue.Code) == "" {
			skipped++
			continue
		}
		findings = append(findings, pa11yFinding(issue))
	}
	return findings, skipped, nil
}

func pa11yFinding(issue pa11yIssue) finding {
	code := strings.TrimSpace(issue.Code)
	f := finding{
		ruleID:      code,
		impact:      pa11yImpact(issue),
		description: strings.TrimSpace(issue.Message),
		help:        strings.TrimSpace(issue.Message),
		elements: []domain.Element{{
			HTML:           issue.Context,
			Selector:       issue.Selector,
			FailureSummary: strings.TrimSpace(issue.Message),
		}},
	}

	// Codes that are not HTML_CodeSniffer paths come from pa11y's axe runner
	// and already are axe rule ids.
	if !strings.HasPrefix(strings.ToUpper(code), "WCAG2") {
		return f
	}

	segs := strings.Split(code, ".")
	f.tags = append(f.tags, strings.ToLower(segs[0]))
	if len(segs) > 3 {
		f.tags = append(f.tags, "wcag"+strings.ReplaceAll(segs[3], "_", ""))
	}
	if len(segs) > 4 {
		technique := segs[4:]
		if id := techniqueRule(technique); id != "" {
			f.ruleID = id
		}
		if techniqueID.MatchString(technique[0]) {
			f.helpURL = "https://www.w3.org/TR/WCAG20-TECHS/" + technique[0]
		}
		if f.description == "" {
			f.description = describeTechnique(technique)
		}
	}
	if f.help == "" {
		f.help = f.description
	}
	return f
}

func pa11yImpact(issue pa11yIssue) domain.Impact {
	switch strings.ToLower(issue.Type) {
	case "error":
		return domain.ImpactSerious
	case "warning":
		return domain.ImpactModerate
	case "notice":
		return domain.ImpactMinor
	}
	switch issue.TypeCode {
	case 1:
		return domain.ImpactSerious
	case 2:
		return domain.ImpactModerate
	default:
		return domain.ImpactMinor
	}
}

// techniqueRule finds the longest dotted prefix of the technique segments
// present in techniqueRules.
func techniqueRule(technique []string) string {
	for n := len(technique); n > 0; n-- {
		if id, ok := techniqueRules[strings.Join(technique[:n], ".")]; ok {
			return id
		}
	}
	return ""
}

// describeTechnique builds a readable fallback from the technique path,
// e.g. ["H91", "InputText", "Name"] -> "Input Text Name (H91)".
func describeTechnique(technique []string) string {
	var words []string
	for _, seg := range technique[1:] {
		words = append(words, camelcase.Split(seg)...)
	}
	if len(words) == 0 {
		return "Technique " + technique[0]
	}
	return strings.Join(words, " ") + " (" + technique[0] + ")"
}
