package normalize

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/a11ykraft/a11ykraft/internal/domain"
)

// axeResults is the subset of an axe-core run result the normalizer reads.
type axeResults struct {
	Violations []json.RawMessage `json:"violations"`
}

type axeRule struct {
	ID          string    `json:"id"`
	Impact      *string   `json:"impact"`
	Tags        []string  `json:"tags"`
	Description string    `json:"description"`
	Help        string    `json:"help"`
	HelpURL     string    `json:"helpUrl"`
	Nodes       []axeNode `json:"nodes"`
}

type axeNode struct {
	HTML           string            `json:"html"`
	Target         []json.RawMessage `json:"target"`
	FailureSummary string            `json:"failureSummary"`
}

// decodeAxe accepts a single axe result object or an array of them, as
// produced by the axe CLI for several URLs.
func decodeAxe(payload []byte) ([]finding, int, error) {
	payload = bytes.TrimSpace(payload)
	var results []axeResults
	switch {
	case len(payload) > 0 && payload[0] == '[':
		if err := json.Unmarshal(payload, &results); err != nil {
			return nil, 0, fmt.Errorf("decoding axe result list: %w", err)
		}
	default:
		var r axeResults
		if err := json.Unmarshal(payload, &r); err != nil {
			return nil, 0, fmt.Errorf("decoding axe result: %w", err)
		}
		results = append(results, r)
	}

	var findings []finding
	skipped := 0
	for _, r := range results {
		for _, rawRule := range r.Violations {
			var rule axeRule
			if err := json.Unmarshal(rawRule, &rule); err != nil || rule.ID == "" || len(rule.Nodes) == 0 {
				skipped++
				continue
			}
			findings = append(findings, axeFinding(rule))
		}
	}
	return findings, skipped, nil
}

func axeFinding(rule axeRule) finding {
	impact := domain.ImpactModerate
	if rule.Impact != nil {
		if i, ok := domain.ParseImpact(*rule.Impact); ok {
			impact = i
		}
	}

	elements := make([]domain.Element, 0, len(rule.Nodes))
	for _, n := range rule.Nodes {
		elements = append(elements, domain.Element{
			HTML:           n.HTML,
			Selector:       axeSelector(n.Target),
			FailureSummary: n.FailureSummary,
		})
	}

	tags := make([]string, 0, len(rule.Tags))
	for _, t := range rule.Tags {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}

	return finding{
		ruleID:      rule.ID,
		impact:      impact,
		description: rule.Description,
		help:        rule.Help,
		helpURL:     rule.HelpURL,
		tags:        tags,
		elements:    elements,
	}
}

// axeSelector flattens an axe target. Frame selectors are joined with a
// space; for shadow DOM paths only the innermost selector is kept.
func axeSelector(target []json.RawMessage) string {
	parts := make([]string, 0, len(target))
	for _, t := range target {
		var s string
		if err := json.Unmarshal(t, &s); err == nil {
			parts = append(parts, s)
			continue
		}
		var nested []string
		if err := json.Unmarshal(t, &nested); err == nil && len(nested) > 0 {
			parts = append(parts, nested[len(nested)-1])
		}
	}
	return strings.Join(parts, " ")
}
