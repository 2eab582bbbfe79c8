// Package normalize converts engine-specific findings into the canonical
// ProcessedViolation model, merging duplicate rules reported by several engines.
package normalize

import (
	"context"
	"io"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/a11ykraft/a11ykraft/internal/domain"
	"github.com/a11ykraft/a11ykraft/internal/domain/wcag"
)

// finding is one engine record after format decoding, before merging.
type finding struct {
	ruleID      string
	impact      domain.Impact
	description string
	help        string
	helpURL     string
	tags        []string
	elements    []domain.Element
}

// decoder turns one raw payload into findings. Records it cannot use are
// skipped and counted in the returned skip count.
type decoder func(payload []byte) (findings []finding, skipped int, err error)

// Normalizer maps raw engine outputs onto ProcessedViolation values.
type Normalizer struct {
	table    *wcag.Table
	log      logrus.FieldLogger
	decoders map[domain.RawFormat]decoder
}

// New creates a Normalizer backed by the given rule table.
func New(table *wcag.Table, log logrus.FieldLogger) *Normalizer {
	if table == nil {
		table = wcag.Default()
	}
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	return &Normalizer{
		table: table,
		log:   log,
		decoders: map[domain.RawFormat]decoder{
			domain.FormatAxe:   decodeAxe,
			domain.FormatPa11y: decodePa11y,
		},
	}
}

// Normalize decodes every non-empty raw output, merges findings by rule id
// and, when captureScreenshots is set, enriches elements through page.
// It fails only when the page handle is unusable.
func (n *Normalizer) Normalize(ctx context.Context, page domain.PageHandle, raws []*domain.RawToolOutput, captureScreenshots bool) ([]domain.ProcessedViolation, error) {
	if page != nil && page.Closed() {
		return nil, domain.NewError(domain.KindPageHandle, "normalizing violations", domain.ErrPageClosed)
	}
	if page == nil && captureScreenshots {
		return nil, domain.NewError(domain.KindPageHandle, "normalizing violations", domain.ErrPageClosed)
	}

	merged := newMergeSet(n.table)
	for _, raw := range raws {
		if raw.Empty() {
			continue
		}
		dec, ok := n.decoders[raw.Format]
		if !ok {
			n.log.WithFields(logrus.Fields{"engine": raw.Engine, "format": raw.Format}).
				Warn("skipping output in unknown format")
			continue
		}
		findings, skipped, err := dec(raw.Payload)
		if err != nil {
			n.log.WithFields(logrus.Fields{"engine": raw.Engine, "error": err}).
				Warn("skipping malformed engine output")
			continue
		}
		if skipped > 0 {
			n.log.WithFields(logrus.Fields{"engine": raw.Engine, "skipped": skipped}).
				Debug("skipped malformed records")
		}
		for _, f := range findings {
			merged.add(raw.Engine, f)
		}
	}

	violations := merged.violations()
	if captureScreenshots {
		n.enrich(ctx, page, violations)
	}

	sort.SliceStable(violations, func(i, j int) bool {
		ri, rj := violations[i].Impact.Rank(), violations[j].Impact.Rank()
		if ri != rj {
			return ri > rj
		}
		return violations[i].RuleID < violations[j].RuleID
	})
	return violations, nil
}

// mergeSet accumulates findings keyed by rule id in first-seen order.
type mergeSet struct {
	table *wcag.Table
	order []string
	byID  map[string]*domain.ProcessedViolation
	tools map[string]map[string]bool
	tags  map[string]map[string]bool
}

func newMergeSet(table *wcag.Table) *mergeSet {
	return &mergeSet{
		table: table,
		byID:  make(map[string]*domain.ProcessedViolation),
		tools: make(map[string]map[string]bool),
		tags:  make(map[string]map[string]bool),
	}
}

func (m *mergeSet) add(engine string, f finding) {
	v, ok := m.byID[f.ruleID]
	if !ok {
		v = &domain.ProcessedViolation{RuleID: f.ruleID, Impact: f.impact}
		m.byID[f.ruleID] = v
		m.order = append(m.order, f.ruleID)
		m.tools[f.ruleID] = make(map[string]bool)
		m.tags[f.ruleID] = make(map[string]bool)
	}

	v.Impact = domain.MaxImpact(v.Impact, f.impact)
	if v.Description == "" {
		v.Description = f.description
	}
	if v.HelpText == "" {
		v.HelpText = f.help
	}
	if v.HelpURL == "" {
		v.HelpURL = f.helpURL
	}
	for _, t := range f.tags {
		if !m.tags[f.ruleID][t] {
			m.tags[f.ruleID][t] = true
			v.WCAGTags = append(v.WCAGTags, t)
		}
	}
	v.Elements = append(v.Elements, f.elements...)
	v.OccurrenceCount += len(f.elements)
	m.tools[f.ruleID][engine] = true
}

func (m *mergeSet) violations() []domain.ProcessedViolation {
	out := make([]domain.ProcessedViolation, 0, len(m.order))
	for _, id := range m.order {
		v := *m.byID[id]

		tools := make([]string, 0, len(m.tools[id]))
		for t := range m.tools[id] {
			tools = append(tools, t)
		}
		sort.Strings(tools)
		v.ContributingTools = tools

		if v.WCAGTags == nil {
			v.WCAGTags = []string{}
		}
		v.WCAGLevel = wcag.LevelFromTags(v.WCAGTags)
		v.UserScenarios = m.table.ScenariosFor(v.RuleID, v.WCAGTags)
		v.Remediation = domain.Remediation{
			Priority:    domain.PriorityFor(v.Impact),
			Effort:      m.table.EffortFor(v.RuleID),
			Suggestions: m.table.SuggestionsFor(v.RuleID, v.HelpText),
		}
		out = append(out, v)
	}
	return out
}
