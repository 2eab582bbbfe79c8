// Package htmlcheck is a rule engine that inspects the static DOM of a page
// and reports its findings in axe-core result shape.
package htmlcheck

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/net/html"

	"github.com/a11ykraft/a11ykraft/internal/adapters/outbound/htmldom"
	"github.com/a11ykraft/a11ykraft/internal/domain"
)

const helpURLBase = "https://dequeuniversity.com/rules/axe/4.10/"

// documentProvider is implemented by page handles that already hold a parsed tree.
type documentProvider interface {
	Document() (*html.Node, error)
}

// Engine implements domain.RuleEngine.
type Engine struct {
	rules []rule
}

// New returns an engine running every built-in rule, or only the rules
// named in only when it is non-empty.
func New(only ...string) *Engine {
	if len(only) == 0 {
		return &Engine{rules: rules}
	}
	keep := make(map[string]bool, len(only))
	for _, id := range only {
		keep[id] = true
	}
	var selected []rule
	for _, r := range rules {
		if keep[r.id] {
			selected = append(selected, r)
		}
	}
	return &Engine{rules: selected}
}

func (e *Engine) Name() string { return domain.EngineHTMLCheck }

// RuleIDs lists the rules this engine evaluates.
func (e *Engine) RuleIDs() []string {
	ids := make([]string, len(e.rules))
	for i, r := range e.rules {
		ids[i] = r.id
	}
	return ids
}

// Run evaluates the rules against the page DOM.
func (e *Engine) Run(ctx context.Context, page domain.PageHandle) (*domain.RawToolOutput, error) {
	doc, err := document(ctx, page)
	if err != nil {
		return nil, err
	}

	result := axeResult{
		URL:        page.URL(),
		TestEngine: axeTestEngine{Name: "a11ykraft-htmlcheck", Version: "1"},
		Violations: []axeRule{},
	}
	for _, r := range e.rules {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		offenders := r.check(doc)
		if len(offenders) == 0 {
			continue
		}
		ar := axeRule{
			ID:          r.id,
			Impact:      r.impact,
			Tags:        r.tags,
			Description: r.description,
			Help:        r.help,
			HelpURL:     helpURLBase + r.id,
		}
		for _, o := range offenders {
			ar.Nodes = append(ar.Nodes, axeNode{
				HTML:           htmldom.Snippet(o.node),
				Target:         []string{htmldom.CSSPath(o.node)},
				FailureSummary: "Fix any of the following:\n  " + o.summary,
			})
		}
		result.Violations = append(result.Violations, ar)
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("encoding htmlcheck result: %w", err)
	}
	return &domain.RawToolOutput{Engine: domain.EngineHTMLCheck, Format: domain.FormatAxe, Payload: payload}, nil
}

func document(ctx context.Context, page domain.PageHandle) (*html.Node, error) {
	if dp, ok := page.(documentProvider); ok {
		return dp.Document()
	}
	src, err := page.HTML(ctx)
	if err != nil {
		return nil, err
	}
	doc, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("parsing page html: %w", err)
	}
	return doc, nil
}

type axeResult struct {
	URL        string        `json:"url"`
	TestEngine axeTestEngine `json:"testEngine"`
	Violations []axeRule     `json:"violations"`
}

type axeTestEngine struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type axeRule struct {
	ID          string    `json:"id"`
	Impact      string    `json:"impact"`
	Tags        []string  `json:"tags"`
	Description string    `json:"description"`
	Help        string    `json:"help"`
	HelpURL     string    `json:"helpUrl"`
	Nodes       []axeNode `json:"nodes"`
}

type axeNode struct {
	HTML           string   `json:"html"`
	Target         []string `json:"target"`
	FailureSummary string   `json:"failureSummary"`
}
