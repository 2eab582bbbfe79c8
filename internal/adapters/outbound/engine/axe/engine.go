// Package axe runs axe-core inside a live page.
package axe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/a11ykraft/a11ykraft/internal/domain"
)

// Engine implements domain.RuleEngine by injecting the axe-core bundle
// through PageHandle.Evaluate.
type Engine struct {
	script string
}

type runOptions struct {
	RunOnly *runOnly `json:"runOnly,omitempty"`
}

type runOnly struct {
	Type   string   `json:"type"`
	Values []string `json:"values"`
}

// New reads the axe-core bundle from cfg.ScriptPath.
func New(cfg domain.AxeConfig) (*Engine, error) {
	if cfg.ScriptPath == "" {
		return nil, errors.New("axe: script_path is required")
	}
	src, err := os.ReadFile(cfg.ScriptPath)
	if err != nil {
		return nil, fmt.Errorf("reading axe-core bundle: %w", err)
	}
	return NewWithSource(string(src), cfg.RunOnly)
}

// NewWithSource builds an engine from an in-memory axe-core bundle.
// runOnlyTags restricts the run to rules carrying those tags.
func NewWithSource(source string, runOnlyTags []string) (*Engine, error) {
	if source == "" {
		return nil, errors.New("axe: empty axe-core source")
	}
	var opts runOptions
	if len(runOnlyTags) > 0 {
		opts.RunOnly = &runOnly{Type: "tag", Values: runOnlyTags}
	}
	script, err := buildScript(source, opts)
	if err != nil {
		return nil, err
	}
	return &Engine{script: script}, nil
}

func (e *Engine) Name() string { return domain.EngineAxe }

// Run injects axe-core when the page does not have it yet and returns the
// violations of one axe.run call.
func (e *Engine) Run(ctx context.Context, page domain.PageHandle) (*domain.RawToolOutput, error) {
	raw, err := page.Evaluate(ctx, e.script)
	if err != nil {
		return nil, fmt.Errorf("running axe-core: %w", err)
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil, errors.New("axe-core returned no result")
	}
	return &domain.RawToolOutput{Engine: domain.EngineAxe, Format: domain.FormatAxe, Payload: raw}, nil
}

// Script returns the function expression evaluated in the page.
func (e *Engine) Script() string { return e.script }

func buildScript(source string, opts runOptions) (string, error) {
	src, err := jsLiteral(source)
	if err != nil {
		return "", fmt.Errorf("encoding axe-core source: %w", err)
	}
	o, err := jsLiteral(opts)
	if err != nil {
		return "", fmt.Errorf("encoding axe options: %w", err)
	}
	return fmt.Sprintf(runTemplate, src, o), nil
}

// jsLiteral encodes v as JSON without HTML escaping.
func jsLiteral(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// runTemplate trims the axe result to what the normalizer reads.
const runTemplate = `async () => {
	if (typeof window.axe === "undefined") {
		(0, eval)(%s);
	}
	const r = await window.axe.run(document, %s);
	return {
		url: r.url,
		timestamp: r.timestamp,
		testEngine: r.testEngine,
		violations: r.violations.map(v => ({
			id: v.id,
			impact: v.impact,
			tags: v.tags,
			description: v.description,
			help: v.help,
			helpUrl: v.helpUrl,
			nodes: v.nodes.map(n => ({ html: n.html, target: n.target, failureSummary: n.failureSummary })),
		})),
	};
}`
