// Package pa11y runs the pa11y command line tool with its JSON reporter.
package pa11y

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/a11ykraft/a11ykraft/internal/domain"
)

// Runner executes a command and returns its standard output. A non-nil
// error may accompany valid output.
type Runner func(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)

// ExecRunner runs the command with os/exec.
func ExecRunner(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// Engine implements domain.RuleEngine.
type Engine struct {
	binary   string
	standard string
	run      Runner
}

// New creates an engine from cfg. A nil runner uses ExecRunner.
func New(cfg domain.Pa11yConfig, run Runner) *Engine {
	if run == nil {
		run = ExecRunner
	}
	binary := cfg.Binary
	if binary == "" {
		binary = "pa11y"
	}
	standard := cfg.Standard
	if standard == "" {
		standard = "WCAG2AA"
	}
	return &Engine{binary: binary, standard: standard, run: run}
}

func (e *Engine) Name() string { return domain.EnginePa11y }

// Args returns the command line used for pageURL.
func (e *Engine) Args(pageURL string) []string {
	return []string{"--reporter", "json", "--standard", e.standard, "--include-warnings", pageURL}
}

// Run invokes pa11y for the page URL. pa11y exits with status 2 when it
// finds issues, so output is used whenever it parses as a JSON array.
func (e *Engine) Run(ctx context.Context, page domain.PageHandle) (*domain.RawToolOutput, error) {
	stdout, stderr, err := e.run(ctx, e.binary, e.Args(page.URL())...)
	if ctx.Err() != nil {
		return nil, domain.NewError(domain.KindTimeout, "running pa11y", ctx.Err())
	}

	out := bytes.TrimSpace(stdout)
	if len(out) > 0 && out[0] == '[' {
		return &domain.RawToolOutput{Engine: domain.EnginePa11y, Format: domain.FormatPa11y, Payload: out}, nil
	}

	var exitErr *exec.ExitError
	switch {
	case errors.Is(err, exec.ErrNotFound):
		return nil, fmt.Errorf("pa11y binary %q not found: %w", e.binary, err)
	case errors.As(err, &exitErr):
		return nil, fmt.Errorf("pa11y exited with status %d: %s", exitErr.ExitCode(), firstLine(stderr))
	case err != nil:
		return nil, fmt.Errorf("running pa11y: %w", err)
	case len(out) == 0:
		return nil, errors.New("pa11y produced no output")
	default:
		return nil, fmt.Errorf("unexpected pa11y output: %s", firstLine(out))
	}
}

func firstLine(b []byte) string {
	s := strings.TrimSpace(string(b))
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
