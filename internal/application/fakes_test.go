package application_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/a11ykraft/a11ykraft/internal/domain"
)

// fakeTask is a scripted PageTask. fn decides the outcome of each attempt;
// when nil every page succeeds with no violations.
type fakeTask struct {
	fn func(ctx context.Context, target domain.PageTarget, attempt int) (domain.PageAnalysisResult, error)

	mu       sync.Mutex
	attempts map[string]int
	inFlight atomic.Int32
	peak     atomic.Int32
	hold     time.Duration
}

func (f *fakeTask) Analyze(ctx context.Context, target domain.PageTarget, _ bool) (domain.PageAnalysisResult, error) {
	f.mu.Lock()
	if f.attempts == nil {
		f.attempts = make(map[string]int)
	}
	f.attempts[target.URL]++
	attempt := f.attempts[target.URL]
	f.mu.Unlock()

	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if f.hold > 0 {
		time.Sleep(f.hold)
	}

	if f.fn != nil {
		return f.fn(ctx, target, attempt)
	}
	return okResult(target.URL), nil
}

func (f *fakeTask) attemptsFor(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts[url]
}

func (f *fakeTask) totalAttempts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.attempts {
		total += n
	}
	return total
}

func okResult(url string, vs ...domain.ProcessedViolation) domain.PageAnalysisResult {
	return domain.PageAnalysisResult{
		URL:          url,
		Timestamp:    time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC),
		ToolsInvoked: []string{"htmlcheck"},
		Violations:   vs,
		Summary:      domain.SummarizeViolations(vs),
	}
}

// recordingSleeper records requested delays without waiting.
type recordingSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()
	return ctx.Err()
}

func (s *recordingSleeper) recorded() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.delays...)
}

func targets(urls ...string) []domain.PageTarget {
	out := make([]domain.PageTarget, 0, len(urls))
	for _, u := range urls {
		out = append(out, domain.PageTarget{URL: u})
	}
	return out
}

func opts(mutate ...func(*domain.AnalysisOptions)) domain.AnalysisOptions {
	o := domain.AnalysisOptions{
		MaxConcurrency: 2,
		BatchSize:      10,
		MaxRetries:     1,
	}
	for _, m := range mutate {
		m(&o)
	}
	return o
}

// fakePage is a static PageHandle.
type fakePage struct {
	url    string
	closed atomic.Bool
}

func (p *fakePage) URL() string                          { return p.url }
func (p *fakePage) HTML(context.Context) (string, error) { return "<html></html>", nil }
func (p *fakePage) Evaluate(context.Context, string) (json.RawMessage, error) {
	return nil, domain.ErrUnsupported
}
func (p *fakePage) BoundingBox(context.Context, string) (*domain.BoundingBox, error) {
	return nil, domain.ErrUnsupported
}
func (p *fakePage) Screenshot(context.Context, string) ([]byte, error) {
	return nil, domain.ErrUnsupported
}
func (p *fakePage) ResolveSelector(_ context.Context, sel string) (string, error) { return sel, nil }
func (p *fakePage) Closed() bool                                                  { return p.closed.Load() }
func (p *fakePage) Close() error {
	p.closed.Store(true)
	return nil
}

type fakeOpener struct {
	err    error
	mu     sync.Mutex
	opened []*fakePage
}

func (o *fakeOpener) Open(_ context.Context, target domain.PageTarget) (domain.PageHandle, error) {
	if o.err != nil {
		return nil, o.err
	}
	p := &fakePage{url: target.URL}
	o.mu.Lock()
	o.opened = append(o.opened, p)
	o.mu.Unlock()
	return p, nil
}

type fakeEngine struct {
	name   string
	format domain.RawFormat
	out    string
	err    error
	run    func(ctx context.Context, page domain.PageHandle) (*domain.RawToolOutput, error)
}

func (e *fakeEngine) Name() string { return e.name }

func (e *fakeEngine) Run(ctx context.Context, page domain.PageHandle) (*domain.RawToolOutput, error) {
	if e.run != nil {
		return e.run(ctx, page)
	}
	if e.err != nil {
		return nil, e.err
	}
	if e.out == "" {
		return nil, nil
	}
	return &domain.RawToolOutput{Engine: e.name, Format: e.format, Payload: json.RawMessage(e.out)}, nil
}

var errBoom = errors.New("boom")
