package application

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/a11ykraft/a11ykraft/internal/domain"
	"github.com/a11ykraft/a11ykraft/internal/domain/normalize"
)

// PageTask analyzes a single page. The worker pool calls it once per attempt.
type PageTask interface {
	Analyze(ctx context.Context, target domain.PageTarget, captureScreenshots bool) (domain.PageAnalysisResult, error)
}

// PageAnalyzer runs every configured rule engine against one freshly opened
// page handle and normalizes their combined output.
type PageAnalyzer struct {
	opener     domain.PageOpener
	engines    []domain.RuleEngine
	normalizer *normalize.Normalizer
	log        logrus.FieldLogger
	now        func() time.Time
}

func NewPageAnalyzer(
	opener domain.PageOpener,
	engines []domain.RuleEngine,
	normalizer *normalize.Normalizer,
	log logrus.FieldLogger,
) *PageAnalyzer {
	if log == nil {
		log = discardLogger()
	}
	if normalizer == nil {
		normalizer = normalize.New(nil, log)
	}
	return &PageAnalyzer{
		opener:     opener,
		engines:    engines,
		normalizer: normalizer,
		log:        log,
		now:        time.Now,
	}
}

// Analyze opens the page, runs the engines sequentially on that handle,
// normalizes the raw outputs and closes the handle. An engine that fails is
// logged and treated as absent; only handle and timeout problems fail the page.
// A page whose deadline passes at any point is a timeout, never a clean result.
func (a *PageAnalyzer) Analyze(ctx context.Context, target domain.PageTarget, captureScreenshots bool) (domain.PageAnalysisResult, error) {
	if err := checkTarget(target); err != nil {
		return domain.PageAnalysisResult{}, err
	}
	start := a.now()
	log := a.log.WithField("url", target.URL)

	page, err := a.opener.Open(ctx, target)
	if err != nil {
		return domain.PageAnalysisResult{}, classify(ctx, "opening page", err, domain.KindPageHandle)
	}
	defer func() {
		if cerr := page.Close(); cerr != nil {
			log.WithError(cerr).Debug("closing page handle")
		}
	}()

	raws := make([]*domain.RawToolOutput, 0, len(a.engines))
	tools := make([]string, 0, len(a.engines))
	for _, engine := range a.engines {
		if ctx.Err() != nil {
			return domain.PageAnalysisResult{}, classify(ctx, "running rule engines", ctx.Err(), stopKind(ctx))
		}
		out, err := engine.Run(ctx, page)
		if err != nil {
			if errors.Is(err, domain.ErrPageClosed) || domain.KindOf(err) == domain.KindPageHandle {
				return domain.PageAnalysisResult{}, classify(ctx, "running "+engine.Name(), err, domain.KindPageHandle)
			}
			if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
				return domain.PageAnalysisResult{}, classify(ctx, "running "+engine.Name(), err, stopKind(ctx))
			}
			log.WithFields(logrus.Fields{"engine": engine.Name(), "kind": domain.KindEngineUnavailable}).
				WithError(err).Warn("rule engine unavailable")
			continue
		}
		if out.Empty() {
			log.WithField("engine", engine.Name()).Debug("rule engine returned nothing")
			continue
		}
		if out.Engine == "" {
			out.Engine = engine.Name()
		}
		raws = append(raws, out)
		tools = append(tools, engine.Name())
	}

	violations, err := a.normalizer.Normalize(ctx, page, raws, captureScreenshots)
	if err != nil {
		return domain.PageAnalysisResult{}, classify(ctx, "normalizing violations", err, domain.KindPageHandle)
	}
	// Enrichment absorbs its own errors, so a deadline hit there only shows on ctx.
	if ctx.Err() != nil {
		return domain.PageAnalysisResult{}, classify(ctx, "normalizing violations", ctx.Err(), stopKind(ctx))
	}

	finished := a.now()
	return domain.PageAnalysisResult{
		URL:          target.URL,
		Timestamp:    finished.UTC(),
		ToolsInvoked: tools,
		Violations:   violations,
		Summary:      domain.SummarizeViolations(violations),
		DurationMs:   finished.Sub(start).Milliseconds(),
	}, nil
}

// checkTarget rejects URLs no opener can load. Such pages are never retried.
func checkTarget(target domain.PageTarget) error {
	u, err := url.Parse(target.URL)
	if err != nil {
		return domain.NewError(domain.KindInvalidTarget, fmt.Sprintf("invalid page url %q", target.URL), err)
	}
	switch u.Scheme {
	case "http", "https":
		if u.Host == "" {
			return domain.NewError(domain.KindInvalidTarget, fmt.Sprintf("page url %q has no host", target.URL), nil)
		}
	case "file":
	default:
		return domain.NewError(domain.KindInvalidTarget, fmt.Sprintf("unsupported scheme in page url %q", target.URL), nil)
	}
	return nil
}

// stopKind tells a cancelled attempt from one that ran out of time.
func stopKind(ctx context.Context) domain.ErrorKind {
	if errors.Is(ctx.Err(), context.Canceled) {
		return domain.KindCancelled
	}
	return domain.KindTimeout
}

// classify wraps err with kind, or with KindTimeout when the attempt's
// deadline has passed. Errors that already carry a kind keep it.
func classify(ctx context.Context, msg string, err error, kind domain.ErrorKind) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return domain.NewError(domain.KindTimeout, msg, err)
	}
	if k := domain.KindOf(err); k != domain.KindUnknown {
		return fmt.Errorf("%s: %w", msg, err)
	}
	return domain.NewError(kind, msg, err)
}
