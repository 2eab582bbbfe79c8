package application

import (
	"context"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/a11ykraft/a11ykraft/internal/domain"
)

// Sleeper waits for d or until ctx is done, returning ctx.Err() in the latter case.
type Sleeper func(ctx context.Context, d time.Duration) error

// WorkerPool analyzes pages in sequential batches with bounded concurrency
// inside each batch.
type WorkerPool struct {
	task  PageTask
	log   logrus.FieldLogger
	sleep Sleeper
	now   func() time.Time
}

type PoolOption func(*WorkerPool)

// WithSleeper replaces the timer used for backoff and inter-batch delays.
func WithSleeper(s Sleeper) PoolOption {
	return func(p *WorkerPool) { p.sleep = s }
}

func WithClock(now func() time.Time) PoolOption {
	return func(p *WorkerPool) { p.now = now }
}

func NewWorkerPool(task PageTask, log logrus.FieldLogger, opts ...PoolOption) *WorkerPool {
	if log == nil {
		log = discardLogger()
	}
	p := &WorkerPool{task: task, log: log, sleep: sleepContext, now: time.Now}
	for _, o := range opts {
		o(p)
	}
	return p
}

type pageOutcome struct {
	started bool
	result  domain.PageAnalysisResult
	err     error
}

// AnalyzePages runs the task for every page and partitions the pages into
// successful and failed, each in input order.
//
// ctx is a stop signal only: once it is done no further batch, page or retry
// starts, but attempts already running finish under their own page timeout.
// Pages that never started are reported as failed and the outcome is marked
// cancelled.
func (p *WorkerPool) AnalyzePages(ctx context.Context, pages []domain.PageTarget, opts domain.AnalysisOptions) domain.BatchOutcome {
	if len(pages) == 0 {
		return domain.BatchOutcome{
			Successful: []domain.PageAnalysisResult{},
			Failed:     []domain.FailedPage{},
			Metrics:    domain.BatchMetrics{SuccessRatePercent: 100},
		}
	}

	start := p.now()
	batchSize := max(opts.BatchSize, 1)
	sem := semaphore.NewWeighted(int64(max(opts.MaxConcurrency, 1)))
	outcomes := make([]pageOutcome, len(pages))

	for lo := 0; lo < len(pages); lo += batchSize {
		if lo > 0 && opts.DelayBetweenBatches > 0 {
			if err := p.sleep(ctx, opts.DelayBetweenBatches); err != nil {
				break
			}
		}
		if ctx.Err() != nil {
			break
		}
		hi := min(lo+batchSize, len(pages))
		p.log.WithFields(logrus.Fields{"from": lo, "to": hi, "total": len(pages)}).Debug("starting batch")
		p.runBatch(ctx, sem, pages, outcomes, lo, hi, opts)
	}

	return p.collect(ctx, pages, outcomes, p.now().Sub(start))
}

func (p *WorkerPool) runBatch(ctx context.Context, sem *semaphore.Weighted, pages []domain.PageTarget, outcomes []pageOutcome, lo, hi int, opts domain.AnalysisOptions) {
	var wg sync.WaitGroup
	for i := lo; i < hi; i++ {
		if ctx.Err() != nil {
			break
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		outcomes[i].started = true
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer sem.Release(1)
			outcomes[i].result, outcomes[i].err = p.analyzeWithRetry(ctx, pages[i], opts)
		}(i)
	}
	wg.Wait()
}

// analyzeWithRetry makes up to opts.Attempts() attempts. The delay before
// attempt n+1 is BaseBackoff * 2^(n-1).
func (p *WorkerPool) analyzeWithRetry(ctx context.Context, page domain.PageTarget, opts domain.AnalysisOptions) (domain.PageAnalysisResult, error) {
	attempts := opts.Attempts()
	log := p.log.WithField("url", page.URL)

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			delay := backoff(opts.BaseBackoff, attempt-1)
			log.WithFields(logrus.Fields{"attempt": attempt, "delay": delay}).Debug("retrying page")
			if err := p.sleep(ctx, delay); err != nil {
				break
			}
		}

		res, err := p.attempt(ctx, page, opts)
		if err == nil {
			return res, nil
		}
		lastErr = err
		log.WithFields(logrus.Fields{"attempt": attempt, "of": attempts}).WithError(err).Warn("page analysis failed")
		if !domain.IsRetryable(err) {
			break
		}
	}
	return domain.PageAnalysisResult{}, lastErr
}

// attempt runs the task once, detached from ctx's cancellation and bounded
// by the page timeout. A panicking task fails only its own page.
func (p *WorkerPool) attempt(ctx context.Context, page domain.PageTarget, opts domain.AnalysisOptions) (res domain.PageAnalysisResult, err error) {
	taskCtx := context.WithoutCancel(ctx)
	if opts.PageTimeout > 0 {
		var cancel context.CancelFunc
		taskCtx, cancel = context.WithTimeout(taskCtx, opts.PageTimeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			err = domain.NewError(domain.KindUnknown, fmt.Sprintf("page task panicked: %v", r), nil)
		}
	}()
	return p.task.Analyze(taskCtx, page, opts.CaptureScreenshots)
}

func (p *WorkerPool) collect(ctx context.Context, pages []domain.PageTarget, outcomes []pageOutcome, elapsed time.Duration) domain.BatchOutcome {
	out := domain.BatchOutcome{
		Successful: []domain.PageAnalysisResult{},
		Failed:     []domain.FailedPage{},
	}
	for i, o := range outcomes {
		switch {
		case !o.started:
			out.Cancelled = true
			cause := domain.NewError(domain.KindCancelled, "analysis cancelled before page started", ctx.Err())
			out.Failed = append(out.Failed, domain.FailedPage{Page: pages[i], Error: cause.Error()})
		case o.err != nil:
			out.Failed = append(out.Failed, domain.FailedPage{Page: pages[i], Error: o.err.Error()})
		default:
			out.Successful = append(out.Successful, o.result)
		}
	}

	total := elapsed.Milliseconds()
	out.Metrics = domain.BatchMetrics{
		TotalTimeMs:          total,
		AverageTimePerPageMs: float64(total) / float64(len(pages)),
		SuccessRatePercent:   100 * float64(len(out.Successful)) / float64(len(pages)),
	}
	return out
}

// backoff returns base * 2^(retry-1), saturating instead of overflowing.
func backoff(base time.Duration, retry int) time.Duration {
	if base <= 0 {
		return 0
	}
	shift := retry - 1
	if shift >= 62 || base > time.Duration(math.MaxInt64)>>shift {
		return time.Duration(math.MaxInt64)
	}
	return base << shift
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func discardLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
