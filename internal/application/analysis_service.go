package application

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/a11ykraft/a11ykraft/internal/domain"
)

// maxFinishedRuns bounds how many finished runs stay queryable.
const maxFinishedRuns = 100

// BatchAnalyzer is the worker pool as seen by the orchestrator.
type BatchAnalyzer interface {
	AnalyzePages(ctx context.Context, pages []domain.PageTarget, opts domain.AnalysisOptions) domain.BatchOutcome
}

type run struct {
	status    domain.RunStatus
	cancel    context.CancelFunc
	cancelled bool
	done      chan struct{}
}

// AnalysisService drives analysis runs through Running to Completed,
// Cancelled or Failed and keeps a registry of them for status queries.
type AnalysisService struct {
	pool  BatchAnalyzer
	log   logrus.FieldLogger
	now   func() time.Time
	newID func() string

	mu       sync.RWMutex
	runs     map[string]*run
	finished []string
	metrics  domain.AnalysisMetrics
}

func NewAnalysisService(pool BatchAnalyzer, log logrus.FieldLogger) *AnalysisService {
	if log == nil {
		log = discardLogger()
	}
	return &AnalysisService{
		pool:  pool,
		log:   log,
		now:   time.Now,
		newID: uuid.NewString,
		runs:  make(map[string]*run),
	}
}

// PerformAccessibilityAnalysis analyzes pages and returns the successful
// results only. Failed pages are visible through the run status and metrics.
// The only error is a run that cannot start.
func (s *AnalysisService) PerformAccessibilityAnalysis(ctx context.Context, pages []domain.PageTarget, opts domain.AnalysisOptions) ([]domain.PageAnalysisResult, error) {
	status, err := s.Analyze(ctx, "", pages, opts)
	if err != nil {
		return nil, err
	}
	if status.Outcome == nil {
		return []domain.PageAnalysisResult{}, nil
	}
	return status.Outcome.Successful, nil
}

// Analyze runs synchronously under runID, or a fresh id when runID is empty.
func (s *AnalysisService) Analyze(ctx context.Context, runID string, pages []domain.PageTarget, opts domain.AnalysisOptions) (*domain.RunStatus, error) {
	r, runCtx, err := s.begin(ctx, runID, pages, opts)
	if err != nil {
		return nil, err
	}
	status := s.execute(runCtx, r, pages, opts)
	return &status, nil
}

// Start registers a run and executes it in the background. The run outlives
// ctx; stop it with CancelAnalysis.
func (s *AnalysisService) Start(ctx context.Context, pages []domain.PageTarget, opts domain.AnalysisOptions) (string, error) {
	r, runCtx, err := s.begin(context.WithoutCancel(ctx), "", pages, opts)
	if err != nil {
		return "", err
	}
	go s.execute(runCtx, r, pages, opts)
	return r.status.ID, nil
}

// Wait blocks until the run finishes or ctx is done.
func (s *AnalysisService) Wait(ctx context.Context, id string) (domain.RunStatus, error) {
	s.mu.RLock()
	r, ok := s.runs[id]
	s.mu.RUnlock()
	if !ok {
		return domain.RunStatus{}, fmt.Errorf("unknown analysis %q", id)
	}
	select {
	case <-r.done:
		st, _ := s.GetAnalysisStatus(id)
		return st, nil
	case <-ctx.Done():
		return domain.RunStatus{}, ctx.Err()
	}
}

func (s *AnalysisService) begin(ctx context.Context, runID string, pages []domain.PageTarget, opts domain.AnalysisOptions) (*run, context.Context, error) {
	if err := opts.Validate(); err != nil {
		return nil, nil, err
	}
	if runID == "" {
		runID = s.newID()
	}

	runCtx, cancel := context.WithCancel(ctx)
	r := &run{
		status: domain.RunStatus{
			ID:         runID,
			State:      domain.RunRunning,
			TotalPages: len(pages),
			StartedAt:  s.now(),
		},
		cancel: cancel,
		done:   make(chan struct{}),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.runs[runID]; ok && !existing.status.State.Terminal() {
		cancel()
		return nil, nil, domain.NewError(domain.KindInvalidOptions, fmt.Sprintf("analysis %q is already running", runID), nil)
	}
	s.runs[runID] = r
	return r, runCtx, nil
}

func (s *AnalysisService) execute(ctx context.Context, r *run, pages []domain.PageTarget, opts domain.AnalysisOptions) domain.RunStatus {
	defer r.cancel()
	log := s.log.WithFields(logrus.Fields{"run": r.status.ID, "pages": len(pages)})

	var (
		outcome domain.BatchOutcome
		err     error
	)
	if len(pages) == 0 {
		outcome = domain.BatchOutcome{
			Successful: []domain.PageAnalysisResult{},
			Failed:     []domain.FailedPage{},
			Metrics:    domain.BatchMetrics{SuccessRatePercent: 100},
		}
	} else {
		log.Info("analysis started")
		outcome, err = s.invokePool(ctx, pages, opts)
	}

	finishedAt := s.now()
	state := domain.RunCompleted
	var msg string
	switch {
	case err != nil:
		state = domain.RunFailed
		msg = err.Error()
		outcome = allFailed(pages, err)
		log.WithError(err).Error("analysis failed")
	case outcome.Cancelled || ctx.Err() != nil:
		state = domain.RunCancelled
		log.WithFields(logrus.Fields{"successful": len(outcome.Successful), "failed": len(outcome.Failed)}).Warn("analysis cancelled")
	default:
		for _, f := range outcome.Failed {
			log.WithFields(logrus.Fields{"url": f.Page.URL, "error": f.Error}).Warn("page failed")
		}
		if len(pages) > 0 {
			log.WithFields(logrus.Fields{
				"successful":   len(outcome.Successful),
				"failed":       len(outcome.Failed),
				"success_rate": outcome.Metrics.SuccessRatePercent,
			}).Info("analysis completed")
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if r.cancelled && state == domain.RunCompleted {
		state = domain.RunCancelled
	}
	r.status.State = state
	r.status.FinishedAt = finishedAt
	r.status.Error = msg
	r.status.Outcome = &outcome
	if len(pages) > 0 && state != domain.RunFailed {
		s.metrics = metricsFor(outcome, len(pages), finishedAt.Sub(r.status.StartedAt))
	}
	s.retire(r.status.ID)
	close(r.done)
	return r.status
}

// invokePool converts a pool panic, or an outcome that loses pages, into a
// run-level orchestration error.
func (s *AnalysisService) invokePool(ctx context.Context, pages []domain.PageTarget, opts domain.AnalysisOptions) (outcome domain.BatchOutcome, err error) {
	if s.pool == nil {
		return domain.BatchOutcome{}, domain.NewError(domain.KindOrchestration, "worker pool is not configured", nil)
	}
	defer func() {
		if r := recover(); r != nil {
			err = domain.NewError(domain.KindOrchestration, fmt.Sprintf("worker pool panicked: %v", r), nil)
		}
	}()
	outcome = s.pool.AnalyzePages(ctx, pages, opts)
	if got := len(outcome.Successful) + len(outcome.Failed); got != len(pages) {
		return outcome, domain.NewError(domain.KindOrchestration,
			fmt.Sprintf("worker pool accounted for %d of %d pages", got, len(pages)), nil)
	}
	return outcome, nil
}

// retire records a finished run and evicts the oldest beyond maxFinishedRuns.
// Callers hold s.mu.
func (s *AnalysisService) retire(id string) {
	s.finished = append(s.finished, id)
	for len(s.finished) > maxFinishedRuns {
		oldest := s.finished[0]
		s.finished = s.finished[1:]
		if r, ok := s.runs[oldest]; ok && r.status.State.Terminal() {
			delete(s.runs, oldest)
		}
	}
}

// GetAnalysisMetrics describes the most recent non-empty run that completed
// or was cancelled. Failed runs leave it unchanged.
func (s *AnalysisService) GetAnalysisMetrics() domain.AnalysisMetrics {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.metrics
}

// GetActiveAnalyses lists running analyses, oldest first.
func (s *AnalysisService) GetActiveAnalyses() []domain.RunStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	active := make([]domain.RunStatus, 0)
	for _, r := range s.runs {
		if r.status.State == domain.RunRunning {
			active = append(active, r.status)
		}
	}
	sort.Slice(active, func(i, j int) bool {
		if !active[i].StartedAt.Equal(active[j].StartedAt) {
			return active[i].StartedAt.Before(active[j].StartedAt)
		}
		return active[i].ID < active[j].ID
	})
	return active
}

func (s *AnalysisService) GetAnalysisStatus(id string) (domain.RunStatus, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.runs[id]
	if !ok {
		return domain.RunStatus{}, false
	}
	return r.status, true
}

// CancelAnalysis stops a running analysis from starting further pages.
// Pages already in flight finish and count toward the outcome.
func (s *AnalysisService) CancelAnalysis(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.runs[id]
	if !ok || r.status.State != domain.RunRunning {
		return false
	}
	r.cancelled = true
	r.cancel()
	return true
}

func allFailed(pages []domain.PageTarget, err error) domain.BatchOutcome {
	out := domain.BatchOutcome{
		Successful: []domain.PageAnalysisResult{},
		Failed:     make([]domain.FailedPage, 0, len(pages)),
	}
	for _, p := range pages {
		out.Failed = append(out.Failed, domain.FailedPage{Page: p, Error: err.Error()})
	}
	return out
}

func metricsFor(outcome domain.BatchOutcome, totalPages int, elapsed time.Duration) domain.AnalysisMetrics {
	m := domain.AnalysisMetrics{
		TotalPages:         totalPages,
		AnalysisTimeMs:     elapsed.Milliseconds(),
		SuccessRatePercent: outcome.Metrics.SuccessRatePercent,
	}
	if totalPages > 0 {
		m.AverageTimePerPageMs = float64(m.AnalysisTimeMs) / float64(totalPages)
		m.SuccessRatePercent = 100 * float64(len(outcome.Successful)) / float64(totalPages)
	}
	for _, r := range outcome.Successful {
		if len(r.Violations) > 0 {
			m.PagesWithViolations++
		}
		m.TotalViolations += r.Summary.Total
	}
	return m
}
