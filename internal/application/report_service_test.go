package application_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a11ykraft/a11ykraft/internal/application"
	"github.com/a11ykraft/a11ykraft/internal/domain"
)

type stubDiscoverer struct {
	pages []domain.PageTarget
	err   error
	limit int
}

func (d *stubDiscoverer) Discover(_ context.Context, _ string, limit int) ([]domain.PageTarget, error) {
	d.limit = limit
	return d.pages, d.err
}

type stubGit struct{ hash string }

func (g stubGit) IsGitRepo(string) bool             { return g.hash != "" }
func (g stubGit) CommitHash(string) (string, error) { return g.hash, nil }

type memHistory struct {
	mu      sync.Mutex
	entries []domain.ReportEntry
	err     error
}

func (h *memHistory) Save(_ string, e domain.ReportEntry) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.err != nil {
		return h.err
	}
	h.entries = append(h.entries, e)
	return nil
}

func (h *memHistory) Load(string) ([]domain.ReportEntry, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.entries, nil
}

type memStore struct {
	reports []domain.SiteWideReport
}

func (s *memStore) Save(_ context.Context, r *domain.SiteWideReport) (int64, error) {
	s.reports = append(s.reports, *r)
	return int64(len(s.reports)), nil
}

func (s *memStore) Latest(_ context.Context, siteURL string) (*domain.SiteWideReport, error) {
	for i := len(s.reports) - 1; i >= 0; i-- {
		if s.reports[i].SiteURL == siteURL {
			r := s.reports[i]
			return &r, nil
		}
	}
	return nil, nil
}

func scanPipeline(task *fakeTask, d domain.PageDiscoverer, h *memHistory, st *memStore) *application.ReportService {
	pool := application.NewWorkerPool(task, nil, application.WithSleeper((&recordingSleeper{}).Sleep))
	var (
		history domain.ReportHistory
		store   domain.ReportStore
	)
	if h != nil {
		history = h
	}
	if st != nil {
		store = st
	}
	return application.NewReportService(application.NewAnalysisService(pool, nil), d, stubGit{hash: "abc1234"}, history, store, nil)
}

func TestReportService_ScanExplicitURLs(t *testing.T) {
	critical := domain.ProcessedViolation{RuleID: "image-alt", Impact: domain.ImpactCritical, OccurrenceCount: 1,
		WCAGTags: []string{"wcag2a", "wcag111"}}
	task := &fakeTask{fn: func(_ context.Context, target domain.PageTarget, _ int) (domain.PageAnalysisResult, error) {
		switch target.URL {
		case "https://example.com/":
			return okResult(target.URL, critical), nil
		case "https://example.com/down":
			return domain.PageAnalysisResult{}, errBoom
		}
		return okResult(target.URL), nil
	}}
	hist := &memHistory{}
	store := &memStore{}
	svc := scanPipeline(task, nil, hist, store)

	res, err := svc.Scan(context.Background(), application.ScanRequest{
		ProjectPath: t.TempDir(),
		SiteURL:     "https://example.com",
		URLs:        []string{"https://example.com/", "https://example.com/about", "https://example.com/down"},
		Options:     opts(),
	})
	require.NoError(t, err)

	assert.Equal(t, domain.RunCompleted, res.State)
	assert.Equal(t, "abc1234", res.Report.CommitHash)
	assert.Equal(t, domain.LevelAA, res.Report.WCAGLevel)
	assert.Equal(t, 2, res.Report.Summary.TotalPages)
	assert.Equal(t, 50.0, res.Report.Summary.CompliancePercentage)
	assert.Equal(t, []string{"https://example.com/down"}, failedURLs(res.Failed))
	assert.True(t, res.Validation.IsValid)

	require.Len(t, hist.entries, 1)
	assert.Equal(t, "abc1234", hist.entries[0].CommitHash)
	assert.Equal(t, 1, hist.entries[0].TotalViolations)

	require.Len(t, store.reports, 1)
	assert.Equal(t, int64(1), res.ReportID)

	latest, err := svc.Latest(context.Background(), "https://example.com")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, res.Report.Summary, latest.Summary)

	entries, err := svc.History("")
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestReportService_ScanDiscoversPages(t *testing.T) {
	disc := &stubDiscoverer{pages: targets("https://example.com/", "https://example.com/contact")}
	svc := scanPipeline(&fakeTask{}, disc, &memHistory{}, &memStore{})

	res, err := svc.Scan(context.Background(), application.ScanRequest{
		SiteURL:  "https://example.com",
		MaxPages: 25,
		Options:  opts(),
	})
	require.NoError(t, err)
	assert.Equal(t, 25, disc.limit)
	assert.Equal(t, 2, res.Report.Summary.TotalPages)
	assert.Equal(t, 100.0, res.Report.Summary.CompliancePercentage)
}

func TestReportService_ScanCapsExplicitURLs(t *testing.T) {
	svc := scanPipeline(&fakeTask{}, nil, nil, nil)
	res, err := svc.Scan(context.Background(), application.ScanRequest{
		URLs:     []string{"https://a.test/1", "https://a.test/2", "https://a.test/3"},
		MaxPages: 2,
		Options:  opts(),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Report.Summary.TotalPages)
}

func TestReportService_ScanErrors(t *testing.T) {
	svc := scanPipeline(&fakeTask{}, &stubDiscoverer{err: errors.New("sitemap unreachable")}, nil, nil)

	_, err := svc.Scan(context.Background(), application.ScanRequest{Options: opts()})
	require.Error(t, err)
	assert.Equal(t, domain.KindInvalidTarget, domain.KindOf(err))

	_, err = svc.Scan(context.Background(), application.ScanRequest{SiteURL: "https://example.com", Options: opts()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sitemap unreachable")

	_, err = svc.Scan(context.Background(), application.ScanRequest{
		URLs:    []string{"https://example.com"},
		Options: opts(func(o *domain.AnalysisOptions) { o.BatchSize = 0 }),
	})
	require.Error(t, err)
	assert.Equal(t, domain.KindInvalidOptions, domain.KindOf(err))
}

func TestReportService_FailedRunIsAnError(t *testing.T) {
	analysis := application.NewAnalysisService(&stubPool{panics: "no browser"}, nil)
	svc := application.NewReportService(analysis, nil, nil, nil, nil, nil)

	_, err := svc.Scan(context.Background(), application.ScanRequest{URLs: []string{"https://example.com"}, Options: opts()})
	require.Error(t, err)
	assert.Equal(t, domain.KindOrchestration, domain.KindOf(err))
	assert.Contains(t, err.Error(), "no browser")
}

func TestReportService_HistoryFailureIsNotFatal(t *testing.T) {
	svc := scanPipeline(&fakeTask{}, nil, &memHistory{err: errors.New("read-only filesystem")}, &memStore{})

	res, err := svc.Scan(context.Background(), application.ScanRequest{
		ProjectPath: t.TempDir(),
		URLs:        []string{"https://example.com"},
		Options:     opts(),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Report.Summary.TotalPages)
}

func TestReportService_LatestWithoutStore(t *testing.T) {
	svc := application.NewReportService(application.NewAnalysisService(&stubPool{}, nil), nil, nil, nil, nil, nil)
	_, err := svc.Latest(context.Background(), "https://example.com")
	assert.Error(t, err)

	entries, err := svc.History(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestReportService_CancelledRunIsNotPersisted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	task := &fakeTask{fn: func(_ context.Context, target domain.PageTarget, _ int) (domain.PageAnalysisResult, error) {
		cancel()
		return okResult(target.URL), nil
	}}
	hist := &memHistory{}
	store := &memStore{}
	svc := scanPipeline(task, nil, hist, store)

	res, err := svc.Scan(ctx, application.ScanRequest{
		ProjectPath: t.TempDir(),
		SiteURL:     "https://example.com",
		URLs:        []string{"https://example.com/", "https://example.com/about"},
		Options: opts(func(o *domain.AnalysisOptions) {
			o.BatchSize = 1
			o.MaxConcurrency = 1
		}),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.RunCancelled, res.State)
	assert.Equal(t, 1, res.Report.Summary.TotalPages)
	assert.Equal(t, []string{"https://example.com/about"}, failedURLs(res.Failed))
	assert.Empty(t, hist.entries)
	assert.Empty(t, store.reports)
	assert.Zero(t, res.ReportID)
}

func TestReportService_NothingAnalyzedIsNotPersisted(t *testing.T) {
	hist := &memHistory{}
	store := &memStore{}
	svc := scanPipeline(&fakeTask{fn: failing("https://example.com/down")}, nil, hist, store)

	res, err := svc.Scan(context.Background(), application.ScanRequest{
		ProjectPath: t.TempDir(),
		URLs:        []string{"https://example.com/down"},
		Options:     opts(),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.RunCompleted, res.State)
	assert.Equal(t, 0, res.Report.Summary.TotalPages)
	assert.Len(t, res.Failed, 1)
	assert.Empty(t, hist.entries)
	assert.Empty(t, store.reports)
}
