package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/a11ykraft/a11ykraft/internal/domain"
	"github.com/a11ykraft/a11ykraft/internal/domain/aggregate"
)

// ScanRequest describes one end-to-end site scan.
type ScanRequest struct {
	// ProjectPath is where history is kept and the commit hash is read from.
	ProjectPath string
	SiteURL     string
	// URLs to analyze. When empty, pages are discovered from SiteURL.
	URLs      []string
	MaxPages  int
	WCAGLevel domain.WCAGLevel
	Options   domain.AnalysisOptions
}

// ScanResult is a finished scan: the report plus what did not make it into it.
type ScanResult struct {
	RunID      string                  `json:"run_id"`
	State      domain.RunState         `json:"state"`
	Report     domain.SiteWideReport   `json:"report"`
	Failed     []domain.FailedPage     `json:"failed"`
	Validation domain.ValidationReport `json:"validation"`
	ReportID   int64                   `json:"report_id,omitempty"`
}

// ReportService runs the scan pipeline:
// discover → analyze → aggregate → stamp commit → persist.
type ReportService struct {
	analysis   *AnalysisService
	discoverer domain.PageDiscoverer
	git        domain.GitInfo
	history    domain.ReportHistory
	store      domain.ReportStore
	log        logrus.FieldLogger
}

// NewReportService wires the pipeline. discoverer, git, history and store
// may be nil; the matching step is then skipped.
func NewReportService(
	analysis *AnalysisService,
	discoverer domain.PageDiscoverer,
	git domain.GitInfo,
	history domain.ReportHistory,
	store domain.ReportStore,
	log logrus.FieldLogger,
) *ReportService {
	if log == nil {
		log = discardLogger()
	}
	return &ReportService{
		analysis:   analysis,
		discoverer: discoverer,
		git:        git,
		history:    history,
		store:      store,
		log:        log,
	}
}

func (s *ReportService) Scan(ctx context.Context, req ScanRequest) (*ScanResult, error) {
	// 1. Resolve targets
	targets, err := s.targets(ctx, req)
	if err != nil {
		return nil, err
	}

	// 2. Analyze
	status, err := s.analysis.Analyze(ctx, "", targets, req.Options)
	if err != nil {
		return nil, fmt.Errorf("starting analysis: %w", err)
	}
	if status.State == domain.RunFailed {
		return nil, domain.NewError(domain.KindOrchestration, "analysis run "+status.ID+" failed", errors.New(status.Error))
	}

	// 3. Aggregate
	report := aggregate.BuildSiteWideReport(status.Outcome.Successful, req.SiteURL, req.WCAGLevel)
	if s.git != nil && req.ProjectPath != "" && s.git.IsGitRepo(req.ProjectPath) {
		if hash, err := s.git.CommitHash(req.ProjectPath); err == nil {
			report.CommitHash = hash
		}
	}

	result := &ScanResult{
		RunID:      status.ID,
		State:      status.State,
		Report:     report,
		Failed:     status.Outcome.Failed,
		Validation: ValidateResults(status.Outcome.Successful),
	}

	// 4. Persist (best effort). Partial runs would distort the trend.
	switch {
	case status.State == domain.RunCancelled:
		s.log.WithField("run", status.ID).Warn("analysis cancelled, report not persisted")
	case report.Summary.TotalPages == 0:
		s.log.WithField("run", status.ID).Warn("no page analyzed, report not persisted")
	default:
		result.ReportID = s.persist(ctx, req.ProjectPath, &report)
	}

	return result, nil
}

func (s *ReportService) persist(ctx context.Context, projectPath string, report *domain.SiteWideReport) int64 {
	if s.history != nil && projectPath != "" {
		if err := s.history.Save(projectPath, aggregate.Entry(*report)); err != nil {
			s.log.WithError(err).Warn("saving compliance history")
		}
	}
	if s.store == nil {
		return 0
	}
	id, err := s.store.Save(ctx, report)
	if err != nil {
		s.log.WithError(err).Warn("archiving report")
	}
	return id
}

func (s *ReportService) targets(ctx context.Context, req ScanRequest) ([]domain.PageTarget, error) {
	if len(req.URLs) > 0 {
		targets := make([]domain.PageTarget, 0, len(req.URLs))
		for _, u := range req.URLs {
			targets = append(targets, domain.PageTarget{URL: u, DiscoveredFrom: req.SiteURL})
		}
		if req.MaxPages > 0 && len(targets) > req.MaxPages {
			targets = targets[:req.MaxPages]
		}
		return targets, nil
	}
	if req.SiteURL == "" {
		return nil, domain.NewError(domain.KindInvalidTarget, "either a site url or page urls are required", nil)
	}
	if s.discoverer == nil {
		return []domain.PageTarget{{URL: req.SiteURL}}, nil
	}
	targets, err := s.discoverer.Discover(ctx, req.SiteURL, req.MaxPages)
	if err != nil {
		return nil, fmt.Errorf("discovering pages: %w", err)
	}
	s.log.WithFields(logrus.Fields{"site": req.SiteURL, "pages": len(targets)}).Info("pages discovered")
	return targets, nil
}

// Latest returns the most recently archived report for siteURL.
func (s *ReportService) Latest(ctx context.Context, siteURL string) (*domain.SiteWideReport, error) {
	if s.store == nil {
		return nil, errors.New("no report store configured")
	}
	report, err := s.store.Latest(ctx, siteURL)
	if err != nil {
		return nil, fmt.Errorf("loading latest report: %w", err)
	}
	return report, nil
}

// History returns the compliance trend recorded under projectPath.
func (s *ReportService) History(projectPath string) ([]domain.ReportEntry, error) {
	if s.history == nil {
		return nil, nil
	}
	entries, err := s.history.Load(projectPath)
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}
	return entries, nil
}
